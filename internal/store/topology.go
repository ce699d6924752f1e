// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"database/sql"

	"github.com/netvigil/netvigil/internal/errors"
	"github.com/netvigil/netvigil/internal/schema"
)

// Node is a persisted topology node row.
type Node struct {
	ID         int64  `json:"id"`
	CustomerID string `json:"customer_id"`
	DeviceID   string `json:"device_id"`
	MACAddress string `json:"mac_address"`
	IPAddress  string `json:"ip_address,omitempty"`
	Hostname   string `json:"hostname,omitempty"`
	VLANID     int    `json:"vlan_id,omitempty"`
	SwitchPort string `json:"switch_port,omitempty"`
	VendorOUI  string `json:"vendor_oui,omitempty"`
	FirstSeen  string `json:"first_seen"`
	LastSeen   string `json:"last_seen"`
	Authorized bool   `json:"authorized"`
}

// UpsertNode inserts or refreshes a node keyed on (customer, mac).
// first_seen is preserved on update, last_seen always advances, and
// authorized is sticky: a collection can set it but never clear it.
// Hostname and vendor are kept when the new observation lacks them.
func (s *Store) UpsertNode(customerID, deviceID string, node schema.NetworkNode) error {
	now := utcNow()
	vlan := sql.NullInt64{}
	if node.VLANID != 0 {
		vlan = sql.NullInt64{Int64: int64(node.VLANID), Valid: true}
	}
	authorized := 0
	if node.Authorized {
		authorized = 1
	}

	_, err := s.db.Exec(`
		INSERT INTO topology_nodes
			(customer_id, device_id, mac_address, ip_address, hostname,
			 vlan_id, switch_port, vendor_oui, first_seen, last_seen, authorized)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(customer_id, mac_address) DO UPDATE SET
			device_id   = excluded.device_id,
			ip_address  = excluded.ip_address,
			hostname    = COALESCE(NULLIF(excluded.hostname, ''), topology_nodes.hostname),
			vlan_id     = excluded.vlan_id,
			switch_port = excluded.switch_port,
			vendor_oui  = COALESCE(NULLIF(excluded.vendor_oui, ''), topology_nodes.vendor_oui),
			last_seen   = excluded.last_seen,
			authorized  = CASE
				WHEN topology_nodes.authorized = 1 THEN 1
				ELSE excluded.authorized
			END`,
		customerID, deviceID, node.MACAddress, node.IPAddress, node.Hostname,
		vlan, node.SwitchPort, node.VendorOUI, now, now, authorized)
	if err != nil {
		return errors.Wrap(err, errors.KindStoreUnavailable, "failed to upsert node")
	}
	return nil
}

// NodeFilter selects topology nodes.
type NodeFilter struct {
	Customer string
	VLANID   int
}

// ListNodes returns nodes matching the filter, most recently seen first.
func (s *Store) ListNodes(f NodeFilter) ([]Node, error) {
	query := `
		SELECT id, customer_id, device_id, mac_address, ip_address, hostname,
		       vlan_id, switch_port, vendor_oui, first_seen, last_seen, authorized
		FROM topology_nodes`
	var clauses []string
	var args []any
	if f.Customer != "" {
		clauses = append(clauses, "customer_id = ?")
		args = append(args, f.Customer)
	}
	if f.VLANID != 0 {
		clauses = append(clauses, "vlan_id = ?")
		args = append(args, f.VLANID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + clauses[0]
		for _, c := range clauses[1:] {
			query += " AND " + c
		}
	}
	query += " ORDER BY last_seen DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindStoreUnavailable, "failed to list nodes")
	}
	defer rows.Close()

	var out []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// GetNodeByMAC fetches one node.
func (s *Store) GetNodeByMAC(customerID, mac string) (Node, error) {
	rows, err := s.db.Query(`
		SELECT id, customer_id, device_id, mac_address, ip_address, hostname,
		       vlan_id, switch_port, vendor_oui, first_seen, last_seen, authorized
		FROM topology_nodes WHERE customer_id = ? AND mac_address = ?`,
		customerID, mac)
	if err != nil {
		return Node{}, errors.Wrap(err, errors.KindStoreUnavailable, "failed to read node")
	}
	defer rows.Close()
	if !rows.Next() {
		return Node{}, errors.Errorf(errors.KindNotFound, "node %s not found for customer %s", mac, customerID)
	}
	return scanNode(rows)
}

func scanNode(rows *sql.Rows) (Node, error) {
	var n Node
	var ip, hostname, port, oui sql.NullString
	var vlan sql.NullInt64
	var authorized int
	if err := rows.Scan(&n.ID, &n.CustomerID, &n.DeviceID, &n.MACAddress, &ip, &hostname,
		&vlan, &port, &oui, &n.FirstSeen, &n.LastSeen, &authorized); err != nil {
		return Node{}, errors.Wrap(err, errors.KindStoreUnavailable, "failed to scan node")
	}
	n.IPAddress = ip.String
	n.Hostname = hostname.String
	n.SwitchPort = port.String
	n.VendorOUI = oui.String
	n.VLANID = int(vlan.Int64)
	n.Authorized = authorized != 0
	return n, nil
}

// SetNodeAuthorized marks a node authorized or not. This is the only path
// that may clear the flag; collections never do.
func (s *Store) SetNodeAuthorized(customerID, mac string, authorized bool) error {
	flag := 0
	if authorized {
		flag = 1
	}
	res, err := s.db.Exec(`
		UPDATE topology_nodes SET authorized = ?
		WHERE customer_id = ? AND mac_address = ?`, flag, customerID, mac)
	if err != nil {
		return errors.Wrap(err, errors.KindStoreUnavailable, "failed to update node authorization")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Errorf(errors.KindNotFound, "node %s not found for customer %s", mac, customerID)
	}
	return nil
}

// AuthorizedVLANMap returns {mac: set of authorized VLANs} for one
// customer, feeding the VLAN-drift detector.
func (s *Store) AuthorizedVLANMap(customerID string) (map[string]map[int]bool, error) {
	rows, err := s.db.Query(`
		SELECT mac_address, vlan_id FROM topology_nodes
		WHERE customer_id = ? AND authorized = 1 AND vlan_id IS NOT NULL`,
		customerID)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindStoreUnavailable, "failed to read authorized map")
	}
	defer rows.Close()

	out := map[string]map[int]bool{}
	for rows.Next() {
		var mac string
		var vlan int
		if err := rows.Scan(&mac, &vlan); err != nil {
			return nil, errors.Wrap(err, errors.KindStoreUnavailable, "failed to scan authorized row")
		}
		if out[mac] == nil {
			out[mac] = map[int]bool{}
		}
		out[mac][vlan] = true
	}
	return out, rows.Err()
}

// CountNodes returns the number of nodes for a customer.
func (s *Store) CountNodes(customerID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM topology_nodes WHERE customer_id = ?`, customerID).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, errors.KindStoreUnavailable, "failed to count nodes")
	}
	return n, nil
}

// CountDistinctVLANs returns how many VLANs have nodes for a customer.
func (s *Store) CountDistinctVLANs(customerID string) (int, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(DISTINCT vlan_id) FROM topology_nodes
		WHERE customer_id = ? AND vlan_id IS NOT NULL`, customerID).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, errors.KindStoreUnavailable, "failed to count vlans")
	}
	return n, nil
}

// AppendARPEntries appends raw ARP rows with a shared collected_at.
func (s *Store) AppendARPEntries(customerID, deviceID string, entries []schema.ARPEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	now := utcNow()
	tx, err := s.db.Begin()
	if err != nil {
		return 0, errors.Wrap(err, errors.KindStoreUnavailable, "failed to begin transaction")
	}
	stmt, err := tx.Prepare(`
		INSERT INTO topology_arp (customer_id, device_id, ip_address, mac_address, interface, vlan_id, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, errors.Wrap(err, errors.KindStoreUnavailable, "failed to prepare insert")
	}
	defer stmt.Close()

	for _, e := range entries {
		vlan := sql.NullInt64{}
		if e.VLANID != 0 {
			vlan = sql.NullInt64{Int64: int64(e.VLANID), Valid: true}
		}
		if _, err := stmt.Exec(customerID, deviceID, e.IPAddress, e.MACAddress, e.Interface, vlan, now); err != nil {
			tx.Rollback()
			return 0, errors.Wrap(err, errors.KindStoreUnavailable, "failed to insert arp entry")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, errors.KindStoreUnavailable, "failed to commit arp entries")
	}
	return len(entries), nil
}

// AppendMACEntries appends raw bridge/forwarding rows.
func (s *Store) AppendMACEntries(customerID, deviceID string, entries []schema.MACEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	now := utcNow()
	tx, err := s.db.Begin()
	if err != nil {
		return 0, errors.Wrap(err, errors.KindStoreUnavailable, "failed to begin transaction")
	}
	stmt, err := tx.Prepare(`
		INSERT INTO topology_mac (customer_id, device_id, mac_address, interface, vlan_id, switch_port, vendor_oui, is_local, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, errors.Wrap(err, errors.KindStoreUnavailable, "failed to prepare insert")
	}
	defer stmt.Close()

	for _, e := range entries {
		vlan := sql.NullInt64{}
		if e.VLANID != 0 {
			vlan = sql.NullInt64{Int64: int64(e.VLANID), Valid: true}
		}
		local := 0
		if e.IsLocal {
			local = 1
		}
		if _, err := stmt.Exec(customerID, deviceID, e.MACAddress, e.Interface, vlan, e.SwitchPort, e.VendorOUI, local, now); err != nil {
			tx.Rollback()
			return 0, errors.Wrap(err, errors.KindStoreUnavailable, "failed to insert mac entry")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, errors.KindStoreUnavailable, "failed to commit mac entries")
	}
	return len(entries), nil
}

// AppendLLDPEntries appends raw neighbor rows.
func (s *Store) AppendLLDPEntries(customerID, deviceID string, entries []schema.LLDPNeighbor) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	now := utcNow()
	tx, err := s.db.Begin()
	if err != nil {
		return 0, errors.Wrap(err, errors.KindStoreUnavailable, "failed to begin transaction")
	}
	stmt, err := tx.Prepare(`
		INSERT INTO topology_lldp (customer_id, device_id, local_port, remote_device, remote_port,
			remote_ip, remote_mac, remote_platform, remote_description, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, errors.Wrap(err, errors.KindStoreUnavailable, "failed to prepare insert")
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(customerID, deviceID, e.LocalPort, e.RemoteDevice, e.RemotePort,
			e.RemoteIP, e.RemoteMAC, e.RemotePlatform, e.RemoteDescription, now); err != nil {
			tx.Rollback()
			return 0, errors.Wrap(err, errors.KindStoreUnavailable, "failed to insert lldp entry")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, errors.KindStoreUnavailable, "failed to commit lldp entries")
	}
	return len(entries), nil
}

// ARPRow is one persisted raw ARP observation.
type ARPRow struct {
	ID          int64  `json:"id"`
	CustomerID  string `json:"customer_id"`
	DeviceID    string `json:"device_id"`
	IPAddress   string `json:"ip_address"`
	MACAddress  string `json:"mac_address"`
	Interface   string `json:"interface,omitempty"`
	VLANID      int    `json:"vlan_id,omitempty"`
	CollectedAt string `json:"collected_at"`
}

// ListARPEntries returns recent raw ARP rows for a customer.
func (s *Store) ListARPEntries(customerID string, limit int) ([]ARPRow, error) {
	if limit < 1 {
		limit = 500
	}
	rows, err := s.db.Query(`
		SELECT id, customer_id, device_id, ip_address, mac_address, interface, vlan_id, collected_at
		FROM topology_arp WHERE customer_id = ?
		ORDER BY collected_at DESC, id DESC LIMIT ?`, customerID, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindStoreUnavailable, "failed to list arp entries")
	}
	defer rows.Close()

	var out []ARPRow
	for rows.Next() {
		var r ARPRow
		var iface sql.NullString
		var vlan sql.NullInt64
		if err := rows.Scan(&r.ID, &r.CustomerID, &r.DeviceID, &r.IPAddress, &r.MACAddress, &iface, &vlan, &r.CollectedAt); err != nil {
			return nil, errors.Wrap(err, errors.KindStoreUnavailable, "failed to scan arp row")
		}
		r.Interface = iface.String
		r.VLANID = int(vlan.Int64)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LLDPRow is one persisted raw neighbor observation.
type LLDPRow struct {
	ID                int64  `json:"id"`
	CustomerID        string `json:"customer_id"`
	DeviceID          string `json:"device_id"`
	LocalPort         string `json:"local_port,omitempty"`
	RemoteDevice      string `json:"remote_device,omitempty"`
	RemotePort        string `json:"remote_port,omitempty"`
	RemoteIP          string `json:"remote_ip,omitempty"`
	RemoteMAC         string `json:"remote_mac,omitempty"`
	RemotePlatform    string `json:"remote_platform,omitempty"`
	RemoteDescription string `json:"remote_description,omitempty"`
	CollectedAt       string `json:"collected_at"`
}

// ListLLDPEntries returns recent raw neighbor rows for a customer.
func (s *Store) ListLLDPEntries(customerID string, limit int) ([]LLDPRow, error) {
	if limit < 1 {
		limit = 500
	}
	rows, err := s.db.Query(`
		SELECT id, customer_id, device_id, local_port, remote_device, remote_port,
		       remote_ip, remote_mac, remote_platform, remote_description, collected_at
		FROM topology_lldp WHERE customer_id = ?
		ORDER BY collected_at DESC, id DESC LIMIT ?`, customerID, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindStoreUnavailable, "failed to list lldp entries")
	}
	defer rows.Close()

	var out []LLDPRow
	for rows.Next() {
		var r LLDPRow
		var lp, rd, rp, rip, rmac, rplat, rdesc sql.NullString
		if err := rows.Scan(&r.ID, &r.CustomerID, &r.DeviceID, &lp, &rd, &rp, &rip, &rmac, &rplat, &rdesc, &r.CollectedAt); err != nil {
			return nil, errors.Wrap(err, errors.KindStoreUnavailable, "failed to scan lldp row")
		}
		r.LocalPort, r.RemoteDevice, r.RemotePort = lp.String, rd.String, rp.String
		r.RemoteIP, r.RemoteMAC, r.RemotePlatform, r.RemoteDescription = rip.String, rmac.String, rplat.String, rdesc.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordAuditReport indexes an archived audit report.
func (s *Store) RecordAuditReport(auditID, customerID, deviceID, severity, summary, reportPath string) error {
	_, err := s.db.Exec(`
		INSERT INTO audit_reports (audit_id, customer_id, device_id, severity, summary, report_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		auditID, customerID, deviceID, severity, summary, reportPath, utcNow())
	if err != nil {
		return errors.Wrap(err, errors.KindStoreUnavailable, "failed to record audit report")
	}
	return nil
}
