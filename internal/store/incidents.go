// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/netvigil/netvigil/internal/errors"
)

// Incident categories produced by the pipelines.
const (
	CategoryConfigurationDrift = "configuration_drift"
	CategoryVLANDrift          = "vlan_drift"
	CategoryUnauthorizedNode   = "unauthorized_node"
)

// severityRank orders severity labels for min_severity filtering.
var severityRank = map[string]int{
	"CRITICAL": 5,
	"HIGH":     4,
	"MEDIUM":   3,
	"WARNING":  2,
	"LOW":      1,
	"INFO":     0,
}

// NormalizeStatus maps legacy status spellings onto the canonical set.
// "novo" is the legacy spelling of "new"; both mean an open, untriaged
// incident. Every read and write path goes through this.
func NormalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	if s == "novo" {
		return "new"
	}
	if s == "" {
		return "new"
	}
	return s
}

// Incident is one append-only incident row. Only status ever changes
// after the write.
type Incident struct {
	ID          int64           `json:"id"`
	Timestamp   string          `json:"timestamp"`
	CustomerID  string          `json:"customer_id"`
	DeviceID    string          `json:"device_id"`
	Severity    string          `json:"severity"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
}

// IncidentFilter selects incidents for listing.
type IncidentFilter struct {
	Customer    string
	DeviceID    string
	Vendor      string // matched against the payload JSON
	Severity    string
	MinSeverity string
	Status      string
	StartDate   string // YYYY-MM-DD inclusive
	EndDate     string // YYYY-MM-DD inclusive
	Sort        string // "newest" (default) or "oldest"
	Page        int
	PageSize    int
}

// PushIncident appends an incident with a server-assigned UTC timestamp
// and status "new". The payload is stored byte-exact. Returns the
// monotonic incident id.
func (s *Store) PushIncident(customerID, deviceID, severity, category, description string, payload json.RawMessage) (int64, error) {
	if payload == nil {
		payload = json.RawMessage("{}")
	}
	res, err := s.db.Exec(`
		INSERT INTO incidents (timestamp, customer_id, device_id, severity, category, description, payload_json, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'new')`,
		utcNow(), customerID, deviceID, strings.ToUpper(severity), category, description, string(payload))
	if err != nil {
		return 0, errors.Wrap(err, errors.KindStoreUnavailable, "failed to insert incident")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, errors.KindStoreUnavailable, "failed to read incident id")
	}
	return id, nil
}

// GetIncident returns one incident by id.
func (s *Store) GetIncident(id int64) (Incident, error) {
	row := s.db.QueryRow(`
		SELECT id, timestamp, customer_id, device_id, severity, category, description, payload_json, status
		FROM incidents WHERE id = ?`, id)
	inc, err := scanIncident(row.Scan)
	if err == sql.ErrNoRows {
		return Incident{}, errors.Errorf(errors.KindNotFound, "incident %d not found", id)
	}
	if err != nil {
		return Incident{}, errors.Wrap(err, errors.KindStoreUnavailable, "failed to read incident")
	}
	return inc, nil
}

// SetIncidentStatus advances an incident's status. Statuses are
// normalized; the write path never deletes or rewrites anything else.
func (s *Store) SetIncidentStatus(id int64, status string) error {
	res, err := s.db.Exec(`UPDATE incidents SET status = ? WHERE id = ?`, NormalizeStatus(status), id)
	if err != nil {
		return errors.Wrap(err, errors.KindStoreUnavailable, "failed to update incident status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Errorf(errors.KindNotFound, "incident %d not found", id)
	}
	return nil
}

// ListIncidents applies the filter and returns one page plus the total
// match count. Ordering defaults to newest first with (timestamp DESC,
// id DESC) as the deterministic tiebreaker.
func (s *Store) ListIncidents(f IncidentFilter) ([]Incident, int, error) {
	var clauses []string
	var args []any

	add := func(clause string, vals ...any) {
		clauses = append(clauses, clause)
		args = append(args, vals...)
	}

	if f.Customer != "" {
		add("LOWER(customer_id) = LOWER(?)", f.Customer)
	}
	if f.DeviceID != "" {
		add("device_id = ?", f.DeviceID)
	}
	if f.Vendor != "" {
		add("payload_json LIKE ?", "%"+strings.ToLower(f.Vendor)+"%")
	}
	if f.Severity != "" {
		add("severity = ?", strings.ToUpper(f.Severity))
	}
	if f.MinSeverity != "" {
		minRank, ok := severityRank[strings.ToUpper(f.MinSeverity)]
		if ok {
			var labels []string
			for label, rank := range severityRank {
				if rank >= minRank {
					labels = append(labels, "'"+label+"'")
				}
			}
			clauses = append(clauses, fmt.Sprintf("severity IN (%s)", strings.Join(labels, ",")))
		}
	}
	if f.Status != "" {
		normalized := NormalizeStatus(f.Status)
		if normalized == "new" {
			// Legacy rows may still carry the old spelling.
			add("status IN ('new', 'novo')")
		} else {
			add("status = ?", normalized)
		}
	}
	if f.StartDate != "" {
		add("timestamp >= ?", f.StartDate+" 00:00:00")
	}
	if f.EndDate != "" {
		add("timestamp <= ?", f.EndDate+" 23:59:59")
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM incidents `+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.KindStoreUnavailable, "failed to count incidents")
	}

	order := "ORDER BY timestamp DESC, id DESC"
	if f.Sort == "oldest" {
		order = "ORDER BY timestamp ASC, id ASC"
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize < 1 {
		pageSize = 25
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`
		SELECT id, timestamp, customer_id, device_id, severity, category, description, payload_json, status
		FROM incidents %s %s LIMIT %d OFFSET %d`, where, order, pageSize, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.KindStoreUnavailable, "failed to list incidents")
	}
	defer rows.Close()

	var out []Incident
	for rows.Next() {
		inc, err := scanIncident(rows.Scan)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.KindStoreUnavailable, "failed to scan incident")
		}
		out = append(out, inc)
	}
	return out, total, rows.Err()
}

func scanIncident(scan func(...any) error) (Incident, error) {
	var inc Incident
	var payload string
	if err := scan(&inc.ID, &inc.Timestamp, &inc.CustomerID, &inc.DeviceID,
		&inc.Severity, &inc.Category, &inc.Description, &payload, &inc.Status); err != nil {
		return Incident{}, err
	}
	inc.Payload = json.RawMessage(payload)
	inc.Status = NormalizeStatus(inc.Status)
	return inc, nil
}

// CountOpenBySeverity returns {severity label: count} over open incidents.
func (s *Store) CountOpenBySeverity() (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT severity, COUNT(*) FROM incidents
		WHERE status IN ('new', 'novo', 'em_analise')
		GROUP BY severity`)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindStoreUnavailable, "failed to count incidents")
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var sev string
		var n int
		if err := rows.Scan(&sev, &n); err != nil {
			return nil, errors.Wrap(err, errors.KindStoreUnavailable, "failed to scan count")
		}
		out[sev] += n
	}
	return out, rows.Err()
}

// CountByStatus returns the number of incidents in a given status.
func (s *Store) CountByStatus(status string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM incidents WHERE status = ?`, NormalizeStatus(status)).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, errors.KindStoreUnavailable, "failed to count by status")
	}
	return n, nil
}

// CountValidatedToday returns incidents whose status reached "validado"
// today (UTC).
func (s *Store) CountValidatedToday() (int, error) {
	today := time.Now().UTC().Format("2006-01-02")
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM incidents
		WHERE status = 'validado' AND timestamp >= ?`, today+" 00:00:00").Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, errors.KindStoreUnavailable, "failed to count validated")
	}
	return n, nil
}

// OpenDeviceSummary aggregates open incidents per device.
type OpenDeviceSummary struct {
	OpenIncidents int    `json:"open_incidents"`
	WorstSeverity string `json:"worst_severity"`
	LastSeen      string `json:"last_seen"`
}

// OpenSummaryByDevice returns, for every device with open incidents, the
// open count, worst severity and most recent timestamp.
func (s *Store) OpenSummaryByDevice() (map[string]OpenDeviceSummary, error) {
	rows, err := s.db.Query(`
		SELECT device_id, severity, timestamp FROM incidents
		WHERE status IN ('new', 'novo', 'em_analise')`)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindStoreUnavailable, "failed to read open incidents")
	}
	defer rows.Close()

	out := map[string]OpenDeviceSummary{}
	for rows.Next() {
		var device, severity, ts string
		if err := rows.Scan(&device, &severity, &ts); err != nil {
			return nil, errors.Wrap(err, errors.KindStoreUnavailable, "failed to scan open incident")
		}
		cur := out[device]
		cur.OpenIncidents++
		if severityRank[severity] >= severityRank[cur.WorstSeverity] || cur.WorstSeverity == "" {
			cur.WorstSeverity = severity
		}
		if ts > cur.LastSeen {
			cur.LastSeen = ts
		}
		out[device] = cur
	}
	return out, rows.Err()
}

// ListRecentOpen returns the most recent open incidents, newest first.
func (s *Store) ListRecentOpen(limit int) ([]Incident, error) {
	if limit < 1 {
		limit = 5
	}
	rows, err := s.db.Query(`
		SELECT id, timestamp, customer_id, device_id, severity, category, description, payload_json, status
		FROM incidents
		WHERE status IN ('new', 'novo', 'em_analise')
		ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindStoreUnavailable, "failed to list recent incidents")
	}
	defer rows.Close()

	var out []Incident
	for rows.Next() {
		inc, err := scanIncident(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindStoreUnavailable, "failed to scan incident")
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

// ListOrphanIncidents returns incidents whose device_id is not present in
// the inventory.
func (s *Store) ListOrphanIncidents() ([]Incident, error) {
	rows, err := s.db.Query(`
		SELECT id, timestamp, customer_id, device_id, severity, category, description, payload_json, status
		FROM incidents
		WHERE device_id NOT IN (SELECT device_id FROM inventory_devices)
		ORDER BY timestamp DESC, id DESC`)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindStoreUnavailable, "failed to list orphan incidents")
	}
	defer rows.Close()

	var out []Incident
	for rows.Next() {
		inc, err := scanIncident(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindStoreUnavailable, "failed to scan incident")
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

// PurgeOrphanIncidents deletes incidents referencing devices absent from
// the inventory. Returns the number of rows removed.
func (s *Store) PurgeOrphanIncidents() (int64, error) {
	res, err := s.db.Exec(`
		DELETE FROM incidents
		WHERE device_id NOT IN (SELECT device_id FROM inventory_devices)`)
	if err != nil {
		return 0, errors.Wrap(err, errors.KindStoreUnavailable, "failed to purge orphan incidents")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DistinctSeverities lists severities present in the table.
func (s *Store) DistinctSeverities() ([]string, error) {
	return s.distinct("severity")
}

// DistinctStatuses lists normalized statuses present in the table.
func (s *Store) DistinctStatuses() ([]string, error) {
	raw, err := s.distinct("status")
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, v := range raw {
		n := NormalizeStatus(v)
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Store) distinct(column string) ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT ` + column + ` FROM incidents ORDER BY 1`)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindStoreUnavailable, "failed to list distinct values")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, errors.KindStoreUnavailable, "failed to scan value")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
