// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"database/sql"
	"strings"

	"github.com/netvigil/netvigil/internal/errors"
)

// Device is one inventory row. Rows are created by onboarding, toggled
// active/inactive and referenced (never deleted) by incidents.
type Device struct {
	CustomerID string `json:"customer_id"`
	DeviceID   string `json:"device_id"`
	Vendor     string `json:"vendor"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Active     bool   `json:"active"`
	CreatedAt  string `json:"created_at"`
}

// CreateDevice inserts a new inventory row. Uniqueness is enforced on both
// (customer_id, device_id) and (host, port); a violation surfaces as
// store-constraint so onboarding can roll back cleanly.
func (s *Store) CreateDevice(d Device) error {
	if d.CustomerID == "" || d.DeviceID == "" {
		return errors.New(errors.KindValidation, "customer_id and device_id are required")
	}
	if d.Host == "" {
		return errors.New(errors.KindValidation, "host is required")
	}
	if d.Port <= 0 || d.Port > 65535 {
		return errors.Errorf(errors.KindValidation, "port %d out of range", d.Port)
	}
	vendor := strings.ToLower(strings.TrimSpace(d.Vendor))
	if vendor == "" {
		return errors.New(errors.KindValidation, "vendor is required")
	}

	_, err := s.db.Exec(`
		INSERT INTO inventory_devices (customer_id, device_id, vendor, host, port, active, created_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)`,
		d.CustomerID, d.DeviceID, vendor, d.Host, d.Port, utcNow())
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrapf(err, errors.KindStoreConstraint,
				"device %s/%s or endpoint %s:%d already registered",
				d.CustomerID, d.DeviceID, d.Host, d.Port)
		}
		return errors.Wrap(err, errors.KindStoreUnavailable, "failed to insert device")
	}
	return nil
}

// DeleteDevice removes an inventory row. Only used to roll back a failed
// onboarding; established devices are deactivated instead.
func (s *Store) DeleteDevice(customerID, deviceID string) error {
	_, err := s.db.Exec(
		`DELETE FROM inventory_devices WHERE customer_id = ? AND device_id = ?`,
		customerID, deviceID)
	if err != nil {
		return errors.Wrap(err, errors.KindStoreUnavailable, "failed to delete device")
	}
	return nil
}

// GetDevice fetches one inventory row.
func (s *Store) GetDevice(customerID, deviceID string) (Device, error) {
	row := s.db.QueryRow(`
		SELECT customer_id, device_id, vendor, host, port, active, created_at
		FROM inventory_devices WHERE customer_id = ? AND device_id = ?`,
		customerID, deviceID)
	return scanDevice(row)
}

// FindDevice looks a device up by device_id alone, for surfaces that do
// not carry the customer. Returns not_found when absent.
func (s *Store) FindDevice(deviceID string) (Device, error) {
	row := s.db.QueryRow(`
		SELECT customer_id, device_id, vendor, host, port, active, created_at
		FROM inventory_devices WHERE device_id = ? LIMIT 1`, deviceID)
	return scanDevice(row)
}

func scanDevice(row *sql.Row) (Device, error) {
	var d Device
	var active int
	err := row.Scan(&d.CustomerID, &d.DeviceID, &d.Vendor, &d.Host, &d.Port, &active, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return Device{}, errors.New(errors.KindNotFound, "device not found in inventory")
	}
	if err != nil {
		return Device{}, errors.Wrap(err, errors.KindStoreUnavailable, "failed to read device")
	}
	d.Active = active != 0
	return d, nil
}

// ListDevices returns the inventory, optionally filtered by customer
// and/or vendor (case-insensitive), ordered by customer then device.
func (s *Store) ListDevices(customer, vendor string) ([]Device, error) {
	var clauses []string
	var args []any
	if customer != "" {
		clauses = append(clauses, "LOWER(customer_id) = LOWER(?)")
		args = append(args, customer)
	}
	if vendor != "" {
		clauses = append(clauses, "LOWER(vendor) = LOWER(?)")
		args = append(args, vendor)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}

	rows, err := s.db.Query(`
		SELECT customer_id, device_id, vendor, host, port, active, created_at
		FROM inventory_devices `+where+`
		ORDER BY customer_id, device_id`, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindStoreUnavailable, "failed to list devices")
	}
	defer rows.Close()

	var out []Device
	for rows.Next() {
		var d Device
		var active int
		if err := rows.Scan(&d.CustomerID, &d.DeviceID, &d.Vendor, &d.Host, &d.Port, &active, &d.CreatedAt); err != nil {
			return nil, errors.Wrap(err, errors.KindStoreUnavailable, "failed to scan device")
		}
		d.Active = active != 0
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListActiveDevices returns only rows with the active flag set.
func (s *Store) ListActiveDevices(customer string) ([]Device, error) {
	devices, err := s.ListDevices(customer, "")
	if err != nil {
		return nil, err
	}
	active := devices[:0:0]
	for _, d := range devices {
		if d.Active {
			active = append(active, d)
		}
	}
	return active, nil
}

// SetDeviceActive flips the active flag.
func (s *Store) SetDeviceActive(customerID, deviceID string, active bool) error {
	flag := 0
	if active {
		flag = 1
	}
	res, err := s.db.Exec(`
		UPDATE inventory_devices SET active = ? WHERE customer_id = ? AND device_id = ?`,
		flag, customerID, deviceID)
	if err != nil {
		return errors.Wrap(err, errors.KindStoreUnavailable, "failed to update device")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.KindNotFound, "device not found in inventory")
	}
	return nil
}

// DeviceIDs returns the set of device_ids present in the inventory. Used
// to identify orphan incidents.
func (s *Store) DeviceIDs() (map[string]bool, error) {
	rows, err := s.db.Query(`SELECT DISTINCT device_id FROM inventory_devices`)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindStoreUnavailable, "failed to list device ids")
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, errors.KindStoreUnavailable, "failed to scan device id")
		}
		out[id] = true
	}
	return out, rows.Err()
}
