// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package store is the relational persistence layer: device inventory,
// incidents and topology tables in a single SQLite database.
package store

import (
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/netvigil/netvigil/internal/errors"
)

// Store wraps the SQLite handle shared by all repositories.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, errors.KindStoreUnavailable, "failed to open database")
	}
	// SQLite supports one writer; funneling everything through a single
	// connection avoids SQLITE_BUSY under the worker pools.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS inventory_devices (
		customer_id TEXT NOT NULL,
		device_id   TEXT NOT NULL,
		vendor      TEXT NOT NULL,
		host        TEXT NOT NULL,
		port        INTEGER NOT NULL DEFAULT 22,
		active      INTEGER NOT NULL DEFAULT 1,
		created_at  TEXT NOT NULL,
		PRIMARY KEY (customer_id, device_id),
		UNIQUE (host, port)
	);

	CREATE TABLE IF NOT EXISTS incidents (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp    TEXT NOT NULL,
		customer_id  TEXT NOT NULL,
		device_id    TEXT NOT NULL,
		severity     TEXT NOT NULL,
		category     TEXT NOT NULL,
		description  TEXT,
		payload_json TEXT,
		status       TEXT NOT NULL DEFAULT 'new'
	);
	CREATE INDEX IF NOT EXISTS idx_incidents_customer ON incidents(customer_id);
	CREATE INDEX IF NOT EXISTS idx_incidents_device ON incidents(device_id);
	CREATE INDEX IF NOT EXISTS idx_incidents_status ON incidents(status);
	CREATE INDEX IF NOT EXISTS idx_incidents_timestamp ON incidents(timestamp);

	CREATE TABLE IF NOT EXISTS topology_nodes (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id TEXT NOT NULL,
		device_id   TEXT NOT NULL,
		mac_address TEXT NOT NULL,
		ip_address  TEXT,
		hostname    TEXT,
		vlan_id     INTEGER,
		switch_port TEXT,
		vendor_oui  TEXT,
		first_seen  TEXT NOT NULL,
		last_seen   TEXT NOT NULL,
		authorized  INTEGER NOT NULL DEFAULT 0,
		UNIQUE (customer_id, mac_address)
	);

	CREATE TABLE IF NOT EXISTS topology_arp (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id  TEXT NOT NULL,
		device_id    TEXT NOT NULL,
		ip_address   TEXT NOT NULL,
		mac_address  TEXT NOT NULL,
		interface    TEXT,
		vlan_id      INTEGER,
		collected_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_topology_arp_customer ON topology_arp(customer_id, collected_at);

	CREATE TABLE IF NOT EXISTS topology_mac (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id  TEXT NOT NULL,
		device_id    TEXT NOT NULL,
		mac_address  TEXT NOT NULL,
		interface    TEXT,
		vlan_id      INTEGER,
		switch_port  TEXT,
		vendor_oui   TEXT,
		is_local     INTEGER NOT NULL DEFAULT 0,
		collected_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_topology_mac_customer ON topology_mac(customer_id, collected_at);

	CREATE TABLE IF NOT EXISTS topology_lldp (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id        TEXT NOT NULL,
		device_id          TEXT NOT NULL,
		local_port         TEXT,
		remote_device      TEXT,
		remote_port        TEXT,
		remote_ip          TEXT,
		remote_mac         TEXT,
		remote_platform    TEXT,
		remote_description TEXT,
		collected_at       TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_topology_lldp_customer ON topology_lldp(customer_id, collected_at);

	CREATE TABLE IF NOT EXISTS audit_reports (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		audit_id     TEXT NOT NULL UNIQUE,
		customer_id  TEXT NOT NULL,
		device_id    TEXT NOT NULL,
		severity     TEXT NOT NULL,
		summary      TEXT,
		report_path  TEXT,
		created_at   TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Wrap(err, errors.KindStoreUnavailable, "failed to apply schema")
	}
	return nil
}

// utcNow renders the canonical timestamp format used across all tables.
func utcNow() string {
	return time.Now().UTC().Format(timeLayout)
}

const timeLayout = "2006-01-02 15:04:05"

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed")
}
