// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package topology

import (
	"bufio"
	"os"
	"strings"

	"github.com/netvigil/netvigil/internal/netutil"
)

// OUIDB maps 6-hex-digit IEEE prefixes to manufacturer names. The
// database is optional: a nil or empty DB resolves every lookup to
// "unknown".
type OUIDB struct {
	entries map[string]string
}

// LoadOUIDB reads a "AABBCC  Vendor Name" file, one entry per line,
// comments with '#'. A missing file yields an empty DB, not an error —
// vendor resolution is an enrichment, never a requirement.
func LoadOUIDB(path string) (*OUIDB, error) {
	db := &OUIDB{entries: map[string]string{}}
	if path == "" {
		return db, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return db, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		db.entries[strings.ToUpper(fields[0])] = strings.Join(fields[1:], " ")
	}
	return db, scanner.Err()
}

// Len returns the number of known prefixes.
func (db *OUIDB) Len() int {
	if db == nil {
		return 0
	}
	return len(db.entries)
}

// Vendor resolves the manufacturer of a MAC by its first six hex digits.
func (db *OUIDB) Vendor(mac string) string {
	if db == nil || len(db.entries) == 0 {
		return "unknown"
	}
	prefix := netutil.OUIPrefix(mac)
	if vendor, ok := db.entries[prefix]; ok {
		return vendor
	}
	return "unknown"
}
