// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/netvigil/netvigil/internal/diff"
	"github.com/netvigil/netvigil/internal/errors"
	"github.com/netvigil/netvigil/internal/schema"
)

// Report is the archived form of one audit: the structured drift report
// plus operational context and a unified text diff for human review.
type Report struct {
	AuditID             string       `json:"audit_id"`
	CustomerID          string       `json:"customer_id"`
	DeviceID            string       `json:"device_id"`
	Hostname            string       `json:"hostname"`
	AuditTimestamp      time.Time    `json:"audit_timestamp"`
	BaselineCollectedAt time.Time    `json:"baseline_collected_at"`
	CurrentCollectedAt  time.Time    `json:"current_collected_at"`
	Severity            string       `json:"severity"`
	DriftSummary        string       `json:"drift_summary"`
	DriftData           *diff.Report `json:"drift_data"`
	UnifiedDiff         string       `json:"unified_diff,omitempty"`
}

// NewReport assembles a report from a comparison.
func NewReport(customerID, deviceID string, baseline, current schema.DeviceConfig,
	report *diff.Report, severity diff.Severity) Report {

	return Report{
		AuditID:             uuid.NewString(),
		CustomerID:          customerID,
		DeviceID:            deviceID,
		Hostname:            current.Hostname,
		AuditTimestamp:      time.Now().UTC(),
		BaselineCollectedAt: baseline.CollectedAt,
		CurrentCollectedAt:  current.CollectedAt,
		Severity:            severity.String(),
		DriftSummary:        report.Summary(),
		DriftData:           report,
		UnifiedDiff:         unifiedDiff(baseline, current),
	}
}

// unifiedDiff renders the two snapshots as indented JSON and diffs them
// line by line. Purely for the archive; the structured report is the
// machine surface.
func unifiedDiff(baseline, current schema.DeviceConfig) string {
	b, errB := json.MarshalIndent(stripVolatile(baseline), "", "  ")
	c, errC := json.MarshalIndent(stripVolatile(current), "", "  ")
	if errB != nil || errC != nil {
		return ""
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(b)),
		B:        difflib.SplitLines(string(c)),
		FromFile: "baseline",
		ToFile:   "current",
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return text
}

func stripVolatile(cfg schema.DeviceConfig) schema.DeviceConfig {
	cfg.CollectedAt = time.Time{}
	return cfg
}

// Archive writes the report under
// <dir>/<customer>/<device>/<YYYYMMDD_HHMMSS>.json and returns the path.
func (r Report) Archive(dir string) (string, error) {
	target := filepath.Join(dir, r.CustomerID, r.DeviceID,
		r.AuditTimestamp.Format("20060102_150405")+".json")
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", errors.Wrap(err, errors.KindInternal, "report: create directory")
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, errors.KindInternal, "report: marshal")
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", errors.Wrap(err, errors.KindInternal, "report: write")
	}
	return target, nil
}
