// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package diff compares two device configuration snapshots and reports
// configuration drift. Generic lists (interfaces, routes) are compared by
// ordinal position; firewall rules get a specialized comparator that
// distinguishes position drift from parameter drift, because rule order is
// security-critical: a permissive rule moved above a restrictive one can
// shadow it.
package diff

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/netvigil/netvigil/internal/schema"
)

// Field names of DeviceConfig as they appear in reports.
const (
	fieldInterfaces    = "interfaces"
	fieldRoutes        = "routes"
	fieldFirewallRules = "firewall_rules"
	fieldCollectedAt   = "collected_at"
)

var scalarFields = []string{"hostname", "vendor", "model", "os_version", fieldCollectedAt}

// Change is an expected/actual value pair for one field.
type Change struct {
	Expected any `json:"expected"`
	Actual   any `json:"actual"`
}

// ListItemChange reports per-field differences of a list item at a given
// ordinal position.
type ListItemChange struct {
	Index   int               `json:"index"`
	Changes map[string]Change `json:"changes"`
}

// ListItem carries a whole list item that was added or removed at an
// ordinal position.
type ListItem struct {
	Index int `json:"index"`
	Item  any `json:"item"`
}

// PositionDrift is a firewall rule whose identity changed at an index:
// either the rule moved or it was replaced. Reported with both sides in
// full because the blast radius of shadowing depends on both rules.
type PositionDrift struct {
	Index           int                 `json:"index"`
	ExpectedComment string              `json:"expected_comment"`
	ActualComment   string              `json:"actual_comment"`
	ExpectedRule    schema.FirewallRule `json:"expected_rule"`
	ActualRule      schema.FirewallRule `json:"actual_rule"`
}

// ParameterDrift is a firewall rule that kept its identity (comment) at an
// index but changed one or more parameters.
type ParameterDrift struct {
	Index   int               `json:"index"`
	Comment string            `json:"comment"`
	Changes map[string]Change `json:"changes"`
}

// IndexedRule is a firewall rule present on only one side.
type IndexedRule struct {
	Index int                 `json:"index"`
	Rule  schema.FirewallRule `json:"rule"`
}

// FirewallAudit groups the four firewall drift buckets.
type FirewallAudit struct {
	PositionDrift  []PositionDrift  `json:"position_drift"`
	ParameterDrift []ParameterDrift `json:"parameter_drift"`
	MissingRules   []IndexedRule    `json:"missing_rules"`
	ExtraRules     []IndexedRule    `json:"extra_rules"`
}

func (fa FirewallAudit) hasDrift() bool {
	return len(fa.PositionDrift) > 0 || len(fa.ParameterDrift) > 0 ||
		len(fa.MissingRules) > 0 || len(fa.ExtraRules) > 0
}

// Report is the result of one baseline-versus-current comparison.
//
// Added, Removed and Modified are keyed by field name. For scalar fields
// the value is the raw value (Added/Removed) or a Change (Modified); for
// list fields the value is []ListItem or []ListItemChange.
type Report struct {
	Added         map[string]any `json:"added"`
	Removed       map[string]any `json:"removed"`
	Modified      map[string]any `json:"modified"`
	FirewallAudit FirewallAudit  `json:"firewall_audit"`
}

// HasDrift reports whether any discrepancy was detected.
func (r *Report) HasDrift() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0 || len(r.Modified) > 0 ||
		r.FirewallAudit.hasDrift()
}

// HasFirewallDrift reports whether any firewall bucket is non-empty.
func (r *Report) HasFirewallDrift() bool {
	return r.FirewallAudit.hasDrift()
}

// Summary is a one-line count of every bag, for logs and incident
// descriptions.
func (r *Report) Summary() string {
	fwTotal := len(r.FirewallAudit.PositionDrift) + len(r.FirewallAudit.ParameterDrift) +
		len(r.FirewallAudit.MissingRules) + len(r.FirewallAudit.ExtraRules)
	return fmt.Sprintf("DriftReport(added=%d, removed=%d, modified=%d, firewall_issues=%d)",
		len(r.Added), len(r.Removed), len(r.Modified), fwTotal)
}

func newReport() *Report {
	return &Report{
		Added:    map[string]any{},
		Removed:  map[string]any{},
		Modified: map[string]any{},
		FirewallAudit: FirewallAudit{
			PositionDrift:  []PositionDrift{},
			ParameterDrift: []ParameterDrift{},
			MissingRules:   []IndexedRule{},
			ExtraRules:     []IndexedRule{},
		},
	}
}

// Compare diffs a baseline against a current snapshot. Field names in
// exclude are skipped; when exclude is nil the volatile collected_at field
// is excluded so repeated collections of an unchanged device stay quiet.
func Compare(baseline, current schema.DeviceConfig, exclude map[string]bool) *Report {
	if exclude == nil {
		exclude = map[string]bool{fieldCollectedAt: true}
	}

	report := newReport()

	compareScalars(baseline, current, exclude, report)

	if !exclude[fieldInterfaces] {
		compareOrdinal(fieldInterfaces, toItems(baseline.Interfaces), toItems(current.Interfaces), report)
	}
	if !exclude[fieldRoutes] {
		compareOrdinal(fieldRoutes, toItems(baseline.Routes), toItems(current.Routes), report)
	}
	if !exclude[fieldFirewallRules] {
		compareFirewallRules(baseline.FirewallRules, current.FirewallRules, report)
	}

	return report
}

// compareScalars walks the fixed scalar field set of DeviceConfig. List
// fields are never enumerated here; they belong to the ordinal and
// firewall comparators exclusively.
func compareScalars(baseline, current schema.DeviceConfig, exclude map[string]bool, report *Report) {
	bv := scalarValues(baseline)
	cv := scalarValues(current)

	for _, key := range scalarFields {
		if exclude[key] {
			continue
		}
		expected, actual := bv[key], cv[key]
		if expected == actual {
			continue
		}
		switch {
		case expected == "":
			report.Added[key] = actual
		case actual == "":
			report.Removed[key] = expected
		default:
			report.Modified[key] = Change{Expected: expected, Actual: actual}
		}
	}
}

func scalarValues(cfg schema.DeviceConfig) map[string]string {
	collected := ""
	if !cfg.CollectedAt.IsZero() {
		collected = cfg.CollectedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return map[string]string{
		"hostname":       cfg.Hostname,
		"vendor":         cfg.Vendor,
		"model":          cfg.Model,
		"os_version":     cfg.OSVersion,
		fieldCollectedAt: collected,
	}
}

// compareOrdinal pairs list items by index. Items at a shared index are
// compared field-for-field; surplus items on the current side are added,
// surplus items on the baseline side are removed.
func compareOrdinal(fieldName string, baseline, current []any, report *Report) {
	minLen := min(len(baseline), len(current))

	var modifications []ListItemChange
	var additions, removals []ListItem

	for i := 0; i < minLen; i++ {
		changes := fieldDiffs(baseline[i], current[i])
		if len(changes) > 0 {
			modifications = append(modifications, ListItemChange{Index: i, Changes: changes})
		}
	}
	for i := minLen; i < len(current); i++ {
		additions = append(additions, ListItem{Index: i, Item: current[i]})
	}
	for i := minLen; i < len(baseline); i++ {
		removals = append(removals, ListItem{Index: i, Item: baseline[i]})
	}

	if len(modifications) > 0 {
		report.Modified[fieldName] = modifications
	}
	if len(additions) > 0 {
		report.Added[fieldName] = additions
	}
	if len(removals) > 0 {
		report.Removed[fieldName] = removals
	}
}

// compareFirewallRules walks both rule lists by index.
//
// The comment is the rule's semantic identity: a differing rule with the
// same comment at an index is a parameter change, a differing comment is
// position drift (reordering or replacement). Two rules with empty
// comments share identity. The comparator deliberately does not re-pair a
// moved rule with another index — a swap is reported as two position-drift
// entries, which is exactly the signal an operator needs.
func compareFirewallRules(baseline, current []schema.FirewallRule, report *Report) {
	maxLen := max(len(baseline), len(current))

	for i := 0; i < maxLen; i++ {
		if i >= len(current) {
			report.FirewallAudit.MissingRules = append(report.FirewallAudit.MissingRules,
				IndexedRule{Index: i, Rule: baseline[i]})
			continue
		}
		if i >= len(baseline) {
			report.FirewallAudit.ExtraRules = append(report.FirewallAudit.ExtraRules,
				IndexedRule{Index: i, Rule: current[i]})
			continue
		}

		b, c := baseline[i], current[i]
		if b == c {
			continue
		}

		if b.Comment == c.Comment {
			report.FirewallAudit.ParameterDrift = append(report.FirewallAudit.ParameterDrift,
				ParameterDrift{Index: i, Comment: b.Comment, Changes: fieldDiffs(b, c)})
		} else {
			report.FirewallAudit.PositionDrift = append(report.FirewallAudit.PositionDrift,
				PositionDrift{
					Index:           i,
					ExpectedComment: b.Comment,
					ActualComment:   c.Comment,
					ExpectedRule:    b,
					ActualRule:      c,
				})
		}
	}
}

// fieldDiffs compares two values of the same struct type field-for-field
// through their JSON form, returning the union of keys whose values
// differ.
func fieldDiffs(expected, actual any) map[string]Change {
	em := toMap(expected)
	am := toMap(actual)

	keys := make(map[string]bool, len(em)+len(am))
	for k := range em {
		keys[k] = true
	}
	for k := range am {
		keys[k] = true
	}

	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	changes := map[string]Change{}
	for _, k := range sorted {
		ev, av := em[k], am[k]
		if !jsonEqual(ev, av) {
			changes[k] = Change{Expected: ev, Actual: av}
		}
	}
	return changes
}

func toMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{}
	}
	return m
}

func jsonEqual(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return strings.Compare(string(ab), string(bb)) == 0
}

func toItems[T any](list []T) []any {
	out := make([]any, len(list))
	for i := range list {
		out[i] = list[i]
	}
	return out
}
