// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package diff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netvigil/netvigil/internal/schema"
)

func baseConfig(t *testing.T) schema.DeviceConfig {
	t.Helper()
	cfg, err := schema.NewDeviceConfig("edge-01", "mikrotik")
	require.NoError(t, err)
	cfg.OSVersion = "7.14"
	cfg.CollectedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return cfg
}

func rule(action, protocol, dstPort, comment string) schema.FirewallRule {
	r, err := schema.NewFirewallRule(schema.RawFirewallRule{
		Chain:    "input",
		Action:   action,
		Protocol: protocol,
		DstPort:  dstPort,
		Comment:  comment,
	})
	if err != nil {
		panic(err)
	}
	return r
}

func standardRules() []schema.FirewallRule {
	return []schema.FirewallRule{
		rule("accept", "tcp", "22", "SSH"),
		rule("accept", "icmp", "", "Ping"),
		rule("drop", "", "", "default"),
	}
}

func TestCompareIdentical(t *testing.T) {
	baseline := baseConfig(t)
	baseline.FirewallRules = standardRules()

	current := baseline
	current.CollectedAt = baseline.CollectedAt.Add(time.Hour) // volatile, excluded

	report := Compare(baseline, current, nil)
	assert.False(t, report.HasDrift())
	assert.Equal(t, SeverityCompliant, ClassifySeverity(report))
}

func TestComparePositionDrift(t *testing.T) {
	baseline := baseConfig(t)
	baseline.FirewallRules = standardRules()

	current := baseConfig(t)
	current.FirewallRules = []schema.FirewallRule{
		rule("accept", "icmp", "", "Ping"),
		rule("accept", "tcp", "22", "SSH"),
		rule("drop", "", "", "default"),
	}

	report := Compare(baseline, current, nil)
	require.True(t, report.HasDrift())

	require.Len(t, report.FirewallAudit.PositionDrift, 2)
	assert.Empty(t, report.FirewallAudit.ParameterDrift)
	assert.Equal(t, 0, report.FirewallAudit.PositionDrift[0].Index)
	assert.Equal(t, 1, report.FirewallAudit.PositionDrift[1].Index)
	assert.Equal(t, "SSH", report.FirewallAudit.PositionDrift[0].ExpectedComment)
	assert.Equal(t, "Ping", report.FirewallAudit.PositionDrift[0].ActualComment)

	assert.Equal(t, SeverityCritical, ClassifySeverity(report))
}

func TestCompareParameterDrift(t *testing.T) {
	baseline := baseConfig(t)
	baseline.FirewallRules = standardRules()

	current := baseConfig(t)
	current.FirewallRules = []schema.FirewallRule{
		rule("accept", "tcp", "22", "SSH"),
		rule("accept", "icmp", "", "Ping"),
		rule("reject", "", "", "default"),
	}

	report := Compare(baseline, current, nil)
	require.Len(t, report.FirewallAudit.ParameterDrift, 1)
	assert.Empty(t, report.FirewallAudit.PositionDrift)

	drift := report.FirewallAudit.ParameterDrift[0]
	assert.Equal(t, 2, drift.Index)
	assert.Equal(t, "default", drift.Comment)
	require.Contains(t, drift.Changes, "action")
	assert.Equal(t, "drop", drift.Changes["action"].Expected)
	assert.Equal(t, "reject", drift.Changes["action"].Actual)

	assert.Equal(t, SeverityMedium, ClassifySeverity(report))
}

func TestCompareExtraRule(t *testing.T) {
	baseline := baseConfig(t)
	baseline.FirewallRules = standardRules()

	extra, err := schema.NewFirewallRule(schema.RawFirewallRule{
		Chain:      "forward",
		Action:     "accept",
		SrcAddress: "192.168.88.0/24",
		Comment:    "Guest",
	})
	require.NoError(t, err)

	current := baseConfig(t)
	current.FirewallRules = append(standardRules(), extra)

	report := Compare(baseline, current, nil)
	require.Len(t, report.FirewallAudit.ExtraRules, 1)
	assert.Equal(t, 3, report.FirewallAudit.ExtraRules[0].Index)
	assert.Equal(t, "Guest", report.FirewallAudit.ExtraRules[0].Rule.Comment)
	assert.Empty(t, report.FirewallAudit.MissingRules)

	assert.Equal(t, SeverityHigh, ClassifySeverity(report))
}

func TestCompareMissingRule(t *testing.T) {
	baseline := baseConfig(t)
	baseline.FirewallRules = standardRules()

	current := baseConfig(t)
	current.FirewallRules = standardRules()[:2]

	report := Compare(baseline, current, nil)
	require.Len(t, report.FirewallAudit.MissingRules, 1)
	assert.Equal(t, 2, report.FirewallAudit.MissingRules[0].Index)
	assert.Equal(t, "default", report.FirewallAudit.MissingRules[0].Rule.Comment)

	assert.Equal(t, SeverityHigh, ClassifySeverity(report))
}

func TestCompareRouteRemovalAndScalarDrift(t *testing.T) {
	mkRoute := func(dst, gw string) schema.Route {
		r, err := schema.NewRoute(schema.RawRoute{Destination: dst, Gateway: gw})
		require.NoError(t, err)
		return r
	}

	baseline := baseConfig(t)
	baseline.Routes = []schema.Route{
		mkRoute("0.0.0.0/0", "10.0.0.1"),
		mkRoute("10.10.0.0/16", "10.0.0.2"),
	}

	current := baseConfig(t)
	current.OSVersion = "7.15"
	current.Routes = baseline.Routes[:1]

	report := Compare(baseline, current, nil)

	require.Contains(t, report.Modified, "os_version")
	change := report.Modified["os_version"].(Change)
	assert.Equal(t, "7.14", change.Expected)
	assert.Equal(t, "7.15", change.Actual)

	require.Contains(t, report.Removed, "routes")
	removed := report.Removed["routes"].([]ListItem)
	require.Len(t, removed, 1)
	assert.Equal(t, 1, removed[0].Index)

	assert.Equal(t, SeverityMedium, ClassifySeverity(report))
}

func TestCompareInterfaceModification(t *testing.T) {
	mkIface := func(name, mac string) schema.Interface {
		i, err := schema.NewInterface(schema.RawInterface{Name: name, MACAddress: mac})
		require.NoError(t, err)
		return i
	}

	baseline := baseConfig(t)
	baseline.Interfaces = []schema.Interface{mkIface("ether1", "00:0C:29:AB:CD:EF")}

	current := baseConfig(t)
	current.Interfaces = []schema.Interface{mkIface("ether1", "00:0C:29:AB:CD:00")}

	report := Compare(baseline, current, nil)
	require.Contains(t, report.Modified, "interfaces")
	mods := report.Modified["interfaces"].([]ListItemChange)
	require.Len(t, mods, 1)
	assert.Equal(t, 0, mods[0].Index)
	assert.Contains(t, mods[0].Changes, "mac_address")

	assert.Equal(t, SeverityMedium, ClassifySeverity(report))
}

func TestCompareSymmetry(t *testing.T) {
	x := baseConfig(t)
	x.FirewallRules = standardRules()
	x.Model = "CCR1036"

	y := baseConfig(t)
	y.OSVersion = "7.15"
	y.FirewallRules = standardRules()[:2]

	xy := Compare(x, y, nil)
	yx := Compare(y, x, nil)

	assert.Equal(t, xy.HasDrift(), yx.HasDrift())
	assert.Len(t, yx.Added, len(xy.Removed))
	assert.Len(t, yx.Removed, len(xy.Added))
	assert.Len(t, yx.FirewallAudit.ExtraRules, len(xy.FirewallAudit.MissingRules))
	assert.Len(t, yx.FirewallAudit.MissingRules, len(xy.FirewallAudit.ExtraRules))
	assert.Len(t, yx.FirewallAudit.PositionDrift, len(xy.FirewallAudit.PositionDrift))
	assert.Len(t, yx.FirewallAudit.ParameterDrift, len(xy.FirewallAudit.ParameterDrift))
}

// Each index of two equal-length rule lists lands in at most one firewall
// bucket.
func TestFirewallIndexExclusivity(t *testing.T) {
	baseline := baseConfig(t)
	baseline.FirewallRules = standardRules()

	current := baseConfig(t)
	current.FirewallRules = []schema.FirewallRule{
		rule("accept", "tcp", "22", "SSH"),      // unchanged
		rule("drop", "icmp", "", "Ping"),        // parameter drift
		rule("accept", "udp", "53", "DNS open"), // position drift
	}

	report := Compare(baseline, current, nil)

	seen := map[int]int{}
	for _, d := range report.FirewallAudit.PositionDrift {
		seen[d.Index]++
	}
	for _, d := range report.FirewallAudit.ParameterDrift {
		seen[d.Index]++
	}
	for idx, count := range seen {
		assert.Equalf(t, 1, count, "index %d reported in more than one bucket", idx)
	}
	assert.Empty(t, report.FirewallAudit.MissingRules)
	assert.Empty(t, report.FirewallAudit.ExtraRules)
}

// Rules with both comments empty share identity: a difference is
// parameter drift, not position drift.
func TestEmptyCommentsShareIdentity(t *testing.T) {
	baseline := baseConfig(t)
	baseline.FirewallRules = []schema.FirewallRule{rule("accept", "tcp", "80", "")}

	current := baseConfig(t)
	current.FirewallRules = []schema.FirewallRule{rule("drop", "tcp", "80", "")}

	report := Compare(baseline, current, nil)
	assert.Len(t, report.FirewallAudit.ParameterDrift, 1)
	assert.Empty(t, report.FirewallAudit.PositionDrift)
}

func TestSeverityAtLeastLowIffDrift(t *testing.T) {
	baseline := baseConfig(t)
	current := baseConfig(t)

	report := Compare(baseline, current, nil)
	assert.False(t, report.HasDrift())
	assert.Equal(t, SeverityCompliant, ClassifySeverity(report))

	current.Hostname = "edge-02"
	report = Compare(baseline, current, nil)
	assert.True(t, report.HasDrift())
	assert.GreaterOrEqual(t, ClassifySeverity(report), SeverityLow)
}

func TestSummaryCounts(t *testing.T) {
	baseline := baseConfig(t)
	baseline.FirewallRules = standardRules()

	current := baseConfig(t)
	current.OSVersion = "7.15"
	current.FirewallRules = standardRules()[:2]

	report := Compare(baseline, current, nil)
	assert.Equal(t, "DriftReport(added=0, removed=0, modified=1, firewall_issues=1)", report.Summary())
}

func TestExcludeFields(t *testing.T) {
	baseline := baseConfig(t)
	current := baseConfig(t)
	current.OSVersion = "7.15"

	report := Compare(baseline, current, map[string]bool{"os_version": true, "collected_at": true})
	assert.False(t, report.HasDrift())
}
