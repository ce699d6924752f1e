// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package schema

import (
	"encoding/json"
	"time"

	"github.com/netvigil/netvigil/internal/errors"
)

// rawDeviceConfig mirrors the on-disk baseline JSON, loosely typed so
// legacy field forms are still accepted before validation.
type rawDeviceConfig struct {
	Hostname      string            `json:"hostname"`
	Vendor        string            `json:"vendor"`
	Model         string            `json:"model"`
	OSVersion     string            `json:"os_version"`
	Interfaces    []RawInterface    `json:"interfaces"`
	Routes        []RawRoute        `json:"routes"`
	FirewallRules []RawFirewallRule `json:"firewall_rules"`
	CollectedAt   time.Time         `json:"collected_at"`
}

// ParseDeviceConfigJSON decodes and strictly validates a DeviceConfig.
// Every nested item goes through its constructor; any invalid item fails
// the whole document — a baseline with bad entries must never be silently
// narrowed.
func ParseDeviceConfigJSON(data []byte) (DeviceConfig, error) {
	var raw rawDeviceConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return DeviceConfig{}, errors.Wrap(err, errors.KindSchemaInvalid, "device config: invalid JSON")
	}

	cfg, err := NewDeviceConfig(raw.Hostname, raw.Vendor)
	if err != nil {
		return DeviceConfig{}, err
	}
	cfg.Model = raw.Model
	cfg.OSVersion = raw.OSVersion
	if !raw.CollectedAt.IsZero() {
		cfg.CollectedAt = raw.CollectedAt.UTC()
	}

	for i, ri := range raw.Interfaces {
		iface, err := NewInterface(ri)
		if err != nil {
			return DeviceConfig{}, errors.Wrapf(err, errors.KindSchemaInvalid, "interfaces[%d]", i)
		}
		cfg.Interfaces = append(cfg.Interfaces, iface)
	}
	for i, rr := range raw.Routes {
		route, err := NewRoute(rr)
		if err != nil {
			return DeviceConfig{}, errors.Wrapf(err, errors.KindSchemaInvalid, "routes[%d]", i)
		}
		cfg.Routes = append(cfg.Routes, route)
	}
	for i, rf := range raw.FirewallRules {
		rule, err := NewFirewallRule(rf)
		if err != nil {
			return DeviceConfig{}, errors.Wrapf(err, errors.KindSchemaInvalid, "firewall_rules[%d]", i)
		}
		cfg.FirewallRules = append(cfg.FirewallRules, rule)
	}

	return cfg, nil
}
