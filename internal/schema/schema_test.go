// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netvigil/netvigil/internal/errors"
)

func TestNewInterfaceNormalizesMAC(t *testing.T) {
	iface, err := NewInterface(RawInterface{Name: "ether1", MACAddress: "00-0c-29-ab-cd-ef"})
	require.NoError(t, err)
	assert.Equal(t, "00:0C:29:AB:CD:EF", iface.MACAddress)
	assert.True(t, iface.Enabled)
	assert.Equal(t, InterfaceEther, iface.InterfaceType)
}

func TestNewInterfaceLegacyIPForm(t *testing.T) {
	prefix := 24
	iface, err := NewInterface(RawInterface{Name: "ether1", IPAddress: "192.168.1.1", PrefixLen: &prefix})
	require.NoError(t, err)
	assert.Equal(t, []string{"192.168.1.1/24"}, iface.IPAddresses)

	// Bare legacy address defaults to /32.
	iface, err = NewInterface(RawInterface{Name: "ether1", IPAddress: "10.0.0.5"})
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.5/32"}, iface.IPAddresses)

	// CIDR in the legacy field passes through.
	iface, err = NewInterface(RawInterface{Name: "ether1", IPAddress: "172.16.0.1/30"})
	require.NoError(t, err)
	assert.Equal(t, []string{"172.16.0.1/30"}, iface.IPAddresses)
}

func TestNewInterfaceMTUBounds(t *testing.T) {
	_, err := NewInterface(RawInterface{Name: "ether1", MTU: 67})
	assert.Equal(t, errors.KindSchemaInvalid, errors.GetKind(err))

	_, err = NewInterface(RawInterface{Name: "ether1", MTU: 65536})
	assert.Equal(t, errors.KindSchemaInvalid, errors.GetKind(err))

	iface, err := NewInterface(RawInterface{Name: "lo", InterfaceType: "loopback", MTU: 65535})
	require.NoError(t, err)
	assert.Equal(t, 65535, iface.MTU)
}

func TestNewInterfaceVLANInvariant(t *testing.T) {
	_, err := NewInterface(RawInterface{Name: "vlan10", InterfaceType: "vlan"})
	require.Error(t, err)
	assert.Equal(t, errors.KindSchemaInvalid, errors.GetKind(err))

	iface, err := NewInterface(RawInterface{
		Name: "vlan10", InterfaceType: "vlan", VLANID: 10, VLANInterface: "ether2",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, iface.VLANID)
	assert.Equal(t, "ether2", iface.VLANInterface)
}

func TestNewInterfaceVLANBounds(t *testing.T) {
	_, err := NewInterface(RawInterface{Name: "vlan0", InterfaceType: "vlan", VLANID: 4095})
	assert.Equal(t, errors.KindSchemaInvalid, errors.GetKind(err))
}

func TestNewRouteDefaults(t *testing.T) {
	r, err := NewRoute(RawRoute{Destination: "0.0.0.0/0", Gateway: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Distance)
	assert.Equal(t, "static", r.RouteType)
}

func TestNewRouteDistanceBounds(t *testing.T) {
	bad := 256
	_, err := NewRoute(RawRoute{Destination: "10.0.0.0/8", Distance: &bad})
	assert.Equal(t, errors.KindSchemaInvalid, errors.GetKind(err))

	zero := 0
	r, err := NewRoute(RawRoute{Destination: "10.0.0.0/8", Distance: &zero, RouteType: "connected"})
	require.NoError(t, err)
	assert.Equal(t, 0, r.Distance)
}

func TestNewFirewallRuleRequiredFields(t *testing.T) {
	_, err := NewFirewallRule(RawFirewallRule{Action: "accept"})
	assert.Equal(t, errors.KindSchemaInvalid, errors.GetKind(err))

	_, err = NewFirewallRule(RawFirewallRule{Chain: "input"})
	assert.Equal(t, errors.KindSchemaInvalid, errors.GetKind(err))

	r, err := NewFirewallRule(RawFirewallRule{Chain: "input", Action: "drop", SrcAddress: "10.0.0.5"})
	require.NoError(t, err)
	assert.False(t, r.Disabled)
}

func TestFirewallRuleEquality(t *testing.T) {
	a, _ := NewFirewallRule(RawFirewallRule{Chain: "input", Action: "accept", Comment: "SSH", DstPort: "22"})
	b, _ := NewFirewallRule(RawFirewallRule{Chain: "input", Action: "accept", Comment: "SSH", DstPort: "22"})
	c, _ := NewFirewallRule(RawFirewallRule{Chain: "input", Action: "accept", Comment: "SSH", DstPort: "2222"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestNewDeviceConfigRequiresIdentity(t *testing.T) {
	_, err := NewDeviceConfig("", "mikrotik")
	assert.Equal(t, errors.KindSchemaInvalid, errors.GetKind(err))

	_, err = NewDeviceConfig("edge-01", "")
	assert.Equal(t, errors.KindSchemaInvalid, errors.GetKind(err))

	cfg, err := NewDeviceConfig("edge-01", "MikroTik")
	require.NoError(t, err)
	assert.Equal(t, "mikrotik", cfg.Vendor)
	assert.False(t, cfg.CollectedAt.IsZero())
}

func TestNewARPEntry(t *testing.T) {
	e, err := NewARPEntry("192.168.88.10", "aa:bb:cc:00:11:22", "bridge1", 10)
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:00:11:22", e.MACAddress)
	assert.Equal(t, 10, e.VLANID)

	_, err = NewARPEntry("", "aa:bb:cc:00:11:22", "", 0)
	assert.Equal(t, errors.KindSchemaInvalid, errors.GetKind(err))

	_, err = NewARPEntry("192.168.88.10", "nonsense", "", 0)
	assert.Equal(t, errors.KindSchemaInvalid, errors.GetKind(err))
}

func TestNewMACEntryPortFallsBackToInterface(t *testing.T) {
	e, err := NewMACEntry(RawMACEntry{MACAddress: "AA:BB:CC:00:11:22", Interface: "ether3"})
	require.NoError(t, err)
	assert.Equal(t, "ether3", e.SwitchPort)

	e, err = NewMACEntry(RawMACEntry{MACAddress: "AA:BB:CC:00:11:22", Interface: "bridge1", SwitchPort: "ether12"})
	require.NoError(t, err)
	assert.Equal(t, "ether12", e.SwitchPort)
}

func TestParseDeviceConfigJSONStrict(t *testing.T) {
	valid := `{
		"hostname": "edge-01",
		"vendor": "mikrotik",
		"os_version": "7.14",
		"interfaces": [{"name": "ether1", "ip_address": "192.168.1.1", "prefix_len": 24}],
		"routes": [{"destination": "0.0.0.0/0", "gateway": "10.0.0.1"}],
		"firewall_rules": [{"chain": "input", "action": "accept", "comment": "SSH"}]
	}`
	cfg, err := ParseDeviceConfigJSON([]byte(valid))
	require.NoError(t, err)
	assert.Equal(t, []string{"192.168.1.1/24"}, cfg.Interfaces[0].IPAddresses)
	assert.Equal(t, 1, cfg.Routes[0].Distance)

	// One invalid nested item fails the whole document.
	invalid := `{
		"hostname": "edge-01",
		"vendor": "mikrotik",
		"firewall_rules": [{"action": "accept"}]
	}`
	_, err = ParseDeviceConfigJSON([]byte(invalid))
	assert.Equal(t, errors.KindSchemaInvalid, errors.GetKind(err))

	_, err = ParseDeviceConfigJSON([]byte("{broken"))
	assert.Equal(t, errors.KindSchemaInvalid, errors.GetKind(err))
}
