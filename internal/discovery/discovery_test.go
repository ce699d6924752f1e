// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netvigil/netvigil/internal/errors"
)

func TestNormalizeNetwork(t *testing.T) {
	pfx, err := normalizeNetwork(" 192.168.88.10/24 ")
	require.NoError(t, err)
	assert.Equal(t, "192.168.88.0/24", pfx.String())

	pfx, err = normalizeNetwork("10.0.0.0/20")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/20", pfx.String())
}

func TestNormalizeNetworkRejections(t *testing.T) {
	cases := []string{
		"not-a-network",
		"192.168.88.1",  // no prefix
		"10.0.0.0/19",   // wider than /20
		"10.0.0.0/8",    // far too wide
		"2001:db8::/64", // IPv6
	}
	for _, in := range cases {
		_, err := normalizeNetwork(in)
		require.Errorf(t, err, "input %q", in)
		assert.Equal(t, errors.KindDiscovery, errors.GetKind(err), "input %q", in)
	}
}

func TestBuildCommand(t *testing.T) {
	pfx, err := normalizeNetwork("192.168.88.0/24")
	require.NoError(t, err)

	// Ping-only default.
	cmd := buildCommand("/usr/bin/nmap", pfx, Options{})
	assert.Equal(t, []string{"/usr/bin/nmap", "-n", "-sn", "192.168.88.0/24", "-oX", "-"}, cmd)

	// Fast port scan.
	cmd = buildCommand("/usr/bin/nmap", pfx, Options{PortsFast: true})
	assert.Contains(t, cmd, "-F")
	assert.NotContains(t, cmd, "-sn")

	// Extended ports + versions + OS.
	cmd = buildCommand("/usr/bin/nmap", pfx, Options{PortsExtended: true, ServiceVersion: true, OSDetection: true})
	assert.Contains(t, cmd, "--top-ports")
	assert.Contains(t, cmd, "-sV")
	assert.Contains(t, cmd, "-O")
}

const nmapFixture = `<?xml version="1.0" encoding="UTF-8"?>
<nmaprun scanner="nmap">
  <host>
    <status state="up"/>
    <address addr="192.168.88.1" addrtype="ipv4"/>
    <address addr="4C:5E:0C:12:34:56" addrtype="mac" vendor="Routerboard.com"/>
    <hostnames><hostname name="edge-01.lan" type="PTR"/></hostnames>
    <ports>
      <port protocol="tcp" portid="22"><state state="open"/><service name="ssh"/></port>
      <port protocol="tcp" portid="23"><state state="closed"/></port>
      <port protocol="tcp" portid="8291"><state state="open"/></port>
    </ports>
    <os><osmatch name="MikroTik RouterOS" accuracy="96"/></os>
  </host>
  <host>
    <status state="down"/>
    <address addr="192.168.88.2" addrtype="ipv4"/>
  </host>
  <host>
    <status state="up"/>
    <address addr="192.168.88.10" addrtype="ipv4"/>
  </host>
</nmaprun>`

func TestParseNmapXML(t *testing.T) {
	hosts, err := parseNmapXML([]byte(nmapFixture))
	require.NoError(t, err)
	require.Len(t, hosts, 2) // the down host is skipped

	first := hosts[0]
	assert.Equal(t, "192.168.88.1", first.IP)
	assert.Equal(t, "edge-01.lan", first.Hostname)
	assert.Equal(t, "4C:5E:0C:12:34:56", first.MAC)
	assert.Equal(t, "Routerboard.com", first.Vendor)
	assert.Equal(t, []string{"22/tcp (ssh)", "8291/tcp"}, first.Ports)
	assert.Equal(t, "MikroTik RouterOS (96%)", first.OS)

	second := hosts[1]
	assert.Equal(t, "192.168.88.10", second.IP)
	assert.Empty(t, second.Ports)
}

func TestParseNmapXMLInvalid(t *testing.T) {
	_, err := parseNmapXML([]byte("<broken"))
	assert.Equal(t, errors.KindDiscovery, errors.GetKind(err))
}
