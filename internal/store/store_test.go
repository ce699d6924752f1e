// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netvigil/netvigil/internal/errors"
	"github.com/netvigil/netvigil/internal/schema"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedDevice(t *testing.T, s *Store, customer, device, host string, port int) {
	t.Helper()
	require.NoError(t, s.CreateDevice(Device{
		CustomerID: customer, DeviceID: device, Vendor: "mikrotik", Host: host, Port: port,
	}))
}

func TestInventoryUniqueness(t *testing.T) {
	s := newTestStore(t)
	seedDevice(t, s, "cliente_a", "borda-01", "192.168.88.1", 22)

	// Same (customer, device).
	err := s.CreateDevice(Device{CustomerID: "cliente_a", DeviceID: "borda-01", Vendor: "mikrotik", Host: "10.0.0.1", Port: 22})
	assert.Equal(t, errors.KindStoreConstraint, errors.GetKind(err))

	// Same (host, port).
	err = s.CreateDevice(Device{CustomerID: "cliente_b", DeviceID: "sw-01", Vendor: "mikrotik", Host: "192.168.88.1", Port: 22})
	assert.Equal(t, errors.KindStoreConstraint, errors.GetKind(err))

	// Same host, different port is fine.
	require.NoError(t, s.CreateDevice(Device{CustomerID: "cliente_b", DeviceID: "sw-01", Vendor: "mikrotik", Host: "192.168.88.1", Port: 2222}))
}

func TestToggleActive(t *testing.T) {
	s := newTestStore(t)
	seedDevice(t, s, "cliente_a", "borda-01", "192.168.88.1", 22)

	require.NoError(t, s.SetDeviceActive("cliente_a", "borda-01", false))
	active, err := s.ListActiveDevices("")
	require.NoError(t, err)
	assert.Empty(t, active)

	err = s.SetDeviceActive("cliente_a", "missing", true)
	assert.Equal(t, errors.KindNotFound, errors.GetKind(err))
}

func TestIncidentPushMonotonicIDs(t *testing.T) {
	s := newTestStore(t)

	var last int64
	for i := 0; i < 5; i++ {
		id, err := s.PushIncident("cliente_a", "borda-01", "HIGH", CategoryConfigurationDrift, "drift", nil)
		require.NoError(t, err)
		assert.Greater(t, id, last)
		last = id
	}
}

func TestIncidentPayloadPreservedByteExact(t *testing.T) {
	s := newTestStore(t)

	payload := json.RawMessage(`{"diff":{"added":{}},"vendor":"mikrotik","order":[3,1,2]}`)
	id, err := s.PushIncident("cliente_a", "borda-01", "HIGH", CategoryConfigurationDrift, "drift", payload)
	require.NoError(t, err)

	inc, err := s.GetIncident(id)
	require.NoError(t, err)
	assert.Equal(t, string(payload), string(inc.Payload))
	assert.Equal(t, "new", inc.Status)
}

func TestIncidentFilters(t *testing.T) {
	s := newTestStore(t)
	seedDevice(t, s, "cliente_a", "borda-01", "192.168.88.1", 22)

	mustPush := func(customer, device, severity, category string, payload string) int64 {
		id, err := s.PushIncident(customer, device, severity, category, "desc", json.RawMessage(payload))
		require.NoError(t, err)
		return id
	}

	mustPush("cliente_a", "borda-01", "CRITICAL", CategoryConfigurationDrift, `{"vendor":"mikrotik"}`)
	mustPush("cliente_a", "borda-01", "LOW", CategoryConfigurationDrift, `{"vendor":"mikrotik"}`)
	id3 := mustPush("cliente_b", "sw-02", "HIGH", CategoryVLANDrift, `{"vendor":"cisco"}`)

	// By customer.
	incidents, total, err := s.ListIncidents(IncidentFilter{Customer: "cliente_a"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, incidents, 2)

	// Newest first with id tiebreak.
	all, _, err := s.ListIncidents(IncidentFilter{})
	require.NoError(t, err)
	assert.Equal(t, id3, all[0].ID)

	// min_severity HIGH keeps HIGH and CRITICAL.
	_, total, err = s.ListIncidents(IncidentFilter{MinSeverity: "HIGH"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	// Vendor matched against payload.
	_, total, err = s.ListIncidents(IncidentFilter{Vendor: "cisco"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	// Severity exact.
	_, total, err = s.ListIncidents(IncidentFilter{Severity: "low"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestStatusNormalization(t *testing.T) {
	assert.Equal(t, "new", NormalizeStatus("novo"))
	assert.Equal(t, "new", NormalizeStatus("NEW"))
	assert.Equal(t, "new", NormalizeStatus(""))
	assert.Equal(t, "em_analise", NormalizeStatus("em_analise"))

	s := newTestStore(t)
	id, err := s.PushIncident("cliente_a", "borda-01", "LOW", CategoryConfigurationDrift, "d", nil)
	require.NoError(t, err)

	// Legacy spelling is accepted and stored canonically.
	require.NoError(t, s.SetIncidentStatus(id, "novo"))
	inc, err := s.GetIncident(id)
	require.NoError(t, err)
	assert.Equal(t, "new", inc.Status)

	// Filtering by either spelling finds it.
	_, total, err := s.ListIncidents(IncidentFilter{Status: "novo"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	_, total, err = s.ListIncidents(IncidentFilter{Status: "new"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestOrphanIncidents(t *testing.T) {
	s := newTestStore(t)
	seedDevice(t, s, "cliente_a", "borda-01", "192.168.88.1", 22)

	_, err := s.PushIncident("cliente_a", "borda-01", "LOW", CategoryConfigurationDrift, "kept", nil)
	require.NoError(t, err)
	_, err = s.PushIncident("cliente_a", "gone-01", "HIGH", CategoryConfigurationDrift, "orphan", nil)
	require.NoError(t, err)

	orphans, err := s.ListOrphanIncidents()
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "gone-01", orphans[0].DeviceID)

	deleted, err := s.PurgeOrphanIncidents()
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	_, total, err := s.ListIncidents(IncidentFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestOpenSummaryByDevice(t *testing.T) {
	s := newTestStore(t)
	_, err := s.PushIncident("cliente_a", "borda-01", "LOW", CategoryConfigurationDrift, "d", nil)
	require.NoError(t, err)
	_, err = s.PushIncident("cliente_a", "borda-01", "CRITICAL", CategoryVLANDrift, "d", nil)
	require.NoError(t, err)

	summary, err := s.OpenSummaryByDevice()
	require.NoError(t, err)
	require.Contains(t, summary, "borda-01")
	assert.Equal(t, 2, summary["borda-01"].OpenIncidents)
	assert.Equal(t, "CRITICAL", summary["borda-01"].WorstSeverity)
}

func mkNode(t *testing.T, mac string, vlan int, port string) schema.NetworkNode {
	t.Helper()
	return schema.NetworkNode{MACAddress: mac, VLANID: vlan, SwitchPort: port, IPAddress: "192.168.88.10"}
}

func TestNodeUpsertPreservesFirstSeen(t *testing.T) {
	s := newTestStore(t)

	node := mkNode(t, "AA:BB:CC:00:11:22", 10, "ether3")
	require.NoError(t, s.UpsertNode("cliente_a", "borda-01", node))

	first, err := s.GetNodeByMAC("cliente_a", "AA:BB:CC:00:11:22")
	require.NoError(t, err)

	node.VLANID = 20
	require.NoError(t, s.UpsertNode("cliente_a", "borda-01", node))

	second, err := s.GetNodeByMAC("cliente_a", "AA:BB:CC:00:11:22")
	require.NoError(t, err)
	assert.Equal(t, first.FirstSeen, second.FirstSeen)
	assert.GreaterOrEqual(t, second.LastSeen, first.LastSeen)
	assert.Equal(t, 20, second.VLANID)
}

func TestNodeAuthorizedIsSticky(t *testing.T) {
	s := newTestStore(t)

	node := mkNode(t, "AA:BB:CC:00:11:22", 10, "ether3")
	require.NoError(t, s.UpsertNode("cliente_a", "borda-01", node))
	require.NoError(t, s.SetNodeAuthorized("cliente_a", "AA:BB:CC:00:11:22", true))

	// A later collection with authorized=false must not clear the flag.
	require.NoError(t, s.UpsertNode("cliente_a", "borda-01", node))
	got, err := s.GetNodeByMAC("cliente_a", "AA:BB:CC:00:11:22")
	require.NoError(t, err)
	assert.True(t, got.Authorized)

	// Only the explicit operator call may clear it.
	require.NoError(t, s.SetNodeAuthorized("cliente_a", "AA:BB:CC:00:11:22", false))
	got, err = s.GetNodeByMAC("cliente_a", "AA:BB:CC:00:11:22")
	require.NoError(t, err)
	assert.False(t, got.Authorized)
}

func TestAuthorizedVLANMap(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.UpsertNode("cliente_a", "borda-01", mkNode(t, "AA:BB:CC:00:11:22", 10, "ether3")))
	require.NoError(t, s.UpsertNode("cliente_a", "borda-01", mkNode(t, "AA:BB:CC:00:11:33", 20, "ether4")))
	require.NoError(t, s.SetNodeAuthorized("cliente_a", "AA:BB:CC:00:11:22", true))

	m, err := s.AuthorizedVLANMap("cliente_a")
	require.NoError(t, err)
	require.Contains(t, m, "AA:BB:CC:00:11:22")
	assert.True(t, m["AA:BB:CC:00:11:22"][10])
	assert.NotContains(t, m, "AA:BB:CC:00:11:33")
}

func TestTopologyAppendTables(t *testing.T) {
	s := newTestStore(t)

	arp, err := schema.NewARPEntry("192.168.88.10", "AA:BB:CC:00:11:22", "bridge1", 0)
	require.NoError(t, err)
	n, err := s.AppendARPEntries("cliente_a", "borda-01", []schema.ARPEntry{arp})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Appends accumulate; nothing is overwritten.
	_, err = s.AppendARPEntries("cliente_a", "borda-01", []schema.ARPEntry{arp})
	require.NoError(t, err)
	rows, err := s.ListARPEntries("cliente_a", 10)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	mac, err := schema.NewMACEntry(schema.RawMACEntry{MACAddress: "AA:BB:CC:00:11:22", Interface: "ether3"})
	require.NoError(t, err)
	_, err = s.AppendMACEntries("cliente_a", "borda-01", []schema.MACEntry{mac})
	require.NoError(t, err)

	lldp, err := schema.NewLLDPNeighbor(schema.LLDPNeighbor{RemoteDevice: "sw-02", RemoteMAC: "AA:BB:CC:00:11:33"})
	require.NoError(t, err)
	_, err = s.AppendLLDPEntries("cliente_a", "borda-01", []schema.LLDPNeighbor{lldp})
	require.NoError(t, err)
	lldpRows, err := s.ListLLDPEntries("cliente_a", 10)
	require.NoError(t, err)
	require.Len(t, lldpRows, 1)
	assert.Equal(t, "sw-02", lldpRows[0].RemoteDevice)
}

func TestCountOpenBySeverity(t *testing.T) {
	s := newTestStore(t)
	_, err := s.PushIncident("c", "d", "CRITICAL", CategoryConfigurationDrift, "x", nil)
	require.NoError(t, err)
	id, err := s.PushIncident("c", "d", "HIGH", CategoryConfigurationDrift, "x", nil)
	require.NoError(t, err)
	require.NoError(t, s.SetIncidentStatus(id, "validado")) // closed, not counted

	counts, err := s.CountOpenBySeverity()
	require.NoError(t, err)
	assert.Equal(t, 1, counts["CRITICAL"])
	assert.Zero(t, counts["HIGH"])
}
