// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package topology collects, correlates and audits the L2/L3 view of each
// customer's network: ARP and bridge tables in, NetworkNodes and VLAN
// drift incidents out.
package topology

import (
	"sort"
	"time"

	"github.com/netvigil/netvigil/internal/schema"
)

// Correlate merges an ARP table (L3: IP to MAC) with a bridge table
// (L2: MAC to port and VLAN) into one NetworkNode per MAC seen on either
// side. The VLAN comes from the bridge entry when present, else from ARP;
// the switch port only from the bridge entry. Output order is stable
// (sorted by MAC) so repeated scans persist deterministically.
func Correlate(arpEntries []schema.ARPEntry, macEntries []schema.MACEntry, oui *OUIDB) []schema.NetworkNode {
	arpIndex := map[string]schema.ARPEntry{}
	for _, e := range arpEntries {
		arpIndex[e.MACAddress] = e
	}
	macIndex := map[string]schema.MACEntry{}
	for _, e := range macEntries {
		macIndex[e.MACAddress] = e
	}

	macs := make([]string, 0, len(arpIndex)+len(macIndex))
	seen := map[string]bool{}
	for mac := range arpIndex {
		if !seen[mac] {
			seen[mac] = true
			macs = append(macs, mac)
		}
	}
	for mac := range macIndex {
		if !seen[mac] {
			seen[mac] = true
			macs = append(macs, mac)
		}
	}
	sort.Strings(macs)

	now := time.Now().UTC()
	nodes := make([]schema.NetworkNode, 0, len(macs))
	for _, mac := range macs {
		arp, hasARP := arpIndex[mac]
		bridge, hasBridge := macIndex[mac]

		node := schema.NetworkNode{
			MACAddress: mac,
			VendorOUI:  oui.Vendor(mac),
			LastSeen:   &now,
		}
		if hasARP {
			node.IPAddress = arp.IPAddress
		}
		switch {
		case hasBridge && bridge.VLANID != 0:
			node.VLANID = bridge.VLANID
		case hasARP:
			node.VLANID = arp.VLANID
		}
		if hasBridge {
			node.SwitchPort = bridge.SwitchPort
		}
		nodes = append(nodes, node)
	}
	return nodes
}
