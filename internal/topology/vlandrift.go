// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package topology

import (
	"fmt"
	"sort"

	"github.com/netvigil/netvigil/internal/schema"
)

// Drift is one detected topology deviation.
type Drift struct {
	Type          string `json:"type"`
	MACAddress    string `json:"mac_address"`
	IPAddress     string `json:"ip_address,omitempty"`
	ExpectedVLANs []int  `json:"expected_vlans,omitempty"`
	FoundVLAN     int    `json:"found_vlan"`
	SwitchPort    string `json:"switch_port,omitempty"`
	Severity      string `json:"severity"`
	Description   string `json:"description"`
}

// Drift types, doubling as incident categories.
const (
	DriftTypeVLAN         = "vlan_drift"
	DriftTypeUnauthorized = "unauthorized_node"
)

// DetectVLANDrift compares observed nodes against the authorized map
// {mac: allowed VLAN set}. An authorized MAC observed outside its allowed
// VLANs is HIGH vlan_drift. MACs absent from the map are quiet by default;
// with reportUnauthorized they are emitted as MEDIUM unauthorized_node.
// Nodes without a VLAN observation are skipped — there is nothing to
// compare.
func DetectVLANDrift(nodes []schema.NetworkNode, authorized map[string]map[int]bool, reportUnauthorized bool) []Drift {
	var drifts []Drift

	for _, node := range nodes {
		if node.VLANID == 0 {
			continue
		}

		allowed, known := authorized[node.MACAddress]
		if !known {
			if reportUnauthorized {
				drifts = append(drifts, Drift{
					Type:       DriftTypeUnauthorized,
					MACAddress: node.MACAddress,
					IPAddress:  node.IPAddress,
					FoundVLAN:  node.VLANID,
					SwitchPort: node.SwitchPort,
					Severity:   "MEDIUM",
					Description: fmt.Sprintf("unauthorized node %s observed on VLAN %d",
						node.MACAddress, node.VLANID),
				})
			}
			continue
		}

		if allowed[node.VLANID] {
			continue
		}

		expected := make([]int, 0, len(allowed))
		for vlan := range allowed {
			expected = append(expected, vlan)
		}
		sort.Ints(expected)

		drifts = append(drifts, Drift{
			Type:          DriftTypeVLAN,
			MACAddress:    node.MACAddress,
			IPAddress:     node.IPAddress,
			ExpectedVLANs: expected,
			FoundVLAN:     node.VLANID,
			SwitchPort:    node.SwitchPort,
			Severity:      "HIGH",
			Description: fmt.Sprintf("MAC %s detected on VLAN %d; authorized only on VLANs %v",
				node.MACAddress, node.VLANID, expected),
		})
	}

	return drifts
}
