// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/netvigil/netvigil/internal/errors"
	"github.com/netvigil/netvigil/internal/netutil"
	"github.com/netvigil/netvigil/internal/store"
)

// handleTopologyHome serves the node table plus KPIs.
func (s *Server) handleTopologyHome(w http.ResponseWriter, r *http.Request) {
	customer := r.URL.Query().Get("customer")
	vlanID := queryInt(r, "vlan_id")

	nodes, err := s.store.ListNodes(store.NodeFilter{Customer: customer, VLANID: vlanID})
	if err != nil {
		s.writeError(w, err)
		return
	}
	if nodes == nil {
		nodes = []store.Node{}
	}

	kpis := map[string]int{"total_nodes": len(nodes), "total_vlans": 0}
	if customer != "" {
		if vlans, err := s.store.CountDistinctVLANs(customer); err == nil {
			kpis["total_vlans"] = vlans
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"kpis": kpis, "nodes": nodes})
}

// handleTopologyNodes is the plain node listing.
func (s *Server) handleTopologyNodes(w http.ResponseWriter, r *http.Request) {
	customer := r.URL.Query().Get("customer")
	vlanID := queryInt(r, "vlan_id")

	nodes, err := s.store.ListNodes(store.NodeFilter{Customer: customer, VLANID: vlanID})
	if err != nil {
		s.writeError(w, err)
		return
	}
	if nodes == nil {
		nodes = []store.Node{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"nodes": nodes, "total": len(nodes)})
}

// handleTopologyVLANs groups a customer's nodes by VLAN.
func (s *Server) handleTopologyVLANs(w http.ResponseWriter, r *http.Request) {
	customer := r.URL.Query().Get("customer")
	if customer == "" {
		s.writeError(w, errors.New(errors.KindValidation, "customer parameter required"))
		return
	}

	nodes, err := s.store.ListNodes(store.NodeFilter{Customer: customer})
	if err != nil {
		s.writeError(w, err)
		return
	}

	grouped := map[string][]store.Node{}
	for _, node := range nodes {
		if node.VLANID == 0 {
			continue
		}
		key := strconv.Itoa(node.VLANID)
		grouped[key] = append(grouped[key], node)
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": customer, "vlans": grouped})
}

// handleTopologyARP serves recent raw ARP observations.
func (s *Server) handleTopologyARP(w http.ResponseWriter, r *http.Request) {
	customer := r.URL.Query().Get("customer")
	entries, err := s.store.ListARPEntries(customer, 500)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []store.ARPRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"arp_entries": entries, "total": len(entries)})
}

// handleTopologyLLDP serves recent raw neighbor observations.
func (s *Server) handleTopologyLLDP(w http.ResponseWriter, r *http.Request) {
	customer := r.URL.Query().Get("customer")
	entries, err := s.store.ListLLDPEntries(customer, 500)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []store.LLDPRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"lldp_entries": entries, "total": len(entries)})
}

// handleTopologyScan triggers a fleet topology scan.
func (s *Server) handleTopologyScan(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, errors.Wrap(err, errors.KindValidation, "invalid form"))
		return
	}
	customer := strings.TrimSpace(r.FormValue("customer"))

	summary, err := s.topo.Scan(r.Context(), customer)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleTopologyAuthorize marks a (customer, mac) as authorized — the
// only path that may change the flag.
func (s *Server) handleTopologyAuthorize(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, errors.Wrap(err, errors.KindValidation, "invalid form"))
		return
	}
	customer := strings.TrimSpace(r.FormValue("customer_id"))
	macRaw := strings.TrimSpace(r.FormValue("mac_address"))
	if customer == "" || macRaw == "" {
		s.writeError(w, errors.New(errors.KindValidation, "customer_id and mac_address are required"))
		return
	}
	mac, err := netutil.NormalizeMAC(macRaw)
	if err != nil {
		s.writeError(w, err)
		return
	}
	authorized := r.FormValue("authorized") != "0"

	if err := s.store.SetNodeAuthorized(customer, mac, authorized); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("node authorization changed", "customer", customer, "mac", mac, "authorized", authorized)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "mac_address": mac, "authorized": authorized})
}

// handleTopologyGraphData serves nodes and LLDP edges for graph
// rendering.
func (s *Server) handleTopologyGraphData(w http.ResponseWriter, r *http.Request) {
	customer := r.URL.Query().Get("customer")
	if customer == "" {
		s.writeError(w, errors.New(errors.KindValidation, "customer parameter required"))
		return
	}

	nodes, err := s.store.ListNodes(store.NodeFilter{Customer: customer})
	if err != nil {
		s.writeError(w, err)
		return
	}
	lldp, err := s.store.ListLLDPEntries(customer, 500)
	if err != nil {
		s.writeError(w, err)
		return
	}

	graphNodes := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		label := n.IPAddress
		if label == "" {
			label = n.MACAddress
		}
		graphNodes = append(graphNodes, map[string]any{
			"id":          n.MACAddress,
			"label":       label,
			"vlan":        n.VLANID,
			"vendor":      n.VendorOUI,
			"authorized":  n.Authorized,
			"switch_port": n.SwitchPort,
		})
	}

	graphEdges := make([]map[string]any, 0, len(lldp))
	for _, e := range lldp {
		if e.RemoteMAC == "" {
			continue
		}
		graphEdges = append(graphEdges, map[string]any{
			"source":        e.LocalPort,
			"target":        e.RemoteMAC,
			"type":          "lldp",
			"remote_device": e.RemoteDevice,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"nodes":       graphNodes,
		"edges":       graphEdges,
		"total_nodes": len(graphNodes),
		"total_edges": len(graphEdges),
	})
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}
