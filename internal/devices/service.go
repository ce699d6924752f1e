// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package devices correlates the inventory with incidents, reachability
// and baseline presence into the consolidated device views the API
// serves.
package devices

import (
	"context"

	"github.com/netvigil/netvigil/internal/audit"
	"github.com/netvigil/netvigil/internal/logging"
	"github.com/netvigil/netvigil/internal/reachability"
	"github.com/netvigil/netvigil/internal/store"
	"github.com/netvigil/netvigil/internal/vault"
)

// severityStatus maps worst severities onto UI status classes.
var severityStatus = map[string]string{
	"CRITICAL": "critical",
	"HIGH":     "warning",
	"MEDIUM":   "warning",
	"WARNING":  "warning",
	"LOW":      "info",
	"INFO":     "info",
}

// View is one device enriched with operational state.
type View struct {
	DeviceID      string `json:"device_id"`
	CustomerID    string `json:"customer_id"`
	Vendor        string `json:"vendor"`
	Host          string `json:"host"`
	Port          int    `json:"port"`
	Active        bool   `json:"active"`
	Status        string `json:"status"`
	OpenIncidents int    `json:"open_incidents"`
	WorstSeverity string `json:"worst_severity,omitempty"`
	LastSeen      string `json:"last_seen,omitempty"`
	PingOK        *bool  `json:"ping_ok"`
	SNMPOK        *bool  `json:"snmp_ok"`
	HasBaseline   bool   `json:"has_baseline"`
	BaselineAt    string `json:"baseline_at,omitempty"`
}

// Service assembles device views.
type Service struct {
	Store     *store.Store
	Vault     *vault.Vault
	Baselines *audit.Baselines
	Prober    *reachability.Prober
	Logger    *logging.Logger

	ProbeReachability bool
}

// List returns the inventory enriched with status, filtered by customer
// and/or vendor.
func (s *Service) List(ctx context.Context, customer, vendor string) ([]View, error) {
	devices, err := s.Store.ListDevices(customer, vendor)
	if err != nil {
		return nil, err
	}
	openByDevice, err := s.Store.OpenSummaryByDevice()
	if err != nil {
		return nil, err
	}
	communities := s.communities()

	views := make([]View, 0, len(devices))
	for _, d := range devices {
		views = append(views, s.view(ctx, d, openByDevice, communities))
	}
	return views, nil
}

// Get returns one device view looked up by device id.
func (s *Service) Get(ctx context.Context, deviceID string) (View, error) {
	d, err := s.Store.FindDevice(deviceID)
	if err != nil {
		return View{}, err
	}
	openByDevice, err := s.Store.OpenSummaryByDevice()
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, d, openByDevice, s.communities()), nil
}

func (s *Service) view(ctx context.Context, d store.Device,
	openByDevice map[string]store.OpenDeviceSummary, communities map[[2]string]string) View {

	v := View{
		DeviceID:   d.DeviceID,
		CustomerID: d.CustomerID,
		Vendor:     d.Vendor,
		Host:       d.Host,
		Port:       d.Port,
		Active:     d.Active,
		Status:     "ok",
	}

	if inc, ok := openByDevice[d.DeviceID]; ok {
		v.OpenIncidents = inc.OpenIncidents
		v.WorstSeverity = inc.WorstSeverity
		v.LastSeen = inc.LastSeen
		if status, ok := severityStatus[inc.WorstSeverity]; ok {
			v.Status = status
		}
	}

	if d.Active && s.ProbeReachability && s.Prober != nil {
		st := s.Prober.Check(ctx, d.Host, communities[[2]string{d.CustomerID, d.DeviceID}])
		v.PingOK = st.PingOK
		v.SNMPOK = st.SNMPOK
		if v.Status == "ok" && st.Warning {
			v.Status = "warning"
		}
	}

	if s.Baselines != nil && s.Baselines.Exists(d.CustomerID, d.DeviceID) {
		v.HasBaseline = true
		if cfg, err := s.Baselines.Load(d.CustomerID, d.DeviceID); err == nil {
			v.BaselineAt = cfg.CollectedAt.Format("2006-01-02T15:04:05Z07:00")
		}
	}
	return v
}

func (s *Service) communities() map[[2]string]string {
	communities, err := s.Vault.SNMPCommunities()
	if err != nil {
		return map[[2]string]string{}
	}
	return communities
}
