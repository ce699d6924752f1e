// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package overview assembles the executive KPI bundle served by the
// health endpoints and the SSE stream.
package overview

import (
	"context"

	"github.com/netvigil/netvigil/internal/logging"
	"github.com/netvigil/netvigil/internal/reachability"
	"github.com/netvigil/netvigil/internal/store"
	"github.com/netvigil/netvigil/internal/vault"
)

// DeviceKPIs summarizes the fleet.
type DeviceKPIs struct {
	Total        int `json:"total"`
	Healthy      int `json:"healthy"`
	WithIncident int `json:"with_incident"`
	Warning      int `json:"warning"`
}

// IncidentKPIs counts open incidents by severity.
type IncidentKPIs struct {
	Open     int `json:"open"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Warning  int `json:"warning"`
	Info     int `json:"info"`
}

// RemediationKPIs summarizes the remediation pipeline.
type RemediationKPIs struct {
	PendingApproval int `json:"pending_approval"`
	ExecutedToday   int `json:"executed_today"`
	Failed          int `json:"failed"`
}

// SLOKPIs carries service-level metrics; nil until the SLO pipeline
// exists.
type SLOKPIs struct {
	MTTAMinutes *float64 `json:"mtta_minutes"`
	MTTRMinutes *float64 `json:"mttr_minutes"`
}

// Bundle is the full KPI payload. Key names are part of the API contract.
type Bundle struct {
	Devices         DeviceKPIs       `json:"devices"`
	Incidents       IncidentKPIs     `json:"incidents"`
	Remediation     RemediationKPIs  `json:"remediation"`
	SLO             SLOKPIs          `json:"slo"`
	RecentIncidents []store.Incident `json:"recent_incidents"`
}

// Service computes bundles on demand.
type Service struct {
	Store  *store.Store
	Vault  *vault.Vault
	Prober *reachability.Prober
	Logger *logging.Logger

	// ProbeReachability gates the per-device ping pass; disabled in
	// environments where ICMP from the service host is meaningless.
	ProbeReachability bool
}

// Bundle consults the store and probes and assembles the KPIs. Orphan
// incidents are purged on the way, keeping the dashboard counts honest.
func (s *Service) Bundle(ctx context.Context) (Bundle, error) {
	log := s.Logger.With("component", "overview")

	if _, err := s.Store.PurgeOrphanIncidents(); err != nil {
		log.Warn("orphan purge failed", "error", err)
	}

	activeDevices, err := s.Store.ListActiveDevices("")
	if err != nil {
		return Bundle{}, err
	}
	activeIDs := map[string]bool{}
	for _, d := range activeDevices {
		activeIDs[d.DeviceID] = true
	}

	severityCounts, err := s.Store.CountOpenBySeverity()
	if err != nil {
		return Bundle{}, err
	}
	totalOpen := 0
	for _, n := range severityCounts {
		totalOpen += n
	}

	openByDevice, err := s.Store.OpenSummaryByDevice()
	if err != nil {
		return Bundle{}, err
	}
	withIncident := map[string]bool{}
	for deviceID := range openByDevice {
		if activeIDs[deviceID] {
			withIncident[deviceID] = true
		}
	}

	warning := map[string]bool{}
	if s.ProbeReachability && s.Prober != nil {
		communities := s.snmpCommunities(log)
		for _, d := range activeDevices {
			st := s.Prober.Check(ctx, d.Host, communities[[2]string{d.CustomerID, d.DeviceID}])
			if st.Warning {
				warning[d.DeviceID] = true
			}
		}
	}

	unhealthy := map[string]bool{}
	for id := range withIncident {
		unhealthy[id] = true
	}
	for id := range warning {
		unhealthy[id] = true
	}
	healthy := len(activeDevices) - len(unhealthy)
	if healthy < 0 {
		healthy = 0
	}

	recent, err := s.Store.ListRecentOpen(5)
	if err != nil {
		return Bundle{}, err
	}
	if recent == nil {
		recent = []store.Incident{}
	}

	pendingApproval, _ := s.Store.CountByStatus("aprovado")
	executedToday, _ := s.Store.CountValidatedToday()
	failed, _ := s.Store.CountByStatus("falhou")

	return Bundle{
		Devices: DeviceKPIs{
			Total:        len(activeDevices),
			Healthy:      healthy,
			WithIncident: len(withIncident),
			Warning:      len(warning),
		},
		Incidents: IncidentKPIs{
			Open:     totalOpen,
			Critical: severityCounts["CRITICAL"],
			High:     severityCounts["HIGH"],
			Warning:  severityCounts["WARNING"],
			Info:     severityCounts["INFO"],
		},
		Remediation: RemediationKPIs{
			PendingApproval: pendingApproval,
			ExecutedToday:   executedToday,
			Failed:          failed,
		},
		SLO:             SLOKPIs{},
		RecentIncidents: recent,
	}, nil
}

func (s *Service) snmpCommunities(log *logging.Logger) map[[2]string]string {
	communities, err := s.Vault.SNMPCommunities()
	if err != nil {
		log.Debug("snmp communities unavailable", "error", err)
		return map[[2]string]string{}
	}
	return communities
}
