// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors wired through the pipelines.
type Metrics struct {
	Registry *prometheus.Registry

	AuditsRun         prometheus.Counter
	AuditFailures     prometheus.Counter
	AuditDuration     prometheus.Histogram
	IncidentsPushed   *prometheus.CounterVec
	NodesDiscovered   prometheus.Counter
	TopologyScans     prometheus.Counter
	SSEClients        prometheus.Gauge
	DiscoveryRequests prometheus.Counter
}

// New builds and registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		AuditsRun: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netvigil_audits_total",
			Help: "Device audits completed, successful or not.",
		}),
		AuditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netvigil_audit_failures_total",
			Help: "Device audits that failed and were skipped.",
		}),
		AuditDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "netvigil_audit_duration_seconds",
			Help:    "Wall time of one device audit.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		IncidentsPushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netvigil_incidents_total",
			Help: "Incidents pushed, by severity and category.",
		}, []string{"severity", "category"}),
		NodesDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netvigil_topology_nodes_total",
			Help: "Topology nodes discovered across scans.",
		}),
		TopologyScans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netvigil_topology_scans_total",
			Help: "Fleet topology scans executed.",
		}),
		SSEClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netvigil_sse_clients",
			Help: "Currently connected SSE stream clients.",
		}),
		DiscoveryRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netvigil_discovery_requests_total",
			Help: "nmap discovery requests served.",
		}),
	}

	registry.MustRegister(
		m.AuditsRun, m.AuditFailures, m.AuditDuration, m.IncidentsPushed,
		m.NodesDiscovered, m.TopologyScans, m.SSEClients, m.DiscoveryRequests,
	)
	return m
}
