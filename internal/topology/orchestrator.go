// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package topology

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/alitto/pond/v2"

	"github.com/netvigil/netvigil/internal/driver"
	"github.com/netvigil/netvigil/internal/errors"
	"github.com/netvigil/netvigil/internal/logging"
	"github.com/netvigil/netvigil/internal/metrics"
	"github.com/netvigil/netvigil/internal/snmp"
	"github.com/netvigil/netvigil/internal/store"
	"github.com/netvigil/netvigil/internal/vault"
)

// Summary reports the outcome of one fleet scan.
type Summary struct {
	DevicesScanned  int `json:"devices_scanned"`
	NodesDiscovered int `json:"nodes_discovered"`
	Drifts          int `json:"drifts"`
}

// Orchestrator runs fleet-wide topology scans: collect, persist raw
// tables, correlate, upsert nodes, detect VLAN drift, push incidents.
type Orchestrator struct {
	Store              *store.Store
	Vault              *vault.Vault
	SNMP               *snmp.Collector
	OUI                *OUIDB
	Resolver           *Resolver
	Logger             *logging.Logger
	Metrics            *metrics.Metrics
	Workers            int
	DriverTimeout      int
	ReportUnauthorized bool

	// OnIncident, when set, is invoked after an incident is pushed. The
	// API server uses it to feed the live event stream.
	OnIncident func(store.Incident)
}

// Scan walks the active inventory (optionally one customer) with a
// bounded worker pool. Per-device failures are logged and skipped; they
// never abort the run.
func (o *Orchestrator) Scan(ctx context.Context, customerFilter string) (Summary, error) {
	logger := o.Logger.With("component", "topology")

	devices, err := o.Store.ListActiveDevices(customerFilter)
	if err != nil {
		return Summary{}, err
	}
	if len(devices) == 0 {
		logger.Warn("no active devices for topology scan", "customer_filter", customerFilter)
		return Summary{}, nil
	}

	communities, err := o.Vault.SNMPCommunities()
	if err != nil {
		// The vault may legitimately not exist yet; scan without fallback.
		if errors.GetKind(err) != errors.KindVaultMissing {
			return Summary{}, err
		}
		communities = map[[2]string]string{}
	}

	workers := o.Workers
	if workers < 1 {
		workers = 16
	}
	pool := pond.NewPool(workers, pond.WithContext(ctx))

	var mu sync.Mutex
	var summary Summary

	for _, dev := range devices {
		dev := dev
		pool.Submit(func() {
			nodes, drifts, ok := o.scanDevice(ctx, dev, communities[[2]string{dev.CustomerID, dev.DeviceID}], logger)
			if !ok {
				return
			}
			mu.Lock()
			summary.DevicesScanned++
			summary.NodesDiscovered += nodes
			summary.Drifts += drifts
			mu.Unlock()
		})
	}
	pool.StopAndWait()

	if o.Metrics != nil {
		o.Metrics.TopologyScans.Inc()
	}
	logger.Info("topology scan finished",
		"devices", summary.DevicesScanned,
		"nodes", summary.NodesDiscovered,
		"drifts", summary.Drifts)
	return summary, nil
}

// scanDevice collects and audits one device. Returns (nodes, drifts, ok);
// ok is false when the device had to be skipped entirely.
func (o *Orchestrator) scanDevice(ctx context.Context, dev store.Device, community string, logger *logging.Logger) (int, int, bool) {
	log := logger.With("customer", dev.CustomerID, "device", dev.DeviceID)

	if ctx.Err() != nil {
		return 0, 0, false
	}

	creds, err := o.Vault.Get(dev.CustomerID, dev.DeviceID)
	if err != nil {
		log.Error("credentials unavailable", "kind", errors.GetKind(err).String(), "error", err)
		return 0, 0, false
	}

	var tables RawTables
	drv, err := driver.ForVendor(dev.Vendor, driver.Credentials{
		Host:     creds.Host,
		Username: creds.Username,
		Password: creds.Password,
		Port:     creds.Port,
	}, driver.Options{TimeoutSeconds: o.DriverTimeout})
	if err != nil {
		log.Warn("vendor has no topology driver", "vendor", dev.Vendor)
		return 0, 0, false
	}
	if aware, ok := drv.(interface{ SetLogger(*logging.Logger) }); ok {
		aware.SetLogger(o.Logger)
	}
	defer drv.Close()

	if err := drv.Open(ctx); err != nil {
		log.Error("session failed", "kind", errors.GetKind(err).String(), "error", err)
		if community == "" {
			return 0, 0, false
		}
		log.Info("attempting snmp-only collection")
		tables = CollectViaSNMP(ctx, creds.Host, community, o.SNMP, log)
	} else {
		tables = CollectFromDriver(ctx, dev.CustomerID, dev.DeviceID, creds.Host, drv, o.SNMP, community, logger)
	}

	if _, err := o.Store.AppendARPEntries(dev.CustomerID, dev.DeviceID, tables.ARP); err != nil {
		log.Error("failed to persist arp entries", "error", err)
	}
	if _, err := o.Store.AppendMACEntries(dev.CustomerID, dev.DeviceID, tables.MAC); err != nil {
		log.Error("failed to persist mac entries", "error", err)
	}
	if _, err := o.Store.AppendLLDPEntries(dev.CustomerID, dev.DeviceID, tables.LLDP); err != nil {
		log.Error("failed to persist lldp entries", "error", err)
	}

	nodes := Correlate(tables.ARP, tables.MAC, o.OUI)
	o.Resolver.FillHostnames(ctx, nodes)

	for _, node := range nodes {
		if err := o.Store.UpsertNode(dev.CustomerID, dev.DeviceID, node); err != nil {
			log.Error("failed to upsert node", "mac", node.MACAddress, "error", err)
		}
	}
	if o.Metrics != nil {
		o.Metrics.NodesDiscovered.Add(float64(len(nodes)))
	}

	authorized, err := o.Store.AuthorizedVLANMap(dev.CustomerID)
	if err != nil {
		log.Error("failed to load authorized map", "error", err)
		return len(nodes), 0, true
	}

	drifts := DetectVLANDrift(nodes, authorized, o.ReportUnauthorized)
	pushed := 0
	for _, drift := range drifts {
		payload, err := json.Marshal(drift)
		if err != nil {
			log.Error("failed to encode drift payload", "error", err)
			continue
		}
		id, err := o.Store.PushIncident(dev.CustomerID, dev.DeviceID, drift.Severity, drift.Type, drift.Description, payload)
		if err != nil {
			log.Error("failed to push drift incident", "error", err)
			continue
		}
		pushed++
		if o.Metrics != nil {
			o.Metrics.IncidentsPushed.WithLabelValues(drift.Severity, drift.Type).Inc()
		}
		if o.OnIncident != nil {
			if inc, err := o.Store.GetIncident(id); err == nil {
				o.OnIncident(inc)
			}
		}
		log.Warn("topology incident registered", "incident_id", id, "type", drift.Type, "mac", drift.MACAddress)
	}

	return len(nodes), pushed, true
}
