// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package audit runs the per-device drift audit pipeline: vault, driver,
// snapshot, baseline, diff, classify, incident. Each device is isolated:
// any failure is typed-logged and the orchestrator advances to the next.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/netvigil/netvigil/internal/diff"
	"github.com/netvigil/netvigil/internal/driver"
	"github.com/netvigil/netvigil/internal/errors"
	"github.com/netvigil/netvigil/internal/logging"
	"github.com/netvigil/netvigil/internal/metrics"
	"github.com/netvigil/netvigil/internal/schema"
	"github.com/netvigil/netvigil/internal/store"
	"github.com/netvigil/netvigil/internal/vault"
)

// Result summarizes one device's audit.
type Result struct {
	CustomerID string        `json:"customer_id"`
	DeviceID   string        `json:"device_id"`
	HasDrift   bool          `json:"has_drift"`
	Severity   string        `json:"severity,omitempty"`
	IncidentID int64         `json:"incident_id,omitempty"`
	Summary    string        `json:"summary"`
	Err        error         `json:"-"`
	Duration   time.Duration `json:"-"`
}

// Orchestrator drives fleet audits.
type Orchestrator struct {
	Store         *store.Store
	Vault         *vault.Vault
	Baselines     *Baselines
	Logger        *logging.Logger
	Metrics       *metrics.Metrics
	ReportsDir    string // empty disables report archiving
	Workers       int
	DriverTimeout int

	// OnIncident, when set, is invoked after an incident is pushed. The
	// API server uses it to feed the live event stream.
	OnIncident func(store.Incident)
}

// Run audits every active inventory device (optionally one customer) with
// a bounded worker pool and returns (successes, failures).
func (o *Orchestrator) Run(ctx context.Context, customerFilter string) (int, int, error) {
	logger := o.Logger.With("component", "audit")

	devices, err := o.Store.ListActiveDevices(customerFilter)
	if err != nil {
		return 0, 0, err
	}
	if len(devices) == 0 {
		logger.Warn("no active devices to audit", "customer_filter", customerFilter)
		return 0, 0, nil
	}

	workers := o.Workers
	if workers < 1 {
		workers = 16
	}
	pool := pond.NewPool(workers, pond.WithContext(ctx))

	var mu sync.Mutex
	success, failure := 0, 0

	for _, dev := range devices {
		dev := dev
		pool.Submit(func() {
			res := o.AuditDevice(ctx, dev)
			mu.Lock()
			if res.Err != nil {
				failure++
			} else {
				success++
			}
			mu.Unlock()
		})
	}
	pool.StopAndWait()

	logger.Info("audit run finished", "success", success, "failure", failure)
	return success, failure, nil
}

// AuditDevice runs the full pipeline for one device. Errors are returned
// in the result, already logged with their kind.
func (o *Orchestrator) AuditDevice(ctx context.Context, dev store.Device) Result {
	log := o.Logger.With("component", "audit", "customer", dev.CustomerID, "device", dev.DeviceID)
	start := time.Now()
	res := Result{CustomerID: dev.CustomerID, DeviceID: dev.DeviceID}

	defer func() {
		res.Duration = time.Since(start)
		if o.Metrics != nil {
			o.Metrics.AuditsRun.Inc()
			o.Metrics.AuditDuration.Observe(res.Duration.Seconds())
			if res.Err != nil {
				o.Metrics.AuditFailures.Inc()
			}
		}
	}()

	fail := func(err error) Result {
		log.Error("audit failed; skipping device", "kind", errors.GetKind(err).String(), "error", err)
		res.Err = err
		res.Summary = err.Error()
		return res
	}

	if ctx.Err() != nil {
		return fail(errors.Wrap(ctx.Err(), errors.KindTimeout, "audit cancelled"))
	}

	creds, err := o.Vault.Get(dev.CustomerID, dev.DeviceID)
	if err != nil {
		return fail(err)
	}

	current, err := o.snapshot(ctx, dev, creds)
	if err != nil {
		return fail(err)
	}

	baseline, err := o.Baselines.Load(dev.CustomerID, dev.DeviceID)
	if err != nil {
		if errors.GetKind(err) == errors.KindBaselineMissing {
			if err := o.Baselines.Save(dev.CustomerID, dev.DeviceID, current); err != nil {
				return fail(err)
			}
			log.Warn("no baseline; snapshot saved as initial reference")
			res.Summary = "initial baseline created"
			return res
		}
		// baseline-unreadable is fatal for this device: never overwrite a
		// reference that may only be unparseable.
		return fail(err)
	}

	report := diff.Compare(baseline, current, nil)
	if !report.HasDrift() {
		log.Info("device compliant; no drift")
		res.Summary = "no drift detected"
		return res
	}

	severity := diff.ClassifySeverity(report)
	log.Warn("drift detected", "severity", severity.String(), "summary", report.Summary())

	payload, err := json.Marshal(map[string]any{
		"diff":       report,
		"vendor":     dev.Vendor,
		"hostname":   current.Hostname,
		"os_version": current.OSVersion,
		"model":      current.Model,
	})
	if err != nil {
		return fail(errors.Wrap(err, errors.KindInternal, "encode incident payload"))
	}

	description := fmt.Sprintf("Drift detected on %s: %s", baseline.Hostname, report.Summary())
	incidentID, err := o.Store.PushIncident(dev.CustomerID, dev.DeviceID,
		severity.String(), store.CategoryConfigurationDrift, description, payload)
	if err != nil {
		return fail(err)
	}
	if o.Metrics != nil {
		o.Metrics.IncidentsPushed.WithLabelValues(severity.String(), store.CategoryConfigurationDrift).Inc()
	}
	if o.OnIncident != nil {
		if inc, err := o.Store.GetIncident(incidentID); err == nil {
			o.OnIncident(inc)
		}
	}
	log.Error("incident registered", "incident_id", incidentID, "severity", severity.String())

	o.archive(dev, baseline, current, report, severity, log)

	res.HasDrift = true
	res.Severity = severity.String()
	res.IncidentID = incidentID
	res.Summary = report.Summary()
	return res
}

// snapshot opens a driver session and collects the running configuration,
// closing the session on every path.
func (o *Orchestrator) snapshot(ctx context.Context, dev store.Device, creds vault.Credential) (schema.DeviceConfig, error) {
	drv, err := driver.ForVendor(dev.Vendor, driver.Credentials{
		Host:     creds.Host,
		Username: creds.Username,
		Password: creds.Password,
		Port:     creds.Port,
	}, driver.Options{TimeoutSeconds: o.DriverTimeout})
	if err != nil {
		return schema.DeviceConfig{}, err
	}
	if aware, ok := drv.(interface{ SetLogger(*logging.Logger) }); ok {
		aware.SetLogger(o.Logger)
	}
	defer drv.Close()

	if err := drv.Open(ctx); err != nil {
		return schema.DeviceConfig{}, err
	}
	return drv.Snapshot(ctx)
}

func (o *Orchestrator) archive(dev store.Device, baseline, current schema.DeviceConfig,
	report *diff.Report, severity diff.Severity, log *logging.Logger) {

	if o.ReportsDir == "" {
		return
	}
	archived := NewReport(dev.CustomerID, dev.DeviceID, baseline, current, report, severity)
	path, err := archived.Archive(o.ReportsDir)
	if err != nil {
		log.Warn("failed to archive audit report", "error", err)
		return
	}
	if err := o.Store.RecordAuditReport(archived.AuditID, dev.CustomerID, dev.DeviceID,
		archived.Severity, archived.DriftSummary, path); err != nil {
		log.Warn("failed to index audit report", "error", err)
	}
}

// CaptureInitialBaseline connects to a just-onboarded device and saves its
// first baseline. An existing baseline is kept untouched; connection
// failures are reported, not raised, since onboarding must not depend on
// the device being reachable.
func (o *Orchestrator) CaptureInitialBaseline(ctx context.Context, dev store.Device, creds vault.Credential) (bool, string) {
	log := o.Logger.With("component", "audit", "customer", dev.CustomerID, "device", dev.DeviceID)

	if o.Baselines.Exists(dev.CustomerID, dev.DeviceID) {
		return true, "baseline already present; kept unchanged"
	}

	cfg, err := o.snapshot(ctx, dev, creds)
	if err != nil {
		log.Warn("could not capture baseline during onboarding", "kind", errors.GetKind(err).String(), "error", err)
		return false, fmt.Sprintf("baseline pending: %v", err)
	}
	if err := o.Baselines.Save(dev.CustomerID, dev.DeviceID, cfg); err != nil {
		log.Warn("could not save onboarding baseline", "error", err)
		return false, fmt.Sprintf("baseline pending: %v", err)
	}
	log.Info("initial baseline captured during onboarding")
	return true, "initial baseline captured"
}
