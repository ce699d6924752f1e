// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// netvigild is the drift auditor daemon and its operator CLI.
//
//	netvigild serve            run the HTTP service
//	netvigild audit            audit the fleet once
//	netvigild topology-scan    scan the fleet topology once
//	netvigild vault <cmd>      manage the credential vault
//	netvigild import -file     seed the inventory from a YAML file
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/netvigil/netvigil/internal/api"
	"github.com/netvigil/netvigil/internal/audit"
	"github.com/netvigil/netvigil/internal/config"
	"github.com/netvigil/netvigil/internal/devices"
	"github.com/netvigil/netvigil/internal/logging"
	"github.com/netvigil/netvigil/internal/metrics"
	"github.com/netvigil/netvigil/internal/overview"
	"github.com/netvigil/netvigil/internal/reachability"
	"github.com/netvigil/netvigil/internal/snmp"
	"github.com/netvigil/netvigil/internal/store"
	"github.com/netvigil/netvigil/internal/topology"
	"github.com/netvigil/netvigil/internal/vault"

	_ "github.com/netvigil/netvigil/internal/driver/mikrotik"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	command := "serve"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "serve":
		return cmdServe(args)
	case "audit":
		return cmdAudit(args)
	case "topology-scan":
		return cmdTopologyScan(args)
	case "vault":
		return cmdVault(args)
	case "import":
		return cmdImport(args)
	case "help", "-h", "--help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: netvigild <command> [flags]

commands:
  serve           run the HTTP service (default)
  audit           run one fleet configuration audit
  topology-scan   run one fleet topology scan
  vault           manage the credential vault (generate-key, set, list)
  import          seed the inventory from a YAML file`)
}

// app bundles everything the subcommands share.
type app struct {
	cfg     config.Config
	logger  *logging.Logger
	store   *store.Store
	vault   *vault.Vault
	metrics *metrics.Metrics
	auditor *audit.Orchestrator
	topo    *topology.Orchestrator
	prober  *reachability.Prober
}

func buildApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.LogFile(),
	})

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}

	v, err := vault.Open(cfg.VaultPath(), logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	m := metrics.New()
	snmpCollector := snmp.NewCollector(logger)
	prober := reachability.NewProber(snmpCollector, logger)

	oui, err := topology.LoadOUIDB(cfg.Topology.OUIDatabase)
	if err != nil {
		logger.Warn("failed to load OUI database; vendor lookup disabled", "error", err)
		oui, _ = topology.LoadOUIDB("")
	}

	auditor := &audit.Orchestrator{
		Store:         st,
		Vault:         v,
		Baselines:     audit.NewBaselines(cfg.BaselinesDir()),
		Logger:        logger,
		Metrics:       m,
		ReportsDir:    cfg.ReportsDir(),
		Workers:       cfg.Audit.Workers,
		DriverTimeout: cfg.Audit.DriverTimeout,
	}

	topo := &topology.Orchestrator{
		Store:              st,
		Vault:              v,
		SNMP:               snmpCollector,
		OUI:                oui,
		Resolver:           topology.NewResolver(cfg.Topology.DNSResolver),
		Logger:             logger,
		Metrics:            m,
		Workers:            cfg.Topology.Workers,
		DriverTimeout:      cfg.Audit.DriverTimeout,
		ReportUnauthorized: cfg.Topology.ReportUnauthorized,
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		vault:   v,
		metrics: m,
		auditor: auditor,
		topo:    topo,
		prober:  prober,
	}, nil
}

func (a *app) close() {
	a.store.Close()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "netvigil.hcl", "path to the HCL configuration file")
	fs.Parse(args)

	a, err := buildApp(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	probe := *a.cfg.Topology.ProbeReachability
	server := api.NewServer(api.Options{
		Config: a.cfg,
		Logger: a.logger,
		Store:  a.store,
		Vault:  a.vault,
		Overview: &overview.Service{
			Store:             a.store,
			Vault:             a.vault,
			Prober:            a.prober,
			Logger:            a.logger,
			ProbeReachability: probe,
		},
		Devices: &devices.Service{
			Store:             a.store,
			Vault:             a.vault,
			Baselines:         audit.NewBaselines(a.cfg.BaselinesDir()),
			Prober:            a.prober,
			Logger:            a.logger,
			ProbeReachability: probe,
		},
		Auditor:  a.auditor,
		Topology: a.topo,
		Metrics:  a.metrics,
	})

	ctx, cancel := signalContext()
	defer cancel()
	return server.Start(ctx)
}

func cmdAudit(args []string) error {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	configPath := fs.String("config", "netvigil.hcl", "path to the HCL configuration file")
	customer := fs.String("customer", "", "audit only this customer")
	fs.Parse(args)

	a, err := buildApp(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	success, failure, err := a.auditor.Run(ctx, *customer)
	if err != nil {
		return err
	}
	fmt.Printf("audit finished: %d succeeded, %d failed\n", success, failure)
	return nil
}

func cmdTopologyScan(args []string) error {
	fs := flag.NewFlagSet("topology-scan", flag.ExitOnError)
	configPath := fs.String("config", "netvigil.hcl", "path to the HCL configuration file")
	customer := fs.String("customer", "", "scan only this customer")
	fs.Parse(args)

	a, err := buildApp(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	summary, err := a.topo.Scan(ctx, *customer)
	if err != nil {
		return err
	}
	fmt.Printf("topology scan finished: %d devices, %d nodes, %d drifts\n",
		summary.DevicesScanned, summary.NodesDiscovered, summary.Drifts)
	return nil
}
