// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config loads the service configuration: an HCL file for the
// durable knobs, environment variables for secrets and deployment
// overrides. The vault master key is intentionally absent here — it is
// read by the vault package straight from the environment and never
// stored.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/netvigil/netvigil/internal/errors"
)

// Config is the full service configuration.
type Config struct {
	Mode    string `hcl:"mode,optional"` // "production" or "development"
	DataDir string `hcl:"data_dir,optional"`

	Server   *ServerConfig   `hcl:"server,block"`
	Log      *LogConfig      `hcl:"log,block"`
	API      *APIConfig      `hcl:"api,block"`
	Audit    *AuditConfig    `hcl:"audit,block"`
	Topology *TopologyConfig `hcl:"topology,block"`
}

// ServerConfig is the HTTP listener.
type ServerConfig struct {
	Host string `hcl:"host,optional"`
	Port int    `hcl:"port,optional"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `hcl:"level,optional"`
	Format string `hcl:"format,optional"`
	Dir    string `hcl:"dir,optional"`
}

// APIConfig covers token auth and stream tuning.
type APIConfig struct {
	StaticToken string `hcl:"static_token,optional"`
	TokenHeader string `hcl:"token_header,optional"`
	SecretKey   string `hcl:"secret_key,optional"`
	SSEInterval int    `hcl:"sse_interval,optional"` // default seconds between SSE events
}

// AuditConfig tunes the audit orchestrator.
type AuditConfig struct {
	Workers        int  `hcl:"workers,optional"`
	DriverTimeout  int  `hcl:"driver_timeout,optional"` // seconds
	ArchiveReports bool `hcl:"archive_reports,optional"`
}

// TopologyConfig tunes the topology pipeline.
type TopologyConfig struct {
	Workers            int    `hcl:"workers,optional"`
	OUIDatabase        string `hcl:"oui_database,optional"`
	DNSResolver        string `hcl:"dns_resolver,optional"` // host[:port]; empty disables reverse DNS
	ReportUnauthorized bool   `hcl:"report_unauthorized,optional"`
	ProbeReachability  *bool  `hcl:"probe_reachability,optional"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	probe := true
	return Config{
		Mode:    "production",
		DataDir: "./data",
		Server:  &ServerConfig{Host: "0.0.0.0", Port: 8080},
		Log:     &LogConfig{Level: "info", Format: "text"},
		API:     &APIConfig{TokenHeader: "X-API-Token", SSEInterval: 30},
		Audit: &AuditConfig{
			Workers:        16,
			DriverTimeout:  30,
			ArchiveReports: true,
		},
		Topology: &TopologyConfig{
			Workers:           16,
			ProbeReachability: &probe,
		},
	}
}

// Load reads the HCL file (when path is non-empty and present), fills
// defaults and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Config{}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
				return Config{}, errors.Wrapf(err, errors.KindValidation, "cannot parse config file %s", path)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, errors.Wrapf(err, errors.KindValidation, "cannot read config file %s", path)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return Config{}, errors.Errorf(errors.KindValidation, "server port %d out of range", cfg.Server.Port)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if c.Server == nil {
		c.Server = d.Server
	}
	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Log == nil {
		c.Log = d.Log
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.API == nil {
		c.API = d.API
	}
	if c.API.TokenHeader == "" {
		c.API.TokenHeader = d.API.TokenHeader
	}
	if c.API.SSEInterval == 0 {
		c.API.SSEInterval = d.API.SSEInterval
	}
	if c.Audit == nil {
		c.Audit = d.Audit
	}
	if c.Audit.Workers == 0 {
		c.Audit.Workers = d.Audit.Workers
	}
	if c.Audit.DriverTimeout == 0 {
		c.Audit.DriverTimeout = d.Audit.DriverTimeout
	}
	if c.Topology == nil {
		c.Topology = d.Topology
	}
	if c.Topology.Workers == 0 {
		c.Topology.Workers = d.Topology.Workers
	}
	if c.Topology.ProbeReachability == nil {
		c.Topology.ProbeReachability = d.Topology.ProbeReachability
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("NETVIGIL_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("NETVIGIL_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("NETVIGIL_HTTP_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("NETVIGIL_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("NETVIGIL_LOG_DIR"); v != "" {
		c.Log.Dir = v
	}
	if v := os.Getenv("NETVIGIL_API_TOKEN"); v != "" {
		c.API.StaticToken = v
	}
	if v := os.Getenv("NETVIGIL_SECRET_KEY"); v != "" {
		c.API.SecretKey = v
	}
}

// Development reports whether Mode is "development". It does not gate
// token auth: the API is open whenever no static token is configured.
func (c *Config) Development() bool {
	return c.Mode == "development"
}

// DatabasePath resolves the SQLite file, honoring NETVIGIL_DB_PATH.
func (c *Config) DatabasePath() string {
	if v := os.Getenv("NETVIGIL_DB_PATH"); v != "" {
		return v
	}
	return filepath.Join(c.DataDir, "netvigil.db")
}

// VaultPath resolves the encrypted credential file.
func (c *Config) VaultPath() string {
	return filepath.Join(c.DataDir, "vault.enc")
}

// BaselinesDir resolves the baseline tree.
func (c *Config) BaselinesDir() string {
	return filepath.Join(c.DataDir, "baselines")
}

// ReportsDir resolves the audit report archive, empty when archiving is
// off.
func (c *Config) ReportsDir() string {
	if !c.Audit.ArchiveReports {
		return ""
	}
	return filepath.Join(c.DataDir, "reports")
}

// LogFile resolves the log file path, empty when file logging is off.
func (c *Config) LogFile() string {
	if c.Log.Dir == "" {
		return ""
	}
	return filepath.Join(c.Log.Dir, "netvigil.log")
}
