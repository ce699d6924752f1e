// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Mode)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "X-API-Token", cfg.API.TokenHeader)
	assert.Equal(t, 30, cfg.API.SSEInterval)
	assert.Equal(t, 16, cfg.Audit.Workers)
	assert.True(t, *cfg.Topology.ProbeReachability)
	assert.False(t, cfg.Development())
}

func TestLoadHCLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netvigil.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
mode     = "development"
data_dir = "/var/lib/netvigil"

server {
  host = "127.0.0.1"
  port = 9090
}

log {
  level = "debug"
}

topology {
  workers             = 8
  report_unauthorized = true
  probe_reachability  = false
}
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Development())
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Topology.Workers)
	assert.True(t, cfg.Topology.ReportUnauthorized)
	assert.False(t, *cfg.Topology.ProbeReachability)

	// Unset blocks still get defaults.
	assert.Equal(t, 16, cfg.Audit.Workers)
	assert.Equal(t, "X-API-Token", cfg.API.TokenHeader)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NETVIGIL_HTTP_PORT", "7070")
	t.Setenv("NETVIGIL_API_TOKEN", "tok")
	t.Setenv("NETVIGIL_DB_PATH", "/tmp/alt.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "tok", cfg.API.StaticToken)
	assert.Equal(t, "/tmp/alt.db", cfg.DatabasePath())
}

func TestPathHelpers(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("data", "vault.enc"), filepath.Join(filepath.Base(filepath.Dir(cfg.VaultPath())), filepath.Base(cfg.VaultPath())))
	assert.Contains(t, cfg.BaselinesDir(), "baselines")
	assert.Contains(t, cfg.ReportsDir(), "reports")

	cfg.Audit.ArchiveReports = false
	assert.Empty(t, cfg.ReportsDir())
}

func TestInvalidPort(t *testing.T) {
	t.Setenv("NETVIGIL_HTTP_PORT", "99999")
	_, err := Load("")
	assert.Error(t, err)
}
