// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netvigil/netvigil/internal/audit"
	"github.com/netvigil/netvigil/internal/config"
	"github.com/netvigil/netvigil/internal/devices"
	"github.com/netvigil/netvigil/internal/logging"
	"github.com/netvigil/netvigil/internal/overview"
	"github.com/netvigil/netvigil/internal/store"
	"github.com/netvigil/netvigil/internal/vault"
)

type testEnv struct {
	server *Server
	store  *store.Store
	vault  *vault.Vault
}

func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()

	key, err := vault.GenerateKey()
	require.NoError(t, err)
	t.Setenv(vault.EnvMasterKey, key)

	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	v, err := vault.Open(filepath.Join(dir, "vault.enc"), logging.Nop())
	require.NoError(t, err)

	cfg := config.Default()
	cfg.API.StaticToken = token
	cfg.DataDir = dir

	logger := logging.Nop()
	srv := NewServer(Options{
		Config: cfg,
		Logger: logger,
		Store:  st,
		Vault:  v,
		Overview: &overview.Service{
			Store:  st,
			Vault:  v,
			Logger: logger,
		},
		Devices: &devices.Service{
			Store:     st,
			Vault:     v,
			Baselines: audit.NewBaselines(filepath.Join(dir, "baselines")),
			Logger:    logger,
		},
	})
	return &testEnv{server: srv, store: st, vault: v}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func TestPing(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/health/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestTokenMiddleware(t *testing.T) {
	env := newTestEnv(t, "sekrit")

	// Missing header.
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/devices/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong token.
	req := httptest.NewRequest(http.MethodGet, "/devices/", nil)
	req.Header.Set("X-API-Token", "wrong")
	rec = env.do(t, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Right token.
	req = httptest.NewRequest(http.MethodGet, "/devices/", nil)
	req.Header.Set("X-API-Token", "sekrit")
	rec = env.do(t, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDevelopmentModeWithoutToken(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/devices/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOverviewBundleKeys(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/health/api/overview", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var bundle map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	for _, key := range []string{"devices", "incidents", "remediation", "slo", "recent_incidents"} {
		assert.Contains(t, bundle, key)
	}

	var devKPIs map[string]int
	require.NoError(t, json.Unmarshal(bundle["devices"], &devKPIs))
	for _, key := range []string{"total", "healthy", "with_incident", "warning"} {
		assert.Contains(t, devKPIs, key)
	}
}

func TestOverviewHTMLByAccept(t *testing.T) {
	env := newTestEnv(t, "")
	req := httptest.NewRequest(http.MethodGet, "/health/overview", nil)
	req.Header.Set("Accept", "text/html")
	rec := env.do(t, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestClampInterval(t *testing.T) {
	assert.Equal(t, 5, clampInterval(1))
	assert.Equal(t, 5, clampInterval(5))
	assert.Equal(t, 30, clampInterval(30))
	assert.Equal(t, 300, clampInterval(300))
	assert.Equal(t, 300, clampInterval(9999))
	assert.Equal(t, 5, clampInterval(-10))
}

func TestSSEFraming(t *testing.T) {
	env := newTestEnv(t, "")
	ts := httptest.NewServer(env.server.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/health/stream?interval=9999", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	buf := make([]byte, 4096)
	var body strings.Builder
	for body.Len() < 40 {
		n, err := resp.Body.Read(buf)
		body.Write(buf[:n])
		if err != nil {
			break
		}
		if strings.Contains(body.String(), ": heartbeat") {
			break
		}
	}

	got := body.String()
	assert.True(t, strings.HasPrefix(got, "retry: 5000\n\n"))
	assert.Contains(t, got, "data: ")
	assert.Contains(t, got, ": heartbeat")
}

func onboardForm() url.Values {
	return url.Values{
		"customer": {"cliente_a"},
		"device":   {"borda-01"},
		"vendor":   {"mikrotik"},
		"host":     {"192.168.88.1"},
		"port":     {"22"},
		"username": {"admin"},
		"password": {"s3cret"},
	}
}

func postForm(t *testing.T, env *testEnv, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return env.do(t, req)
}

func TestOnboardCreatesInventoryAndVault(t *testing.T) {
	env := newTestEnv(t, "")
	rec := postForm(t, env, "/devices/onboard", onboardForm())
	require.Equal(t, http.StatusCreated, rec.Code)

	dev, err := env.store.GetDevice("cliente_a", "borda-01")
	require.NoError(t, err)
	assert.True(t, dev.Active)

	cred, err := env.vault.Get("cliente_a", "borda-01")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cred.Password)
}

func TestOnboardDuplicateIsRejected(t *testing.T) {
	env := newTestEnv(t, "")
	require.Equal(t, http.StatusCreated, postForm(t, env, "/devices/onboard", onboardForm()).Code)

	rec := postForm(t, env, "/devices/onboard", onboardForm())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestOnboardRollsBackInventoryOnVaultFailure(t *testing.T) {
	env := newTestEnv(t, "")

	// Break the vault: its parent directory path is occupied by a file,
	// so the encrypted write cannot land.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "occupied")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	v, err := vault.Open(filepath.Join(blocker, "vault.enc"), logging.Nop())
	require.NoError(t, err)
	env.server.vault = v

	rec := postForm(t, env, "/devices/onboard", onboardForm())
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	// The inventory row must have been rolled back.
	_, err = env.store.GetDevice("cliente_a", "borda-01")
	require.Error(t, err)
}

func TestToggleActive(t *testing.T) {
	env := newTestEnv(t, "")
	require.Equal(t, http.StatusCreated, postForm(t, env, "/devices/onboard", onboardForm()).Code)

	rec := postForm(t, env, "/devices/toggle-active", url.Values{
		"customer_id": {"cliente_a"},
		"device_id":   {"borda-01"},
		"active":      {"0"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	dev, err := env.store.GetDevice("cliente_a", "borda-01")
	require.NoError(t, err)
	assert.False(t, dev.Active)
}

func TestIncidentListAndDetail(t *testing.T) {
	env := newTestEnv(t, "")
	id, err := env.store.PushIncident("cliente_a", "borda-01", "HIGH",
		store.CategoryVLANDrift, "vlan drift", json.RawMessage(`{"found_vlan":20}`))
	require.NoError(t, err)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/incidents/?severity=HIGH", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Incidents []store.Incident `json:"incidents"`
		Total     int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/incidents/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var detail map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.EqualValues(t, id, detail["id"])
	payload, ok := detail["payload"].(map[string]any)
	require.True(t, ok, "payload must be decoded JSON")
	assert.EqualValues(t, 20, payload["found_vlan"])

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/incidents/9999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrphanPurgeRequiresConfirmAndToken(t *testing.T) {
	env := newTestEnv(t, "admintok")
	_, err := env.store.PushIncident("cliente_a", "ghost", "LOW",
		store.CategoryConfigurationDrift, "orphan", nil)
	require.NoError(t, err)

	withToken := func(form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/admin/orphan-incidents/purge", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-API-Token", "admintok")
		return env.do(t, req)
	}

	// Wrong admin token.
	rec := withToken(url.Values{"admin_token": {"nope"}, "confirm": {"yes"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Missing confirmation.
	rec = withToken(url.Values{"admin_token": {"admintok"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Both present.
	rec = withToken(url.Values{"admin_token": {"admintok"}, "confirm": {"yes"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.EqualValues(t, 1, out["deleted"])
}

func TestTopologyAuthorize(t *testing.T) {
	env := newTestEnv(t, "")

	// Missing parameters.
	rec := postForm(t, env, "/topology/authorize", url.Values{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown node.
	rec = postForm(t, env, "/topology/authorize", url.Values{
		"customer_id": {"cliente_a"},
		"mac_address": {"AA:BB:CC:00:11:22"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTopologyGraphDataRequiresCustomer(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/topology/graph-data", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemediationStubs(t *testing.T) {
	env := newTestEnv(t, "")
	id, err := env.store.PushIncident("cliente_a", "borda-01", "HIGH",
		store.CategoryConfigurationDrift, "drift", nil)
	require.NoError(t, err)

	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/incidents/1/remediation/api/suggest", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	var suggestion map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &suggestion))
	assert.EqualValues(t, id, suggestion["incident_id"])
	assert.Equal(t, "em_analise", suggestion["status"])

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/incidents/1/remediation/api/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Unknown incident.
	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/incidents/42/remediation/api/suggest", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
