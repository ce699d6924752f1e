// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package vault

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netvigil/netvigil/internal/errors"
	"github.com/netvigil/netvigil/internal/logging"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	t.Setenv(EnvMasterKey, key)

	v, err := Open(filepath.Join(t.TempDir(), "vault.enc"), logging.Nop())
	require.NoError(t, err)
	return v
}

func TestOpenWithoutMasterKey(t *testing.T) {
	t.Setenv(EnvMasterKey, "")
	_, err := Open(filepath.Join(t.TempDir(), "vault.enc"), logging.Nop())
	assert.Equal(t, errors.KindMasterKeyNotFound, errors.GetKind(err))
}

func TestOpenWithInvalidMasterKey(t *testing.T) {
	t.Setenv(EnvMasterKey, "not-base64!!")
	_, err := Open(filepath.Join(t.TempDir(), "vault.enc"), logging.Nop())
	assert.Equal(t, errors.KindMasterKeyNotFound, errors.GetKind(err))
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	v := newTestVault(t)

	cred := Credential{
		Host:     "192.168.88.1",
		Username: "admin",
		Password: "s3cret",
		Port:     22,
	}
	require.NoError(t, v.Save("cliente_a", "borda-01", cred))

	got, err := v.Get("cliente_a", "borda-01")
	require.NoError(t, err)
	assert.Equal(t, cred, got)
}

func TestGetMissing(t *testing.T) {
	v := newTestVault(t)
	require.NoError(t, v.Save("cliente_a", "borda-01", Credential{Host: "h", Username: "u", Password: "p", Port: 22}))

	_, err := v.Get("cliente_b", "borda-01")
	assert.Equal(t, errors.KindCredentialNotFound, errors.GetKind(err))

	_, err = v.Get("cliente_a", "borda-99")
	assert.Equal(t, errors.KindCredentialNotFound, errors.GetKind(err))
}

func TestGetFromMissingFile(t *testing.T) {
	v := newTestVault(t)
	_, err := v.Get("cliente_a", "borda-01")
	assert.Equal(t, errors.KindVaultMissing, errors.GetKind(err))
}

func TestWrongKeyFailsAsCorrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.enc")

	key1, err := GenerateKey()
	require.NoError(t, err)
	t.Setenv(EnvMasterKey, key1)
	v1, err := Open(path, logging.Nop())
	require.NoError(t, err)
	require.NoError(t, v1.Save("cliente_a", "borda-01", Credential{Host: "h", Username: "u", Password: "p", Port: 22}))

	key2, err := GenerateKey()
	require.NoError(t, err)
	t.Setenv(EnvMasterKey, key2)
	v2, err := Open(path, logging.Nop())
	require.NoError(t, err)

	_, err = v2.Get("cliente_a", "borda-01")
	assert.Equal(t, errors.KindVaultCorrupted, errors.GetKind(err))
}

func TestTamperedFileFailsAsCorrupted(t *testing.T) {
	v := newTestVault(t)
	require.NoError(t, v.Save("cliente_a", "borda-01", Credential{Host: "h", Username: "u", Password: "p", Port: 22}))

	data, err := os.ReadFile(v.path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(v.path, data, 0o600))

	_, err = v.Get("cliente_a", "borda-01")
	assert.Equal(t, errors.KindVaultCorrupted, errors.GetKind(err))
}

func TestListCustomersAndDevices(t *testing.T) {
	v := newTestVault(t)
	require.NoError(t, v.Save("cliente_b", "sw-01", Credential{Host: "h", Username: "u", Password: "p", Port: 22}))
	require.NoError(t, v.Save("cliente_a", "borda-01", Credential{Host: "h2", Username: "u", Password: "p", Port: 22}))
	require.NoError(t, v.Save("cliente_a", "borda-02", Credential{Host: "h3", Username: "u", Password: "p", Port: 22}))

	customers, err := v.ListCustomers()
	require.NoError(t, err)
	assert.Equal(t, []string{"cliente_a", "cliente_b"}, customers)

	devices, err := v.ListDevices("cliente_a")
	require.NoError(t, err)
	assert.Equal(t, []string{"borda-01", "borda-02"}, devices)
}

func TestSNMPCommunities(t *testing.T) {
	v := newTestVault(t)
	require.NoError(t, v.Save("cliente_a", "borda-01", Credential{Host: "h", Username: "u", Password: "p", Port: 22, SNMPCommunity: "public"}))
	require.NoError(t, v.Save("cliente_a", "borda-02", Credential{Host: "h2", Username: "u", Password: "p", Port: 22}))

	communities, err := v.SNMPCommunities()
	require.NoError(t, err)
	assert.Equal(t, map[[2]string]string{{"cliente_a", "borda-01"}: "public"}, communities)
}

func TestVaultFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions only")
	}
	v := newTestVault(t)
	require.NoError(t, v.Save("cliente_a", "borda-01", Credential{Host: "h", Username: "u", Password: "p", Port: 22}))

	info, err := os.Stat(v.path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
