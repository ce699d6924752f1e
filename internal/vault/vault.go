// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package vault stores device credentials encrypted at rest. The plaintext
// is a JSON tree {customer_id: {device_id: credential}}; on disk there is
// a single AES-256-GCM blob. The master key lives exclusively in the
// process environment and is never written anywhere by this package.
//
// Log lines name customers and devices, never credential values.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/netvigil/netvigil/internal/errors"
	"github.com/netvigil/netvigil/internal/logging"
)

// EnvMasterKey is the environment variable holding the base64-encoded
// 32-byte master key.
const EnvMasterKey = "NETVIGIL_MASTER_KEY"

// Credential is one device's access material.
type Credential struct {
	Host          string `json:"host"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	Port          int    `json:"port"`
	Token         string `json:"token,omitempty"`
	SNMPCommunity string `json:"snmp_community,omitempty"`
}

type tree map[string]map[string]Credential

// Vault is the encrypted credential store. Save rewrites the whole file;
// concurrent writers are serialized through the internal mutex.
type Vault struct {
	mu     sync.Mutex
	path   string
	aead   cipher.AEAD
	logger *logging.Logger
}

// Open loads the master key from the environment and binds the vault to
// its on-disk file. The file itself may not exist yet; Get fails with
// vault-missing until the first Save.
func Open(path string, logger *logging.Logger) (*Vault, error) {
	key, err := masterKeyFromEnv()
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "vault: cipher init")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "vault: gcm init")
	}
	return &Vault{path: path, aead: aead, logger: logger.With("component", "vault")}, nil
}

func masterKeyFromEnv() ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(EnvMasterKey))
	if raw == "" {
		return nil, errors.Errorf(errors.KindMasterKeyNotFound,
			"environment variable %s is not set; the credential vault cannot operate without a master key", EnvMasterKey)
	}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.URLEncoding,
		base64.RawStdEncoding, base64.RawURLEncoding,
	} {
		if key, err := enc.DecodeString(raw); err == nil && len(key) == 32 {
			return key, nil
		}
	}
	return nil, errors.Errorf(errors.KindMasterKeyNotFound,
		"%s does not contain a valid base64-encoded 32-byte key", EnvMasterKey)
}

// GenerateKey returns a fresh base64 master key suitable for EnvMasterKey.
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", errors.Wrap(err, errors.KindInternal, "vault: key generation")
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Save merges a credential into the tree and rewrites the ciphertext file
// atomically with owner-only permissions.
func (v *Vault) Save(customerID, deviceID string, cred Credential) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := v.load()
	if err != nil {
		if errors.GetKind(err) != errors.KindVaultMissing {
			return err
		}
		data = tree{}
	}

	if data[customerID] == nil {
		data[customerID] = map[string]Credential{}
	}
	data[customerID][deviceID] = cred

	if err := v.store(data); err != nil {
		return err
	}
	v.logger.Info("credential saved", "customer", customerID, "device", deviceID)
	return nil
}

// Get decrypts the vault in memory and returns one device's credential.
func (v *Vault) Get(customerID, deviceID string) (Credential, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := v.load()
	if err != nil {
		return Credential{}, err
	}
	devices, ok := data[customerID]
	if !ok {
		v.logger.Error("customer not found in vault", "customer", customerID)
		return Credential{}, errors.Errorf(errors.KindCredentialNotFound,
			"customer %q not found in vault", customerID)
	}
	cred, ok := devices[deviceID]
	if !ok {
		v.logger.Error("device not found in vault", "customer", customerID, "device", deviceID)
		return Credential{}, errors.Errorf(errors.KindCredentialNotFound,
			"device %q not found for customer %q", deviceID, customerID)
	}
	return cred, nil
}

// ListCustomers returns the customer IDs present in the vault, sorted.
func (v *Vault) ListCustomers() ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := v.load()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(data))
	for c := range data {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// ListDevices returns the device IDs stored for a customer, sorted.
func (v *Vault) ListDevices(customerID string) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := v.load()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(data[customerID]))
	for d := range data[customerID] {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

// SNMPCommunities returns {(customer, device): community} for every device
// that has one configured. Used by the topology collectors and the
// reachability probe; never exposes anything beyond the community string.
func (v *Vault) SNMPCommunities() (map[[2]string]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := v.load()
	if err != nil {
		return nil, err
	}
	out := map[[2]string]string{}
	for customer, devices := range data {
		for device, cred := range devices {
			if cred.SNMPCommunity != "" {
				out[[2]string{customer, device}] = cred.SNMPCommunity
			}
		}
	}
	return out, nil
}

// Exists reports whether the vault file is present on disk.
func (v *Vault) Exists() bool {
	info, err := os.Stat(v.path)
	return err == nil && info.Mode().IsRegular()
}

func (v *Vault) load() (tree, error) {
	ciphertext, err := os.ReadFile(v.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf(errors.KindVaultMissing, "vault file %s does not exist", v.path)
		}
		return nil, errors.Wrap(err, errors.KindInternal, "vault: read")
	}

	if len(ciphertext) < v.aead.NonceSize() {
		return nil, errors.New(errors.KindVaultCorrupted, "vault file is truncated")
	}
	nonce, sealed := ciphertext[:v.aead.NonceSize()], ciphertext[v.aead.NonceSize():]

	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		v.logger.Error("vault decryption failed; wrong master key or corrupted file", "path", v.path)
		return nil, errors.Wrap(err, errors.KindVaultCorrupted,
			"cannot decrypt vault; the master key may be wrong or the file corrupted")
	}

	var data tree
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, errors.Wrap(err, errors.KindVaultCorrupted,
			"vault decrypted but its JSON payload is corrupted")
	}
	return data, nil
}

// store encrypts and writes the tree. A fresh random nonce is prepended to
// the ciphertext. The write goes through a temp file and an atomic rename,
// with permissions restricted to the owner where the OS supports it.
func (v *Vault) store(data tree) error {
	plaintext, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "vault: marshal")
	}

	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return errors.Wrap(err, errors.KindInternal, "vault: nonce")
	}
	ciphertext := v.aead.Seal(nonce, nonce, plaintext, nil)

	dir := filepath.Dir(v.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, errors.KindInternal, "vault: create directory")
	}

	tmp := v.path + ".tmp"
	if err := os.WriteFile(tmp, ciphertext, 0o600); err != nil {
		return errors.Wrap(err, errors.KindInternal, "vault: write temp file")
	}
	if err := os.Chmod(tmp, 0o600); err != nil {
		// chmod is best-effort on platforms without Unix permissions
		v.logger.Debug("chmod 0600 not supported", "path", tmp)
	}
	if err := os.Rename(tmp, v.path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, errors.KindInternal, "vault: rename")
	}
	return nil
}
