// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package audit

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/netvigil/netvigil/internal/errors"
	"github.com/netvigil/netvigil/internal/schema"
)

// Baselines owns the per-device reference configurations stored as
// canonical JSON under <dir>/<customer>/<device>.json. Files are created
// on first successful snapshot and replaced only by explicit operator
// action.
type Baselines struct {
	dir string
}

// NewBaselines binds the store to its directory.
func NewBaselines(dir string) *Baselines {
	return &Baselines{dir: dir}
}

func (b *Baselines) path(customerID, deviceID string) string {
	return filepath.Join(b.dir, customerID, deviceID+".json")
}

// Exists reports whether a baseline file is present.
func (b *Baselines) Exists(customerID, deviceID string) bool {
	info, err := os.Stat(b.path(customerID, deviceID))
	return err == nil && info.Mode().IsRegular()
}

// Load reads and strictly validates a baseline.
//
// A missing file is baseline-missing — the expected state on first audit.
// A present-but-invalid file is baseline-unreadable, which is fatal for
// that device's audit: treating it as missing would overwrite a baseline
// that may merely be unparseable, destroying the reference.
func (b *Baselines) Load(customerID, deviceID string) (schema.DeviceConfig, error) {
	data, err := os.ReadFile(b.path(customerID, deviceID))
	if err != nil {
		if os.IsNotExist(err) {
			return schema.DeviceConfig{}, errors.Errorf(errors.KindBaselineMissing,
				"no baseline for %s/%s", customerID, deviceID)
		}
		return schema.DeviceConfig{}, errors.Wrapf(err, errors.KindBaselineUnreadable,
			"cannot read baseline for %s/%s", customerID, deviceID)
	}

	cfg, err := schema.ParseDeviceConfigJSON(data)
	if err != nil {
		return schema.DeviceConfig{}, errors.Wrapf(err, errors.KindBaselineUnreadable,
			"baseline for %s/%s failed validation", customerID, deviceID)
	}
	return cfg, nil
}

// Save writes a configuration as the device's baseline, atomically.
func (b *Baselines) Save(customerID, deviceID string, cfg schema.DeviceConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "baseline: marshal")
	}

	path := b.path(customerID, deviceID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, errors.KindInternal, "baseline: create directory")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, errors.KindInternal, "baseline: write")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, errors.KindInternal, "baseline: rename")
	}
	return nil
}
