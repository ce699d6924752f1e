// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package driver defines the vendor driver contract: a scoped session that
// is opened, queried and always closed, with typed session errors and
// credential scrubbing at every error boundary.
package driver

import (
	"context"
	"strings"

	"github.com/netvigil/netvigil/internal/errors"
	"github.com/netvigil/netvigil/internal/schema"
)

// Credentials carries what a driver needs to reach a device. The password
// must never appear in logs or error text; use ScrubSecret before
// surfacing any message that might embed it.
type Credentials struct {
	Host     string
	Username string
	Password string
	Port     int
}

// Driver is a scoped device session. Lifecycle: Open, any number of
// operations, Close. Close must run on every exit path and is idempotent;
// operations without an open session fail with not-connected.
type Driver interface {
	Open(ctx context.Context) error
	Snapshot(ctx context.Context) (schema.DeviceConfig, error)
	ARPTable(ctx context.Context) ([]schema.ARPEntry, error)
	MACTable(ctx context.Context) ([]schema.MACEntry, error)
	LLDPNeighbors(ctx context.Context) ([]schema.LLDPNeighbor, error)
	Close() error
}

// Factory builds a driver for one device.
type Factory func(creds Credentials, opts Options) Driver

// Options tunes session behavior.
type Options struct {
	TimeoutSeconds int // connect and per-command bound; default 30
}

var registry = map[string]Factory{}

// Register binds a vendor name to a driver factory. Called from driver
// package init functions.
func Register(vendor string, f Factory) {
	registry[strings.ToLower(vendor)] = f
}

// ForVendor instantiates the driver registered for a vendor.
func ForVendor(vendor string, creds Credentials, opts Options) (Driver, error) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(vendor))]
	if !ok {
		return nil, errors.Errorf(errors.KindValidation, "no driver registered for vendor %q", vendor)
	}
	return f(creds, opts), nil
}

// Vendors lists the registered vendor names.
func Vendors() []string {
	out := make([]string, 0, len(registry))
	for v := range registry {
		out = append(out, v)
	}
	return out
}

// ScrubSecret removes a secret substring from a message before it reaches
// logs or callers. SSH libraries can echo credentials in failure text, so
// this runs at every boundary that owns the password, not in one place.
func ScrubSecret(message, secret string) string {
	if secret == "" {
		return message
	}
	return strings.ReplaceAll(message, secret, "***")
}
