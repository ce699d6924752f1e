// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netutil

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/netvigil/netvigil/internal/errors"
)

// NormalizeCIDR validates an IPv4 address with optional prefix and returns
// it in host/prefix form. The host address is preserved, never reduced to
// the network address. A missing prefix defaults to /32.
func NormalizeCIDR(raw string) (string, error) {
	entry := strings.TrimSpace(raw)
	if entry == "" {
		return "", errors.New(errors.KindSchemaInvalid, "empty IP/CIDR entry")
	}
	if !strings.Contains(entry, "/") {
		entry += "/32"
	}

	pfx, err := netip.ParsePrefix(entry)
	if err != nil {
		return "", errors.Wrapf(err, errors.KindSchemaInvalid, "invalid IP/CIDR %q", raw)
	}
	if !pfx.Addr().Is4() {
		return "", errors.Errorf(errors.KindSchemaInvalid, "invalid IP/CIDR %q: only IPv4 is supported", raw)
	}
	return fmt.Sprintf("%s/%d", pfx.Addr(), pfx.Bits()), nil
}
