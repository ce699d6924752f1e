// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netutil

import (
	"strings"

	"github.com/netvigil/netvigil/internal/errors"
)

// NormalizeMAC canonicalizes a MAC address to XX:XX:XX:XX:XX:XX upper-hex.
// Accepts colon, dash and dot separated forms as well as bare hex.
// Normalization is idempotent.
func NormalizeMAC(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ':', '-', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	cleaned = strings.ToUpper(cleaned)

	if len(cleaned) != 12 {
		return "", errors.Errorf(errors.KindSchemaInvalid,
			"invalid MAC address %q: expected 12 hex digits", raw)
	}
	for _, r := range cleaned {
		if !isHex(r) {
			return "", errors.Errorf(errors.KindSchemaInvalid,
				"invalid MAC address %q: non-hex character %q", raw, r)
		}
	}

	var b strings.Builder
	b.Grow(17)
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(cleaned[i : i+2])
	}
	return b.String(), nil
}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F')
}

// OUIPrefix returns the first six hex digits of a MAC, the IEEE
// organizationally unique identifier, without separators.
func OUIPrefix(mac string) string {
	cleaned := strings.ToUpper(strings.NewReplacer(":", "", "-", "", ".", "").Replace(mac))
	if len(cleaned) < 6 {
		return ""
	}
	return cleaned[:6]
}

// MACFromHex converts an SNMP-style hex string (e.g. "0x001A2B3C4D5E" or
// "00 1A 2B 3C 4D 5E") into canonical MAC form. Returns "" when the input
// does not contain exactly twelve hex digits.
func MACFromHex(raw string) string {
	var hex strings.Builder
	for _, r := range strings.TrimPrefix(strings.TrimSpace(raw), "0x") {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F':
			hex.WriteRune(r)
		case r >= 'a' && r <= 'f':
			hex.WriteRune(r - 'a' + 'A')
		}
	}
	if hex.Len() != 12 {
		return ""
	}
	s := hex.String()
	out := make([]string, 0, 6)
	for i := 0; i < 12; i += 2 {
		out = append(out, s[i:i+2])
	}
	return strings.Join(out, ":")
}
