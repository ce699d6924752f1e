// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netutil

import (
	"testing"

	"github.com/netvigil/netvigil/internal/errors"
)

func TestNormalizeMACForms(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"00:0c:29:ab:cd:ef", "00:0C:29:AB:CD:EF"},
		{"00-0C-29-AB-CD-EF", "00:0C:29:AB:CD:EF"},
		{"000C29ABCDEF", "00:0C:29:AB:CD:EF"},
		{"000c.29ab.cdef", "00:0C:29:AB:CD:EF"},
		{"  00:0C:29:AB:CD:EF ", "00:0C:29:AB:CD:EF"},
	}
	for _, tc := range cases {
		got, err := NormalizeMAC(tc.in)
		if err != nil {
			t.Fatalf("NormalizeMAC(%q) returned error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("NormalizeMAC(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeMACIdempotent(t *testing.T) {
	once, err := NormalizeMAC("aa-bb-cc-00-11-22")
	if err != nil {
		t.Fatal(err)
	}
	twice, err := NormalizeMAC(once)
	if err != nil {
		t.Fatal(err)
	}
	if once != twice {
		t.Errorf("normalization not idempotent: %q != %q", once, twice)
	}
}

func TestNormalizeMACInvalid(t *testing.T) {
	for _, in := range []string{"", "00:0C:29", "GG:0C:29:AB:CD:EF", "000C29ABCDEF00"} {
		_, err := NormalizeMAC(in)
		if err == nil {
			t.Errorf("NormalizeMAC(%q) should fail", in)
		}
		if errors.GetKind(err) != errors.KindSchemaInvalid {
			t.Errorf("NormalizeMAC(%q) kind = %v, want schema-invalid", in, errors.GetKind(err))
		}
	}
}

func TestOUIPrefix(t *testing.T) {
	if got := OUIPrefix("aa:bb:cc:00:11:22"); got != "AABBCC" {
		t.Errorf("OUIPrefix = %q, want AABBCC", got)
	}
	if got := OUIPrefix("aabb"); got != "" {
		t.Errorf("OUIPrefix on short input = %q, want empty", got)
	}
}

func TestMACFromHex(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0x001A2B3C4D5E", "00:1A:2B:3C:4D:5E"},
		{"00 1a 2b 3c 4d 5e", "00:1A:2B:3C:4D:5E"},
		{"001A2B3C4D5E", "00:1A:2B:3C:4D:5E"},
		{"garbage", ""},
		{"001A2B", ""},
	}
	for _, tc := range cases {
		if got := MACFromHex(tc.in); got != tc.want {
			t.Errorf("MACFromHex(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeCIDR(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"192.168.1.1/24", "192.168.1.1/24"}, // host part preserved
		{"10.0.0.1", "10.0.0.1/32"},          // default prefix
		{"192.168.88.0/24", "192.168.88.0/24"},
	}
	for _, tc := range cases {
		got, err := NormalizeCIDR(tc.in)
		if err != nil {
			t.Fatalf("NormalizeCIDR(%q) returned error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("NormalizeCIDR(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeCIDRInvalid(t *testing.T) {
	for _, in := range []string{"", "192.168.1.300/24", "192.168.1.1/33", "fe80::1/64", "not-an-ip"} {
		if _, err := NormalizeCIDR(in); err == nil {
			t.Errorf("NormalizeCIDR(%q) should fail", in)
		}
	}
}
