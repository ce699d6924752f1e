// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package schema holds the value types that describe the observed state of
// a network device: interfaces, routes, firewall rules and the aggregate
// DeviceConfig, plus the L2/L3 topology records. Validation and
// normalization live in the constructors; a value that exists is a value
// that passed them.
package schema

import (
	"strconv"
	"strings"
	"time"

	"github.com/netvigil/netvigil/internal/errors"
	"github.com/netvigil/netvigil/internal/netutil"
)

// InterfaceType classifies an interface following RouterOS naming.
type InterfaceType string

const (
	InterfaceEther    InterfaceType = "ether"
	InterfaceWLAN     InterfaceType = "wlan"
	InterfaceBridge   InterfaceType = "bridge"
	InterfaceVLAN     InterfaceType = "vlan"
	InterfaceBonding  InterfaceType = "bonding"
	InterfaceLoopback InterfaceType = "loopback"
	InterfaceTunnel   InterfaceType = "tunnel"
	InterfaceOther    InterfaceType = "other"
)

// ParseInterfaceType maps a raw type string onto the known set. An empty
// string maps to "ether"; anything else unrecognized maps to "other".
func ParseInterfaceType(raw string) InterfaceType {
	switch InterfaceType(strings.ToLower(strings.TrimSpace(raw))) {
	case InterfaceEther, InterfaceWLAN, InterfaceBridge, InterfaceVLAN,
		InterfaceBonding, InterfaceLoopback, InterfaceTunnel:
		return InterfaceType(strings.ToLower(strings.TrimSpace(raw)))
	case "":
		return InterfaceEther
	default:
		return InterfaceOther
	}
}

// Interface is one logical or physical network interface.
type Interface struct {
	Name          string        `json:"name"`
	InterfaceType InterfaceType `json:"interface_type"`
	Enabled       bool          `json:"enabled"`
	Running       *bool         `json:"running,omitempty"`
	MACAddress    string        `json:"mac_address,omitempty"`
	MTU           int           `json:"mtu,omitempty"`
	IPAddresses   []string      `json:"ip_addresses"`
	VLANID        int           `json:"vlan_id,omitempty"`
	VLANInterface string        `json:"vlan_interface,omitempty"`
	Comment       string        `json:"comment,omitempty"`
	Slave         *bool         `json:"slave,omitempty"`
}

// RawInterface is the loosely-typed form produced by drivers and accepted
// from legacy baselines. NewInterface turns it into a validated Interface.
type RawInterface struct {
	Name          string   `json:"name"`
	InterfaceType string   `json:"interface_type"`
	Enabled       *bool    `json:"enabled"`
	Running       *bool    `json:"running"`
	MACAddress    string   `json:"mac_address"`
	MTU           int      `json:"mtu"`
	IPAddresses   []string `json:"ip_addresses"`
	// Legacy single-address form, coerced into IPAddresses.
	IPAddress     string `json:"ip_address"`
	PrefixLen     *int   `json:"prefix_len"`
	VLANID        int    `json:"vlan_id"`
	VLANInterface string `json:"vlan_interface"`
	Comment       string `json:"comment"`
	Slave         *bool  `json:"slave"`
}

// NewInterface validates and normalizes a raw interface.
//
// Invariants enforced here: MAC canonical form, every address valid IPv4
// CIDR with the host part preserved (/32 default), MTU within [68, 65535],
// VLAN ID within [1, 4094], and vlan-typed interfaces must carry a VLAN ID.
func NewInterface(raw RawInterface) (Interface, error) {
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return Interface{}, errors.New(errors.KindSchemaInvalid, "interface: name is required")
	}

	iface := Interface{
		Name:          name,
		InterfaceType: ParseInterfaceType(raw.InterfaceType),
		Enabled:       true,
		Running:       raw.Running,
		VLANInterface: strings.TrimSpace(raw.VLANInterface),
		Comment:       strings.TrimSpace(raw.Comment),
		Slave:         raw.Slave,
	}
	if raw.Enabled != nil {
		iface.Enabled = *raw.Enabled
	}

	if mac := strings.TrimSpace(raw.MACAddress); mac != "" {
		normalized, err := netutil.NormalizeMAC(mac)
		if err != nil {
			return Interface{}, errors.Wrapf(err, errors.KindSchemaInvalid,
				"interface %q: mac_address", name)
		}
		iface.MACAddress = normalized
	}

	if raw.MTU != 0 {
		if raw.MTU < 68 || raw.MTU > 65535 {
			return Interface{}, errors.Errorf(errors.KindSchemaInvalid,
				"interface %q: mtu %d out of range [68, 65535]", name, raw.MTU)
		}
		iface.MTU = raw.MTU
	}

	addrs := raw.IPAddresses
	if len(addrs) == 0 && strings.TrimSpace(raw.IPAddress) != "" {
		// Legacy {ip_address, prefix_len} form.
		entry := strings.TrimSpace(raw.IPAddress)
		if !strings.Contains(entry, "/") && raw.PrefixLen != nil {
			entry = fmtCIDR(entry, *raw.PrefixLen)
		}
		addrs = []string{entry}
	}
	for _, a := range addrs {
		normalized, err := netutil.NormalizeCIDR(a)
		if err != nil {
			return Interface{}, errors.Wrapf(err, errors.KindSchemaInvalid,
				"interface %q: ip_addresses", name)
		}
		iface.IPAddresses = append(iface.IPAddresses, normalized)
	}
	if iface.IPAddresses == nil {
		iface.IPAddresses = []string{}
	}

	if raw.VLANID != 0 {
		if raw.VLANID < 1 || raw.VLANID > 4094 {
			return Interface{}, errors.Errorf(errors.KindSchemaInvalid,
				"interface %q: vlan_id %d out of range [1, 4094]", name, raw.VLANID)
		}
		iface.VLANID = raw.VLANID
	}
	if iface.InterfaceType == InterfaceVLAN && iface.VLANID == 0 {
		return Interface{}, errors.Errorf(errors.KindSchemaInvalid,
			"interface %q is vlan-typed but has no vlan_id", name)
	}

	return iface, nil
}

func fmtCIDR(addr string, prefix int) string {
	return addr + "/" + strconv.Itoa(prefix)
}

// Route is one entry of the device routing table.
type Route struct {
	Destination string `json:"destination"`
	Gateway     string `json:"gateway,omitempty"`
	Interface   string `json:"interface,omitempty"`
	Distance    int    `json:"distance"`
	RouteType   string `json:"route_type"`
}

// RawRoute is the driver/baseline input form of a Route.
type RawRoute struct {
	Destination string `json:"destination"`
	Gateway     string `json:"gateway"`
	Interface   string `json:"interface"`
	Distance    *int   `json:"distance"`
	RouteType   string `json:"route_type"`
}

// NewRoute validates a raw route. Distance defaults to 1 (static) and must
// fit [0, 255].
func NewRoute(raw RawRoute) (Route, error) {
	dst := strings.TrimSpace(raw.Destination)
	if dst == "" {
		return Route{}, errors.New(errors.KindSchemaInvalid, "route: destination is required")
	}
	normalized, err := netutil.NormalizeCIDR(dst)
	if err != nil {
		return Route{}, errors.Wrap(err, errors.KindSchemaInvalid, "route: destination")
	}

	r := Route{
		Destination: normalized,
		Gateway:     strings.TrimSpace(raw.Gateway),
		Interface:   strings.TrimSpace(raw.Interface),
		Distance:    1,
		RouteType:   strings.ToLower(strings.TrimSpace(raw.RouteType)),
	}
	if r.RouteType == "" {
		r.RouteType = "static"
	}
	if raw.Distance != nil {
		if *raw.Distance < 0 || *raw.Distance > 255 {
			return Route{}, errors.Errorf(errors.KindSchemaInvalid,
				"route %s: distance %d out of range [0, 255]", dst, *raw.Distance)
		}
		r.Distance = *raw.Distance
	}
	return r, nil
}

// FirewallRule is a firewall filter/NAT/mangle rule. Two rules compare
// equal only when every field matches; the comment carries the rule's
// semantic identity for drift classification.
type FirewallRule struct {
	Chain      string `json:"chain"`
	Action     string `json:"action"`
	SrcAddress string `json:"src_address,omitempty"`
	DstAddress string `json:"dst_address,omitempty"`
	Protocol   string `json:"protocol,omitempty"`
	SrcPort    string `json:"src_port,omitempty"`
	DstPort    string `json:"dst_port,omitempty"`
	Comment    string `json:"comment,omitempty"`
	Disabled   bool   `json:"disabled"`
}

// RawFirewallRule is the driver/baseline input form of a FirewallRule.
type RawFirewallRule struct {
	Chain      string `json:"chain"`
	Action     string `json:"action"`
	SrcAddress string `json:"src_address"`
	DstAddress string `json:"dst_address"`
	Protocol   string `json:"protocol"`
	SrcPort    string `json:"src_port"`
	DstPort    string `json:"dst_port"`
	Comment    string `json:"comment"`
	Disabled   bool   `json:"disabled"`
}

// NewFirewallRule validates a raw rule. Chain and action are mandatory: a
// rule without a chain has no application context.
func NewFirewallRule(raw RawFirewallRule) (FirewallRule, error) {
	chain := strings.TrimSpace(raw.Chain)
	action := strings.TrimSpace(raw.Action)
	if chain == "" {
		return FirewallRule{}, errors.New(errors.KindSchemaInvalid, "firewall rule: chain is required")
	}
	if action == "" {
		return FirewallRule{}, errors.New(errors.KindSchemaInvalid, "firewall rule: action is required")
	}
	return FirewallRule{
		Chain:      chain,
		Action:     action,
		SrcAddress: strings.TrimSpace(raw.SrcAddress),
		DstAddress: strings.TrimSpace(raw.DstAddress),
		Protocol:   strings.ToLower(strings.TrimSpace(raw.Protocol)),
		SrcPort:    strings.TrimSpace(raw.SrcPort),
		DstPort:    strings.TrimSpace(raw.DstPort),
		Comment:    strings.TrimSpace(raw.Comment),
		Disabled:   raw.Disabled,
	}, nil
}

// DeviceConfig is the aggregate snapshot of a device: either a stored
// baseline or a live collection. Firewall rule order is significant.
type DeviceConfig struct {
	Hostname      string         `json:"hostname"`
	Vendor        string         `json:"vendor"`
	Model         string         `json:"model,omitempty"`
	OSVersion     string         `json:"os_version,omitempty"`
	Interfaces    []Interface    `json:"interfaces"`
	Routes        []Route        `json:"routes"`
	FirewallRules []FirewallRule `json:"firewall_rules"`
	CollectedAt   time.Time      `json:"collected_at"`
}

// NewDeviceConfig builds the aggregate root. Hostname and vendor are
// mandatory; CollectedAt is stamped in UTC when zero.
func NewDeviceConfig(hostname, vendor string) (DeviceConfig, error) {
	hostname = strings.TrimSpace(hostname)
	vendor = strings.ToLower(strings.TrimSpace(vendor))
	if hostname == "" {
		return DeviceConfig{}, errors.New(errors.KindSchemaInvalid, "device config: hostname is required")
	}
	if vendor == "" {
		return DeviceConfig{}, errors.New(errors.KindSchemaInvalid, "device config: vendor is required")
	}
	return DeviceConfig{
		Hostname:      hostname,
		Vendor:        vendor,
		Interfaces:    []Interface{},
		Routes:        []Route{},
		FirewallRules: []FirewallRule{},
		CollectedAt:   time.Now().UTC(),
	}, nil
}
