// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package schema

import (
	"strings"
	"time"

	"github.com/netvigil/netvigil/internal/errors"
	"github.com/netvigil/netvigil/internal/netutil"
)

// ARPEntry correlates L3 to L2: an IP observed against a MAC on a router
// or L3 switch. Sources: "/ip arp print" on RouterOS, ipNetToMediaTable
// over SNMP.
type ARPEntry struct {
	IPAddress  string     `json:"ip_address"`
	MACAddress string     `json:"mac_address"`
	Interface  string     `json:"interface,omitempty"`
	VLANID     int        `json:"vlan_id,omitempty"`
	LastSeen   *time.Time `json:"last_seen,omitempty"`
}

// NewARPEntry validates and normalizes one ARP table row.
func NewARPEntry(ipAddress, macAddress, ifaceName string, vlanID int) (ARPEntry, error) {
	ip := strings.TrimSpace(ipAddress)
	if ip == "" {
		return ARPEntry{}, errors.New(errors.KindSchemaInvalid, "arp entry: ip_address is required")
	}
	mac, err := netutil.NormalizeMAC(macAddress)
	if err != nil {
		return ARPEntry{}, errors.Wrap(err, errors.KindSchemaInvalid, "arp entry: mac_address")
	}
	if vlanID != 0 && (vlanID < 1 || vlanID > 4094) {
		return ARPEntry{}, errors.Errorf(errors.KindSchemaInvalid,
			"arp entry: vlan_id %d out of range [1, 4094]", vlanID)
	}
	return ARPEntry{
		IPAddress:  ip,
		MACAddress: mac,
		Interface:  strings.TrimSpace(ifaceName),
		VLANID:     vlanID,
	}, nil
}

// MACEntry is one bridge/forwarding table row: MAC to physical port and
// VLAN. Sources: "/interface bridge host print" on RouterOS,
// dot1dTpFdbTable over SNMP.
type MACEntry struct {
	MACAddress string     `json:"mac_address"`
	Interface  string     `json:"interface,omitempty"`
	VLANID     int        `json:"vlan_id,omitempty"`
	SwitchPort string     `json:"switch_port,omitempty"`
	VendorOUI  string     `json:"vendor_oui,omitempty"`
	IsLocal    bool       `json:"is_local"`
	LastSeen   *time.Time `json:"last_seen,omitempty"`
}

// RawMACEntry is the driver input form of a MACEntry.
type RawMACEntry struct {
	MACAddress string `json:"mac_address"`
	Interface  string `json:"interface"`
	VLANID     int    `json:"vlan_id"`
	SwitchPort string `json:"switch_port"`
	IsLocal    bool   `json:"is_local"`
}

// NewMACEntry validates and normalizes one bridge host row. The switch
// port defaults to the learning interface when the driver does not report
// it separately.
func NewMACEntry(raw RawMACEntry) (MACEntry, error) {
	mac, err := netutil.NormalizeMAC(raw.MACAddress)
	if err != nil {
		return MACEntry{}, errors.Wrap(err, errors.KindSchemaInvalid, "mac entry: mac_address")
	}
	if raw.VLANID != 0 && (raw.VLANID < 1 || raw.VLANID > 4094) {
		return MACEntry{}, errors.Errorf(errors.KindSchemaInvalid,
			"mac entry: vlan_id %d out of range [1, 4094]", raw.VLANID)
	}
	port := strings.TrimSpace(raw.SwitchPort)
	if port == "" {
		port = strings.TrimSpace(raw.Interface)
	}
	return MACEntry{
		MACAddress: mac,
		Interface:  strings.TrimSpace(raw.Interface),
		VLANID:     raw.VLANID,
		SwitchPort: port,
		IsLocal:    raw.IsLocal,
	}, nil
}

// LLDPNeighbor is a neighbor learned over LLDP, CDP or MNDP.
type LLDPNeighbor struct {
	LocalPort         string `json:"local_port,omitempty"`
	RemoteDevice      string `json:"remote_device,omitempty"`
	RemotePort        string `json:"remote_port,omitempty"`
	RemoteIP          string `json:"remote_ip,omitempty"`
	RemoteMAC         string `json:"remote_mac,omitempty"`
	RemotePlatform    string `json:"remote_platform,omitempty"`
	RemoteDescription string `json:"remote_description,omitempty"`
}

// NewLLDPNeighbor trims and normalizes a neighbor row. An invalid remote
// MAC fails the entry; everything else is optional.
func NewLLDPNeighbor(raw LLDPNeighbor) (LLDPNeighbor, error) {
	n := LLDPNeighbor{
		LocalPort:         strings.TrimSpace(raw.LocalPort),
		RemoteDevice:      strings.TrimSpace(raw.RemoteDevice),
		RemotePort:        strings.TrimSpace(raw.RemotePort),
		RemoteIP:          strings.TrimSpace(raw.RemoteIP),
		RemotePlatform:    strings.TrimSpace(raw.RemotePlatform),
		RemoteDescription: strings.TrimSpace(raw.RemoteDescription),
	}
	if mac := strings.TrimSpace(raw.RemoteMAC); mac != "" {
		normalized, err := netutil.NormalizeMAC(mac)
		if err != nil {
			return LLDPNeighbor{}, errors.Wrap(err, errors.KindSchemaInvalid, "lldp neighbor: remote_mac")
		}
		n.RemoteMAC = normalized
	}
	return n, nil
}

// TopologySnapshot aggregates the raw tables collected from one device.
type TopologySnapshot struct {
	CustomerID    string         `json:"customer_id"`
	DeviceID      string         `json:"device_id"`
	CollectedAt   time.Time      `json:"collected_at"`
	ARPTable      []ARPEntry     `json:"arp_table"`
	MACTable      []MACEntry     `json:"mac_table"`
	LLDPNeighbors []LLDPNeighbor `json:"lldp_neighbors"`
}

// NetworkNode is the correlated L2/L3 view of one asset, keyed by MAC
// within a customer.
type NetworkNode struct {
	MACAddress string     `json:"mac_address"`
	IPAddress  string     `json:"ip_address,omitempty"`
	Hostname   string     `json:"hostname,omitempty"`
	VLANID     int        `json:"vlan_id,omitempty"`
	SwitchPort string     `json:"switch_port,omitempty"`
	VendorOUI  string     `json:"vendor_oui,omitempty"`
	FirstSeen  *time.Time `json:"first_seen,omitempty"`
	LastSeen   *time.Time `json:"last_seen,omitempty"`
	Authorized bool       `json:"authorized"`
}
