// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package snmp collects topology tables over SNMPv2c. It is the fallback
// path when a device's CLI cannot provide them, and the probe path for
// reachability checks.
package snmp

import (
	"context"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/netvigil/netvigil/internal/errors"
	"github.com/netvigil/netvigil/internal/logging"
	"github.com/netvigil/netvigil/internal/netutil"
	"github.com/netvigil/netvigil/internal/schema"
)

// Standard OIDs for the topology tables.
const (
	OIDARPTable  = "1.3.6.1.2.1.4.22"   // ipNetToMediaTable
	OIDMACTable  = "1.3.6.1.2.1.17.4.3" // dot1dTpFdbTable
	OIDLLDPRem   = "1.0.8802.1.1.2.1.4" // lldpRemTable
	OIDSysDescr  = "1.3.6.1.2.1.1.1.0"  // sysDescr.0
	oidARPPhys   = ".4.22.1.2."         // ipNetToMediaPhysAddress column
	oidFdbAddr   = ".17.4.3.1.1."       // dot1dTpFdbAddress column
	oidLLDPName  = ".1.4.1.9."          // lldpRemSysName
	oidLLDPPort  = ".1.4.1.7."          // lldpRemPortId
	oidLLDPDescr = ".1.4.1.10."         // lldpRemSysDesc
)

// Collector walks SNMP tables with bounded row counts and timeouts.
type Collector struct {
	Port    int
	Timeout time.Duration
	MaxRows int
	logger  *logging.Logger
}

// NewCollector builds a collector with the default bounds: port 161, 2s
// per request, 5000 rows per walk.
func NewCollector(logger *logging.Logger) *Collector {
	return &Collector{
		Port:    161,
		Timeout: 2 * time.Second,
		MaxRows: 5000,
		logger:  logger.With("component", "snmp"),
	}
}

type pdu struct {
	oid   string
	value string
}

// walk runs a GETNEXT walk from a base OID, stopping at the row cap.
func (c *Collector) walk(ctx context.Context, host, community, baseOID string) ([]pdu, error) {
	client := &gosnmp.GoSNMP{
		Target:    host,
		Port:      uint16(c.Port),
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   c.Timeout,
		Retries:   1,
		Context:   ctx,
	}
	if err := client.Connect(); err != nil {
		return nil, errors.Wrapf(err, errors.KindConnection, "snmp connect to %s failed", host)
	}
	defer client.Conn.Close()

	var results []pdu
	err := client.Walk(baseOID, func(p gosnmp.SnmpPDU) error {
		if len(results) >= c.MaxRows {
			return errors.Errorf(errors.KindValidation, "row cap reached")
		}
		results = append(results, pdu{oid: p.Name, value: pduString(p)})
		return nil
	})
	if err != nil && len(results) == 0 {
		return nil, errors.Wrapf(err, errors.KindConnection, "snmp walk %s on %s failed", baseOID, host)
	}
	c.logger.Debug("snmp walk finished", "host", host, "oid", baseOID, "rows", len(results))
	return results, nil
}

func pduString(p gosnmp.SnmpPDU) string {
	switch v := p.Value.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return gosnmp.ToBigInt(p.Value).String()
	}
}

// ARPTable walks ipNetToMediaTable. The instance suffix of the phys
// address column carries the IP: ...1.2.<ifIndex>.<a>.<b>.<c>.<d> = MAC.
func (c *Collector) ARPTable(ctx context.Context, host, community string) ([]schema.ARPEntry, error) {
	raw, err := c.walk(ctx, host, community, OIDARPTable)
	if err != nil {
		return nil, err
	}

	var entries []schema.ARPEntry
	for _, p := range raw {
		if !strings.Contains(p.oid, oidARPPhys) {
			continue
		}
		parts := strings.Split(p.oid, ".")
		if len(parts) < 4 {
			continue
		}
		ip := strings.Join(parts[len(parts)-4:], ".")
		mac := macFromValue(p.value)
		if mac == "" || ip == "" {
			continue
		}
		entry, err := schema.NewARPEntry(ip, mac, "", 0)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	c.logger.Info("snmp arp collected", "host", host, "entries", len(entries))
	return entries, nil
}

// MACTable walks dot1dTpFdbTable for learned MAC addresses.
func (c *Collector) MACTable(ctx context.Context, host, community string) ([]schema.MACEntry, error) {
	raw, err := c.walk(ctx, host, community, OIDMACTable)
	if err != nil {
		return nil, err
	}

	var entries []schema.MACEntry
	for _, p := range raw {
		if !strings.Contains(p.oid, oidFdbAddr) {
			continue
		}
		mac := macFromValue(p.value)
		if mac == "" {
			continue
		}
		entry, err := schema.NewMACEntry(schema.RawMACEntry{MACAddress: mac})
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	c.logger.Info("snmp mac collected", "host", host, "entries", len(entries))
	return entries, nil
}

// LLDPNeighbors walks lldpRemTable and groups sub-columns by remote index.
func (c *Collector) LLDPNeighbors(ctx context.Context, host, community string) ([]schema.LLDPNeighbor, error) {
	raw, err := c.walk(ctx, host, community, OIDLLDPRem)
	if err != nil {
		return nil, err
	}

	remote := map[string]*schema.LLDPNeighbor{}
	var order []string
	get := func(key string) *schema.LLDPNeighbor {
		if n, ok := remote[key]; ok {
			return n
		}
		n := &schema.LLDPNeighbor{}
		remote[key] = n
		order = append(order, key)
		return n
	}

	for _, p := range raw {
		parts := strings.Split(p.oid, ".")
		if len(parts) < 3 {
			continue
		}
		key := strings.Join(parts[len(parts)-3:], ".")
		switch {
		case strings.Contains(p.oid, oidLLDPName):
			get(key).RemoteDevice = p.value
		case strings.Contains(p.oid, oidLLDPPort):
			get(key).RemotePort = p.value
		case strings.Contains(p.oid, oidLLDPDescr):
			get(key).RemoteDescription = p.value
		}
	}

	var neighbors []schema.LLDPNeighbor
	for _, key := range order {
		n, err := schema.NewLLDPNeighbor(*remote[key])
		if err != nil {
			continue
		}
		neighbors = append(neighbors, n)
	}
	c.logger.Info("snmp lldp collected", "host", host, "neighbors", len(neighbors))
	return neighbors, nil
}

// SysDescr issues a single GET of sysDescr.0, the cheapest liveness probe
// an SNMP agent answers.
func (c *Collector) SysDescr(ctx context.Context, host, community string) (bool, error) {
	client := &gosnmp.GoSNMP{
		Target:    host,
		Port:      uint16(c.Port),
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   c.Timeout,
		Retries:   0,
		Context:   ctx,
	}
	if err := client.Connect(); err != nil {
		return false, errors.Wrapf(err, errors.KindConnection, "snmp connect to %s failed", host)
	}
	defer client.Conn.Close()

	result, err := client.Get([]string{OIDSysDescr})
	if err != nil {
		return false, nil
	}
	return result.Error == gosnmp.NoError && len(result.Variables) > 0, nil
}

// macFromValue accepts either a raw 6-byte OCTET STRING or a printable
// hex form and returns the canonical MAC.
func macFromValue(v string) string {
	if len(v) == 6 {
		b := []byte(v)
		hex := make([]byte, 0, 12)
		const digits = "0123456789ABCDEF"
		for _, x := range b {
			hex = append(hex, digits[x>>4], digits[x&0xf])
		}
		return netutil.MACFromHex(string(hex))
	}
	return netutil.MACFromHex(v)
}
