// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package topology

import (
	"context"

	"github.com/netvigil/netvigil/internal/driver"
	"github.com/netvigil/netvigil/internal/logging"
	"github.com/netvigil/netvigil/internal/schema"
	"github.com/netvigil/netvigil/internal/snmp"
)

// RawTables is the collection result for one device.
type RawTables struct {
	ARP  []schema.ARPEntry
	MAC  []schema.MACEntry
	LLDP []schema.LLDPNeighbor
}

// CollectFromDriver gathers ARP, MAC and LLDP through an open driver
// session, falling back to SNMP per table when the CLI returns nothing or
// fails. An empty community disables the fallback for that device.
func CollectFromDriver(ctx context.Context, customerID, deviceID, host string,
	dev driver.Driver, snmpCollector *snmp.Collector, community string,
	logger *logging.Logger) RawTables {

	log := logger.With("customer", customerID, "device", deviceID)
	var tables RawTables

	arp, err := dev.ARPTable(ctx)
	if err != nil {
		log.Warn("arp via cli failed", "error", err)
	} else {
		tables.ARP = arp
	}
	if len(tables.ARP) == 0 && community != "" {
		if arp, err := snmpCollector.ARPTable(ctx, host, community); err != nil {
			log.Warn("arp via snmp failed", "error", err)
		} else {
			tables.ARP = arp
		}
	}

	mac, err := dev.MACTable(ctx)
	if err != nil {
		log.Warn("mac via cli failed", "error", err)
	} else {
		tables.MAC = mac
	}
	if len(tables.MAC) == 0 && community != "" {
		if mac, err := snmpCollector.MACTable(ctx, host, community); err != nil {
			log.Warn("mac via snmp failed", "error", err)
		} else {
			tables.MAC = mac
		}
	}

	lldp, err := dev.LLDPNeighbors(ctx)
	if err != nil {
		log.Warn("lldp via cli failed", "error", err)
	} else {
		tables.LLDP = lldp
	}
	if len(tables.LLDP) == 0 && community != "" {
		if lldp, err := snmpCollector.LLDPNeighbors(ctx, host, community); err != nil {
			log.Warn("lldp via snmp failed", "error", err)
		} else {
			tables.LLDP = lldp
		}
	}

	return tables
}

// CollectViaSNMP gathers all three tables over SNMP only. Used when the
// device session itself could not be opened but a community exists.
func CollectViaSNMP(ctx context.Context, host, community string, snmpCollector *snmp.Collector, logger *logging.Logger) RawTables {
	var tables RawTables
	if arp, err := snmpCollector.ARPTable(ctx, host, community); err == nil {
		tables.ARP = arp
	} else {
		logger.Warn("snmp-only arp failed", "host", host, "error", err)
	}
	if mac, err := snmpCollector.MACTable(ctx, host, community); err == nil {
		tables.MAC = mac
	} else {
		logger.Warn("snmp-only mac failed", "host", host, "error", err)
	}
	if lldp, err := snmpCollector.LLDPNeighbors(ctx, host, community); err == nil {
		tables.LLDP = lldp
	} else {
		logger.Warn("snmp-only lldp failed", "host", host, "error", err)
	}
	return tables
}
