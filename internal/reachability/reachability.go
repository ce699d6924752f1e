// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package reachability probes devices with ICMP and, when a community is
// known, an SNMP sysDescr GET. It feeds the device status view and the
// overview KPIs.
package reachability

import (
	"context"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/netvigil/netvigil/internal/logging"
	"github.com/netvigil/netvigil/internal/snmp"
)

// Status is the outcome of one device probe. PingOK/SNMPOK are nil when
// the respective probe did not run.
type Status struct {
	PingOK  *bool `json:"ping_ok"`
	SNMPOK  *bool `json:"snmp_ok"`
	Warning bool  `json:"warning"`
}

// Prober runs the probes.
type Prober struct {
	Timeout time.Duration
	SNMP    *snmp.Collector
	logger  *logging.Logger
}

// NewProber builds a prober with a 1s default timeout.
func NewProber(snmpCollector *snmp.Collector, logger *logging.Logger) *Prober {
	return &Prober{
		Timeout: time.Second,
		SNMP:    snmpCollector,
		logger:  logger.With("component", "reachability"),
	}
}

// Check pings the host and optionally probes SNMP. A device is flagged
// warning when the ping fails or SNMP was expected to answer and did not.
func (p *Prober) Check(ctx context.Context, host, community string) Status {
	var st Status
	if host == "" {
		f := false
		st.PingOK = &f
		st.Warning = true
		return st
	}

	pingOK := p.ping(ctx, host)
	st.PingOK = &pingOK

	if community != "" {
		ok, err := p.SNMP.SysDescr(ctx, host, community)
		if err == nil {
			st.SNMPOK = &ok
		} else {
			f := false
			st.SNMPOK = &f
		}
	}

	st.Warning = !pingOK || (st.SNMPOK != nil && !*st.SNMPOK)
	return st
}

func (p *Prober) ping(ctx context.Context, host string) bool {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return false
	}
	pinger.Count = 1
	pinger.Timeout = p.Timeout
	// Unprivileged UDP ping works without CAP_NET_RAW; deployments that
	// grant it can flip this via SetPrivileged upstream.
	pinger.SetPrivileged(false)

	if err := pinger.RunWithContext(ctx); err != nil {
		p.logger.Debug("ping failed", "host", host, "error", err)
		return false
	}
	return pinger.Statistics().PacketsRecv > 0
}
