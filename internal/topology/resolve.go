// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package topology

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/netvigil/netvigil/internal/schema"
)

// Resolver fills node hostnames through reverse DNS against a configured
// resolver. Resolution is best-effort enrichment: failures leave the
// hostname empty and are not reported.
type Resolver struct {
	server  string // host:port of the DNS server; empty disables resolution
	timeout time.Duration
	client  *dns.Client
}

// NewResolver builds a resolver for a "host:port" DNS server address. An
// empty address yields a disabled resolver.
func NewResolver(server string) *Resolver {
	if server != "" && !strings.Contains(server, ":") {
		server += ":53"
	}
	return &Resolver{
		server:  server,
		timeout: 2 * time.Second,
		client:  &dns.Client{Timeout: 2 * time.Second},
	}
}

// FillHostnames resolves PTR records for every node that has an IP but no
// hostname yet.
func (r *Resolver) FillHostnames(ctx context.Context, nodes []schema.NetworkNode) {
	if r == nil || r.server == "" {
		return
	}
	for i := range nodes {
		if nodes[i].Hostname != "" || nodes[i].IPAddress == "" {
			continue
		}
		if name := r.lookup(ctx, nodes[i].IPAddress); name != "" {
			nodes[i].Hostname = name
		}
	}
}

func (r *Resolver) lookup(ctx context.Context, ip string) string {
	addr := ip
	if i := strings.IndexByte(addr, '/'); i >= 0 {
		addr = addr[:i]
	}
	if net.ParseIP(addr) == nil {
		return ""
	}
	reverse, err := dns.ReverseAddr(addr)
	if err != nil {
		return ""
	}

	msg := new(dns.Msg)
	msg.SetQuestion(reverse, dns.TypePTR)
	msg.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil || resp == nil || resp.Rcode != dns.RcodeSuccess {
		return ""
	}
	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, ".")
		}
	}
	return ""
}
