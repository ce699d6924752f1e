// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package discovery shells out to nmap to find onboarding candidates on a
// customer network. The scan is bounded: IPv4 only, at most a /20.
package discovery

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/netip"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/netvigil/netvigil/internal/errors"
)

// Options select the scan depth. The zero value is a ping-only sweep.
type Options struct {
	PortsFast      bool `json:"ports_fast"`
	PortsExtended  bool `json:"ports_extended"`
	OSDetection    bool `json:"os_detection"`
	ServiceVersion bool `json:"service_version"`
}

// Host is one responding asset.
type Host struct {
	IP       string   `json:"ip"`
	Hostname string   `json:"hostname,omitempty"`
	MAC      string   `json:"mac,omitempty"`
	Vendor   string   `json:"vendor,omitempty"`
	Ports    []string `json:"ports"`
	OS       string   `json:"os,omitempty"`
}

// Result is one discovery run.
type Result struct {
	Network    string  `json:"network"`
	ScannedAt  string  `json:"scanned_at"`
	Hosts      []Host  `json:"hosts"`
	TotalHosts int     `json:"total_hosts"`
	Options    Options `json:"scan_options"`
}

const maxNetworkSize = 4096 // a /20

// normalizeNetwork validates the CIDR input.
func normalizeNetwork(input string) (netip.Prefix, error) {
	pfx, err := netip.ParsePrefix(strings.TrimSpace(input))
	if err != nil {
		return netip.Prefix{}, errors.New(errors.KindDiscovery,
			"invalid network range; use CIDR notation, e.g. 192.168.88.0/24")
	}
	if !pfx.Addr().Is4() {
		return netip.Prefix{}, errors.New(errors.KindDiscovery, "only IPv4 networks are supported")
	}
	if 1<<(32-pfx.Bits()) > maxNetworkSize {
		return netip.Prefix{}, errors.New(errors.KindDiscovery,
			"network range too wide; use /20 or smaller (up to 4096 addresses)")
	}
	return pfx.Masked(), nil
}

func buildCommand(nmapBin string, network netip.Prefix, opts Options) []string {
	cmd := []string{nmapBin, "-n"}

	needsPortScan := opts.PortsFast || opts.PortsExtended || opts.ServiceVersion
	if opts.OSDetection {
		cmd = append(cmd, "-O")
	}
	if opts.ServiceVersion {
		cmd = append(cmd, "-sV")
	}
	if needsPortScan {
		if opts.PortsExtended {
			cmd = append(cmd, "--top-ports", "1000")
		} else {
			cmd = append(cmd, "-F")
		}
	} else if !opts.OSDetection {
		cmd = append(cmd, "-sn")
	}

	return append(cmd, network.String(), "-oX", "-")
}

// Run executes nmap over the network and parses its XML output.
func Run(ctx context.Context, networkInput string, opts Options, timeout time.Duration) (Result, error) {
	nmapBin, err := exec.LookPath("nmap")
	if err != nil {
		return Result{}, errors.New(errors.KindDiscovery, "nmap binary not found in the environment")
	}

	network, err := normalizeNetwork(networkInput)
	if err != nil {
		return Result{}, err
	}

	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := buildCommand(nmapBin, network, opts)
	out, err := exec.CommandContext(ctx, args[0], args[1:]...).Output()
	if ctx.Err() == context.DeadlineExceeded {
		return Result{}, errors.New(errors.KindDiscovery, "discovery timed out; try a smaller range")
	}
	if err != nil {
		msg := "unknown nmap failure"
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			msg = strings.TrimSpace(string(exitErr.Stderr))
		}
		return Result{}, errors.Errorf(errors.KindDiscovery, "nmap failed: %s", msg)
	}

	hosts, err := parseNmapXML(out)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Network:    network.String(),
		ScannedAt:  time.Now().UTC().Format(time.RFC3339),
		Hosts:      hosts,
		TotalHosts: len(hosts),
		Options:    opts,
	}, nil
}

// XML shapes of nmap -oX output, reduced to what the result needs.
type nmapRun struct {
	Hosts []nmapHost `xml:"host"`
}

type nmapHost struct {
	Status    nmapStatus    `xml:"status"`
	Addresses []nmapAddress `xml:"address"`
	Hostnames struct {
		Hostname []struct {
			Name string `xml:"name,attr"`
		} `xml:"hostname"`
	} `xml:"hostnames"`
	Ports struct {
		Port []nmapPort `xml:"port"`
	} `xml:"ports"`
	OS struct {
		Match []struct {
			Name     string `xml:"name,attr"`
			Accuracy string `xml:"accuracy,attr"`
		} `xml:"osmatch"`
	} `xml:"os"`
}

type nmapStatus struct {
	State string `xml:"state,attr"`
}

type nmapAddress struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
	Vendor   string `xml:"vendor,attr"`
}

type nmapPort struct {
	Protocol string `xml:"protocol,attr"`
	PortID   string `xml:"portid,attr"`
	State    struct {
		State string `xml:"state,attr"`
	} `xml:"state"`
	Service struct {
		Name string `xml:"name,attr"`
	} `xml:"service"`
}

func parseNmapXML(data []byte) ([]Host, error) {
	var run nmapRun
	if err := xml.Unmarshal(data, &run); err != nil {
		return nil, errors.Wrap(err, errors.KindDiscovery, "invalid nmap XML output")
	}

	var hosts []Host
	for _, h := range run.Hosts {
		if h.Status.State != "up" {
			continue
		}

		var host Host
		for _, addr := range h.Addresses {
			switch addr.AddrType {
			case "ipv4":
				host.IP = addr.Addr
			case "mac":
				host.MAC = addr.Addr
				host.Vendor = addr.Vendor
			}
		}
		if host.IP == "" {
			continue
		}
		if len(h.Hostnames.Hostname) > 0 {
			host.Hostname = h.Hostnames.Hostname[0].Name
		}

		host.Ports = []string{}
		for _, p := range h.Ports.Port {
			if p.State.State != "open" {
				continue
			}
			entry := p.PortID + "/" + p.Protocol
			if p.Service.Name != "" {
				entry = fmt.Sprintf("%s (%s)", entry, p.Service.Name)
			}
			host.Ports = append(host.Ports, entry)
		}
		if len(h.OS.Match) > 0 {
			best := h.OS.Match[0]
			host.OS = best.Name
			if best.Accuracy != "" {
				host.OS = fmt.Sprintf("%s (%s%%)", best.Name, best.Accuracy)
			}
		}

		hosts = append(hosts, host)
	}

	sort.Slice(hosts, func(i, j int) bool { return hosts[i].IP < hosts[j].IP })
	return hosts, nil
}
