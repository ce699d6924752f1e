// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package mikrotik implements the RouterOS driver. It speaks plain SSH,
// captures "/export" output for configuration snapshots and terse prints
// for the topology tables, and parses both into schema values.
package mikrotik

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/netvigil/netvigil/internal/driver"
	"github.com/netvigil/netvigil/internal/errors"
	"github.com/netvigil/netvigil/internal/logging"
	"github.com/netvigil/netvigil/internal/schema"
)

const (
	exportCommand   = "/export verbose"
	arpCommand      = "/ip arp print terse"
	macCommand      = "/interface bridge host print terse"
	neighborCommand = "/ip neighbor print detail"
)

// Driver is a RouterOS SSH session.
type Driver struct {
	creds  driver.Credentials
	opts   driver.Options
	logger *logging.Logger

	mu     sync.Mutex
	client *ssh.Client
}

func init() {
	driver.Register("mikrotik", func(creds driver.Credentials, opts driver.Options) driver.Driver {
		return New(creds, opts, logging.Nop())
	})
}

// New builds a driver without opening the session.
func New(creds driver.Credentials, opts driver.Options, logger *logging.Logger) *Driver {
	if opts.TimeoutSeconds <= 0 {
		opts.TimeoutSeconds = 30
	}
	if creds.Port == 0 {
		creds.Port = 22
	}
	return &Driver{
		creds:  creds,
		opts:   opts,
		logger: logger.With("component", "mikrotik", "host", creds.Host),
	}
}

// SetLogger replaces the driver's logger. The registry constructs drivers
// with a no-op logger; orchestrators attach theirs here.
func (d *Driver) SetLogger(logger *logging.Logger) {
	d.logger = logger.With("component", "mikrotik", "host", d.creds.Host)
}

// Open dials the device and authenticates. Authentication failures map to
// auth-error, timeouts to timeout-error and everything else to
// connection-error; the password is scrubbed from every message.
func (d *Driver) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client != nil {
		return nil
	}

	timeout := time.Duration(d.opts.TimeoutSeconds) * time.Second
	addr := net.JoinHostPort(d.creds.Host, strconv.Itoa(d.creds.Port))

	cfg := &ssh.ClientConfig{
		User:            d.creds.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(d.creds.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // fleet devices use per-customer credentials, not pinned keys
		Timeout:         timeout,
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return errors.Errorf(errors.KindTimeout, "timeout connecting to %s", addr)
		}
		return errors.Errorf(errors.KindConnection, "cannot reach %s: %s",
			addr, driver.ScrubSecret(err.Error(), d.creds.Password))
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		msg := driver.ScrubSecret(err.Error(), d.creds.Password)
		if strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "auth") {
			d.logger.Error("authentication failed", "user", d.creds.Username)
			return errors.Errorf(errors.KindAuth, "invalid credentials for %s@%s", d.creds.Username, d.creds.Host)
		}
		return errors.Errorf(errors.KindConnection, "ssh handshake with %s failed: %s", addr, msg)
	}
	conn.SetDeadline(time.Time{})

	d.client = ssh.NewClient(sshConn, chans, reqs)
	d.logger.Info("ssh session established")
	return nil
}

// Close tears the session down. Safe to call on every exit path; calling
// it twice is a no-op.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	if err != nil {
		d.logger.Warn("error closing ssh session", "error", driver.ScrubSecret(err.Error(), d.creds.Password))
	} else {
		d.logger.Info("ssh session closed")
	}
	return nil
}

// run executes one command in a fresh SSH session, bounded by the
// per-command timeout and the caller's context.
func (d *Driver) run(ctx context.Context, command string) (string, error) {
	d.mu.Lock()
	client := d.client
	d.mu.Unlock()
	if client == nil {
		return "", errors.Errorf(errors.KindNotConnected,
			"no active session with %s; call Open before issuing commands", d.creds.Host)
	}

	session, err := client.NewSession()
	if err != nil {
		return "", errors.Errorf(errors.KindConnection, "cannot open channel to %s: %s",
			d.creds.Host, driver.ScrubSecret(err.Error(), d.creds.Password))
	}
	defer session.Close()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(d.opts.TimeoutSeconds)*time.Second)
	defer cancel()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := session.Output(command)
		done <- result{out, err}
	}()

	select {
	case <-ctx.Done():
		// Closing the session unblocks Output.
		session.Close()
		return "", errors.Errorf(errors.KindTimeout, "command %q timed out on %s", command, d.creds.Host)
	case res := <-done:
		if res.err != nil {
			return "", errors.Errorf(errors.KindConnection, "command %q failed on %s: %s",
				command, d.creds.Host, driver.ScrubSecret(res.err.Error(), d.creds.Password))
		}
		return string(res.out), nil
	}
}

// Snapshot collects the running configuration and parses it into a
// DeviceConfig. Invalid items are dropped with a warning, never fatal.
func (d *Driver) Snapshot(ctx context.Context) (schema.DeviceConfig, error) {
	raw, err := d.run(ctx, exportCommand)
	if err != nil {
		return schema.DeviceConfig{}, err
	}
	d.logger.Debug("export captured", "bytes", len(raw))

	header := parseHeader(raw)
	hostname := header.hostname
	if hostname == "" {
		hostname = d.creds.Host
	}

	cfg, err := schema.NewDeviceConfig(hostname, "mikrotik")
	if err != nil {
		return schema.DeviceConfig{}, err
	}
	cfg.Model = header.model
	cfg.OSVersion = header.osVersion
	cfg.Interfaces = d.parseInterfaces(raw)
	cfg.Routes = d.parseRoutes(raw)
	cfg.FirewallRules = d.parseFirewall(raw)

	d.logger.Info("snapshot collected",
		"interfaces", len(cfg.Interfaces),
		"routes", len(cfg.Routes),
		"firewall_rules", len(cfg.FirewallRules))
	return cfg, nil
}

// ARPTable collects the ARP table.
func (d *Driver) ARPTable(ctx context.Context) ([]schema.ARPEntry, error) {
	raw, err := d.run(ctx, arpCommand)
	if err != nil {
		return nil, err
	}

	var entries []schema.ARPEntry
	for _, fields := range parseTerse(raw) {
		mac := fields["mac-address"]
		if mac == "" {
			continue // incomplete ARP entries have no MAC yet
		}
		entry, err := schema.NewARPEntry(fields["address"], mac, fields["interface"], atoi(fields["vlan-id"]))
		if err != nil {
			d.logger.Warn("dropping invalid arp entry", "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	d.logger.Info("arp table collected", "entries", len(entries))
	return entries, nil
}

// MACTable collects the bridge host table.
func (d *Driver) MACTable(ctx context.Context) ([]schema.MACEntry, error) {
	raw, err := d.run(ctx, macCommand)
	if err != nil {
		return nil, err
	}

	var entries []schema.MACEntry
	for _, fields := range parseTerse(raw) {
		entry, err := schema.NewMACEntry(schema.RawMACEntry{
			MACAddress: fields["mac-address"],
			Interface:  fields["interface"],
			VLANID:     atoi(fields["vid"]),
			SwitchPort: fields["on-interface"],
			IsLocal:    fields["local"] == "yes" || hasFlag(fields, "L"),
		})
		if err != nil {
			d.logger.Warn("dropping invalid mac entry", "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	d.logger.Info("mac table collected", "entries", len(entries))
	return entries, nil
}

// LLDPNeighbors collects discovered neighbors. RouterOS reports MNDP, LLDP
// and CDP peers through the same table.
func (d *Driver) LLDPNeighbors(ctx context.Context) ([]schema.LLDPNeighbor, error) {
	raw, err := d.run(ctx, neighborCommand)
	if err != nil {
		return nil, err
	}

	var neighbors []schema.LLDPNeighbor
	for _, fields := range parseDetail(raw) {
		neighbor, err := schema.NewLLDPNeighbor(schema.LLDPNeighbor{
			LocalPort:         fields["interface"],
			RemoteDevice:      fields["identity"],
			RemoteIP:          fields["address"],
			RemoteMAC:         fields["mac-address"],
			RemotePlatform:    strings.TrimSpace(fields["platform"] + " " + fields["board"]),
			RemoteDescription: fields["system-description"],
			RemotePort:        fields["interface-name"],
		})
		if err != nil {
			d.logger.Warn("dropping invalid neighbor", "error", err)
			continue
		}
		neighbors = append(neighbors, neighbor)
	}
	d.logger.Info("neighbors collected", "neighbors", len(neighbors))
	return neighbors, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func hasFlag(fields map[string]string, flag string) bool {
	return strings.Contains(fields["flags"], flag)
}
