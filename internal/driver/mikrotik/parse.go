// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mikrotik

import (
	"regexp"
	"strings"

	"github.com/netvigil/netvigil/internal/schema"
)

// Header patterns of "/export verbose" output. A typical header:
//
//	# jan/01/2024 00:00:00 by RouterOS 7.14.3
//	# software id = XXXX-XXXX
//	# model = CCR1036-8G-2S+
//	...
//	/system identity
//	set name=edge-01
var (
	reRouterOSVersion = regexp.MustCompile(`(?i)by\s+RouterOS\s+([\d.]+)`)
	reModel           = regexp.MustCompile(`(?i)#\s*model\s*=\s*(\S+)`)
	reIdentity        = regexp.MustCompile(`(?m)^/system identity\s*\nset name=("[^"]+"|[^\s#]+)`)
)

type exportHeader struct {
	hostname  string
	osVersion string
	model     string
}

func parseHeader(raw string) exportHeader {
	var h exportHeader
	if m := reRouterOSVersion.FindStringSubmatch(raw); m != nil {
		h.osVersion = m[1]
	}
	if m := reModel.FindStringSubmatch(raw); m != nil {
		h.model = m[1]
	}
	if m := reIdentity.FindStringSubmatch(raw); m != nil {
		h.hostname = strings.Trim(m[1], `"`)
	}
	return h
}

// extractSection returns the body of one export section ("/ip route",
// "/ip firewall filter", ...) without its header line, or "" when absent.
// Sections run from their "/..." header line to the next header line.
func extractSection(raw, header string) string {
	var body strings.Builder
	inSection := false
	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(line, "/") {
			if inSection {
				break
			}
			inSection = strings.TrimSpace(line) == header
			continue
		}
		if inSection {
			body.WriteString(line)
			body.WriteByte('\n')
		}
	}
	return body.String()
}

// parseExportItems splits a section body into its add/set statements and
// tokenizes each into a key=value map. Line continuations ("\" at end of
// line) are joined; quoted values may contain spaces. For "set [ find
// default-name=X ]" statements the matched name lands under the "name" key
// unless the statement sets one explicitly.
func parseExportItems(section string) []map[string]string {
	var statements []string
	var current strings.Builder

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			statements = append(statements, s)
		}
		current.Reset()
	}

	for _, line := range strings.Split(section, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if strings.HasPrefix(trimmed, "add ") || strings.HasPrefix(trimmed, "set ") || trimmed == "add" || trimmed == "set" {
			flush()
		}
		if strings.HasSuffix(trimmed, "\\") {
			current.WriteString(strings.TrimSuffix(trimmed, "\\"))
			current.WriteByte(' ')
			continue
		}
		current.WriteString(trimmed)
		current.WriteByte(' ')
	}
	flush()

	var items []map[string]string
	for _, stmt := range statements {
		fields := tokenizeStatement(stmt)
		if len(fields) > 0 {
			items = append(items, fields)
		}
	}
	return items
}

// tokenizeStatement parses one RouterOS statement into key=value pairs.
func tokenizeStatement(stmt string) map[string]string {
	stmt = strings.TrimPrefix(stmt, "add ")
	if rest, ok := strings.CutPrefix(stmt, "set "); ok {
		stmt = rest
	}

	fields := map[string]string{}

	// "set [ find default-name=ether1 ] ..." — pull the matched name out.
	if strings.HasPrefix(stmt, "[") {
		if end := strings.Index(stmt, "]"); end >= 0 {
			selector := stmt[:end]
			if m := regexp.MustCompile(`default-name=(\S+)`).FindStringSubmatch(selector); m != nil {
				fields["name"] = strings.Trim(m[1], `"`)
			}
			stmt = stmt[end+1:]
		}
	}

	for _, token := range splitTokens(stmt) {
		key, value, ok := strings.Cut(token, "=")
		if !ok {
			// Bare tokens are flags (e.g. "disabled" in some outputs).
			continue
		}
		fields[key] = strings.Trim(value, `"`)
	}
	return fields
}

// splitTokens splits on spaces outside double quotes.
func splitTokens(s string) []string {
	var tokens []string
	var b strings.Builder
	inQuote := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == ' ' && !inQuote:
			if b.Len() > 0 {
				tokens = append(tokens, b.String())
				b.Reset()
			}
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}

// parseTerse parses "print terse" output: one row per line, leading index
// and flag characters, then key=value tokens.
//
//	0   address=192.168.88.254 mac-address=4C:5E:0C:12:34:56 interface=bridge1
func parseTerse(raw string) []map[string]string {
	var rows []map[string]string
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || !strings.Contains(trimmed, "=") {
			continue
		}

		fields := map[string]string{}
		var flags strings.Builder
		for i, token := range splitTokens(trimmed) {
			if key, value, ok := strings.Cut(token, "="); ok {
				fields[key] = strings.Trim(value, `"`)
				continue
			}
			// Leading index and single-letter flags (D, L, X...).
			if i == 0 || len(token) <= 2 {
				flags.WriteString(token)
			}
		}
		if len(fields) == 0 {
			continue
		}
		fields["flags"] = flags.String()
		rows = append(rows, fields)
	}
	return rows
}

// parseDetail parses "print detail" output: numbered multi-line records
// separated by blank lines, values possibly quoted.
func parseDetail(raw string) []map[string]string {
	var rows []map[string]string
	var block strings.Builder

	flush := func() {
		text := strings.TrimSpace(block.String())
		block.Reset()
		if text == "" {
			return
		}
		fields := map[string]string{}
		for _, token := range splitTokens(text) {
			if key, value, ok := strings.Cut(token, "="); ok {
				fields[key] = strings.Trim(value, `"`)
			}
		}
		if len(fields) > 0 {
			rows = append(rows, fields)
		}
	}

	reRecordStart := regexp.MustCompile(`^\s*\d+\s`)
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if reRecordStart.MatchString(line) {
			flush()
			line = reRecordStart.ReplaceAllString(line, "")
		}
		block.WriteString(strings.TrimSpace(line))
		block.WriteByte(' ')
	}
	flush()
	return rows
}

// parseInterfaces assembles interfaces from the export: base interfaces
// from "/interface" (or per-type sections), VLANs from "/interface vlan"
// and addresses from "/ip address" joined on the interface name.
func (d *Driver) parseInterfaces(raw string) []schema.Interface {
	type pending struct {
		raw schema.RawInterface
	}
	byName := map[string]*pending{}
	var order []string

	ensure := func(name string) *pending {
		if p, ok := byName[name]; ok {
			return p
		}
		p := &pending{raw: schema.RawInterface{Name: name}}
		byName[name] = p
		order = append(order, name)
		return p
	}

	// Section order is fixed so repeated snapshots of an unchanged device
	// produce identical interface ordering for the ordinal comparator.
	sectionTypes := []struct{ header, ifaceType string }{
		{"/interface ethernet", "ether"},
		{"/interface wireless", "wlan"},
		{"/interface bridge", "bridge"},
		{"/interface bonding", "bonding"},
		{"/interface vlan", "vlan"},
	}
	for _, sec := range sectionTypes {
		header, ifaceType := sec.header, sec.ifaceType
		for _, item := range parseExportItems(extractSection(raw, header)) {
			name := item["name"]
			if name == "" {
				continue
			}
			p := ensure(name)
			p.raw.InterfaceType = ifaceType
			fillInterface(&p.raw, item)
		}
	}

	// Plain "/interface" section (older exports list everything here).
	for _, item := range parseExportItems(extractSection(raw, "/interface")) {
		name := item["name"]
		if name == "" {
			continue
		}
		p := ensure(name)
		if p.raw.InterfaceType == "" {
			p.raw.InterfaceType = item["type"]
		}
		fillInterface(&p.raw, item)
	}

	for _, item := range parseExportItems(extractSection(raw, "/ip address")) {
		name := item["interface"]
		addr := item["address"]
		if name == "" || addr == "" {
			continue
		}
		p := ensure(name)
		p.raw.IPAddresses = append(p.raw.IPAddresses, addr)
	}

	var out []schema.Interface
	for _, name := range order {
		iface, err := schema.NewInterface(byName[name].raw)
		if err != nil {
			d.logger.Warn("dropping invalid interface", "interface", name, "error", err)
			continue
		}
		out = append(out, iface)
	}
	return out
}

func fillInterface(raw *schema.RawInterface, item map[string]string) {
	if v, ok := item["mac-address"]; ok && raw.MACAddress == "" {
		raw.MACAddress = v
	}
	if v, ok := item["mtu"]; ok && raw.MTU == 0 {
		raw.MTU = atoi(v)
	}
	if v, ok := item["vlan-id"]; ok {
		raw.VLANID = atoi(v)
	}
	if v, ok := item["interface"]; ok && raw.VLANInterface == "" {
		raw.VLANInterface = v
	}
	if v, ok := item["comment"]; ok && raw.Comment == "" {
		raw.Comment = v
	}
	if v, ok := item["disabled"]; ok {
		enabled := v != "yes"
		raw.Enabled = &enabled
	}
}

// parseRoutes parses "/ip route".
func (d *Driver) parseRoutes(raw string) []schema.Route {
	var routes []schema.Route
	for _, item := range parseExportItems(extractSection(raw, "/ip route")) {
		rr := schema.RawRoute{
			Destination: item["dst-address"],
			Gateway:     item["gateway"],
			Interface:   item["gateway-interface"],
			RouteType:   item["route-type"],
		}
		if rr.Destination == "" {
			rr.Destination = item["destination"]
		}
		if v, ok := item["distance"]; ok {
			dist := atoi(v)
			rr.Distance = &dist
		}
		route, err := schema.NewRoute(rr)
		if err != nil {
			d.logger.Warn("dropping invalid route", "error", err)
			continue
		}
		routes = append(routes, route)
	}
	return routes
}

// parseFirewall parses "/ip firewall filter" preserving rule order.
func (d *Driver) parseFirewall(raw string) []schema.FirewallRule {
	var rules []schema.FirewallRule
	for _, item := range parseExportItems(extractSection(raw, "/ip firewall filter")) {
		rule, err := schema.NewFirewallRule(schema.RawFirewallRule{
			Chain:      item["chain"],
			Action:     item["action"],
			SrcAddress: item["src-address"],
			DstAddress: item["dst-address"],
			Protocol:   item["protocol"],
			SrcPort:    item["src-port"],
			DstPort:    item["dst-port"],
			Comment:    item["comment"],
			Disabled:   item["disabled"] == "yes",
		})
		if err != nil {
			d.logger.Warn("dropping invalid firewall rule", "error", err)
			continue
		}
		rules = append(rules, rule)
	}
	return rules
}
