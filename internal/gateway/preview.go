// Package gateway carries compiled FirewallConfigs to the remote
// packet-filter gateway daemon and renders local previews of what a push
// will do, without ever touching a kernel ruleset itself — enforcement is
// the gateway daemon's job, out of this core's scope.
package gateway

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/fenwall/aclcore/internal/acl"
)

const previewTemplate = `# aclcore firewall preview — location {{ .LocationID }}, generated {{ .Timestamp }}
# default policy: {{ .DefaultPolicy }}

{{ range .Rules }}{{ . }}
{{ end }}`

// RenderPreview renders a human-readable, nftables-flavored preview of a
// compiled FirewallConfig: useful for an operator reviewing what a compile
// would push before it is sent to the gateway daemon. It performs no I/O
// and never applies anything to a live ruleset. A nil cfg (ACL disabled, or
// no address family assigned) renders a one-line "nothing to publish" note
// rather than dereferencing a config that was never compiled.
func RenderPreview(locationID acl.ID, cfg *acl.FirewallConfig) (string, error) {
	if cfg == nil {
		return fmt.Sprintf("# aclcore firewall preview — location %d: nothing to publish (ACL disabled or no address family assigned)\n", locationID), nil
	}

	type templateData struct {
		LocationID    acl.ID
		Timestamp     string
		DefaultPolicy string
		Rules         []string
	}

	data := templateData{
		LocationID:    locationID,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		DefaultPolicy: policyString(cfg.DefaultPolicy),
	}
	for _, r := range cfg.Rules {
		data.Rules = append(data.Rules, renderRuleStatement(r))
	}

	tmpl, err := template.New("preview").Parse(previewTemplate)
	if err != nil {
		return "", fmt.Errorf("parse preview template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute preview template: %w", err)
	}
	return buf.String(), nil
}

// renderRuleStatement converts one compiled FirewallRule to an
// nft-statement-shaped line: the same clause ordering the teacher's
// nftables adapter used (protocol, saddr, daddr, dport, verdict, comment).
func renderRuleStatement(r acl.FirewallRule) string {
	var parts []string

	for _, p := range r.Protocols {
		parts = append(parts, "meta l4proto "+protocolString(p))
	}

	if addrs := addrStrings(r.SourceAddrs); len(addrs) == 1 {
		parts = append(parts, "ip saddr "+addrs[0])
	} else if len(addrs) > 1 {
		parts = append(parts, "ip saddr { "+strings.Join(addrs, ", ")+" }")
	}

	if addrs := addrStrings(r.DestinationAddrs); len(addrs) == 1 {
		parts = append(parts, "ip daddr "+addrs[0])
	} else if len(addrs) > 1 {
		parts = append(parts, "ip daddr { "+strings.Join(addrs, ", ")+" }")
	}

	if ports := portStrings(r.DestinationPorts); len(ports) == 1 {
		parts = append(parts, "dport "+ports[0])
	} else if len(ports) > 1 {
		parts = append(parts, "dport { "+strings.Join(ports, ", ")+" }")
	}

	parts = append(parts, verdictString(r.Verdict))

	if r.Comment != "" {
		parts = append(parts, fmt.Sprintf(`comment "%s"`, r.Comment))
	}

	return strings.Join(parts, " ")
}

func addrStrings(addrs []acl.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

func portStrings(ports []acl.Port) []string {
	out := make([]string, len(ports))
	for i, p := range ports {
		if p.Kind == acl.PortKindSingle {
			out[i] = fmt.Sprintf("%d", p.Start)
		} else {
			out[i] = fmt.Sprintf("%d-%d", p.Start, p.End)
		}
	}
	return out
}

func policyString(p acl.Policy) string {
	if p == acl.PolicyDeny {
		return "deny"
	}
	return "allow"
}

func verdictString(v acl.Verdict) string {
	if v == acl.VerdictDeny {
		return "drop"
	}
	return "accept"
}

func protocolString(p acl.Protocol) string {
	switch p {
	case acl.ProtocolTCP:
		return "tcp"
	case acl.ProtocolUDP:
		return "udp"
	case acl.ProtocolICMP:
		return "icmp"
	default:
		return "ip"
	}
}
