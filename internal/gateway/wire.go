package gateway

import (
	"github.com/fenwall/aclcore/internal/acl"
)

// Wire DTOs realize the exact field names and tagged-union shapes of the
// gateway contract. They are deliberately separate from internal/acl's
// types: the core's in-memory model is free to evolve without touching the
// bytes a gateway daemon actually parses.

type wireFirewallConfig struct {
	DefaultPolicy wirePolicy       `json:"default_policy"`
	Rules         []wireFirewallRule `json:"rules"`
}

type wireFirewallRule struct {
	Verdict          wirePolicy    `json:"verdict"`
	SourceAddrs      []wireAddress `json:"source_addrs"`
	DestinationAddrs []wireAddress `json:"destination_addrs"`
	DestinationPorts []wirePort    `json:"destination_ports"`
	Protocols        []wireProtocol `json:"protocols"`
	Comment          *string       `json:"comment,omitempty"`
}

type wirePolicy int

const (
	wirePolicyAllow wirePolicy = 0
	wirePolicyDeny  wirePolicy = 1
)

type wireProtocol int

const (
	wireProtocolTCP  wireProtocol = 0
	wireProtocolUDP  wireProtocol = 1
	wireProtocolICMP wireProtocol = 2
)

// wireAddress realizes IpAddress's tagged union: Ip(string) | IpSubnet(string)
// | IpRange({start, end}).
type wireAddress struct {
	Tag     string `json:"tag"`
	Value   string `json:"value,omitempty"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
}

// wirePort realizes Port's tagged union: SinglePort(u32) | PortRange({start, end}).
type wirePort struct {
	Tag   string `json:"tag"`
	Value uint32 `json:"value,omitempty"`
	Start uint32 `json:"start,omitempty"`
	End   uint32 `json:"end,omitempty"`
}

// toWireConfig translates the core's FirewallConfig into the gateway wire
// shape (spec.md §6).
func toWireConfig(cfg *acl.FirewallConfig) wireFirewallConfig {
	out := wireFirewallConfig{DefaultPolicy: toWirePolicy(cfg.DefaultPolicy)}
	for _, r := range cfg.Rules {
		out.Rules = append(out.Rules, toWireRule(r))
	}
	return out
}

func toWireRule(r acl.FirewallRule) wireFirewallRule {
	wr := wireFirewallRule{
		Verdict:          toWireVerdict(r.Verdict),
		SourceAddrs:      toWireAddresses(r.SourceAddrs),
		DestinationAddrs: toWireAddresses(r.DestinationAddrs),
		DestinationPorts: toWirePorts(r.DestinationPorts),
		Protocols:        toWireProtocols(r.Protocols),
	}
	if r.Comment != "" {
		c := r.Comment
		wr.Comment = &c
	}
	return wr
}

func toWirePolicy(p acl.Policy) wirePolicy {
	if p == acl.PolicyDeny {
		return wirePolicyDeny
	}
	return wirePolicyAllow
}

func toWireVerdict(v acl.Verdict) wirePolicy {
	if v == acl.VerdictDeny {
		return wirePolicyDeny
	}
	return wirePolicyAllow
}

func toWireAddresses(addrs []acl.Address) []wireAddress {
	out := make([]wireAddress, 0, len(addrs))
	for _, a := range addrs {
		switch a.Kind {
		case acl.KindSingleIP:
			out = append(out, wireAddress{Tag: "Ip", Value: a.IP.String()})
		case acl.KindSubnet:
			out = append(out, wireAddress{Tag: "IpSubnet", Value: a.Prefix.String()})
		case acl.KindRange:
			out = append(out, wireAddress{Tag: "IpRange", Start: a.Start.String(), End: a.End.String()})
		}
	}
	return out
}

func toWirePorts(ports []acl.Port) []wirePort {
	out := make([]wirePort, 0, len(ports))
	for _, p := range ports {
		if p.Kind == acl.PortKindSingle {
			out = append(out, wirePort{Tag: "SinglePort", Value: uint32(p.Start)})
		} else {
			out = append(out, wirePort{Tag: "PortRange", Start: uint32(p.Start), End: uint32(p.End)})
		}
	}
	return out
}

func toWireProtocols(protocols []acl.Protocol) []wireProtocol {
	out := make([]wireProtocol, 0, len(protocols))
	for _, p := range protocols {
		switch p {
		case acl.ProtocolTCP:
			out = append(out, wireProtocolTCP)
		case acl.ProtocolUDP:
			out = append(out, wireProtocolUDP)
		case acl.ProtocolICMP:
			out = append(out, wireProtocolICMP)
		}
	}
	return out
}
