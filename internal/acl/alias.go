package acl

import (
	"fmt"
	"net/netip"
	"sort"
)

// aliasGroup is one expanded (ALLOW, DENY) destination scope: either the
// parent rule's own (possibly alias-augmented) destination, or a single
// component alias's destination. Every firewall rule pair the compiler
// emits for an ACL rule corresponds to exactly one aliasGroup.
type aliasGroup struct {
	DestinationCIDRs  []netip.Prefix
	DestinationRanges []IPRange
	Ports             []PortRange
	Protocols         []Protocol
	CommentSuffix     string // "" for the parent group, ", ALIAS <id> - <name>" otherwise
}

// ExpandAliasGroups classifies an ACL rule's aliases and produces the list
// of destination groups to compile (spec §4.4, component C4).
//
// A Destination-kind alias folds its destination/ports/protocols into the
// parent rule's own, producing a single combined group. A Component-kind
// alias is emitted as its own independent group, sharing the parent's
// source principals but carrying only the alias's own destination/ports/
// protocols. When the rule has no manual destination and only component
// aliases, the parent contributes no group of its own.
func ExpandAliasGroups(rule ACLRule, aliases []Alias) []aliasGroup {
	var destinationAliases, componentAliases []Alias
	for _, a := range aliases {
		switch a.Kind {
		case AliasKindDestination:
			destinationAliases = append(destinationAliases, a)
		case AliasKindComponent:
			componentAliases = append(componentAliases, a)
		}
	}
	sort.Slice(destinationAliases, func(i, j int) bool { return destinationAliases[i].ID < destinationAliases[j].ID })
	sort.Slice(componentAliases, func(i, j int) bool { return componentAliases[i].ID < componentAliases[j].ID })

	hasManualDestination := len(rule.DestinationCIDRs) > 0 || len(rule.DestinationRanges) > 0

	var groups []aliasGroup

	if hasManualDestination || len(destinationAliases) > 0 {
		parent := aliasGroup{
			DestinationCIDRs:  append([]netip.Prefix(nil), rule.DestinationCIDRs...),
			DestinationRanges: append([]IPRange(nil), rule.DestinationRanges...),
			Ports:             append([]PortRange(nil), rule.Ports...),
			Protocols:         append([]Protocol(nil), rule.Protocols...),
		}
		for _, a := range destinationAliases {
			parent.DestinationCIDRs = append(parent.DestinationCIDRs, a.DestinationCIDRs...)
			parent.DestinationRanges = append(parent.DestinationRanges, a.DestinationRanges...)
			parent.Ports = append(parent.Ports, a.Ports...)
			parent.Protocols = append(parent.Protocols, a.Protocols...)
		}
		groups = append(groups, parent)
	}

	for _, a := range componentAliases {
		groups = append(groups, aliasGroup{
			DestinationCIDRs:  a.DestinationCIDRs,
			DestinationRanges: a.DestinationRanges,
			Ports:             a.Ports,
			Protocols:         a.Protocols,
			CommentSuffix:     fmt.Sprintf(", ALIAS %d - %s", a.ID, a.Name),
		})
	}

	return groups
}

// Comment builds the "ACL <id> - <name>[, ALIAS <id> - <name>] [ALLOW|DENY]"
// provenance string described in spec §4.4.
func (g aliasGroup) Comment(rule ACLRule, verdict Verdict) string {
	tag := "ALLOW"
	if verdict == VerdictDeny {
		tag = "DENY"
	}
	return fmt.Sprintf("ACL %d - %s%s [%s]", rule.ID, rule.Name, g.CommentSuffix, tag)
}

// destinationIPRanges flattens the group's CIDRs and explicit ranges into a
// single multiset of IP ranges ready for C1.
func (g aliasGroup) destinationIPRanges() []IPRange {
	out := make([]IPRange, 0, len(g.DestinationCIDRs)+len(g.DestinationRanges))
	for _, p := range g.DestinationCIDRs {
		out = append(out, IPRange{Start: p.Masked().Addr(), End: LastIPInSubnet(p)})
	}
	out = append(out, g.DestinationRanges...)
	return out
}
