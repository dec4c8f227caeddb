package manifest

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/fenwall/aclcore/internal/acl"
)

// Resolver maps the human-readable names a manifest refers to onto the
// persisted IDs the acl domain model requires. internal/store provides the
// real implementation backed by Postgres; tests can supply a fixed map.
type Resolver interface {
	LocationID(name string) (acl.ID, error)
	UserID(name string) (acl.ID, error)
	GroupID(name string) (acl.ID, error)
	DeviceID(name string) (acl.ID, error)
}

// Engine compiles validated manifests into acl domain objects ready for a
// Store's write path. Alias attachment is returned separately from the
// rules themselves because internal/acl.ACLRule carries no alias reference:
// the association is a Store-level join, not a domain field.
type Engine struct {
	validator *Validator
}

func NewEngine() *Engine {
	return &Engine{validator: NewValidator()}
}

// CompileResult is the output of bulk-importing one batch of manifests.
type CompileResult struct {
	Rules []acl.ACLRule
	// Aliases maps an alias manifest's metadata.name to its compiled value.
	Aliases map[string]acl.Alias
	// RuleAliases maps an ACL rule manifest's metadata.name to the alias
	// names it attaches, in manifest order.
	RuleAliases map[string][]string
}

// Compile validates all manifests, then compiles ACLRule and Alias kinds
// into domain objects. Resolver failures (an unknown user/group/device/
// location name) abort the whole batch: a bulk import is all-or-nothing.
func (e *Engine) Compile(manifests []*Manifest, resolver Resolver) (*CompileResult, error) {
	if err := e.validator.ValidateAll(manifests); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	result := &CompileResult{
		Aliases:     make(map[string]acl.Alias),
		RuleAliases: make(map[string][]string),
	}

	for _, m := range manifests {
		if m.Kind != KindAlias {
			continue
		}
		a, err := compileAlias(m)
		if err != nil {
			return nil, fmt.Errorf("compiling alias %s: %w", m.Metadata.Name, err)
		}
		result.Aliases[m.Metadata.Name] = *a
	}

	for _, m := range manifests {
		if m.Kind != KindACLRule {
			continue
		}
		r, err := e.compileRule(m, resolver)
		if err != nil {
			return nil, fmt.Errorf("compiling rule %s: %w", m.Metadata.Name, err)
		}
		result.Rules = append(result.Rules, *r)
		if len(m.RuleSpec.Aliases) > 0 {
			result.RuleAliases[m.Metadata.Name] = m.RuleSpec.Aliases
		}
	}

	return result, nil
}

func (e *Engine) compileRule(m *Manifest, resolver Resolver) (*acl.ACLRule, error) {
	spec := m.RuleSpec
	rule := &acl.ACLRule{
		Name:    m.Metadata.Name,
		Enabled: spec.Enabled,
		State:   acl.RuleStateNew,

		AllUsers:     spec.AllUsers,
		DenyAllUsers: spec.DenyAllUsers,

		AllNetworkDevices:     spec.AllNetworkDevices,
		DenyAllNetworkDevices: spec.DenyAllNetworkDevices,
	}

	if spec.Expires != "" {
		t, err := time.Parse(time.RFC3339, spec.Expires)
		if err != nil {
			return nil, fmt.Errorf("expires: %w", err)
		}
		rule.Expires = &t
	}

	if len(spec.Locations) == 1 && spec.Locations[0] == "*" {
		rule.AllLocations = true
	} else {
		ids, err := resolveAll(spec.Locations, resolver.LocationID)
		if err != nil {
			return nil, fmt.Errorf("locations: %w", err)
		}
		rule.LocationIDs = ids
	}

	var err error
	if rule.AllowUserIDs, err = resolveAll(spec.AllowUsers, resolver.UserID); err != nil {
		return nil, fmt.Errorf("allowUsers: %w", err)
	}
	if rule.DenyUserIDs, err = resolveAll(spec.DenyUsers, resolver.UserID); err != nil {
		return nil, fmt.Errorf("denyUsers: %w", err)
	}
	if rule.AllowGroupIDs, err = resolveAll(spec.AllowGroups, resolver.GroupID); err != nil {
		return nil, fmt.Errorf("allowGroups: %w", err)
	}
	if rule.DenyGroupIDs, err = resolveAll(spec.DenyGroups, resolver.GroupID); err != nil {
		return nil, fmt.Errorf("denyGroups: %w", err)
	}
	if rule.AllowDeviceIDs, err = resolveAll(spec.AllowDevices, resolver.DeviceID); err != nil {
		return nil, fmt.Errorf("allowDevices: %w", err)
	}
	if rule.DenyDeviceIDs, err = resolveAll(spec.DenyDevices, resolver.DeviceID); err != nil {
		return nil, fmt.Errorf("denyDevices: %w", err)
	}

	if rule.DestinationCIDRs, err = parseCIDRs(spec.DestinationCIDRs); err != nil {
		return nil, err
	}
	if rule.DestinationRanges, err = parseRanges(spec.DestinationRanges); err != nil {
		return nil, err
	}
	if rule.Ports, err = parsePorts(spec.Ports); err != nil {
		return nil, err
	}
	rule.Protocols = parseProtocols(spec.Protocols)

	return rule, nil
}

func compileAlias(m *Manifest) (*acl.Alias, error) {
	spec := m.AliasSpec
	a := &acl.Alias{Name: m.Metadata.Name}

	switch spec.Kind {
	case "Component":
		a.Kind = acl.AliasKindComponent
	default:
		a.Kind = acl.AliasKindDestination
	}

	var err error
	if a.DestinationCIDRs, err = parseCIDRs(spec.DestinationCIDRs); err != nil {
		return nil, err
	}
	if a.DestinationRanges, err = parseRanges(spec.DestinationRanges); err != nil {
		return nil, err
	}
	if a.Ports, err = parsePorts(spec.Ports); err != nil {
		return nil, err
	}
	a.Protocols = parseProtocols(spec.Protocols)

	return a, nil
}

// ─── Helpers ──────────────────────────────────────────────────────────────

func resolveAll(names []string, resolve func(string) (acl.ID, error)) ([]acl.ID, error) {
	if len(names) == 0 {
		return nil, nil
	}
	ids := make([]acl.ID, 0, len(names))
	for _, n := range names {
		id, err := resolve(n)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", n, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseCIDRs(in []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(in))
	for _, s := range in {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("destinationCIDRs: %q: %w", s, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func parseRanges(in []string) ([]acl.IPRange, error) {
	out := make([]acl.IPRange, 0, len(in))
	for _, s := range in {
		start, end, ok := strings.Cut(s, "-")
		if !ok {
			return nil, fmt.Errorf("destinationRanges: %q: want start-end", s)
		}
		startAddr, err := netip.ParseAddr(strings.TrimSpace(start))
		if err != nil {
			return nil, fmt.Errorf("destinationRanges: %q: %w", s, err)
		}
		endAddr, err := netip.ParseAddr(strings.TrimSpace(end))
		if err != nil {
			return nil, fmt.Errorf("destinationRanges: %q: %w", s, err)
		}
		out = append(out, acl.IPRange{Start: startAddr, End: endAddr})
	}
	return out, nil
}

func parsePorts(in []string) ([]acl.PortRange, error) {
	out := make([]acl.PortRange, 0, len(in))
	for _, s := range in {
		start, end, ok := strings.Cut(s, ":")
		if !ok {
			p, err := strconv.ParseUint(s, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("ports: %q: %w", s, err)
			}
			out = append(out, acl.PortRange{Start: uint16(p), End: uint16(p)})
			continue
		}
		lo, err := strconv.ParseUint(start, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("ports: %q: %w", s, err)
		}
		hi, err := strconv.ParseUint(end, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("ports: %q: %w", s, err)
		}
		out = append(out, acl.PortRange{Start: uint16(lo), End: uint16(hi)})
	}
	return out, nil
}

func parseProtocols(in []string) []acl.Protocol {
	out := make([]acl.Protocol, 0, len(in))
	for _, s := range in {
		switch strings.ToLower(s) {
		case "tcp":
			out = append(out, acl.ProtocolTCP)
		case "udp":
			out = append(out, acl.ProtocolUDP)
		case "icmp":
			out = append(out, acl.ProtocolICMP)
		}
	}
	return out
}
