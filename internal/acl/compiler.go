package acl

import (
	"context"
	"sort"
	"time"
)

// Compiler turns a location's ACL policy into a FirewallConfig. It holds no
// state beyond its Store and its Activity recorder; one Compiler instance may serve concurrent
// CompileForLocation calls for different (or the same) locations.
type Compiler struct {
	Store    Store
	Activity ActivityRecorder
}

// NewCompiler builds a Compiler backed by store, with activity recording
// disabled until WithActivityRecorder is applied.
func NewCompiler(store Store) *Compiler {
	return &Compiler{Store: store, Activity: NoopActivityRecorder{}}
}

// WithActivityRecorder attaches an ActivityRecorder that observes alias
// expansion during compilation, and returns the same Compiler for chaining.
func (c *Compiler) WithActivityRecorder(r ActivityRecorder) *Compiler {
	c.Activity = r
	return c
}

// entry is one (rule, alias-group) firewall-rule pair still tagged with its
// originating rule id and alias index, carried through until final
// concatenation so the ordering step (spec §4.5 step 5) can sort on them.
type entry struct {
	ruleID     ID
	aliasIndex int
	family     IPFamily
	allow      FirewallRule
	deny       FirewallRule
}

// CompileForLocation is the Rule Compiler, component C5 (spec §4.5). It
// fetches the location's applicable policy, resolves every rule through
// C1–C4, and emits the ordered FirewallConfig described in spec.md §4.5
// step 5 and pinned by SPEC_FULL.md's resolution of Open Question 2:
// v4-ALLOWs, then v6-ALLOWs, then v4-DENYs, then v6-DENYs, each block
// ordered by ascending rule id then alias index.
//
// A nil, nil return means step 1 of spec §4.5 applies: there is nothing to
// publish for this location (ACL disabled, or no address family assigned),
// and callers must not mistake that for an empty-but-present config.
func (c *Compiler) CompileForLocation(ctx context.Context, locationID ID) (*FirewallConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, &CancelledError{Err: err}
	}

	location, err := c.Store.FetchLocation(ctx, locationID)
	if err != nil {
		return nil, &StorageUnavailableError{Op: "FetchLocation", Err: err}
	}

	if !location.ACLEnabled {
		return nil, nil
	}

	families := location.Families()
	if len(families) == 0 {
		return nil, nil
	}

	rules, err := c.Store.FetchApplicableRules(ctx, locationID, time.Now())
	if err != nil {
		return nil, &StorageUnavailableError{Op: "FetchApplicableRules", Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, &CancelledError{Err: err}
	}

	locationUsers, err := c.Store.FetchLocationUsers(ctx, locationID)
	if err != nil {
		return nil, &StorageUnavailableError{Op: "FetchLocationUsers", Err: err}
	}

	locationDevices, err := c.Store.FetchLocationNetworkDevices(ctx, locationID)
	if err != nil {
		return nil, &StorageUnavailableError{Op: "FetchLocationNetworkDevices", Err: err}
	}

	var entries []entry

	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return nil, &CancelledError{Err: err}
		}

		aliases, err := c.Store.FetchAliasesForRule(ctx, rule.ID)
		if err != nil {
			return nil, &StorageUnavailableError{Op: "FetchAliasesForRule", Err: err}
		}

		groupIDs := uniqueGroupIDs(rule)
		groupMembers, err := c.Store.GroupMembership(ctx, groupIDs)
		if err != nil {
			return nil, &StorageUnavailableError{Op: "GroupMembership", Err: err}
		}

		principals := ResolvePrincipals(rule, locationUsers, locationDevices, groupMembers)
		sourceIPs := ResolveSourceIPs(principals, locationUsers, locationDevices)

		groups := ExpandAliasGroups(rule, aliases)
		if len(groups) == 0 {
			continue
		}
		if len(aliases) > 0 {
			c.Activity.Record(ctx, ActivityEvent{Kind: EventAliasExpanded, RuleID: rule.ID})
		}

		for idx, group := range groups {
			destIPs := group.destinationIPRanges()

			for _, family := range families {
				canonSource := CanonicalizeAddresses(sourceIPs, family)
				canonDest := CanonicalizeAddresses(destIPs, family)
				if len(canonDest) == 0 {
					continue
				}
				canonPorts := CanonicalizePorts(group.Ports)
				protocols := append([]Protocol(nil), group.Protocols...)

				allowComment := group.Comment(rule, VerdictAllow)
				denyComment := group.Comment(rule, VerdictDeny)

				entries = append(entries, entry{
					ruleID:     rule.ID,
					aliasIndex: idx,
					family:     family,
					allow: FirewallRule{
						Verdict:          VerdictAllow,
						SourceAddrs:      canonSource,
						DestinationAddrs: canonDest,
						DestinationPorts: canonPorts,
						Protocols:        protocols,
						Comment:          allowComment,
						Family:           family,
					},
					deny: FirewallRule{
						Verdict:          VerdictDeny,
						SourceAddrs:      nil,
						DestinationAddrs: canonDest,
						DestinationPorts: canonPorts,
						Protocols:        protocols,
						Comment:          denyComment,
						Family:           family,
					},
				})
			}
		}
	}

	return &FirewallConfig{
		DefaultPolicy: location.ACLDefaultPolicy,
		Rules:         orderEntries(entries),
	}, nil
}

// orderEntries concatenates the four (family, verdict) buckets in the order
// v4-ALLOW, v6-ALLOW, v4-DENY, v6-DENY, each sorted by ascending rule id
// then alias index (SPEC_FULL.md §11, resolving spec.md's Open Question 2).
func orderEntries(entries []entry) []FirewallRule {
	byOrder := func(a, b entry) bool {
		if a.ruleID != b.ruleID {
			return a.ruleID < b.ruleID
		}
		return a.aliasIndex < b.aliasIndex
	}

	bucket := func(family IPFamily) []entry {
		var out []entry
		for _, e := range entries {
			if e.family == family {
				out = append(out, e)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return byOrder(out[i], out[j]) })
		return out
	}

	v4 := bucket(FamilyV4)
	v6 := bucket(FamilyV6)

	var out []FirewallRule
	for _, e := range v4 {
		out = append(out, e.allow)
	}
	for _, e := range v6 {
		out = append(out, e.allow)
	}
	for _, e := range v4 {
		out = append(out, e.deny)
	}
	for _, e := range v6 {
		out = append(out, e.deny)
	}
	return out
}

// uniqueGroupIDs collects every group id a rule's allow/deny lists
// reference, deduplicated, so GroupMembership is called once per rule.
func uniqueGroupIDs(rule ACLRule) []ID {
	seen := newIDSet()
	seen.add(rule.AllowGroupIDs...)
	seen.add(rule.DenyGroupIDs...)
	out := make([]ID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
