package store

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fenwall/aclcore/internal/acl"
)

// PGStore implements acl.Store against Postgres via pgx. It is the sole
// adapter between the compiler's pure read contract and the relational
// schema; CompileForLocation never imports pgx directly.
type PGStore struct {
	db *DB
}

func NewPGStore(db *DB) *PGStore { return &PGStore{db: db} }

func (s *PGStore) FetchLocation(ctx context.Context, locationID acl.ID) (acl.Location, error) {
	row := s.db.Pool.QueryRow(ctx, `
		SELECT id, name, address_pool, acl_enabled, acl_default_policy
		FROM locations WHERE id = $1`, int64(locationID))

	var loc acl.Location
	var id int64
	var pool []string
	var defaultPolicy string
	if err := row.Scan(&id, &loc.Name, &pool, &loc.ACLEnabled, &defaultPolicy); err != nil {
		if err == pgx.ErrNoRows {
			return acl.Location{}, fmt.Errorf("location %d not found", locationID)
		}
		return acl.Location{}, fmt.Errorf("fetch location: %w", err)
	}
	loc.ID = acl.ID(id)
	loc.ACLDefaultPolicy = parsePolicy(defaultPolicy)
	for _, cidr := range pool {
		p, err := netip.ParsePrefix(cidr)
		if err != nil {
			return acl.Location{}, fmt.Errorf("location %d address pool: %w", locationID, err)
		}
		loc.AddressPool = append(loc.AddressPool, p)
	}
	return loc, nil
}

func (s *PGStore) FetchApplicableRules(ctx context.Context, locationID acl.ID, now time.Time) ([]acl.ACLRule, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT r.id, r.name, r.enabled, r.expires, r.state,
		       r.all_locations, r.all_users, r.deny_all_users,
		       r.all_network_devices, r.deny_all_network_devices,
		       r.destination_cidrs, r.destination_ranges, r.ports, r.protocols,
		       r.allow_user_ids, r.deny_user_ids, r.allow_group_ids, r.deny_group_ids,
		       r.allow_device_ids, r.deny_device_ids
		FROM acl_rules r
		LEFT JOIN acl_rule_locations rl ON rl.rule_id = r.id
		WHERE r.state = 'applied' AND r.enabled
		  AND (r.expires IS NULL OR r.expires > $2)
		  AND (r.all_locations OR rl.location_id = $1)
		GROUP BY r.id
		ORDER BY r.id`, int64(locationID), now)
	if err != nil {
		return nil, fmt.Errorf("fetch applicable rules: %w", err)
	}
	defer rows.Close()

	var out []acl.ACLRule
	for rows.Next() {
		rule, err := scanACLRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (s *PGStore) FetchLocationUsers(ctx context.Context, locationID acl.ID) ([]acl.UserWithDevices, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT u.id, u.username, d.id, d.owner_user_id, d.kind, d.name, b.ips
		FROM users u
		JOIN devices d ON d.owner_user_id = u.id AND d.kind = 'user'
		JOIN device_location_bindings b ON b.device_id = d.id AND b.location_id = $1 AND b.authorized
		WHERE u.id IN (SELECT DISTINCT owner_user_id FROM devices dd
			JOIN device_location_bindings bb ON bb.device_id = dd.id WHERE bb.location_id = $1 AND bb.authorized)
		ORDER BY u.id, d.id`, int64(locationID))
	if err != nil {
		return nil, fmt.Errorf("fetch location users: %w", err)
	}
	defer rows.Close()

	byUser := map[acl.ID]*acl.UserWithDevices{}
	var order []acl.ID
	for rows.Next() {
		var uid, did, owner int64
		var username, kind, name string
		var ips []string
		if err := rows.Scan(&uid, &username, &did, &owner, &kind, &name, &ips); err != nil {
			return nil, err
		}
		u, ok := byUser[acl.ID(uid)]
		if !ok {
			u = &acl.UserWithDevices{User: acl.User{ID: acl.ID(uid), Username: username}}
			byUser[acl.ID(uid)] = u
			order = append(order, acl.ID(uid))
		}
		binding := acl.DeviceBinding{
			Device: acl.Device{ID: acl.ID(did), OwnerUserID: acl.ID(owner), Kind: acl.DeviceKindUser, Name: name},
		}
		for _, s := range ips {
			addr, err := netip.ParseAddr(s)
			if err != nil {
				continue
			}
			binding.IPs = append(binding.IPs, addr)
		}
		u.Devices = append(u.Devices, binding)
	}

	out := make([]acl.UserWithDevices, 0, len(order))
	for _, id := range order {
		out = append(out, *byUser[id])
	}
	return out, nil
}

func (s *PGStore) FetchLocationNetworkDevices(ctx context.Context, locationID acl.ID) ([]acl.DeviceWithIPs, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT d.id, d.name, b.ips
		FROM devices d
		JOIN device_location_bindings b ON b.device_id = d.id AND b.location_id = $1 AND b.authorized
		WHERE d.kind = 'network'
		ORDER BY d.id`, int64(locationID))
	if err != nil {
		return nil, fmt.Errorf("fetch location network devices: %w", err)
	}
	defer rows.Close()

	var out []acl.DeviceWithIPs
	for rows.Next() {
		var id int64
		var name string
		var ips []string
		if err := rows.Scan(&id, &name, &ips); err != nil {
			return nil, err
		}
		dw := acl.DeviceWithIPs{Device: acl.Device{ID: acl.ID(id), Kind: acl.DeviceKindNetwork, Name: name}}
		for _, raw := range ips {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				continue
			}
			dw.IPs = append(dw.IPs, addr)
		}
		out = append(out, dw)
	}
	return out, rows.Err()
}

func (s *PGStore) FetchAliasesForRule(ctx context.Context, ruleID acl.ID) ([]acl.Alias, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT a.id, a.name, a.kind, a.destination_cidrs, a.destination_ranges, a.ports, a.protocols
		FROM aliases a
		JOIN acl_rule_aliases ra ON ra.alias_id = a.id
		WHERE ra.rule_id = $1
		ORDER BY a.id`, int64(ruleID))
	if err != nil {
		return nil, fmt.Errorf("fetch aliases for rule: %w", err)
	}
	defer rows.Close()

	var out []acl.Alias
	for rows.Next() {
		a, err := scanAlias(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PGStore) GroupMembership(ctx context.Context, groupIDs []acl.ID) (map[acl.ID][]acl.ID, error) {
	out := make(map[acl.ID][]acl.ID, len(groupIDs))
	if len(groupIDs) == 0 {
		return out, nil
	}
	ids := make([]int64, len(groupIDs))
	for i, id := range groupIDs {
		ids[i] = int64(id)
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT group_id, user_id FROM group_members WHERE group_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch group membership: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var gid, uid int64
		if err := rows.Scan(&gid, &uid); err != nil {
			return nil, err
		}
		out[acl.ID(gid)] = append(out[acl.ID(gid)], acl.ID(uid))
	}
	return out, rows.Err()
}

// ─── Scanning helpers ───────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanACLRule(row rowScanner) (acl.ACLRule, error) {
	var r acl.ACLRule
	var id int64
	var state string
	var destCIDRs []string
	var destRanges []string
	var ports []string
	var protocols []string
	var allowUsers, denyUsers, allowGroups, denyGroups, allowDevices, denyDevices []int64

	if err := row.Scan(
		&id, &r.Name, &r.Enabled, &r.Expires, &state,
		&r.AllLocations, &r.AllUsers, &r.DenyAllUsers,
		&r.AllNetworkDevices, &r.DenyAllNetworkDevices,
		&destCIDRs, &destRanges, &ports, &protocols,
		&allowUsers, &denyUsers, &allowGroups, &denyGroups,
		&allowDevices, &denyDevices,
	); err != nil {
		return acl.ACLRule{}, fmt.Errorf("scan acl rule: %w", err)
	}

	r.ID = acl.ID(id)
	r.State = parseRuleState(state)
	r.AllowUserIDs = toIDs(allowUsers)
	r.DenyUserIDs = toIDs(denyUsers)
	r.AllowGroupIDs = toIDs(allowGroups)
	r.DenyGroupIDs = toIDs(denyGroups)
	r.AllowDeviceIDs = toIDs(allowDevices)
	r.DenyDeviceIDs = toIDs(denyDevices)

	for _, c := range destCIDRs {
		p, err := netip.ParsePrefix(c)
		if err != nil {
			return acl.ACLRule{}, &acl.MalformedAddressError{RuleID: r.ID, Err: err}
		}
		r.DestinationCIDRs = append(r.DestinationCIDRs, p)
	}
	for _, raw := range destRanges {
		rng, err := parseIPRange(raw)
		if err != nil {
			return acl.ACLRule{}, &acl.MalformedAddressError{RuleID: r.ID, Err: err}
		}
		r.DestinationRanges = append(r.DestinationRanges, rng)
	}
	r.Ports = parsePortRanges(ports)
	r.Protocols = parseProtocols(protocols)

	return r, nil
}

func scanAlias(row rowScanner) (acl.Alias, error) {
	var a acl.Alias
	var id int64
	var kind string
	var destCIDRs []string
	var destRanges []string
	var ports []string
	var protocols []string

	if err := row.Scan(&id, &a.Name, &kind, &destCIDRs, &destRanges, &ports, &protocols); err != nil {
		return acl.Alias{}, fmt.Errorf("scan alias: %w", err)
	}
	a.ID = acl.ID(id)
	if kind == "component" {
		a.Kind = acl.AliasKindComponent
	} else {
		a.Kind = acl.AliasKindDestination
	}
	for _, c := range destCIDRs {
		p, err := netip.ParsePrefix(c)
		if err != nil {
			return acl.Alias{}, &acl.InconsistentPolicyError{RuleID: a.ID, Err: err}
		}
		a.DestinationCIDRs = append(a.DestinationCIDRs, p)
	}
	for _, raw := range destRanges {
		rng, err := parseIPRange(raw)
		if err != nil {
			return acl.Alias{}, &acl.InconsistentPolicyError{RuleID: a.ID, Err: err}
		}
		a.DestinationRanges = append(a.DestinationRanges, rng)
	}
	a.Ports = parsePortRanges(ports)
	a.Protocols = parseProtocols(protocols)
	return a, nil
}

func toIDs(in []int64) []acl.ID {
	if len(in) == 0 {
		return nil
	}
	out := make([]acl.ID, len(in))
	for i, v := range in {
		out[i] = acl.ID(v)
	}
	return out
}

func parsePolicy(s string) acl.Policy {
	if s == "deny" {
		return acl.PolicyDeny
	}
	return acl.PolicyAllow
}

func parseRuleState(s string) acl.RuleState {
	switch s {
	case "modified":
		return acl.RuleStateModified
	case "applied":
		return acl.RuleStateApplied
	default:
		return acl.RuleStateNew
	}
}

func parseProtocols(in []string) []acl.Protocol {
	var out []acl.Protocol
	for _, s := range in {
		switch s {
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
