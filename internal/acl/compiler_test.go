package acl

import (
	"context"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeStore is a trivial in-memory Store implementation used to drive
// CompileForLocation end-to-end without a database.
type fakeStore struct {
	location        Location
	rules           []ACLRule
	locationUsers   []UserWithDevices
	locationDevices []DeviceWithIPs
	aliasesByRule   map[ID][]Alias
	groupMembers    map[ID][]ID
}

func (s *fakeStore) FetchLocation(ctx context.Context, locationID ID) (Location, error) {
	return s.location, nil
}

func (s *fakeStore) FetchApplicableRules(ctx context.Context, locationID ID, now time.Time) ([]ACLRule, error) {
	var out []ACLRule
	for _, r := range s.rules {
		if r.State != RuleStateApplied || !r.Enabled {
			continue
		}
		if r.Expires != nil && r.Expires.Before(now) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *fakeStore) FetchLocationUsers(ctx context.Context, locationID ID) ([]UserWithDevices, error) {
	return s.locationUsers, nil
}

func (s *fakeStore) FetchLocationNetworkDevices(ctx context.Context, locationID ID) ([]DeviceWithIPs, error) {
	return s.locationDevices, nil
}

func (s *fakeStore) FetchAliasesForRule(ctx context.Context, ruleID ID) ([]Alias, error) {
	return s.aliasesByRule[ruleID], nil
}

func (s *fakeStore) GroupMembership(ctx context.Context, groupIDs []ID) (map[ID][]ID, error) {
	out := make(map[ID][]ID, len(groupIDs))
	for _, gid := range groupIDs {
		out[gid] = s.groupMembers[gid]
	}
	return out, nil
}

func buildS6Store(t *testing.T) *fakeStore {
	u1, u2, u3, u4, u5 := ID(1), ID(2), ID(3), ID(4), ID(5)
	nd1, nd2, nd3 := ID(10), ID(11), ID(12)
	groupU1U2 := ID(100)
	groupU3U4 := ID(101)

	userDevices := func(uid int) []DeviceBinding {
		return []DeviceBinding{
			{IPs: []netip.Addr{mustAddr(t, "10.0." + itoa(uid) + ".1")}},
			{IPs: []netip.Addr{mustAddr(t, "10.0." + itoa(uid) + ".2")}},
		}
	}

	locationUsers := []UserWithDevices{
		{User: User{ID: u1}, Devices: userDevices(1)},
		{User: User{ID: u2}, Devices: userDevices(2)},
		{User: User{ID: u3}, Devices: userDevices(3)},
		{User: User{ID: u4}, Devices: userDevices(4)},
		{User: User{ID: u5}, Devices: userDevices(5)},
	}

	locationDevices := []DeviceWithIPs{
		{Device: Device{ID: nd1}, IPs: []netip.Addr{mustAddr(t, "10.0.100.1")}},
		{Device: Device{ID: nd2}, IPs: []netip.Addr{mustAddr(t, "10.0.100.2")}},
		{Device: Device{ID: nd3}, IPs: []netip.Addr{mustAddr(t, "10.0.100.3")}},
	}

	webRule := ACLRule{
		ID:                1,
		Name:              "Web",
		Enabled:           true,
		State:             RuleStateApplied,
		DestinationCIDRs:  []netip.Prefix{mustPrefix(t, "192.168.1.0/24")},
		Ports:             []PortRange{{Start: 80, End: 80}, {Start: 443, End: 443}},
		Protocols:         []Protocol{ProtocolTCP},
		AllowUserIDs:      []ID{u1, u2},
		AllowGroupIDs:     []ID{groupU1U2},
		DenyUserIDs:       []ID{u3},
		AllowDeviceIDs:    []ID{nd1},
		DenyDeviceIDs:     []ID{nd2, nd3},
	}

	dnsRule := ACLRule{
		ID:                2,
		Name:              "DNS",
		Enabled:           true,
		State:             RuleStateApplied,
		AllUsers:          true,
		DenyUserIDs:       []ID{u5},
		DenyGroupIDs:      []ID{groupU3U4},
		Ports:             []PortRange{{Start: 53, End: 53}},
		Protocols:         []Protocol{ProtocolTCP, ProtocolUDP},
		AllowDeviceIDs:    []ID{nd1, nd2},
		DenyDeviceIDs:     []ID{nd3},
		DestinationRanges: []IPRange{
			ipr(t, "10.0.1.13", "10.0.1.43"),
			ipr(t, "10.0.1.52", "10.0.2.43"),
		},
	}

	return &fakeStore{
		location: Location{
			ID:               1,
			Name:             "hq",
			AddressPool:      []netip.Prefix{mustPrefix(t, "10.0.0.0/8")},
			ACLEnabled:       true,
			ACLDefaultPolicy: PolicyDeny,
		},
		rules:           []ACLRule{webRule, dnsRule},
		locationUsers:   locationUsers,
		locationDevices: locationDevices,
		aliasesByRule:   map[ID][]Alias{},
		groupMembers: map[ID][]ID{
			groupU1U2: {u1, u2},
			groupU3U4: {u3, u4},
		},
	}
}

func itoa(i int) string {
	digits := "0123456789"
	if i == 0 {
		return "0"
	}
	var b []byte
	for i > 0 {
		b = append([]byte{digits[i%10]}, b...)
		i /= 10
	}
	return string(b)
}

func TestCompileForLocation_S6EndToEnd(t *testing.T) {
	store := buildS6Store(t)
	compiler := NewCompiler(store)

	cfg, err := compiler.CompileForLocation(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, PolicyDeny, cfg.DefaultPolicy)
	require.Len(t, cfg.Rules, 4)

	require.Equal(t, VerdictAllow, cfg.Rules[0].Verdict)
	require.Contains(t, cfg.Rules[0].Comment, "ACL 1 - Web")
	require.Equal(t, VerdictAllow, cfg.Rules[1].Verdict)
	require.Contains(t, cfg.Rules[1].Comment, "ACL 2 - DNS")
	require.Equal(t, VerdictDeny, cfg.Rules[2].Verdict)
	require.Contains(t, cfg.Rules[2].Comment, "ACL 1 - Web")
	require.Equal(t, VerdictDeny, cfg.Rules[3].Verdict)
	require.Contains(t, cfg.Rules[3].Comment, "ACL 2 - DNS")

	wantWebSource := []Address{
		addrRange(t, "10.0.1.1", "10.0.1.2"),
		addrRange(t, "10.0.2.1", "10.0.2.2"),
		single(t, "10.0.100.1"),
	}
	require.Empty(t, cmpDiffAddresses(wantWebSource, cfg.Rules[0].SourceAddrs))

	wantDNSDest := []Address{
		single(t, "10.0.1.13"),
		subnet(t, "10.0.1.14/31"),
		subnet(t, "10.0.1.16/28"),
		subnet(t, "10.0.1.32/29"),
		subnet(t, "10.0.1.40/30"),
		subnet(t, "10.0.1.52/30"),
		subnet(t, "10.0.1.56/29"),
		subnet(t, "10.0.1.64/26"),
		subnet(t, "10.0.1.128/25"),
		subnet(t, "10.0.2.0/27"),
		subnet(t, "10.0.2.32/29"),
		subnet(t, "10.0.2.40/30"),
	}
	require.Empty(t, cmpDiffAddresses(wantDNSDest, cfg.Rules[1].DestinationAddrs))

	require.Empty(t, cfg.Rules[2].SourceAddrs)
	require.Empty(t, cfg.Rules[3].SourceAddrs)
}

func cmpDiffAddresses(want, got []Address) string {
	if len(want) != len(got) {
		return "length mismatch"
	}
	for i := range want {
		if want[i].Kind != got[i].Kind {
			return "kind mismatch"
		}
		switch want[i].Kind {
		case KindSingleIP:
			if want[i].IP != got[i].IP {
				return "ip mismatch"
			}
		case KindSubnet:
			if want[i].Prefix != got[i].Prefix {
				return "prefix mismatch"
			}
		case KindRange:
			if want[i].Start != got[i].Start || want[i].End != got[i].End {
				return "range mismatch"
			}
		}
	}
	return ""
}

func TestCompileForLocation_ACLDisabledYieldsNoConfig(t *testing.T) {
	store := buildS6Store(t)
	store.location.ACLEnabled = false
	compiler := NewCompiler(store)

	cfg, err := compiler.CompileForLocation(context.Background(), 1)
	require.NoError(t, err)
	require.Nil(t, cfg)
}

func TestCompileForLocation_NoAddressFamilyYieldsNoConfig(t *testing.T) {
	store := buildS6Store(t)
	store.location.AddressPool = nil
	compiler := NewCompiler(store)

	cfg, err := compiler.CompileForLocation(context.Background(), 1)
	require.NoError(t, err)
	require.Nil(t, cfg)
}

func TestCompileForLocation_ExpiredRuleExcluded(t *testing.T) {
	store := buildS6Store(t)
	past := time.Now().Add(-time.Hour)
	store.rules[0].Expires = &past
	compiler := NewCompiler(store)

	cfg, err := compiler.CompileForLocation(context.Background(), 1)
	require.NoError(t, err)
	for _, r := range cfg.Rules {
		require.NotContains(t, r.Comment, "ACL 1 - Web")
	}
}

func TestCompileForLocation_DisabledRuleExcluded(t *testing.T) {
	store := buildS6Store(t)
	store.rules[1].Enabled = false
	compiler := NewCompiler(store)

	cfg, err := compiler.CompileForLocation(context.Background(), 1)
	require.NoError(t, err)
	for _, r := range cfg.Rules {
		require.NotContains(t, r.Comment, "ACL 2 - DNS")
	}
}

func TestCompileForLocation_NotAppliedRuleExcluded(t *testing.T) {
	store := buildS6Store(t)
	store.rules[1].State = RuleStateModified
	compiler := NewCompiler(store)

	cfg, err := compiler.CompileForLocation(context.Background(), 1)
	require.NoError(t, err)
	for _, r := range cfg.Rules {
		require.NotContains(t, r.Comment, "ACL 2 - DNS")
	}
}

// TestCompileForLocation_ManualDestinationPlusComponentAliasBothEmit pins
// Open Question 1's resolution: a rule carrying both a manual destination
// and a Component-kind alias must produce a firewall rule pair for each —
// one for the rule's own destination, one per component alias — not just
// one or the other.
func TestCompileForLocation_ManualDestinationPlusComponentAliasBothEmit(t *testing.T) {
	store := buildS6Store(t)
	store.aliasesByRule[ID(1)] = []Alias{
		{
			ID:                200,
			Name:              "monitoring",
			Kind:              AliasKindComponent,
			DestinationCIDRs:  []netip.Prefix{mustPrefix(t, "172.16.0.0/24")},
			Ports:             []PortRange{{Start: 9090, End: 9090}},
			Protocols:         []Protocol{ProtocolTCP},
		},
	}
	compiler := NewCompiler(store)

	cfg, err := compiler.CompileForLocation(context.Background(), 1)
	require.NoError(t, err)

	var webAllows []FirewallRule
	for _, r := range cfg.Rules {
		if r.Verdict == VerdictAllow && strings.Contains(r.Comment, "ACL 1 - Web") {
			webAllows = append(webAllows, r)
		}
	}
	require.Len(t, webAllows, 2, "manual destination and component alias must each emit their own ALLOW rule")

	var sawManual, sawAlias bool
	for _, r := range webAllows {
		if strings.Contains(r.Comment, "ALIAS 200 - monitoring") {
			sawAlias = true
			require.Empty(t, cmpDiffAddresses([]Address{subnet(t, "172.16.0.0/24")}, r.DestinationAddrs))
		} else {
			sawManual = true
			require.Empty(t, cmpDiffAddresses([]Address{subnet(t, "192.168.1.0/24")}, r.DestinationAddrs))
		}
	}
	require.True(t, sawManual, "manual destination group missing")
	require.True(t, sawAlias, "component alias group missing")
}

func TestCompileForLocation_CancelledContext(t *testing.T) {
	store := buildS6Store(t)
	compiler := NewCompiler(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := compiler.CompileForLocation(ctx, 1)
	require.Error(t, err)
	var cancelled *CancelledError
	require.ErrorAs(t, err, &cancelled)
}
