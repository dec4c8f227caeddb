package acl

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandAliasGroups_ManualDestinationOnly(t *testing.T) {
	rule := ACLRule{
		ID:               1,
		Name:             "web",
		DestinationCIDRs: []netip.Prefix{mustPrefix(t, "192.168.1.0/24")},
	}

	groups := ExpandAliasGroups(rule, nil)
	require.Len(t, groups, 1)
	require.Equal(t, "ACL 1 - web [ALLOW]", groups[0].Comment(rule, VerdictAllow))
	require.Equal(t, "ACL 1 - web [DENY]", groups[0].Comment(rule, VerdictDeny))
}

func TestExpandAliasGroups_DestinationAliasFoldsIntoParent(t *testing.T) {
	rule := ACLRule{ID: 2, Name: "dns"}
	alias := Alias{
		ID:               50,
		Name:             "dns-servers",
		Kind:             AliasKindDestination,
		DestinationCIDRs: []netip.Prefix{mustPrefix(t, "10.0.0.53/32")},
		Ports:            []PortRange{{Start: 53, End: 53}},
		Protocols:        []Protocol{ProtocolUDP},
	}

	groups := ExpandAliasGroups(rule, []Alias{alias})
	require.Len(t, groups, 1)
	require.Len(t, groups[0].DestinationCIDRs, 1)
	require.Equal(t, "ACL 2 - dns [ALLOW]", groups[0].Comment(rule, VerdictAllow))
}

// TestExpandAliasGroups_ManualDestinationPlusComponentAlias pins the
// resolution of the alias-kinds interaction open question: a manual
// destination and component aliases both emit, as separate groups.
func TestExpandAliasGroups_ManualDestinationPlusComponentAlias(t *testing.T) {
	rule := ACLRule{
		ID:               3,
		Name:             "mixed",
		DestinationCIDRs: []netip.Prefix{mustPrefix(t, "172.16.0.0/16")},
	}
	component := Alias{
		ID:               60,
		Name:             "internal-api",
		Kind:             AliasKindComponent,
		DestinationCIDRs: []netip.Prefix{mustPrefix(t, "10.1.1.0/24")},
	}

	groups := ExpandAliasGroups(rule, []Alias{component})
	require.Len(t, groups, 2)
	require.Len(t, groups[0].DestinationCIDRs, 1)
	require.Equal(t, "ACL 3 - mixed [ALLOW]", groups[0].Comment(rule, VerdictAllow))
	require.Equal(t, "ACL 3 - mixed, ALIAS 60 - internal-api [ALLOW]", groups[1].Comment(rule, VerdictAllow))
}

func TestExpandAliasGroups_OnlyComponentAliasesNoParentGroup(t *testing.T) {
	rule := ACLRule{ID: 4, Name: "no-manual-dest"}
	component := Alias{
		ID:               70,
		Name:             "svc-a",
		Kind:             AliasKindComponent,
		DestinationCIDRs: []netip.Prefix{mustPrefix(t, "10.2.0.0/24")},
	}

	groups := ExpandAliasGroups(rule, []Alias{component})
	require.Len(t, groups, 1)
	require.Equal(t, "ACL 4 - no-manual-dest, ALIAS 70 - svc-a [ALLOW]", groups[0].Comment(rule, VerdictAllow))
}

func TestExpandAliasGroups_Empty(t *testing.T) {
	rule := ACLRule{ID: 5, Name: "empty"}
	groups := ExpandAliasGroups(rule, nil)
	require.Empty(t, groups)
}
