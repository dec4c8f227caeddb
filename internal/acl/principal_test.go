package acl

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePrincipals_S5SetAlgebra(t *testing.T) {
	u1, u2, u3, u4, u5 := ID(1), ID(2), ID(3), ID(4), ID(5)

	locationUsers := []UserWithDevices{
		{User: User{ID: u1}}, {User: User{ID: u2}}, {User: User{ID: u3}}, {User: User{ID: u4}}, {User: User{ID: u5}},
	}

	rule := ACLRule{
		AllowUserIDs: []ID{u1, u2, u4},
		DenyUserIDs:  []ID{u3, u4, u5},
	}

	got := ResolvePrincipals(rule, locationUsers, nil, nil)
	require.ElementsMatch(t, idSetKeys(got.UserIDs), []ID{u1, u2})
}

func TestResolvePrincipals_AllUsersMinusDeny(t *testing.T) {
	u1, u2, u3 := ID(1), ID(2), ID(3)
	locationUsers := []UserWithDevices{{User: User{ID: u1}}, {User: User{ID: u2}}, {User: User{ID: u3}}}

	rule := ACLRule{AllUsers: true, DenyUserIDs: []ID{u3}}
	got := ResolvePrincipals(rule, locationUsers, nil, nil)
	require.ElementsMatch(t, idSetKeys(got.UserIDs), []ID{u1, u2})
}

func TestResolvePrincipals_DenyAllUsersWins(t *testing.T) {
	u1 := ID(1)
	locationUsers := []UserWithDevices{{User: User{ID: u1}}}
	rule := ACLRule{AllUsers: true, DenyAllUsers: true}
	got := ResolvePrincipals(rule, locationUsers, nil, nil)
	require.Empty(t, idSetKeys(got.UserIDs))
}

func TestResolvePrincipals_GroupFlattening(t *testing.T) {
	u1, u2, u3 := ID(1), ID(2), ID(3)
	g1 := ID(100)
	locationUsers := []UserWithDevices{{User: User{ID: u1}}, {User: User{ID: u2}}, {User: User{ID: u3}}}

	rule := ACLRule{AllowGroupIDs: []ID{g1}, DenyUserIDs: []ID{u3}}
	groupMembers := map[ID][]ID{g1: {u1, u2, u3}}

	got := ResolvePrincipals(rule, locationUsers, nil, groupMembers)
	require.ElementsMatch(t, idSetKeys(got.UserIDs), []ID{u1, u2})
}

func TestResolvePrincipals_DeviceAllowDeny(t *testing.T) {
	nd1, nd2, nd3 := ID(10), ID(11), ID(12)
	locationDevices := []DeviceWithIPs{
		{Device: Device{ID: nd1}}, {Device: Device{ID: nd2}}, {Device: Device{ID: nd3}},
	}
	rule := ACLRule{AllowDeviceIDs: []ID{nd1}, DenyDeviceIDs: []ID{nd2, nd3}}
	got := ResolvePrincipals(rule, nil, locationDevices, nil)
	require.ElementsMatch(t, idSetKeys(got.DeviceIDs), []ID{nd1})
}

func idSetKeys(s idSet) []ID {
	out := make([]ID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

func TestResolveSourceIPs(t *testing.T) {
	u1, nd1 := ID(1), ID(10)
	ip1 := mustAddr(t, "10.0.1.1")
	ip2 := mustAddr(t, "10.0.1.2")
	ndIP := mustAddr(t, "10.0.100.1")

	locationUsers := []UserWithDevices{
		{User: User{ID: u1}, Devices: []DeviceBinding{{IPs: []netip.Addr{ip1, ip2}}}},
	}
	locationDevices := []DeviceWithIPs{
		{Device: Device{ID: nd1}, IPs: []netip.Addr{ndIP}},
	}

	principals := ResolvedPrincipals{UserIDs: newIDSet(u1), DeviceIDs: newIDSet(nd1)}
	got := ResolveSourceIPs(principals, locationUsers, locationDevices)

	require.ElementsMatch(t, got, []IPRange{
		{Start: ip1, End: ip1},
		{Start: ip2, End: ip2},
		{Start: ndIP, End: ndIP},
	})
}
