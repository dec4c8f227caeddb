package acl

// idSet is a small set of IDs, used throughout principal resolution because
// equality and subtraction must be performed by stable identifier, never by
// full struct value (spec §4.3 step 4, §9 "Principal set-algebra equality").
type idSet map[ID]struct{}

func newIDSet(ids ...ID) idSet {
	s := make(idSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s idSet) add(ids ...ID) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

func (s idSet) subtract(other idSet) idSet {
	out := make(idSet, len(s))
	for id := range s {
		if _, denied := other[id]; !denied {
			out[id] = struct{}{}
		}
	}
	return out
}

func (s idSet) has(id ID) bool {
	_, ok := s[id]
	return ok
}

// ResolvedPrincipals is the effective allow-set for one ACL rule at one
// location: the users and network-devices it permits as traffic sources.
type ResolvedPrincipals struct {
	UserIDs   idSet
	DeviceIDs idSet
}

// ResolvePrincipals computes the effective principal set of an ACL rule at
// a location: (allow-set - deny-set), after flattening group membership,
// with explicit deny always winning over allow (spec §4.3, component C3).
//
// locationUsers is the universe of users bound to the location (used when
// AllUsers is set); locationDevices is the universe of network-devices
// bound to the location; groupMembers maps a group ID to its flattened
// member user IDs.
func ResolvePrincipals(rule ACLRule, locationUsers []UserWithDevices, locationDevices []DeviceWithIPs, groupMembers map[ID][]ID) ResolvedPrincipals {
	userUniverse := newIDSet()
	for _, u := range locationUsers {
		userUniverse.add(u.User.ID)
	}

	allowUsers := newIDSet()
	if rule.AllUsers {
		for id := range userUniverse {
			allowUsers.add(id)
		}
	} else {
		allowUsers.add(rule.AllowUserIDs...)
		for _, gid := range rule.AllowGroupIDs {
			allowUsers.add(groupMembers[gid]...)
		}
	}

	denyUsers := newIDSet()
	denyUsers.add(rule.DenyUserIDs...)
	for _, gid := range rule.DenyGroupIDs {
		denyUsers.add(groupMembers[gid]...)
	}

	var effectiveUsers idSet
	if rule.DenyAllUsers {
		effectiveUsers = newIDSet()
	} else {
		effectiveUsers = allowUsers.subtract(denyUsers)
	}

	deviceUniverse := newIDSet()
	for _, d := range locationDevices {
		deviceUniverse.add(d.Device.ID)
	}

	allowDevices := newIDSet()
	if rule.AllNetworkDevices {
		for id := range deviceUniverse {
			allowDevices.add(id)
		}
	} else {
		allowDevices.add(rule.AllowDeviceIDs...)
	}

	denyDevices := newIDSet()
	denyDevices.add(rule.DenyDeviceIDs...)

	var effectiveDevices idSet
	if rule.DenyAllNetworkDevices {
		effectiveDevices = newIDSet()
	} else {
		effectiveDevices = allowDevices.subtract(denyDevices)
	}

	return ResolvedPrincipals{UserIDs: effectiveUsers, DeviceIDs: effectiveDevices}
}

// ResolveSourceIPs maps a resolved principal set to the IP ranges that feed
// C1: for each allowed user, the union of VPN IPs of every user-device they
// own at this location; for each allowed network-device, its own VPN IPs at
// this location (spec §4.3 step 5).
func ResolveSourceIPs(principals ResolvedPrincipals, locationUsers []UserWithDevices, locationDevices []DeviceWithIPs) []IPRange {
	var out []IPRange
	for _, u := range locationUsers {
		if !principals.UserIDs.has(u.User.ID) {
			continue
		}
		for _, d := range u.Devices {
			for _, ip := range d.IPs {
				out = append(out, singleIPRange(ip))
			}
		}
	}
	for _, d := range locationDevices {
		if !principals.DeviceIDs.has(d.Device.ID) {
			continue
		}
		for _, ip := range d.IPs {
			out = append(out, singleIPRange(ip))
		}
	}
	return out
}
