// Package acl implements the ACL compilation core: it turns a location's
// declarative access-control policy into an ordered list of firewall rules
// suitable for a WireGuard gateway.
package acl

import (
	"net/netip"
	"time"
)

// IPFamily distinguishes IPv4 from IPv6 address spaces. A canonical address
// list or firewall rule never mixes the two.
type IPFamily int

const (
	FamilyV4 IPFamily = iota
	FamilyV6
)

func (f IPFamily) String() string {
	if f == FamilyV6 {
		return "v6"
	}
	return "v4"
}

// bits returns the address width of the family, 32 for v4 and 128 for v6.
func (f IPFamily) bits() int {
	if f == FamilyV6 {
		return 128
	}
	return 32
}

// FamilyOf reports the IPFamily of a valid netip.Addr.
func FamilyOf(ip netip.Addr) IPFamily {
	if ip.Is6() && !ip.Is4In6() {
		return FamilyV6
	}
	return FamilyV4
}

// IPRange is an inclusive [Start, End] address range. Both endpoints must
// share the same family; Start must be <= End in the family's integer space.
type IPRange struct {
	Start netip.Addr
	End   netip.Addr
}

// singleIPRange builds the degenerate [ip, ip] range used to feed a single
// address into the canonicalizer.
func singleIPRange(ip netip.Addr) IPRange { return IPRange{Start: ip, End: ip} }

// AddressKind classifies one item of a canonical address list.
type AddressKind int

const (
	KindSingleIP AddressKind = iota
	KindSubnet
	KindRange
)

// Address is one element of a canonical, sorted, non-overlapping address
// list: either a single IP, a CIDR-aligned subnet, or an explicit range.
type Address struct {
	Kind   AddressKind
	IP     netip.Addr   // valid when Kind == KindSingleIP
	Prefix netip.Prefix // valid when Kind == KindSubnet
	Start  netip.Addr   // valid when Kind == KindRange
	End    netip.Addr   // valid when Kind == KindRange
}

// String renders the textual form used on the wire: dotted-decimal / lower
// case compressed IPv6 for single IPs, "addr/prefix" for subnets, and
// "start-end" for explicit ranges.
func (a Address) String() string {
	switch a.Kind {
	case KindSingleIP:
		return a.IP.String()
	case KindSubnet:
		return a.Prefix.String()
	case KindRange:
		return a.Start.String() + "-" + a.End.String()
	default:
		return "<invalid>"
	}
}

// PortKind classifies one item of a canonical port list.
type PortKind int

const (
	PortKindSingle PortKind = iota
	PortKindRange
)

// Port is one canonical port list element.
type Port struct {
	Kind  PortKind
	Start uint16
	End   uint16 // equals Start when Kind == PortKindSingle
}

// PortRange is an inclusive [Start, End] port span as stored on an ACL rule
// or alias. Start == End represents a single port.
type PortRange struct {
	Start uint16
	End   uint16
}

// Protocol is a transport protocol an ACL rule or alias applies to.
type Protocol int

const (
	ProtocolTCP Protocol = iota
	ProtocolUDP
	ProtocolICMP
)

// Verdict is the action a gateway takes for packets matching a firewall
// rule.
type Verdict int

const (
	VerdictAllow Verdict = iota
	VerdictDeny
)

// Policy is a location's default action for traffic matching no rule.
type Policy int

const (
	PolicyAllow Policy = iota
	PolicyDeny
)

// ─── Identity ───────────────────────────────────────────────────────────

// ID is a stable, persisted identifier. The zero value is NoID: "not yet
// persisted". Equality and set operations over principals must compare IDs,
// never full struct values, because two fetched records for the same entity
// may carry different cached fields.
type ID int64

const NoID ID = 0

func (id ID) Valid() bool { return id != NoID }

// ─── Data model entities (spec.md §3) ──────────────────────────────────

// Location is a single WireGuard network: its address pool, device
// bindings, and ACL policy toggles.
type Location struct {
	ID                 ID
	Name               string
	AddressPool        []netip.Prefix
	ACLEnabled         bool
	ACLDefaultPolicy   Policy
}

// Families returns the set of IP families this location's address pool
// spans, in canonical v4-before-v6 order.
func (l Location) Families() []IPFamily {
	var v4, v6 bool
	for _, p := range l.AddressPool {
		if p.Addr().Is6() && !p.Addr().Is4In6() {
			v6 = true
		} else {
			v4 = true
		}
	}
	var out []IPFamily
	if v4 {
		out = append(out, FamilyV4)
	}
	if v6 {
		out = append(out, FamilyV6)
	}
	return out
}

// User is an account that may own devices and belong to groups.
type User struct {
	ID       ID
	Username string
}

// Group is a named collection of users.
type Group struct {
	ID   ID
	Name string
}

// DeviceKind distinguishes a personal user-device from a standalone
// network-device (e.g. a site router or server).
type DeviceKind int

const (
	DeviceKindUser DeviceKind = iota
	DeviceKindNetwork
)

// Device is a WireGuard peer owned by a user (user-device) or standing
// alone (network-device), bound to zero or more locations.
type Device struct {
	ID          ID
	OwnerUserID ID
	Kind        DeviceKind
	Name        string
}

// UserWithDevices is one user bound to a location, together with the
// VPN-address assignments of every user-device they own at that location.
// This is the shape returned by the storage-layer's
// fetch_location_users operation.
type UserWithDevices struct {
	User    User
	Devices []DeviceBinding
}

// DeviceWithIPs is one network-device bound to a location, with its
// assigned VPN addresses there. This is the shape returned by
// fetch_location_network_devices.
type DeviceWithIPs struct {
	Device Device
	IPs    []netip.Addr
}

// DeviceBinding is a device's VPN-address assignment at one location.
// Store implementations only return bindings for devices the WireGuard
// enrollment flow has authorized; an unauthorized device never reaches
// here, so there is no flag to check in the compiler itself.
type DeviceBinding struct {
	Device Device
	IPs    []netip.Addr
}

// RuleState is the lifecycle stage of an ACL rule. Only Applied rules
// participate in compilation.
type RuleState int

const (
	RuleStateNew RuleState = iota
	RuleStateModified
	RuleStateApplied
)

// ACLRule is a declarative access-control record.
type ACLRule struct {
	ID      ID
	Name    string
	Enabled bool
	Expires *time.Time
	State   RuleState

	AllLocations bool
	LocationIDs  []ID // ignored when AllLocations is set

	AllUsers         bool
	DenyAllUsers     bool
	AllowUserIDs     []ID
	DenyUserIDs      []ID
	AllowGroupIDs    []ID
	DenyGroupIDs     []ID

	AllNetworkDevices     bool
	DenyAllNetworkDevices bool
	AllowDeviceIDs        []ID
	DenyDeviceIDs         []ID

	DestinationCIDRs   []netip.Prefix
	DestinationRanges  []IPRange
	Ports              []PortRange
	Protocols          []Protocol
}

// AliasKind distinguishes an alias that folds into its parent rule's
// destination (Destination) from one that emits independent sibling rules
// (Component).
type AliasKind int

const (
	AliasKindDestination AliasKind = iota
	AliasKindComponent
)

// Alias is a reusable bundle of destination addresses, ports, and
// protocols attached to an ACL rule.
type Alias struct {
	ID                ID
	Name              string
	Kind              AliasKind
	DestinationCIDRs  []netip.Prefix
	DestinationRanges []IPRange
	Ports             []PortRange
	Protocols         []Protocol
}

// ─── Output: Firewall Rule / Config (spec.md §3, §6) ───────────────────

// FirewallRule is one compiled rule ready for the gateway wire contract.
type FirewallRule struct {
	Verdict          Verdict
	SourceAddrs      []Address
	DestinationAddrs []Address
	DestinationPorts []Port
	Protocols        []Protocol
	Comment          string
	Family           IPFamily
}

// FirewallConfig is the final compiled output of one location.
type FirewallConfig struct {
	DefaultPolicy Policy
	Rules         []FirewallRule
}
