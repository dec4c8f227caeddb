package acl

import (
	"context"
	"time"
)

// Store is the storage-layer contract the compiler reads through. All
// methods are read-only from the compiler's perspective; mutation of ACL
// state happens elsewhere (internal/store, internal/api) against the same
// backing tables.
//
// FetchLocation is not part of spec.md's enumerated storage operations; it
// is added so CompileForLocation can resolve a location's address pool and
// default policy without a second collaborator, mirroring how the teacher's
// PolicyStore exposes both rule and target lookups off one interface.
type Store interface {
	FetchLocation(ctx context.Context, locationID ID) (Location, error)
	FetchApplicableRules(ctx context.Context, locationID ID, now time.Time) ([]ACLRule, error)
	FetchLocationUsers(ctx context.Context, locationID ID) ([]UserWithDevices, error)
	FetchLocationNetworkDevices(ctx context.Context, locationID ID) ([]DeviceWithIPs, error)
	FetchAliasesForRule(ctx context.Context, ruleID ID) ([]Alias, error)
	GroupMembership(ctx context.Context, groupIDs []ID) (map[ID][]ID, error)
}
