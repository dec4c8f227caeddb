package acl

import "context"

// EventKind enumerates the lifecycle and compilation events an
// ActivityRecorder can observe.
type EventKind string

const (
	EventRuleCreated   EventKind = "rule_created"
	EventRuleModified  EventKind = "rule_modified"
	EventRuleApplied   EventKind = "rule_applied"
	EventRuleExpired   EventKind = "rule_expired"
	EventAliasExpanded EventKind = "alias_expanded"
)

// ActivityEvent is one entry of the activity-log collaborator spec.md lists
// as out-of-scope and referenced only by interface.
type ActivityEvent struct {
	Kind   EventKind
	RuleID ID
	Detail string
}

// ActivityRecorder is implemented by whatever sink ultimately stores or
// forwards activity events. internal/store's RuleStore and Compiler both
// call it at lifecycle transitions and at alias expansion so a real sink
// can be wired in later without touching either.
type ActivityRecorder interface {
	Record(ctx context.Context, event ActivityEvent)
}

// NoopActivityRecorder discards every event. It is the default until a
// caller wires a real sink.
type NoopActivityRecorder struct{}

func (NoopActivityRecorder) Record(context.Context, ActivityEvent) {}

// GroupMembershipFetcher resolves a group id to its member user ids. It is
// the seam spec.md lists LDAP against as an out-of-scope collaborator:
// Store.GroupMembership satisfies it directly today by querying the local
// group_members table, and a real LDAP sync can implement the same
// interface later without C3 (principal resolution) changing at all.
type GroupMembershipFetcher interface {
	GroupMembership(ctx context.Context, groupIDs []ID) (map[ID][]ID, error)
}

// NoopGroupMembershipFetcher returns every group as empty, for a fetcher
// slot that hasn't been wired to a real directory yet.
type NoopGroupMembershipFetcher struct{}

func (NoopGroupMembershipFetcher) GroupMembership(context.Context, []ID) (map[ID][]ID, error) {
	return map[ID][]ID{}, nil
}
