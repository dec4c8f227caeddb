package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fenwall/aclcore/internal/acl"
)

// disabledStore is a minimal acl.Store whose only location has ACL disabled,
// so CompileForLocation takes the "nothing to publish" path.
type disabledStore struct{}

func (disabledStore) FetchLocation(ctx context.Context, locationID acl.ID) (acl.Location, error) {
	return acl.Location{ID: locationID, ACLEnabled: false}, nil
}
func (disabledStore) FetchApplicableRules(ctx context.Context, locationID acl.ID, now time.Time) ([]acl.ACLRule, error) {
	return nil, nil
}
func (disabledStore) FetchLocationUsers(ctx context.Context, locationID acl.ID) ([]acl.UserWithDevices, error) {
	return nil, nil
}
func (disabledStore) FetchLocationNetworkDevices(ctx context.Context, locationID acl.ID) ([]acl.DeviceWithIPs, error) {
	return nil, nil
}
func (disabledStore) FetchAliasesForRule(ctx context.Context, ruleID acl.ID) ([]acl.Alias, error) {
	return nil, nil
}
func (disabledStore) GroupMembership(ctx context.Context, groupIDs []acl.ID) (map[acl.ID][]acl.ID, error) {
	return nil, nil
}

// recordingPublisher records whether Push was ever invoked.
type recordingPublisher struct {
	pushed bool
}

func (p *recordingPublisher) Push(ctx context.Context, locationID acl.ID, cfg *acl.FirewallConfig) error {
	p.pushed = true
	return nil
}

func TestCompileAndPublish_SkipsPushWhenNothingToCompile(t *testing.T) {
	compiler := acl.NewCompiler(disabledStore{})
	pub := &recordingPublisher{}
	svc := NewService(compiler, pub, zap.NewNop())

	cfg, err := svc.CompileAndPublish(context.Background(), acl.ID(1))
	require.NoError(t, err)
	require.Nil(t, cfg)
	require.False(t, pub.pushed, "Push must not be called when there is nothing to publish")
	require.Nil(t, svc.CurrentConfig(acl.ID(1)))
}

func TestPreview_HandlesNothingToCompile(t *testing.T) {
	compiler := acl.NewCompiler(disabledStore{})
	pub := &recordingPublisher{}
	svc := NewService(compiler, pub, zap.NewNop())

	out, err := svc.Preview(context.Background(), acl.ID(1))
	require.NoError(t, err)
	require.Contains(t, out, "nothing to publish")
}
