package manifest

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fenwall/aclcore/internal/acl"
)

const sampleYAML = `
apiVersion: aclcore.io/v1
kind: Alias
metadata:
  name: internal-web
  namespace: default
spec:
  kind: Destination
  destinationCIDRs: ["10.0.1.0/24"]
  ports: ["443", "8443:8450"]
  protocols: ["tcp"]
---
apiVersion: aclcore.io/v1
kind: ACLRule
metadata:
  name: allow-eng-to-web
  namespace: default
spec:
  enabled: true
  locations: ["*"]
  allowGroups: ["engineering"]
  destinationCIDRs: ["10.0.2.0/24"]
  ports: ["80"]
  protocols: ["tcp"]
  aliases: ["internal-web"]
`

type fakeResolver struct {
	groups map[string]acl.ID
}

func (r fakeResolver) LocationID(name string) (acl.ID, error) { return acl.NoID, nil }
func (r fakeResolver) UserID(name string) (acl.ID, error)     { return acl.NoID, nil }
func (r fakeResolver) DeviceID(name string) (acl.ID, error)   { return acl.NoID, nil }
func (r fakeResolver) GroupID(name string) (acl.ID, error) {
	if id, ok := r.groups[name]; ok {
		return id, nil
	}
	return acl.NoID, errors.New("unknown group")
}

func TestParseReader_MultiDocument(t *testing.T) {
	p := NewParser()
	manifests, err := p.ParseReader(strings.NewReader(sampleYAML))
	require.NoError(t, err)
	require.Len(t, manifests, 2)
	require.Equal(t, KindAlias, manifests[0].Kind)
	require.Equal(t, "internal-web", manifests[0].Metadata.Name)
	require.Equal(t, KindACLRule, manifests[1].Kind)
	require.Equal(t, "allow-eng-to-web", manifests[1].Metadata.Name)
}

func TestParseReader_RejectsUnknownAPIVersion(t *testing.T) {
	p := NewParser()
	_, err := p.ParseReader(strings.NewReader(`
apiVersion: aegisx.io/v1
kind: ACLRule
metadata:
  name: x
spec: {}
`))
	require.Error(t, err)
}

func TestParseReader_RejectsUnknownKind(t *testing.T) {
	p := NewParser()
	_, err := p.ParseReader(strings.NewReader(`
apiVersion: aclcore.io/v1
kind: LoadBalancerPolicy
metadata:
  name: x
spec: {}
`))
	require.Error(t, err)
}

func TestValidator_RejectsBadCIDR(t *testing.T) {
	m := &Manifest{
		Kind:     KindAlias,
		Metadata: Metadata{Name: "bad"},
		AliasSpec: &AliasSpec{
			Kind:             "Destination",
			DestinationCIDRs: []string{"not-a-cidr"},
		},
	}
	err := NewValidator().Validate(m)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not-a-cidr")
}

func TestValidator_RejectsMutuallyExclusivePrincipals(t *testing.T) {
	m := &Manifest{
		Kind:     KindACLRule,
		Metadata: Metadata{Name: "bad-rule"},
		RuleSpec: &ACLRuleSpec{
			AllUsers:   true,
			AllowUsers: []string{"alice"},
		},
	}
	err := NewValidator().Validate(m)
	require.Error(t, err)
	require.Contains(t, err.Error(), "mutually exclusive")
}

func TestValidator_RejectsOutOfRangePort(t *testing.T) {
	m := &Manifest{
		Kind:     KindAlias,
		Metadata: Metadata{Name: "bad-port"},
		AliasSpec: &AliasSpec{
			Kind:             "Destination",
			DestinationCIDRs: []string{"10.0.0.0/24"},
			Ports:            []string{"99999"},
		},
	}
	err := NewValidator().Validate(m)
	require.Error(t, err)
}

func TestEngine_CompileProducesRuleAndAlias(t *testing.T) {
	p := NewParser()
	manifests, err := p.ParseReader(strings.NewReader(sampleYAML))
	require.NoError(t, err)

	engID := acl.ID(42)
	resolver := fakeResolver{groups: map[string]acl.ID{"engineering": engID}}

	result, err := NewEngine().Compile(manifests, resolver)
	require.NoError(t, err)

	require.Len(t, result.Rules, 1)
	rule := result.Rules[0]
	require.Equal(t, "allow-eng-to-web", rule.Name)
	require.True(t, rule.Enabled)
	require.True(t, rule.AllLocations)
	require.Equal(t, []acl.ID{engID}, rule.AllowGroupIDs)
	require.Equal(t, acl.RuleStateNew, rule.State)
	require.Len(t, rule.DestinationCIDRs, 1)
	require.Equal(t, []acl.Protocol{acl.ProtocolTCP}, rule.Protocols)

	alias, ok := result.Aliases["internal-web"]
	require.True(t, ok)
	require.Equal(t, acl.AliasKindDestination, alias.Kind)
	require.Len(t, alias.Ports, 2)
	require.Equal(t, []string{"internal-web"}, result.RuleAliases["allow-eng-to-web"])
}

func TestEngine_UnknownGroupAbortsBatch(t *testing.T) {
	p := NewParser()
	manifests, err := p.ParseReader(strings.NewReader(sampleYAML))
	require.NoError(t, err)

	resolver := fakeResolver{groups: map[string]acl.ID{}}
	_, err = NewEngine().Compile(manifests, resolver)
	require.Error(t, err)
}
