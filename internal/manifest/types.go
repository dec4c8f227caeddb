// Package manifest parses declarative YAML documents describing ACL rules
// and aliases for bulk import, validates them, and compiles them into
// internal/acl domain objects ready for a Store's write path.
package manifest

const (
	APIVersion = "aclcore.io/v1"

	KindACLRule = "ACLRule"
	KindAlias   = "Alias"
)

// Manifest is a single parsed YAML document (one ---separated block).
type Manifest struct {
	APIVersion string   `yaml:"apiVersion" json:"apiVersion"`
	Kind       string   `yaml:"kind"       json:"kind"`
	Metadata   Metadata `yaml:"metadata"   json:"metadata"`

	// Only one of these is populated, depending on Kind.
	RuleSpec  *ACLRuleSpec `yaml:"spec,omitempty" json:"spec,omitempty"`
	AliasSpec *AliasSpec   `yaml:"-" json:"-"`
}

type Metadata struct {
	Name        string            `yaml:"name"        json:"name"`
	Namespace   string            `yaml:"namespace"   json:"namespace"`
	Labels      map[string]string `yaml:"labels"      json:"labels"`
	Annotations map[string]string `yaml:"annotations" json:"annotations"`
}

// ACLRuleSpec is the YAML shape of one declarative ACL rule. Principal and
// destination fields are strings/string-lists on the wire; the engine
// resolves them against acl.ID and net/netip types at compile time.
type ACLRuleSpec struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Expires string `yaml:"expires,omitempty" json:"expires,omitempty"` // RFC3339, empty means no expiry

	Locations    []string `yaml:"locations"    json:"locations"` // names, or ["*"] for AllLocations
	AllowUsers   []string `yaml:"allowUsers"   json:"allowUsers"`
	DenyUsers    []string `yaml:"denyUsers"    json:"denyUsers"`
	AllowGroups  []string `yaml:"allowGroups"  json:"allowGroups"`
	DenyGroups   []string `yaml:"denyGroups"   json:"denyGroups"`
	AllUsers     bool     `yaml:"allUsers"     json:"allUsers"`
	DenyAllUsers bool     `yaml:"denyAllUsers" json:"denyAllUsers"`

	AllowDevices          []string `yaml:"allowDevices"          json:"allowDevices"`
	DenyDevices           []string `yaml:"denyDevices"           json:"denyDevices"`
	AllNetworkDevices     bool     `yaml:"allNetworkDevices"     json:"allNetworkDevices"`
	DenyAllNetworkDevices bool     `yaml:"denyAllNetworkDevices" json:"denyAllNetworkDevices"`

	DestinationCIDRs  []string    `yaml:"destinationCIDRs"  json:"destinationCIDRs"`
	DestinationRanges []string    `yaml:"destinationRanges" json:"destinationRanges"` // "start-end"
	Ports             []string    `yaml:"ports"             json:"ports"`             // "n" or "n:m"
	Protocols         []string    `yaml:"protocols"         json:"protocols"`         // tcp|udp|icmp
	Aliases           []string    `yaml:"aliases"           json:"aliases"`           // alias names attached to this rule
}

// AliasSpec is the YAML shape of one reusable destination bundle.
type AliasSpec struct {
	Kind              string   `yaml:"kind" json:"kind"` // Destination | Component
	DestinationCIDRs  []string `yaml:"destinationCIDRs"  json:"destinationCIDRs"`
	DestinationRanges []string `yaml:"destinationRanges" json:"destinationRanges"`
	Ports             []string `yaml:"ports"             json:"ports"`
	Protocols         []string `yaml:"protocols"         json:"protocols"`
}
