package store

import (
	"context"
	"fmt"

	"github.com/fenwall/aclcore/internal/acl"
)

// AliasStore writes aliases and their rule attachments, the bulk-import
// write path matching FetchAliasesForRule/scanAlias's read shape in
// acl_store.go exactly (same table, same column set).
type AliasStore struct{ db *DB }

func NewAliasStore(db *DB) *AliasStore { return &AliasStore{db: db} }

// Create inserts one alias and returns its assigned id.
func (s *AliasStore) Create(ctx context.Context, a acl.Alias) (acl.ID, error) {
	kind := "destination"
	if a.Kind == acl.AliasKindComponent {
		kind = "component"
	}

	cidrs := make([]string, len(a.DestinationCIDRs))
	for i, c := range a.DestinationCIDRs {
		cidrs[i] = c.String()
	}
	ranges := make([]string, len(a.DestinationRanges))
	for i, r := range a.DestinationRanges {
		ranges[i] = r.Start.String() + "-" + r.End.String()
	}
	ports := make([]string, len(a.Ports))
	for i, p := range a.Ports {
		ports[i] = portRangeText(p)
	}
	protocols := make([]string, len(a.Protocols))
	for i, p := range a.Protocols {
		protocols[i] = protocolText(p)
	}

	var id int64
	row := s.db.Pool.QueryRow(ctx, `
		INSERT INTO aliases (name, kind, destination_cidrs, destination_ranges, ports, protocols)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		a.Name, kind, cidrs, ranges, ports, protocols)
	if err := row.Scan(&id); err != nil {
		return acl.NoID, fmt.Errorf("insert alias: %w", err)
	}
	return acl.ID(id), nil
}

// AttachToRule associates an already-created alias with an ACL rule.
func (s *AliasStore) AttachToRule(ctx context.Context, ruleID, aliasID acl.ID) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO acl_rule_aliases (rule_id, alias_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, int64(ruleID), int64(aliasID))
	if err != nil {
		return fmt.Errorf("attach alias %d to rule %d: %w", aliasID, ruleID, err)
	}
	return nil
}

func portRangeText(p acl.PortRange) string {
	if p.Start == p.End {
		return fmt.Sprintf("%d", p.Start)
	}
	return fmt.Sprintf("%d:%d", p.Start, p.End)
}

func protocolText(p acl.Protocol) string {
	switch p {
	case acl.ProtocolTCP:
		return "tcp"
	case acl.ProtocolUDP:
		return "udp"
	case acl.ProtocolICMP:
		return "icmp"
	default:
		return ""
	}
}
