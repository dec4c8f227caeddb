package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fenwall/aclcore/internal/acl"
)

// RuleRecord is the DB representation of an ACL rule, adapted from the
// policy record shape: a mutable row plus a monotonic version counter that
// gates revision history, keyed on the rule's own id rather than a
// separate policy id.
type RuleRecord struct {
	ID        int64      `json:"id"`
	TenantID  uuid.UUID  `json:"tenantId"`
	Name      string     `json:"name"`
	Version   int        `json:"version"`
	Enabled   bool       `json:"enabled"`
	State     string     `json:"state"`
	Expires   *time.Time `json:"expires"`
	Body      []byte     `json:"body"` // JSON-encoded acl.ACLRule fields
	AppliedAt *time.Time `json:"appliedAt"`
	CreatedBy *uuid.UUID `json:"createdBy"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// RuleRevision is one row of an ACL rule's mutation history.
type RuleRevision struct {
	ID        int64      `json:"id"`
	RuleID    int64      `json:"ruleId"`
	Version   int        `json:"version"`
	Body      []byte     `json:"body"`
	ChangedBy *uuid.UUID `json:"changedBy"`
	ChangedAt time.Time  `json:"changedAt"`
	Comment   string     `json:"comment"`
}

// RuleStore handles CRUD and lifecycle transitions for ACL rules, mirroring
// the teacher's PolicyStore: Create and Update bump version and append a
// revision row; MarkModified bumps version only; MarkApplied and Delete do
// neither.
type RuleStore struct {
	db       *DB
	activity acl.ActivityRecorder
}

func NewRuleStore(db *DB) *RuleStore {
	return &RuleStore{db: db, activity: acl.NoopActivityRecorder{}}
}

// WithActivityRecorder attaches an ActivityRecorder that observes rule
// lifecycle transitions, and returns the same RuleStore for chaining.
func (s *RuleStore) WithActivityRecorder(r acl.ActivityRecorder) *RuleStore {
	s.activity = r
	return s
}

// Create inserts a new rule in state "new" and stores its generated id in
// r.ID.
func (s *RuleStore) Create(ctx context.Context, r *RuleRecord) error {
	r.CreatedAt = time.Now()
	r.UpdatedAt = time.Now()
	r.Version = 1
	r.State = "new"

	row := s.db.Pool.QueryRow(ctx, `
		INSERT INTO acl_rules (tenant_id, name, version, enabled, state, expires, body, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		r.TenantID, r.Name, r.Version, r.Enabled, r.State, r.Expires, r.Body, r.CreatedBy,
	)
	if err := row.Scan(&r.ID); err != nil {
		return fmt.Errorf("insert acl rule: %w", err)
	}
	s.activity.Record(ctx, acl.ActivityEvent{Kind: acl.EventRuleCreated, RuleID: acl.ID(r.ID), Detail: r.Name})
	return s.appendRevision(ctx, r, "created")
}

// Get returns a single rule by id.
func (s *RuleStore) Get(ctx context.Context, tenantID uuid.UUID, id int64) (*RuleRecord, error) {
	row := s.db.Pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, version, enabled, state, expires, body,
		       applied_at, created_by, created_at, updated_at
		FROM acl_rules
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`,
		id, tenantID)
	return scanRule(row)
}

// List returns every rule for a tenant, optionally filtered by state.
func (s *RuleStore) List(ctx context.Context, tenantID uuid.UUID, state string) ([]*RuleRecord, error) {
	query := `
		SELECT id, tenant_id, name, version, enabled, state, expires, body,
		       applied_at, created_by, created_at, updated_at
		FROM acl_rules
		WHERE tenant_id = $1 AND deleted_at IS NULL`
	args := []any{tenantID}

	if state != "" {
		query += " AND state = $2"
		args = append(args, state)
	}
	query += " ORDER BY id"

	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*RuleRecord
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// Update increments the version and marks the rule "modified", then
// appends a revision.
func (s *RuleStore) Update(ctx context.Context, r *RuleRecord) error {
	r.UpdatedAt = time.Now()

	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE acl_rules
		SET name = $1, enabled = $2, expires = $3, body = $4,
		    version = version + 1, state = 'modified', updated_at = NOW()
		WHERE id = $5 AND tenant_id = $6`,
		r.Name, r.Enabled, r.Expires, r.Body, r.ID, r.TenantID,
	)
	if err != nil {
		return fmt.Errorf("update acl rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("acl rule not found")
	}
	r.Version++
	r.State = "modified"
	s.activity.Record(ctx, acl.ActivityEvent{Kind: acl.EventRuleModified, RuleID: acl.ID(r.ID), Detail: r.Name})
	return s.appendRevision(ctx, r, "modified")
}

// Delete soft-deletes a rule.
func (s *RuleStore) Delete(ctx context.Context, tenantID uuid.UUID, id int64) error {
	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE acl_rules SET deleted_at = NOW() WHERE id = $1 AND tenant_id = $2`,
		id, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("acl rule not found")
	}
	return nil
}

// MarkApplied transitions a rule to state "applied" once the control plane
// confirms gateway deployment. Only applied rules participate in
// compilation (spec.md §3 lifecycle).
func (s *RuleStore) MarkApplied(ctx context.Context, tenantID uuid.UUID, id int64) error {
	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE acl_rules SET state = 'applied', applied_at = NOW()
		WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("acl rule not found")
	}
	s.activity.Record(ctx, acl.ActivityEvent{Kind: acl.EventRuleApplied, RuleID: acl.ID(id)})
	return nil
}

// MarkModified transitions a rule back to state "modified" without
// changing its body — used when something the rule references (a group's
// membership, an alias's targets) changes in a way that invalidates the
// rule's last-applied compilation, so an operator knows to re-review and
// re-apply it.
func (s *RuleStore) MarkModified(ctx context.Context, tenantID uuid.UUID, id int64) error {
	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE acl_rules SET state = 'modified', version = version + 1, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("acl rule not found")
	}
	s.activity.Record(ctx, acl.ActivityEvent{Kind: acl.EventRuleModified, RuleID: acl.ID(id), Detail: "invalidated externally"})
	return nil
}

// ListRevisions returns a rule's mutation history, most recent first.
func (s *RuleStore) ListRevisions(ctx context.Context, ruleID int64) ([]*RuleRevision, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, rule_id, version, body, changed_by, changed_at, comment
		FROM acl_rule_revisions
		WHERE rule_id = $1
		ORDER BY version DESC`, ruleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var revs []*RuleRevision
	for rows.Next() {
		var r RuleRevision
		if err := rows.Scan(&r.ID, &r.RuleID, &r.Version, &r.Body,
			&r.ChangedBy, &r.ChangedAt, &r.Comment); err != nil {
			return nil, err
		}
		revs = append(revs, &r)
	}
	return revs, rows.Err()
}

// ─── Private helpers ──────────────────────────────────────────────────────

func (s *RuleStore) appendRevision(ctx context.Context, r *RuleRecord, comment string) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO acl_rule_revisions (rule_id, version, body, changed_by, comment)
		VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.Version, r.Body, r.CreatedBy, comment)
	return err
}

func scanRule(row rowScanner) (*RuleRecord, error) {
	var r RuleRecord
	err := row.Scan(
		&r.ID, &r.TenantID, &r.Name, &r.Version, &r.Enabled, &r.State,
		&r.Expires, &r.Body, &r.AppliedAt, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("acl rule not found")
		}
		return nil, err
	}
	return &r, nil
}
