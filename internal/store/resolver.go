package store

import (
	"context"
	"fmt"

	"github.com/fenwall/aclcore/internal/acl"
)

// NameResolver implements manifest.Resolver against Postgres: it translates
// the human-readable names a bulk-import manifest refers to into the
// persisted IDs the acl domain model requires.
type NameResolver struct {
	db *DB
}

func NewNameResolver(db *DB) *NameResolver { return &NameResolver{db: db} }

func (r *NameResolver) LocationID(name string) (acl.ID, error) {
	return r.lookup(context.Background(), "locations", name)
}

func (r *NameResolver) UserID(name string) (acl.ID, error) {
	return r.lookup(context.Background(), "users", name)
}

func (r *NameResolver) GroupID(name string) (acl.ID, error) {
	return r.lookup(context.Background(), "groups", name)
}

func (r *NameResolver) DeviceID(name string) (acl.ID, error) {
	return r.lookup(context.Background(), "devices", name)
}

func (r *NameResolver) lookup(ctx context.Context, table, name string) (acl.ID, error) {
	col := "name"
	if table == "users" {
		col = "username"
	}
	var id int64
	query := fmt.Sprintf("SELECT id FROM %s WHERE %s = $1", table, col)
	if err := r.db.Pool.QueryRow(ctx, query, name).Scan(&id); err != nil {
		return acl.NoID, fmt.Errorf("%s %q: %w", table, name, err)
	}
	return acl.ID(id), nil
}
