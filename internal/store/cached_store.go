package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fenwall/aclcore/internal/acl"
	"github.com/fenwall/aclcore/internal/config"
)

// CachedStore wraps any acl.Store with a Redis cache, grounded on the
// teacher pack's redis.Cache pattern (get-or-miss, JSON marshaled values,
// short TTL). Entries are shared across compile calls and expire after the
// configured TTL (30s by default). Location, location-user, network-device
// and per-rule alias reads are cached; FetchApplicableRules and
// GroupMembership always go to the wrapped store. This keeps repeated
// compiles of a quiet location cheap without the compiler itself knowing
// caching exists.
type CachedStore struct {
	inner  acl.Store
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewCachedStore wraps inner with a Redis cache using cfg's connection
// settings and TTL.
func NewCachedStore(inner acl.Store, cfg config.RedisConfig, log *zap.Logger) *CachedStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedStore{inner: inner, client: client, ttl: ttl, log: log}
}

// Close releases the underlying Redis connection.
func (c *CachedStore) Close() error { return c.client.Close() }

func (c *CachedStore) FetchLocation(ctx context.Context, locationID acl.ID) (acl.Location, error) {
	key := fmt.Sprintf("acl:location:%d", locationID)
	var loc acl.Location
	if ok := c.getCached(ctx, key, &loc); ok {
		return loc, nil
	}
	loc, err := c.inner.FetchLocation(ctx, locationID)
	if err != nil {
		return acl.Location{}, err
	}
	c.setCached(ctx, key, loc)
	return loc, nil
}

func (c *CachedStore) FetchApplicableRules(ctx context.Context, locationID acl.ID, now time.Time) ([]acl.ACLRule, error) {
	// Eligibility depends on wall-clock time, so this read is never cached:
	// a stale hit could compile an expired rule.
	return c.inner.FetchApplicableRules(ctx, locationID, now)
}

func (c *CachedStore) FetchLocationUsers(ctx context.Context, locationID acl.ID) ([]acl.UserWithDevices, error) {
	key := fmt.Sprintf("acl:location_users:%d", locationID)
	var users []acl.UserWithDevices
	if ok := c.getCached(ctx, key, &users); ok {
		return users, nil
	}
	users, err := c.inner.FetchLocationUsers(ctx, locationID)
	if err != nil {
		return nil, err
	}
	c.setCached(ctx, key, users)
	return users, nil
}

func (c *CachedStore) FetchLocationNetworkDevices(ctx context.Context, locationID acl.ID) ([]acl.DeviceWithIPs, error) {
	key := fmt.Sprintf("acl:location_devices:%d", locationID)
	var devices []acl.DeviceWithIPs
	if ok := c.getCached(ctx, key, &devices); ok {
		return devices, nil
	}
	devices, err := c.inner.FetchLocationNetworkDevices(ctx, locationID)
	if err != nil {
		return nil, err
	}
	c.setCached(ctx, key, devices)
	return devices, nil
}

func (c *CachedStore) FetchAliasesForRule(ctx context.Context, ruleID acl.ID) ([]acl.Alias, error) {
	key := fmt.Sprintf("acl:rule_aliases:%d", ruleID)
	var aliases []acl.Alias
	if ok := c.getCached(ctx, key, &aliases); ok {
		return aliases, nil
	}
	aliases, err := c.inner.FetchAliasesForRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	c.setCached(ctx, key, aliases)
	return aliases, nil
}

func (c *CachedStore) GroupMembership(ctx context.Context, groupIDs []acl.ID) (map[acl.ID][]acl.ID, error) {
	// Group ids vary per call; memoizing the whole map under a composite key
	// would thrash on every distinct rule's group set, so this passes
	// through uncached and relies on the location, user, device and alias
	// caches to absorb the bulk of repeated-compile cost.
	return c.inner.GroupMembership(ctx, groupIDs)
}

func (c *CachedStore) getCached(ctx context.Context, key string, dest any) bool {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		c.log.Warn("cache decode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *CachedStore) setCached(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
