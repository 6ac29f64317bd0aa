package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// CachedStore decorates a Store with a Redis cache for the hot read
// paths (user records, roles, permission sets, grant lookups). The cache
// is advisory: any Redis failure falls through to the inner store, and
// correctness does not depend on invalidation. Grant writes invalidate
// the affected keys.
type CachedStore struct {
	inner Store
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedStore creates a Redis-cached store decorator
func NewCachedStore(inner Store, client *redis.Client, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedStore{inner: inner, redis: client, ttl: ttl}
}

func (c *CachedStore) userKey(userID string) string {
	return "rbac:user:" + userID
}

func (c *CachedStore) roleKey(agencyID, roleID string) string {
	return fmt.Sprintf("rbac:role:%s:%s", agencyID, roleID)
}

func (c *CachedStore) permsKey(agencyID, roleID string) string {
	return fmt.Sprintf("rbac:perms:%s:%s", agencyID, roleID)
}

func (c *CachedStore) grantKey(userID, agencyID, clientID string) string {
	return fmt.Sprintf("rbac:grant:%s:%s:%s", userID, agencyID, clientID)
}

// GetUser loads a user record, serving from cache when possible
func (c *CachedStore) GetUser(ctx context.Context, userID string) (*User, error) {
	key := c.userKey(userID)
	if cached, err := c.redis.Get(ctx, key).Result(); err == nil {
		var user User
		if err := json.Unmarshal([]byte(cached), &user); err == nil {
			return &user, nil
		}
	}

	user, err := c.inner.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, user)
	return user, nil
}

// GetRole loads a role, serving from cache when possible
func (c *CachedStore) GetRole(ctx context.Context, roleID, agencyID string) (*Role, error) {
	key := c.roleKey(agencyID, roleID)
	if cached, err := c.redis.Get(ctx, key).Result(); err == nil {
		var role Role
		if err := json.Unmarshal([]byte(cached), &role); err == nil {
			return &role, nil
		}
	}

	role, err := c.inner.GetRole(ctx, roleID, agencyID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, role)
	return role, nil
}

// RolePermissions loads a role's permissions, serving from cache when possible
func (c *CachedStore) RolePermissions(ctx context.Context, roleID, agencyID string) ([]Permission, error) {
	key := c.permsKey(agencyID, roleID)
	if cached, err := c.redis.Get(ctx, key).Result(); err == nil {
		var perms []Permission
		if err := json.Unmarshal([]byte(cached), &perms); err == nil {
			return perms, nil
		}
	}

	perms, err := c.inner.RolePermissions(ctx, roleID, agencyID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, perms)
	return perms, nil
}

// GetClientGrant loads a grant, caching both present and absent results.
// An absent grant caches as JSON null so repeated denials do not hammer
// the database.
func (c *CachedStore) GetClientGrant(ctx context.Context, userID, agencyID, clientID string) (*ClientGrant, error) {
	key := c.grantKey(userID, agencyID, clientID)
	if cached, err := c.redis.Get(ctx, key).Result(); err == nil {
		var grant *ClientGrant
		if err := json.Unmarshal([]byte(cached), &grant); err == nil {
			return grant, nil
		}
	}

	grant, err := c.inner.GetClientGrant(ctx, userID, agencyID, clientID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, grant)
	return grant, nil
}

// ListClientGrants is not cached; it only serves admin listings
func (c *CachedStore) ListClientGrants(ctx context.Context, userID, agencyID string) ([]ClientGrant, error) {
	return c.inner.ListClientGrants(ctx, userID, agencyID)
}

// UpsertClientGrant writes through and invalidates the grant key
func (c *CachedStore) UpsertClientGrant(ctx context.Context, grant *ClientGrant) error {
	if err := c.inner.UpsertClientGrant(ctx, grant); err != nil {
		return err
	}
	c.redis.Del(ctx, c.grantKey(grant.UserID, grant.AgencyID, grant.ClientID))
	return nil
}

// DeleteClientGrant writes through and invalidates the grant key
func (c *CachedStore) DeleteClientGrant(ctx context.Context, userID, agencyID, clientID string) error {
	if err := c.inner.DeleteClientGrant(ctx, userID, agencyID, clientID); err != nil {
		return err
	}
	c.redis.Del(ctx, c.grantKey(userID, agencyID, clientID))
	return nil
}

// InvalidateUser drops the cached user record, used after role assignment
func (c *CachedStore) InvalidateUser(ctx context.Context, userID string) {
	c.redis.Del(ctx, c.userKey(userID))
}

func (c *CachedStore) set(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.redis.Set(ctx, key, data, c.ttl)
}
