package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore wraps the fake to count inner-store hits
type countingStore struct {
	*fakeStore
	userCalls  int
	grantCalls int
}

func (c *countingStore) GetUser(ctx context.Context, userID string) (*User, error) {
	c.userCalls++
	return c.fakeStore.GetUser(ctx, userID)
}

func (c *countingStore) GetClientGrant(ctx context.Context, userID, agencyID, clientID string) (*ClientGrant, error) {
	c.grantCalls++
	return c.fakeStore.GetClientGrant(ctx, userID, agencyID, clientID)
}

func newCachedFixture(t *testing.T) (*countingStore, *CachedStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	inner := &countingStore{fakeStore: newFakeStore()}
	inner.addRole("role-member", "agency-1", levelPtr(HierarchyMember),
		Permission{Resource: ResourceClients, Action: ActionRead},
	)
	inner.addUser("user-1", "agency-1", strPtr("role-member"), false)
	inner.addGrant("user-1", "agency-1", "client-1", AccessRead)

	return inner, NewCachedStore(inner, client, time.Minute), mr
}

func TestCachedStoreGetUser(t *testing.T) {
	ctx := context.Background()
	inner, cached, _ := newCachedFixture(t)

	first, err := cached.GetUser(ctx, "user-1")
	require.NoError(t, err)
	second, err := cached.GetUser(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.RoleID, second.RoleID)
	assert.Equal(t, 1, inner.userCalls)
}

func TestCachedStoreGrantCaching(t *testing.T) {
	ctx := context.Background()

	t.Run("present grant served from cache", func(t *testing.T) {
		inner, cached, _ := newCachedFixture(t)
		for i := 0; i < 3; i++ {
			grant, err := cached.GetClientGrant(ctx, "user-1", "agency-1", "client-1")
			require.NoError(t, err)
			require.NotNil(t, grant)
			assert.Equal(t, AccessRead, grant.Level)
		}
		assert.Equal(t, 1, inner.grantCalls)
	})

	t.Run("absent grant cached as null", func(t *testing.T) {
		inner, cached, _ := newCachedFixture(t)
		for i := 0; i < 3; i++ {
			grant, err := cached.GetClientGrant(ctx, "user-1", "agency-1", "client-9")
			require.NoError(t, err)
			assert.Nil(t, grant)
		}
		assert.Equal(t, 1, inner.grantCalls)
	})
}

func TestCachedStoreInvalidation(t *testing.T) {
	ctx := context.Background()

	t.Run("upsert invalidates the grant key", func(t *testing.T) {
		inner, cached, _ := newCachedFixture(t)

		grant, err := cached.GetClientGrant(ctx, "user-1", "agency-1", "client-1")
		require.NoError(t, err)
		assert.Equal(t, AccessRead, grant.Level)

		require.NoError(t, cached.UpsertClientGrant(ctx, &ClientGrant{
			UserID:   "user-1",
			AgencyID: "agency-1",
			ClientID: "client-1",
			Level:    AccessWrite,
		}))

		grant, err = cached.GetClientGrant(ctx, "user-1", "agency-1", "client-1")
		require.NoError(t, err)
		assert.Equal(t, AccessWrite, grant.Level)
		assert.Equal(t, 2, inner.grantCalls)
	})

	t.Run("delete invalidates the grant key", func(t *testing.T) {
		_, cached, _ := newCachedFixture(t)

		grant, err := cached.GetClientGrant(ctx, "user-1", "agency-1", "client-1")
		require.NoError(t, err)
		require.NotNil(t, grant)

		require.NoError(t, cached.DeleteClientGrant(ctx, "user-1", "agency-1", "client-1"))

		grant, err = cached.GetClientGrant(ctx, "user-1", "agency-1", "client-1")
		require.NoError(t, err)
		assert.Nil(t, grant)
	})

	t.Run("invalidate user drops the cached record", func(t *testing.T) {
		inner, cached, _ := newCachedFixture(t)

		_, err := cached.GetUser(ctx, "user-1")
		require.NoError(t, err)
		cached.InvalidateUser(ctx, "user-1")
		_, err = cached.GetUser(ctx, "user-1")
		require.NoError(t, err)

		assert.Equal(t, 2, inner.userCalls)
	})
}

func TestCachedStoreFailOpen(t *testing.T) {
	ctx := context.Background()
	inner, cached, mr := newCachedFixture(t)

	mr.Close()

	for i := 0; i < 2; i++ {
		user, err := cached.GetUser(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "user-1", user.ID)
	}
	assert.Equal(t, 2, inner.userCalls)

	grant, err := cached.GetClientGrant(ctx, "user-1", "agency-1", "client-1")
	require.NoError(t, err)
	require.NotNil(t, grant)
	assert.Equal(t, AccessRead, grant.Level)
}
