package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresStoreGetUser(t *testing.T) {
	ctx := context.Background()

	t.Run("user with role", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT id, agency_id, email, role_id, is_owner").
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "agency_id", "email", "role_id", "is_owner"}).
				AddRow("user-1", "agency-1", "user-1@example.com", "role-1", false))

		user, err := store.GetUser(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "agency-1", user.AgencyID)
		require.NotNil(t, user.RoleID)
		assert.Equal(t, "role-1", *user.RoleID)
		assert.False(t, user.IsOwner)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("owner without role", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT id, agency_id, email, role_id, is_owner").
			WithArgs("owner-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "agency_id", "email", "role_id", "is_owner"}).
				AddRow("owner-1", "agency-1", "owner@example.com", nil, true))

		user, err := store.GetUser(ctx, "owner-1")
		require.NoError(t, err)
		assert.Nil(t, user.RoleID)
		assert.True(t, user.IsOwner)
	})

	t.Run("missing user is an error", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT id, agency_id, email, role_id, is_owner").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"id", "agency_id", "email", "role_id", "is_owner"}))

		_, err := store.GetUser(ctx, "ghost")
		assert.Error(t, err)
	})
}

func TestPostgresStoreGetRole(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("system role with hierarchy level", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT id, agency_id, name, hierarchy_level, is_system").
			WithArgs("role-1", "agency-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "agency_id", "name", "hierarchy_level", "is_system", "created_at", "updated_at"}).
				AddRow("role-1", "agency-1", "manager", 2, true, now, now))

		role, err := store.GetRole(ctx, "role-1", "agency-1")
		require.NoError(t, err)
		require.NotNil(t, role.HierarchyLevel)
		assert.Equal(t, HierarchyManager, *role.HierarchyLevel)
		assert.True(t, role.IsSystem)
	})

	t.Run("custom role without level", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT id, agency_id, name, hierarchy_level, is_system").
			WithArgs("role-2", "agency-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "agency_id", "name", "hierarchy_level", "is_system", "created_at", "updated_at"}).
				AddRow("role-2", "agency-1", "auditor", nil, false, now, now))

		role, err := store.GetRole(ctx, "role-2", "agency-1")
		require.NoError(t, err)
		assert.Nil(t, role.HierarchyLevel)
	})
}

func TestPostgresStoreRolePermissions(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT p.resource, p.action").
		WithArgs("role-1", "agency-1").
		WillReturnRows(sqlmock.NewRows([]string{"resource", "action"}).
			AddRow("clients", "read").
			AddRow("tickets", "manage"))

	perms, err := store.RolePermissions(ctx, "role-1", "agency-1")
	require.NoError(t, err)
	assert.Equal(t, []Permission{
		{Resource: ResourceClients, Action: ActionRead},
		{Resource: ResourceTickets, Action: ActionManage},
	}, perms)
}

func TestPostgresStoreGetClientGrant(t *testing.T) {
	ctx := context.Background()

	t.Run("existing grant", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()
		mock.ExpectQuery("SELECT user_id, agency_id, client_id, permission, granted_by, granted_at").
			WithArgs("user-1", "agency-1", "client-1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "agency_id", "client_id", "permission", "granted_by", "granted_at"}).
				AddRow("user-1", "agency-1", "client-1", "write", "owner-1", now))

		grant, err := store.GetClientGrant(ctx, "user-1", "agency-1", "client-1")
		require.NoError(t, err)
		require.NotNil(t, grant)
		assert.Equal(t, AccessWrite, grant.Level)
		require.NotNil(t, grant.GrantedBy)
		assert.Equal(t, "owner-1", *grant.GrantedBy)
	})

	t.Run("absent grant is nil, nil", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT user_id, agency_id, client_id, permission, granted_by, granted_at").
			WithArgs("user-1", "agency-1", "client-9").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "agency_id", "client_id", "permission", "granted_by", "granted_at"}))

		grant, err := store.GetClientGrant(ctx, "user-1", "agency-1", "client-9")
		require.NoError(t, err)
		assert.Nil(t, grant)
	})

	t.Run("query failure propagates", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT user_id, agency_id, client_id, permission, granted_by, granted_at").
			WithArgs("user-1", "agency-1", "client-1").
			WillReturnError(errors.New("connection reset"))

		_, err := store.GetClientGrant(ctx, "user-1", "agency-1", "client-1")
		assert.Error(t, err)
	})
}

func TestPostgresStoreUpsertClientGrant(t *testing.T) {
	ctx := context.Background()

	t.Run("valid grant", func(t *testing.T) {
		store, mock := newMockStore(t)
		grantedBy := "owner-1"
		grant := &ClientGrant{
			UserID:    "user-1",
			AgencyID:  "agency-1",
			ClientID:  "client-1",
			Level:     AccessRead,
			GrantedBy: &grantedBy,
		}
		mock.ExpectExec("INSERT INTO member_client_access").
			WithArgs("user-1", "agency-1", "client-1", "read", "owner-1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.UpsertClientGrant(ctx, grant))
		assert.False(t, grant.GrantedAt.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid level rejected before the database", func(t *testing.T) {
		store, mock := newMockStore(t)
		err := store.UpsertClientGrant(ctx, &ClientGrant{
			UserID:   "user-1",
			AgencyID: "agency-1",
			ClientID: "client-1",
			Level:    AccessLevel("admin"),
		})
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStoreDeleteClientGrant(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM member_client_access").
		WithArgs("user-1", "agency-1", "client-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.DeleteClientGrant(ctx, "user-1", "agency-1", "client-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreAgainstRealDatabase(t *testing.T) {
	db := RequireDatabase(t)
	store := NewPostgresStore(db)
	ctx := context.Background()

	agencyID := uuid.NewString()
	clientID := uuid.NewString()
	roleID := SeedTestRole(t, db, agencyID, HierarchyMember,
		Permission{Resource: ResourceClients, Action: ActionRead},
		Permission{Resource: ResourceClients, Action: ActionWrite},
	)
	ownerID := SeedTestUser(t, db, agencyID, nil, true)
	memberID := SeedTestUser(t, db, agencyID, &roleID, false)

	t.Run("user and role lookup", func(t *testing.T) {
		user, err := store.GetUser(ctx, memberID)
		require.NoError(t, err)
		assert.Equal(t, agencyID, user.AgencyID)
		require.NotNil(t, user.RoleID)
		assert.Equal(t, roleID, *user.RoleID)
		assert.False(t, user.IsOwner)

		role, err := store.GetRole(ctx, roleID, agencyID)
		require.NoError(t, err)
		require.NotNil(t, role.HierarchyLevel)
		assert.Equal(t, HierarchyMember, *role.HierarchyLevel)

		perms, err := store.RolePermissions(ctx, roleID, agencyID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []Permission{
			{Resource: ResourceClients, Action: ActionRead},
			{Resource: ResourceClients, Action: ActionWrite},
		}, perms)
	})

	t.Run("grant round trip", func(t *testing.T) {
		grant := &ClientGrant{
			UserID:    memberID,
			AgencyID:  agencyID,
			ClientID:  clientID,
			Level:     AccessRead,
			GrantedBy: &ownerID,
		}
		require.NoError(t, store.UpsertClientGrant(ctx, grant))

		got, err := store.GetClientGrant(ctx, memberID, agencyID, clientID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, AccessRead, got.Level)
		require.NotNil(t, got.GrantedBy)
		assert.Equal(t, ownerID, *got.GrantedBy)

		grant.Level = AccessWrite
		require.NoError(t, store.UpsertClientGrant(ctx, grant))
		got, err = store.GetClientGrant(ctx, memberID, agencyID, clientID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, AccessWrite, got.Level)

		grants, err := store.ListClientGrants(ctx, memberID, agencyID)
		require.NoError(t, err)
		assert.Len(t, grants, 1)

		require.NoError(t, store.DeleteClientGrant(ctx, memberID, agencyID, clientID))
		got, err = store.GetClientGrant(ctx, memberID, agencyID, clientID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("missing grant reads as nil", func(t *testing.T) {
		got, err := store.GetClientGrant(ctx, memberID, agencyID, uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
