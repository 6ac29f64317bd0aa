package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store is the persistence boundary for the access-control layer.
// Implementations: PostgresStore, CachedStore (Redis decorator), and
// test fakes.
type Store interface {
	// GetUser loads the application user record by id
	GetUser(ctx context.Context, userID string) (*User, error)

	// GetRole loads a role by id within a tenant
	GetRole(ctx context.Context, roleID, agencyID string) (*Role, error)

	// RolePermissions returns the permissions a role grants within a tenant
	RolePermissions(ctx context.Context, roleID, agencyID string) ([]Permission, error)

	// GetClientGrant returns the grant for the exact (user, agency, client)
	// triple, or (nil, nil) when no grant exists.
	GetClientGrant(ctx context.Context, userID, agencyID, clientID string) (*ClientGrant, error)

	// ListClientGrants returns all grants for a user within a tenant
	ListClientGrants(ctx context.Context, userID, agencyID string) ([]ClientGrant, error)

	// UpsertClientGrant creates or updates a grant
	UpsertClientGrant(ctx context.Context, grant *ClientGrant) error

	// DeleteClientGrant removes a grant; removing a missing grant is not an error
	DeleteClientGrant(ctx context.Context, userID, agencyID, clientID string) error
}

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetUser loads the application user record by id
func (s *PostgresStore) GetUser(ctx context.Context, userID string) (*User, error) {
	query := `
		SELECT id, agency_id, email, role_id, is_owner
		FROM users
		WHERE id = $1
	`

	var user User
	var roleID sql.NullString
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.ID,
		&user.AgencyID,
		&user.Email,
		&roleID,
		&user.IsOwner,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found: %s", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if roleID.Valid {
		id := roleID.String
		user.RoleID = &id
	}
	return &user, nil
}

// GetRole loads a role by id within a tenant
func (s *PostgresStore) GetRole(ctx context.Context, roleID, agencyID string) (*Role, error) {
	query := `
		SELECT id, agency_id, name, hierarchy_level, is_system, created_at, updated_at
		FROM roles
		WHERE id = $1 AND agency_id = $2
	`

	var role Role
	var level sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, roleID, agencyID).Scan(
		&role.ID,
		&role.AgencyID,
		&role.Name,
		&level,
		&role.IsSystem,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("role not found: %s", roleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	if level.Valid {
		h := HierarchyLevel(level.Int64)
		role.HierarchyLevel = &h
	}
	return &role, nil
}

// RolePermissions returns the permissions joined to a role within a tenant
func (s *PostgresStore) RolePermissions(ctx context.Context, roleID, agencyID string) ([]Permission, error) {
	query := `
		SELECT p.resource, p.action
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1 AND rp.agency_id = $2
	`

	rows, err := s.db.QueryContext(ctx, query, roleID, agencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query role permissions: %w", err)
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.Resource, &p.Action); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// GetClientGrant returns the grant for the exact triple, or (nil, nil)
// when no grant exists.
func (s *PostgresStore) GetClientGrant(ctx context.Context, userID, agencyID, clientID string) (*ClientGrant, error) {
	query := `
		SELECT user_id, agency_id, client_id, permission, granted_by, granted_at
		FROM member_client_access
		WHERE user_id = $1 AND agency_id = $2 AND client_id = $3
	`

	var grant ClientGrant
	var grantedBy sql.NullString
	err := s.db.QueryRowContext(ctx, query, userID, agencyID, clientID).Scan(
		&grant.UserID,
		&grant.AgencyID,
		&grant.ClientID,
		&grant.Level,
		&grantedBy,
		&grant.GrantedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client grant: %w", err)
	}

	if grantedBy.Valid {
		id := grantedBy.String
		grant.GrantedBy = &id
	}
	return &grant, nil
}

// ListClientGrants returns all grants for a user within a tenant
func (s *PostgresStore) ListClientGrants(ctx context.Context, userID, agencyID string) ([]ClientGrant, error) {
	query := `
		SELECT user_id, agency_id, client_id, permission, granted_by, granted_at
		FROM member_client_access
		WHERE user_id = $1 AND agency_id = $2
		ORDER BY granted_at
	`

	rows, err := s.db.QueryContext(ctx, query, userID, agencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query client grants: %w", err)
	}
	defer rows.Close()

	var grants []ClientGrant
	for rows.Next() {
		var grant ClientGrant
		var grantedBy sql.NullString
		if err := rows.Scan(
			&grant.UserID,
			&grant.AgencyID,
			&grant.ClientID,
			&grant.Level,
			&grantedBy,
			&grant.GrantedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan client grant: %w", err)
		}
		if grantedBy.Valid {
			id := grantedBy.String
			grant.GrantedBy = &id
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

// UpsertClientGrant creates or updates a grant
func (s *PostgresStore) UpsertClientGrant(ctx context.Context, grant *ClientGrant) error {
	if grant.Level != AccessRead && grant.Level != AccessWrite {
		return fmt.Errorf("invalid grant level: %s", grant.Level)
	}

	query := `
		INSERT INTO member_client_access (user_id, agency_id, client_id, permission, granted_by, granted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, agency_id, client_id)
		DO UPDATE SET permission = EXCLUDED.permission, granted_by = EXCLUDED.granted_by, granted_at = EXCLUDED.granted_at
	`

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, query,
		grant.UserID,
		grant.AgencyID,
		grant.ClientID,
		grant.Level,
		grant.GrantedBy,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert client grant: %w", err)
	}
	grant.GrantedAt = now
	return nil
}

// DeleteClientGrant removes a grant
func (s *PostgresStore) DeleteClientGrant(ctx context.Context, userID, agencyID, clientID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM member_client_access WHERE user_id = $1 AND agency_id = $2 AND client_id = $3`,
		userID, agencyID, clientID)
	if err != nil {
		return fmt.Errorf("failed to delete client grant: %w", err)
	}
	return nil
}
