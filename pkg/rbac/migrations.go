package rbac

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all access-control migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					agency_id UUID NOT NULL,
					name VARCHAR(255) NOT NULL,
					hierarchy_level INT,
					is_system BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(agency_id, name)
				);

				CREATE INDEX idx_roles_agency_id ON roles(agency_id);
				CREATE INDEX idx_roles_hierarchy_level ON roles(hierarchy_level);
			`,
		},
		{
			Version:     2,
			Description: "Create permissions and role_permissions tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS permissions (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					resource VARCHAR(64) NOT NULL,
					action VARCHAR(32) NOT NULL,
					UNIQUE(resource, action)
				);

				CREATE TABLE IF NOT EXISTS role_permissions (
					role_id UUID NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					permission_id UUID NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					agency_id UUID NOT NULL,
					PRIMARY KEY (role_id, permission_id)
				);

				CREATE INDEX idx_role_permissions_role_id ON role_permissions(role_id);
				CREATE INDEX idx_role_permissions_agency_id ON role_permissions(agency_id);
			`,
		},
		{
			Version:     3,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id UUID PRIMARY KEY,
					agency_id UUID NOT NULL,
					email VARCHAR(320) NOT NULL,
					role_id UUID REFERENCES roles(id) ON DELETE SET NULL,
					is_owner BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(agency_id, email)
				);

				CREATE INDEX idx_users_agency_id ON users(agency_id);
				CREATE INDEX idx_users_role_id ON users(role_id);
			`,
		},
		{
			Version:     4,
			Description: "Create member_client_access table",
			SQL: `
				CREATE TABLE IF NOT EXISTS member_client_access (
					user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					agency_id UUID NOT NULL,
					client_id UUID NOT NULL,
					permission VARCHAR(16) NOT NULL CHECK (permission IN ('read', 'write')),
					granted_by UUID REFERENCES users(id) ON DELETE SET NULL,
					granted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, agency_id, client_id)
				);

				CREATE INDEX idx_member_client_access_client_id ON member_client_access(client_id);
				CREATE INDEX idx_member_client_access_agency_id ON member_client_access(agency_id);
			`,
		},
		{
			Version:     5,
			Description: "Create clients table",
			SQL: `
				CREATE TABLE IF NOT EXISTS clients (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					agency_id UUID NOT NULL,
					name VARCHAR(255) NOT NULL,
					contact_email VARCHAR(320),
					pipeline_stage VARCHAR(64) NOT NULL DEFAULT 'lead',
					slack_channel_id VARCHAR(64),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_clients_agency_id ON clients(agency_id);
				CREATE INDEX idx_clients_pipeline_stage ON clients(pipeline_stage);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// SeedSystemRoles creates the built-in roles for an agency if they do
// not already exist.
func SeedSystemRoles(ctx context.Context, db *sql.DB, agencyID string) error {
	for _, role := range SystemRoles() {
		_, err := db.ExecContext(ctx, `
			INSERT INTO roles (agency_id, name, hierarchy_level, is_system)
			VALUES ($1, $2, $3, TRUE)
			ON CONFLICT (agency_id, name) DO NOTHING
		`, agencyID, role.Name, role.HierarchyLevel)
		if err != nil {
			return fmt.Errorf("failed to seed system role %s: %w", role.Name, err)
		}
	}
	return nil
}
