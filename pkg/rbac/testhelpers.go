package rbac

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// SkipIfNoDatabase skips the test unless AGENCYHUB_TEST_POSTGRES is set.
// Tests gated on it run against a real database in CI and skip locally.
func SkipIfNoDatabase(t *testing.T) string {
	t.Helper()

	dbURL := os.Getenv("AGENCYHUB_TEST_POSTGRES")
	if dbURL == "" {
		t.Skip("Skipping test: AGENCYHUB_TEST_POSTGRES environment variable not set (database not available)")
	}

	return dbURL
}

// RequireDatabase connects to the test database and applies the
// access-control migrations. Skips when the database is not configured
// or not reachable; closes the connection when the test ends.
func RequireDatabase(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := SkipIfNoDatabase(t)

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Skipf("Failed to connect to database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		t.Skipf("Database not reachable: %v", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// SeedTestRole inserts a role with the given permissions and registers
// cleanup. Returns the generated role id.
func SeedTestRole(t *testing.T, db *sql.DB, agencyID string, level HierarchyLevel, perms ...Permission) string {
	t.Helper()

	roleID := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO roles (id, agency_id, name, hierarchy_level, is_system)
		VALUES ($1, $2, $3, $4, TRUE)
	`, roleID, agencyID, "test-role-"+roleID[:8], int(level))
	if err != nil {
		t.Fatalf("Failed to seed role: %v", err)
	}
	t.Cleanup(func() { db.Exec(`DELETE FROM roles WHERE id = $1`, roleID) })

	for _, p := range perms {
		var permID string
		err := db.QueryRow(`
			INSERT INTO permissions (resource, action)
			VALUES ($1, $2)
			ON CONFLICT (resource, action) DO UPDATE SET resource = EXCLUDED.resource
			RETURNING id
		`, string(p.Resource), string(p.Action)).Scan(&permID)
		if err != nil {
			t.Fatalf("Failed to seed permission %s: %v", p, err)
		}
		if _, err := db.Exec(`
			INSERT INTO role_permissions (role_id, permission_id, agency_id)
			VALUES ($1, $2, $3)
		`, roleID, permID, agencyID); err != nil {
			t.Fatalf("Failed to attach permission %s: %v", p, err)
		}
	}

	return roleID
}

// SeedTestUser inserts a user and registers cleanup. The role id may be
// nil for roleless users. Returns the generated user id.
func SeedTestUser(t *testing.T, db *sql.DB, agencyID string, roleID *string, isOwner bool) string {
	t.Helper()

	userID := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO users (id, agency_id, email, role_id, is_owner)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, agencyID, userID[:8]+"@example.com", roleID, isOwner)
	if err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	t.Cleanup(func() { db.Exec(`DELETE FROM users WHERE id = $1`, userID) })

	return userID
}
