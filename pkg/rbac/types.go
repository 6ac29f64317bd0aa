package rbac

import (
	"context"
	"time"

	"github.com/tidewater/agencyhub/pkg/contextkeys"
)

// Resource represents a resource type in the system
type Resource string

const (
	ResourceClients      Resource = "clients"
	ResourceTickets      Resource = "tickets"
	ResourceCartridges   Resource = "cartridges"
	ResourceIntegrations Resource = "integrations"
	ResourceSettings     Resource = "settings"
	ResourceUsers        Resource = "users"
	ResourceRoles        Resource = "roles"
	ResourceMemory       Resource = "memory"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	// ActionManage is the per-resource wildcard: a (resource, manage)
	// grant satisfies any action on that resource.
	ActionManage Action = "manage"
)

// Permission represents a specific permission (resource + action)
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// String returns a string representation of the permission
func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// PermissionSet is the set of (resource, action) pairs a role grants
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from a list of permissions
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Contains reports whether the exact permission is in the set
func (s PermissionSet) Contains(p Permission) bool {
	_, ok := s[p]
	return ok
}

// List returns the permissions in the set in no particular order
func (s PermissionSet) List() []Permission {
	perms := make([]Permission, 0, len(s))
	for p := range s {
		perms = append(perms, p)
	}
	return perms
}

// HierarchyLevel is the numeric rank of a role. Lower numbers denote
// higher privilege.
type HierarchyLevel int

const (
	HierarchyOwner   HierarchyLevel = 0
	HierarchyAdmin   HierarchyLevel = 1
	HierarchyManager HierarchyLevel = 2
	HierarchyStaff   HierarchyLevel = 3
	HierarchyMember  HierarchyLevel = 4

	// HierarchyUnassigned is the lowest-privilege sentinel used when a
	// user has no role or the role carries no hierarchy level (custom
	// roles may not).
	HierarchyUnassigned HierarchyLevel = 99

	// ManagerThreshold splits "manager-and-above" (implicit access to
	// every client in the tenant) from "member-and-below" (gated by
	// explicit per-client grants).
	ManagerThreshold = HierarchyManager
)

// IsManagerOrAbove reports whether the level grants implicit access to
// all clients in the tenant.
func (h HierarchyLevel) IsManagerOrAbove() bool {
	return h <= ManagerThreshold
}

// Role represents a role scoped to an agency
type Role struct {
	ID       string `json:"id"`
	AgencyID string `json:"agency_id"`
	Name     string `json:"name"`
	// HierarchyLevel is nil for custom roles; system roles always have one.
	HierarchyLevel *HierarchyLevel `json:"hierarchy_level,omitempty"`
	IsSystem       bool            `json:"is_system"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// User is the application-level user record consulted by the middleware
type User struct {
	ID       string  `json:"id"`
	AgencyID string  `json:"agency_id"`
	Email    string  `json:"email"`
	RoleID   *string `json:"role_id,omitempty"`
	// IsOwner bypasses the entire permission model
	IsOwner bool `json:"is_owner"`
}

// AccessLevel is the per-client grant level
type AccessLevel string

const (
	AccessRead  AccessLevel = "read"
	AccessWrite AccessLevel = "write"
)

// Satisfies reports whether this level meets the required level.
// Write implies read; read does not imply write.
func (l AccessLevel) Satisfies(required AccessLevel) bool {
	if l == AccessWrite {
		return true
	}
	return l == AccessRead && required == AccessRead
}

// LevelForAction maps a permission action to the client access level it
// requires: write/manage need a write grant, read needs a read grant.
func LevelForAction(action Action) AccessLevel {
	if action == ActionRead {
		return AccessRead
	}
	return AccessWrite
}

// ClientGrant is a per-(user, agency, client) access grant. Only
// meaningful for users below the manager threshold.
type ClientGrant struct {
	UserID    string      `json:"user_id"`
	AgencyID  string      `json:"agency_id"`
	ClientID  string      `json:"client_id"`
	Level     AccessLevel `json:"permission"`
	GrantedBy *string     `json:"granted_by,omitempty"`
	GrantedAt time.Time   `json:"granted_at"`
}

// Actor is the authenticated request context attached by the middleware.
// It is the sole identity handed to downstream handlers; it is built
// once per request and never persisted.
type Actor struct {
	ID       string  `json:"id"`
	Email    string  `json:"email"`
	AgencyID string  `json:"agency_id"`
	RoleID   *string `json:"role_id,omitempty"`
	IsOwner  bool    `json:"is_owner"`
}

// ActorFromContext retrieves the authenticated actor set by the
// permission middleware.
func ActorFromContext(ctx context.Context) (*Actor, bool) {
	actor, ok := ctx.Value(contextkeys.ActorKey).(*Actor)
	return actor, ok
}

// SystemRoles returns the built-in role definitions seeded per agency
func SystemRoles() []Role {
	owner := HierarchyOwner
	admin := HierarchyAdmin
	manager := HierarchyManager
	staff := HierarchyStaff
	member := HierarchyMember
	return []Role{
		{Name: "owner", HierarchyLevel: &owner, IsSystem: true},
		{Name: "admin", HierarchyLevel: &admin, IsSystem: true},
		{Name: "manager", HierarchyLevel: &manager, IsSystem: true},
		{Name: "staff", HierarchyLevel: &staff, IsSystem: true},
		{Name: "member", HierarchyLevel: &member, IsSystem: true},
	}
}
