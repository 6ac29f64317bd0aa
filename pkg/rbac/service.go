package rbac

import (
	"context"
	"fmt"
)

// PermissionService answers "does this role grant {resource, action}"
// and "what is this user's hierarchy level". It holds no state beyond
// the store; construct one per process in the composition root.
type PermissionService struct {
	store Store
}

// NewPermissionService creates a permission service over the given store
func NewPermissionService(store Store) *PermissionService {
	return &PermissionService{store: store}
}

// UserPermissions loads the permission set granted by the user's role
// within their tenant. A user with no role has the empty set.
func (s *PermissionService) UserPermissions(ctx context.Context, userID string) (PermissionSet, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}

	if user.RoleID == nil {
		return NewPermissionSet(), nil
	}

	perms, err := s.store.RolePermissions(ctx, *user.RoleID, user.AgencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load permissions for role %s: %w", *user.RoleID, err)
	}
	return NewPermissionSet(perms...), nil
}

// CheckPermission reports whether the permission set grants the
// (resource, action) pair, either exactly or via the (resource, manage)
// wildcard. The clientID parameter is accepted for call-site uniformity
// but not evaluated here; per-client checks belong to ClientAccess.
func (s *PermissionService) CheckPermission(perms PermissionSet, resource Resource, action Action, clientID string) bool {
	_ = clientID
	if perms.Contains(Permission{Resource: resource, Action: action}) {
		return true
	}
	return perms.Contains(Permission{Resource: resource, Action: ActionManage})
}

// UserHierarchyLevel returns the numeric hierarchy level of the user's
// role. Owners are level 0 regardless of role. A missing role, or a
// custom role without a hierarchy level, resolves to the lowest-privilege
// sentinel.
func (s *PermissionService) UserHierarchyLevel(ctx context.Context, userID string) (HierarchyLevel, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return HierarchyUnassigned, fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	return s.hierarchyLevelFor(ctx, user)
}

// hierarchyLevelFor resolves the level for an already-loaded user record
func (s *PermissionService) hierarchyLevelFor(ctx context.Context, user *User) (HierarchyLevel, error) {
	if user.IsOwner {
		return HierarchyOwner, nil
	}
	if user.RoleID == nil {
		return HierarchyUnassigned, nil
	}

	role, err := s.store.GetRole(ctx, *user.RoleID, user.AgencyID)
	if err != nil {
		return HierarchyUnassigned, fmt.Errorf("failed to load role %s: %w", *user.RoleID, err)
	}
	if role.HierarchyLevel == nil {
		return HierarchyUnassigned, nil
	}
	return *role.HierarchyLevel, nil
}
