package rbac

import (
	"context"

	"github.com/tidewater/agencyhub/pkg/audit"
	"github.com/tidewater/agencyhub/pkg/contextkeys"
	"github.com/tidewater/agencyhub/pkg/observability"
)

// ClientScope is the tagged result of an accessible-clients query.
// It replaces the ambiguous "empty list means either full access or no
// access" convention: callers branch on IsUnrestricted explicitly.
type ClientScope struct {
	unrestricted bool
	clientIDs    []string
}

// UnrestrictedScope means the user has implicit access to every client
// in the tenant (manager-and-above).
func UnrestrictedScope() ClientScope {
	return ClientScope{unrestricted: true}
}

// RestrictedTo limits access to exactly the given client ids
func RestrictedTo(clientIDs []string) ClientScope {
	return ClientScope{clientIDs: clientIDs}
}

// IsUnrestricted reports whether the scope covers all clients in the tenant
func (s ClientScope) IsUnrestricted() bool {
	return s.unrestricted
}

// ClientIDs returns the granted client ids; meaningless when unrestricted
func (s ClientScope) ClientIDs() []string {
	return s.clientIDs
}

// Allows reports whether the scope covers the given client
func (s ClientScope) Allows(clientID string) bool {
	if s.unrestricted {
		return true
	}
	for _, id := range s.clientIDs {
		if id == clientID {
			return true
		}
	}
	return false
}

// ClientAccess answers per-client access questions for users below the
// manager threshold. Managers and above bypass the grant table entirely.
// All ambiguous or erroring states resolve to "deny".
type ClientAccess struct {
	store   Store
	perms   *PermissionService
	logger  *observability.Logger
	auditor audit.Logger
	metrics *observability.Metrics
}

// NewClientAccess creates the client access service. The auditor and
// metrics may be nil; audit and metric emission are then skipped.
func NewClientAccess(store Store, perms *PermissionService, logger *observability.Logger, auditor audit.Logger, metrics *observability.Metrics) *ClientAccess {
	return &ClientAccess{
		store:   store,
		perms:   perms,
		logger:  logger.WithField("component", "client_access"),
		auditor: auditor,
		metrics: metrics,
	}
}

// HasMemberClientAccess reports whether the user may touch the client at
// all: managers and above always may; members need a grant row at any
// level.
func (ca *ClientAccess) HasMemberClientAccess(ctx context.Context, userID, agencyID, clientID string) (bool, error) {
	level, err := ca.perms.UserHierarchyLevel(ctx, userID)
	if err != nil {
		return false, err
	}
	if level.IsManagerOrAbove() {
		return true, nil
	}

	grant, err := ca.store.GetClientGrant(ctx, userID, agencyID, clientID)
	if err != nil {
		return false, err
	}
	return grant != nil, nil
}

// AccessibleClients returns the tagged client scope for a user:
// unrestricted for managers and above, otherwise exactly the granted
// client ids (possibly empty).
func (ca *ClientAccess) AccessibleClients(ctx context.Context, userID, agencyID string) (ClientScope, error) {
	level, err := ca.perms.UserHierarchyLevel(ctx, userID)
	if err != nil {
		return RestrictedTo(nil), err
	}
	if level.IsManagerOrAbove() {
		return UnrestrictedScope(), nil
	}

	grants, err := ca.store.ListClientGrants(ctx, userID, agencyID)
	if err != nil {
		return RestrictedTo(nil), err
	}

	ids := make([]string, 0, len(grants))
	for _, grant := range grants {
		ids = append(ids, grant.ClientID)
	}
	return RestrictedTo(ids), nil
}

// MemberAccessibleClientIDs is the legacy-shaped accessor: it returns an
// empty list BOTH for managers (no restriction) and for members with
// zero grants. Callers must branch on hierarchy level first; prefer
// AccessibleClients, which makes the distinction explicit.
func (ca *ClientAccess) MemberAccessibleClientIDs(ctx context.Context, userID, agencyID string) ([]string, error) {
	scope, err := ca.AccessibleClients(ctx, userID, agencyID)
	if err != nil {
		return nil, err
	}
	if scope.IsUnrestricted() {
		return []string{}, nil
	}
	return scope.ClientIDs(), nil
}

// FilterClientsByAccess returns the items the user may see: unchanged
// for managers and above, filtered to granted clients for members.
func FilterClientsByAccess[T any](ctx context.Context, ca *ClientAccess, userID, agencyID string, items []T, clientID func(T) string) ([]T, error) {
	scope, err := ca.AccessibleClients(ctx, userID, agencyID)
	if err != nil {
		return nil, err
	}
	if scope.IsUnrestricted() {
		return items, nil
	}

	filtered := make([]T, 0, len(items))
	for _, item := range items {
		if scope.Allows(clientID(item)) {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

// MemberClientPermission returns the effective access level for a client:
// managers and above always get write, members get their stored grant
// level, nil when no grant exists.
func (ca *ClientAccess) MemberClientPermission(ctx context.Context, userID, agencyID, clientID string) (*AccessLevel, error) {
	level, err := ca.perms.UserHierarchyLevel(ctx, userID)
	if err != nil {
		return nil, err
	}
	if level.IsManagerOrAbove() {
		write := AccessWrite
		return &write, nil
	}

	grant, err := ca.store.GetClientGrant(ctx, userID, agencyID, clientID)
	if err != nil {
		return nil, err
	}
	if grant == nil {
		return nil, nil
	}
	lvl := grant.Level
	return &lvl, nil
}

// HasMemberWriteAccess reports whether the user holds write-level access
// to the client.
func (ca *ClientAccess) HasMemberWriteAccess(ctx context.Context, userID, agencyID, clientID string) (bool, error) {
	perm, err := ca.MemberClientPermission(ctx, userID, agencyID, clientID)
	if err != nil {
		return false, err
	}
	return perm != nil && *perm == AccessWrite, nil
}

// EnforceClientAccess is the canonical per-client gate: true when the
// user is manager-or-above, or holds a grant at or above the required
// level. Any error resolves to denied - never "allowed by default".
func (ca *ClientAccess) EnforceClientAccess(ctx context.Context, userID, agencyID, clientID string, required AccessLevel) bool {
	level, err := ca.perms.UserHierarchyLevel(ctx, userID)
	if err != nil {
		ca.logger.WithError(err).Warn("hierarchy lookup failed, denying client access")
		ca.recordCheck(required, "error")
		ca.LogClientAccessAttempt(ctx, userID, clientID, string(required), false, "hierarchy lookup failed")
		return false
	}
	if level.IsManagerOrAbove() {
		ca.recordCheck(required, "allowed")
		return true
	}

	grant, err := ca.store.GetClientGrant(ctx, userID, agencyID, clientID)
	if err != nil {
		ca.logger.WithError(err).Warn("grant lookup failed, denying client access")
		ca.recordCheck(required, "error")
		ca.LogClientAccessAttempt(ctx, userID, clientID, string(required), false, "grant lookup failed")
		return false
	}
	if grant == nil {
		ca.recordCheck(required, "denied")
		ca.LogClientAccessAttempt(ctx, userID, clientID, string(required), false, "no grant")
		return false
	}

	allowed := grant.Level.Satisfies(required)
	if allowed {
		ca.recordCheck(required, "allowed")
	} else {
		ca.recordCheck(required, "denied")
		ca.LogClientAccessAttempt(ctx, userID, clientID, string(required), false, "insufficient grant level")
	}
	return allowed
}

// LogClientAccessAttempt emits an audit record for a member access
// attempt. It never fails: audit sink errors are swallowed after a log
// line.
func (ca *ClientAccess) LogClientAccessAttempt(ctx context.Context, userID, clientID, action string, allowed bool, reason string) {
	ca.logger.WithFields(map[string]interface{}{
		"user_id":   userID,
		"client_id": clientID,
		"action":    action,
		"allowed":   allowed,
		"reason":    reason,
	}).Info("member client access attempt")

	if ca.auditor == nil {
		return
	}

	status := audit.EventStatusGranted
	if !allowed {
		status = audit.EventStatusDenied
	}
	event := &audit.Event{
		EventType: audit.EventTypeClientAccessCheck,
		Status:    status,
		UserID:    userID,
		AgencyID:  contextkeys.GetAgencyID(ctx),
		ClientID:  clientID,
		Action:    action,
		Reason:    reason,
		RequestID: contextkeys.GetRequestID(ctx),
	}
	if err := ca.auditor.Log(event); err != nil {
		ca.logger.WithError(err).Warn("failed to write audit event")
	}
}

func (ca *ClientAccess) recordCheck(level AccessLevel, outcome string) {
	if ca.metrics == nil {
		return
	}
	ca.metrics.ClientAccessTotal.WithLabelValues(string(level), outcome).Inc()
}
