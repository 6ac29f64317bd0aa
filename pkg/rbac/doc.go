// Package rbac provides role-based access control for the AgencyHub
// multi-tenant agency operations service.
//
// # Overview
//
// This package implements the authorization layer every protected API
// route passes through: role permission checks, the tenant owner
// bypass, hierarchy-based client visibility, and per-client access
// grants for low-privilege members. All decisions fail closed - any
// ambiguous or erroring state resolves to "deny".
//
// # Architecture
//
// The system consists of four key components:
//
//  1. Resources and Actions: what is being accessed (clients, tickets,
//     settings, memory, ...) and how (read, write, manage)
//  2. Roles: agency-scoped named permission sets with an optional
//     numeric hierarchy level
//  3. Client grants: explicit per-(user, client) read/write rows for
//     users below the manager threshold
//  4. Middleware: HTTP wrappers that run the full authorization
//     pipeline before the handler
//
// # Permissions
//
// A permission is a (resource, action) pair:
//
//	perm := rbac.Permission{
//		Resource: rbac.ResourceClients,
//		Action:   rbac.ActionWrite,
//	}
//	// Represents "clients:write"
//
// ActionManage is the per-resource wildcard: a role holding
// (clients, manage) satisfies any action on clients.
//
// # Hierarchy and Client Scope
//
// Roles carry a numeric hierarchy level; lower means more privileged:
//
//	0 owner, 1 admin, 2 manager, 3 staff, 4 member
//
// Level 2 (manager) is the threshold: managers and above implicitly
// see every client in their agency, while members see only clients
// they hold an explicit grant for. AccessibleClients returns this as a
// tagged ClientScope so callers never confuse "all clients" with "no
// clients":
//
//	scope, err := access.AccessibleClients(ctx, userID, agencyID)
//	if scope.IsUnrestricted() {
//		// manager or above: no filtering
//	} else {
//		ids := scope.ClientIDs()
//	}
//
// # Middleware
//
// Routes are protected by wrapping handlers:
//
//	router.Handle("/clients/{clientID}",
//		mw.WithPermission(rbac.ResourceClients, rbac.ActionWrite)(updateClient),
//	).Methods("PUT")
//
//	router.Handle("/settings",
//		mw.WithOwnerOnly()(updateSettings),
//	).Methods("PUT")
//
// The pipeline per request: authenticate the session, load the user
// record, apply the owner bypass, check role permissions, and for
// client-scoped routes enforce the per-client grant. Denials produce a
// fixed {error, code, message} body; the five codes and their HTTP
// statuses are defined in errors.go. Handlers downstream read the
// authenticated actor with ActorFromContext.
//
// # Storage
//
// The Store interface abstracts persistence; PostgresStore implements
// it over database/sql, and CachedStore decorates any Store with Redis
// caching (fail-open: cache trouble falls through to the inner store).
// Schema migrations live in migrations.go:
//
//	err := rbac.RunMigrations(ctx, db)
//
// # Related Packages
//
//   - pkg/auth: session authentication (OIDC bearer tokens)
//   - pkg/audit: audit logging of authorization decisions
//   - pkg/clients: client records the grants refer to
//   - pkg/memory: memory scoping built on the same tenant boundaries
package rbac
