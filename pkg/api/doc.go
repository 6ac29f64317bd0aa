// Package api provides the HTTP API for AgencyHub.
//
// Every route under /api/v1 is wrapped by the rbac permission
// middleware; handlers read the authenticated actor from the request
// context and never re-check permissions themselves. The exceptions
// are /healthz and /metrics, which are unauthenticated.
//
// Route groups:
//
//   - /api/v1/clients: client CRUD. Listing filters results to the
//     clients the caller may see; routes with a client id in the path
//     additionally pass the per-client grant check in the middleware.
//   - /api/v1/users/{id}/client-access: grant administration, owner
//     only.
//   - /api/v1/memory: assistant memory operations, always scoped to
//     the caller's agency and user.
//
// The server takes all collaborators through Deps; construction wires
// routes once and the server is immutable afterwards.
package api
