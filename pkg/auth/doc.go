// Package auth resolves the identity behind incoming HTTP requests.
//
// The Authenticator interface is the seam between the HTTP layer and
// whatever identity provider the deployment uses. Two implementations
// ship with the service:
//
//   - OIDCAuthenticator: verifies bearer ID tokens against an OIDC
//     provider; the tenant agency is read from a configurable claim.
//   - StaticAuthenticator: fixed token table for tests and local dev.
//
// Authentication only answers "who is this" - authorization is handled
// separately by pkg/rbac.
package auth
