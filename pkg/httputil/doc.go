// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding, the
// standard {error, code, message} error envelope, parameter parsing, and
// common HTTP middleware patterns.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, resource)
//
// Error responses:
//
//	httputil.WriteErrorEnvelope(w, http.StatusForbidden, "PERMISSION_DENIED", "You do not have permission to access clients")
//	httputil.WriteBadRequest(w, "Invalid input")
//
// # Request Parsing
//
//	var req CreateClientRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//	)
//
// # Related Packages
//
//   - pkg/rbac: Permission middleware built on these helpers
package httputil
