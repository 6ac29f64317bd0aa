package rbac

import (
	"fmt"
	"net/http"
)

// Code is the closed set of authorization failure codes the middleware
// can emit. Every code maps to exactly one HTTP status and a fixed,
// reviewed message; raw collaborator errors never reach the response.
type Code string

const (
	// CodeAuthRequired: no valid authenticated session
	CodeAuthRequired Code = "AUTH_REQUIRED"
	// CodeUserFetchFailed: the application user record could not be loaded
	CodeUserFetchFailed Code = "USER_FETCH_FAILED"
	// CodePermissionDenied: authenticated but lacks the resource:action grant
	CodePermissionDenied Code = "PERMISSION_DENIED"
	// CodeOwnerOnly: endpoint restricted to the tenant owner
	CodeOwnerOnly Code = "OWNER_ONLY"
	// CodeCheckFailed: unexpected error during authorization
	CodeCheckFailed Code = "PERMISSION_CHECK_FAILED"
)

// HTTPStatus returns the HTTP status the code maps to
func (c Code) HTTPStatus() int {
	switch c {
	case CodeAuthRequired:
		return http.StatusUnauthorized
	case CodeUserFetchFailed, CodeCheckFailed:
		return http.StatusInternalServerError
	case CodePermissionDenied, CodeOwnerOnly:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the fixed response message for the code. For
// PERMISSION_DENIED the message names the resource being accessed.
func (c Code) Message(resource Resource) string {
	switch c {
	case CodeAuthRequired:
		return "Authentication required"
	case CodeUserFetchFailed:
		return "Failed to load user account"
	case CodePermissionDenied:
		return fmt.Sprintf("You do not have permission to access %s", describeResource(resource))
	case CodeOwnerOnly:
		return "This action is restricted to the agency owner"
	case CodeCheckFailed:
		return "Permission check failed"
	default:
		return "Permission check failed"
	}
}

// describeResource renders a resource name for user-facing denial messages
func describeResource(resource Resource) string {
	switch resource {
	case ResourceSettings:
		return "agency settings"
	case "":
		return "this resource"
	default:
		return string(resource)
	}
}
