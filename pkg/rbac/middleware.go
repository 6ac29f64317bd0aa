package rbac

import (
	"net/http"
	"regexp"

	"github.com/gorilla/mux"

	"github.com/tidewater/agencyhub/pkg/audit"
	"github.com/tidewater/agencyhub/pkg/auth"
	"github.com/tidewater/agencyhub/pkg/contextkeys"
	"github.com/tidewater/agencyhub/pkg/httputil"
	"github.com/tidewater/agencyhub/pkg/observability"
)

// clientPathPattern extracts the client id from paths shaped like
// /clients/{id} or deeper. Fallback for routes not registered through
// mux with a {clientID} variable.
var clientPathPattern = regexp.MustCompile(`/clients/([^/]+)`)

// Middleware wraps HTTP handlers with authentication and authorization.
// Each wrapper runs the same pipeline: resolve the session, load the
// user record, apply the owner bypass, check role permissions, and for
// client-scoped resources enforce the per-client grant. Any unexpected
// failure resolves to denied.
type Middleware struct {
	authn   auth.Authenticator
	store   Store
	perms   *PermissionService
	access  *ClientAccess
	logger  *observability.Logger
	metrics *observability.Metrics
	auditor audit.Logger
}

// NewMiddleware creates the authorization middleware. The auditor and
// metrics may be nil.
func NewMiddleware(authn auth.Authenticator, store Store, perms *PermissionService, access *ClientAccess, logger *observability.Logger, metrics *observability.Metrics, auditor audit.Logger) *Middleware {
	return &Middleware{
		authn:   authn,
		store:   store,
		perms:   perms,
		access:  access,
		logger:  logger.WithField("component", "rbac_middleware"),
		metrics: metrics,
		auditor: auditor,
	}
}

// Auditor exposes the audit sink so handlers can record domain events
// through the same trail. May be nil.
func (m *Middleware) Auditor() audit.Logger {
	return m.auditor
}

// WithPermission guards a handler with a single (resource, action)
// requirement. For client-scoped resources the per-client grant is also
// enforced when a client id is present in the request path.
func (m *Middleware) WithPermission(resource Resource, action Action) func(http.Handler) http.Handler {
	return m.wrap(func(w http.ResponseWriter, r *http.Request, actor *Actor) bool {
		return m.authorize(w, r, actor, []Permission{{Resource: resource, Action: action}})
	})
}

// WithAnyPermission guards a handler with a list of alternatives: the
// request proceeds if the role grants any one of them. The per-client
// grant check uses the first permission that matched.
func (m *Middleware) WithAnyPermission(perms ...Permission) func(http.Handler) http.Handler {
	return m.wrap(func(w http.ResponseWriter, r *http.Request, actor *Actor) bool {
		return m.authorize(w, r, actor, perms)
	})
}

// WithOwnerOnly guards a handler so only the tenant owner may call it
func (m *Middleware) WithOwnerOnly() func(http.Handler) http.Handler {
	return m.wrap(func(w http.ResponseWriter, r *http.Request, actor *Actor) bool {
		if !actor.IsOwner {
			m.deny(w, r, actor, CodeOwnerOnly, "", "", "not owner")
			return false
		}
		m.audit(r, actor, audit.EventTypeOwnerBypass, audit.EventStatusGranted, "", "", "", "owner")
		return true
	})
}

// wrap runs authentication and user loading, then hands off to the
// check function. A panic anywhere in the pipeline resolves to a 500
// with the fixed check-failed message.
func (m *Middleware) wrap(check func(http.ResponseWriter, *http.Request, *Actor) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					m.logger.WithField("panic", rec).Error("panic during authorization")
					if m.metrics != nil {
						m.metrics.PermissionCheckErrors.Inc()
					}
					m.writeCode(w, CodeCheckFailed, "")
				}
			}()

			identity, err := m.authn.Authenticate(r)
			if err != nil || identity == nil || identity.AgencyID == "" {
				m.writeCode(w, CodeAuthRequired, "")
				return
			}

			ctx := contextkeys.WithAgencyID(r.Context(), identity.AgencyID)
			r = r.WithContext(ctx)

			user, err := m.store.GetUser(r.Context(), identity.UserID)
			if err != nil {
				m.logger.WithError(err).WithField("user_id", identity.UserID).Error("failed to load user record")
				m.writeCode(w, CodeUserFetchFailed, "")
				return
			}

			actor := &Actor{
				ID:       user.ID,
				Email:    user.Email,
				AgencyID: user.AgencyID,
				RoleID:   user.RoleID,
				IsOwner:  user.IsOwner,
			}

			if !check(w, r, actor) {
				return
			}

			next.ServeHTTP(w, r.WithContext(contextkeys.WithActor(r.Context(), actor)))
		})
	}
}

// authorize applies the owner bypass, the role permission check and,
// for client-scoped resources, the per-client grant check. Writes the
// response itself on denial and returns false.
func (m *Middleware) authorize(w http.ResponseWriter, r *http.Request, actor *Actor, alternatives []Permission) bool {
	if len(alternatives) == 0 {
		m.writeCode(w, CodeCheckFailed, "")
		return false
	}
	primary := alternatives[0]

	if actor.IsOwner {
		m.audit(r, actor, audit.EventTypeOwnerBypass, audit.EventStatusGranted, primary.Resource, primary.Action, "", "owner")
		m.recordPermissionCheck(primary, "allowed")
		return true
	}

	perms, err := m.perms.UserPermissions(r.Context(), actor.ID)
	if err != nil {
		m.logger.WithError(err).WithField("user_id", actor.ID).Error("failed to load permissions")
		if m.metrics != nil {
			m.metrics.PermissionCheckErrors.Inc()
		}
		m.audit(r, actor, audit.EventTypeCheckError, audit.EventStatusError, primary.Resource, primary.Action, "", "permission load failed")
		m.writeCode(w, CodeCheckFailed, primary.Resource)
		return false
	}

	clientID := m.clientIDFromRequest(r)

	var granted *Permission
	for i := range alternatives {
		if m.perms.CheckPermission(perms, alternatives[i].Resource, alternatives[i].Action, clientID) {
			granted = &alternatives[i]
			break
		}
	}
	if granted == nil {
		m.deny(w, r, actor, CodePermissionDenied, primary.Resource, primary.Action, "role lacks permission")
		return false
	}

	if granted.Resource == ResourceClients && clientID != "" {
		required := LevelForAction(granted.Action)
		if !m.access.EnforceClientAccess(r.Context(), actor.ID, actor.AgencyID, clientID, required) {
			m.denyClient(w, r, actor, granted.Resource, granted.Action, clientID)
			return false
		}
	}

	m.audit(r, actor, audit.EventTypeAccessGranted, audit.EventStatusGranted, granted.Resource, granted.Action, clientID, "")
	m.recordPermissionCheck(*granted, "allowed")
	return true
}

// clientIDFromRequest resolves the target client id: the mux route
// variable when present, otherwise the first /clients/{id} path segment.
func (m *Middleware) clientIDFromRequest(r *http.Request) string {
	if vars := mux.Vars(r); vars != nil {
		if id, ok := vars["clientID"]; ok && id != "" {
			return id
		}
	}
	if match := clientPathPattern.FindStringSubmatch(r.URL.Path); match != nil {
		return match[1]
	}
	return ""
}

// deny writes the denial response and records the audit event
func (m *Middleware) deny(w http.ResponseWriter, r *http.Request, actor *Actor, code Code, resource Resource, action Action, reason string) {
	m.logger.WithFields(map[string]interface{}{
		"user_id":  actor.ID,
		"resource": string(resource),
		"action":   string(action),
		"code":     string(code),
		"reason":   reason,
	}).Info("access denied")
	m.audit(r, actor, audit.EventTypeAccessDenied, audit.EventStatusDenied, resource, action, "", reason)
	if m.metrics != nil && resource != "" {
		m.metrics.PermissionChecksTotal.WithLabelValues(string(resource), string(action), "denied").Inc()
	}
	m.writeCode(w, code, resource)
}

// denyClient writes the denial for a failed per-client grant check. The
// access service has already audited the grant decision itself.
func (m *Middleware) denyClient(w http.ResponseWriter, r *http.Request, actor *Actor, resource Resource, action Action, clientID string) {
	m.logger.WithFields(map[string]interface{}{
		"user_id":   actor.ID,
		"client_id": clientID,
		"action":    string(action),
	}).Info("client access denied")
	if m.metrics != nil {
		m.metrics.PermissionChecksTotal.WithLabelValues(string(resource), string(action), "denied").Inc()
	}
	m.writeCode(w, CodePermissionDenied, resource)
}

// writeCode writes the fixed response body for an authorization code
func (m *Middleware) writeCode(w http.ResponseWriter, code Code, resource Resource) {
	httputil.WriteErrorEnvelope(w, code.HTTPStatus(), string(code), code.Message(resource))
}

// audit emits an audit event, swallowing sink failures
func (m *Middleware) audit(r *http.Request, actor *Actor, eventType audit.EventType, status audit.EventStatus, resource Resource, action Action, clientID, reason string) {
	if m.auditor == nil {
		return
	}
	event := &audit.Event{
		EventType: eventType,
		Status:    status,
		UserID:    actor.ID,
		AgencyID:  actor.AgencyID,
		Resource:  string(resource),
		Action:    string(action),
		ClientID:  clientID,
		Reason:    reason,
		RequestID: contextkeys.GetRequestID(r.Context()),
		Method:    r.Method,
		Path:      r.URL.Path,
	}
	if err := m.auditor.Log(event); err != nil {
		m.logger.WithError(err).Warn("failed to write audit event")
	}
}

func (m *Middleware) recordPermissionCheck(p Permission, outcome string) {
	if m.metrics == nil {
		return
	}
	m.metrics.PermissionChecksTotal.WithLabelValues(string(p.Resource), string(p.Action), outcome).Inc()
}
