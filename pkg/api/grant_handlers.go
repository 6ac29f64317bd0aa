package api

import (
	"net/http"

	"github.com/tidewater/agencyhub/pkg/audit"
	"github.com/tidewater/agencyhub/pkg/contextkeys"
	"github.com/tidewater/agencyhub/pkg/httputil"
	"github.com/tidewater/agencyhub/pkg/observability"
	"github.com/tidewater/agencyhub/pkg/rbac"
)

// grantHandlers administers per-client access grants. All routes are
// owner-only; grant changes are audited.
type grantHandlers struct {
	store   rbac.Store
	auditor audit.Logger
	logger  *observability.Logger
}

func newGrantHandlers(deps Deps) *grantHandlers {
	return &grantHandlers{
		store:   deps.Store,
		auditor: deps.Middleware.Auditor(),
		logger:  deps.Logger.WithField("handler", "grants"),
	}
}

// list handles GET /api/v1/users/{userID}/client-access
func (h *grantHandlers) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteInternalError(w, "request context missing actor")
		return
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "userID")
	if !ok {
		return
	}

	grants, err := h.store.ListClientGrants(r.Context(), userID, actor.AgencyID)
	if err != nil {
		h.logger.WithError(err).Error("failed to list client grants")
		httputil.WriteInternalError(w, "Failed to list client access")
		return
	}
	if grants == nil {
		grants = []rbac.ClientGrant{}
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"user_id": userID,
		"grants":  grants,
	})
}

type upsertGrantRequest struct {
	ClientID   string           `json:"client_id"`
	Permission rbac.AccessLevel `json:"permission"`
}

// upsert handles PUT /api/v1/users/{userID}/client-access
func (h *grantHandlers) upsert(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteInternalError(w, "request context missing actor")
		return
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "userID")
	if !ok {
		return
	}

	var req upsertGrantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.ClientID, "client_id") {
		return
	}
	if req.Permission != rbac.AccessRead && req.Permission != rbac.AccessWrite {
		httputil.WriteBadRequest(w, "permission must be read or write")
		return
	}

	grant := &rbac.ClientGrant{
		UserID:    userID,
		AgencyID:  actor.AgencyID,
		ClientID:  req.ClientID,
		Level:     req.Permission,
		GrantedBy: &actor.ID,
	}
	if err := h.store.UpsertClientGrant(r.Context(), grant); err != nil {
		h.logger.WithError(err).Error("failed to upsert client grant")
		httputil.WriteInternalError(w, "Failed to store client access")
		return
	}

	h.auditGrant(r, audit.EventTypeGrantCreated, actor, userID, req.ClientID, string(req.Permission))
	httputil.WriteSuccess(w, grant)
}

// revoke handles DELETE /api/v1/users/{userID}/client-access/{clientID}
func (h *grantHandlers) revoke(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteInternalError(w, "request context missing actor")
		return
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "userID")
	if !ok {
		return
	}
	clientID, ok := httputil.ParsePathStringOrError(w, r, "clientID")
	if !ok {
		return
	}

	if err := h.store.DeleteClientGrant(r.Context(), userID, actor.AgencyID, clientID); err != nil {
		h.logger.WithError(err).Error("failed to revoke client grant")
		httputil.WriteInternalError(w, "Failed to revoke client access")
		return
	}

	h.auditGrant(r, audit.EventTypeGrantRevoked, actor, userID, clientID, "")
	httputil.WriteNoContent(w)
}

func (h *grantHandlers) auditGrant(r *http.Request, eventType audit.EventType, actor *rbac.Actor, targetUserID, clientID, level string) {
	if h.auditor == nil {
		return
	}
	event := &audit.Event{
		EventType: eventType,
		Status:    audit.EventStatusGranted,
		UserID:    actor.ID,
		AgencyID:  actor.AgencyID,
		ClientID:  clientID,
		Action:    level,
		Reason:    "target user " + targetUserID,
		RequestID: contextkeys.GetRequestID(r.Context()),
		Method:    r.Method,
		Path:      r.URL.Path,
	}
	if err := h.auditor.Log(event); err != nil {
		h.logger.WithError(err).Warn("failed to write audit event")
	}
}
