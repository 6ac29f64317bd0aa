package api

import (
	"errors"
	"net/http"

	"github.com/tidewater/agencyhub/pkg/clients"
	"github.com/tidewater/agencyhub/pkg/httputil"
	"github.com/tidewater/agencyhub/pkg/observability"
	"github.com/tidewater/agencyhub/pkg/rbac"
)

// clientHandlers serves the client CRUD routes. The permission
// middleware has already authenticated the caller and, for routes with
// a client id in the path, enforced the per-client grant; the list
// route additionally filters results to the caller's accessible
// clients.
type clientHandlers struct {
	store  clients.Store
	access *rbac.ClientAccess
	logger *observability.Logger
}

func newClientHandlers(deps Deps) *clientHandlers {
	return &clientHandlers{
		store:  deps.Clients,
		access: deps.Access,
		logger: deps.Logger.WithField("handler", "clients"),
	}
}

// list handles GET /api/v1/clients
func (h *clientHandlers) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteInternalError(w, "request context missing actor")
		return
	}

	all, err := h.store.ListClients(r.Context(), actor.AgencyID)
	if err != nil {
		h.logger.WithError(err).Error("failed to list clients")
		httputil.WriteInternalError(w, "Failed to list clients")
		return
	}

	visible := all
	if !actor.IsOwner {
		visible, err = rbac.FilterClientsByAccess(r.Context(), h.access, actor.ID, actor.AgencyID, all,
			func(c clients.Client) string { return c.ID })
		if err != nil {
			h.logger.WithError(err).Error("failed to filter clients by access")
			httputil.WriteInternalError(w, "Failed to list clients")
			return
		}
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"clients": visible,
		"total":   len(visible),
	})
}

// get handles GET /api/v1/clients/{clientID}
func (h *clientHandlers) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteInternalError(w, "request context missing actor")
		return
	}
	clientID, ok := httputil.ParsePathStringOrError(w, r, "clientID")
	if !ok {
		return
	}

	client, err := h.store.GetClient(r.Context(), actor.AgencyID, clientID)
	if errors.Is(err, clients.ErrNotFound) {
		httputil.WriteNotFound(w, "Client not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to get client")
		httputil.WriteInternalError(w, "Failed to load client")
		return
	}

	httputil.WriteSuccess(w, client)
}

// create handles POST /api/v1/clients
func (h *clientHandlers) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteInternalError(w, "request context missing actor")
		return
	}

	var client clients.Client
	if !httputil.ParseJSONOrError(w, r, &client) {
		return
	}
	if !httputil.RequireNonEmpty(w, client.Name, "name") {
		return
	}

	client.AgencyID = actor.AgencyID
	if err := h.store.CreateClient(r.Context(), &client); err != nil {
		h.logger.WithError(err).Error("failed to create client")
		httputil.WriteInternalError(w, "Failed to create client")
		return
	}

	httputil.WriteCreated(w, client)
}

// update handles PUT /api/v1/clients/{clientID}
func (h *clientHandlers) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteInternalError(w, "request context missing actor")
		return
	}
	clientID, ok := httputil.ParsePathStringOrError(w, r, "clientID")
	if !ok {
		return
	}

	var client clients.Client
	if !httputil.ParseJSONOrError(w, r, &client) {
		return
	}
	if !httputil.RequireNonEmpty(w, client.Name, "name") {
		return
	}

	client.ID = clientID
	client.AgencyID = actor.AgencyID
	err := h.store.UpdateClient(r.Context(), &client)
	if errors.Is(err, clients.ErrNotFound) {
		httputil.WriteNotFound(w, "Client not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to update client")
		httputil.WriteInternalError(w, "Failed to update client")
		return
	}

	httputil.WriteSuccess(w, client)
}

// delete handles DELETE /api/v1/clients/{clientID}
func (h *clientHandlers) delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteInternalError(w, "request context missing actor")
		return
	}
	clientID, ok := httputil.ParsePathStringOrError(w, r, "clientID")
	if !ok {
		return
	}

	err := h.store.DeleteClient(r.Context(), actor.AgencyID, clientID)
	if errors.Is(err, clients.ErrNotFound) {
		httputil.WriteNotFound(w, "Client not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to delete client")
		httputil.WriteInternalError(w, "Failed to delete client")
		return
	}

	httputil.WriteNoContent(w)
}
