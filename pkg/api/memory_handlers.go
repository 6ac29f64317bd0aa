package api

import (
	"net/http"

	"github.com/tidewater/agencyhub/pkg/httputil"
	"github.com/tidewater/agencyhub/pkg/memory"
	"github.com/tidewater/agencyhub/pkg/observability"
	"github.com/tidewater/agencyhub/pkg/rbac"
)

// memoryHandlers serves the assistant memory routes. All operations
// run under the authenticated actor's agency and user; callers never
// pass scope ids directly, only an optional client id.
type memoryHandlers struct {
	service  *memory.Service
	injector *memory.Injector
	logger   *observability.Logger
}

func newMemoryHandlers(deps Deps) *memoryHandlers {
	return &memoryHandlers{
		service:  deps.Memory,
		injector: deps.Injector,
		logger:   deps.Logger.WithField("handler", "memory"),
	}
}

func (h *memoryHandlers) available(w http.ResponseWriter) bool {
	if h.service == nil {
		httputil.WriteErrorEnvelope(w, http.StatusServiceUnavailable, "MEMORY_UNAVAILABLE", "Memory service not available")
		return false
	}
	return true
}

// list handles GET /api/v1/memory, in list mode or search mode when a
// search query parameter is present.
func (h *memoryHandlers) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteInternalError(w, "request context missing actor")
		return
	}
	if !h.available(w) {
		return
	}

	page, err := httputil.ParseQueryInt(r, "page", 1)
	if err != nil {
		httputil.WriteBadRequest(w, "page must be an integer")
		return
	}
	pageSize, err := httputil.ParseQueryInt(r, "pageSize", 50)
	if err != nil {
		httputil.WriteBadRequest(w, "pageSize must be an integer")
		return
	}
	clientID := httputil.ParseQueryString(r, "clientId", "")

	if search := httputil.ParseQueryString(r, "search", ""); search != "" {
		result, err := h.service.SearchMemories(r.Context(), memory.SearchRequest{
			Query:    search,
			AgencyID: actor.AgencyID,
			ClientID: clientID,
			UserID:   actor.ID,
			Limit:    pageSize,
		})
		if err != nil {
			h.logger.WithError(err).Error("memory search failed")
			httputil.WriteInternalError(w, "Failed to fetch memories")
			return
		}
		httputil.WriteSuccess(w, map[string]interface{}{
			"memories":       result.Memories,
			"total":          result.TotalFound,
			"page":           1,
			"page_size":      pageSize,
			"search_time_ms": result.SearchTime.Milliseconds(),
		})
		return
	}

	result, err := h.service.ListMemories(r.Context(), actor.AgencyID, actor.ID, clientID, page, pageSize)
	if err != nil {
		h.logger.WithError(err).Error("memory list failed")
		httputil.WriteInternalError(w, "Failed to fetch memories")
		return
	}
	httputil.WriteSuccess(w, result)
}

type addMemoryRequest struct {
	Content    string            `json:"content"`
	Type       memory.MemoryType `json:"type"`
	Importance memory.Importance `json:"importance,omitempty"`
	Topic      string            `json:"topic,omitempty"`
	ClientID   string            `json:"client_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
}

// add handles POST /api/v1/memory
func (h *memoryHandlers) add(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteInternalError(w, "request context missing actor")
		return
	}
	if !h.available(w) {
		return
	}

	var req addMemoryRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Content == "" || req.Type == "" {
		httputil.WriteBadRequest(w, "content and type are required")
		return
	}

	importance := req.Importance
	if importance == "" {
		importance = memory.ImportanceHigh
	}

	stored, err := h.service.AddMemory(r.Context(), memory.AddRequest{
		Content:    req.Content,
		AgencyID:   actor.AgencyID,
		ClientID:   req.ClientID,
		UserID:     actor.ID,
		SessionID:  req.SessionID,
		Type:       req.Type,
		Topic:      req.Topic,
		Importance: importance,
	})
	if err != nil {
		h.logger.WithError(err).Error("memory add failed")
		httputil.WriteInternalError(w, "Failed to store memory")
		return
	}

	httputil.WriteCreated(w, map[string]interface{}{
		"success":   true,
		"memory_id": stored.ID,
	})
}

type deleteMemoryRequest struct {
	MemoryID  string `json:"memory_id,omitempty"`
	DeleteAll bool   `json:"delete_all,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
}

// delete handles DELETE /api/v1/memory: a single memory by id, or the
// entire scope when delete_all is set.
func (h *memoryHandlers) delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteInternalError(w, "request context missing actor")
		return
	}
	if !h.available(w) {
		return
	}

	var req deleteMemoryRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	switch {
	case req.DeleteAll:
		if !h.service.ClearMemories(r.Context(), actor.AgencyID, actor.ID, req.ClientID) {
			httputil.WriteInternalError(w, "Failed to delete memories")
			return
		}
	case req.MemoryID != "":
		if !h.service.DeleteMemory(r.Context(), req.MemoryID) {
			httputil.WriteInternalError(w, "Failed to delete memory")
			return
		}
	default:
		httputil.WriteBadRequest(w, "memory_id or delete_all is required")
		return
	}

	httputil.WriteSuccess(w, map[string]bool{"success": true})
}

type searchMemoryRequest struct {
	Query    string              `json:"query"`
	ClientID string              `json:"client_id,omitempty"`
	Limit    int                 `json:"limit,omitempty"`
	MinScore float64             `json:"min_score,omitempty"`
	Types    []memory.MemoryType `json:"types,omitempty"`
}

// search handles POST /api/v1/memory/search
func (h *memoryHandlers) search(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteInternalError(w, "request context missing actor")
		return
	}
	if !h.available(w) {
		return
	}

	var req searchMemoryRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Query, "query") {
		return
	}

	result, err := h.service.SearchMemories(r.Context(), memory.SearchRequest{
		Query:    req.Query,
		AgencyID: actor.AgencyID,
		ClientID: req.ClientID,
		UserID:   actor.ID,
		Limit:    req.Limit,
		MinScore: req.MinScore,
		Types:    req.Types,
	})
	if err != nil {
		h.logger.WithError(err).Error("memory search failed")
		httputil.WriteInternalError(w, "Failed to search memories")
		return
	}

	httputil.WriteSuccess(w, result)
}

type injectMemoryRequest struct {
	Query      string `json:"query"`
	ClientID   string `json:"client_id,omitempty"`
	BasePrompt string `json:"base_prompt,omitempty"`
}

// inject handles POST /api/v1/memory/inject: runs recall detection and
// returns the memory context for a query, plus the enhanced prompt
// when a base prompt was supplied.
func (h *memoryHandlers) inject(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteInternalError(w, "request context missing actor")
		return
	}
	if h.injector == nil {
		httputil.WriteErrorEnvelope(w, http.StatusServiceUnavailable, "MEMORY_UNAVAILABLE", "Memory service not available")
		return
	}

	var req injectMemoryRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Query, "query") {
		return
	}

	recall := h.injector.DetectRecall(req.Query)
	response := map[string]interface{}{"recall": recall}

	if req.BasePrompt != "" {
		prompt, used := h.injector.ProcessWithMemory(r.Context(), req.Query, actor.AgencyID, actor.ID, req.BasePrompt, req.ClientID)
		response["system_prompt"] = prompt
		response["memories"] = used
	} else {
		searchQuery := req.Query
		if recall.IsRecallQuery {
			searchQuery = recall.SearchQuery
		}
		injection := h.injector.InjectMemories(r.Context(), searchQuery, actor.AgencyID, actor.ID, req.ClientID)
		response["injection"] = injection
	}

	httputil.WriteSuccess(w, response)
}

// stats handles GET /api/v1/memory/stats
func (h *memoryHandlers) stats(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteInternalError(w, "request context missing actor")
		return
	}
	if !h.available(w) {
		return
	}

	clientID := httputil.ParseQueryString(r, "clientId", "")
	stats, err := h.service.Stats(r.Context(), actor.AgencyID, actor.ID, clientID)
	if err != nil {
		h.logger.WithError(err).Error("memory stats failed")
		httputil.WriteInternalError(w, "Failed to compute memory stats")
		return
	}
	httputil.WriteSuccess(w, stats)
}

// entities handles GET /api/v1/memory/entities
func (h *memoryHandlers) entities(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"entities": h.service.Entities(r.Context()),
	})
}

// get handles GET /api/v1/memory/{memoryID}
func (h *memoryHandlers) get(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	memoryID, ok := httputil.ParsePathStringOrError(w, r, "memoryID")
	if !ok {
		return
	}

	m := h.service.GetMemory(r.Context(), memoryID)
	if m == nil {
		httputil.WriteNotFound(w, "Memory not found")
		return
	}
	httputil.WriteSuccess(w, m)
}

type updateMemoryRequest struct {
	Content string `json:"content"`
}

// update handles PUT /api/v1/memory/{memoryID}
func (h *memoryHandlers) update(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	memoryID, ok := httputil.ParsePathStringOrError(w, r, "memoryID")
	if !ok {
		return
	}

	var req updateMemoryRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Content, "content") {
		return
	}

	m := h.service.UpdateMemory(r.Context(), memoryID, req.Content, nil)
	if m == nil {
		httputil.WriteInternalError(w, "Failed to update memory")
		return
	}
	httputil.WriteSuccess(w, m)
}

// history handles GET /api/v1/memory/{memoryID}/history
func (h *memoryHandlers) history(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	memoryID, ok := httputil.ParsePathStringOrError(w, r, "memoryID")
	if !ok {
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"memory_id": memoryID,
		"history":   h.service.MemoryHistory(r.Context(), memoryID),
	})
}
