package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/tidewater/agencyhub/pkg/observability"
)

const (
	defaultSearchLimit = 5
	searchCacheSize    = 256
	searchCacheTTL     = 5 * time.Minute
)

// Service provides tenant-scoped cross-session memory over a Gateway.
// Reads degrade gracefully: a gateway failure on the lookup paths
// yields an empty result, never an error to the caller's user.
type Service struct {
	gateway Gateway
	cache   *expirable.LRU[string, []Memory]
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewService creates a memory service. Metrics may be nil.
func NewService(gateway Gateway, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		gateway: gateway,
		cache:   expirable.NewLRU[string, []Memory](searchCacheSize, nil, searchCacheTTL),
		logger:  logger.WithField("component", "memory"),
		metrics: metrics,
	}
}

// AddMemory stores a memory at the most specific scope the request
// provides, with metadata embedded in the stored envelope.
func (s *Service) AddMemory(ctx context.Context, req AddRequest) (*Memory, error) {
	scope, err := UserScope(req.AgencyID, req.UserID, req.ClientID)
	if err != nil {
		return nil, err
	}

	importance := req.Importance
	if importance == "" {
		importance = ImportanceMedium
	}
	metadata := Metadata{
		AgencyID:   req.AgencyID,
		ClientID:   req.ClientID,
		UserID:     req.UserID,
		SessionID:  req.SessionID,
		Type:       req.Type,
		Topic:      req.Topic,
		Entities:   req.Entities,
		Importance: importance,
	}

	encoded, err := EncodeContent(req.Content, metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode memory: %w", err)
	}

	start := time.Now()
	id, err := s.gateway.AddMemory(ctx, encoded, scope)
	s.recordOp("add", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to add memory: %w", err)
	}

	s.invalidateScope(scope)

	now := time.Now().UTC()
	return &Memory{
		ID:        id,
		Content:   req.Content,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// SearchMemories runs a scoped semantic search with score, type and
// limit filtering. Results are cached per (scope, query) for a few
// minutes.
func (s *Service) SearchMemories(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	start := time.Now()

	scope, err := UserScope(req.AgencyID, req.UserID, req.ClientID)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	memories, found, err := s.searchScope(ctx, scope, req.Query, limit*2)
	if err != nil {
		return nil, fmt.Errorf("failed to search memories: %w", err)
	}

	filtered := make([]Memory, 0, len(memories))
	for _, m := range memories {
		if req.MinScore > 0 && m.Score < req.MinScore {
			continue
		}
		if len(req.Types) > 0 && !containsType(req.Types, m.Metadata.Type) {
			continue
		}
		filtered = append(filtered, m)
		if len(filtered) >= limit {
			break
		}
	}

	return &SearchResult{
		Memories:   filtered,
		TotalFound: found,
		SearchTime: time.Since(start),
	}, nil
}

// searchScope runs the raw gateway search with caching and envelope
// decoding.
func (s *Service) searchScope(ctx context.Context, scope Key, query string, fetchLimit int) ([]Memory, int, error) {
	cacheKey := fmt.Sprintf("%s\x00%s\x00%d", scope.String(), query, fetchLimit)
	if cached, ok := s.cache.Get(cacheKey); ok {
		if s.metrics != nil {
			s.metrics.MemoryCacheHitsTotal.Inc()
		}
		return cached, len(cached), nil
	}
	if s.metrics != nil {
		s.metrics.MemoryCacheMissesTotal.Inc()
	}

	start := time.Now()
	hits, err := s.gateway.SearchMemories(ctx, query, scope, fetchLimit)
	s.recordOp("search", start, err)
	if err != nil {
		return nil, 0, err
	}

	now := time.Now().UTC()
	memories := make([]Memory, 0, len(hits))
	for _, hit := range hits {
		content, metadata := DecodeContent(hit.Content)
		if metadata.AgencyID == "" {
			metadata.AgencyID = scope.Agency.ID()
		}
		if metadata.ClientID == "" && !scope.Client.IsWildcard() {
			metadata.ClientID = scope.Client.ID()
		}
		if metadata.UserID == "" && !scope.User.IsWildcard() {
			metadata.UserID = scope.User.ID()
		}
		if metadata.Type == "" {
			metadata.Type = TypeConversation
		}
		memories = append(memories, Memory{
			ID:        hit.ID,
			Content:   content,
			Metadata:  metadata,
			Score:     hit.Score,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	s.cache.Add(cacheKey, memories)
	return memories, len(hits), nil
}

// GetMemory loads a single memory by id. Returns nil when the memory
// does not exist or the gateway is unreachable.
func (s *Service) GetMemory(ctx context.Context, memoryID string) *Memory {
	start := time.Now()
	record, err := s.gateway.GetMemory(ctx, memoryID)
	s.recordOp("get", start, err)
	if err != nil || record == nil {
		if err != nil {
			s.logger.WithError(err).WithField("memory_id", memoryID).Debug("memory lookup failed")
		}
		return nil
	}
	return recordToMemory(record)
}

// ListMemories pages through all memories in a scope
func (s *Service) ListMemories(ctx context.Context, agencyID, userID, clientID string, page, pageSize int) (*ListResponse, error) {
	scope, err := UserScope(agencyID, userID, clientID)
	if err != nil {
		return nil, err
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}

	start := time.Now()
	records, total, err := s.gateway.ListMemories(ctx, scope, page, pageSize)
	s.recordOp("list", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}

	memories := make([]Memory, 0, len(records))
	for i := range records {
		m := recordToMemory(&records[i])
		if m.Metadata.AgencyID == "" {
			m.Metadata.AgencyID = agencyID
		}
		if m.Metadata.UserID == "" {
			m.Metadata.UserID = userID
		}
		if m.Metadata.ClientID == "" {
			m.Metadata.ClientID = clientID
		}
		memories = append(memories, *m)
	}

	return &ListResponse{
		Memories: memories,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}

// UpdateMemory replaces a memory's content, re-embedding metadata when
// provided. Returns nil when the update fails.
func (s *Service) UpdateMemory(ctx context.Context, memoryID, content string, metadata *Metadata) *Memory {
	stored := content
	if metadata != nil {
		encoded, err := EncodeContent(content, *metadata)
		if err != nil {
			s.logger.WithError(err).Warn("failed to encode updated memory")
			return nil
		}
		stored = encoded
	}

	start := time.Now()
	record, err := s.gateway.UpdateMemory(ctx, memoryID, stored)
	s.recordOp("update", start, err)
	if err != nil || record == nil {
		if err != nil {
			s.logger.WithError(err).WithField("memory_id", memoryID).Warn("memory update failed")
		}
		return nil
	}
	s.cache.Purge()
	return recordToMemory(record)
}

// DeleteMemory removes a single memory; false when the delete fails
func (s *Service) DeleteMemory(ctx context.Context, memoryID string) bool {
	start := time.Now()
	err := s.gateway.DeleteMemory(ctx, memoryID)
	s.recordOp("delete", start, err)
	if err != nil {
		s.logger.WithError(err).WithField("memory_id", memoryID).Warn("memory delete failed")
		return false
	}
	s.cache.Purge()
	return true
}

// ClearMemories removes every memory in the scope; false when the
// clear fails.
func (s *Service) ClearMemories(ctx context.Context, agencyID, userID, clientID string) bool {
	scope, err := UserScope(agencyID, userID, clientID)
	if err != nil {
		s.logger.WithError(err).Warn("invalid scope for clear")
		return false
	}

	start := time.Now()
	err = s.gateway.DeleteAllMemories(ctx, scope)
	s.recordOp("delete_all", start, err)
	if err != nil {
		s.logger.WithError(err).Warn("memory clear failed")
		return false
	}
	s.invalidateScope(scope)
	return true
}

// MemoryHistory returns the change history of a memory; empty on failure
func (s *Service) MemoryHistory(ctx context.Context, memoryID string) []HistoryEntry {
	start := time.Now()
	entries, err := s.gateway.MemoryHistory(ctx, memoryID)
	s.recordOp("history", start, err)
	if err != nil {
		s.logger.WithError(err).WithField("memory_id", memoryID).Debug("memory history failed")
		return []HistoryEntry{}
	}
	return entries
}

// Entities lists backend entities; empty on failure
func (s *Service) Entities(ctx context.Context) []Entity {
	start := time.Now()
	entities, err := s.gateway.Entities(ctx)
	s.recordOp("entities", start, err)
	if err != nil {
		s.logger.WithError(err).Debug("entity listing failed")
		return []Entity{}
	}
	return entities
}

// RecentMemories returns recent memories for the scope
func (s *Service) RecentMemories(ctx context.Context, agencyID, userID, clientID string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 10
	}
	result, err := s.SearchMemories(ctx, SearchRequest{
		Query:    "recent conversations and decisions",
		AgencyID: agencyID,
		ClientID: clientID,
		UserID:   userID,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}
	return result.Memories, nil
}

// MemoriesByType returns memories of a single type
func (s *Service) MemoriesByType(ctx context.Context, agencyID, userID, clientID string, memType MemoryType, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 10
	}
	result, err := s.SearchMemories(ctx, SearchRequest{
		Query:    string(memType) + " memory",
		AgencyID: agencyID,
		ClientID: clientID,
		UserID:   userID,
		Limit:    limit,
		Types:    []MemoryType{memType},
	})
	if err != nil {
		return nil, err
	}
	return result.Memories, nil
}

// ImportantMemories returns high-importance memories for the scope
func (s *Service) ImportantMemories(ctx context.Context, agencyID, userID, clientID string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 5
	}
	result, err := s.SearchMemories(ctx, SearchRequest{
		Query:    "important decisions and preferences",
		AgencyID: agencyID,
		ClientID: clientID,
		UserID:   userID,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}

	important := make([]Memory, 0, len(result.Memories))
	for _, m := range result.Memories {
		if m.Metadata.Importance == ImportanceHigh {
			important = append(important, m)
		}
	}
	return important, nil
}

// StoreConversationSummary stores a session summary as a conversation
// memory tagged with its topics.
func (s *Service) StoreConversationSummary(ctx context.Context, agencyID, userID, sessionID, summary string, topics []string, clientID string) (*Memory, error) {
	return s.AddMemory(ctx, AddRequest{
		Content:    summary,
		AgencyID:   agencyID,
		ClientID:   clientID,
		UserID:     userID,
		SessionID:  sessionID,
		Type:       TypeConversation,
		Topic:      strings.Join(topics, ", "),
		Entities:   topics,
		Importance: ImportanceMedium,
	})
}

// StoreDecision stores a decision with its context as a high-importance memory
func (s *Service) StoreDecision(ctx context.Context, agencyID, userID, decision, decisionContext, clientID string) (*Memory, error) {
	return s.AddMemory(ctx, AddRequest{
		Content:    fmt.Sprintf("Decision: %s. Context: %s", decision, decisionContext),
		AgencyID:   agencyID,
		ClientID:   clientID,
		UserID:     userID,
		Type:       TypeDecision,
		Importance: ImportanceHigh,
	})
}

// StorePreference stores a user preference as a high-importance memory
func (s *Service) StorePreference(ctx context.Context, agencyID, userID, preference, clientID string) (*Memory, error) {
	return s.AddMemory(ctx, AddRequest{
		Content:    "Preference: " + preference,
		AgencyID:   agencyID,
		ClientID:   clientID,
		UserID:     userID,
		Type:       TypePreference,
		Importance: ImportanceHigh,
	})
}

// StoreTask stores a task or action item
func (s *Service) StoreTask(ctx context.Context, agencyID, userID, task, dueContext, clientID string) (*Memory, error) {
	content := "Task: " + task
	if dueContext != "" {
		content += ". Due: " + dueContext
	}
	return s.AddMemory(ctx, AddRequest{
		Content:    content,
		AgencyID:   agencyID,
		ClientID:   clientID,
		UserID:     userID,
		Type:       TypeTask,
		Importance: ImportanceMedium,
	})
}

// Stats estimates memory counts per type by searching each type. The
// importance breakdown is left zeroed; computing it would need a full
// scan.
func (s *Service) Stats(ctx context.Context, agencyID, userID, clientID string) (*Stats, error) {
	stats := &Stats{
		ByType: make(map[MemoryType]int, len(AllTypes())),
		ByImportance: map[Importance]int{
			ImportanceLow:    0,
			ImportanceMedium: 0,
			ImportanceHigh:   0,
		},
	}

	for _, memType := range AllTypes() {
		result, err := s.SearchMemories(ctx, SearchRequest{
			Query:    string(memType),
			AgencyID: agencyID,
			ClientID: clientID,
			UserID:   userID,
			Limit:    100,
			Types:    []MemoryType{memType},
		})
		if err != nil {
			return nil, err
		}
		stats.ByType[memType] = len(result.Memories)
		stats.TotalMemories += len(result.Memories)
	}

	return stats, nil
}

// invalidateScope drops cached search results for a scope
func (s *Service) invalidateScope(scope Key) {
	prefix := scope.String() + "\x00"
	for _, key := range s.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			s.cache.Remove(key)
		}
	}
}

func (s *Service) recordOp(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.MemoryOperationsTotal.WithLabelValues(op, status).Inc()
	s.metrics.MemoryOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func recordToMemory(record *Record) *Memory {
	content, metadata := DecodeContent(record.Content)
	if metadata.UserID == "" && record.UserID != "" {
		if key, err := ParseKey(record.UserID); err == nil && !key.User.IsWildcard() {
			metadata.UserID = key.User.ID()
		}
	}
	if metadata.Type == "" {
		metadata.Type = TypeConversation
	}

	m := &Memory{
		ID:       record.ID,
		Content:  content,
		Metadata: metadata,
	}
	now := time.Now().UTC()
	if record.CreatedAt != nil {
		m.CreatedAt = *record.CreatedAt
	} else {
		m.CreatedAt = now
	}
	if record.UpdatedAt != nil {
		m.UpdatedAt = *record.UpdatedAt
	} else {
		m.UpdatedAt = now
	}
	return m
}

func containsType(types []MemoryType, t MemoryType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
