package memory

import "time"

// MemoryType categorizes what a memory captures
type MemoryType string

const (
	TypeConversation MemoryType = "conversation"
	TypeDecision     MemoryType = "decision"
	TypePreference   MemoryType = "preference"
	TypeProject      MemoryType = "project"
	TypeInsight      MemoryType = "insight"
	TypeTask         MemoryType = "task"
)

// AllTypes returns every memory type in a stable order
func AllTypes() []MemoryType {
	return []MemoryType{
		TypeConversation,
		TypeDecision,
		TypePreference,
		TypeProject,
		TypeInsight,
		TypeTask,
	}
}

// Importance is the stored priority of a memory
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

// Weight returns the ranking boost for the importance level. Unknown
// values rank as low.
func (i Importance) Weight() float64 {
	switch i {
	case ImportanceHigh:
		return 0.3
	case ImportanceMedium:
		return 0.1
	default:
		return 0
	}
}

// Metadata is the structured envelope stored alongside memory content
type Metadata struct {
	AgencyID   string     `json:"agencyId,omitempty"`
	ClientID   string     `json:"clientId,omitempty"`
	UserID     string     `json:"userId,omitempty"`
	SessionID  string     `json:"sessionId,omitempty"`
	Type       MemoryType `json:"type,omitempty"`
	Topic      string     `json:"topic,omitempty"`
	Entities   []string   `json:"entities,omitempty"`
	Importance Importance `json:"importance,omitempty"`
}

// Memory is a stored cross-session memory
type Memory struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Metadata  Metadata  `json:"metadata"`
	Score     float64   `json:"score,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AddRequest describes a memory to store
type AddRequest struct {
	Content    string     `json:"content"`
	AgencyID   string     `json:"agency_id"`
	ClientID   string     `json:"client_id,omitempty"`
	UserID     string     `json:"user_id"`
	SessionID  string     `json:"session_id,omitempty"`
	Type       MemoryType `json:"type"`
	Topic      string     `json:"topic,omitempty"`
	Entities   []string   `json:"entities,omitempty"`
	Importance Importance `json:"importance,omitempty"`
}

// SearchRequest describes a scoped memory search
type SearchRequest struct {
	Query    string       `json:"query"`
	AgencyID string       `json:"agency_id"`
	ClientID string       `json:"client_id,omitempty"`
	UserID   string       `json:"user_id"`
	Limit    int          `json:"limit,omitempty"`
	MinScore float64      `json:"min_score,omitempty"`
	Types    []MemoryType `json:"types,omitempty"`
}

// SearchResult is the outcome of a search
type SearchResult struct {
	Memories   []Memory      `json:"memories"`
	TotalFound int           `json:"total_found"`
	SearchTime time.Duration `json:"search_time_ms"`
}

// ListResponse is a page of memories for a scope
type ListResponse struct {
	Memories []Memory `json:"memories"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
	Total    int      `json:"total"`
}

// HistoryEntry records one change to a memory
type HistoryEntry struct {
	ID         string    `json:"id"`
	MemoryID   string    `json:"memory_id"`
	OldContent string    `json:"old_content,omitempty"`
	NewContent string    `json:"new_content,omitempty"`
	Event      string    `json:"event"`
	Timestamp  time.Time `json:"timestamp"`
}

// Entity is a known entity in the memory backend
type Entity struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	MemoryCount int    `json:"memory_count,omitempty"`
}

// Stats holds estimated memory counts for a scope
type Stats struct {
	TotalMemories int                `json:"total_memories"`
	ByType        map[MemoryType]int `json:"by_type"`
	ByImportance  map[Importance]int `json:"by_importance"`
}
