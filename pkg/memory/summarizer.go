package memory

import (
	"context"

	"github.com/tidewater/agencyhub/pkg/observability"
)

const (
	// minMessagesForSummary gates summarization to sessions with
	// meaningful depth.
	minMessagesForSummary = 10

	// summaryInterval re-summarizes every N messages instead of on
	// every message.
	summaryInterval = 10

	// maxInsightsPerSession caps how many insights one summarization
	// run may store.
	maxInsightsPerSession = 4
)

// ConversationMessage is one turn of a chat session
type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Insight is a takeaway extracted from a conversation
type Insight struct {
	Content    string     `json:"content"`
	Type       MemoryType `json:"type"`
	Importance Importance `json:"importance"`
	Topic      string     `json:"topic,omitempty"`
}

// InsightExtractor distills a conversation into standalone takeaways.
// Implementations typically call an LLM; tests use a fixed extractor.
type InsightExtractor interface {
	ExtractInsights(ctx context.Context, messages []ConversationMessage) ([]Insight, error)
}

// Summarizer stores conversation takeaways as memories. It runs
// fire-and-forget after a session accumulates enough messages; failures
// are logged and swallowed so summarization never blocks a chat
// response.
type Summarizer struct {
	extractor InsightExtractor
	service   *Service
	logger    *observability.Logger
}

// NewSummarizer creates a summarizer. The extractor may be nil;
// summarization is then a no-op.
func NewSummarizer(extractor InsightExtractor, service *Service, logger *observability.Logger) *Summarizer {
	return &Summarizer{
		extractor: extractor,
		service:   service,
		logger:    logger.WithField("component", "summarizer"),
	}
}

// ShouldSummarize reports whether a session has crossed a
// summarization threshold at the given message count.
func ShouldSummarize(messageCount int) bool {
	return messageCount >= minMessagesForSummary && messageCount%summaryInterval == 0
}

// Summarize extracts insights from a session and stores each as a
// memory scoped to the session's user and client. Returns how many
// insights were stored.
func (s *Summarizer) Summarize(ctx context.Context, messages []ConversationMessage, agencyID, userID, sessionID, clientID string) int {
	if s.extractor == nil || len(messages) < minMessagesForSummary {
		return 0
	}

	insights, err := s.extractor.ExtractInsights(ctx, messages)
	if err != nil {
		s.logger.WithError(err).Warn("insight extraction failed")
		return 0
	}
	if len(insights) > maxInsightsPerSession {
		insights = insights[:maxInsightsPerSession]
	}

	stored := 0
	for _, insight := range insights {
		memType := insight.Type
		if memType == "" {
			memType = TypeInsight
		}
		importance := insight.Importance
		if importance == "" {
			importance = ImportanceHigh
		}

		_, err := s.service.AddMemory(ctx, AddRequest{
			Content:    insight.Content,
			AgencyID:   agencyID,
			ClientID:   clientID,
			UserID:     userID,
			SessionID:  sessionID,
			Type:       memType,
			Topic:      insight.Topic,
			Importance: importance,
		})
		if err != nil {
			s.logger.WithError(err).Warn("failed to store insight")
			continue
		}
		stored++
	}
	return stored
}
