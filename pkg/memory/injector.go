package memory

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tidewater/agencyhub/pkg/observability"
)

// recallPattern pairs a phrasing of "remember when..." with how
// confidently it signals a recall query.
type recallPattern struct {
	pattern    *regexp.Regexp
	confidence float64
}

var recallPatterns = []recallPattern{
	{regexp.MustCompile(`(?i)do you remember`), 0.95},
	{regexp.MustCompile(`(?i)we (discussed|talked about|decided)`), 0.9},
	{regexp.MustCompile(`(?i)you (told|said|mentioned)`), 0.85},
	{regexp.MustCompile(`(?i)remind me (of|about)`), 0.9},
	{regexp.MustCompile(`(?i)last (time|session|conversation)`), 0.8},
	{regexp.MustCompile(`(?i)what did (i|we|you) (say|discuss|decide)`), 0.9},
	{regexp.MustCompile(`(?i)previously`), 0.7},
	{regexp.MustCompile(`(?i)before,? you`), 0.75},
	{regexp.MustCompile(`(?i)our earlier (conversation|discussion)`), 0.85},
	{regexp.MustCompile(`(?i)you mentioned`), 0.85},
}

type timePattern struct {
	pattern *regexp.Regexp
	value   string
}

var timePatterns = []timePattern{
	{regexp.MustCompile(`(?i)yesterday`), "yesterday"},
	{regexp.MustCompile(`(?i)last week`), "last week"},
	{regexp.MustCompile(`(?i)last month`), "last month"},
	{regexp.MustCompile(`(?i)earlier today`), "earlier today"},
	{regexp.MustCompile(`(?i)a few days ago`), "a few days ago"},
	{regexp.MustCompile(`(?i)recently`), "recently"},
}

// recallStripPatterns remove recall phrasing when extracting the topic
var recallStripPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)do you remember`),
	regexp.MustCompile(`(?i)we (discussed|talked about|decided)`),
	regexp.MustCompile(`(?i)you (told|said|mentioned)`),
	regexp.MustCompile(`(?i)remind me (of|about)`),
	regexp.MustCompile(`(?i)last (time|session|conversation)`),
	regexp.MustCompile(`(?i)what did (i|we|you) (say|discuss|decide)`),
}

var (
	leadingFillerPattern  = regexp.MustCompile(`(?i)^(the|a|an|about|regarding)\s+`)
	trailingFillerPattern = regexp.MustCompile(`(?i)\s+(earlier|before|previously)$`)
)

// RecallDetection is the outcome of checking whether a query asks
// about past conversations.
type RecallDetection struct {
	IsRecallQuery bool    `json:"is_recall_query"`
	Confidence    float64 `json:"confidence"`
	Topic         string  `json:"topic,omitempty"`
	TimeReference string  `json:"time_reference,omitempty"`
	SearchQuery   string  `json:"search_query"`
}

// Injection is a set of memories rendered for inclusion in a system
// prompt.
type Injection struct {
	ContextBlock         string   `json:"context_block"`
	Memories             []Memory `json:"memories"`
	RelevanceExplanation string   `json:"relevance_explanation"`
}

// InjectorConfig tunes the injection pipeline. Zero values fall back to
// the defaults.
type InjectorConfig struct {
	MaxMemories       int
	MinRelevanceScore float64
	MaxTokenBudget    int
	DedupThreshold    float64
}

// Injector selects and formats memories for system prompts. It applies
// three filters in order: relevance score, near-duplicate removal, and
// a token budget that keeps the injected block small.
type Injector struct {
	service *Service
	logger  *observability.Logger

	maxMemories       int
	minRelevanceScore float64
	maxTokenBudget    int
	dedupThreshold    float64
}

// NewInjector creates an injector over the memory service. The service
// may be nil; injection then degrades to an empty result.
func NewInjector(service *Service, logger *observability.Logger, cfg InjectorConfig) *Injector {
	inj := &Injector{
		service:           service,
		logger:            logger.WithField("component", "memory_injector"),
		maxMemories:       cfg.MaxMemories,
		minRelevanceScore: cfg.MinRelevanceScore,
		maxTokenBudget:    cfg.MaxTokenBudget,
		dedupThreshold:    cfg.DedupThreshold,
	}
	if inj.maxMemories <= 0 {
		inj.maxMemories = 5
	}
	if inj.minRelevanceScore <= 0 {
		inj.minRelevanceScore = 0.5
	}
	if inj.maxTokenBudget <= 0 {
		inj.maxTokenBudget = 500
	}
	if inj.dedupThreshold <= 0 {
		inj.dedupThreshold = 0.85
	}
	return inj
}

// DetectRecall checks whether a query is asking about past
// conversations, and suggests a cleaned search query for it.
func (inj *Injector) DetectRecall(query string) RecallDetection {
	detection := RecallDetection{}

	for _, rp := range recallPatterns {
		if rp.pattern.MatchString(query) {
			detection.IsRecallQuery = true
			if rp.confidence > detection.Confidence {
				detection.Confidence = rp.confidence
			}
		}
	}

	for _, tp := range timePatterns {
		if tp.pattern.MatchString(query) {
			detection.TimeReference = tp.value
			break
		}
	}

	detection.Topic = extractTopic(query)

	if detection.Topic != "" {
		detection.SearchQuery = detection.Topic
	} else {
		cleaned := regexp.MustCompile(`(?i)do you remember`).ReplaceAllString(query, "")
		cleaned = regexp.MustCompile(`(?i)remind me`).ReplaceAllString(cleaned, "")
		detection.SearchQuery = strings.TrimSpace(cleaned)
	}

	return detection
}

// extractTopic strips recall phrasing and filler words to isolate what
// the user is asking about.
func extractTopic(query string) string {
	topic := query
	for _, p := range recallStripPatterns {
		topic = p.ReplaceAllString(topic, "")
	}
	topic = strings.ReplaceAll(topic, "?", "")
	topic = strings.TrimSpace(topic)

	topic = leadingFillerPattern.ReplaceAllString(topic, "")
	topic = trailingFillerPattern.ReplaceAllString(topic, "")
	topic = strings.TrimSpace(topic)

	if len(topic) <= 2 {
		return ""
	}
	return topic
}

// InjectMemories builds the memory context for a query: user-level
// memories, merged with client-scoped ones when a client is in
// context, then deduplicated, ranked and budgeted. A missing or
// unreachable memory service degrades to an empty injection.
func (inj *Injector) InjectMemories(ctx context.Context, query, agencyID, userID, clientID string) Injection {
	if inj.service == nil {
		return Injection{
			ContextBlock:         "",
			Memories:             []Memory{},
			RelevanceExplanation: "Memory service not available",
		}
	}

	result, err := inj.service.SearchMemories(ctx, SearchRequest{
		Query:    query,
		AgencyID: agencyID,
		UserID:   userID,
		Limit:    inj.maxMemories * 2,
		MinScore: inj.minRelevanceScore,
	})
	if err != nil {
		inj.logger.WithError(err).Warn("memory search failed, injecting nothing")
		return Injection{
			ContextBlock:         "",
			Memories:             []Memory{},
			RelevanceExplanation: "Memory service not available",
		}
	}

	memories := result.Memories

	// Client-scoped memories rank first when present. A failed client
	// search keeps the user-level results.
	if clientID != "" {
		clientResult, err := inj.service.SearchMemories(ctx, SearchRequest{
			Query:    query,
			AgencyID: agencyID,
			ClientID: clientID,
			UserID:   userID,
			Limit:    inj.maxMemories,
			MinScore: inj.minRelevanceScore,
		})
		if err == nil {
			memories = append(clientResult.Memories, memories...)
		} else {
			inj.logger.WithError(err).Debug("client-scoped memory search failed")
		}
	}

	if len(memories) == 0 {
		return Injection{
			ContextBlock:         "",
			Memories:             []Memory{},
			RelevanceExplanation: "No relevant memories found",
		}
	}

	memories = inj.deduplicate(memories)
	memories = inj.rank(memories)
	memories = inj.applyTokenBudget(memories)

	return Injection{
		ContextBlock:         buildContextBlock(memories),
		Memories:             memories,
		RelevanceExplanation: buildRelevanceExplanation(memories),
	}
}

// deduplicate removes near-identical memories by word-level Jaccard
// similarity, keeping the first occurrence.
func (inj *Injector) deduplicate(memories []Memory) []Memory {
	deduplicated := make([]Memory, 0, len(memories))
	for _, memory := range memories {
		duplicate := false
		for _, existing := range deduplicated {
			if jaccardSimilarity(existing.Content, memory.Content) >= inj.dedupThreshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			deduplicated = append(deduplicated, memory)
		}
	}
	return deduplicated
}

// jaccardSimilarity computes word-level |A ∩ B| / |A ∪ B|
func jaccardSimilarity(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)

	intersection := 0
	for word := range wordsA {
		if _, ok := wordsB[word]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// rank orders memories by relevance score plus importance weight,
// highest first. The sort is stable so equal-scored memories keep
// their merge order (client-scoped first).
func (inj *Injector) rank(memories []Memory) []Memory {
	ranked := make([]Memory, len(memories))
	copy(ranked, memories)
	sort.SliceStable(ranked, func(i, j int) bool {
		return injectionScore(ranked[i]) > injectionScore(ranked[j])
	})
	return ranked
}

func injectionScore(m Memory) float64 {
	importance := m.Metadata.Importance
	if importance == "" {
		importance = ImportanceMedium
	}
	return m.Score + importance.Weight()
}

// applyTokenBudget truncates the list once the estimated token budget
// is spent (about 4 characters per token). At least one memory is
// always kept.
func (inj *Injector) applyTokenBudget(memories []Memory) []Memory {
	const charsPerToken = 4
	const perMemoryOverhead = 30

	maxChars := inj.maxTokenBudget * charsPerToken
	totalChars := 0
	budgeted := make([]Memory, 0, len(memories))

	for _, memory := range memories {
		memoryChars := len(memory.Content) + len(memory.Metadata.Topic) + perMemoryOverhead
		if totalChars+memoryChars > maxChars && len(budgeted) > 0 {
			break
		}
		totalChars += memoryChars
		budgeted = append(budgeted, memory)
		if len(budgeted) >= inj.maxMemories {
			break
		}
	}
	return budgeted
}

// buildContextBlock renders memories as the prompt fragment handed to
// the model.
func buildContextBlock(memories []Memory) string {
	if len(memories) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("<user_memory_context>\n")
	b.WriteString("The following is relevant context from previous conversations:\n\n")

	for i, memory := range memories {
		fmt.Fprintf(&b, "[%d] %s: %s\n", i+1, typeLabel(memory.Metadata.Type), memory.Content)
		if memory.Metadata.Topic != "" {
			fmt.Fprintf(&b, "    Topic: %s\n", memory.Metadata.Topic)
		}
	}

	b.WriteString("\nUse this context to provide more personalized and relevant responses.\n")
	b.WriteString("</user_memory_context>")
	return b.String()
}

func typeLabel(t MemoryType) string {
	switch t {
	case TypeConversation:
		return "Previous conversation"
	case TypeDecision:
		return "Decision made"
	case TypePreference:
		return "User preference"
	case TypeProject:
		return "Ongoing project"
	case TypeInsight:
		return "Learned insight"
	case TypeTask:
		return "Task/Action item"
	default:
		return "Memory"
	}
}

func buildRelevanceExplanation(memories []Memory) string {
	seen := make(map[MemoryType]struct{})
	types := make([]string, 0, len(memories))
	total := 0.0
	for _, m := range memories {
		if _, ok := seen[m.Metadata.Type]; !ok {
			seen[m.Metadata.Type] = struct{}{}
			types = append(types, string(m.Metadata.Type))
		}
		total += m.Score
	}
	avg := total / float64(len(memories))
	return fmt.Sprintf("Found %d relevant memories (%s). Average relevance: %.0f%%",
		len(memories), strings.Join(types, ", "), avg*100)
}

// ProcessWithMemory enhances a base system prompt with relevant
// memories. Recall queries search by the extracted topic instead of
// the raw question, and get an extra instruction to reference the
// injected context.
func (inj *Injector) ProcessWithMemory(ctx context.Context, query, agencyID, userID, basePrompt, clientID string) (string, []Memory) {
	recall := inj.DetectRecall(query)

	searchQuery := query
	if recall.IsRecallQuery {
		searchQuery = recall.SearchQuery
	}

	injection := inj.InjectMemories(ctx, searchQuery, agencyID, userID, clientID)

	systemPrompt := basePrompt
	if injection.ContextBlock != "" {
		systemPrompt = basePrompt + "\n\n" + injection.ContextBlock
	}
	if recall.IsRecallQuery && len(injection.Memories) > 0 {
		systemPrompt += "\n\nThe user is asking about a previous conversation. Reference the memory context above to answer their question."
	}

	return systemPrompt, injection.Memories
}

// StorageDecision says whether an exchange is worth remembering, and how
type StorageDecision struct {
	Store      bool
	Type       MemoryType
	Importance Importance
}

// ShouldStoreMemory classifies a user/assistant exchange: decisions and
// preferences are stored at high importance, tasks at medium, and long
// substantive exchanges as low-importance conversation summaries.
func (inj *Injector) ShouldStoreMemory(userMessage, assistantResponse string) StorageDecision {
	lowerUser := strings.ToLower(userMessage)
	lowerResponse := strings.ToLower(assistantResponse)

	if strings.Contains(lowerUser, "decide") ||
		strings.Contains(lowerUser, "let's go with") ||
		strings.Contains(lowerResponse, "you decided") {
		return StorageDecision{Store: true, Type: TypeDecision, Importance: ImportanceHigh}
	}

	if strings.Contains(lowerUser, "i prefer") ||
		strings.Contains(lowerUser, "i like") ||
		strings.Contains(lowerUser, "i want") {
		return StorageDecision{Store: true, Type: TypePreference, Importance: ImportanceHigh}
	}

	if strings.Contains(lowerUser, "remind me") ||
		strings.Contains(lowerUser, "todo") ||
		strings.Contains(lowerUser, "action item") {
		return StorageDecision{Store: true, Type: TypeTask, Importance: ImportanceMedium}
	}

	if len(userMessage) > 100 && len(assistantResponse) > 200 {
		return StorageDecision{Store: true, Type: TypeConversation, Importance: ImportanceLow}
	}

	return StorageDecision{}
}
