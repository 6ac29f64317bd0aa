package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInjector(service *Service, cfg InjectorConfig) *Injector {
	return NewInjector(service, testLogger(), cfg)
}

func TestDetectRecall(t *testing.T) {
	inj := newTestInjector(nil, InjectorConfig{})

	t.Run("direct recall phrasing", func(t *testing.T) {
		detection := inj.DetectRecall("do you remember the onboarding plan?")
		assert.True(t, detection.IsRecallQuery)
		assert.InDelta(t, 0.95, detection.Confidence, 0.001)
		assert.Equal(t, "onboarding plan", detection.Topic)
		assert.Equal(t, "onboarding plan", detection.SearchQuery)
	})

	t.Run("weaker phrasing gets lower confidence", func(t *testing.T) {
		detection := inj.DetectRecall("previously the budget was different")
		assert.True(t, detection.IsRecallQuery)
		assert.InDelta(t, 0.7, detection.Confidence, 0.001)
	})

	t.Run("multiple patterns keep the highest confidence", func(t *testing.T) {
		detection := inj.DetectRecall("do you remember what we discussed previously?")
		assert.True(t, detection.IsRecallQuery)
		assert.InDelta(t, 0.95, detection.Confidence, 0.001)
	})

	t.Run("time reference extracted", func(t *testing.T) {
		detection := inj.DetectRecall("remind me about the invoice from last week")
		assert.True(t, detection.IsRecallQuery)
		assert.Equal(t, "last week", detection.TimeReference)
	})

	t.Run("plain question is not recall", func(t *testing.T) {
		detection := inj.DetectRecall("how do I export the client report?")
		assert.False(t, detection.IsRecallQuery)
		assert.Zero(t, detection.Confidence)
	})
}

func TestInjectMemoriesDegraded(t *testing.T) {
	ctx := context.Background()

	t.Run("nil service", func(t *testing.T) {
		inj := newTestInjector(nil, InjectorConfig{})
		injection := inj.InjectMemories(ctx, "anything", "agency-1", "user-1", "")
		assert.Empty(t, injection.ContextBlock)
		assert.Empty(t, injection.Memories)
		assert.Equal(t, "Memory service not available", injection.RelevanceExplanation)
	})

	t.Run("search failure", func(t *testing.T) {
		gateway := newFakeGateway()
		gateway.searchErr = errors.New("gateway down")
		inj := newTestInjector(newTestService(gateway), InjectorConfig{})

		injection := inj.InjectMemories(ctx, "anything", "agency-1", "user-1", "")
		assert.Empty(t, injection.ContextBlock)
		assert.Empty(t, injection.Memories)
		assert.Equal(t, "Memory service not available", injection.RelevanceExplanation)
	})

	t.Run("no matches", func(t *testing.T) {
		inj := newTestInjector(newTestService(newFakeGateway()), InjectorConfig{})
		injection := inj.InjectMemories(ctx, "anything", "agency-1", "user-1", "")
		assert.Empty(t, injection.ContextBlock)
		assert.Equal(t, "No relevant memories found", injection.RelevanceExplanation)
	})
}

func TestInjectMemories(t *testing.T) {
	ctx := context.Background()
	userScope, err := UserScope("agency-1", "user-1", "")
	require.NoError(t, err)

	t.Run("renders the context block", func(t *testing.T) {
		gateway := newFakeGateway()
		gateway.seedEncoded(t, userScope, "shipped the spring campaign", Metadata{Type: TypeDecision, Topic: "campaign"}, 0.9)
		inj := newTestInjector(newTestService(gateway), InjectorConfig{})

		injection := inj.InjectMemories(ctx, "campaign", "agency-1", "user-1", "")
		require.Len(t, injection.Memories, 1)
		assert.True(t, strings.HasPrefix(injection.ContextBlock, "<user_memory_context>"))
		assert.True(t, strings.HasSuffix(injection.ContextBlock, "</user_memory_context>"))
		assert.Contains(t, injection.ContextBlock, "[1] Decision made: shipped the spring campaign")
		assert.Contains(t, injection.ContextBlock, "Topic: campaign")
		assert.Contains(t, injection.RelevanceExplanation, "Found 1 relevant memories")
		assert.Contains(t, injection.RelevanceExplanation, "90%")
	})

	t.Run("client-scoped memories rank before user-level ones", func(t *testing.T) {
		gateway := newFakeGateway()
		clientScope, err := UserScope("agency-1", "user-1", "client-1")
		require.NoError(t, err)
		gateway.seedEncoded(t, userScope, "general workflow note", Metadata{Type: TypeInsight}, 0.8)
		gateway.seedEncoded(t, clientScope, "client-1 contract terms", Metadata{Type: TypeInsight}, 0.8)
		inj := newTestInjector(newTestService(gateway), InjectorConfig{})

		injection := inj.InjectMemories(ctx, "contracts", "agency-1", "user-1", "client-1")
		require.Len(t, injection.Memories, 2)
		assert.Equal(t, "client-1 contract terms", injection.Memories[0].Content)
	})

	t.Run("near-duplicates are removed", func(t *testing.T) {
		gateway := newFakeGateway()
		gateway.seedEncoded(t, userScope, "the client prefers weekly status calls", Metadata{}, 0.9)
		gateway.seedEncoded(t, userScope, "the client prefers weekly status calls", Metadata{}, 0.85)
		gateway.seedEncoded(t, userScope, "invoices go out on the first of the month", Metadata{}, 0.8)
		inj := newTestInjector(newTestService(gateway), InjectorConfig{})

		injection := inj.InjectMemories(ctx, "preferences", "agency-1", "user-1", "")
		assert.Len(t, injection.Memories, 2)
	})

	t.Run("importance boosts ranking", func(t *testing.T) {
		gateway := newFakeGateway()
		gateway.seedEncoded(t, userScope, "low importance but higher score", Metadata{Importance: ImportanceLow}, 0.75)
		gateway.seedEncoded(t, userScope, "high importance decision", Metadata{Importance: ImportanceHigh}, 0.7)
		inj := newTestInjector(newTestService(gateway), InjectorConfig{})

		injection := inj.InjectMemories(ctx, "anything", "agency-1", "user-1", "")
		require.Len(t, injection.Memories, 2)
		assert.Equal(t, "high importance decision", injection.Memories[0].Content)
	})

	t.Run("token budget truncates but keeps at least one", func(t *testing.T) {
		gateway := newFakeGateway()
		long := strings.Repeat("wordy content ", 40)
		gateway.seedEncoded(t, userScope, long+"one", Metadata{}, 0.9)
		gateway.seedEncoded(t, userScope, long+"two", Metadata{}, 0.8)
		inj := newTestInjector(newTestService(gateway), InjectorConfig{MaxTokenBudget: 100})

		injection := inj.InjectMemories(ctx, "anything", "agency-1", "user-1", "")
		assert.Len(t, injection.Memories, 1)
	})

	t.Run("low scores are filtered out", func(t *testing.T) {
		gateway := newFakeGateway()
		gateway.seedEncoded(t, userScope, "barely related", Metadata{}, 0.2)
		inj := newTestInjector(newTestService(gateway), InjectorConfig{})

		injection := inj.InjectMemories(ctx, "anything", "agency-1", "user-1", "")
		assert.Empty(t, injection.Memories)
		assert.Equal(t, "No relevant memories found", injection.RelevanceExplanation)
	})
}

func TestProcessWithMemory(t *testing.T) {
	ctx := context.Background()
	userScope, err := UserScope("agency-1", "user-1", "")
	require.NoError(t, err)

	t.Run("recall query appends the recall instruction", func(t *testing.T) {
		gateway := newFakeGateway()
		gateway.seedEncoded(t, userScope, "we chose the blue branding", Metadata{Type: TypeDecision}, 0.9)
		inj := newTestInjector(newTestService(gateway), InjectorConfig{})

		prompt, memories := inj.ProcessWithMemory(ctx, "do you remember the branding?", "agency-1", "user-1", "You are a helpful assistant.", "")
		require.Len(t, memories, 1)
		assert.True(t, strings.HasPrefix(prompt, "You are a helpful assistant."))
		assert.Contains(t, prompt, "<user_memory_context>")
		assert.Contains(t, prompt, "asking about a previous conversation")
	})

	t.Run("no memories leaves the base prompt untouched", func(t *testing.T) {
		inj := newTestInjector(newTestService(newFakeGateway()), InjectorConfig{})
		prompt, memories := inj.ProcessWithMemory(ctx, "hello", "agency-1", "user-1", "Base prompt.", "")
		assert.Equal(t, "Base prompt.", prompt)
		assert.Empty(t, memories)
	})
}

func TestJaccardSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, jaccardSimilarity("alpha beta", "beta alpha"))
	assert.Equal(t, 0.0, jaccardSimilarity("alpha", "beta"))
	assert.Equal(t, 0.0, jaccardSimilarity("", ""))
	assert.InDelta(t, 1.0/3.0, jaccardSimilarity("a b", "b c"), 0.001)
}

func TestShouldStoreMemory(t *testing.T) {
	inj := newTestInjector(nil, InjectorConfig{})

	t.Run("decision", func(t *testing.T) {
		decision := inj.ShouldStoreMemory("let's go with the quarterly plan", "sounds good")
		assert.True(t, decision.Store)
		assert.Equal(t, TypeDecision, decision.Type)
		assert.Equal(t, ImportanceHigh, decision.Importance)
	})

	t.Run("preference", func(t *testing.T) {
		decision := inj.ShouldStoreMemory("i prefer shorter updates", "noted")
		assert.True(t, decision.Store)
		assert.Equal(t, TypePreference, decision.Type)
	})

	t.Run("task", func(t *testing.T) {
		decision := inj.ShouldStoreMemory("add a todo to follow up with the client", "will do")
		assert.True(t, decision.Store)
		assert.Equal(t, TypeTask, decision.Type)
		assert.Equal(t, ImportanceMedium, decision.Importance)
	})

	t.Run("long substantive exchange", func(t *testing.T) {
		decision := inj.ShouldStoreMemory(strings.Repeat("u", 101), strings.Repeat("a", 201))
		assert.True(t, decision.Store)
		assert.Equal(t, TypeConversation, decision.Type)
		assert.Equal(t, ImportanceLow, decision.Importance)
	})

	t.Run("short exchange is not stored", func(t *testing.T) {
		decision := inj.ShouldStoreMemory("thanks", "you're welcome")
		assert.False(t, decision.Store)
	})
}
