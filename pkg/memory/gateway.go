package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SearchHit is a raw search result from the memory backend
type SearchHit struct {
	ID      string
	Content string
	Score   float64
}

// Record is a raw stored memory as the backend returns it
type Record struct {
	ID        string
	Content   string
	UserID    string
	CreatedAt *time.Time
	UpdatedAt *time.Time
}

// Gateway is the memory backend boundary: the nine operations the
// remote gateway exposes. Content passed through a Gateway is the
// encoded envelope, never decoded memory.
type Gateway interface {
	AddMemory(ctx context.Context, content string, scope Key) (string, error)
	SearchMemories(ctx context.Context, query string, scope Key, topK int) ([]SearchHit, error)
	GetMemory(ctx context.Context, memoryID string) (*Record, error)
	ListMemories(ctx context.Context, scope Key, page, pageSize int) ([]Record, int, error)
	UpdateMemory(ctx context.Context, memoryID, content string) (*Record, error)
	DeleteMemory(ctx context.Context, memoryID string) error
	DeleteAllMemories(ctx context.Context, scope Key) error
	MemoryHistory(ctx context.Context, memoryID string) ([]HistoryEntry, error)
	Entities(ctx context.Context) ([]Entity, error)
}

// GatewayConfig configures the HTTP gateway client
type GatewayConfig struct {
	// BaseURL is the gateway root; the RPC handler lives at /mcp
	BaseURL string
	// APIKey is sent as a bearer token when non-empty
	APIKey string
	// Timeout bounds each RPC call; defaults to 10s
	Timeout time.Duration
}

// HTTPGateway calls the remote memory gateway over JSON-RPC 2.0. Each
// operation is a tools/call invocation of one named tool.
type HTTPGateway struct {
	rpcURL string
	apiKey string
	client *http.Client
}

// NewHTTPGateway creates a gateway client
func NewHTTPGateway(cfg GatewayConfig) *HTTPGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		rpcURL: strings.TrimRight(cfg.BaseURL, "/") + "/mcp",
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      string    `json:"id"`
}

type rpcParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type rpcResponse struct {
	Result *rpcResult `json:"result"`
	Error  *rpcError  `json:"error"`
}

type rpcResult struct {
	Content []rpcContent `json:"content"`
}

type rpcContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// callTool invokes a named tool and returns the decoded JSON payload
// from the first text content block.
func (g *HTTPGateway) callTool(ctx context.Context, tool string, args map[string]interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "tools/call",
		Params:  rpcParams{Name: tool, Arguments: args},
		ID:      uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway call %s failed: %w", tool, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway call %s failed: status %d", tool, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode rpc response for %s: %w", tool, err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("gateway call %s failed: %s (code %d)", tool, rpcResp.Error.Message, rpcResp.Error.Code)
	}
	if rpcResp.Result == nil || len(rpcResp.Result.Content) == 0 || rpcResp.Result.Content[0].Text == "" {
		return json.RawMessage("{}"), nil
	}
	return json.RawMessage(rpcResp.Result.Content[0].Text), nil
}

// AddMemory stores encoded content under the scope
func (g *HTTPGateway) AddMemory(ctx context.Context, content string, scope Key) (string, error) {
	payload, err := g.callTool(ctx, "mem0_add", map[string]interface{}{
		"content": content,
		"userId":  scope.String(),
	})
	if err != nil {
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &result); err != nil || result.ID == "" {
		// Backend omits ids on some write paths; synthesize one so
		// callers always get a handle.
		return uuid.NewString(), nil
	}
	return result.ID, nil
}

// SearchMemories runs a semantic search within the scope
func (g *HTTPGateway) SearchMemories(ctx context.Context, query string, scope Key, topK int) ([]SearchHit, error) {
	args := map[string]interface{}{
		"query":  query,
		"userId": scope.String(),
	}
	if topK > 0 {
		args["topK"] = topK
	}

	payload, err := g.callTool(ctx, "mem0_search", args)
	if err != nil {
		return nil, err
	}

	type rawHit struct {
		ID       string  `json:"id"`
		MemoryID string  `json:"memory_id"`
		Memory   string  `json:"memory"`
		Content  string  `json:"content"`
		Score    float64 `json:"score"`
	}
	raw := decodeResults[rawHit](payload)

	hits := make([]SearchHit, 0, len(raw))
	for _, r := range raw {
		id := r.ID
		if id == "" {
			id = r.MemoryID
		}
		if id == "" {
			id = uuid.NewString()
		}
		content := r.Memory
		if content == "" {
			content = r.Content
		}
		hits = append(hits, SearchHit{ID: id, Content: content, Score: r.Score})
	}
	return hits, nil
}

// GetMemory loads a single memory by id
func (g *HTTPGateway) GetMemory(ctx context.Context, memoryID string) (*Record, error) {
	payload, err := g.callTool(ctx, "mem0_get", map[string]interface{}{"memoryId": memoryID})
	if err != nil {
		return nil, err
	}

	var raw rawRecord
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode memory %s: %w", memoryID, err)
	}
	return raw.toRecord(), nil
}

// ListMemories pages through memories in the scope
func (g *HTTPGateway) ListMemories(ctx context.Context, scope Key, page, pageSize int) ([]Record, int, error) {
	payload, err := g.callTool(ctx, "mem0_list", map[string]interface{}{
		"userId":   scope.String(),
		"page":     page,
		"pageSize": pageSize,
	})
	if err != nil {
		return nil, 0, err
	}

	raw := decodeResults[rawRecord](payload)
	records := make([]Record, 0, len(raw))
	for _, r := range raw {
		records = append(records, *r.toRecord())
	}

	total := len(records)
	var counted struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(payload, &counted); err == nil && counted.Count > 0 {
		total = counted.Count
	}
	return records, total, nil
}

// UpdateMemory replaces a memory's stored content
func (g *HTTPGateway) UpdateMemory(ctx context.Context, memoryID, content string) (*Record, error) {
	payload, err := g.callTool(ctx, "mem0_update", map[string]interface{}{
		"memoryId": memoryID,
		"content":  content,
	})
	if err != nil {
		return nil, err
	}

	var raw rawRecord
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode updated memory %s: %w", memoryID, err)
	}
	if raw.ID == "" {
		raw.ID = memoryID
	}
	return raw.toRecord(), nil
}

// DeleteMemory removes a single memory
func (g *HTTPGateway) DeleteMemory(ctx context.Context, memoryID string) error {
	payload, err := g.callTool(ctx, "mem0_delete", map[string]interface{}{"memoryId": memoryID})
	if err != nil {
		return err
	}

	var result struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(payload, &result); err == nil && result.Success != nil && !*result.Success {
		return fmt.Errorf("gateway refused to delete memory %s", memoryID)
	}
	return nil
}

// DeleteAllMemories removes every memory in the scope
func (g *HTTPGateway) DeleteAllMemories(ctx context.Context, scope Key) error {
	payload, err := g.callTool(ctx, "mem0_delete_all", map[string]interface{}{"userId": scope.String()})
	if err != nil {
		return err
	}

	var result struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(payload, &result); err == nil && result.Success != nil && !*result.Success {
		return fmt.Errorf("gateway refused to clear scope %s", scope)
	}
	return nil
}

// MemoryHistory returns the change history of a memory
func (g *HTTPGateway) MemoryHistory(ctx context.Context, memoryID string) ([]HistoryEntry, error) {
	payload, err := g.callTool(ctx, "mem0_history", map[string]interface{}{"memoryId": memoryID})
	if err != nil {
		return nil, err
	}

	type rawEntry struct {
		ID        string `json:"id"`
		MemoryID  string `json:"memory_id"`
		OldMemory string `json:"old_memory"`
		NewMemory string `json:"new_memory"`
		Event     string `json:"event"`
		CreatedAt string `json:"created_at"`
	}
	raw := decodeResults[rawEntry](payload)

	entries := make([]HistoryEntry, 0, len(raw))
	for _, r := range raw {
		entries = append(entries, HistoryEntry{
			ID:         r.ID,
			MemoryID:   r.MemoryID,
			OldContent: r.OldMemory,
			NewContent: r.NewMemory,
			Event:      r.Event,
			Timestamp:  parseTimestamp(r.CreatedAt),
		})
	}
	return entries, nil
}

// Entities lists the entities known to the memory backend
func (g *HTTPGateway) Entities(ctx context.Context) ([]Entity, error) {
	payload, err := g.callTool(ctx, "mem0_entities", map[string]interface{}{})
	if err != nil {
		return nil, err
	}

	type rawEntity struct {
		Type  string `json:"type"`
		ID    string `json:"id"`
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	raw := decodeResults[rawEntity](payload)

	entities := make([]Entity, 0, len(raw))
	for _, r := range raw {
		entities = append(entities, Entity{Type: r.Type, ID: r.ID, Name: r.Name, MemoryCount: r.Count})
	}
	return entities, nil
}

// rawRecord is the backend wire shape for a stored memory
type rawRecord struct {
	ID        string `json:"id"`
	Memory    string `json:"memory"`
	UserID    string `json:"user_id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func (r rawRecord) toRecord() *Record {
	rec := &Record{ID: r.ID, Content: r.Memory, UserID: r.UserID}
	if t := parseTimestamp(r.CreatedAt); !t.IsZero() {
		rec.CreatedAt = &t
	}
	if t := parseTimestamp(r.UpdatedAt); !t.IsZero() {
		rec.UpdatedAt = &t
	}
	return rec
}

// decodeResults handles the backend's two list shapes: a bare JSON
// array, or an object wrapping one under "results". Anything else
// decodes to an empty slice.
func decodeResults[T any](payload json.RawMessage) []T {
	var direct []T
	if err := json.Unmarshal(payload, &direct); err == nil {
		return direct
	}

	var wrapped struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(payload, &wrapped); err == nil {
		return wrapped.Results
	}
	return nil
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
