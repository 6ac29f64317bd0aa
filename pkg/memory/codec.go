package memory

import (
	"encoding/json"
	"strings"
)

// envelope is the stored wire shape: content plus structured metadata
type envelope struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// EncodeContent wraps content and metadata into the stored envelope
func EncodeContent(content string, metadata Metadata) (string, error) {
	data, err := json.Marshal(envelope{Content: content, Metadata: metadata})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeContent unwraps a stored value. Records written before the
// envelope format, or whose envelope fails to parse, come back as raw
// content with empty metadata.
func DecodeContent(raw string) (string, Metadata) {
	if !strings.HasPrefix(raw, "{") || !strings.Contains(raw, `"content":`) {
		return raw, Metadata{}
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return raw, Metadata{}
	}
	if env.Content == "" {
		return raw, env.Metadata
	}
	return env.Content, env.Metadata
}
