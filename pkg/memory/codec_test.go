package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeContent(t *testing.T) {
	meta := Metadata{
		AgencyID:   "agency-1",
		ClientID:   "client-1",
		UserID:     "user-1",
		Type:       TypeDecision,
		Importance: ImportanceHigh,
	}

	encoded, err := EncodeContent("use the new pipeline", meta)
	require.NoError(t, err)

	content, decoded := DecodeContent(encoded)
	assert.Equal(t, "use the new pipeline", content)
	assert.Equal(t, meta, decoded)
}

func TestDecodeContentLegacyFallback(t *testing.T) {
	t.Run("plain text passes through", func(t *testing.T) {
		content, meta := DecodeContent("a raw note stored before envelopes existed")
		assert.Equal(t, "a raw note stored before envelopes existed", content)
		assert.Equal(t, Metadata{}, meta)
	})

	t.Run("json without a content field passes through", func(t *testing.T) {
		raw := `{"note": "not an envelope"}`
		content, meta := DecodeContent(raw)
		assert.Equal(t, raw, content)
		assert.Equal(t, Metadata{}, meta)
	})

	t.Run("malformed json passes through", func(t *testing.T) {
		raw := `{"content": "broken`
		content, _ := DecodeContent(raw)
		assert.Equal(t, raw, content)
	})
}
