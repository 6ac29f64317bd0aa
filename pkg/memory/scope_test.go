package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeKeyShapes(t *testing.T) {
	t.Run("agency scope", func(t *testing.T) {
		key, err := AgencyScope("agency-1")
		require.NoError(t, err)
		assert.Equal(t, "agency-1::_::_", key.String())
	})

	t.Run("client scope", func(t *testing.T) {
		key, err := ClientScope("agency-1", "client-1")
		require.NoError(t, err)
		assert.Equal(t, "agency-1::client-1::_", key.String())
	})

	t.Run("user scope with client", func(t *testing.T) {
		key, err := UserScope("agency-1", "user-1", "client-1")
		require.NoError(t, err)
		assert.Equal(t, "agency-1::client-1::user-1", key.String())
	})

	t.Run("user scope without client keeps the wildcard", func(t *testing.T) {
		key, err := UserScope("agency-1", "user-1", "")
		require.NoError(t, err)
		assert.Equal(t, "agency-1::_::user-1", key.String())
	})
}

func TestScopeKeyValidation(t *testing.T) {
	t.Run("empty agency rejected", func(t *testing.T) {
		_, err := AgencyScope("")
		assert.Error(t, err)
	})

	t.Run("wildcard token rejected as id", func(t *testing.T) {
		_, err := AgencyScope("_")
		assert.Error(t, err)
	})

	t.Run("separator inside id rejected", func(t *testing.T) {
		_, err := ClientScope("agency-1", "a::b")
		assert.Error(t, err)
	})

	t.Run("empty user rejected", func(t *testing.T) {
		_, err := UserScope("agency-1", "", "client-1")
		assert.Error(t, err)
	})
}

func TestSegment(t *testing.T) {
	wild := Wildcard()
	assert.True(t, wild.IsWildcard())
	assert.Equal(t, "_", wild.String())
	assert.Empty(t, wild.ID())

	seg, err := Specific("client-1")
	require.NoError(t, err)
	assert.False(t, seg.IsWildcard())
	assert.Equal(t, "client-1", seg.ID())
	assert.Equal(t, "client-1", seg.String())
}

func TestParseKey(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		for _, raw := range []string{
			"agency-1::_::_",
			"agency-1::client-1::_",
			"agency-1::client-1::user-1",
			"agency-1::_::user-1",
		} {
			key, err := ParseKey(raw)
			require.NoError(t, err, raw)
			assert.Equal(t, raw, key.String())
		}
	})

	t.Run("wrong segment count rejected", func(t *testing.T) {
		_, err := ParseKey("agency-1::client-1")
		assert.Error(t, err)
		_, err = ParseKey("a::b::c::d")
		assert.Error(t, err)
	})

	t.Run("wildcard agency rejected", func(t *testing.T) {
		_, err := ParseKey("_::client-1::user-1")
		assert.Error(t, err)
	})

	t.Run("empty segment rejected", func(t *testing.T) {
		_, err := ParseKey("agency-1::::user-1")
		assert.Error(t, err)
	})
}
