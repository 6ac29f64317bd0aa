package httputil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewater/agencyhub/pkg/contextkeys"
	"github.com/tidewater/agencyhub/pkg/observability"
)

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorEnvelope(rec, http.StatusForbidden, "PERMISSION_DENIED", "You do not have permission to access clients")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var envelope ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	assert.Equal(t, "Forbidden", envelope.Error)
	assert.Equal(t, "PERMISSION_DENIED", envelope.Code)
	assert.Equal(t, "You do not have permission to access clients", envelope.Message)
}

func TestWriteJSONHelpers(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.NoError(t, WriteSuccess(rec, map[string]string{"status": "ok"}))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("created", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.NoError(t, WriteCreated(rec, map[string]string{"id": "c-1"}))
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("no content", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteNoContent(rec)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("bad request code", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteBadRequest(rec, "name is required")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var envelope ErrorEnvelope
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
		assert.Equal(t, "BAD_REQUEST", envelope.Code)
	})
}

func TestParseJSONOrError(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"acme"}`))
		rec := httptest.NewRecorder()
		var p payload
		assert.True(t, ParseJSONOrError(rec, r, &p))
		assert.Equal(t, "acme", p.Name)
	})

	t.Run("malformed body writes 400", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{broken`))
		rec := httptest.NewRecorder()
		var p payload
		assert.False(t, ParseJSONOrError(rec, r, &p))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestParseQueryParams(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?page=3&search=acme", nil)

	page, err := ParseQueryInt(r, "page", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, page)

	missing, err := ParseQueryInt(r, "pageSize", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, missing)

	_, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/?page=abc", nil), "page", 1)
	assert.Error(t, err)

	assert.Equal(t, "acme", ParseQueryString(r, "search", ""))
	assert.Equal(t, "fallback", ParseQueryString(r, "missing", "fallback"))
}

func TestRequireNonEmpty(t *testing.T) {
	rec := httptest.NewRecorder()
	assert.True(t, RequireNonEmpty(rec, "value", "name"))

	rec = httptest.NewRecorder()
	assert.False(t, RequireNonEmpty(rec, "", "name"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "name is required")
}

func TestParsePathString(t *testing.T) {
	router := mux.NewRouter()
	var got string
	var ok bool
	router.HandleFunc("/clients/{clientID}", func(w http.ResponseWriter, r *http.Request) {
		got, ok = ParsePathStringOrError(w, r, "clientID")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clients/client-1", nil))
	assert.True(t, ok)
	assert.Equal(t, "client-1", got)

	_, err := ParsePathString(httptest.NewRequest(http.MethodGet, "/", nil), "clientID")
	assert.Error(t, err)
}

func TestRequestIDMiddleware(t *testing.T) {
	var requestID string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = contextkeys.GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, requestID)
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}
