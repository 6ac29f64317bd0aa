package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorEnvelope is the standard error response body.
// Every error the API emits uses this shape: a short error label, a
// stable machine-readable code, and a human-readable message.
type ErrorEnvelope struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorEnvelope writes the standard {error, code, message} body.
// The message must be a fixed, reviewed string - never raw error text
// from a collaborator.
func WriteErrorEnvelope(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorEnvelope{
		Error:   http.StatusText(status),
		Code:    code,
		Message: message,
	})
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorEnvelope(w, http.StatusBadRequest, "BAD_REQUEST", message)
}

// WriteNotFound writes a not found error (404)
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteErrorEnvelope(w, http.StatusNotFound, "NOT_FOUND", message)
}

// WriteInternalError writes an internal server error (500) with a fixed
// message; the underlying error is expected to be logged by the caller.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteErrorEnvelope(w, http.StatusInternalServerError, "INTERNAL_ERROR", message)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
