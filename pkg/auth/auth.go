package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Identity is the authenticated session resolved by an Authenticator:
// who the caller is and which agency (tenant) the session belongs to.
// It carries no role or permission data; that is loaded per request by
// the permission middleware.
type Identity struct {
	UserID   string
	Email    string
	AgencyID string
}

// ErrNoSession indicates the request carries no valid authenticated session
var ErrNoSession = errors.New("no authenticated session")

// Authenticator resolves the identity behind an HTTP request. The
// middleware treats any returned error, or an identity without a
// resolved agency, as "not authenticated".
type Authenticator interface {
	Authenticate(r *http.Request) (*Identity, error)
}

// BearerToken extracts a bearer token from the Authorization header.
// Returns an empty string when the header is absent or malformed.
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// StaticAuthenticator maps fixed bearer tokens to identities. Used in
// tests and local development where no identity provider is running.
type StaticAuthenticator struct {
	tokens map[string]Identity
}

// NewStaticAuthenticator creates an authenticator with a fixed token table
func NewStaticAuthenticator(tokens map[string]Identity) *StaticAuthenticator {
	return &StaticAuthenticator{tokens: tokens}
}

// ParseStaticTokens parses the development token table format:
// "token=userID:email:agencyID" entries separated by commas. An empty
// input yields an empty table.
func ParseStaticTokens(raw string) (map[string]Identity, error) {
	tokens := make(map[string]Identity)
	if strings.TrimSpace(raw) == "" {
		return tokens, nil
	}

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		token, spec, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid static token entry %q", entry)
		}
		parts := strings.Split(spec, ":")
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			return nil, fmt.Errorf("invalid static token identity %q, want userID:email:agencyID", spec)
		}
		tokens[token] = Identity{UserID: parts[0], Email: parts[1], AgencyID: parts[2]}
	}
	return tokens, nil
}

// Authenticate looks the bearer token up in the static table
func (a *StaticAuthenticator) Authenticate(r *http.Request) (*Identity, error) {
	token := BearerToken(r)
	if token == "" {
		return nil, ErrNoSession
	}
	identity, ok := a.tokens[token]
	if !ok {
		return nil, ErrNoSession
	}
	return &identity, nil
}
