package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCAuthenticator verifies bearer ID tokens against an OIDC provider
// and resolves the tenant agency from a configurable custom claim.
type OIDCAuthenticator struct {
	verifier    *oidc.IDTokenVerifier
	agencyClaim string
}

// OIDCConfig configures the OIDC authenticator
type OIDCConfig struct {
	IssuerURL string
	ClientID  string
	// AgencyClaim is the claim carrying the tenant agency ID.
	// Defaults to "agency_id".
	AgencyClaim string
}

// NewOIDCAuthenticator discovers the provider and builds a token verifier
func NewOIDCAuthenticator(ctx context.Context, cfg OIDCConfig) (*OIDCAuthenticator, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider %s: %w", cfg.IssuerURL, err)
	}

	agencyClaim := cfg.AgencyClaim
	if agencyClaim == "" {
		agencyClaim = "agency_id"
	}

	return &OIDCAuthenticator{
		verifier:    provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		agencyClaim: agencyClaim,
	}, nil
}

// Authenticate verifies the request's bearer token and extracts the
// identity. A token without the agency claim authenticates the user but
// resolves no tenant; the middleware rejects that as unauthenticated.
func (a *OIDCAuthenticator) Authenticate(r *http.Request) (*Identity, error) {
	rawToken := BearerToken(r)
	if rawToken == "" {
		return nil, ErrNoSession
	}

	token, err := a.verifier.Verify(r.Context(), rawToken)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	var claims map[string]interface{}
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse token claims: %w", err)
	}

	identity := &Identity{UserID: token.Subject}
	if email, ok := claims["email"].(string); ok {
		identity.Email = email
	}
	if agencyID, ok := claims[a.agencyClaim].(string); ok {
		identity.AgencyID = agencyID
	}

	return identity, nil
}

// Verifier exposes the underlying verifier for callers that validate
// tokens outside the HTTP request path.
func (a *OIDCAuthenticator) Verifier() *oidc.IDTokenVerifier {
	return a.verifier
}
