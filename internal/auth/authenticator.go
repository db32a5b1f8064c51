// Package auth verifies the bearer tokens guarding the API: OIDC
// access tokens checked against the provider's published keys, with an
// HMAC shared-secret fallback for tokens minted before the OIDC
// migration.
package auth

import (
	"errors"
	"strings"
)

// ErrNotConfigured is returned when no verification method is
// available: neither an OIDC verifier nor a shared secret.
var ErrNotConfigured = errors.New("authentication not configured")

// Identity is the authenticated caller as seen by handlers and
// middleware.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// Authenticator runs the token verification chain: OIDC JWKS first
// when configured, the legacy HMAC secret second. The API middleware
// and the ForwardAuth endpoint share one chain, so direct and gateway
// deployments accept exactly the same tokens.
type Authenticator struct {
	verifier TokenVerifier
	secret   string
}

func NewAuthenticator(verifier TokenVerifier, secret string) *Authenticator {
	return &Authenticator{
		verifier: verifier,
		secret:   secret,
	}
}

// Enabled reports whether at least one verification method is
// configured.
func (a *Authenticator) Enabled() bool {
	return a.verifier != nil || a.secret != ""
}

// Verify resolves a bearer token to the caller's identity.
func (a *Authenticator) Verify(tokenString string) (*Identity, error) {
	if a.verifier != nil {
		claims, err := a.verifier.Validate(tokenString)
		if err == nil {
			return &Identity{
				UserID: claims.UserID,
				Email:  claims.Email,
				Name:   claims.Name,
			}, nil
		}
		if a.secret == "" {
			return nil, err
		}
		// Fall through: tokens minted before the OIDC migration still
		// verify against the shared secret.
	}

	if a.secret == "" {
		return nil, ErrNotConfigured
	}

	claims, err := ValidateLegacyToken(tokenString, a.secret)
	if err != nil {
		return nil, err
	}
	return &Identity{
		UserID: claims.UserID,
		Email:  claims.Email,
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}
