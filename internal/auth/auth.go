// Package auth verifies OIDC bearer tokens on incoming requests: OIDC
// discovery against the configured issuer, JWKS-backed signature
// verification, and audience checking, via coreos/go-oidc.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

// ErrMissingToken is returned when no bearer token is present.
var ErrMissingToken = errors.New("auth: missing bearer token")

// ErrInvalidToken is returned when the token fails verification.
var ErrInvalidToken = errors.New("auth: invalid token")

type userIDKey struct{}

// Verifier authenticates bearer tokens against a discovered OIDC
// issuer and a required audience.
type Verifier struct {
	idTokenVerifier *oidc.IDTokenVerifier
}

// NewVerifier performs OIDC discovery against issuerURL and returns a
// Verifier scoped to audience. Discovery runs once; the process must be
// restarted to pick up issuer key rotation beyond what the verifier's
// own JWKS client refreshes on its own.
func NewVerifier(ctx context.Context, issuerURL, audience string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("auth: discovery: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: audience})
	return &Verifier{idTokenVerifier: verifier}, nil
}

// claims is the subset of standard claims this service reads.
type claims struct {
	Subject string `json:"sub"`
}

// Authenticate extracts and verifies the bearer token from r, returning
// the authenticated user ID (the "sub" claim) on success.
func (v *Verifier) Authenticate(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrMissingToken
	}
	rawToken := strings.TrimPrefix(header, prefix)
	if rawToken == "" {
		return "", ErrMissingToken
	}

	idToken, err := v.idTokenVerifier.Verify(r.Context(), rawToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var c claims
	if err := idToken.Claims(&c); err != nil || c.Subject == "" {
		return "", fmt.Errorf("%w: missing subject claim", ErrInvalidToken)
	}

	return c.Subject, nil
}

// WithUserID returns a context carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the authenticated user ID stored by
// Middleware, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok
}

// Middleware authenticates every request. On failure it hands the
// response to onUnauthorized and does not call the next handler;
// otherwise it injects the user ID into the request context.
func (v *Verifier) Middleware(onUnauthorized func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := v.Authenticate(r)
			if err != nil {
				onUnauthorized(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
