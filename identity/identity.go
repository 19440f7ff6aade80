// Package identity turns identity-provider ID tokens into long-lived server
// session cookies and back into a request Identity.
package identity

import (
	"context"
	"errors"
)

var (
	ErrNotConfigured = errors.New("identity: service account not configured")
	ErrInvalidToken  = errors.New("identity: invalid token")
)

// Identity is the authenticated user behind a request.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// Bridge exchanges verified ID tokens for session tokens. A nil Bridge, or one
// missing either half, reports ErrNotConfigured.
type Bridge struct {
	verifier TokenVerifier
	sessions *SessionManager
}

func NewBridge(verifier TokenVerifier, sessions *SessionManager) *Bridge {
	return &Bridge{verifier: verifier, sessions: sessions}
}

func (b *Bridge) configured() bool {
	return b != nil && b.verifier != nil && b.sessions != nil
}

// Exchange verifies the ID token and mints a fresh session token. Calling it
// repeatedly for the same user simply yields a newer token.
func (b *Bridge) Exchange(ctx context.Context, idToken string) (string, Identity, error) {
	if !b.configured() {
		return "", Identity{}, ErrNotConfigured
	}
	id, err := b.verifier.Verify(ctx, idToken)
	if err != nil {
		return "", Identity{}, err
	}
	token, err := b.sessions.Mint(id)
	if err != nil {
		return "", Identity{}, err
	}
	return token, id, nil
}

// Resolve validates a session token.
func (b *Bridge) Resolve(sessionToken string) (Identity, error) {
	if !b.configured() {
		return Identity{}, ErrNotConfigured
	}
	return b.sessions.Verify(sessionToken)
}

func (b *Bridge) SessionTTL() int {
	if !b.configured() {
		return 0
	}
	return int(b.sessions.ttl.Seconds())
}
