package identity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

// TokenVerifier checks an identity-provider ID token.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (Identity, error)
}

// GoogleVerifier validates Google-signed ID tokens against Google's JWKS.
type GoogleVerifier struct {
	validator *idtoken.Validator
	audience  string
}

func NewGoogleVerifier(ctx context.Context, audience string) (*GoogleVerifier, error) {
	v, err := idtoken.NewValidator(ctx, option.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}))
	if err != nil {
		return nil, fmt.Errorf("create id token validator: %w", err)
	}
	return &GoogleVerifier{validator: v, audience: audience}, nil
}

func (g *GoogleVerifier) Verify(ctx context.Context, idToken string) (Identity, error) {
	if idToken == "" {
		return Identity{}, ErrInvalidToken
	}
	payload, err := g.validator.Validate(ctx, idToken, g.audience)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id := Identity{UserID: payload.Subject}
	if email, ok := payload.Claims["email"].(string); ok {
		id.Email = email
	}
	if id.UserID == "" {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}
