package identity

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is fixed regardless of the ID token's own expiry.
const DefaultSessionTTL = 5 * 24 * time.Hour

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// SessionManager signs and checks RS256 session tokens with the service-account key.
type SessionManager struct {
	key      *rsa.PrivateKey
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionManager(sa *ServiceAccount, ttl time.Duration) (*SessionManager, error) {
	key, err := sa.RSAKey()
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	aud := sa.ProjectID
	if aud == "" {
		aud = sa.ClientEmail
	}
	return &SessionManager{
		key:      key,
		issuer:   sa.ClientEmail,
		audience: aud,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

func (m *SessionManager) Mint(id Identity) (string, error) {
	now := m.now()
	claims := sessionClaims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   id.UserID,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

func (m *SessionManager) Verify(raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, ErrInvalidToken
	}
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return &m.key.PublicKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: claims.Subject, Email: claims.Email}, nil
}
