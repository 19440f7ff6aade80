package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidAccessToken = errors.New("invalid event access token")

// EventAccessCookie names the cookie that remembers a passed password gate.
func EventAccessCookie(eventID string) string {
	return "event_access_" + eventID
}

// EventAccessClaims proves the bearer entered the password for Subject (the event id).
type EventAccessClaims struct {
	jwt.RegisteredClaims
}

// GenerateEventAccessToken signs an HS256 token for one event. The cookie
// carrying it has no Max-Age, so the browser drops it when the session ends;
// the 24h expiry bounds a leaked token.
func GenerateEventAccessToken(secret, eventID string) (string, error) {
	if secret == "" {
		return "", errors.New("event access secret is not set")
	}
	now := time.Now()
	claims := EventAccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   eventID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyEventAccessToken checks signature, expiry and that the token was issued for eventID.
func VerifyEventAccessToken(secret, tokenStr, eventID string) error {
	if secret == "" || tokenStr == "" {
		return ErrInvalidAccessToken
	}
	claims := &EventAccessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(eventID),
	)
	if err != nil || !token.Valid {
		return ErrInvalidAccessToken
	}
	return nil
}
