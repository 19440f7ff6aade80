package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServiceAccountJSON(t *testing.T, escapedNewlines bool) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemKey := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
	if escapedNewlines {
		pemKey = strings.ReplaceAll(pemKey, "\n", `\n`)
	}
	raw, err := json.Marshal(map[string]string{
		"type":         "service_account",
		"project_id":   "dishevent-test",
		"private_key":  pemKey,
		"client_email": "sessions@dishevent-test.iam.gserviceaccount.com",
	})
	require.NoError(t, err)
	return string(raw)
}

func newManager(t *testing.T) *SessionManager {
	t.Helper()
	sa, err := ParseServiceAccount(testServiceAccountJSON(t, false))
	require.NoError(t, err)
	m, err := NewSessionManager(sa, 0)
	require.NoError(t, err)
	return m
}

func TestParseServiceAccount_NormalisesEscapedNewlines(t *testing.T) {
	sa, err := ParseServiceAccount(testServiceAccountJSON(t, true))
	require.NoError(t, err)
	assert.NotContains(t, sa.PrivateKey, `\n`)

	_, err = sa.RSAKey()
	assert.NoError(t, err)
}

func TestParseServiceAccount_Empty(t *testing.T) {
	_, err := ParseServiceAccount("  ")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = ParseServiceAccount(`{"type":"service_account"}`)
	assert.Error(t, err)
}

func TestSessionManager_RoundTrip(t *testing.T) {
	m := newManager(t)

	token, err := m.Mint(Identity{UserID: "u1", Email: "u1@example.com"})
	require.NoError(t, err)

	id, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u1", Email: "u1@example.com"}, id)
}

func TestSessionManager_ExpiresAfterFiveDays(t *testing.T) {
	m := newManager(t)
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }

	token, err := m.Mint(Identity{UserID: "u1"})
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(DefaultSessionTTL - time.Minute) }
	_, err = m.Verify(token)
	assert.NoError(t, err)

	m.now = func() time.Time { return issued.Add(DefaultSessionTTL + time.Minute) }
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionManager_RejectsForeignKey(t *testing.T) {
	a, b := newManager(t), newManager(t)

	token, err := a.Mint(Identity{UserID: "u1"})
	require.NoError(t, err)

	_, err = b.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

type stubVerifier struct {
	id  Identity
	err error
}

func (s stubVerifier) Verify(context.Context, string) (Identity, error) { return s.id, s.err }

func TestBridge_NotConfigured(t *testing.T) {
	var b *Bridge
	_, _, err := b.Exchange(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewBridge(stubVerifier{}, nil).Resolve("tok")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestBridge_ExchangeAndResolve(t *testing.T) {
	b := NewBridge(stubVerifier{id: Identity{UserID: "u9", Email: "x@example.com"}}, newManager(t))

	token, id, err := b.Exchange(context.Background(), "google-id-token")
	require.NoError(t, err)
	assert.Equal(t, "u9", id.UserID)

	got, err := b.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, int(DefaultSessionTTL.Seconds()), b.SessionTTL())
}

func TestBridge_VerifierRejects(t *testing.T) {
	b := NewBridge(stubVerifier{err: ErrInvalidToken}, newManager(t))
	_, _, err := b.Exchange(context.Background(), "bad")
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestContextHelpers(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UserID: "u1"})
	id, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u1", id.UserID)
}
