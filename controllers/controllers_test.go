package controllers

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dishevent/dishevent-server/identity"
	"github.com/dishevent/dishevent-server/models"
	"github.com/dishevent/dishevent-server/uploads"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubVerifier map[string]identity.Identity

func (s stubVerifier) Verify(_ context.Context, tok string) (identity.Identity, error) {
	if id, ok := s[tok]; ok {
		return id, nil
	}
	return identity.Identity{}, identity.ErrInvalidToken
}

func newTestBridge(t *testing.T) *identity.Bridge {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	raw, err := json.Marshal(map[string]string{
		"type":         "service_account",
		"project_id":   "dishevent-test",
		"private_key":  string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})),
		"client_email": "sessions@dishevent-test.iam.gserviceaccount.com",
	})
	require.NoError(t, err)
	sa, err := identity.ParseServiceAccount(string(raw))
	require.NoError(t, err)
	sessions, err := identity.NewSessionManager(sa, identity.DefaultSessionTTL)
	require.NoError(t, err)
	return identity.NewBridge(stubVerifier{"google-alice": {UserID: "alice", Email: "alice@example.com"}}, sessions)
}

func sessionRouter(h *SessionController) *gin.Engine {
	r := gin.New()
	r.POST("/api/auth/session", h.Create)
	r.GET("/api/auth/session", h.Get)
	r.DELETE("/api/auth/session", h.Delete)
	r.GET("/api/auth/guard", h.Guard)
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSession_GetWithoutCookie(t *testing.T) {
	r := sessionRouter(NewSessionController(newTestBridge(t), "session", 432000, false))

	w := do(r, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"isLoggedIn":false}`, w.Body.String())
}

func TestSession_CreateAndGet(t *testing.T) {
	r := sessionRouter(NewSessionController(newTestBridge(t), "session", 432000, true))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/session", strings.NewReader(`{"idToken":"google-alice"}`))
	req.Header.Set("Content-Type", "application/json")
	w := do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	cookie := findCookie(w, "session")
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 432000, cookie.MaxAge)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: cookie.Value})
	w = do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"isLoggedIn":true,"userId":"alice","email":"alice@example.com"}`, w.Body.String())
}

func TestSession_CreateRejectsBadToken(t *testing.T) {
	r := sessionRouter(NewSessionController(newTestBridge(t), "session", 432000, false))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/session", strings.NewReader(`{"idToken":"forged"}`))
	w := do(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"unauthorized"`)
	assert.Nil(t, findCookie(w, "session"))
}

func TestSession_InvalidCookieIsClearedAndLoggedOut(t *testing.T) {
	r := sessionRouter(NewSessionController(newTestBridge(t), "session", 432000, false))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "not-a-jwt"})
	w := do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"isLoggedIn":false}`, w.Body.String())

	cleared := findCookie(w, "session")
	require.NotNil(t, cleared)
	assert.Equal(t, "", cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestSession_NotConfigured(t *testing.T) {
	r := sessionRouter(NewSessionController(nil, "session", 432000, false))

	w := do(r, httptest.NewRequest(http.MethodPost, "/api/auth/session", strings.NewReader(`{"idToken":"x"}`)))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"server_configuration_error"`)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "whatever"})
	w = do(r, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "server_configuration_error", body["error"])
	assert.Equal(t, false, body["isLoggedIn"])
	assert.NotEmpty(t, body["message"])

	// no cookie is still simply logged out
	w = do(r, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSession_Delete(t *testing.T) {
	r := sessionRouter(NewSessionController(newTestBridge(t), "session", 432000, false))

	w := do(r, httptest.NewRequest(http.MethodDelete, "/api/auth/session", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	cleared := findCookie(w, "session")
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestSession_Guard(t *testing.T) {
	r := sessionRouter(NewSessionController(newTestBridge(t), "session", 432000, false))

	w := do(r, httptest.NewRequest(http.MethodGet, "/api/auth/guard?path=/dashboard", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"class":"protected","action":"redirect-to-login","location":"/login?next=%2Fdashboard"}`, w.Body.String())
}

func TestParseIfMatch(t *testing.T) {
	v, ok := parseIfMatch("")
	assert.True(t, ok)
	assert.Nil(t, v)

	for _, h := range []string{`"3"`, `W/"3"`, "3", ` "3" `} {
		v, ok := parseIfMatch(h)
		require.True(t, ok, h)
		require.NotNil(t, v, h)
		assert.Equal(t, int64(3), *v, h)
	}

	for _, h := range []string{`"abc"`, `"0"`, `"-1"`} {
		_, ok := parseIfMatch(h)
		assert.False(t, ok, h)
	}

	assert.Equal(t, `"7"`, etag(7))
}

func exportFixture() (*models.Event, [][]string) {
	note := "vegetarian"
	responded := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	guests := []models.Guest{
		{Name: "Gus", Email: "gus@example.com", Response: models.RSVPYes, Attendees: 2, Note: &note,
			InvitedAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC), RespondedAt: &responded},
		{Name: "Nia, Jr.", Email: "nia@example.com", Response: models.RSVPNo, Attendees: 1,
			InvitedAt: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)},
	}
	return &models.Event{ID: "ev1", Name: "Anna & Ben"}, guestRows(guests)
}

func TestWriteCSV(t *testing.T) {
	_, rows := exportFixture()
	out, err := writeCSV(rows)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "name,email,phone,response,attendees,note,invited_at,responded_at", lines[0])
	assert.Equal(t, "Gus,gus@example.com,,yes,2,vegetarian,2026-05-01T09:00:00Z,2026-05-02T09:00:00Z", lines[1])
	assert.Equal(t, `"Nia, Jr.",nia@example.com,,no,1,,2026-05-01T10:00:00Z,`, lines[2])
}

func TestWriteXLSX(t *testing.T) {
	ev, rows := exportFixture()
	out, err := writeXLSX(ev, rows)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows("Guests")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(got), 3)
	assert.Equal(t, "name", got[0][0])
	assert.Equal(t, "Gus", got[1][0])
	assert.Equal(t, "2", got[1][4])

	formula, err := f.GetCellFormula("Guests", "E5")
	require.NoError(t, err)
	assert.Equal(t, `SUMIF(D2:D3,"yes",E2:E3)`, formula)
}

type memStore struct {
	objects map[string][]byte
}

func (m *memStore) Put(_ context.Context, path string, body io.Reader, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[path] = data
	return nil
}

func (m *memStore) URL(_ context.Context, path string) (string, error) {
	return "https://cdn.test/" + path, nil
}

func (m *memStore) Remove(_ context.Context, path string) error {
	if _, ok := m.objects[path]; !ok {
		return uploads.ErrObjectNotFound
	}
	delete(m.objects, path)
	return nil
}

func TestUploadController_Disabled(t *testing.T) {
	h := NewUploadController(nil)
	r := gin.New()
	r.POST("/api/uploads", h.Upload)

	w := do(r, httptest.NewRequest(http.MethodPost, "/api/uploads", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestUploadController_DownloadRedirects(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}}
	h := NewUploadController(uploads.NewUploader(store, uploads.Options{Bucket: "event-media", PublicURL: "https://invite.test"}))
	r := gin.New()
	r.GET("/v0/b/:bucket/o/*object", h.Download)

	w := do(r, httptest.NewRequest(http.MethodGet, "/v0/b/event-media/o/events%2Fu1%2Fcover.png?alt=media", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://cdn.test/events/u1/cover.png", w.Header().Get("Location"))

	w = do(r, httptest.NewRequest(http.MethodGet, "/v0/b/other/o/cover.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
