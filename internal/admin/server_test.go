package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/folio/internal/auth"
	"github.com/goodtune/folio/internal/clock"
	"github.com/goodtune/folio/internal/session"
	"github.com/goodtune/folio/internal/storage/bolt"
	"github.com/goodtune/folio/internal/storage/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUser     = "admin"
	testPassword = "correct-horse"
)

type testServer struct {
	handler http.Handler
	guard   *session.Guard
	clock   *clock.Manual
}

func setupTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()

	store, err := bolt.Open(filepath.Join(t.TempDir(), "folio.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, auth.EnsureInitialUser(ctx, store.AdminUsers(), testUser, testPassword, zerolog.Nop()))

	clk := clock.NewManual(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))

	authService, err := auth.NewService(store.AdminUsers(), store.Local(), auth.Config{
		JWTSecret:       "test-secret",
		TokenExpiration: auth.DefaultTokenExpiration,
	}, clk, zerolog.Nop())
	require.NoError(t, err)

	guard, err := session.NewGuard(session.DefaultConfig(), authService, store.Local(), memory.NewEphemeral(16, 0), clk, zerolog.Nop())
	require.NoError(t, err)

	if cfg.LoginRateLimit == 0 {
		cfg.LoginRateLimit = 100
		cfg.LoginBurst = 100
	}
	srv := NewServer(cfg, Deps{Auth: authService, Guard: guard}, zerolog.Nop())

	return &testServer{handler: srv.Handler(), guard: guard, clock: clk}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T) LoginResponse {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Username: testUser, Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t, Config{})

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginStartsSession(t *testing.T) {
	ts := setupTestServer(t, Config{SecureCookies: true})

	resp := ts.login(t)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, testUser, resp.User.Username)
	assert.True(t, resp.SessionDeadline.Equal(ts.clock.Now().Add(2*time.Hour)))

	info := ts.guard.SessionInfo(context.Background())
	require.NotNil(t, info)
	assert.True(t, info.StartedAt.Equal(ts.clock.Now()))
}

func TestLoginSetsCookie(t *testing.T) {
	ts := setupTestServer(t, Config{SecureCookies: true})

	rec := ts.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Username: testUser, Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == tokenCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, int(auth.DefaultTokenExpiration.Seconds()), cookie.MaxAge)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: tokenCookie, Value: cookie.Value})
	me := httptest.NewRecorder()
	ts.handler.ServeHTTP(me, req)
	assert.Equal(t, http.StatusOK, me.Code)
}

func TestLoginRejectsBadRequests(t *testing.T) {
	ts := setupTestServer(t, Config{})

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"missing fields", LoginRequest{Username: testUser}, http.StatusBadRequest},
		{"wrong password", LoginRequest{Username: testUser, Password: "nope"}, http.StatusUnauthorized},
		{"unknown user", LoginRequest{Username: "root", Password: testPassword}, http.StatusUnauthorized},
		{"not json", "just a string", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/auth/login", "", tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	assert.Nil(t, ts.guard.SessionInfo(context.Background()))
}

func TestLoginRateLimited(t *testing.T) {
	ts := setupTestServer(t, Config{LoginRateLimit: 0.001, LoginBurst: 2})

	bad := LoginRequest{Username: testUser, Password: "nope"}
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodPost, "/api/auth/login", "", bad).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodPost, "/api/auth/login", "", bad).Code)
	assert.Equal(t, http.StatusTooManyRequests, ts.do(t, http.MethodPost, "/api/auth/login", "", bad).Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := setupTestServer(t, Config{})

	for _, path := range []string{"/api/auth/me", "/api/session"} {
		rec := ts.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)

		rec = ts.do(t, http.MethodGet, path, "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestMe(t *testing.T) {
	ts := setupTestServer(t, Config{})
	resp := ts.login(t)

	rec := ts.do(t, http.MethodGet, "/api/auth/me", resp.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	user := decode[UserInfo](t, rec)
	assert.Equal(t, testUser, user.Username)
	assert.NotEmpty(t, user.ID)
}

func TestSessionInfoEndpoint(t *testing.T) {
	ts := setupTestServer(t, Config{})
	resp := ts.login(t)

	ts.clock.Advance(30 * time.Minute)

	rec := ts.do(t, http.MethodGet, "/api/session", resp.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	info := decode[SessionResponse](t, rec)
	assert.Equal(t, int64(30*60), info.ElapsedSeconds)
	assert.Equal(t, int64(90*60), info.RemainingSeconds)
	assert.False(t, info.Expired)
}

func TestSessionInfoWithoutRecord(t *testing.T) {
	ts := setupTestServer(t, Config{})
	resp := ts.login(t)

	require.NoError(t, ts.guard.ClearSession(context.Background()))

	rec := ts.do(t, http.MethodGet, "/api/session", resp.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSessionCheckEndpoint(t *testing.T) {
	ts := setupTestServer(t, Config{})
	resp := ts.login(t)

	rec := ts.do(t, http.MethodPost, "/api/session/check", resp.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	check := decode[CheckResponse](t, rec)
	assert.Equal(t, session.OutcomeActive, check.Outcome)
	require.NotNil(t, check.Session)
	assert.False(t, check.Session.Expired)
}

func TestExpiredSessionRejectsRequests(t *testing.T) {
	ts := setupTestServer(t, Config{})
	resp := ts.login(t)

	ts.clock.Advance(2*time.Hour + time.Second)

	rec := ts.do(t, http.MethodGet, "/api/auth/me", resp.Token, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "session_expired", errResp.Error)
	assert.Equal(t, string(session.ReasonAbsoluteTimeout), errResp.Reason)

	// The token is no longer accepted even though it has not expired itself.
	rec = ts.do(t, http.MethodGet, "/api/auth/me", resp.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/auth/logout-reason", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reason := decode[LogoutReasonResponse](t, rec)
	assert.Equal(t, session.ReasonAbsoluteTimeout, reason.Reason)
	assert.Equal(t, session.ReasonAbsoluteTimeout.Message(), reason.Message)
}

func TestLogout(t *testing.T) {
	ts := setupTestServer(t, Config{})
	resp := ts.login(t)

	rec := ts.do(t, http.MethodPost, "/api/auth/logout", resp.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/auth/me", resp.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, ts.guard.SessionInfo(context.Background()))

	rec = ts.do(t, http.MethodGet, "/api/auth/logout-reason", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.ReasonManual, decode[LogoutReasonResponse](t, rec).Reason)

	rec = ts.do(t, http.MethodGet, "/api/auth/logout-reason", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code, "the reason is read once")
}

func TestChangePassword(t *testing.T) {
	ts := setupTestServer(t, Config{})
	resp := ts.login(t)

	rec := ts.do(t, http.MethodPost, "/api/auth/change-password", resp.Token, ChangePasswordRequest{
		OldPassword: testPassword,
		NewPassword: "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/auth/change-password", resp.Token, ChangePasswordRequest{
		OldPassword: "wrong-password",
		NewPassword: "battery-staple",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/auth/change-password", resp.Token, ChangePasswordRequest{
		OldPassword: testPassword,
		NewPassword: "battery-staple",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Username: testUser, Password: "battery-staple"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := setupTestServer(t, Config{AllowedOrigins: []string{"https://example.org"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "https://example.org")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://example.org", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
}
