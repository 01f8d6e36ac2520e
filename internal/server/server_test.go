package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.DBPath == "" {
		cfg.DBPath = ":memory:"
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "test-secret-at-least-16-chars!!"
	}
	cfg.UploadDir = t.TempDir()
	cfg.EnforceNonEmpty = true

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func serve(h http.Handler, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestServer_Routes(t *testing.T) {
	s := newTestServer(t, Config{})
	h := s.Handler()

	rr := serve(h, http.MethodPost, "/api/auth/register", `{"username":"alice","password":"pw1"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies)

	rr = serve(h, http.MethodPost, "/api/posts", `{"title":"Hello","content":"World"}`, cookies...)
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = serve(h, http.MethodGet, "/api/feed", "", cookies...)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"title":"Hello"`)

	rr = serve(h, http.MethodGet, "/api/feed", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = serve(h, http.MethodGet, "/dashboard", "")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))

	rr = serve(h, http.MethodGet, "/", "", cookies...)
	assert.Equal(t, "/dashboard", rr.Header().Get("Location"))
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer(t, Config{})
	h := s.Handler()

	serve(h, http.MethodGet, "/api/posts/42", "")

	rr := serve(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `route="/api/posts/{id}"`)
}

func TestServer_GitHubRoutesOnlyWhenConfigured(t *testing.T) {
	off := newTestServer(t, Config{})
	rr := serve(off.Handler(), http.MethodGet, "/auth/github/login", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	on := newTestServer(t, Config{
		GitHubClientID:     "client-id",
		GitHubClientSecret: "client-secret",
		GitHubCallbackURL:  "http://localhost/auth/github/callback",
	})
	rr = serve(on.Handler(), http.MethodGet, "/auth/github/login", "")
	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Location"), "https://github.com/login/oauth/authorize"))
}

func TestNew_RejectsShortSecret(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	_, err := New(Config{DBPath: ":memory:", JWTSecret: "short", UploadDir: t.TempDir()}, logger)
	assert.Error(t, err)
}
