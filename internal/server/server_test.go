package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/swarm-relay/internal/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		Port:                   8080,
		Env:                    "development",
		LogLevel:               "info",
		BaseURL:                "http://localhost:8080",
		FoursquarePushSecret:   "push-secret",
		DiscordWebhookURL:      "https://discord.com/api/webhooks/123/abc",
		DiscordClientID:        "client-id",
		DiscordClientSecret:    "client-secret",
		DiscordTargetServerID:  "guild-42",
		FoursquareClientID:     "fsq-client",
		FoursquareClientSecret: "fsq-secret",
		JWTSecret:              "test-session-secret-32-characters!",
		DBPath:                 ":memory:",
	}
	require.NoError(t, cfg.Validate())

	srv, err := New(cfg, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	require.NoError(t, err)
	t.Cleanup(func() {
		srv.states.Close()
		srv.db.Close()
	})
	return srv
}

func get(router http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRoutes_Banner(t *testing.T) {
	srv := newTestServer(t)

	w := get(srv.Router(), "/")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Swarm check-in relay")
}

func TestRoutes_Metrics(t *testing.T) {
	srv := newTestServer(t)

	w := get(srv.Router(), "/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "relay_webhooks_received_total")
}

func TestRoutes_Health(t *testing.T) {
	srv := newTestServer(t)

	w := get(srv.Router(), "/webhook/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestRoutes_WebhookRejectsUnsupportedContentType(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook/checkin", strings.NewReader("<xml/>"))
	req.Header.Set("Content-Type", "text/xml")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestRoutes_ProtectedEndpointsRequireSession(t *testing.T) {
	srv := newTestServer(t)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/users/@me"},
		{http.MethodPost, "/users/@me/disconnect"},
		{http.MethodGet, "/auth/swarm/login"},
		{http.MethodGet, "/auth/swarm/callback"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, req)

		assert.Equalf(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRoutes_DiscordLoginRedirects(t *testing.T) {
	srv := newTestServer(t)

	w := get(srv.Router(), "/auth/discord/login")

	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	location := w.Header().Get("Location")
	assert.Contains(t, location, "discord.com/oauth2/authorize")
	assert.Contains(t, location, "state=")
}

func TestRoutes_DiscordLoginRateLimited(t *testing.T) {
	srv := newTestServer(t)

	var last int
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/auth/discord/login", nil)
		req.RemoteAddr = "10.9.9.9:1234"
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, req)
		last = w.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestRoutes_Logout(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
