package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/swarm-relay/internal/auth"
)

// userRequest runs a UserHandler endpoint behind RequireSession with a
// freshly issued session for discord-1.
func userRequest(t *testing.T, f *authFixture, method, target string, endpoint http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	token, err := f.tokens.Issue("discord-1", "alice")
	require.NoError(t, err)

	req := httptest.NewRequest(method, target, nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
	w := httptest.NewRecorder()

	auth.RequireSession(f.tokens)(endpoint).ServeHTTP(w, req)
	return w
}

func TestHandleMe_LinkedAccount(t *testing.T) {
	f := newAuthFixture(t)
	linkAccount(t, f.db, "discord-1", "fsq-1")
	h := NewUserHandler(f.handler.authService, testLogger())

	w := userRequest(t, f, http.MethodGet, "/users/@me", h.HandleMe)

	require.Equal(t, http.StatusOK, w.Code)

	var profile struct {
		Discord struct {
			UserID   string `json:"userId"`
			Username string `json:"username"`
		} `json:"discord"`
		Foursquare *struct {
			UserID string `json:"userId"`
		} `json:"foursquare"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Equal(t, "discord-1", profile.Discord.UserID)
	assert.Equal(t, "alice", profile.Discord.Username)
	require.NotNil(t, profile.Foursquare)
	assert.Equal(t, "fsq-1", profile.Foursquare.UserID)
}

func TestHandleMe_UnlinkedAccountHasNullFoursquare(t *testing.T) {
	f := newAuthFixture(t)
	linkAccount(t, f.db, "discord-1", "")
	h := NewUserHandler(f.handler.authService, testLogger())

	w := userRequest(t, f, http.MethodGet, "/users/@me", h.HandleMe)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"foursquare":null`)
}

func TestHandleMe_NoAccountIs404(t *testing.T) {
	// A valid session whose account was deleted out from under it.
	f := newAuthFixture(t)
	h := NewUserHandler(f.handler.authService, testLogger())

	w := userRequest(t, f, http.MethodGet, "/users/@me", h.HandleMe)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp.Error)
}

func TestHandleMe_RequiresSession(t *testing.T) {
	f := newAuthFixture(t)
	h := NewUserHandler(f.handler.authService, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/users/@me", nil)
	w := httptest.NewRecorder()
	auth.RequireSession(f.tokens)(http.HandlerFunc(h.HandleMe)).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleDisconnect(t *testing.T) {
	f := newAuthFixture(t)
	linkAccount(t, f.db, "discord-1", "fsq-1")
	h := NewUserHandler(f.handler.authService, testLogger())

	w := userRequest(t, f, http.MethodPost, "/users/@me/disconnect", h.HandleDisconnect)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"foursquare":null`)

	account, err := f.db.GetByDiscordID(context.Background(), "discord-1")
	require.NoError(t, err)
	assert.Empty(t, account.FoursquareUserID)
	assert.Nil(t, account.ConnectedAt)
}

func TestHandleDisconnect_NoAccountIs404(t *testing.T) {
	f := newAuthFixture(t)
	h := NewUserHandler(f.handler.authService, testLogger())

	w := userRequest(t, f, http.MethodPost, "/users/@me/disconnect", h.HandleDisconnect)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
