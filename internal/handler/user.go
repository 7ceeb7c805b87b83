package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/swarm-relay/internal/auth"
	"github.com/sakif/swarm-relay/internal/model"
	"github.com/sakif/swarm-relay/internal/service"
)

// UserHandler serves the authenticated profile endpoints.
type UserHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(authService *service.AuthService, logger *slog.Logger) *UserHandler {
	return &UserHandler{authService: authService, logger: logger}
}

// profileResponse is the body of GET /users/@me. The foursquare object is
// null until a Swarm account is linked.
type profileResponse struct {
	Discord    profileDiscord     `json:"discord"`
	Foursquare *profileFoursquare `json:"foursquare"`
}

type profileDiscord struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type profileFoursquare struct {
	UserID string `json:"userId"`
}

// HandleMe returns the authenticated user's profile.
//
// HTTP: GET /users/@me
// Auth: required.
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	account, err := h.authService.Profile(r.Context(), session.DiscordUserID)
	if err != nil {
		h.logger.Error("failed to load profile",
			slog.String("discordUserId", session.DiscordUserID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, buildProfile(account))
}

// HandleDisconnect removes the Swarm linkage from the session's account.
//
// HTTP: POST /users/@me/disconnect
// Auth: required.
func (h *UserHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	account, err := h.authService.Disconnect(r.Context(), session.DiscordUserID)
	if err != nil {
		h.logger.Error("failed to disconnect swarm",
			slog.String("discordUserId", session.DiscordUserID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, buildProfile(account))
}

func buildProfile(account *model.Account) profileResponse {
	resp := profileResponse{
		Discord: profileDiscord{
			UserID:   account.DiscordUserID,
			Username: account.DiscordUsername,
		},
	}
	if account.FoursquareUserID != "" {
		resp.Foursquare = &profileFoursquare{UserID: account.FoursquareUserID}
	}
	return resp
}
