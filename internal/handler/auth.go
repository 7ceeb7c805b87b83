package handler

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/swarm-relay/internal/apperror"
	"github.com/sakif/swarm-relay/internal/auth"
	"github.com/sakif/swarm-relay/internal/service"
)

const sessionCookieMaxAge = int(7 * 24 * time.Hour / time.Second)

// AuthHandler drives the browser-facing OAuth endpoints.
//
// HANDLER RESPONSIBILITIES:
//   - HandleDiscordLogin / HandleDiscordCallback → primary identity + session
//   - HandleSwarmLogin / HandleSwarmCallback     → Foursquare linkage
//   - HandleLogout                               → clear the session cookie
//
// The orchestration itself (state, exchange, membership, account writes)
// lives in service.AuthService; this layer only does HTTP: query params,
// cookies, redirects, and result pages.
type AuthHandler struct {
	authService *service.AuthService
	logger      *slog.Logger

	// secureCookies is true in production — the session cookie then only
	// travels over HTTPS.
	secureCookies bool
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authService *service.AuthService, secureCookies bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// HandleDiscordLogin redirects the browser to Discord's authorization page.
//
// HTTP: GET /auth/discord/login
func (h *AuthHandler) HandleDiscordLogin(w http.ResponseWriter, r *http.Request) {
	url, err := h.authService.BeginDiscordLogin()
	if err != nil {
		h.logger.Error("failed to initiate discord login", slog.String("error", err.Error()))
		h.renderFailure(w, "Failed to initiate Discord login", "/auth/discord/login")
		return
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// HandleDiscordCallback completes the login flow and issues the session
// cookie.
//
// HTTP: GET /auth/discord/callback?code=xxx&state=yyy[&error=...]
//
// Failure branches render a human-readable page with a retry link; the
// full internal detail stays in the server logs.
func (h *AuthHandler) HandleDiscordCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		// The user denied authorization (or Discord reported an error).
		h.logger.Info("discord callback returned an error", slog.String("error", errParam))
		h.renderFailure(w, "Discord authorization was not completed", "/auth/discord/login")
		return
	}

	result, err := h.authService.CompleteDiscordLogin(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		h.logger.Warn("discord login failed", slog.String("error", err.Error()))
		if errors.Is(err, apperror.ErrForbidden) {
			h.renderFailure(w, "You must be a member of the target Discord server", "/auth/discord/login")
			return
		}
		h.renderFailure(w, "Authentication failed", "/auth/discord/login")
		return
	}

	h.setSessionCookie(w, result.Token)

	if result.NeedsLink {
		h.renderPage(w, onboardingPage, map[string]string{
			"Username":    result.Account.DiscordUsername,
			"DisplayName": result.Account.DiscordDisplayName,
		})
		return
	}
	h.renderPage(w, welcomeBackPage, map[string]string{
		"Username":    result.Account.DiscordUsername,
		"DisplayName": result.Account.DiscordDisplayName,
	})
}

// HandleSwarmLogin starts the Foursquare linkage flow.
//
// HTTP: GET /auth/swarm/login
// Auth: required — linkage attaches to the session's account.
func (h *AuthHandler) HandleSwarmLogin(w http.ResponseWriter, r *http.Request) {
	url, err := h.authService.BeginSwarmLink()
	if err != nil {
		h.logger.Error("failed to initiate swarm linkage", slog.String("error", err.Error()))
		h.renderFailure(w, "Failed to initiate Swarm connection", "/auth/swarm/login")
		return
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// HandleSwarmCallback completes the linkage flow.
//
// HTTP: GET /auth/swarm/callback?code=xxx&state=yyy[&error=...]
// Auth: required.
func (h *AuthHandler) HandleSwarmCallback(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		// Unreachable behind RequireSession; fail closed anyway.
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("swarm callback returned an error", slog.String("error", errParam))
		h.renderFailure(w, "Foursquare authorization was not completed", "/auth/swarm/login")
		return
	}

	account, err := h.authService.CompleteSwarmLink(r.Context(), session, q.Get("code"), q.Get("state"))
	if err != nil {
		h.logger.Warn("swarm linkage failed",
			slog.String("discordUserId", session.DiscordUserID),
			slog.String("error", err.Error()),
		)
		h.renderFailure(w, "Failed to connect your Swarm account", "/auth/swarm/login")
		return
	}

	h.renderPage(w, linkedPage, map[string]string{
		"Username":         account.DiscordUsername,
		"FoursquareUserID": account.FoursquareUserID,
	})
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /auth/logout
//
// POST, not GET: logout changes state, and GET would be both CSRF-able and
// prefetchable. Stateless sessions mean "logout" is purely deleting the
// client-side cookie; the token stays valid until expiry but the browser
// no longer sends it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// setSessionCookie stores the session JWT.
// HttpOnly keeps it away from page scripts; SameSite=Lax still allows the
// top-level OAuth redirect back from the provider to carry it.
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   sessionCookieMaxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) renderPage(w http.ResponseWriter, page *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Execute(w, data); err != nil {
		h.logger.Error("failed to render page", slog.String("error", err.Error()))
	}
}

func (h *AuthHandler) renderFailure(w http.ResponseWriter, message, retryPath string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := failurePage.Execute(w, map[string]string{
		"Message":   message,
		"RetryPath": retryPath,
	}); err != nil {
		h.logger.Error("failed to render failure page", slog.String("error", err.Error()))
	}
}

// Result pages. html/template escapes all injected values, so provider-
// controlled strings (usernames) are safe to interpolate.
var (
	onboardingPage = template.Must(template.New("onboarding").Parse(`<html>
<head><meta http-equiv="refresh" content="3;url=/auth/swarm/login"></head>
<body>
<h1>Discord Connected Successfully! 🎉</h1>
<p><strong>Welcome:</strong> {{.Username}}</p>
{{if .DisplayName}}<p><strong>Display Name:</strong> {{.DisplayName}}</p>{{end}}
<p>Now let's connect your Foursquare Swarm account to complete the setup.</p>
<p>Redirecting to Swarm connection in 3 seconds...</p>
<p><a href="/auth/swarm/login">Connect Swarm Now →</a></p>
</body>
</html>`))

	welcomeBackPage = template.Must(template.New("welcomeBack").Parse(`<html>
<head><meta http-equiv="refresh" content="2;url=/users/@me"></head>
<body>
<h1>Welcome Back! 👋</h1>
<p><strong>Discord User:</strong> {{.Username}}</p>
{{if .DisplayName}}<p><strong>Display Name:</strong> {{.DisplayName}}</p>{{end}}
<p>Your Discord and Swarm accounts are already connected.</p>
<p>Redirecting to your profile in 2 seconds...</p>
<p><a href="/users/@me">View Profile Now →</a></p>
</body>
</html>`))

	linkedPage = template.Must(template.New("linked").Parse(`<html>
<body>
<h1>Swarm Connected! ✅</h1>
<p><strong>Discord User:</strong> {{.Username}}</p>
<p><strong>Foursquare User ID:</strong> {{.FoursquareUserID}}</p>
<p>Your check-ins will now be relayed to Discord.</p>
<p><a href="/users/@me">View Profile →</a></p>
</body>
</html>`))

	failurePage = template.Must(template.New("failure").Parse(`<html>
<body>
<h1>Authentication Error</h1>
<p>{{.Message}}</p>
<p><a href="{{.RetryPath}}">Try Again</a></p>
</body>
</html>`))
)
