package auth

import (
	"context"
	"net/http"
	"strings"
)

// SessionCookieName is the cookie carrying the session JWT.
const SessionCookieName = "auth_token"

// contextKey is an unexported type for context keys in this package.
// A package-private key type means only this package can read or write
// session claims in a request context — no collisions with other packages.
type contextKey string

const sessionKey contextKey = "session"

// RequireSession is a middleware that enforces a valid session on
// protected routes.
//
// TOKEN TRANSPORT:
// Browsers send the HttpOnly "auth_token" cookie; non-browser callers may
// instead send "Authorization: Bearer <token>". The header wins when both
// are present. Missing or invalid tokens get a uniform 401 — the reason
// (absent vs expired vs forged) is never distinguished in the response.
func RequireSession(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := extractSession(r, tokens)
			if err != nil {
				http.Error(w, `{"error":"unauthorized","message":"valid authentication required"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext retrieves the verified session claims placed in the
// context by RequireSession.
//
// Returns (nil, false) on anonymous requests — only possible on routes not
// behind RequireSession.
func SessionFromContext(ctx context.Context) (*SessionClaims, bool) {
	claims, ok := ctx.Value(sessionKey).(*SessionClaims)
	return claims, ok && claims != nil
}

// extractSession pulls the token from the Bearer header or cookie and
// verifies it.
func extractSession(r *http.Request, tokens *TokenService) (*SessionClaims, error) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return tokens.Verify(strings.TrimPrefix(h, "Bearer "))
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		// http.ErrNoCookie — no session at all
		return nil, err
	}
	return tokens.Verify(cookie.Value)
}
