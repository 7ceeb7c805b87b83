// Package auth provides session tokens, OAuth state, and the identity
// providers for the relay.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. User visits /auth/discord/login → redirected to Discord
// 2. Discord calls back /auth/discord/callback with a code
// 3. Server exchanges the code, checks guild membership, upserts the account
// 4. Server issues a JWT session token, stores it in an HttpOnly cookie
// 5. On protected requests, middleware reads cookie or Bearer header,
//    verifies the JWT, and puts the session claims in the request context
//
// The token is stateless — nothing is stored server-side per session. The
// HMAC signature plus the claim checks below are the entire trust model.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionIssuer = "swarm-relay"
	sessionTTL    = 7 * 24 * time.Hour
	// clockSkewLeeway tolerates small clock drift between issuer and
	// verifier when checking exp/iat.
	clockSkewLeeway = 30 * time.Second
)

// ErrInvalidSession is the ONLY error Verify returns.
//
// WHY ONE UNIFORM ERROR?
// Distinguishing "expired" from "bad signature" from "missing claim" to the
// caller creates an oracle: an attacker probing tokens learns which part of
// a forgery was accepted. The distinction exists only in server logs.
var ErrInvalidSession = errors.New("auth: invalid session token")

// SessionClaims is the verified content of a session token.
//
// ServerMember must be LITERALLY true in the token. A token without the
// claim, or with it set to false, never verifies — guild membership is
// checked at login time and the claim is the proof carried forward.
type SessionClaims struct {
	DiscordUserID   string
	DiscordUsername string
	ServerMember    bool
	IssuedAt        time.Time
	ExpiresAt       time.Time
}

// sessionJWT is the raw JWT payload. It embeds jwt.RegisteredClaims for
// the standard sub/iat/exp/iss fields and adds our custom claims.
type sessionJWT struct {
	Username     string `json:"name"`
	ServerMember bool   `json:"serverMember"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies session tokens with a symmetric
// HMAC-SHA256 key.
type TokenService struct {
	secret []byte
	logger *slog.Logger

	// now is injectable for expiry tests; defaults to time.Now.
	now func() time.Time
}

// NewTokenService creates a TokenService with the given signing secret.
// A short secret is a startup configuration error, not something to paper
// over per-request.
func NewTokenService(secret string, logger *slog.Logger) (*TokenService, error) {
	if len(secret) < 32 {
		return nil, errors.New("auth: session secret must be at least 32 characters")
	}
	return &TokenService{
		secret: []byte(secret),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Issue creates a signed session token for an authenticated, membership-
// verified Discord user. The token expires after 7 days.
func (s *TokenService) Issue(discordUserID, discordUsername string) (string, error) {
	if discordUserID == "" || discordUsername == "" {
		return "", errors.New("auth: session requires a user id and username")
	}

	now := s.now()
	claims := sessionJWT{
		Username:     discordUsername,
		ServerMember: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   discordUserID,
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing session token: %w", err)
	}
	return signed, nil
}

// Verify parses and checks a session token.
//
// VALIDATION CHECKS:
//   - Signature is valid for our secret
//   - Algorithm is HS256 (jwt.WithValidMethods pins it — without the pin an
//     attacker could attempt an algorithm-confusion forgery)
//   - Not expired, with 30s leeway for clock skew
//   - Issuer matches, expiry claim is present
//   - sub and name are non-empty, serverMember is literally true
//
// Every failure collapses into ErrInvalidSession; the reason is logged at
// Debug only.
func (s *TokenService) Verify(tokenStr string) (*SessionClaims, error) {
	var claims sessionJWT
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkewLeeway),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	if err != nil {
		s.logger.Debug("session token rejected", slog.String("reason", err.Error()))
		return nil, ErrInvalidSession
	}

	if !token.Valid {
		s.logger.Debug("session token rejected", slog.String("reason", "token not valid"))
		return nil, ErrInvalidSession
	}
	if claims.Subject == "" || claims.Username == "" || !claims.ServerMember {
		s.logger.Debug("session token rejected",
			slog.Bool("hasSubject", claims.Subject != ""),
			slog.Bool("hasUsername", claims.Username != ""),
			slog.Bool("serverMember", claims.ServerMember),
		)
		return nil, ErrInvalidSession
	}

	out := &SessionClaims{
		DiscordUserID:   claims.Subject,
		DiscordUsername: claims.Username,
		ServerMember:    claims.ServerMember,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
