package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/swarm-relay/internal/apperror"
	"github.com/sakif/swarm-relay/internal/auth"
	"github.com/sakif/swarm-relay/internal/model"
	"github.com/sakif/swarm-relay/internal/repository"
)

// DiscordIdentityProvider is what the login flow needs from the Discord
// OAuth client. *auth.DiscordProvider satisfies it.
type DiscordIdentityProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.DiscordProfile, error)
}

// FoursquareIdentityProvider is what the linkage flow needs from the
// Foursquare OAuth client. *auth.FoursquareProvider satisfies it.
type FoursquareIdentityProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.FoursquareUser, error)
}

// AuthService orchestrates the two three-legged OAuth flows.
//
// FLOW SHAPE (both providers):
//
//	Idle → state issued → (code received, state valid) → profile fetched
//	     → account resolved → session issued (Discord) / linkage saved (Swarm)
//
// Any failed edge terminates the whole flow with a typed error; no partial
// account mutation happens on an early failure — the single repository
// write sits at the very end of each Complete method.
type AuthService struct {
	discord       DiscordIdentityProvider
	foursquare    FoursquareIdentityProvider
	accounts      repository.AccountRepository
	states        *auth.StateStore
	tokens        *auth.TokenService
	targetGuildID string
	logger        *slog.Logger
}

// NewAuthService wires the OAuth orchestration.
func NewAuthService(
	discord DiscordIdentityProvider,
	foursquare FoursquareIdentityProvider,
	accounts repository.AccountRepository,
	states *auth.StateStore,
	tokens *auth.TokenService,
	targetGuildID string,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		discord:       discord,
		foursquare:    foursquare,
		accounts:      accounts,
		states:        states,
		tokens:        tokens,
		targetGuildID: targetGuildID,
		logger:        logger,
	}
}

// LoginResult is what a completed Discord login hands back to the handler:
// the resolved account, the signed session token for the cookie, and
// whether the user still needs to link a Swarm account (drives the
// onboarding redirect).
type LoginResult struct {
	Account   *model.Account
	Token     string
	NeedsLink bool
}

// BeginDiscordLogin issues a CSRF state and returns the provider URL to
// redirect the browser to.
func (s *AuthService) BeginDiscordLogin() (string, error) {
	state, err := s.states.Issue()
	if err != nil {
		return "", err
	}
	s.logger.Info("discord login initiated")
	return s.discord.AuthURL(state), nil
}

// CompleteDiscordLogin finishes the primary-identity flow.
//
// Order matters: the state is consumed FIRST (and is burned whether or not
// the rest succeeds), the code exchange and membership check happen before
// any account write, and the session token is issued only after the
// account is resolved.
func (s *AuthService) CompleteDiscordLogin(ctx context.Context, code, state string) (*LoginResult, error) {
	if code == "" {
		return nil, apperror.ValidationFailed("code", "authorization code required")
	}
	if state == "" || !s.states.Consume(state) {
		return nil, apperror.ValidationFailed("state", "invalid or expired state parameter")
	}

	profile, err := s.discord.Exchange(ctx, code)
	if err != nil {
		s.logger.Error("discord exchange failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", apperror.Upstream("discord", "authentication failed"), err)
	}

	if !profile.MemberOf(s.targetGuildID) {
		s.logger.Warn("discord user not a member of the required server",
			slog.String("discordUserId", profile.User.ID),
			slog.String("discordUsername", profile.User.Username),
		)
		return nil, apperror.Forbidden("you must be a member of the target Discord server")
	}

	account, err := s.resolveAccount(ctx, profile.User)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(account.DiscordUserID, account.DiscordUsername)
	if err != nil {
		return nil, err
	}

	s.logger.Info("discord login complete",
		slog.String("discordUserId", account.DiscordUserID),
		slog.String("discordUsername", account.DiscordUsername),
		slog.Bool("needsLink", account.FoursquareUserID == ""),
	)
	return &LoginResult{
		Account:   account,
		Token:     token,
		NeedsLink: account.FoursquareUserID == "",
	}, nil
}

// resolveAccount creates the account on first login or refreshes the
// Discord profile fields on every later one.
func (s *AuthService) resolveAccount(ctx context.Context, user auth.DiscordUser) (*model.Account, error) {
	account, err := s.accounts.GetByDiscordID(ctx, user.ID)
	switch {
	case err == nil:
		updated, err := s.accounts.Update(ctx, user.ID, model.AccountUpdate{
			DiscordUsername:    &user.Username,
			DiscordDisplayName: &user.GlobalName,
		})
		if err != nil {
			return nil, fmt.Errorf("service/auth: refreshing account %s: %w", user.ID, err)
		}
		return updated, nil

	case errors.Is(err, apperror.ErrNotFound):
		account = &model.Account{
			DiscordUserID:      user.ID,
			DiscordUsername:    user.Username,
			DiscordDisplayName: user.GlobalName,
		}
		if err := s.accounts.Create(ctx, account); err != nil {
			return nil, fmt.Errorf("service/auth: creating account %s: %w", user.ID, err)
		}
		s.logger.Info("new account created", slog.String("discordUserId", user.ID))
		return account, nil

	default:
		return nil, fmt.Errorf("service/auth: looking up account %s: %w", user.ID, err)
	}
}

// BeginSwarmLink issues a CSRF state for the linkage flow. The handler has
// already required a valid session.
func (s *AuthService) BeginSwarmLink() (string, error) {
	state, err := s.states.Issue()
	if err != nil {
		return "", err
	}
	s.logger.Info("swarm linkage initiated")
	return s.foursquare.AuthURL(state), nil
}

// CompleteSwarmLink finishes the secondary-identity flow for the
// already-authenticated session and returns the updated account.
func (s *AuthService) CompleteSwarmLink(ctx context.Context, session *auth.SessionClaims, code, state string) (*model.Account, error) {
	if code == "" {
		return nil, apperror.ValidationFailed("code", "authorization code required")
	}
	if state == "" || !s.states.Consume(state) {
		return nil, apperror.ValidationFailed("state", "invalid or expired state parameter")
	}

	fsqUser, err := s.foursquare.Exchange(ctx, code)
	if err != nil {
		s.logger.Error("foursquare exchange failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", apperror.Upstream("foursquare", "linkage failed"), err)
	}

	now := time.Now().UTC()
	account, err := s.accounts.Update(ctx, session.DiscordUserID, model.AccountUpdate{
		FoursquareUserID: &fsqUser.ID,
		ConnectedAt:      &now,
	})
	if err != nil {
		return nil, fmt.Errorf("service/auth: linking swarm for %s: %w", session.DiscordUserID, err)
	}

	s.logger.Info("swarm account linked",
		slog.String("discordUserId", session.DiscordUserID),
		slog.String("foursquareUserId", fsqUser.ID),
	)
	return account, nil
}

// Disconnect removes the Swarm linkage from the session's account.
func (s *AuthService) Disconnect(ctx context.Context, discordUserID string) (*model.Account, error) {
	account, err := s.accounts.DisconnectSwarm(ctx, discordUserID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("swarm account disconnected", slog.String("discordUserId", discordUserID))
	return account, nil
}

// Profile returns the account backing a verified session.
func (s *AuthService) Profile(ctx context.Context, discordUserID string) (*model.Account, error) {
	return s.accounts.GetByDiscordID(ctx, discordUserID)
}
