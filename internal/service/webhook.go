// Package service holds the business logic between the HTTP handlers and
// the repositories/providers.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/swarm-relay/internal/apperror"
	"github.com/sakif/swarm-relay/internal/metrics"
	"github.com/sakif/swarm-relay/internal/model"
	"github.com/sakif/swarm-relay/internal/notify"
	"github.com/sakif/swarm-relay/internal/repository"
)

// Notifier is what the webhook pipeline needs from the dispatcher.
// *notify.Dispatcher satisfies it; tests substitute a recording fake.
type Notifier interface {
	DeliverAsync(checkinID string, embed notify.Embed)
}

// WebhookResult is the uniform acknowledgment body for the webhook sender.
//
// Foursquare retries (and alerts) on non-2xx responses, so every internal
// outcome — bad secret, unknown user, parse failure, success — maps to
// HTTP 200 with only these two fields varying.
type WebhookResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WebhookService authenticates inbound check-in webhooks and drives them
// through parse → transform → async dispatch.
type WebhookService struct {
	accounts   repository.AccountRepository
	notifier   Notifier
	pushSecret []byte
	metrics    *metrics.Collector
	logger     *slog.Logger

	// debugUserID, when non-empty, re-enables the legacy single-tenant
	// mode: check-ins from exactly this Foursquare user are accepted
	// without a directory account. Explicit configuration, not ambient
	// state — it is injected here at construction and nowhere else.
	debugUserID string

	// touchTimeout bounds the best-effort last-checkin update goroutine.
	touchTimeout time.Duration
}

// NewWebhookService wires the webhook pipeline. debugUserID is normally
// empty; see config.DebugFoursquareUserID.
func NewWebhookService(
	accounts repository.AccountRepository,
	notifier Notifier,
	pushSecret string,
	debugUserID string,
	collector *metrics.Collector,
	logger *slog.Logger,
) *WebhookService {
	return &WebhookService{
		accounts:     accounts,
		notifier:     notifier,
		pushSecret:   []byte(pushSecret),
		debugUserID:  debugUserID,
		metrics:      collector,
		logger:       logger,
		touchTimeout: 10 * time.Second,
	}
}

// HandleCheckin runs the full pipeline for one webhook envelope.
//
// SYNCHRONOUS UP TO THE ACKNOWLEDGMENT:
// Secret verification, account resolution, and check-in parsing all finish
// before this returns — the payload is fully validated before any side
// effect is scheduled. Only the Discord delivery (and the last-checkin
// touch) run detached.
//
// The returned WebhookResult is ALWAYS safe to serialize with HTTP 200;
// err is non-nil only for logging and metrics, never to change the status.
func (s *WebhookService) HandleCheckin(ctx context.Context, payload *model.WebhookPayload) WebhookResult {
	s.metrics.RecordWebhookReceived()

	if err := payload.Validate(); err != nil {
		s.metrics.RecordWebhookRejected("invalid_payload")
		s.logger.Warn("webhook payload failed validation", slog.String("error", err.Error()))
		return WebhookResult{Success: false, Message: err.Error()}
	}

	account, err := s.authenticate(ctx, payload)
	if err != nil {
		// Reason stays internal; the sender learns only "Unauthorized".
		s.logger.Warn("webhook authentication failed",
			slog.String("foursquareUserId", payload.User.ID),
			slog.String("error", err.Error()),
		)
		return WebhookResult{Success: false, Message: "Unauthorized"}
	}

	checkin, err := model.ParseCheckin(payload.Checkin)
	if err != nil {
		s.metrics.RecordWebhookRejected("parse_failure")
		s.logger.Warn("checkin data failed to parse",
			slog.String("foursquareUserId", payload.User.ID),
			slog.String("error", err.Error()),
		)
		return WebhookResult{Success: false, Message: "Invalid checkin data"}
	}

	// Best-effort: refresh the account's last-checkin timestamp off the
	// request path. A directory hiccup here must not cost a notification.
	if account != nil {
		s.touchLastCheckin(account.DiscordUserID, checkin.ID)
	}

	s.notifier.DeliverAsync(checkin.ID, notify.BuildEmbed(checkin))
	s.metrics.RecordWebhookAccepted()

	s.logger.Info("checkin accepted",
		slog.String("checkinID", checkin.ID),
		slog.String("foursquareUserId", checkin.User.ID),
	)
	return WebhookResult{Success: true, Message: "Checkin received and processing"}
}

// authenticate verifies the envelope: shared push secret first, then
// resolution of the sending Foursquare user to a linked account.
//
// The secret comparison is constant-time over the full buffers.
// subtle.ConstantTimeCompare rejects unequal lengths immediately, which
// leaks only the length — acceptable, since the secret's length is not
// itself secret — and never leaks how long a matching prefix was.
//
// Returns the resolved account (nil in debug fallback mode) or an
// unauthorized error. There is no anonymous fallback: a check-in from a
// Foursquare user nobody linked is rejected.
func (s *WebhookService) authenticate(ctx context.Context, payload *model.WebhookPayload) (*model.Account, error) {
	if subtle.ConstantTimeCompare([]byte(payload.Secret), s.pushSecret) != 1 {
		s.metrics.RecordWebhookRejected("bad_secret")
		return nil, apperror.Unauthorized("push secret mismatch")
	}

	account, err := s.accounts.GetByFoursquareID(ctx, payload.User.ID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		s.metrics.RecordWebhookRejected("directory_error")
		return nil, err
	}

	if s.debugUserID != "" && payload.User.ID == s.debugUserID {
		// Single-tenant fallback. Loud on purpose: this path should not
		// be active in a normal multi-tenant deployment.
		s.logger.Warn("accepting checkin via debug fallback user",
			slog.String("foursquareUserId", payload.User.ID),
		)
		return nil, nil
	}

	s.metrics.RecordWebhookRejected("unknown_user")
	return nil, apperror.Unauthorized("no account linked to this Foursquare user")
}

func (s *WebhookService) touchLastCheckin(discordUserID, checkinID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.touchTimeout)
		defer cancel()

		if err := s.accounts.TouchLastCheckin(ctx, discordUserID); err != nil {
			s.logger.Warn("failed to update last checkin timestamp",
				slog.String("discordUserId", discordUserID),
				slog.String("checkinID", checkinID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// HealthStatus is the body of GET /webhook/health.
type HealthStatus struct {
	Status         string            `json:"status"`
	Timestamp      string            `json:"timestamp"`
	Authentication map[string]string `json:"authentication"`
	Directory      map[string]string `json:"directory"`
}

// Pinger is the slice of the storage layer the health check needs.
type Pinger interface {
	Ping() error
}

// Health reports relay health. A directory failure DEGRADES the status —
// it never fails the request, because the monitoring caller needs the body
// either way.
func (s *WebhookService) Health(db Pinger) HealthStatus {
	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Authentication: map[string]string{
			"mode": s.authMode(),
		},
		Directory: map[string]string{"status": "ok"},
	}

	if err := db.Ping(); err != nil {
		s.logger.Error("health check: directory ping failed", slog.String("error", err.Error()))
		status.Status = "degraded"
		status.Directory["status"] = "unavailable"
	}
	return status
}

func (s *WebhookService) authMode() string {
	if s.debugUserID != "" {
		return "multi-tenant+debug-fallback"
	}
	return "multi-tenant"
}
