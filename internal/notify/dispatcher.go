package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/swarm-relay/internal/metrics"
)

// Dispatcher posts notifications to a Discord webhook URL.
//
// FIRE AND FORGET:
// The webhook handler must acknowledge Foursquare before Discord has been
// reached — a slow or down Discord must never delay the 200 or trigger
// Foursquare's redelivery. DeliverAsync therefore runs on a detached
// goroutine with its own background context; the outcome is logged and
// counted, never propagated. There is no retry and no queue: Foursquare
// owns redelivery semantics, we don't duplicate them.
type Dispatcher struct {
	webhookURL string
	client     *http.Client
	logger     *slog.Logger
	metrics    *metrics.Collector
}

// NewDispatcher creates a Dispatcher for the given Discord webhook URL.
func NewDispatcher(webhookURL string, logger *slog.Logger, collector *metrics.Collector) *Dispatcher {
	return &Dispatcher{
		webhookURL: webhookURL,
		// The only timeout on delivery is the client's own — a hung
		// connection must not leak goroutines forever.
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
		metrics: collector,
	}
}

// DeliverAsync schedules delivery of the embed and returns immediately.
// checkinID is carried for log correlation only.
func (d *Dispatcher) DeliverAsync(checkinID string, embed Embed) {
	go func() {
		start := time.Now()
		err := d.deliver(context.Background(), embed)
		if err != nil {
			d.metrics.RecordDispatchFailure()
			d.logger.Error("failed to deliver checkin notification",
				slog.String("checkinID", checkinID),
				slog.String("error", err.Error()),
			)
			return
		}
		d.metrics.RecordDispatchSuccess(time.Since(start))
		d.logger.Info("checkin notification delivered",
			slog.String("checkinID", checkinID),
			slog.Duration("duration", time.Since(start)),
		)
	}()
}

// deliver performs the actual HTTP POST. Split out so tests can call it
// synchronously against an httptest server.
func (d *Dispatcher) deliver(ctx context.Context, embed Embed) error {
	body, err := json.Marshal(WebhookMessage{Embeds: []Embed{embed}})
	if err != nil {
		return fmt.Errorf("notify: encoding webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: posting to Discord webhook: %w", err)
	}
	defer resp.Body.Close()

	// Discord answers 204 on success; treat any 2xx as delivered.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notify: Discord webhook returned status %d", resp.StatusCode)
	}
	return nil
}
