package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/swarm-relay/internal/model"
	"github.com/sakif/swarm-relay/internal/service"
)

// WebhookHandler serves the Foursquare push ingress and the health check.
type WebhookHandler struct {
	webhooks *service.WebhookService
	db       service.Pinger
	logger   *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(webhooks *service.WebhookService, db service.Pinger, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, db: db, logger: logger}
}

// HandleCheckin receives a check-in push.
//
// HTTP: POST /webhook/checkin
//
// ALWAYS 200:
// Foursquare retries and alerts on non-2xx responses, so every internal
// outcome is acknowledged with 200 and a {success, message} body. The two
// exceptions: an unsupported content type gets 415 (the sender is
// misconfigured, not failing transiently), and a panic would surface
// through the Recoverer middleware as 500.
//
// CONTENT TYPES:
// Foursquare's push API defaults to form encoding with three fields —
// "user" (a JSON string), "checkin" (a JSON string), and "secret". JSON
// bodies carry the same envelope natively and are accepted for manual
// testing and mock senders.
func (h *WebhookHandler) HandleCheckin(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decodeEnvelope(w, r)
	if !ok {
		return
	}

	result := h.webhooks.HandleCheckin(r.Context(), payload)
	writeJSON(w, http.StatusOK, result)
}

// decodeEnvelope reads the webhook envelope from either encoding. Returns
// ok=false after writing a response itself.
func (h *WebhookHandler) decodeEnvelope(w http.ResponseWriter, r *http.Request) (*model.WebhookPayload, bool) {
	contentType := r.Header.Get("Content-Type")

	switch {
	case strings.Contains(contentType, "application/json"):
		var payload model.WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			h.logger.Warn("webhook body is not valid JSON", slog.String("error", err.Error()))
			writeJSON(w, http.StatusOK, service.WebhookResult{
				Success: false,
				Message: "Invalid JSON body",
			})
			return nil, false
		}
		return &payload, true

	case strings.Contains(contentType, "application/x-www-form-urlencoded"):
		if err := r.ParseForm(); err != nil {
			h.logger.Warn("webhook form body failed to parse", slog.String("error", err.Error()))
			writeJSON(w, http.StatusOK, service.WebhookResult{
				Success: false,
				Message: "Invalid form body",
			})
			return nil, false
		}

		payload := model.WebhookPayload{
			Checkin: r.PostFormValue("checkin"),
			Secret:  r.PostFormValue("secret"),
		}
		// The "user" form field is itself a JSON document.
		if err := json.Unmarshal([]byte(r.PostFormValue("user")), &payload.User); err != nil {
			h.logger.Warn("webhook user field is not valid JSON", slog.String("error", err.Error()))
			writeJSON(w, http.StatusOK, service.WebhookResult{
				Success: false,
				Message: "Invalid user field",
			})
			return nil, false
		}
		return &payload, true

	default:
		h.logger.Warn("webhook with unsupported content type", slog.String("contentType", contentType))
		writeJSON(w, http.StatusUnsupportedMediaType, ErrorResponse{
			Error:   "unsupported_media_type",
			Message: "expected application/json or application/x-www-form-urlencoded",
		})
		return nil, false
	}
}

// HandleHealth reports relay health.
//
// HTTP: GET /webhook/health
//
// Never fails the outer request: a broken directory degrades the status
// field instead of returning 5xx.
func (h *WebhookHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.webhooks.Health(h.db))
}
