package model

import (
	"encoding/json"
	"fmt"

	"github.com/sakif/swarm-relay/internal/apperror"
)

// WebhookPayload is the envelope Foursquare pushes to our webhook endpoint.
//
// The checkin itself arrives as an OPAQUE JSON STRING inside the envelope,
// not as a nested object — that's how Foursquare's push API delivers it.
// It stays a string here and is decoded separately by ParseCheckin, after
// the envelope secret has been verified.
type WebhookPayload struct {
	User    CheckinUser `json:"user"`
	Checkin string      `json:"checkin"`
	Secret  string      `json:"secret"`
}

// Validate checks the envelope has everything the pipeline needs.
func (p *WebhookPayload) Validate() error {
	if p.User.ID == "" {
		return apperror.ValidationFailed("user.id", "webhook payload missing user id")
	}
	if p.User.FirstName == "" {
		return apperror.ValidationFailed("user.firstName", "webhook payload missing user first name")
	}
	if p.Checkin == "" {
		return apperror.ValidationFailed("checkin", "webhook payload missing checkin data")
	}
	if p.Secret == "" {
		return apperror.ValidationFailed("secret", "webhook payload missing push secret")
	}
	return nil
}

// CheckinUser identifies the Foursquare user a check-in belongs to.
type CheckinUser struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName,omitempty"`
}

// CheckinLocation is the subset of venue location data we render.
type CheckinLocation struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
	City    string  `json:"city,omitempty"`
	Country string  `json:"country,omitempty"`
}

// CheckinVenue is the venue a check-in happened at.
type CheckinVenue struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Location *CheckinLocation `json:"location,omitempty"`
}

// CheckinScore carries the points awarded for a check-in.
type CheckinScore struct {
	Total  int64          `json:"total"`
	Scores []CheckinPoint `json:"scores"`
}

// CheckinPoint is one line item of a check-in score.
type CheckinPoint struct {
	Points  int64  `json:"points"`
	Message string `json:"message"`
	Icon    string `json:"icon,omitempty"`
}

// Checkin is a fully parsed Swarm check-in event.
//
// Only ID, CreatedAt, and User.ID are guaranteed; everything else is
// optional. The struct is immutable once parsed — it's used exactly once
// to build a notification and then discarded, never persisted.
type Checkin struct {
	ID        string        `json:"id"`
	CreatedAt int64         `json:"createdAt"` // epoch seconds
	Type      string        `json:"type"`      // always "checkin"
	Shout     string        `json:"shout,omitempty"`
	User      CheckinUser   `json:"user"`
	Venue     *CheckinVenue `json:"venue,omitempty"`
	Score     *CheckinScore `json:"score,omitempty"`
}

// ParseCheckin decodes the opaque checkin JSON from a webhook envelope.
//
// This fails closed: any structural mismatch — missing required fields,
// wrong types (json.Unmarshal rejects those), or the wrong "type"
// discriminator — returns a validation error and aborts webhook
// processing. Parsing is synchronous and completes before the webhook is
// acknowledged, so the sender's payload is fully validated before any
// asynchronous side effect is scheduled.
func ParseCheckin(raw string) (*Checkin, error) {
	var c Checkin
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("%w: %v",
			apperror.ValidationFailed("checkin", "checkin data is not valid JSON"), err)
	}

	if c.ID == "" {
		return nil, apperror.ValidationFailed("checkin.id", "checkin missing id")
	}
	if c.CreatedAt == 0 {
		return nil, apperror.ValidationFailed("checkin.createdAt", "checkin missing createdAt")
	}
	if c.Type != "checkin" {
		return nil, apperror.ValidationFailed("checkin.type",
			fmt.Sprintf("unexpected checkin type %q", c.Type))
	}
	if c.User.ID == "" {
		return nil, apperror.ValidationFailed("checkin.user.id", "checkin missing user id")
	}
	if c.Venue != nil && c.Venue.Name == "" {
		return nil, apperror.ValidationFailed("checkin.venue.name", "checkin venue missing name")
	}

	return &c, nil
}

// DisplayName renders the check-in user's full name ("First" or "First Last").
func (u CheckinUser) DisplayName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
