// Package notify builds Discord notifications from check-in events and
// delivers them to a Discord webhook, decoupled from the inbound request.
package notify

import (
	"strconv"
	"strings"
	"time"

	"github.com/sakif/swarm-relay/internal/model"
)

// embedColor is Foursquare brand orange.
const embedColor = 0xFF6600

// Embed is a Discord rich embed. Optional fields carry omitempty — Discord
// expects absent keys, not nulls.
type Embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Timestamp   string       `json:"timestamp,omitempty"` // ISO-8601
	Fields      []EmbedField `json:"fields,omitempty"`
}

// EmbedField is one name/value row of an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// WebhookMessage is the JSON body posted to a Discord webhook URL.
type WebhookMessage struct {
	Embeds []Embed `json:"embeds"`
}

// BuildEmbed maps a parsed check-in onto the Discord embed the channel
// expects. This is a pure function: same check-in, same embed.
//
// FIELD ORDER IS PART OF THE CONTRACT. The receiving channel renders the
// rows in exactly this order, and each row appears only when its data is
// present:
//  1. User     — always
//  2. Venue    — when the check-in has a venue
//  3. Location — when the venue location formats to a non-empty string
//  4. Score    — when the check-in has a score
func BuildEmbed(checkin *model.Checkin) Embed {
	fields := []EmbedField{
		{Name: "👤 User", Value: checkin.User.DisplayName(), Inline: true},
	}

	if checkin.Venue != nil {
		fields = append(fields, EmbedField{
			Name:   "📍 Venue",
			Value:  checkin.Venue.Name,
			Inline: true,
		})

		if loc := FormatLocation(checkin.Venue.Location); loc != "" {
			fields = append(fields, EmbedField{
				Name:  "🗺️ Location",
				Value: loc,
			})
		}
	}

	if checkin.Score != nil {
		fields = append(fields, EmbedField{
			Name:   "🎯 Score",
			Value:  formatScore(checkin.Score.Total),
			Inline: true,
		})
	}

	description := checkin.Shout
	if description == "" {
		description = "Checked in!"
	}

	return Embed{
		Title:       "🏃‍♂️ New Swarm Check-in",
		Description: description,
		Color:       embedColor,
		Timestamp:   time.Unix(checkin.CreatedAt, 0).UTC().Format(time.RFC3339),
		Fields:      fields,
	}
}

// FormatLocation renders a venue location as "address, city, country",
// skipping whichever parts are absent. Returns "" when nothing is set —
// the caller omits the row entirely.
func FormatLocation(loc *model.CheckinLocation) string {
	if loc == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	if loc.Address != "" {
		parts = append(parts, loc.Address)
	}
	if loc.City != "" {
		parts = append(parts, loc.City)
	}
	if loc.Country != "" {
		parts = append(parts, loc.Country)
	}
	return strings.Join(parts, ", ")
}

func formatScore(total int64) string {
	return strconv.FormatInt(total, 10) + " points"
}
