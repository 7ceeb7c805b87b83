// Package model defines the data structures used throughout the application.
package model

import "time"

// Account links a Discord identity to an optional Foursquare identity.
//
// The Discord user ID is the primary external identity: it is set once at
// first login and never changes. The Foursquare user ID is attached later
// through the Swarm linkage flow, and at most one account may carry any
// given Foursquare ID — the webhook pipeline resolves inbound check-ins by
// that field, so the lookup must be unique.
//
// WHY STRING IDs?
// Discord snowflakes are 64-bit integers but the API serves them as strings
// (JavaScript clients can't hold them losslessly as numbers), and Foursquare
// user IDs are opaque strings. We store both verbatim and generate our own
// internal ID (xid) so primary keys aren't tied to either provider's scheme.
//
// WHY *time.Time FOR ConnectedAt / LastCheckinAt?
// Both are genuinely absent until the corresponding event happens. A nil
// pointer is "never", which encodes to an omitted JSON field — the
// "optional fields omitted rather than null" convention the Discord side
// expects.
type Account struct {
	ID                 string     `json:"id"                           db:"id"`
	DiscordUserID      string     `json:"discordUserId"                db:"discord_user_id"`
	DiscordUsername    string     `json:"discordUsername"              db:"discord_username"`
	DiscordDisplayName string     `json:"discordDisplayName,omitempty" db:"discord_display_name"`
	FoursquareUserID   string     `json:"foursquareUserId,omitempty"   db:"foursquare_user_id"`
	ConnectedAt        *time.Time `json:"connectedAt,omitempty"        db:"connected_at"`
	CreatedAt          time.Time  `json:"createdAt"                    db:"created_at"`
	UpdatedAt          time.Time  `json:"updatedAt"                    db:"updated_at"`
	LastCheckinAt      *time.Time `json:"lastCheckinAt,omitempty"      db:"last_checkin_at"`
}

// AccountUpdate is a partial update applied to an existing Account.
// Nil fields are left untouched. The repository stamps UpdatedAt itself —
// callers never control timestamps.
type AccountUpdate struct {
	DiscordUsername    *string
	DiscordDisplayName *string
	FoursquareUserID   *string
	ConnectedAt        *time.Time
}
