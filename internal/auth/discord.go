package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

const discordAPIBase = "https://discord.com/api/v10"

// discordEndpoint is Discord's OAuth2 authorization-code endpoint pair.
var discordEndpoint = oauth2.Endpoint{
	AuthURL:  "https://discord.com/oauth2/authorize",
	TokenURL: discordAPIBase + "/oauth2/token",
}

// DiscordUser is the portion of Discord's /users/@me response we care
// about. Discord returns much more — we only unmarshal what we store.
type DiscordUser struct {
	ID         string `json:"id"`          // snowflake, served as a string
	Username   string `json:"username"`    // unique handle
	GlobalName string `json:"global_name"` // display name (may be empty)
}

// DiscordGuild is one entry of the user's guild list.
type DiscordGuild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DiscordProfile bundles everything the login flow needs from Discord:
// who the user is and which guilds they belong to. Both are fetched with
// the same access token inside one Exchange call, so the token itself
// never leaves this package.
type DiscordProfile struct {
	User   DiscordUser
	Guilds []DiscordGuild
}

// MemberOf reports whether the profile includes the given guild ID.
// Exact ID match — names are display-only and not trusted.
func (p *DiscordProfile) MemberOf(guildID string) bool {
	for _, g := range p.Guilds {
		if g.ID == guildID {
			return true
		}
	}
	return false
}

// DiscordProvider wraps golang.org/x/oauth2 for Discord's Authorization
// Code flow.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
// 1. We redirect the user to Discord's authorization endpoint.
// 2. The user approves; Discord redirects back with a short-lived "code".
// 3. We exchange the code for an access token (server-to-server, using the
//    client secret — the token never touches the browser).
// 4. We call /users/@me and /users/@me/guilds with the token.
//
// Scopes: "identify" (profile) + "guilds" (guild list, for the membership
// gate).
type DiscordProvider struct {
	config *oauth2.Config

	// apiBase is overridable in tests to point at an httptest server.
	apiBase string
}

// NewDiscordProvider creates a DiscordProvider.
// redirectURL must exactly match a redirect registered on the Discord
// application.
func NewDiscordProvider(clientID, clientSecret, redirectURL string) *DiscordProvider {
	return &DiscordProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"identify", "guilds"},
			Endpoint:     discordEndpoint,
		},
		apiBase: discordAPIBase,
	}
}

// AuthURL returns the Discord authorization URL carrying the given CSRF
// state token.
func (p *DiscordProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the flow: trades the authorization code for the
// user's profile and guild list.
func (p *DiscordProvider) Exchange(ctx context.Context, code string) (*DiscordProfile, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging Discord code: %w", err)
	}

	// oauth2.Config.Client returns an *http.Client that attaches the
	// bearer token to every request.
	client := p.config.Client(ctx, token)

	var user DiscordUser
	if err := p.getJSON(client, "/users/@me", &user); err != nil {
		return nil, err
	}
	if user.ID == "" || user.Username == "" {
		return nil, fmt.Errorf("auth: Discord returned an incomplete user profile")
	}

	var guilds []DiscordGuild
	if err := p.getJSON(client, "/users/@me/guilds", &guilds); err != nil {
		return nil, err
	}

	return &DiscordProfile{User: user, Guilds: guilds}, nil
}

func (p *DiscordProvider) getJSON(client *http.Client, path string, out any) error {
	resp, err := client.Get(p.apiBase + path)
	if err != nil {
		return fmt.Errorf("auth: calling Discord %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: Discord %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("auth: decoding Discord %s response: %w", path, err)
	}
	return nil
}
