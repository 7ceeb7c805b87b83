package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

const (
	foursquareAPIBase = "https://api.foursquare.com/v2"

	// foursquareAPIVersion pins the versioned API date Foursquare requires
	// on every call.
	foursquareAPIVersion = "20231010"
)

// foursquareEndpoint is Foursquare's OAuth2 endpoint pair. Note the
// authorize URL is "authenticate" — Foursquare's streamlined variant that
// skips the consent screen for returning users.
var foursquareEndpoint = oauth2.Endpoint{
	AuthURL:  "https://foursquare.com/oauth2/authenticate",
	TokenURL: "https://foursquare.com/oauth2/access_token",
}

// FoursquareUser is the slice of the users/self profile we keep.
type FoursquareUser struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// foursquareSelfResponse mirrors the v2 API envelope: the payload of every
// call is nested under "response".
type foursquareSelfResponse struct {
	Response struct {
		User FoursquareUser `json:"user"`
	} `json:"response"`
}

// FoursquareProvider wraps golang.org/x/oauth2 for the Foursquare (Swarm)
// Authorization Code flow — the secondary-identity linkage.
//
// Foursquare has no scope parameter; access is all-or-nothing per app.
type FoursquareProvider struct {
	config *oauth2.Config

	// apiBase is overridable in tests.
	apiBase string
}

// NewFoursquareProvider creates a FoursquareProvider. redirectURL must
// exactly match the redirect URI registered on the Foursquare app.
func NewFoursquareProvider(clientID, clientSecret, redirectURL string) *FoursquareProvider {
	return &FoursquareProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     foursquareEndpoint,
		},
		apiBase: foursquareAPIBase,
	}
}

// AuthURL returns the Foursquare authorization URL carrying the CSRF state.
func (p *FoursquareProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange trades the authorization code for the linked Foursquare user's
// profile.
func (p *FoursquareProvider) Exchange(ctx context.Context, code string) (*FoursquareUser, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging Foursquare code: %w", err)
	}

	client := p.config.Client(ctx, token)

	url := fmt.Sprintf("%s/users/self?v=%s", p.apiBase, foursquareAPIVersion)
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("auth: calling Foursquare users/self: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Foursquare users/self returned status %d", resp.StatusCode)
	}

	var envelope foursquareSelfResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("auth: decoding Foursquare users/self response: %w", err)
	}

	user := envelope.Response.User
	if user.ID == "" {
		return nil, fmt.Errorf("auth: Foursquare returned an incomplete user profile")
	}
	return &user, nil
}
