package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

func TestFoursquareProvider_AuthURL(t *testing.T) {
	p := NewFoursquareProvider("fsq-client", "fsq-secret", "https://relay.example.com/auth/swarm/callback")

	url := p.AuthURL("state-token-1")

	if !strings.HasPrefix(url, "https://foursquare.com/oauth2/authenticate") {
		t.Errorf("AuthURL = %q, want the authenticate endpoint", url)
	}
	if !strings.Contains(url, "state=state-token-1") {
		t.Errorf("AuthURL %q missing state", url)
	}
}

func TestFoursquareProvider_Exchange(t *testing.T) {
	var gotVersion string
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "fsq-token", "token_type": "Bearer"})
	})
	mux.HandleFunc("/users/self", func(w http.ResponseWriter, r *http.Request) {
		gotVersion = r.URL.Query().Get("v")
		json.NewEncoder(w).Encode(map[string]any{
			"response": map[string]any{
				"user": FoursquareUser{ID: "fsq-1", FirstName: "Alice", LastName: "Tan"},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := NewFoursquareProvider("fsq-client", "fsq-secret", "http://localhost/callback")
	p.apiBase = srv.URL
	p.config.Endpoint = oauth2.Endpoint{TokenURL: srv.URL + "/oauth2/access_token"}

	user, err := p.Exchange(context.Background(), "code-2")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}

	if user.ID != "fsq-1" || user.FirstName != "Alice" {
		t.Errorf("user = %+v", user)
	}
	if gotVersion != foursquareAPIVersion {
		t.Errorf("users/self called with v=%q, want %q", gotVersion, foursquareAPIVersion)
	}
}

func TestFoursquareProvider_ExchangeRejectsEmptyUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "fsq-token", "token_type": "Bearer"})
	})
	mux.HandleFunc("/users/self", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"response": map[string]any{}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := NewFoursquareProvider("fsq-client", "fsq-secret", "http://localhost/callback")
	p.apiBase = srv.URL
	p.config.Endpoint = oauth2.Endpoint{TokenURL: srv.URL + "/oauth2/access_token"}

	if _, err := p.Exchange(context.Background(), "code-2"); err == nil {
		t.Error("Exchange() = nil error for an empty user envelope")
	}
}
