package service

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sakif/swarm-relay/internal/apperror"
	"github.com/sakif/swarm-relay/internal/auth"
	"github.com/sakif/swarm-relay/internal/model"
	"github.com/sakif/swarm-relay/internal/notify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// fakeAccountRepo is an in-memory AccountRepository keyed by Discord ID.
// Setting failWith makes every method return that error.
type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*model.Account
	failWith error

	// touched receives the Discord ID of every TouchLastCheckin call so
	// tests can wait for the detached goroutine.
	touched chan string
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{
		accounts: make(map[string]*model.Account),
		touched:  make(chan string, 8),
	}
}

func (f *fakeAccountRepo) put(a *model.Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[a.DiscordUserID] = a
}

func (f *fakeAccountRepo) GetByDiscordID(ctx context.Context, discordUserID string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	if a, ok := f.accounts[discordUserID]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, apperror.NotFound("account", discordUserID)
}

func (f *fakeAccountRepo) GetByFoursquareID(ctx context.Context, foursquareUserID string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, a := range f.accounts {
		if a.FoursquareUserID == foursquareUserID && foursquareUserID != "" {
			copied := *a
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("account", foursquareUserID)
}

func (f *fakeAccountRepo) Create(ctx context.Context, account *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	now := time.Now().UTC()
	account.ID = "fake-" + account.DiscordUserID
	account.CreatedAt = now
	account.UpdatedAt = now
	copied := *account
	f.accounts[account.DiscordUserID] = &copied
	return nil
}

func (f *fakeAccountRepo) Update(ctx context.Context, discordUserID string, updates model.AccountUpdate) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	a, ok := f.accounts[discordUserID]
	if !ok {
		return nil, apperror.NotFound("account", discordUserID)
	}
	if updates.DiscordUsername != nil {
		a.DiscordUsername = *updates.DiscordUsername
	}
	if updates.DiscordDisplayName != nil {
		a.DiscordDisplayName = *updates.DiscordDisplayName
	}
	if updates.FoursquareUserID != nil {
		a.FoursquareUserID = *updates.FoursquareUserID
	}
	if updates.ConnectedAt != nil {
		t := updates.ConnectedAt.UTC()
		a.ConnectedAt = &t
	}
	a.UpdatedAt = time.Now().UTC()
	copied := *a
	return &copied, nil
}

func (f *fakeAccountRepo) DisconnectSwarm(ctx context.Context, discordUserID string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	a, ok := f.accounts[discordUserID]
	if !ok {
		return nil, apperror.NotFound("account", discordUserID)
	}
	a.FoursquareUserID = ""
	a.ConnectedAt = nil
	a.LastCheckinAt = nil
	a.UpdatedAt = time.Now().UTC()
	copied := *a
	return &copied, nil
}

func (f *fakeAccountRepo) TouchLastCheckin(ctx context.Context, discordUserID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	a, ok := f.accounts[discordUserID]
	if !ok {
		return apperror.NotFound("account", discordUserID)
	}
	now := time.Now().UTC()
	a.LastCheckinAt = &now
	a.UpdatedAt = now
	select {
	case f.touched <- discordUserID:
	default:
	}
	return nil
}

// fakeNotifier records DeliverAsync calls.
type fakeNotifier struct {
	mu     sync.Mutex
	embeds []notify.Embed
	ids    []string
}

func (f *fakeNotifier) DeliverAsync(checkinID string, embed notify.Embed) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, checkinID)
	f.embeds = append(f.embeds, embed)
}

func (f *fakeNotifier) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ids)
}

// fakeDiscordProvider answers Exchange with a canned profile or error.
type fakeDiscordProvider struct {
	profile *auth.DiscordProfile
	err     error

	lastCode string
}

func (f *fakeDiscordProvider) AuthURL(state string) string {
	return "https://discord.example/oauth?state=" + state
}

func (f *fakeDiscordProvider) Exchange(ctx context.Context, code string) (*auth.DiscordProfile, error) {
	f.lastCode = code
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

// fakeFoursquareProvider answers Exchange with a canned user or error.
type fakeFoursquareProvider struct {
	user *auth.FoursquareUser
	err  error
}

func (f *fakeFoursquareProvider) AuthURL(state string) string {
	return "https://foursquare.example/oauth?state=" + state
}

func (f *fakeFoursquareProvider) Exchange(ctx context.Context, code string) (*auth.FoursquareUser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func newTestTokenService(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService("test-session-secret-32-characters!", testLogger())
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func newTestStateStore(t *testing.T) *auth.StateStore {
	t.Helper()
	s := auth.NewStateStore(testLogger())
	t.Cleanup(s.Close)
	return s
}
