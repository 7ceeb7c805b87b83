package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/swarm-relay/internal/metrics"
	"github.com/sakif/swarm-relay/internal/model"
)

const testPushSecret = "push-secret-123"

func newTestWebhookService(repo *fakeAccountRepo, notifier *fakeNotifier, debugUserID string) *WebhookService {
	return NewWebhookService(repo, notifier, testPushSecret, debugUserID, metrics.NewCollector(), testLogger())
}

func linkedAccount(discordID, foursquareID string) *model.Account {
	now := time.Now().UTC()
	a := &model.Account{
		ID:               "acc-" + discordID,
		DiscordUserID:    discordID,
		DiscordUsername:  "alice",
		FoursquareUserID: foursquareID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if foursquareID != "" {
		a.ConnectedAt = &now
	}
	return a
}

func validEnvelope() *model.WebhookPayload {
	return &model.WebhookPayload{
		User:    model.CheckinUser{ID: "fsq-1", FirstName: "Alice"},
		Checkin: `{"id": "chk-1", "createdAt": 1717243200, "type": "checkin", "user": {"id": "fsq-1", "firstName": "Alice"}}`,
		Secret:  testPushSecret,
	}
}

func TestHandleCheckin_LinkedUserAccepted(t *testing.T) {
	repo := newFakeAccountRepo()
	repo.put(linkedAccount("discord-1", "fsq-1"))
	notifier := &fakeNotifier{}
	svc := newTestWebhookService(repo, notifier, "")

	result := svc.HandleCheckin(context.Background(), validEnvelope())

	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}
	if notifier.calls() != 1 {
		t.Fatalf("DeliverAsync calls = %d, want 1", notifier.calls())
	}
	notifier.mu.Lock()
	if notifier.ids[0] != "chk-1" {
		t.Errorf("dispatched checkin id = %q, want chk-1", notifier.ids[0])
	}
	notifier.mu.Unlock()

	// The last-checkin touch runs detached; wait for it.
	select {
	case id := <-repo.touched:
		if id != "discord-1" {
			t.Errorf("touched account = %q, want discord-1", id)
		}
	case <-time.After(2 * time.Second):
		t.Error("last-checkin touch never happened")
	}
}

func TestHandleCheckin_WrongSecret(t *testing.T) {
	repo := newFakeAccountRepo()
	repo.put(linkedAccount("discord-1", "fsq-1"))
	notifier := &fakeNotifier{}
	svc := newTestWebhookService(repo, notifier, "")

	payload := validEnvelope()
	payload.Secret = "wrong"
	result := svc.HandleCheckin(context.Background(), payload)

	if result.Success {
		t.Error("result.Success = true with a wrong secret")
	}
	if result.Message != "Unauthorized" {
		t.Errorf("Message = %q, want the uniform %q", result.Message, "Unauthorized")
	}
	if notifier.calls() != 0 {
		t.Errorf("DeliverAsync calls = %d, want 0", notifier.calls())
	}
}

func TestHandleCheckin_UnknownUser(t *testing.T) {
	repo := newFakeAccountRepo()
	notifier := &fakeNotifier{}
	svc := newTestWebhookService(repo, notifier, "")

	result := svc.HandleCheckin(context.Background(), validEnvelope())

	if result.Success {
		t.Error("result.Success = true for an unlinked Foursquare user")
	}
	if result.Message != "Unauthorized" {
		t.Errorf("Message = %q, want %q", result.Message, "Unauthorized")
	}
	if notifier.calls() != 0 {
		t.Errorf("DeliverAsync calls = %d, want 0", notifier.calls())
	}
}

func TestHandleCheckin_DebugFallbackUser(t *testing.T) {
	repo := newFakeAccountRepo()
	notifier := &fakeNotifier{}
	svc := newTestWebhookService(repo, notifier, "fsq-1")

	result := svc.HandleCheckin(context.Background(), validEnvelope())

	if !result.Success {
		t.Fatalf("result = %+v, want success via debug fallback", result)
	}
	if notifier.calls() != 1 {
		t.Errorf("DeliverAsync calls = %d, want 1", notifier.calls())
	}
	// No account exists, so nothing must be touched.
	select {
	case id := <-repo.touched:
		t.Errorf("unexpected last-checkin touch for %q", id)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandleCheckin_DebugFallbackOnlyForConfiguredUser(t *testing.T) {
	repo := newFakeAccountRepo()
	notifier := &fakeNotifier{}
	svc := newTestWebhookService(repo, notifier, "fsq-other")

	result := svc.HandleCheckin(context.Background(), validEnvelope())

	if result.Success {
		t.Error("result.Success = true for a user other than the debug fallback")
	}
}

func TestHandleCheckin_DirectoryFailure(t *testing.T) {
	repo := newFakeAccountRepo()
	repo.failWith = errors.New("disk on fire")
	notifier := &fakeNotifier{}
	svc := newTestWebhookService(repo, notifier, "")

	result := svc.HandleCheckin(context.Background(), validEnvelope())

	if result.Success {
		t.Error("result.Success = true despite a directory failure")
	}
	if notifier.calls() != 0 {
		t.Errorf("DeliverAsync calls = %d, want 0", notifier.calls())
	}
}

func TestHandleCheckin_MalformedCheckinData(t *testing.T) {
	repo := newFakeAccountRepo()
	repo.put(linkedAccount("discord-1", "fsq-1"))
	notifier := &fakeNotifier{}
	svc := newTestWebhookService(repo, notifier, "")

	payload := validEnvelope()
	payload.Checkin = `{"not": "a checkin"}`
	result := svc.HandleCheckin(context.Background(), payload)

	if result.Success {
		t.Error("result.Success = true for unparseable checkin data")
	}
	if result.Message != "Invalid checkin data" {
		t.Errorf("Message = %q", result.Message)
	}
	if notifier.calls() != 0 {
		t.Errorf("DeliverAsync calls = %d, want 0", notifier.calls())
	}
}

func TestHandleCheckin_IncompleteEnvelope(t *testing.T) {
	repo := newFakeAccountRepo()
	notifier := &fakeNotifier{}
	svc := newTestWebhookService(repo, notifier, "")

	payload := validEnvelope()
	payload.Secret = ""
	result := svc.HandleCheckin(context.Background(), payload)

	if result.Success {
		t.Error("result.Success = true for an envelope without a secret")
	}
	if notifier.calls() != 0 {
		t.Errorf("DeliverAsync calls = %d, want 0", notifier.calls())
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping() error { return p.err }

func TestHealth_Healthy(t *testing.T) {
	svc := newTestWebhookService(newFakeAccountRepo(), &fakeNotifier{}, "")

	status := svc.Health(fakePinger{})

	if status.Status != "healthy" {
		t.Errorf("Status = %q", status.Status)
	}
	if status.Directory["status"] != "ok" {
		t.Errorf("Directory = %v", status.Directory)
	}
	if status.Authentication["mode"] != "multi-tenant" {
		t.Errorf("Authentication = %v", status.Authentication)
	}
}

func TestHealth_DegradedNotFailing(t *testing.T) {
	svc := newTestWebhookService(newFakeAccountRepo(), &fakeNotifier{}, "fsq-debug")

	status := svc.Health(fakePinger{err: errors.New("locked")})

	if status.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", status.Status)
	}
	if status.Directory["status"] != "unavailable" {
		t.Errorf("Directory = %v", status.Directory)
	}
	if status.Authentication["mode"] != "multi-tenant+debug-fallback" {
		t.Errorf("Authentication = %v", status.Authentication)
	}
}
