package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// stateTTL is how long an issued OAuth state stays redeemable. Long
	// enough for a human to click through the provider's consent screen,
	// short enough to limit the replay window.
	stateTTL = 10 * time.Minute

	// stateSweepInterval is how often abandoned states are purged. Users
	// who bounce off the consent screen never call Consume, so the sweep
	// is what bounds memory growth.
	stateSweepInterval = 5 * time.Minute

	stateBytes = 32 // 256 bits of entropy
)

// StateStore issues and redeems one-shot CSRF state tokens for the OAuth
// flows.
//
// WHY SERVER-SIDE STATE (not a state cookie)?
// Storing the state server-side means a callback can only succeed if THIS
// process issued the state recently — a forged callback with an arbitrary
// state value fails regardless of what the attacker controls client-side.
// The store is in-memory by design: single-instance deployment is an
// explicit assumption, and horizontal scaling would need this externalized.
//
// All operations are single map reads/writes under one mutex; the sweep
// deleting a key that a concurrent Consume already removed is a no-op.
type StateStore struct {
	mu     sync.Mutex
	states map[string]time.Time // token → issue time
	logger *slog.Logger
	done   chan struct{}
	once   sync.Once

	// injectable for TTL tests; defaults to time.Now.
	now func() time.Time
}

// NewStateStore creates a StateStore and starts its background sweep.
// Call Close when the server shuts down.
func NewStateStore(logger *slog.Logger) *StateStore {
	s := &StateStore{
		states: make(map[string]time.Time),
		logger: logger,
		done:   make(chan struct{}),
		now:    time.Now,
	}
	go s.sweepLoop(stateSweepInterval)
	return s
}

// Issue creates a cryptographically random state token and records when it
// was issued.
func (s *StateStore) Issue() (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generating oauth state: %w", err)
	}
	token := hex.EncodeToString(buf)

	s.mu.Lock()
	s.states[token] = s.now()
	s.mu.Unlock()

	s.logger.Debug("oauth state issued")
	return token, nil
}

// Consume redeems a state token. It returns true iff the token exists and
// is within its TTL. The entry is deleted on EVERY attempt — success,
// expiry, or not — so replaying a consumed token always fails.
func (s *StateStore) Consume(token string) bool {
	s.mu.Lock()
	issuedAt, ok := s.states[token]
	delete(s.states, token)
	s.mu.Unlock()

	if !ok {
		// Either never issued or already swept. Same answer either way.
		s.logger.Warn("oauth state not found")
		return false
	}
	if s.now().Sub(issuedAt) > stateTTL {
		s.logger.Debug("oauth state expired")
		return false
	}

	s.logger.Debug("oauth state consumed")
	return true
}

// Close stops the background sweep. Safe to call more than once.
func (s *StateStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *StateStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

// sweep removes every entry older than the TTL.
func (s *StateStore) sweep() {
	now := s.now()

	s.mu.Lock()
	removed := 0
	for token, issuedAt := range s.states {
		if now.Sub(issuedAt) > stateTTL {
			delete(s.states, token)
			removed++
		}
	}
	remaining := len(s.states)
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Debug("swept expired oauth states",
			slog.Int("removed", removed),
			slog.Int("remaining", remaining),
		)
	}
}
