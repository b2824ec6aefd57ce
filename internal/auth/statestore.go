package auth

import (
	"sync"
	"time"
)

// StateStore holds the short-lived (csrf state → PKCE verifier) entries of
// in-flight login attempts.
//
// It is an explicit expiring map rather than a store-native TTL: each entry
// records its own expiry, and Take is an atomic get-and-remove, which makes
// every entry single-use by construction. A state token can therefore be in
// exactly one of three lifecycle states — pending (stored, unexpired),
// consumed (removed by Take), or expired — and the latter two are
// indistinguishable to a caller, which is what the auth flow wants.
//
// Shared between the begin-login and complete-login handlers; safe for
// concurrent use.
type StateStore struct {
	mu      sync.Mutex
	entries map[string]stateEntry
	ttl     time.Duration

	now func() time.Time // swapped in tests to control expiry
}

type stateEntry struct {
	verifier string
	expires  time.Time
}

// NewStateStore creates a StateStore whose entries live for ttl.
func NewStateStore(ttl time.Duration) *StateStore {
	return &StateStore{
		entries: make(map[string]stateEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put stores the verifier under the given state token. Expired entries are
// swept opportunistically on each Put, so the map's size tracks the number of
// recent login attempts rather than growing without bound.
func (s *StateStore) Put(state, verifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, k)
		}
	}

	s.entries[state] = stateEntry{
		verifier: verifier,
		expires:  now.Add(s.ttl),
	}
}

// Take atomically retrieves and deletes the verifier for the given state
// token. Returns false for a token that was never stored, already taken, or
// expired — the three cases are not distinguished.
func (s *StateStore) Take(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[state]
	if !ok {
		return "", false
	}
	// Delete before the expiry check: an expired entry must be consumed too,
	// so a token never becomes usable again no matter what order its expiry
	// and its first Take land in.
	delete(s.entries, state)

	if s.now().After(e.expires) {
		return "", false
	}
	return e.verifier, true
}
