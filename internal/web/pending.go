package web

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// handshakeTTL is how long a started handshake may wait for the provider
// callback.
const handshakeTTL = 10 * time.Minute

// handshake is the server-only state that must survive the redirect to the
// provider and back: the request-token secret and where to send the client
// afterwards.
type handshake struct {
	RequestSecret  string
	RedirectTarget string
	createdAt      time.Time
}

// pendingStore holds in-flight handshakes keyed by an opaque marker id.
type pendingStore struct {
	mu      sync.Mutex
	pending map[string]handshake
	ttl     time.Duration
}

func newPendingStore() *pendingStore {
	return &pendingStore{
		pending: make(map[string]handshake),
		ttl:     handshakeTTL,
	}
}

// Put stores a handshake and returns its marker id.
func (s *pendingStore) Put(hs handshake) string {
	id := uuid.NewString()
	hs.createdAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	// lazy cleanup
	for k, v := range s.pending {
		if time.Since(v.createdAt) > s.ttl {
			delete(s.pending, k)
		}
	}
	s.pending[id] = hs
	return id
}

// Take removes and returns the handshake for a marker id. Expired or unknown
// markers report false.
func (s *pendingStore) Take(id string) (handshake, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hs, ok := s.pending[id]
	if !ok {
		return handshake{}, false
	}
	delete(s.pending, id)

	if time.Since(hs.createdAt) > s.ttl {
		return handshake{}, false
	}
	return hs, true
}
