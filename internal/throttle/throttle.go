// Package throttle records when keyword rules last fired so repeated
// matches inside a rule's throttle window can be suppressed.
package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"connect-gateway/internal/policy"
)

// Store tracks the last firing time per rule key.
type Store interface {
	// LastFired reports when key last fired. ok is false if it never did.
	LastFired(ctx context.Context, key string) (at time.Time, ok bool, err error)
	// MarkFired records a firing. window is the rule's throttle; a store
	// that expires entries must keep them at least that long.
	MarkFired(ctx context.Context, key string, at time.Time, window time.Duration) error
}

// Key identifies one rule of one business channel.
func Key(business string, ch policy.Channel, ruleIndex int) string {
	return fmt.Sprintf("%s:%s:%d", business, ch, ruleIndex)
}

// MemoryStore keeps firing times in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	fired map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{fired: make(map[string]time.Time)}
}

func (s *MemoryStore) LastFired(_ context.Context, key string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.fired[key]
	return at, ok, nil
}

func (s *MemoryStore) MarkFired(_ context.Context, key string, at time.Time, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fired[key] = at
	return nil
}
