// Package presence tracks which users hold a live realtime connection.
package presence

import (
	"context"
	"sync"
	"time"
)

// Tracker records liveness of users. Touch refreshes a user's TTL,
// Remove drops this instance's claim.
type Tracker interface {
	Touch(ctx context.Context, userID uint) error
	Remove(ctx context.Context, userID uint) error
	IsOnline(ctx context.Context, userID uint) (bool, error)
	Online(ctx context.Context, userIDs []uint) (map[uint]bool, error)
}

// MemoryTracker is a single instance Tracker
type MemoryTracker struct {
	mu      sync.Mutex
	ttl     time.Duration
	expires map[uint]time.Time
	now     func() time.Time
}

func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	return &MemoryTracker{ttl: ttl, expires: make(map[uint]time.Time), now: time.Now}
}

func (t *MemoryTracker) Touch(_ context.Context, userID uint) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expires[userID] = t.now().Add(t.ttl)
	return nil
}

func (t *MemoryTracker) Remove(_ context.Context, userID uint) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.expires, userID)
	return nil
}

func (t *MemoryTracker) IsOnline(_ context.Context, userID uint) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.onlineLocked(userID), nil
}

func (t *MemoryTracker) Online(_ context.Context, userIDs []uint) (map[uint]bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := make(map[uint]bool, len(userIDs))
	for _, id := range userIDs {
		result[id] = t.onlineLocked(id)
	}
	return result, nil
}

func (t *MemoryTracker) onlineLocked(userID uint) bool {
	exp, ok := t.expires[userID]
	if !ok {
		return false
	}
	if !t.now().Before(exp) {
		delete(t.expires, userID)
		return false
	}
	return true
}
