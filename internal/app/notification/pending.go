package notification

import (
	"context"
	"sync"
	"time"

	"codejudge/internal/domain/model"
)

// Entry is a queued notification plus the time it was queued.
type Entry struct {
	Notification model.Notification `json:"notification"`
	EnqueuedAt   time.Time          `json:"enqueued_at"`
}

// PendingStore buffers notifications for users who are offline.
type PendingStore interface {
	// Enqueue appends e to the user's queue unless an entry with the same
	// dedup key is already queued, in which case it reports false.
	Enqueue(ctx context.Context, userID string, e Entry) (bool, error)
	// Drain removes and returns the user's queue in enqueue order.
	Drain(ctx context.Context, userID string) ([]Entry, error)
	// Sweep drops entries queued before olderThan and deletes empty queues.
	Sweep(ctx context.Context, olderThan time.Time) (int, error)
}

type MemoryPendingStore struct {
	mu     sync.Mutex
	queues map[string][]Entry
}

func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{queues: make(map[string][]Entry)}
}

func (s *MemoryPendingStore) Enqueue(ctx context.Context, userID string, e Entry) (bool, error) {
	key := e.Notification.DedupKey()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, queued := range s.queues[userID] {
		if queued.Notification.DedupKey() == key {
			return false, nil
		}
	}
	s.queues[userID] = append(s.queues[userID], e)
	return true, nil
}

func (s *MemoryPendingStore) Drain(ctx context.Context, userID string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.queues[userID]
	delete(s.queues, userID)
	return entries, nil
}

func (s *MemoryPendingStore) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, entries := range s.queues {
		kept := entries[:0]
		for _, e := range entries {
			if e.EnqueuedAt.Before(olderThan) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(s.queues, userID)
			continue
		}
		s.queues[userID] = kept
	}
	return removed, nil
}

// Len returns the number of entries queued for userID.
func (s *MemoryPendingStore) Len(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[userID])
}
