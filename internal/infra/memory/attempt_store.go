package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"intelliquiz-engine/internal/domain"
)

// AttemptStore keeps attempts in process memory, keyed by user.
type AttemptStore struct {
	mu       sync.RWMutex
	clock    func() time.Time
	attempts map[int64][]domain.Attempt
}

func NewAttemptStore() *AttemptStore {
	return NewAttemptStoreWithClock(time.Now)
}

// NewAttemptStoreWithClock allows deterministic timestamps in tests.
func NewAttemptStoreWithClock(now func() time.Time) *AttemptStore {
	return &AttemptStore{
		clock:    now,
		attempts: make(map[int64][]domain.Attempt),
	}
}

func (s *AttemptStore) SaveAttempt(_ context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	attempt.ID = uuid.NewString()
	attempt.CreatedAt = s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attempt.UserID] = append(s.attempts[attempt.UserID], attempt)
	return attempt, nil
}

func (s *AttemptStore) FindAttemptsByUser(_ context.Context, userID int64) ([]domain.Attempt, error) {
	return s.filter(userID, func(domain.Attempt) bool { return true }), nil
}

func (s *AttemptStore) FindAttemptsByUserAndTopic(_ context.Context, userID int64, topic string) ([]domain.Attempt, error) {
	return s.filter(userID, func(a domain.Attempt) bool { return a.Topic == topic }), nil
}

func (s *AttemptStore) DeleteAttemptsByUser(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.attempts[userID])
	delete(s.attempts, userID)
	return n, nil
}

func (s *AttemptStore) filter(userID int64, keep func(domain.Attempt) bool) []domain.Attempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Attempt, 0, len(s.attempts[userID]))
	for _, a := range s.attempts[userID] {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
