package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"intelliquiz-engine/internal/app"
	"intelliquiz-engine/internal/domain"
)

// UserLedger is an in-memory implementation of app.UserLedger.
// A single mutex serialises writers, which makes UpdateStanding atomic per user.
type UserLedger struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]*domain.UserStanding
	order  []int64 // registration order, used as the stable tie order
}

func NewUserLedger() *UserLedger {
	return &UserLedger{users: make(map[int64]*domain.UserStanding)}
}

// CreateUser registers a new account with zero points and no badges.
func (l *UserLedger) CreateUser(_ context.Context, username string, roles ...string) (domain.UserStanding, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.UserStanding{}, fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, u := range l.users {
		if u.Username == username {
			return domain.UserStanding{}, fmt.Errorf("%w: username %q already taken", domain.ErrInvalidInput, username)
		}
	}
	l.nextID++
	standing := &domain.UserStanding{
		UserID:   l.nextID,
		Username: username,
		Roles:    append([]string(nil), roles...),
	}
	l.users[standing.UserID] = standing
	l.order = append(l.order, standing.UserID)
	return standing.Clone(), nil
}

func (l *UserLedger) LoadStanding(_ context.Context, userID int64) (domain.UserStanding, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	u, ok := l.users[userID]
	if !ok {
		return domain.UserStanding{}, fmt.Errorf("%w: id %d", domain.ErrUserNotFound, userID)
	}
	return u.Clone(), nil
}

func (l *UserLedger) FindByUsername(_ context.Context, username string) (domain.UserStanding, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, u := range l.users {
		if u.Username == username {
			return u.Clone(), nil
		}
	}
	return domain.UserStanding{}, fmt.Errorf("%w: %q", domain.ErrUserNotFound, username)
}

// SaveStanding overwrites points, badges and roles of an existing user.
func (l *UserLedger) SaveStanding(_ context.Context, standing domain.UserStanding) (domain.UserStanding, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.users[standing.UserID]; !ok {
		return domain.UserStanding{}, fmt.Errorf("%w: id %d", domain.ErrUserNotFound, standing.UserID)
	}
	stored := standing.Clone()
	l.users[standing.UserID] = &stored
	return stored.Clone(), nil
}

func (l *UserLedger) UpdateStanding(_ context.Context, userID int64, mutate app.StandingMutator) (domain.UserStanding, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.users[userID]
	if !ok {
		return domain.UserStanding{}, fmt.Errorf("%w: id %d", domain.ErrUserNotFound, userID)
	}
	next, err := mutate(current.Clone())
	if err != nil {
		return domain.UserStanding{}, err
	}
	next.UserID = userID
	stored := next.Clone()
	l.users[userID] = &stored
	return stored.Clone(), nil
}

// TopUsersByPoints orders by points descending; equal points keep registration order.
func (l *UserLedger) TopUsersByPoints(_ context.Context, limit int, role string) ([]domain.UserStanding, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.UserStanding, 0, len(l.order))
	for _, id := range l.order {
		u := l.users[id]
		if role != "" && !u.HasRole(role) {
			continue
		}
		out = append(out, u.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Points > out[j].Points })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
