package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"intelliquiz-engine/internal/domain"
)

// LeaderboardRanker projects the ledger into a ranked, read-only view.
//
// Ordering is points descending. Users with equal points keep whatever order the
// source returned them in; no further tie-break is applied.
type LeaderboardRanker struct {
	source LeaderboardSource
	now    func() time.Time
}

func NewLeaderboardRanker(source LeaderboardSource) *LeaderboardRanker {
	return &LeaderboardRanker{source: source, now: time.Now}
}

// TopUsers returns at most limit entries; fewer when the population is smaller.
func (r *LeaderboardRanker) TopUsers(ctx context.Context, limit int, role string) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", domain.ErrInvalidInput, limit)
	}
	users, err := r.source.TopUsersByPoints(ctx, limit, role)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].Points > users[j].Points })
	if len(users) > limit {
		users = users[:limit]
	}

	entries := make([]domain.LeaderboardEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, domain.LeaderboardEntry{
			Username: u.Username,
			Points:   u.Points,
			Badges:   u.Badges.Names(),
		})
	}
	return entries, nil
}

// Snapshot builds a timestamped global board for stream subscribers.
func (r *LeaderboardRanker) Snapshot(ctx context.Context, limit int) (domain.Leaderboard, error) {
	entries, err := r.TopUsers(ctx, limit, "")
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return domain.Leaderboard{Entries: entries, UpdatedAt: r.now()}, nil
}

// Invalidate drops cached boards when the source caches.
func (r *LeaderboardRanker) Invalidate(ctx context.Context) error {
	if inv, ok := r.source.(Invalidator); ok {
		return inv.Invalidate(ctx)
	}
	return nil
}
