package app

import (
	"context"

	"intelliquiz-engine/internal/domain"
)

// AttemptStore persists scored attempts (in-memory, Postgres, etc).
type AttemptStore interface {
	// SaveAttempt stores a new attempt and returns it with its store-assigned ID and CreatedAt.
	SaveAttempt(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error)
	// FindAttemptsByUser returns the user's attempts ordered oldest first.
	FindAttemptsByUser(ctx context.Context, userID int64) ([]domain.Attempt, error)
	FindAttemptsByUserAndTopic(ctx context.Context, userID int64, topic string) ([]domain.Attempt, error)
	// DeleteAttemptsByUser removes a user's attempt history and reports how many rows went away.
	DeleteAttemptsByUser(ctx context.Context, userID int64) (int, error)
}

// StandingMutator computes the next standing from the current one.
type StandingMutator func(current domain.UserStanding) (domain.UserStanding, error)

// UserLedger stores per-user points, badges and display identity.
type UserLedger interface {
	LoadStanding(ctx context.Context, userID int64) (domain.UserStanding, error)
	FindByUsername(ctx context.Context, username string) (domain.UserStanding, error)
	SaveStanding(ctx context.Context, standing domain.UserStanding) (domain.UserStanding, error)
	// UpdateStanding applies mutate as one atomic read-modify-write for userID.
	// Concurrent updates for the same user must never be lost.
	UpdateStanding(ctx context.Context, userID int64, mutate StandingMutator) (domain.UserStanding, error)
	LeaderboardSource
}

// LeaderboardSource returns users ordered by points descending; role "" means everyone.
type LeaderboardSource interface {
	TopUsersByPoints(ctx context.Context, limit int, role string) ([]domain.UserStanding, error)
}

// Invalidator is implemented by leaderboard sources that cache results.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}
