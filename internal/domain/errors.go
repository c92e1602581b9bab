package domain

import "errors"

var (
	// ErrInvalidInput is returned when a request is rejected before any persistence
	// (empty answers, missing identity, non-positive limits).
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidDifficulty indicates a difficulty label outside easy|medium|hard.
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	// ErrUserNotFound indicates the caller identity could not be resolved to a user.
	ErrUserNotFound = errors.New("user not found")
	// ErrStorage wraps failures of the backing attempt/user stores.
	ErrStorage = errors.New("storage failure")
	// ErrGamification marks a failed points/badges update.
	ErrGamification = errors.New("gamification failure")
)
