package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"intelliquiz-engine/internal/domain"
	"intelliquiz-engine/internal/platform/logger"
)

// DefaultStreamSize is how many users a live leaderboard snapshot carries.
const DefaultStreamSize = 10

// SubmissionService is the single entry point for scoring a quiz submission.
//
// A submission moves Received -> Scored -> Persisted -> GamificationApplied -> Responded.
// Invalid input or an unknown user ends it in Rejected before anything is written.
// Once the attempt is persisted the submission always succeeds; a failed gamification
// step only marks the response as not applied.
type SubmissionService struct {
	attempts   AttemptStore
	users      UserLedger
	gamifier   Gamifier
	ranker     *LeaderboardRanker
	publisher  SnapshotPublisher
	streamSize int
	log        *logger.Logger
}

// SubmissionOption customises a SubmissionService.
type SubmissionOption func(*SubmissionService)

// WithLeaderboardStream refreshes and publishes the global board after every applied award.
func WithLeaderboardStream(ranker *LeaderboardRanker, publisher SnapshotPublisher, size int) SubmissionOption {
	return func(s *SubmissionService) {
		s.ranker = ranker
		s.publisher = publisher
		if size > 0 {
			s.streamSize = size
		}
	}
}

func NewSubmissionService(attempts AttemptStore, users UserLedger, gamifier Gamifier, log *logger.Logger, opts ...SubmissionOption) *SubmissionService {
	s := &SubmissionService{
		attempts:   attempts,
		users:      users,
		gamifier:   gamifier,
		streamSize: DefaultStreamSize,
		log:        log.With("component", "submission"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit scores, persists and gamifies one submission.
func (s *SubmissionService) Submit(ctx context.Context, sub domain.Submission) (domain.SubmissionResult, error) {
	// Received
	if len(sub.Answers) == 0 {
		return domain.SubmissionResult{}, fmt.Errorf("%w: answers list cannot be empty", domain.ErrInvalidInput)
	}
	if sub.TimeTakenSeconds < 0 {
		return domain.SubmissionResult{}, fmt.Errorf("%w: time taken cannot be negative", domain.ErrInvalidInput)
	}
	difficulty, err := domain.ParseDifficulty(sub.Difficulty)
	if err != nil {
		return domain.SubmissionResult{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	topic := strings.TrimSpace(sub.Topic)
	if topic == "" {
		topic = domain.DefaultTopic
	}
	user, err := s.resolveUser(ctx, sub.Identity)
	if err != nil {
		return domain.SubmissionResult{}, err
	}

	// Scored
	correct, score, err := ScoreAnswers(sub.Answers)
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	next := NextDifficulty(score, difficulty)
	s.log.Info("submission scored", "userId", user.UserID, "score", score,
		"correct", correct, "total", len(sub.Answers), "nextLevel", next)

	// Persisted: the difficulty recorded is the one the quiz was taken at.
	attempt, err := s.attempts.SaveAttempt(ctx, domain.Attempt{
		UserID:           user.UserID,
		Topic:            topic,
		Difficulty:       difficulty,
		Score:            score,
		TimeTakenSeconds: sub.TimeTakenSeconds,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrStorage) {
			err = fmt.Errorf("%w: %v", domain.ErrStorage, err)
		}
		s.log.Error("attempt not saved", "userId", user.UserID, "error", err)
		return domain.SubmissionResult{}, fmt.Errorf("save attempt: %w", err)
	}
	s.log.Debug("attempt saved", "userId", user.UserID, "attemptId", attempt.ID)

	// The attempt is stored; the award must not depend on the caller staying connected.
	after := context.WithoutCancel(ctx)

	// GamificationApplied or AttemptSucceededGamificationFailed
	outcome := s.gamifier.Apply(after, user.UserID, score)
	if outcome.Applied {
		s.publishLeaderboard(after)
	} else {
		s.log.Warn("gamification skipped", "userId", user.UserID, "attemptId", attempt.ID, "reason", outcome.Reason)
	}

	// Responded
	return domain.SubmissionResult{
		UserID:              user.UserID,
		AttemptID:           attempt.ID,
		Score:               score,
		CorrectAnswers:      correct,
		TotalQuestions:      len(sub.Answers),
		NextLevel:           next,
		DifficultyUsed:      difficulty,
		Topic:               topic,
		GamificationApplied: outcome.Applied,
		Gamification:        outcome,
	}, nil
}

// resolveUser prefers the authenticated principal over an explicit user id.
func (s *SubmissionService) resolveUser(ctx context.Context, id domain.Identity) (domain.UserStanding, error) {
	switch {
	case id.Principal != "":
		return s.users.FindByUsername(ctx, id.Principal)
	case id.UserID > 0:
		return s.users.LoadStanding(ctx, id.UserID)
	}
	return domain.UserStanding{}, fmt.Errorf("%w: missing or invalid user identification", domain.ErrInvalidInput)
}

// publishLeaderboard is best-effort; the submission has already succeeded.
func (s *SubmissionService) publishLeaderboard(ctx context.Context) {
	if s.ranker == nil {
		return
	}
	if err := s.ranker.Invalidate(ctx); err != nil {
		s.log.Warn("leaderboard cache not invalidated", "error", err)
	}
	if s.publisher == nil {
		return
	}
	if c, ok := s.publisher.(subscriberCounter); ok && c.Subscribers() == 0 {
		return
	}
	lb, err := s.ranker.Snapshot(ctx, s.streamSize)
	if err != nil {
		s.log.Warn("leaderboard snapshot failed", "error", err)
		return
	}
	s.publisher.Publish(lb)
}
