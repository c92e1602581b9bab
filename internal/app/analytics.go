package app

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"intelliquiz-engine/internal/domain"
	"intelliquiz-engine/internal/platform/logger"
)

const (
	DefaultWeakTopics = 3
	DefaultTrendSize  = 5
)

// AnalyticsService answers the read-only dashboard queries.
type AnalyticsService struct {
	attempts   AttemptStore
	users      UserLedger
	weakTopics int
	trendSize  int
	log        *logger.Logger
}

func NewAnalyticsService(attempts AttemptStore, users UserLedger, weakTopics, trendSize int, log *logger.Logger) *AnalyticsService {
	if weakTopics <= 0 {
		weakTopics = DefaultWeakTopics
	}
	if trendSize <= 0 {
		trendSize = DefaultTrendSize
	}
	return &AnalyticsService{
		attempts:   attempts,
		users:      users,
		weakTopics: weakTopics,
		trendSize:  trendSize,
		log:        log.With("component", "analytics"),
	}
}

// TopicStats returns per-topic accuracy for the user, strongest first.
func (s *AnalyticsService) TopicStats(ctx context.Context, userID int64) ([]domain.TopicStat, error) {
	attempts, err := s.attempts.FindAttemptsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("topic stats: %w", err)
	}
	return BuildTopicStats(attempts), nil
}

// WeakTopics returns up to n topic names, weakest first.
func (s *AnalyticsService) WeakTopics(ctx context.Context, userID int64, n int) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: n must be positive, got %d", domain.ErrInvalidInput, n)
	}
	stats, err := s.TopicStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return WeakestTopics(stats, n), nil
}

// StudentAnalytics assembles the dashboard for one user.
func (s *AnalyticsService) StudentAnalytics(ctx context.Context, userID int64) (domain.StudentAnalytics, error) {
	var (
		standing domain.UserStanding
		attempts []domain.Attempt
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		standing, err = s.users.LoadStanding(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		attempts, err = s.attempts.FindAttemptsByUser(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.StudentAnalytics{}, fmt.Errorf("student analytics: %w", err)
	}

	stats := BuildTopicStats(attempts)
	avg := averageScore(attempts)
	out := domain.StudentAnalytics{
		UserID:         userID,
		AverageScore:   avg,
		Accuracy:       avg,
		Trend:          recentScores(attempts, s.trendSize),
		Points:         standing.Points,
		Badges:         standing.Badges.Names(),
		TopicAnalytics: stats,
		WeakTopics:     WeakestTopics(stats, s.weakTopics),
	}
	s.log.Debug("analytics built", "userId", userID, "topics", len(stats), "weakTopics", len(out.WeakTopics))
	return out, nil
}

// ListAttempts returns the user's history, optionally restricted to one topic.
func (s *AnalyticsService) ListAttempts(ctx context.Context, userID int64, topic string) ([]domain.Attempt, error) {
	var (
		attempts []domain.Attempt
		err      error
	)
	if topic == "" {
		attempts, err = s.attempts.FindAttemptsByUser(ctx, userID)
	} else {
		attempts, err = s.attempts.FindAttemptsByUserAndTopic(ctx, userID, topic)
	}
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	if attempts == nil {
		attempts = []domain.Attempt{}
	}
	return attempts, nil
}

// PurgeAttempts deletes the user's attempt history. Points and badges are kept.
func (s *AnalyticsService) PurgeAttempts(ctx context.Context, userID int64) (int, error) {
	if _, err := s.users.LoadStanding(ctx, userID); err != nil {
		return 0, err
	}
	n, err := s.attempts.DeleteAttemptsByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("purge attempts: %w", err)
	}
	s.log.Info("attempt history purged", "userId", userID, "deleted", n)
	return n, nil
}

// BuildTopicStats groups attempts by topic and sorts by accuracy descending.
// Topics with equal accuracy keep the order in which they were first attempted.
func BuildTopicStats(attempts []domain.Attempt) []domain.TopicStat {
	type acc struct {
		sum, count int
	}
	var order []string
	byTopic := make(map[string]*acc)
	for _, a := range attempts {
		t, ok := byTopic[a.Topic]
		if !ok {
			t = &acc{}
			byTopic[a.Topic] = t
			order = append(order, a.Topic)
		}
		t.sum += a.Score
		t.count++
	}

	stats := make([]domain.TopicStat, 0, len(order))
	for _, topic := range order {
		t := byTopic[topic]
		stats = append(stats, domain.TopicStat{
			Topic:        topic,
			Accuracy:     round2(float64(t.sum) / float64(t.count)),
			AttemptCount: t.count,
		})
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Accuracy > stats[j].Accuracy })
	return stats
}

// WeakestTopics returns up to n topic names in ascending accuracy.
func WeakestTopics(stats []domain.TopicStat, n int) []string {
	sorted := append([]domain.TopicStat(nil), stats...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Accuracy < sorted[j].Accuracy })
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	out := make([]string, 0, len(sorted))
	for _, s := range sorted {
		out = append(out, s.Topic)
	}
	return out
}

func averageScore(attempts []domain.Attempt) float64 {
	if len(attempts) == 0 {
		return 0
	}
	sum := 0
	for _, a := range attempts {
		sum += a.Score
	}
	return round2(float64(sum) / float64(len(attempts)))
}

// recentScores returns the last n scores, oldest to newest.
func recentScores(attempts []domain.Attempt, n int) []int {
	ordered := append([]domain.Attempt(nil), attempts...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].CreatedAt.Before(ordered[j].CreatedAt) })
	if len(ordered) > n {
		ordered = ordered[len(ordered)-n:]
	}
	out := make([]int, 0, len(ordered))
	for _, a := range ordered {
		out = append(out, a.Score)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
