package domain

import (
	"fmt"
	"strings"
	"time"
)

// Difficulty is both the level a quiz was taken at and the recommendation for the next one.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// DefaultTopic is used when a submission carries no topic label.
const DefaultTopic = "General"

// ParseDifficulty accepts labels case-insensitively; an empty label means medium.
func ParseDifficulty(raw string) (Difficulty, error) {
	switch Difficulty(strings.ToLower(strings.TrimSpace(raw))) {
	case "", DifficultyMedium:
		return DifficultyMedium, nil
	case DifficultyEasy:
		return DifficultyEasy, nil
	case DifficultyHard:
		return DifficultyHard, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDifficulty, raw)
}

// Attempt is one scored quiz submission. It is never updated after creation.
type Attempt struct {
	ID               string     `json:"id"`
	UserID           int64      `json:"userId"`
	Topic            string     `json:"topic"`
	Difficulty       Difficulty `json:"difficulty"`
	Score            int        `json:"score"`
	TimeTakenSeconds int        `json:"timeTakenSeconds"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// Answer carries the client's correctness signal for one item.
// A nil IsCorrect is treated as incorrect.
type Answer struct {
	IsCorrect *bool `json:"isCorrect"`
}

// UserStanding is the gamification snapshot of one user.
type UserStanding struct {
	UserID   int64    `json:"userId"`
	Username string   `json:"username"`
	Roles    []string `json:"roles,omitempty"`
	Points   int      `json:"points"`
	Badges   BadgeSet `json:"badges"`
}

// HasRole reports whether the user carries the given role.
func (s UserStanding) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with s.
func (s UserStanding) Clone() UserStanding {
	out := s
	out.Roles = append([]string(nil), s.Roles...)
	out.Badges = s.Badges.Clone()
	return out
}

// TopicStat is a derived per-topic rollup for one user.
type TopicStat struct {
	Topic        string  `json:"topic"`
	Accuracy     float64 `json:"accuracy"`
	AttemptCount int     `json:"attempts"`
}

// LeaderboardEntry is a read-only projection of a UserStanding.
type LeaderboardEntry struct {
	Username string   `json:"username"`
	Points   int      `json:"points"`
	Badges   []string `json:"badges"`
}

// Leaderboard is an ordered snapshot pushed to stream subscribers.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Identity is what the caller supplies to identify the submitting user.
// Principal wins over UserID when both are set.
type Identity struct {
	Principal string
	UserID    int64
}

// Submission is the raw input of one quiz submission.
type Submission struct {
	Identity         Identity
	Topic            string
	Difficulty       string
	Answers          []Answer
	TimeTakenSeconds int
}

// GamificationOutcome is Applied or Skipped(Reason); it never fails a submission.
type GamificationOutcome struct {
	Applied       bool     `json:"applied"`
	Reason        string   `json:"reason,omitempty"`
	PointsAwarded int      `json:"pointsAwarded"`
	TotalPoints   int      `json:"totalPoints"`
	NewBadges     []string `json:"newBadges,omitempty"`
	Badges        []string `json:"badges,omitempty"`
}

// SubmissionResult is the response assembled for a scored submission.
type SubmissionResult struct {
	UserID              int64               `json:"userId"`
	AttemptID           string              `json:"attemptId"`
	Score               int                 `json:"score"`
	CorrectAnswers      int                 `json:"correctAnswers"`
	TotalQuestions      int                 `json:"totalQuestions"`
	NextLevel           Difficulty          `json:"nextLevel"`
	DifficultyUsed      Difficulty          `json:"difficultyUsed"`
	Topic               string              `json:"topic"`
	GamificationApplied bool                `json:"gamificationApplied"`
	Gamification        GamificationOutcome `json:"gamification"`
}

// StudentAnalytics is the dashboard view for one user.
type StudentAnalytics struct {
	UserID         int64       `json:"userId"`
	AverageScore   float64     `json:"averageScore"`
	Accuracy       float64     `json:"accuracy"`
	Trend          []int       `json:"trend"`
	Points         int         `json:"points"`
	Badges         []string    `json:"badges"`
	TopicAnalytics []TopicStat `json:"topicAnalytics"`
	WeakTopics     []string    `json:"weakTopics"`
}
