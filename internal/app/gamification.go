package app

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"intelliquiz-engine/internal/domain"
	"intelliquiz-engine/internal/platform/logger"
)

// PointTier awards Points to scores at or above MinScore.
type PointTier struct {
	MinScore int
	Points   int
}

// BadgeThreshold awards Name once the point total reaches MinPoints.
type BadgeThreshold struct {
	Name      string
	MinPoints int
}

// GamificationRules is an immutable points/badges table.
type GamificationRules struct {
	tiers  []PointTier      // MinScore descending
	badges []BadgeThreshold // MinPoints ascending
}

// DefaultGamificationRules is +50/+25/+10 with Bronze 200, Silver 500, Gold 1000.
func DefaultGamificationRules() GamificationRules {
	rules, _ := NewGamificationRules(
		[]PointTier{{MinScore: 80, Points: 50}, {MinScore: 50, Points: 25}, {MinScore: 0, Points: 10}},
		[]BadgeThreshold{{Name: "Bronze", MinPoints: 200}, {Name: "Silver", MinPoints: 500}, {Name: "Gold", MinPoints: 1000}},
	)
	return rules
}

// NewGamificationRules copies and validates the tables.
func NewGamificationRules(tiers []PointTier, badges []BadgeThreshold) (GamificationRules, error) {
	if len(tiers) == 0 {
		return GamificationRules{}, fmt.Errorf("%w: at least one point tier is required", domain.ErrInvalidInput)
	}
	r := GamificationRules{
		tiers:  append([]PointTier(nil), tiers...),
		badges: append([]BadgeThreshold(nil), badges...),
	}
	seen := make(map[string]bool, len(badges))
	for _, t := range r.tiers {
		if t.Points < 0 {
			return GamificationRules{}, fmt.Errorf("%w: tier at score %d awards negative points", domain.ErrInvalidInput, t.MinScore)
		}
	}
	for _, b := range r.badges {
		if b.Name == "" || seen[b.Name] {
			return GamificationRules{}, fmt.Errorf("%w: badge names must be unique and non-empty", domain.ErrInvalidInput)
		}
		seen[b.Name] = true
	}
	sort.SliceStable(r.tiers, func(i, j int) bool { return r.tiers[i].MinScore > r.tiers[j].MinScore })
	sort.SliceStable(r.badges, func(i, j int) bool { return r.badges[i].MinPoints < r.badges[j].MinPoints })
	return r, nil
}

// PointsFor returns the award of the highest qualifying tier.
func (r GamificationRules) PointsFor(score int) int {
	for _, t := range r.tiers {
		if score >= t.MinScore {
			return t.Points
		}
	}
	return 0
}

// Award returns the standing after crediting score. Every badge at or below the new
// total is granted if absent, so a single large jump can grant several tiers at once.
// The input standing is not modified.
func (r GamificationRules) Award(standing domain.UserStanding, score int) (domain.UserStanding, int, []string) {
	next := standing.Clone()
	points := r.PointsFor(score)
	next.Points += points

	var granted []string
	for _, b := range r.badges {
		if next.Points < b.MinPoints {
			break
		}
		if next.Badges.Add(b.Name) {
			granted = append(granted, b.Name)
		}
	}
	return next, points, granted
}

// Gamifier credits a score to a user. It reports Applied or Skipped and never fails the caller.
type Gamifier interface {
	Apply(ctx context.Context, userID int64, score int) domain.GamificationOutcome
}

// GamificationEngine applies the rules through the ledger's atomic update.
type GamificationEngine struct {
	ledger UserLedger
	rules  GamificationRules
	log    *logger.Logger
}

func NewGamificationEngine(ledger UserLedger, rules GamificationRules, log *logger.Logger) *GamificationEngine {
	return &GamificationEngine{ledger: ledger, rules: rules, log: log.With("component", "gamification")}
}

// Apply credits score to userID. Failures (including panics inside the update) yield a
// Skipped outcome; the ledger only ever sees a complete standing.
func (g *GamificationEngine) Apply(ctx context.Context, userID int64, score int) (outcome domain.GamificationOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			outcome = skipped(fmt.Errorf("%w: panic: %v", domain.ErrGamification, rec))
		}
	}()

	var (
		awarded int
		granted []string
	)
	updated, err := g.ledger.UpdateStanding(ctx, userID, func(current domain.UserStanding) (domain.UserStanding, error) {
		next, pts, newBadges := g.rules.Award(current, score)
		awarded, granted = pts, newBadges
		return next, nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrGamification) {
			err = fmt.Errorf("%w: %v", domain.ErrGamification, err)
		}
		return skipped(err)
	}

	g.log.Info("gamification updated", "userId", userID, "score", score, "awarded", awarded,
		"total", updated.Points, "badges", updated.Badges.Names())
	return domain.GamificationOutcome{
		Applied:       true,
		PointsAwarded: awarded,
		TotalPoints:   updated.Points,
		NewBadges:     granted,
		Badges:        updated.Badges.Names(),
	}
}

func skipped(err error) domain.GamificationOutcome {
	return domain.GamificationOutcome{Applied: false, Reason: err.Error()}
}
