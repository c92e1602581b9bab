package app

import "intelliquiz-engine/internal/domain"

const (
	promoteAtScore = 80
	demoteAtScore  = 50
)

// NextDifficulty recommends the next level from the score and the level just played.
// Only the current label is carried forward; there is no streak state.
// Hard is the ceiling: a hard player scoring at or above the promotion line stays hard.
func NextDifficulty(score int, current domain.Difficulty) domain.Difficulty {
	if score >= promoteAtScore {
		return domain.DifficultyHard
	}
	if score <= demoteAtScore && current != domain.DifficultyEasy {
		return domain.DifficultyEasy
	}
	return domain.DifficultyMedium
}
