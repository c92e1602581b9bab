package app

import (
	"fmt"

	"intelliquiz-engine/internal/domain"
)

// ScoreAnswers counts correct answers and returns the rounded percentage (half-up).
// Answers without a correctness flag count as incorrect.
func ScoreAnswers(answers []domain.Answer) (correct, percentage int, err error) {
	total := len(answers)
	if total == 0 {
		return 0, 0, fmt.Errorf("%w: answers list cannot be empty", domain.ErrInvalidInput)
	}
	for _, a := range answers {
		if a.IsCorrect != nil && *a.IsCorrect {
			correct++
		}
	}
	// integer form of floor(correct*100/total + 0.5)
	percentage = (correct*200 + total) / (2 * total)
	return correct, percentage, nil
}
