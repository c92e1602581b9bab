package app

import (
	"errors"
	"testing"

	"intelliquiz-engine/internal/domain"
)

func answers(correct, total int) []domain.Answer {
	out := make([]domain.Answer, total)
	for i := range out {
		v := i < correct
		out[i] = domain.Answer{IsCorrect: &v}
	}
	return out
}

func TestScoreAnswers(t *testing.T) {
	cases := []struct {
		name           string
		correct, total int
		want           int
	}{
		{"eight of ten", 8, 10, 80},
		{"one of four", 1, 4, 25},
		{"rounds half up", 1, 8, 13}, // 12.5
		{"rounds down", 1, 3, 33},
		{"rounds up", 2, 3, 67},
		{"none", 0, 5, 0},
		{"all", 7, 7, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			correct, pct, err := ScoreAnswers(answers(tc.correct, tc.total))
			if err != nil {
				t.Fatalf("score: %v", err)
			}
			if correct != tc.correct || pct != tc.want {
				t.Fatalf("expected %d/%d%%, got %d/%d%%", tc.correct, tc.want, correct, pct)
			}
		})
	}
}

func TestScoreAnswersBounds(t *testing.T) {
	for total := 1; total <= 40; total++ {
		for correct := 0; correct <= total; correct++ {
			_, pct, err := ScoreAnswers(answers(correct, total))
			if err != nil {
				t.Fatalf("score: %v", err)
			}
			if pct < 0 || pct > 100 {
				t.Fatalf("score out of range for %d/%d: %d", correct, total, pct)
			}
			exact := float64(correct) * 100 / float64(total)
			if float64(pct) < exact-0.5 || float64(pct) > exact+0.5 {
				t.Fatalf("score %d not nearest to %.3f", pct, exact)
			}
		}
	}
}

func TestScoreAnswersMissingFlagIsIncorrect(t *testing.T) {
	yes := true
	correct, pct, err := ScoreAnswers([]domain.Answer{{IsCorrect: &yes}, {}})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if correct != 1 || pct != 50 {
		t.Fatalf("expected 1 correct / 50%%, got %d / %d%%", correct, pct)
	}
}

func TestScoreAnswersRejectsEmpty(t *testing.T) {
	if _, _, err := ScoreAnswers(nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for nil answers, got %v", err)
	}
	if _, _, err := ScoreAnswers([]domain.Answer{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty answers, got %v", err)
	}
}
