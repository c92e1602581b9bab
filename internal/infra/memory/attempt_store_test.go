package memory

import (
	"context"
	"testing"
	"time"

	"intelliquiz-engine/internal/domain"
)

func TestAttemptStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	tick := 0
	store := NewAttemptStoreWithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})

	first, err := store.SaveAttempt(ctx, domain.Attempt{UserID: 1, Topic: "Math", Difficulty: domain.DifficultyEasy, Score: 40})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if first.ID == "" || first.CreatedAt.IsZero() {
		t.Fatalf("expected assigned id and timestamp, got %+v", first)
	}
	_, _ = store.SaveAttempt(ctx, domain.Attempt{UserID: 1, Topic: "History", Score: 90})
	_, _ = store.SaveAttempt(ctx, domain.Attempt{UserID: 1, Topic: "Math", Score: 70})
	_, _ = store.SaveAttempt(ctx, domain.Attempt{UserID: 2, Topic: "Math", Score: 10})

	all, _ := store.FindAttemptsByUser(ctx, 1)
	if len(all) != 3 || all[0].ID != first.ID {
		t.Fatalf("expected 3 attempts oldest first, got %+v", all)
	}

	math, _ := store.FindAttemptsByUserAndTopic(ctx, 1, "Math")
	if len(math) != 2 || math[1].Score != 70 {
		t.Fatalf("unexpected topic filter result %+v", math)
	}

	n, err := store.DeleteAttemptsByUser(ctx, 1)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 deleted, got %d (%v)", n, err)
	}
	if left, _ := store.FindAttemptsByUser(ctx, 1); len(left) != 0 {
		t.Fatalf("expected no attempts left, got %d", len(left))
	}
	if other, _ := store.FindAttemptsByUser(ctx, 2); len(other) != 1 {
		t.Fatalf("delete touched another user's attempts")
	}
}
