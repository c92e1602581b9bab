package redis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"intelliquiz-engine/internal/domain"
)

func TestUserLedgerCreateAndLookup(t *testing.T) {
	ctx := context.Background()
	ledger := NewUserLedger(newClient(t))

	alice, err := ledger.CreateUser(ctx, "alice", "ROLE_STUDENT")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := ledger.CreateUser(ctx, "alice"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected duplicate username rejection, got %v", err)
	}

	byName, err := ledger.FindByUsername(ctx, "alice")
	if err != nil || byName.UserID != alice.UserID || !byName.HasRole("ROLE_STUDENT") {
		t.Fatalf("unexpected lookup %+v (%v)", byName, err)
	}
	if _, err := ledger.LoadStanding(ctx, 999); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := ledger.FindByUsername(ctx, "ghost"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUserLedgerUpdateStanding(t *testing.T) {
	ctx := context.Background()
	ledger := NewUserLedger(newClient(t))
	alice, _ := ledger.CreateUser(ctx, "alice")

	updated, err := ledger.UpdateStanding(ctx, alice.UserID, func(s domain.UserStanding) (domain.UserStanding, error) {
		s.Points += 250
		s.Badges.Add("Bronze")
		return s, nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Points != 250 || !updated.Badges.Has("Bronze") {
		t.Fatalf("unexpected standing %+v", updated)
	}

	boom := errors.New("boom")
	if _, err := ledger.UpdateStanding(ctx, alice.UserID, func(domain.UserStanding) (domain.UserStanding, error) {
		return domain.UserStanding{}, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected mutator error, got %v", err)
	}

	stored, _ := ledger.LoadStanding(ctx, alice.UserID)
	if stored.Points != 250 || len(stored.Badges) != 1 {
		t.Fatalf("failed mutation must leave standing untouched, got %+v", stored)
	}

	if _, err := ledger.UpdateStanding(ctx, 404, func(s domain.UserStanding) (domain.UserStanding, error) {
		return s, nil
	}); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUserLedgerConcurrentUpdatesAreNotLost(t *testing.T) {
	ctx := context.Background()
	ledger := NewUserLedger(newClient(t))
	alice, _ := ledger.CreateUser(ctx, "alice")

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.UpdateStanding(ctx, alice.UserID, func(s domain.UserStanding) (domain.UserStanding, error) {
				s.Points += 10
				return s, nil
			}); err != nil {
				t.Errorf("update: %v", err)
			}
		}()
	}
	wg.Wait()

	stored, _ := ledger.LoadStanding(ctx, alice.UserID)
	if stored.Points != writers*10 {
		t.Fatalf("expected %d points, got %d", writers*10, stored.Points)
	}
}

func TestUserLedgerTopUsersByPoints(t *testing.T) {
	ctx := context.Background()
	ledger := NewUserLedger(newClient(t))

	for _, u := range []struct {
		name, role string
		points     int
	}{
		{"alice", "ROLE_STUDENT", 40},
		{"bob", "ROLE_TEACHER", 120},
		{"carol", "ROLE_STUDENT", 40},
		{"dave", "ROLE_STUDENT", 75},
	} {
		created, err := ledger.CreateUser(ctx, u.name, u.role)
		if err != nil {
			t.Fatalf("create %s: %v", u.name, err)
		}
		created.Points = u.points
		if _, err := ledger.SaveStanding(ctx, created); err != nil {
			t.Fatalf("save %s: %v", u.name, err)
		}
	}

	all, err := ledger.TopUsersByPoints(ctx, 10, "")
	if err != nil {
		t.Fatalf("top users: %v", err)
	}
	if got := usernames(all); !equal(got, []string{"bob", "dave", "alice", "carol"}) {
		t.Fatalf("unexpected global order %v", got)
	}

	students, _ := ledger.TopUsersByPoints(ctx, 2, "ROLE_STUDENT")
	if got := usernames(students); !equal(got, []string{"dave", "alice"}) {
		t.Fatalf("unexpected student order %v", got)
	}
}

func TestUserLedgerCreateReleasesNameWhenWriteFails(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)
	hook := &pipelineBreaker{}
	client.AddHook(hook)
	ledger := NewUserLedger(client)

	hook.broken.Store(true)
	if _, err := ledger.CreateUser(ctx, "alice"); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if taken, _ := client.HExists(ctx, usernameKey, "alice").Result(); taken {
		t.Fatalf("username claim must be released after a failed write")
	}

	hook.broken.Store(false)
	alice, err := ledger.CreateUser(ctx, "alice")
	if err != nil {
		t.Fatalf("retry create: %v", err)
	}
	found, err := ledger.FindByUsername(ctx, "alice")
	if err != nil || found.UserID != alice.UserID {
		t.Fatalf("expected alice to resolve after retry, got %+v (%v)", found, err)
	}
}

// pipelineBreaker fails every pipeline and transaction while broken is set.
type pipelineBreaker struct {
	broken atomic.Bool
}

func (h *pipelineBreaker) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *pipelineBreaker) ProcessHook(next redis.ProcessHook) redis.ProcessHook { return next }

func (h *pipelineBreaker) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if h.broken.Load() {
			return errors.New("connection reset by peer")
		}
		return next(ctx, cmds)
	}
}

func newClient(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func usernames(users []domain.UserStanding) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Username)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
