package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"intelliquiz-engine/internal/domain"
)

// AttemptStore appends each attempt as a JSON record to a per-user list.
//
//	RPUSH quiz:attempts:{userId} {attempt json}
type AttemptStore struct {
	client *redis.Client
	clock  func() time.Time
}

func NewAttemptStore(client *redis.Client) *AttemptStore {
	return NewAttemptStoreWithClock(client, time.Now)
}

// NewAttemptStoreWithClock allows deterministic timestamps in tests.
func NewAttemptStoreWithClock(client *redis.Client, now func() time.Time) *AttemptStore {
	return &AttemptStore{client: client, clock: now}
}

func (s *AttemptStore) SaveAttempt(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	attempt.ID = uuid.NewString()
	attempt.CreatedAt = s.clock().UTC()

	raw, err := json.Marshal(attempt)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("%w: encode attempt: %v", domain.ErrStorage, err)
	}
	if err := s.client.RPush(ctx, attemptsKey(attempt.UserID), raw).Err(); err != nil {
		return domain.Attempt{}, fmt.Errorf("%w: save attempt: %v", domain.ErrStorage, err)
	}
	return attempt, nil
}

func (s *AttemptStore) FindAttemptsByUser(ctx context.Context, userID int64) ([]domain.Attempt, error) {
	return s.load(ctx, userID, "")
}

func (s *AttemptStore) FindAttemptsByUserAndTopic(ctx context.Context, userID int64, topic string) ([]domain.Attempt, error) {
	return s.load(ctx, userID, topic)
}

// DeleteAttemptsByUser drops the whole list and reports how many records it held.
func (s *AttemptStore) DeleteAttemptsByUser(ctx context.Context, userID int64) (int, error) {
	key := attemptsKey(userID)
	var n *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		n = pipe.LLen(ctx, key)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: delete attempts: %v", domain.ErrStorage, err)
	}
	return int(n.Val()), nil
}

// load returns attempts oldest first; an empty topic matches every record.
func (s *AttemptStore) load(ctx context.Context, userID int64, topic string) ([]domain.Attempt, error) {
	records, err := s.client.LRange(ctx, attemptsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: load attempts: %v", domain.ErrStorage, err)
	}
	out := make([]domain.Attempt, 0, len(records))
	for _, raw := range records {
		var a domain.Attempt
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("%w: corrupt attempt for user %d: %v", domain.ErrStorage, userID, err)
		}
		if topic != "" && a.Topic != topic {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func attemptsKey(userID int64) string {
	return "quiz:attempts:" + strconv.FormatInt(userID, 10)
}
