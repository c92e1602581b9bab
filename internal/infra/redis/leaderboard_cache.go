package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"intelliquiz-engine/internal/app"
	"intelliquiz-engine/internal/domain"
)

const cacheGenKey = "quiz:leaderboard:cache:gen"

// LeaderboardCache caches ranked boards in Redis and falls back to the source on a miss.
// Boards are stored as JSON under quiz:leaderboard:cache:{gen}:{role}:{limit}; Invalidate
// bumps gen so every instance stops reading the old keys, which then expire on their own.
type LeaderboardCache struct {
	client *redis.Client
	source app.LeaderboardSource
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewLeaderboardCache(client *redis.Client, source app.LeaderboardSource, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *LeaderboardCache) TopUsersByPoints(ctx context.Context, limit int, role string) ([]domain.UserStanding, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		// cache unavailable: serve straight from the source
		return c.source.TopUsersByPoints(ctx, limit, role)
	}
	key := c.boardKey(gen, role, limit)

	if users, ok := c.lookup(ctx, key); ok {
		return users, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if users, ok := c.lookup(ctx, key); ok {
			return users, nil
		}

		users, err := c.source.TopUsersByPoints(ctx, limit, role)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(users); err == nil {
			_ = c.client.Set(ctx, key, data, c.ttlWithJitter()).Err()
		}
		return users, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.UserStanding), nil
}

// Invalidate retires every cached board.
func (c *LeaderboardCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, cacheGenKey).Err()
}

func (c *LeaderboardCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, cacheGenKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *LeaderboardCache) lookup(ctx context.Context, key string) ([]domain.UserStanding, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var users []domain.UserStanding
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, false
	}
	return users, true
}

func (c *LeaderboardCache) boardKey(gen int64, role string, limit int) string {
	return "quiz:leaderboard:cache:" + strconv.FormatInt(gen, 10) + ":" + role + ":" + strconv.Itoa(limit)
}

func (c *LeaderboardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
