package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"intelliquiz-engine/internal/app"
	"intelliquiz-engine/internal/domain"
)

// LeaderboardCache caches top-N leaderboard reads with TTL to avoid repeated ledger scans.
type LeaderboardCache struct {
	source app.LeaderboardSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	gen   uint64
	cache map[string]cachedBoard
}

type cachedBoard struct {
	users     []domain.UserStanding
	expiresAt time.Time
}

func NewLeaderboardCache(source app.LeaderboardSource, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedBoard),
	}
}

func (c *LeaderboardCache) TopUsersByPoints(ctx context.Context, limit int, role string) ([]domain.UserStanding, error) {
	key := role + ":" + strconv.Itoa(limit)

	if users, ok := c.lookup(key); ok {
		return users, nil
	}

	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	// loads started before an Invalidate are never shared with callers arriving after it
	flight := key + "#" + strconv.FormatUint(gen, 10)
	result, err, _ := c.sf.Do(flight, func() (interface{}, error) {
		if users, ok := c.lookup(key); ok {
			return users, nil
		}

		users, err := c.source.TopUsersByPoints(ctx, limit, role)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		// an Invalidate during the load means the result may already be stale
		if gen == c.gen {
			c.cache[key] = cachedBoard{
				users:     users,
				expiresAt: c.clock().Add(c.ttlWithJitter()),
			}
		}
		c.mu.Unlock()
		return users, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneStandings(result.([]domain.UserStanding)), nil
}

// Invalidate drops every cached board.
func (c *LeaderboardCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.cache = make(map[string]cachedBoard)
	return nil
}

func (c *LeaderboardCache) lookup(key string) ([]domain.UserStanding, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
		return cloneStandings(entry.users), true
	}
	return nil, false
}

func (c *LeaderboardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func cloneStandings(in []domain.UserStanding) []domain.UserStanding {
	out := make([]domain.UserStanding, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
