package cli

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"intelliquiz-engine/internal/app"
	"intelliquiz-engine/internal/config"
	"intelliquiz-engine/internal/domain"
	"intelliquiz-engine/internal/infra/memory"
	"intelliquiz-engine/internal/infra/postgres"
	infraredis "intelliquiz-engine/internal/infra/redis"
	"intelliquiz-engine/internal/platform/logger"
)

// userRegistry is implemented by every ledger backend.
type userRegistry interface {
	app.UserLedger
	CreateUser(ctx context.Context, username string, roles ...string) (domain.UserStanding, error)
}

type stores struct {
	attempts app.AttemptStore
	ledger   userRegistry
	board    app.LeaderboardSource
	redis    *redis.Client
	backend  string
	closers  []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores picks Postgres for attempts and the ledger when configured, then Redis for
// attempts, the ledger and the leaderboard cache, and falls back to process memory.
func openStores(ctx context.Context, cfg config.Config, log *logger.Logger) (*stores, error) {
	s := &stores{}
	cacheTTL := config.TTLDuration(cfg.Leaderboard.CacheTTL, 30*time.Second)

	if cfg.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := s.redis.Ping(ctx).Err(); err != nil {
			_ = s.redis.Close()
			return nil, err
		}
		client := s.redis
		s.closers = append(s.closers, func() { _ = client.Close() })
	}

	switch {
	case cfg.Postgres.URL != "":
		if err := runMigrations(ctx, cfg, log); err != nil {
			s.Close()
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		s.attempts = postgres.NewAttemptStore(pool)
		s.ledger = postgres.NewUserLedger(pool)
		s.backend = "postgres"
	case s.redis != nil:
		s.attempts = infraredis.NewAttemptStore(s.redis)
		s.ledger = infraredis.NewUserLedger(s.redis)
		s.backend = "redis"
	default:
		s.attempts = memory.NewAttemptStore()
		s.ledger = memory.NewUserLedger()
		s.backend = "memory"
	}

	if s.redis != nil {
		s.board = infraredis.NewLeaderboardCache(s.redis, s.ledger, cacheTTL)
	} else {
		s.board = memory.NewLeaderboardCache(s.ledger, cacheTTL)
	}
	log.Info("storage ready", "backend", s.backend, "redisCache", s.redis != nil)
	return s, nil
}
