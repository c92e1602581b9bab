package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"intelliquiz-engine/internal/app"
	"intelliquiz-engine/internal/domain"
	"intelliquiz-engine/internal/platform/logger"
)

const (
	leaderboardChannel = "quiz:leaderboard:updates"

	relayMinBackoff = time.Second
	relayMaxBackoff = 30 * time.Second
)

// LeaderboardRelay shares leaderboard snapshots between instances.
// Publish sends to a Redis channel; Run forwards everything on that channel, including
// this instance's own messages, into the local hub. While no subscription is live, or
// when PUBLISH fails, snapshots go straight to the local hub instead.
type LeaderboardRelay struct {
	client *redis.Client
	hub    *app.LeaderboardHub
	log    *logger.Logger
	live   atomic.Bool
}

func NewLeaderboardRelay(client *redis.Client, hub *app.LeaderboardHub, log *logger.Logger) *LeaderboardRelay {
	return &LeaderboardRelay{client: client, hub: hub, log: log.With("component", "leaderboard-relay")}
}

func (r *LeaderboardRelay) Publish(lb domain.Leaderboard) {
	data, err := json.Marshal(lb)
	if err != nil {
		r.log.Warn("leaderboard not encoded", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !r.live.Load() {
		r.hub.Publish(lb)
		return
	}
	if err := r.client.Publish(ctx, leaderboardChannel, data).Err(); err != nil {
		r.log.Warn("leaderboard not published, delivering locally", "error", err)
		r.hub.Publish(lb)
	}
}

// Run blocks until ctx is done, resubscribing with backoff when the subscription fails.
func (r *LeaderboardRelay) Run(ctx context.Context) error {
	backoff := relayMinBackoff
	for {
		subscribed, err := r.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if subscribed {
			backoff = relayMinBackoff
		}
		r.log.Warn("leaderboard subscription lost", "error", err, "retryIn", backoff.String())
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > relayMaxBackoff {
			backoff = relayMaxBackoff
		}
	}
}

// Live reports whether snapshots are currently routed through Redis.
func (r *LeaderboardRelay) Live() bool {
	return r.live.Load()
}

func (r *LeaderboardRelay) listen(ctx context.Context) (bool, error) {
	sub := r.client.Subscribe(ctx, leaderboardChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return false, err
	}
	r.live.Store(true)
	defer r.live.Store(false)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return true, nil
		case msg, ok := <-ch:
			if !ok {
				return true, errors.New("subscription channel closed")
			}
			var lb domain.Leaderboard
			if err := json.Unmarshal([]byte(msg.Payload), &lb); err != nil {
				r.log.Warn("bad leaderboard message", "error", err)
				continue
			}
			r.hub.Publish(lb)
		}
	}
}
