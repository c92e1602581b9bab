package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"intelliquiz-engine/internal/app"
	"intelliquiz-engine/internal/domain"
)

const (
	userSeqKey     = "quiz:user:seq"
	usernameKey    = "quiz:user:byname"
	leaderboardKey = "quiz:leaderboard"

	// maxUpdateRetries bounds the optimistic WATCH/MULTI loop.
	maxUpdateRetries = 50
)

// UserLedger stores one hash per user and keeps sorted sets for the leaderboard.
//
//	HSET quiz:user:{id}           username roles points badges
//	HSET quiz:user:byname         {username} {id}
//	ZADD quiz:leaderboard[:role]  {-points} {zero padded id}
//
// Scores are negated points so an ascending ZRANGE yields the highest totals first, and
// equal totals fall back to member order, which is registration order.
type UserLedger struct {
	client *redis.Client
}

func NewUserLedger(client *redis.Client) *UserLedger {
	return &UserLedger{client: client}
}

// CreateUser registers a new account with zero points and no badges.
func (l *UserLedger) CreateUser(ctx context.Context, username string, roles ...string) (domain.UserStanding, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.UserStanding{}, fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}

	id, err := l.client.Incr(ctx, userSeqKey).Result()
	if err != nil {
		return domain.UserStanding{}, fmt.Errorf("%w: allocate user id: %v", domain.ErrStorage, err)
	}
	claimed, err := l.client.HSetNX(ctx, usernameKey, username, id).Result()
	if err != nil {
		return domain.UserStanding{}, fmt.Errorf("%w: claim username: %v", domain.ErrStorage, err)
	}
	if !claimed {
		return domain.UserStanding{}, fmt.Errorf("%w: username %q already taken", domain.ErrInvalidInput, username)
	}

	standing := domain.UserStanding{
		UserID:   id,
		Username: username,
		Roles:    append([]string(nil), roles...),
	}
	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return writeStanding(ctx, pipe, standing)
	})
	if err != nil {
		// release the name so a retry can claim it again
		if derr := l.client.HDel(ctx, usernameKey, username).Err(); derr != nil {
			return domain.UserStanding{}, fmt.Errorf("%w: store user: %v (username %q left claimed: %v)", domain.ErrStorage, err, username, derr)
		}
		return domain.UserStanding{}, fmt.Errorf("%w: store user: %v", domain.ErrStorage, err)
	}
	return standing, nil
}

func (l *UserLedger) LoadStanding(ctx context.Context, userID int64) (domain.UserStanding, error) {
	return readStanding(ctx, l.client, userID)
}

func (l *UserLedger) FindByUsername(ctx context.Context, username string) (domain.UserStanding, error) {
	raw, err := l.client.HGet(ctx, usernameKey, username).Result()
	if errors.Is(err, redis.Nil) {
		return domain.UserStanding{}, fmt.Errorf("%w: %q", domain.ErrUserNotFound, username)
	}
	if err != nil {
		return domain.UserStanding{}, fmt.Errorf("%w: lookup username: %v", domain.ErrStorage, err)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return domain.UserStanding{}, fmt.Errorf("%w: corrupt id for %q: %v", domain.ErrStorage, username, err)
	}
	return readStanding(ctx, l.client, id)
}

// SaveStanding overwrites points, badges and roles of an existing user.
func (l *UserLedger) SaveStanding(ctx context.Context, standing domain.UserStanding) (domain.UserStanding, error) {
	var saved domain.UserStanding
	err := l.update(ctx, standing.UserID, func(tx *redis.Tx, current domain.UserStanding) error {
		next := standing.Clone()
		next.Username = current.Username
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, role := range current.Roles {
				if !next.HasRole(role) {
					pipe.ZRem(ctx, roleBoardKey(role), member(next.UserID))
				}
			}
			return writeStanding(ctx, pipe, next)
		})
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrStorage, err)
		}
		saved = next
		return nil
	})
	if err != nil {
		return domain.UserStanding{}, err
	}
	return saved, nil
}

// UpdateStanding runs mutate under WATCH and retries when another writer got there first.
// mutate may therefore run more than once; only the committed run is stored.
func (l *UserLedger) UpdateStanding(ctx context.Context, userID int64, mutate app.StandingMutator) (domain.UserStanding, error) {
	var updated domain.UserStanding
	err := l.update(ctx, userID, func(tx *redis.Tx, current domain.UserStanding) error {
		next, err := mutate(current.Clone())
		if err != nil {
			return err
		}
		next.UserID = userID
		next.Username = current.Username
		next.Roles = current.Roles
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return writeStanding(ctx, pipe, next)
		})
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrStorage, err)
		}
		updated = next
		return nil
	})
	if err != nil {
		return domain.UserStanding{}, err
	}
	return updated, nil
}

func (l *UserLedger) update(ctx context.Context, userID int64, fn func(tx *redis.Tx, current domain.UserStanding) error) error {
	key := userKey(userID)
	for i := 0; i < maxUpdateRetries; i++ {
		err := l.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := readStanding(ctx, tx, userID)
			if err != nil {
				return err
			}
			return fn(tx, current)
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: update user %d: too much contention", domain.ErrStorage, userID)
}

// TopUsersByPoints reads the global or per-role sorted set.
func (l *UserLedger) TopUsersByPoints(ctx context.Context, limit int, role string) ([]domain.UserStanding, error) {
	key := leaderboardKey
	if role != "" {
		key = roleBoardKey(role)
	}
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	members, err := l.client.ZRange(ctx, key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: read leaderboard: %v", domain.ErrStorage, err)
	}

	cmds, err := l.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, m := range members {
			id, _ := strconv.ParseInt(m, 10, 64)
			pipe.HGetAll(ctx, userKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: read users: %v", domain.ErrStorage, err)
	}

	out := make([]domain.UserStanding, 0, len(cmds))
	for i, cmd := range cmds {
		fields, err := cmd.(*redis.MapStringStringCmd).Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		id, _ := strconv.ParseInt(members[i], 10, 64)
		standing, err := decodeStanding(id, fields)
		if err != nil {
			return nil, err
		}
		out = append(out, standing)
	}
	return out, nil
}

func readStanding(ctx context.Context, c redis.Cmdable, userID int64) (domain.UserStanding, error) {
	fields, err := c.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return domain.UserStanding{}, fmt.Errorf("%w: load user %d: %v", domain.ErrStorage, userID, err)
	}
	if len(fields) == 0 {
		return domain.UserStanding{}, fmt.Errorf("%w: id %d", domain.ErrUserNotFound, userID)
	}
	return decodeStanding(userID, fields)
}

func writeStanding(ctx context.Context, pipe redis.Pipeliner, s domain.UserStanding) error {
	roles, err := json.Marshal(nonNil(s.Roles))
	if err != nil {
		return err
	}
	badges, err := json.Marshal(s.Badges.Names())
	if err != nil {
		return err
	}
	pipe.HSet(ctx, userKey(s.UserID),
		"username", s.Username,
		"roles", roles,
		"points", s.Points,
		"badges", badges,
	)
	z := redis.Z{Score: -float64(s.Points), Member: member(s.UserID)}
	pipe.ZAdd(ctx, leaderboardKey, z)
	for _, role := range s.Roles {
		pipe.ZAdd(ctx, roleBoardKey(role), z)
	}
	return nil
}

func decodeStanding(userID int64, fields map[string]string) (domain.UserStanding, error) {
	s := domain.UserStanding{UserID: userID, Username: fields["username"]}
	points, err := strconv.Atoi(fields["points"])
	if err != nil {
		return domain.UserStanding{}, fmt.Errorf("%w: corrupt points for user %d: %v", domain.ErrStorage, userID, err)
	}
	s.Points = points
	if raw := fields["roles"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.Roles); err != nil {
			return domain.UserStanding{}, fmt.Errorf("%w: corrupt roles for user %d: %v", domain.ErrStorage, userID, err)
		}
	}
	if raw := fields["badges"]; raw != "" {
		var names []string
		if err := json.Unmarshal([]byte(raw), &names); err != nil {
			return domain.UserStanding{}, fmt.Errorf("%w: corrupt badges for user %d: %v", domain.ErrStorage, userID, err)
		}
		s.Badges = domain.NewBadgeSet(names...)
	}
	return s, nil
}

func userKey(userID int64) string {
	return "quiz:user:" + strconv.FormatInt(userID, 10)
}

func roleBoardKey(role string) string {
	return leaderboardKey + ":" + role
}

// member zero-pads ids so lexical order matches numeric order.
func member(userID int64) string {
	return fmt.Sprintf("%019d", userID)
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
