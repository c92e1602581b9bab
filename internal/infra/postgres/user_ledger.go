package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"intelliquiz-engine/internal/app"
	"intelliquiz-engine/internal/domain"
)

const (
	userColumns        = `id, username, roles, points, badges`
	uniqueViolationSQL = "23505"
)

// UserLedger keeps points and badges on the users table.
// UpdateStanding locks the user row for the duration of the read-modify-write.
type UserLedger struct {
	pool *pgxpool.Pool
}

func NewUserLedger(pool *pgxpool.Pool) *UserLedger {
	return &UserLedger{pool: pool}
}

// CreateUser inserts an account with zero points and no badges.
func (l *UserLedger) CreateUser(ctx context.Context, username string, roles ...string) (domain.UserStanding, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.UserStanding{}, fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}
	if roles == nil {
		roles = []string{}
	}
	row := l.pool.QueryRow(ctx,
		`INSERT INTO users (username, roles) VALUES ($1, $2) RETURNING `+userColumns,
		username, roles)
	standing, err := scanStanding(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationSQL {
			return domain.UserStanding{}, fmt.Errorf("%w: username %q already taken", domain.ErrInvalidInput, username)
		}
		return domain.UserStanding{}, fmt.Errorf("%w: insert user: %v", domain.ErrStorage, err)
	}
	return standing, nil
}

func (l *UserLedger) LoadStanding(ctx context.Context, userID int64) (domain.UserStanding, error) {
	row := l.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	standing, err := scanStanding(row)
	if err != nil {
		return domain.UserStanding{}, lookupErr(err, fmt.Sprintf("id %d", userID))
	}
	return standing, nil
}

func (l *UserLedger) FindByUsername(ctx context.Context, username string) (domain.UserStanding, error) {
	row := l.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	standing, err := scanStanding(row)
	if err != nil {
		return domain.UserStanding{}, lookupErr(err, fmt.Sprintf("%q", username))
	}
	return standing, nil
}

// SaveStanding overwrites points, badges and roles of an existing user.
func (l *UserLedger) SaveStanding(ctx context.Context, standing domain.UserStanding) (domain.UserStanding, error) {
	row := l.pool.QueryRow(ctx,
		`UPDATE users SET points = $2, badges = $3, roles = $4 WHERE id = $1 RETURNING `+userColumns,
		standing.UserID, standing.Points, standing.Badges.Names(), nonNil(standing.Roles))
	saved, err := scanStanding(row)
	if err != nil {
		return domain.UserStanding{}, lookupErr(err, fmt.Sprintf("id %d", standing.UserID))
	}
	return saved, nil
}

func (l *UserLedger) UpdateStanding(ctx context.Context, userID int64, mutate app.StandingMutator) (domain.UserStanding, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return domain.UserStanding{}, fmt.Errorf("%w: begin: %v", domain.ErrStorage, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	row := tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, userID)
	current, err := scanStanding(row)
	if err != nil {
		return domain.UserStanding{}, lookupErr(err, fmt.Sprintf("id %d", userID))
	}

	next, err := mutate(current.Clone())
	if err != nil {
		return domain.UserStanding{}, err
	}

	row = tx.QueryRow(ctx,
		`UPDATE users SET points = $2, badges = $3 WHERE id = $1 RETURNING `+userColumns,
		userID, next.Points, next.Badges.Names())
	updated, err := scanStanding(row)
	if err != nil {
		return domain.UserStanding{}, fmt.Errorf("%w: update standing: %v", domain.ErrStorage, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.UserStanding{}, fmt.Errorf("%w: commit: %v", domain.ErrStorage, err)
	}
	return updated, nil
}

// TopUsersByPoints orders by points descending and then by id, which is registration order.
func (l *UserLedger) TopUsersByPoints(ctx context.Context, limit int, role string) ([]domain.UserStanding, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE $1 = '' OR $1 = ANY(roles)
		 ORDER BY points DESC, id ASC
		 LIMIT $2`,
		role, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query leaderboard: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	out := []domain.UserStanding{}
	for rows.Next() {
		s, err := scanStanding(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan user: %v", domain.ErrStorage, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read leaderboard: %v", domain.ErrStorage, err)
	}
	return out, nil
}

func scanStanding(row pgx.Row) (domain.UserStanding, error) {
	var (
		s      domain.UserStanding
		roles  []string
		badges []string
	)
	if err := row.Scan(&s.UserID, &s.Username, &roles, &s.Points, &badges); err != nil {
		return domain.UserStanding{}, err
	}
	s.Roles = roles
	s.Badges = domain.NewBadgeSet(badges...)
	return s, nil
}

// lookupErr maps pgx.ErrNoRows to ErrUserNotFound and everything else to ErrStorage.
func lookupErr(err error, who string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrUserNotFound, who)
	}
	return fmt.Errorf("%w: load user %s: %v", domain.ErrStorage, who, err)
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
