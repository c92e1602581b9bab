package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"intelliquiz-engine/internal/domain"
)

const attemptColumns = `id::text, user_id, topic, difficulty, score, time_taken_seconds, created_at`

// AttemptStore persists attempts in the quiz_attempts table.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

func (s *AttemptStore) SaveAttempt(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO quiz_attempts (user_id, topic, difficulty, score, time_taken_seconds)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id::text, created_at`,
		attempt.UserID, attempt.Topic, string(attempt.Difficulty), attempt.Score, attempt.TimeTakenSeconds,
	).Scan(&attempt.ID, &attempt.CreatedAt)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("%w: insert attempt: %v", domain.ErrStorage, err)
	}
	return attempt, nil
}

func (s *AttemptStore) FindAttemptsByUser(ctx context.Context, userID int64) ([]domain.Attempt, error) {
	return s.query(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts WHERE user_id = $1 ORDER BY created_at, id`,
		userID)
}

func (s *AttemptStore) FindAttemptsByUserAndTopic(ctx context.Context, userID int64, topic string) ([]domain.Attempt, error) {
	return s.query(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts WHERE user_id = $1 AND topic = $2 ORDER BY created_at, id`,
		userID, topic)
}

func (s *AttemptStore) DeleteAttemptsByUser(ctx context.Context, userID int64) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quiz_attempts WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: delete attempts: %v", domain.ErrStorage, err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *AttemptStore) query(ctx context.Context, sql string, args ...interface{}) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query attempts: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	out := []domain.Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan attempt: %v", domain.ErrStorage, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read attempts: %v", domain.ErrStorage, err)
	}
	return out, nil
}

func scanAttempt(row pgx.Row) (domain.Attempt, error) {
	var (
		a          domain.Attempt
		difficulty string
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.Topic, &difficulty, &a.Score, &a.TimeTakenSeconds, &a.CreatedAt); err != nil {
		return domain.Attempt{}, err
	}
	a.Difficulty = domain.Difficulty(difficulty)
	return a, nil
}
