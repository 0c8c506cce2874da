package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"live-quiz-service/internal/domain"
)

// ResultStore persists final score rows, one per participant per ended
// session, upserted on (user_id, session_id).
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

func (s *ResultStore) UpsertResult(ctx context.Context, res domain.SessionResult) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO session_results (user_id, quiz_id, session_id, display_name, score)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, session_id)
		DO UPDATE SET score = EXCLUDED.score, display_name = EXCLUDED.display_name`,
		res.UserID, res.QuizID, res.SessionID, res.DisplayName, res.Score)
	if err != nil {
		return fmt.Errorf("upsert result: %w", err)
	}
	return nil
}

func (s *ResultStore) DeleteResults(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM session_results WHERE session_id=$1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete results: %w", err)
	}
	return nil
}

func (s *ResultStore) ListResults(ctx context.Context, sessionID string) ([]domain.SessionResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, quiz_id, session_id, display_name, score
		FROM session_results WHERE session_id=$1
		ORDER BY score DESC, user_id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SessionResult, 0)
	for rows.Next() {
		var res domain.SessionResult
		if err := rows.Scan(&res.UserID, &res.QuizID, &res.SessionID, &res.DisplayName, &res.Score); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
