package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"live-quiz-service/internal/domain"
)

// SessionLog persists session, participant, and answer rows.
type SessionLog struct {
	pool *pgxpool.Pool
}

func NewSessionLog(pool *pgxpool.Pool) *SessionLog {
	return &SessionLog{pool: pool}
}

func (l *SessionLog) CreateSession(ctx context.Context, row domain.SessionRow) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO sessions (id, code, quiz_id, host_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		row.ID, row.Code, row.QuizID, row.HostID, string(row.Status), row.CreatedAt)
	if err != nil {
		return fmt.Errorf("create session row: %w", err)
	}
	return nil
}

func (l *SessionLog) GetSession(ctx context.Context, sessionID string) (domain.SessionRow, error) {
	var row domain.SessionRow
	var status string
	err := l.pool.QueryRow(ctx, `
		SELECT id, code, quiz_id, host_id, status, created_at
		FROM sessions WHERE id=$1`, sessionID).
		Scan(&row.ID, &row.Code, &row.QuizID, &row.HostID, &status, &row.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SessionRow{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.SessionRow{}, fmt.Errorf("get session row: %w", err)
	}
	row.Status = domain.SessionStatus(status)
	return row, nil
}

func (l *SessionLog) UpdateSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus) error {
	tag, err := l.pool.Exec(ctx, `UPDATE sessions SET status=$2 WHERE id=$1`, sessionID, string(status))
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (l *SessionLog) UpsertParticipant(ctx context.Context, row domain.ParticipantRow) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO session_participants (session_id, user_id, display_name, score, status, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, user_id)
		DO UPDATE SET display_name = EXCLUDED.display_name,
		              score = EXCLUDED.score,
		              status = EXCLUDED.status`,
		row.SessionID, row.UserID, row.DisplayName, row.Score, string(row.Status), row.JoinedAt)
	if err != nil {
		return fmt.Errorf("upsert participant: %w", err)
	}
	return nil
}

func (l *SessionLog) ListParticipants(ctx context.Context, sessionID string) ([]domain.ParticipantRow, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT session_id, user_id, display_name, score, status, joined_at
		FROM session_participants WHERE session_id=$1
		ORDER BY joined_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ParticipantRow, 0)
	for rows.Next() {
		var row domain.ParticipantRow
		var status string
		if err := rows.Scan(&row.SessionID, &row.UserID, &row.DisplayName, &row.Score, &status, &row.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		row.Status = domain.ParticipantStatus(status)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (l *SessionLog) InsertAnswers(ctx context.Context, sessionID string, records []domain.AnswerRecord) error {
	// Answer records are immutable: replays hit the unique key and are ignored.
	for _, rec := range records {
		_, err := l.pool.Exec(ctx, `
			INSERT INTO session_answers (session_id, user_id, question_id, option_id, correct, points, submitted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (session_id, user_id, question_id) DO NOTHING`,
			sessionID, rec.UserID, rec.QuestionID, rec.OptionID, rec.Correct, rec.Points, rec.SubmittedAt)
		if err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
	}
	return nil
}

func (l *SessionLog) ListSessionsByHost(ctx context.Context, hostID string) ([]domain.SessionRow, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, code, quiz_id, host_id, status, created_at
		FROM sessions WHERE host_id=$1
		ORDER BY created_at DESC`, hostID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SessionRow, 0)
	for rows.Next() {
		var row domain.SessionRow
		var status string
		if err := rows.Scan(&row.ID, &row.Code, &row.QuizID, &row.HostID, &status, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		row.Status = domain.SessionStatus(status)
		out = append(out, row)
	}
	return out, rows.Err()
}
