package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
)

// ResultStore is the durable result-row collaborator.
type ResultStore interface {
	UpsertResult(ctx context.Context, res domain.SessionResult) error
	DeleteResults(ctx context.Context, sessionID string) error
	ListResults(ctx context.Context, sessionID string) ([]domain.SessionResult, error)
}

// SessionLog is the durable session/participant/answer collaborator.
type SessionLog interface {
	CreateSession(ctx context.Context, row domain.SessionRow) error
	GetSession(ctx context.Context, sessionID string) (domain.SessionRow, error)
	UpdateSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus) error
	UpsertParticipant(ctx context.Context, row domain.ParticipantRow) error
	ListParticipants(ctx context.Context, sessionID string) ([]domain.ParticipantRow, error)
	InsertAnswers(ctx context.Context, sessionID string, records []domain.AnswerRecord) error
	ListSessionsByHost(ctx context.Context, hostID string) ([]domain.SessionRow, error)
}

// Syncer reconciles in-memory session state into durable storage at session
// end and supports idempotent rebuilds of result rows.
type Syncer struct {
	results    ResultStore
	sessionLog SessionLog
	maxRetries uint64
	log        *zap.Logger
	metrics    *Metrics
}

func NewSyncer(results ResultStore, sessionLog SessionLog, maxRetries uint64, log *zap.Logger, metrics *Metrics) *Syncer {
	return &Syncer{
		results:    results,
		sessionLog: sessionLog,
		maxRetries: maxRetries,
		log:        log,
		metrics:    metrics,
	}
}

// SyncSession writes one durable result row per participant, keyed by
// (user, session), so repeated end-triggers never create duplicate rows.
// Transient store failures are retried with exponential backoff up to the
// configured bound; the caller keeps the in-memory session alive on failure
// so a manual rebuild can recover it later.
func (sy *Syncer) SyncSession(ctx context.Context, sessionID, quizID string, rows []domain.ParticipantRow) error {
	op := func() error {
		if err := sy.sessionLog.UpdateSessionStatus(ctx, sessionID, domain.StatusEnded); err != nil {
			return err
		}
		for _, row := range rows {
			if err := sy.sessionLog.UpsertParticipant(ctx, row); err != nil {
				return fmt.Errorf("upsert participant %s: %w", row.UserID, err)
			}
			if err := sy.results.UpsertResult(ctx, domain.SessionResult{
				UserID:      row.UserID,
				QuizID:      quizID,
				SessionID:   sessionID,
				DisplayName: row.DisplayName,
				Score:       row.Score,
			}); err != nil {
				return fmt.Errorf("upsert result %s: %w", row.UserID, err)
			}
		}
		return nil
	}

	err := backoff.Retry(func() error {
		if err := op(); err != nil {
			if sy.metrics != nil {
				sy.metrics.PersistRetries.Inc()
			}
			sy.log.Warn("result sync attempt failed",
				zap.String("session_id", sessionID),
				zap.Error(err))
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(newBackOff(), sy.maxRetries), ctx))
	if err != nil {
		return fmt.Errorf("sync session %s: %w", sessionID, err)
	}
	return nil
}

// SyncAnswers writes the round's immutable answer records. Best effort:
// duplicates are ignored at the store so replays stay idempotent.
func (sy *Syncer) SyncAnswers(ctx context.Context, sessionID string, records []domain.AnswerRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := sy.sessionLog.InsertAnswers(ctx, sessionID, records); err != nil {
		return fmt.Errorf("insert answers for %s: %w", sessionID, err)
	}
	return nil
}

// Rebuild deletes the durable result rows for a session and regenerates them
// from the given live registry snapshot when present, or from durable
// participant rows when the in-memory session no longer exists. With neither
// source it reports ErrNoResultSource instead of fabricating zero-score rows.
func (sy *Syncer) Rebuild(ctx context.Context, sessionID, quizID string, live []domain.ParticipantRow) error {
	rows := live
	if len(rows) == 0 {
		durable, err := sy.sessionLog.ListParticipants(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("list participants for %s: %w", sessionID, err)
		}
		rows = durable
	}
	if len(rows) == 0 {
		return domain.ErrNoResultSource
	}

	if err := sy.results.DeleteResults(ctx, sessionID); err != nil {
		return fmt.Errorf("delete results for %s: %w", sessionID, err)
	}
	for _, row := range rows {
		if err := sy.results.UpsertResult(ctx, domain.SessionResult{
			UserID:      row.UserID,
			QuizID:      quizID,
			SessionID:   sessionID,
			DisplayName: row.DisplayName,
			Score:       row.Score,
		}); err != nil {
			return fmt.Errorf("upsert result %s: %w", row.UserID, err)
		}
	}
	sy.log.Info("results rebuilt",
		zap.String("session_id", sessionID),
		zap.Int("rows", len(rows)))
	return nil
}

func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}
