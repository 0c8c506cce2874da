package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

func seedSession(t *testing.T, log *memory.SessionLog, sessionID string) {
	t.Helper()
	err := log.CreateSession(context.Background(), domain.SessionRow{
		ID:        sessionID,
		Code:      "123456",
		QuizID:    "quiz-1",
		HostID:    "host-1",
		Status:    domain.StatusActive,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed session failed: %v", err)
	}
}

func TestSyncSessionIdempotent(t *testing.T) {
	ctx := context.Background()
	results := memory.NewResultStore()
	log := memory.NewSessionLog()
	seedSession(t, log, "s1")
	sy := NewSyncer(results, log, 3, zap.NewNop(), nil)

	rows := []domain.ParticipantRow{
		{SessionID: "s1", UserID: "u1", DisplayName: "Alice", Score: 5, Status: domain.ParticipantJoined, JoinedAt: time.Now()},
		{SessionID: "s1", UserID: "u2", DisplayName: "Bob", Score: 3, Status: domain.ParticipantLeft, JoinedAt: time.Now()},
	}

	if err := sy.SyncSession(ctx, "s1", "quiz-1", rows); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	// A replayed end-trigger must not duplicate rows.
	if err := sy.SyncSession(ctx, "s1", "quiz-1", rows); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}

	stored, err := results.ListResults(ctx, "s1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 result rows, got %d", len(stored))
	}
	if stored[0].UserID != "u1" || stored[0].Score != 5 {
		t.Fatalf("expected Alice first with 5, got %+v", stored[0])
	}
	row, err := log.GetSession(ctx, "s1")
	if err != nil || row.Status != domain.StatusEnded {
		t.Fatalf("expected durable status ENDED, got %+v err=%v", row, err)
	}
}

func TestSyncSessionRetriesTransientFailure(t *testing.T) {
	ctx := context.Background()
	log := memory.NewSessionLog()
	seedSession(t, log, "s1")
	flaky := &flakyResultStore{inner: memory.NewResultStore(), failures: 2}
	sy := NewSyncer(flaky, log, 5, zap.NewNop(), nil)

	rows := []domain.ParticipantRow{
		{SessionID: "s1", UserID: "u1", DisplayName: "Alice", Score: 5, JoinedAt: time.Now()},
	}
	if err := sy.SyncSession(ctx, "s1", "quiz-1", rows); err != nil {
		t.Fatalf("expected retries to cover transient failures, got %v", err)
	}
	stored, _ := flaky.inner.ListResults(ctx, "s1")
	if len(stored) != 1 {
		t.Fatalf("expected 1 row after recovery, got %d", len(stored))
	}
}

func TestSyncSessionGivesUpAfterBudget(t *testing.T) {
	ctx := context.Background()
	log := memory.NewSessionLog()
	seedSession(t, log, "s1")
	flaky := &flakyResultStore{inner: memory.NewResultStore(), failures: 100}
	sy := NewSyncer(flaky, log, 2, zap.NewNop(), nil)

	rows := []domain.ParticipantRow{
		{SessionID: "s1", UserID: "u1", DisplayName: "Alice", Score: 5, JoinedAt: time.Now()},
	}
	if err := sy.SyncSession(ctx, "s1", "quiz-1", rows); err == nil {
		t.Fatal("expected failure once the retry budget is exhausted")
	}
}

func TestRebuildFromLiveSnapshot(t *testing.T) {
	ctx := context.Background()
	results := memory.NewResultStore()
	log := memory.NewSessionLog()
	sy := NewSyncer(results, log, 3, zap.NewNop(), nil)

	// A stale row from an interrupted earlier sync.
	_ = results.UpsertResult(ctx, domain.SessionResult{UserID: "ghost", SessionID: "s1", Score: 99})

	live := []domain.ParticipantRow{
		{SessionID: "s1", UserID: "u1", DisplayName: "Alice", Score: 4, JoinedAt: time.Now()},
	}
	if err := sy.Rebuild(ctx, "s1", "quiz-1", live); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	stored, _ := results.ListResults(ctx, "s1")
	if len(stored) != 1 || stored[0].UserID != "u1" || stored[0].Score != 4 {
		t.Fatalf("expected rebuilt rows to replace stale ones, got %+v", stored)
	}
}

func TestRebuildFromDurableParticipants(t *testing.T) {
	ctx := context.Background()
	results := memory.NewResultStore()
	log := memory.NewSessionLog()
	sy := NewSyncer(results, log, 3, zap.NewNop(), nil)

	_ = log.UpsertParticipant(ctx, domain.ParticipantRow{
		SessionID: "s1", UserID: "u1", DisplayName: "Alice", Score: 7, JoinedAt: time.Now(),
	})

	if err := sy.Rebuild(ctx, "s1", "quiz-1", nil); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	stored, _ := results.ListResults(ctx, "s1")
	if len(stored) != 1 || stored[0].Score != 7 {
		t.Fatalf("expected durable rows used, got %+v", stored)
	}
}

func TestRebuildWithoutSource(t *testing.T) {
	ctx := context.Background()
	sy := NewSyncer(memory.NewResultStore(), memory.NewSessionLog(), 3, zap.NewNop(), nil)
	if err := sy.Rebuild(ctx, "s1", "quiz-1", nil); !errors.Is(err, domain.ErrNoResultSource) {
		t.Fatalf("expected ErrNoResultSource, got %v", err)
	}
}

func TestSyncAnswersIdempotent(t *testing.T) {
	ctx := context.Background()
	log := memory.NewSessionLog()
	sy := NewSyncer(memory.NewResultStore(), log, 3, zap.NewNop(), nil)

	records := []domain.AnswerRecord{
		{UserID: "u1", QuestionID: "q1", OptionID: "o2", Correct: true, Points: 1, SubmittedAt: time.Now()},
		{UserID: "u2", QuestionID: "q1", OptionID: "o1", SubmittedAt: time.Now()},
	}
	if err := sy.SyncAnswers(ctx, "s1", records); err != nil {
		t.Fatalf("sync answers failed: %v", err)
	}
	if err := sy.SyncAnswers(ctx, "s1", records); err != nil {
		t.Fatalf("replayed sync failed: %v", err)
	}
	if got := log.AnswerCount("s1"); got != 2 {
		t.Fatalf("expected 2 answer rows, got %d", got)
	}
	if err := sy.SyncAnswers(ctx, "s1", nil); err != nil {
		t.Fatalf("empty sync must be a no-op, got %v", err)
	}
}

// flakyResultStore fails the first N upserts, then delegates.
type flakyResultStore struct {
	inner    *memory.ResultStore
	failures int
}

func (f *flakyResultStore) UpsertResult(ctx context.Context, res domain.SessionResult) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("store unavailable")
	}
	return f.inner.UpsertResult(ctx, res)
}

func (f *flakyResultStore) DeleteResults(ctx context.Context, sessionID string) error {
	return f.inner.DeleteResults(ctx, sessionID)
}

func (f *flakyResultStore) ListResults(ctx context.Context, sessionID string) ([]domain.SessionResult, error) {
	return f.inner.ListResults(ctx, sessionID)
}
