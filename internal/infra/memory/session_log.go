package memory

import (
	"context"
	"sort"
	"sync"

	"live-quiz-service/internal/domain"
)

type participantKey struct {
	sessionID string
	userID    string
}

type answerKey struct {
	sessionID  string
	userID     string
	questionID string
}

// SessionLog is an in-memory implementation of the durable session,
// participant, and answer stores. It backs unit tests and deployments
// without Postgres configured.
type SessionLog struct {
	mu           sync.RWMutex
	sessions     map[string]domain.SessionRow
	participants map[participantKey]domain.ParticipantRow
	answers      map[answerKey]domain.AnswerRecord
}

func NewSessionLog() *SessionLog {
	return &SessionLog{
		sessions:     make(map[string]domain.SessionRow),
		participants: make(map[participantKey]domain.ParticipantRow),
		answers:      make(map[answerKey]domain.AnswerRecord),
	}
}

func (l *SessionLog) CreateSession(_ context.Context, row domain.SessionRow) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions[row.ID] = row
	return nil
}

func (l *SessionLog) GetSession(_ context.Context, sessionID string) (domain.SessionRow, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	row, ok := l.sessions[sessionID]
	if !ok {
		return domain.SessionRow{}, domain.ErrSessionNotFound
	}
	return row, nil
}

func (l *SessionLog) UpdateSessionStatus(_ context.Context, sessionID string, status domain.SessionStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	row, ok := l.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	row.Status = status
	l.sessions[sessionID] = row
	return nil
}

func (l *SessionLog) UpsertParticipant(_ context.Context, row domain.ParticipantRow) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.participants[participantKey{row.SessionID, row.UserID}] = row
	return nil
}

func (l *SessionLog) ListParticipants(_ context.Context, sessionID string) ([]domain.ParticipantRow, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.ParticipantRow, 0)
	for key, row := range l.participants {
		if key.sessionID == sessionID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (l *SessionLog) InsertAnswers(_ context.Context, sessionID string, records []domain.AnswerRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range records {
		key := answerKey{sessionID, rec.UserID, rec.QuestionID}
		// Answer records are immutable; replays keep the first write.
		if _, ok := l.answers[key]; ok {
			continue
		}
		l.answers[key] = rec
	}
	return nil
}

func (l *SessionLog) ListSessionsByHost(_ context.Context, hostID string) ([]domain.SessionRow, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.SessionRow, 0)
	for _, row := range l.sessions {
		if row.HostID == hostID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// AnswerCount reports stored answer records for a session (test helper).
func (l *SessionLog) AnswerCount(sessionID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for key := range l.answers {
		if key.sessionID == sessionID {
			n++
		}
	}
	return n
}
