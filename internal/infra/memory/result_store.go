package memory

import (
	"context"
	"sort"
	"sync"

	"live-quiz-service/internal/domain"
)

type resultKey struct {
	userID    string
	sessionID string
}

// ResultStore is an in-memory implementation of the durable result store.
type ResultStore struct {
	mu      sync.RWMutex
	results map[resultKey]domain.SessionResult
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[resultKey]domain.SessionResult)}
}

func (s *ResultStore) UpsertResult(_ context.Context, res domain.SessionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[resultKey{res.UserID, res.SessionID}] = res
	return nil
}

func (s *ResultStore) DeleteResults(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.results {
		if key.sessionID == sessionID {
			delete(s.results, key)
		}
	}
	return nil
}

func (s *ResultStore) ListResults(_ context.Context, sessionID string) ([]domain.SessionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SessionResult, 0)
	for key, res := range s.results {
		if key.sessionID == sessionID {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}
