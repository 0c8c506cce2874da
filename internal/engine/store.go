package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// codeAttempts bounds the search for a free join code before giving up.
const codeAttempts = 50

// CodeRegistry marks join codes as live so they stay unique among sessions
// not yet ended, also across instances when backed by Redis.
type CodeRegistry interface {
	Claim(ctx context.Context, code string) (bool, error)
	Release(ctx context.Context, code string) error
}

// Store owns the process-wide mapping of session id to live session state.
// It is constructed at startup and injected into every component that needs
// it; sessions are evicted after persistence completes post-end.
type Store struct {
	codes CodeRegistry

	mu       sync.RWMutex
	sessions map[string]*Session
	byCode   map[string]*Session
	rnd      *rand.Rand
}

func NewStore(codes CodeRegistry) *Store {
	return &Store{
		codes:    codes,
		sessions: make(map[string]*Session),
		byCode:   make(map[string]*Session),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// AllocateCode picks a 6-digit numeric code not used by any live session.
func (st *Store) AllocateCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		st.mu.Lock()
		code := fmt.Sprintf("%06d", st.rnd.Intn(1000000))
		_, taken := st.byCode[code]
		st.mu.Unlock()
		if taken {
			continue
		}
		ok, err := st.codes.Claim(ctx, code)
		if err != nil {
			return "", fmt.Errorf("claim code: %w", err)
		}
		if ok {
			return code, nil
		}
	}
	return "", domain.ErrCodeExhausted
}

// Add registers a created session under its id and join code.
func (st *Store) Add(sess *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[sess.ID] = sess
	st.byCode[sess.Code] = sess
}

// Get looks a session up by its opaque id.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.sessions[id]
	return sess, ok
}

// GetByCode resolves a join code to its one non-ended session.
func (st *Store) GetByCode(code string) (*Session, bool) {
	st.mu.RLock()
	sess, ok := st.byCode[code]
	st.mu.RUnlock()
	if !ok || sess.Status() == domain.StatusEnded {
		return nil, false
	}
	return sess, true
}

// Remove evicts a session from memory and releases its join code. Called
// after the session has been ended and persisted; the durable row survives
// for history queries.
func (st *Store) Remove(ctx context.Context, id string) {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	if ok {
		delete(st.sessions, id)
		delete(st.byCode, sess.Code)
	}
	st.mu.Unlock()
	if ok {
		_ = st.codes.Release(ctx, sess.Code)
	}
}

// Len reports how many live sessions are resident.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
