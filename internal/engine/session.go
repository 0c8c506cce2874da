package engine

import (
	"sort"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// Session is the authoritative in-memory state of one live quiz run. All
// mutation goes through its mutex so concurrent actions for the same session
// are serialized; cross-session operations never contend.
type Session struct {
	ID        string
	Code      string
	QuizID    string
	HostID    string
	CreatedAt time.Time

	now         func() time.Time
	onBroadcast func()

	mu           sync.Mutex
	status       domain.SessionStatus
	phase        domain.Phase
	questions    []domain.Question
	current      int // index into questions, -1 while in lobby
	deadline     time.Time
	participants map[string]*domain.Participant
	answers      map[string]map[string]domain.AnswerRecord
	subscribers  map[chan domain.Event]struct{}
	graceTimers  map[string]*time.Timer
	roundDone    chan struct{}
	allIn        bool
	stop         chan struct{}
}

func newSession(id, code, quizID, hostID string, questions []domain.Question) *Session {
	return newSessionWithClock(id, code, quizID, hostID, questions, time.Now)
}

// newSessionWithClock allows deterministic timestamps in tests.
func newSessionWithClock(id, code, quizID, hostID string, questions []domain.Question, now func() time.Time) *Session {
	return &Session{
		ID:           id,
		Code:         code,
		QuizID:       quizID,
		HostID:       hostID,
		CreatedAt:    now(),
		now:          now,
		status:       domain.StatusPending,
		phase:        domain.PhaseLobby,
		questions:    questions,
		current:      -1,
		participants: make(map[string]*domain.Participant),
		answers:      make(map[string]map[string]domain.AnswerRecord),
		subscribers:  make(map[chan domain.Event]struct{}),
		graceTimers:  make(map[string]*time.Timer),
		stop:         make(chan struct{}),
	}
}

// Status returns the current lifecycle status.
func (s *Session) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Phase returns the current phase.
func (s *Session) Phase() domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// IsHost reports whether userID owns this session.
func (s *Session) IsHost(userID string) bool {
	return s.HostID == userID
}

// Join registers a participant, or refreshes an existing one. Rejoining
// within the same session lifecycle preserves the accumulated score; only a
// fresh (session, user) pair starts at zero. Joins against an ended session
// are rejected.
func (s *Session) Join(userID, displayName string) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.StatusEnded {
		return domain.Participant{}, domain.ErrSessionEnded
	}

	if t, ok := s.graceTimers[userID]; ok {
		t.Stop()
		delete(s.graceTimers, userID)
	}

	p, ok := s.participants[userID]
	if ok {
		p.DisplayName = displayName
		p.Status = domain.ParticipantJoined
	} else {
		p = &domain.Participant{
			UserID:      userID,
			DisplayName: displayName,
			Score:       0,
			Status:      domain.ParticipantJoined,
			JoinedAt:    s.now(),
		}
		s.participants[userID] = p
	}

	s.broadcastLocked(domain.Event{Type: domain.EventParticipantJoined, Payload: domain.ParticipantEvent{
		SessionID:   s.ID,
		UserID:      userID,
		DisplayName: displayName,
		ActiveCount: s.activeCountLocked(),
	}})
	s.broadcastLocked(domain.Event{Type: domain.EventLeaderboard, Payload: s.leaderboardLocked()})
	return *p, nil
}

// Leave flips the participant to left. Score and answer history are retained
// so history stays reconstructable.
func (s *Session) Leave(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.graceTimers[userID]; ok {
		t.Stop()
		delete(s.graceTimers, userID)
	}

	p, ok := s.participants[userID]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	if p.Status == domain.ParticipantLeft || s.status == domain.StatusEnded {
		return nil
	}
	p.Status = domain.ParticipantLeft

	s.broadcastLocked(domain.Event{Type: domain.EventParticipantLeft, Payload: domain.ParticipantEvent{
		SessionID:   s.ID,
		UserID:      userID,
		DisplayName: p.DisplayName,
		ActiveCount: s.activeCountLocked(),
	}})

	// A departure can complete the round for everyone else.
	s.maybeCloseRoundLocked()
	return nil
}

// Disconnect starts the reconnect grace window for a participant whose
// connection dropped without an explicit leave. A rejoin within the window
// cancels it; expiry converts the disconnect into a leave.
func (s *Session) Disconnect(userID string, grace time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.StatusEnded {
		return
	}
	if _, ok := s.participants[userID]; !ok {
		return
	}
	if t, ok := s.graceTimers[userID]; ok {
		t.Stop()
	}
	s.graceTimers[userID] = time.AfterFunc(grace, func() {
		_ = s.Leave(userID)
	})
}

// Participants returns active participants ordered by join time.
func (s *Session) Participants() []domain.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		if p.Status == domain.ParticipantJoined {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out
}

// Snapshot returns durable rows for every participant ever seen in the
// session, left ones included.
func (s *Session) Snapshot() []domain.ParticipantRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() []domain.ParticipantRow {
	rows := make([]domain.ParticipantRow, 0, len(s.participants))
	for _, p := range s.participants {
		rows = append(rows, domain.ParticipantRow{
			SessionID:   s.ID,
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Score:       p.Score,
			Status:      p.Status,
			JoinedAt:    p.JoinedAt,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].JoinedAt.Before(rows[j].JoinedAt) })
	return rows
}

// Leaderboard returns the current scoreboard snapshot.
func (s *Session) Leaderboard() domain.Leaderboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leaderboardLocked()
}

func (s *Session) leaderboardLocked() domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(s.participants))
	joined := make(map[string]time.Time, len(s.participants))
	for _, p := range s.participants {
		joined[p.UserID] = p.JoinedAt
		entries = append(entries, domain.LeaderboardEntry{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Score:       p.Score,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return joined[entries[i].UserID].Before(joined[entries[j].UserID])
	})
	for i := range entries {
		entries[i].Position = i + 1
	}
	return domain.Leaderboard{
		SessionID: s.ID,
		Entries:   entries,
		UpdatedAt: s.now(),
	}
}

func (s *Session) activeCountLocked() int {
	n := 0
	for _, p := range s.participants {
		if p.Status == domain.ParticipantJoined {
			n++
		}
	}
	return n
}

// Subscribe returns a channel receiving this session's events in the order
// their triggering mutations committed. The caller must invoke cancel to
// avoid leaks. Slow consumers have their oldest pending event dropped rather
// than stalling the broadcast.
func (s *Session) Subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 16)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	// Enqueue the snapshot before releasing the lock so no concurrent
	// broadcast can land ahead of it.
	sendOrDropOldest(ch, domain.Event{Type: domain.EventLeaderboard, Payload: s.leaderboardLocked()})
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked(ev domain.Event) {
	if s.onBroadcast != nil {
		s.onBroadcast()
	}
	for ch := range s.subscribers {
		sendOrDropOldest(ch, ev)
	}
}

// sendOrDropOldest delivers ev without ever blocking the broadcaster: a full
// buffer loses its oldest pending event instead.
func sendOrDropOldest(ch chan domain.Event, ev domain.Event) {
	select {
	case ch <- ev:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- ev
	}
}

// phaseTransitions is the only legal set of phase edges. EndSession is
// handled separately and is valid from any state.
var phaseTransitions = map[domain.Phase][]domain.Phase{
	domain.PhaseLobby:         {domain.PhaseQuestion},
	domain.PhaseQuestion:      {domain.PhaseShowingAnswer},
	domain.PhaseShowingAnswer: {domain.PhaseQuestion, domain.PhaseFinished},
}

func (s *Session) transitionLocked(next domain.Phase) error {
	for _, allowed := range phaseTransitions[s.phase] {
		if allowed == next {
			s.phase = next
			return nil
		}
	}
	return domain.ErrInvalidTransition
}

// Begin moves the session from PENDING to ACTIVE so the scheduler can start
// the first round. Only valid once, from the lobby.
func (s *Session) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.StatusEnded {
		return domain.ErrSessionEnded
	}
	if s.status != domain.StatusPending || s.phase != domain.PhaseLobby {
		return domain.ErrInvalidTransition
	}
	s.status = domain.StatusActive
	return nil
}

// startNextQuestion opens the round for the next question index, or
// transitions to finished when the list is exhausted. The returned channel
// closes early if every active participant answers before the deadline.
func (s *Session) startNextQuestion(defaultDuration time.Duration) (ev domain.QuestionStartedEvent, done <-chan struct{}, started, finished bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusActive {
		return domain.QuestionStartedEvent{}, nil, false, false
	}

	next := s.current + 1
	if next >= len(s.questions) {
		if err := s.transitionLocked(domain.PhaseFinished); err != nil {
			return domain.QuestionStartedEvent{}, nil, false, false
		}
		s.broadcastLocked(domain.Event{Type: domain.EventPhaseChanged, Payload: domain.PhaseChangedEvent{
			SessionID:     s.ID,
			Phase:         domain.PhaseFinished,
			QuestionIndex: s.current,
			TotalCount:    len(s.questions),
		}})
		return domain.QuestionStartedEvent{}, nil, false, true
	}

	if err := s.transitionLocked(domain.PhaseQuestion); err != nil {
		return domain.QuestionStartedEvent{}, nil, false, false
	}
	s.current = next

	q := s.questions[next]
	dur := time.Duration(q.DurationSeconds) * time.Second
	if dur <= 0 {
		dur = defaultDuration
	}
	s.deadline = s.now().Add(dur)
	s.roundDone = make(chan struct{})
	s.allIn = false

	options := make([]domain.OptionView, 0, len(q.Options))
	for _, o := range q.Options {
		options = append(options, domain.OptionView{ID: o.ID, Text: o.Text})
	}
	ev = domain.QuestionStartedEvent{
		SessionID: s.ID,
		Question: domain.QuestionView{
			ID:              q.ID,
			Prompt:          q.Prompt,
			Options:         options,
			Index:           next,
			Total:           len(s.questions),
			Points:          questionPoints(q),
			DurationSeconds: int(dur / time.Second),
		},
		Deadline: s.deadline,
	}

	s.broadcastLocked(domain.Event{Type: domain.EventPhaseChanged, Payload: domain.PhaseChangedEvent{
		SessionID:     s.ID,
		Phase:         domain.PhaseQuestion,
		QuestionIndex: next,
		TotalCount:    len(s.questions),
	}})
	s.broadcastLocked(domain.Event{Type: domain.EventQuestionStarted, Payload: ev})
	return ev, s.roundDone, true, false
}

// reveal closes the current round and broadcasts the correct option with a
// leaderboard snapshot. It also returns the round's answer records so the
// caller can write them durably.
func (s *Session) reveal() (domain.AnswerRevealedEvent, []domain.AnswerRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusActive || s.phase != domain.PhaseQuestion {
		return domain.AnswerRevealedEvent{}, nil, false
	}
	if err := s.transitionLocked(domain.PhaseShowingAnswer); err != nil {
		return domain.AnswerRevealedEvent{}, nil, false
	}

	q := s.questions[s.current]
	ev := domain.AnswerRevealedEvent{
		SessionID:       s.ID,
		QuestionID:      q.ID,
		CorrectOptionID: correctOptionID(q),
		Leaderboard:     s.leaderboardLocked(),
	}

	records := make([]domain.AnswerRecord, 0, len(s.answers[q.ID]))
	for _, rec := range s.answers[q.ID] {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].SubmittedAt.Before(records[j].SubmittedAt) })

	s.broadcastLocked(domain.Event{Type: domain.EventPhaseChanged, Payload: domain.PhaseChangedEvent{
		SessionID:     s.ID,
		Phase:         domain.PhaseShowingAnswer,
		QuestionIndex: s.current,
		TotalCount:    len(s.questions),
	}})
	s.broadcastLocked(domain.Event{Type: domain.EventAnswerRevealed, Payload: ev})
	return ev, records, true
}

// End moves the session to ENDED from any state, cancels grace timers,
// signals the scheduler to stop, and emits the final broadcast. Further
// mutation is frozen. Returns false if the session was already ended.
func (s *Session) End() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.StatusEnded {
		return false
	}
	s.status = domain.StatusEnded
	for id, t := range s.graceTimers {
		t.Stop()
		delete(s.graceTimers, id)
	}
	close(s.stop)

	s.broadcastLocked(domain.Event{Type: domain.EventSessionEnded, Payload: domain.SessionEndedEvent{
		SessionID:   s.ID,
		Leaderboard: s.leaderboardLocked(),
	}})
	return true
}

// Stopped closes when the session ends, by host action or naturally.
func (s *Session) Stopped() <-chan struct{} {
	return s.stop
}

func (s *Session) maybeCloseRoundLocked() {
	if s.phase != domain.PhaseQuestion || s.allIn || s.roundDone == nil {
		return
	}
	active := 0
	answered := 0
	qID := s.questions[s.current].ID
	for _, p := range s.participants {
		if p.Status != domain.ParticipantJoined {
			continue
		}
		active++
		if _, ok := s.answers[qID][p.UserID]; ok {
			answered++
		}
	}
	// An empty round still runs to its timeout.
	if active > 0 && answered == active {
		s.allIn = true
		close(s.roundDone)
	}
}
