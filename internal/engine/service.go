package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
)

// persistTimeout bounds the durable writes triggered by a session ending,
// which run detached from the request context that caused them.
const persistTimeout = 30 * time.Second

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// UserDirectory provisions user identities; guests are created on the fly
// from a display name.
type UserDirectory interface {
	FindOrCreateByDisplayName(ctx context.Context, name string) (string, error)
}

// StartAck acknowledges a host's start-session action.
type StartAck struct {
	SessionID string `json:"sessionId"`
	Code      string `json:"code"`
}

// JoinAck acknowledges a join-session action.
type JoinAck struct {
	SessionID   string             `json:"sessionId"`
	UserID      string             `json:"userId"`
	Participant domain.Participant `json:"participant"`
	Leaderboard domain.Leaderboard `json:"leaderboard"`
}

// AnswerAck acknowledges a submit-answer action.
type AnswerAck struct {
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"correct"`
	Awarded    int    `json:"awarded"`
	TotalScore int    `json:"totalScore"`
}

// Service is the only component that accepts external actions and the only
// one that pushes state outward. Each inbound action validates, mutates
// through the store/registry/scoring engine, and lets broadcasts fan out to
// every subscriber of the session.
type Service struct {
	store      *Store
	quizzes    QuizRepository
	users      UserDirectory
	scheduler  *Scheduler
	syncer     *Syncer
	sessionLog SessionLog
	grace      time.Duration
	log        *zap.Logger
	metrics    *Metrics
}

func NewService(
	store *Store,
	quizzes QuizRepository,
	users UserDirectory,
	scheduler *Scheduler,
	syncer *Syncer,
	sessionLog SessionLog,
	grace time.Duration,
	log *zap.Logger,
	metrics *Metrics,
) *Service {
	s := &Service{
		store:      store,
		quizzes:    quizzes,
		users:      users,
		scheduler:  scheduler,
		syncer:     syncer,
		sessionLog: sessionLog,
		grace:      grace,
		log:        log,
		metrics:    metrics,
	}
	scheduler.SetHooks(s.persistRound, s.completeSession)
	return s
}

// StartSession creates a session in the lobby phase for a quiz the host
// owns, with a freshly allocated join code. A quiz without a loadable,
// non-empty question list fails the start before any state is published.
func (s *Service) StartSession(ctx context.Context, quizID, hostID string) (StartAck, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return StartAck{}, err
	}
	if len(quiz.Questions) == 0 {
		return StartAck{}, domain.ErrNoQuestions
	}

	code, err := s.store.AllocateCode(ctx)
	if err != nil {
		return StartAck{}, err
	}

	sess := newSession(uuid.NewString(), code, quizID, hostID, quiz.Questions)
	if s.metrics != nil {
		sess.onBroadcast = s.metrics.BroadcastsTotal.Inc
	}
	if err := s.sessionLog.CreateSession(ctx, domain.SessionRow{
		ID:        sess.ID,
		Code:      code,
		QuizID:    quizID,
		HostID:    hostID,
		Status:    domain.StatusPending,
		CreatedAt: sess.CreatedAt,
	}); err != nil {
		_ = s.store.codes.Release(ctx, code)
		return StartAck{}, err
	}

	s.store.Add(sess)
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(s.store.Len()))
	}
	s.log.Info("session created",
		zap.String("session_id", sess.ID),
		zap.String("quiz_id", quizID),
		zap.String("code", code))
	return StartAck{SessionID: sess.ID, Code: code}, nil
}

// BeginSession is the host's trigger out of the lobby: it activates the
// session and hands it to the scheduler, which runs the rounds from here on.
func (s *Service) BeginSession(ctx context.Context, sessionID, hostID string) error {
	sess, ok := s.store.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if !sess.IsHost(hostID) {
		return domain.ErrNotHost
	}
	if err := sess.Begin(); err != nil {
		return err
	}
	if err := s.sessionLog.UpdateSessionStatus(ctx, sessionID, domain.StatusActive); err != nil {
		s.log.Warn("durable status update failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	go s.scheduler.Run(sess)
	return nil
}

// JoinSession resolves a join code, provisions the user when no identity is
// supplied, and registers the participant. Joining is idempotent per
// (session, user); a rejoin resumes the same identity without score loss.
func (s *Service) JoinSession(ctx context.Context, code, userID, displayName string) (JoinAck, error) {
	sess, ok := s.store.GetByCode(code)
	if !ok {
		return JoinAck{}, domain.ErrSessionNotFound
	}

	if userID == "" {
		id, err := s.users.FindOrCreateByDisplayName(ctx, displayName)
		if err != nil {
			return JoinAck{}, err
		}
		userID = id
	}

	p, err := sess.Join(userID, displayName)
	if err != nil {
		return JoinAck{}, err
	}

	if err := s.sessionLog.UpsertParticipant(ctx, domain.ParticipantRow{
		SessionID:   sess.ID,
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Score:       p.Score,
		Status:      p.Status,
		JoinedAt:    p.JoinedAt,
	}); err != nil {
		s.log.Warn("durable participant upsert failed", zap.String("session_id", sess.ID), zap.Error(err))
	}

	return JoinAck{
		SessionID:   sess.ID,
		UserID:      p.UserID,
		Participant: p,
		Leaderboard: sess.Leaderboard(),
	}, nil
}

// LeaveSession flips the participant to left; score and history remain.
func (s *Service) LeaveSession(ctx context.Context, sessionID, userID string) error {
	sess, ok := s.store.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return sess.Leave(userID)
}

// Disconnect handles a connection drop without an explicit leave: the
// participant keeps their standing for the grace window so a reconnect
// resumes the same identity.
func (s *Service) Disconnect(sessionID, userID string) {
	sess, ok := s.store.Get(sessionID)
	if !ok {
		return
	}
	sess.Disconnect(userID, s.grace)
}

// SubmitAnswer records an answer for the currently open round and returns a
// synchronous acknowledgment with the outcome.
func (s *Service) SubmitAnswer(ctx context.Context, sessionID, userID, questionID, optionID string) (AnswerAck, error) {
	sess, ok := s.store.Get(sessionID)
	if !ok {
		return AnswerAck{}, domain.ErrSessionNotFound
	}

	rec, total, err := sess.SubmitAnswer(userID, questionID, optionID)
	if err != nil {
		if s.metrics != nil {
			s.metrics.AnswersTotal.WithLabelValues("rejected").Inc()
		}
		return AnswerAck{}, err
	}
	if s.metrics != nil {
		s.metrics.AnswersTotal.WithLabelValues("accepted").Inc()
	}
	return AnswerAck{
		QuestionID: questionID,
		Correct:    rec.Correct,
		Awarded:    rec.Points,
		TotalScore: total,
	}, nil
}

// EndSession is the host's force-end: valid from any state, it cancels the
// pending round timer, stops the scheduler, and reconciles scores durably.
func (s *Service) EndSession(ctx context.Context, sessionID, hostID string) error {
	sess, ok := s.store.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if !sess.IsHost(hostID) {
		return domain.ErrNotHost
	}
	return s.finalize(sess, "host")
}

// Subscribe attaches a connection to a session's event stream.
func (s *Service) Subscribe(sessionID string) (<-chan domain.Event, func(), error) {
	sess, ok := s.store.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := sess.Subscribe()
	if s.metrics != nil {
		s.metrics.ConnectedClients.Inc()
	}
	wrapped := func() {
		cancel()
		if s.metrics != nil {
			s.metrics.ConnectedClients.Dec()
		}
	}
	return ch, wrapped, nil
}

// Rebuild regenerates a session's durable result rows, from the live
// registry when the session is still resident or from durable participant
// rows after a restart.
func (s *Service) Rebuild(ctx context.Context, sessionID string) error {
	var live []domain.ParticipantRow
	quizID := ""
	sess, resident := s.store.Get(sessionID)
	if resident {
		live = sess.Snapshot()
		quizID = sess.QuizID
	} else {
		row, err := s.sessionLog.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		quizID = row.QuizID
	}
	if err := s.syncer.Rebuild(ctx, sessionID, quizID, live); err != nil {
		return err
	}

	// A session retained after a failed end-sync can be released now that
	// its results are durable; the earlier failure also left the durable
	// status behind, so reconcile it here.
	if resident && sess.Status() == domain.StatusEnded {
		if err := s.sessionLog.UpdateSessionStatus(ctx, sessionID, domain.StatusEnded); err != nil {
			s.log.Warn("durable status update failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		s.store.Remove(ctx, sessionID)
		if s.metrics != nil {
			s.metrics.ActiveSessions.Set(float64(s.store.Len()))
		}
		s.log.Info("retained session released after rebuild", zap.String("session_id", sessionID))
	}
	return nil
}

// HostSessions lists a host's sessions with participant counts.
func (s *Service) HostSessions(ctx context.Context, hostID string) ([]domain.SessionSummary, error) {
	rows, err := s.sessionLog.ListSessionsByHost(ctx, hostID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SessionSummary, 0, len(rows))
	for _, row := range rows {
		count := 0
		if sess, ok := s.store.Get(row.ID); ok {
			count = len(sess.Snapshot())
		} else if parts, err := s.sessionLog.ListParticipants(ctx, row.ID); err == nil {
			count = len(parts)
		}
		out = append(out, domain.SessionSummary{
			ID:               row.ID,
			Code:             row.Code,
			QuizID:           row.QuizID,
			Status:           row.Status,
			ParticipantCount: count,
			CreatedAt:        row.CreatedAt,
		})
	}
	return out, nil
}

// completeSession runs when the scheduler exhausts the question list.
func (s *Service) completeSession(sess *Session) {
	if err := s.finalize(sess, "completed"); err != nil {
		s.log.Error("finalize after natural finish failed",
			zap.String("session_id", sess.ID),
			zap.Error(err))
	}
}

func (s *Service) finalize(sess *Session, trigger string) error {
	if !sess.End() {
		return domain.ErrSessionEnded
	}
	if s.metrics != nil {
		s.metrics.SessionsEnded.WithLabelValues(trigger).Inc()
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.syncer.SyncSession(ctx, sess.ID, sess.QuizID, sess.Snapshot()); err != nil {
		// Keep the session in memory so a manual rebuild can recover it.
		s.log.Error("result sync failed, session retained for rebuild",
			zap.String("session_id", sess.ID),
			zap.Error(err))
		return err
	}

	s.store.Remove(ctx, sess.ID)
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(s.store.Len()))
	}
	s.log.Info("session ended and persisted",
		zap.String("session_id", sess.ID),
		zap.String("trigger", trigger))
	return nil
}

func (s *Service) persistRound(sess *Session, records []domain.AnswerRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.syncer.SyncAnswers(ctx, sess.ID, records); err != nil {
		s.log.Warn("answer record sync failed",
			zap.String("session_id", sess.ID),
			zap.Error(err))
	}
}
