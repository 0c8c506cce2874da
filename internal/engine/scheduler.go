package engine

import (
	"time"

	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
)

// Scheduler drives the time-boxed round loop for active sessions. Each
// session gets one goroutine that opens rounds, waits on the earlier of the
// deadline or all active participants answering, reveals the answer, holds
// for the reveal interval, and advances until the question list is exhausted
// or the session is ended from outside.
type Scheduler struct {
	revealInterval  time.Duration
	defaultDuration time.Duration
	log             *zap.Logger

	// onRoundClosed receives the round's answer records after each reveal.
	onRoundClosed func(sess *Session, records []domain.AnswerRecord)
	// onFinished runs once after the last round completes naturally.
	onFinished func(sess *Session)
}

func NewScheduler(revealInterval, defaultDuration time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		revealInterval:  revealInterval,
		defaultDuration: defaultDuration,
		log:             log,
	}
}

// SetHooks wires the callbacks invoked at round close and natural finish.
// Must be called before Run.
func (sc *Scheduler) SetHooks(onRoundClosed func(*Session, []domain.AnswerRecord), onFinished func(*Session)) {
	sc.onRoundClosed = onRoundClosed
	sc.onFinished = onFinished
}

// Run executes the round loop for one session. It returns when the session
// finishes or is ended early; a host end-session cancels any pending timer
// and discards a reveal hold still in progress.
func (sc *Scheduler) Run(sess *Session) {
	for {
		ev, roundDone, started, finished := sess.startNextQuestion(sc.defaultDuration)
		if finished {
			break
		}
		if !started {
			// Ended from outside between rounds.
			return
		}

		timer := time.NewTimer(time.Until(ev.Deadline))
		select {
		case <-timer.C:
		case <-roundDone:
			timer.Stop()
		case <-sess.Stopped():
			timer.Stop()
			return
		}

		_, records, ok := sc.revealRound(sess)
		if !ok {
			return
		}
		if sc.onRoundClosed != nil && len(records) > 0 {
			sc.onRoundClosed(sess, records)
		}

		hold := time.NewTimer(sc.revealInterval)
		select {
		case <-hold.C:
		case <-sess.Stopped():
			hold.Stop()
			return
		}
	}

	sc.log.Info("session finished all questions",
		zap.String("session_id", sess.ID),
		zap.String("quiz_id", sess.QuizID))
	if sc.onFinished != nil {
		sc.onFinished(sess)
	}
}

func (sc *Scheduler) revealRound(sess *Session) (domain.AnswerRevealedEvent, []domain.AnswerRecord, bool) {
	ev, records, ok := sess.reveal()
	if !ok {
		// The session was ended while the round was open.
		return domain.AnswerRevealedEvent{}, nil, false
	}
	sc.log.Debug("round revealed",
		zap.String("session_id", sess.ID),
		zap.String("question_id", ev.QuestionID),
		zap.Int("answers", len(records)))
	return ev, records, true
}
