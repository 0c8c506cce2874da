package engine

import (
	"live-quiz-service/internal/domain"
)

const defaultPoints = 1

// Evaluate scores a selected option against a question's answer key. Pure and
// side-effect free: correctness comes from the option flag, points from the
// question's configured value with a fallback of 1.
func Evaluate(q domain.Question, optionID string) (correct bool, points int, err error) {
	var selected *domain.Option
	for i := range q.Options {
		if q.Options[i].ID == optionID {
			selected = &q.Options[i]
			break
		}
	}
	if selected == nil {
		return false, 0, domain.ErrOptionNotFound
	}
	if !selected.Correct {
		return false, 0, nil
	}
	return true, questionPoints(q), nil
}

func questionPoints(q domain.Question) int {
	if q.Points > 0 {
		return q.Points
	}
	return defaultPoints
}

func correctOptionID(q domain.Question) string {
	for _, o := range q.Options {
		if o.Correct {
			return o.ID
		}
	}
	return ""
}

// SubmitAnswer records one participant's answer for the currently open
// question. The answer-record insert and the score increment happen as one
// unit under the session lock, so a participant's score always equals the
// sum of its correct answers' points. A second submission for the same
// question is rejected, never overwritten, and the deadline is authoritative
// over arrival order.
func (s *Session) SubmitAnswer(userID, questionID, optionID string) (domain.AnswerRecord, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.StatusEnded {
		return domain.AnswerRecord{}, 0, domain.ErrSessionEnded
	}

	p, ok := s.participants[userID]
	if !ok {
		return domain.AnswerRecord{}, 0, domain.ErrParticipantNotFound
	}

	if !s.questionInListLocked(questionID) {
		return domain.AnswerRecord{}, p.Score, domain.ErrQuestionNotFound
	}
	if s.phase != domain.PhaseQuestion || s.questions[s.current].ID != questionID {
		return domain.AnswerRecord{}, p.Score, domain.ErrRoundClosed
	}
	if s.now().After(s.deadline) {
		return domain.AnswerRecord{}, p.Score, domain.ErrRoundClosed
	}

	if _, dup := s.answers[questionID][userID]; dup {
		return domain.AnswerRecord{}, p.Score, domain.ErrAlreadyAnswered
	}

	q := s.questions[s.current]
	correct, points, err := Evaluate(q, optionID)
	if err != nil {
		return domain.AnswerRecord{}, p.Score, err
	}

	rec := domain.AnswerRecord{
		UserID:      userID,
		QuestionID:  questionID,
		OptionID:    optionID,
		Correct:     correct,
		SubmittedAt: s.now(),
	}
	if correct {
		rec.Points = points
	}

	if s.answers[questionID] == nil {
		s.answers[questionID] = make(map[string]domain.AnswerRecord)
	}
	s.answers[questionID][userID] = rec
	if correct {
		p.Score += points
	}

	s.broadcastLocked(domain.Event{Type: domain.EventLeaderboard, Payload: s.leaderboardLocked()})
	s.maybeCloseRoundLocked()
	return rec, p.Score, nil
}

// AnswerFor returns the recorded answer for a (participant, question) pair.
func (s *Session) AnswerFor(userID, questionID string) (domain.AnswerRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.answers[questionID][userID]
	return rec, ok
}

func (s *Session) questionInListLocked(questionID string) bool {
	for i := range s.questions {
		if s.questions[i].ID == questionID {
			return true
		}
	}
	return false
}
