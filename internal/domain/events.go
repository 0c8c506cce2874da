package domain

import "time"

// EventType tags an outbound session event.
type EventType string

const (
	EventParticipantJoined EventType = "participantJoined"
	EventParticipantLeft   EventType = "participantLeft"
	EventPhaseChanged      EventType = "phaseChanged"
	EventQuestionStarted   EventType = "questionStarted"
	EventAnswerRevealed    EventType = "answerRevealed"
	EventLeaderboard       EventType = "leaderboard"
	EventSessionEnded      EventType = "sessionEnded"
)

// Event is the envelope broadcast to every connection subscribed to a session.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// ParticipantEvent announces a join or leave.
type ParticipantEvent struct {
	SessionID   string `json:"sessionId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	ActiveCount int    `json:"activeCount"`
}

// PhaseChangedEvent announces a phase transition.
type PhaseChangedEvent struct {
	SessionID     string `json:"sessionId"`
	Phase         Phase  `json:"phase"`
	QuestionIndex int    `json:"questionIndex"`
	TotalCount    int    `json:"totalCount"`
}

// OptionView is an option stripped of its correctness flag.
type OptionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionView is the sanitized question payload broadcast while a round is open.
type QuestionView struct {
	ID              string       `json:"id"`
	Prompt          string       `json:"prompt"`
	Options         []OptionView `json:"options"`
	Index           int          `json:"index"`
	Total           int          `json:"total"`
	Points          int          `json:"points"`
	DurationSeconds int          `json:"durationSeconds"`
}

// QuestionStartedEvent opens a round. Deadline is authoritative on the server;
// clients merely count down from DurationSeconds.
type QuestionStartedEvent struct {
	SessionID string       `json:"sessionId"`
	Question  QuestionView `json:"question"`
	Deadline  time.Time    `json:"deadline"`
}

// AnswerRevealedEvent closes a round with the correct option and a leaderboard snapshot.
type AnswerRevealedEvent struct {
	SessionID       string      `json:"sessionId"`
	QuestionID      string      `json:"questionId"`
	CorrectOptionID string      `json:"correctOptionId"`
	Leaderboard     Leaderboard `json:"leaderboard"`
}

// SessionEndedEvent is the final broadcast for a session.
type SessionEndedEvent struct {
	SessionID   string      `json:"sessionId"`
	Leaderboard Leaderboard `json:"leaderboard"`
}
