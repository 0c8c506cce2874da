package domain

import "time"

// SessionStatus is the lifecycle status of a quiz session.
type SessionStatus string

const (
	StatusPending SessionStatus = "PENDING"
	StatusActive  SessionStatus = "ACTIVE"
	StatusPaused  SessionStatus = "PAUSED"
	StatusEnded   SessionStatus = "ENDED"
)

// Phase is the current stage within a session's lifecycle.
type Phase string

const (
	PhaseLobby         Phase = "lobby"
	PhaseQuestion      Phase = "question"
	PhaseShowingAnswer Phase = "showingAnswer"
	PhaseFinished      Phase = "finished"
)

// ParticipantStatus tracks whether a participant is currently joined.
type ParticipantStatus string

const (
	ParticipantJoined ParticipantStatus = "joined"
	ParticipantLeft   ParticipantStatus = "left"
)

// Participant represents a joined user within one session and their running score.
type Participant struct {
	UserID      string            `json:"userId"`
	DisplayName string            `json:"displayName"`
	Score       int               `json:"score"`
	Status      ParticipantStatus `json:"status"`
	JoinedAt    time.Time         `json:"joinedAt"`
}

// AnswerRecord is the immutable record of one participant answering one question.
// At most one record exists per (participant, question) pair.
type AnswerRecord struct {
	UserID      string    `json:"userId"`
	QuestionID  string    `json:"questionId"`
	OptionID    string    `json:"optionId"`
	Correct     bool      `json:"correct"`
	Points      int       `json:"points"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// LeaderboardEntry is a snapshot-friendly view of a participant.
type LeaderboardEntry struct {
	Position    int    `json:"position"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
}

// Leaderboard captures the ordered scoreboard for a session: score descending,
// ties broken by earlier join time.
type Leaderboard struct {
	SessionID string             `json:"sessionId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Option represents a possible answer for a question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models an MCQ question with exactly one correct option.
// Points defaults to 1 and DurationSeconds to the engine default if zero.
type Question struct {
	ID              string   `json:"id"`
	Prompt          string   `json:"prompt"`
	Options         []Option `json:"options"`
	Points          int      `json:"points"`
	DurationSeconds int      `json:"durationSeconds"`
}

// Quiz is an ordered collection of questions.
type Quiz struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// SessionRow is the durable representation of a session.
type SessionRow struct {
	ID        string        `json:"id"`
	Code      string        `json:"code"`
	QuizID    string        `json:"quizId"`
	HostID    string        `json:"hostId"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

// ParticipantRow is the durable representation of a participant in a session.
type ParticipantRow struct {
	SessionID   string            `json:"sessionId"`
	UserID      string            `json:"userId"`
	DisplayName string            `json:"displayName"`
	Score       int               `json:"score"`
	Status      ParticipantStatus `json:"status"`
	JoinedAt    time.Time         `json:"joinedAt"`
}

// SessionResult is the persisted final score record for one participant in
// one ended session, keyed by (user, session).
type SessionResult struct {
	UserID      string `json:"userId"`
	QuizID      string `json:"quizId"`
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
}

// SessionSummary is a host-facing view of one of their sessions.
type SessionSummary struct {
	ID               string        `json:"id"`
	Code             string        `json:"code"`
	QuizID           string        `json:"quizId"`
	Status           SessionStatus `json:"status"`
	ParticipantCount int           `json:"participantCount"`
	CreatedAt        time.Time     `json:"createdAt"`
}
