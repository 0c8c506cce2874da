package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no live or durable session matches.
	ErrSessionNotFound = errors.New("session not found")
	// ErrParticipantNotFound is returned when a user tries to act before joining.
	ErrParticipantNotFound = errors.New("participant not found in session")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a submitted question ID is not in the session's question list.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = errors.New("option not found")

	// ErrSessionEnded rejects actions against a session already in ENDED status.
	ErrSessionEnded = errors.New("session ended")
	// ErrAlreadyAnswered rejects a second submission for the same question.
	ErrAlreadyAnswered = errors.New("already answered")
	// ErrRoundClosed rejects submissions that arrive after the round's deadline.
	ErrRoundClosed = errors.New("round closed")
	// ErrInvalidTransition indicates a phase change that would regress the state machine.
	ErrInvalidTransition = errors.New("invalid phase transition")
	// ErrCodeExhausted indicates no unique join code could be allocated.
	ErrCodeExhausted = errors.New("could not allocate unique join code")

	// ErrNotHost rejects host-only actions from other users.
	ErrNotHost = errors.New("not host")

	// ErrNoQuestions aborts session creation for a quiz without questions.
	ErrNoQuestions = errors.New("quiz has no questions")

	// ErrNoResultSource is returned by a rebuild when neither live state nor
	// durable participant rows remain for the session.
	ErrNoResultSource = errors.New("no participant data to rebuild results from")
)

// ErrorCode buckets an engine error into the acknowledgment taxonomy sent to clients.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrParticipantNotFound),
		errors.Is(err, ErrQuizNotFound),
		errors.Is(err, ErrQuestionNotFound),
		errors.Is(err, ErrOptionNotFound),
		errors.Is(err, ErrNoResultSource):
		return "not_found"
	case errors.Is(err, ErrSessionEnded),
		errors.Is(err, ErrAlreadyAnswered),
		errors.Is(err, ErrRoundClosed),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrCodeExhausted):
		return "conflict"
	case errors.Is(err, ErrNotHost):
		return "unauthorized"
	case errors.Is(err, ErrNoQuestions):
		return "fatal"
	default:
		return "internal"
	}
}
