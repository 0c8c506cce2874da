package engine

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
)

func TestEvaluate(t *testing.T) {
	q := twoQuestionList()[1] // worth 3 points

	correct, points, err := Evaluate(q, "o1")
	if err != nil || !correct || points != 3 {
		t.Fatalf("expected correct for 3 points, got correct=%v points=%d err=%v", correct, points, err)
	}

	correct, points, err = Evaluate(q, "o2")
	if err != nil || correct || points != 0 {
		t.Fatalf("expected incorrect for 0 points, got correct=%v points=%d err=%v", correct, points, err)
	}

	if _, _, err := Evaluate(q, "nope"); err != domain.ErrOptionNotFound {
		t.Fatalf("expected ErrOptionNotFound, got %v", err)
	}
}

func TestEvaluateDefaultPoints(t *testing.T) {
	q := domain.Question{
		ID: "q1",
		Options: []domain.Option{
			{ID: "o1", Correct: true},
		},
	}
	if _, points, _ := Evaluate(q, "o1"); points != 1 {
		t.Fatalf("expected default of 1 point, got %d", points)
	}
}

func TestSubmitAnswerAwardsOnce(t *testing.T) {
	sess := activeSessionOnQ1(t)
	_, _ = sess.Join("u1", "Alice")

	rec, total, err := sess.SubmitAnswer("u1", "q1", "o2")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !rec.Correct || rec.Points != 1 || total != 1 {
		t.Fatalf("expected 1 point awarded, got %+v total=%d", rec, total)
	}

	// A second submission must be rejected without touching the record.
	if _, _, err := sess.SubmitAnswer("u1", "q1", "o1"); err != domain.ErrAlreadyAnswered {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}
	kept, ok := sess.AnswerFor("u1", "q1")
	if !ok || kept.OptionID != "o2" {
		t.Fatalf("expected original answer kept, got %+v", kept)
	}
}

func TestSubmitAnswerIncorrectKeepsScore(t *testing.T) {
	sess := activeSessionOnQ1(t)
	_, _ = sess.Join("u1", "Alice")

	rec, total, err := sess.SubmitAnswer("u1", "q1", "o1")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if rec.Correct || rec.Points != 0 || total != 0 {
		t.Fatalf("expected no points for wrong answer, got %+v total=%d", rec, total)
	}
	// Wrong answers still count as answered.
	if _, _, err := sess.SubmitAnswer("u1", "q1", "o2"); err != domain.ErrAlreadyAnswered {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}
}

func TestSubmitAnswerValidation(t *testing.T) {
	sess := activeSessionOnQ1(t)
	_, _ = sess.Join("u1", "Alice")

	if _, _, err := sess.SubmitAnswer("ghost", "q1", "o2"); err != domain.ErrParticipantNotFound {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
	if _, _, err := sess.SubmitAnswer("u1", "q99", "o2"); err != domain.ErrQuestionNotFound {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
	// q2 exists but its round has not opened yet.
	if _, _, err := sess.SubmitAnswer("u1", "q2", "o1"); err != domain.ErrRoundClosed {
		t.Fatalf("expected ErrRoundClosed for future question, got %v", err)
	}
	if _, _, err := sess.SubmitAnswer("u1", "q1", "o99"); err != domain.ErrOptionNotFound {
		t.Fatalf("expected ErrOptionNotFound, got %v", err)
	}
}

func TestSubmitAfterDeadlineRejected(t *testing.T) {
	clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	now := &clock
	sess := newSessionWithClock("s1", "123456", "quiz-1", "host-1", twoQuestionList(), func() time.Time { return *now })
	_, _ = sess.Join("u1", "Alice")
	_ = sess.Begin()
	if _, _, started, _ := sess.startNextQuestion(30 * time.Second); !started {
		t.Fatal("expected round to start")
	}

	*now = clock.Add(31 * time.Second)
	if _, _, err := sess.SubmitAnswer("u1", "q1", "o2"); err != domain.ErrRoundClosed {
		t.Fatalf("expected ErrRoundClosed past deadline, got %v", err)
	}
}

func TestSubmitAfterRevealRejected(t *testing.T) {
	sess := activeSessionOnQ1(t)
	_, _ = sess.Join("u1", "Alice")
	if _, _, ok := sess.reveal(); !ok {
		t.Fatal("reveal failed")
	}
	if _, _, err := sess.SubmitAnswer("u1", "q1", "o2"); err != domain.ErrRoundClosed {
		t.Fatalf("expected ErrRoundClosed after reveal, got %v", err)
	}
}

func TestSubmitAfterEndRejected(t *testing.T) {
	sess := activeSessionOnQ1(t)
	_, _ = sess.Join("u1", "Alice")
	sess.End()
	if _, _, err := sess.SubmitAnswer("u1", "q1", "o2"); !errors.Is(err, domain.ErrSessionEnded) {
		t.Fatalf("expected ErrSessionEnded, got %v", err)
	}
}

// TestScoreEqualsSumOfCorrectAnswers drives a randomized multi-round session
// and checks the score invariant after every round.
func TestScoreEqualsSumOfCorrectAnswers(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	questions := make([]domain.Question, 0, 5)
	for i := 0; i < 5; i++ {
		questions = append(questions, domain.Question{
			ID:     string(rune('a' + i)),
			Prompt: "pick",
			Options: []domain.Option{
				{ID: "o1", Correct: i%2 == 0},
				{ID: "o2", Correct: i%2 != 0},
			},
			Points: 1 + i,
		})
	}
	sess := newSession("s1", "123456", "quiz-1", "host-1", questions)
	users := []string{"u1", "u2", "u3"}
	for _, u := range users {
		if _, err := sess.Join(u, u); err != nil {
			t.Fatalf("join failed: %v", err)
		}
	}
	_ = sess.Begin()

	expected := map[string]int{}
	for {
		_, _, started, finished := sess.startNextQuestion(time.Minute)
		if finished {
			break
		}
		if !started {
			t.Fatal("round did not start")
		}
		q := sess.questions[sess.current]
		for _, u := range users {
			if rnd.Intn(4) == 0 {
				continue // sits this round out
			}
			opt := q.Options[rnd.Intn(len(q.Options))]
			rec, _, err := sess.SubmitAnswer(u, q.ID, opt.ID)
			if err != nil {
				t.Fatalf("submit failed: %v", err)
			}
			if opt.Correct {
				expected[u] += questionPoints(q)
				if !rec.Correct {
					t.Fatalf("expected correct flag for %s", opt.ID)
				}
			}
		}
		if _, _, ok := sess.reveal(); !ok {
			t.Fatal("reveal failed")
		}
		for _, e := range sess.Leaderboard().Entries {
			if e.Score != expected[e.UserID] {
				t.Fatalf("score drift for %s: got %d want %d", e.UserID, e.Score, expected[e.UserID])
			}
		}
	}
}
