package engine

import (
	"strconv"
	"strings"
	"testing"

	"minigame_bot/internal/domain"
)

// qzSession builds a running quiz with a pinned question so answers
// are deterministic.
func qzSession(arg string) (*Quiz, *domain.Session) {
	q := NewQuiz(testTimeouts())
	s := domain.NewSession("room1", domain.ModeQuiz, "u1")
	q.Init(s, arg)
	if o := q.Join(s, "u1", "player1"); !o.OK {
		panic("join rejected")
	}
	s.Quiz.Question = "999 + 999 = ?"
	s.Quiz.Answer = "1998"
	return q, s
}

func TestQuizInitArgs(t *testing.T) {
	cases := []struct {
		arg     string
		level   string
		endless bool
	}{
		{"", "easy", false},
		{"hard", "hard", false},
		{"endless", "easy", true},
		{"hell endless", "hell", true},
		{"endless normal", "normal", true},
		{"bogus", "easy", false},
	}
	for _, tc := range cases {
		q := NewQuiz(testTimeouts())
		s := domain.NewSession("room1", domain.ModeQuiz, "u1")
		q.Init(s, tc.arg)
		if s.Quiz.Level != tc.level || s.Quiz.Endless != tc.endless {
			t.Fatalf("arg %q: got level %q endless %v, want %q/%v",
				tc.arg, s.Quiz.Level, s.Quiz.Endless, tc.level, tc.endless)
		}
	}
}

func TestQuizStartsOnJoinAndSeatsOnePlayer(t *testing.T) {
	q := NewQuiz(testTimeouts())
	s := domain.NewSession("room1", domain.ModeQuiz, "u1")
	q.Init(s, "")

	o := q.Join(s, "u1", "player1")
	if !o.OK {
		t.Fatalf("join rejected: %+v", o)
	}
	if s.Phase != domain.PhasePlaying {
		t.Fatalf("phase = %s, want playing right after join", s.Phase)
	}
	if s.Quiz.Question == "" || s.Quiz.Answer == "" {
		t.Fatalf("no question served: %+v", s.Quiz)
	}
	if o := q.Join(s, "u2", "player2"); o.OK || o.Code != domain.RejectRoomFull {
		t.Fatalf("second join: got %+v, want RoomFull reject", o)
	}
}

func TestQuizCorrectAnswerEnds(t *testing.T) {
	q, s := qzSession("")

	o := q.HandleAction(s, domain.Action{ActorID: "u1", Kind: domain.ActionAnswer, Text: "1998"})
	if !o.OK || !o.Ended {
		t.Fatalf("correct answer outcome: %+v", o)
	}
	if s.Phase != domain.PhaseEnded {
		t.Fatalf("phase = %s, want ended", s.Phase)
	}
	if !strings.Contains(strings.Join(o.Broadcasts, "\n"), "Correct") {
		t.Fatalf("missing praise: %v", o.Broadcasts)
	}
}

func TestQuizWrongAnswerBudget(t *testing.T) {
	q, s := qzSession("")

	for i := 0; i < quizMaxAttempts-1; i++ {
		o := q.HandleAction(s, domain.Action{ActorID: "u1", Kind: domain.ActionAnswer, Text: "99"})
		if !o.OK || o.Ended {
			t.Fatalf("miss %d outcome: %+v", i+1, o)
		}
		if !strings.Contains(o.Reply, "attempt(s) left") {
			t.Fatalf("miss %d reply: %q", i+1, o.Reply)
		}
	}
	last := q.HandleAction(s, domain.Action{ActorID: "u1", Kind: domain.ActionAnswer, Text: "99"})
	if !last.Ended {
		t.Fatalf("third miss did not end the quiz: %+v", last)
	}
	if !strings.Contains(strings.Join(last.Broadcasts, "\n"), "The answer was 1998") {
		t.Fatalf("answer not revealed: %v", last.Broadcasts)
	}
}

func TestQuizAnswerWhitespaceNormalized(t *testing.T) {
	q, s := qzSession("")
	s.Quiz.Answer = "12 3" // division style: quotient remainder

	o := q.HandleAction(s, domain.Action{ActorID: "u1", Kind: domain.ActionAnswer, Text: "  12   3 "})
	if !o.OK || !o.Ended {
		t.Fatalf("spaced answer outcome: %+v", o)
	}
}

func TestQuizEndlessScoresAndServesNext(t *testing.T) {
	q, s := qzSession("endless")
	genBefore := s.PhaseGen

	o := q.HandleAction(s, domain.Action{ActorID: "u1", Kind: domain.ActionAnswer, Text: "1998"})
	if !o.OK || o.Ended {
		t.Fatalf("endless correct answer outcome: %+v", o)
	}
	if s.Quiz.Score != 1 {
		t.Fatalf("score = %d, want 1", s.Quiz.Score)
	}
	if s.Phase != domain.PhasePlaying || s.PhaseGen == genBefore {
		t.Fatal("next question did not re-arm the answer window")
	}
	if s.Quiz.Question == "999 + 999 = ?" {
		t.Fatal("question was not replaced")
	}

	// the first miss ends the run and reports the streak
	s.Quiz.Answer = "42"
	last := q.HandleAction(s, domain.Action{ActorID: "u1", Kind: domain.ActionAnswer, Text: "0"})
	if !last.Ended {
		t.Fatalf("endless miss did not end the run: %+v", last)
	}
	if !strings.Contains(strings.Join(last.Broadcasts, "\n"), "1 correct answer") {
		t.Fatalf("final score missing: %v", last.Broadcasts)
	}
}

func TestQuizGiveUpAndTimeoutReveal(t *testing.T) {
	q, s := qzSession("")
	o := q.HandleAction(s, domain.Action{ActorID: "u1", Kind: domain.ActionGiveUp})
	if !o.OK || !o.Ended {
		t.Fatalf("give up outcome: %+v", o)
	}
	if !strings.Contains(strings.Join(o.Broadcasts, "\n"), "The answer was 1998") {
		t.Fatalf("answer not revealed on give up: %v", o.Broadcasts)
	}

	q2, s2 := qzSession("")
	to := q2.HandleTimeout(s2, domain.PhasePlaying)
	if to == nil || !to.Ended {
		t.Fatalf("timeout outcome: %+v", to)
	}
	if !strings.Contains(strings.Join(to.Broadcasts, "\n"), "Time is up") {
		t.Fatalf("timeout not announced: %v", to.Broadcasts)
	}
}

func TestQuizStrangerCannotAnswer(t *testing.T) {
	q, s := qzSession("")
	if o := q.HandleAction(s, domain.Action{ActorID: "u9", Kind: domain.ActionAnswer, Text: "1998"}); o.OK {
		t.Fatalf("stranger's answer accepted: %+v", o)
	}
}

func TestGenerateQuestionAnswersItself(t *testing.T) {
	for _, level := range quizLevels {
		for i := 0; i < 50; i++ {
			question, answer := generateQuestion(level)
			if question == "" || answer == "" {
				t.Fatalf("%s: empty question/answer", level)
			}
			if strings.Contains(question, "÷") {
				parts := strings.Fields(answer)
				if len(parts) != 2 {
					t.Fatalf("%s: division answer %q not quotient+remainder", level, answer)
				}
				continue
			}
			if _, err := strconv.Atoi(answer); err != nil {
				t.Fatalf("%s: answer %q not a number", level, answer)
			}
		}
	}
}
