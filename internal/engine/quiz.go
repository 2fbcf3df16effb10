package engine

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"minigame_bot/internal/config"
	"minigame_bot/internal/domain"
)

const quizMaxAttempts = 3

var quizLevels = []string{"easy", "normal", "hard", "hell"}

// Quiz implements the single-player mental-arithmetic game: one
// question at a time, a fixed answering window, and an endless
// variant that keeps serving questions until the first miss.
type Quiz struct {
	t config.Timeouts
}

func NewQuiz(t config.Timeouts) *Quiz {
	return &Quiz{t: t}
}

func (q *Quiz) Mode() domain.Mode { return domain.ModeQuiz }

func (q *Quiz) MinPlayers() int { return 1 }

func (q *Quiz) Init(s *domain.Session, arg string) {
	st := &domain.QuizState{Level: "easy"}
	for _, tok := range strings.Fields(arg) {
		switch {
		case tok == "endless":
			st.Endless = true
		default:
			for _, lvl := range quizLevels {
				if tok == lvl {
					st.Level = lvl
				}
			}
		}
	}
	s.Quiz = st
}

func (q *Quiz) PhaseDuration(p domain.Phase) time.Duration {
	if p == domain.PhasePlaying {
		return q.t.QuizAnswer
	}
	return 0
}

// Join seats the one player and starts immediately; there is no lobby.
func (q *Quiz) Join(s *domain.Session, userID, name string) *domain.Outcome {
	if s.Phase != domain.PhaseWaiting {
		return domain.Reject(domain.RejectWrongPhase, "A quiz is already running here.")
	}
	if len(s.Players) > 0 {
		return domain.Reject(domain.RejectRoomFull, "The quiz is a single-player game, wait for the current one to finish.")
	}
	s.Players = append(s.Players, &domain.Player{
		UserID:      userID,
		DisplayName: name,
		IsAlive:     true,
	})

	o := domain.Accept("")
	if s.Quiz.Endless {
		o.Broadcast(fmt.Sprintf(
			"Endless quiz (%s) for %s! A correct answer brings the next question; a miss, a timeout or #giveup ends the run.",
			s.Quiz.Level, name))
	} else {
		o.Broadcast(fmt.Sprintf(
			"Quiz (%s) for %s! One question, %d tries, %.0fs. #answer [result] to answer, #giveup to quit.",
			s.Quiz.Level, name, quizMaxAttempts, q.t.QuizAnswer.Seconds()))
	}
	q.nextQuestion(s, o)
	return o
}

func (q *Quiz) Leave(s *domain.Session, userID string) *domain.Outcome {
	if s.PlayerByID(userID) == nil {
		return domain.Reject(domain.RejectNotInRoom, "You are not in this quiz.")
	}
	o := domain.Accept("")
	o.Dissolved = true
	o.Broadcast("The quiz was abandoned.")
	return o
}

// Start is a no-op surface: the quiz starts the moment it is created.
func (q *Quiz) Start(s *domain.Session, userID string) *domain.Outcome {
	return domain.Reject(domain.RejectWrongPhase, "The quiz starts by itself, just answer the question.")
}

func (q *Quiz) Abort(s *domain.Session) {
	s.SetPhase(domain.PhaseWaiting)
}

func (q *Quiz) Launch(s *domain.Session) *domain.Outcome {
	return domain.Accept("")
}

// nextQuestion serves a fresh question and re-arms the answer window.
func (q *Quiz) nextQuestion(s *domain.Session, o *domain.Outcome) {
	st := s.Quiz
	st.Question, st.Answer = generateQuestion(st.Level)
	st.Attempts = 1
	if s.Phase == domain.PhasePlaying {
		s.BumpGen()
	} else {
		s.SetPhase(domain.PhasePlaying)
	}

	if st.Endless {
		o.Broadcast(fmt.Sprintf("Question %d:\n%s", st.Score+1, st.Question))
		return
	}
	o.Broadcast(fmt.Sprintf("Answer within %.0fs:\n%s", q.t.QuizAnswer.Seconds(), st.Question))
}

func (q *Quiz) HandleAction(s *domain.Session, act domain.Action) *domain.Outcome {
	switch act.Kind {
	case domain.ActionAnswer:
		return q.answer(s, act)
	case domain.ActionGiveUp:
		return q.giveUp(s, act.ActorID)
	}
	return domain.Reject(domain.RejectWrongPhase, "That command does not belong to this game.")
}

func (q *Quiz) answer(s *domain.Session, act domain.Action) *domain.Outcome {
	if s.Phase != domain.PhasePlaying {
		return domain.Reject(domain.RejectWrongPhase, "There is no question to answer.")
	}
	p := s.PlayerByID(act.ActorID)
	if p == nil {
		return domain.Reject(domain.RejectNotInRoom, "This is not your quiz.")
	}
	st := s.Quiz

	given := strings.Join(strings.Fields(act.Text), " ")
	if given == st.Answer {
		if st.Endless {
			st.Score++
			o := domain.Accept("")
			o.Broadcast(fmt.Sprintf("Correct! Current score: %d.", st.Score))
			q.nextQuestion(s, o)
			return o
		}
		o := domain.Accept("")
		o.Broadcast(fmt.Sprintf("Correct, well done %s!", p.DisplayName))
		q.endQuiz(s, o)
		return o
	}

	if st.Endless {
		o := domain.Accept("")
		o.Broadcast(fmt.Sprintf("Wrong! The answer was %s.\nYour endless run ends with %d correct answer(s).",
			st.Answer, st.Score))
		q.endQuiz(s, o)
		return o
	}

	if st.Attempts >= quizMaxAttempts {
		o := domain.Accept("")
		o.Broadcast(fmt.Sprintf("Wrong %d times! The answer was %s.", quizMaxAttempts, st.Answer))
		q.endQuiz(s, o)
		return o
	}
	st.Attempts++
	return domain.Accept(fmt.Sprintf("Wrong, you have %d attempt(s) left.", quizMaxAttempts+1-st.Attempts))
}

func (q *Quiz) giveUp(s *domain.Session, userID string) *domain.Outcome {
	if s.Phase != domain.PhasePlaying {
		return domain.Reject(domain.RejectWrongPhase, "There is no question to give up on.")
	}
	if s.PlayerByID(userID) == nil {
		return domain.Reject(domain.RejectNotInRoom, "This is not your quiz.")
	}
	st := s.Quiz
	o := domain.Accept("")
	msg := fmt.Sprintf("You gave up. The answer was %s.", st.Answer)
	if st.Endless {
		msg += fmt.Sprintf("\nYour endless run ends with %d correct answer(s).", st.Score)
	}
	o.Broadcast(msg)
	q.endQuiz(s, o)
	return o
}

func (q *Quiz) endQuiz(s *domain.Session, o *domain.Outcome) {
	s.SetPhase(domain.PhaseEnded)
	o.Ended = true
	if len(s.Players) > 0 {
		o.Winner = s.Players[0].DisplayName
	}
}

func (q *Quiz) HandleTimeout(s *domain.Session, phase domain.Phase) *domain.Outcome {
	if phase != domain.PhasePlaying {
		return nil
	}
	st := s.Quiz
	o := domain.Accept("")
	msg := fmt.Sprintf("Time is up! The answer was %s.", st.Answer)
	if st.Endless {
		msg += fmt.Sprintf("\nYour endless run ends with %d correct answer(s).", st.Score)
	}
	o.Broadcast(msg)
	q.endQuiz(s, o)
	return o
}

func (q *Quiz) Status(s *domain.Session) string {
	st := s.Quiz
	if s.Phase != domain.PhasePlaying {
		return fmt.Sprintf("Quiz (%s), game over.", st.Level)
	}
	mode := "normal"
	if st.Endless {
		mode = fmt.Sprintf("endless, score %d", st.Score)
	}
	return fmt.Sprintf("Quiz (%s, %s), outstanding question:\n%s", st.Level, mode, st.Question)
}

// generateQuestion builds one arithmetic problem for the level and
// returns the rendered question plus the expected answer string.
// Division problems expect "quotient remainder".
func generateQuestion(level string) (string, string) {
	var num1, num2 int
	var op string
	remainder := false

	switch level {
	case "normal":
		switch rand.IntN(3) {
		case 0:
			op = "+"
			// force a carry in the ones column
			for {
				num1, num2 = 10+rand.IntN(90), 10+rand.IntN(90)
				if num1%10+num2%10 >= 10 {
					break
				}
			}
		case 1:
			op = "-"
			// force a borrow in the ones column
			for {
				num1, num2 = 10+rand.IntN(90), 10+rand.IntN(90)
				if num1 < num2 {
					num1, num2 = num2, num1
				}
				if num1%10 < num2%10 {
					break
				}
			}
		default:
			op = "*"
			num1, num2 = 10+rand.IntN(90), 2+rand.IntN(8)
		}
	case "hard":
		switch rand.IntN(4) {
		case 0:
			op = "+"
			// carries in both the ones and the tens columns
			for {
				num1, num2 = 100+rand.IntN(900), 100+rand.IntN(900)
				if num1%100+num2%100 >= 100 && num1%10+num2%10 >= 10 {
					break
				}
			}
		case 1:
			op = "-"
			// borrows in both the ones and the tens columns
			for {
				num1, num2 = 100+rand.IntN(900), 100+rand.IntN(900)
				if num1 < num2 {
					num1, num2 = num2, num1
				}
				if num1%10 < num2%10 && (num1/10)%10 < (num2/10)%10 {
					break
				}
			}
		case 2:
			op = "*"
			num1, num2 = 10+rand.IntN(90), 10+rand.IntN(90)
		default:
			op = "/"
			remainder = true
			num1, num2 = 100+rand.IntN(900), 2+rand.IntN(8)
		}
	case "hell":
		switch rand.IntN(4) {
		case 0:
			op = "+"
			num1, num2 = 1000+rand.IntN(90000), 1000+rand.IntN(90000)
		case 1:
			op = "-"
			num1, num2 = 1000+rand.IntN(90000), 1000+rand.IntN(90000)
			if num1 < num2 {
				num1, num2 = num2, num1
			}
		case 2:
			op = "*"
			num1, num2 = 100+rand.IntN(900), 10+rand.IntN(90)
		default:
			op = "/"
			remainder = true
			num1, num2 = 1000+rand.IntN(9000), 10+rand.IntN(90)
		}
	default: // easy
		if rand.IntN(2) == 0 {
			op = "+"
			num1, num2 = 1+rand.IntN(20), 1+rand.IntN(20)
		} else {
			op = "-"
			// small numbers, no borrowing anywhere
			for {
				num1 = 2 + rand.IntN(19)
				num2 = 1 + rand.IntN(num1-1)
				if noBorrow(num1, num2) {
					break
				}
			}
		}
	}

	var answer string
	switch op {
	case "+":
		answer = fmt.Sprintf("%d", num1+num2)
	case "-":
		answer = fmt.Sprintf("%d", num1-num2)
	case "*":
		answer = fmt.Sprintf("%d", num1*num2)
	case "/":
		answer = fmt.Sprintf("%d %d", num1/num2, num1%num2)
	}

	question := fmt.Sprintf("%d %s %d = ?", num1, displayOp(op), num2)
	if remainder {
		question += " (answer as: quotient remainder)"
	}
	return question, answer
}

// noBorrow reports whether num1-num2 needs no borrowing in any column.
func noBorrow(num1, num2 int) bool {
	for num2 > 0 {
		if num1%10 < num2%10 {
			return false
		}
		num1 /= 10
		num2 /= 10
	}
	return true
}

func displayOp(op string) string {
	switch op {
	case "*":
		return "×"
	case "/":
		return "÷"
	}
	return op
}
