package engine

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"minigame_bot/internal/config"
	"minigame_bot/internal/domain"
)

const (
	rouletteChambers = 6
	rouletteMaxSpins = 4
	defaultBullets   = 1
)

// Roulette implements russian roulette: a six-chamber cylinder loaded
// with 1 to 5 bullets, players take turns pulling the trigger, last
// one standing wins.
type Roulette struct {
	t config.Timeouts
}

func NewRoulette(t config.Timeouts) *Roulette {
	return &Roulette{t: t}
}

func (r *Roulette) Mode() domain.Mode { return domain.ModeRoulette }

func (r *Roulette) MinPlayers() int { return 2 }

func (r *Roulette) Init(s *domain.Session, arg string) {
	bullets := defaultBullets
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= rouletteChambers-1 {
		bullets = n
	}
	s.Roulette = &domain.RouletteState{
		Bullets:   bullets,
		SpinsLeft: make(map[string]int),
	}
}

func (r *Roulette) maxPlayers(s *domain.Session) int {
	return s.Roulette.Bullets + 1
}

func (r *Roulette) PhaseDuration(p domain.Phase) time.Duration {
	switch p {
	case domain.PhaseWaiting:
		return r.t.LobbyAutoStart
	case domain.PhasePlaying:
		return r.t.RouletteTurn
	}
	return 0
}

func (r *Roulette) Join(s *domain.Session, userID, name string) *domain.Outcome {
	if s.Phase != domain.PhaseWaiting {
		return domain.Reject(domain.RejectWrongPhase, "The game has already started, you can no longer join.")
	}
	if s.PlayerByID(userID) != nil {
		return domain.Reject(domain.RejectDuplicateAction, "You have already joined this game.")
	}
	if len(s.Players) >= r.maxPlayers(s) {
		return domain.Reject(domain.RejectRoomFull,
			fmt.Sprintf("The table is full: %d bullets seat at most %d players.", s.Roulette.Bullets, r.maxPlayers(s)))
	}
	s.Players = append(s.Players, &domain.Player{
		UserID:      userID,
		DisplayName: name,
		IsAlive:     true,
	})
	o := domain.Accept(fmt.Sprintf("%s sat down at the table. Players: %d/%d",
		name, len(s.Players), r.maxPlayers(s)))
	if len(s.Players) == r.maxPlayers(s) {
		o.Broadcast("The table is full, the game starts now!")
		r.launch(s, o)
	}
	return o
}

func (r *Roulette) Leave(s *domain.Session, userID string) *domain.Outcome {
	if s.Phase != domain.PhaseWaiting {
		return domain.Reject(domain.RejectWrongPhase, "The game has already started, you can no longer leave.")
	}
	idx := -1
	for i, p := range s.Players {
		if p.UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Reject(domain.RejectNotInRoom, "You are not in this game.")
	}
	left := s.Players[idx]
	s.Players = append(s.Players[:idx], s.Players[idx+1:]...)
	if userID == s.HostID {
		o := domain.Accept("")
		o.Dissolved = true
		o.Broadcast(fmt.Sprintf("Host %s left the table, the game is dissolved.", left.DisplayName))
		return o
	}
	return domain.Accept(fmt.Sprintf("%s left the table. Players: %d", left.DisplayName, len(s.Players)))
}

func (r *Roulette) Start(s *domain.Session, userID string) *domain.Outcome {
	if userID != s.HostID {
		return domain.Reject(domain.RejectNotHost, "Only the host can start the game.")
	}
	if s.Phase != domain.PhaseWaiting {
		return domain.Reject(domain.RejectWrongPhase, fmt.Sprintf("Cannot start from phase %s.", s.Phase))
	}
	if len(s.Players) < r.MinPlayers() {
		return domain.Reject(domain.RejectTooFewPlayers,
			fmt.Sprintf("Not enough players: %d joined, at least %d required.", len(s.Players), r.MinPlayers()))
	}
	// no identities to deal privately, so starting commits immediately
	return domain.Accept("")
}

func (r *Roulette) Abort(s *domain.Session) {
	s.SetPhase(domain.PhaseWaiting)
}

func (r *Roulette) Launch(s *domain.Session) *domain.Outcome {
	o := domain.Accept("")
	r.launch(s, o)
	return o
}

// launch loads the cylinder, shuffles the turn order and opens play.
func (r *Roulette) launch(s *domain.Session, o *domain.Outcome) {
	st := s.Roulette
	st.Cylinder = make([]int, rouletteChambers)
	for i := 0; i < st.Bullets; i++ {
		st.Cylinder[i] = 1
	}
	rand.Shuffle(rouletteChambers, func(i, j int) {
		st.Cylinder[i], st.Cylinder[j] = st.Cylinder[j], st.Cylinder[i]
	})
	st.Position = rand.IntN(rouletteChambers)

	for i, p := range s.Players {
		p.TempID = domain.Seat(i + 1)
		st.SpinsLeft[p.UserID] = rouletteMaxSpins
	}
	s.SpeakOrder = s.SpeakOrder[:0]
	for _, p := range s.Players {
		s.SpeakOrder = append(s.SpeakOrder, p.UserID)
	}
	rand.Shuffle(len(s.SpeakOrder), func(i, j int) {
		s.SpeakOrder[i], s.SpeakOrder[j] = s.SpeakOrder[j], s.SpeakOrder[i]
	})
	st.TurnIndex = -1

	s.SetPhase(domain.PhasePlaying)
	o.Broadcast(fmt.Sprintf(
		"The revolver holds %d bullet(s) in %d chambers. %d players at the table. Last one standing wins!",
		st.Bullets, rouletteChambers, len(s.Players)))
	r.nextTurn(s, o)
}

func (r *Roulette) turnPlayer(s *domain.Session) *domain.Player {
	st := s.Roulette
	if st.TurnIndex < 0 || st.TurnIndex >= len(s.SpeakOrder) {
		return nil
	}
	return s.PlayerByID(s.SpeakOrder[st.TurnIndex])
}

// nextTurn advances to the next living player, wrapping around the
// fixed order and skipping the dead.
func (r *Roulette) nextTurn(s *domain.Session, o *domain.Outcome) {
	st := s.Roulette
	for range s.SpeakOrder {
		st.TurnIndex = (st.TurnIndex + 1) % len(s.SpeakOrder)
		p := s.PlayerByID(s.SpeakOrder[st.TurnIndex])
		if p != nil && p.IsAlive {
			s.BumpGen()
			o.Broadcast(fmt.Sprintf(
				"%s, the gun is yours. #fire to pull the trigger, #spin to spin the cylinder (%d spin(s) left, %.0fs).",
				p.Label(), st.SpinsLeft[p.UserID], r.t.RouletteTurn.Seconds()))
			return
		}
	}
}

func (r *Roulette) HandleAction(s *domain.Session, act domain.Action) *domain.Outcome {
	switch act.Kind {
	case domain.ActionSpin:
		return r.spin(s, act.ActorID)
	case domain.ActionFire:
		return r.fire(s, act.ActorID)
	}
	return domain.Reject(domain.RejectWrongPhase, "That command does not belong to this game.")
}

func (r *Roulette) spin(s *domain.Session, userID string) *domain.Outcome {
	if s.Phase != domain.PhasePlaying {
		return domain.Reject(domain.RejectWrongPhase, "The game is not running.")
	}
	p := r.turnPlayer(s)
	if p == nil || p.UserID != userID {
		return domain.Reject(domain.RejectNotYourTurn, "It is not your turn.")
	}
	st := s.Roulette
	if st.SpinsLeft[userID] <= 0 {
		return domain.Reject(domain.RejectResourceExhausted, "You have no spins left.")
	}
	st.SpinsLeft[userID]--
	st.Position = rand.IntN(rouletteChambers)
	o := domain.Accept("")
	o.Broadcast(fmt.Sprintf("%s spins the cylinder... it clicks to a stop. %d spin(s) left.",
		p.Label(), st.SpinsLeft[userID]))
	return o
}

func (r *Roulette) fire(s *domain.Session, userID string) *domain.Outcome {
	if s.Phase != domain.PhasePlaying {
		return domain.Reject(domain.RejectWrongPhase, "The game is not running.")
	}
	p := r.turnPlayer(s)
	if p == nil || p.UserID != userID {
		return domain.Reject(domain.RejectNotYourTurn, "It is not your turn.")
	}
	o := domain.Accept("")
	r.pullTrigger(s, o, p)
	return o
}

func (r *Roulette) pullTrigger(s *domain.Session, o *domain.Outcome, p *domain.Player) {
	st := s.Roulette
	hit := st.Cylinder[st.Position] == 1
	if hit {
		st.Cylinder[st.Position] = 0
	}
	st.Position = (st.Position + 1) % rouletteChambers

	if !hit {
		o.Broadcast(fmt.Sprintf("%s pulls the trigger... click. An empty chamber.", p.Label()))
		r.nextTurn(s, o)
		return
	}

	p.IsAlive = false
	o.Broadcast(fmt.Sprintf("BANG! %s is out of the game.", p.Label()))

	if s.AliveCount() == 1 {
		winner := s.AlivePlayers()[0]
		s.SetPhase(domain.PhaseEnded)
		o.Ended = true
		o.Winner = winner.Label()
		o.Broadcast(fmt.Sprintf("%s is the last one standing and wins the game!", winner.Label()))
		return
	}
	r.nextTurn(s, o)
}

func (r *Roulette) HandleTimeout(s *domain.Session, phase domain.Phase) *domain.Outcome {
	o := domain.Accept("")
	switch phase {
	case domain.PhaseWaiting:
		if len(s.Players) >= r.MinPlayers() {
			o.Broadcast("Time is up, the table starts with the players who sat down.")
			r.launch(s, o)
			return o
		}
		o.Dissolved = true
		o.Broadcast("Not enough players sat down in time, the table is closed.")
	case domain.PhasePlaying:
		if p := r.turnPlayer(s); p != nil {
			o.Broadcast(fmt.Sprintf("%s hesitated too long, the trigger is pulled for them!", p.Label()))
			r.pullTrigger(s, o, p)
		}
	}
	return o
}

func (r *Roulette) Status(s *domain.Session) string {
	st := s.Roulette
	switch s.Phase {
	case domain.PhaseWaiting:
		return fmt.Sprintf("Russian roulette, %d bullet(s), waiting for players (%d/%d).",
			st.Bullets, len(s.Players), r.maxPlayers(s))
	case domain.PhaseEnded:
		return "Russian roulette, game over."
	}
	turn := "nobody"
	if p := r.turnPlayer(s); p != nil {
		turn = p.Label()
	}
	return fmt.Sprintf("Russian roulette, %d player(s) alive, %s holds the gun.\n%s",
		s.AliveCount(), turn, s.AliveRoster())
}
