package engine

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"minigame_bot/internal/config"
	"minigame_bot/internal/domain"
)

// undercoverSpeech is the per-speaker window; shorter than the
// werewolf one since descriptions are a single sentence.
const undercoverSpeech = 30 * time.Second

// Undercover implements the who-is-the-spy word game: one spy gets a
// near-synonym of everyone else's word, rounds of description and
// voting follow until the spy is found or outnumbers the rest.
type Undercover struct {
	t config.Timeouts
}

func NewUndercover(t config.Timeouts) *Undercover {
	return &Undercover{t: t}
}

func (u *Undercover) Mode() domain.Mode { return domain.ModeUndercover }

func (u *Undercover) MinPlayers() int { return 3 }

func (u *Undercover) Init(s *domain.Session, arg string) {
	s.Undercover = &domain.UndercoverState{Open: arg == "open"}
}

func (u *Undercover) PhaseDuration(p domain.Phase) time.Duration {
	switch p {
	case domain.PhaseDaySpeak:
		return undercoverSpeech
	case domain.PhaseDayVote:
		return u.t.Vote
	}
	return 0
}

func (u *Undercover) Join(s *domain.Session, userID, name string) *domain.Outcome {
	if s.Phase != domain.PhaseWaiting {
		return domain.Reject(domain.RejectWrongPhase, "The game has already started, you can no longer join.")
	}
	if s.PlayerByID(userID) != nil {
		return domain.Reject(domain.RejectDuplicateAction, "You have already joined this game.")
	}
	s.Players = append(s.Players, &domain.Player{
		UserID:      userID,
		DisplayName: name,
		IsAlive:     true,
	})
	return domain.Accept(fmt.Sprintf("%s joined the undercover game. Players: %d", name, len(s.Players)))
}

func (u *Undercover) Leave(s *domain.Session, userID string) *domain.Outcome {
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
		o.Broadcast(fmt.Sprintf("Host %s left, the game is dissolved.", left.DisplayName))
		return o
	}
	return domain.Accept(fmt.Sprintf("%s left the game. Players: %d", left.DisplayName, len(s.Players)))
}

func (u *Undercover) Start(s *domain.Session, userID string) *domain.Outcome {
	if userID != s.HostID {
		return domain.Reject(domain.RejectNotHost, "Only the host can start the game.")
	}
	if s.Phase != domain.PhaseWaiting {
		return domain.Reject(domain.RejectWrongPhase, fmt.Sprintf("Cannot start from phase %s.", s.Phase))
	}
	if len(s.Players) < u.MinPlayers() {
		return domain.Reject(domain.RejectTooFewPlayers,
			fmt.Sprintf("Not enough players: %d joined, at least %d required.", len(s.Players), u.MinPlayers()))
	}

	s.SetPhase(domain.PhaseStarting)
	for i, p := range s.Players {
		p.TempID = domain.Seat(i + 1)
	}

	pair := pickWordPair()
	s.Undercover.CommonWord = pair.common
	s.Undercover.SpyWord = pair.spy
	spy := rand.IntN(len(s.Players))
	for i, p := range s.Players {
		if i == spy {
			p.Role = domain.RoleSpy
		} else {
			p.Role = domain.RoleCivilian
		}
	}

	o := domain.Accept("Words dealt, sending them privately...")
	o.Broadcast("Checking that every player can receive private messages...")
	for _, p := range s.Players {
		word := s.Undercover.CommonWord
		if p.Role == domain.RoleSpy {
			word = s.Undercover.SpyWord
		}
		o.Private(p.UserID, fmt.Sprintf(
			"Your word this game: [%s]\nYour seat number: [#%s]\nDescribe it without saying it. One of you holds a different word.",
			word, p.TempID))
	}
	return o
}

func (u *Undercover) Abort(s *domain.Session) {
	for _, p := range s.Players {
		p.Role = ""
		p.TempID = ""
	}
	s.Undercover.CommonWord = ""
	s.Undercover.SpyWord = ""
	s.SetPhase(domain.PhaseWaiting)
}

func (u *Undercover) Launch(s *domain.Session) *domain.Outcome {
	o := domain.Accept("")
	o.Broadcast(fmt.Sprintf("All words delivered. %d players, one of them is the spy. Good luck!", len(s.Players)))
	u.beginRound(s, o)
	return o
}

func (u *Undercover) beginRound(s *domain.Session, o *domain.Outcome) {
	s.Undercover.Round++
	s.Undercover.TieSeats = nil
	s.Undercover.HadTie = false
	s.SetPhase(domain.PhaseDaySpeak)
	o.Broadcast(fmt.Sprintf("--- Round %d - Description ---", s.Undercover.Round))

	s.SpeakOrder = s.SpeakOrder[:0]
	for _, p := range s.AlivePlayers() {
		s.SpeakOrder = append(s.SpeakOrder, p.UserID)
	}
	s.SpeakIdx = -1
	u.advanceSpeaker(s, o)
}

func (u *Undercover) currentSpeaker(s *domain.Session) *domain.Player {
	if s.SpeakIdx < 0 || s.SpeakIdx >= len(s.SpeakOrder) {
		return nil
	}
	return s.PlayerByID(s.SpeakOrder[s.SpeakIdx])
}

func (u *Undercover) advanceSpeaker(s *domain.Session, o *domain.Outcome) {
	s.SpeakIdx++
	if s.SpeakIdx >= len(s.SpeakOrder) {
		u.beginVote(s, o)
		return
	}
	s.BumpGen()
	if sp := u.currentSpeaker(s); sp != nil {
		o.Broadcast(fmt.Sprintf("%s, describe your word (%.0fs). Send #done when finished.",
			sp.Label(), undercoverSpeech.Seconds()))
	}
}

func (u *Undercover) beginVote(s *domain.Session, o *domain.Outcome) {
	s.SetPhase(domain.PhaseDayVote)
	s.Votes = make(map[string]string)
	if len(s.Undercover.TieSeats) > 0 {
		roster := ""
		for _, seat := range s.Undercover.TieSeats {
			if p := s.PlayerBySeat(seat); p != nil {
				if roster != "" {
					roster += "\n"
				}
				roster += fmt.Sprintf("%s: %s", p.TempID, p.DisplayName)
			}
		}
		o.Broadcast(fmt.Sprintf(
			"Revote: only the tied seats may be chosen. Send #vote [seat] (%.0fs).\n%s",
			u.t.Vote.Seconds(), roster))
		return
	}
	o.Broadcast(fmt.Sprintf(
		"Who is the spy? Send #vote [seat]. Silence counts as abstaining (%.0fs).\nAlive players:\n%s",
		u.t.Vote.Seconds(), s.AliveRoster()))
}

func (u *Undercover) HandleAction(s *domain.Session, act domain.Action) *domain.Outcome {
	switch act.Kind {
	case domain.ActionEndSpeech:
		return u.endSpeech(s, act.ActorID)
	case domain.ActionVote:
		return u.recordVote(s, act)
	}
	return domain.Reject(domain.RejectWrongPhase, "That command does not belong to this game.")
}

func (u *Undercover) endSpeech(s *domain.Session, userID string) *domain.Outcome {
	if s.Phase != domain.PhaseDaySpeak {
		return domain.Reject(domain.RejectWrongPhase, "It is not description time.")
	}
	sp := u.currentSpeaker(s)
	if sp == nil || sp.UserID != userID {
		return domain.Reject(domain.RejectNotYourTurn, "It is not your turn to describe.")
	}
	o := domain.Accept("")
	u.advanceSpeaker(s, o)
	return o
}

func (u *Undercover) recordVote(s *domain.Session, act domain.Action) *domain.Outcome {
	if s.Phase != domain.PhaseDayVote {
		return domain.Reject(domain.RejectWrongPhase, "It is not voting time.")
	}
	voter := s.PlayerByID(act.ActorID)
	if voter == nil || !voter.IsAlive {
		return domain.Reject(domain.RejectNotInRoom, "You cannot vote in this game.")
	}
	if _, ok := s.Votes[voter.UserID]; ok {
		return domain.Reject(domain.RejectAlreadyVoted, "You have already voted.")
	}
	target := s.PlayerBySeat(act.TargetSeat)
	if target == nil || !target.IsAlive {
		return domain.Reject(domain.RejectInvalidTarget, "That seat number is invalid or the player is out.")
	}
	if target.UserID == voter.UserID {
		return domain.Reject(domain.RejectInvalidTarget, "You cannot vote for yourself.")
	}
	if len(s.Undercover.TieSeats) > 0 && !slices.Contains(s.Undercover.TieSeats, act.TargetSeat) {
		return domain.Reject(domain.RejectInvalidTarget, "Only the tied seats may be voted in a revote.")
	}

	s.Votes[voter.UserID] = act.TargetSeat
	o := domain.Accept(fmt.Sprintf("%s voted for %s.", voter.Label(), target.Label()))

	if len(s.Votes) == s.AliveCount() {
		o.Broadcast("Everyone has voted, counting votes...")
		u.tally(s, o)
	}
	return o
}

// tally eliminates the strict plurality target. A first tie narrows
// the candidates and revotes once; a second tie eliminates nobody.
// A round with no votes at all also eliminates nobody.
func (u *Undercover) tally(s *domain.Session, o *domain.Outcome) {
	counts := make(map[string]int)
	for _, seat := range s.Votes {
		counts[seat]++
	}
	s.Votes = make(map[string]string)

	maxVotes := 0
	var top []string
	for seat, n := range counts {
		switch {
		case n > maxVotes:
			maxVotes = n
			top = []string{seat}
		case n == maxVotes:
			top = append(top, seat)
		}
	}
	slices.Sort(top)

	switch {
	case maxVotes == 0:
		o.Broadcast("Nobody voted. On to the next round.")
		u.beginRound(s, o)
	case len(top) == 1:
		u.eliminate(s, o, top[0])
	case s.Undercover.HadTie:
		o.Broadcast("Tied again. Nobody is eliminated this round.")
		u.beginRound(s, o)
	default:
		s.Undercover.HadTie = true
		s.Undercover.TieSeats = top
		o.Broadcast(fmt.Sprintf("Tie between seats %v. One revote among the tied players.", top))
		u.beginVote(s, o)
	}
}

func (u *Undercover) eliminate(s *domain.Session, o *domain.Outcome, seat string) {
	out := s.PlayerBySeat(seat)
	out.IsAlive = false
	if s.Undercover.Open {
		kind := "a civilian"
		if out.Role == domain.RoleSpy {
			kind = "the SPY"
		}
		o.Broadcast(fmt.Sprintf("%s was voted out. They were %s.", out.Label(), kind))
	} else {
		o.Broadcast(fmt.Sprintf("%s was voted out.", out.Label()))
	}

	if out.Role == domain.RoleSpy {
		u.endGame(s, o, "civilians")
		return
	}
	// one spy, so the spy wins the moment parity is reached
	if s.AliveCount() <= 2 {
		u.endGame(s, o, "spy")
		return
	}
	u.beginRound(s, o)
}

func (u *Undercover) endGame(s *domain.Session, o *domain.Outcome, winner string) {
	s.SetPhase(domain.PhaseEnded)
	o.Ended = true
	o.Winner = winner

	var spy *domain.Player
	for _, p := range s.Players {
		if p.Role == domain.RoleSpy {
			spy = p
			break
		}
	}
	verdict := "The spy wins!"
	if winner == "civilians" {
		verdict = "The civilians win!"
	}
	o.Broadcast(fmt.Sprintf(
		"%s\nThe spy was %s.\nCommon word: [%s], spy word: [%s]",
		verdict, spy.Label(), s.Undercover.CommonWord, s.Undercover.SpyWord))
}

func (u *Undercover) HandleTimeout(s *domain.Session, phase domain.Phase) *domain.Outcome {
	o := domain.Accept("")
	switch phase {
	case domain.PhaseDaySpeak:
		if sp := u.currentSpeaker(s); sp != nil {
			o.Broadcast(fmt.Sprintf("%s's time is up.", sp.Label()))
		}
		u.advanceSpeaker(s, o)
	case domain.PhaseDayVote:
		o.Broadcast("Voting time is up, counting votes...")
		u.tally(s, o)
	}
	return o
}

func (u *Undercover) Status(s *domain.Session) string {
	switch s.Phase {
	case domain.PhaseWaiting:
		return fmt.Sprintf("Undercover, waiting for players (%d joined, %d needed).",
			len(s.Players), u.MinPlayers())
	case domain.PhaseEnded:
		return "Undercover, game over."
	}
	return fmt.Sprintf("Undercover, round %d, phase %s, %d players alive:\n%s",
		s.Undercover.Round, s.Phase, s.AliveCount(), s.AliveRoster())
}
