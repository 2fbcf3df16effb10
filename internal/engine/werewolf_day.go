package engine

import (
	"fmt"
	"sort"

	"minigame_bot/internal/domain"
)

// beginDaySpeak opens the discussion: speaking order is the living
// players in seat order, pointer before the first.
func (w *Werewolf) beginDaySpeak(s *domain.Session, o *domain.Outcome) {
	s.SetPhase(domain.PhaseDaySpeak)
	o.Broadcast(fmt.Sprintf("--- Day %d - Daytime ---", s.Day))

	s.SpeakOrder = s.SpeakOrder[:0]
	for _, p := range s.AlivePlayers() {
		s.SpeakOrder = append(s.SpeakOrder, p.UserID)
	}
	s.SpeakIdx = -1

	if len(s.SpeakOrder) == 0 {
		o.Broadcast("Nobody is left to speak, moving straight to the vote.")
		w.beginDayVote(s, o)
		return
	}
	w.advanceSpeaker(s, o)
}

func (w *Werewolf) currentSpeaker(s *domain.Session) *domain.Player {
	if s.SpeakIdx < 0 || s.SpeakIdx >= len(s.SpeakOrder) {
		return nil
	}
	return s.PlayerByID(s.SpeakOrder[s.SpeakIdx])
}

// advanceSpeaker moves the pointer forward; past the end of the order
// the room proceeds to the vote. Each speaker gets a fresh timer
// window, so the generation is bumped on every advance.
func (w *Werewolf) advanceSpeaker(s *domain.Session, o *domain.Outcome) {
	s.SpeakIdx++
	if s.SpeakIdx >= len(s.SpeakOrder) {
		o.Broadcast("Everyone has spoken, moving to the vote.")
		w.beginDayVote(s, o)
		return
	}
	s.BumpGen()
	if sp := w.currentSpeaker(s); sp != nil {
		o.Broadcast(fmt.Sprintf("%s, please speak (%.0fs). Send #done when finished.",
			sp.Label(), w.t.Speech.Seconds()))
	}
}

func (w *Werewolf) endSpeech(s *domain.Session, userID string) *domain.Outcome {
	if s.Phase != domain.PhaseDaySpeak {
		return domain.Reject(domain.RejectWrongPhase, "It is not discussion time.")
	}
	sp := w.currentSpeaker(s)
	if sp == nil || sp.UserID != userID {
		return domain.Reject(domain.RejectNotYourTurn, "It is not your turn to speak.")
	}
	o := domain.Accept("")
	o.Broadcast(fmt.Sprintf("%s finished speaking.", sp.Label()))
	w.advanceSpeaker(s, o)
	return o
}

func (w *Werewolf) beginDayVote(s *domain.Session, o *domain.Outcome) {
	s.SetPhase(domain.PhaseDayVote)
	s.Votes = make(map[string]string)
	o.Broadcast(fmt.Sprintf(
		"Voting begins: send #vote [seat]. No self-votes, silence counts as abstaining. You have %.0fs.\nAlive players:\n%s",
		w.t.Vote.Seconds(), s.AliveRoster()))
}

func (w *Werewolf) recordVote(s *domain.Session, act domain.Action) *domain.Outcome {
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
		return domain.Reject(domain.RejectInvalidTarget, "That seat number is invalid or the player is dead.")
	}
	if target.UserID == voter.UserID {
		return domain.Reject(domain.RejectInvalidTarget, "You cannot vote for yourself.")
	}

	s.Votes[voter.UserID] = act.TargetSeat
	o := domain.Accept(fmt.Sprintf("%s voted for %s.", voter.Label(), target.Label()))

	if len(s.Votes) == s.AliveCount() {
		o.Broadcast("Everyone has voted, counting votes...")
		w.tallyVotes(s, o)
	}
	return o
}

// tallyVotes applies the elimination policy: strict plurality is
// eliminated, a tie at the top eliminates nobody, abstentions never
// count toward a target. Votes are cleared regardless of outcome.
func (w *Werewolf) tallyVotes(s *domain.Session, o *domain.Outcome) {
	alive := s.AlivePlayers()
	if len(alive) == 0 {
		// invariant violation: the manager force-ends on Ended with no winner
		o.Broadcast("No players remain; closing the game.")
		w.endGame(s, o, "nobody")
		return
	}

	counts := make(map[string]int)
	abstain := 0
	for _, p := range alive {
		if seat, ok := s.Votes[p.UserID]; ok {
			counts[seat]++
		} else {
			abstain++
		}
	}
	s.Votes = make(map[string]string)

	seats := make([]string, 0, len(counts))
	for seat := range counts {
		seats = append(seats, seat)
	}
	sort.Strings(seats)

	summary := "Vote result:"
	for _, seat := range seats {
		if t := s.PlayerBySeat(seat); t != nil {
			summary += fmt.Sprintf("\n%s: %d vote(s)", t.Label(), counts[seat])
		}
	}
	if abstain > 0 {
		summary += fmt.Sprintf("\nAbstained: %d", abstain)
	}

	maxVotes := 0
	var top []string
	for _, seat := range seats {
		switch {
		case counts[seat] > maxVotes:
			maxVotes = counts[seat]
			top = []string{seat}
		case counts[seat] == maxVotes && maxVotes > 0:
			top = append(top, seat)
		}
	}

	switch {
	case len(top) == 1:
		eliminated := s.PlayerBySeat(top[0])
		eliminated.IsAlive = false
		summary += fmt.Sprintf("\n%s was voted out.", eliminated.Label())
		o.Broadcast(summary)

		if ended, winner := checkWin(s); ended {
			w.endGame(s, o, winner)
			return
		}
		if eliminated.Role == domain.RoleHunter {
			w.enterHunterShoot(s, o, eliminated, domain.PhaseNightInit)
			return
		}
	case len(top) > 1:
		summary += fmt.Sprintf("\nTie between seats %v, nobody is eliminated this round.", top)
		o.Broadcast(summary)
	default:
		summary += "\nEveryone abstained, nobody is eliminated this round."
		o.Broadcast(summary)
	}

	w.beginNight(s, o)
}

// enterHunterShoot suspends the flow for the dead hunter's last shot.
// resume is the phase to continue with once the shot is resolved.
func (w *Werewolf) enterHunterShoot(s *domain.Session, o *domain.Outcome, hunter *domain.Player, resume domain.Phase) {
	s.HunterPending = hunter.UserID
	s.ResumePhase = resume
	s.SetPhase(domain.PhaseHunterShoot)
	o.Broadcast(fmt.Sprintf(
		"%s was the Hunter! They may take one player down with them (%.0fs).",
		hunter.Label(), w.t.HunterShoot.Seconds()))
	o.Private(hunter.UserID, fmt.Sprintf(
		"You are the Hunter: you may shoot one player before you go.\nSend me privately: #shoot [seat] (%.0fs)\n%s",
		w.t.HunterShoot.Seconds(), s.AliveRoster()))
}

func (w *Werewolf) hunterShoot(s *domain.Session, act domain.Action) *domain.Outcome {
	if s.Phase != domain.PhaseHunterShoot {
		return domain.Reject(domain.RejectWrongPhase, "It is not shooting time.")
	}
	if act.ActorID != s.HunterPending {
		return domain.Reject(domain.RejectNotYourTurn, "You are not the hunter being asked to shoot.")
	}
	target := s.PlayerBySeat(act.TargetSeat)
	if target == nil || !target.IsAlive {
		return domain.Reject(domain.RejectInvalidTarget, "That seat number is invalid or the player is dead.")
	}
	if target.UserID == act.ActorID {
		return domain.Reject(domain.RejectInvalidTarget, "You cannot shoot yourself.")
	}

	target.IsAlive = false
	hunter := s.PlayerByID(s.HunterPending)
	o := domain.Accept("")
	o.Broadcast(fmt.Sprintf("Hunter %s took %s down with them!", hunter.Label(), target.Label()))

	if ended, winner := checkWin(s); ended {
		w.endGame(s, o, winner)
		return o
	}
	w.resumeAfterHunter(s, o)
	return o
}

// resumeAfterHunter continues the flow interrupted by the shot.
func (w *Werewolf) resumeAfterHunter(s *domain.Session, o *domain.Outcome) {
	resume := s.ResumePhase
	s.HunterPending = ""
	s.ResumePhase = ""
	if resume == domain.PhaseNightInit {
		w.beginNight(s, o)
		return
	}
	w.beginDaySpeak(s, o)
}
