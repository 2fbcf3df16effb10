package engine

import (
	"fmt"
	"math/rand/v2"
	"time"

	"minigame_bot/internal/config"
	"minigame_bot/internal/domain"
)

var roleNames = map[domain.Role]string{
	domain.RoleWerewolf: "Werewolf",
	domain.RoleVillager: "Villager",
	domain.RoleSeer:     "Seer",
	domain.RoleWitch:    "Witch",
	domain.RoleHunter:   "Hunter",
	domain.RoleGuard:    "Guard",
}

// Werewolf implements the full night/day phase machine.
type Werewolf struct {
	t config.Timeouts
}

func NewWerewolf(t config.Timeouts) *Werewolf {
	return &Werewolf{t: t}
}

func (w *Werewolf) Mode() domain.Mode { return domain.ModeWerewolf }

func (w *Werewolf) MinPlayers() int { return 6 }

func (w *Werewolf) Init(s *domain.Session, _ string) {
	s.Potions = domain.Potions{Save: true, Kill: true}
}

func (w *Werewolf) PhaseDuration(p domain.Phase) time.Duration {
	switch p {
	case domain.PhaseNightInit:
		return w.t.NightInit
	case domain.PhaseNightWitch:
		return w.t.NightWitch
	case domain.PhaseDaySpeak:
		return w.t.Speech
	case domain.PhaseDayVote:
		return w.t.Vote
	case domain.PhaseHunterShoot:
		return w.t.HunterShoot
	}
	return 0
}

func (w *Werewolf) Join(s *domain.Session, userID, name string) *domain.Outcome {
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
	return domain.Accept(fmt.Sprintf("%s joined the werewolf game. Players: %d", name, len(s.Players)))
}

func (w *Werewolf) Leave(s *domain.Session, userID string) *domain.Outcome {
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

// Start deals seats and roles. The manager must deliver the returned
// role cards privately and then either Launch or Abort: a single
// undeliverable card breaks the fairness of the game.
func (w *Werewolf) Start(s *domain.Session, userID string) *domain.Outcome {
	if userID != s.HostID {
		return domain.Reject(domain.RejectNotHost, "Only the host can start the game.")
	}
	if s.Phase != domain.PhaseWaiting {
		return domain.Reject(domain.RejectWrongPhase, fmt.Sprintf("Cannot start from phase %s.", s.Phase))
	}
	if len(s.Players) < w.MinPlayers() {
		return domain.Reject(domain.RejectTooFewPlayers,
			fmt.Sprintf("Not enough players: %d joined, at least %d required.", len(s.Players), w.MinPlayers()))
	}

	s.SetPhase(domain.PhaseStarting)
	for i, p := range s.Players {
		p.TempID = domain.Seat(i + 1)
	}
	assignWerewolfRoles(s.Players)

	o := domain.Accept("Roles dealt, sending identities privately...")
	o.Broadcast("Checking that every player can receive private messages...")
	for _, p := range s.Players {
		o.Private(p.UserID, fmt.Sprintf(
			"Your role this game: [%s]\nYour seat number: [#%s]",
			roleNames[p.Role], p.TempID))
	}
	return o
}

// Abort rolls back a start whose role dispatch failed.
func (w *Werewolf) Abort(s *domain.Session) {
	for _, p := range s.Players {
		p.Role = ""
	}
	s.SetPhase(domain.PhaseWaiting)
}

func (w *Werewolf) Launch(s *domain.Session) *domain.Outcome {
	o := domain.Accept("")
	o.Broadcast("All identities delivered. The game begins!")
	w.beginNight(s, o)
	return o
}

// assignWerewolfRoles shuffles the distribution for the player count:
// fixed seer/witch/hunter/guard, 2-4 werewolves, villagers for the rest.
func assignWerewolfRoles(players []*domain.Player) {
	n := len(players)
	wolves := 2
	switch {
	case n >= 12:
		wolves = 4
	case n >= 9:
		wolves = 3
	}

	roles := make([]domain.Role, 0, n)
	for i := 0; i < wolves; i++ {
		roles = append(roles, domain.RoleWerewolf)
	}
	roles = append(roles, domain.RoleSeer, domain.RoleWitch, domain.RoleHunter, domain.RoleGuard)
	for len(roles) < n {
		roles = append(roles, domain.RoleVillager)
	}

	rand.Shuffle(len(roles), func(i, j int) {
		roles[i], roles[j] = roles[j], roles[i]
	})
	for i, p := range players {
		p.Role = roles[i]
	}
}

func (w *Werewolf) HandleAction(s *domain.Session, act domain.Action) *domain.Outcome {
	switch act.Kind {
	case domain.ActionKill, domain.ActionCheck, domain.ActionProtect:
		return w.recordNightAction(s, act)
	case domain.ActionSave, domain.ActionPoison:
		return w.recordWitchAction(s, act)
	case domain.ActionEndSpeech:
		return w.endSpeech(s, act.ActorID)
	case domain.ActionVote:
		return w.recordVote(s, act)
	case domain.ActionShoot:
		return w.hunterShoot(s, act)
	}
	return domain.Reject(domain.RejectWrongPhase, "That action is not part of this game.")
}

func (w *Werewolf) HandleTimeout(s *domain.Session, phase domain.Phase) *domain.Outcome {
	o := domain.Accept("")
	switch phase {
	case domain.PhaseNightInit:
		o.Broadcast("Night actions closed.")
		w.beginNightWitch(s, o)
	case domain.PhaseNightWitch:
		o.Broadcast("Dawn is coming, resolving the night...")
		w.resolveNight(s, o)
	case domain.PhaseDaySpeak:
		if sp := w.currentSpeaker(s); sp != nil {
			o.Broadcast(fmt.Sprintf("%s ran out of speaking time.", sp.Label()))
		}
		w.advanceSpeaker(s, o)
	case domain.PhaseDayVote:
		o.Broadcast("Voting time is over, counting votes...")
		w.tallyVotes(s, o)
	case domain.PhaseHunterShoot:
		if h := s.PlayerByID(s.HunterPending); h != nil {
			o.Broadcast(fmt.Sprintf("Hunter %s chose not to shoot.", h.Label()))
		}
		w.resumeAfterHunter(s, o)
	default:
		return nil
	}
	return o
}

func (w *Werewolf) Status(s *domain.Session) string {
	msg := "--- Werewolf status ---\n"
	msg += fmt.Sprintf("Phase: %s\nDay: %d\n", s.Phase, s.Day)
	if host := s.PlayerByID(s.HostID); host != nil {
		msg += fmt.Sprintf("Host: %s\n", host.Label())
	}
	msg += fmt.Sprintf("Alive (%d/%d):\n%s", s.AliveCount(), len(s.Players), s.AliveRoster())
	if s.Phase == domain.PhaseDaySpeak {
		if sp := w.currentSpeaker(s); sp != nil {
			msg += fmt.Sprintf("\nSpeaking now: %s", sp.Label())
		}
	}
	return msg
}

// endGame marks the session terminal and reveals everyone's role.
func (w *Werewolf) endGame(s *domain.Session, o *domain.Outcome, winner string) {
	s.SetPhase(domain.PhaseEnded)
	o.Ended = true
	o.Winner = winner
	o.Broadcast(fmt.Sprintf("Game over! The %s side wins!\nFinal roles:\n%s", winner, finalRoles(s)))
}

func finalRoles(s *domain.Session) string {
	out := ""
	for _, p := range s.Players {
		if out != "" {
			out += "\n"
		}
		name := roleNames[p.Role]
		if name == "" {
			name = string(p.Role)
		}
		out += fmt.Sprintf("%s: %s", p.Label(), name)
	}
	return out
}

// checkWin applies the faction win condition after every death.
func checkWin(s *domain.Session) (ended bool, winner string) {
	wolves := 0
	others := 0
	for _, p := range s.Players {
		if !p.IsAlive {
			continue
		}
		if p.Role == domain.RoleWerewolf {
			wolves++
		} else {
			others++
		}
	}
	if wolves == 0 {
		return true, "good"
	}
	if wolves >= others {
		return true, "werewolf"
	}
	return false, ""
}
