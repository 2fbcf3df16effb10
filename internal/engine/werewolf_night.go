package engine

import (
	"fmt"

	"minigame_bot/internal/domain"
)

// beginNight enters night_init: the day counter advances and every
// night role receives its private prompt.
func (w *Werewolf) beginNight(s *domain.Session, o *domain.Outcome) {
	s.Day++
	s.SetPhase(domain.PhaseNightInit)
	o.Broadcast(fmt.Sprintf("--- Day %d - Night ---", s.Day))
	o.Broadcast(fmt.Sprintf("Night falls, close your eyes... Night roles act now (%.0fs).", w.t.NightInit.Seconds()))

	roster := s.AliveRoster()
	for _, p := range s.AlivePlayers() {
		switch p.Role {
		case domain.RoleWerewolf:
			o.Private(p.UserID, "Werewolves, choose your prey.\nSend me privately: #kill [seat]\n"+roster)
		case domain.RoleSeer:
			o.Private(p.UserID, "Seer, choose who to inspect.\nSend me privately: #check [seat]\n"+roster)
		case domain.RoleGuard:
			prompt := "Guard, choose who to protect.\n"
			if last := s.PlayerByID(s.LastProtectedID); last != nil {
				prompt += fmt.Sprintf("(You protected %s last night and cannot protect them again.)\n", last.Label())
			}
			o.Private(p.UserID, prompt+"Send me privately: #guard [seat]\n"+roster)
		}
	}
}

// recordNightAction handles the night_init submissions: werewolf kill,
// seer check and guard protect. These are revisable until the phase
// resolves; re-submitting replaces the actor's previous choice.
func (w *Werewolf) recordNightAction(s *domain.Session, act domain.Action) *domain.Outcome {
	if s.Phase != domain.PhaseNightInit {
		return domain.Reject(domain.RejectWrongPhase, "It is not night action time.")
	}

	var role domain.Role
	switch act.Kind {
	case domain.ActionKill:
		role = domain.RoleWerewolf
	case domain.ActionCheck:
		role = domain.RoleSeer
	case domain.ActionProtect:
		role = domain.RoleGuard
	}

	actor := s.PlayerByID(act.ActorID)
	if actor == nil || !actor.IsAlive {
		return domain.Reject(domain.RejectNotInRoom, "You are not an active player in this game.")
	}
	if actor.Role != role {
		return domain.Reject(domain.RejectRoleMismatch, "Your role cannot perform that action.")
	}

	target := s.PlayerBySeat(act.TargetSeat)
	if target == nil || !target.IsAlive {
		return domain.Reject(domain.RejectInvalidTarget, "That seat number is invalid or the player is dead.")
	}
	if role == domain.RoleGuard && target.UserID == s.LastProtectedID {
		return domain.Reject(domain.RejectInvalidTarget, "You cannot protect the same player two nights in a row.")
	}

	act.ActorRole = role
	upsertPending(s, role, act)

	reply := fmt.Sprintf("%s %s, your action is recorded.", roleNames[role], actor.Label())
	if role == domain.RoleSeer {
		faction := "Good"
		if target.Role == domain.RoleWerewolf {
			faction = "Werewolf"
		}
		reply += fmt.Sprintf("\n[Inspection] %s is [%s].", target.Label(), faction)
	}

	o := domain.Accept(reply)
	if w.allNightRolesActed(s) {
		o.Broadcast("All night roles have acted.")
		w.beginNightWitch(s, o)
	}
	return o
}

// upsertPending replaces the actor's prior submission for the role,
// appending if this is their first.
func upsertPending(s *domain.Session, role domain.Role, act domain.Action) {
	for i, prev := range s.Pending[role] {
		if prev.ActorID == act.ActorID {
			s.Pending[role][i] = act
			return
		}
	}
	s.Pending[role] = append(s.Pending[role], act)
}

// allNightRolesActed reports whether every living wolf, the seer and
// the guard have all submitted, allowing the phase to close early.
func (w *Werewolf) allNightRolesActed(s *domain.Session) bool {
	for _, role := range []domain.Role{domain.RoleWerewolf, domain.RoleSeer, domain.RoleGuard} {
		for _, p := range s.AliveWithRole(role) {
			acted := false
			for _, a := range s.Pending[role] {
				if a.ActorID == p.UserID {
					acted = true
					break
				}
			}
			if !acted {
				return false
			}
		}
	}
	return true
}

// beginNightWitch computes the werewolves' victim and hands the night
// over to the witch; with no living witch (or no usable potion) the
// night resolves immediately.
func (w *Werewolf) beginNightWitch(s *domain.Session, o *domain.Outcome) {
	s.SetPhase(domain.PhaseNightWitch)

	witches := s.AliveWithRole(domain.RoleWitch)
	if len(witches) == 0 || (!s.Potions.Save && !s.Potions.Kill) {
		w.resolveNight(s, o)
		return
	}
	witch := witches[0]

	prompt := "Witch, it is your turn.\n"
	if victim := w.attackVictim(s); victim != nil {
		prompt += fmt.Sprintf("%s was attacked tonight.\n", victim.Label())
	} else {
		prompt += "Nobody was attacked tonight.\n"
	}
	prompt += fmt.Sprintf("Potions: antidote %s, poison %s.\n", charge(s.Potions.Save), charge(s.Potions.Kill))
	if s.Potions.Save {
		prompt += "To use the antidote send: #save [seat]\n"
	}
	if s.Potions.Kill {
		prompt += "To use the poison send: #poison [seat]\n"
	}
	prompt += fmt.Sprintf("You have %.0fs. You may use at most one potion per night.\n%s",
		w.t.NightWitch.Seconds(), s.AliveRoster())
	o.Private(witch.UserID, prompt)
}

func charge(available bool) string {
	if available {
		return "available"
	}
	return "spent"
}

// attackVictim tallies the werewolf kill submissions. Plurality wins;
// a tie goes to the target whose first vote was recorded earliest,
// a deliberate deterministic policy.
func (w *Werewolf) attackVictim(s *domain.Session) *domain.Player {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for i, a := range s.Pending[domain.RoleWerewolf] {
		t := s.PlayerBySeat(a.TargetSeat)
		if t == nil || !t.IsAlive {
			continue
		}
		counts[t.UserID]++
		if _, ok := firstSeen[t.UserID]; !ok {
			firstSeen[t.UserID] = i
		}
	}

	var bestID string
	for id, n := range counts {
		if bestID == "" {
			bestID = id
			continue
		}
		if n > counts[bestID] || (n == counts[bestID] && firstSeen[id] < firstSeen[bestID]) {
			bestID = id
		}
	}
	if bestID == "" {
		return nil
	}
	return s.PlayerByID(bestID)
}

// recordWitchAction handles save/poison during night_witch. The witch
// may use at most one potion per night and neither on herself.
func (w *Werewolf) recordWitchAction(s *domain.Session, act domain.Action) *domain.Outcome {
	if s.Phase != domain.PhaseNightWitch {
		return domain.Reject(domain.RejectWrongPhase, "It is not the witch's turn.")
	}
	actor := s.PlayerByID(act.ActorID)
	if actor == nil || !actor.IsAlive {
		return domain.Reject(domain.RejectNotInRoom, "You are not an active player in this game.")
	}
	if actor.Role != domain.RoleWitch {
		return domain.Reject(domain.RejectRoleMismatch, "Your role cannot perform that action.")
	}
	if len(s.Pending[domain.RoleWitch]) > 0 {
		return domain.Reject(domain.RejectDuplicateAction, "You have already acted tonight.")
	}
	if act.Kind == domain.ActionSave && !s.Potions.Save {
		return domain.Reject(domain.RejectResourceExhausted, "Your antidote is already spent.")
	}
	if act.Kind == domain.ActionPoison && !s.Potions.Kill {
		return domain.Reject(domain.RejectResourceExhausted, "Your poison is already spent.")
	}

	target := s.PlayerBySeat(act.TargetSeat)
	if target == nil || !target.IsAlive {
		return domain.Reject(domain.RejectInvalidTarget, "That seat number is invalid or the player is dead.")
	}
	if target.UserID == actor.UserID {
		return domain.Reject(domain.RejectInvalidTarget, "You cannot use a potion on yourself.")
	}

	act.ActorRole = domain.RoleWitch
	s.Pending[domain.RoleWitch] = append(s.Pending[domain.RoleWitch], act)

	o := domain.Accept(fmt.Sprintf("Witch %s, your action is recorded.", actor.Label()))
	o.Broadcast("Dawn breaks, resolving the night...")
	w.resolveNight(s, o)
	return o
}

type nightDeath struct {
	player *domain.Player
	cause  string
}

// resolveNight combines the guard, werewolf and witch submissions into
// the night's death set, then clears every per-round transient so a
// second resolution with no new actions produces no new deaths.
func (w *Werewolf) resolveNight(s *domain.Session, o *domain.Outcome) {
	for _, p := range s.Players {
		p.IsProtected = false
		p.IsDying = false
	}

	// guard: last submission wins (the action is revisable)
	guardActs := s.Pending[domain.RoleGuard]
	if len(guardActs) > 0 {
		a := guardActs[len(guardActs)-1]
		if t := s.PlayerBySeat(a.TargetSeat); t != nil && t.IsAlive {
			t.IsProtected = true
			s.LastProtectedID = t.UserID
		}
	} else {
		s.LastProtectedID = ""
	}

	victim := w.attackVictim(s)
	if victim != nil {
		victim.IsDying = true
	}

	var saved, poisoned *domain.Player
	if acts := s.Pending[domain.RoleWitch]; len(acts) > 0 {
		a := acts[0]
		t := s.PlayerBySeat(a.TargetSeat)
		switch a.Kind {
		case domain.ActionSave:
			if s.Potions.Save {
				s.Potions.Save = false
				if t != nil && t.IsDying {
					t.IsDying = false
					saved = t
				}
			}
		case domain.ActionPoison:
			if s.Potions.Kill {
				s.Potions.Kill = false
				if t != nil && t.IsAlive {
					t.IsDying = true
					poisoned = t
				}
			}
		}
	}

	// Final death pass. A protected player survives the night outright:
	// guard-and-witch-save on the same target is a no-death night, and
	// protection also covers poison aimed at the protected seat.
	var deaths []nightDeath
	for _, p := range s.Players {
		if !p.IsDying {
			continue
		}
		if p.IsProtected {
			p.IsDying = false
			continue
		}
		p.IsAlive = false
		cause := "werewolf"
		if poisoned != nil && p.UserID == poisoned.UserID {
			cause = "poison"
		}
		deaths = append(deaths, nightDeath{player: p, cause: cause})
	}

	summary := "Night is over. Last night:"
	if len(deaths) > 0 {
		for _, d := range deaths {
			summary += fmt.Sprintf("\n%s died in the night.", d.player.Label())
		}
	} else if victim != nil && (saved != nil || victim.IsProtected || !victim.IsDying) {
		summary += "\nIt was a peaceful night."
	} else {
		summary += "\nNobody died."
	}
	o.Broadcast(summary)

	for _, p := range s.Players {
		p.IsProtected = false
		p.IsDying = false
	}
	s.Pending = make(map[domain.Role][]domain.Action)

	if ended, winner := checkWin(s); ended {
		w.endGame(s, o, winner)
		return
	}

	// a hunter killed at night may take a last shot before daybreak
	for _, d := range deaths {
		if d.player.Role == domain.RoleHunter {
			w.enterHunterShoot(s, o, d.player, domain.PhaseDaySpeak)
			return
		}
	}

	w.beginDaySpeak(s, o)
}
