package domain

// ActionKind names a player-submitted move.
type ActionKind string

const (
	ActionKill      ActionKind = "kill"
	ActionCheck     ActionKind = "check"
	ActionSave      ActionKind = "save"
	ActionPoison    ActionKind = "poison"
	ActionProtect   ActionKind = "protect"
	ActionVote      ActionKind = "vote"
	ActionEndSpeech ActionKind = "end_speech"
	ActionShoot     ActionKind = "shoot"
	ActionSpin      ActionKind = "spin"
	ActionFire      ActionKind = "fire"
	ActionAnswer    ActionKind = "answer"
	ActionGiveUp    ActionKind = "give_up"
)

// Action is an ephemeral per-phase submission. It is only valid while
// the room is in the matching phase.
type Action struct {
	ActorID    string     `json:"actor_id"`
	ActorRole  Role       `json:"actor_role,omitempty"`
	Kind       ActionKind `json:"kind"`
	TargetSeat string     `json:"target_seat,omitempty"`
	Text       string     `json:"text,omitempty"`
}

// PrivateOnly reports whether the action may only arrive over a
// private channel (night actions and the hunter's shot).
func (k ActionKind) PrivateOnly() bool {
	switch k {
	case ActionKill, ActionCheck, ActionSave, ActionPoison, ActionProtect, ActionShoot:
		return true
	}
	return false
}

// GroupOnly reports whether the action must arrive in the group, so
// the whole room witnesses it. Votes are cast openly.
func (k ActionKind) GroupOnly() bool {
	return k == ActionVote
}
