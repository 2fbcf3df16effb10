package domain

import (
	"fmt"
	"time"
)

// Mode identifies which game a room is running.
type Mode string

const (
	ModeWerewolf   Mode = "werewolf"
	ModeUndercover Mode = "undercover"
	ModeRoulette   Mode = "roulette"
	ModeQuiz       Mode = "quiz"
)

// Phase is the current stage of a room's state machine. Exactly one
// phase holds per room at any instant.
type Phase string

const (
	PhaseWaiting       Phase = "waiting"
	PhaseStarting      Phase = "starting"
	PhaseNightInit     Phase = "night_init"
	PhaseNightWitch    Phase = "night_witch"
	PhaseDaySpeak      Phase = "day_speak"
	PhaseDayVote       Phase = "day_vote"
	PhaseHunterShoot   Phase = "hunter_shooting"
	PhasePlaying       Phase = "playing"
	PhaseEnded         Phase = "ended"
)

type Role string

const (
	RoleWerewolf Role = "WEREWOLF"
	RoleVillager Role = "VILLAGER"
	RoleSeer     Role = "SEER"
	RoleWitch    Role = "WITCH"
	RoleHunter   Role = "HUNTER"
	RoleGuard    Role = "GUARD"

	RoleSpy      Role = "SPY"
	RoleCivilian Role = "CIVILIAN"
)

// Player is one seat in a room. TempID is the stable two-digit seat
// number assigned once at game start and never reused in the room.
type Player struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	TempID      string `json:"temp_id,omitempty"`
	Role        Role   `json:"role,omitempty"`
	IsAlive     bool   `json:"is_alive"`

	// per-round transient flags, cleared at night resolution
	IsProtected bool `json:"is_protected,omitempty"`
	IsDying     bool `json:"is_dying,omitempty"`
}

// Potions tracks the witch's single-use charges.
type Potions struct {
	Save bool `json:"save"`
	Kill bool `json:"kill"`
}

// RouletteState carries the russian-roulette specific fields.
type RouletteState struct {
	Bullets   int            `json:"bullets"`
	Cylinder  []int          `json:"cylinder"`
	Position  int            `json:"position"`
	TurnIndex int            `json:"turn_index"`
	SpinsLeft map[string]int `json:"spins_left"`
}

// QuizState carries the mental-arithmetic quiz specific fields.
// Answer is the expected reply for the outstanding question.
type QuizState struct {
	Level    string `json:"level"`
	Endless  bool   `json:"endless"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Score    int    `json:"score"`
	Attempts int    `json:"attempts"`
}

// UndercoverState carries the who-is-the-spy specific fields.
type UndercoverState struct {
	Open       bool     `json:"open"`
	CommonWord string   `json:"common_word"`
	SpyWord    string   `json:"spy_word"`
	Round      int      `json:"round"`
	TieSeats   []string `json:"tie_seats,omitempty"`
	HadTie     bool     `json:"had_tie,omitempty"`
}

// Session is the full persisted state of one room, saved as a single
// flat document keyed by room id.
type Session struct {
	RoomID   string `json:"room_id"`
	Mode     Mode   `json:"mode"`
	HostID   string `json:"host_id"`
	Phase    Phase  `json:"phase"`
	PhaseGen int64  `json:"phase_gen"`
	Day      int    `json:"day"`

	Players []*Player `json:"players"`
	Potions Potions   `json:"potions"`

	// PendingActions maps role to the actions submitted this phase
	// window, in receipt order. Cleared at phase resolution.
	Pending map[Role][]Action `json:"pending,omitempty"`

	// Votes maps voter user id to target seat. Cleared after tally.
	Votes map[string]string `json:"votes,omitempty"`

	LastProtectedID string `json:"last_protected_id,omitempty"`
	HunterPending   string `json:"hunter_pending,omitempty"`
	ResumePhase     Phase  `json:"resume_phase,omitempty"`

	SpeakOrder []string `json:"speak_order,omitempty"`
	SpeakIdx   int      `json:"speak_idx"`

	Roulette   *RouletteState   `json:"roulette,omitempty"`
	Undercover *UndercoverState `json:"undercover,omitempty"`
	Quiz       *QuizState       `json:"quiz,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewSession(roomID string, mode Mode, hostID string) *Session {
	now := time.Now()
	return &Session{
		RoomID:    roomID,
		Mode:      mode,
		HostID:    hostID,
		Phase:     PhaseWaiting,
		Players:   make([]*Player, 0, 12),
		Potions:   Potions{Save: true, Kill: true},
		Pending:   make(map[Role][]Action),
		Votes:     make(map[string]string),
		SpeakIdx:  -1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetPhase moves the room into a new phase and bumps the generation
// counter so that timers armed for the old phase become stale.
func (s *Session) SetPhase(p Phase) {
	s.Phase = p
	s.PhaseGen++
}

// BumpGen invalidates outstanding timers without changing the phase
// (used when the same phase re-arms, e.g. the next speaker's clock).
func (s *Session) BumpGen() {
	s.PhaseGen++
}

func (s *Session) PlayerByID(userID string) *Player {
	for _, p := range s.Players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

func (s *Session) PlayerBySeat(seat string) *Player {
	for _, p := range s.Players {
		if p.TempID == seat {
			return p
		}
	}
	return nil
}

func (s *Session) AlivePlayers() []*Player {
	out := make([]*Player, 0, len(s.Players))
	for _, p := range s.Players {
		if p.IsAlive {
			out = append(out, p)
		}
	}
	return out
}

func (s *Session) AliveCount() int {
	n := 0
	for _, p := range s.Players {
		if p.IsAlive {
			n++
		}
	}
	return n
}

func (s *Session) AliveWithRole(r Role) []*Player {
	out := make([]*Player, 0, 4)
	for _, p := range s.Players {
		if p.IsAlive && p.Role == r {
			out = append(out, p)
		}
	}
	return out
}

// AliveRoster renders the seat list shown in prompts and status replies.
func (s *Session) AliveRoster() string {
	out := ""
	for _, p := range s.Players {
		if !p.IsAlive {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += fmt.Sprintf("%s: %s", p.TempID, p.DisplayName)
	}
	return out
}

// Label renders a player as "name (#NN)" for user-facing messages.
func (p *Player) Label() string {
	if p.TempID == "" {
		return p.DisplayName
	}
	return fmt.Sprintf("%s (#%s)", p.DisplayName, p.TempID)
}

// Seat formats a one-based seat index as the fixed two-digit id.
func Seat(i int) string {
	return fmt.Sprintf("%02d", i)
}
