package engine

import (
	"fmt"
	"time"

	"minigame_bot/internal/config"
	"minigame_bot/internal/domain"
)

// Rules is the per-game strategy behind the shared session engine.
// Implementations mutate the session in place and report everything
// the lifecycle manager needs through Outcome values; they never
// perform I/O themselves.
type Rules interface {
	Mode() domain.Mode
	MinPlayers() int

	// Init applies mode-specific defaults to a fresh session. arg is
	// the optional creation argument (bullet count, open/hidden,
	// quiz level).
	Init(s *domain.Session, arg string)

	Join(s *domain.Session, userID, name string) *domain.Outcome
	Leave(s *domain.Session, userID string) *domain.Outcome

	// Start validates the host's start command and deals seats and
	// roles; the returned Privates are the role cards the manager must
	// deliver before committing.
	Start(s *domain.Session, userID string) *domain.Outcome

	// Launch commits a successful start and enters the first active
	// phase. Abort rolls a failed start back to waiting.
	Launch(s *domain.Session) *domain.Outcome
	Abort(s *domain.Session)

	HandleAction(s *domain.Session, act domain.Action) *domain.Outcome
	HandleTimeout(s *domain.Session, phase domain.Phase) *domain.Outcome

	// PhaseDuration returns the timeout ceiling for a phase; zero
	// means the phase has no timer.
	PhaseDuration(p domain.Phase) time.Duration

	Status(s *domain.Session) string
}

// Registry maps modes to their rules.
type Registry struct {
	rules map[domain.Mode]Rules
}

func NewRegistry(t config.Timeouts) *Registry {
	r := &Registry{rules: make(map[domain.Mode]Rules)}
	r.register(NewWerewolf(t))
	r.register(NewUndercover(t))
	r.register(NewRoulette(t))
	r.register(NewQuiz(t))
	return r
}

func (r *Registry) register(rules Rules) {
	r.rules[rules.Mode()] = rules
}

func (r *Registry) Get(mode domain.Mode) (Rules, error) {
	rules, ok := r.rules[mode]
	if !ok {
		return nil, fmt.Errorf("unknown game mode: %s", mode)
	}
	return rules, nil
}

func (r *Registry) Modes() []domain.Mode {
	out := make([]domain.Mode, 0, len(r.rules))
	for m := range r.rules {
		out = append(out, m)
	}
	return out
}
