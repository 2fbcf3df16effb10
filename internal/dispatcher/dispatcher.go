package dispatcher

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"minigame_bot/internal/domain"
	"minigame_bot/internal/logger"
	"minigame_bot/internal/session"
)

var (
	createRe = regexp.MustCompile(`^#create\s+(werewolf|undercover|roulette|quiz)(?:\s+(.+))?$`)
	targetRe = regexp.MustCompile(`^#(kill|check|save|poison|guard|shoot|vote)\s+#?(\d{1,2})$`)
	bareRe   = regexp.MustCompile(`^#(join|leave|start|end|status|done|spin|fire|giveup)$`)
	answerRe = regexp.MustCompile(`^#answer\s+(.+)$`)
)

// bare command -> action kind; lifecycle commands are handled apart
var bareActions = map[string]domain.ActionKind{
	"done":   domain.ActionEndSpeech,
	"spin":   domain.ActionSpin,
	"fire":   domain.ActionFire,
	"giveup": domain.ActionGiveUp,
}

var targetActions = map[string]domain.ActionKind{
	"kill":   domain.ActionKill,
	"check":  domain.ActionCheck,
	"save":   domain.ActionSave,
	"poison": domain.ActionPoison,
	"guard":  domain.ActionProtect,
	"shoot":  domain.ActionShoot,
	"vote":   domain.ActionVote,
}

// Dispatcher turns raw chat text into lifecycle manager calls. Text
// that is not a recognized command is ignored so ordinary chatter
// never hits the engine.
type Dispatcher struct {
	mgr *session.Manager
}

func New(mgr *session.Manager) *Dispatcher {
	return &Dispatcher{mgr: mgr}
}

// Handle routes one inbound message. It reports whether the text was
// a recognized command.
func (d *Dispatcher) Handle(ctx context.Context, ev session.CommandEvent) bool {
	text := strings.TrimSpace(ev.RawText)
	if !strings.HasPrefix(text, "#") {
		return false
	}
	logger.Debug("command received",
		"user", ev.UserID, "room", ev.RoomID, "group", ev.IsGroupContext, "text", text)

	if m := createRe.FindStringSubmatch(text); m != nil {
		d.mgr.Create(ctx, ev, domain.Mode(m[1]), strings.TrimSpace(m[2]))
		return true
	}

	if m := answerRe.FindStringSubmatch(text); m != nil {
		d.mgr.Action(ctx, ev, domain.Action{
			Kind: domain.ActionAnswer,
			Text: strings.TrimSpace(m[1]),
		})
		return true
	}

	if m := targetRe.FindStringSubmatch(text); m != nil {
		d.mgr.Action(ctx, ev, domain.Action{
			Kind:       targetActions[m[1]],
			TargetSeat: normalizeSeat(m[2]),
		})
		return true
	}

	if m := bareRe.FindStringSubmatch(text); m != nil {
		switch m[1] {
		case "join":
			d.mgr.Join(ctx, ev)
		case "leave":
			d.mgr.Leave(ctx, ev)
		case "start":
			d.mgr.Start(ctx, ev)
		case "end":
			d.mgr.End(ctx, ev)
		case "status":
			d.mgr.Status(ctx, ev)
		default:
			d.mgr.Action(ctx, ev, domain.Action{Kind: bareActions[m[1]]})
		}
		return true
	}

	return false
}

// normalizeSeat pads a player-typed seat to the canonical two digits,
// so "#vote 3" and "#vote 03" address the same player.
func normalizeSeat(raw string) string {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return raw
	}
	return fmt.Sprintf("%02d", n)
}
