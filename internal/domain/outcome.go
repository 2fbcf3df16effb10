package domain

// RejectCode classifies why the state machine refused an operation.
// None of these are fatal to the room.
type RejectCode string

const (
	RejectNone              RejectCode = ""
	RejectWrongPhase        RejectCode = "WrongPhase"
	RejectRoleMismatch      RejectCode = "RoleMismatch"
	RejectInvalidTarget     RejectCode = "InvalidTarget"
	RejectResourceExhausted RejectCode = "ResourceExhausted"
	RejectDuplicateAction   RejectCode = "DuplicateAction"
	RejectAlreadyVoted      RejectCode = "AlreadyVoted"
	RejectNotYourTurn       RejectCode = "NotYourTurn"
	RejectNotInRoom         RejectCode = "NotInRoom"
	RejectNotHost           RejectCode = "NotHost"
	RejectTooFewPlayers     RejectCode = "TooFewPlayers"
	RejectRoomFull          RejectCode = "RoomFull"
)

// PrivateMsg is an outbound message addressed to one player.
type PrivateMsg struct {
	UserID string
	Text   string
}

// Outcome is the structured result the state machine returns instead
// of raising. The lifecycle manager decides delivery and persistence.
type Outcome struct {
	OK   bool
	Code RejectCode

	// Reply goes back to the acting player only.
	Reply string

	// Broadcasts go to the whole room, in order.
	Broadcasts []string

	// Privates go to individual players (role cards, night prompts).
	Privates []PrivateMsg

	Ended     bool
	Winner    string
	Dissolved bool
}

func Accept(reply string) *Outcome {
	return &Outcome{OK: true, Reply: reply}
}

func Reject(code RejectCode, reply string) *Outcome {
	return &Outcome{OK: false, Code: code, Reply: reply}
}

func (o *Outcome) Broadcast(text string) *Outcome {
	o.Broadcasts = append(o.Broadcasts, text)
	return o
}

func (o *Outcome) Private(userID, text string) *Outcome {
	o.Privates = append(o.Privates, PrivateMsg{UserID: userID, Text: text})
	return o
}
