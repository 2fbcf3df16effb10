package session

import "context"

// CommandEvent is one parsed player command as received from the chat
// platform. RoomID is empty for private-channel messages; the manager
// resolves the room through its player index.
type CommandEvent struct {
	RoomID         string
	UserID         string
	DisplayName    string
	RawText        string
	IsGroupContext bool
	IsPrivileged   bool
}

// Messenger is the outbound side of the chat platform.
type Messenger interface {
	SendToRoom(ctx context.Context, roomID, text string) error
	SendToUser(ctx context.Context, userID, text string) error
}
