package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"minigame_bot/internal/logger"
	"minigame_bot/internal/session"
)

const (
	writeWait   = 10 * time.Second
	callTimeout = 5 * time.Second
	maxBackoff  = 30 * time.Second

	eventQueueSize = 256
)

// EventHandler receives every parsed inbound chat command.
type EventHandler func(ctx context.Context, ev session.CommandEvent)

// Gateway is the chat platform adapter: a single outbound websocket
// to a OneBot-compatible endpoint. Inbound message events become
// CommandEvents; outbound sends are API actions correlated to their
// responses by echo id.
type Gateway struct {
	url     string
	token   string
	handler EventHandler

	// inbound commands are delivered from a single queue so that
	// commands land in the order the socket received them
	events chan session.CommandEvent

	writeMu sync.Mutex
	conn    *websocket.Conn

	pendingMu sync.Mutex
	pending   map[string]chan apiResponse
}

type inboundEvent struct {
	PostType    string `json:"post_type"`
	MessageType string `json:"message_type"`
	GroupID     int64  `json:"group_id"`
	UserID      int64  `json:"user_id"`
	RawMessage  string `json:"raw_message"`
	Sender      struct {
		Nickname string `json:"nickname"`
		Card     string `json:"card"`
		Role     string `json:"role"`
	} `json:"sender"`
	Echo string `json:"echo"`
}

type apiRequest struct {
	Action string `json:"action"`
	Params any    `json:"params"`
	Echo   string `json:"echo"`
}

type apiResponse struct {
	Status  string `json:"status"`
	Retcode int    `json:"retcode"`
	Echo    string `json:"echo"`
}

func New(url, token string, handler EventHandler) *Gateway {
	return &Gateway{
		url:     url,
		token:   token,
		handler: handler,
		events:  make(chan session.CommandEvent, eventQueueSize),
		pending: make(map[string]chan apiResponse),
	}
}

// Run connects and keeps reading until ctx is cancelled, redialing
// with doubling backoff after every drop.
func (g *Gateway) Run(ctx context.Context) {
	go g.dispatchLoop(ctx)

	backoff := time.Second
	for {
		if err := g.connect(ctx); err != nil {
			logger.Warn("gateway: dial failed", "url", g.url, "error", err, "retry_in", backoff)
		} else {
			logger.Info("gateway: connected", "url", g.url)
			backoff = time.Second
			g.readLoop(ctx)
		}

		select {
		case <-ctx.Done():
			g.close()
			return
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

func (g *Gateway) connect(ctx context.Context) error {
	header := http.Header{}
	if g.token != "" {
		header.Set("Authorization", "Bearer "+g.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, g.url, header)
	if err != nil {
		return err
	}
	g.writeMu.Lock()
	g.conn = conn
	g.writeMu.Unlock()
	return nil
}

func (g *Gateway) readLoop(ctx context.Context) {
	defer g.close()
	for {
		_, raw, err := g.conn.ReadMessage()
		if err != nil {
			logger.Warn("gateway: read error", "error", err)
			g.failPending()
			return
		}

		var ev inboundEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			logger.Debug("gateway: unparseable frame", "error", err)
			continue
		}

		if ev.Echo != "" {
			var resp apiResponse
			_ = json.Unmarshal(raw, &resp)
			g.resolve(resp)
			continue
		}
		if ev.PostType != "message" {
			continue
		}

		ce := session.CommandEvent{
			UserID:         strconv.FormatInt(ev.UserID, 10),
			DisplayName:    displayName(ev),
			RawText:        ev.RawMessage,
			IsGroupContext: ev.MessageType == "group",
			IsPrivileged:   ev.Sender.Role == "owner" || ev.Sender.Role == "admin",
		}
		if ce.IsGroupContext {
			ce.RoomID = strconv.FormatInt(ev.GroupID, 10)
		}
		select {
		case g.events <- ce:
		case <-ctx.Done():
			return
		}
	}
}

// dispatchLoop hands queued commands to the handler one at a time.
// Two back-to-back votes from the same room therefore reach the
// engine in receipt order; delivery runs off the read loop so a
// handler that sends replies still sees its echoed responses.
func (g *Gateway) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ce := <-g.events:
			g.handler(ctx, ce)
		}
	}
}

func displayName(ev inboundEvent) string {
	if ev.Sender.Card != "" {
		return ev.Sender.Card
	}
	if ev.Sender.Nickname != "" {
		return ev.Sender.Nickname
	}
	return strconv.FormatInt(ev.UserID, 10)
}

// SendToRoom implements session.Messenger.
func (g *Gateway) SendToRoom(ctx context.Context, roomID, text string) error {
	groupID, err := strconv.ParseInt(roomID, 10, 64)
	if err != nil {
		return fmt.Errorf("gateway: bad room id %q: %w", roomID, err)
	}
	return g.call(ctx, "send_group_msg", map[string]any{
		"group_id": groupID,
		"message":  text,
	})
}

// SendToUser implements session.Messenger.
func (g *Gateway) SendToUser(ctx context.Context, userID, text string) error {
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("gateway: bad user id %q: %w", userID, err)
	}
	return g.call(ctx, "send_private_msg", map[string]any{
		"user_id": uid,
		"message": text,
	})
}

// call sends one API action and waits for its echoed response.
func (g *Gateway) call(ctx context.Context, action string, params any) error {
	echo := uuid.NewString()
	ch := make(chan apiResponse, 1)

	g.pendingMu.Lock()
	g.pending[echo] = ch
	g.pendingMu.Unlock()
	defer func() {
		g.pendingMu.Lock()
		delete(g.pending, echo)
		g.pendingMu.Unlock()
	}()

	if err := g.write(apiRequest{Action: action, Params: params, Echo: echo}); err != nil {
		return err
	}

	timer := time.NewTimer(callTimeout)
	defer timer.Stop()
	select {
	case resp, ok := <-ch:
		if !ok {
			return errors.New("gateway: connection lost")
		}
		if resp.Retcode != 0 {
			return fmt.Errorf("gateway: %s failed with retcode %d", action, resp.Retcode)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("gateway: %s timed out", action)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) write(req apiRequest) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	if g.conn == nil {
		return errors.New("gateway: not connected")
	}
	g.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return g.conn.WriteJSON(req)
}

func (g *Gateway) resolve(resp apiResponse) {
	// send under the lock so failPending cannot close the channel
	// between lookup and send
	g.pendingMu.Lock()
	defer g.pendingMu.Unlock()
	if ch, ok := g.pending[resp.Echo]; ok {
		select {
		case ch <- resp:
		default:
		}
	}
}

// failPending unblocks every caller waiting on the dropped connection.
func (g *Gateway) failPending() {
	g.pendingMu.Lock()
	for echo, ch := range g.pending {
		close(ch)
		delete(g.pending, echo)
	}
	g.pendingMu.Unlock()
}

func (g *Gateway) close() {
	g.writeMu.Lock()
	if g.conn != nil {
		g.conn.Close()
		g.conn = nil
	}
	g.writeMu.Unlock()
}
