package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"minigame_bot/internal/session"
)

var upgrader = websocket.Upgrader{}

// fakePlatform upgrades one connection, pushes the canned message
// events back to back and answers every API action with retcode 0.
func fakePlatform(t *testing.T, events ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		for _, event := range events {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(event)); err != nil {
				return
			}
		}
		for {
			var req apiRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			resp := map[string]any{"status": "ok", "retcode": 0, "echo": req.Echo}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestGatewayParsesGroupMessage(t *testing.T) {
	event := `{
		"post_type": "message",
		"message_type": "group",
		"group_id": 12345,
		"user_id": 678,
		"raw_message": "#join",
		"sender": {"nickname": "nick", "card": "card-name", "role": "admin"}
	}`
	srv := fakePlatform(t, event)
	defer srv.Close()

	got := make(chan session.CommandEvent, 1)
	g := New(wsURL(srv), "", func(_ context.Context, ev session.CommandEvent) {
		got <- ev
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)

	select {
	case ev := <-got:
		if ev.RoomID != "12345" || ev.UserID != "678" {
			t.Fatalf("ids = %q/%q, want 12345/678", ev.RoomID, ev.UserID)
		}
		if !ev.IsGroupContext || !ev.IsPrivileged {
			t.Fatalf("flags = group:%v privileged:%v", ev.IsGroupContext, ev.IsPrivileged)
		}
		if ev.DisplayName != "card-name" || ev.RawText != "#join" {
			t.Fatalf("name/text = %q/%q", ev.DisplayName, ev.RawText)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestGatewayParsesPrivateMessage(t *testing.T) {
	event := `{
		"post_type": "message",
		"message_type": "private",
		"user_id": 678,
		"raw_message": "#kill 3",
		"sender": {"nickname": "nick"}
	}`
	srv := fakePlatform(t, event)
	defer srv.Close()

	got := make(chan session.CommandEvent, 1)
	g := New(wsURL(srv), "", func(_ context.Context, ev session.CommandEvent) {
		got <- ev
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)

	select {
	case ev := <-got:
		if ev.IsGroupContext || ev.RoomID != "" {
			t.Fatalf("private message flagged as group: %+v", ev)
		}
		if ev.DisplayName != "nick" {
			t.Fatalf("display name = %q, want nickname fallback", ev.DisplayName)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestGatewayDeliversInReceiptOrder(t *testing.T) {
	// one frame per seat, pushed back to back on the socket
	var frames []string
	for seat := 1; seat <= 5; seat++ {
		n := strconv.Itoa(seat)
		frames = append(frames, `{
			"post_type": "message",
			"message_type": "group",
			"group_id": 12345,
			"user_id": `+n+`,
			"raw_message": "#vote 0`+n+`",
			"sender": {"nickname": "n"}
		}`)
	}
	srv := fakePlatform(t, frames...)
	defer srv.Close()

	done := make(chan string, len(frames))
	g := New(wsURL(srv), "", func(_ context.Context, ev session.CommandEvent) {
		// stall the first command; under concurrent delivery the
		// later frames would overtake it
		if ev.UserID == "1" {
			time.Sleep(50 * time.Millisecond)
		}
		done <- ev.RawText
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)

	var got []string
	for range frames {
		select {
		case text := <-done:
			got = append(got, text)
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d commands delivered", len(got), len(frames))
		}
	}
	for i, text := range got {
		want := "#vote 0" + strconv.Itoa(i+1)
		if text != want {
			t.Fatalf("command %d = %q, want %q (delivery reordered)", i, text, want)
		}
	}
}

func TestGatewaySendCorrelatesEcho(t *testing.T) {
	srv := fakePlatform(t)
	defer srv.Close()

	g := New(wsURL(srv), "", func(context.Context, session.CommandEvent) {})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)

	// wait for the dial to complete
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		g.writeMu.Lock()
		connected := g.conn != nil
		g.writeMu.Unlock()
		if connected {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := g.SendToRoom(ctx, "12345", "hello group"); err != nil {
		t.Fatalf("SendToRoom failed: %v", err)
	}
	if err := g.SendToUser(ctx, "678", "hello user"); err != nil {
		t.Fatalf("SendToUser failed: %v", err)
	}
	if err := g.SendToRoom(ctx, "not-a-number", "x"); err == nil {
		t.Fatal("bad room id accepted")
	}
}

func TestActionPayloadShape(t *testing.T) {
	req := apiRequest{
		Action: "send_group_msg",
		Params: map[string]any{"group_id": int64(12345), "message": "hi"},
		Echo:   "abc",
	}
	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	for _, want := range []string{`"action":"send_group_msg"`, `"group_id":12345`, `"echo":"abc"`} {
		if !strings.Contains(string(raw), want) {
			t.Fatalf("payload missing %s: %s", want, raw)
		}
	}
}
