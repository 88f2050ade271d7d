package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/credpilot/internal/domain"
	"github.com/ashureev/credpilot/internal/llm"
	"github.com/ashureev/credpilot/internal/persona"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func dialChat(t *testing.T, svc *Service) (*websocket.Conn, context.Context) {
	t.Helper()
	h := NewWebSocketHandler(svc, staticProfiles{p: domain.FallbackCreditProfile()}, nil, "*", true)
	srv := httptest.NewServer(asUser("u1")(h))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

func roundTrip(ctx context.Context, t *testing.T, conn *websocket.Conn, in ClientFrame) ServerFrame {
	t.Helper()
	if err := wsjson.Write(ctx, conn, in); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	var out ServerFrame
	if err := wsjson.Read(ctx, conn, &out); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return out
}

func TestWebSocketConversation(t *testing.T) {
	svc := NewService(newRepo(t), llm.NewMock(), nil, nil)
	conn, ctx := dialChat(t, svc)

	var hello ServerFrame
	if err := wsjson.Read(ctx, conn, &hello); err != nil {
		t.Fatalf("read greeting: %v", err)
	}
	if hello.Type != FrameSession || hello.Persona != string(persona.Persona3) {
		t.Fatalf("unexpected greeting: %+v", hello)
	}

	first := roundTrip(ctx, t, conn, ClientFrame{Type: FrameMessage, Content: "hello"})
	if first.Type != FrameReply || first.SessionID == "" || first.Content == "" {
		t.Fatalf("unexpected reply: %+v", first)
	}
	second := roundTrip(ctx, t, conn, ClientFrame{Type: FrameMessage, Content: "again"})
	if second.SessionID != first.SessionID {
		t.Fatalf("expected same session, got %s and %s", first.SessionID, second.SessionID)
	}

	reset := roundTrip(ctx, t, conn, ClientFrame{Type: FrameNewChat})
	if reset.Type != FrameSession || reset.SessionID != "" || reset.Persona != hello.Persona {
		t.Fatalf("unexpected new_chat response: %+v", reset)
	}
	third := roundTrip(ctx, t, conn, ClientFrame{Type: FrameMessage, Content: "fresh start"})
	if third.SessionID == "" || third.SessionID == first.SessionID {
		t.Fatalf("expected a new session after new_chat, got %s", third.SessionID)
	}

	resumed := roundTrip(ctx, t, conn, ClientFrame{Type: FrameResume, SessionID: first.SessionID})
	if resumed.Type != FrameSession || resumed.SessionID != first.SessionID || len(resumed.Turns) != 4 {
		t.Fatalf("unexpected resume response: %+v", resumed)
	}
}

func TestWebSocketErrors(t *testing.T) {
	svc := NewService(newRepo(t), llm.NewMock(), nil, nil)
	conn, ctx := dialChat(t, svc)

	var hello ServerFrame
	if err := wsjson.Read(ctx, conn, &hello); err != nil {
		t.Fatalf("read greeting: %v", err)
	}

	tests := []struct {
		in        ClientFrame
		wantError string
	}{
		{ClientFrame{Type: FrameMessage, Content: " "}, "message is required"},
		{ClientFrame{Type: FrameResume, SessionID: "missing"}, "session not found"},
		{ClientFrame{Type: "shout"}, "unknown frame type"},
	}
	for _, tt := range tests {
		out := roundTrip(ctx, t, conn, tt.in)
		if out.Type != FrameError || out.Error != tt.wantError {
			t.Errorf("%+v: expected error %q, got %+v", tt.in, tt.wantError, out)
		}
	}
}

func TestWebSocketOriginCheck(t *testing.T) {
	svc := NewService(newRepo(t), llm.NewMock(), nil, nil)
	h := NewWebSocketHandler(svc, staticProfiles{p: domain.FallbackCreditProfile()}, nil, "https://advisor.example.com/", false)
	srv := httptest.NewServer(asUser("u1")(h))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	tests := []struct {
		origin string
		wantOK bool
	}{
		{"https://advisor.example.com", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		conn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
			HTTPHeader: http.Header{"Origin": []string{tt.origin}},
		})
		if tt.wantOK {
			if err != nil {
				t.Errorf("origin %s: expected upgrade, got %v", tt.origin, err)
				continue
			}
			_ = conn.Close(websocket.StatusNormalClosure, "")
			continue
		}
		if err == nil {
			_ = conn.Close(websocket.StatusNormalClosure, "")
			t.Errorf("origin %s: expected rejection", tt.origin)
			continue
		}
		if resp == nil || resp.StatusCode != http.StatusForbidden {
			t.Errorf("origin %s: expected 403, got %v", tt.origin, resp)
		}
	}
}
