package slackcmd

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quailyquaily/notionbolt/internal/slackapp"
	"github.com/slack-go/slack"
)

type fakeOpener struct {
	url   string
	err   error
	calls int32
}

func (f *fakeOpener) StartSocketModeContext(context.Context) (*slack.SocketModeConnection, string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, "", f.err
	}
	return &slack.SocketModeConnection{URL: f.url}, f.url, nil
}

// socketServer sends frames to the client and returns every ack it receives on acks.
func socketServer(t *testing.T, frames []string, acks chan<- map[string]any) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
			if !strings.Contains(frame, "envelope_id") {
				continue
			}
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ack map[string]any
			_ = json.Unmarshal(raw, &ack)
			acks <- ack
		}
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConsumeSlackSocketAcks(t *testing.T) {
	frames := []string{
		`{"type":"hello"}`,
		`{"envelope_id":"e1","type":"events_api","payload":{}}`,
		`{"envelope_id":"e2","type":"interactive","payload":{"type":"view_submission"}}`,
		`{"type":"disconnect","reason":"refresh_requested"}`,
	}
	acks := make(chan map[string]any, 4)
	srv := socketServer(t, frames, acks)

	conn, err := connectSocket(context.Background(), &fakeOpener{url: wsURL(srv)}, nil)
	if err != nil {
		t.Fatalf("connectSocket() error = %v", err)
	}
	defer conn.Close()

	var seen []string
	err = consumeSlackSocket(context.Background(), conn, func(env slackapp.Envelope) (any, error) {
		seen = append(seen, env.Type)
		if env.Type == slackapp.EnvelopeInteractive {
			return map[string]string{"response_action": "clear"}, nil
		}
		return nil, nil
	})
	if !errors.Is(err, errSocketDisconnect) {
		t.Fatalf("expected disconnect, got %v", err)
	}
	if len(seen) != 2 || seen[0] != "events_api" || seen[1] != "interactive" {
		t.Fatalf("unexpected envelopes: %#v", seen)
	}

	first := <-acks
	if first["envelope_id"] != "e1" || first["payload"] != nil {
		t.Fatalf("unexpected first ack: %#v", first)
	}
	second := <-acks
	payload, _ := second["payload"].(map[string]any)
	if second["envelope_id"] != "e2" || payload["response_action"] != "clear" {
		t.Fatalf("unexpected second ack: %#v", second)
	}
}

func TestConsumeSlackSocketStopsOnCancel(t *testing.T) {
	acks := make(chan map[string]any, 1)
	srv := socketServer(t, nil, acks)
	conn, err := connectSocket(context.Background(), &fakeOpener{url: wsURL(srv)}, nil)
	if err != nil {
		t.Fatalf("connectSocket() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumeSlackSocket(ctx, conn, nil) }()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("consumeSlackSocket did not stop")
	}
}

func TestConnectSocketErrors(t *testing.T) {
	if _, err := connectSocket(context.Background(), &fakeOpener{err: errors.New("invalid_auth")}, nil); err == nil {
		t.Fatalf("expected open error")
	}
	if _, err := connectSocket(context.Background(), &fakeOpener{url: " "}, nil); err == nil {
		t.Fatalf("expected empty url error")
	}
}

func TestRunSocketLoopReturnsOnCancel(t *testing.T) {
	opener := &fakeOpener{err: errors.New("connection refused")}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := runSocketLoop(ctx, opener, nil, nil, logger); err != nil {
		t.Fatalf("runSocketLoop() error = %v", err)
	}
	if atomic.LoadInt32(&opener.calls) == 0 {
		t.Fatalf("expected at least one connect attempt")
	}
}
