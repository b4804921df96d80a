package slackcmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quailyquaily/notionbolt/internal/slackapp"
	"github.com/slack-go/slack"
)

const (
	envelopeHello      = "hello"
	envelopeDisconnect = "disconnect"
)

// errSocketDisconnect asks the caller to reconnect.
var errSocketDisconnect = fmt.Errorf("slack requested disconnect")

type socketAck struct {
	EnvelopeID string `json:"envelope_id"`
	Payload    any    `json:"payload,omitempty"`
}

// socketOpener is the part of *slack.Client that opens a Socket Mode session.
type socketOpener interface {
	StartSocketModeContext(ctx context.Context) (*slack.SocketModeConnection, string, error)
}

func connectSocket(ctx context.Context, api socketOpener, dialer *websocket.Dialer) (*websocket.Conn, error) {
	_, url, err := api.StartSocketModeContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("slack apps.connections.open: %w", err)
	}
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("slack apps.connections.open returned empty url")
	}
	if dialer == nil {
		d := *websocket.DefaultDialer
		dialer = &d
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// envelopeHandler returns the ack payload for an envelope, or nil.
type envelopeHandler func(env slackapp.Envelope) (any, error)

// consumeSlackSocket reads envelopes until the connection fails or Slack asks to disconnect.
// Interactive envelopes are acked after dispatch so the ack can carry a response;
// everything else is acked first.
func consumeSlackSocket(ctx context.Context, conn *websocket.Conn, onEnvelope envelopeHandler) error {
	if conn == nil {
		return fmt.Errorf("slack websocket connection is nil")
	}
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		var env slackapp.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		switch strings.TrimSpace(env.Type) {
		case envelopeHello:
			continue
		case envelopeDisconnect:
			return errSocketDisconnect
		}
		id := strings.TrimSpace(env.EnvelopeID)
		ackLater := env.Type == slackapp.EnvelopeInteractive
		if id != "" && !ackLater {
			if err := conn.WriteJSON(socketAck{EnvelopeID: id}); err != nil {
				return err
			}
		}
		var payload any
		if onEnvelope != nil {
			payload, err = onEnvelope(env)
			if err != nil {
				payload = nil
			}
		}
		if id != "" && ackLater {
			if err := conn.WriteJSON(socketAck{EnvelopeID: id, Payload: payload}); err != nil {
				return err
			}
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
