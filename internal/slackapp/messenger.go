package slackapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

type Message struct {
	Text     string
	Blocks   []slack.Block
	ThreadTS string
}

// Messenger is the Slack Web API surface the app uses.
type Messenger interface {
	PostMessage(ctx context.Context, channelID string, msg Message) (string, error)
	UpdateMessage(ctx context.Context, channelID, ts string, msg Message) error
	OpenView(ctx context.Context, triggerID string, view slack.ModalViewRequest) error
}

// SlackMessenger implements Messenger on slack-go with retries on 429 and 5xx.
type SlackMessenger struct {
	api    *slack.Client
	logger *slog.Logger
}

func NewSlackMessenger(api *slack.Client, logger *slog.Logger) *SlackMessenger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlackMessenger{api: api, logger: logger}
}

func msgOptions(msg Message) []slack.MsgOption {
	opts := []slack.MsgOption{slack.MsgOptionText(msg.Text, false)}
	if len(msg.Blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(msg.Blocks...))
	}
	if ts := strings.TrimSpace(msg.ThreadTS); ts != "" {
		opts = append(opts, slack.MsgOptionTS(ts))
	}
	return opts
}

func (m *SlackMessenger) PostMessage(ctx context.Context, channelID string, msg Message) (string, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return "", fmt.Errorf("channel_id is required")
	}
	if strings.TrimSpace(msg.Text) == "" && len(msg.Blocks) == 0 {
		return "", fmt.Errorf("text is required")
	}
	var ts string
	err := m.withRetry(ctx, "chat.postMessage", func() error {
		var err error
		_, ts, err = m.api.PostMessageContext(ctx, channelID, msgOptions(msg)...)
		return err
	})
	return ts, err
}

func (m *SlackMessenger) UpdateMessage(ctx context.Context, channelID, ts string, msg Message) error {
	if strings.TrimSpace(channelID) == "" || strings.TrimSpace(ts) == "" {
		return fmt.Errorf("channel_id and ts are required")
	}
	msg.ThreadTS = ""
	return m.withRetry(ctx, "chat.update", func() error {
		_, _, _, err := m.api.UpdateMessageContext(ctx, channelID, ts, msgOptions(msg)...)
		return err
	})
}

func (m *SlackMessenger) OpenView(ctx context.Context, triggerID string, view slack.ModalViewRequest) error {
	if strings.TrimSpace(triggerID) == "" {
		return fmt.Errorf("trigger_id is required")
	}
	_, err := m.api.OpenViewContext(ctx, triggerID, view)
	return err
}

func (m *SlackMessenger) withRetry(ctx context.Context, method string, fn func() error) error {
	const maxAttempts = 3
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt >= maxAttempts {
			break
		}
		wait, retryable := slackRetryDelay(lastErr, attempt)
		if !retryable {
			break
		}
		m.logger.Warn("slack_api_retry", "method", method, "attempt", attempt, "wait", wait.String(), "error", lastErr.Error())
		if err := sleepWithContext(ctx, wait); err != nil {
			return err
		}
	}
	return lastErr
}

func slackRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimited *slack.RateLimitedError
	if errors.As(err, &rateLimited) {
		if rateLimited.RetryAfter <= 0 {
			return 1 * time.Second, true
		}
		return rateLimited.RetryAfter, true
	}
	var statusErr slack.StatusCodeError
	if errors.As(err, &statusErr) {
		if statusErr.Code == http.StatusTooManyRequests {
			return 1 * time.Second, true
		}
		if statusErr.Code >= 500 && statusErr.Code <= 599 {
			switch attempt {
			case 1:
				return 300 * time.Millisecond, true
			case 2:
				return 1 * time.Second, true
			default:
				return 2 * time.Second, true
			}
		}
	}
	return 0, false
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
