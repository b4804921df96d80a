package slackapp

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/slack-go/slack/slackevents"
)

const (
	EnvelopeEventsAPI     = "events_api"
	EnvelopeInteractive   = "interactive"
	EnvelopeSlashCommands = "slash_commands"
)

// Envelope is one Socket Mode frame. The HTTP transport builds the same shape.
type Envelope struct {
	EnvelopeID string          `json:"envelope_id,omitempty"`
	Type       string          `json:"type,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type InboundEvent struct {
	TeamID       string
	ChannelID    string
	ChatType     string
	MessageTS    string
	ThreadTS     string
	UserID       string
	Text         string
	EventID      string
	SentAt       time.Time
	MentionUsers []string
	IsAppMention bool
}

var slackMentionPattern = regexp.MustCompile(`<@([A-Z0-9]+)(?:\|[^>]+)?>`)

// ParseInboundEvent extracts a user message from an Events API callback.
// ok is false for events the bot ignores: edits, bot posts, its own messages.
func ParseInboundEvent(raw json.RawMessage, botUserID string) (InboundEvent, bool, error) {
	if len(raw) == 0 {
		return InboundEvent{}, false, nil
	}
	ev, err := slackevents.ParseEvent(raw, slackevents.OptionNoVerifyToken())
	if err != nil {
		// unmapped inner event types
		if ev.Type == slackevents.CallbackEvent && ev.InnerEvent.Data == nil {
			return InboundEvent{}, false, nil
		}
		return InboundEvent{}, false, err
	}
	if ev.Type != slackevents.CallbackEvent {
		return InboundEvent{}, false, nil
	}

	var (
		userID, text, channelID, channelType string
		ts, threadTS, subtype, botID         string
		isAppMention                         bool
	)
	switch inner := ev.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		userID, text, channelID = inner.User, inner.Text, inner.Channel
		ts, threadTS, botID = inner.TimeStamp, inner.ThreadTimeStamp, inner.BotID
		isAppMention = true
	case *slackevents.MessageEvent:
		userID, text, channelID, channelType = inner.User, inner.Text, inner.Channel, inner.ChannelType
		ts, threadTS, subtype, botID = inner.TimeStamp, inner.ThreadTimeStamp, inner.SubType, inner.BotID
	default:
		return InboundEvent{}, false, nil
	}

	if strings.TrimSpace(subtype) != "" || strings.TrimSpace(botID) != "" {
		return InboundEvent{}, false, nil
	}
	userID = strings.TrimSpace(userID)
	if userID == "" || userID == strings.TrimSpace(botUserID) {
		return InboundEvent{}, false, nil
	}
	channelID = strings.TrimSpace(channelID)
	ts = strings.TrimSpace(ts)
	text = strings.TrimSpace(text)
	if channelID == "" || ts == "" || text == "" {
		return InboundEvent{}, false, nil
	}

	teamID := strings.TrimSpace(ev.TeamID)
	var eventID string
	sentAt := time.Now().UTC()
	if cb, ok := ev.Data.(*slackevents.EventsAPICallbackEvent); ok && cb != nil {
		eventID = strings.TrimSpace(cb.EventID)
		if cb.EventTime > 0 {
			sentAt = time.Unix(int64(cb.EventTime), 0).UTC()
		}
		if teamID == "" {
			teamID = strings.TrimSpace(cb.TeamID)
		}
	}
	if teamID == "" {
		return InboundEvent{}, false, fmt.Errorf("missing team_id in slack event")
	}

	return InboundEvent{
		TeamID:       teamID,
		ChannelID:    channelID,
		ChatType:     normalizeSlackChatType(channelType, channelID),
		MessageTS:    ts,
		ThreadTS:     strings.TrimSpace(threadTS),
		UserID:       userID,
		Text:         text,
		EventID:      eventID,
		SentAt:       sentAt,
		MentionUsers: collectSlackMentionUsers(text),
		IsAppMention: isAppMention,
	}, true, nil
}

func ToAllowlist(items []string) map[string]bool {
	out := make(map[string]bool)
	for _, raw := range items {
		item := strings.TrimSpace(raw)
		if item == "" {
			continue
		}
		out[item] = true
	}
	return out
}

func normalizeSlackChatType(channelType, channelID string) string {
	channelType = strings.ToLower(strings.TrimSpace(channelType))
	switch channelType {
	case "im", "mpim", "channel", "private_channel", "group":
		if channelType == "group" {
			return "private_channel"
		}
		return channelType
	}
	switch {
	case strings.HasPrefix(channelID, "D"):
		return "im"
	case strings.HasPrefix(channelID, "C"):
		return "channel"
	case strings.HasPrefix(channelID, "G"):
		return "private_channel"
	default:
		return "channel"
	}
}

func collectSlackMentionUsers(text string) []string {
	matches := slackMentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, match := range matches {
		if len(match) < 2 {
			continue
		}
		userID := strings.TrimSpace(match[1])
		if userID == "" || seen[userID] {
			continue
		}
		seen[userID] = true
		out = append(out, userID)
	}
	return out
}

// stripMention removes mentions of userID from text.
func stripMention(text, userID string) string {
	if userID == "" {
		return strings.TrimSpace(text)
	}
	out := slackMentionPattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := slackMentionPattern.FindStringSubmatch(m)
		if len(sub) >= 2 && sub[1] == userID {
			return ""
		}
		return m
	})
	return strings.TrimSpace(out)
}
