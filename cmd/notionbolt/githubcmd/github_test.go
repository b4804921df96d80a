package githubcmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/quailyquaily/notionbolt/activity"
	"github.com/slack-go/slack"
)

type fakePoster struct {
	channel string
	calls   int
	err     error
}

func (f *fakePoster) PostMessageContext(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
	f.calls++
	f.channel = channelID
	return channelID, "1.0", f.err
}

func TestActivityOptions(t *testing.T) {
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	cmd := newActivityCmd(Dependencies{})
	if err := cmd.Flags().Set("since", "48h"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("state", "ALL"); err != nil {
		t.Fatal(err)
	}
	opts, err := activityOptions(cmd, now)
	if err != nil {
		t.Fatalf("activityOptions() error = %v", err)
	}
	if opts.State != "all" || opts.Limit != 30 || !opts.Since.Equal(now.Add(-48*time.Hour)) {
		t.Fatalf("unexpected options: %+v", opts)
	}

	bad := newActivityCmd(Dependencies{})
	_ = bad.Flags().Set("state", "merged")
	if _, err := activityOptions(bad, now); err == nil {
		t.Fatalf("expected state error")
	}
	bad = newActivityCmd(Dependencies{})
	_ = bad.Flags().Set("limit", "0")
	if _, err := activityOptions(bad, now); err == nil {
		t.Fatalf("expected limit error")
	}
}

func TestWriteActivity(t *testing.T) {
	items := []activity.PullActivity{{Number: 7, Title: "Fix", Author: "alice", Participants: []string{"alice", "bob"}}}
	var buf bytes.Buffer
	if err := writeActivity(&buf, items, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "#7 Fix (@alice) participants: alice, bob") {
		t.Fatalf("got %q", buf.String())
	}
	buf.Reset()
	if err := writeActivity(&buf, nil, true); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestPostActivity(t *testing.T) {
	p := &fakePoster{}
	if err := postActivity(context.Background(), p, "C1", "o/r", nil); err != nil {
		t.Fatalf("postActivity() error = %v", err)
	}
	if p.calls != 1 || p.channel != "C1" {
		t.Fatalf("unexpected post: %+v", p)
	}
	p.err = errors.New("channel_not_found")
	if err := postActivity(context.Background(), p, "C2", "o/r", nil); err == nil || !strings.Contains(err.Error(), "C2") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestActivityRejectsBadRepo(t *testing.T) {
	cmd := NewCommand(Dependencies{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"activity", "not-a-repo"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error")
	}
}
