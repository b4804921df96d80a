package slackapp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/quailyquaily/notionbolt/internal/jobstore"
	"github.com/quailyquaily/notionbolt/summary"
	"github.com/slack-go/slack"
)

// ReviewTarget describes where and how a monthly review is delivered.
type ReviewTarget struct {
	ChannelID string
	ThreadTS  string
	UserID    string
	Month     int
	Streaming bool
}

func (a *App) startReviewFromSelection(ctx context.Context, userID, channelID string, action slack.BlockAction) error {
	month, err := strconv.Atoi(strings.TrimSpace(action.SelectedOption.Value))
	if err != nil {
		return fmt.Errorf("invalid month selection %q", action.SelectedOption.Value)
	}
	if _, err := a.calendar.Month(month); err != nil {
		_, postErr := a.messenger.PostMessage(ctx, channelID, Message{Text: fmt.Sprintf("%d月は対象外の月だよ。", month)})
		return postErr
	}
	target := ReviewTarget{
		ChannelID: channelID,
		UserID:    userID,
		Month:     month,
		Streaming: streamingFromBlockID(action.BlockID),
	}
	if _, err := a.messenger.PostMessage(ctx, channelID, Message{
		Text: fmt.Sprintf("了解。%d月の週報をもとにマンスリーレビュー資料をまとめるね。少し待ってね。", month),
	}); err != nil {
		return err
	}
	a.goJob(jobstore.Job{
		Kind:      jobstore.KindReview,
		Channel:   channelID,
		UserID:    userID,
		Month:     month,
		Streaming: target.Streaming,
	}, func(ctx context.Context) (string, error) {
		return a.RunReview(ctx, target)
	})
	return nil
}

// RunReview builds the review for target.Month and posts it to the channel.
func (a *App) RunReview(ctx context.Context, target ReviewTarget) (string, error) {
	plan, err := a.calendar.Month(target.Month)
	if err != nil {
		return "", err
	}
	req := summary.ReviewRequest{Month: target.Month, Plan: plan}
	var stream *streamMessage
	if target.Streaming {
		req.OnProgress = func(ctx context.Context, p summary.Progress) error {
			_, err := a.messenger.PostMessage(ctx, target.ChannelID, Message{Text: p.Message(), ThreadTS: target.ThreadTS})
			return err
		}
		stream = &streamMessage{
			messenger: a.messenger,
			channelID: target.ChannelID,
			threadTS:  target.ThreadTS,
			interval:  a.streamIvl,
		}
		req.OnStream = stream.write
	}

	review, err := a.summarizer.Review(ctx, a.reports, req)
	if errors.Is(err, summary.ErrNoReports) {
		_, postErr := a.messenger.PostMessage(ctx, target.ChannelID, Message{
			Text:     fmt.Sprintf("%d月の週報が見つからなかったよ。", target.Month),
			ThreadTS: target.ThreadTS,
		})
		if postErr != nil {
			return "", postErr
		}
		return "", err
	}
	if err != nil {
		a.postError(target.ChannelID, target.ThreadTS, err)
		return "", err
	}

	final := Message{Text: review.Text, Blocks: ResultBlocks(review.Text), ThreadTS: target.ThreadTS}
	if stream != nil && stream.started() {
		if err := stream.finish(ctx, final); err != nil {
			return "", err
		}
		return review.Text, nil
	}
	if _, err := a.messenger.PostMessage(ctx, target.ChannelID, final); err != nil {
		return "", err
	}
	return review.Text, nil
}

// streamMessage posts the first chunk and then edits that message at most once per interval.
type streamMessage struct {
	messenger Messenger
	channelID string
	threadTS  string
	interval  time.Duration

	mu      sync.Mutex
	ts      string
	buf     strings.Builder
	flushed time.Time
}

func (s *streamMessage) write(ctx context.Context, chunk string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.WriteString(chunk)
	text := strings.TrimSpace(s.buf.String())
	if text == "" {
		return nil
	}
	if s.ts == "" {
		ts, err := s.messenger.PostMessage(ctx, s.channelID, Message{Text: text, ThreadTS: s.threadTS})
		if err != nil {
			return err
		}
		s.ts = ts
		s.flushed = time.Now()
		return nil
	}
	if time.Since(s.flushed) < s.interval {
		return nil
	}
	s.flushed = time.Now()
	return s.messenger.UpdateMessage(ctx, s.channelID, s.ts, Message{Text: text})
}

func (s *streamMessage) started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ts != ""
}

func (s *streamMessage) finish(ctx context.Context, final Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messenger.UpdateMessage(ctx, s.channelID, s.ts, final)
}
