package slackapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/quailyquaily/notionbolt/internal/jobstore"
	"github.com/quailyquaily/notionbolt/internal/metrics"
	"github.com/quailyquaily/notionbolt/reports"
	"github.com/quailyquaily/notionbolt/summary"
	"github.com/slack-go/slack"
)

// DefaultTrigger matches the phrases that start a monthly review.
var DefaultTrigger = regexp.MustCompile(`(週報要約|マンスリーレビュー作って|たのむ|たのんだ)`)

const (
	defaultJobTimeout     = 10 * time.Minute
	defaultStreamInterval = time.Second
	seenTTL               = 10 * time.Minute
)

type Summarizer interface {
	Review(ctx context.Context, source summary.WeekSource, req summary.ReviewRequest) (summary.Review, error)
	Chat(ctx context.Context, text string) (string, error)
}

type ReportStore interface {
	summary.WeekSource
	Append(ctx context.Context, r reports.Report) (string, error)
}

type Options struct {
	Messenger       Messenger
	Reports         ReportStore
	Summarizer      Summarizer
	Calendar        reports.Calendar
	Jobs            *jobstore.MemoryStore
	Metrics         *metrics.Metrics
	Logger          *slog.Logger
	BotUserID       string
	AllowedTeams    map[string]bool
	AllowedChannels map[string]bool
	Trigger         *regexp.Regexp
	SlashCommand    string
	MaxConcurrency  int
	JobTimeout      time.Duration
	StreamInterval  time.Duration
}

type App struct {
	messenger  Messenger
	reports    ReportStore
	summarizer Summarizer
	calendar   reports.Calendar
	jobs       *jobstore.MemoryStore
	metrics    *metrics.Metrics
	logger     *slog.Logger
	botUserID  string
	teams      map[string]bool
	channels   map[string]bool
	trigger    *regexp.Regexp
	slash      string
	timeout    time.Duration
	streamIvl  time.Duration

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	seenMu sync.Mutex
	seen   map[string]time.Time
}

func New(opts Options) (*App, error) {
	if opts.Messenger == nil {
		return nil, fmt.Errorf("slack messenger is required")
	}
	if opts.Reports == nil {
		return nil, fmt.Errorf("report store is required")
	}
	if opts.Summarizer == nil {
		return nil, fmt.Errorf("summarizer is required")
	}
	cal := opts.Calendar
	if cal == nil {
		cal = reports.DefaultCalendar()
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	trigger := opts.Trigger
	if trigger == nil {
		trigger = DefaultTrigger
	}
	slash := strings.TrimSpace(opts.SlashCommand)
	if slash == "" {
		slash = "/report"
	}
	maxConc := opts.MaxConcurrency
	if maxConc <= 0 {
		maxConc = 3
	}
	timeout := opts.JobTimeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	streamIvl := opts.StreamInterval
	if streamIvl <= 0 {
		streamIvl = defaultStreamInterval
	}
	jobs := opts.Jobs
	if jobs == nil {
		jobs = jobstore.NewMemoryStore(0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		messenger:  opts.Messenger,
		reports:    opts.Reports,
		summarizer: opts.Summarizer,
		calendar:   cal,
		jobs:       jobs,
		metrics:    opts.Metrics,
		logger:     logger,
		botUserID:  strings.TrimSpace(opts.BotUserID),
		teams:      opts.AllowedTeams,
		channels:   opts.AllowedChannels,
		trigger:    trigger,
		slash:      slash,
		timeout:    timeout,
		streamIvl:  streamIvl,
		sem:        make(chan struct{}, maxConc),
		ctx:        ctx,
		cancel:     cancel,
		seen:       make(map[string]time.Time),
	}, nil
}

func (a *App) Jobs() *jobstore.MemoryStore { return a.jobs }

// Close cancels running jobs and waits for them to return.
func (a *App) Close() {
	a.cancel()
	a.wg.Wait()
}

// Wait blocks until every started job has finished.
func (a *App) Wait() {
	a.wg.Wait()
}

// HandleEnvelope dispatches one frame. The returned value, when non-nil, is the ack payload.
func (a *App) HandleEnvelope(ctx context.Context, env Envelope) (any, error) {
	switch strings.TrimSpace(env.Type) {
	case EnvelopeEventsAPI:
		return nil, a.HandleEventsAPI(ctx, env.Payload)
	case EnvelopeInteractive:
		var cb slack.InteractionCallback
		if err := json.Unmarshal(env.Payload, &cb); err != nil {
			a.metrics.SlackEvent(EnvelopeInteractive, "invalid")
			return nil, fmt.Errorf("decode interaction: %w", err)
		}
		return a.HandleInteraction(ctx, cb)
	case EnvelopeSlashCommands:
		var cmd slack.SlashCommand
		if err := json.Unmarshal(env.Payload, &cmd); err != nil {
			a.metrics.SlackEvent(EnvelopeSlashCommands, "invalid")
			return nil, fmt.Errorf("decode slash command: %w", err)
		}
		return nil, a.HandleSlashCommand(ctx, cmd)
	default:
		return nil, nil
	}
}

func (a *App) HandleEventsAPI(ctx context.Context, raw json.RawMessage) error {
	ev, ok, err := ParseInboundEvent(raw, a.botUserID)
	if err != nil {
		a.metrics.SlackEvent(EnvelopeEventsAPI, "invalid")
		return err
	}
	if !ok {
		a.metrics.SlackEvent(EnvelopeEventsAPI, "ignored")
		return nil
	}
	if !a.allowed(ev.TeamID, ev.ChannelID) {
		a.metrics.SlackEvent(EnvelopeEventsAPI, "denied")
		return nil
	}
	if !a.markSeen(ev.ChannelID + ":" + ev.MessageTS) {
		a.metrics.SlackEvent(EnvelopeEventsAPI, "duplicate")
		return nil
	}

	text := stripMention(ev.Text, a.botUserID)
	switch {
	case a.trigger.MatchString(text):
		a.metrics.SlackEvent(EnvelopeEventsAPI, "trigger")
		_, err := a.messenger.PostMessage(ctx, ev.ChannelID, Message{
			Text:     modeSelectText,
			Blocks:   ModeSelectBlocks(),
			ThreadTS: ev.ThreadTS,
		})
		return err
	case a.addressed(ev):
		if text == "" {
			return nil
		}
		a.metrics.SlackEvent(EnvelopeEventsAPI, "chat")
		a.startChat(ev, text)
		return nil
	default:
		a.metrics.SlackEvent(EnvelopeEventsAPI, "ignored")
		return nil
	}
}

func (a *App) addressed(ev InboundEvent) bool {
	if ev.IsAppMention || ev.ChatType == "im" {
		return true
	}
	for _, u := range ev.MentionUsers {
		if u == a.botUserID && u != "" {
			return true
		}
	}
	return false
}

func (a *App) allowed(teamID, channelID string) bool {
	if len(a.teams) > 0 && !a.teams[teamID] {
		return false
	}
	if len(a.channels) > 0 && !a.channels[channelID] {
		return false
	}
	return true
}

// markSeen reports whether key is new. app_mention and message events share a ts.
func (a *App) markSeen(key string) bool {
	now := time.Now()
	a.seenMu.Lock()
	defer a.seenMu.Unlock()
	for k, at := range a.seen {
		if now.Sub(at) > seenTTL {
			delete(a.seen, k)
		}
	}
	if _, ok := a.seen[key]; ok {
		return false
	}
	a.seen[key] = now
	return true
}

func (a *App) HandleInteraction(ctx context.Context, cb slack.InteractionCallback) (any, error) {
	switch cb.Type {
	case slack.InteractionTypeBlockActions:
		a.metrics.SlackEvent(EnvelopeInteractive, "block_actions")
		channelID := strings.TrimSpace(cb.Channel.ID)
		if channelID == "" {
			channelID = strings.TrimSpace(cb.Container.ChannelID)
		}
		if !a.allowed(cb.Team.ID, channelID) {
			return nil, nil
		}
		for _, action := range cb.ActionCallback.BlockActions {
			if action == nil {
				continue
			}
			if err := a.handleBlockAction(ctx, cb, channelID, *action); err != nil {
				return nil, err
			}
		}
		return nil, nil
	case slack.InteractionTypeShortcut, slack.InteractionTypeMessageAction:
		if strings.TrimSpace(cb.CallbackID) != ActionOpenReportModal {
			return nil, nil
		}
		a.metrics.SlackEvent(EnvelopeInteractive, "shortcut")
		return nil, a.openReportModal(ctx, cb.TriggerID, cb.Channel.ID)
	case slack.InteractionTypeViewSubmission:
		if cb.View.CallbackID != CallbackReportModal {
			return nil, nil
		}
		a.metrics.SlackEvent(EnvelopeInteractive, "view_submission")
		if resp := a.handleReportSubmission(cb); resp != nil {
			return resp, nil
		}
		return nil, nil
	default:
		return nil, nil
	}
}

func (a *App) handleBlockAction(ctx context.Context, cb slack.InteractionCallback, channelID string, action slack.BlockAction) error {
	switch action.ActionID {
	case ActionModeSelection:
		streaming := strings.TrimSpace(action.SelectedOption.Value) == "1"
		_, err := a.messenger.PostMessage(ctx, channelID, Message{
			Text:   monthSelectText,
			Blocks: MonthSelectBlocks(streaming, a.calendar.Months()),
		})
		return err
	case ActionMonthSelection:
		return a.startReviewFromSelection(ctx, cb.User.ID, channelID, action)
	case ActionOpenReportModal:
		return a.openReportModal(ctx, cb.TriggerID, channelID)
	default:
		return nil
	}
}

func (a *App) HandleSlashCommand(ctx context.Context, cmd slack.SlashCommand) error {
	if strings.TrimSpace(cmd.Command) != a.slash {
		a.metrics.SlackEvent(EnvelopeSlashCommands, "ignored")
		return nil
	}
	if !a.allowed(cmd.TeamID, cmd.ChannelID) {
		a.metrics.SlackEvent(EnvelopeSlashCommands, "denied")
		return nil
	}
	a.metrics.SlackEvent(EnvelopeSlashCommands, "report")
	return a.openReportModal(ctx, cmd.TriggerID, cmd.ChannelID)
}

// goJob runs fn in the background, bounded by the concurrency limit.
func (a *App) goJob(job jobstore.Job, fn func(ctx context.Context) (string, error)) jobstore.Job {
	job = a.jobs.Submit(job)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		select {
		case a.sem <- struct{}{}:
		case <-a.ctx.Done():
			a.jobs.Finish(job.ID, "", a.ctx.Err())
			return
		}
		defer func() { <-a.sem }()

		a.metrics.JobStarted()
		defer a.metrics.JobFinished()
		a.jobs.MarkRunning(job.ID)
		ctx, cancel := context.WithTimeout(a.ctx, a.timeout)
		result, err := fn(ctx)
		cancel()
		a.jobs.Finish(job.ID, result, err)
		if err != nil {
			a.logger.Warn("slack_job_error", "job_id", job.ID, "kind", string(job.Kind), "error", err.Error())
			return
		}
		a.logger.Info("slack_job_done", "job_id", job.ID, "kind", string(job.Kind))
	}()
	return job
}

func (a *App) startChat(ev InboundEvent, text string) {
	a.goJob(jobstore.Job{Kind: jobstore.KindChat, Channel: ev.ChannelID, UserID: ev.UserID}, func(ctx context.Context) (string, error) {
		if _, err := a.messenger.PostMessage(ctx, ev.ChannelID, Message{Text: chatPendingText, ThreadTS: ev.ThreadTS}); err != nil {
			return "", err
		}
		answer, err := a.summarizer.Chat(ctx, text)
		if err != nil {
			a.postError(ev.ChannelID, ev.ThreadTS, err)
			return "", err
		}
		_, err = a.messenger.PostMessage(ctx, ev.ChannelID, Message{Text: answer, ThreadTS: ev.ThreadTS})
		return answer, err
	})
}

func (a *App) postError(channelID, threadTS string, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, postErr := a.messenger.PostMessage(ctx, channelID, Message{Text: "error: " + err.Error(), ThreadTS: threadTS}); postErr != nil {
		a.logger.Warn("slack_post_error", "channel_id", channelID, "error", postErr.Error())
	}
}
