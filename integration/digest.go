package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quailyquaily/notionbolt/internal/jobstore"
	"github.com/quailyquaily/notionbolt/internal/slackapp"
	"github.com/quailyquaily/notionbolt/scheduler"
	"github.com/spf13/viper"
)

// ReviewRunner is implemented by *slackapp.App.
type ReviewRunner interface {
	RunReview(ctx context.Context, target slackapp.ReviewTarget) (string, error)
}

func DigestJobsFromViper() ([]scheduler.Job, error) {
	var jobs []scheduler.Job
	if !viper.IsSet("digest.jobs") {
		return nil, nil
	}
	if err := viper.UnmarshalKey("digest.jobs", &jobs); err != nil {
		return nil, fmt.Errorf("decode digest.jobs: %w", err)
	}
	return jobs, nil
}

func digestLocation() (*time.Location, error) {
	name := strings.TrimSpace(viper.GetString("digest.timezone"))
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("digest.timezone: %w", err)
	}
	return loc, nil
}

// NewDigestScheduler builds the scheduler that posts configured reviews and records each run in jobs.
func NewDigestScheduler(app ReviewRunner, jobs *jobstore.MemoryStore, logger *slog.Logger) (*scheduler.Scheduler, error) {
	if app == nil {
		return nil, fmt.Errorf("review runner is required")
	}
	defs, err := DigestJobsFromViper()
	if err != nil {
		return nil, err
	}
	loc, err := digestLocation()
	if err != nil {
		return nil, err
	}
	cfg := scheduler.DefaultConfig()
	cfg.Enabled = viper.GetBool("digest.enabled")
	cfg.Concurrency = viper.GetInt("digest.concurrency")
	cfg.Tick = viper.GetDuration("digest.tick")
	cfg.Location = loc
	cfg.OnRunStarted = func(run scheduler.Run) {
		now := time.Now().UTC()
		jobs.Upsert(jobstore.Job{
			ID:        run.ID,
			Kind:      jobstore.KindDigest,
			Status:    jobstore.StatusRunning,
			Channel:   run.Job.Channel,
			Month:     run.Month,
			Streaming: run.Job.Streaming,
			CreatedAt: now,
			StartedAt: &now,
		})
	}
	cfg.OnRunFinished = func(_ context.Context, res scheduler.RunResult) error {
		recordDigestResult(jobs, res)
		return nil
	}
	runner := func(ctx context.Context, run scheduler.Run) (string, error) {
		return app.RunReview(ctx, slackapp.ReviewTarget{
			ChannelID: run.Job.Channel,
			Month:     run.Month,
			Streaming: run.Job.Streaming,
		})
	}
	return scheduler.New(defs, runner, cfg, logger)
}

func recordDigestResult(jobs *jobstore.MemoryStore, res scheduler.RunResult) {
	if jobs == nil {
		return
	}
	if _, ok := jobs.Get(res.Run.ID); !ok {
		// skipped runs never started
		jobs.Upsert(jobstore.Job{
			ID:        res.Run.ID,
			Kind:      jobstore.KindDigest,
			Status:    jobstore.StatusQueued,
			Channel:   res.Run.Job.Channel,
			Month:     res.Run.Month,
			CreatedAt: res.StartedAt,
		})
	}
	var err error
	switch res.Status {
	case scheduler.StatusSuccess:
	case scheduler.StatusCanceled, scheduler.StatusSkipped:
		err = fmt.Errorf("%s: %s: %w", res.Status, res.Error, context.Canceled)
	default:
		err = errors.New(res.Status + ": " + res.Error)
	}
	jobs.Finish(res.Run.ID, res.Summary, err)
}
