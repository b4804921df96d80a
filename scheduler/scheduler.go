package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	StatusQueued   = "queued"
	StatusRunning  = "running"
	StatusSuccess  = "succeeded"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
	StatusTimedOut = "timed_out"
	StatusSkipped  = "skipped"

	defaultTimeout = 10 * time.Minute
	queueSize      = 64
)

// Job is one configured digest: at each cron slot the review for the target month is posted to Channel.
type Job struct {
	Name        string        `mapstructure:"name" yaml:"name" json:"name"`
	Cron        string        `mapstructure:"cron" yaml:"cron" json:"cron"`
	Channel     string        `mapstructure:"channel" yaml:"channel" json:"channel"`
	MonthOffset int           `mapstructure:"month_offset" yaml:"month_offset" json:"month_offset"`
	Streaming   bool          `mapstructure:"streaming" yaml:"streaming" json:"streaming"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout,omitempty"`
}

type Run struct {
	ID           string
	Job          Job
	ScheduledFor time.Time
	Month        int
}

type RunResult struct {
	Run        Run
	Status     string
	Error      string
	Summary    string
	StartedAt  time.Time
	FinishedAt time.Time
}

type Config struct {
	Enabled     bool
	Concurrency int
	Tick        time.Duration
	Location    *time.Location

	// Max characters kept in RunResult.Error and RunResult.Summary.
	MaxErrorChars   int
	MaxSummaryChars int

	OnRunStarted  func(run Run)
	OnRunFinished func(ctx context.Context, res RunResult) error
	Now           func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Enabled:         false,
		Concurrency:     1,
		Tick:            1 * time.Second,
		Location:        time.Local,
		MaxErrorChars:   2000,
		MaxSummaryChars: 1000,
	}
}

type Runner func(ctx context.Context, run Run) (summary string, err error)

type entry struct {
	job     Job
	expr    *cronExpr
	next    time.Time
	running bool
}

type Scheduler struct {
	log    *slog.Logger
	cfg    Config
	runner Runner

	mu      sync.Mutex
	entries []*entry

	queue chan Run
	wg    sync.WaitGroup
}

func New(jobs []Job, runner Runner, cfg Config, log *slog.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("nil runner")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 1 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxErrorChars <= 0 {
		cfg.MaxErrorChars = 2000
	}
	if cfg.MaxSummaryChars <= 0 {
		cfg.MaxSummaryChars = 1000
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}

	seen := make(map[string]bool, len(jobs))
	entries := make([]*entry, 0, len(jobs))
	for i, job := range jobs {
		job.Name = strings.TrimSpace(job.Name)
		job.Channel = strings.TrimSpace(job.Channel)
		if job.Name == "" {
			job.Name = fmt.Sprintf("digest-%d", i+1)
		}
		if seen[job.Name] {
			return nil, fmt.Errorf("duplicate digest job name %q", job.Name)
		}
		seen[job.Name] = true
		if job.Channel == "" {
			return nil, fmt.Errorf("digest job %q: missing channel", job.Name)
		}
		expr, err := parseCronExpr(job.Cron, cfg.Location)
		if err != nil {
			return nil, fmt.Errorf("digest job %q: %w", job.Name, err)
		}
		entries = append(entries, &entry{job: job, expr: expr})
	}

	return &Scheduler{
		log:     log,
		cfg:     cfg,
		runner:  runner,
		entries: entries,
		queue:   make(chan Run, queueSize),
	}, nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	if !s.cfg.Enabled || len(s.entries) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	// misfire=skip: only slots after startup are scheduled.
	if err := s.reconcileNext(s.cfg.Now()); err != nil {
		return err
	}

	s.log.Info("scheduler_start", "jobs", len(s.entries), "concurrency", s.cfg.Concurrency, "tick_ms", s.cfg.Tick.Milliseconds())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.scheduleLoop(ctx)
	}()

	for i := 0; i < s.cfg.Concurrency; i++ {
		s.wg.Add(1)
		go func(workerID int) {
			defer s.wg.Done()
			s.workerLoop(ctx, workerID)
		}(i + 1)
	}
	return nil
}

func (s *Scheduler) Wait() {
	s.wg.Wait()
}

type NextRun struct {
	Job  Job
	Next time.Time
}

// Upcoming lists every job with its next slot, soonest first.
func (s *Scheduler) Upcoming(now time.Time) []NextRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]NextRun, 0, len(s.entries))
	for _, e := range s.entries {
		next := e.next
		if next.IsZero() || !next.After(now) {
			n, err := e.expr.next(now)
			if err != nil {
				continue
			}
			next = n
		}
		out = append(out, NextRun{Job: e.job, Next: next})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Next.Before(out[j].Next) })
	return out
}

func (s *Scheduler) reconcileNext(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		next, err := e.expr.next(now)
		if err != nil {
			return fmt.Errorf("digest job %q: %w", e.job.Name, err)
		}
		e.next = next
	}
	return nil
}

func (s *Scheduler) scheduleLoop(ctx context.Context) {
	t := time.NewTicker(s.cfg.Tick)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler_stop", "reason", ctx.Err().Error())
			return
		case <-t.C:
			s.tick(s.cfg.Now())
		}
	}
}

func (s *Scheduler) tick(now time.Time) {
	for _, run := range s.collectDue(now) {
		select {
		case s.queue <- run:
		default:
			s.finishSkipped(run, "queue full")
		}
	}
}

// collectDue advances every due entry and returns the runs to execute.
func (s *Scheduler) collectDue(now time.Time) []Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []Run
	for _, e := range s.entries {
		if e.next.IsZero() || e.next.After(now) {
			continue
		}
		scheduledFor := e.next
		next, err := e.expr.next(scheduledFor)
		if err != nil {
			s.log.Warn("scheduler_job_invalid", "job", e.job.Name, "error", err.Error())
			e.next = time.Time{}
		} else {
			e.next = next
		}
		run := Run{
			ID:           uuid.NewString(),
			Job:          e.job,
			ScheduledFor: scheduledFor,
			Month:        TargetMonth(scheduledFor, e.job.MonthOffset, s.cfg.Location),
		}
		if e.running {
			s.log.Info("scheduler_overlap_forbid", "job", e.job.Name, "scheduled_for", scheduledFor.Format(time.RFC3339))
			go s.finishSkipped(run, "overlap_forbid: prior run still running")
			continue
		}
		e.running = true
		due = append(due, run)
	}
	return due
}

func (s *Scheduler) setRunning(name string, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.job.Name == name {
			e.running = running
		}
	}
}

func (s *Scheduler) workerLoop(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			return
		case run := <-s.queue:
			s.executeRun(ctx, workerID, run)
		}
	}
}

func (s *Scheduler) executeRun(ctx context.Context, workerID int, run Run) {
	defer s.setRunning(run.Job.Name, false)

	timeout := run.Job.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := s.cfg.Now()
	if s.cfg.OnRunStarted != nil {
		s.cfg.OnRunStarted(run)
	}
	s.log.Info("scheduler_run_start", "worker", workerID, "run_id", run.ID, "job", run.Job.Name, "month", run.Month, "scheduled_for", run.ScheduledFor.Format(time.RFC3339))
	summary, runErr := s.runner(runCtx, run)

	res := RunResult{Run: run, Status: StatusFailed, StartedAt: started}
	switch {
	case runErr == nil:
		res.Status = StatusSuccess
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.Status = StatusTimedOut
		res.Error = fmt.Sprintf("timeout: run exceeded %s deadline", timeout.String())
	case errors.Is(runCtx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		res.Status = StatusCanceled
		res.Error = "canceled"
	default:
		res.Error = runErr.Error()
	}
	res.Error = truncateString(res.Error, s.cfg.MaxErrorChars)
	res.Summary = truncateString(summary, s.cfg.MaxSummaryChars)
	res.FinishedAt = s.cfg.Now()

	if res.Status == StatusSuccess {
		s.log.Info("scheduler_run_done", "worker", workerID, "run_id", run.ID, "job", run.Job.Name)
	} else {
		s.log.Warn("scheduler_run_error", "worker", workerID, "run_id", run.ID, "job", run.Job.Name, "status", res.Status, "error", res.Error)
	}
	s.notify(res)
}

func (s *Scheduler) finishSkipped(run Run, reason string) {
	now := s.cfg.Now()
	s.notify(RunResult{Run: run, Status: StatusSkipped, Error: reason, StartedAt: now, FinishedAt: now})
}

func (s *Scheduler) notify(res RunResult) {
	if s.cfg.OnRunFinished == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.cfg.OnRunFinished(notifyCtx, res); err != nil {
		s.log.Warn("scheduler_notify_error", "run_id", res.Run.ID, "job", res.Run.Job.Name, "error", err.Error())
	}
}

func truncateString(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return strings.ToValidUTF8(s[:max], "")
}
