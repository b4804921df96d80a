package summary

import (
	"context"
	"errors"
	"fmt"

	"github.com/quailyquaily/notionbolt/llm"
	"github.com/quailyquaily/notionbolt/reports"
)

var ErrNoReports = errors.New("no reports for the requested period")

type Stage string

const (
	StageWeekly  Stage = "weekly"
	StageMonthly Stage = "monthly"
)

type Progress struct {
	Stage  Stage
	Month  int
	Index  int // 1-based position of the week inside the month
	Total  int
	Period reports.Period
}

// Message is the user-facing progress line.
func (p Progress) Message() string {
	if p.Stage == StageMonthly {
		return "各週の内容から１か月分の要約を作成中..."
	}
	return fmt.Sprintf("%d月第%d週の週報を要約しています...", p.Month, p.Index)
}

type ProgressFunc func(ctx context.Context, p Progress) error

// WeekSource loads prepared reports. *reports.Store satisfies it.
type WeekSource interface {
	FetchPrepared(ctx context.Context, f reports.Filter) ([]reports.Report, error)
	Columns() reports.Columns
}

type ReviewRequest struct {
	Month      int
	Plan       reports.MonthPlan
	OnProgress ProgressFunc
	// OnStream receives the monthly summary as it is generated.
	OnStream llm.StreamFunc
}

type WeeklyResult struct {
	Period  reports.Period
	Reports int
	Summary string
}

type Review struct {
	Month  int
	Weekly []WeeklyResult
	Text   string
}

// Review builds the monthly review: one summary per week that has reports, then a summary of those.
func (s *Summarizer) Review(ctx context.Context, source WeekSource, req ReviewRequest) (Review, error) {
	if source == nil {
		return Review{}, fmt.Errorf("week source is required")
	}
	periods := req.Plan.Periods()
	if len(periods) == 0 {
		return Review{}, fmt.Errorf("month %d has no weeks", req.Month)
	}
	out := Review{Month: req.Month}
	cols := source.Columns()
	for i, period := range periods {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		items, err := source.FetchPrepared(ctx, reports.Filter{Periods: []reports.Period{period}})
		if err != nil {
			return out, fmt.Errorf("fetch %s: %w", period, err)
		}
		if len(items) == 0 {
			s.logger.Info("review_week_empty", "month", req.Month, "period", period.String())
			continue
		}
		if err := notify(ctx, req.OnProgress, Progress{
			Stage:  StageWeekly,
			Month:  req.Month,
			Index:  i + 1,
			Total:  len(periods),
			Period: period,
		}); err != nil {
			return out, err
		}
		text, err := s.Weekly(ctx, req.Month, reports.FormatForPrompt(items, cols))
		if err != nil {
			return out, fmt.Errorf("summarize %s: %w", period, err)
		}
		out.Weekly = append(out.Weekly, WeeklyResult{Period: period, Reports: len(items), Summary: text})
	}
	if len(out.Weekly) == 0 {
		return out, ErrNoReports
	}

	if err := notify(ctx, req.OnProgress, Progress{Stage: StageMonthly, Month: req.Month, Total: len(periods)}); err != nil {
		return out, err
	}
	summaries := make([]string, 0, len(out.Weekly))
	for _, w := range out.Weekly {
		summaries = append(summaries, w.Summary)
	}
	text, err := s.monthly(ctx, req.Month, summaries, req.OnStream)
	if err != nil {
		return out, err
	}
	out.Text = text
	s.logger.Info("review_done", "month", req.Month, "weeks", len(out.Weekly))
	return out, nil
}

func notify(ctx context.Context, fn ProgressFunc, p Progress) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, p)
}
