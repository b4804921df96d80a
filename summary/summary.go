package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/quailyquaily/notionbolt/internal/metrics"
	"github.com/quailyquaily/notionbolt/internal/outputfmt"
	"github.com/quailyquaily/notionbolt/llm"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	defaultMaxChunkChars = 6000
	defaultChunkOverlap  = 200
	maxReducePasses      = 3
)

type Options struct {
	Client        llm.Client
	Model         string
	Temperature   float64
	MaxChunkChars int
	ChunkOverlap  int
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
}

type Summarizer struct {
	client   llm.Client
	model    string
	temp     float64
	maxChars int
	splitter textsplitter.RecursiveCharacter
	review   prompts.ChatPromptTemplate
	chat     prompts.ChatPromptTemplate
	minutes  prompts.ChatPromptTemplate
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func New(opts Options) (*Summarizer, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	maxChars := opts.MaxChunkChars
	if maxChars <= 0 {
		maxChars = defaultMaxChunkChars
	}
	overlap := opts.ChunkOverlap
	if overlap <= 0 {
		overlap = defaultChunkOverlap
	}
	if overlap >= maxChars {
		overlap = maxChars / 10
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{
		client:   opts.Client,
		model:    strings.TrimSpace(opts.Model),
		temp:     opts.Temperature,
		maxChars: maxChars,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(maxChars),
			textsplitter.WithChunkOverlap(overlap),
		),
		review:  reviewPrompt(),
		chat:    chatPrompt(),
		minutes: minutesPrompt(),
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// Weekly summarises one week of formatted reports.
func (s *Summarizer) Weekly(ctx context.Context, month int, weeklyReports string) (string, error) {
	return s.summarize(ctx, "weekly", month, weeklyReports, nil)
}

// Monthly summarises the weekly summaries of a month. They are joined with a single space.
func (s *Summarizer) Monthly(ctx context.Context, month int, weeklySummaries []string) (string, error) {
	return s.monthly(ctx, month, weeklySummaries, nil)
}

func (s *Summarizer) monthly(ctx context.Context, month int, weeklySummaries []string, stream llm.StreamFunc) (string, error) {
	parts := make([]string, 0, len(weeklySummaries))
	for _, w := range weeklySummaries {
		if w = strings.TrimSpace(w); w != "" {
			parts = append(parts, w)
		}
	}
	if len(parts) == 0 {
		return "", ErrNoReports
	}
	return s.summarize(ctx, "monthly", month, strings.Join(parts, " "), stream)
}

// Chat answers free-form text with the shared system prompt.
func (s *Summarizer) Chat(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty chat text")
	}
	msgs, err := renderMessages(s.chat, map[string]any{"text": text})
	if err != nil {
		return "", err
	}
	return s.complete(ctx, "chat", msgs, nil)
}

// Minutes summarises the note lines of one meeting.
func (s *Summarizer) Minutes(ctx context.Context, title string, notes []string) (string, error) {
	lines := make([]string, 0, len(notes))
	for _, n := range notes {
		if n = strings.TrimSpace(n); n != "" {
			lines = append(lines, "・"+n)
		}
	}
	if len(lines) == 0 {
		return "", ErrNoReports
	}
	msgs, err := renderMessages(s.minutes, map[string]any{
		"title": strings.TrimSpace(title),
		"notes": strings.Join(lines, "\n"),
	})
	if err != nil {
		return "", err
	}
	return s.complete(ctx, "minutes", msgs, nil)
}

func (s *Summarizer) summarize(ctx context.Context, kind string, month int, text string, stream llm.StreamFunc) (string, error) {
	if month < 1 || month > 12 {
		return "", fmt.Errorf("month out of range: %d", month)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoReports
	}

	for pass := 0; pass < maxReducePasses && utf8.RuneCountInString(text) > s.maxChars; pass++ {
		chunks, err := s.splitter.SplitText(text)
		if err != nil {
			return "", fmt.Errorf("split %s input: %w", kind, err)
		}
		if len(chunks) <= 1 {
			break
		}
		s.logger.Info("summary_chunked", "kind", kind, "month", month, "chunks", len(chunks), "pass", pass+1)
		partials := make([]string, 0, len(chunks))
		for _, chunk := range chunks {
			out, err := s.reviewCall(ctx, kind+"_chunk", month, chunk, nil)
			if err != nil {
				return "", err
			}
			partials = append(partials, out)
		}
		text = strings.Join(partials, " ")
	}
	return s.reviewCall(ctx, kind, month, text, stream)
}

func (s *Summarizer) reviewCall(ctx context.Context, kind string, month int, text string, stream llm.StreamFunc) (string, error) {
	msgs, err := renderMessages(s.review, map[string]any{
		"month":          strconv.Itoa(month),
		"weekly_reports": text,
	})
	if err != nil {
		return "", err
	}
	return s.complete(ctx, kind, msgs, stream)
}

func (s *Summarizer) complete(ctx context.Context, kind string, msgs []llm.Message, stream llm.StreamFunc) (string, error) {
	temp := s.temp
	result, err := s.client.Chat(ctx, llm.Request{
		Model:       s.model,
		Messages:    msgs,
		Temperature: &temp,
		OnStream:    stream,
	})
	if err != nil {
		s.metrics.Summary(kind, "error")
		s.logger.Warn("summary_llm_error", "kind", kind, "error", err.Error())
		return "", fmt.Errorf("%s summary: %w", kind, err)
	}
	text := outputfmt.FormatLLMText(result.Text)
	if text == "" {
		s.metrics.Summary(kind, "empty")
		return "", fmt.Errorf("%s summary: empty llm response", kind)
	}
	s.metrics.Summary(kind, "ok")
	s.logger.Debug("summary_llm_done",
		"kind", kind,
		"duration_ms", result.Duration.Milliseconds(),
		"total_tokens", result.Usage.TotalTokens,
	)
	return text, nil
}
