package integration

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/quailyquaily/notionbolt/internal/jobstore"
	"github.com/quailyquaily/notionbolt/internal/logutil"
	"github.com/quailyquaily/notionbolt/internal/metrics"
	"github.com/quailyquaily/notionbolt/internal/notionclient"
	"github.com/quailyquaily/notionbolt/llm"
	"github.com/quailyquaily/notionbolt/minutes"
	"github.com/quailyquaily/notionbolt/notion"
	"github.com/quailyquaily/notionbolt/providers/langchain"
	"github.com/quailyquaily/notionbolt/reports"
	"github.com/quailyquaily/notionbolt/summary"
	"github.com/spf13/viper"
)

// Runtime builds components from viper.
type Runtime struct {
	cfg Config

	metricsOnce sync.Once
	metrics     *metrics.Metrics
	registry    *prometheus.Registry
}

// Components is everything a command needs to talk to Notion and the LLM.
type Components struct {
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Registry   *prometheus.Registry
	Notion     *notionclient.Client
	Reports    *reports.Store
	Calendar   reports.Calendar
	LLM        llm.Client
	Summarizer *summary.Summarizer
	Jobs       *jobstore.MemoryStore
}

func New(cfg Config) (*Runtime, error) {
	if cfg.Overrides == nil {
		cfg.Overrides = map[string]any{}
	}
	ApplyViperDefaults()
	for k, v := range cfg.Overrides {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		viper.Set(key, v)
	}
	return &Runtime{cfg: cfg}, nil
}

func (rt *Runtime) Logger() (*slog.Logger, error) {
	return logutil.LoggerFromViper()
}

// Metrics returns the process metrics and the registry they are registered with.
func (rt *Runtime) Metrics() (*metrics.Metrics, *prometheus.Registry) {
	rt.metricsOnce.Do(func() {
		rt.registry = prometheus.NewRegistry()
		rt.metrics = metrics.New(rt.registry)
	})
	return rt.metrics, rt.registry
}

func (rt *Runtime) NotionClient(logger *slog.Logger) (*notionclient.Client, error) {
	m, _ := rt.Metrics()
	return notionclient.New(notionclient.Options{
		Token:             viper.GetString("notion.token"),
		BaseURL:           viper.GetString("notion.base_url"),
		Version:           viper.GetString("notion.version"),
		HTTPClient:        &http.Client{Timeout: viper.GetDuration("notion.request_timeout")},
		RequestsPerSecond: viper.GetFloat64("notion.requests_per_second"),
		Logger:            logger,
		Metrics:           m,
	})
}

func (rt *Runtime) Columns() reports.Columns {
	return reports.Columns{
		User:    viper.GetString("reports.user_column"),
		Period:  viper.GetString("reports.period_column"),
		Tags:    viper.GetString("reports.tag_column"),
		Content: viper.GetString("reports.content_column"),
	}
}

func (rt *Runtime) Schema() (*notion.Schema, error) {
	path := strings.TrimSpace(viper.GetString("notion.schema_file"))
	if path == "" {
		return nil, nil
	}
	s, err := notion.LoadSchema(path)
	if err != nil {
		return nil, fmt.Errorf("load notion.schema_file: %w", err)
	}
	return &s, nil
}

// Calendar reads reports.calendar_file, then the inline reports.calendar map, then the default.
func (rt *Runtime) Calendar() (reports.Calendar, error) {
	if path := strings.TrimSpace(viper.GetString("reports.calendar_file")); path != "" {
		return reports.LoadCalendar(path)
	}
	if viper.IsSet("reports.calendar") {
		var cal reports.Calendar
		if err := viper.UnmarshalKey("reports.calendar", &cal); err != nil {
			return nil, fmt.Errorf("decode reports.calendar: %w", err)
		}
		if err := cal.Validate(); err != nil {
			return nil, err
		}
		return cal, nil
	}
	return reports.DefaultCalendar(), nil
}

func (rt *Runtime) ReportStore(logger *slog.Logger, client *notionclient.Client) (*reports.Store, error) {
	schema, err := rt.Schema()
	if err != nil {
		return nil, err
	}
	return reports.NewStore(reports.StoreOptions{
		Backend:      client,
		DatabaseID:   viper.GetString("notion.database_id"),
		Columns:      rt.Columns(),
		Schema:       schema,
		SkipTags:     viper.GetStringSlice("reports.skip_tags"),
		DedupeWindow: viper.GetDuration("reports.dedupe_window"),
		Logger:       logger,
	})
}

func (rt *Runtime) LLMClient() (llm.Client, error) {
	return langchain.New(langchain.Config{
		APIKey:         viper.GetString("llm.api_key"),
		Model:          viper.GetString("llm.model"),
		BaseURL:        viper.GetString("llm.base_url"),
		Temperature:    viper.GetFloat64("llm.temperature"),
		RequestTimeout: viper.GetDuration("llm.request_timeout"),
	})
}

func (rt *Runtime) Summarizer(logger *slog.Logger, client llm.Client) (*summary.Summarizer, error) {
	m, _ := rt.Metrics()
	return summary.New(summary.Options{
		Client:        client,
		Model:         viper.GetString("llm.model"),
		Temperature:   viper.GetFloat64("llm.temperature"),
		MaxChunkChars: viper.GetInt("llm.max_chunk_chars"),
		ChunkOverlap:  viper.GetInt("llm.chunk_overlap"),
		Logger:        logger,
		Metrics:       m,
	})
}

func (rt *Runtime) MinutesReader(client *notionclient.Client) (*minutes.Reader, error) {
	return minutes.NewReader(client, viper.GetString("notion.minutes_page_id"))
}

// Build wires every component. withLLM=false skips the LLM client and summarizer.
func (rt *Runtime) Build(logger *slog.Logger, withLLM bool) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m, reg := rt.Metrics()
	client, err := rt.NotionClient(logger)
	if err != nil {
		return nil, err
	}
	store, err := rt.ReportStore(logger, client)
	if err != nil {
		return nil, err
	}
	cal, err := rt.Calendar()
	if err != nil {
		return nil, err
	}
	out := &Components{
		Logger:   logger,
		Metrics:  m,
		Registry: reg,
		Notion:   client,
		Reports:  store,
		Calendar: cal,
		Jobs:     jobstore.NewMemoryStore(viper.GetInt("jobs.max_items")),
	}
	if !withLLM {
		return out, nil
	}
	if out.LLM, err = rt.LLMClient(); err != nil {
		return nil, err
	}
	if out.Summarizer, err = rt.Summarizer(logger, out.LLM); err != nil {
		return nil, err
	}
	return out, nil
}
