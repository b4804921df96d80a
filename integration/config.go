package integration

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config controls initialization and wiring behavior.
type Config struct {
	// Viper key overrides applied last (highest precedence).
	Overrides map[string]any
}

func DefaultConfig() Config {
	return Config{Overrides: map[string]any{}}
}

func (c *Config) Set(key string, value any) {
	if c == nil {
		return
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	if c.Overrides == nil {
		c.Overrides = map[string]any{}
	}
	c.Overrides[key] = value
}

// ApplyViperDefaults registers the default value of every known key.
func ApplyViperDefaults() {
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)

	viper.SetDefault("slack.max_concurrency", 3)
	viper.SetDefault("slack.task_timeout", 10*time.Minute)
	viper.SetDefault("slack.slash_command", "/report")
	viper.SetDefault("slack.stream_interval", time.Second)

	viper.SetDefault("notion.base_url", "https://api.notion.com/v1")
	viper.SetDefault("notion.version", "2022-06-28")
	viper.SetDefault("notion.requests_per_second", 3.0)
	viper.SetDefault("notion.request_timeout", 90*time.Second)

	viper.SetDefault("reports.period_column", "活動報告")
	viper.SetDefault("reports.user_column", "userid")
	viper.SetDefault("reports.tag_column", "タグ")
	viper.SetDefault("reports.content_column", "内容")
	viper.SetDefault("reports.skip_tags", []string{"来週の活動と成果の予定"})
	viper.SetDefault("reports.dedupe_window", 10*time.Minute)

	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.0)
	viper.SetDefault("llm.request_timeout", 2*time.Minute)
	viper.SetDefault("llm.max_chunk_chars", 6000)
	viper.SetDefault("llm.chunk_overlap", 200)

	viper.SetDefault("digest.enabled", false)
	viper.SetDefault("digest.timezone", "Asia/Tokyo")
	viper.SetDefault("digest.concurrency", 1)
	viper.SetDefault("digest.tick", time.Second)

	viper.SetDefault("jobs.max_items", 1000)
	viper.SetDefault("server.listen", "127.0.0.1:8080")
}
