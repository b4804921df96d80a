package reports

import (
	"fmt"
	"strings"
	"time"

	"github.com/quailyquaily/notionbolt/notion"
)

const DefaultSkipTag = "来週の活動と成果の予定"

// Columns names the database columns that hold each report field.
type Columns struct {
	User    string `mapstructure:"user_column"`
	Period  string `mapstructure:"period_column"`
	Tags    string `mapstructure:"tag_column"`
	Content string `mapstructure:"content_column"`
}

func DefaultColumns() Columns {
	return Columns{
		User:    "userid",
		Period:  "活動報告",
		Tags:    "タグ",
		Content: "内容",
	}
}

func (c Columns) withDefaults() Columns {
	def := DefaultColumns()
	if strings.TrimSpace(c.User) == "" {
		c.User = def.User
	}
	if strings.TrimSpace(c.Period) == "" {
		c.Period = def.Period
	}
	if strings.TrimSpace(c.Tags) == "" {
		c.Tags = def.Tags
	}
	if strings.TrimSpace(c.Content) == "" {
		c.Content = def.Content
	}
	return c
}

// Schema is the weekly report database layout.
func (c Columns) Schema() notion.Schema {
	c = c.withDefaults()
	return notion.Schema{Columns: []notion.Column{
		{Name: c.User, Type: notion.TypeTitle},
		{Name: c.Period, Type: notion.TypeRichText},
		{Name: c.Tags, Type: notion.TypeMultiSelect},
		{Name: c.Content, Type: notion.TypeRichText},
	}}
}

type Report struct {
	PageID      string    `json:"page_id,omitempty"`
	UserID      string    `json:"user_id"`
	Period      Period    `json:"-"`
	PeriodText  string    `json:"period"`
	Tags        []string  `json:"tags,omitempty"`
	Content     string    `json:"content"`
	CreatedTime time.Time `json:"created_time,omitempty"`
}

func reportFromRow(row notion.Row, cols Columns) (Report, error) {
	periodText := strings.TrimSpace(row.Text(cols.Period))
	period, err := ParsePeriod(periodText)
	if err != nil {
		return Report{}, err
	}
	return Report{
		PageID:      row.Page.ID,
		UserID:      strings.TrimSpace(row.Text(cols.User)),
		Period:      period,
		PeriodText:  period.String(),
		Tags:        notion.OptionNames(row.Properties[cols.Tags]),
		Content:     row.Text(cols.Content),
		CreatedTime: row.Page.CreatedTime,
	}, nil
}

// Preprocess drops planning rows and empty reports, and removes line breaks from content.
func Preprocess(items []Report, skipTags []string) []Report {
	skip := make(map[string]bool, len(skipTags))
	for _, tag := range skipTags {
		if tag = strings.TrimSpace(tag); tag != "" {
			skip[tag] = true
		}
	}
	out := make([]Report, 0, len(items))
	for _, r := range items {
		if hasAnyTag(r.Tags, skip) {
			continue
		}
		content := strings.ReplaceAll(r.Content, "\r\n", "")
		content = strings.ReplaceAll(content, "\r", "")
		content = strings.ReplaceAll(content, "\n", "")
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		r.Content = content
		out = append(out, r)
	}
	return out
}

func hasAnyTag(tags []string, skip map[string]bool) bool {
	for _, tag := range tags {
		if skip[strings.TrimSpace(tag)] {
			return true
		}
	}
	return false
}

// FormatForPrompt renders reports as the text block handed to the summarizer.
func FormatForPrompt(items []Report, cols Columns) string {
	cols = cols.withDefaults()
	var b strings.Builder
	for i, r := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s\n%s: %s\n", cols.Tags, strings.Join(r.Tags, ", "), cols.Content, r.Content)
	}
	return b.String()
}
