package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/quailyquaily/notionbolt/llm"
	"github.com/quailyquaily/notionbolt/reports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	mu    sync.Mutex
	calls []llm.Request
	reply func(req llm.Request) (string, error)
}

func (f *fakeLLM) Chat(ctx context.Context, req llm.Request) (llm.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	f.mu.Unlock()
	if f.reply != nil {
		text, err := f.reply(req)
		return llm.Result{Text: text}, err
	}
	if req.OnStream != nil {
		if err := req.OnStream(ctx, "stream"); err != nil {
			return llm.Result{}, err
		}
	}
	return llm.Result{Text: fmt.Sprintf("summary-%d", n)}, nil
}

func humanContent(req llm.Request) string {
	for _, m := range req.Messages {
		if m.Role == llm.RoleUser {
			return m.Content
		}
	}
	return ""
}

type fakeSource struct {
	byPeriod map[string][]reports.Report
	err      error
}

func (f fakeSource) FetchPrepared(_ context.Context, flt reports.Filter) ([]reports.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byPeriod[flt.Periods[0].String()], nil
}

func (f fakeSource) Columns() reports.Columns { return reports.DefaultColumns() }

func newTestSummarizer(t *testing.T, client llm.Client, maxChars int) *Summarizer {
	t.Helper()
	s, err := New(Options{Client: client, Model: "test-model", MaxChunkChars: maxChars, ChunkOverlap: 1})
	require.NoError(t, err)
	return s
}

func TestWeeklyRendersPrompt(t *testing.T) {
	t.Parallel()

	client := &fakeLLM{}
	s := newTestSummarizer(t, client, 0)

	out, err := s.Weekly(context.Background(), 5, "タグ: 研究\n内容: 論文を読んだ\n")
	require.NoError(t, err)
	assert.Equal(t, "summary-1", out)

	require.Len(t, client.calls, 1)
	req := client.calls[0]
	assert.Equal(t, "test-model", req.Model)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.0, *req.Temperature)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "Your answers are in Japanese.")
	human := humanContent(req)
	assert.True(t, strings.HasPrefix(human, "5月の週報の内容を"), human)
	assert.Contains(t, human, "【課題と解決策】")
	assert.True(t, strings.HasSuffix(human, "内容: 論文を読んだ"), human)
}

func TestWeeklyRejectsBadInput(t *testing.T) {
	t.Parallel()

	s := newTestSummarizer(t, &fakeLLM{}, 0)
	_, err := s.Weekly(context.Background(), 13, "x")
	require.Error(t, err)
	_, err = s.Weekly(context.Background(), 4, "  ")
	require.ErrorIs(t, err, ErrNoReports)
}

func TestMonthlyJoinsWithSpace(t *testing.T) {
	t.Parallel()

	client := &fakeLLM{}
	s := newTestSummarizer(t, client, 0)
	_, err := s.Monthly(context.Background(), 6, []string{"A", " ", "B"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(humanContent(client.calls[0]), "A B"))

	_, err = s.Monthly(context.Background(), 6, nil)
	require.ErrorIs(t, err, ErrNoReports)
}

func TestLongInputIsChunked(t *testing.T) {
	t.Parallel()

	client := &fakeLLM{reply: func(req llm.Request) (string, error) { return "短い", nil }}
	s := newTestSummarizer(t, client, 50)

	long := strings.Repeat("論文を読んだ。\n\n", 30)
	out, err := s.Weekly(context.Background(), 4, long)
	require.NoError(t, err)
	assert.Equal(t, "短い", out)
	assert.Greater(t, len(client.calls), 2)
	last := humanContent(client.calls[len(client.calls)-1])
	assert.Contains(t, last, "短い 短い")
}

func TestChat(t *testing.T) {
	t.Parallel()

	client := &fakeLLM{}
	s := newTestSummarizer(t, client, 0)
	out, err := s.Chat(context.Background(), " こんにちは ")
	require.NoError(t, err)
	assert.Equal(t, "summary-1", out)
	assert.Equal(t, "こんにちは", humanContent(client.calls[0]))

	_, err = s.Chat(context.Background(), "")
	require.Error(t, err)
}

func TestLLMErrorIsWrapped(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s := newTestSummarizer(t, &fakeLLM{reply: func(llm.Request) (string, error) { return "", boom }}, 0)
	_, err := s.Chat(context.Background(), "x")
	require.ErrorIs(t, err, boom)

	s = newTestSummarizer(t, &fakeLLM{reply: func(llm.Request) (string, error) { return " ", nil }}, 0)
	_, err = s.Chat(context.Background(), "x")
	require.Error(t, err)
}

func TestReviewSkipsEmptyWeeks(t *testing.T) {
	t.Parallel()

	client := &fakeLLM{}
	s := newTestSummarizer(t, client, 0)
	source := fakeSource{byPeriod: map[string][]reports.Report{
		"1Q-05": {{Tags: []string{"研究"}, Content: "論文を読んだ"}},
		"1Q-07": {{Content: "実装した"}, {Content: "発表した"}},
	}}

	var progress []string
	var streamed string
	review, err := s.Review(context.Background(), source, ReviewRequest{
		Month: 5,
		Plan:  reports.MonthPlan{Quarter: "1Q", Weeks: []int{5, 6, 7, 8}},
		OnProgress: func(ctx context.Context, p Progress) error {
			progress = append(progress, p.Message())
			return nil
		},
		OnStream: func(ctx context.Context, chunk string) error {
			streamed += chunk
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"5月第1週の週報を要約しています...",
		"5月第3週の週報を要約しています...",
		"各週の内容から１か月分の要約を作成中...",
	}, progress)
	require.Len(t, review.Weekly, 2)
	assert.Equal(t, reports.Period{Quarter: "1Q", Week: 7}, review.Weekly[1].Period)
	assert.Equal(t, 2, review.Weekly[1].Reports)
	assert.Equal(t, "summary-3", review.Text)
	assert.Equal(t, "stream", streamed)

	require.Len(t, client.calls, 3)
	assert.Nil(t, client.calls[0].OnStream)
	assert.True(t, strings.HasSuffix(humanContent(client.calls[2]), "summary-1 summary-2"))
}

func TestReviewErrors(t *testing.T) {
	t.Parallel()

	s := newTestSummarizer(t, &fakeLLM{}, 0)
	plan := reports.MonthPlan{Quarter: "1Q", Weeks: []int{1}}

	_, err := s.Review(context.Background(), fakeSource{}, ReviewRequest{Month: 4, Plan: plan})
	require.ErrorIs(t, err, ErrNoReports)

	boom := errors.New("notion down")
	_, err = s.Review(context.Background(), fakeSource{err: boom}, ReviewRequest{Month: 4, Plan: plan})
	require.ErrorIs(t, err, boom)

	_, err = s.Review(context.Background(), fakeSource{}, ReviewRequest{Month: 4})
	require.Error(t, err)
}

func TestMinutes(t *testing.T) {
	t.Parallel()

	client := &fakeLLM{reply: func(llm.Request) (string, error) { return "```\n・決定: 次回はデモ\n```", nil }}
	s := newTestSummarizer(t, client, 0)
	out, err := s.Minutes(context.Background(), "第3回 定例", []string{"デモを決めた", " ", "資料作成"})
	require.NoError(t, err)
	assert.Equal(t, "・決定: 次回はデモ", out)
	human := humanContent(client.calls[0])
	assert.Contains(t, human, "「第3回 定例」")
	assert.True(t, strings.HasSuffix(human, "・デモを決めた\n・資料作成"), human)

	_, err = s.Minutes(context.Background(), "x", nil)
	require.ErrorIs(t, err, ErrNoReports)
}
