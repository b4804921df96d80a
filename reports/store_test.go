package reports

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/quailyquaily/notionbolt/internal/notionclient"
	"github.com/quailyquaily/notionbolt/notion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu       sync.Mutex
	pages    []notion.QueryResultPage
	created  []map[string]any
	archived []string
	filters  []map[string]any
	// gate, when set, holds CreatePage until it is closed.
	gate chan struct{}
}

func (f *fakeBackend) QueryAll(_ context.Context, databaseID string, opts notionclient.QueryOptions) ([]notion.QueryResultPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if databaseID != "db1" {
		return nil, fmt.Errorf("unexpected database %q", databaseID)
	}
	f.filters = append(f.filters, opts.Filter)
	return append([]notion.QueryResultPage(nil), f.pages...), nil
}

func (f *fakeBackend) CreatePage(_ context.Context, payload map[string]any) (notion.QueryResultPage, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, payload)
	return notion.QueryResultPage{ID: fmt.Sprintf("new-%d", len(f.created))}, nil
}

func (f *fakeBackend) ArchivePage(_ context.Context, pageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archived = append(f.archived, pageID)
	return nil
}

func richText(content string) map[string]any {
	return map[string]any{
		"type":       "text",
		"text":       map[string]any{"content": content},
		"plain_text": content,
	}
}

func reportPage(id, user, period string, tags []string, content string) notion.QueryResultPage {
	opts := make([]any, 0, len(tags))
	for _, tag := range tags {
		opts = append(opts, map[string]any{"name": tag, "color": "default"})
	}
	return notion.QueryResultPage{
		ID:     id,
		Parent: notion.DatabaseParent("db1"),
		Properties: map[string]map[string]any{
			"userid": {"type": "title", "title": []any{richText(user)}},
			"活動報告":   {"type": "rich_text", "rich_text": []any{richText(period)}},
			"タグ":     {"type": "multi_select", "multi_select": opts},
			"内容":     {"type": "rich_text", "rich_text": []any{richText(content)}},
		},
	}
}

func newTestStore(t *testing.T, backend *fakeBackend, now func() time.Time) *Store {
	t.Helper()
	s, err := NewStore(StoreOptions{Backend: backend, DatabaseID: "db1", Now: now})
	require.NoError(t, err)
	return s
}

func TestFetchFiltersByPeriod(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{pages: []notion.QueryResultPage{
		reportPage("p1", "U1", "1Q-03", []string{"研究"}, "論文を読んだ"),
		reportPage("p2", "U2", "1Q-04", nil, "実装した"),
		reportPage("p3", "U3", "", nil, "period missing"),
		reportPage("p4", "U4", "1Q-3", []string{DefaultSkipTag}, "来週は発表"),
	}}
	s := newTestStore(t, backend, nil)

	got, err := s.Fetch(context.Background(), Filter{Periods: []Period{{Quarter: "1Q", Week: 3}}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].PageID)
	assert.Equal(t, []string{"研究"}, got[0].Tags)
	assert.Equal(t, "1Q-03", got[0].PeriodText)
	assert.Equal(t, "p4", got[1].PageID)

	require.Len(t, backend.filters, 1)
	assert.Equal(t, map[string]any{
		"property":  "活動報告",
		"rich_text": map[string]any{"equals": "1Q-03"},
	}, backend.filters[0])

	prepared, err := s.FetchPrepared(context.Background(), Filter{Periods: []Period{{Quarter: "1Q", Week: 3}}})
	require.NoError(t, err)
	require.Len(t, prepared, 1)
	assert.Equal(t, "p1", prepared[0].PageID)
}

func periodSchema(periodType notion.PropertyType) *notion.Schema {
	return &notion.Schema{Columns: []notion.Column{
		{Name: "userid", Type: notion.TypeTitle},
		{Name: "活動報告", Type: periodType},
		{Name: "タグ", Type: notion.TypeMultiSelect},
		{Name: "内容", Type: notion.TypeRichText},
	}}
}

func TestFetchFilterFollowsPeriodColumnType(t *testing.T) {
	t.Parallel()

	selectPage := func(id, period string) notion.QueryResultPage {
		page := reportPage(id, "U1", "", nil, "x")
		page.Properties["活動報告"] = map[string]any{"type": "select", "select": map[string]any{"name": period, "color": "default"}}
		return page
	}
	backend := &fakeBackend{pages: []notion.QueryResultPage{selectPage("p1", "1Q-03"), selectPage("p2", "1Q-04")}}
	s, err := NewStore(StoreOptions{Backend: backend, DatabaseID: "db1", Schema: periodSchema(notion.TypeSelect)})
	require.NoError(t, err)

	got, err := s.Fetch(context.Background(), Filter{Periods: []Period{{Quarter: "1Q", Week: 3}, {Quarter: "1Q", Week: 5}}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].PageID)
	require.Len(t, backend.filters, 1)
	assert.Equal(t, map[string]any{"or": []any{
		map[string]any{"property": "活動報告", "select": map[string]any{"equals": "1Q-03"}},
		map[string]any{"property": "活動報告", "select": map[string]any{"equals": "1Q-05"}},
	}}, backend.filters[0])

	urlPage := func(id, period string) notion.QueryResultPage {
		page := reportPage(id, "U1", "", nil, "x")
		page.Properties["活動報告"] = map[string]any{"type": "url", "url": period}
		return page
	}
	backend = &fakeBackend{pages: []notion.QueryResultPage{urlPage("p1", "1Q-03"), urlPage("p2", "1Q-04")}}
	s, err = NewStore(StoreOptions{Backend: backend, DatabaseID: "db1", Schema: periodSchema(notion.TypeURL)})
	require.NoError(t, err)

	got, err = s.Fetch(context.Background(), Filter{Periods: []Period{{Quarter: "1Q", Week: 4}}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p2", got[0].PageID)
	require.Len(t, backend.filters, 1)
	assert.Nil(t, backend.filters[0])
}

func TestFetchFailsOnSchemaMismatch(t *testing.T) {
	t.Parallel()

	page := reportPage("p1", "U1", "1Q-03", nil, "x")
	page.Properties["タグ"] = map[string]any{"type": "select", "select": nil}
	s := newTestStore(t, &fakeBackend{pages: []notion.QueryResultPage{page}}, nil)

	_, err := s.Fetch(context.Background(), Filter{})
	require.ErrorIs(t, err, notion.ErrSchemaMismatch)
}

func TestAppendBuildsPayloadAndDedupes(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 4, 8, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	backend := &fakeBackend{}
	s := newTestStore(t, backend, clock)

	r := Report{UserID: "U1", Period: Period{Quarter: "1Q", Week: 3}, Tags: []string{"研究", " 開発 "}, Content: "論文を読んだ"}
	id, err := s.Append(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "new-1", id)

	require.Len(t, backend.created, 1)
	payload := backend.created[0]
	assert.Equal(t, map[string]any{"type": "database_id", "database_id": "db1"}, payload["parent"])
	props := payload["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"multi_select": []any{
		map[string]any{"name": "研究"},
		map[string]any{"name": "開発"},
	}}, props["タグ"])
	assert.Equal(t, map[string]any{"rich_text": []any{
		map[string]any{"type": "text", "text": map[string]any{"content": "1Q-03"}},
	}}, props["活動報告"])

	id, err = s.Append(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "new-1", id)
	assert.Len(t, backend.created, 1)

	now = now.Add(11 * time.Minute)
	id, err = s.Append(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "new-2", id)
}

func TestConcurrentIdenticalAppendsCreateOnePage(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{gate: make(chan struct{})}
	s := newTestStore(t, backend, nil)
	r := Report{UserID: "U1", Period: Period{Quarter: "1Q", Week: 3}, Content: "論文を読んだ"}

	const callers = 4
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = s.Append(context.Background(), r)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(backend.gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "new-1", ids[i])
	}
	assert.Len(t, backend.created, 1)
}

func TestAppendValidates(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, &fakeBackend{}, nil)
	_, err := s.Append(context.Background(), Report{Period: Period{Quarter: "1Q", Week: 1}})
	require.Error(t, err)
	_, err = s.Append(context.Background(), Report{UserID: "U1"})
	require.Error(t, err)
}

func TestDeleteArchivesMatchingRows(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{pages: []notion.QueryResultPage{
		reportPage("p1", "U1", "1Q-03", nil, "a"),
		reportPage("p2", "U2", "1Q-03", nil, "b"),
		reportPage("p3", "U1", "1Q-04", nil, "c"),
	}}
	s := newTestStore(t, backend, nil)

	n, err := s.Delete(context.Background(), "userid", "U1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"p1", "p3"}, backend.archived)

	_, err = s.Delete(context.Background(), "nope", "x")
	require.Error(t, err)
}

func TestNewStoreRejectsIncompleteSchema(t *testing.T) {
	t.Parallel()

	schema := notion.Schema{Columns: []notion.Column{{Name: "userid", Type: notion.TypeTitle}}}
	_, err := NewStore(StoreOptions{Backend: &fakeBackend{}, DatabaseID: "db1", Schema: &schema})
	require.Error(t, err)

	_, err = NewStore(StoreOptions{Backend: &fakeBackend{}})
	require.Error(t, err)
}
