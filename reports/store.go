package reports

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"github.com/quailyquaily/notionbolt/internal/notionclient"
	"github.com/quailyquaily/notionbolt/notion"
)

const defaultDedupeWindow = 10 * time.Minute

// Backend is the subset of the Notion client the store needs.
type Backend interface {
	QueryAll(ctx context.Context, databaseID string, opts notionclient.QueryOptions) ([]notion.QueryResultPage, error)
	CreatePage(ctx context.Context, payload map[string]any) (notion.QueryResultPage, error)
	ArchivePage(ctx context.Context, pageID string) error
}

type StoreOptions struct {
	Backend      Backend
	DatabaseID   string
	Columns      Columns
	Schema       *notion.Schema
	SkipTags     []string
	DedupeWindow time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
}

type Store struct {
	backend    Backend
	databaseID string
	cols       Columns
	schema     notion.Schema
	skipTags   []string
	window     time.Duration
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	recent   map[string]appendRecord
	inflight map[string]chan struct{}
}

type appendRecord struct {
	pageID string
	at     time.Time
}

func NewStore(opts StoreOptions) (*Store, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("reports backend is required")
	}
	dbID := strings.TrimSpace(opts.DatabaseID)
	if dbID == "" {
		return nil, fmt.Errorf("notion database id is required")
	}
	cols := opts.Columns.withDefaults()
	schema := cols.Schema()
	if opts.Schema != nil {
		schema = *opts.Schema
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	for _, name := range []string{cols.User, cols.Period, cols.Tags, cols.Content} {
		if _, ok := schema.Lookup(name); !ok {
			return nil, fmt.Errorf("schema is missing report column %q", name)
		}
	}
	skip := opts.SkipTags
	if skip == nil {
		skip = []string{DefaultSkipTag}
	}
	window := opts.DedupeWindow
	if window <= 0 {
		window = defaultDedupeWindow
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		backend:    opts.Backend,
		databaseID: dbID,
		cols:       cols,
		schema:     schema,
		skipTags:   append([]string(nil), skip...),
		window:     window,
		logger:     logger,
		now:        now,
		recent:     make(map[string]appendRecord),
		inflight:   make(map[string]chan struct{}),
	}, nil
}

func (s *Store) Columns() Columns {
	return s.cols
}

func (s *Store) SkipTags() []string {
	return append([]string(nil), s.skipTags...)
}

// Filter selects rows by period. An empty filter matches every row.
type Filter struct {
	Periods []Period
}

func (f Filter) matches(p Period) bool {
	if len(f.Periods) == 0 {
		return true
	}
	for _, want := range f.Periods {
		if want == p {
			return true
		}
	}
	return false
}

// notionFilter builds the server-side query filter for a period column of type typ.
// It returns nil for column types Notion cannot compare as text; matches still applies.
func (f Filter) notionFilter(column string, typ notion.PropertyType) map[string]any {
	if len(f.Periods) == 0 {
		return nil
	}
	switch typ {
	case notion.TypeTitle, notion.TypeRichText, notion.TypeSelect:
	default:
		return nil
	}
	conds := make([]any, 0, len(f.Periods))
	for _, p := range f.Periods {
		conds = append(conds, map[string]any{
			"property":  column,
			string(typ): map[string]any{"equals": p.String()},
		})
	}
	if len(conds) == 1 {
		return conds[0].(map[string]any)
	}
	return map[string]any{"or": conds}
}

// Fetch returns the reports matching f. Rows whose period cell is empty or
// malformed are skipped; a column whose type disagrees with the schema fails the call.
func (s *Store) Fetch(ctx context.Context, f Filter) ([]Report, error) {
	periodType, _ := s.schema.Lookup(s.cols.Period)
	pages, err := s.backend.QueryAll(ctx, s.databaseID, notionclient.QueryOptions{
		Filter: f.notionFilter(s.cols.Period, periodType),
	})
	if err != nil {
		return nil, err
	}
	out := make([]Report, 0, len(pages))
	for _, page := range pages {
		row, err := s.schema.DecodeRow(page)
		if err != nil {
			return nil, fmt.Errorf("page %s: %w", page.ID, err)
		}
		r, err := reportFromRow(row, s.cols)
		if err != nil {
			s.logger.Warn("reports_row_skipped", "page_id", page.ID, "error", err.Error())
			continue
		}
		if !f.matches(r.Period) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// FetchPrepared is Fetch followed by Preprocess with the store's skip tags.
func (s *Store) FetchPrepared(ctx context.Context, f Filter) ([]Report, error) {
	items, err := s.Fetch(ctx, f)
	if err != nil {
		return nil, err
	}
	return Preprocess(items, s.skipTags), nil
}

// Append creates a report page. Identical payloads inside the dedupe window
// return the page created first instead of creating another.
func (s *Store) Append(ctx context.Context, r Report) (string, error) {
	if strings.TrimSpace(r.UserID) == "" {
		return "", fmt.Errorf("report user id is required")
	}
	if strings.TrimSpace(r.Period.Quarter) == "" {
		return "", fmt.Errorf("report period is required")
	}
	inputs, err := s.schema.BuildInputs(map[string]string{
		s.cols.User:    strings.TrimSpace(r.UserID),
		s.cols.Period:  r.Period.String(),
		s.cols.Tags:    strings.Join(r.Tags, ","),
		s.cols.Content: r.Content,
	})
	if err != nil {
		return "", err
	}
	if t, _ := s.schema.Lookup(s.cols.Tags); t == notion.TypeMultiSelect {
		inputs[s.cols.Tags] = notion.MultiSelectInput{Names: cleanTags(r.Tags)}
	}
	payload, err := notion.BuildCreatePagePayload(notion.DatabaseParent(s.databaseID), inputs)
	if err != nil {
		return "", err
	}
	key, err := payloadKey(payload)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	for {
		s.pruneLocked(s.now())
		if rec, ok := s.recent[key]; ok {
			s.mu.Unlock()
			s.logger.Info("reports_append_deduped", "page_id", rec.pageID, "period", r.Period.String())
			return rec.pageID, nil
		}
		wait, busy := s.inflight[key]
		if !busy {
			break
		}
		// an identical append is creating the page; its result decides ours
		s.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		s.mu.Lock()
	}
	done := make(chan struct{})
	s.inflight[key] = done
	s.mu.Unlock()

	page, err := s.backend.CreatePage(ctx, payload)

	s.mu.Lock()
	delete(s.inflight, key)
	if err == nil {
		s.recent[key] = appendRecord{pageID: page.ID, at: s.now()}
	}
	close(done)
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	s.logger.Info("reports_append", "page_id", page.ID, "user_id", r.UserID, "period", r.Period.String())
	return page.ID, nil
}

func (s *Store) pruneLocked(now time.Time) {
	for k, rec := range s.recent {
		if now.Sub(rec.at) > s.window {
			delete(s.recent, k)
		}
	}
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func payloadKey(payload map[string]any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	canon, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// Delete archives every row whose column text equals value and returns how many were archived.
func (s *Store) Delete(ctx context.Context, column, value string) (int, error) {
	column = strings.TrimSpace(column)
	if column == "" {
		return 0, fmt.Errorf("column is required")
	}
	pages, err := s.backend.QueryAll(ctx, s.databaseID, notionclient.QueryOptions{})
	if err != nil {
		return 0, err
	}
	value = strings.TrimSpace(value)
	archived := 0
	for _, page := range pages {
		raw, ok := page.Properties[column]
		if !ok {
			return archived, fmt.Errorf("column %q not found on page %s", column, page.ID)
		}
		prop, err := notion.DecodeProperty(raw)
		if err != nil {
			return archived, fmt.Errorf("page %s: %w", page.ID, err)
		}
		if strings.TrimSpace(notion.PlainText(prop)) != value {
			continue
		}
		if err := s.backend.ArchivePage(ctx, page.ID); err != nil {
			return archived, err
		}
		archived++
		s.logger.Info("reports_archived", "page_id", page.ID, "column", column)
	}
	return archived, nil
}
