package notionclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/quailyquaily/notionbolt/notion"
)

const maxPageSize = 100

type QueryOptions struct {
	StartCursor string
	PageSize    int
	Filter      map[string]any
	Sorts       []map[string]any
}

func (o QueryOptions) body() map[string]any {
	size := o.PageSize
	if size <= 0 || size > maxPageSize {
		size = maxPageSize
	}
	out := map[string]any{"page_size": size}
	if cursor := strings.TrimSpace(o.StartCursor); cursor != "" {
		out["start_cursor"] = cursor
	}
	if len(o.Filter) > 0 {
		out["filter"] = o.Filter
	}
	if len(o.Sorts) > 0 {
		out["sorts"] = o.Sorts
	}
	return out
}

// QueryDatabase fetches one page of rows.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, opts QueryOptions) (notion.QueryResponse, error) {
	id, err := escapeID(databaseID)
	if err != nil {
		return notion.QueryResponse{}, err
	}
	body, err := c.do(ctx, "query_database", http.MethodPost, "/databases/"+id+"/query", opts.body())
	if err != nil {
		return notion.QueryResponse{}, err
	}
	return notion.ParseQueryResponse(body)
}

// QueryAll follows next_cursor until the database is exhausted.
func (c *Client) QueryAll(ctx context.Context, databaseID string, opts QueryOptions) ([]notion.QueryResultPage, error) {
	var out []notion.QueryResultPage
	for {
		resp, err := c.QueryDatabase(ctx, databaseID, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, resp.Results...)
		if !resp.HasMore {
			return out, nil
		}
		if resp.NextCursor == nil || *resp.NextCursor == opts.StartCursor {
			return nil, fmt.Errorf("notion query: cursor did not advance")
		}
		opts.StartCursor = *resp.NextCursor
	}
}

// CreatePage posts a payload built by notion.BuildCreatePagePayload.
func (c *Client) CreatePage(ctx context.Context, payload map[string]any) (notion.QueryResultPage, error) {
	if len(payload) == 0 {
		return notion.QueryResultPage{}, fmt.Errorf("create page payload is required")
	}
	body, err := c.do(ctx, "create_page", http.MethodPost, "/pages", payload)
	if err != nil {
		return notion.QueryResultPage{}, err
	}
	return notion.ParsePage(body)
}

// ArchivePage moves a page to the trash.
func (c *Client) ArchivePage(ctx context.Context, pageID string) error {
	id, err := escapeID(pageID)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, "archive_page", http.MethodPatch, "/pages/"+id, map[string]any{"archived": true})
	return err
}

type Block struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	HasChildren bool           `json:"has_children"`
	Content     map[string]any `json:"-"`
}

// Text returns the plain text of a block that carries rich_text, such as headings and paragraphs.
// Every segment kind counts (text, mention, equation): plain_text is read, falling back to text.content.
func (b Block) Text() (string, bool) {
	segments, ok := b.Content["rich_text"].([]any)
	if !ok {
		return "", false
	}
	var sb strings.Builder
	for _, raw := range segments {
		seg, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if plain, ok := seg["plain_text"].(string); ok {
			sb.WriteString(plain)
			continue
		}
		if text, ok := seg["text"].(map[string]any); ok {
			if content, ok := text["content"].(string); ok {
				sb.WriteString(content)
			}
		}
	}
	return sb.String(), true
}

type BlockList struct {
	Blocks     []Block
	NextCursor string
	HasMore    bool
}

type blockListBody struct {
	Results    []json.RawMessage `json:"results"`
	NextCursor *string           `json:"next_cursor"`
	HasMore    bool              `json:"has_more"`
}

func (c *Client) ListBlockChildren(ctx context.Context, blockID, cursor string) (BlockList, error) {
	id, err := escapeID(blockID)
	if err != nil {
		return BlockList{}, err
	}
	q := url.Values{}
	q.Set("page_size", strconv.Itoa(maxPageSize))
	if cursor = strings.TrimSpace(cursor); cursor != "" {
		q.Set("start_cursor", cursor)
	}
	body, err := c.do(ctx, "list_block_children", http.MethodGet, "/blocks/"+id+"/children?"+q.Encode(), nil)
	if err != nil {
		return BlockList{}, err
	}
	var raw blockListBody
	if err := json.Unmarshal(body, &raw); err != nil {
		return BlockList{}, fmt.Errorf("decode block children: %w", err)
	}
	out := BlockList{HasMore: raw.HasMore, Blocks: make([]Block, 0, len(raw.Results))}
	if raw.NextCursor != nil {
		out.NextCursor = *raw.NextCursor
	}
	for _, item := range raw.Results {
		var b Block
		if err := json.Unmarshal(item, &b); err != nil {
			return BlockList{}, fmt.Errorf("decode block: %w", err)
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			return BlockList{}, fmt.Errorf("decode block: %w", err)
		}
		if content, ok := fields[b.Type]; ok {
			_ = json.Unmarshal(content, &b.Content)
		}
		out.Blocks = append(out.Blocks, b)
	}
	return out, nil
}

// ListAllBlockChildren follows next_cursor for a block's children.
func (c *Client) ListAllBlockChildren(ctx context.Context, blockID string) ([]Block, error) {
	var (
		out    []Block
		cursor string
	)
	for {
		list, err := c.ListBlockChildren(ctx, blockID, cursor)
		if err != nil {
			return nil, err
		}
		out = append(out, list.Blocks...)
		if !list.HasMore || list.NextCursor == "" || list.NextCursor == cursor {
			return out, nil
		}
		cursor = list.NextCursor
	}
}
