package notion

import (
	"encoding/json"
	"time"
)

type ParentType string

const (
	ParentDatabase ParentType = "database_id"
	ParentPage     ParentType = "page_id"
)

// Parent is either database-scoped or page-scoped; exactly one id is set.
type Parent struct {
	Type       ParentType
	DatabaseID string
	PageID     string
}

func DatabaseParent(id string) Parent {
	return Parent{Type: ParentDatabase, DatabaseID: id}
}

func PageParent(id string) Parent {
	return Parent{Type: ParentPage, PageID: id}
}

func (p Parent) validate(path string) error {
	switch p.Type {
	case ParentDatabase:
		if p.DatabaseID == "" || p.PageID != "" {
			return mismatch(path, "database parent requires only database_id")
		}
	case ParentPage:
		if p.PageID == "" || p.DatabaseID != "" {
			return mismatch(path, "page parent requires only page_id")
		}
	default:
		return mismatch(joinPath(path, "type"), "unknown parent type %q", p.Type)
	}
	return nil
}

func (p Parent) toMap() map[string]any {
	out := map[string]any{
		"type":        string(p.Type),
		"database_id": Unset,
		"page_id":     Unset,
	}
	if p.DatabaseID != "" {
		out["database_id"] = p.DatabaseID
	}
	if p.PageID != "" {
		out["page_id"] = p.PageID
	}
	return out
}

func decodeParent(m map[string]any, path string) (Parent, error) {
	typ, err := requireString(m, "type", path)
	if err != nil {
		return Parent{}, err
	}
	switch ParentType(typ) {
	case ParentDatabase:
		id, err := requireString(m, "database_id", path)
		if err != nil {
			return Parent{}, err
		}
		return DatabaseParent(id), nil
	case ParentPage:
		id, err := requireString(m, "page_id", path)
		if err != nil {
			return Parent{}, err
		}
		return PageParent(id), nil
	default:
		return Parent{}, mismatch(joinPath(path, "type"), "unknown parent type %q", typ)
	}
}

// QueryResultPage is one database row. Properties stay raw; callers decode each
// column with DecodeProperty, DecodeAs or Schema.DecodeRow.
type QueryResultPage struct {
	Object         string
	ID             string
	CreatedTime    time.Time
	LastEditedTime time.Time
	CreatedBy      *User
	LastEditedBy   *User
	Cover          map[string]any
	Icon           *Icon
	Parent         Parent
	Archived       bool
	InTrash        bool
	Properties     map[string]map[string]any
	URL            string
	PublicURL      *string
}

type QueryResponse struct {
	Object     string
	Results    []QueryResultPage
	NextCursor *string
	HasMore    bool
	Type       string
}

func DecodeQueryResultPage(raw map[string]any) (QueryResultPage, error) {
	return decodeQueryResultPage(raw, "")
}

func decodeQueryResultPage(v any, path string) (QueryResultPage, error) {
	m, err := asObject(v, path)
	if err != nil {
		return QueryResultPage{}, err
	}
	var out QueryResultPage
	if out.Object, err = optionalString(m, "object", path); err != nil {
		return QueryResultPage{}, err
	}
	if out.ID, err = requireString(m, "id", path); err != nil {
		return QueryResultPage{}, err
	}
	if out.CreatedTime, err = requireTime(m, "created_time", path); err != nil {
		return QueryResultPage{}, err
	}
	if out.LastEditedTime, err = requireTime(m, "last_edited_time", path); err != nil {
		return QueryResultPage{}, err
	}
	if out.CreatedBy, err = decodeNullableUser(m, "created_by", path); err != nil {
		return QueryResultPage{}, err
	}
	if out.LastEditedBy, err = decodeNullableUser(m, "last_edited_by", path); err != nil {
		return QueryResultPage{}, err
	}
	if out.Cover, err = optionalObject(m, "cover", path); err != nil {
		return QueryResultPage{}, err
	}
	iconObj, err := optionalObject(m, "icon", path)
	if err != nil {
		return QueryResultPage{}, err
	}
	if iconObj != nil {
		if out.Icon, err = decodeIcon(iconObj, joinPath(path, "icon")); err != nil {
			return QueryResultPage{}, err
		}
	}
	parentObj, err := requireObject(m, "parent", path)
	if err != nil {
		return QueryResultPage{}, err
	}
	if out.Parent, err = decodeParent(parentObj, joinPath(path, "parent")); err != nil {
		return QueryResultPage{}, err
	}
	if out.Archived, err = optionalBool(m, "archived", path); err != nil {
		return QueryResultPage{}, err
	}
	if out.InTrash, err = optionalBool(m, "in_trash", path); err != nil {
		return QueryResultPage{}, err
	}
	props, err := requireObject(m, "properties", path)
	if err != nil {
		return QueryResultPage{}, err
	}
	out.Properties = make(map[string]map[string]any, len(props))
	for name, rawProp := range props {
		obj, err := asObject(rawProp, joinPath(joinPath(path, "properties"), name))
		if err != nil {
			return QueryResultPage{}, err
		}
		out.Properties[name] = obj
	}
	if out.URL, err = optionalString(m, "url", path); err != nil {
		return QueryResultPage{}, err
	}
	if out.PublicURL, err = nullableString(m, "public_url", path); err != nil {
		return QueryResultPage{}, err
	}
	return out, nil
}

func requireTime(m map[string]any, key, path string) (time.Time, error) {
	raw, err := requireString(m, key, path)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, mismatch(joinPath(path, key), "invalid timestamp %q", raw)
	}
	return t.UTC(), nil
}

// DecodeQueryResponse decodes a single page of query results.
// has_more without next_cursor is a schema mismatch.
func DecodeQueryResponse(raw map[string]any) (QueryResponse, error) {
	if raw == nil {
		return QueryResponse{}, mismatch("", "expected object, got null")
	}
	var (
		out QueryResponse
		err error
	)
	if out.Object, err = optionalString(raw, "object", ""); err != nil {
		return QueryResponse{}, err
	}
	if out.Type, err = optionalString(raw, "type", ""); err != nil {
		return QueryResponse{}, err
	}
	if out.HasMore, err = optionalBool(raw, "has_more", ""); err != nil {
		return QueryResponse{}, err
	}
	if out.NextCursor, err = nullableString(raw, "next_cursor", ""); err != nil {
		return QueryResponse{}, err
	}
	if out.HasMore && (out.NextCursor == nil || *out.NextCursor == "") {
		return QueryResponse{}, mismatch("next_cursor", "has_more is true but next_cursor is null")
	}
	results, err := requireArray(raw, "results", "")
	if err != nil {
		return QueryResponse{}, err
	}
	out.Results = make([]QueryResultPage, 0, len(results))
	for i, item := range results {
		page, err := decodeQueryResultPage(item, indexPath("results", i))
		if err != nil {
			return QueryResponse{}, err
		}
		out.Results = append(out.Results, page)
	}
	return out, nil
}

// ParseQueryResponse decodes a raw query response body.
func ParseQueryResponse(data []byte) (QueryResponse, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return QueryResponse{}, mismatch("", "invalid json: %v", err)
	}
	return DecodeQueryResponse(raw)
}

// ParsePage decodes a single page object, as returned by create-page.
func ParsePage(data []byte) (QueryResultPage, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return QueryResultPage{}, mismatch("", "invalid json: %v", err)
	}
	return DecodeQueryResultPage(raw)
}
