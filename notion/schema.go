package notion

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Column declares the expected property type of one database column.
type Column struct {
	Name string       `yaml:"name"`
	Type PropertyType `yaml:"type"`
}

// Schema is the caller-side column to type mapping for one database.
type Schema struct {
	Columns []Column `yaml:"columns"`
}

func ParseSchema(data []byte) (Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("parse schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Schema{}, err
	}
	for i, col := range s.Columns {
		s.Columns[i].Name = strings.TrimSpace(col.Name)
		s.Columns[i].Type, _ = ParsePropertyType(string(col.Type))
	}
	return s, nil
}

func LoadSchema(path string) (Schema, error) {
	data, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		return Schema{}, err
	}
	return ParseSchema(data)
}

func (s Schema) Validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema has no columns")
	}
	seen := make(map[string]bool, len(s.Columns))
	for i, col := range s.Columns {
		name := strings.TrimSpace(col.Name)
		if name == "" {
			return fmt.Errorf("schema column %d: name is required", i)
		}
		if seen[name] {
			return fmt.Errorf("schema column %q: duplicate name", name)
		}
		seen[name] = true
		if _, err := ParsePropertyType(string(col.Type)); err != nil {
			return fmt.Errorf("schema column %q: %w", name, err)
		}
	}
	return nil
}

func (s Schema) Lookup(name string) (PropertyType, bool) {
	for _, col := range s.Columns {
		if col.Name == name {
			return col.Type, true
		}
	}
	return "", false
}

// TitleColumn returns the first title column, which Notion requires on create.
func (s Schema) TitleColumn() (string, bool) {
	for _, col := range s.Columns {
		if col.Type == TypeTitle {
			return col.Name, true
		}
	}
	return "", false
}

// Row is a page whose declared columns have been decoded.
type Row struct {
	Page       QueryResultPage
	Properties map[string]Property
}

// DecodeRow decodes every declared column of page. A missing column, or one whose
// own type differs from the declared type, is a schema mismatch.
func (s Schema) DecodeRow(page QueryResultPage) (Row, error) {
	out := Row{Page: page, Properties: make(map[string]Property, len(s.Columns))}
	for _, col := range s.Columns {
		path := joinPath("properties", col.Name)
		raw, ok := page.Properties[col.Name]
		if !ok {
			return Row{}, mismatch(path, "missing column")
		}
		prop, err := decodeAs(raw, col.Type, path)
		if err != nil {
			return Row{}, err
		}
		out.Properties[col.Name] = prop
	}
	return out, nil
}

// Text flattens a column to display text; unknown columns yield "".
func (r Row) Text(column string) string {
	p, ok := r.Properties[column]
	if !ok {
		return ""
	}
	return PlainText(p)
}

// BuildInputs turns column text values into inputs using the declared types.
func (s Schema) BuildInputs(values map[string]string) (map[string]PropertyInput, error) {
	out := make(map[string]PropertyInput, len(values))
	for name, value := range values {
		t, ok := s.Lookup(name)
		if !ok {
			return nil, mismatch(joinPath("properties", name), "column not declared in schema")
		}
		in, err := NewPropertyInput(t, value)
		if err != nil {
			return nil, withPathPrefix(err, joinPath("properties", name))
		}
		out[name] = in
	}
	return out, nil
}
