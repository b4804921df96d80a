package notion

import (
	"strconv"
	"strings"
)

type unset struct{}

// Unset marks a field that was not provided. It is distinct from false, 0 and "".
// StripUnset removes map entries holding it before a payload is sent.
var Unset = unset{}

func isUnset(v any) bool {
	_, ok := v.(unset)
	return ok
}

// StripUnset returns a copy of v without any map entry whose value is Unset,
// recursing into nested maps and slices. Applying it twice equals applying it once.
func StripUnset(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			if isUnset(item) {
				continue
			}
			out[k] = StripUnset(item)
		}
		return out
	case []map[string]any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			out = append(out, StripUnset(item))
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			if isUnset(item) {
				continue
			}
			out = append(out, StripUnset(item))
		}
		return out
	default:
		return v
	}
}

// PropertyInput is the write-side counterpart of Property. Encode returns
// {<type>: <write shape>}; the shape may still hold Unset markers.
type PropertyInput interface {
	Type() PropertyType
	Encode() map[string]any
	isPropertyInput()
}

type TitleInput struct {
	Content     string
	Link        *string
	Annotations *Annotations
}

type RichTextInput struct {
	Content     string
	Link        *string
	Annotations *Annotations
}

type URLInput struct {
	URL string
}

// MultiSelectInput writes options by name only.
type MultiSelectInput struct {
	Names []string
}

type SelectInput struct {
	Name string
}

type NumberInput struct {
	Number float64
}

// DateInput accepts "2024/04/01" style dates and writes them as "2024-04-01".
type DateInput struct {
	Start string
	End   *string
}

type PeopleInput struct {
	UserIDs []string
}

func (TitleInput) Type() PropertyType       { return TypeTitle }
func (RichTextInput) Type() PropertyType    { return TypeRichText }
func (URLInput) Type() PropertyType         { return TypeURL }
func (MultiSelectInput) Type() PropertyType { return TypeMultiSelect }
func (SelectInput) Type() PropertyType      { return TypeSelect }
func (NumberInput) Type() PropertyType      { return TypeNumber }
func (DateInput) Type() PropertyType        { return TypeDate }
func (PeopleInput) Type() PropertyType      { return TypePeople }

func (TitleInput) isPropertyInput()       {}
func (RichTextInput) isPropertyInput()    {}
func (URLInput) isPropertyInput()         {}
func (MultiSelectInput) isPropertyInput() {}
func (SelectInput) isPropertyInput()      {}
func (NumberInput) isPropertyInput()      {}
func (DateInput) isPropertyInput()        {}
func (PeopleInput) isPropertyInput()      {}

func (in TitleInput) Encode() map[string]any {
	return map[string]any{
		"title": []any{richTextShape(in.Content, in.Link, in.Annotations)},
	}
}

func (in RichTextInput) Encode() map[string]any {
	return map[string]any{
		"rich_text": []any{richTextShape(in.Content, in.Link, in.Annotations)},
	}
}

func (in URLInput) Encode() map[string]any {
	return map[string]any{"url": in.URL}
}

func (in MultiSelectInput) Encode() map[string]any {
	opts := make([]any, 0, len(in.Names))
	for _, name := range in.Names {
		opts = append(opts, map[string]any{"name": name})
	}
	return map[string]any{"multi_select": opts}
}

func (in SelectInput) Encode() map[string]any {
	return map[string]any{"select": map[string]any{"name": in.Name}}
}

func (in NumberInput) Encode() map[string]any {
	return map[string]any{"number": in.Number}
}

func (in DateInput) Encode() map[string]any {
	date := map[string]any{
		"start": normalizeDate(in.Start),
		"end":   Unset,
	}
	if in.End != nil {
		date["end"] = normalizeDate(*in.End)
	}
	return map[string]any{"date": date}
}

func (in PeopleInput) Encode() map[string]any {
	people := make([]any, 0, len(in.UserIDs))
	for _, id := range in.UserIDs {
		people = append(people, map[string]any{"object": "user", "id": id})
	}
	return map[string]any{"people": people}
}

func normalizeDate(raw string) string {
	return strings.ReplaceAll(strings.TrimSpace(raw), "/", "-")
}

// NewPropertyInput builds an input from a single form value. Multi-select and
// people values are comma separated.
func NewPropertyInput(t PropertyType, content string) (PropertyInput, error) {
	switch t {
	case TypeTitle:
		return TitleInput{Content: content}, nil
	case TypeRichText:
		return RichTextInput{Content: content}, nil
	case TypeURL:
		return URLInput{URL: strings.TrimSpace(content)}, nil
	case TypeMultiSelect:
		return MultiSelectInput{Names: splitList(content)}, nil
	case TypeSelect:
		return SelectInput{Name: strings.TrimSpace(content)}, nil
	case TypeNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(content), 64)
		if err != nil {
			return nil, mismatch("", "invalid number %q", content)
		}
		return NumberInput{Number: n}, nil
	case TypeDate:
		return DateInput{Start: content}, nil
	case TypePeople:
		return PeopleInput{UserIDs: splitList(content)}, nil
	default:
		return nil, &UnsupportedPropertyTypeError{Type: string(t)}
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// BuildCreatePagePayload returns {parent, properties} ready for the create-page call.
func BuildCreatePagePayload(parent Parent, properties map[string]PropertyInput) (map[string]any, error) {
	if err := parent.validate("parent"); err != nil {
		return nil, err
	}
	props := make(map[string]any, len(properties))
	for name, in := range properties {
		if strings.TrimSpace(name) == "" {
			return nil, mismatch("properties", "empty column name")
		}
		if in == nil {
			return nil, mismatch(joinPath("properties", name), "nil property input")
		}
		props[name] = in.Encode()
	}
	payload := map[string]any{
		"parent":     parent.toMap(),
		"properties": props,
	}
	out, _ := StripUnset(payload).(map[string]any)
	return out, nil
}
