package notion

import "strings"

type PropertyType string

const (
	TypeTitle       PropertyType = "title"
	TypeRichText    PropertyType = "rich_text"
	TypeURL         PropertyType = "url"
	TypeMultiSelect PropertyType = "multi_select"
	TypeSelect      PropertyType = "select"
	TypeNumber      PropertyType = "number"
	TypeDate        PropertyType = "date"
	TypePeople      PropertyType = "people"
)

var propertyTypes = []PropertyType{
	TypeTitle, TypeRichText, TypeURL, TypeMultiSelect, TypeSelect, TypeNumber, TypeDate, TypePeople,
}

// PropertyTypes returns the recognized discriminators.
func PropertyTypes() []PropertyType {
	return append([]PropertyType(nil), propertyTypes...)
}

func ParsePropertyType(raw string) (PropertyType, error) {
	t := PropertyType(strings.TrimSpace(raw))
	for _, known := range propertyTypes {
		if t == known {
			return t, nil
		}
	}
	return "", &UnsupportedPropertyTypeError{Type: raw}
}

// Property is the closed set of decoded column values.
type Property interface {
	Type() PropertyType
	PropertyID() string
	isProperty()
}

type TitleProperty struct {
	ID    string
	Title []RichText
}

type RichTextProperty struct {
	ID       string
	RichText []RichText
}

type URLProperty struct {
	ID  string
	URL *string
}

type SelectOption struct {
	ID    string
	Name  string
	Color Color
}

type MultiSelectProperty struct {
	ID      string
	Options []SelectOption
}

type SelectProperty struct {
	ID     string
	Option *SelectOption
}

type NumberProperty struct {
	ID     string
	Number *float64
}

type DateValue struct {
	Start    string
	End      *string
	TimeZone *string
}

type DateProperty struct {
	ID   string
	Date *DateValue
}

type PeopleProperty struct {
	ID     string
	People []User
}

func (TitleProperty) Type() PropertyType       { return TypeTitle }
func (RichTextProperty) Type() PropertyType    { return TypeRichText }
func (URLProperty) Type() PropertyType         { return TypeURL }
func (MultiSelectProperty) Type() PropertyType { return TypeMultiSelect }
func (SelectProperty) Type() PropertyType      { return TypeSelect }
func (NumberProperty) Type() PropertyType      { return TypeNumber }
func (DateProperty) Type() PropertyType        { return TypeDate }
func (PeopleProperty) Type() PropertyType      { return TypePeople }

func (p TitleProperty) PropertyID() string       { return p.ID }
func (p RichTextProperty) PropertyID() string    { return p.ID }
func (p URLProperty) PropertyID() string         { return p.ID }
func (p MultiSelectProperty) PropertyID() string { return p.ID }
func (p SelectProperty) PropertyID() string      { return p.ID }
func (p NumberProperty) PropertyID() string      { return p.ID }
func (p DateProperty) PropertyID() string        { return p.ID }
func (p PeopleProperty) PropertyID() string      { return p.ID }

func (TitleProperty) isProperty()       {}
func (RichTextProperty) isProperty()    {}
func (URLProperty) isProperty()         {}
func (MultiSelectProperty) isProperty() {}
func (SelectProperty) isProperty()      {}
func (NumberProperty) isProperty()      {}
func (DateProperty) isProperty()        {}
func (PeopleProperty) isProperty()      {}

func DecodeTitle(raw map[string]any) (TitleProperty, error) {
	return decodeTitle(raw, "")
}

func DecodeRichTextProperty(raw map[string]any) (RichTextProperty, error) {
	return decodeRichTextProperty(raw, "")
}

func DecodeURL(raw map[string]any) (URLProperty, error) {
	return decodeURL(raw, "")
}

func DecodeMultiSelect(raw map[string]any) (MultiSelectProperty, error) {
	return decodeMultiSelect(raw, "")
}

func DecodeSelect(raw map[string]any) (SelectProperty, error) {
	return decodeSelect(raw, "")
}

func DecodeNumber(raw map[string]any) (NumberProperty, error) {
	return decodeNumber(raw, "")
}

func DecodeDate(raw map[string]any) (DateProperty, error) {
	return decodeDate(raw, "")
}

func DecodePeople(raw map[string]any) (PeopleProperty, error) {
	return decodePeople(raw, "")
}

func propertyHeader(m map[string]any, t PropertyType, path string) (string, error) {
	if m == nil {
		return "", mismatch(path, "expected object, got null")
	}
	if err := checkTypeTag(m, string(t), path); err != nil {
		return "", err
	}
	return optionalString(m, "id", path)
}

func decodeTitle(m map[string]any, path string) (TitleProperty, error) {
	id, err := propertyHeader(m, TypeTitle, path)
	if err != nil {
		return TitleProperty{}, err
	}
	items, err := decodeRichTextList(m, "title", path)
	if err != nil {
		return TitleProperty{}, err
	}
	return TitleProperty{ID: id, Title: items}, nil
}

func decodeRichTextProperty(m map[string]any, path string) (RichTextProperty, error) {
	id, err := propertyHeader(m, TypeRichText, path)
	if err != nil {
		return RichTextProperty{}, err
	}
	items, err := decodeRichTextList(m, "rich_text", path)
	if err != nil {
		return RichTextProperty{}, err
	}
	return RichTextProperty{ID: id, RichText: items}, nil
}

func decodeURL(m map[string]any, path string) (URLProperty, error) {
	id, err := propertyHeader(m, TypeURL, path)
	if err != nil {
		return URLProperty{}, err
	}
	if _, ok := m["url"]; !ok {
		return URLProperty{}, mismatch(joinPath(path, "url"), "missing required key")
	}
	url, err := nullableString(m, "url", path)
	if err != nil {
		return URLProperty{}, err
	}
	return URLProperty{ID: id, URL: url}, nil
}

func decodeSelectOption(v any, path string) (SelectOption, error) {
	m, err := asObject(v, path)
	if err != nil {
		return SelectOption{}, err
	}
	name, err := requireString(m, "name", path)
	if err != nil {
		return SelectOption{}, err
	}
	id, err := optionalString(m, "id", path)
	if err != nil {
		return SelectOption{}, err
	}
	out := SelectOption{ID: id, Name: name, Color: ColorDefault}
	color, err := optionalString(m, "color", path)
	if err != nil {
		return SelectOption{}, err
	}
	if color != "" {
		c, err := ParseColor(color)
		if err != nil {
			return SelectOption{}, withPathPrefix(err, joinPath(path, "color"))
		}
		out.Color = c
	}
	return out, nil
}

func decodeMultiSelect(m map[string]any, path string) (MultiSelectProperty, error) {
	id, err := propertyHeader(m, TypeMultiSelect, path)
	if err != nil {
		return MultiSelectProperty{}, err
	}
	items, err := requireArray(m, "multi_select", path)
	if err != nil {
		return MultiSelectProperty{}, err
	}
	out := MultiSelectProperty{ID: id, Options: make([]SelectOption, 0, len(items))}
	for i, item := range items {
		opt, err := decodeSelectOption(item, indexPath(joinPath(path, "multi_select"), i))
		if err != nil {
			return MultiSelectProperty{}, err
		}
		out.Options = append(out.Options, opt)
	}
	return out, nil
}

func decodeSelect(m map[string]any, path string) (SelectProperty, error) {
	id, err := propertyHeader(m, TypeSelect, path)
	if err != nil {
		return SelectProperty{}, err
	}
	v, ok := m["select"]
	if !ok {
		return SelectProperty{}, mismatch(joinPath(path, "select"), "missing required key")
	}
	out := SelectProperty{ID: id}
	if v == nil {
		return out, nil
	}
	opt, err := decodeSelectOption(v, joinPath(path, "select"))
	if err != nil {
		return SelectProperty{}, err
	}
	out.Option = &opt
	return out, nil
}

func decodeNumber(m map[string]any, path string) (NumberProperty, error) {
	id, err := propertyHeader(m, TypeNumber, path)
	if err != nil {
		return NumberProperty{}, err
	}
	v, ok := m["number"]
	if !ok {
		return NumberProperty{}, mismatch(joinPath(path, "number"), "missing required key")
	}
	out := NumberProperty{ID: id}
	if v == nil {
		return out, nil
	}
	n, ok := toFloat(v)
	if !ok {
		return NumberProperty{}, mismatch(joinPath(path, "number"), "expected number, got %s", describe(v))
	}
	out.Number = &n
	return out, nil
}

func decodeDate(m map[string]any, path string) (DateProperty, error) {
	id, err := propertyHeader(m, TypeDate, path)
	if err != nil {
		return DateProperty{}, err
	}
	if _, ok := m["date"]; !ok {
		return DateProperty{}, mismatch(joinPath(path, "date"), "missing required key")
	}
	obj, err := optionalObject(m, "date", path)
	if err != nil {
		return DateProperty{}, err
	}
	out := DateProperty{ID: id}
	if obj == nil {
		return out, nil
	}
	datePath := joinPath(path, "date")
	start, err := requireString(obj, "start", datePath)
	if err != nil {
		return DateProperty{}, err
	}
	end, err := nullableString(obj, "end", datePath)
	if err != nil {
		return DateProperty{}, err
	}
	tz, err := nullableString(obj, "time_zone", datePath)
	if err != nil {
		return DateProperty{}, err
	}
	out.Date = &DateValue{Start: start, End: end, TimeZone: tz}
	return out, nil
}

func decodePeople(m map[string]any, path string) (PeopleProperty, error) {
	id, err := propertyHeader(m, TypePeople, path)
	if err != nil {
		return PeopleProperty{}, err
	}
	items, err := requireArray(m, "people", path)
	if err != nil {
		return PeopleProperty{}, err
	}
	out := PeopleProperty{ID: id, People: make([]User, 0, len(items))}
	for i, item := range items {
		u, err := decodeUser(item, indexPath(joinPath(path, "people"), i))
		if err != nil {
			return PeopleProperty{}, err
		}
		out.People = append(out.People, u)
	}
	return out, nil
}
