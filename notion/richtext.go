package notion

const richTextTypeText = "text"

type Text struct {
	Content string
	Link    *string
}

type Annotations struct {
	Bold          bool
	Italic        bool
	Strikethrough bool
	Underline     bool
	Code          bool
	Color         Color
}

// DefaultAnnotations returns a fresh all-false value with the default color.
func DefaultAnnotations() Annotations {
	return Annotations{Color: ColorDefault}
}

// RichText is a styled text segment. Text.Content is authoritative; PlainText is display data.
type RichText struct {
	Type        string
	Text        Text
	Annotations Annotations
	PlainText   string
	Href        *string
}

func NewRichText(content string) RichText {
	return RichText{
		Type:        richTextTypeText,
		Text:        Text{Content: content},
		Annotations: DefaultAnnotations(),
		PlainText:   content,
	}
}

func (a Annotations) toMap() map[string]any {
	color := a.Color
	if color == "" {
		color = ColorDefault
	}
	return map[string]any{
		"bold":          a.Bold,
		"italic":        a.Italic,
		"strikethrough": a.Strikethrough,
		"underline":     a.Underline,
		"code":          a.Code,
		"color":         string(color),
	}
}

// DecodeRichText decodes one rich text element. Missing annotations fall back to DefaultAnnotations.
func DecodeRichText(raw map[string]any) (RichText, error) {
	return decodeRichText(raw, "")
}

func decodeRichText(v any, path string) (RichText, error) {
	m, err := asObject(v, path)
	if err != nil {
		return RichText{}, err
	}
	if err := checkTypeTag(m, richTextTypeText, path); err != nil {
		return RichText{}, err
	}
	textObj, err := requireObject(m, "text", path)
	if err != nil {
		return RichText{}, err
	}
	text, err := decodeText(textObj, joinPath(path, "text"))
	if err != nil {
		return RichText{}, err
	}
	ann := DefaultAnnotations()
	annObj, err := optionalObject(m, "annotations", path)
	if err != nil {
		return RichText{}, err
	}
	if annObj != nil {
		ann, err = decodeAnnotations(annObj, joinPath(path, "annotations"))
		if err != nil {
			return RichText{}, err
		}
	}
	plain, err := nullableString(m, "plain_text", path)
	if err != nil {
		return RichText{}, err
	}
	href, err := nullableString(m, "href", path)
	if err != nil {
		return RichText{}, err
	}
	out := RichText{
		Type:        richTextTypeText,
		Text:        text,
		Annotations: ann,
		PlainText:   text.Content,
		Href:        href,
	}
	if plain != nil {
		out.PlainText = *plain
	}
	return out, nil
}

func decodeText(m map[string]any, path string) (Text, error) {
	content, err := requireString(m, "content", path)
	if err != nil {
		return Text{}, err
	}
	out := Text{Content: content}
	switch link := m["link"].(type) {
	case nil:
	case string:
		out.Link = &link
	case map[string]any:
		url, err := requireString(link, "url", joinPath(path, "link"))
		if err != nil {
			return Text{}, err
		}
		out.Link = &url
	default:
		return Text{}, mismatch(joinPath(path, "link"), "expected object, string or null, got %s", describe(link))
	}
	return out, nil
}

func decodeAnnotations(m map[string]any, path string) (Annotations, error) {
	out := DefaultAnnotations()
	var err error
	if out.Bold, err = optionalBool(m, "bold", path); err != nil {
		return Annotations{}, err
	}
	if out.Italic, err = optionalBool(m, "italic", path); err != nil {
		return Annotations{}, err
	}
	if out.Strikethrough, err = optionalBool(m, "strikethrough", path); err != nil {
		return Annotations{}, err
	}
	if out.Underline, err = optionalBool(m, "underline", path); err != nil {
		return Annotations{}, err
	}
	if out.Code, err = optionalBool(m, "code", path); err != nil {
		return Annotations{}, err
	}
	color, err := optionalString(m, "color", path)
	if err != nil {
		return Annotations{}, err
	}
	if color != "" {
		c, err := ParseColor(color)
		if err != nil {
			return Annotations{}, withPathPrefix(err, joinPath(path, "color"))
		}
		out.Color = c
	}
	return out, nil
}

// richTextShape is the write shape of one text segment; absent fields carry Unset.
func richTextShape(content string, link *string, ann *Annotations) map[string]any {
	text := map[string]any{
		"content": content,
		"link":    Unset,
	}
	if link != nil {
		text["link"] = map[string]any{"url": *link}
	}
	out := map[string]any{
		"type":        richTextTypeText,
		"text":        text,
		"annotations": Unset,
	}
	if ann != nil {
		out["annotations"] = ann.toMap()
	}
	return out
}

// EncodeRichText builds {type, text:{content}, annotations}. A nil ann omits annotations entirely.
func EncodeRichText(content string, ann *Annotations) map[string]any {
	out, _ := StripUnset(richTextShape(content, nil, ann)).(map[string]any)
	return out
}

func decodeRichTextList(m map[string]any, key, path string) ([]RichText, error) {
	items, err := requireArray(m, key, path)
	if err != nil {
		return nil, err
	}
	out := make([]RichText, 0, len(items))
	for i, item := range items {
		rt, err := decodeRichText(item, indexPath(joinPath(path, key), i))
		if err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, nil
}
