package notion

import (
	"strconv"
	"strings"
)

// PlainText flattens a property to the text a reader would see in the Notion UI.
func PlainText(p Property) string {
	switch v := p.(type) {
	case TitleProperty:
		return joinRichText(v.Title)
	case RichTextProperty:
		return joinRichText(v.RichText)
	case URLProperty:
		if v.URL == nil {
			return ""
		}
		return *v.URL
	case MultiSelectProperty:
		names := make([]string, 0, len(v.Options))
		for _, opt := range v.Options {
			names = append(names, opt.Name)
		}
		return strings.Join(names, ", ")
	case SelectProperty:
		if v.Option == nil {
			return ""
		}
		return v.Option.Name
	case NumberProperty:
		if v.Number == nil {
			return ""
		}
		return strconv.FormatFloat(*v.Number, 'f', -1, 64)
	case DateProperty:
		if v.Date == nil {
			return ""
		}
		if v.Date.End == nil || *v.Date.End == "" {
			return v.Date.Start
		}
		return v.Date.Start + "/" + *v.Date.End
	case PeopleProperty:
		names := make([]string, 0, len(v.People))
		for _, u := range v.People {
			if u.Name != "" {
				names = append(names, u.Name)
			} else {
				names = append(names, u.ID)
			}
		}
		return strings.Join(names, ", ")
	default:
		return ""
	}
}

func joinRichText(items []RichText) string {
	var b strings.Builder
	for _, rt := range items {
		if rt.PlainText != "" {
			b.WriteString(rt.PlainText)
			continue
		}
		b.WriteString(rt.Text.Content)
	}
	return b.String()
}

// OptionNames returns the option names of a multi-select property in order.
func OptionNames(p Property) []string {
	ms, ok := p.(MultiSelectProperty)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(ms.Options))
	for _, opt := range ms.Options {
		out = append(out, opt.Name)
	}
	return out
}
