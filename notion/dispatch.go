package notion

type propertyDecoder func(m map[string]any, path string) (Property, error)

var propertyDecoders = map[PropertyType]propertyDecoder{
	TypeTitle: func(m map[string]any, path string) (Property, error) {
		return decodeTitle(m, path)
	},
	TypeRichText: func(m map[string]any, path string) (Property, error) {
		return decodeRichTextProperty(m, path)
	},
	TypeURL: func(m map[string]any, path string) (Property, error) {
		return decodeURL(m, path)
	},
	TypeMultiSelect: func(m map[string]any, path string) (Property, error) {
		return decodeMultiSelect(m, path)
	},
	TypeSelect: func(m map[string]any, path string) (Property, error) {
		return decodeSelect(m, path)
	},
	TypeNumber: func(m map[string]any, path string) (Property, error) {
		return decodeNumber(m, path)
	},
	TypeDate: func(m map[string]any, path string) (Property, error) {
		return decodeDate(m, path)
	},
	TypePeople: func(m map[string]any, path string) (Property, error) {
		return decodePeople(m, path)
	},
}

// DecodeProperty routes on the property's own "type" discriminator.
// Unknown discriminators fail with ErrUnsupportedPropertyType.
func DecodeProperty(raw map[string]any) (Property, error) {
	return decodeProperty(raw, "")
}

func decodeProperty(m map[string]any, path string) (Property, error) {
	if m == nil {
		return nil, mismatch(path, "expected object, got null")
	}
	tag, err := requireString(m, "type", path)
	if err != nil {
		return nil, err
	}
	decode, ok := propertyDecoders[PropertyType(tag)]
	if !ok {
		return nil, &UnsupportedPropertyTypeError{Type: tag}
	}
	return decode(m, path)
}

// DecodeAs decodes raw as the caller-expected type. A present "type" tag must agree with want.
func DecodeAs(raw map[string]any, want PropertyType) (Property, error) {
	return decodeAs(raw, want, "")
}

func decodeAs(m map[string]any, want PropertyType, path string) (Property, error) {
	decode, ok := propertyDecoders[want]
	if !ok {
		return nil, &UnsupportedPropertyTypeError{Type: string(want)}
	}
	return decode(m, path)
}
