package notion

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchemaMismatch reports a required key that is absent or a value with the wrong shape.
	ErrSchemaMismatch = errors.New("notion: schema mismatch")
	// ErrUnsupportedPropertyType reports a property discriminator outside the recognized set.
	ErrUnsupportedPropertyType = errors.New("notion: unsupported property type")
)

// SchemaMismatchError carries the key path of the offending value, e.g. "title[1].text.content".
type SchemaMismatchError struct {
	Path   string
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	if e == nil {
		return ErrSchemaMismatch.Error()
	}
	if strings.TrimSpace(e.Path) == "" {
		return fmt.Sprintf("%s: %s", ErrSchemaMismatch.Error(), e.Reason)
	}
	return fmt.Sprintf("%s at %s: %s", ErrSchemaMismatch.Error(), e.Path, e.Reason)
}

func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

type UnsupportedPropertyTypeError struct {
	Type string
}

func (e *UnsupportedPropertyTypeError) Error() string {
	if e == nil {
		return ErrUnsupportedPropertyType.Error()
	}
	return fmt.Sprintf("%s: %q", ErrUnsupportedPropertyType.Error(), e.Type)
}

func (e *UnsupportedPropertyTypeError) Is(target error) bool {
	return target == ErrUnsupportedPropertyType
}

func mismatch(path string, format string, args ...any) error {
	return &SchemaMismatchError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// withPathPrefix re-roots a schema mismatch under prefix. Other errors pass through.
func withPathPrefix(err error, prefix string) error {
	if err == nil || strings.TrimSpace(prefix) == "" {
		return err
	}
	var sm *SchemaMismatchError
	if !errors.As(err, &sm) {
		return err
	}
	return &SchemaMismatchError{Path: joinPath(prefix, sm.Path), Reason: sm.Reason}
}
