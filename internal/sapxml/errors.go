package sapxml

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrMissingRequiredField marks a header or line item that lacks a
	// mandatory value with no usable default.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrInvalidBusinessType marks a business type outside {IMPORT, EXPORT}.
	ErrInvalidBusinessType = errors.New("invalid business type")

	// ErrRenderFailure marks a failure of the underlying XML text construction.
	ErrRenderFailure = errors.New("render failure")

	// ErrValidationFailure marks a rendered document the validator rejected.
	// The validator itself never returns it; callers that block on an invalid
	// document do.
	ErrValidationFailure = errors.New("validation failure")
)

// FieldError ties one of the sentinel errors to the offending field.
type FieldError struct {
	// Kind is one of the package sentinels.
	Kind error

	// Field is the SAP element name or invoice attribute.
	Field string

	// Item is the 1-based line item index, or 0 for header fields.
	Item int

	// Value is the rejected value, if any.
	Value string
}

func (e *FieldError) Error() string {
	where := "header"
	if e.Item > 0 {
		where = fmt.Sprintf("item %d", e.Item)
	}
	if e.Value != "" {
		return fmt.Sprintf("%s: %s %s: %q", e.Kind, where, e.Field, e.Value)
	}
	return fmt.Sprintf("%s: %s %s", e.Kind, where, e.Field)
}

func (e *FieldError) Unwrap() error {
	return e.Kind
}

func missing(field string, item int) error {
	return &FieldError{Kind: ErrMissingRequiredField, Field: field, Item: item}
}

// RenderError wraps a failure of the XML writer. It matches ErrRenderFailure
// under errors.Is and unwraps to the writer's error.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return ErrRenderFailure.Error() + ": " + e.Err.Error()
}

func (e *RenderError) Is(target error) bool {
	return target == ErrRenderFailure
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
