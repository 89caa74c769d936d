// Package validator decides whether a generation form may be submitted.
package validator

import (
	"errors"
	"fmt"
	"strings"

	"thumbforge-client/internal/model"
)

type Field string

const (
	FieldImage          Field = "image"
	FieldCategory       Field = "category"
	FieldCustomCategory Field = "customCategory"
	FieldPlatform       Field = "platform"
	FieldFocus          Field = "focus"
)

// MessageIncomplete is shown while any required field is missing.
const MessageIncomplete = "Please fill all required fields"

var ErrValidation = errors.New("validation failed")

// Report lists every unmet requirement in a fixed order.
type Report struct {
	Missing []Field `json:"missing"`
}

func (r Report) Valid() bool {
	return len(r.Missing) == 0
}

// Err returns nil for a valid report.
func (r Report) Err() error {
	if r.Valid() {
		return nil
	}
	return &Error{Missing: append([]Field(nil), r.Missing...)}
}

func (r Report) MissingNames() []string {
	names := make([]string, len(r.Missing))
	for i, f := range r.Missing {
		names[i] = string(f)
	}
	return names
}

type Error struct {
	Missing []Field
}

func (e *Error) Error() string {
	names := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		names[i] = string(f)
	}
	return fmt.Sprintf("%s: missing %s", ErrValidation, strings.Join(names, ", "))
}

func (e *Error) Is(target error) bool {
	return target == ErrValidation
}

// Validate checks every rule on each call; it has no side effects.
func Validate(form model.FormState, imageSelected bool) Report {
	var missing []Field

	if !imageSelected {
		missing = append(missing, FieldImage)
	}
	if strings.TrimSpace(form.Category) == "" {
		missing = append(missing, FieldCategory)
	}
	if form.Category == model.CategoryOther && strings.TrimSpace(form.CustomCategory) == "" {
		missing = append(missing, FieldCustomCategory)
	}
	if strings.TrimSpace(form.Platform) == "" {
		missing = append(missing, FieldPlatform)
	}
	if strings.TrimSpace(form.Focus) == "" {
		missing = append(missing, FieldFocus)
	}

	return Report{Missing: missing}
}
