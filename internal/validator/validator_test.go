package validator

import (
	"errors"
	"testing"

	"thumbforge-client/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeForm() model.FormState {
	return model.FormState{
		Category: "Gaming",
		Platform: "youtube",
		Focus:    "pizza",
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(f *model.FormState)
		image   bool
		missing []Field
	}{
		{
			name:  "valid: all required fields",
			image: true,
		},
		{
			name:   "valid: addons and style are optional",
			mutate: func(f *model.FormState) { f.Addons = ""; f.Style = "" },
			image:  true,
		},
		{
			name:    "invalid: no image",
			image:   false,
			missing: []Field{FieldImage},
		},
		{
			name:    "invalid: empty category",
			mutate:  func(f *model.FormState) { f.Category = "" },
			image:   true,
			missing: []Field{FieldCategory},
		},
		{
			name:    "invalid: empty platform",
			mutate:  func(f *model.FormState) { f.Platform = "" },
			image:   true,
			missing: []Field{FieldPlatform},
		},
		{
			name:    "invalid: whitespace category and platform",
			mutate:  func(f *model.FormState) { f.Category = "   "; f.Platform = "\t " },
			image:   true,
			missing: []Field{FieldCategory, FieldPlatform},
		},
		{
			name:    "invalid: whitespace focus",
			mutate:  func(f *model.FormState) { f.Focus = "   \t" },
			image:   true,
			missing: []Field{FieldFocus},
		},
		{
			name:    "invalid: Other without custom category",
			mutate:  func(f *model.FormState) { f.Category = model.CategoryOther },
			image:   true,
			missing: []Field{FieldCustomCategory},
		},
		{
			name:    "invalid: Other with blank custom category",
			mutate:  func(f *model.FormState) { f.Category = model.CategoryOther; f.CustomCategory = "  " },
			image:   true,
			missing: []Field{FieldCustomCategory},
		},
		{
			name:   "valid: Other with custom category",
			mutate: func(f *model.FormState) { f.Category = model.CategoryOther; f.CustomCategory = "memes" },
			image:  true,
		},
		{
			name:   "valid: custom category ignored for regular category",
			mutate: func(f *model.FormState) { f.CustomCategory = "" },
			image:  true,
		},
		{
			name:    "invalid: everything missing is reported",
			mutate:  func(f *model.FormState) { *f = model.FormState{Category: model.CategoryOther} },
			image:   false,
			missing: []Field{FieldImage, FieldCustomCategory, FieldPlatform, FieldFocus},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			form := completeForm()
			if tt.mutate != nil {
				tt.mutate(&form)
			}

			report := Validate(form, tt.image)
			assert.Equal(t, tt.missing, report.Missing)
			assert.Equal(t, len(tt.missing) == 0, report.Valid())

			if report.Valid() {
				require.NoError(t, report.Err())
			} else {
				require.ErrorIs(t, report.Err(), ErrValidation)
			}
		})
	}
}

func TestValidate_OtherScenario(t *testing.T) {
	t.Parallel()

	form := completeForm()
	form.Category = model.CategoryOther
	form.CustomCategory = ""
	assert.False(t, Validate(form, true).Valid())

	form.CustomCategory = "memes"
	assert.True(t, Validate(form, true).Valid())
}

func TestError_Message(t *testing.T) {
	t.Parallel()

	err := Validate(model.FormState{}, false).Err()

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "validation failed: missing image, category, platform, focus", err.Error())
}
