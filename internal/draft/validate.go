package draft

import (
	"errors"
	"reflect"
	"strings"

	validator "github.com/go-playground/validator/v10"
)

// ErrIncomplete is matched by validation failures reported by ValidateForExport.
var ErrIncomplete = errors.New("draft incomplete")

// ValidationError lists the fields that block an export.
type ValidationError struct {
	Missing []string `json:"missing,omitempty"`
	Invalid []string `json:"invalid,omitempty"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "please fill in: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid: "+strings.Join(e.Invalid, ", "))
	}
	return strings.Join(parts, "; ")
}

// Is lets errors.Is match ErrIncomplete.
func (e *ValidationError) Is(target error) bool {
	return target == ErrIncomplete
}

// NewValidator returns a validator reporting fields by their human label.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		if label := field.Tag.Get("label"); label != "" {
			return label
		}
		return field.Name
	})
	return v
}

// ValidateForExport checks the fields a printable invoice needs.
func (d *Draft) ValidateForExport(v *validator.Validate) error {
	if v == nil {
		v = NewValidator()
	}
	result := &ValidationError{}
	if err := v.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				result.Missing = append(result.Missing, fe.Field())
			} else {
				result.Invalid = append(result.Invalid, fe.Field())
			}
		}
	}
	if !d.HasDescribedItem() {
		result.Missing = append(result.Missing, "Item Description")
	}
	if len(result.Missing) == 0 && len(result.Invalid) == 0 {
		return nil
	}
	return result
}
