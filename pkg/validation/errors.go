package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError maps each failing field to a readable message.
type ValidationError struct {
	Errors map[string]string `json:"errors"`
}

// Error lists the failures ordered by field name.
func (v *ValidationError) Error() string {
	fields := make([]string, 0, len(v.Errors))
	for f := range v.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + ": " + v.Errors[f]
	}
	return strings.Join(parts, "; ")
}

// NewValidationError converts validator failures. The first failure of a field wins.
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	out := &ValidationError{Errors: make(map[string]string, len(errs))}
	for _, fe := range errs {
		if _, seen := out.Errors[fe.Field()]; !seen {
			out.Errors[fe.Field()] = message(fe)
		}
	}
	return out
}

// Tags with a parameter use it as the single format argument.
var paramMessages = map[string]string{
	"min":     "must be at least %s",
	"max":     "must be at most %s",
	"gte":     "must be greater than or equal to %s",
	"lte":     "must be less than or equal to %s",
	"gt":      "must be greater than %s",
	"lt":      "must be less than %s",
	"oneof":   "must be one of: %s",
	"nefield": "must differ from %s",
}

var fixedMessages = map[string]string{
	"required":  "is required",
	"latitude":  "must be a valid latitude (-90 to 90)",
	"longitude": "must be a valid longitude (-180 to 180)",
	"phone":     "must be a phone number in E.164 format",
	"e164":      "must be a phone number in E.164 format",
	"uuid":      "must be a valid UUID",
	"uuid4":     "must be a valid UUID",
	"unique":    "must not contain duplicates",
	"seat_id":   "must be a seat label of up to 8 letters, digits or dashes",
}

func message(fe validator.FieldError) string {
	if format, ok := paramMessages[fe.Tag()]; ok {
		return fe.Field() + " " + fmt.Sprintf(format, fe.Param())
	}
	if text, ok := fixedMessages[fe.Tag()]; ok {
		return fe.Field() + " " + text
	}
	return fe.Field() + " is invalid"
}
