// Package validation turns validator struct-tag failures into
// caller-facing validation errors.
package validation

import (
	"fmt"
	"strings"

	"taskflow/internal/domain/errors"

	"github.com/go-playground/validator"
)

var validate = validator.New()

// Struct validates s against its `validate` tags. The returned error is
// a KindValidation error listing every failed field.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Validation(err.Error())
	}

	msgs := make([]string, 0, len(verrs))
	for _, verr := range verrs {
		field := lowerFirst(verr.Field())
		param := verr.Param()

		switch verr.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters", field, param))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, param))
		case "email":
			msgs = append(msgs, field+" must be a valid email")
		case "alphanum":
			msgs = append(msgs, field+" must contain only letters and digits")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", ")))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than %s", field, param))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}

	return errors.Validation(strings.Join(msgs, ", "))
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
