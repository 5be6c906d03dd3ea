// Package validation checks request payloads with go-playground/validator and reports
// the first failure as an apperr validation error.
package validation

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/terraconstructs/gatehouse/internal/apperr"
)

var (
	validate *validator.Validate
	once     sync.Once
)

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		// maxbytes bounds the encoded length, unlike max which counts runes.
		_ = validate.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
			limit, err := strconv.Atoi(fl.Param())
			if err != nil {
				return false
			}
			return len(fl.Field().String()) <= limit
		})
	})
	return validate
}

// Struct validates s against its `validate` tags.
func Struct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Wrap(apperr.KindValidation, "Invalid request", err)
	}

	// Missing fields are reported together, like a form that is incomplete.
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			return apperr.Invalid(fe.Field(), "Please provide all required fields")
		}
	}
	fe := fieldErrs[0]
	return apperr.Invalid(fe.Field(), message(fe))
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "email":
		return "Please provide a valid email address"
	case "min":
		return capitalize(field) + " must be at least " + fe.Param() + " characters long"
	case "max":
		return capitalize(field) + " must be at most " + fe.Param() + " characters long"
	case "maxbytes":
		return capitalize(field) + " must be at most " + fe.Param() + " bytes long"
	case "uuid", "uuid4", "uuid7":
		return "Invalid " + field
	case "oneof":
		return capitalize(field) + " must be one of: " + fe.Param()
	default:
		return "Invalid " + field
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// UUID validates a path or body identifier before it is used in any lookup.
// Only the canonical lower-case 36 character form is accepted, so one row has
// exactly one spelling.
func UUID(field, value string) error {
	parsed, err := uuid.Parse(value)
	if err != nil || len(value) != 36 || parsed.String() != value {
		return apperr.Invalid(field, "Invalid "+field)
	}
	return nil
}
