package validation

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/go-playground/validator/v10"
)

var (
	validate  = newValidator()
	moneyType = reflect.TypeOf(domain.Money(0))
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Struct validates s against its `validate` tags and reports the first failure
// as a *domain.ValidationError named after the JSON field.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.NewValidationError("", err.Error())
	}
	fe := fieldErrs[0]
	return domain.NewValidationError(fieldPath(fe.Namespace()), message(fe))
}

// fieldPath drops the top-level struct name from a validator namespace.
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must contain at least " + fe.Param() + " item(s)"
		}
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		if fe.Kind() == reflect.Slice {
			return "must contain at most " + fe.Param() + " item(s)"
		}
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		if t := fe.Type(); t == moneyType || (t.Kind() == reflect.Pointer && t.Elem() == moneyType) {
			if cents, err := strconv.ParseInt(fe.Param(), 10, 64); err == nil {
				return "must be at most " + domain.Money(cents).String()
			}
		}
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "datetime":
		return "must be a date in " + fe.Param() + " format"
	case "nefield":
		return "must differ from " + fe.Param()
	case "gtfield":
		return "must be after " + fe.Param()
	case "ltefield":
		return "must not exceed " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
