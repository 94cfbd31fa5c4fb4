package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkStruct runs the struct tags and reports the first failure as a
// ValidationError.
func checkStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}
	return fieldError(errs[0])
}

func fieldError(fe validator.FieldError) *ValidationError {
	path := fe.Namespace()
	if i := strings.Index(path, "."); i >= 0 {
		path = path[i+1:]
	}

	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", path)
	case "email":
		msg = fmt.Sprintf("%s must be a valid email address", path)
	case "gte":
		msg = fmt.Sprintf("%s must be at least %s", path, fe.Param())
	case "ltefield":
		msg = fmt.Sprintf("%s cannot exceed quantity", path)
	case "oneof":
		msg = fmt.Sprintf("%s must be one of: %s", path, fe.Param())
	default:
		msg = fmt.Sprintf("%s is invalid", path)
	}
	return &ValidationError{Field: path, Message: msg}
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}
