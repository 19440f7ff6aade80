package services

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(JSONFieldName)
	return v
}

// JSONFieldName makes validator report fields by their json name, or the
// form name for query structs.
func JSONFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" {
		name, _, _ = strings.Cut(f.Tag.Get("form"), ",")
	}
	if name == "-" {
		return ""
	}
	return name
}

// AsValidationError converts validator output, from the service or from gin
// binding, into a ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}
	fe := fieldErrors{}
	fe.collect(verrs)
	return &ValidationError{Fields: fe}, true
}

// check runs the struct's validate tags and returns the failed fields.
func check(v any) (fieldErrors, error) {
	fe := fieldErrors{}
	err := validate.Struct(v)
	if err == nil {
		return fe, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}
	fe.collect(verrs)
	return fe, nil
}

func (f fieldErrors) collect(verrs validator.ValidationErrors) {
	for _, e := range verrs {
		f.add(e.Field(), fieldMessage(e))
	}
}

func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "required"
	case "email":
		return "invalid address"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(e.Param(), " ", ", ")
	case "min":
		return "must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "must be at most " + e.Param() + " characters"
		}
		return "must be at most " + e.Param()
	case "datetime":
		return "must be YYYY-MM-DD"
	}
	return "invalid (" + e.Tag() + ")"
}
