package http

import (
	"errors"
	"reflect"
	"strings"

	"routeopt/internal/pkg/errs"

	"github.com/go-playground/validator/v10"
)

// RequestValidator checks `validate` tags of request bodies. Field names in
// errors follow the json tags so they match the API contract.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{validate: v}
}

// Validate implements echo.Validator.
func (v *RequestValidator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errs.NewValueIsInvalidErrorWithCause("body", err)
	}
	out := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := strings.TrimPrefix(fe.Namespace(), rootNamespace(fe))
		if fe.Tag() == "required" {
			out = append(out, errs.NewValueIsRequiredError(name))
			continue
		}
		out = append(out, errs.NewValueIsInvalidErrorWithCause(name, fe))
	}
	return errors.Join(out...)
}

// rootNamespace is the struct type prefix of the namespace, e.g.
// "MoveOrdersRequest." for "MoveOrdersRequest.points".
func rootNamespace(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[:i+1]
	}
	return ""
}
