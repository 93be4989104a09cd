package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/felixgeelhaar/envira/internal/domain/platform"
	"github.com/felixgeelhaar/envira/internal/domain/step"
)

// Validator checks struct tags on configuration and catalog documents and
// reports failures by their YAML field names.
type Validator struct {
	v *validator.Validate
}

// NewValidator creates a Validator with the envira-specific tags
// registered: "mode" (a --mode value) and "stepid" (a step ID).
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("mode", func(fl validator.FieldLevel) bool {
		_, err := platform.ParsePrivilegeMode(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("stepid", func(fl validator.FieldLevel) bool {
		_, err := step.NewID(fl.Field().String())
		return err == nil
	})
	return &Validator{v: v}
}

// Validate checks a RunConfig.
func (v *Validator) Validate(c RunConfig) error {
	return v.Struct(c, "")
}

// Struct checks any tagged struct. Field paths are prefixed with prefix,
// e.g. "steps[3]".
func (v *Validator) Struct(s any, prefix string) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return NewUserError(ErrCodeValidationFailed, "cannot validate configuration").WithUnderlying(err)
	}

	list := NewErrorList()
	for _, fe := range fieldErrs {
		list.AddValidation(fieldPath(prefix, fe.Namespace()), describe(fe), suggest(fe))
	}
	return list.AsError()
}

// fieldPath drops the root type name from a namespace like
// "RunConfig.log.format".
func fieldPath(prefix, namespace string) string {
	_, path, ok := strings.Cut(namespace, ".")
	if !ok {
		path = namespace
	}
	if prefix == "" {
		return path
	}
	return prefix + "." + path
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "mode":
		return fmt.Sprintf("%q is not a mode", fe.Value())
	case "stepid":
		return fmt.Sprintf("%q is not a valid step ID", fe.Value())
	case "url", "http_url":
		return fmt.Sprintf("%q is not a URL", fe.Value())
	case "required_without", "required_with", "required_if":
		return fmt.Sprintf("is required (%s %s)", fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("failed '%s' check", fe.Tag())
	}
}

func suggest(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Field() == "mode" {
			return "Pass --mode system or --mode user, or set mode in envira.yaml."
		}
	case "mode":
		return "Use 'system' or 'user'."
	case "stepid":
		return "Step IDs are alphanumeric with hyphens, dots, underscores or colons."
	case "min", "max":
		if fe.Kind() == reflect.Int64 && fe.Type().String() == "time.Duration" {
			return "Durations look like '90s' or '15m'."
		}
	}
	return ""
}
