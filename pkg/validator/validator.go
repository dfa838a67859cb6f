package validator

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator"
)

var (
	global         *validator.Validate
	timeOfDayRegex = regexp.MustCompile(`^(([01]?\d|2[0-3]):[0-5]\d|(0?[1-9]|1[0-2]):[0-5]\d ?([AaPp][Mm]))$`)
	recordIDRegex  = regexp.MustCompile(`^rec[A-Za-z0-9]+$`)
)

const (
	ErrInvalidFormat      = "Invalid format"
	ErrInvalidTimeOfDay   = "Time must look like 13:30 or 1:30 PM"
	ErrInvalidRecordID    = "Invalid record id"
	ErrFieldRequired      = "Field is required"
	ErrFieldExceedsMaxLen = "Field exceeds maximum length"
	ErrFieldBelowMinLen   = "Field is below minimum length"
	ErrFieldExceedsMaxVal = "Field exceeds maximum value"
	ErrFieldBelowMinVal   = "Field is below minimum value"
	ErrUnknownValidation  = "Unknown validation error"
)

// Issue is one failed rule, keyed by the field's json name.
type Issue struct {
	Field   string
	Message string
}

func init() {
	SetValidator(New())
}

func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(jsonName)
	_ = v.RegisterValidation("timeofday", validateTimeOfDay)
	_ = v.RegisterValidation("recid", validateRecordID)
	return v
}

func SetValidator(v *validator.Validate) {
	global = v
}

func Validator() *validator.Validate {
	return global
}

// IsTimeOfDay reports whether s is a clock time the schedule editor accepts.
func IsTimeOfDay(s string) bool {
	return timeOfDayRegex.MatchString(strings.TrimSpace(s))
}

func validateTimeOfDay(fl validator.FieldLevel) bool {
	return IsTimeOfDay(fl.Field().String())
}

func validateRecordID(fl validator.FieldLevel) bool {
	return recordIDRegex.MatchString(fl.Field().String())
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

// Validate returns the first failed rule as an error.
func Validate(ctx context.Context, structure any) error {
	return parseValidationErrors(Validator().StructCtx(ctx, structure))
}

// Issues returns every failed rule of structure.
func Issues(ctx context.Context, structure any) []Issue {
	err := Validator().StructCtx(ctx, structure)
	if err == nil {
		return nil
	}
	vErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return []Issue{{Field: "", Message: err.Error()}}
	}
	out := make([]Issue, 0, len(vErrors))
	for _, ve := range vErrors {
		out = append(out, Issue{Field: ve.Field(), Message: message(ve)})
	}
	return out
}

func parseValidationErrors(err error) error {
	if err == nil {
		return nil
	}
	vErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(vErrors) == 0 {
		return nil
	}
	ve := vErrors[0]
	return errors.New(message(ve) + ": " + ve.Namespace())
}

func message(ve validator.FieldError) string {
	switch ve.Tag() {
	case "timeofday":
		return ErrInvalidTimeOfDay
	case "recid":
		return ErrInvalidRecordID
	case "required":
		return ErrFieldRequired
	case "max":
		return ErrFieldExceedsMaxLen
	case "min":
		return ErrFieldBelowMinLen
	case "lt", "lte":
		return ErrFieldExceedsMaxVal
	case "gt", "gte":
		return ErrFieldBelowMinVal
	case "url", "email":
		return ErrInvalidFormat
	default:
		return ErrUnknownValidation
	}
}
