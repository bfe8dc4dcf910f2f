package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	playground "github.com/go-playground/validator/v10"
)

// FieldError describes why a single field failed validation
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator validates request structs and reports failures per field.
// Field names are taken from json tags.
type Validator struct {
	validate *playground.Validate
	now      func() time.Time
	messages map[string]string
}

// Option configures a Validator
type Option func(*Validator)

// WithClock overrides the clock used by date rules
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

var hhmmRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// New creates a validator with the date and time rules registered
func New(opts ...Option) *Validator {
	v := &Validator{
		validate: playground.New(),
		now:      time.Now,
		messages: map[string]string{},
	}
	for _, opt := range opts {
		opt(v)
	}

	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	v.mustRegister("isodate", func(s string) bool {
		_, err := ParseDate(s)
		return err == nil
	}, "must be a valid date in YYYY-MM-DD format")
	v.mustRegister("notpast", func(s string) bool {
		d, err := ParseDate(s)
		if err != nil {
			return false
		}
		return !d.Before(StartOfDay(v.now()))
	}, "cannot be in the past")
	v.mustRegister("hhmm", IsHHMM, "must be in HH:MM format (24-hour)")

	return v
}

// RegisterRule adds a string rule under tag with the message shown when it fails
func (v *Validator) RegisterRule(tag string, fn func(string) bool, message string) error {
	err := v.validate.RegisterValidation(tag, func(fl playground.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() != reflect.String {
			return false
		}
		return fn(field.String())
	})
	if err != nil {
		return fmt.Errorf("failed to register rule %q: %w", tag, err)
	}
	v.messages[tag] = message
	return nil
}

func (v *Validator) mustRegister(tag string, fn func(string) bool, message string) {
	if err := v.RegisterRule(tag, fn, message); err != nil {
		panic(err)
	}
}

// Struct validates s and returns one entry per failing field, or nil when valid
func (v *Validator) Struct(s interface{}) []FieldError {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs playground.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "body", Message: err.Error()}}
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Message: v.message(fe),
		})
	}
	return fields
}

func (v *Validator) message(fe playground.FieldError) string {
	if msg, ok := v.messages[fe.Tag()]; ok {
		return msg
	}

	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		if isString {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		if isString {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "uuid":
		return "must be a valid id"
	}
	return "is invalid"
}

// ParseDate accepts YYYY-MM-DD or RFC3339 and returns the calendar day at UTC midnight
func ParseDate(s string) (time.Time, error) {
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// StartOfDay truncates t to its calendar day at UTC midnight
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsHHMM reports whether s is a 24-hour HH:MM time
func IsHHMM(s string) bool {
	return hhmmRegex.MatchString(s)
}
