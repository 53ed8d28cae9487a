// Package registration holds the rules a registration request must satisfy.
// Both the form controller and the registration service validate through it,
// so a handle accepted on one side is accepted on the other.
package registration

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Field names as they appear on the wire.
const (
	FieldName     = "name"
	FieldUsername = "username"
)

// Field-level messages.
const (
	MsgUsernameTooShort = "The username must have at least 3 letters."
	MsgUsernameInvalid  = "The username may only contain letters and hyphens."
	MsgNameTooShort     = "The name must have at least 3 letters."
)

// fieldOrder is the order fields appear on the form.
var fieldOrder = []string{FieldUsername, FieldName}

var handlePattern = regexp.MustCompile(`^[a-zA-Z-]+$`)

// Input is a registration request.
type Input struct {
	Name     string `json:"name" validate:"min=3"`
	Username string `json:"username" validate:"min=3,handle"`
}

// FieldErrors maps a field name to the first rule it violated.
type FieldErrors map[string]string

// Error implements error.
func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e[field])
	}
	return "invalid registration: " + strings.Join(parts, "; ")
}

// First returns the message of the first invalid field in form order.
func (e FieldErrors) First() string {
	for _, field := range fieldOrder {
		if msg, ok := e[field]; ok {
			return msg
		}
	}
	for _, msg := range e {
		return msg
	}
	return ""
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return handlePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}

	return v
}

// Validate checks in against the registration rules and returns it with the
// username normalized. A rule violation is reported as FieldErrors.
func Validate(in Input) (Input, error) {
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Input{}, err
		}

		fields := make(FieldErrors, len(verrs))
		for _, fe := range verrs {
			if _, seen := fields[fe.Field()]; seen {
				continue
			}
			fields[fe.Field()] = message(fe.Field(), fe.Tag())
		}
		return Input{}, fields
	}

	in.Username = NormalizeUsername(in.Username)
	return in, nil
}

// NormalizeUsername returns the stored form of a handle.
func NormalizeUsername(username string) string {
	return strings.ToLower(username)
}

func message(field, tag string) string {
	switch field {
	case FieldUsername:
		if tag == "handle" {
			return MsgUsernameInvalid
		}
		return MsgUsernameTooShort
	case FieldName:
		return MsgNameTooShort
	default:
		return "invalid value"
	}
}
