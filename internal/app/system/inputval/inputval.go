// Package inputval validates request structs with go-playground/validator
// and turns the failures into short, user-facing messages.
//
// Fields are named in messages by their `label` tag, falling back to the
// json name:
//
//	type signupInput struct {
//		Email string `json:"email" validate:"required,email" label:"Email"`
//	}
package inputval

import (
	"fmt"
	"net/mail"
	"reflect"
	"strings"
	"unicode"

	"github.com/dalemusser/rollcall/internal/app/system/normalize"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if label := fld.Tag.Get("label"); label != "" {
			return label
		}
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	// Replaces the built-in rule, which accepts display-name forms.
	_ = validate.RegisterValidation("email", func(fl validator.FieldLevel) bool {
		return IsValidEmail(fl.Field().String())
	})
	_ = validate.RegisterValidation("coursecode", func(fl validator.FieldLevel) bool {
		return IsValidCourseCode(fl.Field().String())
	})
	_ = validate.RegisterValidation("matricno", func(fl validator.FieldLevel) bool {
		return IsValidMatricNo(fl.Field().String())
	})
	_ = validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return IsStrongPassword(fl.Field().String())
	})
}

// FieldError is one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result collects the failures for one struct.
type Result struct {
	Errors []FieldError
}

func (r *Result) HasErrors() bool { return len(r.Errors) > 0 }

// First returns the first message, or "" when valid.
func (r *Result) First() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// All joins every message with "; ".
func (r *Result) All() string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// Validate checks v against its validate tags.
func Validate(v any) *Result {
	res := &Result{}
	err := validate.Struct(v)
	if err == nil {
		return res
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		res.Errors = append(res.Errors, FieldError{Message: err.Error()})
		return res
	}
	for _, fe := range verrs {
		res.Errors = append(res.Errors, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return res
}

func message(fe validator.FieldError) string {
	label := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return label + " is required."
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", label, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters.", label, fe.Param())
	case "email":
		return "A valid email address is required."
	case "eqfield":
		return label + " does not match."
	case "coursecode":
		return label + " may contain only letters and digits."
	case "matricno":
		return label + " may contain only letters, digits, '/' and '-'."
	case "password":
		return PasswordRules
	}
	return label + " is invalid."
}

// IsValidEmail accepts a bare address (no display name) with a dotted or
// single-label domain and no empty dot-separated parts.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t<>") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return false
	}
	at := strings.LastIndex(s, "@")
	local, domain := s[:at], s[at+1:]
	for _, part := range [][]string{strings.Split(local, "."), strings.Split(domain, ".")} {
		for _, p := range part {
			if p == "" {
				return false
			}
		}
	}
	return true
}

// IsValidCourseCode reports whether s, once normalized, is 2 to 16 letters
// and digits.
func IsValidCourseCode(s string) bool {
	s = normalize.CourseCode(s)
	if len(s) < 2 || len(s) > 16 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// IsValidMatricNo reports whether s, once normalized, is 1 to 32 letters,
// digits, '/' or '-'.
func IsValidMatricNo(s string) bool {
	s = normalize.MatricNo(s)
	if s == "" || len(s) > 32 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '/' && r != '-' {
			return false
		}
	}
	return true
}

// PasswordRules describes what IsStrongPassword accepts.
const PasswordRules = "Password must be at least 8 characters and contain an uppercase letter, a lowercase letter, a digit and a symbol."

// IsStrongPassword enforces the account password policy.
func IsStrongPassword(s string) bool {
	if len([]rune(s)) < 8 {
		return false
	}
	var upper, lower, digit, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}
