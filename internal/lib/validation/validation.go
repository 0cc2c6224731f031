// Package validation holds request validation shared by the HTTP handlers,
// including the password policy the frontend enforces as well.
package validation

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	PasswordTag = "password"

	minPasswordLength = 8
	// bcrypt ignores everything past 72 bytes
	maxPasswordBytes = 72
)

// New returns a validator that reports json field names and knows the
// password tag.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation(PasswordTag, func(fl validator.FieldLevel) bool {
		return len(PasswordProblems(fl.Field().String())) == 0
	}); err != nil {
		panic("validation: register password tag: " + err.Error())
	}

	return v
}

// PasswordProblems lists every rule the password breaks. A short password is
// reported on its own.
func PasswordProblems(password string) []string {
	if len(password) < minPasswordLength {
		return []string{"Password must be at least 8 characters long"}
	}

	var problems []string

	if len(password) > maxPasswordBytes {
		problems = append(problems, "Password must be at most 72 bytes long")
	}

	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			special = true
		}
	}

	if !lower {
		problems = append(problems, "Password must contain at least one lowercase letter")
	}
	if !upper {
		problems = append(problems, "Password must contain at least one uppercase letter")
	}
	if !digit {
		problems = append(problems, "Password must contain at least one number")
	}
	if !special {
		problems = append(problems, "Password must contain at least one special character")
	}

	return problems
}
