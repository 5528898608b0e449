package validation

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// IsEmail reports whether s is a syntactically well-formed email address.
// It says nothing about deliverability.
func IsEmail(s string) bool {
	if s == "" || strings.TrimSpace(s) != s {
		return false
	}
	return validate.Var(s, "email") == nil
}
