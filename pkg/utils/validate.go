package utils

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct's validate tags.
func Validate(v any) error {
	return validate.Struct(v)
}
