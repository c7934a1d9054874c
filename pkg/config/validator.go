package config

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// runStatePattern matches run-state tokens such as FINISHED or NOT_SUPPORTED.
var runStatePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z_]*$`)

// RegisterCustomValidators registers custom validation functions
func RegisterCustomValidators(v *validator.Validate) error {
	return v.RegisterValidation("run_state", validateRunState)
}

func validateRunState(fl validator.FieldLevel) bool {
	return runStatePattern.MatchString(fl.Field().String())
}
