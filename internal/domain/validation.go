package domain

import "github.com/go-playground/validator/v10"

// validate is the package-level validator instance used for struct validation.
var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct runs struct-tag validation for domain DTOs.
func ValidateStruct(v any) error { return validate.Struct(v) }
