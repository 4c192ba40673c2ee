package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs the struct's validate tags and reports failures as a
// VALIDATION_ERROR.
func ValidateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return NewAppError(ErrValidation, "invalid input", err)
	}
	return nil
}

// ValidateMessageContent rejects empty or whitespace-only message bodies.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return NewValidationError("message content must not be empty")
	}
	return nil
}
