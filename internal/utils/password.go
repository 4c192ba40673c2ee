package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", NewAppError(ErrValidation, "failed to hash password", err)
	}
	return string(hashed), nil
}

// CheckPassword compares a bcrypt hash with a plain password.
func CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return NewAppError(ErrInvalidCredentials, "invalid credentials", nil)
	}
	return err
}
