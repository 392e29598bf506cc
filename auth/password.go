package auth

import (
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/ken-eddy/simplesales/apperr"
)

var commonPasswords = map[string]struct{}{
	"password":    {},
	"password123": {},
	"12345678":    {},
	"qwerty123":   {},
	"admin123":    {},
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword enforces the signup and reset password policy. bcrypt
// ignores bytes past 72, so longer passwords are rejected.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return apperr.Validation("Password must be at least 8 characters")
	}
	if len(password) > 72 {
		return apperr.Validation("Password must be at most 72 bytes")
	}
	if _, common := commonPasswords[strings.ToLower(password)]; common {
		return apperr.Validation("Password is too common. Please choose a stronger password.")
	}
	if strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) == -1 {
		return apperr.Validation("Password cannot be numbers only.")
	}
	return nil
}
