// pkg/auth/password.go
package auth

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword генерирует bcrypt хеш для заданного пароля.
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedPassword), nil
}

// PlaceholderPasswordHash hashes a random secret nobody knows. Users log in
// with confirmation codes, the column only has to be non-empty and unguessable.
func PlaceholderPasswordHash() (string, error) {
	return HashPassword(uuid.NewString())
}
