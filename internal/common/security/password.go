package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPasswordHash never fails: a mismatch or a malformed stored hash is a
// plain false. Students and admins share the scheme.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// BcryptVerifier adapts the package functions to the services' verifier interface.
type BcryptVerifier struct{}

func (BcryptVerifier) Verify(plaintext, storedHash string) bool {
	return CheckPasswordHash(plaintext, storedHash)
}
