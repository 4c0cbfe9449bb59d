package utils

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// CompareToken reports whether the presented token matches the expected
// plaintext token, in constant time.
func CompareToken(expected, presented string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}

// CompareTokenHash reports whether the presented token matches a bcrypt hash.
func CompareTokenHash(hash, presented string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(presented)) == nil
}

// HashToken produces a bcrypt hash suitable for ADMIN_TOKEN_HASH.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
