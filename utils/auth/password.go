package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is enforced on registration and password changes
const MinPasswordLength = 8

// bcryptCost trades hashing time for resistance to offline cracking.
// Raising it only affects newly stored hashes.
const bcryptCost = 12

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordMismatch = errors.New("password does not match")
)

// HashPassword returns a bcrypt hash suitable for storing on the user row
func HashPassword(password string) (string, error) {
	if !IsPasswordValid(password) {
		return "", ErrPasswordTooShort
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword compares a stored hash against a plaintext candidate
func VerifyPassword(hashedPassword, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}

// IsPasswordValid reports whether a candidate password meets the length policy
func IsPasswordValid(password string) bool {
	return len(password) >= MinPasswordLength
}
