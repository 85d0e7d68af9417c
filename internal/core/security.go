// AngelaMos | 2026
// security.go

package core

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost = 12

	bcryptInputLimit = 72
)

func HashPassword(password string) (string, error) {
	return hashPasswordWithCost(password, BcryptCost)
}

func hashPasswordWithCost(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(bcryptInput(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	return string(hash), nil
}

func VerifyPassword(password, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), bcryptInput(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("compare password: %w", err)
	}
}

// bcryptInput keeps the first 72 bytes, the only ones bcrypt ever reads.
// Hashes written by other bcrypt implementations that truncate silently
// keep verifying.
func bcryptInput(password string) []byte {
	b := []byte(password)
	if len(b) > bcryptInputLimit {
		b = b[:bcryptInputLimit]
	}
	return b
}

var dummyHash string

func init() {
	hash, err := hashPasswordWithCost(
		"dummy_password_for_timing_attack_prevention",
		BcryptCost,
	)
	if err != nil {
		panic(fmt.Sprintf("security: failed to generate dummy hash: %v", err))
	}
	dummyHash = hash
}

// VerifyPasswordTimingSafe always performs one bcrypt comparison so that a
// missing account costs the same as a wrong password.
func VerifyPasswordTimingSafe(password string, encodedHash *string) (bool, error) {
	hashToVerify := dummyHash
	if encodedHash != nil && *encodedHash != "" {
		hashToVerify = *encodedHash
	}

	valid, err := VerifyPassword(password, hashToVerify)

	if encodedHash == nil || *encodedHash == "" {
		return false, nil
	}

	return valid, err
}

// NeedsRehash reports whether a stored hash was produced with a different cost.
func NeedsRehash(encodedHash string) bool {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return true
	}
	return cost != BcryptCost
}
