package password

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost is the default bcrypt cost
	DefaultCost = 12

	// MinLength is the minimum accepted password length
	MinLength = 8
)

// cost is lowered by tests through SetCost
var cost = DefaultCost

// SetCost overrides the bcrypt cost, clamped to bcrypt's accepted range
func SetCost(c int) {
	if c < bcrypt.MinCost {
		c = bcrypt.MinCost
	}
	if c > bcrypt.MaxCost {
		c = bcrypt.MaxCost
	}
	cost = c
}

// Hash hashes a password using bcrypt
func Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify compares a password with a hash
func Verify(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// HashToken hashes a token using SHA256 (for refresh tokens)
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidatePassword checks if password meets requirements
func ValidatePassword(password string) bool {
	return len(password) >= MinLength
}
