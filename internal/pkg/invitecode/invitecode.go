// Package invitecode generates the short codes admins hand out to invite new admins.
package invitecode

import (
	"crypto/rand"
	"math/big"
)

// Length is the fixed code length
const Length = 5

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generate returns a random uppercase alphanumeric code of Length characters
func Generate() (string, error) {
	buf := make([]byte, Length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}

// Valid reports whether code has the shape of an invite code
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
