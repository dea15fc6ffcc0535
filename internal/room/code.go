package room

import (
	"math/rand/v2"
	"strings"
)

const (
	codeLength   = 4
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewCode returns a random room code. It does not check for collisions,
// see Registry.Create.
func NewCode() string {
	var sb strings.Builder
	sb.Grow(codeLength)
	for range codeLength {
		sb.WriteByte(codeAlphabet[rand.IntN(len(codeAlphabet))])
	}
	return sb.String()
}

// NormalizeCode returns the canonical (uppercase) form of a code typed by a user.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCode reports whether code is a canonical room code.
func ValidCode(code string) bool {
	if len(code) != codeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(codeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
