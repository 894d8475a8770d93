package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashString returns the hex sha256 of input.
func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// HashParts hashes the parts joined by a unit separator so that
// ("a,b", "c") and ("a", "b,c") never collide.
func HashParts(parts ...string) string {
	return HashString(strings.Join(parts, "\x1f"))
}
