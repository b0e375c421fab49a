package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

func HashString(s string) string {
	hasher := sha256.New()
	hasher.Write([]byte(s))
	return hex.EncodeToString(hasher.Sum(nil))
}

// HashParts hashes the parts joined with ":".
func HashParts(parts ...string) string {
	return HashString(strings.Join(parts, ":"))
}
