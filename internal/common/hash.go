package common

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sha256Hex digests s with SHA-256 and returns the lowercase hex encoding.
// Verification tokens are stored hashed; the raw token only ever appears in
// the emailed link.
func Sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
