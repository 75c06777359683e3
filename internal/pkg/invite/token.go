package invite

import (
	"crypto/rand"
	"encoding/hex"
)

// generateToken returns a 64-character hex token from 32 random bytes.
// Tokens are single-use; uniqueness is additionally enforced by the column
// index.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
