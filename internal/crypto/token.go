// Package crypto generates and hashes API tokens. Tokens are shown to
// the client exactly once at registration; only the hash is stored.
package crypto

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/sha3"

	"github.com/google/uuid"
)

// tokenAlphabet excludes nothing; tokens are plain alphanumerics so they
// survive copy-paste and cookie encoding untouched.
const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const tokenLength = 32

// NewToken generates a random 32-character alphanumeric API token.
func NewToken() (string, error) {
	buf := make([]byte, tokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(buf), nil
}

// HashToken returns the base64 SHA3-384 digest of a token, the form
// tokens are stored and looked up in.
func HashToken(token string) string {
	digest := sha3.Sum384([]byte(token))
	return base64.StdEncoding.EncodeToString(digest[:])
}

// NewMessageID generates a time-ordered UUID v7 for a new message.
func NewMessageID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}
