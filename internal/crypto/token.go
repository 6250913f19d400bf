package crypto

import (
	"crypto/rand"
	"encoding/base64"
)

// NewSessionToken returns an opaque bearer token with 256 bits of
// entropy. The token carries no structure and no relation to the user
// it will be bound to; it is only ever used as a lookup key.
func NewSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
