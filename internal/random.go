package internal

import (
	"crypto/rand"
	"encoding/base64"
)

const opaqueTokenSize = 32

// NewOpaqueToken returns a 32-byte cryptographically random secret encoded
// as unpadded base64url, used for email-verification and password-reset
// challenges.
func NewOpaqueToken() (string, error) {
	var raw [opaqueTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}
