package utils

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

// InvitationCodeLength is the fixed length of alumni invitation codes.
// Verify rejects anything of a different length before any lookup.
const InvitationCodeLength = 32

// GenerateInvitationCode returns a cryptographically random, fixed-length
// hex code for single-use alumni invitations.
func GenerateInvitationCode() (string, error) {
	b := make([]byte, InvitationCodeLength/2)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateURLToken returns a URL-safe random token of roughly 4/3*n
// characters, used for integration API keys.
func GenerateURLToken(n int) (string, error) {
	if n <= 0 {
		n = 24
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
