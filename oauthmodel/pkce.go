package oauthmodel

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/oauth2"
)

// GenerateCodeVerifier returns a new random RFC 7636 verifier (43 characters).
func GenerateCodeVerifier() string {
	return oauth2.GenerateVerifier()
}

// CodeChallengeS256 creates a PKCE code challenge from a verifier.
func CodeChallengeS256(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
