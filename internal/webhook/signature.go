// Package webhook verifies and decodes GitHub-style push deliveries.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// SignatureHeader carries the HMAC of the request body.
	SignatureHeader = "X-Hub-Signature-256"

	// Algorithm is the only accepted algorithm name in SignatureHeader.
	Algorithm = "sha256"
)

// Token is a parsed signature header: "<algorithm>=<hex digest>".
type Token struct {
	Algorithm string
	Digest    string
}

// ParseToken splits a signature header at the first '='.
// It reports false if the header is empty or has no separator.
func ParseToken(header string) (Token, bool) {
	if header == "" {
		return Token{}, false
	}
	algorithm, digest, found := strings.Cut(header, "=")
	if !found {
		return Token{}, false
	}
	return Token{Algorithm: algorithm, Digest: digest}, true
}

// Verify checks header against the HMAC-SHA256 of the raw body bytes.
// Callers must pass the body exactly as received; it is never re-encoded.
func Verify(body []byte, header string, secret []byte) bool {
	token, ok := ParseToken(header)
	if !ok || token.Algorithm != Algorithm {
		return false
	}

	expected := Digest(body, secret)

	// Constant-time comparison to prevent timing attacks
	return hmac.Equal([]byte(expected), []byte(token.Digest))
}

// Digest returns the hex HMAC-SHA256 of body.
func Digest(body []byte, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Sign returns the SignatureHeader value for body.
func Sign(body []byte, secret []byte) string {
	return Algorithm + "=" + Digest(body, secret)
}

// Verifier holds the shared secret for the lifetime of the process.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify reports whether header is a valid signature of body.
func (v *Verifier) Verify(body []byte, header string) bool {
	return Verify(body, header, v.secret)
}

// Secret returns the key as a string, for redacting command output.
func (v *Verifier) Secret() string {
	return string(v.secret)
}
