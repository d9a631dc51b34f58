package webhook

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testSecret = "test-secret-at-least-32-chars-long-here"

func TestVerify_Valid(t *testing.T) {
	payload := []byte(`{"ref":"refs/heads/main"}`)
	signature := Sign(payload, []byte(testSecret))

	assert.True(t, Verify(payload, signature, []byte(testSecret)))
}

func TestVerify_WrongSecret(t *testing.T) {
	payload := []byte(`{"ref":"refs/heads/main"}`)
	signature := Sign(payload, []byte("wrong-secret-at-least-32-chars-long-x"))

	assert.False(t, Verify(payload, signature, []byte(testSecret)))
}

func TestVerify_MissingHeader(t *testing.T) {
	assert.False(t, Verify([]byte(`{}`), "", []byte(testSecret)))
}

func TestVerify_MalformedSignature(t *testing.T) {
	payload := []byte(`{"ref":"refs/heads/main"}`)
	digest := Digest(payload, []byte(testSecret))

	testCases := []struct {
		name      string
		signature string
	}{
		{"no separator", "sha256" + digest},
		{"bare digest", digest},
		{"wrong algorithm", "sha1=" + digest},
		{"uppercase algorithm", "SHA256=" + digest},
		{"empty after prefix", "sha256="},
		{"only separator", "="},
		{"extra separator", "sha256==" + digest},
		{"trailing garbage", "sha256=" + digest + "=="},
		{"not hex", "sha256=zzzz"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.False(t, Verify(payload, tc.signature, []byte(testSecret)))
			})
		})
	}
}

func TestVerify_TamperedBody(t *testing.T) {
	payload := []byte(`{"ref":"refs/heads/main","after":"abc123"}`)
	signature := Sign(payload, []byte(testSecret))

	for i := range payload {
		tampered := append([]byte(nil), payload...)
		tampered[i] ^= 0x01
		assert.False(t, Verify(tampered, signature, []byte(testSecret)), "byte %d flipped", i)
	}
}

func TestVerify_RawBytesNotReserialized(t *testing.T) {
	// Same JSON value, different bytes on the wire.
	original := []byte("{\n  \"ref\": \"refs/heads/main\"\n}")
	compact := []byte(`{"ref":"refs/heads/main"}`)
	signature := Sign(original, []byte(testSecret))

	assert.True(t, Verify(original, signature, []byte(testSecret)))
	assert.False(t, Verify(compact, signature, []byte(testSecret)))
}

func TestVerify_RoundTripProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 200; i++ {
		body := randomBytes(rng, rng.IntN(512))
		secret := randomBytes(rng, 1+rng.IntN(64))
		other := append(append([]byte(nil), secret...), byte(rng.IntN(256)))

		signature := Sign(body, secret)
		assert.True(t, Verify(body, signature, secret))
		assert.False(t, Verify(body, signature, other))
	}
}

func TestVerifier(t *testing.T) {
	v := NewVerifier(testSecret)

	payload := []byte(`{"ref":"refs/heads/main"}`)
	assert.True(t, v.Verify(payload, Sign(payload, []byte(testSecret))))
	assert.Equal(t, testSecret, v.Secret())
}

func TestParseToken(t *testing.T) {
	token, ok := ParseToken("sha256=abc=def")
	assert.True(t, ok)
	assert.Equal(t, Token{Algorithm: "sha256", Digest: "abc=def"}, token)

	_, ok = ParseToken("sha256abc")
	assert.False(t, ok)

	_, ok = ParseToken("")
	assert.False(t, ok)
}

func randomBytes(rng *rand.Rand, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(rng.IntN(256))
	}
	return b
}
