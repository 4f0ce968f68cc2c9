package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"

	"github.com/go-faster/errors"
)

// NewToken returns n random bytes, URL-safe encoded. Used for portal session
// ids and CSRF tokens.
func NewToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "read random")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// TokensEqual compares two tokens in constant time.
func TokensEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
