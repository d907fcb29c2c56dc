package server

import (
	"crypto/subtle"
	"strings"

	"github.com/NERVsystems/osmtiles/pkg/core"
)

// MinTokenLength is the shortest bearer token accepted without a warning
const MinTokenLength = 16

var weakTokenWords = []string{"password", "secret", "token", "admin", "test", "default", "12345"}

// ValidateAuthToken reports tokens that are empty, short or built from
// common words.
func ValidateAuthToken(token string) error {
	if token == "" {
		return core.NewError(core.ErrConfig, "authentication token cannot be empty")
	}
	if len(token) < MinTokenLength {
		return core.Errorf(core.ErrConfig, "authentication token is shorter than %d characters", MinTokenLength).
			WithGuidance("Use a randomly generated token")
	}
	lower := strings.ToLower(token)
	for _, weak := range weakTokenWords {
		if strings.Contains(lower, weak) {
			return core.NewError(core.ErrConfig, "authentication token appears to be weak").
				WithGuidance("Use a randomly generated token")
		}
	}
	return nil
}

// authenticateBearer checks an Authorization header against the expected
// token in constant time. The returned reason is empty on success.
func authenticateBearer(header, expected string) (ok bool, reason string) {
	if header == "" {
		return false, "missing Authorization header"
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" {
		return false, "invalid Authorization header format"
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		return false, "invalid bearer token"
	}
	return true, ""
}
