package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// RefreshTokenSize is the number of random bytes behind one refresh token.
const RefreshTokenSize = 64

// EncodedRefreshTokenLen is the length of a refresh token once encoded.
var EncodedRefreshTokenLen = base64.RawURLEncoding.EncodedLen(RefreshTokenSize)

var errShortRead = errors.New("short random read")

func NewRefreshToken() (string, error) {
	var raw [RefreshTokenSize]byte
	n, err := rand.Read(raw[:])
	if err != nil {
		return "", err
	}
	if n != len(raw) {
		return "", errShortRead
	}

	// base64url, no padding, safe for cookies and cache keys
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// WellFormedRefreshToken reports whether token has the shape NewRefreshToken
// produces. It says nothing about whether the token is bound.
func WellFormedRefreshToken(token string) bool {
	if len(token) != EncodedRefreshTokenLen {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return false
	}
	return len(raw) == RefreshTokenSize
}
