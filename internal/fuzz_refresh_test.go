package internal

import (
	"strings"
	"testing"
)

// FuzzWellFormedRefreshToken exercises the shape check with arbitrary strings.
// Goal: no panics; anything accepted must decode to exactly RefreshTokenSize bytes.
func FuzzWellFormedRefreshToken(f *testing.F) {
	f.Add("")
	f.Add("abc")
	f.Add(strings.Repeat("A", EncodedRefreshTokenLen))
	f.Add(strings.Repeat("A", EncodedRefreshTokenLen+1))

	if token, err := NewRefreshToken(); err == nil {
		f.Add(token)
	}

	f.Add("!!!not-base64!!!")
	f.Add("aGVsbG8=")

	f.Fuzz(func(t *testing.T, input string) {
		if !WellFormedRefreshToken(input) {
			return
		}
		if len(input) != EncodedRefreshTokenLen {
			t.Fatalf("accepted token of length %d", len(input))
		}
	})
}

func TestNewRefreshTokenShape(t *testing.T) {
	seen := make(map[string]struct{}, 64)
	for i := 0; i < 64; i++ {
		token, err := NewRefreshToken()
		if err != nil {
			t.Fatalf("NewRefreshToken failed: %v", err)
		}
		if !WellFormedRefreshToken(token) {
			t.Fatalf("generated token is not well formed: %q", token)
		}
		if strings.ContainsAny(token, "+/=") {
			t.Fatalf("token is not base64url without padding: %q", token)
		}
		if _, dup := seen[token]; dup {
			t.Fatal("duplicate refresh token generated")
		}
		seen[token] = struct{}{}
	}
}

func TestWellFormedRefreshTokenRejectsPadding(t *testing.T) {
	token, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("NewRefreshToken failed: %v", err)
	}
	if WellFormedRefreshToken(token + "=") {
		t.Fatal("padded token should be rejected")
	}
	if WellFormedRefreshToken(token[:len(token)-1]) {
		t.Fatal("truncated token should be rejected")
	}
}
