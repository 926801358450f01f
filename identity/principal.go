package identity

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidAssertion is returned for any assertion that cannot be trusted.
	ErrInvalidAssertion = errors.New("invalid identity assertion")
	// ErrAudienceMismatch is returned when the assertion was minted for another client.
	ErrAudienceMismatch = fmt.Errorf("%w: audience mismatch", ErrInvalidAssertion)
)

// Principal is the authenticated end user as asserted by the identity provider.
type Principal struct {
	SubjectID   string `json:"subject_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Valid reports whether p names a subject.
func (p Principal) Valid() bool {
	return p.SubjectID != ""
}

// Verifier turns a raw provider assertion into a Principal.
type Verifier interface {
	Verify(ctx context.Context, rawAssertion string) (Principal, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, rawAssertion string) (Principal, error)

func (f VerifierFunc) Verify(ctx context.Context, rawAssertion string) (Principal, error) {
	return f(ctx, rawAssertion)
}
