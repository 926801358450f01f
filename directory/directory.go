package directory

import (
	"context"
	"errors"

	"github.com/MrEthical07/shelfauth/identity"
)

// ErrNotFound is returned when a subject has no directory record.
var ErrNotFound = errors.New("principal not found")

// ErrInvalidPrincipal is returned when upserting a principal without a subject.
var ErrInvalidPrincipal = errors.New("principal has no subject")

// Directory is the principal store used by login and refresh.
type Directory interface {
	Upsert(ctx context.Context, p identity.Principal) (identity.Principal, error)
	ResolvePrincipal(ctx context.Context, subjectID string) (identity.Principal, error)
	Remove(ctx context.Context, subjectID string) error
}
