package storage

import (
	"context"
	"errors"

	"github.com/elite-furniture/api/internal/platform/auth"
)

// ErrPermissionDenied means the caller may not obtain a URL for the object.
var ErrPermissionDenied = errors.New("storage: permission denied")

// AuthorizeDownload decides whether an identity may fetch an object. Owners
// and admins pass; anonymous access must be opted into per object, which the
// receipt flow does only after the service has already vetted the caller.
func AuthorizeDownload(identity *auth.Identity, ownerID string, allowAnonymous bool) error {
	switch {
	case allowAnonymous:
		return nil
	case identity == nil:
		return ErrPermissionDenied
	case ownerID != "" && identity.UID == ownerID:
		return nil
	case identity.HasRole(auth.RoleAdmin):
		return nil
	default:
		return ErrPermissionDenied
	}
}

// AuthorizeDownloadFromContext reads the caller identity off the context and
// applies AuthorizeDownload.
func AuthorizeDownloadFromContext(ctx context.Context, ownerID string, allowAnonymous bool) (*auth.Identity, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok && !allowAnonymous {
		return nil, ErrPermissionDenied
	}
	if err := AuthorizeDownload(identity, ownerID, allowAnonymous); err != nil {
		return nil, err
	}
	return identity, nil
}
