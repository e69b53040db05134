package v1

import (
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/collabboard/collabboard/internal/domain"
)

// mapDomainError translates domain failures into HTTP problem responses.
// A version conflict reports the current version so the client can re-read
// and rebase before retrying; the server never auto-merges.
func mapDomainError(err error, action string) error {
	var conflict *domain.VersionConflictError
	if errors.As(err, &conflict) {
		return huma.Error409Conflict(
			fmt.Sprintf("version mismatch: current version is %d", conflict.CurrentVersion))
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound("not found")
	case errors.Is(err, domain.ErrForbidden):
		return huma.Error403Forbidden("no access to this board")
	case errors.Is(err, domain.ErrUnauthorized):
		return huma.Error401Unauthorized("invalid credentials")
	case errors.Is(err, domain.ErrStorageUnavailable):
		return huma.Error503ServiceUnavailable("storage unavailable, safe to retry")
	default:
		return huma.Error500InternalServerError("failed to "+action, err)
	}
}
