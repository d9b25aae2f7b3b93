package service

import (
	"errors"

	"github.com/spec-kit/install-tickets/internal/repository"
	apperrors "github.com/spec-kit/install-tickets/pkg/util"
)

// mapStoreError turns repository sentinels into client-facing errors. Anything
// unrecognised passes through and renders as INTERNAL.
func mapStoreError(err error, resource string, details map[string]any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, details)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict(resource+" already exists", details)
	default:
		return err
	}
}
