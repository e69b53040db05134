package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
var (
	ErrNotFound           = errors.New("domain: not found")
	ErrUnauthorized       = errors.New("domain: unauthorized")
	ErrForbidden          = errors.New("domain: forbidden")
	ErrVersionConflict    = errors.New("domain: version conflict")
	ErrStorageUnavailable = errors.New("domain: storage unavailable")
	ErrFanoutUnavailable  = errors.New("domain: fanout unavailable")
)

// VersionConflictError is returned when a mutation carries a stale entity
// version. CurrentVersion lets the client re-read and rebase.
type VersionConflictError struct {
	CurrentVersion int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict: current version is %d", e.CurrentVersion)
}

// Unwrap makes errors.Is(err, ErrVersionConflict) hold.
func (e *VersionConflictError) Unwrap() error {
	return ErrVersionConflict
}
