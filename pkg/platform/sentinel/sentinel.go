package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so the service layer can translate them into domain errors.
//
// These represent factual states about persisted resources:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: entity with the same key already exists
// - ErrCorrupt: persisted document could not be decoded
// - ErrDiverged: mirrored representations no longer agree
// - ErrUnavailable: backing service or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrCorrupt     = errors.New("corrupt")
	ErrDiverged    = errors.New("diverged")
	ErrUnavailable = errors.New("unavailable")
)
