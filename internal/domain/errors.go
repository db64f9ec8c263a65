package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the service and store layers. Callers
// classify with errors.Is; wrapped variants carry per-call detail.
var (
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrTaskNotFound      = errors.New("task not found")
	ErrProjectNotFound   = errors.New("project not found")
	ErrConflict          = errors.New("conflict")
	ErrStoreUnavailable  = errors.New("store unavailable")
)

// IntegrityWarning describes a resolver match that should have been unique
// but was not. It is logged, never returned as an error: resolution still
// proceeds deterministically.
type IntegrityWarning struct {
	ProjectID string
	RawRef    string
	Matches   []string // candidate task ids, sorted
}

func (w *IntegrityWarning) String() string {
	return fmt.Sprintf("multiple matches for %q in project %s: %v (selected %s)",
		w.RawRef, w.ProjectID, w.Matches, w.Matches[0])
}
