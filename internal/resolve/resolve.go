// Package resolve implements task reference resolution: mapping a raw
// client-supplied reference (a clean id, a compound suffixed id, or a
// factor source id) to exactly one persisted task within one project.
//
// The algorithm is implemented once, here. Service methods and admin
// tooling all call this resolver; nothing inlines a second copy.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/Greg-CLD/stagegate/internal/domain"
	"github.com/Greg-CLD/stagegate/internal/store"
	"github.com/Greg-CLD/stagegate/internal/taskref"
)

// Resolver resolves raw task references against the store.
type Resolver struct {
	tasks *store.TaskStore
}

// New creates a Resolver backed by the given store.
func New(s *store.Store) *Resolver {
	return &Resolver{tasks: s.Tasks}
}

// Resolve finds the task a raw reference points at within a project.
// Attempts, in order, first success wins, every step filtered by project:
//
//  1. exact id match
//  2. exact source id match
//  3. canonical id match (reference parsed, suffix boundary respected)
//  4. canonical source id match
//
// A reference that matches in another project is never returned and never
// used as a fallback. Returns domain.ErrTaskNotFound when nothing matches.
func (r *Resolver) Resolve(ctx context.Context, projectID, rawRef string) (*domain.Task, error) {
	task, err := r.tasks.GetByID(ctx, projectID, rawRef)
	if err == nil {
		return task, nil
	}
	if !errors.Is(err, domain.ErrTaskNotFound) {
		return nil, err
	}

	task, err = r.tasks.GetBySourceID(ctx, projectID, rawRef)
	if err == nil {
		return task, nil
	}
	if !errors.Is(err, domain.ErrTaskNotFound) {
		return nil, err
	}

	ref := taskref.Parse(rawRef)

	candidates, err := r.tasks.FindByCanonicalID(ctx, projectID, rawRef, ref.Canonical)
	if err != nil {
		return nil, err
	}
	if task := pick(projectID, rawRef, candidates); task != nil {
		return task, nil
	}

	candidates, err = r.tasks.FindByCanonicalSourceID(ctx, projectID, rawRef, ref.Canonical)
	if err != nil {
		return nil, err
	}
	if task := pick(projectID, rawRef, candidates); task != nil {
		return task, nil
	}

	return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, rawRef)
}

// pick applies the multiple-match tie-break. Candidates arrive ordered by
// id, so the first is the lexicographically smallest. More than one match
// means the data violates the per-project uniqueness expectation; the
// selection is logged as an integrity warning, never silently ambiguous.
func pick(projectID, rawRef string, candidates []*domain.Task) *domain.Task {
	switch len(candidates) {
	case 0:
		return nil
	case 1:
		return candidates[0]
	}

	ids := make([]string, len(candidates))
	for i, t := range candidates {
		ids[i] = t.ID
	}
	warning := &domain.IntegrityWarning{ProjectID: projectID, RawRef: rawRef, Matches: ids}
	log.Printf("resolve: integrity warning: %s", warning)
	return candidates[0]
}
