// Package service implements the task operations the HTTP layer and the
// admin CLI call: create, list, get, update, delete, and the catalog
// populate run. Update resolves loose client references through the
// resolver and falls back to creating the task when the reference
// resolves to nothing but the patch can stand alone.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Greg-CLD/stagegate/internal/domain"
	"github.com/Greg-CLD/stagegate/internal/events"
	"github.com/Greg-CLD/stagegate/internal/factors"
	"github.com/Greg-CLD/stagegate/internal/resolve"
	"github.com/Greg-CLD/stagegate/internal/store"
	"github.com/Greg-CLD/stagegate/internal/taskref"
)

const (
	retryAttempts  = 3
	retryBaseDelay = 50 * time.Millisecond
)

// errNoTemplate is returned by synthesize when a declared template
// clone references a template the catalog does not know and the patch
// carries no text of its own.
var errNoTemplate = errors.New("template not in catalog and patch has no text")

// TaskService is the boundary the HTTP layer and CLI call. Every
// operation validates its inputs, scopes all reads and writes to one
// project, and returns typed errors.
type TaskService struct {
	store    *store.Store
	resolver *resolve.Resolver
	catalog  *factors.Catalog
}

// New creates a TaskService. The catalog may be nil, in which case
// template clones take their content from the patch alone.
func New(s *store.Store, catalog *factors.Catalog) *TaskService {
	return &TaskService{
		store:    s,
		resolver: resolve.New(s),
		catalog:  catalog,
	}
}

// withRetry re-runs fn when the store reports transient unavailability.
// Only paths that are safe to repeat go through here.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, domain.ErrStoreUnavailable) || attempt == retryAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBaseDelay):
		}
	}
}

// validateRef rejects empty identifiers before they reach the resolver.
func validateRef(projectID, ref string) error {
	if strings.TrimSpace(projectID) == "" {
		return fmt.Errorf("%w: projectId is required", domain.ErrInvalidParameters)
	}
	if strings.TrimSpace(ref) == "" {
		return fmt.Errorf("%w: task reference is required", domain.ErrInvalidParameters)
	}
	return nil
}

// Create makes a new task with a freshly minted id. A source id already
// cloned into the project is a conflict, never a silent duplicate.
func (s *TaskService) Create(ctx context.Context, projectID string, p Patch) (*domain.Task, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("%w: projectId is required", domain.ErrInvalidParameters)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Text == nil || strings.TrimSpace(*p.Text) == "" {
		return nil, fmt.Errorf("%w: text is required", domain.ErrInvalidParameters)
	}

	exists, err := s.store.Projects.Exists(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, projectID)
	}

	if p.SourceID != nil {
		_, err := s.store.Tasks.GetBySourceID(ctx, projectID, *p.SourceID)
		if err == nil {
			return nil, fmt.Errorf("%w: source id %s already cloned into project %s", domain.ErrConflict, *p.SourceID, projectID)
		}
		if !errors.Is(err, domain.ErrTaskNotFound) {
			return nil, err
		}
	}

	params := store.CreateParams{
		ID:        taskref.NewID(),
		ProjectID: projectID,
		SourceID:  optionalPtr(p.SourceID),
		Text:      strings.TrimSpace(*p.Text),
		Notes:     optionalPtr(p.Notes),
		Priority:  optionalPtr(p.Priority),
		Owner:     optionalPtr(p.Owner),
		DueDate:   optionalPtr(p.DueDate),
		Status:    optionalPtr(p.Status),
	}
	if p.Stage != nil {
		params.Stage = domain.Stage(*p.Stage)
	}
	if p.Origin != nil {
		params.Origin = domain.Origin(*p.Origin)
	} else if params.SourceID != nil {
		params.Origin = domain.OriginFactor
	}
	if p.Completed != nil {
		params.Completed = *p.Completed
	}

	return s.store.Tasks.Create(ctx, params)
}

// Get resolves a task reference within a project.
func (s *TaskService) Get(ctx context.Context, projectID, ref string) (*domain.Task, error) {
	if err := validateRef(projectID, ref); err != nil {
		return nil, err
	}

	var task *domain.Task
	err := withRetry(ctx, func() error {
		var err error
		task, err = s.resolver.Resolve(ctx, projectID, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// List returns the project's tasks with optional stage filtering and
// keyset pagination.
func (s *TaskService) List(ctx context.Context, projectID string, params store.ListParams) (*store.ListResult, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("%w: projectId is required", domain.ErrInvalidParameters)
	}
	if params.Stage != "" {
		if err := domain.ValidateStage(params.Stage); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidParameters, err)
		}
	}

	exists, err := s.store.Projects.Exists(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, projectID)
	}

	var result *store.ListResult
	err = withRetry(ctx, func() error {
		var err error
		result, err = s.store.Tasks.List(ctx, projectID, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Update applies a merge patch to the task a reference resolves to.
// When nothing resolves and the patch can stand alone as a new task, or
// declares a template clone, the task is created instead with a freshly
// minted id; the raw reference is never stored. A patch that can do
// neither surfaces the resolver's not-found.
func (s *TaskService) Update(ctx context.Context, projectID, ref string, p Patch) (*domain.Task, error) {
	if err := validateRef(projectID, ref); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var task *domain.Task
	err := withRetry(ctx, func() error {
		var err error
		task, err = s.resolver.Resolve(ctx, projectID, ref)
		return err
	})
	if err == nil {
		return s.applyPatch(ctx, task, p)
	}
	if !errors.Is(err, domain.ErrTaskNotFound) {
		return nil, err
	}
	if !p.CanSynthesize() {
		return nil, err
	}

	created, cerr := s.synthesize(ctx, projectID, ref, p)
	if cerr == nil {
		return created, nil
	}
	if errors.Is(cerr, errNoTemplate) {
		// Declared clone of a template nobody knows: the miss stands
		return nil, err
	}
	if errors.Is(cerr, domain.ErrConflict) {
		// A concurrent clone of the same template won the insert race.
		// Its row is the one the reference now resolves to; update it.
		task, rerr := s.resolver.Resolve(ctx, projectID, ref)
		if rerr != nil {
			return nil, cerr
		}
		return s.applyPatch(ctx, task, p)
	}
	return nil, cerr
}

// Delete resolves and removes a task. A reference that resolves to
// nothing is a definitive not-found; delete never creates. The
// resolve-and-delete pass is retried as a unit on transient store
// unavailability.
func (s *TaskService) Delete(ctx context.Context, projectID, ref string) error {
	if err := validateRef(projectID, ref); err != nil {
		return err
	}

	return withRetry(ctx, func() error {
		task, err := s.resolver.Resolve(ctx, projectID, ref)
		if err != nil {
			return err
		}
		return s.store.Tasks.Delete(ctx, task.ProjectID, task.ID)
	})
}

// applyPatch merges the patch into an existing task. The stored source
// id wins over suffix-bearing values leaked from display strings,
// whether they derive from this row or another; a different clean
// value is a reassignment and is applied only when the patch carries
// an explicit origin alongside it.
func (s *TaskService) applyPatch(ctx context.Context, task *domain.Task, p Patch) (*domain.Task, error) {
	fields := make(map[string]interface{})

	if p.Text != nil {
		text := strings.TrimSpace(*p.Text)
		if text == "" {
			return nil, fmt.Errorf("%w: text cannot be empty", domain.ErrInvalidParameters)
		}
		fields["text"] = text
	}
	if p.Stage != nil {
		fields["stage"] = *p.Stage
	}
	if p.Completed != nil {
		fields["completed"] = *p.Completed
	}
	setNullable(fields, "notes", p.Notes)
	setNullable(fields, "priority", p.Priority)
	setNullable(fields, "owner", p.Owner)
	setNullable(fields, "due_date", p.DueDate)
	setNullable(fields, "status", p.Status)

	if p.Origin != nil && domain.Origin(*p.Origin) != task.Origin {
		fields["origin"] = *p.Origin
	}
	if p.SourceID != nil {
		incoming := *p.SourceID
		switch {
		case task.SourceID == nil:
			if incoming != "" && taskref.Parse(incoming).Suffix == "" {
				fields["source_id"] = incoming
			}
		case incoming == *task.SourceID,
			strings.HasPrefix(incoming, *task.SourceID+taskref.Separator):
			// The task's own source id, clean or in compound display
			// form: nothing to change.
		case taskref.Parse(incoming).Suffix != "":
			// A suffixed variant of some other row's id is display
			// leakage, not a reassignment. Suffix-bearing values are
			// never stored.
		case p.Origin != nil && incoming != "":
			fields["source_id"] = incoming
		}
	}

	var updated *domain.Task
	err := withRetry(ctx, func() error {
		var err error
		updated, err = s.store.Tasks.Update(ctx, task.ProjectID, task.ID, fields)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// synthesize creates the task an unresolved reference asked for. The id
// is always minted fresh: the reference that failed to resolve may be a
// compound display string unfit for storage.
func (s *TaskService) synthesize(ctx context.Context, projectID, rawRef string, p Patch) (*domain.Task, error) {
	exists, err := s.store.Projects.Exists(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, projectID)
	}

	params := store.CreateParams{
		ID:        taskref.NewID(),
		ProjectID: projectID,
		SourceID:  optionalPtr(p.SourceID),
		Notes:     optionalPtr(p.Notes),
		Priority:  optionalPtr(p.Priority),
		Owner:     optionalPtr(p.Owner),
		DueDate:   optionalPtr(p.DueDate),
		Status:    optionalPtr(p.Status),
	}

	isClone := p.Origin != nil && domain.Origin(*p.Origin) == domain.OriginFactor
	if params.SourceID == nil && isClone {
		// The canonical form of the reference names the template
		canonical := taskref.Parse(rawRef).Canonical
		params.SourceID = &canonical
	}

	if p.Origin != nil {
		params.Origin = domain.Origin(*p.Origin)
	} else if params.SourceID != nil {
		params.Origin = domain.OriginFactor
	}
	if p.Stage != nil {
		params.Stage = domain.Stage(*p.Stage)
	}
	if p.Completed != nil {
		params.Completed = *p.Completed
	}

	var text string
	if p.Text != nil {
		text = strings.TrimSpace(*p.Text)
	}

	// A clone with no body of its own takes text, stage, and hints from
	// the catalog entry it references.
	if params.SourceID != nil && s.catalog != nil {
		if f, ok := s.catalog.Lookup(*params.SourceID); ok {
			if text == "" {
				text = f.Text
			}
			if params.Stage == "" {
				params.Stage = domain.Stage(f.Stage)
			}
			if params.Notes == nil {
				params.Notes = f.Notes
			}
			if params.Priority == nil {
				params.Priority = f.Priority
			}
		}
	}
	if text == "" {
		return nil, errNoTemplate
	}
	params.Text = text

	task, err := s.store.Tasks.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	log.Printf("service: synthesized task %s in project %s for reference %q", task.ID, projectID, rawRef)
	return task, nil
}

// PopulateResult reports a catalog populate run.
type PopulateResult struct {
	Created  int `json:"created"`
	Existing int `json:"existing"`
}

// Populate clones every catalog factor that has no clone in the project
// yet. Repeat runs and concurrent runs converge: factors already
// cloned, including by a racing writer, are skipped.
func (s *TaskService) Populate(ctx context.Context, projectID string) (*PopulateResult, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("%w: projectId is required", domain.ErrInvalidParameters)
	}
	if s.catalog == nil {
		return nil, fmt.Errorf("no factors catalog loaded")
	}

	exists, err := s.store.Projects.Exists(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, projectID)
	}

	result := &PopulateResult{}
	for _, f := range s.catalog.All() {
		_, err := s.store.Tasks.GetBySourceID(ctx, projectID, f.ID)
		if err == nil {
			result.Existing++
			continue
		}
		if !errors.Is(err, domain.ErrTaskNotFound) {
			return nil, err
		}

		sourceID := f.ID
		_, err = s.store.Tasks.Create(ctx, store.CreateParams{
			ID:        taskref.NewID(),
			ProjectID: projectID,
			SourceID:  &sourceID,
			Origin:    domain.OriginFactor,
			Stage:     domain.Stage(f.Stage),
			Text:      f.Text,
			Notes:     f.Notes,
			Priority:  f.Priority,
		})
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				result.Existing++
				continue
			}
			return nil, err
		}
		result.Created++
	}

	ew := events.NewWriter(s.store.DB().DB)
	if err := ew.LogProjectPopulated(nil, projectID, result.Created, result.Existing); err != nil {
		log.Printf("service: failed to log populate event: %v", err)
	}
	return result, nil
}

// CreateProject creates a project.
func (s *TaskService) CreateProject(ctx context.Context, name string, description *string) (*domain.Project, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidParameters)
	}
	return s.store.Projects.Create(ctx, store.ProjectCreateParams{
		Name:        strings.TrimSpace(name),
		Description: optionalPtr(description),
	})
}

// GetProject retrieves a project by id.
func (s *TaskService) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("%w: projectId is required", domain.ErrInvalidParameters)
	}

	var project *domain.Project
	err := withRetry(ctx, func() error {
		var err error
		project, err = s.store.Projects.Get(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// ListProjects returns all projects.
func (s *TaskService) ListProjects(ctx context.Context) ([]*domain.Project, error) {
	var projects []*domain.Project
	err := withRetry(ctx, func() error {
		var err error
		projects, err = s.store.Projects.List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// DeleteProject removes a project and, through the schema's cascade
// rule, its tasks.
func (s *TaskService) DeleteProject(ctx context.Context, projectID string) error {
	if strings.TrimSpace(projectID) == "" {
		return fmt.Errorf("%w: projectId is required", domain.ErrInvalidParameters)
	}
	return s.store.Projects.Delete(ctx, projectID)
}
