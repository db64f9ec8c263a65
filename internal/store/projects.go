package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Greg-CLD/stagegate/internal/domain"
	"github.com/Greg-CLD/stagegate/internal/events"
)

// ProjectStore handles project persistence operations.
type ProjectStore struct {
	store *Store
}

// ProjectCreateParams contains parameters for creating a new project.
type ProjectCreateParams struct {
	ID          string // optional: minted when empty
	Name        string
	Description *string
}

const projectColumns = `id, name, description, created_at, updated_at`

func scanProject(row *sql.Row) (*domain.Project, error) {
	project := &domain.Project{}
	var createdAt, updatedAt string
	err := row.Scan(&project.ID, &project.Name, &project.Description, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if project.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if project.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return project, nil
}

// Create creates a new project and logs a project created event.
func (ps *ProjectStore) Create(ctx context.Context, params ProjectCreateParams) (*domain.Project, error) {
	id := params.ID
	if id == "" {
		id = uuid.NewString()
	}

	now := nowUTC()
	project := &domain.Project{
		ID:          id,
		Name:        params.Name,
		Description: params.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := ps.store.withTx(ctx, func(tx *sql.Tx, ew *events.Writer) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projects (id, name, description, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, project.ID, project.Name, project.Description, formatTime(now), formatTime(now))
		if err != nil {
			return classify("failed to create project", err)
		}

		if err := ew.LogProjectCreated(tx, project); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// Get retrieves a project by id.
func (ps *ProjectStore) Get(ctx context.Context, id string) (*domain.Project, error) {
	row := ps.store.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, id)
		}
		return nil, classify("failed to get project", err)
	}
	return project, nil
}

// Exists reports whether a project with the given id exists.
func (ps *ProjectStore) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := ps.store.db.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id = ?`, id).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, classify("failed to check project", err)
	}
	return true, nil
}

// List returns all projects in creation order.
func (ps *ProjectStore) List(ctx context.Context) ([]*domain.Project, error) {
	rows, err := ps.store.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at, id`)
	if err != nil {
		return nil, classify("failed to list projects", err)
	}
	defer rows.Close()

	var projects []*domain.Project
	for rows.Next() {
		project := &domain.Project{}
		var createdAt, updatedAt string
		if err := rows.Scan(&project.ID, &project.Name, &project.Description, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		if project.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if project.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

// Delete removes a project. Tasks belonging to it are removed by the
// schema's cascade rule.
func (ps *ProjectStore) Delete(ctx context.Context, id string) error {
	return ps.store.withTx(ctx, func(tx *sql.Tx, ew *events.Writer) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
		if err != nil {
			return classify("failed to delete project", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", domain.ErrProjectNotFound, id)
		}

		if err := ew.LogProjectDeleted(tx, id); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
}
