package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Greg-CLD/stagegate/internal/cursor"
	"github.com/Greg-CLD/stagegate/internal/domain"
	"github.com/Greg-CLD/stagegate/internal/events"
)

// TaskStore handles task persistence operations.
type TaskStore struct {
	store *Store
}

// CreateParams contains parameters for creating a new task. ID must be
// freshly minted by the caller; the store never derives it from a client
// reference.
type CreateParams struct {
	ID        string
	ProjectID string
	SourceID  *string
	Origin    domain.Origin // defaults to "custom"
	Stage     domain.Stage  // defaults to "identification"
	Completed bool
	Text      string
	Notes     *string
	Priority  *string
	Owner     *string
	DueDate   *string
	Status    *string
}

const taskColumns = `id, project_id, source_id, origin, stage, completed, text, notes, priority, owner, due_date, status, created_at, updated_at`

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	task := &domain.Task{}
	// String intermediates for time fields since SQLite stores times as text
	var createdAt, updatedAt string
	err := row.Scan(
		&task.ID, &task.ProjectID, &task.SourceID, &task.Origin, &task.Stage,
		&task.Completed, &task.Text, &task.Notes, &task.Priority, &task.Owner,
		&task.DueDate, &task.Status, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if task.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return task, nil
}

// Create inserts a new task and logs a task created event. A source id
// already present in the project surfaces as domain.ErrConflict via the
// UNIQUE(project_id, source_id) constraint.
func (ts *TaskStore) Create(ctx context.Context, params CreateParams) (*domain.Task, error) {
	origin := params.Origin
	if origin == "" {
		origin = domain.OriginCustom
	}
	stage := params.Stage
	if stage == "" {
		stage = domain.StageIdentification
	}

	now := nowUTC()
	task := &domain.Task{
		ID:        params.ID,
		ProjectID: params.ProjectID,
		SourceID:  params.SourceID,
		Origin:    origin,
		Stage:     stage,
		Completed: params.Completed,
		Text:      params.Text,
		Notes:     params.Notes,
		Priority:  params.Priority,
		Owner:     params.Owner,
		DueDate:   params.DueDate,
		Status:    params.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := ts.store.withTx(ctx, func(tx *sql.Tx, ew *events.Writer) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (
				id, project_id, source_id, origin, stage, completed,
				text, notes, priority, owner, due_date, status,
				created_at, updated_at
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			task.ID, task.ProjectID, task.SourceID, string(task.Origin), string(task.Stage), task.Completed,
			task.Text, task.Notes, task.Priority, task.Owner, task.DueDate, task.Status,
			formatTime(now), formatTime(now),
		)
		if err != nil {
			return classify("failed to create task", err)
		}

		if err := ew.LogTaskCreated(tx, task); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// GetByID retrieves a task by exact id within a project.
func (ts *TaskStore) GetByID(ctx context.Context, projectID, id string) (*domain.Task, error) {
	row := ts.store.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = ? AND id = ?`,
		projectID, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
		}
		return nil, classify("failed to get task", err)
	}
	return task, nil
}

// GetBySourceID retrieves a task by exact source id within a project.
func (ts *TaskStore) GetBySourceID(ctx context.Context, projectID, sourceID string) (*domain.Task, error) {
	row := ts.store.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = ? AND source_id = ?`,
		projectID, sourceID)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: source %s", domain.ErrTaskNotFound, sourceID)
		}
		return nil, classify("failed to get task", err)
	}
	return task, nil
}

// FindByCanonicalID returns tasks whose id matches the canonical form of a
// reference at a separator boundary, ordered by id. Matches cover a stored
// clean id referenced by a suffixed string, a stored compound id referenced
// by its clean prefix, and the stored id being a separator-boundary prefix
// of the raw reference.
func (ts *TaskStore) FindByCanonicalID(ctx context.Context, projectID, rawRef, canonical string) ([]*domain.Task, error) {
	return ts.findCanonical(ctx, "id", projectID, rawRef, canonical)
}

// FindByCanonicalSourceID is FindByCanonicalID matching against source_id.
func (ts *TaskStore) FindByCanonicalSourceID(ctx context.Context, projectID, rawRef, canonical string) ([]*domain.Task, error) {
	return ts.findCanonical(ctx, "source_id", projectID, rawRef, canonical)
}

func (ts *TaskStore) findCanonical(ctx context.Context, column, projectID, rawRef, canonical string) ([]*domain.Task, error) {
	// The substr clauses express "stored value is a '-'-boundary prefix of
	// the raw reference" without putting stored data into a LIKE pattern.
	query := fmt.Sprintf(`
		SELECT `+taskColumns+` FROM tasks
		WHERE project_id = ?
		  AND (
			%[1]s = ?
			OR %[1]s LIKE ? ESCAPE '\'
			OR (%[1]s IS NOT NULL
				AND substr(?, 1, length(%[1]s)) = %[1]s
				AND substr(?, length(%[1]s) + 1, 1) = '-')
		  )
		ORDER BY id
	`, column)

	rows, err := ts.store.db.QueryContext(ctx, query,
		projectID, canonical, escapeLike(canonical)+"-%", rawRef, rawRef)
	if err != nil {
		return nil, classify("failed to query tasks", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// Update applies the given column values to a task and logs a task updated
// event. The updated_at refresh is applied here and is strictly greater
// than the previous value even within a single clock tick.
func (ts *TaskStore) Update(ctx context.Context, projectID, id string, fields map[string]interface{}) (*domain.Task, error) {
	var updated *domain.Task
	err := ts.store.withTx(ctx, func(tx *sql.Tx, ew *events.Writer) error {
		var prevStr string
		err := tx.QueryRowContext(ctx,
			`SELECT updated_at FROM tasks WHERE project_id = ? AND id = ?`,
			projectID, id).Scan(&prevStr)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
			}
			return classify("failed to get task", err)
		}
		prev, err := parseTime(prevStr)
		if err != nil {
			return err
		}
		now := nowUTC()
		if !now.After(prev) {
			now = prev.Add(time.Nanosecond)
		}

		setClauses := make([]string, 0, len(fields)+1)
		args := make([]interface{}, 0, len(fields)+3)
		for key, value := range fields {
			setClauses = append(setClauses, fmt.Sprintf("%s = ?", key))
			args = append(args, value)
		}
		setClauses = append(setClauses, "updated_at = ?")
		args = append(args, formatTime(now))
		args = append(args, projectID, id)

		query := fmt.Sprintf("UPDATE tasks SET %s WHERE project_id = ? AND id = ?", strings.Join(setClauses, ", "))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return classify("failed to update task", err)
		}

		row := tx.QueryRowContext(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE project_id = ? AND id = ?`,
			projectID, id)
		if updated, err = scanTask(row); err != nil {
			return classify("failed to re-read task", err)
		}

		if err := ew.LogTaskUpdated(tx, updated, fields); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a task and logs a task deleted event. Deleting an id that
// does not exist in the project returns domain.ErrTaskNotFound.
func (ts *TaskStore) Delete(ctx context.Context, projectID, id string) error {
	return ts.store.withTx(ctx, func(tx *sql.Tx, ew *events.Writer) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM tasks WHERE project_id = ? AND id = ?`,
			projectID, id)
		if err != nil {
			return classify("failed to delete task", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
		}

		if err := ew.LogTaskDeleted(tx, projectID, id); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
}

// ListParams controls task listing. Limit <= 0 returns all rows.
type ListParams struct {
	Stage  string
	Limit  int
	Cursor string
}

// ListResult is a page of tasks plus the cursor for the next page, empty
// when the listing is exhausted.
type ListResult struct {
	Tasks      []*domain.Task
	NextCursor string
}

// List returns tasks for a project ordered by creation time then id, with
// optional stage filtering and keyset pagination.
func (ts *TaskStore) List(ctx context.Context, projectID string, params ListParams) (*ListResult, error) {
	where := []string{"project_id = ?"}
	args := []interface{}{projectID}

	if params.Stage != "" {
		where = append(where, "stage = ?")
		args = append(args, params.Stage)
	}

	if params.Cursor != "" {
		cur, err := cursor.Decode(params.Cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidParameters, err)
		}
		// Sort fields feed the SQL text, so only the sort this query
		// actually uses is accepted.
		if len(cur.SortFields) != 1 || cur.SortFields[0] != "created_at" {
			return nil, fmt.Errorf("%w: unrecognized cursor", domain.ErrInvalidParameters)
		}
		clause, curArgs, err := cur.BuildWhereClause([]bool{false})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidParameters, err)
		}
		where = append(where, clause)
		args = append(args, curArgs...)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at, id`
	if params.Limit > 0 {
		// One extra row decides whether a next page exists
		query += fmt.Sprintf(" LIMIT %d", params.Limit+1)
	}

	rows, err := ts.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("failed to list tasks", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	result := &ListResult{Tasks: tasks}
	if params.Limit > 0 && len(tasks) > params.Limit {
		result.Tasks = tasks[:params.Limit]
		last := result.Tasks[len(result.Tasks)-1]
		cur, err := cursor.NewCursor([]string{"created_at"}, []interface{}{formatTime(last.CreatedAt)}, last.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to build cursor: %w", err)
		}
		encoded, err := cur.Encode()
		if err != nil {
			return nil, fmt.Errorf("failed to encode cursor: %w", err)
		}
		result.NextCursor = encoded
	}
	return result, nil
}

// CountByProject returns the number of tasks in a project.
func (ts *TaskStore) CountByProject(ctx context.Context, projectID string) (int, error) {
	var count int
	err := ts.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE project_id = ?`, projectID).Scan(&count)
	if err != nil {
		return 0, classify("failed to count tasks", err)
	}
	return count, nil
}
