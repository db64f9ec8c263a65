package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/Greg-CLD/stagegate/internal/domain"
)

// Import loads a snapshot file and hydrates the database. Existing rows
// with matching IDs are overwritten; rows absent from the snapshot are
// left alone unless Force is set. The event log is never touched.
func Import(db *sql.DB, opts ImportOptions) (*ImportResult, error) {
	if opts.InputPath == "" {
		opts.InputPath = DefaultPath
	}

	data, err := os.ReadFile(opts.InputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}

	if err := validateSnapshot(&snap); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}

	if opts.IfEmpty {
		empty, err := isDatabaseEmpty(db)
		if err != nil {
			return nil, fmt.Errorf("failed to check database: %w", err)
		}
		if !empty {
			return nil, fmt.Errorf("database is not empty (use --force to override)")
		}
	}

	if opts.DryRun {
		return &ImportResult{
			InputPath:    opts.InputPath,
			SnapshotRev:  snap.Meta.SnapshotRev,
			ProjectCount: len(snap.Projects),
			TaskCount:    len(snap.Tasks),
			DryRun:       true,
		}, nil
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if opts.Force {
		if err := truncateTables(tx); err != nil {
			return nil, fmt.Errorf("failed to clear tables: %w", err)
		}
	}

	// Import in dependency order: projects -> tasks
	if err := importProjects(tx, &snap); err != nil {
		return nil, fmt.Errorf("failed to import projects: %w", err)
	}

	if err := importTasks(tx, &snap); err != nil {
		return nil, fmt.Errorf("failed to import tasks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &ImportResult{
		InputPath:    opts.InputPath,
		SnapshotRev:  snap.Meta.SnapshotRev,
		ProjectCount: len(snap.Projects),
		TaskCount:    len(snap.Tasks),
	}, nil
}

func validateSnapshot(snap *Snapshot) error {
	if snap.Meta.SchemaVersion < 1 {
		return fmt.Errorf("invalid schema_version: %d", snap.Meta.SchemaVersion)
	}

	// A rev written by export must still match the document
	if err := VerifyRev(snap); err != nil {
		return err
	}

	// Tasks must reference projects present in the snapshot and carry
	// values the schema would accept
	for id, task := range snap.Tasks {
		if _, ok := snap.Projects[task.ProjectID]; !ok {
			return fmt.Errorf("task %s references unknown project %s", id, task.ProjectID)
		}
		if task.Text == "" {
			return fmt.Errorf("task %s has empty text", id)
		}
		if err := domain.ValidateOrigin(task.Origin); err != nil {
			return fmt.Errorf("task %s: %w", id, err)
		}
		if err := domain.ValidateStage(task.Stage); err != nil {
			return fmt.Errorf("task %s: %w", id, err)
		}
	}

	// Duplicate (project, source) pairs would violate the clone
	// constraint on insert; fail early with a clearer message
	seen := make(map[string]string)
	for id, task := range snap.Tasks {
		if task.SourceID == "" {
			continue
		}
		key := task.ProjectID + "\x00" + task.SourceID
		if prev, ok := seen[key]; ok {
			first, second := prev, id
			if second < first {
				first, second = second, first
			}
			return fmt.Errorf("tasks %s and %s both clone source %s in project %s", first, second, task.SourceID, task.ProjectID)
		}
		seen[key] = id
	}

	return nil
}

func isDatabaseEmpty(db *sql.DB) (bool, error) {
	var count int

	if err := db.QueryRow("SELECT COUNT(*) FROM projects").Scan(&count); err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	if err := db.QueryRow("SELECT COUNT(*) FROM tasks").Scan(&count); err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	return true, nil
}

func truncateTables(tx *sql.Tx) error {
	// Delete in reverse dependency order; event_log stays intact
	for _, table := range []string{"tasks", "projects"} {
		if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

func importProjects(tx *sql.Tx, snap *Snapshot) error {
	// Sort IDs for deterministic order
	ids := make([]string, 0, len(snap.Projects))
	for id := range snap.Projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	stmt, err := tx.Prepare(`
		INSERT INTO projects (id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range ids {
		project := snap.Projects[id]

		var description interface{}
		if project.Description != "" {
			description = project.Description
		}

		if _, err := stmt.Exec(id, project.Name, description, project.CreatedAt, project.UpdatedAt); err != nil {
			return fmt.Errorf("failed to import project %s: %w", id, err)
		}
	}

	return nil
}

func importTasks(tx *sql.Tx, snap *Snapshot) error {
	ids := make([]string, 0, len(snap.Tasks))
	for id := range snap.Tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	stmt, err := tx.Prepare(`
		INSERT INTO tasks (id, project_id, source_id, origin, stage, completed, text,
		                   notes, priority, owner, due_date, status,
		                   created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			source_id = excluded.source_id,
			origin = excluded.origin,
			stage = excluded.stage,
			completed = excluded.completed,
			text = excluded.text,
			notes = excluded.notes,
			priority = excluded.priority,
			owner = excluded.owner,
			due_date = excluded.due_date,
			status = excluded.status,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range ids {
		task := snap.Tasks[id]

		nullable := func(s string) interface{} {
			if s == "" {
				return nil
			}
			return s
		}

		completed := 0
		if task.Completed {
			completed = 1
		}

		if _, err := stmt.Exec(id, task.ProjectID, nullable(task.SourceID), task.Origin, task.Stage,
			completed, task.Text,
			nullable(task.Notes), nullable(task.Priority), nullable(task.Owner),
			nullable(task.DueDate), nullable(task.Status),
			task.CreatedAt, task.UpdatedAt); err != nil {
			return fmt.Errorf("failed to import task %s: %w", id, err)
		}
	}

	return nil
}
