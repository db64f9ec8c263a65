package snapshot

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Export reads the database and writes a canonical snapshot file.
func Export(db *sql.DB, opts ExportOptions) (*ExportResult, error) {
	if opts.OutputPath == "" {
		opts.OutputPath = DefaultPath
	}

	snap, data, err := ExportToSnapshot(db, opts)
	if err != nil {
		return nil, err
	}

	// Ensure output directory exists
	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(opts.OutputPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}

	return &ExportResult{
		OutputPath:   opts.OutputPath,
		SnapshotRev:  snap.Meta.SnapshotRev,
		ProjectCount: len(snap.Projects),
		TaskCount:    len(snap.Tasks),
		EventCount:   len(snap.Events),
	}, nil
}

// ExportToSnapshot reads the database and returns the snapshot plus its
// canonical bytes. The returned bytes embed a snapshot_rev computed over
// the document with the rev field cleared.
func ExportToSnapshot(db *sql.DB, opts ExportOptions) (*Snapshot, []byte, error) {
	snap, err := buildSnapshot(db, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build snapshot: %w", err)
	}

	data, err := CanonicalJSON(snap)
	if err != nil {
		return nil, nil, err
	}

	snap.Meta.SnapshotRev = ComputeSnapshotRev(data)

	// Re-generate with the embedded snapshot_rev
	data, err = CanonicalJSON(snap)
	if err != nil {
		return nil, nil, err
	}

	return snap, data, nil
}

func buildSnapshot(db *sql.DB, opts ExportOptions) (*Snapshot, error) {
	snap := &Snapshot{
		Meta: Meta{
			SchemaVersion: 1,
			GeneratedAt:   FormatTimestamp(time.Now()),
		},
		Projects: make(map[string]ProjectEntry),
		Tasks:    make(map[string]TaskEntry),
	}

	if err := exportProjects(db, snap); err != nil {
		return nil, fmt.Errorf("failed to export projects: %w", err)
	}

	if err := exportTasks(db, snap); err != nil {
		return nil, fmt.Errorf("failed to export tasks: %w", err)
	}

	if opts.IncludeEvents {
		if err := exportEvents(db, snap); err != nil {
			return nil, fmt.Errorf("failed to export events: %w", err)
		}
	}

	return snap, nil
}

func exportProjects(db *sql.DB, snap *Snapshot) error {
	rows, err := db.Query(`
		SELECT id, name, description, created_at, updated_at
		FROM projects
		ORDER BY id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, name, createdAt, updatedAt string
		var description sql.NullString

		if err := rows.Scan(&id, &name, &description, &createdAt, &updatedAt); err != nil {
			return err
		}

		entry := ProjectEntry{
			Name:      name,
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		}
		if description.Valid {
			entry.Description = description.String
		}

		snap.Projects[id] = entry
	}

	return rows.Err()
}

func exportTasks(db *sql.DB, snap *Snapshot) error {
	rows, err := db.Query(`
		SELECT id, project_id, source_id, origin, stage, completed, text,
		       notes, priority, owner, due_date, status,
		       created_at, updated_at
		FROM tasks
		ORDER BY id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, projectID, origin, stage, text, createdAt, updatedAt string
		var sourceID, notes, priority, owner, dueDate, status sql.NullString
		var completed int

		if err := rows.Scan(&id, &projectID, &sourceID, &origin, &stage, &completed, &text,
			&notes, &priority, &owner, &dueDate, &status,
			&createdAt, &updatedAt); err != nil {
			return err
		}

		entry := TaskEntry{
			ProjectID: projectID,
			Origin:    origin,
			Stage:     stage,
			Completed: completed != 0,
			Text:      text,
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		}

		if sourceID.Valid {
			entry.SourceID = sourceID.String
		}
		if notes.Valid {
			entry.Notes = notes.String
		}
		if priority.Valid {
			entry.Priority = priority.String
		}
		if owner.Valid {
			entry.Owner = owner.String
		}
		if dueDate.Valid {
			entry.DueDate = dueDate.String
		}
		if status.Valid {
			entry.Status = status.String
		}

		snap.Tasks[id] = entry
	}

	return rows.Err()
}

func exportEvents(db *sql.DB, snap *Snapshot) error {
	snap.Events = make(map[string]EventEntry)

	rows, err := db.Query(`
		SELECT id, timestamp, entity_type, entity_id, project_id, action, payload
		FROM event_log
		ORDER BY id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var timestamp, entityType, entityID, action string
		var projectID, payload sql.NullString

		if err := rows.Scan(&id, &timestamp, &entityType, &entityID, &projectID, &action, &payload); err != nil {
			return err
		}

		entry := EventEntry{
			ID:         id,
			Timestamp:  timestamp,
			EntityType: entityType,
			EntityID:   entityID,
			Action:     action,
		}
		if projectID.Valid {
			entry.ProjectID = projectID.String
		}
		if payload.Valid {
			entry.Payload = payload.String
		}

		snap.Events[fmt.Sprintf("%d", id)] = entry
	}

	return rows.Err()
}
