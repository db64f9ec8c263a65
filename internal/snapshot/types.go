// Package snapshot provides canonical JSON state snapshots of a stagegate
// database.
//
// Snapshots are deterministic JSON documents covering projects and tasks
// (optionally the event log), designed for backups and for tracking checklist
// state in Git. Encoding is canonical: map keys sorted, no insignificant
// whitespace, and a snapshot_rev computed over the document with the rev
// field cleared.
package snapshot

import (
	"time"
)

// Snapshot is the complete exported state of a stagegate database.
type Snapshot struct {
	Meta     Meta                    `json:"meta"`
	Projects map[string]ProjectEntry `json:"projects,omitempty"`
	Tasks    map[string]TaskEntry    `json:"tasks,omitempty"`
	Events   map[string]EventEntry   `json:"events,omitempty"`
}

// Meta contains snapshot metadata.
type Meta struct {
	SchemaVersion int    `json:"schema_version"`
	SnapshotRev   string `json:"snapshot_rev,omitempty"`
	GeneratedAt   string `json:"generated_at,omitempty"`
}

// ProjectEntry represents a project in the snapshot.
// Keys under "projects" are project UUIDs.
type ProjectEntry struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// TaskEntry represents a task in the snapshot.
// Keys under "tasks" are task UUIDs.
type TaskEntry struct {
	ProjectID string `json:"project_id"`
	SourceID  string `json:"source_id,omitempty"`
	Origin    string `json:"origin"`
	Stage     string `json:"stage"`
	Completed bool   `json:"completed"`
	Text      string `json:"text"`
	Notes     string `json:"notes,omitempty"`
	Priority  string `json:"priority,omitempty"`
	Owner     string `json:"owner,omitempty"`
	DueDate   string `json:"due_date,omitempty"`
	Status    string `json:"status,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// EventEntry represents an audit event in the snapshot. Events are
// export-only: Import never writes them back.
type EventEntry struct {
	ID         int64  `json:"id"`
	Timestamp  string `json:"timestamp"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	ProjectID  string `json:"project_id,omitempty"`
	Action     string `json:"action"`
	Payload    string `json:"payload,omitempty"`
}

// ExportOptions configures snapshot export behavior.
type ExportOptions struct {
	// OutputPath is the file to write to (default: .stagegate/state.json)
	OutputPath string
	// IncludeEvents includes the full event log in the snapshot
	IncludeEvents bool
}

// ImportOptions configures snapshot import behavior.
type ImportOptions struct {
	// InputPath is the file to read from (default: .stagegate/state.json)
	InputPath string
	// DryRun validates without writing
	DryRun bool
	// IfEmpty requires the database to hold no projects or tasks
	IfEmpty bool
	// Force clears existing projects and tasks before importing
	Force bool
}

// ExportResult contains the result of an export operation.
type ExportResult struct {
	OutputPath   string `json:"out"`
	SnapshotRev  string `json:"snapshot_rev"`
	ProjectCount int    `json:"projects"`
	TaskCount    int    `json:"tasks"`
	EventCount   int    `json:"events,omitempty"`
}

// ImportResult contains the result of an import operation.
type ImportResult struct {
	InputPath    string `json:"from"`
	SnapshotRev  string `json:"snapshot_rev"`
	ProjectCount int    `json:"projects"`
	TaskCount    int    `json:"tasks"`
	DryRun       bool   `json:"dry_run,omitempty"`
}

// DefaultPath is the default snapshot file location.
const DefaultPath = ".stagegate/state.json"

// FormatTimestamp formats a time.Time as ISO-8601 with Z suffix.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
