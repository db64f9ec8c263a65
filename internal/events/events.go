package events

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Greg-CLD/stagegate/internal/domain"
)

// Writer handles writing events to the event log
type Writer struct {
	db *sql.DB
}

// NewWriter creates a new event writer
func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// LogEvent writes an event to the event log
func (w *Writer) LogEvent(tx *sql.Tx, event *domain.Event) error {
	query := `
		INSERT INTO event_log (entity_type, entity_id, project_id, action, payload)
		VALUES (?, ?, ?, ?, ?)
	`

	executor := w.getExecutor(tx)
	_, err := executor.Exec(query, event.EntityType, event.EntityID, event.ProjectID, event.Action, event.Payload)
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// LogTaskCreated logs a task creation event
func (w *Writer) LogTaskCreated(tx *sql.Tx, task *domain.Task) error {
	payload, err := json.Marshal(map[string]interface{}{
		"text":   task.Text,
		"stage":  task.Stage,
		"origin": task.Origin,
	})
	if err != nil {
		return err
	}

	payloadStr := string(payload)
	event := &domain.Event{
		EntityType: "task",
		EntityID:   task.ID,
		ProjectID:  &task.ProjectID,
		Action:     "created",
		Payload:    &payloadStr,
	}

	return w.LogEvent(tx, event)
}

// LogTaskUpdated logs a task update event with the changed fields
func (w *Writer) LogTaskUpdated(tx *sql.Tx, task *domain.Task, changes map[string]interface{}) error {
	payload, err := json.Marshal(changes)
	if err != nil {
		return err
	}

	payloadStr := string(payload)
	event := &domain.Event{
		EntityType: "task",
		EntityID:   task.ID,
		ProjectID:  &task.ProjectID,
		Action:     "updated",
		Payload:    &payloadStr,
	}

	return w.LogEvent(tx, event)
}

// LogTaskDeleted logs a task deletion event
func (w *Writer) LogTaskDeleted(tx *sql.Tx, projectID, taskID string) error {
	event := &domain.Event{
		EntityType: "task",
		EntityID:   taskID,
		ProjectID:  &projectID,
		Action:     "deleted",
	}

	return w.LogEvent(tx, event)
}

// LogProjectCreated logs a project creation event
func (w *Writer) LogProjectCreated(tx *sql.Tx, project *domain.Project) error {
	payload, err := json.Marshal(map[string]interface{}{
		"name": project.Name,
	})
	if err != nil {
		return err
	}

	payloadStr := string(payload)
	event := &domain.Event{
		EntityType: "project",
		EntityID:   project.ID,
		ProjectID:  &project.ID,
		Action:     "created",
		Payload:    &payloadStr,
	}

	return w.LogEvent(tx, event)
}

// LogProjectDeleted logs a project deletion event
func (w *Writer) LogProjectDeleted(tx *sql.Tx, projectID string) error {
	event := &domain.Event{
		EntityType: "project",
		EntityID:   projectID,
		ProjectID:  &projectID,
		Action:     "deleted",
	}

	return w.LogEvent(tx, event)
}

// LogProjectPopulated logs a catalog populate run against a project
func (w *Writer) LogProjectPopulated(tx *sql.Tx, projectID string, created, existing int) error {
	payload, err := json.Marshal(map[string]interface{}{
		"created":  created,
		"existing": existing,
	})
	if err != nil {
		return err
	}

	payloadStr := string(payload)
	event := &domain.Event{
		EntityType: "project",
		EntityID:   projectID,
		ProjectID:  &projectID,
		Action:     "populated",
		Payload:    &payloadStr,
	}

	return w.LogEvent(tx, event)
}

// getExecutor returns the appropriate executor (tx or db)
func (w *Writer) getExecutor(tx *sql.Tx) interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
} {
	if tx != nil {
		return tx
	}
	return w.db
}
