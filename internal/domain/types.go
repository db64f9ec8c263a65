package domain

import (
	"time"
)

// Stage represents a lifecycle stage of a task
type Stage string

const (
	StageIdentification Stage = "identification"
	StageDefinition     Stage = "definition"
	StageDelivery       Stage = "delivery"
	StageClosure        Stage = "closure"
)

// Stages lists all stages in lifecycle order
var Stages = []Stage{StageIdentification, StageDefinition, StageDelivery, StageClosure}

// Rank returns the position of a stage in the lifecycle order.
// Unknown stages sort after known ones.
func (s Stage) Rank() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return len(Stages)
}

// Origin distinguishes how a task came to exist
type Origin string

const (
	OriginCustom Origin = "custom"
	OriginFactor Origin = "factor"
)

// Project represents a tenant scope for tasks
type Project struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// Task represents a checklist item within exactly one project
type Task struct {
	ID        string    `json:"id" db:"id"`
	ProjectID string    `json:"projectId" db:"project_id"`
	SourceID  *string   `json:"sourceId,omitempty" db:"source_id"`
	Origin    Origin    `json:"origin" db:"origin"`
	Stage     Stage     `json:"stage" db:"stage"`
	Completed bool      `json:"completed" db:"completed"`
	Text      string    `json:"text" db:"text"`
	Notes     *string   `json:"notes,omitempty" db:"notes"`
	Priority  *string   `json:"priority,omitempty" db:"priority"`
	Owner     *string   `json:"owner,omitempty" db:"owner"`
	DueDate   *string   `json:"dueDate,omitempty" db:"due_date"`
	Status    *string   `json:"status,omitempty" db:"status"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// IsFactorClone reports whether the task was cloned from the factor catalog.
func (t *Task) IsFactorClone() bool {
	return t.Origin == OriginFactor && t.SourceID != nil && *t.SourceID != ""
}

// Event represents an entry in the audit event log
type Event struct {
	ID         int64     `json:"id" db:"id"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
	EntityType string    `json:"entity_type" db:"entity_type"`
	EntityID   string    `json:"entity_id" db:"entity_id"`
	ProjectID  *string   `json:"project_id,omitempty" db:"project_id"`
	Action     string    `json:"action" db:"action"`
	Payload    *string   `json:"payload,omitempty" db:"payload"` // JSON
}
