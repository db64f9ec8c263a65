package domain

import (
	"fmt"
	"time"
)

// ValidateStage validates a task lifecycle stage
func ValidateStage(stage string) error {
	switch Stage(stage) {
	case StageIdentification, StageDefinition, StageDelivery, StageClosure:
		return nil
	default:
		return fmt.Errorf("invalid stage: must be one of: identification, definition, delivery, closure")
	}
}

// ValidateOrigin validates a task origin
func ValidateOrigin(origin string) error {
	switch Origin(origin) {
	case OriginCustom, OriginFactor:
		return nil
	default:
		return fmt.Errorf("invalid origin: must be one of: custom, factor")
	}
}

// ValidateDueDate validates a due date string. Accepts a bare date
// (2006-01-02) or a full RFC3339 timestamp.
func ValidateDueDate(s string) error {
	if _, err := time.Parse("2006-01-02", s); err == nil {
		return nil
	}
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return nil
	}
	return fmt.Errorf("invalid due date: expected YYYY-MM-DD or RFC3339")
}

// ValidateTimestamp validates and parses an RFC3339 timestamp
func ValidateTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp format: expected ISO8601/RFC3339")
	}
	return t, nil
}
