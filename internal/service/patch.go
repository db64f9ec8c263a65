package service

import (
	"fmt"
	"strings"

	"github.com/Greg-CLD/stagegate/internal/domain"
)

// Patch is a merge patch for a task. A nil pointer is a field the
// caller did not send; for the nullable fields (notes, priority, owner,
// dueDate, status) a pointer to the empty string clears the stored
// value. Empty origin and sourceId values are dropped during decoding,
// so for those two a non-nil pointer is always a real reassignment.
type Patch struct {
	Text      *string
	Stage     *string
	Origin    *string
	SourceID  *string
	Completed *bool
	Notes     *string
	Priority  *string
	Owner     *string
	DueDate   *string
	Status    *string
}

// DecodePatch builds a Patch from a decoded JSON object. Unknown keys
// are ignored; a present key with a value that cannot be coerced is an
// error, never silently dropped.
func DecodePatch(fields map[string]interface{}) (Patch, error) {
	var p Patch
	for key, value := range fields {
		switch key {
		case "text":
			s, err := stringField(key, value)
			if err != nil {
				return Patch{}, err
			}
			p.Text = &s
		case "stage":
			s, err := stringField(key, value)
			if err != nil {
				return Patch{}, err
			}
			p.Stage = &s
		case "origin":
			s, err := stringField(key, value)
			if err != nil {
				return Patch{}, err
			}
			if s != "" {
				p.Origin = &s
			}
		case "sourceId":
			s, err := stringField(key, value)
			if err != nil {
				return Patch{}, err
			}
			if s != "" {
				p.SourceID = &s
			}
		case "completed":
			b, ok := coerceBool(value)
			if !ok {
				return Patch{}, fmt.Errorf("%w: completed must be a boolean, 0/1, or \"true\"/\"false\"", domain.ErrInvalidParameters)
			}
			p.Completed = &b
		case "notes":
			s, err := nullableField(key, value)
			if err != nil {
				return Patch{}, err
			}
			p.Notes = &s
		case "priority":
			s, err := nullableField(key, value)
			if err != nil {
				return Patch{}, err
			}
			p.Priority = &s
		case "owner":
			s, err := nullableField(key, value)
			if err != nil {
				return Patch{}, err
			}
			p.Owner = &s
		case "dueDate":
			s, err := nullableField(key, value)
			if err != nil {
				return Patch{}, err
			}
			p.DueDate = &s
		case "status":
			s, err := nullableField(key, value)
			if err != nil {
				return Patch{}, err
			}
			p.Status = &s
		}
	}
	return p, nil
}

// Validate checks the formats of whatever fields the patch carries.
func (p Patch) Validate() error {
	if p.Stage != nil {
		if err := domain.ValidateStage(*p.Stage); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidParameters, err)
		}
	}
	if p.Origin != nil {
		if err := domain.ValidateOrigin(*p.Origin); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidParameters, err)
		}
	}
	if p.DueDate != nil && *p.DueDate != "" {
		if err := domain.ValidateDueDate(*p.DueDate); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidParameters, err)
		}
	}
	return nil
}

// CanSynthesize reports whether the patch carries enough to create a
// task when the reference it was sent against resolves to nothing:
// either a full task body (text plus a valid stage), or a declared
// template clone, whose source id can fall back to the canonical form
// of the reference itself.
func (p Patch) CanSynthesize() bool {
	if p.Text != nil && strings.TrimSpace(*p.Text) != "" &&
		p.Stage != nil && domain.ValidateStage(*p.Stage) == nil {
		return true
	}
	return p.Origin != nil && domain.Origin(*p.Origin) == domain.OriginFactor
}

// IsEmpty reports whether the patch carries no fields at all.
func (p Patch) IsEmpty() bool {
	return p.Text == nil && p.Stage == nil && p.Origin == nil && p.SourceID == nil &&
		p.Completed == nil && p.Notes == nil && p.Priority == nil && p.Owner == nil &&
		p.DueDate == nil && p.Status == nil
}

func stringField(key string, value interface{}) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", domain.ErrInvalidParameters, key)
	}
	return s, nil
}

// nullableField accepts a string or JSON null; null clears like the
// empty string does.
func nullableField(key string, value interface{}) (string, error) {
	if value == nil {
		return "", nil
	}
	return stringField(key, value)
}

// coerceBool accepts booleans plus the loose encodings clients have
// historically sent for completed: 0/1 numbers and "true"/"false"
// strings.
func coerceBool(value interface{}) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case float64:
		if v == 0 {
			return false, true
		}
		if v == 1 {
			return true, true
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
	}
	return false, false
}

// setNullable stages a nullable column update: an absent pointer leaves
// the column untouched, the empty string clears it to NULL.
func setNullable(fields map[string]interface{}, column string, v *string) {
	if v == nil {
		return
	}
	if *v == "" {
		fields[column] = nil
		return
	}
	fields[column] = *v
}

// optionalPtr normalizes an optional field for insertion: nil or empty
// becomes an absent column value.
func optionalPtr(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	out := *v
	return &out
}
