// Package cursor implements opaque keyset-pagination cursors for list
// endpoints. A cursor records the sort fields and the last row seen; the
// generated WHERE clause resumes the scan strictly after that row.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Cursor represents a pagination cursor with sort fields and last seen values
type Cursor struct {
	SortFields []string      `json:"sort_fields"`
	LastValues []interface{} `json:"last_values"`
	LastID     string        `json:"last_id"`
}

// NewCursor creates a cursor from the last row of a page
func NewCursor(sortFields []string, lastValues []interface{}, lastID string) (*Cursor, error) {
	if len(sortFields) != len(lastValues) {
		return nil, fmt.Errorf("sort fields and last values length mismatch")
	}
	if lastID == "" {
		return nil, fmt.Errorf("last ID required")
	}
	return &Cursor{SortFields: sortFields, LastValues: lastValues, LastID: lastID}, nil
}

// Encode serializes the cursor to an opaque base64 string
func (c *Cursor) Encode() (string, error) {
	if len(c.SortFields) != len(c.LastValues) {
		return "", fmt.Errorf("sort fields and last values length mismatch")
	}

	jsonData, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(jsonData), nil
}

// Decode deserializes a cursor from an opaque base64 string
func Decode(encoded string) (*Cursor, error) {
	if encoded == "" {
		return nil, fmt.Errorf("empty cursor string")
	}

	jsonData, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(jsonData, &c); err != nil {
		return nil, fmt.Errorf("invalid cursor format: %w", err)
	}

	if len(c.SortFields) == 0 {
		return nil, fmt.Errorf("cursor missing sort fields")
	}
	if len(c.SortFields) != len(c.LastValues) {
		return nil, fmt.Errorf("cursor sort fields and values length mismatch")
	}
	if c.LastID == "" {
		return nil, fmt.Errorf("cursor missing last ID")
	}

	return &c, nil
}

// BuildWhereClause constructs the SQL resume condition for the cursor.
// Returns the clause and its bind parameters. For ORDER BY a, b, id it
// generates:
//
//	(a > ?) OR (a = ? AND b > ?) OR (a = ? AND b = ? AND id > ?)
//
// with comparisons flipped per the descending flags.
func (c *Cursor) BuildWhereClause(descending []bool) (string, []interface{}, error) {
	if len(c.SortFields) != len(descending) {
		return "", nil, fmt.Errorf("sort fields and descending flags length mismatch")
	}

	var params []interface{}
	var orConditions []string

	compareOp := func(desc bool) string {
		if desc {
			return "<"
		}
		return ">"
	}

	// Level i: equality on fields 0..i-1, strict comparison on field i.
	for i := 0; i < len(c.SortFields); i++ {
		var andParts []string
		for j := 0; j < i; j++ {
			andParts = append(andParts, fmt.Sprintf("%s = ?", c.SortFields[j]))
			params = append(params, c.LastValues[j])
		}
		andParts = append(andParts, fmt.Sprintf("%s %s ?", c.SortFields[i], compareOp(descending[i])))
		params = append(params, c.LastValues[i])

		if len(andParts) == 1 {
			orConditions = append(orConditions, andParts[0])
		} else {
			orConditions = append(orConditions, "("+strings.Join(andParts, " AND ")+")")
		}
	}

	// Final level: equality on every sort field, id as the tie-breaker in
	// the direction of the last sort field.
	var andParts []string
	for j := 0; j < len(c.SortFields); j++ {
		andParts = append(andParts, fmt.Sprintf("%s = ?", c.SortFields[j]))
		params = append(params, c.LastValues[j])
	}
	lastDesc := len(descending) > 0 && descending[len(descending)-1]
	andParts = append(andParts, fmt.Sprintf("id %s ?", compareOp(lastDesc)))
	params = append(params, c.LastID)
	orConditions = append(orConditions, "("+strings.Join(andParts, " AND ")+")")

	return "(" + strings.Join(orConditions, " OR ") + ")", params, nil
}
