package cursor

import (
	"strings"
	"testing"
)

func TestCursorEncodeDecode(t *testing.T) {
	tests := []struct {
		name   string
		cursor *Cursor
	}{
		{
			name: "single field",
			cursor: &Cursor{
				SortFields: []string{"created_at"},
				LastValues: []interface{}{"2026-03-01T10:00:00.000000000Z"},
				LastID:     "550e8400-e29b-41d4-a716-446655440000",
			},
		},
		{
			name: "multiple fields",
			cursor: &Cursor{
				SortFields: []string{"created_at", "stage"},
				LastValues: []interface{}{"2026-03-01T10:00:00.000000000Z", "delivery"},
				LastID:     "650e8400-e29b-41d4-a716-446655440111",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := tt.cursor.Encode()
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if encoded == "" {
				t.Error("Encoded cursor is empty")
			}

			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}

			if len(decoded.SortFields) != len(tt.cursor.SortFields) {
				t.Errorf("SortFields length mismatch: got %d, want %d",
					len(decoded.SortFields), len(tt.cursor.SortFields))
			}
			for i := range decoded.SortFields {
				if decoded.SortFields[i] != tt.cursor.SortFields[i] {
					t.Errorf("SortFields[%d] mismatch: got %s, want %s",
						i, decoded.SortFields[i], tt.cursor.SortFields[i])
				}
			}
			if decoded.LastID != tt.cursor.LastID {
				t.Errorf("LastID mismatch: got %s, want %s", decoded.LastID, tt.cursor.LastID)
			}
		})
	}
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
		wantErr string
	}{
		{
			name:    "empty string",
			encoded: "",
			wantErr: "empty cursor",
		},
		{
			name:    "invalid base64",
			encoded: "not-valid-base64!!!",
			wantErr: "invalid cursor encoding",
		},
		{
			name:    "invalid json",
			encoded: "bm90LWpzb24=", // "not-json" in base64
			wantErr: "invalid cursor format",
		},
		{
			name:    "missing last id",
			encoded: "eyJzb3J0X2ZpZWxkcyI6WyJjcmVhdGVkX2F0Il0sImxhc3RfdmFsdWVzIjpbIngiXSwibGFzdF9pZCI6IiJ9",
			wantErr: "cursor missing last ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.encoded)
			if err == nil {
				t.Fatal("Expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Error message mismatch: got %q, want substring %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestBuildWhereClause(t *testing.T) {
	tests := []struct {
		name       string
		cursor     *Cursor
		descending []bool
		wantSQL    string
		wantParams int
	}{
		{
			name: "single field ASC",
			cursor: &Cursor{
				SortFields: []string{"created_at"},
				LastValues: []interface{}{"2026-03-01T10:00:00.000000000Z"},
				LastID:     "550e8400-e29b-41d4-a716-446655440000",
			},
			descending: []bool{false},
			wantSQL:    "created_at > ?",
			wantParams: 3, // comparison value, equality value for tie-breaker, lastID
		},
		{
			name: "single field DESC",
			cursor: &Cursor{
				SortFields: []string{"created_at"},
				LastValues: []interface{}{"2026-03-01T10:00:00.000000000Z"},
				LastID:     "550e8400-e29b-41d4-a716-446655440000",
			},
			descending: []bool{true},
			wantSQL:    "created_at < ?",
			wantParams: 3,
		},
		{
			name: "multiple fields ASC",
			cursor: &Cursor{
				SortFields: []string{"created_at", "stage"},
				LastValues: []interface{}{"2026-03-01T10:00:00.000000000Z", "delivery"},
				LastID:     "550e8400-e29b-41d4-a716-446655440000",
			},
			descending: []bool{false, false},
			wantSQL:    "created_at > ?",
			wantParams: 6, // 1 + 2 + 3 params across the three OR levels
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := tt.cursor.BuildWhereClause(tt.descending)
			if err != nil {
				t.Fatalf("BuildWhereClause failed: %v", err)
			}

			if !strings.Contains(sql, tt.wantSQL) {
				t.Errorf("SQL doesn't contain expected pattern: got %q, want substring %q", sql, tt.wantSQL)
			}
			if len(params) != tt.wantParams {
				t.Errorf("Parameter count mismatch: got %d, want %d", len(params), tt.wantParams)
			}
			if !strings.Contains(sql, " OR ") {
				t.Error("SQL doesn't contain OR conditions")
			}
			if !strings.HasPrefix(sql, "(") || !strings.HasSuffix(sql, ")") {
				t.Errorf("SQL not parenthesized: %q", sql)
			}
		})
	}
}

func TestBuildWhereClauseMismatch(t *testing.T) {
	c := &Cursor{
		SortFields: []string{"created_at"},
		LastValues: []interface{}{"x"},
		LastID:     "id",
	}
	if _, _, err := c.BuildWhereClause([]bool{false, true}); err == nil {
		t.Error("Expected error for mismatched descending flags")
	}
}

func TestNewCursor(t *testing.T) {
	tests := []struct {
		name       string
		sortFields []string
		lastValues []interface{}
		lastID     string
		wantErr    bool
	}{
		{
			name:       "valid cursor",
			sortFields: []string{"created_at"},
			lastValues: []interface{}{"2026-03-01T10:00:00.000000000Z"},
			lastID:     "550e8400-e29b-41d4-a716-446655440000",
			wantErr:    false,
		},
		{
			name:       "mismatched lengths",
			sortFields: []string{"created_at", "stage"},
			lastValues: []interface{}{"2026-03-01T10:00:00.000000000Z"},
			lastID:     "550e8400-e29b-41d4-a716-446655440000",
			wantErr:    true,
		},
		{
			name:       "empty lastID",
			sortFields: []string{"created_at"},
			lastValues: []interface{}{"2026-03-01T10:00:00.000000000Z"},
			lastID:     "",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCursor(tt.sortFields, tt.lastValues, tt.lastID)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if c == nil {
				t.Error("Cursor is nil")
			}
		})
	}
}
