package db

import (
	"database/sql"
	"fmt"
)

// IntegrityIssue is a single finding from an integrity scan.
type IntegrityIssue struct {
	Check     string `json:"check"`
	ProjectID string `json:"project_id,omitempty"`
	Detail    string `json:"detail"`
}

// SequenceDrift captures drift between sqlite_sequence and the max
// existing event id.
type SequenceDrift struct {
	MaxID    int `json:"max_id"`
	SeqValue int `json:"seq_value"`
}

type sqlExecutor interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// ScanIntegrity runs the row-level data checks and returns every finding.
// The checks target the defect classes task resolution defends against at
// read time: compound identifiers persisted as row ids, duplicate clones
// of one template within a project, and factor clones missing their
// source link. A healthy database returns an empty slice.
func ScanIntegrity(exec sqlExecutor) ([]IntegrityIssue, error) {
	issues := []IntegrityIssue{}

	compound, err := compoundTaskIDs(exec)
	if err != nil {
		return nil, err
	}
	issues = append(issues, compound...)

	duplicates, err := duplicateSourceClones(exec)
	if err != nil {
		return nil, err
	}
	issues = append(issues, duplicates...)

	missing, err := factorTasksMissingSource(exec)
	if err != nil {
		return nil, err
	}
	issues = append(issues, missing...)

	return issues, nil
}

// compoundTaskIDs finds stored task ids carrying more hyphen-delimited
// segments than a canonical UUID. The reference parser splits such
// strings, so these rows are only reachable through the resolver's
// canonical matching steps.
func compoundTaskIDs(exec sqlExecutor) ([]IntegrityIssue, error) {
	rows, err := exec.Query(`
		SELECT id, project_id FROM tasks
		WHERE length(id) - length(replace(id, '-', '')) > 4
		ORDER BY project_id, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan for compound task ids: %w", err)
	}
	defer rows.Close()

	var issues []IntegrityIssue
	for rows.Next() {
		var id, projectID string
		if err := rows.Scan(&id, &projectID); err != nil {
			return nil, fmt.Errorf("failed to scan compound id row: %w", err)
		}
		issues = append(issues, IntegrityIssue{
			Check:     "compound_task_id",
			ProjectID: projectID,
			Detail:    fmt.Sprintf("task id %q has a suffix beyond the canonical segment count", id),
		})
	}
	return issues, rows.Err()
}

// duplicateSourceClones finds projects holding more than one clone of
// the same template. The schema's UNIQUE(project_id, source_id)
// constraint prevents new occurrences; data imported from before the
// constraint existed can still carry them.
func duplicateSourceClones(exec sqlExecutor) ([]IntegrityIssue, error) {
	rows, err := exec.Query(`
		SELECT project_id, source_id, COUNT(*) FROM tasks
		WHERE source_id IS NOT NULL
		GROUP BY project_id, source_id
		HAVING COUNT(*) > 1
		ORDER BY project_id, source_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan for duplicate clones: %w", err)
	}
	defer rows.Close()

	var issues []IntegrityIssue
	for rows.Next() {
		var projectID, sourceID string
		var count int
		if err := rows.Scan(&projectID, &sourceID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate clone row: %w", err)
		}
		issues = append(issues, IntegrityIssue{
			Check:     "duplicate_source_clone",
			ProjectID: projectID,
			Detail:    fmt.Sprintf("source id %q cloned %d times; resolution tie-breaks to the smallest task id", sourceID, count),
		})
	}
	return issues, rows.Err()
}

// factorTasksMissingSource finds factor-origin tasks with no source id.
// Such rows can never be matched by a template reference.
func factorTasksMissingSource(exec sqlExecutor) ([]IntegrityIssue, error) {
	rows, err := exec.Query(`
		SELECT id, project_id FROM tasks
		WHERE origin = 'factor' AND (source_id IS NULL OR source_id = '')
		ORDER BY project_id, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan for unsourced factor tasks: %w", err)
	}
	defer rows.Close()

	var issues []IntegrityIssue
	for rows.Next() {
		var id, projectID string
		if err := rows.Scan(&id, &projectID); err != nil {
			return nil, fmt.Errorf("failed to scan unsourced factor row: %w", err)
		}
		issues = append(issues, IntegrityIssue{
			Check:     "factor_missing_source",
			ProjectID: projectID,
			Detail:    fmt.Sprintf("task %q has origin factor but no source id", id),
		})
	}
	return issues, rows.Err()
}

// EventSequenceDrift reports when sqlite_sequence for event_log sits
// below the highest existing event id, which happens after restoring
// from a logical dump. Returns nil when the sequence is aligned.
func EventSequenceDrift(exec sqlExecutor) (*SequenceDrift, error) {
	var maxID int
	if err := exec.QueryRow("SELECT COALESCE(MAX(id), 0) FROM event_log").Scan(&maxID); err != nil {
		return nil, fmt.Errorf("failed to compute max event id: %w", err)
	}

	var seq sql.NullInt64
	err := exec.QueryRow("SELECT seq FROM sqlite_sequence WHERE name = 'event_log'").Scan(&seq)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read sqlite_sequence: %w", err)
	}
	seqValue := 0
	if seq.Valid {
		seqValue = int(seq.Int64)
	}

	if seqValue >= maxID {
		return nil, nil
	}
	return &SequenceDrift{MaxID: maxID, SeqValue: seqValue}, nil
}

// FixEventSequence raises sqlite_sequence to the max existing event id.
// Returns the drift that was repaired, or nil when none existed.
func FixEventSequence(exec sqlExecutor) (*SequenceDrift, error) {
	drift, err := EventSequenceDrift(exec)
	if err != nil || drift == nil {
		return nil, err
	}

	res, err := exec.Exec("UPDATE sqlite_sequence SET seq = ? WHERE name = 'event_log'", drift.MaxID)
	if err != nil {
		return nil, fmt.Errorf("failed to update sqlite_sequence: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := exec.Exec("INSERT INTO sqlite_sequence (name, seq) VALUES ('event_log', ?)", drift.MaxID); err != nil {
			return nil, fmt.Errorf("failed to seed sqlite_sequence: %w", err)
		}
	}
	return drift, nil
}
