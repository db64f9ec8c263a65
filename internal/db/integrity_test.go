package db

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T, migrate bool) *DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if migrate {
		if err := database.Migrate(); err != nil {
			t.Fatalf("failed to migrate database: %v", err)
		}
	}
	return database
}

func TestScanIntegrityCleanDB(t *testing.T) {
	database := openTestDB(t, true)

	if _, err := database.Exec(`
		INSERT INTO projects (id, name, created_at, updated_at)
		VALUES ('p1', 'Alpha', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')
	`); err != nil {
		t.Fatalf("failed to seed project: %v", err)
	}
	if _, err := database.Exec(`
		INSERT INTO tasks (id, project_id, source_id, origin, stage, text, created_at, updated_at)
		VALUES ('550e8400-e29b-41d4-a716-446655440000', 'p1', 'sf-7', 'factor', 'definition', 'clean row',
		        '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')
	`); err != nil {
		t.Fatalf("failed to seed task: %v", err)
	}

	issues, err := ScanIntegrity(database)
	if err != nil {
		t.Fatalf("ScanIntegrity failed: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("clean database reported %d issues: %v", len(issues), issues)
	}
}

func TestScanIntegrityLegacyData(t *testing.T) {
	// A pre-constraint tasks table, as found in databases imported from
	// before UNIQUE(project_id, source_id) existed.
	database := openTestDB(t, false)

	if _, err := database.Exec(`
		CREATE TABLE tasks (
			id         TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			source_id  TEXT,
			origin     TEXT NOT NULL DEFAULT 'custom',
			stage      TEXT NOT NULL DEFAULT 'identification',
			completed  INTEGER NOT NULL DEFAULT 0,
			text       TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`); err != nil {
		t.Fatalf("failed to create legacy table: %v", err)
	}

	seed := func(id, projectID, sourceID, origin string) {
		t.Helper()
		var src interface{}
		if sourceID != "" {
			src = sourceID
		}
		_, err := database.Exec(`
			INSERT INTO tasks (id, project_id, source_id, origin, text, created_at, updated_at)
			VALUES (?, ?, ?, ?, 'legacy', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')
		`, id, projectID, src, origin)
		if err != nil {
			t.Fatalf("failed to seed task %s: %v", id, err)
		}
	}

	// Compound id: six segments where a canonical UUID has five
	seed("550e8400-e29b-41d4-a716-446655440000-3", "p1", "", "custom")
	// Duplicate clones of sf-7 within p1
	seed("t-dup-a", "p1", "sf-7", "factor")
	seed("t-dup-b", "p1", "sf-7", "factor")
	// Factor origin with no source link
	seed("t-unsourced", "p2", "", "factor")
	// Healthy rows for contrast
	seed("t-clean", "p1", "sf-9", "factor")
	seed("sf-7-clone", "p3", "sf-7", "factor")

	issues, err := ScanIntegrity(database)
	if err != nil {
		t.Fatalf("ScanIntegrity failed: %v", err)
	}

	counts := map[string]int{}
	for _, issue := range issues {
		counts[issue.Check]++
	}
	if counts["compound_task_id"] != 1 {
		t.Errorf("compound_task_id findings = %d, want 1", counts["compound_task_id"])
	}
	if counts["duplicate_source_clone"] != 1 {
		t.Errorf("duplicate_source_clone findings = %d, want 1", counts["duplicate_source_clone"])
	}
	if counts["factor_missing_source"] != 1 {
		t.Errorf("factor_missing_source findings = %d, want 1", counts["factor_missing_source"])
	}

	for _, issue := range issues {
		if issue.Check == "duplicate_source_clone" && issue.ProjectID != "p1" {
			t.Errorf("duplicate clone reported for project %s, want p1", issue.ProjectID)
		}
	}
}

func TestEventSequenceDriftDetectAndFix(t *testing.T) {
	database := openTestDB(t, true)

	for i := 0; i < 3; i++ {
		if _, err := database.Exec(`
			INSERT INTO event_log (entity_type, entity_id, action)
			VALUES ('task', 't1', 'created')
		`); err != nil {
			t.Fatalf("failed to insert event: %v", err)
		}
	}

	drift, err := EventSequenceDrift(database)
	if err != nil {
		t.Fatalf("EventSequenceDrift failed: %v", err)
	}
	if drift != nil {
		t.Fatalf("fresh inserts reported drift: %+v", drift)
	}

	// Simulate a restore from a logical dump that reset the sequence
	if _, err := database.Exec("UPDATE sqlite_sequence SET seq = 0 WHERE name = 'event_log'"); err != nil {
		t.Fatalf("failed to reset sequence: %v", err)
	}

	drift, err = EventSequenceDrift(database)
	if err != nil {
		t.Fatalf("EventSequenceDrift failed: %v", err)
	}
	if drift == nil {
		t.Fatal("expected drift after sequence reset")
	}
	if drift.MaxID != 3 || drift.SeqValue != 0 {
		t.Errorf("drift = %+v, want max 3 seq 0", drift)
	}

	fixed, err := FixEventSequence(database)
	if err != nil {
		t.Fatalf("FixEventSequence failed: %v", err)
	}
	if fixed == nil {
		t.Fatal("FixEventSequence reported nothing repaired")
	}

	var seq int
	if err := database.QueryRow("SELECT seq FROM sqlite_sequence WHERE name = 'event_log'").Scan(&seq); err != nil {
		t.Fatalf("failed to query sqlite_sequence: %v", err)
	}
	if seq != 3 {
		t.Errorf("sequence after fix = %d, want 3", seq)
	}

	drift, err = EventSequenceDrift(database)
	if err != nil {
		t.Fatalf("EventSequenceDrift failed: %v", err)
	}
	if drift != nil {
		t.Errorf("drift remains after fix: %+v", drift)
	}
}
