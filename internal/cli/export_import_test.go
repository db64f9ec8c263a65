package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Greg-CLD/stagegate/internal/snapshot"
)

func TestRunExportAndImport(t *testing.T) {
	database, dbPath := setupCLIDB(t)
	insertProject(t, database, "p1", "Alpha")
	insertTask(t, database, "550e8400-e29b-41d4-a716-446655440000", "p1", "sf-1", "factor", "definition", "cloned row")
	insertTask(t, database, "550e8400-e29b-41d4-a716-446655440001", "p1", nil, "custom", "identification", "custom row")

	snapPath := filepath.Join(t.TempDir(), "state.json")

	exportOut = snapPath
	exportJSON = true
	defer func() {
		exportOut = snapshot.DefaultPath
		exportJSON = false
	}()

	cmd, buf := newTestCmd(t, dbPath)
	if err := runExport(cmd, nil); err != nil {
		t.Fatalf("runExport failed: %v", err)
	}

	var exported snapshot.ExportResult
	if err := json.Unmarshal(buf.Bytes(), &exported); err != nil {
		t.Fatalf("failed to parse JSON output: %v\n%s", err, buf.String())
	}
	if exported.ProjectCount != 1 || exported.TaskCount != 2 {
		t.Errorf("Exported %d project(s), %d task(s), want 1 and 2", exported.ProjectCount, exported.TaskCount)
	}
	if !strings.HasPrefix(exported.SnapshotRev, "sha256:") {
		t.Errorf("SnapshotRev = %q, want sha256 prefix", exported.SnapshotRev)
	}
	if _, err := os.Stat(snapPath); err != nil {
		t.Fatalf("Snapshot file not written: %v", err)
	}

	// Restore into a fresh database
	restored, restoredPath := setupCLIDB(t)

	importFrom = snapPath
	importJSON = true
	defer func() {
		importFrom = snapshot.DefaultPath
		importJSON = false
	}()

	cmd2, buf2 := newTestCmd(t, restoredPath)
	if err := runImport(cmd2, nil); err != nil {
		t.Fatalf("runImport failed: %v", err)
	}

	var imported snapshot.ImportResult
	if err := json.Unmarshal(buf2.Bytes(), &imported); err != nil {
		t.Fatalf("failed to parse JSON output: %v\n%s", err, buf2.String())
	}
	if imported.ProjectCount != 1 || imported.TaskCount != 2 {
		t.Errorf("Imported %d project(s), %d task(s), want 1 and 2", imported.ProjectCount, imported.TaskCount)
	}
	if imported.SnapshotRev != exported.SnapshotRev {
		t.Errorf("Import rev %s != export rev %s", imported.SnapshotRev, exported.SnapshotRev)
	}

	var taskCount int
	if err := restored.QueryRow("SELECT COUNT(*) FROM tasks").Scan(&taskCount); err != nil {
		t.Fatalf("failed to count restored tasks: %v", err)
	}
	if taskCount != 2 {
		t.Errorf("Restored task count = %d, want 2", taskCount)
	}
}

func TestRunImportDryRun(t *testing.T) {
	database, dbPath := setupCLIDB(t)
	insertProject(t, database, "p1", "Alpha")

	snapPath := filepath.Join(t.TempDir(), "state.json")

	exportOut = snapPath
	defer func() { exportOut = snapshot.DefaultPath }()

	cmd, _ := newTestCmd(t, dbPath)
	if err := runExport(cmd, nil); err != nil {
		t.Fatalf("runExport failed: %v", err)
	}

	target, targetPath := setupCLIDB(t)

	importFrom = snapPath
	importDryRun = true
	defer func() {
		importFrom = snapshot.DefaultPath
		importDryRun = false
	}()

	cmd2, buf2 := newTestCmd(t, targetPath)
	if err := runImport(cmd2, nil); err != nil {
		t.Fatalf("runImport failed: %v", err)
	}

	if !strings.Contains(buf2.String(), "Validated") {
		t.Errorf("Expected dry-run phrasing, got:\n%s", buf2.String())
	}

	var projectCount int
	if err := target.QueryRow("SELECT COUNT(*) FROM projects").Scan(&projectCount); err != nil {
		t.Fatalf("failed to count projects: %v", err)
	}
	if projectCount != 0 {
		t.Errorf("Dry run wrote %d project(s)", projectCount)
	}
}

func TestRunImportMissingFile(t *testing.T) {
	_, dbPath := setupCLIDB(t)

	importFrom = filepath.Join(t.TempDir(), "absent.json")
	defer func() { importFrom = snapshot.DefaultPath }()

	cmd, _ := newTestCmd(t, dbPath)

	if err := runImport(cmd, nil); err == nil {
		t.Fatal("Expected error for missing snapshot file")
	}
}
