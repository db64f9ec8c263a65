package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/Greg-CLD/stagegate/internal/db"
)

// setupCLIDB opens and migrates a database in a temp directory.
func setupCLIDB(t *testing.T) (*db.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	database, err := db.Open(path)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := database.Migrate(); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database, path
}

// newTestCmd builds a command wired the way run functions expect: a --db
// flag pointing at the test database and a buffer capturing output.
func newTestCmd(t *testing.T, dbPath string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.Flags().String("db", dbPath, "")
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetContext(context.Background())
	return cmd, buf
}

func insertProject(t *testing.T, database *db.DB, id, name string) {
	t.Helper()
	_, err := database.Exec(`
		INSERT INTO projects (id, name, created_at, updated_at)
		VALUES (?, ?, '2025-06-01T00:00:00Z', '2025-06-01T00:00:00Z')
	`, id, name)
	if err != nil {
		t.Fatalf("failed to insert project: %v", err)
	}
}

func insertTask(t *testing.T, database *db.DB, id, projectID string, sourceID any, origin, stage, text string) {
	t.Helper()
	_, err := database.Exec(`
		INSERT INTO tasks (id, project_id, source_id, origin, stage, completed, text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, '2025-06-01T00:00:00Z', '2025-06-01T00:00:00Z')
	`, id, projectID, sourceID, origin, stage, text)
	if err != nil {
		t.Fatalf("failed to insert task: %v", err)
	}
}
