package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Greg-CLD/stagegate/internal/render"
	"github.com/Greg-CLD/stagegate/internal/snapshot"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Restore projects and tasks from a snapshot",
	Long: `Import reads a snapshot file written by export and hydrates the
database. Rows with matching ids are overwritten; other rows are kept unless
--force clears projects and tasks first. The event log is never touched.

The snapshot's embedded snapshot_rev is verified before anything is written.
Use --dry-run to validate a snapshot without importing it.`,
	RunE: runImport,
}

var (
	importFrom    string
	importDryRun  bool
	importIfEmpty bool
	importForce   bool
	importJSON    bool
)

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVarP(&importFrom, "from", "f", snapshot.DefaultPath, "Snapshot file to read")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate the snapshot without writing")
	importCmd.Flags().BoolVar(&importIfEmpty, "if-empty", false, "Require the database to hold no projects or tasks")
	importCmd.Flags().BoolVar(&importForce, "force", false, "Clear existing projects and tasks before importing")
	importCmd.Flags().BoolVar(&importJSON, "json", false, "Output result as JSON")
}

func runImport(cmd *cobra.Command, args []string) error {
	database, _, err := openMigratedDatabase(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	result, err := snapshot.Import(database.DB, snapshot.ImportOptions{
		InputPath: importFrom,
		DryRun:    importDryRun,
		IfEmpty:   importIfEmpty,
		Force:     importForce,
	})
	if err != nil {
		return err
	}

	if importJSON {
		return render.JSON(cmd.OutOrStdout(), result)
	}

	verb := "Imported"
	if result.DryRun {
		verb = "Validated"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d project(s), %d task(s) from %s\n",
		verb, result.ProjectCount, result.TaskCount, result.InputPath)

	return nil
}
