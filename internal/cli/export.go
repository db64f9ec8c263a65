package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Greg-CLD/stagegate/internal/render"
	"github.com/Greg-CLD/stagegate/internal/snapshot"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a canonical snapshot of the database",
	Long: `Export writes projects and tasks to a canonical JSON snapshot file.

The snapshot embeds a snapshot_rev (sha256 over the canonical document) that
import verifies before writing anything. Use --include-events to carry the
audit log along for archival; import never restores events.`,
	RunE: runExport,
}

var (
	exportOut           string
	exportIncludeEvents bool
	exportJSON          bool
)

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", snapshot.DefaultPath, "Output file path")
	exportCmd.Flags().BoolVar(&exportIncludeEvents, "include-events", false, "Include the event log in the snapshot")
	exportCmd.Flags().BoolVar(&exportJSON, "json", false, "Output result as JSON")
}

func runExport(cmd *cobra.Command, args []string) error {
	database, _, err := openMigratedDatabase(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	result, err := snapshot.Export(database.DB, snapshot.ExportOptions{
		OutputPath:    exportOut,
		IncludeEvents: exportIncludeEvents,
	})
	if err != nil {
		return err
	}

	if exportJSON {
		return render.JSON(cmd.OutOrStdout(), result)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d project(s), %d task(s)", result.ProjectCount, result.TaskCount)
	if result.EventCount > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), ", %d event(s)", result.EventCount)
	}
	fmt.Fprintf(cmd.OutOrStdout(), " to %s\n", result.OutputPath)
	fmt.Fprintf(cmd.OutOrStdout(), "snapshot_rev: %s\n", result.SnapshotRev)

	return nil
}
