package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Greg-CLD/stagegate/internal/render"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database schema and content summary",
	Long:  `Status reports the schema version plus row counts for projects, tasks, and the event log.`,
	RunE:  runStatus,
}

var statusJSON bool

type statusReport struct {
	DBPath            string `json:"db_path"`
	SchemaVersion     string `json:"schema_version"`
	PendingMigrations int    `json:"pending_migrations"`
	Projects          int    `json:"projects"`
	Tasks             int    `json:"tasks"`
	CompletedTasks    int    `json:"completed_tasks"`
	FactorClones      int    `json:"factor_clones"`
	Events            int64  `json:"events"`
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	database, cfg, err := openDatabase(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	applied, pending, err := database.MigrationStatus()
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	report := statusReport{
		DBPath:            cfg.DBPath,
		SchemaVersion:     "none",
		PendingMigrations: len(pending),
	}
	if len(applied) > 0 {
		report.SchemaVersion = applied[len(applied)-1]
	}

	// Counts only exist once the schema does
	if len(applied) > 0 {
		counts := []struct {
			query string
			dest  interface{}
		}{
			{"SELECT COUNT(*) FROM projects", &report.Projects},
			{"SELECT COUNT(*) FROM tasks", &report.Tasks},
			{"SELECT COUNT(*) FROM tasks WHERE completed = 1", &report.CompletedTasks},
			{"SELECT COUNT(*) FROM tasks WHERE origin = 'factor' AND source_id IS NOT NULL", &report.FactorClones},
			{"SELECT COUNT(*) FROM event_log", &report.Events},
		}
		for _, c := range counts {
			if err := database.QueryRow(c.query).Scan(c.dest); err != nil {
				return fmt.Errorf("failed to count rows: %w", err)
			}
		}
	}

	if statusJSON {
		return render.JSON(cmd.OutOrStdout(), report)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Database: %s\n", report.DBPath)
	fmt.Fprintf(cmd.OutOrStdout(), "Schema:   %s", report.SchemaVersion)
	if report.PendingMigrations > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), " (%d pending migration(s), run 'stagegateadm migrate')", report.PendingMigrations)
	}
	fmt.Fprintln(cmd.OutOrStdout())

	if report.SchemaVersion != "none" {
		fmt.Fprintln(cmd.OutOrStdout())
		fmt.Fprintf(cmd.OutOrStdout(), "Projects:      %d\n", report.Projects)
		fmt.Fprintf(cmd.OutOrStdout(), "Tasks:         %d (%d completed)\n", report.Tasks, report.CompletedTasks)
		fmt.Fprintf(cmd.OutOrStdout(), "Factor clones: %d\n", report.FactorClones)
		fmt.Fprintf(cmd.OutOrStdout(), "Events:        %d\n", report.Events)
	}

	return nil
}
