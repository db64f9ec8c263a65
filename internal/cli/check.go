package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Greg-CLD/stagegate/internal/db"
	"github.com/Greg-CLD/stagegate/internal/render"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check database health and data integrity",
	Long: `Performs health checks on the database file, pragmas, schema, and data:
compound task ids that leaked into storage, duplicate factor clones, factor
tasks without a source, and event sequence drift.`,
	RunE: runCheck,
}

var (
	checkJSON    bool
	checkFix     bool
	checkVerbose bool
)

type checkResult struct {
	Name    string   `json:"name"`
	Status  string   `json:"status"` // "ok", "warning", "error"
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
}

type checkReport struct {
	Version       string        `json:"version"`
	DBPath        string        `json:"db_path"`
	Checks        []checkResult `json:"checks"`
	Warnings      int           `json:"warnings"`
	Errors        int           `json:"errors"`
	OverallStatus string        `json:"overall_status"`
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Output JSON")
	checkCmd.Flags().BoolVar(&checkFix, "fix", false, "Auto-repair event sequence drift")
	checkCmd.Flags().BoolVar(&checkVerbose, "verbose", false, "Verbose output")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	report := &checkReport{
		Version:       Version,
		DBPath:        cfg.DBPath,
		Checks:        []checkResult{},
		OverallStatus: "ok",
	}

	report.Checks = append(report.Checks, checkDatabaseFile(cfg.DBPath)...)

	database, err := db.Open(cfg.DBPath)
	if err == nil {
		defer database.Close()
		report.Checks = append(report.Checks, checkDatabasePragmas(database)...)
		report.Checks = append(report.Checks, checkSchema(database)...)
		report.Checks = append(report.Checks, checkDataIntegrity(database)...)
		report.Checks = append(report.Checks, checkSequenceDrift(database)...)
	} else {
		database = nil
		report.Checks = append(report.Checks, checkResult{
			Name:    "database_open",
			Status:  "error",
			Message: fmt.Sprintf("Failed to open database: %v", err),
		})
	}

	for _, check := range report.Checks {
		if check.Status == "warning" {
			report.Warnings++
		} else if check.Status == "error" {
			report.Errors++
			report.OverallStatus = "error"
		}
	}
	if report.Warnings > 0 && report.OverallStatus == "ok" {
		report.OverallStatus = "warning"
	}

	if checkFix && database != nil {
		applyFixes(cmd, database)
	}

	if checkJSON {
		return render.JSON(cmd.OutOrStdout(), report)
	}

	printCheckReport(cmd, report)

	if report.Errors > 0 {
		os.Exit(1)
	}

	return nil
}

func checkDatabaseFile(dbPath string) []checkResult {
	var results []checkResult

	info, err := os.Stat(dbPath)
	if err != nil {
		results = append(results, checkResult{
			Name:    "db_file_exists",
			Status:  "error",
			Message: fmt.Sprintf("Database file not found: %s", dbPath),
		})
		return results
	}

	results = append(results, checkResult{
		Name:    "db_file_exists",
		Status:  "ok",
		Message: fmt.Sprintf("Database file: %s (%.1f MB)", dbPath, float64(info.Size())/(1024*1024)),
	})

	f, err := os.OpenFile(dbPath, os.O_RDWR, 0)
	if err != nil {
		results = append(results, checkResult{
			Name:    "db_file_permissions",
			Status:  "error",
			Message: fmt.Sprintf("Database file not writable: %v", err),
		})
	} else {
		f.Close()
		results = append(results, checkResult{
			Name:    "db_file_permissions",
			Status:  "ok",
			Message: "Database file is readable and writable",
		})
	}

	return results
}

func checkDatabasePragmas(database *db.DB) []checkResult {
	var results []checkResult

	var journalMode string
	database.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if journalMode == "wal" {
		results = append(results, checkResult{
			Name:    "wal_mode",
			Status:  "ok",
			Message: "WAL mode enabled",
		})
	} else {
		results = append(results, checkResult{
			Name:    "wal_mode",
			Status:  "warning",
			Message: fmt.Sprintf("WAL mode not enabled (current: %s)", journalMode),
			Details: []string{"Run 'PRAGMA journal_mode=WAL' to enable"},
		})
	}

	var foreignKeys int
	database.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys)
	if foreignKeys == 1 {
		results = append(results, checkResult{
			Name:    "foreign_keys",
			Status:  "ok",
			Message: "Foreign keys enabled",
		})
	} else {
		results = append(results, checkResult{
			Name:    "foreign_keys",
			Status:  "error",
			Message: "Foreign keys not enabled",
			Details: []string{"Critical: foreign key constraints are not enforced"},
		})
	}

	var integrityCheck string
	database.QueryRow("PRAGMA integrity_check").Scan(&integrityCheck)
	if integrityCheck == "ok" {
		results = append(results, checkResult{
			Name:    "integrity_check",
			Status:  "ok",
			Message: "Database integrity check passed",
		})
	} else {
		results = append(results, checkResult{
			Name:    "integrity_check",
			Status:  "error",
			Message: fmt.Sprintf("Database integrity check failed: %s", integrityCheck),
			Details: []string{"Database may be corrupted", "Restore from backup recommended"},
		})
	}

	return results
}

func checkSchema(database *db.DB) []checkResult {
	var results []checkResult

	requiredTables := []string{"projects", "tasks", "event_log", "schema_migrations"}
	var missingTables []string

	for _, table := range requiredTables {
		var count int
		err := database.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil || count == 0 {
			missingTables = append(missingTables, table)
		}
	}

	if len(missingTables) == 0 {
		results = append(results, checkResult{
			Name:    "schema_tables",
			Status:  "ok",
			Message: fmt.Sprintf("All required tables present (%d/%d)", len(requiredTables), len(requiredTables)),
		})
	} else {
		results = append(results, checkResult{
			Name:    "schema_tables",
			Status:  "error",
			Message: fmt.Sprintf("Missing tables: %v", missingTables),
			Details: []string{"Run 'stagegateadm migrate' to create missing tables"},
		})
		return results
	}

	_, pending, err := database.MigrationStatus()
	if err != nil {
		results = append(results, checkResult{
			Name:    "schema_migrations",
			Status:  "error",
			Message: fmt.Sprintf("Failed to read migration status: %v", err),
		})
	} else if len(pending) == 0 {
		results = append(results, checkResult{
			Name:    "schema_migrations",
			Status:  "ok",
			Message: "No pending migrations",
		})
	} else {
		results = append(results, checkResult{
			Name:    "schema_migrations",
			Status:  "warning",
			Message: fmt.Sprintf("%d pending migration(s)", len(pending)),
			Details: []string{"Run 'stagegateadm migrate' to apply"},
		})
	}

	return results
}

func checkDataIntegrity(database *db.DB) []checkResult {
	var results []checkResult

	issues, err := db.ScanIntegrity(database)
	if err != nil {
		results = append(results, checkResult{
			Name:    "data_integrity",
			Status:  "error",
			Message: fmt.Sprintf("Failed to scan data integrity: %v", err),
		})
		return results
	}

	// Group findings per check so each class reports once
	byCheck := make(map[string][]string)
	for _, issue := range issues {
		byCheck[issue.Check] = append(byCheck[issue.Check], issue.Detail)
	}

	names := []struct {
		check   string
		ok      string
		problem string
		status  string
	}{
		{"compound_task_id", "No compound task ids in storage", "%d task id(s) carry a display suffix", "error"},
		{"duplicate_source_clone", "No duplicate factor clones", "%d factor(s) cloned more than once in a project", "error"},
		{"factor_missing_source", "All factor tasks carry a source id", "%d factor task(s) have no source id", "warning"},
	}

	for _, n := range names {
		details := byCheck[n.check]
		if len(details) == 0 {
			results = append(results, checkResult{
				Name:    n.check,
				Status:  "ok",
				Message: n.ok,
			})
			continue
		}
		results = append(results, checkResult{
			Name:    n.check,
			Status:  n.status,
			Message: fmt.Sprintf(n.problem, len(details)),
			Details: details,
		})
	}

	return results
}

func checkSequenceDrift(database *db.DB) []checkResult {
	var results []checkResult

	drift, err := db.EventSequenceDrift(database)
	if err != nil {
		results = append(results, checkResult{
			Name:    "sequence_drift",
			Status:  "error",
			Message: fmt.Sprintf("Failed to check sqlite_sequence drift: %v", err),
		})
		return results
	}

	if drift == nil {
		results = append(results, checkResult{
			Name:    "sequence_drift",
			Status:  "ok",
			Message: "event_log sqlite_sequence is in sync",
		})
		return results
	}

	results = append(results, checkResult{
		Name:    "sequence_drift",
		Status:  "error",
		Message: fmt.Sprintf("event_log sqlite_sequence drift: sqlite_sequence=%d, max_id=%d", drift.SeqValue, drift.MaxID),
		Details: []string{"Use --fix to realign the sequence"},
	})

	return results
}

func applyFixes(cmd *cobra.Command, database *db.DB) {
	fmt.Fprintln(cmd.OutOrStdout(), "\n--fix results")

	if drift, err := db.FixEventSequence(database); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Sequence repair failed: %v\n", err)
	} else if drift != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Realigned event_log sqlite_sequence to %d\n", drift.MaxID)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "No sqlite_sequence drift detected")
	}
}

func printCheckReport(cmd *cobra.Command, report *checkReport) {
	fmt.Fprintf(cmd.OutOrStdout(), "stagegateadm check v%s\n\n", report.Version)
	fmt.Fprintf(cmd.OutOrStdout(), "Database: %s\n\n", report.DBPath)

	for _, check := range report.Checks {
		icon := "✓"
		if check.Status == "warning" {
			icon = "⚠"
		} else if check.Status == "error" {
			icon = "✗"
		}

		fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n", icon, check.Message)

		if checkVerbose && len(check.Details) > 0 {
			for _, detail := range check.Details {
				fmt.Fprintf(cmd.OutOrStdout(), "      %s\n", detail)
			}
		}
	}

	fmt.Fprintln(cmd.OutOrStdout())
	if report.Errors > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Summary: %d error(s), %d warning(s)\n", report.Errors, report.Warnings)
	} else if report.Warnings > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Summary: %d warning(s)\n", report.Warnings)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Summary: All checks passed ✓\n")
	}

	if report.Warnings > 0 || report.Errors > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "\nRun with --verbose for detailed information\n")
	}
}
