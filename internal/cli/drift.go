package cli

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/Greg-CLD/stagegate/internal/factors"
	"github.com/Greg-CLD/stagegate/internal/render"
	"github.com/Greg-CLD/stagegate/internal/service"
	"github.com/Greg-CLD/stagegate/internal/store"
)

var driftCmd = &cobra.Command{
	Use:   "drift <project-id>",
	Short: "Show how a project's cloned tasks diverge from the catalog",
	Long: `Drift compares every factor clone in a project against the catalog
entry it was cloned from and prints a unified diff of text and notes.

Edited clones are expected - projects adapt their checklists - so drift is a
report, not an error. Clones whose factor has left the catalog are listed as
orphaned.`,
	Args: cobra.ExactArgs(1),
	RunE: runDrift,
}

var (
	driftJSON bool
	driftFile string
)

// driftEntry describes one clone that no longer matches its factor.
type driftEntry struct {
	TaskID   string `json:"task_id"`
	SourceID string `json:"source_id"`
	Orphaned bool   `json:"orphaned,omitempty"`
	Diff     string `json:"diff,omitempty"`
}

type driftReport struct {
	ProjectID string       `json:"project_id"`
	Clones    int          `json:"clones"`
	Clean     int          `json:"clean"`
	Drifted   []driftEntry `json:"drifted,omitempty"`
}

func init() {
	rootCmd.AddCommand(driftCmd)
	driftCmd.Flags().BoolVar(&driftJSON, "json", false, "Output as JSON")
	driftCmd.Flags().StringVar(&driftFile, "file", "", "Load the catalog from a YAML file instead")
}

func runDrift(cmd *cobra.Command, args []string) error {
	projectID := args[0]

	database, _, err := openMigratedDatabase(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	var catalog *factors.Catalog
	if driftFile != "" {
		catalog, err = factors.LoadFile(driftFile)
	} else {
		catalog, err = factors.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load factors catalog: %w", err)
	}

	svc := service.New(store.New(database), catalog)
	result, err := svc.List(cmd.Context(), projectID, store.ListParams{})
	if err != nil {
		return err
	}

	report := driftReport{ProjectID: projectID}
	for _, task := range result.Tasks {
		if !task.IsFactorClone() {
			continue
		}
		report.Clones++

		factor, ok := catalog.Lookup(*task.SourceID)
		if !ok {
			report.Drifted = append(report.Drifted, driftEntry{
				TaskID:   task.ID,
				SourceID: *task.SourceID,
				Orphaned: true,
			})
			continue
		}

		diffText, err := cloneDiff(task.ID, factor, task.Text, task.Notes)
		if err != nil {
			return fmt.Errorf("failed to diff task %s: %w", task.ID, err)
		}
		if diffText == "" {
			report.Clean++
			continue
		}
		report.Drifted = append(report.Drifted, driftEntry{
			TaskID:   task.ID,
			SourceID: *task.SourceID,
			Diff:     diffText,
		})
	}

	if driftJSON {
		return render.JSON(cmd.OutOrStdout(), report)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Project %s: %d clone(s), %d clean, %d drifted\n",
		report.ProjectID, report.Clones, report.Clean, len(report.Drifted))

	for _, entry := range report.Drifted {
		fmt.Fprintln(cmd.OutOrStdout())
		if entry.Orphaned {
			fmt.Fprintf(cmd.OutOrStdout(), "task %s: source %s no longer in catalog\n", entry.TaskID, entry.SourceID)
			continue
		}
		fmt.Fprint(cmd.OutOrStdout(), entry.Diff)
	}

	return nil
}

// cloneDiff renders the factor's text and notes against the clone's as a
// unified diff. Returns "" when they match.
func cloneDiff(taskID string, factor factors.Factor, text string, notes *string) (string, error) {
	factorDoc := factorBody(factor)
	taskDoc := taskBody(text, notes)
	if factorDoc == taskDoc {
		return "", nil
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(factorDoc),
		B:        difflib.SplitLines(taskDoc),
		FromFile: "catalog/" + factor.ID,
		ToFile:   "project/" + taskID,
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}

func factorBody(f factors.Factor) string {
	var b strings.Builder
	b.WriteString(f.Text)
	b.WriteString("\n")
	if f.Notes != nil && *f.Notes != "" {
		b.WriteString("\n")
		b.WriteString(*f.Notes)
		b.WriteString("\n")
	}
	return b.String()
}

func taskBody(text string, notes *string) string {
	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n")
	if notes != nil && *notes != "" {
		b.WriteString("\n")
		b.WriteString(*notes)
		b.WriteString("\n")
	}
	return b.String()
}
