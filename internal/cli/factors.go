package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Greg-CLD/stagegate/internal/domain"
	"github.com/Greg-CLD/stagegate/internal/factors"
	"github.com/Greg-CLD/stagegate/internal/render"
)

var factorsCmd = &cobra.Command{
	Use:   "factors",
	Short: "List the success-factor catalog",
	Long: `Factors lists the success-factor catalog the daemon clones project
checklists from: the built-in catalog, or the file named by
STAGEGATE_FACTORS_FILE.`,
	RunE: runFactors,
}

var (
	factorsJSON  bool
	factorsStage string
	factorsFile  string
)

func init() {
	rootCmd.AddCommand(factorsCmd)
	factorsCmd.Flags().BoolVar(&factorsJSON, "json", false, "Output as JSON")
	factorsCmd.Flags().StringVar(&factorsStage, "stage", "", "Only show factors for one stage")
	factorsCmd.Flags().StringVar(&factorsFile, "file", "", "Load the catalog from a YAML file instead")
}

func runFactors(cmd *cobra.Command, args []string) error {
	var catalog *factors.Catalog
	var err error
	if factorsFile != "" {
		catalog, err = factors.LoadFile(factorsFile)
	} else {
		catalog, err = factors.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load factors catalog: %w", err)
	}

	list := catalog.All()
	if factorsStage != "" {
		if err := domain.ValidateStage(factorsStage); err != nil {
			return err
		}
		list = catalog.ByStage(domain.Stage(factorsStage))
	}

	if factorsJSON {
		return render.JSON(cmd.OutOrStdout(), list)
	}

	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No factors found.")
		return nil
	}

	rows := make([][]string, 0, len(list))
	for _, f := range list {
		priority := ""
		if f.Priority != nil {
			priority = *f.Priority
		}
		rows = append(rows, []string{f.ID, f.Stage, priority, f.Text})
	}

	if err := render.Table(cmd.OutOrStdout(), []string{"ID", "STAGE", "PRIORITY", "TEXT"}, rows); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d factor(s)\n", len(list))

	return nil
}
