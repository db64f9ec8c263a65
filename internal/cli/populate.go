package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Greg-CLD/stagegate/internal/factors"
	"github.com/Greg-CLD/stagegate/internal/render"
	"github.com/Greg-CLD/stagegate/internal/service"
	"github.com/Greg-CLD/stagegate/internal/store"
)

var populateCmd = &cobra.Command{
	Use:   "populate <project-id>",
	Short: "Clone missing catalog factors into a project",
	Long: `Populate clones every success factor that has no clone in the project
yet. Factors already cloned are left untouched, so the command is safe to
re-run after the catalog grows.`,
	Args: cobra.ExactArgs(1),
	RunE: runPopulate,
}

var (
	populateJSON bool
	populateFile string
)

func init() {
	rootCmd.AddCommand(populateCmd)
	populateCmd.Flags().BoolVar(&populateJSON, "json", false, "Output as JSON")
	populateCmd.Flags().StringVar(&populateFile, "file", "", "Load the catalog from a YAML file instead")
}

func runPopulate(cmd *cobra.Command, args []string) error {
	projectID := args[0]

	database, _, err := openMigratedDatabase(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	var catalog *factors.Catalog
	if populateFile != "" {
		catalog, err = factors.LoadFile(populateFile)
	} else {
		catalog, err = factors.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load factors catalog: %w", err)
	}

	svc := service.New(store.New(database), catalog)

	result, err := svc.Populate(cmd.Context(), projectID)
	if err != nil {
		return err
	}

	if populateJSON {
		return render.JSON(cmd.OutOrStdout(), result)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Project %s: %d task(s) created, %d already present.\n",
		projectID, result.Created, result.Existing)

	return nil
}
