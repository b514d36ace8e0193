package cli

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/complycheck/internal/models"
	"github.com/raphaelgruber/complycheck/internal/parser"
	"github.com/spf13/cobra"
)

var checklistsLocal bool

var checklistsCmd = &cobra.Command{
	Use:   "checklists",
	Short: "List available checklists",
	Long: `List the checklists a document can be checked against.

By default the server's catalog is listed; --local reads the checklist
directory configured for this machine (COMPLYCHECK_CHECKLISTS_DIR).`,
	Args: cobra.NoArgs,
	RunE: runChecklists,
}

func init() {
	checklistsCmd.Flags().BoolVar(&checklistsLocal, "local", false, "read the local checklist directory instead of the server")
	rootCmd.AddCommand(checklistsCmd)
}

func runChecklists(cmd *cobra.Command, args []string) error {
	var (
		infos []models.ChecklistInfo
		err   error
	)
	if checklistsLocal {
		infos, err = parser.NewCatalog(cfg.ChecklistsDir).List()
	} else {
		infos, err = apiClient.ListChecklists(context.Background())
	}
	if err != nil {
		return fmt.Errorf("list checklists: %w", err)
	}
	printChecklists(cmd.OutOrStdout(), infos)
	return nil
}
