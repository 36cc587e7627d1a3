package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cryoet-tools/morphorun/internal/experiment"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List experiments in the work directory",
	Long: `List every experiment under the work directory: each
subdirectory holding a matching configuration file.

Examples:
  morphorun list --work-dir /data/experiments`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	if workDir == "" {
		return fmt.Errorf("--work-dir is required")
	}

	names, err := experiment.ListCandidates(workDir)
	if err != nil {
		return fmt.Errorf("list experiments: %w", err)
	}

	if len(names) == 0 {
		fmt.Println("No experiments found.")
		return nil
	}

	fmt.Printf("Experiments (%d):\n\n", len(names))
	for _, name := range names {
		layout := experiment.Resolve(workDir, name)
		fmt.Printf("- %s (%s)\n", name, layout.ConfigPath)
	}

	return nil
}
