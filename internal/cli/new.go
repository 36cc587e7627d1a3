package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cryoet-tools/morphorun/internal/config"
	"github.com/cryoet-tools/morphorun/internal/experiment"
)

var (
	newDataDir  string
	newTemplate string
	newCores    int
)

var newCmd = &cobra.Command{
	Use:   "new <experiment-name>",
	Short: "Create a new experiment",
	Long: `Create a new experiment under the work directory: the
experiment directory, a results subdirectory, and a configuration
derived from the template (or built-in defaults) with the session's
data directory, work directory, name, and core count stamped in.

Creating over an existing experiment fails; resume it instead.

Examples:
  morphorun new mito_exp -w /data/experiments -d /data/tomograms
  morphorun new mito_exp -w /data/experiments -d /data/tomograms \
      --template /data/templates/defaults.yml --cores 14`,
	Args: cobra.ExactArgs(1),
	RunE: runNew,
}

func init() {
	newCmd.Flags().StringVarP(&newDataDir, "data-dir", "d", "", "directory holding the input volumes (required)")
	newCmd.Flags().StringVarP(&newTemplate, "template", "t", "", "config template file (optional)")
	newCmd.Flags().IntVarP(&newCores, "cores", "c", 0, "worker pool size (defaults to the template value)")
	_ = newCmd.MarkFlagRequired("data-dir")

	rootCmd.AddCommand(newCmd)
}

func runNew(cmd *cobra.Command, args []string) error {
	expName := args[0]
	if workDir == "" {
		return fmt.Errorf("--work-dir is required")
	}

	template := config.Document{}
	if newTemplate != "" {
		var err error
		template, err = config.Load(newTemplate)
		if err != nil {
			return fmt.Errorf("load template: %w", err)
		}
	}

	mgr := experiment.NewManager()
	cfg, err := mgr.CreateNew(workDir, expName, template, experiment.Overrides{
		DataDir: newDataDir,
		Cores:   newCores,
	})
	if errors.Is(err, experiment.ErrAlreadyExists) {
		return fmt.Errorf("experiment %q already exists; use 'morphorun run %s <stage>' to work with it", expName, expName)
	}
	if err != nil {
		return err
	}

	layout := mgr.Layout()
	fmt.Printf("Created experiment %q\n", expName)
	fmt.Printf("  Config:  %s\n", layout.ConfigPath)
	fmt.Printf("  Results: %s\n", layout.ResultsDir)
	fmt.Printf("  Cores:   %d\n", cfg.Cores)
	return nil
}
