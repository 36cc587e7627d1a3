package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cryoet-tools/morphorun/internal/config"
	"github.com/cryoet-tools/morphorun/internal/experiment"
)

var showCmd = &cobra.Command{
	Use:   "show <experiment-name>",
	Short: "Show an experiment's configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	if workDir == "" {
		return fmt.Errorf("--work-dir is required")
	}

	layout := experiment.Resolve(workDir, args[0])
	if !layout.Exists {
		return fmt.Errorf("experiment %q not found in %s", args[0], workDir)
	}

	doc, err := config.Load(layout.ConfigPath)
	if err != nil {
		return err
	}

	fmt.Printf("# %s\n", layout.ConfigPath)
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("render config: %w", err)
	}
	return enc.Close()
}
