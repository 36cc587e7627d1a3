package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cryoet-tools/morphorun/internal/config"
	"github.com/cryoet-tools/morphorun/internal/experiment"
)

var setCmd = &cobra.Command{
	Use:   "set <experiment-name> <key=value>...",
	Short: "Update configuration values for an experiment",
	Long: `Update one or more configuration values and persist them.
Updates deep-merge into the stored document: sections and keys not
named are left untouched.

Keys are dotted paths into the document; cores and data_dir may also
be set directly. Values parse as YAML, so numbers, booleans, and lists
work:

  morphorun set mito_exp -w /data/experiments \
      cores=14 \
      curvature_measurements.radius_hit=12 \
      surface_generation.simplify=true \
      distance_and_orientation_measurements.intra='[IMM, OMM]'`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)
}

// Top-level keys settable without a section prefix. The identity keys
// (exp_name, work_dir) are stamped on create and stay read-only.
var settableTopLevel = map[string]bool{
	"cores":    true,
	"data_dir": true,
}

func runSet(cmd *cobra.Command, args []string) error {
	if workDir == "" {
		return fmt.Errorf("--work-dir is required")
	}

	mgr := experiment.NewManager()
	if _, err := mgr.Resume(workDir, args[0]); err != nil {
		return err
	}

	updates := config.Document{}
	for _, assign := range args[1:] {
		partial, err := parseAssignment(assign)
		if err != nil {
			return err
		}
		updates = config.DeepMerge(updates, partial)
	}

	if err := mgr.Update(updates); err != nil {
		return err
	}

	fmt.Printf("Updated %s\n", mgr.Layout().ConfigPath)
	return nil
}

// parseAssignment turns "section.key.subkey=value" into a nested
// partial document rooted at the top level, with the value parsed as
// YAML. A bare "key=value" is accepted for the settable top-level
// keys only.
func parseAssignment(assign string) (config.Document, error) {
	path, raw, found := strings.Cut(assign, "=")
	if !found {
		return nil, fmt.Errorf("bad assignment %q, want key=value", assign)
	}

	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return nil, fmt.Errorf("bad value %q: %w", raw, err)
	}

	keys := strings.Split(path, ".")
	if len(keys) == 1 {
		if !settableTopLevel[keys[0]] {
			return nil, fmt.Errorf("key %q needs a section prefix (only cores and data_dir are settable at the top level)", keys[0])
		}
		return config.Document{keys[0]: value}, nil
	}

	// Build the nested partial from the innermost key outward.
	partial := config.Document{keys[len(keys)-1]: value}
	for i := len(keys) - 2; i >= 0; i-- {
		partial = config.Document{keys[i]: partial}
	}
	return partial, nil
}
