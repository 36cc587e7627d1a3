// Package experiment manages the on-disk layout and lifecycle of
// experiments: creating new ones, resuming existing ones, and keeping
// the shared configuration document consistent across pipeline stages.
package experiment

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/cryoet-tools/morphorun/internal/config"
)

const (
	configSuffix   = "_config.yml"
	fallbackConfig = "config.yml"
	resultsDirName = "results"
)

// Layout is the resolved on-disk structure of one experiment.
type Layout struct {
	Dir        string
	ConfigPath string
	ResultsDir string
	Exists     bool
}

// Resolve locates the experiment expName under workDir. An experiment
// exists iff its directory holds `<exp_name>_config.yml` or, as a
// legacy fallback, a bare `config.yml`.
func Resolve(workDir, expName string) Layout {
	dir := filepath.Join(workDir, expName)
	layout := Layout{
		Dir:        dir,
		ConfigPath: filepath.Join(dir, expName+configSuffix),
		ResultsDir: filepath.Join(dir, resultsDirName),
	}

	if fileExists(layout.ConfigPath) {
		layout.Exists = true
		return layout
	}
	fallback := filepath.Join(dir, fallbackConfig)
	if fileExists(fallback) {
		slog.Debug("using legacy config filename", "path", fallback)
		layout.ConfigPath = fallback
		layout.Exists = true
	}
	return layout
}

// Overrides are the session values stamped onto the template when a
// new experiment is created.
type Overrides struct {
	DataDir string
	Cores   int
}

// Create materializes a new experiment under workDir: the directory
// tree plus a config derived from template with data_dir, work_dir,
// exp_name, and cores overridden by the current session. It fails with
// ErrAlreadyExists when the directory already holds a config, forcing
// an explicit resume instead of a silent overwrite.
func Create(workDir, expName string, template config.Document, ov Overrides) (config.Document, Layout, error) {
	layout := Resolve(workDir, expName)
	if layout.Exists {
		return nil, layout, fmt.Errorf("%w: %s", ErrAlreadyExists, layout.ConfigPath)
	}

	overrides := config.Document{
		"data_dir": ov.DataDir,
		"work_dir": layout.Dir,
		"exp_name": expName,
	}
	if ov.Cores > 0 {
		overrides["cores"] = ov.Cores
	}
	doc := config.DeepMerge(template, overrides)

	// Validate before touching the filesystem so a rejected config
	// leaves no half-created experiment behind.
	if _, err := config.Decode(doc); err != nil {
		return nil, layout, fmt.Errorf("invalid experiment config: %w", err)
	}

	if err := os.MkdirAll(layout.ResultsDir, 0o755); err != nil {
		return nil, layout, fmt.Errorf("create experiment dir %s: %w", layout.Dir, err)
	}
	if err := config.Save(layout.ConfigPath, doc); err != nil {
		return nil, layout, err
	}

	slog.Info("created experiment", "name", expName, "config", layout.ConfigPath)
	return doc, layout, nil
}

// ListCandidates returns the names of every experiment under workDir:
// each subdirectory containing a matching config file, sorted. The
// directory is re-scanned on every call.
func ListCandidates(workDir string) ([]string, error) {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return nil, fmt.Errorf("read work dir %s: %w", workDir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if Resolve(workDir, entry.Name()).Exists {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
