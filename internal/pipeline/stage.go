// Package pipeline describes the analysis stages: which script each
// one invokes, where its inputs come from, and which outputs the
// archive guard must protect before a rerun.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cryoet-tools/morphorun/internal/config"
	"github.com/cryoet-tools/morphorun/internal/experiment"
	"github.com/cryoet-tools/morphorun/internal/runner"
)

// InputSource selects the directory a stage discovers inputs in.
type InputSource int

const (
	// FromDataDir discovers inputs in the experiment's data directory.
	FromDataDir InputSource = iota
	// FromResultsDir discovers inputs among prior stage outputs.
	FromResultsDir
)

// Stage describes one pipeline step.
type Stage struct {
	Name    string
	Section string
	Script  string

	Source        InputSource
	InputGlob     string
	InputExcludes []string

	// Patterns the archive guard checks before a rerun.
	ArchivePatterns []string
	ArchiveExcludes []string
}

// The three pipeline stages. Mesh generation consumes raw segmentation
// volumes; curvature consumes the generated surfaces; distance and
// orientation measurement consumes the curvature-annotated surfaces.
var (
	Mesh = Stage{
		Name:            "mesh",
		Section:         config.SectionSurface,
		Script:          "segmentation_to_meshes.py",
		Source:          FromDataDir,
		InputGlob:       "*.mrc",
		ArchivePatterns: []string{"*"},
	}

	Curvature = Stage{
		Name:            "curvature",
		Section:         config.SectionCurvature,
		Script:          "curvature_measurements.py",
		Source:          FromResultsDir,
		InputGlob:       "*.vtp",
		InputExcludes:   []string{"*AVV*"},
		ArchivePatterns: []string{"*AVV*"},
	}

	Distance = Stage{
		Name:            "distance",
		Section:         config.SectionDistance,
		Script:          "distance_orientation_measurements.py",
		Source:          FromResultsDir,
		InputGlob:       "*AVV_rh*.vtp",
		ArchivePatterns: []string{"*.csv", "*.curv"},
		ArchiveExcludes: []string{"*AVV*"},
	}
)

// All lists the stages in pipeline order.
func All() []Stage {
	return []Stage{Mesh, Curvature, Distance}
}

// ByName resolves a stage from its CLI name.
func ByName(name string) (Stage, error) {
	for _, s := range All() {
		if s.Name == name {
			return s, nil
		}
	}
	var names []string
	for _, s := range All() {
		names = append(names, s.Name)
	}
	return Stage{}, fmt.Errorf("unknown stage %q (want one of %s)", name, strings.Join(names, ", "))
}

// DiscoverInputs lists the stage's input files as work items, sorted
// for a deterministic submission order. An empty list is legal: the
// job completes immediately with an empty summary.
func (s Stage) DiscoverInputs(cfg config.Config, layout experiment.Layout) ([]runner.WorkItem, error) {
	dir := cfg.DataDir
	if s.Source == FromResultsDir {
		dir = layout.ResultsDir
	}

	paths, err := filepath.Glob(filepath.Join(dir, s.InputGlob))
	if err != nil {
		return nil, fmt.Errorf("discover %s inputs: %w", s.Name, err)
	}

	var items []runner.WorkItem
	for _, p := range paths {
		name := filepath.Base(p)
		if strings.HasPrefix(name, ".") || matchesAny(name, s.InputExcludes) {
			continue
		}
		if isOrphanedAlias(p, name, cfg.ExpName) {
			continue
		}
		items = append(items, runner.WorkItem{InputPath: p})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].InputPath < items[j].InputPath })
	return items, nil
}

// SectionDocument renders the stage's settings from the typed config
// as a mergeable document. Running a stage writes this through the
// manager, which is what moves an experiment from created to
// populated.
func (s Stage) SectionDocument(cfg config.Config) (config.Document, error) {
	var section any
	switch s.Section {
	case config.SectionSurface:
		section = cfg.SurfaceGeneration
	case config.SectionCurvature:
		section = cfg.Curvature
	case config.SectionDistance:
		section = cfg.Distance
	default:
		return nil, fmt.Errorf("stage %s has no config section", s.Name)
	}

	data, err := yaml.Marshal(section)
	if err != nil {
		return nil, fmt.Errorf("encode %s section: %w", s.Section, err)
	}
	var doc config.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s section: %w", s.Section, err)
	}
	return doc, nil
}

// isOrphanedAlias reports whether path is a leftover per-item alias
// from a run that was killed before cleanup: a symlink carrying the
// experiment's alias prefix. Treating one as an input would process
// its target twice.
func isOrphanedAlias(path, name, expName string) bool {
	if expName == "" || !strings.HasPrefix(name, expName+"_") {
		return false
	}
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

func matchesAny(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
