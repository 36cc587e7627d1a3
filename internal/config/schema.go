// Package config holds the experiment configuration schema and the
// store that loads, merges, and persists it.
package config

import (
	"fmt"
	"path/filepath"
)

// Section names as they appear in the experiment YAML document.
const (
	SectionSegmentation = "segmentation_values"
	SectionSurface      = "surface_generation"
	SectionCurvature    = "curvature_measurements"
	SectionDistance     = "distance_and_orientation_measurements"
)

// SurfaceGeneration holds mesh generation parameters.
type SurfaceGeneration struct {
	Angstroms             bool    `yaml:"angstroms"`
	Ultrafine             bool    `yaml:"ultrafine"`
	MeshSampling          float64 `yaml:"mesh_sampling"`
	Simplify              bool    `yaml:"simplify"`
	MaxTriangles          int     `yaml:"max_triangles"`
	ExtrapolationDistance float64 `yaml:"extrapolation_distance"`
	OctreeDepth           int     `yaml:"octree_depth"`
	PointWeight           float64 `yaml:"point_weight"`
	NeighborCount         int     `yaml:"neighbor_count"`
	SmoothingIterations   int     `yaml:"smoothing_iterations"`
}

// CurvatureMeasurements holds curvature analysis parameters.
type CurvatureMeasurements struct {
	RadiusHit      int     `yaml:"radius_hit"`
	MinComponent   int     `yaml:"min_component"`
	ExcludeBorders float64 `yaml:"exclude_borders"`
}

// DistanceOrientation holds distance and orientation measurement
// parameters. Intra lists categories measured against themselves,
// Inter maps a category to the categories it is measured against.
type DistanceOrientation struct {
	MinDist             float64             `yaml:"mindist"`
	MaxDist             float64             `yaml:"maxdist"`
	Tolerance           float64             `yaml:"tolerance"`
	Verticality         bool                `yaml:"verticality"`
	RelativeOrientation bool                `yaml:"relative_orientation"`
	Intra               []string            `yaml:"intra"`
	Inter               map[string][]string `yaml:"inter"`
}

// Config is the typed view of an experiment configuration document.
// Unknown keys survive load/save through the raw Document; this struct
// is the validated schema stages read from.
type Config struct {
	DataDir string `yaml:"data_dir"`
	WorkDir string `yaml:"work_dir"`
	ExpName string `yaml:"exp_name"`
	Cores   int    `yaml:"cores"`

	SegmentationValues map[string]int        `yaml:"segmentation_values"`
	SurfaceGeneration  SurfaceGeneration     `yaml:"surface_generation"`
	Curvature          CurvatureMeasurements `yaml:"curvature_measurements"`
	Distance           DistanceOrientation   `yaml:"distance_and_orientation_measurements"`
}

// Default returns a config populated with the stock parameter values.
func Default() Config {
	return Config{
		Cores: 4,
		SegmentationValues: map[string]int{
			"OMM": 1,
			"IMM": 2,
			"ER":  3,
		},
		SurfaceGeneration: DefaultSurfaceGeneration(),
		Curvature:         DefaultCurvature(),
		Distance:          DefaultDistance(),
	}
}

// DefaultSurfaceGeneration returns stock mesh generation parameters.
func DefaultSurfaceGeneration() SurfaceGeneration {
	return SurfaceGeneration{
		Angstroms:             false,
		Ultrafine:             true,
		MeshSampling:          0.99,
		Simplify:              false,
		MaxTriangles:          300000,
		ExtrapolationDistance: 1.5,
		OctreeDepth:           7,
		PointWeight:           0.7,
		NeighborCount:         400,
		SmoothingIterations:   1,
	}
}

// DefaultCurvature returns stock curvature parameters.
func DefaultCurvature() CurvatureMeasurements {
	return CurvatureMeasurements{
		RadiusHit:      9,
		MinComponent:   30,
		ExcludeBorders: 1.0,
	}
}

// DefaultDistance returns stock distance/orientation parameters.
func DefaultDistance() DistanceOrientation {
	return DistanceOrientation{
		MinDist:             3.0,
		MaxDist:             400.0,
		Tolerance:           0.1,
		Verticality:         true,
		RelativeOrientation: true,
		Intra:               []string{"IMM", "OMM", "ER"},
		Inter:               map[string][]string{"OMM": {"IMM", "ER"}},
	}
}

// Validate checks the invariants of a created experiment's config.
// Cores must be positive and both directories must be absolute paths.
func (c Config) Validate() error {
	if c.Cores < 1 {
		return fmt.Errorf("cores must be >= 1, got %d", c.Cores)
	}
	if c.WorkDir != "" && !filepath.IsAbs(c.WorkDir) {
		return fmt.Errorf("work_dir must be absolute: %s", c.WorkDir)
	}
	if c.DataDir != "" && !filepath.IsAbs(c.DataDir) {
		return fmt.Errorf("data_dir must be absolute: %s", c.DataDir)
	}
	return nil
}
