package pipeline

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/cryoet-tools/morphorun/internal/config"
	"github.com/cryoet-tools/morphorun/internal/experiment"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"mesh", "curvature", "distance"} {
		s, err := ByName(name)
		if err != nil {
			t.Errorf("ByName(%s) error = %v", name, err)
		}
		if s.Name != name {
			t.Errorf("ByName(%s).Name = %s", name, s.Name)
		}
	}
	if _, err := ByName("render"); err == nil {
		t.Error("ByName(render) succeeded, want error")
	}
}

func TestDiscoverInputs_Mesh(t *testing.T) {
	dataDir := t.TempDir()
	touch(t, filepath.Join(dataDir, "tomo_b.mrc"))
	touch(t, filepath.Join(dataDir, "tomo_a.mrc"))
	touch(t, filepath.Join(dataDir, "notes.txt"))
	touch(t, filepath.Join(dataDir, ".DS_Store"))

	cfg := config.Default()
	cfg.DataDir = dataDir

	items, err := Mesh.DiscoverInputs(cfg, experiment.Layout{})
	if err != nil {
		t.Fatalf("DiscoverInputs() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2 (.mrc only)", len(items))
	}
	// Deterministic sorted order.
	if filepath.Base(items[0].InputPath) != "tomo_a.mrc" ||
		filepath.Base(items[1].InputPath) != "tomo_b.mrc" {
		t.Errorf("items = %v, want sorted [tomo_a.mrc tomo_b.mrc]", items)
	}
}

func TestDiscoverInputs_SkipsOrphanedAliases(t *testing.T) {
	dataDir := t.TempDir()
	touch(t, filepath.Join(dataDir, "tomo_a.mrc"))
	// A run killed before cleanup leaves its alias symlink behind.
	if err := os.Symlink(
		filepath.Join(dataDir, "tomo_a.mrc"),
		filepath.Join(dataDir, "exp1_tomo_a.mrc")); err != nil {
		t.Fatal(err)
	}
	// A regular file that merely shares the prefix is a real input.
	touch(t, filepath.Join(dataDir, "exp1_extra.mrc"))

	cfg := config.Default()
	cfg.DataDir = dataDir
	cfg.ExpName = "exp1"

	items, err := Mesh.DiscoverInputs(cfg, experiment.Layout{})
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, item := range items {
		names = append(names, filepath.Base(item.InputPath))
	}
	want := []string{"exp1_extra.mrc", "tomo_a.mrc"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("items = %v, want %v", names, want)
	}
}

func TestDiscoverInputs_CurvatureSkipsItsOwnOutputs(t *testing.T) {
	layout := experiment.Layout{ResultsDir: t.TempDir()}
	touch(t, filepath.Join(layout.ResultsDir, "tomo_a_surface.vtp"))
	touch(t, filepath.Join(layout.ResultsDir, "tomo_a_surface.AVV_rh9.vtp"))

	items, err := Curvature.DiscoverInputs(config.Default(), layout)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if filepath.Base(items[0].InputPath) != "tomo_a_surface.vtp" {
		t.Errorf("item = %s, want plain surface only", items[0].InputPath)
	}
}

func TestDiscoverInputs_DistanceWantsCurvatureOutputs(t *testing.T) {
	layout := experiment.Layout{ResultsDir: t.TempDir()}
	touch(t, filepath.Join(layout.ResultsDir, "tomo_a_surface.vtp"))
	touch(t, filepath.Join(layout.ResultsDir, "tomo_a_surface.AVV_rh9.vtp"))

	items, err := Distance.DiscoverInputs(config.Default(), layout)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if filepath.Base(items[0].InputPath) != "tomo_a_surface.AVV_rh9.vtp" {
		t.Errorf("item = %s, want curvature output", items[0].InputPath)
	}
}

func TestDiscoverInputs_EmptyIsLegal(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	items, err := Mesh.DiscoverInputs(cfg, experiment.Layout{})
	if err != nil {
		t.Fatalf("DiscoverInputs() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %v, want none", items)
	}
}

func TestSectionDocument(t *testing.T) {
	cfg := config.Default()
	cfg.Curvature.RadiusHit = 15

	doc, err := Curvature.SectionDocument(cfg)
	if err != nil {
		t.Fatalf("SectionDocument() error = %v", err)
	}
	if doc["radius_hit"] != 15 {
		t.Errorf("radius_hit = %v, want 15", doc["radius_hit"])
	}
	if doc["min_component"] != 30 {
		t.Errorf("min_component = %v, want default 30", doc["min_component"])
	}
}

func TestSectionDocument_PersistsOnlyAuthoredCategories(t *testing.T) {
	// An experiment that configures its own distance categories must
	// keep exactly those on disk after the stage persists its section;
	// the stock OMM/IMM/ER pairs must not reappear.
	workDir := t.TempDir()
	template := config.Document{
		config.SectionDistance: config.Document{
			"intra": []any{"Membrane"},
			"inter": config.Document{"Membrane": []any{"Vesicle"}},
		},
	}
	m := experiment.NewManager()
	if _, err := m.CreateNew(workDir, "exp1", template, experiment.Overrides{}); err != nil {
		t.Fatal(err)
	}

	doc, err := Distance.SectionDocument(m.Config())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateSection(Distance.Section, doc); err != nil {
		t.Fatal(err)
	}

	onDisk, err := config.Load(m.Layout().ConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	section := config.Section(onDisk, config.SectionDistance)
	inter, ok := section["inter"].(config.Document)
	if !ok {
		t.Fatalf("inter = %#v, want mapping", section["inter"])
	}
	if _, leaked := inter["OMM"]; leaked {
		t.Errorf("inter gained stock OMM entry: %v", inter)
	}
	if _, kept := inter["Membrane"]; !kept {
		t.Errorf("authored Membrane entry lost: %v", inter)
	}
}

func TestSectionDocument_MergesWithoutClobberingSiblings(t *testing.T) {
	cfg := config.Default()
	doc, err := Mesh.SectionDocument(cfg)
	if err != nil {
		t.Fatal(err)
	}

	base := config.Document{
		config.SectionCurvature: config.Document{"radius_hit": 12},
	}
	merged := config.DeepMerge(base, config.Document{config.SectionSurface: doc})

	curv := config.Section(merged, config.SectionCurvature)
	if curv["radius_hit"] != 12 {
		t.Errorf("sibling section clobbered: %v", curv)
	}
	surf := config.Section(merged, config.SectionSurface)
	if surf["octree_depth"] != 7 {
		t.Errorf("octree_depth = %v, want default 7", surf["octree_depth"])
	}
}
