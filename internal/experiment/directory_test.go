package experiment

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/cryoet-tools/morphorun/internal/config"
)

func TestResolve(t *testing.T) {
	workDir := t.TempDir()

	t.Run("missing experiment", func(t *testing.T) {
		layout := Resolve(workDir, "exp1")
		if layout.Exists {
			t.Error("Exists = true for missing experiment")
		}
		if layout.ConfigPath != filepath.Join(workDir, "exp1", "exp1_config.yml") {
			t.Errorf("ConfigPath = %s", layout.ConfigPath)
		}
	})

	t.Run("preferred config name", func(t *testing.T) {
		dir := filepath.Join(workDir, "exp2")
		mustWrite(t, filepath.Join(dir, "exp2_config.yml"), "exp_name: exp2\n")

		layout := Resolve(workDir, "exp2")
		if !layout.Exists {
			t.Fatal("Exists = false")
		}
		if filepath.Base(layout.ConfigPath) != "exp2_config.yml" {
			t.Errorf("ConfigPath = %s, want preferred name", layout.ConfigPath)
		}
	})

	t.Run("legacy fallback name", func(t *testing.T) {
		dir := filepath.Join(workDir, "exp3")
		mustWrite(t, filepath.Join(dir, "config.yml"), "exp_name: exp3\n")

		layout := Resolve(workDir, "exp3")
		if !layout.Exists {
			t.Fatal("Exists = false for legacy config")
		}
		if filepath.Base(layout.ConfigPath) != "config.yml" {
			t.Errorf("ConfigPath = %s, want fallback name", layout.ConfigPath)
		}
	})
}

func TestCreate(t *testing.T) {
	workDir := t.TempDir()
	dataDir := t.TempDir()
	template := config.Document{
		"cores": 14,
		"surface_generation": config.Document{
			"octree_depth": 9,
		},
	}

	doc, layout, err := Create(workDir, "mito_exp", template, Overrides{DataDir: dataDir, Cores: 2})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if doc["exp_name"] != "mito_exp" {
		t.Errorf("exp_name = %v", doc["exp_name"])
	}
	if doc["work_dir"] != layout.Dir {
		t.Errorf("work_dir = %v, want experiment dir %s", doc["work_dir"], layout.Dir)
	}
	if doc["data_dir"] != dataDir {
		t.Errorf("data_dir = %v", doc["data_dir"])
	}
	if doc["cores"] != 2 {
		t.Errorf("cores = %v, want session override 2", doc["cores"])
	}

	if _, err := os.Stat(layout.ResultsDir); err != nil {
		t.Errorf("results dir not created: %v", err)
	}
	if _, err := os.Stat(layout.ConfigPath); err != nil {
		t.Errorf("config not written: %v", err)
	}

	// Template sections carry through.
	loaded, err := config.Load(layout.ConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	surf := config.Section(loaded, "surface_generation")
	if surf["octree_depth"] != 9 {
		t.Errorf("template octree_depth = %v, want 9", surf["octree_depth"])
	}
}

func TestCreate_InvalidOverridesLeaveNoDebris(t *testing.T) {
	workDir := t.TempDir()

	// A relative data dir fails validation; the experiment directory
	// must not be created for the rejected config.
	_, layout, err := Create(workDir, "exp1", config.Document{}, Overrides{DataDir: "relative/path"})
	if err == nil {
		t.Fatal("Create() accepted a relative data dir")
	}
	if _, statErr := os.Stat(layout.Dir); !os.IsNotExist(statErr) {
		t.Errorf("experiment dir left behind after rejected create: %v", statErr)
	}
}

func TestCreate_AlreadyExists(t *testing.T) {
	workDir := t.TempDir()
	configPath := filepath.Join(workDir, "exp1", "exp1_config.yml")
	mustWrite(t, configPath, "exp_name: exp1\ncores: 4\n")
	before, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = Create(workDir, "exp1", config.Document{}, Overrides{DataDir: t.TempDir()})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("Create() error = %v, want ErrAlreadyExists", err)
	}

	after, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("existing config modified by failed create")
	}
}

func TestListCandidates(t *testing.T) {
	workDir := t.TempDir()
	mustWrite(t, filepath.Join(workDir, "zeta", "zeta_config.yml"), "exp_name: zeta\n")
	mustWrite(t, filepath.Join(workDir, "alpha", "config.yml"), "exp_name: alpha\n")
	// A directory without a config is not a candidate.
	if err := os.MkdirAll(filepath.Join(workDir, "scratch"), 0o755); err != nil {
		t.Fatal(err)
	}
	// Nor is a stray file.
	mustWrite(t, filepath.Join(workDir, "notes.txt"), "notes\n")

	names, err := ListCandidates(workDir)
	if err != nil {
		t.Fatalf("ListCandidates() error = %v", err)
	}
	if !reflect.DeepEqual(names, []string{"alpha", "zeta"}) {
		t.Errorf("ListCandidates() = %v, want [alpha zeta]", names)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
