package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocateScript(t *testing.T) {
	expDir := t.TempDir()
	scriptsDir := t.TempDir()
	scriptPath := filepath.Join(scriptsDir, "segmentation_to_meshes.py")
	if err := os.WriteFile(scriptPath, []byte("#!/usr/bin/env python3\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	t.Run("first candidate wins", func(t *testing.T) {
		local := filepath.Join(expDir, "segmentation_to_meshes.py")
		if err := os.WriteFile(local, []byte("# local override\n"), 0o755); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = os.Remove(local) })

		got, err := LocateScript("segmentation_to_meshes.py", expDir, scriptsDir)
		if err != nil {
			t.Fatal(err)
		}
		if got != local {
			t.Errorf("LocateScript() = %s, want experiment-local %s", got, local)
		}
	})

	t.Run("falls through empty and missing candidates", func(t *testing.T) {
		got, err := LocateScript("segmentation_to_meshes.py", "", expDir, scriptsDir)
		if err != nil {
			t.Fatal(err)
		}
		if got != scriptPath {
			t.Errorf("LocateScript() = %s, want %s", got, scriptPath)
		}
	})

	t.Run("not found anywhere", func(t *testing.T) {
		_, err := LocateScript("curvature_measurements.py", expDir, scriptsDir)
		if !errors.Is(err, ErrScriptNotFound) {
			t.Errorf("error = %v, want ErrScriptNotFound", err)
		}
	})
}

func TestScriptExecutor_Execute(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "exp1_config.yml")
	if err := os.WriteFile(configPath, []byte("exp_name: exp1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	input := filepath.Join(dir, "seg_00.mrc")
	if err := os.WriteFile(input, []byte("volume"), 0o644); err != nil {
		t.Fatal(err)
	}

	writeScript := func(name, body string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
			t.Fatal(err)
		}
		return path
	}

	t.Run("success captures stdout and args", func(t *testing.T) {
		script := writeScript("ok.sh", "echo \"processing $2 for config $1\"\n")
		e := &ScriptExecutor{
			Interpreter: "/bin/sh",
			ScriptPath:  script,
			ConfigPath:  configPath,
			PassInput:   true,
		}

		res := e.Execute(context.Background(), WorkItem{InputPath: input, AliasPath: input})

		if !res.Success || res.ExitCode != 0 {
			t.Fatalf("result = %+v, want success", res)
		}
		if !strings.Contains(res.Stdout, "seg_00.mrc") {
			t.Errorf("stdout = %q, want input name passed through", res.Stdout)
		}
	})

	t.Run("non-zero exit is a failure with code and stderr", func(t *testing.T) {
		script := writeScript("fail.sh", "echo 'could not read volume' >&2\nexit 3\n")
		e := &ScriptExecutor{
			Interpreter: "/bin/sh",
			ScriptPath:  script,
			ConfigPath:  configPath,
		}

		res := e.Execute(context.Background(), WorkItem{InputPath: input, AliasPath: input})

		if res.Success {
			t.Fatal("non-zero exit recorded as success")
		}
		if res.ExitCode != 3 {
			t.Errorf("exit code = %d, want 3", res.ExitCode)
		}
		if !strings.Contains(res.Stderr, "could not read volume") {
			t.Errorf("stderr = %q", res.Stderr)
		}
	})

	t.Run("missing interpreter is a failure, not a panic", func(t *testing.T) {
		e := &ScriptExecutor{
			Interpreter: filepath.Join(dir, "no-such-interpreter"),
			ScriptPath:  "x.py",
			ConfigPath:  configPath,
		}

		res := e.Execute(context.Background(), WorkItem{InputPath: input, AliasPath: input})

		if res.Success || res.Err == nil || res.ExitCode != -1 {
			t.Errorf("result = %+v, want failure with exit code -1", res)
		}
	})
}
