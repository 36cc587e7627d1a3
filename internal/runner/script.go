package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrScriptNotFound reports that an analysis script exists at none of
// the candidate locations. Surfaced before any worker spawns.
var ErrScriptNotFound = errors.New("analysis script not found")

// LocateScript searches the candidate directories in order for a
// script by name and returns the first hit. Empty candidates are
// skipped.
func LocateScript(name string, candidates ...string) (string, error) {
	var searched []string
	for _, dir := range candidates {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
		searched = append(searched, dir)
	}
	return "", fmt.Errorf("%w: %s (searched %v)", ErrScriptNotFound, name, searched)
}

// ScriptExecutor invokes an external analysis script as
// <interpreter> <script> <config> [input], from the config file's
// directory. Exit code zero means success; stdout and stderr are
// captured as text.
type ScriptExecutor struct {
	Interpreter string
	ScriptPath  string
	ConfigPath  string

	// PassInput appends the item's input name to the command line.
	// Whole-job scripts that read the file list from the config leave
	// this false.
	PassInput bool
}

// Execute runs the script for one work item. The item's alias path is
// what the script sees, so filename-derived outputs stay unique per
// item.
func (e *ScriptExecutor) Execute(ctx context.Context, item WorkItem) Result {
	args := []string{e.ScriptPath, e.ConfigPath}
	if e.PassInput {
		args = append(args, filepath.Base(item.AliasPath))
	}

	cmd := exec.CommandContext(ctx, e.Interpreter, args...)
	cmd.Dir = filepath.Dir(e.ConfigPath)
	// Force unbuffered interpreter output so progress lines arrive live.
	cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		ItemID: item.ID(),
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	switch {
	case err == nil:
		res.Success = true
		res.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
		}
		res.Err = err
	}
	return res
}
