// Package archive guards job output directories against silent
// overwrite. Before a stage reruns, existing outputs are detected and
// either overwritten in place, moved into a timestamped archive
// directory, or the run is cancelled.
package archive

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Decision is the caller's choice for handling existing outputs.
type Decision int

const (
	Overwrite Decision = iota
	Archive
	Cancel
)

func (d Decision) String() string {
	switch d {
	case Overwrite:
		return "overwrite"
	case Archive:
		return "archive"
	case Cancel:
		return "cancel"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// ParseDecision converts a flag value into a Decision.
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(s) {
	case "overwrite":
		return Overwrite, nil
	case "archive":
		return Archive, nil
	case "cancel":
		return Cancel, nil
	default:
		return Cancel, fmt.Errorf("unknown decision %q (want overwrite, archive, or cancel)", s)
	}
}

const snapshotName = "config_snapshot.yml"

// archivePrefix names the timestamped directories Resolve creates.
// Entries with this prefix are never treated as matches.
const archivePrefix = "archive_"

// Check lists entries under resultsDir matching any of patterns and
// none of excludes. Hidden entries and prior archive directories are
// always skipped. Directories count as matches only when the sole
// requested pattern is "*" and the directory is non-empty. A missing
// resultsDir yields no matches.
func Check(resultsDir string, patterns, excludes []string) ([]string, error) {
	if _, err := os.Stat(resultsDir); os.IsNotExist(err) {
		return nil, nil
	}
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}
	everything := len(patterns) == 1 && patterns[0] == "*"

	seen := make(map[string]bool)
	var matches []string
	for _, pattern := range patterns {
		paths, err := filepath.Glob(filepath.Join(resultsDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		for _, p := range paths {
			name := filepath.Base(p)
			if seen[p] || strings.HasPrefix(name, ".") || excluded(name, excludes) {
				continue
			}
			info, err := os.Stat(p)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if strings.HasPrefix(name, archivePrefix) {
					continue
				}
				if !everything || !dirNonEmpty(p) {
					continue
				}
			}
			seen[p] = true
			matches = append(matches, p)
		}
	}
	return matches, nil
}

// Resolve acts on the caller's decision. It returns true when the job
// may proceed. Overwrite and Cancel touch nothing on disk. Archive
// moves every current match into a fresh archive_<timestamp> directory
// under resultsDir and snapshots the config alongside them; individual
// move failures are logged and skipped.
func Resolve(resultsDir string, matches []string, decision Decision, configPath string) (bool, error) {
	if len(matches) == 0 {
		return true, nil
	}

	switch decision {
	case Overwrite:
		slog.Info("overwriting existing results", "dir", resultsDir, "matches", len(matches))
		return true, nil
	case Cancel:
		slog.Info("run cancelled, existing results untouched", "dir", resultsDir)
		return false, nil
	case Archive:
		return true, archiveMatches(resultsDir, matches, configPath)
	default:
		return false, fmt.Errorf("unknown decision %v", decision)
	}
}

func archiveMatches(resultsDir string, matches []string, configPath string) error {
	timestamp := time.Now().Format("20060102_150405")
	archiveDir := filepath.Join(resultsDir, archivePrefix+timestamp)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return fmt.Errorf("create archive dir %s: %w", archiveDir, err)
	}

	moved := 0
	for _, p := range matches {
		// Re-check at move time: a match may have vanished, and the
		// archive dir itself must never be swept up.
		if p == archiveDir {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		dest := filepath.Join(archiveDir, filepath.Base(p))
		if err := os.Rename(p, dest); err != nil {
			slog.Warn("failed to archive item, skipping", "path", p, "error", err)
			continue
		}
		moved++
	}

	if configPath != "" {
		if err := copyFile(configPath, filepath.Join(archiveDir, snapshotName)); err != nil {
			slog.Warn("failed to snapshot config", "config", configPath, "error", err)
		}
	}

	slog.Info("archived existing results", "dir", archiveDir, "moved", moved)
	return nil
}

func excluded(name string, excludes []string) bool {
	for _, pattern := range excludes {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

func dirNonEmpty(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
