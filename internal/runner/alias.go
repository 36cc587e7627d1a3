package runner

import (
	"fmt"
	"os"
	"path/filepath"
)

// alias is an exclusive, uniquely named symlink to a work item's
// input file. External analysis tools derive output names from their
// input filename; giving every item its own alias keeps concurrent
// items from colliding on shared destination names without a lock.
// The alias name is keyed by experiment prefix plus input filename,
// so no two items in a job share one.
type alias struct {
	path string
}

// acquireAlias links inputPath under a prefixed name in the same
// directory. A stale alias from a crashed run is replaced.
func acquireAlias(prefix, inputPath string) (*alias, error) {
	dir := filepath.Dir(inputPath)
	name := filepath.Base(inputPath)
	aliasPath := filepath.Join(dir, prefix+"_"+name)

	if err := os.Remove(aliasPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale alias %s: %w", aliasPath, err)
	}
	if err := os.Symlink(inputPath, aliasPath); err != nil {
		return nil, fmt.Errorf("create alias %s: %w", aliasPath, err)
	}
	return &alias{path: aliasPath}, nil
}

// release removes the alias. Safe to call once on every exit path.
func (a *alias) release() error {
	if err := os.Remove(a.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove alias %s: %w", a.path, err)
	}
	return nil
}
