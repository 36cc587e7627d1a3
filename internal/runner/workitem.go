// Package runner executes per-file analysis work on a bounded worker
// pool, isolating each item behind a uniquely named filesystem alias
// and aggregating per-item outcomes without failing fast.
package runner

import "context"

// WorkItem is one input file to process. Its identity is the input
// path; items within a job are independent of each other.
type WorkItem struct {
	// InputPath is the absolute path of the input file.
	InputPath string
	// AliasPath is the exclusive per-item view of the input,
	// established by the runner before the executor is invoked.
	AliasPath string
}

// ID returns the item identity.
func (w WorkItem) ID() string { return w.InputPath }

// Result is the outcome of processing one WorkItem.
type Result struct {
	ItemID   string
	Success  bool
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

// Summary aggregates the results of one job. It is immutable once
// Run returns; results appear in completion order, not submission
// order.
type Summary struct {
	JobID     string
	Total     int
	Succeeded int
	Failed    int
	Results   []Result
}

// Executor processes a single WorkItem. Implementations block until
// the underlying work (typically an external process) finishes and
// must honor ctx for a future cancellation path.
type Executor func(ctx context.Context, item WorkItem) Result

// ProgressFunc is invoked after each item completes, success or
// failure. completed counts all finished items; last is the result
// that just finished.
type ProgressFunc func(completed, total int, last Result)
