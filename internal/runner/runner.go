package runner

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cryoet-tools/morphorun/internal/metrics"
)

// Percent converts a completed count into a whole progress percentage.
func Percent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

// Runner fans work items out across a bounded worker pool. The pool is
// created per job and torn down when Run returns.
type Runner struct {
	// AliasPrefix keys per-item aliases, typically the experiment
	// name. Items run without an alias when empty.
	AliasPrefix string

	// Metrics, when set, receives per-item wall times keyed by Op.
	Metrics *metrics.Collector
	Op      string
}

// Run executes every item and returns an aggregate summary. Individual
// item failures (non-zero exit, error, panic inside the executor) are
// recorded and never abort sibling items. Run blocks until all items
// finish; callers wanting a non-blocking start launch it on their own
// goroutine.
//
// maxWorkers is capped at len(items) and floored at 1. An empty item
// list returns an empty summary immediately with no goroutines spawned
// and no progress calls.
func (r *Runner) Run(ctx context.Context, items []WorkItem, maxWorkers int, exec Executor, onProgress ProgressFunc) Summary {
	jobID := uuid.New().String()[:8]
	summary := Summary{JobID: jobID, Total: len(items)}
	if len(items) == 0 {
		return summary
	}

	if maxWorkers > len(items) {
		maxWorkers = len(items)
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	slog.Info("job started", "job_id", jobID, "items", len(items), "workers", maxWorkers)

	var (
		mu        sync.Mutex
		completed int
	)
	total := len(items)

	// The mutex serializes only the counter update, the result append,
	// and the progress callback. It is never held across the executor.
	record := func(res Result) {
		mu.Lock()
		defer mu.Unlock()
		completed++
		summary.Results = append(summary.Results, res)
		if res.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		if onProgress != nil {
			onProgress(completed, total, res)
		}
	}

	work := make(chan WorkItem, len(items))
	var wg sync.WaitGroup
	for i := 0; i < maxWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for item := range work {
				// Cancellation extension point: a cancelled context
				// drains remaining items as failures instead of
				// executing them, after in-flight aliases are cleaned.
				if err := ctx.Err(); err != nil {
					record(Result{ItemID: item.ID(), Success: false, ExitCode: -1, Err: err})
					continue
				}
				record(r.runItem(ctx, workerID, item, exec))
			}
		}(i)
	}

	for _, item := range items {
		work <- item
	}
	close(work)
	wg.Wait()

	slog.Info("job finished", "job_id", jobID,
		"succeeded", summary.Succeeded, "failed", summary.Failed)
	return summary
}

// runItem executes one item with its alias held for the duration of
// the executor call. The alias is released on every exit path,
// including an executor panic.
func (r *Runner) runItem(ctx context.Context, workerID int, item WorkItem, exec Executor) (res Result) {
	if r.Metrics != nil {
		start := time.Now()
		defer func() { r.Metrics.RecordItem(r.Op, time.Since(start)) }()
	}
	defer func() {
		if p := recover(); p != nil {
			slog.Error("executor panicked", "item", item.ID(), "panic", p)
			res = Result{
				ItemID:   item.ID(),
				Success:  false,
				ExitCode: -1,
				Err:      fmt.Errorf("executor panic: %v", p),
			}
		}
	}()

	if r.AliasPrefix != "" {
		a, err := acquireAlias(r.AliasPrefix, item.InputPath)
		if err != nil {
			return Result{ItemID: item.ID(), Success: false, ExitCode: -1, Err: err}
		}
		defer func() {
			if err := a.release(); err != nil {
				slog.Warn("alias cleanup failed", "item", item.ID(), "error", err)
			}
		}()
		item.AliasPath = a.path
	} else {
		item.AliasPath = item.InputPath
	}

	slog.Debug("processing item", "worker", workerID, "item", item.ID())
	res = exec(ctx, item)
	res.ItemID = item.ID()
	return res
}
