package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cryoet-tools/morphorun/internal/archive"
	"github.com/cryoet-tools/morphorun/internal/config"
	"github.com/cryoet-tools/morphorun/internal/experiment"
	"github.com/cryoet-tools/morphorun/internal/metrics"
	"github.com/cryoet-tools/morphorun/internal/pipeline"
	"github.com/cryoet-tools/morphorun/internal/runner"
	"github.com/cryoet-tools/morphorun/internal/status"
)

var runOnExisting string

var runCmd = &cobra.Command{
	Use:   "run <experiment-name> <stage>...",
	Short: "Run one or more pipeline stages for an experiment",
	Long: `Run pipeline stages in the order given. Stages are mesh,
curvature, and distance; "all" expands to the three in pipeline order.

Each stage's settings are written back to the experiment configuration
before it starts, existing outputs the stage would clobber are handled
per --on-existing, and the per-file work fans out across a worker pool
sized by the experiment's cores setting. A stage with item failures
stops the sequence and exits non-zero; the surviving results stay in
place.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runOnExisting, "on-existing", "archive",
		"what to do with previous outputs: overwrite, archive, or cancel")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if workDir == "" {
		return fmt.Errorf("--work-dir is required")
	}

	decision, err := archive.ParseDecision(runOnExisting)
	if err != nil {
		return err
	}

	stages, err := expandStages(args[1:])
	if err != nil {
		return err
	}

	mgr := experiment.NewManager()
	cfg, err := mgr.Resume(workDir, args[0])
	if err != nil {
		return err
	}
	layout := mgr.Layout()

	// With no explicit log file the run log lands next to the results,
	// where it belongs for later inspection.
	if settings.LogFile == "" {
		level := settings.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, cleanup := config.SetupLogger(filepath.Join(layout.Dir, "morphorun.log"), level)
		slog.SetDefault(logger)
		prev := logCleanup
		logCleanup = func() error {
			if prev != nil {
				_ = prev()
			}
			return cleanup()
		}
	}

	if err := os.MkdirAll(layout.ResultsDir, 0o755); err != nil {
		return fmt.Errorf("create results directory: %w", err)
	}

	// An external edit to the config mid-run marks the session stale
	// so a later section write cannot clobber it.
	stopWatch := startConfigWatch(cmd.Context(), mgr)
	defer stopWatch()

	collector := metrics.NewCollector()
	for _, stage := range stages {
		proceed, err := runStage(cmd.Context(), mgr, cfg, layout, stage, decision, collector)
		if err != nil {
			return err
		}
		if !proceed {
			fmt.Printf("Cancelled before %s stage, nothing touched.\n", stage.Name)
			return nil
		}
		// Later stages see settings the earlier ones persisted.
		cfg = mgr.Config()
	}

	snap := collector.Snapshot()
	for name, s := range snap.Stages {
		slog.Info("stage timing", "stage", name, "items", s.Count,
			"avg_ms", s.AvgTimeMs, "min_ms", s.MinTimeMs, "max_ms", s.MaxTimeMs)
	}
	return nil
}

// runStage executes one stage end to end. The returned bool is false
// when the archive guard cancelled the run.
func runStage(ctx context.Context, mgr *experiment.Manager, cfg config.Config, layout experiment.Layout, stage pipeline.Stage, decision archive.Decision, collector *metrics.Collector) (bool, error) {
	// Persist the stage's settings first so the external script reads
	// exactly what this run used.
	section, err := stage.SectionDocument(cfg)
	if err != nil {
		return false, err
	}
	if err := mgr.UpdateSection(stage.Section, section); err != nil {
		return false, fmt.Errorf("persist %s settings: %w", stage.Name, err)
	}

	matches, err := archive.Check(layout.ResultsDir, stage.ArchivePatterns, stage.ArchiveExcludes)
	if err != nil {
		return false, err
	}
	proceed, err := archive.Resolve(layout.ResultsDir, matches, decision, layout.ConfigPath)
	if err != nil {
		return false, err
	}
	if !proceed {
		return false, nil
	}

	items, err := stage.DiscoverInputs(cfg, layout)
	if err != nil {
		return false, err
	}
	if len(items) == 0 {
		fmt.Printf("No inputs for %s stage, nothing to do.\n", stage.Name)
		return true, nil
	}

	scriptPath, err := runner.LocateScript(stage.Script,
		layout.Dir, settings.ScriptsDir, executableScriptsDir())
	if err != nil {
		return false, err
	}

	exec := &runner.ScriptExecutor{
		Interpreter: settings.Interpreter,
		ScriptPath:  scriptPath,
		ConfigPath:  layout.ConfigPath,
		PassInput:   true,
	}
	r := &runner.Runner{AliasPrefix: cfg.ExpName, Metrics: collector, Op: stage.Name}

	summary := dispatch(ctx, r, stage, items, cfg.Cores, exec.Execute)

	fmt.Printf("%s stage: %d/%d succeeded\n", stage.Name, summary.Succeeded, summary.Total)
	if summary.Failed > 0 {
		for _, res := range summary.Results {
			if res.Success {
				continue
			}
			slog.Error("item failed", "stage", stage.Name, "item", res.ItemID,
				"exit_code", res.ExitCode, "stderr", res.Stderr)
		}
		return false, fmt.Errorf("%s stage: %d of %d items failed", stage.Name, summary.Failed, summary.Total)
	}
	return true, nil
}

// dispatch runs the job with the interactive progress UI on a
// terminal, or plain log-line progress otherwise.
func dispatch(ctx context.Context, r *runner.Runner, stage pipeline.Stage, items []runner.WorkItem, workers int, exec runner.Executor) runner.Summary {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		sink := status.NewLogSink(nil)
		return r.Run(ctx, items, workers, exec, progressFunc(sink))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sink := status.NewChannelSink(64)
	done := make(chan runner.Summary, 1)
	go func() {
		summary := r.Run(ctx, items, workers, exec, progressFunc(sink))
		sink.Close()
		done <- summary
	}()

	summary, err := RunJobProgress(stage.Name, sink.Events(), done, cancel)
	if err != nil {
		// The job keeps running headless if the UI itself failed.
		slog.Warn("progress UI unavailable, waiting for job", "error", err)
		return <-done
	}
	return summary
}

func progressFunc(sink status.Sink) runner.ProgressFunc {
	return func(completed, total int, last runner.Result) {
		sink.UpdateStatus(fmt.Sprintf("%d/%d  %s", completed, total, last.ItemID))
		sink.UpdateProgress(runner.Percent(completed, total))
	}
}

// startConfigWatch observes the active config file on a background
// goroutine until the returned stop function is called.
func startConfigWatch(ctx context.Context, mgr *experiment.Manager) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		if err := mgr.Watch(ctx); err != nil {
			slog.Warn("config watch unavailable", "error", err)
		}
	}()
	return cancel
}

// expandStages resolves CLI stage names, with "all" meaning the whole
// pipeline in order.
func expandStages(names []string) ([]pipeline.Stage, error) {
	var stages []pipeline.Stage
	for _, name := range names {
		if name == "all" {
			stages = append(stages, pipeline.All()...)
			continue
		}
		s, err := pipeline.ByName(name)
		if err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, nil
}

// executableScriptsDir is the scripts/ directory shipped next to the
// binary, the last fallback when neither the experiment nor
// MORPHORUN_SCRIPTS provides the analysis scripts.
func executableScriptsDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Join(filepath.Dir(exe), "scripts")
}
