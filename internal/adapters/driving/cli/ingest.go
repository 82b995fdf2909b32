package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/radnorm/radnorm/internal/adapters/driving/tui"
	"github.com/radnorm/radnorm/internal/connectors/filesystem"
	"github.com/radnorm/radnorm/internal/core/domain"
	"github.com/radnorm/radnorm/internal/core/ports/driving"
	"github.com/radnorm/radnorm/internal/logger"
)

var (
	ingestWorkers int
	ingestTimeout int
	ingestPlain   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Ingest annotation exports from files or directories",
	Long: `Ingest reads annotation export files (XML, JSON), detects the parse case
each one follows, maps them into canonical documents and persists them.

Each argument may be a single file or a directory scanned recursively. The
command blocks until the batch finishes, showing a progress bar unless
--plain is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Watch a directory and ingest files as they appear",
	Long: `Watch performs an initial ingest of the directory, then keeps running and
ingests every annotation file created or rewritten under it. Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	ingestCmd.Flags().IntVarP(&ingestWorkers, "workers", "w", 0, "Worker pool size (0 = configured default)")
	ingestCmd.Flags().IntVar(&ingestTimeout, "timeout", 0, "Per-item store timeout in seconds (0 = configured default)")
	ingestCmd.Flags().BoolVar(&ingestPlain, "plain", false, "Line-based progress output instead of the progress bar")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(watchCmd)
}

// collectInputs reads the path as a single file or scans it as a directory.
func collectInputs(ctx context.Context, path string) ([]domain.RawInput, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if info.IsDir() {
		return filesystem.NewScanner().Scan(ctx, path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return []domain.RawInput{{SourceIdentifier: path, Content: content}}, nil
}

func ingestOptions() driving.IngestOptions {
	opts := driving.IngestOptions{Workers: ingestWorkers, StoreTimeout: ingestTimeout}
	if services.Config != nil {
		if opts.Workers == 0 {
			opts.Workers = services.Config.GetInt("ingest.workers")
		}
	}
	return opts
}

func runIngest(cmd *cobra.Command, args []string) error {
	if services == nil || services.Ingestor == nil {
		return errors.New("ingestor not configured")
	}
	ctx := cmd.Context()

	var inputs []domain.RawInput
	for _, path := range args {
		batch, err := collectInputs(ctx, path)
		if err != nil {
			return err
		}
		inputs = append(inputs, batch...)
	}
	if len(inputs) == 0 {
		cmd.Println("No annotation files found.")
		return nil
	}

	jobID, err := services.Ingestor.Submit(ctx, inputs, ingestOptions())
	if err != nil {
		return fmt.Errorf("failed to submit batch: %w", err)
	}
	cmd.Printf("Job %s: %d items\n", jobID, len(inputs))

	if !ingestPlain {
		if err := tui.RunProgress(services.Ingestor, jobID); err != nil {
			return err
		}
	} else {
		followPlain(cmd, jobID)
	}

	return printSummary(cmd, ctx, jobID)
}

// followPlain prints one line per progress event until the job finishes.
func followPlain(cmd *cobra.Command, jobID string) {
	events, cancel := services.Ingestor.Subscribe()
	defer cancel()

	for event := range events {
		if event.JobID != jobID {
			continue
		}
		if event.CurrentItem != "" {
			cmd.Printf("  [%d/%d] %s\n", event.Current, event.Total, event.CurrentItem)
		}
		if event.Status.Terminal() {
			return
		}
	}
}

// printSummary waits for the terminal state and reports per-item outcomes.
func printSummary(cmd *cobra.Command, ctx context.Context, jobID string) error {
	summary, err := services.Ingestor.Wait(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to await batch: %w", err)
	}

	cmd.Printf("\nJob %s %s: %d succeeded, %d failed of %d\n",
		summary.JobID, summary.Status, summary.Succeeded, summary.Failed, summary.Total)

	for _, item := range summary.Items {
		switch {
		case item.Err != nil:
			cmd.Printf("  FAIL %s: %v\n", item.SourceIdentifier, item.Err)
		case len(item.Warnings) > 0:
			cmd.Printf("  WARN %s (case %s): %s\n", item.SourceIdentifier, item.CaseName, item.Warnings[0])
		}
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d items failed", summary.Failed, summary.Total)
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	if services == nil || services.Ingestor == nil {
		return errors.New("ingestor not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := args[0]

	// Initial sweep, then keep streaming.
	inputs, err := collectInputs(ctx, root)
	if err != nil {
		return err
	}
	if len(inputs) > 0 {
		jobID, err := services.Ingestor.Submit(ctx, inputs, ingestOptions())
		if err != nil {
			return fmt.Errorf("failed to submit initial batch: %w", err)
		}
		if err := printSummary(cmd, ctx, jobID); err != nil {
			logger.Warn("Initial sweep: %v", err)
		}
	}

	watcher, err := filesystem.NewWatcher(filesystem.NewScanner())
	if err != nil {
		return err
	}
	defer watcher.Close()

	stream, err := watcher.Watch(ctx, root)
	if err != nil {
		return err
	}

	cmd.Printf("Watching %s (Ctrl-C to stop)\n", root)
	for input := range stream {
		jobID, err := services.Ingestor.Submit(ctx, []domain.RawInput{input}, ingestOptions())
		if err != nil {
			logger.Warn("Submitting %s: %v", input.SourceIdentifier, err)
			continue
		}
		summary, err := services.Ingestor.Wait(ctx, jobID)
		if err != nil {
			logger.Warn("Awaiting %s: %v", input.SourceIdentifier, err)
			continue
		}
		for _, item := range summary.Items {
			if item.Err != nil {
				cmd.Printf("  FAIL %s: %v\n", item.SourceIdentifier, item.Err)
			} else {
				cmd.Printf("  OK   %s (case %s)\n", item.SourceIdentifier, item.CaseName)
			}
		}
	}
	return nil
}
