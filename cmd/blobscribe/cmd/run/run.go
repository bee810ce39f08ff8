package run

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"blobscribe/internal/app"
	"blobscribe/internal/app/discovery"
	"blobscribe/internal/app/logging"
	"blobscribe/internal/app/model"
	"blobscribe/internal/config"
)

var (
	prefix    string
	maxFiles  int
	batchSize int
)

func init() {
	Cmd.Flags().StringVarP(&prefix, "prefix", "p", "",
		"Only process audio objects under this key prefix")
	Cmd.Flags().IntVarP(&maxFiles, "max-files", "m", 0,
		"Stop discovery after this many files, 0 means unlimited")
	Cmd.Flags().IntVarP(&batchSize, "batch-size", "b", 0,
		"Target number of files processed concurrently per batch")
}

// Cmd represents the run command
var Cmd = &cobra.Command{
	Use:   "run",
	Short: "Discover, transcribe, and archive audio files in the bucket",
	Long: `Discover, transcribe, and archive audio files in the bucket.

- Walk the bucket for audio files, skipping archive and output folders
- Submit each file to the transcription service under the hourly rate cap
- Save formatted and raw transcripts, then move the source to the archive
- Rate-limited files are left in place for the next run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.RequireBlob(); err != nil {
			return err
		}
		if err := cfg.RequireVoiceGain(); err != nil {
			return err
		}
		if cmd.Flags().Changed("prefix") {
			cfg.Pipeline.SourcePrefix = prefix
		}
		if cmd.Flags().Changed("max-files") {
			cfg.Pipeline.MaxFiles = maxFiles
		}
		if cmd.Flags().Changed("batch-size") {
			cfg.Pipeline.BatchSize = batchSize
		}

		logger := logging.MustNewLogger(cfg.Development)
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pipeline, err := app.InitializePipeline(cfg, logger)
		if err != nil {
			return err
		}
		defer pipeline.Close()

		items, err := pipeline.Scanner.Discover(ctx, discovery.Options{
			Prefix:   cfg.Pipeline.SourcePrefix,
			MaxItems: cfg.Pipeline.MaxFiles,
		})
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No audio files to process.")
			return nil
		}

		summary, runErr := pipeline.Orchestrator.Run(ctx, items)
		printSummary(summary)
		return runErr
	},
}

func printSummary(summary model.RunSummary) {
	fmt.Printf("\nRun %s finished in %s\n",
		summary.RunID, summary.FinishedAt.Sub(summary.StartedAt).Round(time.Second))
	fmt.Printf("  total:        %d\n", summary.Total)
	fmt.Printf("  succeeded:    %d\n", summary.Succeeded)
	fmt.Printf("  failed:       %d\n", summary.Failed)
	fmt.Printf("  rate limited: %d\n", summary.RateLimited)
	for _, failure := range summary.Failures {
		fmt.Printf("    %s: %s (%s)\n", failure.Status, failure.AudioPath, failure.Error)
	}
}
