package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"blobscribe/internal/api/server"
	"blobscribe/internal/app"
	"blobscribe/internal/app/discovery"
	"blobscribe/internal/app/logging"
	"blobscribe/internal/config"
)

var (
	addr     string
	prefix   string
	maxFiles int
)

func init() {
	Cmd.Flags().StringVarP(&addr, "addr", "a", "",
		"Dashboard listen address, for example :8080")
	Cmd.Flags().StringVarP(&prefix, "prefix", "p", "",
		"Only process audio objects under this key prefix")
	Cmd.Flags().IntVarP(&maxFiles, "max-files", "m", 0,
		"Stop discovery after this many files, 0 means unlimited")
}

// Cmd represents the serve command
var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline with a live web dashboard",
	Long: `Run the pipeline with a live web dashboard.

The dashboard exposes run progress, the failure list, ledger history,
and Prometheus metrics. It stays up after the run finishes so results
can be inspected; stop it with Ctrl-C.`,
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
		if cmd.Flags().Changed("addr") {
			cfg.DashboardAddr = addr
		}
		if cmd.Flags().Changed("prefix") {
			cfg.Pipeline.SourcePrefix = prefix
		}
		if cmd.Flags().Changed("max-files") {
			cfg.Pipeline.MaxFiles = maxFiles
		}

		logger := logging.MustNewLogger(cfg.Development)
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		tracker := server.NewTracker()
		pipeline, err := app.InitializePipeline(cfg, logger, tracker)
		if err != nil {
			return err
		}
		defer pipeline.Close()

		dashboard := server.NewServer(server.Config{
			Addr:        cfg.DashboardAddr,
			Development: cfg.Development,
		}, tracker, pipeline.Ledger, pipeline.Registry, logger)
		if err := dashboard.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			dashboard.Shutdown(shutdownCtx)
		}()

		items, err := pipeline.Scanner.Discover(ctx, discovery.Options{
			Prefix:   cfg.Pipeline.SourcePrefix,
			MaxItems: cfg.Pipeline.MaxFiles,
		})
		if err != nil {
			return err
		}

		if len(items) > 0 {
			tracker.BeginRun("", len(items))
			summary, runErr := pipeline.Orchestrator.Run(ctx, items)
			tracker.EndRun()
			if runErr != nil {
				logger.Error("run stopped early", zap.Error(runErr))
			} else {
				logger.Info("run finished",
					zap.Int("succeeded", summary.Succeeded),
					zap.Int("failed", summary.Failed),
					zap.Int("rate_limited", summary.RateLimited))
			}
		} else {
			logger.Info("no audio files pending")
		}

		fmt.Printf("Dashboard listening on %s, press Ctrl-C to stop.\n", cfg.DashboardAddr)
		<-ctx.Done()
		return nil
	},
}
