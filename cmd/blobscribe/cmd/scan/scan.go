package scan

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"blobscribe/internal/app/blobstore"
	"blobscribe/internal/app/discovery"
	"blobscribe/internal/app/logging"
	"blobscribe/internal/config"
)

var (
	prefix   string
	maxFiles int
)

func init() {
	Cmd.Flags().StringVarP(&prefix, "prefix", "p", "",
		"Only list audio objects under this key prefix")
	Cmd.Flags().IntVarP(&maxFiles, "max-files", "m", 0,
		"Stop discovery after this many files, 0 means unlimited")
}

// Cmd represents the scan command
var Cmd = &cobra.Command{
	Use:   "scan",
	Short: "List the audio files a run would process, without transcribing",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.RequireBlob(); err != nil {
			return err
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

		store, err := blobstore.NewMinioStore(blobstore.MinioConfig{
			Endpoint:  cfg.Blob.Endpoint,
			AccessKey: cfg.Blob.AccessKey,
			SecretKey: cfg.Blob.SecretKey,
			Bucket:    cfg.Blob.Bucket,
			UseSSL:    cfg.Blob.UseSSL,
		})
		if err != nil {
			return err
		}

		items, err := discovery.NewScanner(store, logger).Discover(ctx, discovery.Options{
			Prefix:   cfg.Pipeline.SourcePrefix,
			MaxItems: cfg.Pipeline.MaxFiles,
		})
		if err != nil {
			return err
		}

		for _, item := range items {
			if item.AudioURL != "" {
				fmt.Printf("%s\t%s\n", item.Path, item.AudioURL)
			} else {
				fmt.Println(item.Path)
			}
		}
		fmt.Printf("\n%d audio file(s) pending.\n", len(items))
		return nil
	},
}
