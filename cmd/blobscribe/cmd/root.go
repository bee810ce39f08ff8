package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"blobscribe/cmd/blobscribe/cmd/run"
	"blobscribe/cmd/blobscribe/cmd/scan"
	"blobscribe/cmd/blobscribe/cmd/serve"
	"blobscribe/cmd/blobscribe/cmd/version"
)

var Verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "blobscribe",
	Short: "Batch transcription of audio objects in blob storage",
	Long: `Batch transcription of audio objects in blob storage.
- Discover audio files in a bucket, excluding already-processed folders
- Submit each file to the remote transcription service under a rate cap
- Save formatted and raw transcripts back to the bucket
- Archive each source file once its transcript is saved`,
	TraverseChildren: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(run.Cmd)
	rootCmd.AddCommand(scan.Cmd)
	rootCmd.AddCommand(serve.Cmd)
	rootCmd.AddCommand(version.Cmd)

	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "V", false, "verbose output")
}
