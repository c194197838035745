package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ppiankov/bucketspectre/internal/config"
	"github.com/ppiankov/bucketspectre/internal/logging"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	version string
	commit  string
	date    string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "bucketspectre",
	Short: "BucketSpectre - public cloud storage exposure scanner",
	Long: `BucketSpectre probes S3 buckets, Google Cloud Storage buckets, and Azure Blob
containers for anonymous access: existence, object listing, unauthenticated
write and delete, and the IAM permissions granted to anonymous callers.

Part of the Spectre family of infrastructure tools.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose)
		loaded, err := config.Load(".")
		if err != nil {
			slog.Warn("Failed to load config file", "error", err)
		} else {
			cfg = loaded
		}
	},
}

// Execute runs the root command with injected build info.
// An interrupt cancels the scan between resources.
func Execute(v, c, d string) error {
	version = v
	commit = c
	date = d

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// GetVersion returns the current version.
func GetVersion() string {
	return version
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	rootCmd.AddCommand(s3Cmd)
	rootCmd.AddCommand(gcsCmd)
	rootCmd.AddCommand(storageCmd)
	rootCmd.AddCommand(versionCmd)
}
