package commands

import (
	"github.com/ppiankov/bucketspectre/internal/analyzer"
	"github.com/ppiankov/bucketspectre/internal/gcs"
	"github.com/ppiankov/bucketspectre/internal/probe"
	"github.com/ppiankov/bucketspectre/internal/transport"
	"github.com/spf13/cobra"
)

var gcsFlags struct {
	scanFlags
	credentialsEnv string
}

var gcsCmd = &cobra.Command{
	Use:   "gcs [buckets...]",
	Short: "Probe Google Cloud Storage buckets for anonymous access",
	Long: `Checks each bucket for existence, attempts an anonymous object listing, and
compares the IAM permissions held by anonymous callers with those of the
service account named by the credentials environment variable.`,
	RunE: runGCS,
}

func init() {
	addScanFlags(gcsCmd, &gcsFlags.scanFlags)
	gcsCmd.Flags().StringVar(&gcsFlags.credentialsEnv, "credentials-env", gcs.DefaultCredentialsEnv, "Environment variable holding the service-account key path")
}

func runGCS(cmd *cobra.Command, args []string) error {
	f := &gcsFlags
	f.applyConfig(cmd)
	if !cmd.Flags().Lookup("credentials-env").Changed && cfg.CredentialsEnv != "" {
		f.credentialsEnv = cfg.CredentialsEnv
	}

	names, err := loadTargets(cmd, args, &f.scanFlags, probe.ProviderGCS)
	if err != nil {
		return err
	}

	ctx, cancel := scanContext(cmd, f.timeout)
	defer cancel()

	opts := []gcs.Option{gcs.WithCredentialsEnv(f.credentialsEnv)}
	if f.endpoint != "" {
		opts = append(opts, gcs.WithBaseURL(f.endpoint))
	}
	prober := gcs.NewProber(transport.NewClient(transport.DefaultTimeout), opts...)

	return runScan(ctx, cmd, &f.scanFlags, scanJob{
		prober:   prober,
		names:    names,
		header:   newHeader(probe.ProviderGCS),
		analysis: analyzer.Config{},
	})
}
