package commands

import (
	"fmt"
	"time"

	"github.com/ppiankov/bucketspectre/internal/analyzer"
	"github.com/ppiankov/bucketspectre/internal/probe"
	"github.com/ppiankov/bucketspectre/internal/s3"
	"github.com/spf13/cobra"
)

var s3Flags struct {
	scanFlags
	region         string
	awsProfile     string
	requestTimeout time.Duration
}

var s3Cmd = &cobra.Command{
	Use:   "s3 [buckets...]",
	Short: "Probe S3 buckets for anonymous access",
	Long: `Checks each bucket for existence, then attempts an anonymous object listing,
a write of a marker object, and its deletion. Requests are unsigned unless
--aws-profile is given.`,
	RunE: runS3,
}

func init() {
	addScanFlags(s3Cmd, &s3Flags.scanFlags)
	s3Cmd.Flags().StringVarP(&s3Flags.region, "region", "r", "", "AWS region to probe from (required)")
	s3Cmd.Flags().StringVar(&s3Flags.awsProfile, "aws-profile", "", "AWS profile to sign requests with (default: unsigned)")
	s3Cmd.Flags().DurationVar(&s3Flags.requestTimeout, "request-timeout", 0, "Per-request timeout. 0 keeps the SDK default")
}

func runS3(cmd *cobra.Command, args []string) error {
	f := &s3Flags
	f.applyConfig(cmd)
	if !cmd.Flags().Lookup("region").Changed && cfg.Region != "" {
		f.region = cfg.Region
	}
	if !cmd.Flags().Lookup("aws-profile").Changed && cfg.AWSProfile != "" {
		f.awsProfile = cfg.AWSProfile
	}
	if !cmd.Flags().Lookup("request-timeout").Changed {
		if d := cfg.RequestTimeoutDuration(); d > 0 {
			f.requestTimeout = d
		}
	}
	if f.region == "" {
		return enhanceError("S3 client initialization", fmt.Errorf("--region is required: %w", probe.ErrConfiguration), f.concurrency)
	}

	names, err := loadTargets(cmd, args, &f.scanFlags, probe.ProviderS3)
	if err != nil {
		return err
	}

	ctx, cancel := scanContext(cmd, f.timeout)
	defer cancel()

	printStatus("Initializing AWS S3 client...")
	client, err := s3.NewClient(ctx, s3.Options{
		Profile:        f.awsProfile,
		Region:         f.region,
		RequestTimeout: f.requestTimeout,
		Endpoint:       f.endpoint,
	})
	if err != nil {
		return enhanceError("S3 client initialization", err, f.concurrency)
	}

	header := newHeader(probe.ProviderS3)
	header.Region = client.Region()
	return runScan(ctx, cmd, &f.scanFlags, scanJob{
		prober:   s3.NewProber(client),
		names:    names,
		header:   header,
		analysis: analyzer.Config{ExpectedRegion: client.Region()},
	})
}
