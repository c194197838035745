package commands

import (
	"github.com/ppiankov/bucketspectre/internal/analyzer"
	"github.com/ppiankov/bucketspectre/internal/azure"
	"github.com/ppiankov/bucketspectre/internal/probe"
	"github.com/ppiankov/bucketspectre/internal/transport"
	"github.com/spf13/cobra"
)

var storageFlags struct {
	scanFlags
	account string
}

var storageCmd = &cobra.Command{
	Use:     "storage [containers...]",
	Aliases: []string{"azure"},
	Short:   "Probe Azure Blob containers for anonymous access",
	Long: `Checks each container of a storage account for existence and attempts an
anonymous blob listing. Write, delete, and permission probes are not
supported for Azure and are reported as UNSUPPORTED.`,
	RunE: runStorage,
}

func init() {
	addScanFlags(storageCmd, &storageFlags.scanFlags)
	storageCmd.Flags().StringVarP(&storageFlags.account, "account", "a", "", "Storage account name (required)")
}

func runStorage(cmd *cobra.Command, args []string) error {
	f := &storageFlags
	f.applyConfig(cmd)
	if !cmd.Flags().Lookup("account").Changed && cfg.Account != "" {
		f.account = cfg.Account
	}

	var opts []azure.Option
	if f.endpoint != "" {
		opts = append(opts, azure.WithBaseURL(f.endpoint))
	}
	prober, err := azure.NewProber(transport.NewClient(transport.DefaultTimeout), f.account, opts...)
	if err != nil {
		return enhanceError("Azure prober initialization", err, f.concurrency)
	}

	names, err := loadTargets(cmd, args, &f.scanFlags, probe.ProviderAzure)
	if err != nil {
		return err
	}

	ctx, cancel := scanContext(cmd, f.timeout)
	defer cancel()

	header := newHeader(probe.ProviderAzure)
	header.Account = f.account
	return runScan(ctx, cmd, &f.scanFlags, scanJob{
		prober:   prober,
		names:    names,
		header:   header,
		analysis: analyzer.Config{},
	})
}
