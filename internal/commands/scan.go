package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ppiankov/bucketspectre/internal/analyzer"
	"github.com/ppiankov/bucketspectre/internal/logging"
	"github.com/ppiankov/bucketspectre/internal/probe"
	"github.com/ppiankov/bucketspectre/internal/report"
	"github.com/ppiankov/bucketspectre/internal/scan"
	"github.com/ppiankov/bucketspectre/internal/targets"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// scanFlags are shared by every provider subcommand
type scanFlags struct {
	file         string
	concurrency  int
	outputFormat string
	outputFile   string
	timeout      time.Duration
	failOnPublic bool
	noProgress   bool
	endpoint     string
}

func addScanFlags(cmd *cobra.Command, f *scanFlags) {
	cmd.Flags().StringVar(&f.file, "file", "", "Read resource names from a file, one per line (- for stdin)")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 1, "Resources probed in parallel")
	cmd.Flags().StringVarP(&f.outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().StringVarP(&f.outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Total scan timeout (e.g. 5m, 30s). 0 means no timeout")
	cmd.Flags().BoolVar(&f.failOnPublic, "fail-on-public", false, "Exit with error if any resource is publicly exposed")
	cmd.Flags().BoolVar(&f.noProgress, "no-progress", false, "Disable progress indicators")
	cmd.Flags().StringVar(&f.endpoint, "endpoint", "", "Override the service endpoint (e.g. a local emulator)")
}

func (f *scanFlags) applyConfig(cmd *cobra.Command) {
	if !cmd.Flags().Lookup("concurrency").Changed && cfg.Concurrency > 0 {
		f.concurrency = cfg.Concurrency
	}
	if !cmd.Flags().Lookup("format").Changed && cfg.Format != "" {
		f.outputFormat = cfg.Format
	}
	if !cmd.Flags().Lookup("timeout").Changed {
		if d := cfg.TimeoutDuration(); d > 0 {
			f.timeout = d
		}
	}
}

// loadTargets reads names and logs a warning for each one the provider cannot accept
func loadTargets(cmd *cobra.Command, args []string, f *scanFlags, provider probe.Provider) ([]string, error) {
	names, err := targets.Load(args, f.file, cmd.InOrStdin())
	if err != nil {
		return nil, enhanceError("target loading", err, f.concurrency)
	}
	for _, name := range names {
		if warning := targets.Check(provider, name); warning != "" {
			slog.Warn("Suspicious resource name", slog.String("provider", string(provider)), slog.String("warning", warning))
		}
	}
	return names, nil
}

// scanJob is everything runScan needs besides the shared flags
type scanJob struct {
	prober   probe.Prober
	names    []string
	header   report.Header
	analysis analyzer.Config
}

func newHeader(provider probe.Provider) report.Header {
	return report.Header{
		Tool:     "bucketspectre",
		Version:  GetVersion(),
		ScanID:   report.NewScanID(),
		Provider: provider,
		Started:  time.Now(),
	}
}

// scanContext applies --timeout on top of the command context
func scanContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func runScan(ctx context.Context, cmd *cobra.Command, f *scanFlags, job scanJob) error {
	start := time.Now()
	logging.WithScan(job.header.ScanID)

	// Determine output writer
	var writer io.Writer = cmd.OutOrStdout()
	if f.outputFile != "" {
		file, err := os.Create(f.outputFile)
		if err != nil {
			return enhanceError("output file creation", err, f.concurrency)
		}
		defer func() { _ = file.Close() }()
		writer = file
	}

	reporter, err := selectReporter(f.outputFormat, writer, job.header)
	if err != nil {
		return err
	}

	runner := scan.NewRunner(job.prober, f.concurrency)

	// Check if we're running in a terminal (for progress indicators)
	isTTY := term.IsTerminal(int(os.Stderr.Fd()))
	if isTTY && !f.noProgress {
		runner.SetProgressCallback(func(current, total int, message string) {
			slog.Debug("Scan progress", slog.Int("current", current), slog.Int("total", total), slog.String("message", message))
		})
	}

	printStatus("Probing %d %s resources", len(job.names), job.header.Provider)
	summary := analyzer.NewSummary()
	runErr := runner.Run(ctx, job.names, func(rec probe.Record) error {
		findings := analyzer.Analyze(rec, job.analysis)
		summary.Add(rec, findings)
		return reporter.Record(rec, findings)
	})

	// A cut-short scan still reports what it finished
	if err := reporter.Finish(summary); err != nil {
		return enhanceError("report generation", err, f.concurrency)
	}

	slog.Info("Scan complete",
		slog.Int("resource_count", summary.TotalResources),
		slog.Int("existing_count", summary.ExistingResources),
		slog.Int("finding_count", summary.TotalFindings),
		slog.Duration("duration", time.Since(start)),
	)

	if runErr != nil {
		switch {
		case errors.Is(runErr, context.DeadlineExceeded):
			return fmt.Errorf("scan timed out after %d of %d resources: %w", summary.TotalResources, len(job.names), runErr)
		case errors.Is(runErr, context.Canceled):
			return fmt.Errorf("scan interrupted after %d of %d resources: %w", summary.TotalResources, len(job.names), runErr)
		default:
			return enhanceError("report generation", runErr, f.concurrency)
		}
	}

	// Check exit conditions
	if f.failOnPublic && summary.HasPublic() {
		return fmt.Errorf("found %d publicly exposed resources", len(summary.PublicResources))
	}
	return nil
}
