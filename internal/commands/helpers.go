package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ppiankov/bucketspectre/internal/probe"
	"github.com/ppiankov/bucketspectre/internal/report"
	"github.com/ppiankov/bucketspectre/internal/targets"
)

func printStatus(format string, args ...interface{}) {
	slog.Info(fmt.Sprintf(format, args...))
}

// enhanceError enhances an error with additional context and helpful suggestions
func enhanceError(operation string, err error, concurrency int) error {
	if err == nil {
		return nil
	}

	errMsg := err.Error()

	if errors.Is(err, targets.ErrNoTargets) {
		return fmt.Errorf("%s failed: No resource names given.\n"+
			"Solutions:\n"+
			"  - Pass names as arguments\n"+
			"  - Use --file with a path, or - to read names from stdin\n"+
			"Original error: %w", operation, err)
	}

	if strings.Contains(errMsg, "invalid region") {
		return fmt.Errorf("%s failed: Invalid AWS region.\n"+
			"Solutions:\n"+
			"  - Pass a region identifier such as us-east-1 with --region\n"+
			"  - Set region in .bucketspectre.yaml\n"+
			"Original error: %w", operation, err)
	}

	if strings.Contains(errMsg, "failed to get shared config profile") || strings.Contains(errMsg, "SharedConfigProfileNotExist") {
		return fmt.Errorf("%s failed: AWS profile not found.\n"+
			"Solutions:\n"+
			"  - Check the --aws-profile name\n"+
			"  - Omit --aws-profile to send unsigned requests\n"+
			"Original error: %w", operation, err)
	}

	if strings.Contains(errMsg, "storage account is required") {
		return fmt.Errorf("%s failed: No storage account given.\n"+
			"Solutions:\n"+
			"  - Use --account flag\n"+
			"  - Set account in .bucketspectre.yaml\n"+
			"Original error: %w", operation, err)
	}

	if strings.Contains(errMsg, "RequestLimitExceeded") || strings.Contains(errMsg, "SlowDown") {
		return fmt.Errorf("%s failed: Provider rate limit exceeded.\n"+
			"Solutions:\n"+
			"  - Reduce concurrency with --concurrency flag (current: %d)\n"+
			"  - Wait a few seconds and try again\n"+
			"Original error: %w", operation, concurrency, err)
	}

	if strings.Contains(errMsg, "no such file or directory") {
		return fmt.Errorf("%s failed: File not found.\n"+
			"Solutions:\n"+
			"  - Check the --file or --output path is correct\n"+
			"  - Ensure the file exists and is readable\n"+
			"Original error: %w", operation, err)
	}

	if errors.Is(err, probe.ErrConfiguration) {
		return fmt.Errorf("%s failed: Invalid configuration: %w", operation, err)
	}

	// Default error with context
	return fmt.Errorf("%s failed: %w", operation, err)
}

func selectReporter(format string, writer io.Writer, header report.Header) (report.Reporter, error) {
	switch format {
	case "json":
		return report.NewJSONReporter(writer, header), nil
	case "text":
		return report.NewTextReporter(writer, header), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: text, json)", format)
	}
}
