package report

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/ppiankov/bucketspectre/internal/analyzer"
	"github.com/ppiankov/bucketspectre/internal/probe"
)

// TextReporter writes one human-readable line per probe
type TextReporter struct {
	writer        *errWriter
	header        Header
	headerWritten bool
}

// NewTextReporter creates a new text reporter
func NewTextReporter(w io.Writer, header Header) *TextReporter {
	return &TextReporter{writer: &errWriter{w: w}, header: header}
}

func (r *TextReporter) writeHeader() {
	if r.headerWritten {
		return
	}
	r.headerWritten = true

	fmt.Fprintf(r.writer, "BucketSpectre Report\n")
	fmt.Fprintf(r.writer, "====================\n\n")
	fmt.Fprintf(r.writer, "Scan ID: %s\n", r.header.ScanID)
	fmt.Fprintf(r.writer, "Scan Time: %s\n", r.header.Started.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(r.writer, "Provider: %s\n", r.header.Provider)
	if r.header.Region != "" {
		fmt.Fprintf(r.writer, "Region: %s\n", r.header.Region)
	}
	if r.header.Account != "" {
		fmt.Fprintf(r.writer, "Account: %s\n", r.header.Account)
	}
	fmt.Fprintf(r.writer, "\n")
}

// Record writes the verdict lines and findings for one resource
func (r *TextReporter) Record(rec probe.Record, findings []analyzer.Finding) error {
	r.writeHeader()

	r.printVerdict(rec, rec.Existence)
	for _, v := range rec.Checks {
		r.printVerdict(rec, v)
	}
	for _, f := range findings {
		fmt.Fprintf(r.writer, "    %s %s: %s\n", severityLabel(f.Severity), f.Type, f.Message)
	}
	fmt.Fprintf(r.writer, "\n")

	return r.writer.err
}

func (r *TextReporter) printVerdict(rec probe.Record, v probe.Verdict) {
	line := fmt.Sprintf("%s %s %s %s", rec.Provider, rec.Resource, v.Kind, resultLabel(v.Result))
	if details := verdictDetails(v); details != "" {
		line += " [" + details + "]"
	}
	fmt.Fprintf(r.writer, "%s\n", line)
}

func verdictDetails(v probe.Verdict) string {
	var parts []string
	if v.Identity != "" {
		parts = append(parts, string(v.Identity))
	}
	if v.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", v.Status))
	}
	if v.Region != "" {
		parts = append(parts, "region="+v.Region)
	}
	if v.ErrorBody != nil && v.ErrorBody.Code != "" {
		parts = append(parts, "code="+v.ErrorBody.Code)
	}
	if len(v.Objects) > 0 {
		parts = append(parts, "objects="+strings.Join(v.Objects, ","))
	}
	if v.Permissions != nil {
		if v.Permissions.Empty() {
			parts = append(parts, "permissions=none")
		} else {
			parts = append(parts, "permissions="+strings.Join(v.Permissions.Granted, ","))
		}
	}
	if v.Err != nil && !errors.Is(v.Err, probe.ErrCapabilityDenied) && v.Result != probe.ResultAmbiguous {
		parts = append(parts, v.Err.Error())
	}
	return strings.Join(parts, " ")
}

func resultLabel(result probe.Result) string {
	s := string(result)
	switch result {
	case probe.ResultAllowed:
		return color.RedString(s)
	case probe.ResultExists:
		return color.CyanString(s)
	case probe.ResultDenied, probe.ResultNotFound:
		return color.GreenString(s)
	case probe.ResultAmbiguous:
		return color.MagentaString(s)
	case probe.ResultTransportFailure, probe.ResultConfigError:
		return color.YellowString(s)
	default:
		return s
	}
}

func severityLabel(sev analyzer.Severity) string {
	label := "[" + strings.ToUpper(string(sev)) + "]"
	switch sev {
	case analyzer.SeverityHigh:
		return color.RedString(label)
	case analyzer.SeverityMedium:
		return color.YellowString(label)
	case analyzer.SeverityLow:
		return color.MagentaString(label)
	default:
		return color.CyanString(label)
	}
}

// Finish writes the summary block
func (r *TextReporter) Finish(summary *analyzer.Summary) error {
	r.writeHeader()

	fmt.Fprintf(r.writer, "%s\n", color.CyanString("Summary"))
	fmt.Fprintf(r.writer, "%s\n", strings.Repeat("-", 70))
	fmt.Fprintf(r.writer, "Resources Probed: %d\n", summary.TotalResources)
	fmt.Fprintf(r.writer, "Resources Found: %d\n", summary.ExistingResources)
	fmt.Fprintf(r.writer, "Findings: %d\n", summary.TotalFindings)

	for _, sev := range []analyzer.Severity{analyzer.SeverityHigh, analyzer.SeverityMedium, analyzer.SeverityLow, analyzer.SeverityInfo} {
		if n := summary.BySeverity[sev]; n > 0 {
			fmt.Fprintf(r.writer, "  %s %d\n", severityLabel(sev), n)
		}
	}

	if len(summary.ByType) > 0 {
		types := make([]string, 0, len(summary.ByType))
		for typ := range summary.ByType {
			types = append(types, string(typ))
		}
		sort.Strings(types)
		for _, typ := range types {
			fmt.Fprintf(r.writer, "  %s: %d\n", typ, summary.ByType[analyzer.FindingType(typ)])
		}
	}

	if summary.HasPublic() {
		fmt.Fprintf(r.writer, "\n%s\n", color.RedString("Public Resources"))
		for _, name := range summary.PublicResources {
			fmt.Fprintf(r.writer, "  - %s\n", name)
		}
	}

	return r.writer.err
}
