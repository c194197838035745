package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ppiankov/bucketspectre/internal/analyzer"
	"github.com/ppiankov/bucketspectre/internal/probe"
)

type recordLine struct {
	Type     string             `json:"type"`
	ScanID   string             `json:"scan_id"`
	Record   probe.Record       `json:"record"`
	Findings []analyzer.Finding `json:"findings"`
}

type summaryLine struct {
	Header
	Type     string            `json:"type"`
	Finished time.Time         `json:"finished"`
	Summary  *analyzer.Summary `json:"summary"`
}

// JSONReporter writes newline-delimited JSON: one object per record, then a summary
type JSONReporter struct {
	encoder *json.Encoder
	header  Header
	now     func() time.Time
}

// NewJSONReporter creates a new JSON reporter
func NewJSONReporter(w io.Writer, header Header) *JSONReporter {
	return &JSONReporter{encoder: json.NewEncoder(w), header: header, now: time.Now}
}

// Record writes one record line
func (r *JSONReporter) Record(rec probe.Record, findings []analyzer.Finding) error {
	if findings == nil {
		findings = []analyzer.Finding{}
	}
	rec.Started = rec.Started.UTC()
	line := recordLine{Type: "record", ScanID: r.header.ScanID, Record: rec, Findings: findings}
	if err := r.encoder.Encode(line); err != nil {
		return fmt.Errorf("failed to write record for %s: %w", rec.Resource, err)
	}
	return nil
}

// Finish writes the summary line
func (r *JSONReporter) Finish(summary *analyzer.Summary) error {
	header := r.header
	header.Started = header.Started.UTC()
	line := summaryLine{Header: header, Type: "summary", Finished: r.now().UTC(), Summary: summary}
	if err := r.encoder.Encode(line); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}
