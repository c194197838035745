package report

import (
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/bucketspectre/internal/analyzer"
	"github.com/ppiankov/bucketspectre/internal/probe"
)

// Reporter receives records as they complete and a summary once the scan ends
type Reporter interface {
	Record(rec probe.Record, findings []analyzer.Finding) error
	Finish(summary *analyzer.Summary) error
}

// Header describes the scan a report belongs to
type Header struct {
	Tool     string         `json:"tool"`
	Version  string         `json:"version"`
	ScanID   string         `json:"scan_id"`
	Provider probe.Provider `json:"provider"`
	Region   string         `json:"region,omitempty"`
	Account  string         `json:"account,omitempty"`
	Started  time.Time      `json:"started"`
}

// NewScanID returns a fresh identifier for one scan run
func NewScanID() string {
	return uuid.NewString()
}

// errWriter keeps the first write error so reporters can return it once
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}
