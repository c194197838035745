package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu   sync.Mutex
	base *slog.Logger
)

// New builds a text logger on w at WARN, or DEBUG when verbose
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// Init installs the stderr logger as the default
func Init(verbose bool) {
	SetBase(New(os.Stderr, verbose))
}

// SetBase installs l as the default and as the logger WithScan derives from
func SetBase(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	slog.SetDefault(l)
}

// WithScan tags every later default-logger record with the scan id.
// Each call replaces the previous tag.
func WithScan(scanID string) {
	mu.Lock()
	defer mu.Unlock()
	if base == nil {
		base = slog.Default()
	}
	slog.SetDefault(base.With("scan_id", scanID))
}
