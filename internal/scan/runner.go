package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ppiankov/bucketspectre/internal/probe"
	"golang.org/x/sync/errgroup"
)

// DefaultCleanupTimeout bounds the delete that removes a successfully written probe object
const DefaultCleanupTimeout = 10 * time.Second

// ProgressCallback is called after each resource completes
type ProgressCallback func(current, total int, message string)

// EmitFunc receives each record as soon as its resource completes.
// Calls are serialized.
type EmitFunc func(rec probe.Record) error

// Runner drives the probe pipeline over a list of resources
type Runner struct {
	prober           probe.Prober
	concurrency      int
	cleanupTimeout   time.Duration
	progressCallback ProgressCallback
	now              func() time.Time
}

// NewRunner creates a runner. Concurrency 1 keeps emission in input order.
func NewRunner(prober probe.Prober, concurrency int) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Runner{
		prober:         prober,
		concurrency:    concurrency,
		cleanupTimeout: DefaultCleanupTimeout,
		now:            time.Now,
	}
}

// SetProgressCallback sets the progress callback function
func (r *Runner) SetProgressCallback(callback ProgressCallback) {
	r.progressCallback = callback
}

// SetCleanupTimeout changes how long the cleanup delete may run
func (r *Runner) SetCleanupTimeout(d time.Duration) {
	if d > 0 {
		r.cleanupTimeout = d
	}
}

func (r *Runner) reportProgress(current, total int, message string) {
	if r.progressCallback != nil {
		r.progressCallback(current, total, message)
	}
}

// Run probes every name and emits one record per resource. Probe failures are
// recorded, never returned. Run returns an emit error or the context's error
// when the scan was cut short.
func (r *Runner) Run(ctx context.Context, names []string, emit EmitFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	var mu sync.Mutex
	total := len(names)
	current := 0

	for _, name := range names {
		if gctx.Err() != nil {
			break
		}
		name := name
		g.Go(func() error {
			// Checked again once a worker slot frees up
			if gctx.Err() != nil {
				return nil
			}

			rec := r.Probe(gctx, name)

			mu.Lock()
			defer mu.Unlock()
			current++
			r.reportProgress(current, total, fmt.Sprintf("Probed %s", name))
			if err := emit(rec); err != nil {
				return fmt.Errorf("failed to emit record for %s: %w", name, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Probe runs the fixed pipeline against one resource:
// existence, list, write, delete, permissions.
func (r *Runner) Probe(ctx context.Context, name string) probe.Record {
	p := r.prober
	rec := probe.Record{
		Provider: p.Provider(),
		Resource: name,
		Started:  r.now(),
	}

	rec.Existence = p.CheckExistence(ctx, name)
	r.logVerdict(name, rec.Existence)
	exists := rec.Existence.Result == probe.ResultExists

	gate := func(kind probe.Kind) (probe.Verdict, bool) {
		if ctx.Err() != nil {
			return probe.Skipped(kind, "scan canceled"), false
		}
		if p.RequiresExistence(kind) && !exists {
			return probe.Skipped(kind, "resource not confirmed to exist"), false
		}
		return probe.Verdict{}, true
	}
	record := func(v probe.Verdict) {
		r.logVerdict(name, v)
		rec.Checks = append(rec.Checks, v)
	}

	if v, ok := gate(probe.KindList); !ok {
		record(v)
	} else {
		record(p.ListObjects(ctx, name))
	}

	var write probe.Verdict
	if v, ok := gate(probe.KindWrite); !ok {
		write = v
	} else {
		write = p.AttemptWrite(ctx, name)
	}
	record(write)

	record(r.cleanup(ctx, name, write))

	if v, ok := gate(probe.KindPermissions); !ok {
		record(v)
	} else {
		for _, v := range p.CheckPermissions(ctx, name) {
			record(v)
		}
	}

	rec.Duration = r.now().Sub(rec.Started)
	return rec
}

// cleanup runs the delete probe only after an allowed write. It survives
// cancellation of ctx so a written object is not left behind.
func (r *Runner) cleanup(ctx context.Context, name string, write probe.Verdict) probe.Verdict {
	switch write.Result {
	case probe.ResultAllowed:
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cleanupTimeout)
		defer cancel()
		return r.prober.AttemptDelete(cleanupCtx, name)
	case probe.ResultUnsupported:
		return r.prober.AttemptDelete(ctx, name)
	default:
		return probe.Skipped(probe.KindDelete, "write was not allowed")
	}
}

func (r *Runner) logVerdict(name string, v probe.Verdict) {
	attrs := []any{
		slog.String("provider", string(r.prober.Provider())),
		slog.String("resource", name),
		slog.String("probe", string(v.Kind)),
		slog.String("result", string(v.Result)),
	}
	if v.Status != 0 {
		attrs = append(attrs, slog.Int("status", v.Status))
	}
	if v.Identity != "" {
		attrs = append(attrs, slog.String("identity", string(v.Identity)))
	}
	if v.Err != nil && !v.Succeeded() {
		attrs = append(attrs, slog.String("error", v.Err.Error()))
	}
	slog.Debug("Probe finished", attrs...)
}
