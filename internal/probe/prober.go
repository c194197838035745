package probe

import "context"

// Prober issues the capability checks for one provider.
//
// Implementations hold no scan state and are safe for concurrent use. Operations a
// provider does not implement return an Unsupported verdict without network I/O.
type Prober interface {
	Provider() Provider
	CheckExistence(ctx context.Context, name string) Verdict
	ListObjects(ctx context.Context, name string) Verdict
	AttemptWrite(ctx context.Context, name string) Verdict
	AttemptDelete(ctx context.Context, name string) Verdict
	// CheckPermissions returns one verdict per identity context, anonymous first.
	CheckPermissions(ctx context.Context, name string) []Verdict
	// RequiresExistence reports whether kind should only run after a confirmed existence probe.
	RequiresExistence(kind Kind) bool
}

// SampleLimit caps the object names kept on a listing verdict.
const SampleLimit = 10

// Sample truncates names to SampleLimit entries.
func Sample(names []string) []string {
	if len(names) > SampleLimit {
		return names[:SampleLimit]
	}
	return names
}
