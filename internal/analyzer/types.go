package analyzer

import "github.com/ppiankov/bucketspectre/internal/probe"

// FindingType classifies an exposure or a probe problem
type FindingType string

const (
	FindingPublicList           FindingType = "PUBLIC_LIST"
	FindingPublicWrite          FindingType = "PUBLIC_WRITE"
	FindingPublicDelete         FindingType = "PUBLIC_DELETE"
	FindingAnonymousPermissions FindingType = "ANONYMOUS_PERMISSIONS"
	FindingCleanupFailed        FindingType = "CLEANUP_FAILED"
	FindingRegionMismatch       FindingType = "REGION_MISMATCH"
	FindingUnknownStatus        FindingType = "UNKNOWN_STATUS"
	FindingProbeFailure         FindingType = "PROBE_FAILURE"
)

// Severity ranks findings
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
	SeverityInfo   Severity = "info"
)

// Finding is one observation derived from a scan record
type Finding struct {
	Type        FindingType    `json:"type"`
	Severity    Severity       `json:"severity"`
	Provider    probe.Provider `json:"provider"`
	Resource    string         `json:"resource"`
	Probe       probe.Kind     `json:"probe"`
	Identity    probe.Identity `json:"identity,omitempty"`
	Message     string         `json:"message"`
	Permissions []string       `json:"permissions,omitempty"`
}

// Config contains analyzer configuration
type Config struct {
	// ExpectedRegion is the region S3 probes were issued in
	ExpectedRegion string
}

// PermissionDiff compares what anonymous and authenticated callers hold
type PermissionDiff struct {
	AnonymousOnly     []string `json:"anonymous_only"`
	AuthenticatedOnly []string `json:"authenticated_only"`
	Shared            []string `json:"shared"`
}

// Summary tallies a whole scan
type Summary struct {
	TotalResources    int                 `json:"total_resources"`
	ExistingResources int                 `json:"existing_resources"`
	PublicResources   []string            `json:"public_resources,omitempty"`
	TotalFindings     int                 `json:"total_findings"`
	ByType            map[FindingType]int `json:"by_type"`
	BySeverity        map[Severity]int    `json:"by_severity"`
}
