package analyzer

import (
	"fmt"
	"strings"

	"github.com/ppiankov/bucketspectre/internal/probe"
)

// Permissions that let a caller change data or access control
var mutatingPermissions = []string{
	"storage.buckets.delete",
	"storage.buckets.setIamPolicy",
	"storage.buckets.update",
	"storage.objects.create",
	"storage.objects.delete",
	"storage.objects.update",
}

// Analyze derives findings from one resource's record
func Analyze(rec probe.Record, config Config) []Finding {
	var findings []Finding
	add := func(v probe.Verdict, typ FindingType, sev Severity, msg string) {
		findings = append(findings, Finding{
			Type:     typ,
			Severity: sev,
			Provider: rec.Provider,
			Resource: rec.Resource,
			Probe:    v.Kind,
			Identity: v.Identity,
			Message:  msg,
		})
	}

	verdicts := append([]probe.Verdict{rec.Existence}, rec.Checks...)
	for _, v := range verdicts {
		switch v.Result {
		case probe.ResultAmbiguous:
			msg := fmt.Sprintf("Unclassified response status %d", v.Status)
			if v.ErrorBody != nil && v.ErrorBody.Code != "" {
				msg = fmt.Sprintf("Unclassified response status %d (%s)", v.Status, v.ErrorBody.Code)
			}
			add(v, FindingUnknownStatus, SeverityLow, msg)
		case probe.ResultTransportFailure, probe.ResultConfigError:
			add(v, FindingProbeFailure, SeverityLow, fmt.Sprintf("Probe could not complete: %v", v.Err))
		}

		if config.ExpectedRegion != "" && v.Region != "" && v.Region != config.ExpectedRegion {
			add(v, FindingRegionMismatch, SeverityInfo,
				fmt.Sprintf("Resource is in %s, probes were issued in %s", v.Region, config.ExpectedRegion))
		}
	}

	write, wrote := rec.Verdict(probe.KindWrite, "")
	del, deleted := rec.Verdict(probe.KindDelete, "")
	if !deleted {
		del.Kind = probe.KindDelete
	}

	if v, ok := rec.Verdict(probe.KindList, ""); ok && v.Result == probe.ResultAllowed {
		msg := "Anonymous callers can list objects"
		if len(v.Objects) > 0 {
			msg = fmt.Sprintf("Anonymous callers can list objects (sample: %s)", strings.Join(v.Objects, ", "))
		}
		add(v, FindingPublicList, SeverityHigh, msg)
	}
	if wrote && write.Result == probe.ResultAllowed {
		add(write, FindingPublicWrite, SeverityHigh, "Anonymous callers can write objects")
		if !deleted || del.Result != probe.ResultAllowed {
			add(del, FindingCleanupFailed, SeverityMedium, "Probe object could not be removed after a successful write")
		}
	}
	if deleted && del.Result == probe.ResultAllowed {
		add(del, FindingPublicDelete, SeverityHigh, "Anonymous callers can delete objects")
	}

	if anon, ok := rec.Verdict(probe.KindPermissions, probe.IdentityAnonymous); ok && !anon.Permissions.Empty() {
		sev := SeverityMedium
		for _, p := range mutatingPermissions {
			if anon.Permissions.Contains(p) {
				sev = SeverityHigh
				break
			}
		}
		msg := fmt.Sprintf("Anonymous callers hold %d permission(s)", len(anon.Permissions.Granted))
		if auth, ok := rec.Verdict(probe.KindPermissions, probe.IdentityAuthenticated); ok && auth.Permissions != nil {
			diff := ComparePermissions(anon.Permissions, auth.Permissions)
			msg = fmt.Sprintf("%s, %d shared with the authenticated identity", msg, len(diff.Shared))
		}
		add(anon, FindingAnonymousPermissions, sev, msg)
		findings[len(findings)-1].Permissions = anon.Permissions.Granted
	}

	return findings
}

// ComparePermissions compares anonymous and authenticated permission sets.
// Order follows the set each entry came from.
func ComparePermissions(anonymous, authenticated *probe.PermissionSet) PermissionDiff {
	diff := PermissionDiff{
		AnonymousOnly:     anonymous.Difference(authenticated),
		AuthenticatedOnly: authenticated.Difference(anonymous),
	}
	if anonymous != nil {
		for _, p := range anonymous.Granted {
			if authenticated.Contains(p) {
				diff.Shared = append(diff.Shared, p)
			}
		}
	}
	return diff
}

// NewSummary creates an empty summary
func NewSummary() *Summary {
	return &Summary{
		ByType:     make(map[FindingType]int),
		BySeverity: make(map[Severity]int),
	}
}

// Add tallies one record and its findings
func (s *Summary) Add(rec probe.Record, findings []Finding) {
	s.TotalResources++
	if rec.Found() {
		s.ExistingResources++
	}

	public := false
	for _, f := range findings {
		s.TotalFindings++
		s.ByType[f.Type]++
		s.BySeverity[f.Severity]++
		if f.Severity == SeverityHigh {
			public = true
		}
	}
	if public {
		s.PublicResources = append(s.PublicResources, rec.Resource)
	}
}

// HasPublic reports whether any resource had a high-severity exposure
func (s *Summary) HasPublic() bool {
	return len(s.PublicResources) > 0
}
