package analyzer

import (
	"errors"
	"testing"

	"github.com/ppiankov/bucketspectre/internal/probe"
)

func findingTypes(findings []Finding) map[FindingType]Finding {
	out := make(map[FindingType]Finding)
	for _, f := range findings {
		out[f.Type] = f
	}
	return out
}

func TestAnalyze_PublicBucket(t *testing.T) {
	list := probe.Allowed(probe.KindList, 200)
	list.Objects = []string{"a.txt", "b.txt"}
	rec := probe.Record{
		Provider:  probe.ProviderS3,
		Resource:  "a-public-bucket",
		Existence: probe.Exists(probe.KindExistence, 200),
		Checks: []probe.Verdict{
			list,
			probe.Allowed(probe.KindWrite, 200),
			probe.Allowed(probe.KindDelete, 204),
			probe.Unsupported(probe.KindPermissions),
		},
	}

	got := findingTypes(Analyze(rec, Config{}))
	for _, typ := range []FindingType{FindingPublicList, FindingPublicWrite, FindingPublicDelete} {
		f, ok := got[typ]
		if !ok {
			t.Fatalf("expected %s finding, got %v", typ, got)
		}
		if f.Severity != SeverityHigh || f.Resource != "a-public-bucket" || f.Provider != probe.ProviderS3 {
			t.Fatalf("unexpected %s finding: %+v", typ, f)
		}
	}
	if _, ok := got[FindingCleanupFailed]; ok {
		t.Fatalf("did not expect cleanup failure when delete succeeded")
	}
	if _, ok := got[FindingProbeFailure]; ok {
		t.Fatalf("unsupported checks are not failures")
	}
}

func TestAnalyze_PrivateBucketHasNoFindings(t *testing.T) {
	rec := probe.Record{
		Provider:  probe.ProviderS3,
		Resource:  "a-private-bucket",
		Existence: probe.Denied(probe.KindExistence, 403),
		Checks: []probe.Verdict{
			probe.Denied(probe.KindList, 403),
			probe.Denied(probe.KindWrite, 403),
			probe.Skipped(probe.KindDelete, "write was not allowed"),
		},
	}

	if findings := Analyze(rec, Config{ExpectedRegion: "us-east-1"}); len(findings) != 0 {
		t.Fatalf("expected no findings, got %+v", findings)
	}
}

func TestAnalyze_CleanupFailed(t *testing.T) {
	rec := probe.Record{
		Resource:  "writable",
		Existence: probe.Exists(probe.KindExistence, 200),
		Checks: []probe.Verdict{
			probe.Allowed(probe.KindWrite, 200),
			probe.Denied(probe.KindDelete, 403),
		},
	}

	got := findingTypes(Analyze(rec, Config{}))
	f, ok := got[FindingCleanupFailed]
	if !ok || f.Severity != SeverityMedium || f.Probe != probe.KindDelete {
		t.Fatalf("expected medium cleanup finding on delete, got %+v", got)
	}
	if _, ok := got[FindingPublicDelete]; ok {
		t.Fatalf("did not expect public delete finding")
	}
}

func TestAnalyze_RegionMismatchAndUnknownStatus(t *testing.T) {
	existence := probe.Exists(probe.KindExistence, 301)
	existence.Region = "eu-west-1"
	list := probe.Ambiguous(probe.KindList, 301)
	list.Region = "eu-west-1"
	list.ErrorBody = &probe.ErrorBody{Code: "PermanentRedirect"}

	rec := probe.Record{Resource: "eu-bucket", Existence: existence, Checks: []probe.Verdict{list}}
	findings := Analyze(rec, Config{ExpectedRegion: "us-east-1"})

	mismatches := 0
	for _, f := range findings {
		if f.Type == FindingRegionMismatch {
			mismatches++
			if f.Severity != SeverityInfo {
				t.Fatalf("expected info severity, got %s", f.Severity)
			}
		}
	}
	if mismatches != 2 {
		t.Fatalf("expected region mismatch for existence and list, got %d", mismatches)
	}
	unknown, ok := findingTypes(findings)[FindingUnknownStatus]
	if !ok || unknown.Message != "Unclassified response status 301 (PermanentRedirect)" {
		t.Fatalf("expected unknown status finding with code, got %+v", unknown)
	}

	if got := Analyze(rec, Config{ExpectedRegion: "eu-west-1"}); len(findingTypes(got)) != 1 {
		t.Fatalf("expected only the unknown status finding in the matching region, got %+v", got)
	}
}

func TestAnalyze_ProbeFailures(t *testing.T) {
	rec := probe.Record{
		Provider:  probe.ProviderGCS,
		Resource:  "bucket",
		Existence: probe.Failure(probe.KindExistence, 0, errors.New("i/o timeout")),
		Checks: []probe.Verdict{
			probe.ConfigError(probe.KindPermissions, errors.New("GOOGLE_APPLICATION_CREDENTIALS is not set")).As(probe.IdentityAuthenticated),
		},
	}

	failures := 0
	for _, f := range Analyze(rec, Config{}) {
		if f.Type == FindingProbeFailure {
			failures++
		}
	}
	if failures != 2 {
		t.Fatalf("expected two check failures, got %d", failures)
	}
}

func TestAnalyze_AnonymousPermissions(t *testing.T) {
	anon := probe.Allowed(probe.KindPermissions, 200).As(probe.IdentityAnonymous)
	anon.Permissions = probe.NewPermissionSet(probe.IdentityAnonymous, []string{"storage.objects.list", "storage.objects.get"})
	auth := probe.Allowed(probe.KindPermissions, 200).As(probe.IdentityAuthenticated)
	auth.Permissions = probe.NewPermissionSet(probe.IdentityAuthenticated, []string{"storage.objects.get"})

	rec := probe.Record{
		Provider:  probe.ProviderGCS,
		Resource:  "bucket",
		Existence: probe.Exists(probe.KindExistence, 200),
		Checks:    []probe.Verdict{anon, auth},
	}

	f, ok := findingTypes(Analyze(rec, Config{}))[FindingAnonymousPermissions]
	if !ok {
		t.Fatalf("expected anonymous permissions finding")
	}
	if f.Severity != SeverityMedium {
		t.Fatalf("expected read-only grants to be medium, got %s", f.Severity)
	}
	if len(f.Permissions) != 2 || f.Identity != probe.IdentityAnonymous {
		t.Fatalf("unexpected finding: %+v", f)
	}
	if f.Message != "Anonymous callers hold 2 permission(s), 1 shared with the authenticated identity" {
		t.Fatalf("unexpected message: %q", f.Message)
	}

	anon.Permissions = probe.NewPermissionSet(probe.IdentityAnonymous, []string{"storage.objects.create"})
	rec.Checks = []probe.Verdict{anon, auth}
	if f := findingTypes(Analyze(rec, Config{}))[FindingAnonymousPermissions]; f.Severity != SeverityHigh {
		t.Fatalf("expected mutating grants to be high, got %s", f.Severity)
	}
}

func TestAnalyze_EmptyAnonymousPermissions(t *testing.T) {
	anon := probe.Allowed(probe.KindPermissions, 200).As(probe.IdentityAnonymous)
	anon.Permissions = probe.NewPermissionSet(probe.IdentityAnonymous, nil)
	rec := probe.Record{Existence: probe.Exists(probe.KindExistence, 200), Checks: []probe.Verdict{anon}}

	if findings := Analyze(rec, Config{}); len(findings) != 0 {
		t.Fatalf("expected no findings for empty grants, got %+v", findings)
	}
}

func TestComparePermissions(t *testing.T) {
	anon := probe.NewPermissionSet(probe.IdentityAnonymous, []string{"storage.objects.list", "storage.objects.get"})
	auth := probe.NewPermissionSet(probe.IdentityAuthenticated, []string{"storage.buckets.get", "storage.objects.get"})

	diff := ComparePermissions(anon, auth)
	if len(diff.AnonymousOnly) != 1 || diff.AnonymousOnly[0] != "storage.objects.list" {
		t.Fatalf("unexpected anonymous-only: %v", diff.AnonymousOnly)
	}
	if len(diff.AuthenticatedOnly) != 1 || diff.AuthenticatedOnly[0] != "storage.buckets.get" {
		t.Fatalf("unexpected authenticated-only: %v", diff.AuthenticatedOnly)
	}
	if len(diff.Shared) != 1 || diff.Shared[0] != "storage.objects.get" {
		t.Fatalf("unexpected shared: %v", diff.Shared)
	}

	empty := ComparePermissions(nil, auth)
	if len(empty.AuthenticatedOnly) != 2 || empty.AnonymousOnly != nil || empty.Shared != nil {
		t.Fatalf("unexpected diff with nil anonymous set: %+v", empty)
	}
}

func TestSummary(t *testing.T) {
	summary := NewSummary()

	public := probe.Record{Resource: "public", Existence: probe.Exists(probe.KindExistence, 200)}
	summary.Add(public, []Finding{
		{Type: FindingPublicList, Severity: SeverityHigh},
		{Type: FindingRegionMismatch, Severity: SeverityInfo},
	})
	private := probe.Record{Provider: probe.ProviderS3, Resource: "private", Existence: probe.Denied(probe.KindExistence, 403)}
	summary.Add(private, nil)
	locked := probe.Record{Provider: probe.ProviderGCS, Resource: "locked", Existence: probe.Denied(probe.KindExistence, 403)}
	summary.Add(locked, nil)
	missing := probe.Record{Provider: probe.ProviderS3, Resource: "missing", Existence: probe.NotFound(probe.KindExistence, 404)}
	summary.Add(missing, nil)

	// S3 answers HEAD with 403 only for buckets that exist
	if summary.TotalResources != 4 || summary.ExistingResources != 2 {
		t.Fatalf("unexpected resource counts: %+v", summary)
	}
	if summary.TotalFindings != 2 || summary.ByType[FindingPublicList] != 1 || summary.BySeverity[SeverityInfo] != 1 {
		t.Fatalf("unexpected finding tallies: %+v", summary)
	}
	if !summary.HasPublic() || len(summary.PublicResources) != 1 || summary.PublicResources[0] != "public" {
		t.Fatalf("unexpected public resources: %v", summary.PublicResources)
	}
}
