package probe

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestClassify_GeneralRules(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
		want   Result
	}{
		{KindExistence, 200, ResultExists},
		{KindExistence, 204, ResultExists},
		{KindExistence, 404, ResultNotFound},
		{KindExistence, 403, ResultDenied},
		{KindExistence, 500, ResultAmbiguous},
		{KindList, 200, ResultAllowed},
		{KindWrite, 201, ResultAllowed},
		{KindDelete, 204, ResultAllowed},
		{KindList, 404, ResultDenied},
		{KindList, 403, ResultDenied},
		{KindWrite, 409, ResultAmbiguous},
	}

	for _, tt := range tests {
		got := Classify(tt.kind, Outcome{Status: tt.status})
		if got.Result != tt.want {
			t.Fatalf("%s %d: expected %s, got %s", tt.kind, tt.status, tt.want, got.Result)
		}
		if got.Kind != tt.kind {
			t.Fatalf("expected kind %s, got %s", tt.kind, got.Kind)
		}
		if got.Status != tt.status {
			t.Fatalf("expected status %d, got %d", tt.status, got.Status)
		}
	}
}

func TestClassify_TransportErrorNeverDenied(t *testing.T) {
	v := Classify(KindList, Outcome{Err: errors.New("dial tcp: i/o timeout")})
	if v.Result != ResultTransportFailure {
		t.Fatalf("expected transport failure, got %s", v.Result)
	}
	if !errors.Is(v.Err, ErrTransport) {
		t.Fatalf("expected error to match ErrTransport, got %v", v.Err)
	}
	if errors.Is(v.Err, ErrCapabilityDenied) {
		t.Fatalf("transport failure must not match ErrCapabilityDenied")
	}
}

func TestAmbiguous_SurfacesUnknownStatus(t *testing.T) {
	v := Ambiguous(KindWrite, 418)
	if !errors.Is(v.Err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", v.Err)
	}
	var statusErr *StatusError
	if !errors.As(v.Err, &statusErr) || statusErr.Status != 418 {
		t.Fatalf("expected StatusError 418, got %v", v.Err)
	}
}

func TestFailure_DoesNotDoubleWrap(t *testing.T) {
	cause := &DecodeError{Status: 301, Err: errors.New("EOF")}
	v := Failure(KindList, 301, cause)
	if v.Err != error(cause) {
		t.Fatalf("expected cause to be kept as is, got %v", v.Err)
	}
	if !errors.Is(v.Err, ErrDecode) || !errors.Is(v.Err, ErrTransport) {
		t.Fatalf("expected decode error to match ErrDecode and ErrTransport")
	}
}

func TestConfigError_WrapsConfiguration(t *testing.T) {
	v := ConfigError(KindPermissions, errors.New("GOOGLE_APPLICATION_CREDENTIALS not set"))
	if v.Result != ResultConfigError {
		t.Fatalf("expected CONFIG_ERROR, got %s", v.Result)
	}
	if !errors.Is(v.Err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", v.Err)
	}
}

func TestPermissionSet(t *testing.T) {
	anon := NewPermissionSet(IdentityAnonymous, []string{"storage.objects.list", "storage.objects.get", "storage.objects.list"})
	auth := NewPermissionSet(IdentityAuthenticated, []string{"storage.objects.get", "storage.buckets.get"})

	if len(anon.Granted) != 2 {
		t.Fatalf("expected duplicates dropped, got %v", anon.Granted)
	}
	if !anon.Contains("storage.objects.get") || anon.Contains("storage.buckets.get") {
		t.Fatalf("unexpected Contains results for %v", anon.Granted)
	}

	onlyAnon := anon.Difference(auth)
	if len(onlyAnon) != 1 || onlyAnon[0] != "storage.objects.list" {
		t.Fatalf("unexpected anonymous-only permissions: %v", onlyAnon)
	}
	onlyAuth := auth.Difference(anon)
	if len(onlyAuth) != 1 || onlyAuth[0] != "storage.buckets.get" {
		t.Fatalf("unexpected authenticated-only permissions: %v", onlyAuth)
	}

	empty := NewPermissionSet(IdentityAnonymous, nil)
	if !empty.Empty() || empty.Granted == nil {
		t.Fatalf("expected empty non-nil set, got %#v", empty)
	}
	var nilSet *PermissionSet
	if !nilSet.Empty() || nilSet.Difference(auth) != nil {
		t.Fatalf("expected nil set to behave as empty")
	}
}

func TestVerdictMarshalJSON(t *testing.T) {
	v := Ambiguous(KindList, 301)
	v.ErrorBody = &ErrorBody{Code: "PermanentRedirect", Endpoint: "b.s3.eu-west-1.amazonaws.com"}

	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["result"] != "AMBIGUOUS" {
		t.Fatalf("expected result AMBIGUOUS, got %v", decoded["result"])
	}
	if !strings.Contains(decoded["error"].(string), "301") {
		t.Fatalf("expected error string with status, got %v", decoded["error"])
	}
	body := decoded["error_body"].(map[string]any)
	if body["code"] != "PermanentRedirect" {
		t.Fatalf("expected error body code, got %v", body["code"])
	}
}

func TestEmptyPermissionsMarshalAsEmptyList(t *testing.T) {
	v := Allowed(KindPermissions, 200)
	v.Permissions = NewPermissionSet(IdentityAnonymous, nil)

	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"granted":[]`) {
		t.Fatalf("expected empty granted list, got %s", raw)
	}
}

func TestRecordVerdictLookup(t *testing.T) {
	rec := Record{
		Existence: Exists(KindExistence, 200),
		Checks: []Verdict{
			Allowed(KindList, 200),
			Allowed(KindPermissions, 200).As(IdentityAnonymous),
			Denied(KindPermissions, 403).As(IdentityAuthenticated),
		},
	}

	if !rec.Exists() {
		t.Fatalf("expected record to exist")
	}
	v, ok := rec.Verdict(KindPermissions, IdentityAuthenticated)
	if !ok || v.Result != ResultDenied {
		t.Fatalf("expected authenticated DENIED verdict, got %v %v", ok, v.Result)
	}
	if _, ok := rec.Verdict(KindWrite, ""); ok {
		t.Fatalf("expected no write verdict")
	}
}

func TestSample(t *testing.T) {
	names := make([]string, 25)
	if got := Sample(names); len(got) != SampleLimit {
		t.Fatalf("expected %d names, got %d", SampleLimit, len(got))
	}
	if got := Sample([]string{"a"}); len(got) != 1 {
		t.Fatalf("expected short list untouched, got %v", got)
	}
}

func TestRecordFound(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{"exists", Record{Provider: ProviderGCS, Existence: Exists(KindExistence, 200)}, true},
		{"s3 denied", Record{Provider: ProviderS3, Existence: Denied(KindExistence, 403)}, true},
		{"gcs denied", Record{Provider: ProviderGCS, Existence: Denied(KindExistence, 403)}, false},
		{"s3 not found", Record{Provider: ProviderS3, Existence: NotFound(KindExistence, 404)}, false},
		{"s3 ambiguous", Record{Provider: ProviderS3, Existence: Ambiguous(KindExistence, 500)}, false},
	}

	for _, tt := range tests {
		if got := tt.rec.Found(); got != tt.want {
			t.Fatalf("%s: expected Found=%v, got %v", tt.name, tt.want, got)
		}
	}
}
