package probe

import (
	"net/http"
	"time"
)

// Provider identifies a cloud object-storage provider
type Provider string

const (
	ProviderS3    Provider = "s3"
	ProviderAzure Provider = "azure"
	ProviderGCS   Provider = "gcs"
)

// Kind is the capability a probe tests
type Kind string

const (
	KindExistence   Kind = "EXISTENCE"
	KindList        Kind = "LIST_OBJECTS"
	KindWrite       Kind = "ANONYMOUS_WRITE"
	KindDelete      Kind = "ANONYMOUS_DELETE"
	KindPermissions Kind = "PERMISSIONS_CHECK"
)

// Result is the classified outcome of a probe
type Result string

const (
	ResultExists           Result = "EXISTS"
	ResultNotFound         Result = "NOT_FOUND"
	ResultAllowed          Result = "ALLOWED"
	ResultDenied           Result = "DENIED"
	ResultAmbiguous        Result = "AMBIGUOUS"
	ResultTransportFailure Result = "TRANSPORT_FAILURE"
	ResultUnsupported      Result = "UNSUPPORTED"
	ResultSkipped          Result = "SKIPPED"
	ResultConfigError      Result = "CONFIG_ERROR"
)

// Identity is the caller context a probe was issued under
type Identity string

const (
	IdentityAnonymous     Identity = "anonymous"
	IdentityAuthenticated Identity = "authenticated"
)

// Outcome is the raw transport result handed to a classifier.
// Err is set only when no HTTP response was received.
type Outcome struct {
	Status int
	Header http.Header
	Body   []byte
	Err    error
}

// ErrorBody is a decoded provider error document
type ErrorBody struct {
	Code      string `json:"code" xml:"Code"`
	Message   string `json:"message" xml:"Message"`
	Endpoint  string `json:"endpoint,omitempty" xml:"Endpoint"`
	Bucket    string `json:"bucket,omitempty" xml:"Bucket"`
	RequestID string `json:"request_id" xml:"RequestId"`
	HostID    string `json:"host_id" xml:"HostId"`
}

// Record collects every verdict for one resource in one scan run
type Record struct {
	Provider  Provider      `json:"provider"`
	Resource  string        `json:"resource"`
	Existence Verdict       `json:"existence"`
	Checks    []Verdict     `json:"checks"`
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration_ns"`
}

// Verdict returns the first check of the given kind and identity.
// An empty identity matches any identity.
func (r Record) Verdict(kind Kind, identity Identity) (Verdict, bool) {
	if kind == KindExistence {
		return r.Existence, true
	}
	for _, v := range r.Checks {
		if v.Kind == kind && (identity == "" || v.Identity == identity) {
			return v, true
		}
	}
	return Verdict{}, false
}

// Exists reports whether the existence probe confirmed the resource
func (r Record) Exists() bool {
	return r.Existence.Result == ResultExists
}

// Found reports whether the resource is known to exist. An S3 HEAD answered
// with 403 means the bucket exists but the caller may not see it.
func (r Record) Found() bool {
	if r.Exists() {
		return true
	}
	return r.Provider == ProviderS3 && r.Existence.Result == ResultDenied
}
