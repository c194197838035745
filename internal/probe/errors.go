package probe

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConfiguration marks a missing or unusable credential, region, or account.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransport marks network, timeout, and TLS failures.
	ErrTransport = errors.New("transport failure")
	// ErrDecode marks a provider body that could not be decoded.
	ErrDecode = errors.New("decode failure")
	// ErrCapabilityDenied marks an expected negative result.
	ErrCapabilityDenied = errors.New("capability denied")
	// ErrUnknownStatus marks a status code no classifier rule covers.
	ErrUnknownStatus = errors.New("unknown status")
	// ErrUnsupported marks an operation the provider probe does not implement.
	ErrUnsupported = errors.New("not supported for this provider")
)

// StatusError carries an HTTP status that no classifier rule covers
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d %s", e.Status, http.StatusText(e.Status))
}

// Is lets StatusError match ErrUnknownStatus.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnknownStatus
}

// DecodeError reports a body that failed structured parsing for a status
type DecodeError struct {
	Status int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("status %d: %v: %v", e.Status, ErrDecode, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrTransport, ErrDecode, e.Err}
}
