package probe

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Verdict is the classified outcome of one probe against one resource
type Verdict struct {
	Kind        Kind           `json:"kind"`
	Result      Result         `json:"result"`
	Status      int            `json:"status,omitempty"`
	Identity    Identity       `json:"identity,omitempty"`
	Region      string         `json:"region,omitempty"`
	Objects     []string       `json:"objects,omitempty"`
	Permissions *PermissionSet `json:"permissions,omitempty"`
	ErrorBody   *ErrorBody     `json:"error_body,omitempty"`
	Err         error          `json:"-"`
}

// MarshalJSON renders Err as a string.
func (v Verdict) MarshalJSON() ([]byte, error) {
	type plain Verdict
	out := struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(v)}
	if v.Err != nil {
		out.Error = v.Err.Error()
	}
	return json.Marshal(out)
}

// Exists is Confirmed(true).
func Exists(kind Kind, status int) Verdict {
	return Verdict{Kind: kind, Result: ResultExists, Status: status}
}

// NotFound is Confirmed(false).
func NotFound(kind Kind, status int) Verdict {
	return Verdict{Kind: kind, Result: ResultNotFound, Status: status}
}

func Allowed(kind Kind, status int) Verdict {
	return Verdict{Kind: kind, Result: ResultAllowed, Status: status}
}

func Denied(kind Kind, status int) Verdict {
	return Verdict{
		Kind:   kind,
		Result: ResultDenied,
		Status: status,
		Err:    fmt.Errorf("status %d: %w", status, ErrCapabilityDenied),
	}
}

// Ambiguous surfaces a status the classifier cannot map to a definite answer.
func Ambiguous(kind Kind, status int) Verdict {
	return Verdict{Kind: kind, Result: ResultAmbiguous, Status: status, Err: &StatusError{Status: status}}
}

// Failure records a transport-layer failure. The cause always matches ErrTransport.
func Failure(kind Kind, status int, cause error) Verdict {
	if cause == nil {
		cause = ErrTransport
	} else if !errors.Is(cause, ErrTransport) {
		cause = fmt.Errorf("%w: %w", ErrTransport, cause)
	}
	return Verdict{Kind: kind, Result: ResultTransportFailure, Status: status, Err: cause}
}

// Unsupported marks an operation the provider does not implement.
func Unsupported(kind Kind) Verdict {
	return Verdict{Kind: kind, Result: ResultUnsupported, Err: ErrUnsupported}
}

// Skipped marks a probe gated off by an earlier verdict.
func Skipped(kind Kind, reason string) Verdict {
	return Verdict{Kind: kind, Result: ResultSkipped, Err: errors.New(reason)}
}

// ConfigError marks a probe that could not run for lack of usable configuration.
func ConfigError(kind Kind, cause error) Verdict {
	if !errors.Is(cause, ErrConfiguration) {
		cause = fmt.Errorf("%w: %w", ErrConfiguration, cause)
	}
	return Verdict{Kind: kind, Result: ResultConfigError, Err: cause}
}

// As returns a copy of v tagged with identity.
func (v Verdict) As(identity Identity) Verdict {
	v.Identity = identity
	return v
}

// Succeeded reports a positive answer: the resource exists or the capability is allowed.
func (v Verdict) Succeeded() bool {
	return v.Result == ResultExists || v.Result == ResultAllowed
}

// Definite reports whether the verdict answers the probe's question.
func (v Verdict) Definite() bool {
	switch v.Result {
	case ResultExists, ResultNotFound, ResultAllowed, ResultDenied:
		return true
	}
	return false
}
