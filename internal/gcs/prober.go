package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/ppiankov/bucketspectre/internal/probe"
	"github.com/ppiankov/bucketspectre/internal/transport"
)

// DefaultBaseURL is the GCS JSON API root
const DefaultBaseURL = "https://storage.googleapis.com/storage/v1"

// CandidatePermissions are tested for both identities, in this order
var CandidatePermissions = []string{
	"storage.buckets.delete",
	"storage.buckets.get",
	"storage.buckets.getIamPolicy",
	"storage.buckets.setIamPolicy",
	"storage.buckets.update",
	"storage.objects.create",
	"storage.objects.delete",
	"storage.objects.get",
	"storage.objects.list",
	"storage.objects.update",
}

// Prober runs the capability checks against GCS buckets
type Prober struct {
	client         *transport.Client
	baseURL        string
	credentialsEnv string
	token          TokenFunc

	warnOnce sync.Once
}

// Option configures a Prober
type Option func(*Prober)

// WithBaseURL overrides the JSON API root
func WithBaseURL(base string) Option {
	return func(p *Prober) {
		p.baseURL = base
	}
}

// WithCredentialsEnv changes the variable the service-account key path is read from
func WithCredentialsEnv(name string) Option {
	return func(p *Prober) {
		p.credentialsEnv = name
	}
}

// WithTokenFunc replaces the service-account token exchange
func WithTokenFunc(fn TokenFunc) Option {
	return func(p *Prober) {
		p.token = fn
	}
}

// NewProber creates a new GCS prober
func NewProber(client *transport.Client, opts ...Option) *Prober {
	p := &Prober{
		client:         client,
		baseURL:        DefaultBaseURL,
		credentialsEnv: DefaultCredentialsEnv,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.token == nil {
		p.token = NewServiceAccountTokens(p.credentialsEnv, client.Timeout()).Token
	}
	return p
}

func (p *Prober) Provider() probe.Provider {
	return probe.ProviderGCS
}

// RequiresExistence gates listing and the permission checks on a confirmed bucket
func (p *Prober) RequiresExistence(kind probe.Kind) bool {
	return kind == probe.KindList || kind == probe.KindPermissions
}

func (p *Prober) bucketURL(name string) string {
	return p.baseURL + "/b/" + url.PathEscape(name)
}

// CheckExistence issues a HEAD on the bucket resource
func (p *Prober) CheckExistence(ctx context.Context, name string) probe.Verdict {
	out := p.client.Do(ctx, transport.Request{
		Method: http.MethodHead,
		URL:    p.bucketURL(name),
	})
	return Classify(probe.KindExistence, out)
}

type objectList struct {
	Items []struct {
		Name string `json:"name"`
	} `json:"items"`
}

// ListObjects lists the bucket anonymously
func (p *Prober) ListObjects(ctx context.Context, name string) probe.Verdict {
	out := p.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		URL:    p.bucketURL(name) + "/o",
	})

	v := Classify(probe.KindList, out)
	if v.Result != probe.ResultAllowed {
		return v
	}

	var list objectList
	if err := json.Unmarshal(out.Body, &list); err != nil {
		return probe.Failure(probe.KindList, out.Status, &probe.DecodeError{Status: out.Status, Err: err})
	}
	names := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		names = append(names, item.Name)
	}
	v.Objects = probe.Sample(names)
	return v
}

func (p *Prober) AttemptWrite(context.Context, string) probe.Verdict {
	return probe.Unsupported(probe.KindWrite)
}

func (p *Prober) AttemptDelete(context.Context, string) probe.Verdict {
	return probe.Unsupported(probe.KindDelete)
}

// CheckPermissions tests the candidate permissions anonymously, then with a
// service-account token.
func (p *Prober) CheckPermissions(ctx context.Context, name string) []probe.Verdict {
	anonymous := p.testPermissions(ctx, name, probe.IdentityAnonymous, "")
	return []probe.Verdict{anonymous, p.authenticated(ctx, name)}
}

func (p *Prober) authenticated(ctx context.Context, name string) probe.Verdict {
	token, err := p.token(ctx)
	if err != nil {
		if errors.Is(err, probe.ErrConfiguration) {
			p.warnOnce.Do(func() {
				slog.Warn("Skipping authenticated GCS checks", "error", err)
			})
			return probe.ConfigError(probe.KindPermissions, err).As(probe.IdentityAuthenticated)
		}
		return probe.Failure(probe.KindPermissions, 0, err).As(probe.IdentityAuthenticated)
	}
	return p.testPermissions(ctx, name, probe.IdentityAuthenticated, token)
}

// testPermissionsResponse is the body of iam/testPermissions. An absent
// permissions field means none were granted.
type testPermissionsResponse struct {
	Kind        string   `json:"kind"`
	Permissions []string `json:"permissions"`
}

func (p *Prober) testPermissions(ctx context.Context, name string, identity probe.Identity, token string) probe.Verdict {
	req := transport.Request{
		Method: http.MethodGet,
		URL:    p.bucketURL(name) + "/iam/testPermissions",
		Query:  url.Values{"permissions": CandidatePermissions},
	}
	if token != "" {
		req.Header = http.Header{"Authorization": {"Bearer " + token}}
	}
	out := p.client.Do(ctx, req)

	v := Classify(probe.KindPermissions, out)
	if v.Result != probe.ResultAllowed {
		return v.As(identity)
	}

	var resp testPermissionsResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		err = fmt.Errorf("testPermissions response: %w", err)
		return probe.Failure(probe.KindPermissions, out.Status, &probe.DecodeError{Status: out.Status, Err: err}).As(identity)
	}
	v.Permissions = probe.NewPermissionSet(identity, resp.Permissions)
	return v.As(identity)
}

// Classify maps a GCS response to a verdict. Only 404 and 400 rule out a bucket.
func Classify(kind probe.Kind, o probe.Outcome) probe.Verdict {
	if kind != probe.KindExistence || o.Err != nil {
		return probe.Classify(kind, o)
	}
	if o.Status == http.StatusNotFound || o.Status == http.StatusBadRequest {
		return probe.NotFound(kind, o.Status)
	}
	return probe.Exists(kind, o.Status)
}
