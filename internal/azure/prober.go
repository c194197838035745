package azure

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ppiankov/bucketspectre/internal/probe"
	"github.com/ppiankov/bucketspectre/internal/transport"
)

// Prober runs the capability checks against Azure Blob containers of one storage account
type Prober struct {
	client  *transport.Client
	baseURL string
}

// Option configures a Prober
type Option func(*Prober)

// WithBaseURL overrides the account endpoint
func WithBaseURL(base string) Option {
	return func(p *Prober) {
		p.baseURL = base
	}
}

// NewProber creates a prober for the given storage account
func NewProber(client *transport.Client, account string, opts ...Option) (*Prober, error) {
	if account == "" {
		return nil, fmt.Errorf("storage account is required: %w", probe.ErrConfiguration)
	}
	p := &Prober{
		client:  client,
		baseURL: fmt.Sprintf("https://%s.blob.core.windows.net", account),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Prober) Provider() probe.Provider {
	return probe.ProviderAzure
}

// RequiresExistence gates listing on a confirmed container
func (p *Prober) RequiresExistence(kind probe.Kind) bool {
	return kind == probe.KindList
}

func (p *Prober) containerURL(name string) string {
	return p.baseURL + "/" + url.PathEscape(name)
}

// CheckExistence reads the container properties
func (p *Prober) CheckExistence(ctx context.Context, name string) probe.Verdict {
	out := p.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		URL:    p.containerURL(name),
		Query:  url.Values{"restype": {"container"}},
	})
	return Classify(probe.KindExistence, out)
}

// ListObjects enumerates the container's blobs
func (p *Prober) ListObjects(ctx context.Context, name string) probe.Verdict {
	out := p.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		URL:    p.containerURL(name),
		Query:  url.Values{"restype": {"container"}, "comp": {"list"}},
	})

	v := Classify(probe.KindList, out)
	if v.Result != probe.ResultAllowed {
		return v
	}

	names, err := decodeBlobNames(out.Body)
	if err != nil {
		return probe.Failure(probe.KindList, out.Status, &probe.DecodeError{Status: out.Status, Err: err})
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

func (p *Prober) CheckPermissions(context.Context, string) []probe.Verdict {
	return []probe.Verdict{probe.Unsupported(probe.KindPermissions)}
}

// Classify maps an Azure response to a verdict. A container that cannot be
// read is reported as not found whatever the status.
func Classify(kind probe.Kind, o probe.Outcome) probe.Verdict {
	if kind == probe.KindExistence && o.Err == nil && (o.Status < 200 || o.Status >= 300) {
		return probe.NotFound(kind, o.Status)
	}
	return probe.Classify(kind, o)
}

type enumerationResults struct {
	XMLName xml.Name `xml:"EnumerationResults"`
	Blobs   struct {
		Blob []struct {
			Name string `xml:"Name"`
		} `xml:"Blob"`
	} `xml:"Blobs"`
	NextMarker string `xml:"NextMarker"`
}

func decodeBlobNames(body []byte) ([]string, error) {
	var result enumerationResults
	if err := xml.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("malformed blob listing: %w", err)
	}
	names := make([]string, 0, len(result.Blobs.Blob))
	for _, blob := range result.Blobs.Blob {
		names = append(names, blob.Name)
	}
	return names, nil
}
