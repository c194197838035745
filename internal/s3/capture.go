package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/ppiankov/bucketspectre/internal/probe"
)

type captureKey struct{}

// capture holds the raw response of the single request issued for one probe
type capture struct {
	mu     sync.Mutex
	status int
	header http.Header
	body   []byte
}

// withCapture returns a context whose SDK request records its raw response
func withCapture(ctx context.Context) (context.Context, *capture) {
	slot := &capture{}
	return context.WithValue(ctx, captureKey{}, slot), slot
}

func (c *capture) set(status int, header http.Header, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
	c.header = header
	c.body = body
}

// outcome turns the result of an SDK call into a raw outcome
func (c *capture) outcome(err error) probe.Outcome {
	c.mu.Lock()
	status, header, body := c.status, c.header, c.body
	c.mu.Unlock()

	if err == nil {
		if status == 0 {
			status = http.StatusOK
		}
		return probe.Outcome{Status: status, Header: header}
	}

	// Send failures also arrive wrapped in a ResponseError with a zero status
	var sendErr *smithyhttp.RequestSendError
	if errors.As(err, &sendErr) {
		return probe.Outcome{Err: err}
	}

	var respErr *smithyhttp.ResponseError
	if !errors.As(err, &respErr) || respErr.Response == nil || respErr.Response.Response == nil {
		return probe.Outcome{Err: err}
	}

	status = respErr.HTTPStatusCode()
	if status == 0 {
		return probe.Outcome{Err: err}
	}
	out := probe.Outcome{
		Status: status,
		Header: respErr.Response.Header,
		Body:   body,
	}
	// A 2xx that still failed means the SDK could not read the payload
	if status >= 200 && status < 300 {
		out.Err = &probe.DecodeError{Status: status, Err: respErr.Err}
	}
	return out
}

// captureClient is an aws.HTTPClient that buffers error bodies into the
// request's capture slot and never follows redirects
type captureClient struct {
	client *http.Client
}

func newCaptureClient(rt http.RoundTripper, timeout time.Duration) *captureClient {
	return &captureClient{
		client: &http.Client{
			Transport: rt,
			Timeout:   timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *captureClient) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return resp, err
	}

	slot, ok := req.Context().Value(captureKey{}).(*capture)
	if !ok {
		return resp, nil
	}
	if resp.StatusCode < 300 || resp.Body == nil {
		slot.set(resp.StatusCode, resp.Header, nil)
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	slot.set(resp.StatusCode, resp.Header, body)
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}
