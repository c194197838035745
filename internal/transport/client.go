package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ppiankov/bucketspectre/internal/probe"
	"github.com/valyala/fasthttp"
)

// DefaultTimeout bounds every request issued through a Client
const DefaultTimeout = 5 * time.Second

// Client is a shared fasthttp client for raw provider requests
type Client struct {
	client  *fasthttp.Client
	timeout time.Duration
}

// NewClient creates a client whose requests are bounded by timeout
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		client: &fasthttp.Client{
			MaxConnsPerHost: 512,
			ReadTimeout:     timeout,
			WriteTimeout:    timeout,
		},
		timeout: timeout,
	}
}

// Timeout returns the per-request timeout
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Request describes a single provider call
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
}

// Do sends req and returns the raw outcome. Redirects are not followed.
// Err is set only when no response was received.
func (c *Client) Do(ctx context.Context, r Request) probe.Outcome {
	if err := ctx.Err(); err != nil {
		return probe.Outcome{Err: err}
	}

	target := r.URL
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	method := r.Method
	if method == "" {
		method = fasthttp.MethodGet
	}
	req.SetRequestURI(target)
	req.Header.SetMethod(method)
	for key, values := range r.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	if err := c.client.DoTimeout(req, resp, c.deadline(ctx)); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			return probe.Outcome{Err: fmt.Errorf("%s %s: timed out after %s: %w", method, r.URL, c.timeout, err)}
		}
		return probe.Outcome{Err: fmt.Errorf("%s %s: %w", method, r.URL, err)}
	}

	header := make(http.Header)
	resp.Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})

	// Body is recycled on release
	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())

	return probe.Outcome{
		Status: resp.StatusCode(),
		Header: header,
		Body:   body,
	}
}

// deadline shortens the request timeout to what is left on ctx
func (c *Client) deadline(ctx context.Context) time.Duration {
	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	return timeout
}
