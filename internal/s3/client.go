package s3

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ppiankov/bucketspectre/internal/probe"
)

// existenceRegion is the region HeadBucket is issued against. S3 answers a
// bucket in any other region with a 301 carrying x-amz-bucket-region.
const existenceRegion = "us-east-1"

var regionPattern = regexp.MustCompile(`^[a-z]{2}(-[a-z]+)+-\d{1,2}$`)

// Options configures the S3 client
type Options struct {
	// Profile selects a shared-config profile. Empty means anonymous requests.
	Profile string
	Region  string
	// RequestTimeout bounds each HTTP request. Zero keeps the SDK default.
	RequestTimeout time.Duration
	// Endpoint points both clients at an S3-compatible server using path-style addressing
	Endpoint string
}

// Client wraps the AWS S3 clients used by the prober
type Client struct {
	regional *s3.Client
	head     *s3.Client
	region   string
}

// ValidateRegion rejects identifiers that cannot name an AWS region
func ValidateRegion(region string) error {
	if !regionPattern.MatchString(region) {
		return fmt.Errorf("invalid region %q: %w", region, probe.ErrConfiguration)
	}
	return nil
}

// NewClient creates a new S3 client. Without a profile every request is unsigned.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if err := ValidateRegion(opts.Region); err != nil {
		return nil, err
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	} else {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(aws.AnonymousCredentials{}))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w: %w", probe.ErrConfiguration, err)
	}
	cfg.HTTPClient = newCaptureClient(nil, opts.RequestTimeout)

	var optFns []func(*s3.Options)
	if opts.Endpoint != "" {
		optFns = append(optFns, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		})
	}
	return newClientFromConfig(cfg, optFns...), nil
}

// newClientFromConfig builds the regional and existence clients from cfg.
// Retries are disabled so each probe maps to exactly one request.
func newClientFromConfig(cfg aws.Config, optFns ...func(*s3.Options)) *Client {
	regionalFns := append([]func(*s3.Options){noRetry}, optFns...)

	headFns := make([]func(*s3.Options), 0, len(regionalFns)+1)
	headFns = append(headFns, regionalFns...)
	headFns = append(headFns, func(o *s3.Options) {
		o.Region = existenceRegion
	})

	return &Client{
		regional: s3.NewFromConfig(cfg, regionalFns...),
		head:     s3.NewFromConfig(cfg, headFns...),
		region:   cfg.Region,
	}
}

func noRetry(o *s3.Options) {
	o.RetryMaxAttempts = 1
}

// Region returns the configured region
func (c *Client) Region() string {
	return c.region
}
