package s3

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ppiankov/bucketspectre/internal/probe"
)

const (
	// WriteKey is the object the write and delete probes target
	WriteKey = "really-long-name-that-is-definitely-not-used.txt"
	// WritePayload is the body of the write probe
	WritePayload = "it should not be possible to do this!"

	listMaxKeys = 1000
)

// Prober runs the capability checks against S3 buckets
type Prober struct {
	client *Client
}

// NewProber creates a new S3 prober
func NewProber(client *Client) *Prober {
	return &Prober{client: client}
}

func (p *Prober) Provider() probe.Provider {
	return probe.ProviderS3
}

// RequiresExistence is false for every kind: S3 answers each request
// independently of the existence probe's result.
func (p *Prober) RequiresExistence(probe.Kind) bool {
	return false
}

// CheckExistence issues HeadBucket through the us-east-1 client
func (p *Prober) CheckExistence(ctx context.Context, name string) probe.Verdict {
	ctx, slot := withCapture(ctx)
	_, err := p.client.head.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(name),
	})
	return Classify(probe.KindExistence, slot.outcome(err))
}

// ListObjects lists the bucket in the configured region and keeps a sample of keys
func (p *Prober) ListObjects(ctx context.Context, name string) probe.Verdict {
	ctx, slot := withCapture(ctx)
	out, err := p.client.regional.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(name),
		MaxKeys: aws.Int32(listMaxKeys),
	})

	v := Classify(probe.KindList, slot.outcome(err))
	if v.Result != probe.ResultAllowed || out == nil {
		return v
	}

	keys := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		if obj.Key != nil {
			keys = append(keys, *obj.Key)
		}
	}
	v.Objects = probe.Sample(keys)
	return v
}

// AttemptWrite uploads WritePayload to WriteKey
func (p *Prober) AttemptWrite(ctx context.Context, name string) probe.Verdict {
	ctx, slot := withCapture(ctx)
	_, err := p.client.regional.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(name),
		Key:           aws.String(WriteKey),
		Body:          strings.NewReader(WritePayload),
		ContentLength: aws.Int64(int64(len(WritePayload))),
	})
	return Classify(probe.KindWrite, slot.outcome(err))
}

// AttemptDelete removes WriteKey. Only meaningful after an allowed write.
func (p *Prober) AttemptDelete(ctx context.Context, name string) probe.Verdict {
	ctx, slot := withCapture(ctx)
	_, err := p.client.regional.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(name),
		Key:    aws.String(WriteKey),
	})
	return Classify(probe.KindDelete, slot.outcome(err))
}

// CheckPermissions is not implemented for S3
func (p *Prober) CheckPermissions(context.Context, string) []probe.Verdict {
	return []probe.Verdict{probe.Unsupported(probe.KindPermissions)}
}
