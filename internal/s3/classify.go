package s3

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ppiankov/bucketspectre/internal/probe"
)

const bucketRegionHeader = "X-Amz-Bucket-Region"

// errorDocument is the <Error> body S3 returns for failed requests
type errorDocument struct {
	XMLName xml.Name `xml:"Error"`
	probe.ErrorBody
}

// Classify maps an S3 response to a verdict.
func Classify(kind probe.Kind, o probe.Outcome) probe.Verdict {
	if o.Err != nil {
		return probe.Classify(kind, o)
	}

	switch {
	case o.Status >= 200 && o.Status < 300:
		v := probe.Classify(kind, o)
		v.Region = o.Header.Get(bucketRegionHeader)
		return v

	case kind == probe.KindExistence && o.Status == http.StatusMovedPermanently:
		// The bucket lives in another region
		v := probe.Exists(kind, o.Status)
		v.Region = o.Header.Get(bucketRegionHeader)
		return v

	case o.Status == http.StatusForbidden || o.Status == http.StatusNotFound:
		v := probe.Classify(kind, o)
		if body, err := DecodeErrorBody(o.Body); err == nil {
			v.ErrorBody = body
		}
		return v
	}

	if len(o.Body) == 0 {
		v := probe.Ambiguous(kind, o.Status)
		v.Region = o.Header.Get(bucketRegionHeader)
		return v
	}

	body, err := DecodeRedirectBody(o.Body)
	if err != nil {
		return probe.Failure(kind, o.Status, &probe.DecodeError{Status: o.Status, Err: err})
	}

	v := probe.Ambiguous(kind, o.Status)
	v.ErrorBody = body
	v.Region = RegionFromEndpoint(body.Endpoint)
	if v.Region == "" {
		v.Region = o.Header.Get(bucketRegionHeader)
	}
	return v
}

// DecodeErrorBody parses an S3 <Error> document. Code, Message, RequestId and
// HostId must all be present.
func DecodeErrorBody(raw []byte) (*probe.ErrorBody, error) {
	return decodeErrorBody(raw, false)
}

// DecodeRedirectBody parses the <Error> document sent with an unexpected
// status. Endpoint and Bucket are required on top of the DecodeErrorBody fields.
func DecodeRedirectBody(raw []byte) (*probe.ErrorBody, error) {
	return decodeErrorBody(raw, true)
}

func decodeErrorBody(raw []byte, full bool) (*probe.ErrorBody, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("empty error body")
	}

	var doc errorDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("malformed error body: %w", err)
	}

	var missing []string
	if doc.Code == "" {
		missing = append(missing, "Code")
	}
	if doc.Message == "" {
		missing = append(missing, "Message")
	}
	if full && doc.Endpoint == "" {
		missing = append(missing, "Endpoint")
	}
	if full && doc.Bucket == "" {
		missing = append(missing, "Bucket")
	}
	if doc.RequestID == "" {
		missing = append(missing, "RequestId")
	}
	if doc.HostID == "" {
		missing = append(missing, "HostId")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("error body missing %s", strings.Join(missing, ", "))
	}

	body := doc.ErrorBody
	return &body, nil
}

// RegionFromEndpoint extracts the region from an S3 endpoint host such as
// bucket.s3.eu-west-1.amazonaws.com or bucket.s3-eu-west-1.amazonaws.com.
// The legacy global endpoint maps to us-east-1. Returns "" when no region is found.
func RegionFromEndpoint(endpoint string) string {
	host := strings.TrimSpace(endpoint)
	if strings.Contains(host, "://") {
		u, err := url.Parse(host)
		if err != nil {
			return ""
		}
		host = u.Hostname()
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return ""
	}

	labels := strings.Split(host, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		label := labels[i]
		switch {
		case label == "s3":
			rest := labels[i+1:]
			if len(rest) > 0 && rest[0] == "dualstack" {
				rest = rest[1:]
			}
			if len(rest) == 0 || rest[0] == "amazonaws" {
				return existenceRegion
			}
			if regionPattern.MatchString(rest[0]) {
				return rest[0]
			}
			return ""
		case strings.HasPrefix(label, "s3-"):
			if region := strings.TrimPrefix(label, "s3-"); regionPattern.MatchString(region) {
				return region
			}
		}
	}
	return ""
}
