// Package pipelines implements the provider interface for the cloud
// pipelines backend.
//
// The pipelines service records one operation document per task as a
// JSON object in a bucket:
//
//	<prefix>/operations/<job_id>/<task_id>.json
//
// Documents come in two shapes: v1 (numeric event codes) and v2 (named
// operation events), distinguished per document by api_version. The
// adapter reads both and normalizes them through pkg/events.
package pipelines

import "fmt"

// Config configures a pipelines provider.
//
// Authentication uses the AWS SDK v2 default credential chain unless
// explicit credentials are provided. For S3-compatible stores, set
// Endpoint and typically ForcePathStyle.
type Config struct {
	// Bucket is the state bucket name (required).
	Bucket string

	// Prefix is the key prefix the pipelines service writes under.
	// Empty means the bucket root.
	Prefix string

	// Region is the AWS region. Defaults to us-east-1 for AWS S3 when
	// not specified via config or environment.
	Region string

	// Endpoint is a custom endpoint URL for S3-compatible stores.
	Endpoint string

	// Profile is the AWS profile name to use from shared config.
	Profile string

	// AccessKeyID is an explicit access key. If set, SecretAccessKey
	// must also be set.
	AccessKeyID string

	// SecretAccessKey is an explicit secret key. Required if
	// AccessKeyID is set.
	SecretAccessKey string

	// ForcePathStyle forces path-style URLs. Required for most
	// S3-compatible stores.
	ForcePathStyle bool

	// MaxKeys is the page size for list operations. Zero uses the
	// provider default (1000).
	MaxKeys int

	// RateLimit is the maximum state-store requests per second.
	// Zero means unlimited.
	RateLimit float64
}

// DefaultMaxKeys is the default page size for list operations.
const DefaultMaxKeys = 1000

// DefaultAWSRegion is the fallback region for AWS S3 when not specified.
const DefaultAWSRegion = "us-east-1"

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket name is required")
	}
	if (c.AccessKeyID != "") != (c.SecretAccessKey != "") {
		return fmt.Errorf("both access key ID and secret access key must be provided together")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must be >= 0")
	}
	return nil
}
