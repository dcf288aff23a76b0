package pipelines

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"golang.org/x/time/rate"

	"github.com/3leaps/jobscope/pkg/events"
	"github.com/3leaps/jobscope/pkg/jobs"
	"github.com/3leaps/jobscope/pkg/provider"
)

// Provider implements provider.Provider over the pipelines state bucket.
//
// Safe for concurrent use: the S3 client and rate limiter both support
// concurrent callers, and no per-query state is held on the struct.
type Provider struct {
	client  *s3.Client
	bucket  string
	prefix  string
	maxKeys int
	limiter *rate.Limiter
	retry   provider.RetryPolicy
}

var _ provider.Provider = (*Provider)(nil)

// New creates a new pipelines provider with the given configuration.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &provider.BackendError{Op: "New", Provider: provider.TypePipelines, Err: err}
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		},
	}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Provider{
		client:  s3.NewFromConfig(awsCfg, s3Opts...),
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		maxKeys: maxKeys,
		limiter: limiter,
		retry:   provider.DefaultRetryPolicy(),
	}, nil
}

// loadAWSConfig builds the AWS configuration with appropriate credentials.
func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}

	// No default region for S3-compatible endpoints; they ignore it.
	if awsCfg.Region == "" && cfg.Endpoint == "" {
		awsCfg.Region = DefaultAWSRegion
	}
	return awsCfg, nil
}

func (p *Provider) Type() provider.Type { return provider.TypePipelines }

// Close releases resources. The S3 client needs no explicit cleanup;
// this satisfies the interface.
func (p *Provider) Close() error { return nil }

// Capabilities: job ids scope the listing to per-job key prefixes.
// Everything else is post-filtered by the engine.
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{JobIDs: true}
}

func (p *Provider) List(ctx context.Context, c provider.Criteria) ([]jobs.Job, error) {
	prefixes := []string{p.operationsPrefix("")}
	if len(c.JobIDs) > 0 {
		prefixes = prefixes[:0]
		seen := make(map[string]bool, len(c.JobIDs))
		for _, id := range c.JobIDs {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			prefixes = append(prefixes, p.operationsPrefix(id))
		}
	}

	var out []jobs.Job
	for _, prefix := range prefixes {
		rows, err := p.listPrefix(ctx, prefix)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (p *Provider) Describe(ctx context.Context, jobIDs []string) ([]jobs.Job, error) {
	return p.List(ctx, provider.Criteria{JobIDs: jobIDs})
}

func (p *Provider) operationsPrefix(jobID string) string {
	parts := []string{"operations"}
	if p.prefix != "" {
		parts = append([]string{p.prefix}, parts...)
	}
	if jobID != "" {
		parts = append(parts, jobID)
	}
	return strings.Join(parts, "/") + "/"
}

// listPrefix pages through one key prefix and decodes every operation
// document under it into task-level job rows.
func (p *Provider) listPrefix(ctx context.Context, prefix string) ([]jobs.Job, error) {
	var out []jobs.Job
	var token string

	for {
		input := &s3.ListObjectsV2Input{
			Bucket:  aws.String(p.bucket),
			Prefix:  aws.String(prefix),
			MaxKeys: aws.Int32(int32(p.maxKeys)),
		}
		if token != "" {
			input.ContinuationToken = aws.String(token)
		}

		var page *s3.ListObjectsV2Output
		err := provider.Retry(ctx, p.retry, func() error {
			if err := p.wait(ctx); err != nil {
				return err
			}
			var callErr error
			page, callErr = p.client.ListObjectsV2(ctx, input)
			if callErr != nil {
				return p.wrapError("List", "", callErr)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			row, err := p.fetchOperation(ctx, key)
			if err != nil {
				return nil, err
			}
			out = append(out, row)
		}

		if !aws.ToBool(page.IsTruncated) || page.NextContinuationToken == nil {
			return out, nil
		}
		token = *page.NextContinuationToken
	}
}

// fetchOperation reads and decodes one operation document. A document
// that cannot be decoded yields a degraded task row keyed from the
// object path rather than an error: the query still completes, and the
// task is visible with unknown status instead of silently dropped.
func (p *Provider) fetchOperation(ctx context.Context, key string) (jobs.Job, error) {
	var body []byte
	err := provider.Retry(ctx, p.retry, func() error {
		if err := p.wait(ctx); err != nil {
			return err
		}
		obj, callErr := p.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(key),
		})
		if callErr != nil {
			return p.wrapError("Describe", key, callErr)
		}
		defer func() { _ = obj.Body.Close() }()
		var readErr error
		body, readErr = io.ReadAll(obj.Body)
		if readErr != nil {
			return p.wrapError("Describe", key, readErr)
		}
		return nil
	})
	if err != nil {
		return jobs.Job{}, err
	}

	doc, decodeErr := decodeOperation(body)
	if decodeErr != nil {
		return degradedRow(key), nil
	}
	return doc.toJob(), nil
}

func (p *Provider) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

// degradedRow builds a placeholder row from the object path
// (operations/<job_id>/<task_id>.json) for an undecodable document.
func degradedRow(key string) jobs.Job {
	taskID := strings.TrimSuffix(path.Base(key), ".json")
	jobID := path.Base(path.Dir(key))
	return jobs.Job{
		JobID:    jobID,
		Provider: provider.TypePipelines.String(),
		Tasks:    []jobs.Task{{TaskID: taskID, Degraded: true}},
	}
}

// operationDoc is the wire shape of one pipelines operation document.
type operationDoc struct {
	APIVersion string            `json:"api_version"`
	JobID      string            `json:"job_id"`
	TaskID     string            `json:"task_id,omitempty"`
	JobName    string            `json:"job_name,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
	CreateTime time.Time         `json:"create_time"`
	Zone       string            `json:"zone,omitempty"`
	InstanceID string            `json:"instance_id,omitempty"`
	Events     []operationEvent  `json:"events"`

	// normalized is populated by decodeOperation.
	normalized []jobs.Event
	degraded   bool
}

type operationEvent struct {
	Code int       `json:"code,omitempty"`
	Name string    `json:"name,omitempty"`
	Time time.Time `json:"timestamp"`
}

func decodeOperation(body []byte) (*operationDoc, error) {
	var doc operationDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	if doc.JobID == "" || doc.CreateTime.IsZero() {
		return nil, errors.New("operation document missing job_id or create_time")
	}

	var normalizer *events.Normalizer
	v1 := doc.APIVersion == "v1"
	if v1 {
		normalizer = events.PipelinesV1()
	} else {
		normalizer = events.PipelinesV2()
	}

	// Preserve backend emission order; a malformed event degrades the
	// task but keeps the events decoded so far.
	for _, ev := range doc.Events {
		var mapped jobs.Event
		var err error
		if v1 {
			mapped, err = normalizer.Code(ev.Code, ev.Time)
		} else {
			mapped, err = normalizer.Name(ev.Name, ev.Time)
		}
		if err != nil {
			doc.degraded = true
			continue
		}
		doc.normalized = append(doc.normalized, mapped)
	}
	return &doc, nil
}

func (doc *operationDoc) toJob() jobs.Job {
	attrs := make(map[string]string, 2)
	if doc.Zone != "" {
		attrs["zone"] = doc.Zone
	}
	if doc.InstanceID != "" {
		attrs["instance_id"] = doc.InstanceID
	}
	if len(attrs) == 0 {
		attrs = nil
	}

	return jobs.Job{
		JobID:      doc.JobID,
		Name:       doc.JobName,
		CreateTime: doc.CreateTime,
		Labels:     doc.Labels,
		Provider:   provider.TypePipelines.String(),
		Tasks: []jobs.Task{{
			TaskID:     doc.TaskID,
			Events:     doc.normalized,
			Attributes: attrs,
			Degraded:   doc.degraded,
		}},
	}
}

// wrapError converts S3 errors to backend errors with the right
// sentinel, so the retry helper and the engine can classify them.
func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.BackendError{
		Op:       op,
		Provider: provider.TypePipelines,
		JobID:    jobIDFromKey(key),
		Err:      err,
	}

	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket
	switch {
	case errors.As(err, &noSuchKey):
		wrapped.Err = provider.ErrJobNotFound
		return wrapped
	case errors.As(err, &noSuchBucket):
		wrapped.Err = provider.ErrRejected
		return wrapped
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "TokenRefreshRequired":
			wrapped.Err = provider.ErrAuth
		case "NoSuchBucket":
			wrapped.Err = provider.ErrRejected
		case "NoSuchKey", "NotFound":
			wrapped.Err = provider.ErrJobNotFound
		case "SlowDown", "Throttling", "ThrottlingException", "RequestLimitExceeded":
			wrapped.Err = provider.ErrThrottled
		case "RequestTimeout", "ServiceUnavailable", "InternalError", "503":
			wrapped.Err = provider.ErrBackendUnavailable
		}
		return wrapped
	}

	// Non-API errors (DNS, connection refused, timeouts) are transient.
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		wrapped.Err = provider.ErrBackendUnavailable
	}
	return wrapped
}

func jobIDFromKey(key string) string {
	if key == "" {
		return ""
	}
	return path.Base(path.Dir(key))
}
