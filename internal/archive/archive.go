// Package archive stores one JSON record per generation run under
// runs/<application>/<run>.json, in S3-compatible object storage or a local
// directory.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/tiger/hzz-draft-assistant/api/document"
	"github.com/tiger/hzz-draft-assistant/internal/drafting"
	"github.com/tiger/hzz-draft-assistant/internal/intake"
)

// Record is one archived generation run.
type Record struct {
	RunID         string           `json:"run_id"`
	ApplicationID string           `json:"application_id"`
	SchemaVersion string           `json:"schema_version"`
	CreatedAt     time.Time        `json:"created_at"`
	Draft         drafting.Result  `json:"draft"`
	Intake        *intake.Data     `json:"intake,omitempty"`
	RawText       string           `json:"raw_text,omitempty"`
	Result        *document.Result `json:"result,omitempty"`
	Error         string           `json:"error,omitempty"`
}

// Validate enforces the fields the object key is built from.
func (r Record) Validate() error {
	if r.RunID == "" || r.ApplicationID == "" {
		return fmt.Errorf("run_id and application_id are required")
	}
	if strings.ContainsAny(r.RunID+r.ApplicationID, "/\\") {
		return fmt.Errorf("run_id and application_id must not contain path separators")
	}
	return nil
}

// Archive persists run records.
type Archive interface {
	Put(ctx context.Context, record Record) (string, error)
}

// Noop discards records; used when no bucket is configured.
type Noop struct{}

func (Noop) Put(context.Context, Record) (string, error) { return "", nil }

// Dir writes records below a local directory.
type Dir struct {
	Root   string
	Prefix string
}

// Put writes record as indented JSON and returns its path.
func (d Dir) Put(ctx context.Context, record Record) (string, error) {
	if err := record.Validate(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", &Error{Code: "canceled", Err: err}
	}
	body, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal archive record: %w", err)
	}
	prefix := strings.Trim(d.Prefix, "/")
	if prefix == "" {
		prefix = "runs"
	}
	target := filepath.Join(d.Root, prefix, record.ApplicationID, record.RunID+".json")
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", &Error{Code: "mkdir", Err: err}
	}
	if err := os.WriteFile(target, append(body, '\n'), 0o600); err != nil {
		return "", &Error{Code: "write", Retryable: true, Err: err}
	}
	return target, nil
}


// Error classifies a failed Put.
type Error struct {
	Code      string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("archive put: %v", e.Err)
	}
	return fmt.Sprintf("archive put (%s): %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type putClient interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config configures the S3 archive.
type Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
	Timeout  time.Duration
}

// S3 writes records with PutObject. The client is created lazily from the
// default AWS credential chain.
type S3 struct {
	mu     sync.Mutex
	client putClient
	cfg    Config
}

// NewS3 returns an archive writing to cfg.Bucket.
func NewS3(cfg Config) (*S3, error) {
	return newS3WithClient(cfg, nil)
}

func newS3WithClient(cfg Config, client putClient) (*S3, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	if cfg.Prefix == "" {
		cfg.Prefix = "runs"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &S3{client: client, cfg: cfg}, nil
}

// Key returns the object key for record.
func (a *S3) Key(record Record) string {
	return path.Join(a.cfg.Prefix, record.ApplicationID, record.RunID+".json")
}

// Put uploads record and returns its object key.
func (a *S3) Put(ctx context.Context, record Record) (string, error) {
	if err := record.Validate(); err != nil {
		return "", err
	}
	body, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal archive record: %w", err)
	}
	client, err := a.resolveClient(ctx)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	key := a.Key(record)
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", classify(err)
	}
	return key, nil
}

func classify(err error) *Error {
	if errors.Is(err, context.Canceled) {
		return &Error{Code: "canceled", Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: "timeout", Retryable: true, Err: err}
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch code {
		case "SlowDown", "ServiceUnavailable", "InternalError", "RequestTimeout", "RequestTimeTooSkewed":
			return &Error{Code: code, Retryable: true, Err: err}
		case "AccessDenied", "NoSuchBucket", "InvalidBucketName", "InvalidAccessKeyId", "SignatureDoesNotMatch", "EntityTooLarge":
			return &Error{Code: code, Err: err}
		default:
			return &Error{Code: code, Retryable: apiErr.ErrorFault() == smithy.FaultServer, Err: err}
		}
	}
	return &Error{Retryable: true, Err: err}
}

func (a *S3) resolveClient(ctx context.Context) (putClient, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}
	var opts []func(*awsconfig.LoadOptions) error
	if a.cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(a.cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	a.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if a.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(a.cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return a.client, nil
}
