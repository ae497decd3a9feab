package sinks

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/infracollect/reportd/internal/export"
	"go.uber.org/zap"
)

// S3Uploader is the part of manager.Uploader the sink needs.
type S3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Config describes the destination bucket and how to reach it.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
	// PartSize is the multipart chunk size in bytes, 0 keeps the uploader default.
	PartSize int64
	// Concurrency is the number of parts uploaded in parallel, 0 keeps the uploader default.
	Concurrency int
}

// S3Sink uploads each exported object to S3-compatible storage. Objects are
// marked as attachments so a presigned link downloads under the report name.
type S3Sink struct {
	logger   *zap.Logger
	bucket   string
	prefix   string
	uploader S3Uploader

	objects atomic.Int64
	bytes   atomic.Int64
}

type S3Option func(*S3Sink)

// WithS3Uploader replaces the multipart uploader built from the config.
func WithS3Uploader(uploader S3Uploader) S3Option {
	return func(s *S3Sink) {
		s.uploader = uploader
	}
}

func NewS3Sink(ctx context.Context, logger *zap.Logger, cfg S3Config, opts ...S3Option) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.PartSize != 0 && cfg.PartSize < manager.MinUploadPartSize {
		return nil, fmt.Errorf("s3 part size %d is below the minimum of %d bytes", cfg.PartSize, manager.MinUploadPartSize)
	}

	s := &S3Sink{
		logger: logger,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.uploader == nil {
		client, err := newS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.uploader = manager.NewUploader(client, func(u *manager.Uploader) {
			if cfg.PartSize > 0 {
				u.PartSize = cfg.PartSize
			}
			if cfg.Concurrency > 0 {
				u.Concurrency = cfg.Concurrency
			}
		})
	}

	return s, nil
}

func newS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// MinIO and R2 are reached through a custom endpoint.
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	}), nil
}

func (s *S3Sink) Name() string {
	return "s3(" + path.Join(s.bucket, s.prefix) + ")"
}

func (s *S3Sink) Kind() string {
	return "s3"
}

func (s *S3Sink) key(objectPath string) string {
	if s.prefix == "" {
		return objectPath
	}
	return path.Join(s.prefix, objectPath)
}

// Write uploads data as objectPath below the prefix. Files and in-memory
// readers carry their length so the upload can skip buffering a first part
// to size it; other readers are streamed and counted as they go.
func (s *S3Sink) Write(ctx context.Context, objectPath string, data io.Reader) error {
	key := s.key(objectPath)
	input := &s3.PutObjectInput{
		Bucket:             aws.String(s.bucket),
		Key:                aws.String(key),
		Body:               data,
		ContentDisposition: aws.String(export.AttachmentDisposition(path.Base(objectPath))),
	}
	if contentType := export.ContentType(objectPath); contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	size, known := readerLength(data)
	var counter *countingReader
	if known {
		input.ContentLength = aws.Int64(size)
	} else {
		counter = &countingReader{r: data}
		input.Body = counter
	}

	start := time.Now()
	out, err := s.uploader.Upload(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to upload to s3://%s/%s: %w", s.bucket, key, err)
	}
	if counter != nil {
		size = counter.n
	}

	s.objects.Add(1)
	s.bytes.Add(size)

	fields := []zap.Field{
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int64("bytes", size),
		zap.Duration("elapsed", time.Since(start)),
	}
	if out != nil && out.UploadID != "" {
		fields = append(fields, zap.String("upload_id", out.UploadID))
	}
	s.logger.Info("uploaded object", fields...)

	return nil
}

// Uploaded returns the number of objects and bytes written so far.
func (s *S3Sink) Uploaded() (objects, bytes int64) {
	return s.objects.Load(), s.bytes.Load()
}

func (s *S3Sink) Close(ctx context.Context) error {
	objects, bytes := s.Uploaded()
	s.logger.Debug("s3 sink closed",
		zap.String("sink", s.Name()),
		zap.Int64("objects", objects),
		zap.Int64("bytes", bytes),
	)
	return nil
}

// readerLength returns the remaining length of r when it can be known
// without reading.
func readerLength(r io.Reader) (int64, bool) {
	switch v := r.(type) {
	case interface{ Stat() (os.FileInfo, error) }:
		info, err := v.Stat()
		if err != nil || !info.Mode().IsRegular() {
			return 0, false
		}
		if seeker, ok := r.(io.Seeker); ok {
			offset, err := seeker.Seek(0, io.SeekCurrent)
			if err != nil {
				return 0, false
			}
			return info.Size() - offset, true
		}
		return info.Size(), true
	case interface{ Len() int }:
		return int64(v.Len()), true
	}
	return 0, false
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
