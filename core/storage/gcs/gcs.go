// Package gcs keeps blobs in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/koscakluka/cognitive-os/internal/gcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
)

const uploadTimeout = 2 * time.Minute

type Store struct {
	client    *storage.Client
	ownClient bool
	bucket    string
	publicURL string
}

type Option func(*config)

type config struct {
	credentials   string
	clientOptions []option.ClientOption
	publicURL     string
}

// WithCredentials takes inline service account JSON or a path to it.
func WithCredentials(credentials string) Option {
	return func(c *config) { c.credentials = credentials }
}

func WithClientOptions(opts ...option.ClientOption) Option {
	return func(c *config) { c.clientOptions = append(c.clientOptions, opts...) }
}

// WithPublicBaseURL serves blobs from a CDN or emulator instead of
// storage.googleapis.com.
func WithPublicBaseURL(base string) Option {
	return func(c *config) { c.publicURL = strings.TrimRight(base, "/") }
}

func New(ctx context.Context, bucket string, opts ...Option) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs: missing bucket name")
	}

	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	clientOpts := append(gcp.ClientOptions(cfg.credentials), option.WithScopes(storage.ScopeReadWrite))
	clientOpts = append(clientOpts, cfg.clientOptions...)
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	store := NewWithClient(client, bucket, cfg.publicURL)
	store.ownClient = true
	logger.Info("gcs blob store initialized", "bucket", bucket)
	return store, nil
}

// NewWithClient uses an existing client, which the caller keeps owning.
func NewWithClient(client *storage.Client, bucket, publicBaseURL string) *Store {
	return &Store{client: client, bucket: bucket, publicURL: strings.TrimRight(publicBaseURL, "/")}
}

func (s *Store) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	ctx, span := tracer.Start(ctx, "put blob", trace.WithAttributes(
		attribute.String("gcs.bucket", s.bucket),
		attribute.String("gcs.key", key),
		attribute.Int("gcs.size", len(data)),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}

	return s.PublicURL(key), nil
}

func (s *Store) PublicURL(key string) string {
	if s.publicURL != "" {
		return fmt.Sprintf("%s/%s", s.publicURL, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key)
}

func (s *Store) Close() error {
	if s == nil || !s.ownClient {
		return nil
	}
	return s.client.Close()
}
