// Package httpcollector delivers telemetry batches to a remote collector
// over HTTP.
package httpcollector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/koscakluka/cognitive-os/core/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultTimeout = 10 * time.Second

	// errorBodyLimit caps how much of a rejected response ends up in the span.
	errorBodyLimit = 4 << 10
)

type Collector struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

type Option func(*Collector)

func WithAPIKey(apiKey string) Option {
	return func(c *Collector) { c.apiKey = apiKey }
}

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Collector) {
		if client != nil {
			c.client = client
		}
	}
}

func New(endpoint string, opts ...Option) *Collector {
	c := &Collector{
		endpoint: endpoint,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type batchRequest struct {
	Events []telemetry.Event `json:"events"`
}

// Deliver posts the batch as {"events": [...]}. Any status outside 2xx is an
// error so the queue keeps the batch for the next attempt.
func (c *Collector) Deliver(ctx context.Context, batch []telemetry.Event) error {
	ctx, span := tracer.Start(ctx, "deliver telemetry batch")
	defer span.End()
	span.SetAttributes(
		attribute.Int("telemetry.batch_size", len(batch)),
		attribute.String("request.url", c.endpoint),
	)

	body, err := json.Marshal(batchRequest{Events: batch})
	if err != nil {
		err = fmt.Errorf("error marshalling batch: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending batch: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if errorBody, readErr := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit)); readErr == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		err := fmt.Errorf("collector rejected batch: %s", resp.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	logger.Debug("delivered telemetry batch", "events", len(batch))
	return nil
}
