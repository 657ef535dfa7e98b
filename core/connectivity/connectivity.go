// Package connectivity tells whether the remote AI services can be reached.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultProbeURL = "https://api.groq.com"
	defaultTimeout  = 3 * time.Second
	defaultCacheFor = 10 * time.Second
)

// Static always reports the same state.
type Static bool

func (s Static) IsOnline(context.Context) bool { return bool(s) }

// Probe checks reachability with a HEAD request. Any HTTP response counts as
// online; only transport failures mean offline. Results are reused for a
// short while.
type Probe struct {
	url      string
	client   *http.Client
	cacheFor time.Duration
	now      func() time.Time

	mu        sync.Mutex
	online    bool
	checkedAt time.Time
}

type Option func(*Probe)

func WithURL(url string) Option {
	return func(p *Probe) { p.url = url }
}

func WithHTTPClient(client *http.Client) Option {
	return func(p *Probe) {
		if client != nil {
			p.client = client
		}
	}
}

// WithCacheFor sets how long a result is reused. Zero probes every call.
func WithCacheFor(d time.Duration) Option {
	return func(p *Probe) { p.cacheFor = d }
}

func NewProbe(opts ...Option) *Probe {
	p := &Probe{
		url: DefaultProbeURL,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   defaultTimeout,
		},
		cacheFor: defaultCacheFor,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Probe) IsOnline(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.checkedAt.IsZero() && p.now().Sub(p.checkedAt) < p.cacheFor {
		return p.online
	}

	p.online = p.probe(ctx)
	p.checkedAt = p.now()
	return p.online
}

func (p *Probe) probe(ctx context.Context) bool {
	ctx, span := tracer.Start(ctx, "probe connectivity")
	defer span.End()
	span.SetAttributes(attribute.String("request.url", p.url))

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		logger.Warn("invalid connectivity probe url", "url", p.url, "error", err)
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		span.RecordError(err)
		logger.Info("connectivity probe failed", "url", p.url, "error", err)
		span.SetAttributes(attribute.Bool("connectivity.online", false))
		return false
	}
	resp.Body.Close()

	span.SetAttributes(attribute.Bool("connectivity.online", true))
	return true
}
