// Package documentai extracts the text of uploaded PDFs with a Google Cloud
// Document AI processor.
package documentai

import (
	"context"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/koscakluka/cognitive-os/internal/gcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
)

const (
	DefaultLocation = "us"
	processTimeout  = 3 * time.Minute
)

// Processor names a Document AI processor.
type Processor struct {
	ProjectID string
	Location  string
	ID        string
	Version   string
}

// Name is the resource name of the processor, or of one of its versions.
func (p Processor) Name() string {
	project := strings.TrimSpace(p.ProjectID)
	location := strings.TrimSpace(p.Location)
	id := strings.TrimSpace(p.ID)
	if project == "" || id == "" {
		return ""
	}
	if location == "" {
		location = DefaultLocation
	}

	name := fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, id)
	if version := strings.TrimSpace(p.Version); version != "" {
		name += "/processorVersions/" + version
	}
	return name
}

func (p Processor) endpoint() string {
	location := strings.TrimSpace(p.Location)
	if location == "" {
		location = DefaultLocation
	}
	return fmt.Sprintf("%s-documentai.googleapis.com:443", location)
}

type Extractor struct {
	client    *documentai.DocumentProcessorClient
	processor Processor
}

type Option func(*config)

type config struct {
	credentials   string
	clientOptions []option.ClientOption
}

func WithCredentials(credentials string) Option {
	return func(c *config) { c.credentials = credentials }
}

func WithClientOptions(opts ...option.ClientOption) Option {
	return func(c *config) { c.clientOptions = append(c.clientOptions, opts...) }
}

func New(ctx context.Context, processor Processor, opts ...Option) (*Extractor, error) {
	if processor.Name() == "" {
		return nil, fmt.Errorf("documentai: project and processor id are required")
	}

	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	// the regional endpoint has to come first so explicit options can override it
	clientOpts := append([]option.ClientOption{option.WithEndpoint(processor.endpoint())}, gcp.ClientOptions(cfg.credentials)...)
	clientOpts = append(clientOpts, cfg.clientOptions...)
	client, err := documentai.NewDocumentProcessorClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}

	logger.Info("document ai initialized", "processor", processor.Name())
	return &Extractor{client: client, processor: processor}, nil
}

// ExtractText runs the processor over data and returns the document text.
func (e *Extractor) ExtractText(ctx context.Context, name, contentType string, data []byte) (string, error) {
	ctx, span := tracer.Start(ctx, "extract text", trace.WithAttributes(
		attribute.String("document.name", name),
		attribute.String("document.content_type", contentType),
		attribute.Int("document.size", len(data)),
	))
	defer span.End()

	if len(data) == 0 {
		return "", nil
	}
	if contentType == "" {
		contentType = "application/pdf"
	}

	ctx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()

	resp, err := e.client.ProcessDocument(ctx, processRequest(e.processor.Name(), contentType, data))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("documentai ProcessDocument: %w", err)
	}

	text := documentText(resp)
	span.SetAttributes(attribute.Int("document.text_length", len(text)))
	return text, nil
}

func (e *Extractor) Close() error {
	if e == nil || e.client == nil {
		return nil
	}
	return e.client.Close()
}

func processRequest(name, contentType string, data []byte) *documentaipb.ProcessRequest {
	return &documentaipb.ProcessRequest{
		Name: name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: contentType,
			},
		},
	}
}

func documentText(resp *documentaipb.ProcessResponse) string {
	if resp == nil || resp.GetDocument() == nil {
		return ""
	}
	return strings.TrimSpace(resp.GetDocument().GetText())
}
