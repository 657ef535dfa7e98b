// Package ingest turns an uploaded document into a library material.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	playback "github.com/koscakluka/cognitive-os/core"
	"github.com/koscakluka/cognitive-os/core/events"
	"github.com/koscakluka/cognitive-os/core/library"
	"github.com/koscakluka/cognitive-os/core/paywall"
	"github.com/koscakluka/cognitive-os/core/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxSize      = 4 << 20
	DefaultLargeMaxSize = 50 << 20

	ContentTypePDF  = "application/pdf"
	ContentTypeText = "text/plain"
)

// Reasons recorded on ingest_fail for rejected uploads.
const (
	ReasonSizeLimit   = "Size Limit"
	ReasonInvalidType = "Invalid Type"
)

const (
	unreadableMessage = "Couldn't read this document. Try a version with selectable text."
	fallbackMessage   = "Couldn't add this document right now. Please try again."
)

var (
	ErrOffline    = errors.New("no connection to the ai services")
	ErrEmptyText  = errors.New("no selectable text in document")
	ErrNoLibrary  = errors.New("no library configured")
	ErrEmptyInput = errors.New("empty upload")
)

// RejectedError is returned for uploads refused before any processing.
type RejectedError struct {
	Reason  string
	Message string
}

func (e *RejectedError) Error() string {
	return e.Message
}

type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Analysis is what the catalogue step learned about a document.
type Analysis struct {
	Title         string
	Complexity    string
	Chapters      []string
	EstimatedTime string
}

type TextExtractor interface {
	ExtractText(ctx context.Context, name, contentType string, data []byte) (string, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, fileName, text string) (Analysis, error)
}

type MaterialStore interface {
	Add(ctx context.Context, m library.Material) (library.Material, error)
}

type ConnectivityChecker interface {
	IsOnline(ctx context.Context) bool
}

// AccessChecker decides whether the user may upload beyond the free limit.
type AccessChecker interface {
	CheckAccess(feature paywall.Feature) bool
}

type Result struct {
	Material library.Material
	Analysis Analysis
}

type Ingestor struct {
	extractors   map[string]TextExtractor
	analyzer     Analyzer
	blobs        storage.BlobStore
	materials    MaterialStore
	connectivity ConnectivityChecker
	access       AccessChecker
	tracker      events.Tracker
	logger       *slog.Logger

	maxSize      int
	largeMaxSize int
	now          func() time.Time
}

type Option func(*Ingestor)

// WithExtractor handles uploads of contentType with extractor.
func WithExtractor(contentType string, extractor TextExtractor) Option {
	return func(i *Ingestor) { i.extractors[contentType] = extractor }
}

func WithAnalyzer(analyzer Analyzer) Option {
	return func(i *Ingestor) { i.analyzer = analyzer }
}

func WithBlobStore(blobs storage.BlobStore) Option {
	return func(i *Ingestor) { i.blobs = blobs }
}

func WithConnectivityChecker(checker ConnectivityChecker) Option {
	return func(i *Ingestor) { i.connectivity = checker }
}

func WithAccessChecker(access AccessChecker) Option {
	return func(i *Ingestor) { i.access = access }
}

func WithTracker(tracker events.Tracker) Option {
	return func(i *Ingestor) { i.tracker = tracker }
}

func WithLogger(l *slog.Logger) Option {
	return func(i *Ingestor) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithMaxSize sets the upload limit of the free plan and the limit for
// plans that unlock large uploads.
func WithMaxSize(free, large int) Option {
	return func(i *Ingestor) {
		if free > 0 {
			i.maxSize = free
		}
		if large > 0 {
			i.largeMaxSize = large
		}
	}
}

func NewIngestor(materials MaterialStore, opts ...Option) *Ingestor {
	i := &Ingestor{
		extractors:   map[string]TextExtractor{},
		materials:    materials,
		logger:       logger,
		maxSize:      DefaultMaxSize,
		largeMaxSize: DefaultLargeMaxSize,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Ingest validates upload, extracts and catalogues its text, keeps the
// original in the blob store and adds the result to the library.
func (i *Ingestor) Ingest(ctx context.Context, upload Upload) (Result, error) {
	ctx, span := tracer.Start(ctx, "ingest", trace.WithAttributes(
		attribute.String("ingest.file", upload.Name),
		attribute.Int("ingest.size", len(upload.Data)),
	))
	defer span.End()

	result, err := i.ingest(ctx, upload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (i *Ingestor) ingest(ctx context.Context, upload Upload) (Result, error) {
	if i.materials == nil {
		return Result{}, ErrNoLibrary
	}
	if i.connectivity != nil && !i.connectivity.IsOnline(ctx) {
		return Result{}, ErrOffline
	}
	if len(upload.Data) == 0 {
		return Result{}, ErrEmptyInput
	}

	if err := i.checkSize(upload); err != nil {
		i.reject(upload, err.(*RejectedError))
		return Result{}, err
	}

	contentType := DetectContentType(upload)
	extractor, ok := i.extractors[contentType]
	if !ok {
		err := &RejectedError{Reason: ReasonInvalidType, Message: "Invalid format. Please upload a PDF or a text file."}
		i.reject(upload, err)
		return Result{}, err
	}

	i.emit(events.NewIngestStart(upload.Name, int64(len(upload.Data))))

	text, err := extractor.ExtractText(ctx, upload.Name, contentType, upload.Data)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyText
	}
	if err != nil {
		i.logger.Error("failed to extract document text", "file", upload.Name, "error", err)
		i.emit(events.NewIngestFail(upload.Name, err.Error()))
		return Result{}, fmt.Errorf("failed to extract text from %s: %w", upload.Name, err)
	}

	sourceURL := i.storeOriginal(ctx, upload, contentType)
	analysis := i.analyze(ctx, upload.Name, text)

	material, err := i.materials.Add(ctx, library.Material{
		Title:        analysis.Title,
		ModulesCount: len(analysis.Chapters),
		RawText:      text,
		SourceURL:    sourceURL,
	})
	if err != nil {
		i.emit(events.NewIngestFail(upload.Name, err.Error()))
		return Result{}, fmt.Errorf("failed to add %s to the library: %w", upload.Name, err)
	}

	i.emit(events.NewIngestSuccess(analysis.Title, len(analysis.Chapters)))
	i.logger.Info("document ingested", "file", upload.Name, "material_id", material.ID, "chapters", len(analysis.Chapters))
	return Result{Material: material, Analysis: analysis}, nil
}

func (i *Ingestor) checkSize(upload Upload) error {
	size := len(upload.Data)
	if size <= i.maxSize {
		return nil
	}
	if size <= i.largeMaxSize && i.access != nil && i.access.CheckAccess(paywall.FeatureUploadLarge) {
		return nil
	}
	return &RejectedError{
		Reason:  ReasonSizeLimit,
		Message: fmt.Sprintf("This file is too large for your plan (limit: %d MB). Try a smaller document.", i.maxSize>>20),
	}
}

func (i *Ingestor) reject(upload Upload, err *RejectedError) {
	i.logger.Warn("upload rejected", "file", upload.Name, "reason", err.Reason)
	i.emit(events.NewIngestFail(upload.Name, err.Reason))
}

// storeOriginal keeps the upload next to the material. A failure only costs
// the link back to the original.
func (i *Ingestor) storeOriginal(ctx context.Context, upload Upload, contentType string) string {
	if i.blobs == nil {
		return ""
	}

	key := storage.NewKey(storage.PrefixUploads, contentType, i.now())
	url, err := i.blobs.Put(ctx, key, contentType, upload.Data)
	if err != nil {
		i.logger.Warn("failed to store original upload", "file", upload.Name, "error", err)
		return ""
	}
	return url
}

// analyze never fails. Without an analyzer, or when it errors, the title is
// taken from the file name.
func (i *Ingestor) analyze(ctx context.Context, fileName, text string) Analysis {
	fallback := Analysis{Title: TitleFromFileName(fileName)}
	if i.analyzer == nil {
		return fallback
	}

	analysis, err := i.analyzer.Analyze(ctx, fileName, text)
	if err != nil {
		i.logger.Warn("failed to analyze document, using file name", "file", fileName, "error", err)
		return fallback
	}
	if strings.TrimSpace(analysis.Title) == "" {
		analysis.Title = fallback.Title
	}
	return analysis
}

func (i *Ingestor) emit(event events.Event) {
	if err := events.Emit(i.tracker, event); err != nil {
		i.logger.Warn("failed to track event", "event", string(event.Name()), "error", err)
	}
}

// DetectContentType returns the media type of upload without parameters,
// sniffing the data when the declared type is missing or generic.
func DetectContentType(upload Upload) string {
	declared := upload.ContentType
	if declared == "" || strings.HasPrefix(declared, "application/octet-stream") {
		declared = mime.TypeByExtension(strings.ToLower(filepath.Ext(upload.Name)))
	}
	if declared == "" {
		declared = http.DetectContentType(upload.Data)
	}

	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return declared
	}
	return mediaType
}

// UserMessage returns the text shown to the user for a failed Ingest.
func UserMessage(err error) string {
	var rejected *RejectedError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrOffline):
		return playback.ConnectivityMessage
	case errors.Is(err, ErrEmptyText):
		return unreadableMessage
	case errors.As(err, &rejected):
		return rejected.Message
	}
	return fallbackMessage
}

func TitleFromFileName(name string) string {
	base := filepath.Base(name)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	if title == "" || title == "." {
		return base
	}
	return title
}
