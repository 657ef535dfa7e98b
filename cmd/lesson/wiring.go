package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	playback "github.com/koscakluka/cognitive-os/core"
	"github.com/koscakluka/cognitive-os/core/audio/miniaudio"
	"github.com/koscakluka/cognitive-os/core/audio/portaudio"
	"github.com/koscakluka/cognitive-os/core/config"
	"github.com/koscakluka/cognitive-os/core/connectivity"
	"github.com/koscakluka/cognitive-os/core/extraction/documentai"
	"github.com/koscakluka/cognitive-os/core/extraction/plaintext"
	"github.com/koscakluka/cognitive-os/core/ingest"
	"github.com/koscakluka/cognitive-os/core/library"
	"github.com/koscakluka/cognitive-os/core/llms/groq"
	"github.com/koscakluka/cognitive-os/core/paywall"
	"github.com/koscakluka/cognitive-os/core/quiz"
	transcription "github.com/koscakluka/cognitive-os/core/speechtotext/deepgram"
	"github.com/koscakluka/cognitive-os/core/storage"
	"github.com/koscakluka/cognitive-os/core/storage/gcs"
	"github.com/koscakluka/cognitive-os/core/storage/local"
	"github.com/koscakluka/cognitive-os/core/telemetry"
	"github.com/koscakluka/cognitive-os/core/telemetry/filestore"
	"github.com/koscakluka/cognitive-os/core/telemetry/httpcollector"
	"github.com/koscakluka/cognitive-os/core/telemetry/redisstore"
	"github.com/koscakluka/cognitive-os/core/telemetry/sqlitestore"
	"github.com/koscakluka/cognitive-os/core/texttospeech/deepgram"
)

// app holds every component the lesson player runs with.
type app struct {
	library    *library.Library
	queue      *telemetry.Queue
	controller *playback.Controller
	ingestor   *ingest.Ingestor
	quiz       *quiz.Session
	gate       *paywall.Gate

	// statuses receives every controller transition for the TUI.
	statuses chan playback.Status

	closers []func() error
}

type playbackDevice interface {
	playback.Device
	Close()
}

func buildApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{statuses: make(chan playback.Status, 16)}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	a.library, err = library.Open(cfg.Path("library.db"))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.library.Close)

	store, err := telemetryStore(ctx, cfg, a)
	if err != nil {
		return nil, err
	}
	var deliverer telemetry.Deliverer
	if cfg.Telemetry.CollectorURL != "" {
		deliverer = httpcollector.New(cfg.Telemetry.CollectorURL, httpcollector.WithAPIKey(cfg.Telemetry.APIKey))
	}
	a.queue = telemetry.NewQueue(store, deliverer,
		telemetry.WithBatchSize(cfg.Telemetry.BatchSize),
		telemetry.WithFlushInterval(cfg.Telemetry.FlushInterval),
	)
	if err := a.queue.Init(ctx); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { a.queue.Dispose(); return nil })

	blobs, err := blobStore(ctx, cfg, a)
	if err != nil {
		return nil, err
	}

	probe := connectivity.NewProbe(
		connectivity.WithURL(cfg.Connectivity.ProbeURL),
		connectivity.WithCacheFor(cfg.Connectivity.CacheFor),
	)
	a.gate = paywall.NewGate(paywall.Plan(cfg.Plan), paywall.WithTracker(a.queue))

	groqOpts := []groq.ClientOption{groq.WithModel(cfg.Groq.Model)}
	if cfg.Groq.URL != "" {
		groqOpts = append(groqOpts, groq.WithURL(cfg.Groq.URL))
	}
	llm := groq.NewClient(cfg.Groq.APIKey, groqOpts...)

	synthOpts := []deepgram.Option{deepgram.WithVoice(deepgram.Voice(cfg.Deepgram.Voice))}
	if cfg.Deepgram.URL != "" {
		synthOpts = append(synthOpts, deepgram.WithURL(cfg.Deepgram.URL))
	}
	if blobs != nil {
		synthOpts = append(synthOpts, deepgram.WithBlobStore(blobs))
	}
	synthesizer, err := deepgram.NewSynthesizer(cfg.Deepgram.APIKey, synthOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to set up speech synthesis: %w", err)
	}

	device, err := openDevice(cfg.Playback.Device)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { device.Close(); return nil })

	a.controller = playback.NewController(
		playback.WithScriptGenerator(groq.NewScriptWriter(llm)),
		playback.WithAudioGenerator(synthesizer),
		playback.WithDevice(device),
		playback.WithProgressUpdater(a.library),
		playback.WithConnectivityChecker(probe),
		playback.WithTracker(a.queue),
		playback.WithSpeeds(cfg.Playback.Speeds...),
		playback.WithStatusCallback(func(status playback.Status) {
			select {
			case a.statuses <- status:
			default:
				// the TUI polls Snapshot, so it still catches up
				logger.Warn("dropped playback status update", "status", string(status))
			}
		}),
	)
	a.closers = append(a.closers, func() error { a.controller.Close(); return nil })

	ingestOpts := []ingest.Option{
		ingest.WithExtractor(ingest.ContentTypeText, plaintext.New()),
		ingest.WithAnalyzer(groq.NewAnalyzer(llm)),
		ingest.WithConnectivityChecker(probe),
		ingest.WithAccessChecker(a.gate),
		ingest.WithTracker(a.queue),
		ingest.WithMaxSize(cfg.Ingest.MaxSize, cfg.Ingest.LargeMaxSize),
	}
	if blobs != nil {
		ingestOpts = append(ingestOpts, ingest.WithBlobStore(blobs))
	}
	if cfg.DocumentAIEnabled() {
		extractor, err := documentai.New(ctx, documentai.Processor{
			ProjectID: cfg.Extraction.ProjectID,
			Location:  cfg.Extraction.Location,
			ID:        cfg.Extraction.ProcessorID,
		}, documentai.WithCredentials(cfg.Extraction.Credentials))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, extractor.Close)
		ingestOpts = append(ingestOpts, ingest.WithExtractor(ingest.ContentTypePDF, extractor))
	}
	transcriber := transcription.NewTranscriber(cfg.Deepgram.APIKey)
	for _, contentType := range transcription.ContentTypes {
		ingestOpts = append(ingestOpts, ingest.WithExtractor(contentType, transcriber))
	}
	a.ingestor = ingest.NewIngestor(a.library, ingestOpts...)

	a.quiz = quiz.NewSession(groq.NewQuestionWriter(llm, groq.DefaultQuestionCount), quiz.WithTracker(a.queue))

	return a, nil
}

func telemetryStore(ctx context.Context, cfg *config.Config, a *app) (telemetry.Store, error) {
	switch cfg.Telemetry.Store {
	case "sqlite":
		return sqlitestore.New(a.library.DB())
	case "redis":
		store, err := redisstore.Dial(ctx, cfg.Telemetry.RedisAddr, redisstore.WithPrefix(cfg.Telemetry.RedisPrefix))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	}
	return filestore.New(cfg.Path(filestore.DefaultFileName)), nil
}

func blobStore(ctx context.Context, cfg *config.Config, a *app) (storage.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "gcs":
		store, err := gcs.New(ctx, cfg.Storage.Bucket,
			gcs.WithCredentials(cfg.Storage.Credentials),
			gcs.WithPublicBaseURL(cfg.Storage.PublicBaseURL),
		)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case "inline":
		return nil, nil
	}
	return local.New(cfg.Path("blobs"))
}

func openDevice(name string) (playbackDevice, error) {
	switch name {
	case "portaudio":
		return portaudio.NewDevice()
	}
	return miniaudio.NewDevice()
}

// close tears components down in reverse order of construction.
func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
