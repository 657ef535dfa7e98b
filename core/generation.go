package playback

import (
	"context"
	"errors"

	"github.com/koscakluka/cognitive-os/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// GenerateAndPlay runs a full generation cycle for item and starts playback
// of the result. Whatever was loaded before is released first.
//
// Offline, it moves straight to StatusError without calling either
// generator. A failed step leaves the session in StatusError with a user
// facing LastError, tracks audio_gen_fail and returns the wrapped failure.
// A call made while another cycle runs returns ErrGenerationInFlight and
// changes nothing.
func (c *Controller) GenerateAndPlay(ctx context.Context, item Item) error {
	ctx, span := tracer.Start(ctx, "generate and play", trace.WithAttributes(
		attribute.String("lesson.module_id", item.ID),
		attribute.Int("lesson.text_length", len(item.RawText)),
	))
	defer span.End()

	c.lock()
	if c.closed {
		c.unlock()
		return ErrClosed
	}
	if c.generating || c.session.Status.IsGenerating() {
		c.unlock()
		return ErrGenerationInFlight
	}
	c.generating = true
	c.session.Item = &Item{ID: item.ID, Title: item.Title, RawText: item.RawText}
	c.releaseResource()
	c.unlock()

	defer func() {
		c.lock()
		c.generating = false
		c.unlock()
	}()

	resource, err := c.generate(ctx, item)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.fail(item.ID, err)
		return err
	}

	c.lock()
	if c.closed {
		c.unlock()
		return ErrClosed
	}
	c.session.Resource = resource
	c.session.Position = 0
	if err := c.device.SetRate(c.session.Rate); err != nil {
		c.logger.Warn("failed to apply playback rate", "rate", c.session.Rate, "error", err)
	}
	c.setStatus(StatusReady)
	c.unlock()

	return c.Play()
}

func (c *Controller) generate(ctx context.Context, item Item) (*AudioResource, error) {
	if c.connectivity != nil && !c.connectivity.IsOnline(ctx) {
		return nil, ConnectivityError{}
	}

	if !c.advance(StatusGeneratingScript) {
		return nil, ErrClosed
	}
	script, err := c.generateScript(ctx, item)
	if err != nil {
		return nil, &GenerationError{Err: err}
	}

	if !c.advance(StatusGeneratingAudio) {
		return nil, ErrClosed
	}
	synthesized, err := c.generateAudio(ctx, script)
	if err != nil {
		return nil, &SynthesisError{Err: err}
	}

	duration, err := c.device.Load(ctx, synthesized.PlayableURL)
	if err != nil {
		return nil, &PlaybackDeviceError{Err: err}
	}
	if duration <= 0 {
		duration = synthesized.DurationSeconds
	}

	return &AudioResource{
		PlayableURL: synthesized.PlayableURL,
		Duration:    duration,
		ScriptText:  script,
	}, nil
}

func (c *Controller) generateScript(ctx context.Context, item Item) (string, error) {
	ctx, span := tracer.Start(ctx, "generate script")
	defer span.End()

	if c.scripts == nil {
		return "", errors.New("no script generator configured")
	}

	script, err := c.scripts.GenerateScript(ctx, item.Title, item.RawText)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("lesson.script_length", len(script)))
	return script, nil
}

func (c *Controller) generateAudio(ctx context.Context, script string) (SynthesizedAudio, error) {
	ctx, span := tracer.Start(ctx, "generate audio")
	defer span.End()

	if c.voices == nil {
		return SynthesizedAudio{}, errors.New("no audio generator configured")
	}

	synthesized, err := c.voices.GenerateAudio(ctx, script)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SynthesizedAudio{}, err
	}
	span.SetAttributes(attribute.Float64("lesson.duration_seconds", synthesized.DurationSeconds))
	return synthesized, nil
}

// advance moves a running cycle to its next step. It reports false once the
// controller has been closed.
func (c *Controller) advance(next Status) bool {
	c.lock()
	defer c.unlock()
	if c.closed {
		return false
	}
	return c.setStatus(next)
}

// fail ends a cycle in StatusError and tracks audio_gen_fail with the raw
// cause of the failure.
func (c *Controller) fail(moduleID string, err error) {
	if errors.Is(err, ErrClosed) {
		return
	}

	c.lock()
	c.session.LastError = UserMessage(err)
	c.setStatus(StatusError)
	c.unlock()

	raw := causeMessage(err)
	if raw == "" {
		raw = SynthesisFallbackMessage
	}
	c.logger.Error("lesson generation failed", "module_id", moduleID, "error", err)
	c.emit(events.NewAudioGenFail(moduleID, raw))
}

// releaseResource expects mu to be held.
func (c *Controller) releaseResource() {
	if c.session.Resource == nil {
		return
	}
	if err := c.device.Release(); err != nil {
		c.logger.Warn("failed to release previous lesson audio", "error", err)
	}
	c.session.Resource = nil
	c.session.Position = 0
}
