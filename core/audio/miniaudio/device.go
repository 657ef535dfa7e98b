// Package miniaudio plays lessons through the default output device using
// miniaudio (malgo).
package miniaudio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/cognitive-os/core/audio"
)

const sampleRate = 48000

type Device struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	deck         *audio.Deck

	mu sync.Mutex
	// stopping is set while a stop was asked for, so the stop callback can
	// tell it apart from the backend losing the device.
	stopping atomic.Bool
	closed   atomic.Bool
}

func NewDevice() (*Device, error) {
	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) { logger.Debug("malgo", "message", message) },
	)
	if err != nil {
		return nil, fmt.Errorf("malgo InitContext failed: %w", err)
	}

	d := &Device{
		audioContext: audioCtx,
		deck:         audio.NewDeck(sampleRate),
	}

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = sampleRate
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = sampleRate / 20 // ~50ms of audio
	config.Periods = 4

	if d.device, err = malgo.InitDevice(
		audioCtx.Context,
		config,
		malgo.DeviceCallbacks{
			Data: func(pOutput, _ []byte, _ uint32) { d.deck.RenderBytes(pOutput) },
			Stop: d.onStop,
		},
	); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to initialize playback device: %w", err)
	}

	return d, nil
}

func (d *Device) SetCallbacks(onEnded func(), onError func(error)) {
	d.deck.SetCallbacks(onEnded, onError)
}

// Load stops the stream, replaces the loaded track and returns its duration.
func (d *Device) Load(ctx context.Context, url string) (float64, error) {
	ctx, span := tracer.Start(ctx, "load audio")
	defer span.End()

	if err := d.Pause(); err != nil {
		return 0, err
	}
	d.deck.Release()

	duration, err := d.deck.Load(ctx, url)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return duration, nil
}

func (d *Device) Play() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return fmt.Errorf("device not initialized")
	}
	if err := d.deck.Rewind(); err != nil {
		return err
	}
	if d.device.IsStarted() {
		return nil
	}

	if err := d.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

func (d *Device) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return fmt.Errorf("device not initialized")
	}
	if !d.device.IsStarted() {
		return nil
	}

	d.stopping.Store(true)
	if err := d.device.Stop(); err != nil {
		d.stopping.Store(false)
		return fmt.Errorf("failed to stop playback device: %w", err)
	}
	return nil
}

func (d *Device) Seek(seconds float64) error { return d.deck.Seek(seconds) }

func (d *Device) SetRate(rate float64) error { return d.deck.SetRate(rate) }

func (d *Device) Position() float64 { return d.deck.Position() }

// Release stops the stream and drops the loaded track. The device itself
// stays usable for the next Load.
func (d *Device) Release() error {
	err := d.Pause()
	d.deck.Release()
	return err
}

func (d *Device) Close() {
	d.closed.Store(true)
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device != nil {
		d.device.Uninit()
		d.device = nil
	}
	if d.audioContext != nil {
		_ = d.audioContext.Uninit()
		d.audioContext.Free()
		d.audioContext = nil
	}
}

// onStop is called by miniaudio whenever the stream stops, including when the
// backend loses the device. It may run inside device.Stop, so it must not
// take d.mu.
func (d *Device) onStop() {
	if d.stopping.Swap(false) || d.closed.Load() {
		return
	}
	if !d.deck.Loaded() {
		return
	}
	d.deck.Fail(fmt.Errorf("playback device stopped unexpectedly"))
}
