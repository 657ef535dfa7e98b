// Package portaudio plays lessons through the default PortAudio output
// stream.
package portaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/cognitive-os/core/audio"
)

const (
	sampleRate      = 44100
	framesPerBuffer = 1024
)

type Device struct {
	stream *portaudio.Stream
	deck   *audio.Deck

	mu      sync.Mutex
	started bool
}

func NewDevice() (*Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	d := &Device{deck: audio.NewDeck(sampleRate)}

	stream, err := portaudio.OpenDefaultStream(0, 1, sampleRate, framesPerBuffer, d.process)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open PortAudio stream: %w", err)
	}
	d.stream = stream

	return d, nil
}

func (d *Device) process(out []int16) {
	d.deck.Render(out)
}

func (d *Device) SetCallbacks(onEnded func(), onError func(error)) {
	d.deck.SetCallbacks(onEnded, onError)
}

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
	if d.stream == nil {
		return fmt.Errorf("stream not open")
	}
	if err := d.deck.Rewind(); err != nil {
		return err
	}
	if d.started {
		return nil
	}

	if err := d.stream.Start(); err != nil {
		err = fmt.Errorf("failed to start PortAudio stream: %w", err)
		d.deck.Fail(err)
		return err
	}
	d.started = true
	return nil
}

func (d *Device) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil {
		return fmt.Errorf("stream not open")
	}
	if !d.started {
		return nil
	}

	if err := d.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop PortAudio stream: %w", err)
	}
	d.started = false
	return nil
}

func (d *Device) Seek(seconds float64) error { return d.deck.Seek(seconds) }

func (d *Device) SetRate(rate float64) error { return d.deck.SetRate(rate) }

func (d *Device) Position() float64 { return d.deck.Position() }

func (d *Device) Release() error {
	err := d.Pause()
	d.deck.Release()
	return err
}

func (d *Device) Close() {
	_ = d.Release()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream != nil {
		_ = d.stream.Close()
		d.stream = nil
	}
	_ = portaudio.Terminate()
}
