package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrNothingLoaded = errors.New("no track loaded")

// Deck holds the track a playback device is rendering and reports the end
// of it. Devices feed their output buffers from Render and stay responsible
// only for starting and stopping the hardware stream.
type Deck struct {
	outRate int

	mu      sync.Mutex
	track   *Track
	rate    float64
	ended   bool
	onEnded func()
	onError func(error)
}

func NewDeck(outRate int) *Deck {
	return &Deck{outRate: outRate, rate: 1}
}

// SetCallbacks registers the end-of-track and device error callbacks. They
// are called from their own goroutine, never from the audio thread.
func (d *Deck) SetCallbacks(onEnded func(), onError func(error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onEnded = onEnded
	d.onError = onError
}

// Load fetches and decodes the WAV behind url, replacing the current track.
// It returns the track duration in seconds.
func (d *Deck) Load(ctx context.Context, url string) (float64, error) {
	data, err := Fetch(ctx, url)
	if err != nil {
		return 0, err
	}

	track, err := DecodeWAV(data)
	if err != nil {
		return 0, fmt.Errorf("failed to decode audio: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	track.SetRate(d.rate)
	d.track = track
	d.ended = false

	return track.Duration(), nil
}

func (d *Deck) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.track != nil
}

// Rewind moves back to the start when the track has already ended so Play
// starts over instead of finishing immediately.
func (d *Deck) Rewind() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.track == nil {
		return ErrNothingLoaded
	}
	if d.ended || d.track.Ended() {
		d.track.Seek(0)
		d.ended = false
	}
	return nil
}

func (d *Deck) Seek(seconds float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.track == nil {
		return ErrNothingLoaded
	}
	d.track.Seek(seconds)
	d.ended = d.track.Ended()
	return nil
}

func (d *Deck) SetRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("invalid playback rate %v", rate)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rate = rate
	if d.track != nil {
		d.track.SetRate(rate)
	}
	return nil
}

func (d *Deck) Position() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.track == nil {
		return 0
	}
	return d.track.Position()
}

func (d *Deck) Duration() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.track == nil {
		return 0
	}
	return d.track.Duration()
}

// Release drops the loaded track.
func (d *Deck) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.track = nil
	d.ended = false
}

// Render fills out with the next samples. Without a track it writes silence.
func (d *Deck) Render(out []int16) {
	d.mu.Lock()
	track := d.track
	d.mu.Unlock()

	if track == nil {
		clear(out)
		return
	}
	d.finish(track, track.Render(out, d.outRate))
}

// RenderBytes is Render for little-endian S16 byte buffers.
func (d *Deck) RenderBytes(out []byte) {
	d.mu.Lock()
	track := d.track
	d.mu.Unlock()

	if track == nil {
		clear(out)
		return
	}
	d.finish(track, track.RenderBytes(out, d.outRate))
}

func (d *Deck) finish(track *Track, ended bool) {
	if !ended {
		return
	}

	d.mu.Lock()
	if d.track != track || d.ended {
		d.mu.Unlock()
		return
	}
	d.ended = true
	onEnded := d.onEnded
	d.mu.Unlock()

	if onEnded != nil {
		go onEnded()
	}
}

// Fail reports a device error through the error callback.
func (d *Deck) Fail(err error) {
	d.mu.Lock()
	onError := d.onError
	d.mu.Unlock()

	logger.Error("playback device failed", "error", err)
	if onError != nil {
		go onError(err)
	}
}
