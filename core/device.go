package playback

import (
	"context"
	"reflect"
	"sync"
)

// Device is the output the controller owns exclusively. It plays one
// resource at a time; Load replaces whatever was loaded before.
type Device interface {
	// Load prepares the audio behind url and returns its duration in seconds,
	// or 0 when the device cannot tell.
	Load(ctx context.Context, url string) (float64, error)
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetRate(rate float64) error
	Position() float64
	// Release stops playback and frees the loaded resource.
	Release() error
	// SetCallbacks registers the end-of-resource and asynchronous error
	// notifications.
	SetCallbacks(onEnded func(), onError func(error))
}

// playbackDevice lets the controller run without a configured device. It
// then behaves as a silent output whose cursor only moves on Seek.
type playbackDevice struct {
	device Device

	// position backs Position when no device is configured.
	position   float64
	positionMu sync.Mutex
}

func (d *playbackDevice) setPosition(seconds float64) {
	d.positionMu.Lock()
	defer d.positionMu.Unlock()
	d.position = seconds
}

// Set replaces the configured device. Nil and typed-nil devices are treated
// as unconfigured.
func (d *playbackDevice) Set(device Device) {
	d.device = nil
	if isNilDevice(device) {
		return
	}
	d.device = device
}

func (d *playbackDevice) isConfigured() bool {
	return d.device != nil
}

func (d *playbackDevice) SetCallbacks(onEnded func(), onError func(error)) {
	if d.device != nil {
		d.device.SetCallbacks(onEnded, onError)
	}
}

func (d *playbackDevice) Load(ctx context.Context, url string) (float64, error) {
	d.setPosition(0)
	if d.device == nil {
		return 0, nil
	}
	return d.device.Load(ctx, url)
}

func (d *playbackDevice) Play() error {
	if d.device == nil {
		return nil
	}
	return d.device.Play()
}

func (d *playbackDevice) Pause() error {
	if d.device == nil {
		return nil
	}
	return d.device.Pause()
}

func (d *playbackDevice) Seek(seconds float64) error {
	d.setPosition(seconds)
	if d.device == nil {
		return nil
	}
	return d.device.Seek(seconds)
}

func (d *playbackDevice) SetRate(rate float64) error {
	if d.device == nil {
		return nil
	}
	return d.device.SetRate(rate)
}

func (d *playbackDevice) Position() float64 {
	if d.device == nil {
		d.positionMu.Lock()
		defer d.positionMu.Unlock()
		return d.position
	}
	return d.device.Position()
}

func (d *playbackDevice) Release() error {
	d.setPosition(0)
	if d.device == nil {
		return nil
	}
	return d.device.Release()
}

func isNilDevice(device Device) bool {
	if device == nil {
		return true
	}

	v := reflect.ValueOf(device)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}
