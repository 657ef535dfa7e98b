package playback

import (
	"context"
	"log/slog"

	"github.com/koscakluka/cognitive-os/core/events"
)

type ControllerOption func(*Controller)

type ScriptGenerator interface {
	GenerateScript(ctx context.Context, title, text string) (string, error)
}

// SynthesizedAudio is what an AudioGenerator hands back: somewhere the
// device can load the audio from, and the length the generator measured.
type SynthesizedAudio struct {
	PlayableURL     string
	DurationSeconds float64
}

type AudioGenerator interface {
	GenerateAudio(ctx context.Context, script string) (SynthesizedAudio, error)
}

type ProgressUpdater interface {
	UpdateProgress(ctx context.Context, id string, percent int) error
}

type ConnectivityChecker interface {
	IsOnline(ctx context.Context) bool
}

func WithScriptGenerator(generator ScriptGenerator) ControllerOption {
	return func(c *Controller) { c.scripts = generator }
}

func WithAudioGenerator(generator AudioGenerator) ControllerOption {
	return func(c *Controller) { c.voices = generator }
}

func WithDevice(device Device) ControllerOption {
	return func(c *Controller) { c.device.Set(device) }
}

func WithProgressUpdater(updater ProgressUpdater) ControllerOption {
	return func(c *Controller) { c.progress = updater }
}

// WithConnectivityChecker sets the check run before every generation. Without
// one the controller assumes it is online.
func WithConnectivityChecker(checker ConnectivityChecker) ControllerOption {
	return func(c *Controller) { c.connectivity = checker }
}

func WithTracker(tracker events.Tracker) ControllerOption {
	return func(c *Controller) { c.tracker = tracker }
}

// WithSpeeds replaces the playback rates ChangeSpeed cycles through. The
// first rate is the starting one.
func WithSpeeds(speeds ...float64) ControllerOption {
	return func(c *Controller) {
		valid := make([]float64, 0, len(speeds))
		for _, speed := range speeds {
			if speed > 0 {
				valid = append(valid, speed)
			}
		}
		if len(valid) > 0 {
			c.speeds = valid
		}
	}
}

// WithStatusCallback registers a function called with every status the
// session enters, in order. It is called without the controller lock held.
func WithStatusCallback(callback func(Status)) ControllerOption {
	return func(c *Controller) {
		if callback != nil {
			c.statusCallbacks = append(c.statusCallbacks, callback)
		}
	}
}

func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}
