package playback

import (
	"errors"
	"fmt"
)

const (
	ConnectivityMessage      = "You need a connection to use AI right now."
	SynthesisFallbackMessage = "Couldn't synthesize the voice right now. Shall we try again?"
)

var (
	ErrGenerationInFlight = errors.New("a lesson is already being generated")
	ErrNoResource         = errors.New("no lesson audio loaded")
	ErrInvalidTransition  = errors.New("invalid playback transition")
	ErrClosed             = errors.New("playback controller closed")
)

type ConnectivityError struct{}

func (ConnectivityError) Error() string { return ConnectivityMessage }

// GenerationError wraps a failure of the script generator.
type GenerationError struct{ Err error }

func (e *GenerationError) Error() string { return fmt.Sprintf("failed to generate script: %v", e.Err) }
func (e *GenerationError) Unwrap() error { return e.Err }

// SynthesisError wraps a failure of the audio generator.
type SynthesisError struct{ Err error }

func (e *SynthesisError) Error() string { return fmt.Sprintf("failed to synthesize audio: %v", e.Err) }
func (e *SynthesisError) Unwrap() error { return e.Err }

// PlaybackDeviceError wraps a failure reported by the playback device.
type PlaybackDeviceError struct{ Err error }

func (e *PlaybackDeviceError) Error() string { return fmt.Sprintf("playback device failed: %v", e.Err) }
func (e *PlaybackDeviceError) Unwrap() error { return e.Err }

// UserMessage returns the text shown to the user for a failed cycle: the
// cause's own message when it has one, the fallback otherwise.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var connErr ConnectivityError
	if errors.As(err, &connErr) {
		return ConnectivityMessage
	}

	if msg := causeMessage(err); msg != "" {
		return msg
	}
	return SynthesisFallbackMessage
}

// causeMessage is the raw message of the error a collaborator returned,
// without the controller's wrapping.
func causeMessage(err error) string {
	var (
		genErr    *GenerationError
		synthErr  *SynthesisError
		deviceErr *PlaybackDeviceError
	)
	switch {
	case errors.As(err, &genErr):
		err = genErr.Err
	case errors.As(err, &synthErr):
		err = synthErr.Err
	case errors.As(err, &deviceErr):
		err = deviceErr.Err
	}

	if err == nil {
		return ""
	}
	return err.Error()
}
