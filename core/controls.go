package playback

import (
	"fmt"

	"github.com/koscakluka/cognitive-os/core/events"
)

// Play starts or resumes the loaded resource and tracks lesson_play.
// Playing an already playing session is a no-op.
func (c *Controller) Play() error {
	c.lock()
	if c.closed {
		c.unlock()
		return ErrClosed
	}
	if c.session.Resource == nil {
		c.unlock()
		return ErrNoResource
	}

	switch c.session.Status {
	case StatusPlaying:
		c.unlock()
		return nil
	case StatusReady, StatusPaused:
	default:
		status := c.session.Status
		c.unlock()
		return fmt.Errorf("%w: cannot play while %s", ErrInvalidTransition, status)
	}

	if c.session.Position >= c.session.Resource.Duration {
		// a finished lesson starts over
		c.session.Position = 0
		if err := c.device.Seek(0); err != nil {
			c.logger.Warn("failed to rewind lesson audio", "error", err)
		}
	}

	if err := c.device.Play(); err != nil {
		err = &PlaybackDeviceError{Err: err}
		c.session.LastError = UserMessage(err)
		c.setStatus(StatusError)
		c.unlock()
		c.logger.Error("failed to start playback", "error", err)
		return err
	}
	c.setStatus(StatusPlaying)
	moduleID := c.itemID()
	c.unlock()

	c.emit(events.NewLessonPlay(moduleID))
	return nil
}

// Pause stops the device, persists progress and tracks lesson_pause with the
// position it stopped at. Pausing a paused session is a no-op.
func (c *Controller) Pause() error {
	c.lock()
	if c.closed {
		c.unlock()
		return ErrClosed
	}

	switch c.session.Status {
	case StatusPaused:
		c.unlock()
		return nil
	case StatusPlaying:
	default:
		status := c.session.Status
		c.unlock()
		return fmt.Errorf("%w: cannot pause while %s", ErrInvalidTransition, status)
	}

	if err := c.device.Pause(); err != nil {
		c.logger.Warn("failed to stop playback device", "error", err)
	}
	c.session.Position = c.clampToResource(c.device.Position())
	c.setStatus(StatusPaused)

	moduleID := c.itemID()
	position := c.session.Position
	percent := c.progressPercent()
	c.unlock()

	c.updateProgress(moduleID, percent)
	c.emit(events.NewLessonPause(moduleID, position))
	return nil
}

// Seek moves the cursor to seconds clamped into [0, duration] and returns
// the position actually used. Out of range values are not an error.
func (c *Controller) Seek(seconds float64) float64 {
	c.lock()
	defer c.unlock()

	position := c.clampToResource(seconds)
	c.session.Position = position
	if c.session.Resource != nil {
		if err := c.device.Seek(position); err != nil {
			c.logger.Warn("failed to seek playback device", "position", position, "error", err)
		}
	}
	return position
}

// ChangeSpeed advances to the next playback rate, wrapping around after the
// last one, applies it to the device and returns it.
func (c *Controller) ChangeSpeed() float64 {
	c.lock()
	defer c.unlock()

	c.speedIndex = (c.speedIndex + 1) % len(c.speeds)
	rate := c.speeds[c.speedIndex]
	c.session.Rate = rate
	if err := c.device.SetRate(rate); err != nil {
		c.logger.Warn("failed to change playback rate", "rate", rate, "error", err)
	}
	return rate
}

// handleEnded is called by the device when the resource played to its end.
func (c *Controller) handleEnded() {
	c.lock()
	if c.closed || c.session.Status != StatusPlaying || c.session.Resource == nil {
		c.unlock()
		return
	}

	if err := c.device.Pause(); err != nil {
		c.logger.Warn("failed to stop finished lesson", "error", err)
	}
	c.session.Position = c.session.Resource.Duration
	c.setStatus(StatusPaused)
	moduleID := c.itemID()
	c.unlock()

	c.updateProgress(moduleID, 100)
	c.emit(events.NewLessonComplete(moduleID))
}

// handleDeviceError is called by the device when it fails outside of a
// controller call. The session ends in StatusError and the device is
// released.
func (c *Controller) handleDeviceError(err error) {
	c.lock()
	defer c.unlock()
	if c.closed || c.session.Resource == nil || c.session.Status.IsGenerating() {
		return
	}

	err = &PlaybackDeviceError{Err: err}
	c.logger.Error("playback device failed", "module_id", c.itemID(), "error", err)

	c.releaseResource()
	c.session.LastError = UserMessage(err)
	c.setStatus(StatusError)
}
