package playback

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/cognitive-os/core/events"
	"github.com/koscakluka/cognitive-os/internal/utils"
)

var DefaultSpeeds = []float64{1.0, 1.25, 1.5, 2.0}

const progressTimeout = 5 * time.Second

// Item is the content a lesson is generated from. The controller keeps its
// own copy and never changes it.
type Item struct {
	ID      string
	Title   string
	RawText string
}

// AudioResource is the outcome of one successful generation cycle.
type AudioResource struct {
	PlayableURL string
	// Duration in seconds.
	Duration   float64
	ScriptText string
}

type Session struct {
	Status   Status
	Item     *Item
	Resource *AudioResource
	// Position in seconds.
	Position float64
	Rate     float64
	// LastError is only set while Status is StatusError.
	LastError string
}

// Controller drives one playback session at a time.
type Controller struct {
	scripts      ScriptGenerator
	voices       AudioGenerator
	device       playbackDevice
	progress     ProgressUpdater
	connectivity ConnectivityChecker
	tracker      events.Tracker

	speeds          []float64
	statusCallbacks []func(Status)
	logger          *slog.Logger

	mu         sync.Mutex
	session    Session
	speedIndex int
	// generating is held for a whole GenerateAndPlay call, including the
	// connectivity check that runs before any status change.
	generating bool
	closed     bool
	// pendingStatuses collects transitions made under mu; they are handed to
	// the status callbacks by unlock.
	pendingStatuses []Status

	closeOnce sync.Once
}

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		speeds: DefaultSpeeds,
		logger: logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.session = Session{Status: StatusIdle, Rate: c.speeds[0]}
	c.device.SetCallbacks(c.handleEnded, c.handleDeviceError)

	return c
}

func (c *Controller) lock() {
	c.mu.Lock()
}

// unlock releases mu and then notifies status callbacks about every
// transition made while it was held.
func (c *Controller) unlock() {
	pending := c.pendingStatuses
	c.pendingStatuses = nil
	c.mu.Unlock()

	for _, status := range pending {
		for _, callback := range c.statusCallbacks {
			callback(status)
		}
	}
}

// setStatus moves the session to next. It expects mu to be held and reports
// false, leaving the session untouched, when the transition is not allowed.
func (c *Controller) setStatus(next Status) bool {
	current := c.session.Status
	if current == next {
		if next == StatusError {
			// a retry that failed again is still reported
			c.pendingStatuses = append(c.pendingStatuses, next)
		}
		return true
	}
	if !current.CanTransitionTo(next) {
		c.logger.Warn("rejected playback transition", "from", string(current), "to", string(next))
		return false
	}

	c.session.Status = next
	if next != StatusError {
		c.session.LastError = ""
	}
	c.pendingStatuses = append(c.pendingStatuses, next)
	c.logger.Debug("playback status changed", "from", string(current), "to", string(next))
	return true
}

// Status returns the current status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Status
}

// Snapshot returns a deep copy of the session with the position read from
// the device.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Status == StatusPlaying {
		c.session.Position = c.clampToResource(c.device.Position())
	}

	var snapshot Session
	if err := copier.CopyWithOption(&snapshot, &c.session, copier.Option{DeepCopy: true}); err != nil {
		c.logger.Error("failed to copy playback session", "error", err)
		snapshot = c.session
	}
	return snapshot
}

// Close stops and releases the device. The controller rejects every call
// afterwards.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.lock()
		defer c.unlock()

		c.closed = true
		if err := c.device.Pause(); err != nil {
			c.logger.Warn("failed to stop playback on close", "error", err)
		}
		if err := c.device.Release(); err != nil {
			c.logger.Warn("failed to release playback device on close", "error", err)
		}
		c.session.Resource = nil
	})
}

// clampToResource expects mu to be held.
func (c *Controller) clampToResource(seconds float64) float64 {
	duration := 0.0
	if c.session.Resource != nil {
		duration = c.session.Resource.Duration
	}
	return utils.Clamp(seconds, 0, duration)
}

// progressPercent expects mu to be held.
func (c *Controller) progressPercent() int {
	if c.session.Resource == nil || c.session.Resource.Duration <= 0 {
		return 0
	}
	percent := math.Round(c.session.Position / c.session.Resource.Duration * 100)
	return utils.Clamp(int(percent), 0, 100)
}

func (c *Controller) itemID() string {
	if c.session.Item == nil {
		return ""
	}
	return c.session.Item.ID
}

func (c *Controller) updateProgress(id string, percent int) {
	if c.progress == nil || id == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), progressTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "update progress")
	defer span.End()

	if err := c.progress.UpdateProgress(ctx, id, percent); err != nil {
		span.RecordError(err)
		c.logger.Warn("failed to persist lesson progress", "module_id", id, "progress", percent, "error", err)
	}
}

func (c *Controller) emit(event events.Event) {
	if err := events.Emit(c.tracker, event); err != nil {
		c.logger.Warn("failed to track event", "event", string(event.Name()), "error", err)
	}
}
