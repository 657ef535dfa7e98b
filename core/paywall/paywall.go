// Package paywall decides which features the current plan unlocks and tracks
// the upgrade funnel around that decision.
package paywall

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/koscakluka/cognitive-os/core/events"
)

type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
	PlanPro     Plan = "pro"
)

func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPremium, PlanPro:
		return true
	}
	return false
}

type Feature string

const (
	FeatureNeuralVoice   Feature = "neural_voice"
	FeatureUploadLarge   Feature = "upload_large"
	FeatureUnlimitedQuiz Feature = "unlimited_quiz"
)

var gatedFeatures = []Feature{FeatureNeuralVoice, FeatureUploadLarge, FeatureUnlimitedQuiz}

// Allows reports whether plan unlocks feature. It has no side effects.
func Allows(plan Plan, feature Feature) bool {
	switch plan {
	case PlanPro:
		return true
	case PlanPremium:
		return feature != FeatureNeuralVoice
	}
	return !slices.Contains(gatedFeatures, feature)
}

// Gate is the paywall state of one user: the active plan and, while the
// paywall is shown, the feature that opened it.
type Gate struct {
	tracker events.Tracker
	logger  *slog.Logger

	mu      sync.Mutex
	plan    Plan
	open    bool
	trigger Feature
}

type Option func(*Gate)

func WithTracker(tracker events.Tracker) Option {
	return func(g *Gate) { g.tracker = tracker }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGate starts on plan, falling back to the free plan when plan is not
// recognised.
func NewGate(plan Plan, opts ...Option) *Gate {
	if !plan.Valid() {
		plan = PlanFree
	}
	g := &Gate{plan: plan, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckAccess reports whether the current plan unlocks feature. A denied
// check opens the paywall and tracks paywall_trigger.
func (g *Gate) CheckAccess(feature Feature) bool {
	g.mu.Lock()
	plan := g.plan
	if Allows(plan, feature) {
		g.mu.Unlock()
		return true
	}
	g.open = true
	g.trigger = feature
	g.mu.Unlock()

	g.logger.Info("feature blocked by plan", "feature", string(feature), "plan", string(plan))
	g.track(events.NewPaywallTrigger(string(feature), string(plan)))
	return false
}

// Upgrade switches to plan, closes the paywall and tracks conversion with
// the feature that triggered it.
func (g *Gate) Upgrade(plan Plan) error {
	if !plan.Valid() {
		return fmt.Errorf("unknown plan %q", plan)
	}

	g.mu.Lock()
	g.plan = plan
	g.open = false
	trigger := g.trigger
	g.mu.Unlock()

	g.track(events.NewConversion(string(plan), string(trigger)))
	return nil
}

// Dismiss closes the paywall without changing the plan.
func (g *Gate) Dismiss() {
	g.mu.Lock()
	g.open = false
	trigger := g.trigger
	g.mu.Unlock()

	g.track(events.NewPaywallDismiss(string(trigger)))
}

func (g *Gate) Plan() Plan {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.plan
}

// IsOpen reports whether the paywall is shown and which feature opened it.
func (g *Gate) IsOpen() (bool, Feature) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open, g.trigger
}

func (g *Gate) track(event events.Event) {
	if err := events.Emit(g.tracker, event); err != nil {
		g.logger.Warn("failed to track event", "event", string(event.Name()), "error", err)
	}
}
