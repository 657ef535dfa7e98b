package paywall

import (
	"testing"

	"github.com/koscakluka/cognitive-os/core/events"
)

type recordingTracker struct {
	names    []events.Name
	payloads []events.Payload
}

func (r *recordingTracker) Track(name events.Name, payload events.Payload) error {
	r.names = append(r.names, name)
	r.payloads = append(r.payloads, payload)
	return nil
}

func TestAllows(t *testing.T) {
	tests := []struct {
		plan    Plan
		feature Feature
		want    bool
	}{
		{PlanPro, FeatureNeuralVoice, true},
		{PlanPro, FeatureUploadLarge, true},
		{PlanPremium, FeatureNeuralVoice, false},
		{PlanPremium, FeatureUnlimitedQuiz, true},
		{PlanFree, FeatureNeuralVoice, false},
		{PlanFree, FeatureUploadLarge, false},
		{PlanFree, FeatureUnlimitedQuiz, false},
		{PlanFree, Feature("basic_voice"), true},
	}

	for _, tt := range tests {
		if got := Allows(tt.plan, tt.feature); got != tt.want {
			t.Fatalf("Allows(%s, %s) = %v, want %v", tt.plan, tt.feature, got, tt.want)
		}
	}
}

func TestBlockedFeatureOpensPaywall(t *testing.T) {
	tracker := &recordingTracker{}
	gate := NewGate(PlanFree, WithTracker(tracker))

	if gate.CheckAccess(FeatureNeuralVoice) {
		t.Fatalf("expected neural voice to be blocked on the free plan")
	}
	open, trigger := gate.IsOpen()
	if !open || trigger != FeatureNeuralVoice {
		t.Fatalf("expected paywall open for neural_voice, got %v %s", open, trigger)
	}
	if len(tracker.names) != 1 || tracker.names[0] != events.NamePaywallTrigger {
		t.Fatalf("expected one paywall_trigger, got %v", tracker.names)
	}
	if tracker.payloads[0]["feature"] != "neural_voice" || tracker.payloads[0]["current_plan"] != "free" {
		t.Fatalf("unexpected paywall_trigger payload %v", tracker.payloads[0])
	}
}

func TestAllowedFeatureTracksNothing(t *testing.T) {
	tracker := &recordingTracker{}
	gate := NewGate(PlanPremium, WithTracker(tracker))

	if !gate.CheckAccess(FeatureUploadLarge) {
		t.Fatalf("expected premium to allow large uploads")
	}
	if open, _ := gate.IsOpen(); open {
		t.Fatalf("expected paywall to stay closed")
	}
	if len(tracker.names) != 0 {
		t.Fatalf("expected no events, got %v", tracker.names)
	}
}

func TestUpgradeTracksConversionWithTrigger(t *testing.T) {
	tracker := &recordingTracker{}
	gate := NewGate(PlanFree, WithTracker(tracker))
	gate.CheckAccess(FeatureUnlimitedQuiz)

	if err := gate.Upgrade(PlanPro); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if gate.Plan() != PlanPro {
		t.Fatalf("expected pro plan, got %s", gate.Plan())
	}
	if open, _ := gate.IsOpen(); open {
		t.Fatalf("expected paywall to close after upgrade")
	}

	last := tracker.payloads[len(tracker.payloads)-1]
	if tracker.names[len(tracker.names)-1] != events.NameConversion || last["plan"] != "pro" || last["trigger"] != "unlimited_quiz" {
		t.Fatalf("unexpected conversion event %v %v", tracker.names, last)
	}
	if !gate.CheckAccess(FeatureNeuralVoice) {
		t.Fatalf("expected pro to unlock neural voice")
	}
}

func TestUpgradeRejectsUnknownPlan(t *testing.T) {
	gate := NewGate(PlanFree)
	if err := gate.Upgrade(Plan("lifetime")); err == nil {
		t.Fatalf("expected unknown plan to be rejected")
	}
	if gate.Plan() != PlanFree {
		t.Fatalf("expected plan to stay free, got %s", gate.Plan())
	}
}

func TestDismissKeepsPlan(t *testing.T) {
	tracker := &recordingTracker{}
	gate := NewGate(Plan("bogus"), WithTracker(tracker))
	if gate.Plan() != PlanFree {
		t.Fatalf("expected unknown plan to fall back to free, got %s", gate.Plan())
	}

	gate.CheckAccess(FeatureUploadLarge)
	gate.Dismiss()

	if open, _ := gate.IsOpen(); open {
		t.Fatalf("expected paywall to close")
	}
	last := tracker.payloads[len(tracker.payloads)-1]
	if tracker.names[len(tracker.names)-1] != events.NamePaywallDismiss || last["trigger"] != "upload_large" {
		t.Fatalf("unexpected dismiss event %v %v", tracker.names, last)
	}
}
