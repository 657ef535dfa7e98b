package events

import "testing"

func TestConstructorsEmitExpectedNames(t *testing.T) {
	testCases := []struct {
		name     string
		event    Event
		expected Name
	}{
		{name: "lesson play", event: NewLessonPlay("m1"), expected: NameLessonPlay},
		{name: "lesson pause", event: NewLessonPause("m1", 12.5), expected: NameLessonPause},
		{name: "lesson complete", event: NewLessonComplete("m1"), expected: NameLessonComplete},
		{name: "audio gen fail", event: NewAudioGenFail("m1", "boom"), expected: NameAudioGenFail},
		{name: "ingest start", event: NewIngestStart("a.pdf", 10), expected: NameIngestStart},
		{name: "ingest success", event: NewIngestSuccess("a", 4), expected: NameIngestSuccess},
		{name: "ingest fail", event: NewIngestFail("a.pdf", "Size Limit"), expected: NameIngestFail},
		{name: "quiz start", event: NewQuizStart(2), expected: NameQuizStart},
		{name: "quiz complete", event: NewQuizComplete(1, 2, 50), expected: NameQuizComplete},
		{name: "paywall trigger", event: NewPaywallTrigger("neural_voice", "free"), expected: NamePaywallTrigger},
		{name: "conversion", event: NewConversion("pro", "neural_voice"), expected: NameConversion},
		{name: "paywall dismiss", event: NewPaywallDismiss("neural_voice"), expected: NamePaywallDismiss},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Name(); got != testCase.expected {
				t.Fatalf("expected name %q, got %q", testCase.expected, got)
			}
			if !IsKnown(testCase.event.Name()) {
				t.Fatalf("expected %q to be part of the vocabulary", testCase.event.Name())
			}
		})
	}
}

func TestAudioGenFailOmitsEmptyModuleID(t *testing.T) {
	payload := NewAudioGenFail("", "offline").Payload()

	if _, ok := payload["module_id"]; ok {
		t.Fatalf("expected module_id to be omitted, got %v", payload)
	}
	if got := payload["error"]; got != "offline" {
		t.Fatalf("expected error %q, got %v", "offline", got)
	}
}

type recordingTracker struct {
	names []Name
}

func (r *recordingTracker) Track(name Name, _ Payload) error {
	r.names = append(r.names, name)
	return nil
}

func TestEmitForwardsNameAndIgnoresNilTracker(t *testing.T) {
	tracker := &recordingTracker{}
	if err := Emit(tracker, NewQuizStart(3)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tracker.names) != 1 || tracker.names[0] != NameQuizStart {
		t.Fatalf("expected one quiz_start, got %v", tracker.names)
	}

	if err := Emit(nil, NewQuizStart(3)); err != nil {
		t.Fatalf("expected nil tracker to drop events, got %v", err)
	}
}

func TestUnknownNameIsNotInVocabulary(t *testing.T) {
	if IsKnown("lesson_rewind") {
		t.Fatalf("expected lesson_rewind to be unknown")
	}
}
