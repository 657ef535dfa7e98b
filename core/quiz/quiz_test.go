package quiz

import (
	"context"
	"errors"
	"testing"

	"github.com/koscakluka/cognitive-os/core/events"
)

type fakeGenerator struct {
	questions []Question
	err       error
}

func (f *fakeGenerator) GenerateQuestions(context.Context, string) ([]Question, error) {
	return f.questions, f.err
}

type recordingTracker struct {
	names    []events.Name
	payloads []events.Payload
}

func (r *recordingTracker) Track(name events.Name, payload events.Payload) error {
	r.names = append(r.names, name)
	r.payloads = append(r.payloads, payload)
	return nil
}

func threeQuestions() []Question {
	return []Question{
		{ID: 1, Prompt: "q1", Options: []string{"a", "b"}, CorrectIndex: 0, Explanation: "a is right."},
		{ID: 2, Prompt: "q2", Options: []string{"a", "b"}, CorrectIndex: 1, Explanation: "b is right."},
		{ID: 3, Prompt: "q3", Options: []string{"a", "b"}, CorrectIndex: 1},
	}
}

func TestQuizRunThrough(t *testing.T) {
	tracker := &recordingTracker{}
	session := NewSession(&fakeGenerator{questions: threeQuestions()}, WithTracker(tracker))

	if err := session.Start(context.Background(), "script"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.Status() != StatusActive {
		t.Fatalf("expected active quiz, got %s", session.Status())
	}
	if len(tracker.names) != 1 || tracker.names[0] != events.NameQuizStart || tracker.payloads[0]["question_count"] != 3 {
		t.Fatalf("expected quiz_start with 3 questions, got %v %v", tracker.names, tracker.payloads)
	}

	answers := []int{0, 0, 1}
	for i, option := range answers {
		feedback, err := session.Submit(option)
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if i == 1 {
			if feedback.Correct {
				t.Fatalf("expected question 2 to be wrong")
			}
			if feedback.Message != IncorrectMessage+" b is right." {
				t.Fatalf("expected explanation in feedback, got %q", feedback.Message)
			}
		}

		done, err := session.Next()
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		if done != (i == len(answers)-1) {
			t.Fatalf("unexpected done=%v after question %d", done, i+1)
		}
	}

	result := session.Result()
	if result != (Result{Score: 2, Total: 3, Accuracy: 67}) {
		t.Fatalf("unexpected result %+v", result)
	}
	if session.Status() != StatusCompleted {
		t.Fatalf("expected completed quiz, got %s", session.Status())
	}

	last := tracker.payloads[len(tracker.payloads)-1]
	if tracker.names[len(tracker.names)-1] != events.NameQuizComplete || last["score"] != 2 || last["total"] != 3 || last["accuracy"] != 67 {
		t.Fatalf("unexpected quiz_complete payload %v", last)
	}
}

func TestSubmitTwiceIsRejected(t *testing.T) {
	session := NewSession(&fakeGenerator{questions: threeQuestions()})
	_ = session.Start(context.Background(), "script")

	if _, err := session.Submit(0); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := session.Submit(1); !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}
	if result := session.Result(); result.Score != 1 {
		t.Fatalf("expected a second answer not to change the score, got %d", result.Score)
	}
}

func TestNextBeforeAnswering(t *testing.T) {
	session := NewSession(&fakeGenerator{questions: threeQuestions()})
	_ = session.Start(context.Background(), "script")

	if _, err := session.Next(); !errors.Is(err, ErrNotAnswered) {
		t.Fatalf("expected ErrNotAnswered, got %v", err)
	}
}

func TestSubmitOutOfRange(t *testing.T) {
	session := NewSession(&fakeGenerator{questions: threeQuestions()})
	_ = session.Start(context.Background(), "script")

	if _, err := session.Submit(5); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("expected ErrInvalidOption, got %v", err)
	}
}

func TestStartFailureEndsInError(t *testing.T) {
	tracker := &recordingTracker{}
	session := NewSession(&fakeGenerator{err: errors.New("llm down")}, WithTracker(tracker))

	if err := session.Start(context.Background(), "script"); err == nil {
		t.Fatalf("expected start to fail")
	}
	if session.Status() != StatusError {
		t.Fatalf("expected error status, got %s", session.Status())
	}
	if len(tracker.names) != 0 {
		t.Fatalf("expected no events, got %v", tracker.names)
	}

	if _, err := session.Submit(0); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
}

func TestStartWithoutQuestions(t *testing.T) {
	session := NewSession(&fakeGenerator{})
	if err := session.Start(context.Background(), "script"); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
}
