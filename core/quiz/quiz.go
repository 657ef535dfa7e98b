// Package quiz runs the comprehension quiz taken after a lesson.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/koscakluka/cognitive-os/core/events"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

const (
	CorrectMessage   = "You've mastered this concept."
	IncorrectMessage = "Not yet. Let's adjust your understanding."
)

var (
	ErrNotActive       = errors.New("quiz is not active")
	ErrAlreadyAnswered = errors.New("question already answered")
	ErrNotAnswered     = errors.New("question not answered yet")
	ErrInvalidOption   = errors.New("option out of range")
	ErrNoQuestions     = errors.New("no questions generated")
	ErrLoading         = errors.New("quiz is already loading")
)

type Question struct {
	ID           int
	Prompt       string
	Options      []string
	CorrectIndex int
	Explanation  string
}

type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, script string) ([]Question, error)
}

type Feedback struct {
	Correct bool
	Message string
}

type Answer struct {
	Selected int
	Correct  bool
}

// Result summarizes a completed quiz. Accuracy is a rounded percentage.
type Result struct {
	Score    int
	Total    int
	Accuracy int
}

type Session struct {
	generator QuestionGenerator
	tracker   events.Tracker
	logger    *slog.Logger

	mu        sync.Mutex
	status    Status
	questions []Question
	current   int
	answers   map[int]Answer
	score     int
	feedback  *Feedback
}

type Option func(*Session)

func WithTracker(tracker events.Tracker) Option {
	return func(s *Session) { s.tracker = tracker }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewSession(generator QuestionGenerator, opts ...Option) *Session {
	s := &Session{
		generator: generator,
		logger:    logger,
		status:    StatusIdle,
		answers:   map[int]Answer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start resets the session and generates questions about script. It tracks
// quiz_start once the questions are in.
func (s *Session) Start(ctx context.Context, script string) error {
	ctx, span := tracer.Start(ctx, "start quiz")
	defer span.End()

	s.mu.Lock()
	if s.status == StatusLoading {
		s.mu.Unlock()
		return ErrLoading
	}
	s.status = StatusLoading
	s.questions = nil
	s.current = 0
	s.answers = map[int]Answer{}
	s.score = 0
	s.feedback = nil
	s.mu.Unlock()

	questions, err := s.generator.GenerateQuestions(ctx, script)
	if err == nil && len(questions) == 0 {
		err = ErrNoQuestions
	}
	if err != nil {
		span.RecordError(err)
		s.mu.Lock()
		s.status = StatusError
		s.mu.Unlock()
		s.logger.Error("failed to start quiz", "error", err)
		return fmt.Errorf("failed to start quiz: %w", err)
	}

	s.mu.Lock()
	s.questions = questions
	s.status = StatusActive
	s.mu.Unlock()

	s.track(events.NewQuizStart(len(questions)))
	return nil
}

// Submit answers the current question. Each question takes one answer.
func (s *Session) Submit(option int) (Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return Feedback{}, ErrNotActive
	}
	if s.feedback != nil {
		return Feedback{}, ErrAlreadyAnswered
	}

	question := s.questions[s.current]
	if option < 0 || option >= len(question.Options) {
		return Feedback{}, ErrInvalidOption
	}

	correct := option == question.CorrectIndex
	s.answers[question.ID] = Answer{Selected: option, Correct: correct}

	feedback := Feedback{Correct: correct, Message: CorrectMessage}
	if correct {
		s.score++
	} else {
		feedback.Message = IncorrectMessage
		if question.Explanation != "" {
			feedback.Message += " " + question.Explanation
		}
	}
	s.feedback = &feedback
	return feedback, nil
}

// Next moves past an answered question. After the last one the quiz
// completes, tracks quiz_complete and reports done.
func (s *Session) Next() (done bool, err error) {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return false, ErrNotActive
	}
	if s.feedback == nil {
		s.mu.Unlock()
		return false, ErrNotAnswered
	}

	s.feedback = nil
	if s.current < len(s.questions)-1 {
		s.current++
		s.mu.Unlock()
		return false, nil
	}

	s.status = StatusCompleted
	result := s.result()
	s.mu.Unlock()

	s.track(events.NewQuizComplete(result.Score, result.Total, result.Accuracy))
	return true, nil
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Current returns the question being asked and its index.
func (s *Session) Current() (Question, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive || len(s.questions) == 0 {
		return Question{}, 0, false
	}
	return s.questions[s.current], s.current, true
}

func (s *Session) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.questions)
}

func (s *Session) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result()
}

// result expects mu to be held.
func (s *Session) result() Result {
	total := len(s.questions)
	accuracy := 0
	if total > 0 {
		accuracy = int(math.Round(float64(s.score) / float64(total) * 100))
	}
	return Result{Score: s.score, Total: total, Accuracy: accuracy}
}

func (s *Session) track(event events.Event) {
	if err := events.Emit(s.tracker, event); err != nil {
		s.logger.Warn("failed to track event", "event", string(event.Name()), "error", err)
	}
}
