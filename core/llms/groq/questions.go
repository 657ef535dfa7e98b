package groq

import (
	"context"
	"fmt"

	"github.com/koscakluka/cognitive-os/core/quiz"
)

const questionInstructions = `You write multiple choice quizzes that check whether a student understood a lesson.
Each question has exactly four options, one of them correct, and a one sentence explanation of the right answer.`

// DefaultQuestionCount is how many questions a quiz asks for.
const DefaultQuestionCount = 5

type generatedQuiz struct {
	Questions []generatedQuestion `json:"questions" jsonschema:"required"`
}

type generatedQuestion struct {
	Question     string   `json:"question" jsonschema:"required"`
	Options      []string `json:"options" jsonschema:"required,minItems=2"`
	CorrectIndex int      `json:"correct_index" jsonschema:"required,minimum=0"`
	Explanation  string   `json:"explanation" jsonschema:"required"`
}

// QuestionWriter generates quiz questions about a lesson script.
type QuestionWriter struct {
	client *Client
	count  int
}

func NewQuestionWriter(client *Client, count int) *QuestionWriter {
	if count <= 0 {
		count = DefaultQuestionCount
	}
	return &QuestionWriter{client: client, count: count}
}

func (w *QuestionWriter) GenerateQuestions(ctx context.Context, script string) ([]quiz.Question, error) {
	prompt := fmt.Sprintf("Write %d questions about this lesson:\n\n%s", w.count, truncate(script, MaxSourceChars))

	generated, err := PromptJSONSchema[generatedQuiz](ctx, w.client, prompt, questionInstructions)
	if err != nil {
		return nil, fmt.Errorf("failed to generate quiz: %w", err)
	}

	questions := make([]quiz.Question, 0, len(generated.Questions))
	for _, q := range generated.Questions {
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			logger.Warn("dropping question with out of range answer", "question", q.Question, "correct_index", q.CorrectIndex)
			continue
		}
		questions = append(questions, quiz.Question{
			ID:           len(questions) + 1,
			Prompt:       q.Question,
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
			Explanation:  q.Explanation,
		})
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("failed to generate quiz: no usable questions")
	}
	return questions, nil
}
