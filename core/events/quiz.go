package events

const (
	NameQuizStart    Name = "quiz_start"
	NameQuizComplete Name = "quiz_complete"
)

type QuizStart struct{ Base }

func NewQuizStart(questionCount int) QuizStart {
	return QuizStart{Base: NewBase(NameQuizStart, Payload{"question_count": questionCount})}
}

type QuizComplete struct{ Base }

// NewQuizComplete records the final score. accuracy is a rounded percentage.
func NewQuizComplete(score, total, accuracy int) QuizComplete {
	return QuizComplete{Base: NewBase(NameQuizComplete, Payload{"score": score, "total": total, "accuracy": accuracy})}
}
