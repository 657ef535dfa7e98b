package groq

import (
	"context"
	"fmt"

	"github.com/koscakluka/cognitive-os/core/ingest"
)

const analysisInstructions = `You catalogue study material. Given the text of a document, name it, judge how demanding it is and split it into chapters.`

type documentAnalysis struct {
	Title         string   `json:"title" jsonschema:"required"`
	Complexity    string   `json:"complexity" jsonschema:"required,enum=beginner,enum=intermediate,enum=advanced"`
	Chapters      []string `json:"chapters" jsonschema:"required"`
	EstimatedTime string   `json:"estimated_time" jsonschema:"required,description=Listening time such as 15 min"`
}

// Analyzer summarizes an uploaded document for the library.
type Analyzer struct {
	client *Client
}

func NewAnalyzer(client *Client) *Analyzer {
	return &Analyzer{client: client}
}

func (a *Analyzer) Analyze(ctx context.Context, fileName, text string) (ingest.Analysis, error) {
	prompt := fmt.Sprintf("FILE NAME: %s\n\nTEXT:\n%s", fileName, truncate(text, MaxSourceChars))

	analysis, err := PromptJSONSchema[documentAnalysis](ctx, a.client, prompt, analysisInstructions)
	if err != nil {
		return ingest.Analysis{}, fmt.Errorf("failed to analyze document: %w", err)
	}

	return ingest.Analysis{
		Title:         analysis.Title,
		Complexity:    analysis.Complexity,
		Chapters:      analysis.Chapters,
		EstimatedTime: analysis.EstimatedTime,
	}, nil
}
