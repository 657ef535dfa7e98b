package groq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
)

// MaxSourceChars bounds how much of the source text goes into a prompt.
const MaxSourceChars = 30000

const scriptInstructions = `You are an expert teacher and a charismatic podcast host.
Write a short, engaging educational podcast script (at most 500 words) based on the text you are given.

Guidelines:
1. Open with a hook.
2. Explain the key concepts simply, using analogies.
3. Keep a conversational, direct and inspiring tone.
4. End with a practical or reflective conclusion.
5. Do not use speaker labels. Write it as one flowing monologue.
6. The script will be read by a synthetic voice, so avoid special characters.`

var ErrEmptySource = errors.New("no text provided")

// ScriptWriter turns source material into a narration script.
type ScriptWriter struct {
	client *Client
}

func NewScriptWriter(client *Client) *ScriptWriter {
	return &ScriptWriter{client: client}
}

func (w *ScriptWriter) GenerateScript(ctx context.Context, title, text string) (string, error) {
	ctx, span := tracer.Start(ctx, "generate script")
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return "", ErrEmptySource
	}
	if title == "" {
		title = "General topic"
	}

	source := truncate(text, MaxSourceChars)
	span.SetAttributes(
		attribute.Int("script.source_chars", utf8.RuneCountInString(source)),
		attribute.Bool("script.truncated", len(source) < len(text)),
	)

	prompt := fmt.Sprintf("MODULE TITLE: %s\n\nSOURCE TEXT:\n%s", title, source)
	script, err := w.client.complete(ctx, requestBody{Messages: toMessages(scriptInstructions, prompt)})
	if err != nil {
		return "", err
	}

	script = strings.TrimSpace(script)
	if script == "" {
		return "", errEmptyCompletion
	}
	logger.Debug("script generated", "title", title, "length", len(script))
	return script, nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := 0
	for i := range s {
		if runes == n {
			return s[:i]
		}
		runes++
	}
	return s
}
