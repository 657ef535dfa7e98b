package groq

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

// fakeAPI answers every completion with content and records the last
// request it saw.
type fakeAPI struct {
	content string
	status  int
	last    requestBody
	auth    string
}

func (f *fakeAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&f.last); err != nil {
			t.Errorf("decode request: %v", err)
		}

		if f.status != 0 && f.status != http.StatusOK {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(`{"error":{"message":"model overloaded","type":"server_error"}}`))
			return
		}

		resp := map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"role": "assistant", "content": f.content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestGenerateScript(t *testing.T) {
	api := &fakeAPI{content: "  Imagine your mind is a library.  "}
	server := api.server(t)

	writer := NewScriptWriter(NewClient("key", WithURL(server.URL), WithModel("test-model")))
	script, err := writer.GenerateScript(context.Background(), "Memory", "Neurons that fire together wire together.")
	if err != nil {
		t.Fatalf("generate script: %v", err)
	}

	if script != "Imagine your mind is a library." {
		t.Fatalf("expected trimmed script, got %q", script)
	}
	if api.auth != "Bearer key" {
		t.Fatalf("expected bearer auth, got %q", api.auth)
	}
	if api.last.Model != "test-model" {
		t.Fatalf("expected model test-model, got %q", api.last.Model)
	}
	if len(api.last.Messages) != 2 || api.last.Messages[0].Role != messageRoleSystem {
		t.Fatalf("expected system and user messages, got %+v", api.last.Messages)
	}
	if !strings.Contains(api.last.Messages[1].Content, "MODULE TITLE: Memory") {
		t.Fatalf("expected title in prompt, got %q", api.last.Messages[1].Content)
	}
}

func TestGenerateScriptTruncatesSource(t *testing.T) {
	api := &fakeAPI{content: "ok"}
	server := api.server(t)

	long := strings.Repeat("é", MaxSourceChars+500)
	writer := NewScriptWriter(NewClient("key", WithURL(server.URL)))
	if _, err := writer.GenerateScript(context.Background(), "Long", long); err != nil {
		t.Fatalf("generate script: %v", err)
	}

	prompt := api.last.Messages[1].Content
	if got := strings.Count(prompt, "é"); got != MaxSourceChars {
		t.Fatalf("expected %d source characters in the prompt, got %d", MaxSourceChars, got)
	}
	if !utf8.ValidString(prompt) {
		t.Fatalf("expected truncation to keep valid UTF-8")
	}
}

func TestGenerateScriptRejectsEmptyText(t *testing.T) {
	writer := NewScriptWriter(NewClient("key"))
	if _, err := writer.GenerateScript(context.Background(), "Empty", "   "); !errors.Is(err, ErrEmptySource) {
		t.Fatalf("expected ErrEmptySource, got %v", err)
	}
}

func TestAPIErrorCarriesMessage(t *testing.T) {
	api := &fakeAPI{status: http.StatusServiceUnavailable}
	server := api.server(t)

	writer := NewScriptWriter(NewClient("key", WithURL(server.URL)))
	_, err := writer.GenerateScript(context.Background(), "Memory", "text")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable || apiErr.Message != "model overloaded" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestGenerateQuestions(t *testing.T) {
	api := &fakeAPI{content: "```json\n" + `{"questions":[
		{"question":"What grows with use?","options":["Synapses","Bones","Hair","Nails"],"correct_index":0,"explanation":"Use strengthens synapses."},
		{"question":"Broken?","options":["a","b"],"correct_index":7,"explanation":"bad index"}
	]}` + "\n```"}
	server := api.server(t)

	writer := NewQuestionWriter(NewClient("key", WithURL(server.URL)), 2)
	questions, err := writer.GenerateQuestions(context.Background(), "A lesson about synapses.")
	if err != nil {
		t.Fatalf("generate questions: %v", err)
	}

	if len(questions) != 1 {
		t.Fatalf("expected the out of range question to be dropped, got %d", len(questions))
	}
	if questions[0].ID != 1 || questions[0].Prompt != "What grows with use?" || questions[0].CorrectIndex != 0 {
		t.Fatalf("unexpected question %+v", questions[0])
	}

	format := api.last.ResponseFormat
	if format == nil || format.Type != "json_schema" || format.JSONSchema == nil || format.JSONSchema.Name != "generatedQuiz" {
		t.Fatalf("expected json schema response format, got %+v", format)
	}
}

func TestAnalyze(t *testing.T) {
	api := &fakeAPI{content: `{"title":"Neuroplasticity","complexity":"intermediate","chapters":["Intro","Key ideas"],"estimated_time":"15 min"}`}
	server := api.server(t)

	analysis, err := NewAnalyzer(NewClient("key", WithURL(server.URL))).Analyze(context.Background(), "neuro.pdf", "text")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if analysis.Title != "Neuroplasticity" || len(analysis.Chapters) != 2 {
		t.Fatalf("unexpected analysis %+v", analysis)
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		`{"a":1}`:                 `{"a":1}`,
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}\n```":     `{"a":1}`,
	}
	for in, want := range tests {
		if got := stripCodeFence(in); got != want {
			t.Fatalf("stripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}
