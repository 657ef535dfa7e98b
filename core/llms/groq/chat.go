package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type requestBody struct {
	Model          string              `json:"model"`
	Messages       []message           `json:"messages"`
	Temperature    *float64            `json:"temperature,omitempty"`
	ResponseFormat *ChatResponseFormat `json:"response_format,omitempty"`
}

type responseBody struct {
	Choices []struct {
		Message struct {
			Role         string  `json:"role,omitempty"`
			Content      string  `json:"content,omitempty"`
			FinishReason *string `json:"finish_reason,omitempty"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int     `json:"prompt_tokens"`
		CompletionTokens int     `json:"completion_tokens"`
		TotalTokens      int     `json:"total_tokens"`
		TotalTime        float64 `json:"total_time"`
	} `json:"usage"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// APIError is a non-OK answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("groq: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("groq: HTTP %d: %s", e.StatusCode, e.Message)
}

var errEmptyCompletion = errors.New("groq: completion has no choices")

// complete sends one chat completion request and returns the content of the
// first choice.
func (c *Client) complete(ctx context.Context, reqBody requestBody) (string, error) {
	span := trace.SpanFromContext(ctx)
	fail := func(err error) (string, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	reqBody.Model = c.model
	span.SetAttributes(attribute.String("request.model", c.model))

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fail(fmt.Errorf("error marshalling JSON: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return fail(fmt.Errorf("error creating HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	span.SetAttributes(attribute.String("request.url", req.URL.String()))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(fmt.Errorf("error sending request: %w", err))
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(fmt.Errorf("error reading response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		// TODO: Retry on 429 and 503 honouring retry-after
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody apiErrorBody
		if json.Unmarshal(respBodyBytes, &errBody) == nil {
			apiErr.Message = errBody.Error.Message
		}
		span.SetAttributes(attribute.String("response.error", string(respBodyBytes)))
		return fail(apiErr)
	}

	var response responseBody
	if err := json.Unmarshal(respBodyBytes, &response); err != nil {
		return fail(fmt.Errorf("error unmarshalling response: %w", err))
	}
	if len(response.Choices) == 0 {
		return fail(errEmptyCompletion)
	}
	if response.Usage != nil {
		span.SetAttributes(
			attribute.Int("response.usage.prompt_tokens", response.Usage.PromptTokens),
			attribute.Int("response.usage.completion_tokens", response.Usage.CompletionTokens),
		)
	}

	return response.Choices[0].Message.Content, nil
}
