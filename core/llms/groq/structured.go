package groq

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type ChatResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

type JSONSchema struct {
	// Name identifies the schema in the response.
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Schema      jsonschema.Schema `json:"schema"`
	// Strict makes the API enforce the schema on the generated content.
	Strict bool `json:"strict"`
}

// PromptJSONSchema asks for a response matching the JSON schema reflected
// from T and decodes it into a T.
func PromptJSONSchema[T any](ctx context.Context, c *Client, prompt, systemPrompt string) (*T, error) {
	ctx, span := tracer.Start(ctx, "prompt llm structured")
	defer span.End()

	// TODO: Implement a custom reflector that only satisfies the subset of
	// jsonschema used by groq
	reflector := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	outputType := reflect.TypeFor[T]()
	schema := reflector.ReflectFromType(outputType)

	schemaString, _ := schema.MarshalJSON()
	span.SetAttributes(attribute.String("request.schema", string(schemaString)))

	content, err := c.complete(ctx, requestBody{
		Messages: toMessages(systemPrompt, prompt),
		ResponseFormat: &ChatResponseFormat{
			Type: "json_schema",
			JSONSchema: &JSONSchema{
				Name:   outputType.Name(),
				Schema: *schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	var output T
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &output); err != nil {
		err = fmt.Errorf("error unmarshalling response: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return &output, nil
}

// stripCodeFence unwraps content the model put inside a markdown code block.
func stripCodeFence(content string) string {
	split := strings.Split(content, "```")
	if len(split) < 3 {
		return content
	}
	inner := split[1]
	inner = strings.TrimPrefix(inner, "json")
	return strings.TrimSpace(inner)
}
