package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decision struct {
	Action        string `json:"action" jsonschema:"required,enum=clarify_current,enum=reexplain_current,enum=proceed_to_next"`
	Clarification string `json:"clarification,omitempty"`
}

// mockLLM returns a canned response or error and records the last request.
type mockLLM struct {
	response *Response
	err      error
	lastReq  *Request
}

func (m *mockLLM) Name() string       { return "mock" }
func (m *mockLLM) Provider() Provider { return ProviderUnknown }
func (m *mockLLM) Close() error       { return nil }

func (m *mockLLM) Generate(_ context.Context, req *Request) (*Response, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func TestSchema(t *testing.T) {
	schema, err := Schema[decision]()
	require.NoError(t, err)

	assert.Equal(t, "object", schema["type"])
	assert.NotContains(t, schema, "$schema")
	assert.NotContains(t, schema, "$id")

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "action")
	assert.Contains(t, props, "clarification")

	action, ok := props["action"].(map[string]any)
	require.True(t, ok)
	enum, ok := action["enum"].([]any)
	require.True(t, ok)
	assert.Len(t, enum, 3)

	required, ok := schema["required"].([]any)
	require.True(t, ok)
	assert.Contains(t, required, "action")
	assert.NotContains(t, required, "clarification")
}

func TestGenerateStructured(t *testing.T) {
	llm := &mockLLM{response: &Response{Text: `{"action":"proceed_to_next"}`}}

	result, err := GenerateStructured[decision](context.Background(), llm, &Request{
		Messages: []Message{{Role: RoleUser, Content: "understood"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "proceed_to_next", result.Action)

	// The schema must have been attached to the outgoing request.
	require.NotNil(t, llm.lastReq.Config)
	assert.NotNil(t, llm.lastReq.Config.ResponseSchema)
	assert.Equal(t, "response", llm.lastReq.Config.ResponseSchemaName)
}

func TestGenerateStructuredCodeFence(t *testing.T) {
	llm := &mockLLM{response: &Response{
		Text: "```json\n{\"action\":\"clarify_current\",\"clarification\":\"more detail\"}\n```",
	}}

	result, err := GenerateStructured[decision](context.Background(), llm, &Request{})
	require.NoError(t, err)
	assert.Equal(t, "clarify_current", result.Action)
	assert.Equal(t, "more detail", result.Clarification)
}

func TestGenerateStructuredCallFailed(t *testing.T) {
	llm := &mockLLM{err: errors.New("connection refused")}

	_, err := GenerateStructured[decision](context.Background(), llm, &Request{})
	require.Error(t, err)
	assert.True(t, IsCallFailed(err))
	assert.False(t, IsSchemaViolation(err))
}

func TestGenerateStructuredSchemaViolation(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"malformed json", `{"action": proceed`},
		{"empty response", ""},
		{"whitespace only", "   \n  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &mockLLM{response: &Response{Text: tt.text}}

			_, err := GenerateStructured[decision](context.Background(), llm, &Request{})
			require.Error(t, err)
			assert.True(t, IsSchemaViolation(err))
			assert.False(t, IsCallFailed(err))
		})
	}
}

func TestGenerateStructuredDoesNotMutateConfig(t *testing.T) {
	cfg := &GenerateConfig{}
	llm := &mockLLM{response: &Response{Text: `{"action":"proceed_to_next"}`}}

	_, err := GenerateStructured[decision](context.Background(), llm, &Request{Config: cfg})
	require.NoError(t, err)

	assert.Nil(t, cfg.ResponseSchema)
	assert.Empty(t, cfg.ResponseSchemaName)
}

func TestGenerateConfigClone(t *testing.T) {
	temp := 0.3
	cfg := &GenerateConfig{
		Temperature:    &temp,
		ResponseSchema: map[string]any{"type": "object", "properties": map[string]any{"a": map[string]any{}}},
	}

	clone := cfg.Clone()
	require.NotNil(t, clone)

	*clone.Temperature = 0.9
	clone.ResponseSchema["type"] = "array"

	assert.Equal(t, 0.3, *cfg.Temperature)
	assert.Equal(t, "object", cfg.ResponseSchema["type"])

	var nilCfg *GenerateConfig
	assert.Nil(t, nilCfg.Clone())
}
