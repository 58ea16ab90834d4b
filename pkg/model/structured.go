// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// Schema creates a JSON schema from a Go type using struct tags.
//
// Supported tags:
//   - json:"name" - Field name
//   - json:",omitempty" - Optional field
//   - jsonschema:"required" - Explicitly mark as required
//   - jsonschema:"description=..." - Field description
//   - jsonschema:"enum=val1,enum=val2" - Allowed values
//
// Example:
//
//	type Decision struct {
//	    Action        string `json:"action" jsonschema:"required,enum=clarify_current,enum=reexplain_current,enum=proceed_to_next"`
//	    Clarification string `json:"clarification,omitempty" jsonschema:"description=Additional explanation if needed"`
//	}
func Schema[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		// Use jsonschema tags to determine required fields
		RequiredFromJSONSchemaTags: true,

		// Inline everything rather than emitting $ref definitions
		ExpandedStruct: true,

		// Don't add $schema and $id
		DoNotReference: true,
	}

	schema := reflector.Reflect(new(T))

	schemaMap, err := schemaToMap(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to convert schema to map: %w", err)
	}

	return schemaMap, nil
}

// schemaToMap converts a jsonschema.Schema to map[string]any.
func schemaToMap(schema *jsonschema.Schema) (map[string]any, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	delete(result, "$schema")
	delete(result, "$id")

	return result, nil
}

// GenerateStructured performs a schema-constrained generation and decodes the
// response into T.
//
// The schema is derived from T, attached to a clone of req.Config (the caller's
// request is not mutated), and sent to the provider. A transport or API error
// is returned wrapped with ErrCallFailed; a response that cannot be decoded
// into T is returned wrapped with ErrSchemaViolation.
func GenerateStructured[T any](ctx context.Context, llm LLM, req *Request) (*T, error) {
	schema, err := Schema[T]()
	if err != nil {
		return nil, fmt.Errorf("failed to derive response schema: %w", err)
	}

	cfg := req.Config.Clone()
	if cfg == nil {
		cfg = &GenerateConfig{}
	}
	cfg.ResponseSchema = schema
	if cfg.ResponseSchemaName == "" {
		cfg.ResponseSchemaName = "response"
	}

	constrained := &Request{
		System:   req.System,
		Messages: req.Messages,
		Config:   cfg,
	}

	resp, err := llm.Generate(ctx, constrained)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCallFailed, err)
	}

	text := stripCodeFence(resp.Text)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty response", ErrSchemaViolation)
	}

	var value T
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}

	return &value, nil
}

// stripCodeFence removes a surrounding markdown code fence, which some models
// emit even when a JSON schema was requested.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
