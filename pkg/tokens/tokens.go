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

// Package tokens provides model-aware token counting, used to keep prompt
// context within a configured budget before an LLM call.
package tokens

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/kadirpekel/stepwise/pkg/model"
)

// Counter counts tokens for a specific model's encoding.
type Counter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// NewCounter creates a counter for the given model. Unknown models fall back
// to the cl100k_base encoding, which also approximates Anthropic models well
// enough for budgeting purposes.
func NewCounter(modelName string) (*Counter, error) {
	cacheMu.RLock()
	cached, ok := encodingCache[modelName]
	cacheMu.RUnlock()

	if ok {
		return &Counter{encoding: cached, model: modelName}, nil
	}

	encoding, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[modelName] = encoding
	cacheMu.Unlock()

	return &Counter{encoding: encoding, model: modelName}, nil
}

// Model returns the model name this counter is configured for.
func (c *Counter) Model() string {
	return c.model
}

// Count returns the token count for text.
func (c *Counter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

// CountMessages counts tokens in a message list, including the per-message
// framing overhead used by chat models.
func (c *Counter) CountMessages(messages []model.Message) int {
	const tokensPerMessage = 3

	total := 0
	for _, msg := range messages {
		total += tokensPerMessage
		total += len(c.encoding.Encode(string(msg.Role), nil, nil))
		total += len(c.encoding.Encode(msg.Content, nil, nil))
	}

	// Reply priming.
	total += 3

	return total
}

// Truncate returns text cut down to at most maxTokens tokens. Text already
// within budget is returned unchanged.
func (c *Counter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}

	encoded := c.encoding.Encode(text, nil, nil)
	if len(encoded) <= maxTokens {
		return text
	}

	return c.encoding.Decode(encoded[:maxTokens])
}

// Estimate provides a rough token estimate without an encoding, at about
// four characters per token.
func Estimate(text string) int {
	return len(text) / 4
}
