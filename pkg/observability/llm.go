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

package observability

import (
	"context"
	"time"

	"github.com/kadirpekel/stepwise/pkg/model"
)

// instrumentedLLM wraps a model.LLM and records call metrics.
type instrumentedLLM struct {
	inner   model.LLM
	metrics *Metrics
}

// InstrumentLLM wraps an LLM so every Generate call is recorded. A nil
// metrics value returns the LLM unchanged.
func InstrumentLLM(llm model.LLM, metrics *Metrics) model.LLM {
	if metrics == nil {
		return llm
	}
	return &instrumentedLLM{inner: llm, metrics: metrics}
}

func (l *instrumentedLLM) Name() string             { return l.inner.Name() }
func (l *instrumentedLLM) Provider() model.Provider { return l.inner.Provider() }
func (l *instrumentedLLM) Close() error             { return l.inner.Close() }

func (l *instrumentedLLM) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)

	inputTokens, outputTokens := 0, 0
	if resp != nil && resp.Usage != nil {
		inputTokens = resp.Usage.PromptTokens
		outputTokens = resp.Usage.CompletionTokens
	}
	l.metrics.RecordLLMCall(ctx, l.inner.Name(), time.Since(start), inputTokens, outputTokens, err)

	return resp, err
}
