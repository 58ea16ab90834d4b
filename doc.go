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

// Package stepwise provides an LLM-driven step-by-step tutoring engine.
//
// Stepwise takes a student's question, asks an LLM to break it into a short
// sequence of explanation steps, then walks the student through those steps
// one at a time. After each step the student's feedback is classified by the
// LLM into one of three actions: clarify the current step, re-explain it, or
// proceed to the next one. LLM failures never stall a session: step
// generation falls back to a fixed explanation and feedback classification
// defaults to proceeding.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/kadirpekel/stepwise/cmd/stepwise@latest
//
// Ask a question interactively:
//
//	export OPENAI_API_KEY=sk-...
//	stepwise ask "A ball is thrown upward at 20 m/s. How high does it go?" --subject Physics
//
// Or run the HTTP API:
//
//	stepwise serve --config stepwise.yaml
//
// # Using as a Go Library
//
// The session controller is usable without the server:
//
//	import (
//	    "github.com/kadirpekel/stepwise/pkg/model/openai"
//	    "github.com/kadirpekel/stepwise/pkg/tutor"
//	)
//
//	llm, err := openai.New(openai.Config{APIKey: os.Getenv("OPENAI_API_KEY")})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	controller := tutor.NewController(llm)
//
//	session := controller.Initialize(ctx, question, tutor.SubjectPhysics, "")
//	for {
//	    controller.PresentCurrentStep(session)
//	    if session.Finished() {
//	        break
//	    }
//	    controller.ProcessFeedback(ctx, session, readFeedback())
//	}
//
// # Key Packages
//
//   - pkg/tutor: the session state machine and feedback controller
//   - pkg/model: provider-agnostic LLM interface and structured output
//   - pkg/model/openai, pkg/model/anthropic: provider clients
//   - pkg/server: HTTP API over chi
//   - pkg/store: session persistence (memory, SQLite, PostgreSQL, MySQL)
//   - pkg/knowledge: optional retrieval store for grounding context
//   - pkg/narration: LaTeX-to-speech cleanup for voice frontends
//   - pkg/config: YAML configuration with environment expansion
package stepwise
