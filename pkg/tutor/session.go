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

// Package tutor implements the tutoring session state machine: a session is
// initialized with a generated multi-step explanation, steps are presented one
// at a time, and per-step feedback drives clarification or advancement.
package tutor

import (
	"time"

	"github.com/google/uuid"
)

// Phase is the session lifecycle state.
type Phase string

const (
	PhaseInitializing     Phase = "initializing"
	PhasePresenting       Phase = "presenting"
	PhaseAwaitingFeedback Phase = "awaiting_feedback"
	PhaseFinished         Phase = "finished"
)

// Subject is the problem domain of a question.
type Subject string

const (
	SubjectPhysics     Subject = "Physics"
	SubjectChemistry   Subject = "Chemistry"
	SubjectMathematics Subject = "Mathematics"
	SubjectUnspecified Subject = "unspecified"
)

// ParseSubject maps freeform input to a known subject, defaulting to
// SubjectUnspecified.
func ParseSubject(s string) Subject {
	switch Subject(s) {
	case SubjectPhysics, SubjectChemistry, SubjectMathematics:
		return Subject(s)
	default:
		return SubjectUnspecified
	}
}

// Step is one titled unit of an explanation. Content may embed LaTeX math
// markup.
type Step struct {
	Title   string `json:"title" jsonschema:"required,description=Brief title of the step"`
	Content string `json:"content" jsonschema:"required,description=Detailed explanation with LaTeX math if applicable"`
}

// Session is one question-to-completion tutoring interaction.
//
// Steps is populated once during initialization and never mutated afterwards;
// clarifications overlay ActiveText without touching the stored step. Cursor
// is monotonically non-decreasing and always within [0, len(Steps)]; the
// session is Finished exactly when Cursor == len(Steps).
type Session struct {
	ID       string  `json:"id"`
	Question string  `json:"question"`
	Subject  Subject `json:"subject"`
	Context  string  `json:"context,omitempty"`

	Steps  []Step `json:"steps"`
	Cursor int    `json:"cursor"`
	Phase  Phase  `json:"phase"`

	// ActiveText is what the caller should currently show: a step's content,
	// a clarification, or the completion message.
	ActiveText string `json:"active_text"`

	// PendingFeedback holds caller-submitted feedback between submission and
	// consumption by ProcessFeedback.
	PendingFeedback string `json:"pending_feedback,omitempty"`

	// Clarifications counts clarify/reexplain decisions against the current
	// step; it resets whenever the cursor advances.
	Clarifications int `json:"clarifications"`

	// Fallback is true when initialization substituted the fixed fallback
	// explanation after an LLM failure.
	Fallback bool `json:"fallback"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a session in the initializing phase.
func NewSession(question string, subject Subject, context string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		Question:  question,
		Subject:   subject,
		Context:   context,
		Phase:     PhaseInitializing,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CurrentStep returns the step under the cursor, or nil when the session is
// finished or has no steps.
func (s *Session) CurrentStep() *Step {
	if s.Cursor < 0 || s.Cursor >= len(s.Steps) {
		return nil
	}
	return &s.Steps[s.Cursor]
}

// Finished reports whether the session has presented every step.
func (s *Session) Finished() bool {
	return s.Phase == PhaseFinished
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now().UTC()
}
