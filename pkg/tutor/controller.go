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

package tutor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/stepwise/pkg/model"
)

// Feedback decision actions.
const (
	ActionClarify   = "clarify_current"
	ActionReexplain = "reexplain_current"
	ActionProceed   = "proceed_to_next"
)

// Texts shown when a session has nothing left to present.
const (
	completionText = "We've completed all steps of the explanation. Do you have any questions?"
	noStepsText    = "No explanation steps available. Do you have any questions?"
)

const reexplainPrefix = "Let me explain this differently: "

const (
	minSteps = 3
	maxSteps = 6
)

// FeedbackDecision is the structured verdict on a student's feedback.
type FeedbackDecision struct {
	Action        string `json:"action" jsonschema:"required,enum=clarify_current,enum=proceed_to_next,enum=reexplain_current,description=The next action to take"`
	Clarification string `json:"clarification,omitempty" jsonschema:"description=Additional explanation if needed"`
}

type explanationPlan struct {
	Steps []Step `json:"steps" jsonschema:"required,description=List of 3-6 steps to solve the problem"`
}

// Observer receives controller lifecycle events. All methods are called
// synchronously from the driving goroutine.
type Observer interface {
	SessionInitialized(session *Session, usedFallback bool)
	StepPresented(session *Session)
	FeedbackProcessed(session *Session, action string, failedOpen bool)
}

type nopObserver struct{}

func (nopObserver) SessionInitialized(*Session, bool)        {}
func (nopObserver) StepPresented(*Session)                   {}
func (nopObserver) FeedbackProcessed(*Session, string, bool) {}

// Controller drives sessions through initialization, presentation, and
// feedback processing. The LLM is its only external dependency; every LLM
// failure is absorbed locally so no transition ever returns an error.
//
// A Controller is safe for concurrent use across sessions; a single Session
// must only be driven by one goroutine at a time.
type Controller struct {
	llm               model.LLM
	logger            *slog.Logger
	observer          Observer
	genConfig         *model.GenerateConfig
	maxClarifications int
	trimContext       func(string) string
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers a lifecycle observer.
func WithObserver(obs Observer) Option {
	return func(c *Controller) {
		if obs != nil {
			c.observer = obs
		}
	}
}

// WithGenerateConfig sets base generation parameters for both LLM call sites.
func WithGenerateConfig(cfg *model.GenerateConfig) Option {
	return func(c *Controller) {
		c.genConfig = cfg
	}
}

// WithMaxClarifications caps clarify/reexplain loops per step; once the cap
// is reached further feedback advances the session regardless of the model's
// decision. Zero means unlimited.
func WithMaxClarifications(n int) Option {
	return func(c *Controller) {
		c.maxClarifications = n
	}
}

// WithContextTrimmer sets a function applied to caller-supplied context
// before prompting, typically a token-budget truncation.
func WithContextTrimmer(fn func(string) string) Option {
	return func(c *Controller) {
		c.trimContext = fn
	}
}

// NewController creates a session controller backed by the given LLM.
func NewController(llm model.LLM, opts ...Option) *Controller {
	c := &Controller{
		llm:      llm,
		logger:   slog.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize creates a session and populates its explanation steps.
//
// It never returns an error: when the LLM call fails, or its response carries
// no steps, a fixed three-step fallback explanation is substituted so the
// session can proceed in degraded mode.
func (c *Controller) Initialize(ctx context.Context, question string, subject Subject, contextText string) *Session {
	if c.trimContext != nil {
		contextText = c.trimContext(contextText)
	}

	session := NewSession(question, subject, contextText)

	req := &model.Request{
		System: explanationSystemPrompt,
		Messages: []model.Message{
			{Role: model.RoleUser, Content: explanationUserPrompt(question, subject, contextText)},
		},
		Config: c.generateConfig("explanation_steps"),
	}

	plan, err := model.GenerateStructured[explanationPlan](ctx, c.llm, req)
	switch {
	case err != nil:
		c.logger.Warn("explanation generation failed, using fallback",
			"session_id", session.ID,
			"error", err)
		session.Steps = fallbackSteps(question)
		session.Fallback = true
	case len(plan.Steps) == 0:
		c.logger.Warn("explanation generation returned no steps, using fallback",
			"session_id", session.ID)
		session.Steps = fallbackSteps(question)
		session.Fallback = true
	default:
		if len(plan.Steps) < minSteps || len(plan.Steps) > maxSteps {
			c.logger.Warn("explanation step count out of expected range",
				"session_id", session.ID,
				"steps", len(plan.Steps))
		}
		session.Steps = plan.Steps
	}

	session.Cursor = 0
	session.Phase = PhasePresenting
	session.touch()

	c.logger.Info("session initialized",
		"session_id", session.ID,
		"subject", session.Subject,
		"steps", len(session.Steps),
		"fallback", session.Fallback)
	c.observer.SessionInitialized(session, session.Fallback)

	return session
}

// PresentCurrentStep surfaces the step under the cursor as the active text
// and moves the session to the awaiting-feedback phase. When the cursor has
// passed the last step (or there are no steps) the session finishes instead.
//
// It is a pure function of the session's steps and cursor: it performs no
// I/O, and calling it repeatedly without an intervening ProcessFeedback
// yields the same active text.
func (c *Controller) PresentCurrentStep(session *Session) {
	if len(session.Steps) == 0 {
		session.ActiveText = noStepsText
		session.Phase = PhaseFinished
		session.touch()
		return
	}

	if session.Cursor >= len(session.Steps) {
		session.ActiveText = completionText
		session.Phase = PhaseFinished
		session.touch()
		return
	}

	session.ActiveText = session.Steps[session.Cursor].Content
	session.Phase = PhaseAwaitingFeedback
	session.touch()
	c.observer.StepPresented(session)
}

// ProcessFeedback consumes the student's feedback on the current step and
// applies the resulting decision:
//
//   - clarify_current / reexplain_current: the clarification becomes the
//     active text and the cursor stays put, so the caller may submit feedback
//     against the same step again.
//   - proceed_to_next: the cursor advances and pending feedback is cleared.
//
// An LLM failure of either kind defaults to proceed_to_next so the session
// keeps moving; errors are never surfaced to the caller.
func (c *Controller) ProcessFeedback(ctx context.Context, session *Session, feedbackText string) {
	if session.Phase == PhaseFinished {
		return
	}

	step := session.CurrentStep()
	if step == nil {
		c.finish(session)
		return
	}

	if feedbackText == "" {
		feedbackText = "No feedback provided"
	}
	session.PendingFeedback = feedbackText

	decision, failedOpen := c.decide(ctx, session, step.Content, feedbackText)

	if c.maxClarifications > 0 &&
		session.Clarifications >= c.maxClarifications &&
		decision.Action != ActionProceed {
		c.logger.Info("clarification cap reached, advancing",
			"session_id", session.ID,
			"cursor", session.Cursor,
			"cap", c.maxClarifications)
		decision = &FeedbackDecision{Action: ActionProceed}
	}

	switch decision.Action {
	case ActionClarify:
		session.ActiveText = decision.Clarification
		session.Clarifications++
		session.Phase = PhaseAwaitingFeedback
	case ActionReexplain:
		session.ActiveText = reexplainPrefix + decision.Clarification
		session.Clarifications++
		session.Phase = PhaseAwaitingFeedback
	default:
		session.Cursor++
		session.PendingFeedback = ""
		session.Clarifications = 0
		if session.Cursor >= len(session.Steps) {
			c.finish(session)
		} else {
			session.Phase = PhasePresenting
		}
	}

	session.touch()
	c.observer.FeedbackProcessed(session, decision.Action, failedOpen)
}

// decide runs the structured feedback call. The second return value reports
// whether the fail-open default was applied.
func (c *Controller) decide(ctx context.Context, session *Session, stepContent, feedbackText string) (*FeedbackDecision, bool) {
	req := &model.Request{
		System: feedbackSystemPrompt,
		Messages: []model.Message{
			{Role: model.RoleUser, Content: feedbackUserPrompt(stepContent, feedbackText)},
		},
		Config: c.generateConfig("feedback_decision"),
	}

	decision, err := model.GenerateStructured[FeedbackDecision](ctx, c.llm, req)
	if err != nil {
		c.logger.Warn("feedback decision failed, defaulting to proceed",
			"session_id", session.ID,
			"cursor", session.Cursor,
			"error", err)
		return &FeedbackDecision{Action: ActionProceed}, true
	}

	switch decision.Action {
	case ActionClarify, ActionReexplain, ActionProceed:
		return decision, false
	default:
		c.logger.Warn("unknown feedback action, defaulting to proceed",
			"session_id", session.ID,
			"action", decision.Action)
		return &FeedbackDecision{Action: ActionProceed}, true
	}
}

func (c *Controller) finish(session *Session) {
	session.ActiveText = completionText
	if len(session.Steps) == 0 {
		session.ActiveText = noStepsText
	}
	session.Phase = PhaseFinished
	session.touch()
}

func (c *Controller) generateConfig(schemaName string) *model.GenerateConfig {
	cfg := c.genConfig.Clone()
	if cfg == nil {
		cfg = &model.GenerateConfig{}
	}
	cfg.ResponseSchemaName = schemaName
	return cfg
}

// fallbackSteps is the fixed degraded-mode explanation used when step
// generation fails.
func fallbackSteps(question string) []Step {
	return []Step{
		{
			Title:   "Step 1: Introduction",
			Content: fmt.Sprintf("For the question '%s', let's break it down. This step introduces the concept.", question),
		},
		{
			Title:   "Step 2: Basic Explanation",
			Content: "This step provides a basic explanation to proceed.",
		},
		{
			Title:   "Step 3: Summary",
			Content: "This summarizes the key points.",
		},
	}
}
