package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/stepwise/pkg/model"
	"github.com/kadirpekel/stepwise/pkg/tutor"
)

func TestInitMetricsDisabled(t *testing.T) {
	m, err := InitMetrics(MetricsConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, m)

	// Recording on a disabled Metrics must not panic.
	session := tutor.NewSession("q", tutor.SubjectPhysics, "")
	m.SessionInitialized(session, true)
	m.StepPresented(session)
	m.FeedbackProcessed(session, tutor.ActionProceed, false)
	m.RecordLLMCall(context.Background(), "gpt-4o", time.Second, 10, 20, nil)
}

func TestInitMetricsEnabled(t *testing.T) {
	m, err := InitMetrics(MetricsConfig{Enabled: true})
	require.NoError(t, err)
	require.NotNil(t, m.Handler())

	session := tutor.NewSession("q", tutor.SubjectChemistry, "")
	m.SessionInitialized(session, false)
	m.StepPresented(session)
	m.FeedbackProcessed(session, tutor.ActionClarify, false)
	m.FeedbackProcessed(session, tutor.ActionProceed, true)
	m.RecordLLMCall(context.Background(), "gpt-4o", 200*time.Millisecond, 100, 50, nil)
	m.RecordLLMCall(context.Background(), "gpt-4o", time.Millisecond, 0, 0, errors.New("timeout"))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.StepPresented(nil)
	m.FeedbackProcessed(nil, tutor.ActionProceed, false)
	m.RecordLLMCall(context.Background(), "m", 0, 0, 0, nil)
}

type fakeLLM struct {
	resp *model.Response
	err  error
}

func (f *fakeLLM) Name() string             { return "fake" }
func (f *fakeLLM) Provider() model.Provider { return model.ProviderUnknown }
func (f *fakeLLM) Close() error             { return nil }
func (f *fakeLLM) Generate(context.Context, *model.Request) (*model.Response, error) {
	return f.resp, f.err
}

func TestInstrumentLLM(t *testing.T) {
	inner := &fakeLLM{resp: &model.Response{
		Text:  "ok",
		Usage: &model.Usage{PromptTokens: 5, CompletionTokens: 7},
	}}

	m, err := InitMetrics(MetricsConfig{Enabled: true})
	require.NoError(t, err)

	wrapped := InstrumentLLM(inner, m)
	assert.Equal(t, "fake", wrapped.Name())

	resp, err := wrapped.Generate(context.Background(), &model.Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)

	// Nil metrics leaves the LLM unwrapped.
	assert.Equal(t, model.LLM(inner), InstrumentLLM(inner, nil))
}
