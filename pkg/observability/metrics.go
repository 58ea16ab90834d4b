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

// Package observability exposes session and LLM metrics through an
// OpenTelemetry meter with a Prometheus exporter.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/kadirpekel/stepwise/pkg/tutor"
)

// MetricsConfig configures metrics collection.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// Metrics records session lifecycle and LLM call metrics. A nil or disabled
// Metrics is safe to use; all recording methods become no-ops.
//
// Metrics implements tutor.Observer so it can be attached to a controller
// directly.
type Metrics struct {
	sessionsStarted   metric.Int64Counter
	fallbacksTotal    metric.Int64Counter
	stepsPresented    metric.Int64Counter
	feedbackDecisions metric.Int64Counter
	failOpenTotal     metric.Int64Counter
	llmDuration       metric.Float64Histogram
	llmCallsTotal     metric.Int64Counter
	llmErrorsTotal    metric.Int64Counter
	llmTokensTotal    metric.Int64Counter
}

// InitMetrics sets up the Prometheus exporter and instruments. When disabled
// it returns an inert Metrics value.
func InitMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName("stepwise"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
		sdkmetric.WithResource(res),
	)

	meter := meterProvider.Meter("stepwise")

	m := &Metrics{}

	m.sessionsStarted, err = meter.Int64Counter(
		"stepwise_sessions_started_total",
		metric.WithDescription("Total tutoring sessions started"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions counter: %w", err)
	}

	m.fallbacksTotal, err = meter.Int64Counter(
		"stepwise_fallback_explanations_total",
		metric.WithDescription("Sessions initialized with the fixed fallback explanation"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fallback counter: %w", err)
	}

	m.stepsPresented, err = meter.Int64Counter(
		"stepwise_steps_presented_total",
		metric.WithDescription("Total explanation steps presented"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create steps counter: %w", err)
	}

	m.feedbackDecisions, err = meter.Int64Counter(
		"stepwise_feedback_decisions_total",
		metric.WithDescription("Feedback decisions by action"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create decisions counter: %w", err)
	}

	m.failOpenTotal, err = meter.Int64Counter(
		"stepwise_feedback_fail_open_total",
		metric.WithDescription("Feedback calls that failed open to proceed_to_next"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fail-open counter: %w", err)
	}

	m.llmDuration, err = meter.Float64Histogram(
		"stepwise_llm_request_duration_seconds",
		metric.WithDescription("LLM request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}

	m.llmCallsTotal, err = meter.Int64Counter(
		"stepwise_llm_calls_total",
		metric.WithDescription("Total LLM calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm calls counter: %w", err)
	}

	m.llmErrorsTotal, err = meter.Int64Counter(
		"stepwise_llm_errors_total",
		metric.WithDescription("Total LLM errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm errors counter: %w", err)
	}

	m.llmTokensTotal, err = meter.Int64Counter(
		"stepwise_llm_tokens_total",
		metric.WithDescription("Total tokens used, by direction"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm tokens counter: %w", err)
	}

	return m, nil
}

// Handler returns the HTTP handler serving the Prometheus scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// SessionInitialized implements tutor.Observer.
func (m *Metrics) SessionInitialized(session *tutor.Session, usedFallback bool) {
	if m == nil || m.sessionsStarted == nil {
		return
	}

	ctx := context.Background()
	m.sessionsStarted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("subject", string(session.Subject)),
	))
	if usedFallback {
		m.fallbacksTotal.Add(ctx, 1)
	}
}

// StepPresented implements tutor.Observer.
func (m *Metrics) StepPresented(_ *tutor.Session) {
	if m == nil || m.stepsPresented == nil {
		return
	}
	m.stepsPresented.Add(context.Background(), 1)
}

// FeedbackProcessed implements tutor.Observer.
func (m *Metrics) FeedbackProcessed(_ *tutor.Session, action string, failedOpen bool) {
	if m == nil || m.feedbackDecisions == nil {
		return
	}

	ctx := context.Background()
	m.feedbackDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
	))
	if failedOpen {
		m.failOpenTotal.Add(ctx, 1)
	}
}

// RecordLLMCall records one model round trip.
func (m *Metrics) RecordLLMCall(ctx context.Context, modelName string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil || m.llmDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("model", modelName),
	}

	m.llmDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.llmCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	if inputTokens > 0 {
		m.llmTokensTotal.Add(ctx, int64(inputTokens), metric.WithAttributes(
			append(attrs, attribute.String("direction", "input"))...))
	}
	if outputTokens > 0 {
		m.llmTokensTotal.Add(ctx, int64(outputTokens), metric.WithAttributes(
			append(attrs, attribute.String("direction", "output"))...))
	}
	if err != nil {
		m.llmErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// Ensure Metrics implements tutor.Observer
var _ tutor.Observer = (*Metrics)(nil)
