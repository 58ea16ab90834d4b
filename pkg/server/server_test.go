package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/stepwise/pkg/config"
	"github.com/kadirpekel/stepwise/pkg/model"
	"github.com/kadirpekel/stepwise/pkg/store"
	"github.com/kadirpekel/stepwise/pkg/tutor"
)

type scriptedLLM struct {
	queue []scriptedReply
	calls int
}

type scriptedReply struct {
	text string
	err  error
}

func (m *scriptedLLM) Name() string             { return "scripted" }
func (m *scriptedLLM) Provider() model.Provider { return model.ProviderUnknown }
func (m *scriptedLLM) Close() error             { return nil }

func (m *scriptedLLM) Generate(_ context.Context, _ *model.Request) (*model.Response, error) {
	idx := m.calls
	if idx >= len(m.queue) {
		idx = len(m.queue) - 1
	}
	m.calls++
	reply := m.queue[idx]
	if reply.err != nil {
		return nil, reply.err
	}
	return &model.Response{Text: reply.text, FinishReason: model.FinishReasonStop}, nil
}

func stepsJSON(n int) string {
	type plan struct {
		Steps []tutor.Step `json:"steps"`
	}
	p := plan{}
	for i := 0; i < n; i++ {
		p.Steps = append(p.Steps, tutor.Step{
			Title:   fmt.Sprintf("Step %d", i+1),
			Content: fmt.Sprintf("Content of step %d", i+1),
		})
	}
	data, _ := json.Marshal(p)
	return string(data)
}

func decisionJSON(action, clarification string) string {
	data, _ := json.Marshal(tutor.FeedbackDecision{Action: action, Clarification: clarification})
	return string(data)
}

func newTestServer(t *testing.T, llm model.LLM) *Server {
	t.Helper()
	cfg := config.Default()
	controller := tutor.NewController(llm)
	return New(cfg.Server, controller, store.NewMemoryStore())
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &scriptedLLM{queue: []scriptedReply{{text: stepsJSON(3)}}})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateSession(t *testing.T) {
	srv := newTestServer(t, &scriptedLLM{queue: []scriptedReply{{text: stepsJSON(4)}}})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/sessions", createSessionRequest{
		Question: "What is angular momentum?",
		Subject:  "Physics",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeSession(t, rec)
	assert.NotEmpty(t, resp["id"])
	assert.Equal(t, string(tutor.PhaseAwaitingFeedback), resp["phase"])
	assert.Equal(t, float64(0), resp["cursor"])
	assert.Equal(t, float64(4), resp["total_steps"])
	assert.Equal(t, "Content of step 1", resp["active_text"])
	assert.Equal(t, "Step 1", resp["step_title"])
}

func TestCreateSessionRequiresQuestion(t *testing.T) {
	srv := newTestServer(t, &scriptedLLM{queue: []scriptedReply{{text: stepsJSON(3)}}})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/sessions", createSessionRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSessionFallsBackOnLLMFailure(t *testing.T) {
	srv := newTestServer(t, &scriptedLLM{queue: []scriptedReply{{err: errors.New("down")}}})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/sessions", createSessionRequest{
		Question: "What is pH?",
		Subject:  "Chemistry",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeSession(t, rec)
	assert.Equal(t, true, resp["fallback"])
	assert.Equal(t, float64(3), resp["total_steps"])
}

func TestFeedbackFlow(t *testing.T) {
	llm := &scriptedLLM{queue: []scriptedReply{
		{text: stepsJSON(3)},
		{text: decisionJSON(tutor.ActionClarify, "more detail here")},
		{text: decisionJSON(tutor.ActionProceed, "")},
	}}
	srv := newTestServer(t, llm)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/sessions", createSessionRequest{
		Question: "q", Subject: "Physics",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeSession(t, rec)["id"].(string)

	// Clarification keeps the cursor in place.
	rec = doJSON(t, srv.Handler(), http.MethodPost, "/v1/sessions/"+id+"/feedback", feedbackRequest{
		Feedback: "I don't understand",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeSession(t, rec)
	assert.Equal(t, "more detail here", resp["active_text"])
	assert.Equal(t, float64(0), resp["cursor"])

	// Proceed advances and presents the next step.
	rec = doJSON(t, srv.Handler(), http.MethodPost, "/v1/sessions/"+id+"/feedback", feedbackRequest{
		Feedback: "okay",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeSession(t, rec)
	assert.Equal(t, float64(1), resp["cursor"])
	assert.Equal(t, "Content of step 2", resp["active_text"])
	assert.Equal(t, string(tutor.PhaseAwaitingFeedback), resp["phase"])
}

func TestFeedbackOnFinishedSession(t *testing.T) {
	llm := &scriptedLLM{queue: []scriptedReply{
		{text: stepsJSON(3)},
		{text: decisionJSON(tutor.ActionProceed, "")},
	}}
	srv := newTestServer(t, llm)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/sessions", createSessionRequest{
		Question: "q", Subject: "Physics",
	})
	id := decodeSession(t, rec)["id"].(string)

	for i := 0; i < 3; i++ {
		rec = doJSON(t, srv.Handler(), http.MethodPost, "/v1/sessions/"+id+"/feedback", feedbackRequest{
			Feedback: "next",
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	resp := decodeSession(t, rec)
	assert.Equal(t, string(tutor.PhaseFinished), resp["phase"])

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/v1/sessions/"+id+"/feedback", feedbackRequest{
		Feedback: "one more",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetAndListAndDelete(t *testing.T) {
	srv := newTestServer(t, &scriptedLLM{queue: []scriptedReply{{text: stepsJSON(3)}}})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/sessions", createSessionRequest{
		Question: "q", Subject: "Mathematics",
	})
	id := decodeSession(t, rec)["id"].(string)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mathematics", decodeSession(t, rec)["subject"])

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = doJSON(t, srv.Handler(), http.MethodDelete, "/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv.Handler(), http.MethodDelete, "/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNarrationField(t *testing.T) {
	type plan struct {
		Steps []tutor.Step `json:"steps"`
	}
	p := plan{Steps: []tutor.Step{
		{Title: "Newton", Content: `Apply $F = ma$ here.`},
		{Title: "B", Content: "b"},
		{Title: "C", Content: "c"},
	}}
	data, _ := json.Marshal(p)

	srv := newTestServer(t, &scriptedLLM{queue: []scriptedReply{{text: string(data)}}})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/sessions", createSessionRequest{
		Question: "q", Subject: "Physics",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeSession(t, rec)
	assert.Equal(t, `Apply $F = ma$ here.`, resp["active_text"])
	assert.Equal(t, "Apply force equals mass times acceleration here.", resp["narration"])
}

type fixedContext struct{ text string }

func (f fixedContext) BuildContext(context.Context, string) string { return f.text }

func TestKnowledgeContextInjection(t *testing.T) {
	var sawContext bool
	llm := &capturingLLM{
		response: stepsJSON(3),
		onRequest: func(req *model.Request) {
			for _, msg := range req.Messages {
				if bytes.Contains([]byte(msg.Content), []byte("retrieved snippet")) {
					sawContext = true
				}
			}
		},
	}

	cfg := config.Default()
	srv := New(cfg.Server, tutor.NewController(llm), store.NewMemoryStore(),
		WithKnowledge(fixedContext{text: "retrieved snippet"}))

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/sessions", createSessionRequest{
		Question: "q", Subject: "Physics",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, sawContext)
}

type capturingLLM struct {
	response  string
	onRequest func(*model.Request)
}

func (c *capturingLLM) Name() string             { return "capturing" }
func (c *capturingLLM) Provider() model.Provider { return model.ProviderUnknown }
func (c *capturingLLM) Close() error             { return nil }
func (c *capturingLLM) Generate(_ context.Context, req *model.Request) (*model.Response, error) {
	if c.onRequest != nil {
		c.onRequest(req)
	}
	return &model.Response{Text: c.response}, nil
}
