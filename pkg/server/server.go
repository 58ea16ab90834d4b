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

// Package server exposes tutoring sessions over an HTTP API.
//
// Endpoints:
//
//	POST   /v1/sessions                create a session and present its first step
//	GET    /v1/sessions                list sessions
//	GET    /v1/sessions/{id}           fetch a session
//	POST   /v1/sessions/{id}/feedback  submit feedback on the current step
//	DELETE /v1/sessions/{id}           discard a session
//	GET    /healthz                    liveness probe
//	GET    /metrics                    Prometheus scrape endpoint (when enabled)
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kadirpekel/stepwise/pkg/config"
	"github.com/kadirpekel/stepwise/pkg/narration"
	"github.com/kadirpekel/stepwise/pkg/observability"
	"github.com/kadirpekel/stepwise/pkg/store"
	"github.com/kadirpekel/stepwise/pkg/tutor"
)

// ContextProvider supplies supplementary context text for a question. The
// knowledge store satisfies this; nil disables retrieval.
type ContextProvider interface {
	BuildContext(ctx context.Context, question string) string
}

// Server is the HTTP API server.
type Server struct {
	cfg        config.ServerConfig
	controller *tutor.Controller
	store      store.Service
	metrics    *observability.Metrics
	knowledge  ContextProvider
	logger     *slog.Logger
	router     chi.Router
	httpServer *http.Server

	// sessionLocks serializes transitions per session; the controller itself
	// requires single-goroutine access to each session.
	sessionLocks sync.Map
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics mounts the Prometheus endpoint and records API activity.
func WithMetrics(m *observability.Metrics, path string) Option {
	return func(s *Server) {
		s.metrics = m
		if m != nil {
			s.router.Handle(path, m.Handler())
		}
	}
}

// WithKnowledge enables context retrieval for new sessions.
func WithKnowledge(k ContextProvider) Option {
	return func(s *Server) {
		s.knowledge = k
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates the API server.
func New(cfg config.ServerConfig, controller *tutor.Controller, sessions store.Service, opts ...Option) *Server {
	s := &Server{
		cfg:        cfg,
		controller: controller,
		store:      sessions,
		logger:     slog.Default(),
		router:     chi.NewRouter(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.logRequests)

	for _, opt := range opts {
		opt(s)
	}

	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Get("/", s.handleListSessions)
		r.Get("/{id}", s.handleGetSession)
		r.Post("/{id}/feedback", s.handleFeedback)
		r.Delete("/{id}", s.handleDeleteSession)
	})

	s.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// lockSession returns the mutex guarding a session's transitions.
func (s *Server) lockSession(id string) *sync.Mutex {
	mu, _ := s.sessionLocks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Request/response types

type createSessionRequest struct {
	Question string `json:"question"`
	Subject  string `json:"subject"`
	Context  string `json:"context"`
}

type feedbackRequest struct {
	Feedback string `json:"feedback"`
}

type sessionResponse struct {
	ID         string        `json:"id"`
	Question   string        `json:"question"`
	Subject    tutor.Subject `json:"subject"`
	Phase      tutor.Phase   `json:"phase"`
	Cursor     int           `json:"cursor"`
	TotalSteps int           `json:"total_steps"`
	StepTitle  string        `json:"step_title,omitempty"`
	ActiveText string        `json:"active_text"`
	Narration  string        `json:"narration"`
	Fallback   bool          `json:"fallback,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

func toSessionResponse(session *tutor.Session) sessionResponse {
	resp := sessionResponse{
		ID:         session.ID,
		Question:   session.Question,
		Subject:    session.Subject,
		Phase:      session.Phase,
		Cursor:     session.Cursor,
		TotalSteps: len(session.Steps),
		ActiveText: session.ActiveText,
		Narration:  narration.Clean(session.ActiveText),
		Fallback:   session.Fallback,
		CreatedAt:  session.CreatedAt,
		UpdatedAt:  session.UpdatedAt,
	}
	if step := session.CurrentStep(); step != nil {
		resp.StepTitle = step.Title
	}
	return resp
}

// Handlers

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	contextText := req.Context
	if contextText == "" && s.knowledge != nil {
		contextText = s.knowledge.BuildContext(r.Context(), req.Question)
	}

	session := s.controller.Initialize(r.Context(), req.Question, tutor.ParseSubject(req.Subject), contextText)
	s.controller.PresentCurrentStep(session)

	if err := s.store.Save(r.Context(), session); err != nil {
		s.logger.Error("failed to save session", "session_id", session.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save session")
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	resp := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, toSessionResponse(session))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	mu := s.lockSession(id)
	mu.Lock()
	defer mu.Unlock()

	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	if session.Phase == tutor.PhaseFinished {
		writeError(w, http.StatusConflict, "session is finished")
		return
	}

	s.controller.ProcessFeedback(r.Context(), session, req.Feedback)
	if session.Phase == tutor.PhasePresenting {
		s.controller.PresentCurrentStep(session)
	}

	if err := s.store.Save(r.Context(), session); err != nil {
		s.logger.Error("failed to save session", "session_id", session.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save session")
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := s.store.Delete(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}

	s.sessionLocks.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*tutor.Session, bool) {
	id := chi.URLParam(r, "id")

	session, err := s.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("failed to load session", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return nil, false
	}

	return session, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
