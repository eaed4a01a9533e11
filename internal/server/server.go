// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/jeranaias/bankbot/internal/metrics"
	"github.com/jeranaias/bankbot/internal/reply"
	"github.com/jeranaias/bankbot/internal/session"
	"github.com/jeranaias/bankbot/internal/storage"
)

// ============================================================================
// CONFIG
// ============================================================================

// Config configures the HTTP server.
type Config struct {
	Addr string
	// RateLimitPerMin is the per-client budget; 0 disables limiting.
	RateLimitPerMin int
	// MaxBodyBytes caps request bodies; 0 disables the cap.
	MaxBodyBytes int64
	// WriteTimeout must exceed the reply generation timeout.
	WriteTimeout time.Duration
	Version      string
}

const (
	shutdownTimeout     = 10 * time.Second
	healthCheckTimeout  = 3 * time.Second
	defaultWriteTimeout = 150 * time.Second

	// WriteTimeoutSlack is added to the generation timeout so a timed-out
	// reply can still be written.
	WriteTimeoutSlack = 30 * time.Second
)

// ============================================================================
// SERVER
// ============================================================================

// Server serves one session controller over HTTP.
type Server struct {
	cfg        Config
	controller *session.Controller
	metrics    *metrics.Metrics
	router     *mux.Router
	handler    http.Handler
}

// New builds the router and middleware chain. m may be nil, which disables
// /metrics and request metrics.
func New(controller *session.Controller, m *metrics.Metrics, cfg Config) *Server {
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	s := &Server{
		cfg:        cfg,
		controller: controller,
		metrics:    m,
		router:     mux.NewRouter(),
	}
	s.setupRoutes()

	outer := []func(http.Handler) http.Handler{
		RecoveryMiddleware(),
		SecurityHeadersMiddleware(),
	}
	if cfg.RateLimitPerMin > 0 {
		outer = append(outer, RateLimitMiddleware(NewRateLimiter(cfg.RateLimitPerMin)))
	}
	outer = append(outer, BodyLimitMiddleware(cfg.MaxBodyBytes))
	s.handler = Chain(outer...)(s.router)
	return s
}

// Handler returns the complete HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	var obs RequestObserver
	if s.metrics != nil {
		obs = s.metrics
	}
	s.router.Use(LoggingMiddleware(obs))

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/conversations", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("/conversations", s.handleCreate).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id}", s.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id}", s.handleRename).Methods(http.MethodPatch)
	api.HandleFunc("/conversations/{id}", s.handleDelete).Methods(http.MethodDelete)
	api.HandleFunc("/conversations/{id}/select", s.handleSelect).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id}/messages", s.handleSubmit).Methods(http.MethodPost)

	// Subrouters answer mismatches themselves, so both need the handlers.
	for _, r := range []*mux.Router{s.router, api} {
		r.NotFoundHandler = http.HandlerFunc(handleNotFound)
		r.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)
	}
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	failureResponse(w, http.StatusNotFound, "not found")
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	failureResponse(w, http.StatusMethodNotAllowed, "method not allowed")
}

// ============================================================================
// TYPES
// ============================================================================

// ListResponse is returned by GET /api/conversations.
type ListResponse struct {
	Active        string            `json:"active_chat"`
	Conversations []storage.Summary `json:"conversations"`
}

// ConversationResponse is one conversation with its messages.
type ConversationResponse struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Active   bool              `json:"active"`
	Messages []storage.Message `json:"messages"`
}

// RenameRequest is the body of PATCH /api/conversations/{id}.
type RenameRequest struct {
	Title *string `json:"title"`
}

// SubmitRequest is the body of POST /api/conversations/{id}/messages.
type SubmitRequest struct {
	Text string `json:"text"`
}

// SubmitResponse describes how a message was answered.
type SubmitResponse struct {
	ConversationID string `json:"conversation_id"`
	Route          string `json:"route"`
	Reply          string `json:"reply"`
	ErrorKind      string `json:"error_kind,omitempty"`
	TitleChanged   bool   `json:"title_changed"`
	ElapsedMs      int64  `json:"elapsed_ms"`
}

// DeleteResponse carries the active id after a delete.
type DeleteResponse struct {
	Active string `json:"active_chat"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version,omitempty"`
	Generator     string `json:"generator"`
	Conversations int    `json:"conversations"`

	// GeneratorReady is false when the generator's backend check fails.
	// The server itself stays up; submissions then record the error reply.
	GeneratorReady bool   `json:"generator_ready"`
	GeneratorError string `json:"generator_error,omitempty"`
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Version:       s.cfg.Version,
		Generator:     "none",
		Conversations: len(s.controller.Conversations()),
	}
	if g := s.controller.Responder().Generator; g != nil {
		resp.Generator = g.Name()
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := reply.Check(ctx, g); err != nil {
			resp.GeneratorError = err.Error()
		} else {
			resp.GeneratorReady = true
		}
	}
	RespondWithJSON(http.StatusOK, w, resp)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(http.StatusOK, w, ListResponse{
		Active:        s.controller.ActiveID(),
		Conversations: s.controller.Conversations(),
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	id, err := s.controller.NewChat()
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondConversation(w, http.StatusCreated, id)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.respondConversation(w, http.StatusOK, mux.Vars(r)["id"])
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req RenameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title == nil {
		failureResponse(w, http.StatusBadRequest, "title is required")
		return
	}
	if err := s.controller.RenameChat(id, *req.Title); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondConversation(w, http.StatusOK, id)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	active, err := s.controller.DeleteChat(mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, err)
		return
	}
	RespondWithJSON(http.StatusOK, w, DeleteResponse{Active: active})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.controller.SelectChat(id); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondConversation(w, http.StatusOK, id)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req SubmitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	out, err := s.controller.SubmitTo(r.Context(), id, req.Text, nil)
	if err != nil {
		s.respondError(w, err)
		return
	}

	resp := SubmitResponse{
		ConversationID: out.ConversationID,
		Route:          string(out.Route),
		Reply:          out.Reply,
		TitleChanged:   out.TitleChanged,
		ElapsedMs:      out.Elapsed.Milliseconds(),
	}
	if out.Route == session.RouteError {
		resp.ErrorKind = out.ErrorKind.String()
	}
	RespondWithJSON(http.StatusOK, w, resp)
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *Server) respondConversation(w http.ResponseWriter, status int, id string) {
	conv, err := s.controller.Transcript(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	RespondWithJSON(status, w, ConversationResponse{
		ID:       id,
		Title:    conv.Title,
		Active:   id == s.controller.ActiveID(),
		Messages: conv.Messages,
	})
}

// respondError maps controller errors onto status codes.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrConversationNotFound):
		failureResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrEmptyMessage):
		failureResponse(w, http.StatusBadRequest, err.Error())
	default:
		log.WithError(err).Error("request failed")
		failureResponse(w, http.StatusInternalServerError, "failed to update conversation history")
	}
}

// decodeBody decodes a JSON body into v, answering 400 or 413 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			failureResponse(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		failureResponse(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// RespondWithJSON writes data as a JSON response with the given status.
func RespondWithJSON(statusCode int, w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

func failureResponse(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(code, w, map[string]interface{}{
		"code":    code,
		"message": message,
	})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{"addr": s.cfg.Addr, "version": s.cfg.Version}).Info("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
