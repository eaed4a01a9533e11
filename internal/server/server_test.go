// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/bankbot/internal/banking"
	"github.com/jeranaias/bankbot/internal/metrics"
	"github.com/jeranaias/bankbot/internal/reply"
	"github.com/jeranaias/bankbot/internal/session"
	"github.com/jeranaias/bankbot/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type echoGenerator struct {
	err error
}

func (g echoGenerator) Name() string { return "echo" }

func (g echoGenerator) Generate(_ context.Context, prompt string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return "about " + prompt, nil
}

// checkedGenerator fails its readiness check with err.
type checkedGenerator struct {
	echoGenerator
	checkErr error
}

func (g checkedGenerator) Check(context.Context) error { return g.checkErr }

type panicGenerator struct{}

func (panicGenerator) Name() string { return "panic" }

func (panicGenerator) Generate(context.Context, string) (string, error) {
	panic("boom")
}

func newTestServer(t *testing.T, gen reply.Generator, cfg Config) (*Server, *session.Controller) {
	t.Helper()
	m := metrics.New()
	store := storage.NewHistoryStore(filepath.Join(t.TempDir(), storage.HistoryFileName))
	responder := session.Responder{
		Classifier: banking.NewClassifier(banking.DefaultKeywords),
		FAQ:        banking.NewFAQ(banking.Entry{Question: "atm", Answer: "Automated Teller Machine"}),
		Generator:  gen,
	}
	ctrl, err := session.Open(store, responder, session.Options{Observer: m})
	require.NoError(t, err)
	return New(ctrl, m, cfg), ctrl
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// CONVERSATION ENDPOINTS
// =============================================================================

func TestListAndCreate(t *testing.T) {
	srv, ctrl := newTestServer(t, echoGenerator{}, Config{})
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/conversations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[ListResponse](t, rec)
	require.Len(t, list.Conversations, 1)
	assert.Equal(t, ctrl.ActiveID(), list.Active)

	rec = do(t, h, http.MethodPost, "/api/conversations", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[ConversationResponse](t, rec)
	assert.True(t, created.Active)
	assert.Equal(t, storage.DefaultTitle, created.Title)
	assert.Equal(t, []storage.Message{storage.AssistantMessage(storage.DefaultGreeting)}, created.Messages)

	list = decode[ListResponse](t, do(t, h, http.MethodGet, "/api/conversations", ""))
	assert.Len(t, list.Conversations, 2)
	assert.Equal(t, created.ID, list.Active)
}

func TestGetRenameSelectDelete(t *testing.T) {
	srv, ctrl := newTestServer(t, echoGenerator{}, Config{})
	h := srv.Handler()
	first := ctrl.ActiveID()
	second, err := ctrl.NewChat()
	require.NoError(t, err)

	rec := do(t, h, http.MethodGet, "/api/conversations/"+first, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[ConversationResponse](t, rec).Active)

	rec = do(t, h, http.MethodPatch, "/api/conversations/"+first, `{"title": "Mortgage"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mortgage", decode[ConversationResponse](t, rec).Title)

	rec = do(t, h, http.MethodPatch, "/api/conversations/"+first, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/conversations/"+first+"/select", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first, ctrl.ActiveID())

	rec = do(t, h, http.MethodDelete, "/api/conversations/"+first, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, second, decode[DeleteResponse](t, rec).Active)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/conversations/" + first, ""},
		{http.MethodPatch, "/api/conversations/" + first, `{"title": "x"}`},
		{http.MethodDelete, "/api/conversations/" + first, ""},
		{http.MethodPost, "/api/conversations/" + first + "/select", ""},
		{http.MethodPost, "/api/conversations/" + first + "/messages", `{"text": "loan?"}`},
	} {
		rec := do(t, h, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusNotFound, rec.Code, tc.method+" "+tc.path)
		assert.Contains(t, rec.Body.String(), `"code":404`)
	}
}

// =============================================================================
// MESSAGES
// =============================================================================

func TestSubmitRoutes(t *testing.T) {
	srv, ctrl := newTestServer(t, echoGenerator{}, Config{})
	h := srv.Handler()
	id := ctrl.ActiveID()
	path := "/api/conversations/" + id + "/messages"

	tests := []struct {
		text  string
		route session.Route
		reply string
	}{
		{"What's the weather?", session.RouteRefused, banking.DefaultRefusal},
		{"Where is the nearest ATM?", session.RouteFAQ, "Automated Teller Machine"},
		{"How do loans work?", session.RouteModel, "about How do loans work?"},
	}
	for _, tt := range tests {
		body, _ := json.Marshal(SubmitRequest{Text: tt.text})
		rec := do(t, h, http.MethodPost, path, string(body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[SubmitResponse](t, rec)
		assert.Equal(t, string(tt.route), resp.Route, tt.text)
		assert.Equal(t, tt.reply, resp.Reply, tt.text)
		assert.Equal(t, id, resp.ConversationID)
	}

	conv, err := ctrl.Transcript(id)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 1+2*len(tests))
	assert.Equal(t, "What's the weather?", conv.Title)
}

func TestSubmitGenerationError(t *testing.T) {
	gen := echoGenerator{err: &reply.Error{Kind: reply.KindTimeout, Message: "request timed out"}}
	srv, ctrl := newTestServer(t, gen, Config{})

	rec := do(t, srv.Handler(), http.MethodPost, "/api/conversations/"+ctrl.ActiveID()+"/messages", `{"text": "credit score?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SubmitResponse](t, rec)
	assert.Equal(t, "error", resp.Route)
	assert.Equal(t, "timeout", resp.ErrorKind)
	assert.Equal(t, "Error from AI: request timed out", resp.Reply)
}

func TestSubmitBadRequests(t *testing.T) {
	srv, ctrl := newTestServer(t, echoGenerator{}, Config{MaxBodyBytes: 64})
	h := srv.Handler()
	path := "/api/conversations/" + ctrl.ActiveID() + "/messages"

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, path, `{"text": "   "}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, path, `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, path, `{"txt": "loan"}`).Code)

	big := `{"text": "` + strings.Repeat("bank ", 50) + `"}`
	assert.Equal(t, http.StatusRequestEntityTooLarge, do(t, h, http.MethodPost, path, big).Code)

	conv, err := ctrl.Transcript("")
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 1, "rejected requests record nothing")
}

// =============================================================================
// OPERATIONAL ENDPOINTS AND MIDDLEWARE
// =============================================================================

func TestHealthAndMetrics(t *testing.T) {
	srv, ctrl := newTestServer(t, echoGenerator{}, Config{Version: "1.2.3"})
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "echo", health.Generator)
	assert.Equal(t, "1.2.3", health.Version)
	assert.True(t, health.GeneratorReady)
	assert.Empty(t, health.GeneratorError)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	do(t, h, http.MethodPost, "/api/conversations/"+ctrl.ActiveID()+"/messages", `{"text": "bank hours?"}`)

	rec = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `bankbot_messages_total{route="model"} 1`)
	assert.Contains(t, body, `route="/api/conversations/{id}/messages"`)
}

func TestHealthReportsGeneratorReadiness(t *testing.T) {
	notPulled := &reply.Error{Kind: reply.KindModelNotFound, Message: "model llama3.2:1b is not pulled"}
	srv, _ := newTestServer(t, checkedGenerator{checkErr: notPulled}, Config{})

	rec := do(t, srv.Handler(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code, "an unready generator does not fail the server")
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", health.Status)
	assert.False(t, health.GeneratorReady)
	assert.Equal(t, "model llama3.2:1b is not pulled", health.GeneratorError)

	srv, _ = newTestServer(t, nil, Config{})
	health = decode[HealthResponse](t, do(t, srv.Handler(), http.MethodGet, "/healthz", ""))
	assert.Equal(t, "none", health.Generator)
	assert.False(t, health.GeneratorReady)
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, echoGenerator{}, Config{})
	h := srv.Handler()

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/nope", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/nope", "").Code)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPut, "/api/conversations"},
		{http.MethodDelete, "/api/conversations"},
		{http.MethodPut, "/api/conversations/abc"},
		{http.MethodGet, "/api/conversations/abc/messages"},
		{http.MethodGet, "/api/conversations/abc/select"},
		{http.MethodPost, "/healthz"},
	} {
		rec := do(t, h, tc.method, tc.path, "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, tc.method+" "+tc.path)
		assert.Equal(t, "method not allowed", decode[map[string]any](t, rec)["message"], tc.method+" "+tc.path)
	}
}

// gatedGenerator blocks every reply until release is closed.
type gatedGenerator struct {
	started chan struct{}
	release chan struct{}
}

func (g gatedGenerator) Name() string { return "gated" }

func (g gatedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	close(g.started)
	select {
	case <-g.release:
		return "about " + prompt, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestRequestsServedDuringGeneration(t *testing.T) {
	gen := gatedGenerator{started: make(chan struct{}), release: make(chan struct{})}
	srv, ctrl := newTestServer(t, gen, Config{})
	h := srv.Handler()
	id := ctrl.ActiveID()

	submitted := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		submitted <- do(t, h, http.MethodPost, "/api/conversations/"+id+"/messages", `{"text": "loan rates?"}`)
	}()
	<-gen.started

	answered := make(chan struct{})
	go func() {
		defer close(answered)
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/conversations", "").Code)
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/conversations/"+id, "").Code)
	}()
	select {
	case <-answered:
	case <-time.After(2 * time.Second):
		t.Fatal("requests blocked behind a pending reply")
	}

	close(gen.release)
	rec := <-submitted
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRecoveryMiddleware(t *testing.T) {
	srv, ctrl := newTestServer(t, panicGenerator{}, Config{})

	rec := do(t, srv.Handler(), http.MethodPost, "/api/conversations/"+ctrl.ActiveID()+"/messages", `{"text": "loan?"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, echoGenerator{}, Config{RateLimitPerMin: 3})
	h := srv.Handler()

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
	}
	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	other := httptest.NewRecorder()
	h.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"direct", "203.0.113.1:1234", "", "203.0.113.1"},
		{"untrusted proxy header ignored", "203.0.113.1:1234", "198.51.100.7", "203.0.113.1"},
		{"trusted proxy header used", "127.0.0.1:1234", "198.51.100.7, 10.0.0.1", "198.51.100.7"},
		{"invalid forwarded ip", "127.0.0.1:1234", "not-an-ip", "127.0.0.1"},
		{"no port", "203.0.113.1", "", "203.0.113.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, GetClientIP(req))
		})
	}
}
