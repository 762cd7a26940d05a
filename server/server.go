// Package server exposes the HTTP surface: connection CRUD, schema and
// query endpoints, session CRUD, the SSE chat stream, and metrics.
package server

import (
	"net/http"

	"datachat/agent"
	"datachat/chart"
	"datachat/connection"
	"datachat/metrics"
	"datachat/query"
	"datachat/schema"
	"datachat/session"
)

// Server holds the wired services behind the HTTP handlers.
type Server struct {
	manager      *connection.Manager
	tester       *connection.Tester
	introspector *schema.Introspector
	gateway      *query.Gateway
	sessions     *session.Store
	agent        *agent.Service
	charts       *chart.Synthesizer
	logger       func(string)
}

// New creates a Server over the given collaborators.
func New(
	manager *connection.Manager,
	tester *connection.Tester,
	introspector *schema.Introspector,
	gateway *query.Gateway,
	sessions *session.Store,
	agentSvc *agent.Service,
	charts *chart.Synthesizer,
	logger func(string),
) *Server {
	if logger == nil {
		logger = func(string) {}
	}
	return &Server{
		manager:      manager,
		tester:       tester,
		introspector: introspector,
		gateway:      gateway,
		sessions:     sessions,
		agent:        agentSvc,
		charts:       charts,
		logger:       logger,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/connections", s.handleListConnections)
	mux.HandleFunc("POST /api/connections", s.handleCreateConnection)
	mux.HandleFunc("POST /api/connections/test", s.handleTestConnection)
	mux.HandleFunc("GET /api/connections/{id}", s.handleGetConnection)
	mux.HandleFunc("PUT /api/connections/{id}", s.handleUpdateConnection)
	mux.HandleFunc("DELETE /api/connections/{id}", s.handleDeleteConnection)
	mux.HandleFunc("POST /api/connections/{id}/test", s.handleTestSavedConnection)

	mux.HandleFunc("GET /api/database/schema", s.handleGetSchema)
	mux.HandleFunc("POST /api/database/query", s.handleQuery)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("PUT /api/sessions/{id}", s.handleUpdateSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)

	mux.HandleFunc("POST /api/chat/{session_id}/stream", s.handleChatStream)

	return withCORS(mux)
}

// withCORS allows the browser frontend to reach the API from another
// origin.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
