package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/gorilla/websocket"
	"github.com/tbxark/intakeagent/agent"
	"github.com/tbxark/intakeagent/chat"
	"github.com/tbxark/intakeagent/step"
	"github.com/tbxark/intakeagent/types"
)

// ChunkStreamer opens a raw model stream for the stateless POST /chat relay.
type ChunkStreamer interface {
	StreamChunks(ctx context.Context, req *chat.Request) (*schema.StreamReader[*schema.Message], error)
}

type Server struct {
	flow       *agent.IntakeFlow
	steps      *step.Schema
	chunks     ChunkStreamer
	upgrader   websocket.Upgrader
	schemaDoc  schemaDocument
	allowedAll bool
	origins    map[string]bool
}

type Option func(*Server)

// WithAllowedOrigins lists the origins allowed to open websockets. "*" allows any;
// without origins only same-origin requests are accepted.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		for _, o := range origins {
			if o == "*" {
				s.allowedAll = true
				continue
			}
			s.origins[o] = true
		}
	}
}

type schemaDocument struct {
	Steps      []step.Definition `json:"steps"`
	Fields     []types.FieldInfo `json:"fields"`
	JSONSchema json.RawMessage   `json:"json_schema"`
}

func New(flow *agent.IntakeFlow, chunks ChunkStreamer, opts ...Option) (*Server, error) {
	if flow == nil {
		return nil, fmt.Errorf("intake flow is required")
	}
	if chunks == nil {
		return nil, fmt.Errorf("chunk streamer is required")
	}
	steps := flow.Schema()
	doc, err := step.JSONSchema[step.TaskInfo]("TaskInfo", "Task requirements collected by the intake agent")
	if err != nil {
		return nil, err
	}
	s := &Server{
		flow:   flow,
		steps:  steps,
		chunks: chunks,
		schemaDoc: schemaDocument{
			Steps:      steps.Steps(),
			Fields:     steps.Fields(),
			JSONSchema: doc,
		},
		origins: map[string]bool{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /api/schema", s.handleSchema)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleAction("cancel"))
	mux.HandleFunc("POST /api/sessions/{id}/messages", s.handleMessage)
	mux.HandleFunc("POST /api/sessions/{id}/next", s.handleAction("next"))
	mux.HandleFunc("POST /api/sessions/{id}/back", s.handleAction("back"))
	mux.HandleFunc("POST /api/sessions/{id}/submit", s.handleAction("submit"))
	mux.HandleFunc("GET /api/sessions/{id}/summary", s.handleAction("summary"))
	mux.HandleFunc("PATCH /api/sessions/{id}/form", s.handleEditForm)
	mux.HandleFunc("GET /api/sessions/{id}/ws", s.handleSocket)
	return mux
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("Server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.allowedAll || s.origins[origin] {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.schemaDoc)
}
