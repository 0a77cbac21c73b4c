package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tbxark/intakeagent/agent"
	"github.com/tbxark/intakeagent/dialogue"
)

// actionRequest is the body of the session endpoints and of websocket frames sent by the client.
type actionRequest struct {
	Type    string            `json:"type"`
	Content string            `json:"content,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// envelope is one frame sent to the client on a stream or websocket.
type envelope struct {
	Type     string          `json:"type"`
	Event    *dialogue.Event `json:"event,omitempty"`
	Snapshot *agent.Snapshot `json:"snapshot,omitempty"`
	Error    string          `json:"error,omitempty"`
	Status   int             `json:"status,omitempty"`
}

func (s *Server) dispatch(ctx context.Context, id string, req actionRequest, sink dialogue.Sink) (*agent.Snapshot, error) {
	switch req.Type {
	case "message":
		return s.flow.Send(ctx, id, req.Content, sink)
	case "next":
		return s.flow.Next(ctx, id, sink)
	case "back":
		return s.flow.Back(ctx, id, sink)
	case "submit":
		return s.flow.Submit(ctx, id)
	case "cancel":
		return s.flow.Cancel(ctx, id)
	case "summary":
		return s.flow.Summary(ctx, id)
	case "edit":
		return s.flow.Edit(ctx, id, req.Fields)
	}
	return nil, fmt.Errorf("%w: %q", errUnknownAction, req.Type)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.flow.Sessions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.flow.Start(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.flow.Snapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleAction(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, r, actionRequest{Type: action})
	}
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, fmt.Errorf("%w: content is required", errBadRequest))
		return
	}
	req.Type = "message"
	s.respond(w, r, req)
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	var fields map[string]string
	if err := decodeBody(r, &fields); err != nil {
		writeError(w, err)
		return
	}
	s.respond(w, r, actionRequest{Type: "edit", Fields: fields})
}

// respond runs the action and answers with the final snapshot, or streams the dialogue
// events first when the client accepts text/event-stream.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, req actionRequest) {
	id := r.PathValue("id")
	if !strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		snap, err := s.dispatch(r.Context(), id, req, nil)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
		return
	}

	if _, err := s.flow.Snapshot(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	frames := newFrameWriter(w)
	snap, err := s.dispatch(r.Context(), id, req, func(e dialogue.Event) {
		_ = frames.Write(envelope{Type: "event", Event: &e})
	})
	if err != nil {
		_ = frames.Write(envelope{Type: "error", Error: err.Error(), Status: statusOf(err)})
		return
	}
	_ = frames.Write(envelope{Type: "snapshot", Snapshot: snap})
}
