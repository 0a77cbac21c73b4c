package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/tbxark/intakeagent/dialogue"
)

// safeConn serializes writes; gorilla connections allow one concurrent writer.
type safeConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  bool
}

func (sc *safeConn) WriteJSON(v any) error {
	raw, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	if sc.closed {
		return nil
	}
	return sc.conn.WriteMessage(websocket.TextMessage, raw)
}

func (sc *safeConn) Close() error {
	sc.writeMu.Lock()
	sc.closed = true
	sc.writeMu.Unlock()
	return sc.conn.Close()
}

// handleSocket drives one session over a websocket. Each client frame is an
// actionRequest; actions run in the background so a frame sent while a turn is running
// is answered with a busy error instead of waiting.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, err := s.flow.Snapshot(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "session", id, "error", err)
		return
	}
	sc := &safeConn{conn: conn}
	defer sc.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	_ = sc.WriteJSON(envelope{Type: "snapshot", Snapshot: snap})
	slog.Info("WebSocket client connected", "session", id)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket read failed", "session", id, "error", err)
			}
			return
		}
		var req actionRequest
		if err := sonic.Unmarshal(raw, &req); err != nil {
			_ = sc.WriteJSON(envelope{Type: "error", Error: "invalid json", Status: http.StatusBadRequest})
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink := func(e dialogue.Event) {
				_ = sc.WriteJSON(envelope{Type: "event", Event: &e})
			}
			snap, err := s.dispatch(ctx, id, req, sink)
			if err != nil {
				_ = sc.WriteJSON(envelope{Type: "error", Error: err.Error(), Status: statusOf(err)})
				return
			}
			_ = sc.WriteJSON(envelope{Type: "snapshot", Snapshot: snap})
		}()
	}
}
