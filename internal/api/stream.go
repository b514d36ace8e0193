package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
)

// handleStream upgrades to a WebSocket and forwards task updates as JSON
// messages. The first message is the current state. The server closes the
// connection normally after the terminal update.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.tasks.Get(id); err != nil {
		h.writeTaskError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "task_id", id, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, err := h.tasks.Subscribe(ctx, id)
	if err != nil {
		closeWith(conn, websocket.ClosePolicyViolation, "task not found")
		return
	}

	// The read loop only exists to notice the client going away and to
	// process pongs.
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	h.logger.Debug("stream opened", "task_id", id)
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("stream closed by client", "task_id", id)
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case u, ok := <-updates:
			if !ok {
				closeWith(conn, websocket.CloseNormalClosure, "stream ended")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(u); err != nil {
				h.logger.Debug("stream write failed", "task_id", id, "error", err)
				return
			}
			if u.Terminal {
				closeWith(conn, websocket.CloseNormalClosure, string(u.Status))
				return
			}
		}
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
