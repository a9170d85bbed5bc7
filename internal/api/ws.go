package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteWait = 5 * time.Second

var changedFrame = []byte(`{"type":"changed"}`)

// NotifyHandler pushes one "changed" frame per notifier tick. Clients re-read
// /api/vehicle and /api/waypoints when they receive it.
type NotifyHandler struct {
	link     Link
	upgrader websocket.Upgrader
	done     chan struct{}
	once     sync.Once
}

// NewNotifyHandler creates a new NotifyHandler.
func NewNotifyHandler(l Link) *NotifyHandler {
	return &NotifyHandler{
		link: l,
		done: make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  512,
			WriteBufferSize: 512,
			// The UI may be served from another port during development
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *NotifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		slog.Debug("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	changes, unsubscribe := h.link.Subscribe()
	defer unsubscribe()

	// Reads only serve to notice the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-h.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(wsWriteWait))
			return
		case <-changes:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, changedFrame); err != nil {
				slog.Debug("Websocket write failed", "error", err)
				return
			}
		}
	}
}

// Close ends every open stream. Hijacked connections are not tracked by
// http.Server.Shutdown, so the server registers this as a shutdown hook.
func (h *NotifyHandler) Close() {
	h.once.Do(func() { close(h.done) })
}
