package ctl

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hazyhaar/domedit/editor"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Same-origin policy is the host page's concern; the control surface
	// is bound to localhost or guarded by bearer auth.
	CheckOrigin: func(*http.Request) bool { return true },
}

const (
	wsWriteWait = 5 * time.Second
	wsBuffer    = 32
)

// events streams session events over a WebSocket. Slow consumers drop
// events rather than block the editor.
func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ctl: websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	ch := make(chan editor.Event, wsBuffer)
	unsub := h.sess.Subscribe(func(ev editor.Event) {
		select {
		case ch <- ev:
		default:
		}
	})
	defer unsub()

	// Reader goroutine: surface client disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case ev := <-ch:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}
