package monitoring

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"serialbridge/session"
)

// SnapshotFrame is the first frame on a stream; session events follow
type SnapshotFrame struct {
	Type    string       `json:"type"`
	Session session.Info `json:"session"`
}

// StreamHandler pushes session events to websocket clients at /ws
type StreamHandler struct {
	manager *session.Manager
	logger  *slog.Logger

	nextID  atomic.Uint64
	clients sync.Map // uint64 -> *streamClient
}

type streamClient struct {
	ws        *websocket.Conn
	events    chan session.Event
	done      chan struct{}
	closeOnce sync.Once
}

func (c *streamClient) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(manager *session.Manager, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		manager: manager,
		logger:  logger,
	}
}

// ServeHTTP upgrades the request and streams events until either side closes
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{
			"localhost",
			"localhost:*",
			"127.0.0.1",
			"127.0.0.1:*",
			"[::1]",
			"[::1]:*",
		},
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", "error", err)
		return
	}

	connID := h.nextID.Add(1)
	cc := &streamClient{
		ws:     ws,
		events: make(chan session.Event, 64),
		done:   make(chan struct{}),
	}
	h.clients.Store(connID, cc)

	// the subscriber blocks instead of dropping; its own queue absorbs bursts
	subID := h.manager.Subscribe(func(ev session.Event) {
		select {
		case cc.events <- ev:
		case <-cc.done:
		}
	})

	h.logger.Info("Stream client connected", "conn_id", connID)

	// inbound frames are ignored; ctx ends when the client goes away
	ctx := ws.CloseRead(r.Context())
	h.writeLoop(ctx, cc)

	cc.close()
	h.manager.Unsubscribe(subID)
	h.clients.Delete(connID)
	ws.Close(websocket.StatusNormalClosure, "")
	h.logger.Info("Stream client disconnected", "conn_id", connID)
}

func (h *StreamHandler) writeLoop(ctx context.Context, cc *streamClient) {
	if err := write(ctx, cc.ws, SnapshotFrame{Type: "session", Session: h.manager.Info()}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-cc.done:
			return
		case ev := <-cc.events:
			if err := write(ctx, cc.ws, ev); err != nil {
				return
			}
		}
	}
}

func write(ctx context.Context, ws *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(ctx, ws, v)
}

// Clients returns the number of connected stream clients
func (h *StreamHandler) Clients() int {
	n := 0
	h.clients.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// CloseAll disconnects every stream client
func (h *StreamHandler) CloseAll() {
	h.clients.Range(func(_, v any) bool {
		cc := v.(*streamClient)
		cc.close()
		cc.ws.Close(websocket.StatusGoingAway, "server shutting down")
		return true
	})
}
