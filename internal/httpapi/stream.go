package httpapi

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/r3e-labs/ruleengine/internal/alert"
	"github.com/r3e-labs/ruleengine/pkg/logger"
)

// StreamHub implements Emitter by fanning out each emitted alert
// transition, rendered as its §6 wire record, to every connected
// /v1/alerts/stream websocket client. It also forwards every transition
// to an inner Emitter (typically a transport.Bus publisher) so the
// websocket feed is additive to, not a replacement for, the core's
// publish path.
type StreamHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan alert.WireRecord
	inner   Emitter
	log     *logger.Logger
}

// Emitter matches evaluator.Emitter without importing the evaluator
// package, avoiding a dependency cycle (evaluator doesn't need to know
// about HTTP).
type Emitter interface {
	Emit(a *alert.Alert) error
}

var errStreamDisabled = errors.New("httpapi: alert stream not configured")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewStreamHub constructs a StreamHub wrapping inner (may be nil).
func NewStreamHub(inner Emitter, log *logger.Logger) *StreamHub {
	if log == nil {
		log = logger.NewDefault("httpapi-stream")
	}
	return &StreamHub{clients: make(map[*websocket.Conn]chan alert.WireRecord), inner: inner, log: log}
}

// Emit renders a's wire record and pushes it to every connected client,
// then forwards to the inner Emitter. A slow or disconnected client only
// drops its own feed; it never blocks the evaluator tick.
func (h *StreamHub) Emit(a *alert.Alert) error {
	record := a.Wire()
	h.mu.Lock()
	for conn, ch := range h.clients {
		select {
		case ch <- record:
		default:
			h.log.WithField("client", conn.RemoteAddr().String()).Warn("httpapi: alert stream client too slow, dropping transition")
		}
	}
	h.mu.Unlock()

	if h.inner == nil {
		return nil
	}
	return h.inner.Emit(a)
}

func (h *handler) alertStream(w http.ResponseWriter, r *http.Request) {
	if h.stream == nil {
		writeError(w, http.StatusServiceUnavailable, errStreamDisabled)
		return
	}
	h.stream.serve(w, r)
}

func (h *StreamHub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithField("error", err).Warn("httpapi: websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := make(chan alert.WireRecord, 64)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

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
		case <-done:
			return
		case record := <-ch:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(record); err != nil {
				return
			}
		}
	}
}
