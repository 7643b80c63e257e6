// Package devicechan is the one duplex channel to the attendance device: a
// WebSocket the device dials into. Outbound commands and inbound feedback
// are JSON frames of the form {"event": name, "data": payload}.
//
// At most one device is connected; a new connection replaces the old one.
package devicechan

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 << 10
	sendBuffer     = 32
)

var (
	// ErrNoDevice is returned by Send when no device is connected.
	ErrNoDevice = errors.New("devicechan: no device connected")
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("devicechan: hub closed")
)

// Message is one frame on the wire.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler receives inbound device events. It runs on the connection's read
// goroutine and must not block.
type Handler = func(event string, data json.RawMessage)

// Hub accepts the device connection and multiplexes frames over it.
type Hub struct {
	token    string
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	conn     *conn
	handlers []Handler
	closed   bool
}

// New returns a Hub. When token is non-empty the device must present it as
// "Authorization: Bearer <token>" or a ?token= query parameter.
func New(token string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		token: token,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// the device is not a browser; the token is the gate
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// OnMessage registers fn for every inbound frame.
func (h *Hub) OnMessage(fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, fn)
}

// Connected reports whether a device is attached.
func (h *Hub) Connected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conn != nil
}

// Send queues one frame for the device. It does not wait for the device to
// act on it.
func (h *Hub) Send(ctx context.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		return err
	}

	h.mu.RLock()
	c, closed := h.conn, h.closed
	h.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if c == nil {
		return ErrNoDevice
	}

	select {
	case c.send <- frame:
		messageCounter.WithLabelValues("out", event).Inc()
		return nil
	case <-c.done:
		return ErrNoDevice
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects the device and refuses further connections.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	c := h.conn
	h.conn = nil
	h.mu.Unlock()
	if c != nil {
		c.close()
	}
	connectedGauge.Set(0)
	return nil
}

// ServeHTTP upgrades the request and serves the device until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.log.Warn("device connection refused", zap.String("remote", r.RemoteAddr))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.log.Warn("device upgrade failed", zap.Error(err))
		return
	}

	c := newConn(ws)
	if !h.attach(c) {
		// Close ran while the upgrade was in flight.
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = ws.Close()
		return
	}
	h.log.Info("device connected", zap.String("remote", r.RemoteAddr))

	err = c.run(h.dispatch)

	h.detach(c)
	h.log.Info("device disconnected", zap.String("remote", r.RemoteAddr), zap.Error(err))
}

// attach makes c the live connection. It reports false once the hub is
// closed.
func (h *Hub) attach(c *conn) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	old := h.conn
	h.conn = c
	h.mu.Unlock()
	if old != nil {
		h.log.Info("replacing previous device connection")
		old.close()
	}
	connectedGauge.Set(1)
	return true
}

func (h *Hub) detach(c *conn) {
	h.mu.Lock()
	if h.conn == c {
		h.conn = nil
		connectedGauge.Set(0)
	}
	h.mu.Unlock()
	c.close()
}

func (h *Hub) dispatch(m Message) {
	messageCounter.WithLabelValues("in", m.Event).Inc()
	h.mu.RLock()
	handlers := h.handlers
	h.mu.RUnlock()
	for _, fn := range handlers {
		fn(m.Event, m.Data)
	}
}

func (h *Hub) authorized(r *http.Request) bool {
	if h.token == "" {
		return true
	}
	got := r.URL.Query().Get("token")
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		got = strings.TrimPrefix(auth, "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}

/*─────────────────────────────────────────────────────────────────────────────*
| one device connection                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

type conn struct {
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// close tells the write pump to send a close frame and shut the socket.
func (c *conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// run blocks until either pump stops; the other is then torn down too.
func (c *conn) run(dispatch func(Message)) error {
	var g errgroup.Group
	g.Go(func() error {
		defer c.close()
		return c.readPump(dispatch)
	})
	g.Go(func() error {
		defer c.close()
		return c.writePump()
	})
	err := g.Wait()
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	return err
}

func (c *conn) readPump(dispatch func(Message)) error {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return nil
			default:
				return err
			}
		}
		var m Message
		if err := json.Unmarshal(raw, &m); err != nil || m.Event == "" {
			messageCounter.WithLabelValues("in", "malformed").Inc()
			continue
		}
		dispatch(m)
	}
}

// writePump is the only writer and owns closing the socket, which also
// unblocks readPump.
func (c *conn) writePump() error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.ws.Close()

	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return err
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return nil
		}
	}
}
