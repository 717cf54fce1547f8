// Package control is the WebSocket control channel: it accepts overlay UI
// connections, relays their control commands to the orchestrator, and fans
// orchestrator events out to every connected client.
//
// The server implements [orchestrator.Sink], so it plugs directly into the
// orchestrator as its event destination. Fan-out never blocks the caller:
// each client has a bounded send queue and a client that cannot drain it in
// time is disconnected rather than allowed to stall the pipeline.
package control

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/auricle-dev/auricle/internal/observe"
	"github.com/auricle-dev/auricle/internal/orchestrator"
)

const (
	// sendQueueDepth bounds the per-client outbound queue. Audio levels
	// arrive at 10/s at most, so a backlog this deep means the client has
	// stopped reading.
	sendQueueDepth = 128

	writeTimeout = 10 * time.Second
)

// Commander is the slice of the orchestrator the control channel drives.
type Commander interface {
	Start()
	Pause()
	Resume()
	Stop()
	Snapshot() orchestrator.Snapshot
}

// Server accepts overlay WebSocket connections and bridges them to a
// [Commander]. It is an [http.Handler]; mount it on the /ws route.
type Server struct {
	cmd         Commander
	maxAPICalls int
	metrics     *observe.Metrics

	mu      sync.Mutex
	clients map[*client]struct{}
}

var _ http.Handler = (*Server)(nil)

// NewServer builds a control server driving cmd. maxAPICalls is advertised
// to each client in its greeting; zero means unlimited.
func NewServer(cmd Commander, maxAPICalls int) *Server {
	return &Server{
		cmd:         cmd,
		maxAPICalls: maxAPICalls,
		metrics:     observe.DefaultMetrics(),
		clients:     make(map[*client]struct{}),
	}
}

// client is one connected overlay. The send queue is drained by a dedicated
// writer goroutine; the accept handler goroutine owns reads.
type client struct {
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// drop disconnects the client. Closing the connection is what unblocks the
// read pump, so the handler's deferred unregister always runs. Safe to call
// from any goroutine.
func (c *client) drop(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close(code, reason)
	})
}

// enqueue queues data for the writer. Reports false when the queue is full,
// which means the client is too slow to keep.
func (c *client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("control: websocket accept failed", "err", err, "remote", r.RemoteAddr)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendQueueDepth),
		done: make(chan struct{}),
	}

	ctx := r.Context()
	s.register(ctx, c)
	defer s.unregister(ctx, c)

	slog.Info("control: client connected", "remote", r.RemoteAddr)
	s.greet(c)

	go c.writeLoop(ctx)
	s.readLoop(ctx, c)

	slog.Info("control: client disconnected", "remote", r.RemoteAddr)
}

func (s *Server) register(ctx context.Context, c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.metrics.OverlayClients.Add(ctx, 1)
}

func (s *Server) unregister(ctx context.Context, c *client) {
	s.mu.Lock()
	_, present := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if present {
		s.metrics.OverlayClients.Add(ctx, -1)
	}
	c.drop(websocket.StatusNormalClosure, "")
}

// greet sends the per-client handshake: the advertised configuration and a
// snapshot of the current status, so a UI joining mid-session renders the
// true state immediately.
func (s *Server) greet(c *client) {
	s.sendTo(c, configMessage{Type: "config", MaxAPICalls: s.maxAPICalls})

	snap := s.cmd.Snapshot()
	s.sendTo(c, statusMessage{
		Type:        "status",
		Status:      snap.State.StatusLabel(),
		IsListening: snap.IsListening,
		IsPaused:    snap.IsPaused,
	})
	if snap.APICalls > 0 {
		s.sendTo(c, apiCallCountMessage{Type: "api_call_count", Count: snap.APICalls})
	}
	if snap.Transcript != "" {
		// Catch the client up on the in-flight response; subsequent deltas
		// append to this as usual.
		s.sendTo(c, transcriptMessage{Type: "transcript", Delta: snap.Transcript})
	}
}

// sendTo marshals and queues a message for one client.
func (s *Server) sendTo(c *client, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("control: marshal failed", "err", err)
		return
	}
	if !c.enqueue(data) {
		slog.Warn("control: client send queue full, dropping client")
		s.metrics.RecordDropped(context.Background(), "control", 1)
		c.drop(websocket.StatusPolicyViolation, "send queue overflow")
	}
}

// broadcast marshals once and fans out to all clients. Each client's queue
// is FIFO, so every client observes events in emission order. Slow clients
// are dropped instead of blocking the orchestrator.
func (s *Server) broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("control: marshal failed", "err", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if !c.enqueue(data) {
			slog.Warn("control: client send queue full, dropping client")
			s.metrics.RecordDropped(context.Background(), "control", 1)
			c.drop(websocket.StatusPolicyViolation, "send queue overflow")
		}
	}
}

// readLoop consumes inbound messages until the connection drops or the
// client is marked for disconnection.
func (s *Server) readLoop(ctx context.Context, c *client) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				slog.Debug("control: read failed", "err", err)
			}
			return
		}
		s.dispatch(c, data)
	}
}

// writeLoop drains the send queue into the connection.
func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case data := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				slog.Debug("control: write failed", "err", err)
				c.drop(websocket.StatusGoingAway, "")
				return
			}
		}
	}
}
