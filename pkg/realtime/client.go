// Package realtime implements the client for the hosted realtime speech API.
//
// A [Client] dials the API's WebSocket endpoint and configures the session
// exactly once per connection: modalities, system instructions (base plus any
// externally supplied context, concatenated ahead of time), turn-detection
// parameters, voice and temperature. The server retains this configuration
// for the lifetime of the connection, so nothing is re-sent per turn —
// re-sending context on every request would add latency and cost.
//
// The hosted API enforces a hard ceiling on session lifetime. The client
// tracks session age and reports, via [SessionHandle.ShouldReconnect], when a
// configured fraction of that ceiling has elapsed. It never reconnects on its
// own: the orchestrator owns the decision, because tearing down a session
// mid-turn would lose an in-flight exchange. Reconnecting is simply calling
// [Client.Connect] again; the full session configuration is re-sent by
// construction since the server does not persist it across connections.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const (
	defaultModel   = "gpt-4o-realtime-preview"
	defaultBaseURL = "wss://api.openai.com/v1/realtime"

	// defaultSessionTTL is the hosted API's enforced session lifetime ceiling.
	defaultSessionTTL = 30 * time.Minute

	// defaultReconnectFraction is the fraction of the ceiling after which a
	// proactive reconnect is due.
	defaultReconnectFraction = 2.0 / 3.0
)

// Sentinel errors. Callers classify failures with errors.Is.
var (
	// ErrSessionClosed is returned by operations on a session after Close.
	ErrSessionClosed = errors.New("realtime: session closed")

	// ErrConnectionLost wraps a transport-level disconnect. Recoverable: the
	// orchestrator may reconnect and resume.
	ErrConnectionLost = errors.New("realtime: connection lost")

	// ErrInvalidAPIKey reports an authentication failure. Fatal: the session
	// cannot start until the operator supplies a valid key.
	ErrInvalidAPIKey = errors.New("realtime: invalid api key")
)

// TurnDetection configures the server-side end-of-utterance detector.
type TurnDetection struct {
	// Threshold is the activity threshold in the server's native scale (0..1).
	Threshold float64

	// SilenceDuration is the trailing silence that ends a turn.
	SilenceDuration time.Duration
}

// SessionConfig is the one-time configuration sent at connect.
type SessionConfig struct {
	// Modalities the server should respond with, e.g. ["text"].
	Modalities []string

	// Instructions is the fully assembled system prompt: base instructions
	// plus any operator-supplied context, concatenated once at startup.
	Instructions string

	// Voice selects the response voice/style parameter.
	Voice string

	// Temperature is the sampling temperature.
	Temperature float64

	// TurnDetection parameters. Zero value disables server turn detection.
	TurnDetection TurnDetection
}

// SessionHandle is the live-session interface consumed by the orchestrator.
// The production implementation is [Session]; tests substitute mocks.
type SessionHandle interface {
	// SendAudio transmits raw PCM16 mono audio to the server's input buffer.
	SendAudio(pcm []byte) error

	// Commit finalizes the input buffer and requests a response. Each Commit
	// is one API call against the session's cumulative counter.
	Commit() error

	// Events returns the inbound event stream. The channel is closed when
	// the connection ends; Err then reports why.
	Events() <-chan Event

	// Err returns the error that terminated the event stream, or nil.
	Err() error

	// Calls reports how many responses this session has requested.
	Calls() int

	// Age reports the time since the session was established.
	Age() time.Duration

	// ShouldReconnect reports whether the session has reached the proactive
	// reconnection threshold. The caller decides when it is safe to act.
	ShouldReconnect() bool

	// Dropped reports how many malformed inbound frames have been discarded.
	Dropped() int

	// Close terminates the session and releases the connection. Idempotent.
	Close() error
}

// Dialer abstracts Connect so the orchestrator can be tested without a
// network. *Client is the production implementation.
type Dialer interface {
	Connect(ctx context.Context) (SessionHandle, error)
}

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithModel sets the model query parameter.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithBaseURL overrides the WebSocket endpoint. Primarily used in tests to
// point at a local mock server.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithSessionTTL overrides the assumed hard session lifetime ceiling.
func WithSessionTTL(ttl time.Duration) Option {
	return func(c *Client) { c.sessionTTL = ttl }
}

// WithReconnectFraction sets the fraction of the session TTL after which
// ShouldReconnect reports true. Must be in (0, 1].
func WithReconnectFraction(f float64) Option {
	return func(c *Client) { c.reconnectFraction = f }
}

// Client dials realtime sessions. Safe for concurrent use; each Connect
// yields an independent session.
type Client struct {
	apiKey            string
	model             string
	baseURL           string
	sessionTTL        time.Duration
	reconnectFraction float64
	cfg               SessionConfig
}

// New creates a Client for the given API key and session configuration.
func New(apiKey string, cfg SessionConfig, opts ...Option) *Client {
	c := &Client{
		apiKey:            apiKey,
		model:             defaultModel,
		baseURL:           defaultBaseURL,
		sessionTTL:        defaultSessionTTL,
		reconnectFraction: defaultReconnectFraction,
		cfg:               cfg,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Connect establishes a session and sends the one-time session configuration.
// The returned handle is ready to accept audio as soon as Connect returns.
func (c *Client) Connect(ctx context.Context) (SessionHandle, error) {
	wsURL := fmt.Sprintf("%s?model=%s", c.baseURL, c.model)

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Authorization": []string{"Bearer " + c.apiKey},
			"OpenAI-Beta":   []string{"realtime=v1"},
		},
	})
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("realtime: dial: %w", ErrInvalidAPIKey)
		}
		return nil, fmt.Errorf("realtime: dial: %w", err)
	}

	sessCtx, sessCancel := context.WithCancel(context.Background())
	sess := &Session{
		conn:              conn,
		events:            make(chan Event, eventBufferDepth),
		createdAt:         time.Now(),
		ttl:               c.sessionTTL,
		reconnectFraction: c.reconnectFraction,
		ctx:               sessCtx,
		cancel:            sessCancel,
	}

	if err := sess.sendSessionUpdate(c.cfg); err != nil {
		sessCancel()
		conn.Close(websocket.StatusInternalError, "session update failed")
		return nil, fmt.Errorf("realtime: session update: %w", err)
	}

	go sess.receiveLoop()

	return sess, nil
}

var _ Dialer = (*Client)(nil)
