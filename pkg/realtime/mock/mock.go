// Package mock provides in-memory doubles for realtime.Dialer and
// realtime.SessionHandle so the orchestrator can be tested without a network.
package mock

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/auricle-dev/auricle/pkg/realtime"
)

// Session is a scripted [realtime.SessionHandle]. Server events are injected
// with the Emit helpers; outbound traffic is recorded for inspection. All
// methods are safe for concurrent use.
type Session struct {
	mu              sync.Mutex
	events          chan realtime.Event
	sent            [][]byte
	commits         int
	closed          bool
	err             error
	eventsClosed    bool
	age             time.Duration
	shouldReconnect bool
	dropped         int
	sendErr         error
	commitErr       error
}

var _ realtime.SessionHandle = (*Session)(nil)

// NewSession returns a live mock session with a buffered event channel.
func NewSession() *Session {
	return &Session{events: make(chan realtime.Event, 64)}
}

func (s *Session) SendAudio(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return realtime.ErrSessionClosed
	}
	if s.sendErr != nil {
		return s.sendErr
	}
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	s.sent = append(s.sent, buf)
	return nil
}

func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return realtime.ErrSessionClosed
	}
	if s.commitErr != nil {
		return s.commitErr
	}
	s.commits++
	return nil
}

func (s *Session) Events() <-chan realtime.Event { return s.events }

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *Session) Age() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.age
}

func (s *Session) ShouldReconnect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shouldReconnect
}

func (s *Session) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if !s.eventsClosed {
		s.eventsClosed = true
		close(s.events)
	}
	return nil
}

// ── Test controls ─────────────────────────────────────────────────────────────

// Emit injects one server event.
func (s *Session) Emit(evt realtime.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eventsClosed {
		return
	}
	s.events <- evt
}

// EmitTranscriptDelta injects an incremental text fragment.
func (s *Session) EmitTranscriptDelta(delta string) {
	s.Emit(realtime.Event{
		Kind:  realtime.KindTranscriptDelta,
		Type:  "response.audio_transcript.delta",
		Delta: delta,
	})
}

// EmitResponseDone injects a completed-response event.
func (s *Session) EmitResponseDone() {
	s.Emit(realtime.Event{
		Kind: realtime.KindResponseDone,
		Type: "response.done",
		Raw:  json.RawMessage(`{"type":"response.done"}`),
	})
}

// EmitError injects an API error event with the given code and message.
func (s *Session) EmitError(code, message string) {
	s.Emit(realtime.Event{
		Kind:    realtime.KindError,
		Type:    "error",
		Code:    code,
		Message: message,
	})
}

// FailConnection simulates a transport-level drop: Err is set and the event
// channel closes.
func (s *Session) FailConnection(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
	if !s.eventsClosed {
		s.eventsClosed = true
		close(s.events)
	}
}

// SetShouldReconnect controls the proactive-reconnect flag.
func (s *Session) SetShouldReconnect(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shouldReconnect = v
}

// SetAge sets the reported session age.
func (s *Session) SetAge(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.age = d
}

// SetDropped sets the reported count of discarded malformed frames.
func (s *Session) SetDropped(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped = n
}

// FailSends makes subsequent SendAudio calls return err.
func (s *Session) FailSends(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendErr = err
}

// Sent returns a copy of all transmitted PCM payloads so far.
func (s *Session) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.sent))
	copy(out, s.sent)
	return out
}

// SentBytes returns the total transmitted payload size.
func (s *Session) SentBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.sent {
		n += len(p)
	}
	return n
}

// Commits reports the number of Commit calls.
func (s *Session) Commits() int { return s.Calls() }

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Dialer is a scripted [realtime.Dialer]. Each successful Connect hands out
// a fresh [Session]; failures can be queued with FailNext.
type Dialer struct {
	mu       sync.Mutex
	errQueue []error
	sessions []*Session
	dials    int
}

var _ realtime.Dialer = (*Dialer)(nil)

// NewDialer returns a Dialer whose every Connect succeeds until FailNext
// queues errors.
func NewDialer() *Dialer { return &Dialer{} }

func (d *Dialer) Connect(_ context.Context) (realtime.SessionHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.errQueue) > 0 {
		err := d.errQueue[0]
		d.errQueue = d.errQueue[1:]
		if err != nil {
			return nil, err
		}
	}
	s := NewSession()
	d.sessions = append(d.sessions, s)
	return s, nil
}

// FailNext queues errors to return from upcoming Connect calls, in order.
// A nil entry means that dial succeeds.
func (d *Dialer) FailNext(errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errQueue = append(d.errQueue, errs...)
}

// Dials reports how many Connect calls have been made.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Session returns the i-th session handed out, or nil.
func (d *Dialer) Session(i int) *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.sessions) {
		return nil
	}
	return d.sessions[i]
}

// Last returns the most recently handed-out session, or nil.
func (d *Dialer) Last() *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sessions) == 0 {
		return nil
	}
	return d.sessions[len(d.sessions)-1]
}
