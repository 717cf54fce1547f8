package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// eventBufferDepth is the capacity of the inbound event channel. Deep enough
// that a briefly busy orchestrator loop does not stall the read loop.
const eventBufferDepth = 64

// appendChunkBytes caps the PCM payload of one input_audio_buffer.append
// message. Flushes can carry several seconds of audio; chunking keeps
// individual WebSocket frames reasonably sized.
const appendChunkBytes = 32 * 1024

// Session is the live connection to the hosted speech API. Created by
// [Client.Connect]; never shared outside the client and its caller.
type Session struct {
	conn              *websocket.Conn
	events            chan Event
	createdAt         time.Time
	ttl               time.Duration
	reconnectFraction float64

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex // serializes conn writes

	mu      sync.Mutex
	errVal  error
	closed  bool
	calls   int
	dropped int // malformed inbound frames discarded

	closeOnce sync.Once
}

var _ SessionHandle = (*Session)(nil)

// sendSessionUpdate transmits the one-time session configuration.
func (s *Session) sendSessionUpdate(cfg SessionConfig) error {
	params := sessionParams{
		Modalities:        cfg.Modalities,
		Instructions:      cfg.Instructions,
		Voice:             cfg.Voice,
		InputAudioFormat:  "pcm16",
		OutputAudioFormat: "pcm16",
		Temperature:       cfg.Temperature,
	}
	if cfg.TurnDetection != (TurnDetection{}) {
		params.TurnDetection = &turnDetectionWire{
			Type:              "server_vad",
			Threshold:         cfg.TurnDetection.Threshold,
			SilenceDurationMs: int(cfg.TurnDetection.SilenceDuration / time.Millisecond),
		}
	}
	return s.writeJSON(sessionUpdateMessage{Type: "session.update", Session: params})
}

func (s *Session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("realtime: marshal: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Write(s.ctx, websocket.MessageText, data)
}

// SendAudio implements [SessionHandle]. Audio is base64-encoded PCM16 and
// appended to the server's input buffer in bounded chunks.
func (s *Session) SendAudio(pcm []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}

	for off := 0; off < len(pcm); off += appendChunkBytes {
		end := off + appendChunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		msg := appendAudioMessage{
			Type:  "input_audio_buffer.append",
			Audio: base64.StdEncoding.EncodeToString(pcm[off:end]),
		}
		if err := s.writeJSON(msg); err != nil {
			return fmt.Errorf("realtime: send audio: %w", err)
		}
	}
	return nil
}

// Commit implements [SessionHandle]: it finalizes the input buffer and asks
// the server to generate a response.
func (s *Session) Commit() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}

	if err := s.writeJSON(map[string]string{"type": "input_audio_buffer.commit"}); err != nil {
		return fmt.Errorf("realtime: commit: %w", err)
	}
	if err := s.writeJSON(map[string]string{"type": "response.create"}); err != nil {
		return fmt.Errorf("realtime: response create: %w", err)
	}

	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return nil
}

// receiveLoop owns the events channel: it reads server frames, decodes them,
// and closes the channel when the connection ends.
func (s *Session) receiveLoop() {
	defer close(s.events)

	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return // deliberate Close
			}
			s.setErr(fmt.Errorf("%w: %v", ErrConnectionLost, err))
			return
		}

		evt, ok := s.decode(data)
		if !ok {
			continue
		}

		select {
		case s.events <- evt:
		case <-s.ctx.Done():
			return
		}
	}
}

// decode maps one raw server frame to an [Event]. Malformed frames are logged
// and dropped; the session continues.
func (s *Session) decode(data []byte) (Event, bool) {
	var wire serverEvent
	if err := json.Unmarshal(data, &wire); err != nil || wire.Type == "" {
		s.mu.Lock()
		s.dropped++
		n := s.dropped
		s.mu.Unlock()
		slog.Warn("realtime: dropping malformed server event", "dropped_total", n, "err", err)
		return Event{}, false
	}

	evt := Event{Type: wire.Type, Raw: json.RawMessage(data)}
	switch wire.Type {
	case "session.created", "session.updated":
		evt.Kind = KindSessionReady

	case "response.text.delta", "response.audio_transcript.delta", "response.output_text.delta":
		evt.Kind = KindTranscriptDelta
		evt.Delta = wire.Delta

	case "response.done":
		evt.Kind = KindResponseDone

	case "error":
		evt.Kind = KindError
		evt.Code = "unknown_error"
		evt.Message = "unknown error"
		if wire.Error != nil {
			if wire.Error.Code != "" {
				evt.Code = wire.Error.Code
			}
			if wire.Error.Message != "" {
				evt.Message = wire.Error.Message
			}
		}

	default:
		evt.Kind = KindOther
	}
	return evt, true
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errVal == nil {
		s.errVal = err
	}
}

// Events implements [SessionHandle].
func (s *Session) Events() <-chan Event { return s.events }

// Err implements [SessionHandle].
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errVal
}

// Calls implements [SessionHandle].
func (s *Session) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Age implements [SessionHandle].
func (s *Session) Age() time.Duration { return time.Since(s.createdAt) }

// Dropped reports how many malformed inbound frames have been discarded.
func (s *Session) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// ShouldReconnect implements [SessionHandle].
func (s *Session) ShouldReconnect() bool {
	threshold := time.Duration(float64(s.ttl) * s.reconnectFraction)
	return s.Age() >= threshold
}

// Close implements [SessionHandle]. Idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.cancel()
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}
