package control

import (
	"encoding/json"
	"log/slog"

	"github.com/auricle-dev/auricle/internal/errcode"
	"github.com/auricle-dev/auricle/internal/orchestrator"
)

// The server doubles as the orchestrator's event sink; everything the
// orchestrator emits is fanned out to the connected overlays.
var _ orchestrator.Sink = (*Server)(nil)

func (s *Server) Status(ev orchestrator.StatusEvent) {
	s.broadcast(statusMessage{
		Type:        "status",
		Status:      ev.Status,
		IsListening: ev.IsListening,
		IsPaused:    ev.IsPaused,
	})
}

func (s *Server) NewResponse() {
	s.broadcast(newResponseMessage{Type: "new_response"})
}

func (s *Server) TranscriptDelta(delta string) {
	s.broadcast(transcriptMessage{Type: "transcript", Delta: delta})
}

func (s *Server) Response(data json.RawMessage) {
	s.broadcast(responseMessage{Type: "response", Data: data})
}

func (s *Server) APICallCount(count int) {
	s.broadcast(apiCallCountMessage{Type: "api_call_count", Count: count})
}

func (s *Server) AudioLevel(level int) {
	s.broadcast(audioLevelMessage{Type: "audio_level", Level: level})
}

func (s *Server) Error(rec errcode.Record) {
	s.broadcast(errorMessage{Type: "error", Error: rec})
}

func (s *Server) Debug(msg string) {
	s.broadcast(debugMessage{Type: "debug", Message: msg})
}

// dispatch parses one inbound frame and applies it. Malformed input is
// answered with an error message on the offending client only; the
// orchestrator never sees it.
func (s *Server) dispatch(c *client, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("control: invalid json from client", "err", err)
		s.sendTo(c, errorMessage{
			Type:  "error",
			Error: errcode.New(errcode.InvalidJSON, "message is not valid JSON"),
		})
		return
	}

	if msg.Type == "" {
		s.sendTo(c, errorMessage{
			Type:  "error",
			Error: errcode.New(errcode.MissingField, "message has no type field"),
		})
		return
	}
	if msg.Type != typeControl {
		slog.Warn("control: unknown message type", "type", msg.Type)
		return
	}
	if msg.Action == "" {
		s.sendTo(c, errorMessage{
			Type:  "error",
			Error: errcode.New(errcode.MissingField, "control message has no action field"),
		})
		return
	}

	switch msg.Action {
	case actionStart:
		s.cmd.Start()
	case actionPause:
		s.cmd.Pause()
	case actionResume:
		s.cmd.Resume()
	case actionStop:
		s.cmd.Stop()
	default:
		slog.Warn("control: unknown action", "action", msg.Action)
		s.sendTo(c, errorMessage{
			Type:  "error",
			Error: errcode.New(errcode.InvalidValue, "unknown control action "+msg.Action),
		})
	}
}
