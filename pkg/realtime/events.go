package realtime

import "encoding/json"

// EventKind classifies a server event into the categories the session
// orchestrator acts on.
type EventKind int

const (
	// KindSessionReady reports that the server acknowledged the session
	// configuration (session.created / session.updated).
	KindSessionReady EventKind = iota

	// KindTranscriptDelta carries one incremental piece of generated text.
	KindTranscriptDelta

	// KindResponseDone marks the end of a generated response.
	KindResponseDone

	// KindError carries an error event from the server.
	KindError

	// KindOther covers well-formed events of types the pipeline does not
	// act on.
	KindOther
)

// Event is one inbound event from the hosted speech API, decoded enough for
// the orchestrator to act on. Raw preserves the full server payload for relay.
type Event struct {
	Kind EventKind

	// Type is the server's event type string (e.g. "response.done").
	Type string

	// Delta holds incremental text for KindTranscriptDelta.
	Delta string

	// Code and Message describe a KindError event.
	Code    string
	Message string

	// Raw is the complete server payload as received.
	Raw json.RawMessage
}

// ── Wire types (outgoing) ──────────────────────────────────────────────────────

type sessionUpdateMessage struct {
	Type    string        `json:"type"`
	Session sessionParams `json:"session"`
}

type sessionParams struct {
	Modalities        []string           `json:"modalities,omitempty"`
	Instructions      string             `json:"instructions,omitempty"`
	Voice             string             `json:"voice,omitempty"`
	InputAudioFormat  string             `json:"input_audio_format"`
	OutputAudioFormat string             `json:"output_audio_format"`
	TurnDetection     *turnDetectionWire `json:"turn_detection,omitempty"`
	Temperature       float64            `json:"temperature,omitempty"`
}

type turnDetectionWire struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty"`
}

type appendAudioMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio"` // base64-encoded PCM16
}

// ── Wire types (incoming) ──────────────────────────────────────────────────────

type serverEvent struct {
	Type  string             `json:"type"`
	Delta string             `json:"delta,omitempty"`
	Error *serverErrorDetail `json:"error,omitempty"`
}

// serverErrorDetail is the nested error object in an error event:
// {"type":"error","error":{"type":"...","code":"...","message":"..."}}.
type serverErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
