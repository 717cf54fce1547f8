package control

import (
	"encoding/json"

	"github.com/auricle-dev/auricle/internal/errcode"
)

// Inbound message types.
const (
	typeControl = "control"
)

// Control actions accepted from clients.
const (
	actionStart  = "start_listening"
	actionPause  = "pause_listening"
	actionResume = "resume_listening"
	actionStop   = "stop_listening"
)

// inboundMessage is the envelope for client→server messages. Only control
// messages are defined today; unknown types are logged and dropped.
type inboundMessage struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

// statusMessage reports the orchestrator state. Both boolean flags are always
// present so clients never have to infer one from the other.
type statusMessage struct {
	Type        string `json:"type"`
	Status      string `json:"status"`
	IsListening bool   `json:"is_listening"`
	IsPaused    bool   `json:"is_paused"`
}

// newResponseMessage tells clients to clear their display before the next
// stream of transcript deltas.
type newResponseMessage struct {
	Type string `json:"type"`
}

// transcriptMessage carries one incremental text fragment.
type transcriptMessage struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
}

// responseMessage carries a completed response payload verbatim.
type responseMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// apiCallCountMessage reports the cumulative flush count.
type apiCallCountMessage struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// audioLevelMessage carries the throttled input level, 0 to 100.
type audioLevelMessage struct {
	Type  string `json:"type"`
	Level int    `json:"level"`
}

// errorMessage wraps an error record for display.
type errorMessage struct {
	Type  string         `json:"type"`
	Error errcode.Record `json:"error"`
}

// debugMessage carries free-form diagnostic text for developer overlays.
type debugMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// configMessage is sent once to each client on connect so UIs can render
// limits without a separate fetch.
type configMessage struct {
	Type        string `json:"type"`
	MaxAPICalls int    `json:"max_api_calls"`
}
