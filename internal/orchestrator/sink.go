package orchestrator

import (
	"encoding/json"

	"github.com/auricle-dev/auricle/internal/errcode"
)

// StatusEvent is one status broadcast. Both boolean fields are always set;
// the display side never infers state from having sent a command, so a
// partial status would desynchronize it.
type StatusEvent struct {
	// Status is the protocol status string: "listening", "paused", "ready",
	// or "max_calls_reached".
	Status string

	IsListening bool
	IsPaused    bool
}

// Sink receives the orchestrator's outbound events, in the order the
// transitions occur. The control adapter is the production implementation.
// Implementations must not block; the orchestrator's event loop calls them
// inline.
type Sink interface {
	// Status is emitted on every state transition.
	Status(ev StatusEvent)

	// NewResponse marks the start of a flush, before any transcript deltas
	// for the upcoming response arrive.
	NewResponse()

	// TranscriptDelta carries one incremental text fragment.
	TranscriptDelta(delta string)

	// Response carries the raw completed-response event from the API.
	Response(data json.RawMessage)

	// APICallCount reports the cumulative call tally after each flush.
	APICallCount(count int)

	// AudioLevel reports the throttled normalized amplitude, 0..100.
	AudioLevel(level int)

	// Error reports a structured failure.
	Error(rec errcode.Record)

	// Debug carries free-form troubleshooting messages for the overlay.
	Debug(message string)
}

// NopSink discards all events. Useful as a default and in tests that only
// exercise state transitions.
type NopSink struct{}

var _ Sink = NopSink{}

func (NopSink) Status(StatusEvent)       {}
func (NopSink) NewResponse()             {}
func (NopSink) TranscriptDelta(string)   {}
func (NopSink) Response(json.RawMessage) {}
func (NopSink) APICallCount(int)         {}
func (NopSink) AudioLevel(int)           {}
func (NopSink) Error(errcode.Record)     {}
func (NopSink) Debug(string)             {}
