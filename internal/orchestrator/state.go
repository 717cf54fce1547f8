package orchestrator

// State is the orchestrator's session state. It has a single writer, the
// orchestrator's event loop; everyone else reads it through [Snapshot].
type State int

const (
	// Idle: no capture running. Initial state, and the state after the
	// maximum-call cap is reached.
	Idle State = iota

	// Listening: capture loop active, frames flowing through the gate into
	// the buffer.
	Listening

	// Paused: capture suspended by operator command. The buffer was cleared
	// on entry so no stale pre-pause audio survives a resume.
	Paused

	// AwaitingResponse: a flush has been transmitted and the orchestrator is
	// waiting for the completed-response event.
	AwaitingResponse

	// Cooldown: post-response delay before capture resumes, so the system
	// does not record its own playback as new input.
	Cooldown

	// Reconnecting: the API session is being replaced. Transient; the prior
	// state is restored on success.
	Reconnecting

	// Stopped: terminal. All tasks cancelled, buffer cleared, session closed.
	Stopped
)

// String returns the lowercase state name used in logs.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Paused:
		return "paused"
	case AwaitingResponse:
		return "awaiting_response"
	case Cooldown:
		return "cooldown"
	case Reconnecting:
		return "reconnecting"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StatusLabel maps a state to the status string of the control protocol.
// The protocol exposes a coarser view than the internal state machine.
func (s State) StatusLabel() string {
	switch s {
	case Listening:
		return "listening"
	case Paused:
		return "paused"
	default:
		return "ready"
	}
}

// Snapshot is a point-in-time view of the orchestrator for readers outside
// the event loop, such as the control adapter's per-client greeting.
type Snapshot struct {
	State       State
	IsListening bool
	IsPaused    bool
	APICalls    int

	// Transcript is the accumulated text of the in-flight response, empty
	// outside AwaitingResponse. Lets a client joining mid-turn catch up on
	// the deltas it missed.
	Transcript string
}
