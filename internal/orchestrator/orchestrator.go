// Package orchestrator owns the capture→gate→buffer→send loop, the session
// state machine, cooldown scheduling, and proactive reconnection.
//
// The design is a single event loop: control commands, captured frames, API
// events, and timers are all multiplexed onto one goroutine that is the sole
// writer of [State]. The capture loop is the only other goroutine; it blocks
// on a pause gate while capture is suspended and otherwise hands frames to
// the event loop over a channel. The [Buffer] lock still guards every buffer
// access because the capture handoff and the flush path interleave at
// suspension points.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/auricle-dev/auricle/internal/errcode"
	"github.com/auricle-dev/auricle/internal/observe"
	"github.com/auricle-dev/auricle/pkg/audio"
	"github.com/auricle-dev/auricle/pkg/gate"
	"github.com/auricle-dev/auricle/pkg/realtime"
	"golang.org/x/sync/errgroup"
)

// Default tuning parameters.
const (
	defaultCooldown        = 10 * time.Second
	defaultResponseTimeout = 30 * time.Second
	defaultLevelInterval   = 100 * time.Millisecond

	defaultReconnectAttempts = 3
	defaultReconnectDelay    = 2 * time.Second
	defaultReconnectCheck    = 1 * time.Second

	// commandQueueDepth buffers control commands so the adapter never blocks
	// on a busy event loop.
	commandQueueDepth = 16

	// frameQueueDepth buffers the capture→loop handoff. One frame is 20ms,
	// so even a briefly stalled loop loses nothing.
	frameQueueDepth = 16
)

// CapturePolicy decides whether the capture loop keeps accumulating into a
// fresh buffer while a response is awaited, or suspends entirely.
type CapturePolicy string

const (
	// CaptureContinue keeps capturing during AwaitingResponse. Speech spoken
	// while the API is thinking is preserved for the next turn.
	CaptureContinue CapturePolicy = "continue"

	// CaptureSuspend halts capture during AwaitingResponse and discards
	// nothing because nothing is read.
	CaptureSuspend CapturePolicy = "suspend"
)

// Config tunes the orchestrator. Zero values take the documented defaults.
type Config struct {
	// Cooldown is the post-response delay before capture resumes.
	Cooldown time.Duration

	// ResponseTimeout bounds the wait for a completed response after a
	// flush. It applies only while in AwaitingResponse.
	ResponseTimeout time.Duration

	// LevelInterval throttles audio-level broadcasts. Default 100ms, i.e.
	// at most 10 events per second against the 50 Hz frame rate.
	LevelInterval time.Duration

	// MaxAPICalls caps the cumulative number of flushes. Zero or negative
	// means unlimited.
	MaxAPICalls int

	// CapturePolicy selects the behavior during AwaitingResponse.
	// Default CaptureContinue.
	CapturePolicy CapturePolicy

	// ReconnectAttempts and ReconnectDelay shape the retry loop after a
	// connection loss or expiry.
	ReconnectAttempts int
	ReconnectDelay    time.Duration

	// ReconnectCheck is how often session age is checked against the
	// proactive-reconnect threshold.
	ReconnectCheck time.Duration
}

func (c Config) withDefaults() Config {
	if c.Cooldown <= 0 {
		c.Cooldown = defaultCooldown
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = defaultResponseTimeout
	}
	if c.LevelInterval <= 0 {
		c.LevelInterval = defaultLevelInterval
	}
	if c.CapturePolicy == "" {
		c.CapturePolicy = CaptureContinue
	}
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = defaultReconnectAttempts
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = defaultReconnectDelay
	}
	if c.ReconnectCheck <= 0 {
		c.ReconnectCheck = defaultReconnectCheck
	}
	return c
}

// command is one state-machine input.
type command int

const (
	cmdStart command = iota
	cmdPause
	cmdResume
	cmdStop
	cmdFlush
)

// Orchestrator coordinates the capture loop, the activity gate, the session
// buffer, and the realtime session under a single event loop.
type Orchestrator struct {
	cfg     Config
	dialer  realtime.Dialer
	capture audio.Capture
	gate    gate.Classifier
	sink    Sink
	metrics *observe.Metrics

	buffer *Buffer

	cmds       chan command
	frames     chan audio.Frame
	captureErr chan error

	// Pause gate: runCh is closed while capture may run and replaced with a
	// fresh open channel while suspended. Written only by the event loop.
	gateMu    sync.Mutex
	runCh     chan struct{}
	capturing bool

	// Event-loop state. Owned by the loop goroutine.
	termErr   error
	state     State
	sess      realtime.SessionHandle
	events    <-chan realtime.Event
	accum     strings.Builder
	apiCalls  int
	lastLevel time.Time
	flushedAt time.Time

	cooldownTimer   *time.Timer
	cooldownC       <-chan time.Time
	respTimer       *time.Timer
	respC           <-chan time.Time
	reconnectTicker *time.Ticker

	snapMu sync.Mutex
	snap   Snapshot
}

// New assembles an orchestrator. The sink may be nil, in which case events
// are discarded.
func New(dialer realtime.Dialer, capture audio.Capture, cls gate.Classifier, sink Sink, cfg Config) *Orchestrator {
	if sink == nil {
		sink = NopSink{}
	}
	return &Orchestrator{
		cfg:        cfg.withDefaults(),
		dialer:     dialer,
		capture:    capture,
		gate:       cls,
		sink:       sink,
		metrics:    observe.DefaultMetrics(),
		buffer:     &Buffer{},
		cmds:       make(chan command, commandQueueDepth),
		frames:     make(chan audio.Frame, frameQueueDepth),
		captureErr: make(chan error, 1),
		runCh:      make(chan struct{}),
		state:      Idle,
	}
}

// SetSink replaces the event sink. The control server is both the sink and
// a consumer of the orchestrator, so one side binds late; call this before
// Run.
func (o *Orchestrator) SetSink(s Sink) {
	if s == nil {
		s = NopSink{}
	}
	o.sink = s
}

// ── Control surface ────────────────────────────────────────────────────────────

// Start requests the Idle→Listening transition.
func (o *Orchestrator) Start() { o.send(cmdStart) }

// Pause requests suspension of capture. The buffer is cleared so no stale
// pre-pause audio can be sent after a resume.
func (o *Orchestrator) Pause() { o.send(cmdPause) }

// Resume requests the Paused→Listening transition. The activity gate is
// fully reset so post-resume behavior matches a fresh start.
func (o *Orchestrator) Resume() { o.send(cmdResume) }

// Stop requests the terminal transition: all tasks cancelled, buffer
// cleared, session closed.
func (o *Orchestrator) Stop() { o.send(cmdStop) }

// Flush requests an explicit end-of-utterance: the buffer is drained and
// transmitted without waiting for the gate.
func (o *Orchestrator) Flush() { o.send(cmdFlush) }

func (o *Orchestrator) send(c command) {
	select {
	case o.cmds <- c:
	default:
		slog.Warn("orchestrator: command queue full, dropping command", "command", c)
	}
}

// Snapshot returns a point-in-time view for readers outside the event loop.
func (o *Orchestrator) Snapshot() Snapshot {
	o.snapMu.Lock()
	defer o.snapMu.Unlock()
	return o.snap
}

// BufferedFrames reports how many captured frames are pending transmission.
func (o *Orchestrator) BufferedFrames() int {
	return o.buffer.Len()
}

// ── Run ───────────────────────────────────────────────────────────────────────

// Run executes the orchestrator until the context is cancelled or a stop
// command lands. A fatal error ends the run and is returned, so a caller
// supervising Run in a group is cancelled with it. The capture device is
// closed on return.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.capture.Start(); err != nil {
		return fmt.Errorf("orchestrator: starting capture: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return o.captureLoop(ctx)
	})
	g.Go(func() error {
		defer cancel()
		return o.eventLoop(ctx)
	})

	err := g.Wait()
	if cerr := o.capture.Close(); cerr != nil {
		slog.Warn("orchestrator: closing capture device", "err", cerr)
	}
	return err
}

// ── Capture loop ──────────────────────────────────────────────────────────────

// captureLoop reads frames from the device and hands them to the event loop.
// While capture is suspended it blocks on the pause gate, not on the device.
func (o *Orchestrator) captureLoop(ctx context.Context) error {
	for {
		select {
		case <-o.runnable():
		case <-ctx.Done():
			return nil
		}

		frame, err := o.capture.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			select {
			case o.captureErr <- err:
			default:
			}
			return nil
		}

		select {
		case o.frames <- frame:
		case <-ctx.Done():
			return nil
		}
	}
}

func (o *Orchestrator) runnable() <-chan struct{} {
	o.gateMu.Lock()
	defer o.gateMu.Unlock()
	return o.runCh
}

// setCapturing opens or closes the pause gate. Event-loop only.
func (o *Orchestrator) setCapturing(on bool) {
	o.gateMu.Lock()
	defer o.gateMu.Unlock()
	if on && !o.capturing {
		close(o.runCh)
		o.capturing = true
	} else if !on && o.capturing {
		o.runCh = make(chan struct{})
		o.capturing = false
	}
}

// ── Event loop ────────────────────────────────────────────────────────────────

func (o *Orchestrator) eventLoop(ctx context.Context) error {
	o.setState(Idle)

	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			o.setState(Stopped)
			return nil

		case cmd := <-o.cmds:
			if stop := o.handleCommand(ctx, cmd); stop {
				return o.termErr
			}

		case frame := <-o.frames:
			if stop := o.handleFrame(ctx, frame); stop {
				return o.termErr
			}

		case err := <-o.captureErr:
			// Device failures are fatal to the session: stop cleanly and
			// surface device_error.
			rec := errcode.FromError(err)
			slog.Error("orchestrator: capture failed", "err", err, "code", rec.Code)
			o.sink.Error(rec)
			o.metrics.RecordError(ctx, string(rec.Code))
			o.fatal(fmt.Errorf("orchestrator: capture: %w", err))
			return o.termErr

		case evt, ok := <-o.events:
			if !ok {
				if stop := o.handleDisconnect(ctx); stop {
					return o.termErr
				}
				continue
			}
			if stop := o.handleAPIEvent(ctx, evt); stop {
				return o.termErr
			}

		case <-o.reconnectCheckC(ctx):
			if stop := o.maybeProactiveReconnect(ctx); stop {
				return o.termErr
			}

		case <-o.cooldownC:
			o.cooldownC = nil
			if o.state == Cooldown {
				o.setState(Listening)
				o.setCapturing(true)
			}

		case <-o.respC:
			o.respC = nil
			if o.state != AwaitingResponse {
				continue
			}
			slog.Error("orchestrator: response timeout, reconnecting",
				"timeout", o.cfg.ResponseTimeout)
			o.sink.Error(errcode.New(errcode.Timeout, "no response from the speech API within the expected window"))
			o.sink.Debug("connection timeout, reconnecting")
			o.metrics.RecordError(ctx, string(errcode.Timeout))
			if stop := o.reconnect(ctx, "timeout", Listening); stop {
				return o.termErr
			}
		}
	}
}

// fatal records the error that ends the run and moves to Stopped. Run
// returns it so the process supervising the orchestrator shuts down too.
func (o *Orchestrator) fatal(err error) bool {
	o.termErr = err
	o.shutdown()
	o.setState(Stopped)
	return true
}

// reconnectCheckC lazily starts the proactive-reconnect ticker.
func (o *Orchestrator) reconnectCheckC(_ context.Context) <-chan time.Time {
	if o.reconnectTicker == nil {
		o.reconnectTicker = time.NewTicker(o.cfg.ReconnectCheck)
	}
	return o.reconnectTicker.C
}

// ── Commands ──────────────────────────────────────────────────────────────────

// handleCommand applies one state-machine input. Returns true when the loop
// must exit.
func (o *Orchestrator) handleCommand(ctx context.Context, cmd command) (stop bool) {
	switch cmd {
	case cmdStart:
		if o.state != Idle {
			slog.Warn("orchestrator: start ignored", "state", o.state)
			return false
		}
		if o.sess == nil {
			ok, fatal := o.connect(ctx)
			if !ok {
				return fatal
			}
		}
		o.buffer.Clear()
		o.gate.Reset()
		o.setState(Listening)
		o.setCapturing(true)
		o.sink.Debug("listening for speech")

	case cmdPause:
		switch o.state {
		case Listening, AwaitingResponse, Cooldown:
		default:
			slog.Warn("orchestrator: pause ignored", "state", o.state)
			return false
		}
		o.stopCooldown()
		o.setCapturing(false)
		o.buffer.Clear()
		o.setState(Paused)

	case cmdResume:
		if o.state != Paused {
			slog.Warn("orchestrator: resume ignored", "state", o.state)
			return false
		}
		o.buffer.Clear()
		o.gate.Reset()
		o.setState(Listening)
		o.setCapturing(true)

	case cmdStop:
		if o.state == Stopped {
			return true
		}
		o.shutdown()
		o.setState(Stopped)
		return true

	case cmdFlush:
		if o.state != Listening || o.buffer.Len() == 0 {
			return false
		}
		return o.flush(ctx)
	}
	return false
}

// connect establishes the initial session. ok reports success; stop is set
// for fatal failures that must end the run.
func (o *Orchestrator) connect(ctx context.Context) (ok, stop bool) {
	sess, err := o.dialer.Connect(ctx)
	if err != nil {
		rec := errcode.FromError(err)
		slog.Error("orchestrator: connect failed", "err", err, "code", rec.Code)
		o.sink.Error(rec)
		o.metrics.RecordError(ctx, string(rec.Code))
		if !rec.Recoverable {
			return false, o.fatal(fmt.Errorf("orchestrator: connect: %w", err))
		}
		return false, false
	}
	o.sess = sess
	o.events = sess.Events()
	return true, false
}

// ── Frames ────────────────────────────────────────────────────────────────────

func (o *Orchestrator) handleFrame(ctx context.Context, frame audio.Frame) (stop bool) {
	// A frame can arrive just after a pause or stop closed the gate; the
	// capture loop was already past the gate when the command landed.
	switch o.state {
	case Listening:
	case AwaitingResponse:
		if o.cfg.CapturePolicy != CaptureContinue {
			return false
		}
	default:
		return false
	}

	o.metrics.FramesCaptured.Add(ctx, 1)

	if now := time.Now(); now.Sub(o.lastLevel) >= o.cfg.LevelInterval {
		o.sink.AudioLevel(audio.Level(frame.Data))
		o.lastLevel = now
	}

	res := o.gate.Classify(frame)
	if res.Speech {
		o.buffer.Append(frame)
	}
	if res.Sustained && o.state == Listening {
		o.sink.Debug("speech detected, buffer ready")
		return o.flush(ctx)
	}
	return false
}

// ── Flush ─────────────────────────────────────────────────────────────────────

// flush atomically drains the buffer and transmits it, moving to
// AwaitingResponse. Returns true when a fatal error ended the run.
func (o *Orchestrator) flush(ctx context.Context) (stop bool) {
	if o.cfg.MaxAPICalls > 0 && o.apiCalls >= o.cfg.MaxAPICalls {
		slog.Info("orchestrator: maximum api calls reached", "max", o.cfg.MaxAPICalls)
		o.sink.Status(StatusEvent{Status: "max_calls_reached"})
		o.buffer.Clear()
		o.setCapturing(false)
		o.setState(Idle)
		return false
	}

	pcm := o.buffer.DrainPCM()
	if len(pcm) == 0 {
		return false
	}

	o.sink.NewResponse()
	o.sink.Debug(fmt.Sprintf("sending %d bytes to the speech API", len(pcm)))

	err := o.sess.SendAudio(pcm)
	if err == nil {
		err = o.sess.Commit()
	}
	if err != nil {
		return o.handleSendError(ctx, err)
	}

	o.apiCalls++
	o.updateSnapshotCalls()
	o.sink.APICallCount(o.apiCalls)
	o.metrics.APICalls.Add(ctx, 1)
	o.metrics.FlushBytes.Record(ctx, int64(len(pcm)))
	o.flushedAt = time.Now()
	o.accum.Reset()
	o.updateSnapshotTranscript()
	o.setState(AwaitingResponse)
	if o.cfg.CapturePolicy == CaptureSuspend {
		o.setCapturing(false)
	}
	o.startResponseTimeout()
	return false
}

func (o *Orchestrator) handleSendError(ctx context.Context, err error) (stop bool) {
	rec := errcode.FromError(err)
	slog.Error("orchestrator: transmit failed", "err", err, "code", rec.Code)
	o.sink.Error(rec)
	o.metrics.RecordError(ctx, string(rec.Code))
	if !rec.Recoverable {
		return o.fatal(fmt.Errorf("orchestrator: transmit: %w", err))
	}
	// Sends are never retried blindly; replace the session and resume
	// listening instead.
	return o.reconnect(ctx, "lost", Listening)
}

// ── API events ────────────────────────────────────────────────────────────────

func (o *Orchestrator) handleAPIEvent(ctx context.Context, evt realtime.Event) (stop bool) {
	switch evt.Kind {
	case realtime.KindSessionReady:
		slog.Debug("orchestrator: session ready", "type", evt.Type)

	case realtime.KindTranscriptDelta:
		o.accum.WriteString(evt.Delta)
		o.updateSnapshotTranscript()
		o.sink.TranscriptDelta(evt.Delta)

	case realtime.KindResponseDone:
		o.stopResponseTimeout()
		o.sink.Response(evt.Raw)
		o.sink.Debug("assistant response received")
		if !o.flushedAt.IsZero() {
			o.metrics.ResponseDuration.Record(ctx, time.Since(o.flushedAt).Seconds())
			o.flushedAt = time.Time{}
		}
		slog.Info("orchestrator: response complete", "transcript_len", o.accum.Len())
		o.accum.Reset()
		o.updateSnapshotTranscript()
		if o.state == AwaitingResponse {
			o.setCapturing(false)
			o.setState(Cooldown)
			o.startCooldown()
		}

	case realtime.KindError:
		rec := errcode.FromServerEvent(evt.Code, evt.Message)
		slog.Error("orchestrator: api error", "code", evt.Code, "message", evt.Message)
		o.sink.Error(rec)
		o.metrics.RecordError(ctx, string(rec.Code))
		o.stopResponseTimeout()
		switch {
		case rec.Code == errcode.SessionExpired:
			// The hosted ceiling fired before the proactive reconnect did.
			resume := o.state
			if resume == AwaitingResponse || resume == Cooldown || resume == Reconnecting {
				resume = Listening
			}
			return o.reconnect(ctx, "expired", resume)
		case !rec.Recoverable:
			return o.fatal(fmt.Errorf("orchestrator: speech api: %s (%s)", rec.Message, rec.Code))
		case o.state == AwaitingResponse:
			// The turn is lost; go back to listening.
			o.setState(Listening)
			o.setCapturing(true)
		}

	default:
		slog.Debug("orchestrator: unhandled api event", "type", evt.Type)
	}
	return false
}

// handleDisconnect runs when the session's event channel closes underneath
// the loop. Returns true when the loop must exit.
func (o *Orchestrator) handleDisconnect(ctx context.Context) (stop bool) {
	o.events = nil
	err := o.sess.Err()
	if err == nil {
		// Deliberate close; nothing to recover.
		return false
	}

	rec := errcode.FromError(err)
	slog.Error("orchestrator: session lost", "err", err)
	o.sink.Error(rec)
	o.metrics.RecordError(ctx, string(rec.Code))
	o.stopResponseTimeout()

	resume := o.state
	if resume == AwaitingResponse || resume == Cooldown {
		// The in-flight turn is unrecoverable; resume listening after the
		// session is replaced.
		resume = Listening
	}
	return o.reconnect(ctx, "lost", resume)
}

// ── Reconnection ──────────────────────────────────────────────────────────────

// maybeProactiveReconnect replaces the session before the hosted ceiling,
// but never mid-turn and never with audio buffered for sending.
func (o *Orchestrator) maybeProactiveReconnect(ctx context.Context) (stop bool) {
	if o.sess == nil {
		return false
	}
	if o.state != Listening && o.state != Idle {
		return false
	}
	if o.buffer.Len() > 0 {
		return false
	}
	if !o.sess.ShouldReconnect() {
		return false
	}
	slog.Info("orchestrator: proactive reconnect", "session_age", o.sess.Age())
	return o.reconnect(ctx, "proactive", o.state)
}

// reconnect replaces the API session, retrying per config, and restores the
// given state on success. Returns true when retries are exhausted and the
// run must end.
func (o *Orchestrator) reconnect(ctx context.Context, reason string, resume State) (stop bool) {
	wasCapturing := resume == Listening
	o.setCapturing(false)
	o.setState(Reconnecting)
	o.closeSession(ctx)

	for attempt := 1; attempt <= o.cfg.ReconnectAttempts; attempt++ {
		slog.Info("orchestrator: reconnecting",
			"reason", reason,
			"attempt", attempt,
			"max_attempts", o.cfg.ReconnectAttempts,
		)

		sess, err := o.dialer.Connect(ctx)
		if err == nil {
			o.sess = sess
			o.events = sess.Events()
			o.metrics.RecordReconnect(ctx, reason)
			slog.Info("orchestrator: reconnected", "attempt", attempt)
			o.setState(resume)
			if wasCapturing {
				o.setCapturing(true)
			}
			return false
		}

		rec := errcode.FromError(err)
		slog.Warn("orchestrator: reconnection attempt failed", "attempt", attempt, "err", err)
		if !rec.Recoverable {
			o.sink.Error(rec)
			o.metrics.RecordError(ctx, string(rec.Code))
			return o.fatal(fmt.Errorf("orchestrator: reconnect: %w", err))
		}

		select {
		case <-ctx.Done():
			o.shutdown()
			o.setState(Stopped)
			return true
		case <-time.After(o.cfg.ReconnectDelay):
		}
	}

	slog.Error("orchestrator: reconnection failed after max attempts",
		"max_attempts", o.cfg.ReconnectAttempts)
	o.sink.Error(errcode.New(errcode.ConnectionLost, "could not re-establish the speech API session"))
	return o.fatal(fmt.Errorf("orchestrator: reconnection failed after %d attempts: %w",
		o.cfg.ReconnectAttempts, realtime.ErrConnectionLost))
}

// ── Timers ────────────────────────────────────────────────────────────────────

func (o *Orchestrator) startCooldown() {
	o.stopCooldown()
	o.cooldownTimer = time.NewTimer(o.cfg.Cooldown)
	o.cooldownC = o.cooldownTimer.C
}

func (o *Orchestrator) stopCooldown() {
	if o.cooldownTimer != nil {
		o.cooldownTimer.Stop()
		o.cooldownTimer = nil
		o.cooldownC = nil
	}
}

func (o *Orchestrator) startResponseTimeout() {
	o.stopResponseTimeout()
	o.respTimer = time.NewTimer(o.cfg.ResponseTimeout)
	o.respC = o.respTimer.C
}

func (o *Orchestrator) stopResponseTimeout() {
	if o.respTimer != nil {
		o.respTimer.Stop()
		o.respTimer = nil
		o.respC = nil
	}
}

// ── State & shutdown ──────────────────────────────────────────────────────────

// setState transitions and broadcasts a complete status event. Event-loop
// only.
func (o *Orchestrator) setState(s State) {
	prev := o.state
	o.state = s

	o.snapMu.Lock()
	o.snap.State = s
	o.snap.IsListening = s == Listening
	o.snap.IsPaused = s == Paused
	o.snapMu.Unlock()

	if prev != s {
		slog.Info("orchestrator: state transition", "from", prev, "to", s)
	}
	o.sink.Status(StatusEvent{
		Status:      s.StatusLabel(),
		IsListening: s == Listening,
		IsPaused:    s == Paused,
	})
}

func (o *Orchestrator) updateSnapshotCalls() {
	o.snapMu.Lock()
	o.snap.APICalls = o.apiCalls
	o.snapMu.Unlock()
}

func (o *Orchestrator) updateSnapshotTranscript() {
	o.snapMu.Lock()
	o.snap.Transcript = o.accum.String()
	o.snapMu.Unlock()
}

// shutdown cancels all pending tasks, clears the buffer, closes the session,
// and resets the response accumulator.
func (o *Orchestrator) shutdown() {
	o.stopCooldown()
	o.stopResponseTimeout()
	if o.reconnectTicker != nil {
		o.reconnectTicker.Stop()
	}
	o.setCapturing(false)
	o.buffer.Clear()
	o.accum.Reset()
	o.updateSnapshotTranscript()
	o.closeSession(context.Background())
}

// closeSession retires the current session, flushing its count of discarded
// malformed frames into the metrics before the handle goes away.
func (o *Orchestrator) closeSession(ctx context.Context) {
	if o.sess == nil {
		return
	}
	o.metrics.RecordDropped(ctx, "realtime", int64(o.sess.Dropped()))
	_ = o.sess.Close()
	o.sess = nil
	o.events = nil
}
