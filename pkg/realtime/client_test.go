package realtime_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/auricle-dev/auricle/pkg/realtime"
	"github.com/coder/websocket"
)

// ── Helpers ───────────────────────────────────────────────────────────────────

// wsURL converts an httptest server HTTP URL to a WebSocket URL.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// startServer launches a test WebSocket server. The handler receives the
// accepted conn. The server is automatically closed when the test finishes.
func startServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			return
		}
		conn.SetReadLimit(-1)
		defer conn.Close(websocket.StatusNormalClosure, "done")
		handler(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// readJSON reads one WebSocket text frame and decodes it into v.
func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("readJSON: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("readJSON unmarshal: %v", err)
	}
}

// writeJSON marshals v and sends it as a text frame.
func writeJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	data, _ := json.Marshal(v)
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Logf("writeJSON: %v (may be expected on close)", err)
	}
}

// writeRaw sends a pre-encoded text frame.
func writeRaw(t *testing.T, conn *websocket.Conn, data string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte(data)); err != nil {
		t.Logf("writeRaw: %v (may be expected on close)", err)
	}
}

// sessionCfg is a representative config used where the test does not care
// about the exact values.
func sessionCfg() realtime.SessionConfig {
	return realtime.SessionConfig{
		Modalities:   []string{"text"},
		Instructions: "You observe and respond.",
		Voice:        "alloy",
		Temperature:  0.6,
		TurnDetection: realtime.TurnDetection{
			Threshold:       0.5,
			SilenceDuration: 500 * time.Millisecond,
		},
	}
}

// ── Connect ───────────────────────────────────────────────────────────────────

func TestConnect_SendsSessionUpdate(t *testing.T) {
	t.Parallel()

	type sessionUpdateMsg struct {
		Type    string `json:"type"`
		Session struct {
			Modalities        []string `json:"modalities"`
			Instructions      string   `json:"instructions"`
			Voice             string   `json:"voice"`
			InputAudioFormat  string   `json:"input_audio_format"`
			OutputAudioFormat string   `json:"output_audio_format"`
			Temperature       float64  `json:"temperature"`
			TurnDetection     *struct {
				Type              string  `json:"type"`
				Threshold         float64 `json:"threshold"`
				SilenceDurationMs int     `json:"silence_duration_ms"`
			} `json:"turn_detection"`
		} `json:"session"`
	}

	received := make(chan sessionUpdateMsg, 1)

	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var msg sessionUpdateMsg
		readJSON(t, conn, &msg)
		received <- msg
		<-conn.CloseRead(context.Background()).Done()
	})

	c := realtime.New("key", sessionCfg(), realtime.WithBaseURL(wsURL(srv)))
	handle, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer handle.Close()

	select {
	case msg := <-received:
		if msg.Type != "session.update" {
			t.Errorf("type = %q; want session.update", msg.Type)
		}
		if len(msg.Session.Modalities) != 1 || msg.Session.Modalities[0] != "text" {
			t.Errorf("modalities = %v; want [text]", msg.Session.Modalities)
		}
		if msg.Session.Instructions != "You observe and respond." {
			t.Errorf("instructions = %q", msg.Session.Instructions)
		}
		if msg.Session.Voice != "alloy" {
			t.Errorf("voice = %q; want alloy", msg.Session.Voice)
		}
		if msg.Session.InputAudioFormat != "pcm16" {
			t.Errorf("input_audio_format = %q; want pcm16", msg.Session.InputAudioFormat)
		}
		if msg.Session.OutputAudioFormat != "pcm16" {
			t.Errorf("output_audio_format = %q; want pcm16", msg.Session.OutputAudioFormat)
		}
		if msg.Session.Temperature != 0.6 {
			t.Errorf("temperature = %v; want 0.6", msg.Session.Temperature)
		}
		if msg.Session.TurnDetection == nil {
			t.Fatal("turn_detection missing")
		}
		if msg.Session.TurnDetection.Type != "server_vad" {
			t.Errorf("turn_detection.type = %q; want server_vad", msg.Session.TurnDetection.Type)
		}
		if msg.Session.TurnDetection.SilenceDurationMs != 500 {
			t.Errorf("silence_duration_ms = %d; want 500", msg.Session.TurnDetection.SilenceDurationMs)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for session.update")
	}
}

func TestConnect_ModelInURL(t *testing.T) {
	t.Parallel()

	modelInURL := make(chan string, 1)

	srv := startServer(t, func(conn *websocket.Conn, r *http.Request) {
		modelInURL <- r.URL.Query().Get("model")
		var raw map[string]any
		readJSON(t, conn, &raw)
		<-conn.CloseRead(context.Background()).Done()
	})

	c := realtime.New("key", sessionCfg(),
		realtime.WithModel("gpt-4o-mini-realtime"),
		realtime.WithBaseURL(wsURL(srv)))
	handle, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer handle.Close()

	select {
	case m := <-modelInURL:
		if m != "gpt-4o-mini-realtime" {
			t.Errorf("model in URL = %q; want gpt-4o-mini-realtime", m)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout")
	}
}

func TestConnect_SendsAuthHeaders(t *testing.T) {
	t.Parallel()

	headers := make(chan http.Header, 1)

	srv := startServer(t, func(conn *websocket.Conn, r *http.Request) {
		headers <- r.Header.Clone()
		var raw map[string]any
		readJSON(t, conn, &raw)
		<-conn.CloseRead(context.Background()).Done()
	})

	c := realtime.New("my-secret-token", sessionCfg(), realtime.WithBaseURL(wsURL(srv)))
	handle, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer handle.Close()

	select {
	case h := <-headers:
		if got := h.Get("Authorization"); got != "Bearer my-secret-token" {
			t.Errorf("Authorization = %q; want Bearer my-secret-token", got)
		}
		if got := h.Get("OpenAI-Beta"); got != "realtime=v1" {
			t.Errorf("OpenAI-Beta = %q; want realtime=v1", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout")
	}
}

func TestConnect_UnauthorizedMapsToInvalidAPIKey(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	c := realtime.New("bad-key", sessionCfg(), realtime.WithBaseURL(wsURL(srv)))
	_, err := c.Connect(context.Background())
	if !errors.Is(err, realtime.ErrInvalidAPIKey) {
		t.Fatalf("Connect error = %v; want ErrInvalidAPIKey", err)
	}
}

func TestConnect_CancelledContext_ReturnsError(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		<-conn.CloseRead(context.Background()).Done()
	})

	c := realtime.New("key", sessionCfg(), realtime.WithBaseURL(wsURL(srv)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Connect(ctx); err == nil {
		t.Fatal("Connect with cancelled context should return an error")
	}
}

// ── SendAudio ─────────────────────────────────────────────────────────────────

func TestSendAudio_EncodesAndSends(t *testing.T) {
	t.Parallel()

	type appendMsg struct {
		Type  string `json:"type"`
		Audio string `json:"audio"`
	}

	audioMsg := make(chan appendMsg, 1)

	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw) // session.update

		var msg appendMsg
		readJSON(t, conn, &msg)
		audioMsg <- msg

		<-conn.CloseRead(context.Background()).Done()
	})

	c := realtime.New("key", sessionCfg(), realtime.WithBaseURL(wsURL(srv)))
	handle, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer handle.Close()

	wantPCM := []byte{0x10, 0x20, 0x30, 0x40}
	if err := handle.SendAudio(wantPCM); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}

	select {
	case msg := <-audioMsg:
		if msg.Type != "input_audio_buffer.append" {
			t.Errorf("type = %q; want input_audio_buffer.append", msg.Type)
		}
		got, err := base64.StdEncoding.DecodeString(msg.Audio)
		if err != nil {
			t.Fatalf("base64 decode: %v", err)
		}
		if string(got) != string(wantPCM) {
			t.Errorf("decoded audio = %v; want %v", got, wantPCM)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for audio append message")
	}
}

func TestSendAudio_LargePayloadIsChunked(t *testing.T) {
	t.Parallel()

	type appendMsg struct {
		Type  string `json:"type"`
		Audio string `json:"audio"`
	}

	reassembled := make(chan []byte, 1)

	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw) // session.update

		var buf []byte
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg appendMsg
			if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "input_audio_buffer.append" {
				continue
			}
			chunk, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				return
			}
			buf = append(buf, chunk...)
			if len(buf) >= 100*1024 {
				reassembled <- buf
				return
			}
		}
	})

	c := realtime.New("key", sessionCfg(), realtime.WithBaseURL(wsURL(srv)))
	handle, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer handle.Close()

	// 100 KiB of audio, several append chunks worth.
	wantPCM := make([]byte, 100*1024)
	for i := range wantPCM {
		wantPCM[i] = byte(i % 251)
	}
	if err := handle.SendAudio(wantPCM); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}

	select {
	case got := <-reassembled:
		if string(got) != string(wantPCM) {
			t.Error("reassembled audio does not match sent audio")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout reassembling chunked audio")
	}
}

func TestSendAudio_AfterClose_ReturnsError(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		<-conn.CloseRead(context.Background()).Done()
	})

	c := realtime.New("key", sessionCfg(), realtime.WithBaseURL(wsURL(srv)))
	handle, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	_ = handle.Close()

	if err := handle.SendAudio([]byte{1, 2, 3}); !errors.Is(err, realtime.ErrSessionClosed) {
		t.Fatalf("SendAudio after Close = %v; want ErrSessionClosed", err)
	}
}

// ── Commit ────────────────────────────────────────────────────────────────────

func TestCommit_SendsCommitAndResponseCreate(t *testing.T) {
	t.Parallel()

	types := make(chan string, 2)

	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw) // session.update

		for range 2 {
			var msg struct {
				Type string `json:"type"`
			}
			readJSON(t, conn, &msg)
			types <- msg.Type
		}

		<-conn.CloseRead(context.Background()).Done()
	})

	c := realtime.New("key", sessionCfg(), realtime.WithBaseURL(wsURL(srv)))
	handle, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer handle.Close()

	if got := handle.Calls(); got != 0 {
		t.Errorf("Calls() before commit = %d; want 0", got)
	}
	if err := handle.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	want := []string{"input_audio_buffer.commit", "response.create"}
	for i, w := range want {
		select {
		case got := <-types:
			if got != w {
				t.Errorf("message %d type = %q; want %q", i, got, w)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timeout waiting for message %d", i)
		}
	}

	if got := handle.Calls(); got != 1 {
		t.Errorf("Calls() after commit = %d; want 1", got)
	}
}

func TestCommit_AfterClose_ReturnsError(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		<-conn.CloseRead(context.Background()).Done()
	})

	c := realtime.New("key", sessionCfg(), realtime.WithBaseURL(wsURL(srv)))
	handle, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	_ = handle.Close()

	if err := handle.Commit(); !errors.Is(err, realtime.ErrSessionClosed) {
		t.Fatalf("Commit after Close = %v; want ErrSessionClosed", err)
	}
}

// ── Events ────────────────────────────────────────────────────────────────────

// collectEvents connects to srv and returns the handle plus a helper that
// receives the next event or fails the test.
func nextEvent(t *testing.T, events <-chan realtime.Event) realtime.Event {
	t.Helper()
	select {
	case evt, ok := <-events:
		if !ok {
			t.Fatal("events channel closed unexpectedly")
		}
		return evt
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
		return realtime.Event{}
	}
}

func TestEvents_MapsServerEventKinds(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw) // session.update

		writeJSON(t, conn, map[string]any{"type": "session.created"})
		writeJSON(t, conn, map[string]any{"type": "response.audio_transcript.delta", "delta": "Hello "})
		writeJSON(t, conn, map[string]any{"type": "response.text.delta", "delta": "world"})
		writeJSON(t, conn, map[string]any{"type": "response.done"})
		writeJSON(t, conn, map[string]any{"type": "rate_limits.updated"})
		writeJSON(t, conn, map[string]any{
			"type": "error",
			"error": map[string]any{
				"type":    "invalid_request_error",
				"code":    "session_expired",
				"message": "Your session hit the maximum duration.",
			},
		})

		<-conn.CloseRead(context.Background()).Done()
	})

	c := realtime.New("key", sessionCfg(), realtime.WithBaseURL(wsURL(srv)))
	handle, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer handle.Close()

	evt := nextEvent(t, handle.Events())
	if evt.Kind != realtime.KindSessionReady {
		t.Errorf("event 0 kind = %v; want KindSessionReady", evt.Kind)
	}

	evt = nextEvent(t, handle.Events())
	if evt.Kind != realtime.KindTranscriptDelta || evt.Delta != "Hello " {
		t.Errorf("event 1 = %+v; want transcript delta %q", evt, "Hello ")
	}

	evt = nextEvent(t, handle.Events())
	if evt.Kind != realtime.KindTranscriptDelta || evt.Delta != "world" {
		t.Errorf("event 2 = %+v; want transcript delta %q", evt, "world")
	}

	evt = nextEvent(t, handle.Events())
	if evt.Kind != realtime.KindResponseDone {
		t.Errorf("event 3 kind = %v; want KindResponseDone", evt.Kind)
	}

	evt = nextEvent(t, handle.Events())
	if evt.Kind != realtime.KindOther || evt.Type != "rate_limits.updated" {
		t.Errorf("event 4 = %+v; want KindOther rate_limits.updated", evt)
	}

	evt = nextEvent(t, handle.Events())
	if evt.Kind != realtime.KindError {
		t.Fatalf("event 5 kind = %v; want KindError", evt.Kind)
	}
	if evt.Code != "session_expired" {
		t.Errorf("error code = %q; want session_expired", evt.Code)
	}
	if !strings.Contains(evt.Message, "maximum duration") {
		t.Errorf("error message = %q; want maximum duration substring", evt.Message)
	}
}

func TestEvents_ErrorEventWithoutDetail_DefaultsUnknown(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		writeJSON(t, conn, map[string]any{"type": "error"})
		<-conn.CloseRead(context.Background()).Done()
	})

	c := realtime.New("key", sessionCfg(), realtime.WithBaseURL(wsURL(srv)))
	handle, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer handle.Close()

	evt := nextEvent(t, handle.Events())
	if evt.Kind != realtime.KindError {
		t.Fatalf("kind = %v; want KindError", evt.Kind)
	}
	if evt.Code != "unknown_error" {
		t.Errorf("code = %q; want unknown_error", evt.Code)
	}
}

func TestEvents_MalformedFrameIsDroppedNotFatal(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)

		writeRaw(t, conn, `{not json at all`)
		writeRaw(t, conn, `{"no_type_field": true}`)
		writeJSON(t, conn, map[string]any{"type": "response.done"})

		<-conn.CloseRead(context.Background()).Done()
	})

	c := realtime.New("key", sessionCfg(), realtime.WithBaseURL(wsURL(srv)))
	handle, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer handle.Close()

	// The first deliverable event should be the well-formed response.done;
	// the malformed frames are dropped silently.
	evt := nextEvent(t, handle.Events())
	if evt.Kind != realtime.KindResponseDone {
		t.Errorf("kind = %v; want KindResponseDone", evt.Kind)
	}
}

func TestEvents_ServerDisconnectSetsConnectionLost(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		// Handler returns, dropping the connection.
	})

	c := realtime.New("key", sessionCfg(), realtime.WithBaseURL(wsURL(srv)))
	handle, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer handle.Close()

	select {
	case _, ok := <-handle.Events():
		if ok {
			t.Fatal("expected closed events channel, got an event")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for events channel to close")
	}

	if !errors.Is(handle.Err(), realtime.ErrConnectionLost) {
		t.Errorf("Err() = %v; want ErrConnectionLost", handle.Err())
	}
}

func TestErr_NilBeforeError(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		<-conn.CloseRead(context.Background()).Done()
	})

	c := realtime.New("key", sessionCfg(), realtime.WithBaseURL(wsURL(srv)))
	handle, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer handle.Close()

	if got := handle.Err(); got != nil {
		t.Errorf("Err() = %v; want nil before any error", got)
	}
}

// ── Session lifetime ──────────────────────────────────────────────────────────

func TestShouldReconnect_FiresAtConfiguredFraction(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		<-conn.CloseRead(context.Background()).Done()
	})

	c := realtime.New("key", sessionCfg(),
		realtime.WithBaseURL(wsURL(srv)),
		realtime.WithSessionTTL(300*time.Millisecond),
		realtime.WithReconnectFraction(2.0/3.0))
	handle, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer handle.Close()

	if handle.ShouldReconnect() {
		t.Error("ShouldReconnect() = true immediately after connect")
	}

	// Threshold is 200ms; wait past it.
	time.Sleep(250 * time.Millisecond)

	if !handle.ShouldReconnect() {
		t.Error("ShouldReconnect() = false after threshold elapsed")
	}
	if handle.Age() < 200*time.Millisecond {
		t.Errorf("Age() = %v; want at least 200ms", handle.Age())
	}
}

// ── Close ─────────────────────────────────────────────────────────────────────

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		<-conn.CloseRead(context.Background()).Done()
	})

	c := realtime.New("key", sessionCfg(), realtime.WithBaseURL(wsURL(srv)))
	handle, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := handle.Close(); err != nil {
		t.Fatalf("first Close() returned error: %v", err)
	}
	if err := handle.Close(); err != nil {
		t.Fatalf("second Close() returned error: %v", err)
	}
}

func TestClose_ClosesEventsChannel(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		<-conn.CloseRead(context.Background()).Done()
	})

	c := realtime.New("key", sessionCfg(), realtime.WithBaseURL(wsURL(srv)))
	handle, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	_ = handle.Close()

	select {
	case _, open := <-handle.Events():
		if open {
			t.Error("events channel should be closed after Close()")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for events channel to close")
	}
}

func TestClose_DeliberateCloseLeavesErrNil(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		<-conn.CloseRead(context.Background()).Done()
	})

	c := realtime.New("key", sessionCfg(), realtime.WithBaseURL(wsURL(srv)))
	handle, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	_ = handle.Close()

	// Drain the channel so the receive loop has observed the close.
	for range handle.Events() {
	}

	if got := handle.Err(); got != nil {
		t.Errorf("Err() after deliberate Close = %v; want nil", got)
	}
}
