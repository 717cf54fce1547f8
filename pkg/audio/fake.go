package audio

import (
	"context"
	"sync"
	"time"
)

// FakeContext is a test double for [Context]. It hands out [FakeCapture]
// devices that replay scripted PCM data instead of touching real hardware.
type FakeContext struct {
	// DeviceList is returned verbatim from Devices.
	DeviceList []DeviceInfo

	// Script holds the PCM data each new capture replays.
	Script []byte

	// Realtime paces frame delivery at the true frame rate when set;
	// otherwise frames are available immediately.
	Realtime bool

	mu       sync.Mutex
	captures []*FakeCapture
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) { return f.DeviceList, nil }

func (f *FakeContext) NewCapture(device *DeviceInfo, _ CaptureConfig) (Capture, error) {
	name := "fake default"
	if device != nil {
		name = device.Name
	}
	c := NewFakeCapture(f.Script, f.Realtime)
	c.name = name
	f.mu.Lock()
	f.captures = append(f.captures, c)
	f.mu.Unlock()
	return c, nil
}

func (f *FakeContext) Close() error { return nil }

// FakeCapture replays scripted PCM as fixed-size frames, then yields silence
// frames forever. A scripted error can be injected with [FakeCapture.Fail] to
// exercise device-failure paths.
type FakeCapture struct {
	name     string
	realtime bool
	started  time.Time

	mu     sync.Mutex
	pcm    []byte
	pos    int
	err    error
	closed bool
	reads  int
}

// NewFakeCapture creates a capture that replays pcm. When realtime is set,
// ReadFrame paces delivery at one frame per [FrameDuration].
func NewFakeCapture(pcm []byte, realtime bool) *FakeCapture {
	return &FakeCapture{name: "fake", pcm: pcm, realtime: realtime}
}

func (c *FakeCapture) Start() error {
	c.started = time.Now()
	return nil
}

// Fail injects a device error; the next ReadFrame returns it.
func (c *FakeCapture) Fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

// Reads reports how many frames have been read so far.
func (c *FakeCapture) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

func (c *FakeCapture) ReadFrame(ctx context.Context) (Frame, error) {
	if c.realtime {
		select {
		case <-time.After(FrameDuration):
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Frame{}, &DeviceError{Op: "read from closed capture"}
	}
	if c.err != nil {
		return Frame{}, c.err
	}

	buf := make([]byte, FrameBytes)
	if c.pos < len(c.pcm) {
		n := copy(buf, c.pcm[c.pos:])
		c.pos += n
	}
	c.reads++
	return Frame{Data: buf, Timestamp: time.Duration(c.reads) * FrameDuration}, nil
}

func (c *FakeCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *FakeCapture) DeviceName() string { return c.name }

var (
	_ Context = (*FakeContext)(nil)
	_ Capture = (*FakeCapture)(nil)
)
