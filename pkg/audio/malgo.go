package audio

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// malgoContext backs [Context] with the miniaudio library, which covers
// WASAPI, CoreAudio, ALSA and PulseAudio behind one API.
type malgoContext struct {
	ctx *malgo.AllocatedContext
}

// NewContext initialises the platform audio driver.
func NewContext() (Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, &DeviceError{Op: "init context", Err: err}
	}
	return &malgoContext{ctx: ctx}, nil
}

func (m *malgoContext) Devices() ([]DeviceInfo, error) {
	devices, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, &DeviceError{Op: "enumerate devices", Err: err}
	}
	result := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		result = append(result, DeviceInfo{
			ID:      hex.EncodeToString(d.ID[:]),
			Name:    d.Name(),
			Default: d.IsDefault != 0,
		})
	}
	return result, nil
}

func (m *malgoContext) NewCapture(device *DeviceInfo, cfg CaptureConfig) (Capture, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = cfg.Channels
	deviceConfig.SampleRate = cfg.SampleRate

	name := "system default"
	if device != nil {
		idBytes, err := hex.DecodeString(device.ID)
		if err != nil {
			return nil, &DeviceError{Op: "decode device id", Err: err}
		}
		var devID malgo.DeviceID
		copy(devID[:], idBytes)
		deviceConfig.Capture.DeviceID = devID.Pointer()
		name = device.Name
	}

	c := &malgoCapture{
		name:    name,
		frames:  make(chan Frame, frameQueueDepth),
		started: time.Now(),
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, frameCount uint32) {
			c.push(data)
		},
		Stop: func() {
			c.fail(&DeviceError{Op: "device stopped"})
		},
	}

	dev, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, &DeviceError{Op: "init device", Err: err}
	}
	c.device = dev
	return c, nil
}

func (m *malgoContext) Close() error {
	if err := m.ctx.Uninit(); err != nil {
		return &DeviceError{Op: "uninit context", Err: err}
	}
	m.ctx.Free()
	return nil
}

// frameQueueDepth bounds how many complete frames may sit between the driver
// callback and ReadFrame before the oldest is dropped. At 20ms per frame this
// is 640ms of slack, which absorbs scheduler hiccups without letting a paused
// reader accumulate stale audio indefinitely.
const frameQueueDepth = 32

// malgoCapture adapts miniaudio's push callback to the pull-based
// [Capture.ReadFrame] contract. The callback reframes whatever block sizes
// the driver delivers into exact [FrameBytes] frames.
type malgoCapture struct {
	device  *malgo.Device
	name    string
	frames  chan Frame
	started time.Time

	mu      sync.Mutex
	pending []byte // partial frame carried between callbacks
	err     error
	closed  bool
}

func (c *malgoCapture) Start() error {
	if err := c.device.Start(); err != nil {
		return &DeviceError{Op: "start", Err: err}
	}
	c.started = time.Now()
	return nil
}

// push is called on the driver's audio thread. It must never block: when the
// frame queue is full the oldest frame is discarded.
func (c *malgoCapture) push(data []byte) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pending = append(c.pending, data...)
	var ready []Frame
	for len(c.pending) >= FrameBytes {
		buf := make([]byte, FrameBytes)
		copy(buf, c.pending[:FrameBytes])
		c.pending = c.pending[FrameBytes:]
		ready = append(ready, Frame{Data: buf, Timestamp: time.Since(c.started)})
	}
	c.mu.Unlock()

	for _, f := range ready {
		select {
		case c.frames <- f:
		default:
			select {
			case <-c.frames:
			default:
			}
			select {
			case c.frames <- f:
			default:
			}
		}
	}
}

func (c *malgoCapture) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil && !c.closed {
		c.err = err
	}
}

func (c *malgoCapture) ReadFrame(ctx context.Context) (Frame, error) {
	for {
		select {
		case f := <-c.frames:
			return f, nil
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-time.After(FrameDuration):
			c.mu.Lock()
			err := c.err
			closed := c.closed
			c.mu.Unlock()
			if closed {
				return Frame{}, &DeviceError{Op: "read from closed capture"}
			}
			if err != nil {
				return Frame{}, err
			}
		}
	}
}

func (c *malgoCapture) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.device.Uninit()
	return nil
}

func (c *malgoCapture) DeviceName() string { return c.name }

// Ensure interface satisfaction.
var (
	_ Context = (*malgoContext)(nil)
	_ Capture = (*malgoCapture)(nil)
)
