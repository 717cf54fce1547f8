// Package audio provides the capture-side audio primitives for Auricle:
// fixed-duration PCM16 frames, the capture device abstraction, a miniaudio
// (malgo) backed implementation, and a scripted fake for tests.
//
// Frames are the atomic unit of audio transport. Each frame holds exactly
// [FrameDuration] of mono PCM16 samples at [SampleRate]; it is created once
// by a capture device and never mutated afterwards.
package audio

import (
	"context"
	"encoding/binary"
	"math"
	"time"
)

// Fixed capture format. The hosted speech API consumes base64 PCM16 mono at
// this rate, so the whole pipeline uses it end to end and no resampling or
// codec stage is needed.
const (
	// SampleRate is the capture sample rate in Hz.
	SampleRate = 48000

	// FrameDuration is the fixed length of one frame.
	FrameDuration = 20 * time.Millisecond

	// FrameSamples is the number of PCM16 samples per frame.
	FrameSamples = SampleRate / 1000 * 20

	// FrameBytes is the byte length of one frame (16-bit mono).
	FrameBytes = FrameSamples * 2
)

// Frame is one fixed-duration block of little-endian PCM16 mono samples.
// Data is always exactly [FrameBytes] long. Immutable once captured.
type Frame struct {
	Data []byte

	// Timestamp marks when the frame was captured, relative to capture start.
	Timestamp time.Duration
}

// DeviceInfo describes one capture device exposed by a [Context].
type DeviceInfo struct {
	// ID is an opaque platform-specific identifier.
	ID string

	// Name is the human-readable device name.
	Name string

	// Default reports whether the platform considers this the default
	// capture device.
	Default bool
}

// CaptureConfig holds the parameters for opening a capture device.
type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

// Context owns the platform audio driver handle and enumerates devices.
type Context interface {
	// Devices lists the available capture devices.
	Devices() ([]DeviceInfo, error)

	// NewCapture opens a capture device. A nil device selects the system
	// default. The device does not produce frames until Start is called.
	NewCapture(device *DeviceInfo, cfg CaptureConfig) (Capture, error)

	// Close releases the driver handle. Captures created from this context
	// must be closed first.
	Close() error
}

// Capture is an open audio input device that produces [Frame] values.
//
// A Capture is driven by a single reader goroutine; ReadFrame must not be
// called concurrently. Close is idempotent and safe to call from another
// goroutine to unblock a pending ReadFrame.
type Capture interface {
	// Start begins capturing from the driver.
	Start() error

	// ReadFrame blocks until one full frame of audio is available or ctx is
	// done. Returns a [DeviceError] if the device fails or is closed.
	ReadFrame(ctx context.Context) (Frame, error)

	// Close stops the device and releases the driver resource. Idempotent.
	Close() error

	// DeviceName returns the name of the underlying device.
	DeviceName() string
}

// DeviceError wraps a failure of the underlying audio hardware or driver.
// Device errors are fatal to the current session.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	if e.Err == nil {
		return "audio: " + e.Op
	}
	return "audio: " + e.Op + ": " + e.Err.Error()
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Level computes a normalized amplitude metric for a PCM16 frame, scaled to
// 0..100 for display. The scale is RMS-based with a small boost so ordinary
// speech lands mid-range rather than hugging zero.
func Level(pcm []byte) int {
	if len(pcm) < 2 {
		return 0
	}
	var sumSquares float64
	n := 0
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(pcm[i:]))
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
		n++
	}
	rms := math.Sqrt(sumSquares / float64(n))
	level := int(math.Round(rms * 300))
	if level > 100 {
		level = 100
	}
	return level
}

// RMS returns the root-mean-square amplitude of a PCM16 buffer, normalized
// to [0, 1]. Used by the activity gate for speech classification.
func RMS(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}
	var sumSquares float64
	n := 0
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(pcm[i:]))
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
		n++
	}
	return math.Sqrt(sumSquares / float64(n))
}
