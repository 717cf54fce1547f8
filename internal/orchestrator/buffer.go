package orchestrator

import (
	"sync"

	"github.com/auricle-dev/auricle/pkg/audio"
)

// Buffer accumulates captured frames awaiting transmission. All operations
// hold the lock for their entire critical section: the capture path appends
// while the transmission path drains and the pause/stop paths clear, and a
// drain must be atomic relative to appends.
type Buffer struct {
	mu     sync.Mutex
	frames []audio.Frame
	bytes  int
}

// Append adds one frame to the pending sequence.
func (b *Buffer) Append(f audio.Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, f)
	b.bytes += len(f.Data)
}

// Drain atomically returns the pending frames and clears the buffer. The
// returned slice is owned by the caller.
func (b *Buffer) Drain() []audio.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	frames := b.frames
	b.frames = nil
	b.bytes = 0
	return frames
}

// DrainPCM atomically drains the buffer and concatenates the frame payloads
// into one contiguous PCM block ready for transmission.
func (b *Buffer) DrainPCM() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	pcm := make([]byte, 0, b.bytes)
	for _, f := range b.frames {
		pcm = append(pcm, f.Data...)
	}
	b.frames = nil
	b.bytes = 0
	return pcm
}

// Clear discards all pending frames.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = nil
	b.bytes = 0
}

// Len reports the number of pending frames.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Bytes reports the total pending payload size.
func (b *Buffer) Bytes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bytes
}
