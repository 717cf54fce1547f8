package orchestrator_test

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/auricle-dev/auricle/internal/orchestrator"
	"github.com/auricle-dev/auricle/pkg/audio"
)

// taggedFrame builds a frame whose payload encodes id, so concurrent tests
// can detect lost or duplicated frames.
func taggedFrame(id uint32) audio.Frame {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data, id)
	return audio.Frame{Data: data}
}

func frameID(f audio.Frame) uint32 {
	return binary.LittleEndian.Uint32(f.Data)
}

func TestBuffer_AppendDrain(t *testing.T) {
	t.Parallel()

	var b orchestrator.Buffer
	for i := range uint32(5) {
		b.Append(taggedFrame(i))
	}
	if got := b.Len(); got != 5 {
		t.Fatalf("Len() = %d; want 5", got)
	}

	frames := b.Drain()
	if len(frames) != 5 {
		t.Fatalf("Drain() returned %d frames; want 5", len(frames))
	}
	for i, f := range frames {
		if frameID(f) != uint32(i) {
			t.Errorf("frame %d has id %d; want %d (order must be preserved)", i, frameID(f), i)
		}
	}

	if got := b.Len(); got != 0 {
		t.Errorf("Len() after drain = %d; want 0", got)
	}
	if got := b.Drain(); len(got) != 0 {
		t.Errorf("second Drain() returned %d frames; want 0", len(got))
	}
}

func TestBuffer_DrainPCMConcatenates(t *testing.T) {
	t.Parallel()

	var b orchestrator.Buffer
	b.Append(audio.Frame{Data: []byte{1, 2}})
	b.Append(audio.Frame{Data: []byte{3, 4, 5}})

	if got := b.Bytes(); got != 5 {
		t.Errorf("Bytes() = %d; want 5", got)
	}

	pcm := b.DrainPCM()
	want := []byte{1, 2, 3, 4, 5}
	if string(pcm) != string(want) {
		t.Errorf("DrainPCM() = %v; want %v", pcm, want)
	}
	if b.Len() != 0 || b.Bytes() != 0 {
		t.Error("buffer should be empty after DrainPCM")
	}
}

func TestBuffer_Clear(t *testing.T) {
	t.Parallel()

	var b orchestrator.Buffer
	b.Append(taggedFrame(1))
	b.Append(taggedFrame(2))
	b.Clear()

	if got := b.Len(); got != 0 {
		t.Errorf("Len() after clear = %d; want 0", got)
	}
	if got := b.Drain(); len(got) != 0 {
		t.Errorf("Drain() after clear returned %d frames; want 0", len(got))
	}
}

// TestBuffer_ConcurrentAppendDrain verifies that concurrent appends and
// drains serialize: every appended frame surfaces in exactly one drain, with
// none lost and none duplicated.
func TestBuffer_ConcurrentAppendDrain(t *testing.T) {
	t.Parallel()

	const (
		producers         = 4
		framesPerProducer = 500
	)

	var b orchestrator.Buffer
	var wg sync.WaitGroup

	for p := range producers {
		offset := uint32(p * framesPerProducer)
		wg.Go(func() {
			for i := range uint32(framesPerProducer) {
				b.Append(taggedFrame(offset + i))
			}
		})
	}

	collected := make(chan []audio.Frame, 1)
	stop := make(chan struct{})
	go func() {
		var all []audio.Frame
		for {
			select {
			case <-stop:
				collected <- all
				return
			default:
				all = append(all, b.Drain()...)
			}
		}
	}()

	wg.Wait()
	close(stop)
	all := <-collected
	// Pick up anything the drainer missed after the last producer finished.
	all = append(all, b.Drain()...)

	seen := make(map[uint32]int)
	for _, f := range all {
		seen[frameID(f)]++
	}

	total := producers * framesPerProducer
	if len(seen) != total {
		t.Errorf("saw %d distinct frames; want %d", len(seen), total)
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("frame %d drained %d times; want exactly once", id, n)
		}
	}
}
