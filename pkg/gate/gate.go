// Package gate implements the voice-activity gate that decides when buffered
// audio is worth sending.
//
// The gate classifies each fixed-duration frame as speech or silence using an
// RMS energy detector with hysteresis, and tracks how long contiguous speech
// has persisted. When the run length reaches the configured target the gate
// reports the speech as sustained, which the session orchestrator uses as the
// auto-flush trigger.
//
// A gate session is stateful and owned by a single goroutine. Reset restores
// the detector to its initial state in full — not just the run counters — so
// behaviour after a pause/resume cycle is identical to a fresh start.
package gate

import (
	"fmt"
	"time"

	"github.com/auricle-dev/auricle/pkg/audio"
)

// Default detector parameters, tuned for 48kHz 20ms mono frames.
const (
	// DefaultSpeechThreshold is the normalized RMS level at or above which a
	// frame counts towards starting speech.
	DefaultSpeechThreshold = 0.015

	// DefaultSilenceThreshold is the normalized RMS level below which an
	// active speech segment decays towards silence. Lower than the speech
	// threshold so the detector does not flicker at the boundary.
	DefaultSilenceThreshold = 0.008

	// DefaultSustainedSpeech is the contiguous speech duration that marks a
	// speech run as sustained.
	DefaultSustainedSpeech = 100 * time.Millisecond

	// defaultHangover is how many consecutive sub-threshold frames end an
	// active speech segment. 200ms of hangover bridges natural inter-word
	// gaps.
	defaultHangover = 10
)

// Config holds the parameters for a [Gate].
type Config struct {
	// FrameDuration is the fixed duration of each classified frame.
	// Defaults to [audio.FrameDuration].
	FrameDuration time.Duration

	// SpeechThreshold is the normalized RMS level that starts speech.
	// Defaults to [DefaultSpeechThreshold].
	SpeechThreshold float64

	// SilenceThreshold is the normalized RMS level that ends speech. Must not
	// exceed SpeechThreshold. Defaults to [DefaultSilenceThreshold].
	SilenceThreshold float64

	// SustainedSpeech is the contiguous speech duration after which
	// [Result.Sustained] fires. Defaults to [DefaultSustainedSpeech].
	SustainedSpeech time.Duration

	// HangoverFrames is how many consecutive silent frames end an active
	// speech segment. Defaults to 200ms worth of frames.
	HangoverFrames int
}

// Result is the classification of a single frame.
type Result struct {
	// Speech reports whether the frame is part of an active speech segment.
	Speech bool

	// Sustained fires exactly once per speech run, on the frame where
	// contiguous speech first reaches the configured target.
	Sustained bool
}

// Classifier is the interface consumed by the orchestrator. The production
// implementation is [Gate]; tests use gate/mock.
type Classifier interface {
	// Classify analyses one frame. Frames must be presented in capture order.
	Classify(frame audio.Frame) Result

	// Reset reinitializes all detector state so the next frame is processed
	// exactly as if the classifier were freshly constructed.
	Reset()
}

// Gate is the RMS energy [Classifier].
type Gate struct {
	cfg       Config
	runTarget int // frames of contiguous speech that count as sustained

	inSpeech     bool
	speechRun    int
	silenceRun   int
	sustainFired bool
}

// New creates a Gate, applying defaults for zero-value config fields.
// It returns an error if the thresholds are inverted.
func New(cfg Config) (*Gate, error) {
	if cfg.FrameDuration <= 0 {
		cfg.FrameDuration = audio.FrameDuration
	}
	if cfg.SpeechThreshold == 0 {
		cfg.SpeechThreshold = DefaultSpeechThreshold
	}
	if cfg.SilenceThreshold == 0 {
		cfg.SilenceThreshold = DefaultSilenceThreshold
	}
	if cfg.SustainedSpeech <= 0 {
		cfg.SustainedSpeech = DefaultSustainedSpeech
	}
	if cfg.HangoverFrames <= 0 {
		cfg.HangoverFrames = defaultHangover
	}
	if cfg.SilenceThreshold > cfg.SpeechThreshold {
		return nil, fmt.Errorf("gate: silence threshold %.4f exceeds speech threshold %.4f",
			cfg.SilenceThreshold, cfg.SpeechThreshold)
	}

	runTarget := int(cfg.SustainedSpeech / cfg.FrameDuration)
	if runTarget < 1 {
		runTarget = 1
	}
	return &Gate{cfg: cfg, runTarget: runTarget}, nil
}

// Classify implements [Classifier].
func (g *Gate) Classify(frame audio.Frame) Result {
	level := audio.RMS(frame.Data)

	if g.inSpeech {
		if level < g.cfg.SilenceThreshold {
			g.silenceRun++
			if g.silenceRun >= g.cfg.HangoverFrames {
				g.inSpeech = false
				g.speechRun = 0
				g.silenceRun = 0
				g.sustainFired = false
			}
		} else {
			g.silenceRun = 0
		}
	} else if level >= g.cfg.SpeechThreshold {
		g.inSpeech = true
		g.silenceRun = 0
	}

	res := Result{Speech: g.inSpeech}
	if g.inSpeech {
		g.speechRun++
		if !g.sustainFired && g.speechRun >= g.runTarget {
			g.sustainFired = true
			res.Sustained = true
		}
	}
	return res
}

// Reset implements [Classifier]. All state is cleared, not only counters:
// a stale in-speech latch surviving a pause would make the first post-resume
// frame behave differently from a fresh start.
func (g *Gate) Reset() {
	g.inSpeech = false
	g.speechRun = 0
	g.silenceRun = 0
	g.sustainFired = false
}

var _ Classifier = (*Gate)(nil)
