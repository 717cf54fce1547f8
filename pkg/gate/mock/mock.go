// Package mock provides a scripted gate.Classifier for orchestrator tests.
package mock

import (
	"sync"

	"github.com/auricle-dev/auricle/pkg/audio"
	"github.com/auricle-dev/auricle/pkg/gate"
)

// Classifier replays a fixed script of results, one per Classify call.
// Once the script is exhausted it returns silence. All methods are safe for
// concurrent use so tests can inspect state while the capture loop runs.
type Classifier struct {
	mu sync.Mutex

	// Script holds the results to return in order.
	Script []gate.Result

	// Calls counts Classify invocations since construction or the last Reset.
	Calls int

	// Resets counts Reset invocations.
	Resets int
}

func (c *Classifier) Classify(_ audio.Frame) gate.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.Calls
	c.Calls++
	if i < len(c.Script) {
		return c.Script[i]
	}
	return gate.Result{}
}

func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Resets++
	c.Calls = 0
}

// ResetCount returns the number of Reset calls.
func (c *Classifier) ResetCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Resets
}

var _ gate.Classifier = (*Classifier)(nil)
