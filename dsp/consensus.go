package dsp

import "fmt"

const DefaultConsensusWindow = 5

// Consensus reduces a fixed number of noisy estimates to their most frequent value.
// It either accumulates estimates or, once the window is full, emits the consensus and starts over.
type Consensus struct {
	window []float64
	next   int
}

// NewConsensus returns a consensus over windows of the given size.
func NewConsensus(size int) *Consensus {
	if size < 1 {
		panic(fmt.Sprintf("the consensus window must hold at least one value: %d", size))
	}
	return &Consensus{
		window: make([]float64, size),
	}
}

// Push adds the given estimate to the window. When the window is full, Push returns the mode of the window
// and true, and the next push starts a new window. The old values are overwritten, not cleared.
func (c *Consensus) Push(estimate float64) (float64, bool) {
	c.window[c.next] = estimate
	c.next++
	if c.next < len(c.window) {
		return 0, false
	}

	c.next = 0
	result, _ := Mode(c.window)
	return result, true
}

// Len returns the number of estimates in the current window.
func (c *Consensus) Len() int {
	return c.next
}

// Size returns the capacity of the window.
func (c *Consensus) Size() int {
	return len(c.window)
}

// Reset starts a new window.
func (c *Consensus) Reset() {
	c.next = 0
}
