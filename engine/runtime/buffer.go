package runtime

import (
	"strings"
	"sync"
)

const truncationMarker = "\n[output truncated]"

// cappedBuffer collects stdout losslessly up to a byte limit, then drops
// the remainder behind a single truncation marker. Safe for concurrent
// writers.
type cappedBuffer struct {
	mu        sync.Mutex
	b         strings.Builder
	limit     int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (c *cappedBuffer) WriteLine(s string) {
	c.Write(s + "\n")
}

func (c *cappedBuffer) Write(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.truncated {
		return
	}
	remaining := c.limit - c.b.Len()
	if remaining <= 0 {
		c.truncated = true
		return
	}
	if len(s) > remaining {
		c.b.WriteString(s[:remaining])
		c.b.WriteString(truncationMarker)
		c.truncated = true
		return
	}
	c.b.WriteString(s)
}

func (c *cappedBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.b.String()
}
