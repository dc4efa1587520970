package testutil

import (
	"fmt"
	"sync"
	"time"

	"fsrollback/internal/rollback"
)

var (
	_ rollback.Clock       = (*StubClock)(nil)
	_ rollback.IDGenerator = (*StubIDGenerator)(nil)
)

// StubClock always reports the same instant, so commits take no time.
type StubClock struct {
	now time.Time
}

// FixedClock returns a StubClock set to 2024-01-15 10:30:00 UTC.
func FixedClock() *StubClock {
	return &StubClock{now: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)}
}

func (c *StubClock) Now() time.Time { return c.now }

// StubIDGenerator returns sequential session IDs: "session-1", "session-2", etc.
// Safe for concurrent use.
type StubIDGenerator struct {
	mu      sync.Mutex
	counter int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("session-%d", g.counter)
}
