package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates predictable device ids ("device-1", "device-2",
// ...) in place of UUIDv7 so transport tests and golden output are stable.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix defaults to "device".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "device"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
