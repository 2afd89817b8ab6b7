package pipeline

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDSource produces identifiers for newly created clusters. The pipeline
// takes it as a dependency so tests can assert deterministic IDs.
type IDSource interface {
	NewID() string
}

// UUIDSource is the production IDSource, backed by random UUIDs.
type UUIDSource struct{}

// NewID returns a random UUID string.
func (UUIDSource) NewID() string {
	return uuid.NewString()
}

// CounterSource is a deterministic IDSource for tests.
type CounterSource struct {
	prefix string
	n      atomic.Int64
}

// NewCounterSource returns a CounterSource producing "<prefix>-1",
// "<prefix>-2", and so on.
func NewCounterSource(prefix string) *CounterSource {
	return &CounterSource{prefix: prefix}
}

// NewID returns the next sequential identifier.
func (c *CounterSource) NewID() string {
	return fmt.Sprintf("%s-%d", c.prefix, c.n.Add(1))
}
