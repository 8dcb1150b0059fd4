// Package idgen provides the concrete Clock and IDGenerator adapters used
// outside of tests, plus deterministic fakes for tests — grounded on the
// design notes' call for an injectable id generator/counter rather than a
// package-global crypto/rand helper (cf. the teacher's pkg/utils, dropped).
package idgen

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// SystemClock reports real wall-clock time in milliseconds.
type SystemClock struct{}

func (SystemClock) NowMS() int64 { return time.Now().UnixMilli() }

// FakeClock is a settable clock for deterministic tests.
type FakeClock struct {
	ms int64
}

func NewFakeClock(startMS int64) *FakeClock { return &FakeClock{ms: startMS} }

func (f *FakeClock) NowMS() int64 { return f.ms }

func (f *FakeClock) Set(ms int64) { f.ms = ms }

func (f *FakeClock) Advance(deltaMS int64) { f.ms += deltaMS }

// UUIDGenerator produces google/uuid v4 strings.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

// CounterGenerator produces deterministic, monotonically increasing ids for
// tests, prefixed for readability in assertion failures.
type CounterGenerator struct {
	prefix string
	next   int64
}

func NewCounterGenerator(prefix string) *CounterGenerator {
	return &CounterGenerator{prefix: prefix}
}

func (c *CounterGenerator) NewID() string {
	n := atomic.AddInt64(&c.next, 1)
	return fmt.Sprintf("%s-%d", c.prefix, n)
}
