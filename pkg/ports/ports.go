// Package ports declares the external collaborator interfaces the core
// decision-and-execution engine depends on. Candle ingestion, session
// persistence, notification delivery, and report rendering are explicitly
// out of scope for the core itself; it only ever talks to these ports.
package ports

import (
	"context"

	"github.com/atlas-desktop/paper-engine/pkg/types"
)

// CandleSource returns gap-checked, sorted candles for one symbol/timeframe
// window. On success the last candle must be the most recent one for which
// Close is known.
type CandleSource interface {
	Fetch(ctx context.Context, symbol string, timeframe types.Timeframe, startMS, endMS int64) ([]types.Candle, error)
}

// KvStore persists opaque session records keyed by a string key.
type KvStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Event is the payload handed to a NotificationSink.
type Event struct {
	Kind      string
	SessionID string
	Message   string
	At        int64
	Data      map[string]any
}

// NotificationSink emits best-effort, non-blocking notifications. Failures
// are logged by the implementation; they are never surfaced as tick
// failures by the core.
type NotificationSink interface {
	Emit(ctx context.Context, event Event)
}

// Clock is injectable wall-clock time, for deterministic tests.
type Clock interface {
	NowMS() int64
}

// IDGenerator produces trade and session identifiers. The only randomness
// named anywhere in the core is id generation; tests inject a deterministic
// counter instead of a real UUID generator.
type IDGenerator interface {
	NewID() string
}
