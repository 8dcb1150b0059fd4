// Package notify implements the notification/alert delivery collaborator
// (out of the core's scope per §1, but needed as a concrete NotificationSink
// so the session orchestrator has something to emit to).
//
// Grounded on internal/events/event_bus.go in the teacher repository: the
// worker-pool fan-out, atomic event counters, and per-kind subscriber list
// are kept; the market-data/order/execution event taxonomy there is
// replaced by the handful of kinds §4.9 step 9 names (trade, regime_change,
// threshold).
package notify

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/atlas-desktop/paper-engine/pkg/ports"
	"go.uber.org/zap"
)

// Handler receives one delivered event. It must not block for long; slow
// handlers are the caller's responsibility to offload.
type Handler func(ports.Event)

// Bus is a best-effort, in-process pub/sub NotificationSink. Emit never
// blocks the caller's tick: it fans the event out to a worker pool and
// returns immediately.
type Bus struct {
	logger *zap.Logger

	mu          sync.RWMutex
	subscribers map[string][]Handler // keyed by Event.Kind; "" = all kinds
	events      chan ports.Event

	published atomic.Int64
	dropped   atomic.Int64

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// NewBus starts workerCount goroutines draining a buffered event queue.
func NewBus(logger *zap.Logger, workerCount, queueSize int) *Bus {
	if workerCount <= 0 {
		workerCount = 2
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	b := &Bus{
		logger:      logger,
		subscribers: make(map[string][]Handler),
		events:      make(chan ports.Event, queueSize),
		stopCh:      make(chan struct{}),
	}
	for i := 0; i < workerCount; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	return b
}

// Subscribe registers handler for events of the given kind ("" subscribes to
// every kind).
func (b *Bus) Subscribe(kind string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[kind] = append(b.subscribers[kind], handler)
}

// Emit implements ports.NotificationSink. It never blocks: if the queue is
// full the event is dropped and counted, never panics or errors the tick.
func (b *Bus) Emit(ctx context.Context, event ports.Event) {
	select {
	case b.events <- event:
	default:
		b.dropped.Add(1)
		b.logger.Warn("notification dropped, queue full", zap.String("kind", event.Kind), zap.String("session_id", event.SessionID))
	}
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for {
		select {
		case event, ok := <-b.events:
			if !ok {
				return
			}
			b.dispatch(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bus) dispatch(event ports.Event) {
	b.mu.RLock()
	handlers := append([]Handler{}, b.subscribers[event.Kind]...)
	handlers = append(handlers, b.subscribers[""]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("notification handler panicked", zap.Any("recovered", r), zap.String("kind", event.Kind))
				}
			}()
			h(event)
		}()
	}
	b.published.Add(1)
}

// Stats reports best-effort delivery counters for telemetry/logging.
func (b *Bus) Stats() (published, dropped int64) {
	return b.published.Load(), b.dropped.Load()
}

// Close stops all workers and drains no further events.
func (b *Bus) Close() {
	close(b.stopCh)
	b.wg.Wait()
}

var _ ports.NotificationSink = (*Bus)(nil)
