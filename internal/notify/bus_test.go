package notify_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/atlas-desktop/paper-engine/internal/notify"
	"github.com/atlas-desktop/paper-engine/pkg/ports"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEmitDeliversToKindSubscriber(t *testing.T) {
	bus := notify.NewBus(zap.NewNop(), 1, 8)
	defer bus.Close()

	var mu sync.Mutex
	var received []ports.Event
	bus.Subscribe("trade", func(e ports.Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
	})

	bus.Emit(context.Background(), ports.Event{Kind: "trade", SessionID: "s1", Message: "buy filled"})
	bus.Emit(context.Background(), ports.Event{Kind: "regime_change", SessionID: "s1"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, time.Millisecond)
}

func TestSubscribeAllReceivesEveryKind(t *testing.T) {
	bus := notify.NewBus(zap.NewNop(), 1, 8)
	defer bus.Close()

	var count int32 = 0
	var mu sync.Mutex
	bus.Subscribe("", func(e ports.Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})

	bus.Emit(context.Background(), ports.Event{Kind: "trade"})
	bus.Emit(context.Background(), ports.Event{Kind: "threshold"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 2
	}, time.Second, time.Millisecond)
}
