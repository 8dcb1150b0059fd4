package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atlas-desktop/paper-engine/internal/history"
	"github.com/atlas-desktop/paper-engine/internal/idgen"
	"github.com/atlas-desktop/paper-engine/internal/session"
	"github.com/atlas-desktop/paper-engine/internal/telemetry"
	"github.com/atlas-desktop/paper-engine/pkg/ports"
	"github.com/atlas-desktop/paper-engine/pkg/types"
)

// memKV is a trivial in-memory ports.KvStore for tests.
type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// failingKV wraps a memKV and fails Put once its call count exceeds
// failAfter, to exercise Tick's rollback-on-persistence-failure path.
type failingKV struct {
	inner     *memKV
	failAfter int
	calls     int
}

func (f *failingKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return f.inner.Get(ctx, key)
}

func (f *failingKV) Put(ctx context.Context, key string, value []byte) error {
	f.calls++
	if f.calls > f.failAfter {
		return errors.New("put failed")
	}
	return f.inner.Put(ctx, key, value)
}

// fakeNotifier records every emitted event for assertion.
type fakeNotifier struct {
	mu     sync.Mutex
	events []ports.Event
}

func (f *fakeNotifier) Emit(_ context.Context, e ports.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakeNotifier) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Kind
	}
	return out
}

// staleThenFreshCandles returns a stale candle slice for its first
// staleCalls invocations, then a fresh one thereafter, to exercise Tick's
// stale-data retry loop.
type staleThenFreshCandles struct {
	mu         sync.Mutex
	calls      int
	staleCalls int
	stale      []types.Candle
	fresh      []types.Candle
}

func (s *staleThenFreshCandles) Fetch(_ context.Context, _ string, _ types.Timeframe, _, _ int64) ([]types.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.staleCalls {
		return s.stale, nil
	}
	return s.fresh, nil
}

// fakeCandles hands back a fixed, mildly trending candle sequence regardless
// of the requested window, so a single fixture can drive many ticks.
type fakeCandles struct {
	bars []types.Candle
	err  error
}

func (f *fakeCandles) Fetch(_ context.Context, _ string, _ types.Timeframe, _, _ int64) ([]types.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.bars, nil
}

func genTrendingCandles(n int) []types.Candle {
	bars := make([]types.Candle, n)
	price := 1000.0
	for i := 0; i < n; i++ {
		price += 1.5
		bars[i] = types.Candle{
			Timestamp: int64(i+1) * types.Timeframe1h.DurationMS(),
			Open:      price - 1,
			High:      price + 2,
			Low:       price - 2,
			Close:     price,
			Volume:    100,
		}
	}
	return bars
}

func testConfig() types.AdaptiveConfig {
	strat := func(name string) types.StrategyConfig {
		return types.StrategyConfig{
			Name:           name,
			Timeframe:      types.Timeframe1h,
			BuyThreshold:   0.05,
			SellThreshold:  -0.05,
			MaxPositionPct: 0.8,
			InitialCapital: 1000,
			Indicators: []types.IndicatorConfig{
				{Kind: types.IndicatorSMA, Weight: 1.0, Period: 10},
			},
		}
	}
	return types.AdaptiveConfig{
		Bullish:                       strat("bull"),
		Bearish:                       strat("bear"),
		RegimeConfidenceThreshold:     0.1,
		MomentumConfirmationThreshold: 0.0,
		RegimePersistencePeriods:      1,
		MaxBullishPosition:            1.0,
		MaxVolatility:                 10.0,
		CircuitBreakerWinRate:         0.0,
		CircuitBreakerLookback:        20,
		WhipsawDetectionPeriods:       20,
		WhipsawMaxChanges:             20,
		MaxDrawdownThreshold:          0.9,
		PriceValidationThreshold:      0.5,
		MinPositionSize:               0.0,
	}
}

func newTestManager(bars []types.Candle) (*session.Manager, *idgen.FakeClock) {
	clock := idgen.NewFakeClock(0)
	mgr := session.NewManager(
		zap.NewNop(),
		&fakeCandles{bars: bars},
		newMemKV(),
		nil,
		clock,
		idgen.NewCounterGenerator("sess"),
		history.NewStore(),
		telemetry.New(),
	)
	return mgr, clock
}

func TestStartSessionThenTickPopulatesHistory(t *testing.T) {
	bars := genTrendingCandles(60)
	mgr, clock := newTestManager(bars)
	clock.Set(bars[len(bars)-1].Timestamp)

	state, err := mgr.StartSession(context.Background(), "BTC-USD", "test", testConfig())
	require.NoError(t, err)
	require.True(t, state.IsActive)

	updated, err := mgr.Tick(context.Background(), state.ID, types.Timeframe1h)
	require.NoError(t, err)
	require.NotEmpty(t, updated.PortfolioHistory)
	require.NotNil(t, updated.LastSignal)
}

func TestStartSessionRejectsDuplicateAssetWhileActive(t *testing.T) {
	bars := genTrendingCandles(60)
	mgr, _ := newTestManager(bars)

	_, err := mgr.StartSession(context.Background(), "BTC-USD", "first", testConfig())
	require.NoError(t, err)

	_, err = mgr.StartSession(context.Background(), "BTC-USD", "second", testConfig())
	require.ErrorIs(t, err, types.ErrSessionAlreadyActive)
}

func TestTickUnknownSessionReturnsNotFound(t *testing.T) {
	mgr, _ := newTestManager(genTrendingCandles(60))
	_, err := mgr.Tick(context.Background(), "does-not-exist", types.Timeframe1h)
	require.ErrorIs(t, err, types.ErrSessionNotFound)
}

func TestTickInsufficientDataIsRejected(t *testing.T) {
	bars := genTrendingCandles(10)
	mgr, clock := newTestManager(bars)
	clock.Set(bars[len(bars)-1].Timestamp)

	state, err := mgr.StartSession(context.Background(), "BTC-USD", "test", testConfig())
	require.NoError(t, err)

	_, err = mgr.Tick(context.Background(), state.ID, types.Timeframe1h)
	require.ErrorIs(t, err, types.ErrInsufficientData)
}

func TestStopSessionDeactivatesAndReleasesHistory(t *testing.T) {
	bars := genTrendingCandles(60)
	mgr, clock := newTestManager(bars)
	clock.Set(bars[len(bars)-1].Timestamp)

	state, err := mgr.StartSession(context.Background(), "BTC-USD", "test", testConfig())
	require.NoError(t, err)
	_, err = mgr.Tick(context.Background(), state.ID, types.Timeframe1h)
	require.NoError(t, err)

	require.NoError(t, mgr.StopSession(context.Background(), state.ID))

	got, err := mgr.GetActiveSession(state.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
	require.NotNil(t, got.StoppedAt)

	// Starting a new session for the same asset is now allowed.
	_, err = mgr.StartSession(context.Background(), "BTC-USD", "again", testConfig())
	require.NoError(t, err)
}

func TestSetEmergencyStopPersists(t *testing.T) {
	mgr, _ := newTestManager(genTrendingCandles(60))
	state, err := mgr.StartSession(context.Background(), "BTC-USD", "test", testConfig())
	require.NoError(t, err)

	require.NoError(t, mgr.SetEmergencyStop(context.Background(), state.ID, true))
	got, err := mgr.GetActiveSession(state.ID)
	require.NoError(t, err)
	require.True(t, got.IsEmergencyStopped)
}

// TestTickAssessesAndPersistsDataQuality exercises §4.9 step 3: a candle
// sequence with a gap produces an invalid quality report that is attached
// to the session and announced to the notification sink.
func TestTickAssessesAndPersistsDataQuality(t *testing.T) {
	bars := genTrendingCandles(60)
	interval := types.Timeframe1h.DurationMS()
	for i := 40; i < len(bars); i++ {
		bars[i].Timestamp += 10 * interval
	}

	notifier := &fakeNotifier{}
	clock := idgen.NewFakeClock(bars[len(bars)-1].Timestamp)
	mgr := session.NewManager(zap.NewNop(), &fakeCandles{bars: bars}, newMemKV(), notifier, clock, idgen.NewCounterGenerator("sess"), history.NewStore(), telemetry.New())

	state, err := mgr.StartSession(context.Background(), "BTC-USD", "test", testConfig())
	require.NoError(t, err)

	updated, err := mgr.Tick(context.Background(), state.ID, types.Timeframe1h)
	require.NoError(t, err)
	require.False(t, updated.DataQuality.Valid)
	require.NotZero(t, updated.DataQuality.GapCount)
	require.Contains(t, notifier.kinds(), "data_quality")
}

// TestTickIsValidOnCleanData is the quality-report counterpart: a
// contiguous, fresh candle sequence produces a valid report and no
// data_quality alert.
func TestTickIsValidOnCleanData(t *testing.T) {
	bars := genTrendingCandles(60)
	notifier := &fakeNotifier{}
	clock := idgen.NewFakeClock(bars[len(bars)-1].Timestamp)
	mgr := session.NewManager(zap.NewNop(), &fakeCandles{bars: bars}, newMemKV(), notifier, clock, idgen.NewCounterGenerator("sess"), history.NewStore(), telemetry.New())

	state, err := mgr.StartSession(context.Background(), "BTC-USD", "test", testConfig())
	require.NoError(t, err)

	updated, err := mgr.Tick(context.Background(), state.ID, types.Timeframe1h)
	require.NoError(t, err)
	require.True(t, updated.DataQuality.Valid)
	require.NotContains(t, notifier.kinds(), "data_quality")
}

// TestTickRetriesStaleDataThenSucceeds reproduces §7's documented retry
// behavior: up to 3 fetch attempts before raising ErrStaleData, here
// succeeding on the final allowed attempt.
func TestTickRetriesStaleDataThenSucceeds(t *testing.T) {
	bars := genTrendingCandles(60)
	interval := types.Timeframe1h.DurationMS()
	clockNow := bars[len(bars)-1].Timestamp

	stale := make([]types.Candle, len(bars))
	copy(stale, bars)
	stale[len(stale)-1].Timestamp = clockNow - 10*interval

	src := &staleThenFreshCandles{staleCalls: 2, stale: stale, fresh: bars}
	clock := idgen.NewFakeClock(clockNow)
	mgr := session.NewManager(zap.NewNop(), src, newMemKV(), nil, clock, idgen.NewCounterGenerator("sess"), history.NewStore(), telemetry.New())

	state, err := mgr.StartSession(context.Background(), "BTC-USD", "test", testConfig())
	require.NoError(t, err)

	updated, err := mgr.Tick(context.Background(), state.ID, types.Timeframe1h)
	require.NoError(t, err)
	require.NotNil(t, updated.LastSignal)
	require.Equal(t, 3, src.calls)
}

// TestTickRaisesStaleDataAfterExhaustingRetries reproduces the other half
// of §7: candles that never freshen across all 3 attempts surface
// ErrStaleData.
func TestTickRaisesStaleDataAfterExhaustingRetries(t *testing.T) {
	bars := genTrendingCandles(60)
	interval := types.Timeframe1h.DurationMS()
	clockNow := bars[len(bars)-1].Timestamp

	stale := make([]types.Candle, len(bars))
	copy(stale, bars)
	stale[len(stale)-1].Timestamp = clockNow - 10*interval

	src := &staleThenFreshCandles{staleCalls: 999, stale: stale, fresh: bars}
	clock := idgen.NewFakeClock(clockNow)
	mgr := session.NewManager(zap.NewNop(), src, newMemKV(), nil, clock, idgen.NewCounterGenerator("sess"), history.NewStore(), telemetry.New())

	state, err := mgr.StartSession(context.Background(), "BTC-USD", "test", testConfig())
	require.NoError(t, err)

	_, err = mgr.Tick(context.Background(), state.ID, types.Timeframe1h)
	require.ErrorIs(t, err, types.ErrStaleData)
	require.Equal(t, 3, src.calls)
}

// TestTickRollsBackStateOnPersistenceFailure reproduces §7's
// ErrPersistenceFailure contract: when the KV write fails, the session's
// in-memory state (portfolio, trades) is restored to its pre-tick snapshot
// rather than left holding the failed tick's mutations.
func TestTickRollsBackStateOnPersistenceFailure(t *testing.T) {
	bars := genTrendingCandles(60)
	clock := idgen.NewFakeClock(bars[len(bars)-1].Timestamp)
	kv := &failingKV{inner: newMemKV(), failAfter: 1} // allow StartSession's persist, fail Tick's
	mgr := session.NewManager(zap.NewNop(), &fakeCandles{bars: bars}, kv, nil, clock, idgen.NewCounterGenerator("sess"), history.NewStore(), telemetry.New())

	state, err := mgr.StartSession(context.Background(), "BTC-USD", "test", testConfig())
	require.NoError(t, err)
	preTickPortfolio := state.Portfolio

	_, err = mgr.Tick(context.Background(), state.ID, types.Timeframe1h)
	require.ErrorIs(t, err, types.ErrPersistenceFailure)

	// Tick failed to persist; the lock was released, so a fresh lookup must
	// show the state rolled back rather than holding the failed mutation.
	got, err := mgr.GetActiveSession(state.ID)
	require.NoError(t, err)
	require.Equal(t, preTickPortfolio, got.Portfolio)
	require.Empty(t, got.Trades)
	require.Equal(t, types.DataQualityWarning{}, got.DataQuality)
}

var (
	_ ports.CandleSource     = (*fakeCandles)(nil)
	_ ports.CandleSource     = (*staleThenFreshCandles)(nil)
	_ ports.KvStore          = (*failingKV)(nil)
	_ ports.NotificationSink = (*fakeNotifier)(nil)
)
