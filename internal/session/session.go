// Package session implements the session orchestrator (C9): the per-tick
// entrypoint that fetches candles, runs regime detection and arbitration,
// executes trades, snapshots the portfolio, and persists the result. It
// also owns the session lifecycle (start/stop/emergency-stop/expiry) and
// the per-session serialization §5 requires.
//
// Grounded on internal/orchestrator/orchestrator.go's sequential
// Start/Stop/per-component-wiring structure in the teacher repository; the
// PhD-research component roster there (Monte Carlo, walk-forward
// optimizer, HMM regime detector) is replaced by the concrete C1-C8/C10
// pipeline this package wires together.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/atlas-desktop/paper-engine/internal/arbiter"
	candlequality "github.com/atlas-desktop/paper-engine/internal/candles"
	"github.com/atlas-desktop/paper-engine/internal/execution"
	"github.com/atlas-desktop/paper-engine/internal/history"
	"github.com/atlas-desktop/paper-engine/internal/indicators"
	"github.com/atlas-desktop/paper-engine/internal/regime"
	"github.com/atlas-desktop/paper-engine/internal/risk"
	"github.com/atlas-desktop/paper-engine/internal/sizing"
	"github.com/atlas-desktop/paper-engine/internal/strategy"
	"github.com/atlas-desktop/paper-engine/internal/telemetry"
	"github.com/atlas-desktop/paper-engine/pkg/ports"
	"github.com/atlas-desktop/paper-engine/pkg/types"
)

const (
	portfolioHistoryCap = 1000
	regimeHistoryCap    = 100
	strategySwitchCap   = 50

	// staleDataMaxRetries and staleDataRetryBackoff implement §7's "retries
	// up to 3 times (with short back-off) before raising" ErrStaleData.
	staleDataMaxRetries   = 3
	staleDataRetryBackoff = 50 * time.Millisecond
)

// Manager owns every active session's lifecycle and serializes per-session
// ticks behind a per-id lock, per §5's "must guarantee exclusive access per
// session id" requirement.
type Manager struct {
	logger   *zap.Logger
	candles  ports.CandleSource
	kv       ports.KvStore
	notifier ports.NotificationSink
	clock    ports.Clock
	ids      ports.IDGenerator
	history  *history.Store
	metrics  *telemetry.Metrics

	mu       sync.RWMutex
	sessions map[string]*entry
}

type entry struct {
	mu    sync.Mutex
	state *types.SessionState
}

func NewManager(
	logger *zap.Logger,
	candles ports.CandleSource,
	kv ports.KvStore,
	notifier ports.NotificationSink,
	clock ports.Clock,
	ids ports.IDGenerator,
	hist *history.Store,
	metrics *telemetry.Metrics,
) *Manager {
	return &Manager{
		logger:   logger,
		candles:  candles,
		kv:       kv,
		notifier: notifier,
		clock:    clock,
		ids:      ids,
		history:  hist,
		metrics:  metrics,
		sessions: make(map[string]*entry),
	}
}

// StartSession begins a new session for asset. Returns ErrSessionAlreadyActive
// if one is already active for the same asset.
func (m *Manager) StartSession(ctx context.Context, asset, name string, cfg types.AdaptiveConfig) (*types.SessionState, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfigInvalid, err)
	}

	m.mu.Lock()
	for _, e := range m.sessions {
		e.mu.Lock()
		active := e.state.Asset == asset && e.state.IsActive
		e.mu.Unlock()
		if active {
			m.mu.Unlock()
			return nil, types.ErrSessionAlreadyActive
		}
	}

	id := m.ids.NewID()
	now := m.clock.NowMS()
	initialCapital := cfg.Bullish.InitialCapital
	state := &types.SessionState{
		SchemaVersion: types.CurrentSchemaVersion,
		ID:            id,
		Asset:         asset,
		Name:          name,
		Config:        cfg,
		StartedAt:     now,
		IsActive:      true,
		Portfolio:     types.NewPortfolio(initialCapital),
		LastUpdate:    now,
		ExpiresAt:     now + types.SessionExpiryMS,
	}
	m.sessions[id] = &entry{state: state}
	m.mu.Unlock()

	m.history.Reset(id, initialCapital)
	if m.metrics != nil {
		m.metrics.ActiveSessions.Inc()
	}

	if err := m.persist(ctx, state); err != nil {
		return nil, err
	}
	return cloneState(state), nil
}

// Tick runs one full orchestrator pass for sessionID (§4.9 steps 1-9). It
// acquires the session's lock for the duration of the tick so concurrent
// callers serialize rather than race.
func (m *Manager) Tick(ctx context.Context, sessionID string, timeframe types.Timeframe) (*types.SessionState, error) {
	e, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	state := e.state

	if !state.IsActive {
		return nil, types.ErrSessionNotActive
	}
	now := m.clock.NowMS()
	if state.Expired(now) {
		state.IsActive = false
		_ = m.persist(ctx, state)
		return nil, types.ErrSessionExpired
	}

	interval := timeframe.DurationMS()
	var candles []types.Candle
	for attempt := 0; ; attempt++ {
		candles, err = m.candles.Fetch(ctx, state.Asset, timeframe, state.StartedAt, now)
		if err != nil {
			m.recordTickFailure(state, "fetch_failed")
			return nil, fmt.Errorf("%w: %v", types.ErrFetchFailure, err)
		}
		if len(candles) < regime.MinCandlesForDetection {
			m.recordTickFailure(state, "insufficient_data")
			return nil, types.ErrInsufficientData
		}
		freshness := now - candles[len(candles)-1].Timestamp
		if interval <= 0 || freshness <= int64(1.5*float64(interval)) {
			break
		}
		if attempt >= staleDataMaxRetries-1 {
			m.recordTickFailure(state, "stale_data")
			return nil, types.ErrStaleData
		}
		time.Sleep(staleDataRetryBackoff)
		now = m.clock.NowMS()
	}

	preTick, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("session: snapshot %s: %w", state.ID, err)
	}

	quality := candlequality.AssessQuality(candles, timeframe, now)
	state.DataQuality = quality

	i := len(candles) - 1
	currentPrice := candles[i].Close

	prevRegime := types.RegimeNeutral
	if len(state.RegimeHistory) > 0 {
		prevRegime = state.RegimeHistory[len(state.RegimeHistory)-1].Regime
	}
	regimeSignal := regime.Detect(candles, i, prevRegime)
	regimeLast5 := m.history.AppendRegime(sessionID, regimeSignal.Regime)

	peak, drawdown := m.history.UpdatePeakDrawdown(sessionID, state.Portfolio.TotalValue)
	state.PeakValue = peak
	state.CurrentDrawdown = drawdown

	riskIn := risk.Input{
		RecentCloses:           types.Closes(candles),
		RegimeHistoryLast5:     regimeLast5,
		RecentOutcomesWins:     m.history.Outcomes(sessionID),
		PeakValue:              peak,
		CurrentValue:           state.Portfolio.TotalValue,
		IsEmergencyStopped:     state.IsEmergencyStopped,
		MaxVolatility:          state.Config.MaxVolatility,
		WhipsawMaxChanges:      state.Config.WhipsawMaxChanges,
		CircuitBreakerWinRate:  state.Config.CircuitBreakerWinRate,
		CircuitBreakerLookback: state.Config.CircuitBreakerLookback,
		MaxDrawdownThreshold:   state.Config.MaxDrawdownThreshold,
	}

	arbResult := arbiter.Arbitrate(candles, i, regimeSignal, state.Config, regimeLast5, arbiter.Correlation{}, riskIn)

	var sig strategy.Signal
	var kellyMultiplier float64 = 1.0
	var execResult execution.Result

	if !arbResult.Blocked && arbResult.ActiveStrategyConfig != nil {
		sig = strategy.Generate(*arbResult.ActiveStrategyConfig, candles, i)
		sig = arbiter.AmplifySignal(sig, arbResult)

		if state.Config.Kelly != nil && state.Config.Kelly.Enabled {
			sells := sellTrades(state.Trades)
			kellyResult := sizing.Kelly(sells, *state.Config.Kelly, arbResult.ActiveStrategyConfig.MaxPositionPct)
			kellyMultiplier = kellyResult.Multiplier
		}

		var atrAtEntry float64
		stopCfg := types.StopLossConfig{}
		stopEnabled := state.Config.StopLoss != nil && state.Config.StopLoss.Enabled
		if stopEnabled {
			stopCfg = *state.Config.StopLoss
			atrSeries := indicators.ATR(candles, stopCfg.ATRPeriod, stopCfg.UseEMA)
			if v, ok := atrSeries[i].Value(); ok {
				atrAtEntry = v
			}
		}

		execIn := execution.Inputs{
			Signal:                   sig,
			SignalPrice:              currentPrice,
			CurrentPrice:             currentPrice,
			Timestamp:                candles[i].Timestamp,
			Confidence:               sig.Confidence,
			MaxPositionPct:           arbResult.ActiveStrategyConfig.MaxPositionPct,
			MaxBullishPosition:       state.Config.MaxBullishPosition,
			PositionSizeMultiplier:   arbResult.PositionSizeMultiplier,
			KellyMultiplier:          kellyMultiplier,
			PriceValidationThreshold: state.Config.PriceValidationThreshold,
			MinPositionSize:          state.Config.MinPositionSize,
			StopLoss:                 stopCfg,
			StopLossEnabled:          stopEnabled,
			ATRAtEntry:               atrAtEntry,
		}

		execResult = execution.Execute(m.ids, &state.Portfolio, &state.Trades, &state.OpenPositions, execIn, func(win bool) {
			m.history.AppendOutcome(sessionID, win)
		})
	} else {
		// A blocked tick still runs the executor with a Hold signal, so the
		// Phase A stop-loss sweep honors breached stops; Phase B does nothing.
		stopCfg := types.StopLossConfig{}
		if state.Config.StopLoss != nil && state.Config.StopLoss.Enabled {
			stopCfg = *state.Config.StopLoss
		}
		execResult = execution.Execute(m.ids, &state.Portfolio, &state.Trades, &state.OpenPositions, execution.Inputs{
			CurrentPrice: currentPrice,
			Timestamp:    candles[i].Timestamp,
			StopLoss:     stopCfg,
		}, func(win bool) {
			m.history.AppendOutcome(sessionID, win)
		})
	}

	m.appendPortfolioSnapshot(state, candles[i].Timestamp, currentPrice)
	m.appendRegimeChange(state, candles[i].Timestamp, regimeSignal.Regime, regimeSignal.Confidence)
	m.appendStrategySwitch(state, candles[i].Timestamp, arbResult.ActiveStrategyName)

	state.LastSignal = &types.LastSignal{
		Regime:            regimeSignal.Regime,
		ActiveStrategy:    arbResult.ActiveStrategyName,
		Action:            string(sig.Action),
		Signal:            sig.Signal,
		Confidence:        sig.Confidence,
		PersistenceMet:    arbResult.PersistenceMet,
		MomentumConfirmed: arbResult.MomentumConfirmed,
	}
	state.LastPrice = currentPrice
	state.LastUpdate = now
	state.ExpiresAt = now + types.SessionExpiryMS

	if err := m.persist(ctx, state); err != nil {
		var rolledBack types.SessionState
		if uerr := json.Unmarshal(preTick, &rolledBack); uerr == nil {
			*state = rolledBack
		}
		return nil, err
	}

	m.emitTickNotifications(ctx, state, execResult)

	if m.metrics != nil {
		m.metrics.TicksProcessed.WithLabelValues(sessionID, state.Asset).Inc()
		m.metrics.TickDuration.WithLabelValues(sessionID).Observe(time.Since(start).Seconds())
		m.metrics.PortfolioValue.WithLabelValues(sessionID, state.Asset).Set(state.Portfolio.TotalValue)
		if execResult.NewTrade != nil {
			m.metrics.TradesExecuted.WithLabelValues(sessionID, string(execResult.NewTrade.Kind)).Inc()
		}
		for _, t := range execResult.StopLossExits {
			if t.PnL != nil {
				m.metrics.TradesExecuted.WithLabelValues(sessionID, string(t.Kind)).Inc()
			}
		}
	}

	return cloneState(state), nil
}

// StopSession flips is_active=false, drops process-wide rolling history,
// and persists. It acquires the same per-session lock a concurrent Tick
// would hold, per §5's race-safety requirement.
func (m *Manager) StopSession(ctx context.Context, sessionID string) error {
	e, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.IsActive = false
	e.state.StoppedAt = ptrInt64(m.clock.NowMS())
	m.history.Release(sessionID)
	if m.metrics != nil {
		m.metrics.ActiveSessions.Dec()
	}
	return m.persist(ctx, e.state)
}

// SetEmergencyStop toggles the emergency-stop flag, which blocks new Buys
// while still honoring stop-loss exits (§3).
func (m *Manager) SetEmergencyStop(ctx context.Context, sessionID string, stopped bool) error {
	e, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.IsEmergencyStopped = stopped
	return m.persist(ctx, e.state)
}

// GetActiveSession returns a defensive copy of the session's current state.
func (m *Manager) GetActiveSession(sessionID string) (*types.SessionState, error) {
	e, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneState(e.state), nil
}

// CleanupExpiredSessions stops every active session whose last_update is
// more than 90 days old, aggregating any per-session stop failures with
// multierr rather than aborting the sweep early.
func (m *Manager) CleanupExpiredSessions(ctx context.Context) error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	now := m.clock.NowMS()
	for id, e := range m.sessions {
		e.mu.Lock()
		expired := e.state.IsActive && e.state.Expired(now)
		e.mu.Unlock()
		if expired {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	var errs error
	for _, id := range ids {
		if err := m.StopSession(ctx, id); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("session %s: %w", id, err))
		}
	}
	return errs
}

func (m *Manager) lookup(sessionID string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return nil, types.ErrSessionNotFound
	}
	return e, nil
}

func (m *Manager) persist(ctx context.Context, state *types.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("session: marshal %s: %w", state.ID, err)
	}
	if err := m.kv.Put(ctx, state.ID, raw); err != nil {
		return fmt.Errorf("%w: %v", types.ErrPersistenceFailure, err)
	}
	return nil
}

func (m *Manager) recordTickFailure(state *types.SessionState, reason string) {
	if m.metrics != nil {
		m.metrics.TicksFailed.WithLabelValues(state.ID, reason).Inc()
	}
}

func (m *Manager) appendPortfolioSnapshot(state *types.SessionState, ts int64, price float64) {
	if n := len(state.PortfolioHistory); n > 0 && state.PortfolioHistory[n-1].Timestamp == ts {
		return
	}
	snap := types.PortfolioSnapshot{
		Timestamp:  ts,
		Quote:      state.Portfolio.QuoteBalance,
		Base:       state.Portfolio.BaseBalance,
		TotalValue: state.Portfolio.TotalValue,
		Price:      price,
	}
	state.PortfolioHistory = append(state.PortfolioHistory, snap)
	if len(state.PortfolioHistory) > portfolioHistoryCap {
		state.PortfolioHistory = state.PortfolioHistory[len(state.PortfolioHistory)-portfolioHistoryCap:]
	}
}

func (m *Manager) appendRegimeChange(state *types.SessionState, ts int64, current types.RegimeKind, confidence float64) {
	if n := len(state.RegimeHistory); n > 0 {
		if state.RegimeHistory[n-1].Regime == current {
			return
		}
	} else if current == types.RegimeNeutral {
		return
	}
	state.RegimeHistory = append(state.RegimeHistory, types.RegimeChange{Timestamp: ts, Regime: current, Confidence: confidence})
	if len(state.RegimeHistory) > regimeHistoryCap {
		state.RegimeHistory = state.RegimeHistory[len(state.RegimeHistory)-regimeHistoryCap:]
	}
}

func (m *Manager) appendStrategySwitch(state *types.SessionState, ts int64, name string) {
	if name == "" {
		return
	}
	prev := ""
	if n := len(state.StrategySwitches); n > 0 {
		prev = state.StrategySwitches[n-1].To
		if prev == name {
			return
		}
	}
	state.StrategySwitches = append(state.StrategySwitches, types.StrategySwitch{Timestamp: ts, From: prev, To: name})
	if len(state.StrategySwitches) > strategySwitchCap {
		state.StrategySwitches = state.StrategySwitches[len(state.StrategySwitches)-strategySwitchCap:]
	}
}

func (m *Manager) emitTickNotifications(ctx context.Context, state *types.SessionState, execResult execution.Result) {
	if m.notifier == nil {
		return
	}
	if execResult.NewTrade != nil {
		m.notifier.Emit(ctx, ports.Event{
			Kind:      "trade",
			SessionID: state.ID,
			Message:   fmt.Sprintf("%s %.6f @ %.2f", execResult.NewTrade.Kind, execResult.NewTrade.BaseAmount, execResult.NewTrade.Price),
			At:        state.LastUpdate,
		})
	}
	for _, t := range execResult.StopLossExits {
		m.notifier.Emit(ctx, ports.Event{
			Kind:      "trade",
			SessionID: state.ID,
			Message:   fmt.Sprintf("stop-loss exit %.6f @ %.2f", t.BaseAmount, t.Price),
			At:        state.LastUpdate,
		})
	}
	if state.CurrentDrawdown >= state.Config.MaxDrawdownThreshold && state.Config.MaxDrawdownThreshold > 0 {
		m.notifier.Emit(ctx, ports.Event{
			Kind:      "threshold",
			SessionID: state.ID,
			Message:   fmt.Sprintf("drawdown %.2f%% at or above threshold", state.CurrentDrawdown*100),
			At:        state.LastUpdate,
		})
	}
	if !state.DataQuality.Valid {
		m.notifier.Emit(ctx, ports.Event{
			Kind:      "data_quality",
			SessionID: state.ID,
			Message:   fmt.Sprintf("data quality check failed: %s", strings.Join(state.DataQuality.Messages, "; ")),
			At:        state.LastUpdate,
			Data: map[string]any{
				"gap_count":      state.DataQuality.GapCount,
				"coverage_ratio": state.DataQuality.CoverageRatio,
				"freshness_ms":   state.DataQuality.FreshnessMS,
			},
		})
	}
}

func sellTrades(trades []*types.Trade) []*types.Trade {
	out := make([]*types.Trade, 0, len(trades))
	for _, t := range trades {
		if t.Kind == types.TradeSell {
			out = append(out, t)
		}
	}
	return out
}

func cloneState(s *types.SessionState) *types.SessionState {
	cp := *s
	return &cp
}

func ptrInt64(v int64) *int64 { return &v }
