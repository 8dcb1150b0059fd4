// Package backtest replays a fixed candle sequence through the same
// regime/arbiter/execution pipeline the session orchestrator runs per tick
// and reports per-period analyses plus aggregate performance metrics.
//
// Grounded on internal/backtester/metrics.go's mean/stdDev/Sharpe/profit-
// factor computation (the teacher's event-driven engine.go simulation loop
// itself is superseded, per the trimmed event-driven Non-goal; the
// bar-by-bar replay instead drives the tick pipeline directly, the same way
// internal/session.Manager.Tick does for one live tick).
package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/atlas-desktop/paper-engine/internal/arbiter"
	"github.com/atlas-desktop/paper-engine/internal/execution"
	"github.com/atlas-desktop/paper-engine/internal/history"
	"github.com/atlas-desktop/paper-engine/internal/indicators"
	"github.com/atlas-desktop/paper-engine/internal/regime"
	"github.com/atlas-desktop/paper-engine/internal/risk"
	"github.com/atlas-desktop/paper-engine/internal/sizing"
	"github.com/atlas-desktop/paper-engine/internal/strategy"
	"github.com/atlas-desktop/paper-engine/pkg/ports"
	"github.com/atlas-desktop/paper-engine/pkg/types"
)

// Run replays candles bar-by-bar starting at index
// regime.MinCandlesForDetection-1, the last bar of the first full
// MinCandlesForDetection-candle prefix, accumulating trades into a fresh portfolio seeded from
// cfg.Bullish.InitialCapital. ethCandles, if non-nil, supplies the
// buy-and-hold baseline vsEthHold is measured against; nil falls back to
// the backtested asset's own buy-and-hold return over the same window.
func Run(ids ports.IDGenerator, candles []types.Candle, cfg types.AdaptiveConfig, ethCandles []types.Candle) (*types.BacktestResult, error) {
	if len(candles) < regime.MinCandlesForDetection {
		return nil, types.ErrInsufficientData
	}

	hist := history.NewStore()
	const sid = "backtest"
	initialCapital := cfg.Bullish.InitialCapital
	hist.Reset(sid, initialCapital)

	portfolio := types.NewPortfolio(initialCapital)
	var trades []*types.Trade
	var openPositions []*types.OpenPosition
	periods := make([]types.PeriodAnalysis, 0, len(candles)-regime.MinCandlesForDetection+1)

	prevRegime := types.RegimeNeutral
	for i := regime.MinCandlesForDetection - 1; i < len(candles); i++ {
		currentPrice := candles[i].Close

		regimeSignal := regime.Detect(candles, i, prevRegime)
		prevRegime = regimeSignal.Regime
		regimeLast5 := hist.AppendRegime(sid, regimeSignal.Regime)

		peak, _ := hist.UpdatePeakDrawdown(sid, portfolio.TotalValue)

		riskIn := risk.Input{
			RecentCloses:           types.Closes(candles[:i+1]),
			RegimeHistoryLast5:     regimeLast5,
			RecentOutcomesWins:     hist.Outcomes(sid),
			PeakValue:              peak,
			CurrentValue:           portfolio.TotalValue,
			MaxVolatility:          cfg.MaxVolatility,
			WhipsawMaxChanges:      cfg.WhipsawMaxChanges,
			CircuitBreakerWinRate:  cfg.CircuitBreakerWinRate,
			CircuitBreakerLookback: cfg.CircuitBreakerLookback,
			MaxDrawdownThreshold:   cfg.MaxDrawdownThreshold,
		}

		arbResult := arbiter.Arbitrate(candles, i, regimeSignal, cfg, regimeLast5, arbiter.Correlation{}, riskIn)

		var sig strategy.Signal
		var execResult execution.Result
		if !arbResult.Blocked && arbResult.ActiveStrategyConfig != nil {
			sig = strategy.Generate(*arbResult.ActiveStrategyConfig, candles, i)
			sig = arbiter.AmplifySignal(sig, arbResult)

			kellyMultiplier := 1.0
			if cfg.Kelly != nil && cfg.Kelly.Enabled {
				kellyResult := sizing.Kelly(sellTrades(trades), *cfg.Kelly, arbResult.ActiveStrategyConfig.MaxPositionPct)
				kellyMultiplier = kellyResult.Multiplier
			}

			var atrAtEntry float64
			stopCfg := types.StopLossConfig{}
			stopEnabled := cfg.StopLoss != nil && cfg.StopLoss.Enabled
			if stopEnabled {
				stopCfg = *cfg.StopLoss
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
				MaxBullishPosition:       cfg.MaxBullishPosition,
				PositionSizeMultiplier:   arbResult.PositionSizeMultiplier,
				KellyMultiplier:          kellyMultiplier,
				PriceValidationThreshold: cfg.PriceValidationThreshold,
				MinPositionSize:          cfg.MinPositionSize,
				StopLoss:                 stopCfg,
				StopLossEnabled:          stopEnabled,
				ATRAtEntry:               atrAtEntry,
			}

			execResult = execution.Execute(ids, &portfolio, &trades, &openPositions, execIn, func(win bool) {
				hist.AppendOutcome(sid, win)
			})
		} else {
			// Blocked bars still run the Phase A stop-loss sweep via a Hold signal.
			stopCfg := types.StopLossConfig{}
			if cfg.StopLoss != nil && cfg.StopLoss.Enabled {
				stopCfg = *cfg.StopLoss
			}
			execResult = execution.Execute(ids, &portfolio, &trades, &openPositions, execution.Inputs{
				CurrentPrice: currentPrice,
				Timestamp:    candles[i].Timestamp,
				StopLoss:     stopCfg,
			}, func(win bool) {
				hist.AppendOutcome(sid, win)
			})
		}

		periods = append(periods, types.PeriodAnalysis{
			Timestamp:         candles[i].Timestamp,
			Price:             currentPrice,
			Regime:            regimeSignal.Regime,
			MomentumConfirmed: arbResult.MomentumConfirmed,
			PersistenceMet:    arbResult.PersistenceMet,
			ActiveStrategy:    arbResult.ActiveStrategyName,
			Signal:            sig.Signal,
			Action:            string(sig.Action),
			Trade:             latestTrade(execResult),
			Portfolio: types.PortfolioSnapshot{
				Timestamp:  candles[i].Timestamp,
				Quote:      portfolio.QuoteBalance,
				Base:       portfolio.BaseBalance,
				TotalValue: portfolio.TotalValue,
				Price:      currentPrice,
			},
		})
	}

	baseline := ethCandles
	if baseline == nil {
		baseline = candles
	}
	metrics := computeMetrics(periods, trades, portfolio, initialCapital, baseline)

	return &types.BacktestResult{Periods: periods, Trades: trades, Metrics: metrics}, nil
}

func latestTrade(r execution.Result) *types.Trade {
	if r.NewTrade != nil {
		return r.NewTrade
	}
	if n := len(r.StopLossExits); n > 0 {
		return r.StopLossExits[n-1]
	}
	return nil
}

func computeMetrics(periods []types.PeriodAnalysis, trades []*types.Trade, portfolio types.Portfolio, initialCapital float64, holdBaseline []types.Candle) types.AggregateMetrics {
	var m types.AggregateMetrics
	if initialCapital == 0 || len(periods) == 0 {
		return m
	}
	m.ReturnPct = (portfolio.TotalValue - initialCapital) / initialCapital * 100

	maxDD, peak := 0.0, periods[0].Portfolio.TotalValue
	for _, p := range periods {
		if p.Portfolio.TotalValue > peak {
			peak = p.Portfolio.TotalValue
		}
		if peak > 0 {
			if dd := (peak - p.Portfolio.TotalValue) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	m.MaxDrawdownPct = maxDD * 100

	sells := sellTrades(trades)
	var wins int
	var grossWins, grossLosses float64
	for _, t := range sells {
		if t.PnL == nil {
			continue
		}
		switch {
		case *t.PnL > 0:
			wins++
			grossWins += *t.PnL
		case *t.PnL < 0:
			grossLosses += -*t.PnL
		}
	}
	if len(sells) > 0 {
		m.WinRate = float64(wins) / float64(len(sells))
	}
	if grossLosses > 0 {
		m.ProfitFactor = grossWins / grossLosses
	}

	returns := make([]float64, 0, len(periods))
	for i := 1; i < len(periods); i++ {
		prev := periods[i-1].Portfolio.TotalValue
		if prev == 0 {
			continue
		}
		returns = append(returns, (periods[i].Portfolio.TotalValue-prev)/prev)
	}
	if len(returns) > 1 {
		mean := stat.Mean(returns, nil)
		sd := stat.StdDev(returns, nil)
		if sd > 0 {
			m.SharpeRatio = (mean / sd) * math.Sqrt(252)
		}
	}

	if m.MaxDrawdownPct != 0 {
		m.RiskAdjustedReturn = m.ReturnPct / m.MaxDrawdownPct
	}

	if len(holdBaseline) > 1 {
		start := holdBaseline[0].Close
		end := holdBaseline[len(holdBaseline)-1].Close
		if start != 0 {
			holdReturnPct := (end - start) / start * 100
			m.VsEthHold = m.ReturnPct - holdReturnPct
		}
	}

	return m
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
