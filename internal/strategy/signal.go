// Package strategy implements the strategy signal generator (C3): given one
// parameterized strategy config and a candle sequence at an index, it
// produces a weighted-indicator-vote signal, action, confidence, and a
// per-indicator introspection map.
//
// Grounded on internal/strategy/strategy.go in the teacher repository for
// the config-driven parameter idiom (StrategyParameter-style fields); the
// teacher's named-strategy registry (momentum/mean_reversion/breakout/...)
// is replaced by the single weighted-vote function the spec defines.
package strategy

import (
	"fmt"
	"math"

	"github.com/atlas-desktop/paper-engine/internal/indicators"
	"github.com/atlas-desktop/paper-engine/pkg/types"
)

// Action is the trade action implied by a generated signal.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Signal is the signal generator's output at one candle index.
type Signal struct {
	Signal     float64            `json:"signal"`
	Action     Action             `json:"action"`
	Confidence float64            `json:"confidence"`
	Indicators map[string]float64 `json:"indicators"`
}

// Generate evaluates cfg's indicator vote at index i of candles.
func Generate(cfg types.StrategyConfig, candles []types.Candle, i int) Signal {
	closes := types.Closes(candles[:i+1])

	weightedSum := 0.0
	totalWeight := 0.0
	introspection := make(map[string]float64, len(cfg.Indicators))

	for idx, ic := range cfg.Indicators {
		sub, ok := subSignal(ic, closes, i)
		if !ok {
			continue
		}
		key := indicatorKey(ic, idx)
		introspection[key] = sub
		weightedSum += ic.Weight * sub
		totalWeight += ic.Weight
	}

	signal := 0.0
	if totalWeight > 0 {
		signal = weightedSum / totalWeight
	}
	signal = clamp(signal, -1, 1)

	action := ActionHold
	switch {
	case signal >= cfg.BuyThreshold:
		action = ActionBuy
	case signal <= cfg.SellThreshold:
		action = ActionSell
	}

	return Signal{
		Signal:     signal,
		Action:     action,
		Confidence: math.Abs(signal),
		Indicators: introspection,
	}
}

// subSignal maps one indicator's latest defined value at i into [-1,+1].
// The second return is false when the indicator is not yet defined at i.
func subSignal(ic types.IndicatorConfig, closes []float64, i int) (float64, bool) {
	switch ic.Kind {
	case types.IndicatorSMA:
		ma := indicators.SMA(closes, ic.Period)
		v, ok := ma[i].Value()
		if !ok || closes[i] == 0 {
			return 0, false
		}
		relDist := (closes[i] - v) / closes[i]
		return math.Tanh(10 * relDist), true

	case types.IndicatorEMA:
		ma := indicators.EMA(closes, ic.Period)
		v, ok := ma[i].Value()
		if !ok || closes[i] == 0 {
			return 0, false
		}
		relDist := (closes[i] - v) / closes[i]
		return math.Tanh(10 * relDist), true

	case types.IndicatorMACD:
		res := indicators.MACD(closes, ic.FastPeriod, ic.SlowPeriod, ic.SignalPeriod)
		hist, ok := res.Histogram[i].Value()
		if !ok {
			return 0, false
		}
		denom := math.Abs(closes[i]) * 1e-3
		if denom == 0 {
			return 0, false
		}
		return clamp(math.Tanh(hist/denom), -1, 1), true

	case types.IndicatorRSI:
		rsi := indicators.RSI(closes, ic.Period)
		v, ok := rsi[i].Value()
		if !ok {
			return 0, false
		}
		return clamp((50-v)/50, -1, 1), true

	default:
		return 0, false
	}
}

func indicatorKey(ic types.IndicatorConfig, idx int) string {
	switch ic.Kind {
	case types.IndicatorSMA, types.IndicatorEMA, types.IndicatorRSI:
		return fmt.Sprintf("%s_%d", ic.Kind, ic.Period)
	case types.IndicatorMACD:
		return fmt.Sprintf("macd_%d_%d_%d", ic.FastPeriod, ic.SlowPeriod, ic.SignalPeriod)
	default:
		return fmt.Sprintf("%s_%d", ic.Kind, idx)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
