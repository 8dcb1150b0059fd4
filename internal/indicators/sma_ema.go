// Package indicators implements the pure, deterministic indicator library
// (C1): SMA, EMA, MACD, RSI, ATR over a closing-price sequence. Every
// function returns a sequence the same length as its input, with the first
// few entries Optional-undefined — the Optional type (see pkg/types) rather
// than a NaN sentinel, per the design notes.
//
// Grounded on internal/strategy/strategy.go's indicator-evaluation helpers
// in the teacher repository; RSI's Wilder smoothing is backed by
// github.com/markcheno/go-talib, the indicator library used by the
// aristath-sentinel repo in the retrieval pack. SMA/EMA/MACD/ATR are
// hand-rolled because go-talib's warm-up/seeding conventions for those
// functions don't match the spec's exact seeded-EMA and SMA-or-EMA-smoothed
// ATR semantics.
package indicators

import (
	"github.com/atlas-desktop/paper-engine/pkg/types"
)

// SMA is the arithmetic mean of the last `period` closes at each index >=
// period-1. Indices before that are undefined.
func SMA(prices []float64, period int) []types.Optional {
	out := make([]types.Optional, len(prices))
	if period <= 0 || len(prices) < period {
		for i := range out {
			out[i] = types.None()
		}
		return out
	}
	sum := 0.0
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			out[i] = types.Some(sum / float64(period))
		} else {
			out[i] = types.None()
		}
	}
	return out
}

// EMA seeds with the SMA of the first `period` closes, then applies
// ema_i = close_i*alpha + ema_{i-1}*(1-alpha), alpha = 2/(period+1).
func EMA(prices []float64, period int) []types.Optional {
	out := make([]types.Optional, len(prices))
	if period <= 0 || len(prices) < period {
		for i := range out {
			out[i] = types.None()
		}
		return out
	}
	alpha := 2.0 / (float64(period) + 1.0)
	seedSum := 0.0
	for i := 0; i < period; i++ {
		seedSum += prices[i]
		out[i] = types.None()
	}
	prev := seedSum / float64(period)
	out[period-1] = types.Some(prev)
	for i := period; i < len(prices); i++ {
		prev = prices[i]*alpha + prev*(1-alpha)
		out[i] = types.Some(prev)
	}
	return out
}

// EMAFromOptional applies the same recurrence over an already-Optional
// series (used for MACD's signal line, which is an EMA of the MACD line).
// The seed is the SMA of the first `period` defined values encountered.
func EMAFromOptional(values []types.Optional, period int) []types.Optional {
	out := make([]types.Optional, len(values))
	for i := range out {
		out[i] = types.None()
	}
	if period <= 0 {
		return out
	}
	alpha := 2.0 / (float64(period) + 1.0)
	seeded := false
	seedSum := 0.0
	seedCount := 0
	var prev float64
	for i, ov := range values {
		v, ok := ov.Value()
		if !ok {
			continue
		}
		if !seeded {
			seedSum += v
			seedCount++
			if seedCount == period {
				prev = seedSum / float64(period)
				out[i] = types.Some(prev)
				seeded = true
			}
			continue
		}
		prev = v*alpha + prev*(1-alpha)
		out[i] = types.Some(prev)
	}
	return out
}
