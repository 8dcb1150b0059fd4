// Package regime implements the market regime detector (C2): trend and
// momentum sub-scores combined into a composite signal, smoothed over five
// periods and classified with hysteresis bands into Bullish/Bearish/
// Neutral.
//
// Grounded on internal/regime/detector.go in the teacher repository for
// package layout and doc-comment register; the teacher's zap-logger-carrying
// constructor is not kept (the package exposes pure functions only), and the
// HMM/Baum-Welch algorithm itself is replaced entirely with the
// trend/momentum/hysteresis algorithm described here.
// Volatility uses gonum.org/v1/gonum/stat, the statistics library the
// aristath-sentinel repo in the retrieval pack depends on.
package regime

import (
	"github.com/atlas-desktop/paper-engine/internal/indicators"
	"github.com/atlas-desktop/paper-engine/pkg/types"
	"gonum.org/v1/gonum/stat"
)

// MinCandlesForDetection is the minimum candle count the orchestrator and
// backtester require, and the index threshold Detect applies: for every
// index i below it Detect reports Neutral with zero confidence (§4.2), so a
// prefix of exactly this many candles (last index 49) still reports Neutral.
const MinCandlesForDetection = 50

// Detect classifies the regime at index i of candles, given the regime
// classified at i-1 (prevRegime; ignored when i < MinCandlesForDetection).
// Pure: identical candles[0..=i] and prevRegime always produce an
// identical result (invariant #5, §8).
func Detect(candles []types.Candle, i int, prevRegime types.RegimeKind) types.RegimeSignal {
	if i < 0 || i >= len(candles) {
		return types.RegimeSignal{Regime: types.RegimeNeutral}
	}
	if i < MinCandlesForDetection {
		return types.RegimeSignal{Regime: types.RegimeNeutral, Confidence: 0, Trend: 0, Momentum: 0, Volatility: 0}
	}

	closes := types.Closes(candles[:i+1])
	trend := trendScore(closes, i)
	momentum := momentumScore(closes, i)
	vol := volatility(closes, i)

	smoothed := smoothedComposite(closes, i)
	newRegime := classify(prevRegime, smoothed)
	confidence := minF(1.0, absF(smoothed)/0.10)

	return types.RegimeSignal{
		Regime:     newRegime,
		Confidence: confidence,
		Trend:      trend,
		Momentum:   momentum,
		Volatility: vol,
	}
}

// composite is 0.5*trend + 0.5*momentum at index j, computed from the
// prefix closes[0..=j]. closes must already be the full prefix up to the
// caller's index of interest (at least j+1 long).
func composite(closes []float64, j int) float64 {
	return 0.5*trendScore(closes, j) + 0.5*momentumScore(closes, j)
}

// smoothedComposite is the 5-period SMA of composite scores ending at i:
// s_i = average(c_{i-4..i}).
func smoothedComposite(closes []float64, i int) float64 {
	start := i - 4
	if start < 0 {
		start = 0
	}
	sum := 0.0
	count := 0
	for j := start; j <= i; j++ {
		sum += composite(closes, j)
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// trendScore averages three +1/-1/0 sub-scores: price vs SMA(50), SMA(50)
// vs SMA(200), and the slope of SMA(50) over the last 10 bars. A sub-score
// whose inputs are undefined (not enough history) contributes 0.
func trendScore(closes []float64, j int) float64 {
	sub := make([]float64, 0, 3)

	sma50 := indicators.SMA(closes[:j+1], 50)
	sma200 := indicators.SMA(closes[:j+1], 200)

	if v50, ok := sma50[j].Value(); ok {
		sub = append(sub, signOf(closes[j]-v50))
		if j >= 10 {
			if prev50, ok2 := sma50[j-10].Value(); ok2 {
				sub = append(sub, signOf(v50-prev50))
			} else {
				sub = append(sub, 0)
			}
		} else {
			sub = append(sub, 0)
		}
	} else {
		sub = append(sub, 0, 0)
	}

	if v50, ok := sma50[j].Value(); ok {
		if v200, ok2 := sma200[j].Value(); ok2 {
			sub = append(sub, signOf(v50-v200))
		} else {
			sub = append(sub, 0)
		}
	} else {
		sub = append(sub, 0)
	}

	sum := 0.0
	for _, s := range sub {
		sum += s
	}
	return sum / float64(len(sub))
}

// momentumScore averages four +1/-1/0 sub-scores: MACD-line sign,
// histogram sign, RSI zone (>55 bullish, <45 bearish), and the sign of the
// 20-bar return.
func momentumScore(closes []float64, j int) float64 {
	macd := indicators.MACD(closes[:j+1], 12, 26, 9)
	rsi := indicators.RSI(closes[:j+1], 14)

	sub := make([]float64, 0, 4)

	if v, ok := macd.MACD[j].Value(); ok {
		sub = append(sub, signOf(v))
	} else {
		sub = append(sub, 0)
	}
	if v, ok := macd.Histogram[j].Value(); ok {
		sub = append(sub, signOf(v))
	} else {
		sub = append(sub, 0)
	}
	if v, ok := rsi[j].Value(); ok {
		switch {
		case v > 55:
			sub = append(sub, 1)
		case v < 45:
			sub = append(sub, -1)
		default:
			sub = append(sub, 0)
		}
	} else {
		sub = append(sub, 0)
	}
	if j >= 20 {
		prior := closes[j-20]
		if prior != 0 {
			ret := (closes[j] - prior) / prior
			sub = append(sub, signOf(ret))
		} else {
			sub = append(sub, 0)
		}
	} else {
		sub = append(sub, 0)
	}

	sum := 0.0
	for _, s := range sub {
		sum += s
	}
	return sum / float64(len(sub))
}

// volatility is the standard deviation of the last 20 simple returns ending
// at index j.
func volatility(closes []float64, j int) float64 {
	if j < 20 {
		return 0
	}
	returns := make([]float64, 0, 20)
	for k := j - 19; k <= j; k++ {
		prev := closes[k-1]
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (closes[k]-prev)/prev)
	}
	return stat.StdDev(returns, nil)
}

// classify applies the hysteresis rule of §4.2 step 6.
func classify(prev types.RegimeKind, s float64) types.RegimeKind {
	switch prev {
	case types.RegimeBullish:
		if s >= 0.02 {
			return types.RegimeBullish
		}
		return types.RegimeNeutral
	case types.RegimeBearish:
		if s <= -0.02 {
			return types.RegimeBearish
		}
		return types.RegimeNeutral
	default: // Neutral, or unknown treated as Neutral
		if s >= 0.05 {
			return types.RegimeBullish
		}
		if s <= -0.05 {
			return types.RegimeBearish
		}
		return types.RegimeNeutral
	}
}

func signOf(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
