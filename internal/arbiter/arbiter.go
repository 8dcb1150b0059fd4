// Package arbiter implements the adaptive strategy arbiter (C4): it runs
// the risk-filter gate, checks regime persistence and momentum
// confirmation, and selects which of the bullish/bearish/neutral strategies
// should generate this tick's signal, along with a dynamic position-size
// multiplier.
//
// Grounded on internal/regime/detector.go's RegimeConfig/options idiom and
// internal/sizing/position_sizer.go's adjustment-pipeline idiom
// (Adjustments []string-style bookkeeping) in the teacher repository.
package arbiter

import (
	"github.com/atlas-desktop/paper-engine/internal/indicators"
	"github.com/atlas-desktop/paper-engine/internal/risk"
	"github.com/atlas-desktop/paper-engine/internal/strategy"
	"github.com/atlas-desktop/paper-engine/pkg/types"
)

// Correlation is the optional cross-asset correlation context §4.2/§4.4
// describe. A zero-value Correlation (Present=false) disables every
// adjustment it would otherwise apply.
type Correlation struct {
	Present        bool
	LowRisk        bool
	HighRisk       bool
	OpposingRegime bool
}

// Result is the arbiter's per-tick decision.
type Result struct {
	Regime                 types.RegimeSignal
	Blocked                bool
	BlockReason            risk.Reason
	ActiveStrategyName     string
	ActiveStrategyConfig   *types.StrategyConfig
	PositionSizeMultiplier float64
	MomentumConfirmed      bool
	PersistenceMet         bool

	// BullishPathActive is true only when the bullish strategy was chosen
	// because confidence, momentum, and persistence all cleared their
	// thresholds — the one path §4.4 step 6's signal amplification applies
	// to.
	BullishPathActive bool
}

// Arbitrate runs one tick's arbitration. regimeHistoryLast5 must already
// include the current regime (the caller's history tracker appends it
// before calling in); riskIn must reflect the same tick's state.
func Arbitrate(
	candles []types.Candle,
	i int,
	regimeSignal types.RegimeSignal,
	cfg types.AdaptiveConfig,
	regimeHistoryLast5 []types.RegimeKind,
	correlation Correlation,
	riskIn risk.Input,
) Result {
	if reason := risk.Evaluate(riskIn); reason != risk.NoBlock {
		return Result{Regime: regimeSignal, Blocked: true, BlockReason: reason}
	}

	persistenceMet := false
	if len(regimeHistoryLast5) >= 5 {
		window := regimeHistoryLast5
		if len(window) > 5 {
			window = window[len(window)-5:]
		}
		count := 0
		for _, r := range window {
			if r == regimeSignal.Regime {
				count++
			}
		}
		persistenceMet = count >= cfg.RegimePersistencePeriods
	}

	momentumScore := momentumConfirmationScore(candles, i)
	momentumConfirmed := momentumScore >= cfg.MomentumConfirmationThreshold

	adjThreshold := cfg.RegimeConfidenceThreshold
	if correlation.Present {
		if correlation.LowRisk {
			adjThreshold *= 0.9
		}
		if correlation.HighRisk {
			adjThreshold *= 1.3
		}
	}

	result := Result{
		Regime:             regimeSignal,
		MomentumConfirmed:  momentumConfirmed,
		PersistenceMet:     persistenceMet,
		PositionSizeMultiplier: 1.0,
	}

	switch {
	case regimeSignal.Regime == types.RegimeBullish &&
		regimeSignal.Confidence >= adjThreshold &&
		momentumConfirmed &&
		persistenceMet:
		bullish := cfg.Bullish
		result.ActiveStrategyName = bullish.Name
		result.ActiveStrategyConfig = &bullish
		result.PositionSizeMultiplier = dynamicPositionSizeMultiplier(cfg, regimeSignal.Confidence, correlation)
		result.BullishPathActive = true

	case regimeSignal.Regime == types.RegimeBearish &&
		regimeSignal.Confidence >= adjThreshold &&
		persistenceMet:
		bearish := cfg.Bearish
		result.ActiveStrategyName = bearish.Name
		result.ActiveStrategyConfig = &bearish
		result.PositionSizeMultiplier = 1.0

	default:
		if cfg.Neutral != nil {
			neutral := *cfg.Neutral
			result.ActiveStrategyName = neutral.Name
			result.ActiveStrategyConfig = &neutral
		} else {
			bearish := cfg.Bearish
			result.ActiveStrategyName = bearish.Name
			result.ActiveStrategyConfig = &bearish
		}
		result.PositionSizeMultiplier = 1.0
	}

	return result
}

// AmplifySignal implements §4.4 step 6: when the bullish path is active and
// momentum is confirmed, the generated signal and its confidence are scaled
// by the arbiter's dynamic position-size multiplier and clipped to 1, so
// position sizing compounds with the arbiter's sizing decision instead of
// being applied twice independently. Any other path returns sig unchanged.
func AmplifySignal(sig strategy.Signal, result Result) strategy.Signal {
	if !result.BullishPathActive || !result.MomentumConfirmed {
		return sig
	}
	sig.Signal = minF(sig.Signal*result.PositionSizeMultiplier, 1)
	sig.Confidence = minF(sig.Confidence*result.PositionSizeMultiplier, 1)
	return sig
}

// dynamicPositionSizeMultiplier implements §4.4 step 5, bullish path only.
func dynamicPositionSizeMultiplier(cfg types.AdaptiveConfig, confidence float64, corr Correlation) float64 {
	base := cfg.Bullish.MaxPositionPct
	if base <= 0 {
		return 1.0
	}
	minPct := base * 0.7
	target := minF(cfg.MaxBullishPosition, minPct+confidence*(cfg.MaxBullishPosition-minPct))

	if corr.Present {
		if corr.LowRisk {
			target = minF(target*1.1, cfg.MaxBullishPosition)
		}
		if corr.HighRisk {
			target = maxF(target*0.8, minPct)
		}
		if corr.OpposingRegime {
			target = maxF(target*0.85, minPct)
		}
	}

	return target / base
}

// momentumConfirmationScore sums four +1/-1 votes (MACD-vs-signal-line,
// histogram, RSI, 20-bar return) into [-1,+1].
func momentumConfirmationScore(candles []types.Candle, i int) float64 {
	closes := types.Closes(candles[:i+1])
	macd := indicators.MACD(closes, 12, 26, 9)
	rsi := indicators.RSI(closes, 14)

	votes := make([]float64, 0, 4)

	macdV, macdOK := macd.MACD[i].Value()
	sigV, sigOK := macd.Signal[i].Value()
	if macdOK && sigOK {
		votes = append(votes, boolVote(macdV-sigV > 0))
	}
	if hist, ok := macd.Histogram[i].Value(); ok {
		votes = append(votes, boolVote(hist > 0))
	}
	if v, ok := rsi[i].Value(); ok {
		votes = append(votes, boolVote(v > 50))
	}
	if i >= 20 && closes[i-20] != 0 {
		votes = append(votes, boolVote(closes[i] > closes[i-20]))
	}

	if len(votes) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range votes {
		sum += v
	}
	return sum / 4.0
}

func boolVote(b bool) float64 {
	if b {
		return 1
	}
	return -1
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
