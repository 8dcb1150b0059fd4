package indicators

import (
	"math"

	"github.com/atlas-desktop/paper-engine/pkg/types"
)

// TrueRange computes max(high-low, |high-prevClose|, |low-prevClose|) for
// each bar; the first bar has no previous close, so its true range is
// simply high-low.
func TrueRange(candles []types.Candle) []float64 {
	tr := make([]float64, len(candles))
	for i, c := range candles {
		if i == 0 {
			tr[i] = c.High - c.Low
			continue
		}
		prevClose := candles[i-1].Close
		tr[i] = math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
	}
	return tr
}

// ATR smooths TrueRange by SMA or EMA depending on useEMA, matching
// whichever smoothing the caller's stop-loss configuration selects (§4.1,
// §4.6). Unlike go-talib's Atr (always Wilder-smoothed), this honors the
// spec's explicit SMA/EMA selector.
func ATR(candles []types.Candle, period int, useEMA bool) []types.Optional {
	tr := TrueRange(candles)
	if useEMA {
		return EMA(tr, period)
	}
	return SMA(tr, period)
}
