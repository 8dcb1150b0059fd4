package indicators

import (
	"github.com/atlas-desktop/paper-engine/pkg/types"
	talib "github.com/markcheno/go-talib"
)

// RSI computes Wilder-smoothed relative strength over [0,100], backed by
// go-talib's implementation. Wilder's method needs `period` gain/loss
// deltas, i.e. period+1 prices, so the first `period` entries are
// undefined (index < period).
func RSI(prices []float64, period int) []types.Optional {
	out := make([]types.Optional, len(prices))
	if period <= 0 || len(prices) < period+1 {
		for i := range out {
			out[i] = types.None()
		}
		return out
	}
	raw := talib.Rsi(prices, period)
	for i := range out {
		if i < period || i >= len(raw) {
			out[i] = types.None()
			continue
		}
		out[i] = types.Some(raw[i])
	}
	return out
}
