package indicators

import "github.com/atlas-desktop/paper-engine/pkg/types"

// MACDResult holds the three aligned sequences MACD produces.
type MACDResult struct {
	MACD      []types.Optional
	Signal    []types.Optional
	Histogram []types.Optional
}

// MACD computes macd = EMA(fast) - EMA(slow), signal_line = EMA(macd,
// signal), histogram = macd - signal_line. Undefined until slow+signal-2.
func MACD(prices []float64, fast, slow, signal int) MACDResult {
	n := len(prices)
	result := MACDResult{
		MACD:      make([]types.Optional, n),
		Signal:    make([]types.Optional, n),
		Histogram: make([]types.Optional, n),
	}
	for i := 0; i < n; i++ {
		result.MACD[i] = types.None()
		result.Signal[i] = types.None()
		result.Histogram[i] = types.None()
	}
	if fast <= 0 || slow <= 0 || signal <= 0 || n == 0 {
		return result
	}

	fastEMA := EMA(prices, fast)
	slowEMA := EMA(prices, slow)

	macdLine := make([]types.Optional, n)
	for i := 0; i < n; i++ {
		fv, fok := fastEMA[i].Value()
		sv, sok := slowEMA[i].Value()
		if fok && sok {
			macdLine[i] = types.Some(fv - sv)
		} else {
			macdLine[i] = types.None()
		}
	}
	result.MACD = macdLine
	result.Signal = EMAFromOptional(macdLine, signal)

	for i := 0; i < n; i++ {
		mv, mok := macdLine[i].Value()
		sv, sok := result.Signal[i].Value()
		if mok && sok {
			result.Histogram[i] = types.Some(mv - sv)
		}
	}
	return result
}
