package backtest_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlas-desktop/paper-engine/internal/backtest"
	"github.com/atlas-desktop/paper-engine/internal/idgen"
	"github.com/atlas-desktop/paper-engine/pkg/types"
)

func genTrendingCandles(n int, start, step float64) []types.Candle {
	bars := make([]types.Candle, n)
	price := start
	for i := 0; i < n; i++ {
		price += step
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

func TestRunProducesOnePeriodPerEligibleBar(t *testing.T) {
	candles := genTrendingCandles(80, 1000, 1.5)
	result, err := backtest.Run(idgen.NewCounterGenerator("bt"), candles, testConfig(), nil)
	require.NoError(t, err)
	require.Len(t, result.Periods, 80-49)
	require.NotZero(t, result.Metrics.ReturnPct)
}

func TestRunIsDeterministicAcrossRepeatedCalls(t *testing.T) {
	candles := genTrendingCandles(80, 1000, 1.5)
	cfg := testConfig()

	first, err := backtest.Run(idgen.NewCounterGenerator("bt"), candles, cfg, nil)
	require.NoError(t, err)
	second, err := backtest.Run(idgen.NewCounterGenerator("bt"), candles, cfg, nil)
	require.NoError(t, err)

	require.Equal(t, len(first.Trades), len(second.Trades))
	for i := range first.Trades {
		require.Equal(t, first.Trades[i].Kind, second.Trades[i].Kind)
		require.InDelta(t, first.Trades[i].Price, second.Trades[i].Price, 1e-9)
		require.InDelta(t, first.Trades[i].BaseAmount, second.Trades[i].BaseAmount, 1e-9)
	}
}

func TestRunRejectsInsufficientCandles(t *testing.T) {
	_, err := backtest.Run(idgen.NewCounterGenerator("bt"), genTrendingCandles(10, 1000, 1.5), testConfig(), nil)
	require.ErrorIs(t, err, types.ErrInsufficientData)
}

func TestRunComputesVsEthHoldAgainstSuppliedBaseline(t *testing.T) {
	candles := genTrendingCandles(80, 1000, 1.5)
	flatBaseline := genTrendingCandles(80, 1000, 0)

	result, err := backtest.Run(idgen.NewCounterGenerator("bt"), candles, testConfig(), flatBaseline)
	require.NoError(t, err)
	require.InDelta(t, result.Metrics.ReturnPct, result.Metrics.VsEthHold, 0.01)
}
