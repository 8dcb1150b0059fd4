package search_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlas-desktop/paper-engine/internal/idgen"
	"github.com/atlas-desktop/paper-engine/internal/search"
	"github.com/atlas-desktop/paper-engine/pkg/types"
)

func genCandles(n int, start, step float64) []types.Candle {
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

func namedConfig(name string, buyThreshold float64) types.AdaptiveConfig {
	strat := func(n string) types.StrategyConfig {
		return types.StrategyConfig{
			Name:           n,
			Timeframe:      types.Timeframe1h,
			BuyThreshold:   buyThreshold,
			SellThreshold:  -buyThreshold,
			MaxPositionPct: 0.8,
			InitialCapital: 1000,
			Indicators: []types.IndicatorConfig{
				{Kind: types.IndicatorSMA, Weight: 1.0, Period: 10},
			},
		}
	}
	return types.AdaptiveConfig{
		Bullish:                  strat(name + "-bull"),
		Bearish:                  strat(name + "-bear"),
		RegimePersistencePeriods: 1,
		MaxBullishPosition:       1.0,
		MaxVolatility:            10.0,
		CircuitBreakerLookback:   20,
		WhipsawDetectionPeriods:  20,
		WhipsawMaxChanges:        20,
		MaxDrawdownThreshold:     0.9,
		PriceValidationThreshold: 0.5,
	}
}

func TestRunRanksCandidatesDescendingByScore(t *testing.T) {
	windows := search.Windows{
		Bullish:  genCandles(80, 1000, 1.5),
		Bearish:  genCandles(80, 1000, -1.5),
		FullYear: genCandles(80, 1000, 0.5),
	}
	candidates := []types.SearchCandidate{
		{Name: "aggressive", Config: namedConfig("aggressive", 0.01)},
		{Name: "conservative", Config: namedConfig("conservative", 0.2)},
	}

	results, err := search.Run(context.Background(), idgen.NewCounterGenerator("s"), candidates, windows)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.GreaterOrEqual(t, results[0].Score, results[1].Score)
	for _, r := range results {
		for _, v := range r.Subscores {
			require.GreaterOrEqual(t, v, 0.0)
			require.LessOrEqual(t, v, 100.0)
		}
	}
}

func TestRunPropagatesInsufficientDataError(t *testing.T) {
	windows := search.Windows{
		Bullish:  genCandles(10, 1000, 1.5),
		Bearish:  genCandles(80, 1000, -1.5),
		FullYear: genCandles(80, 1000, 0.5),
	}
	candidates := []types.SearchCandidate{{Name: "only", Config: namedConfig("only", 0.05)}}

	_, err := search.Run(context.Background(), idgen.NewCounterGenerator("s"), candidates, windows)
	require.ErrorIs(t, err, types.ErrInsufficientData)
}
