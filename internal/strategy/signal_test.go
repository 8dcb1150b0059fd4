package strategy_test

import (
	"testing"

	"github.com/atlas-desktop/paper-engine/internal/strategy"
	"github.com/atlas-desktop/paper-engine/pkg/types"
	"github.com/stretchr/testify/require"
)

func candlesTrendingUp(n int) []types.Candle {
	candles := make([]types.Candle, n)
	price := 100.0
	for i := 0; i < n; i++ {
		price *= 1.01
		candles[i] = types.Candle{Timestamp: int64(i) * 3600000, Open: price, High: price * 1.01, Low: price * 0.99, Close: price, Volume: 10}
	}
	return candles
}

func TestGenerateBuyOnUptrend(t *testing.T) {
	cfg := types.StrategyConfig{
		Name: "bullish",
		Indicators: []types.IndicatorConfig{
			{Kind: types.IndicatorSMA, Weight: 1, Period: 10},
		},
		BuyThreshold:   0.2,
		SellThreshold:  -0.2,
		MaxPositionPct: 0.5,
		InitialCapital: 1000,
	}
	candles := candlesTrendingUp(60)
	sig := strategy.Generate(cfg, candles, 59)
	require.Equal(t, strategy.ActionBuy, sig.Action)
	require.Greater(t, sig.Signal, 0.0)
	require.InDelta(t, sig.Confidence, sig.Signal, 1e-9)
}

func TestGenerateHoldWhenIndicatorUndefined(t *testing.T) {
	cfg := types.StrategyConfig{
		Name: "bullish",
		Indicators: []types.IndicatorConfig{
			{Kind: types.IndicatorSMA, Weight: 1, Period: 50},
		},
		BuyThreshold:   0.2,
		SellThreshold:  -0.2,
		MaxPositionPct: 0.5,
		InitialCapital: 1000,
	}
	candles := candlesTrendingUp(10)
	sig := strategy.Generate(cfg, candles, 9)
	require.Equal(t, strategy.ActionHold, sig.Action)
	require.Zero(t, sig.Signal)
	require.Empty(t, sig.Indicators)
}

func TestGenerateSellOnDowntrend(t *testing.T) {
	cfg := types.StrategyConfig{
		Name: "bearish",
		Indicators: []types.IndicatorConfig{
			{Kind: types.IndicatorSMA, Weight: 1, Period: 10},
		},
		BuyThreshold:   0.2,
		SellThreshold:  -0.2,
		MaxPositionPct: 0.5,
		InitialCapital: 1000,
	}
	candles := make([]types.Candle, 60)
	price := 200.0
	for i := range candles {
		price *= 0.99
		candles[i] = types.Candle{Timestamp: int64(i) * 3600000, Open: price, High: price * 1.01, Low: price * 0.99, Close: price, Volume: 10}
	}
	sig := strategy.Generate(cfg, candles, 59)
	require.Equal(t, strategy.ActionSell, sig.Action)
	require.Less(t, sig.Signal, 0.0)
}
