package stoploss_test

import (
	"testing"

	"github.com/atlas-desktop/paper-engine/internal/stoploss"
	"github.com/atlas-desktop/paper-engine/pkg/types"
	"github.com/stretchr/testify/require"
)

// TestScenarioS3ATRStopExit reproduces §8's worked ATR-stop example: entry
// 1000 with ATR=25 and atr_multiplier=2 sets stop=950; price trails to
// 1100 (stop trails to 1050); price drops to 1040 and the stop is breached.
func TestScenarioS3ATRStopExit(t *testing.T) {
	cfg := types.StopLossConfig{Enabled: true, ATRMultiplier: 2, Trailing: true, ATRPeriod: 14}
	pos := stoploss.Open("buy-1", 1000, 25, cfg.ATRMultiplier)
	require.InDelta(t, 950, pos.StopPrice, 1e-9)

	stoploss.UpdateTrailing(pos, 1100, cfg)
	require.InDelta(t, 1100, pos.PeakPrice, 1e-9)
	require.InDelta(t, 1050, pos.StopPrice, 1e-9)
	require.False(t, stoploss.Breached(pos, 1100))

	stoploss.UpdateTrailing(pos, 1040, cfg)
	require.InDelta(t, 1100, pos.PeakPrice, 1e-9, "peak must not fall back")
	require.InDelta(t, 1050, pos.StopPrice, 1e-9)
	require.True(t, stoploss.Breached(pos, 1040))
}

func TestNonTrailingStopNeverMoves(t *testing.T) {
	cfg := types.StopLossConfig{Enabled: true, ATRMultiplier: 2, Trailing: false}
	pos := stoploss.Open("buy-1", 1000, 25, cfg.ATRMultiplier)
	stoploss.UpdateTrailing(pos, 2000, cfg)
	require.InDelta(t, 1000, pos.PeakPrice, 1e-9)
	require.InDelta(t, 950, pos.StopPrice, 1e-9)
}

func TestStopMonotoneNonDecreasing(t *testing.T) {
	cfg := types.StopLossConfig{Enabled: true, ATRMultiplier: 1.5, Trailing: true}
	pos := stoploss.Open("buy-1", 100, 4, cfg.ATRMultiplier)
	prevStop := pos.StopPrice
	prices := []float64{101, 99, 105, 104, 110, 108, 107}
	for _, p := range prices {
		stoploss.UpdateTrailing(pos, p, cfg)
		require.GreaterOrEqual(t, pos.StopPrice, prevStop)
		prevStop = pos.StopPrice
	}
}
