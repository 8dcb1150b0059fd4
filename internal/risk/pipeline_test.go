package risk_test

import (
	"testing"

	"github.com/atlas-desktop/paper-engine/internal/risk"
	"github.com/atlas-desktop/paper-engine/pkg/types"
	"github.com/stretchr/testify/require"
)

// TestScenarioS4VolatilityBlock reproduces §8's worked example: a computed
// sigma of 0.06 against max_volatility=0.05 blocks the tick.
func TestScenarioS4VolatilityBlock(t *testing.T) {
	closes := make([]float64, 21)
	price := 100.0
	closes[0] = price
	for i := 1; i < len(closes); i++ {
		if i%2 == 0 {
			price *= 1.09
		} else {
			price *= 0.97
		}
		closes[i] = price
	}
	in := risk.Input{
		RecentCloses:  closes,
		MaxVolatility: 0.05,
	}
	require.Equal(t, risk.Volatility, risk.Evaluate(in))
}

// TestScenarioS5DrawdownBlock reproduces §8's worked example: peak=1200,
// total_value=950 => drawdown=0.2083... >= 0.20 blocks Phase B.
func TestScenarioS5DrawdownBlock(t *testing.T) {
	in := risk.Input{
		PeakValue:            1200,
		CurrentValue:         950,
		MaxDrawdownThreshold: 0.20,
	}
	require.Equal(t, risk.Drawdown, risk.Evaluate(in))
}

func TestEmergencyStopBlocksLast(t *testing.T) {
	in := risk.Input{IsEmergencyStopped: true}
	require.Equal(t, risk.EmergencyStop, risk.Evaluate(in))
}

func TestWhipsawBlocksOnExcessiveTransitions(t *testing.T) {
	in := risk.Input{
		RegimeHistoryLast5: []types.RegimeKind{types.RegimeBullish, types.RegimeBearish, types.RegimeBullish, types.RegimeBearish, types.RegimeBullish},
		WhipsawMaxChanges:  2,
	}
	require.Equal(t, risk.Whipsaw, risk.Evaluate(in))
}

func TestCircuitBreakerRequiresFiveSells(t *testing.T) {
	in := risk.Input{
		RecentOutcomesWins:    []bool{false, false, false, false},
		CircuitBreakerWinRate: 0.5,
	}
	require.Equal(t, risk.NoBlock, risk.Evaluate(in))
}

func TestCircuitBreakerBlocksOnLowWinRate(t *testing.T) {
	in := risk.Input{
		RecentOutcomesWins:     []bool{true, false, false, false, false},
		CircuitBreakerWinRate:  0.5,
		CircuitBreakerLookback: 5,
	}
	require.Equal(t, risk.CircuitBreaker, risk.Evaluate(in))
}

func TestNoFiltersBlockWhenClear(t *testing.T) {
	in := risk.Input{}
	require.Equal(t, risk.NoBlock, risk.Evaluate(in))
}
