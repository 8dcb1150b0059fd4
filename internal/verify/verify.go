// Package verify implements the backfill verifier (§8): it replays an
// active session's own candle history through the backtest engine and
// checks that the replay reproduces the session's recorded final state
// within tolerance (1% portfolio value, 2 trades).
//
// Grounded on internal/backtester/engine_test.go's replay-and-compare
// assertion style in the teacher repository, adapted from a test helper
// into a first-class entrypoint per §6's "backfill verifier" call site.
package verify

import (
	"github.com/atlas-desktop/paper-engine/internal/backtest"
	"github.com/atlas-desktop/paper-engine/pkg/ports"
	"github.com/atlas-desktop/paper-engine/pkg/types"
)

const (
	valueTolerancePct = 0.01
	tradeCountTolerance = 2
)

// Run replays candles (the session's own recorded candle history) through
// backtest.Run using the session's config, and compares the replay's final
// portfolio value and trade count against state's recorded values.
func Run(ids ports.IDGenerator, state *types.SessionState, candles []types.Candle) (*types.VerificationReport, error) {
	result, err := backtest.Run(ids, candles, state.Config, nil)
	if err != nil {
		return nil, err
	}

	var replayedFinal float64
	if n := len(result.Periods); n > 0 {
		replayedFinal = result.Periods[n-1].Portfolio.TotalValue
	}
	recordedFinal := state.Portfolio.TotalValue

	var deltaPct float64
	if recordedFinal != 0 {
		deltaPct = (replayedFinal - recordedFinal) / recordedFinal
	}
	deltaPctAbs := deltaPct
	if deltaPctAbs < 0 {
		deltaPctAbs = -deltaPctAbs
	}

	tradeDelta := len(result.Trades) - len(state.Trades)
	tradeDeltaAbs := tradeDelta
	if tradeDeltaAbs < 0 {
		tradeDeltaAbs = -tradeDeltaAbs
	}

	report := &types.VerificationReport{
		SessionID:          state.ID,
		RecordedFinalValue: recordedFinal,
		ReplayedFinalValue: replayedFinal,
		ValueDeltaPct:      deltaPct,
		RecordedTradeCount: len(state.Trades),
		ReplayedTradeCount: len(result.Trades),
		TradeCountDelta:    tradeDelta,
		Passed:             deltaPctAbs <= valueTolerancePct && tradeDeltaAbs <= tradeCountTolerance,
	}
	return report, nil
}
