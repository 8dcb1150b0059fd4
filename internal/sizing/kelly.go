// Package sizing implements the fractional Kelly position-size sizer (C5):
// from a session's completed-sell P&L history it derives a dimensionless
// multiplier in [0,1] that scales a strategy's configured position size.
//
// Grounded on internal/sizing/position_sizer.go in the teacher repository
// for the Kelly formula (p - q/b) and its small-struct/options idiom; the
// regime/correlation/VaR sizers in that file are not carried forward — the
// arbiter (C4), not the sizer, owns regime-based multipliers per §4.4.
package sizing

import "github.com/atlas-desktop/paper-engine/pkg/types"

// Result is the Kelly sizer's output together with the inputs it derived
// the multiplier from, for introspection and logging.
type Result struct {
	Multiplier float64
	WinRate    float64
	Payoff     float64
	FullKelly  float64
	SampleSize int
}

// Kelly computes the fractional-Kelly multiplier from a session's sell
// trades (oldest first) and the strategy's max_position_pct. Sell trades
// must carry a non-nil PnL; Buy trades and sells without a realized PnL are
// ignored.
func Kelly(sells []*types.Trade, cfg types.KellyConfig, maxPositionPct float64) Result {
	completed := make([]*types.Trade, 0, len(sells))
	for _, t := range sells {
		if t.Kind == types.TradeSell && t.PnL != nil {
			completed = append(completed, t)
		}
	}
	if len(completed) < cfg.MinTrades {
		return Result{Multiplier: 1.0}
	}

	lookback := cfg.LookbackPeriod
	if lookback <= 0 || lookback > len(completed) {
		lookback = len(completed)
	}
	window := completed[len(completed)-lookback:]

	wins, losses := 0, 0
	sumWin, sumLoss := 0.0, 0.0
	for _, t := range window {
		pnl := *t.PnL
		if pnl > 0 {
			wins++
			sumWin += pnl
		} else if pnl < 0 {
			losses++
			sumLoss += -pnl
		}
	}
	total := len(window)
	winRate := float64(wins) / float64(total)

	avgWin := 0.0
	if wins > 0 {
		avgWin = sumWin / float64(wins)
	}
	avgLoss := 0.0
	if losses > 0 {
		avgLoss = sumLoss / float64(losses)
	}

	var fullKelly float64
	switch {
	case losses == 0:
		// No losing trades in the window: the "(1-win_rate)/payoff" term
		// vanishes since there is no loss to weigh against.
		fullKelly = winRate
	case wins == 0:
		fullKelly = -1 // guaranteed losing edge
	default:
		payoff := avgWin / avgLoss
		fullKelly = winRate - (1-winRate)/payoff
	}

	if fullKelly <= 0 {
		return Result{Multiplier: 1.0, WinRate: winRate, FullKelly: fullKelly, SampleSize: total}
	}

	fractionalMultiplier := cfg.FractionalMultiplier
	if fractionalMultiplier <= 0 {
		fractionalMultiplier = 0.25
	}
	f := fullKelly * fractionalMultiplier

	if f < 0 {
		f = 0
	}
	if maxPositionPct > 0 && f > maxPositionPct {
		f = maxPositionPct
	}

	multiplier := 1.0
	if maxPositionPct > 0 {
		multiplier = f / maxPositionPct
	}

	payoff := 0.0
	if avgLoss > 0 {
		payoff = avgWin / avgLoss
	}

	return Result{
		Multiplier: multiplier,
		WinRate:    winRate,
		Payoff:     payoff,
		FullKelly:  fullKelly,
		SampleSize: total,
	}
}
