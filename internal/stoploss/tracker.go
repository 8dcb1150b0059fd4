// Package stoploss implements the ATR-based stop-loss tracker (C6): it
// creates a per-lot Open Position on Buy fill, updates its trailing stop on
// every tick, and reports when a position's stop price has been breached.
//
// Grounded on internal/sizing/position_sizer.go's small-struct/constructor
// idiom in the teacher repository (no direct stop-loss analog exists there
// — this is a new component built in the teacher's style).
package stoploss

import "github.com/atlas-desktop/paper-engine/pkg/types"

// Open creates a new Open Position on a Buy fill. ATR is frozen at entry
// unless the caller's config opts into a live-ATR trailing mode (not
// offered by this package — §4.6 prescribes frozen ATR by default).
func Open(buyTradeID string, fillPrice, atrAtEntry, atrMultiplier float64) *types.OpenPosition {
	return &types.OpenPosition{
		BuyTradeID: buyTradeID,
		EntryPrice: fillPrice,
		PeakPrice:  fillPrice,
		StopPrice:  fillPrice - atrMultiplier*atrAtEntry,
		ATRAtEntry: atrAtEntry,
	}
}

// UpdateTrailing advances pos's peak/stop for one tick. When cfg.Trailing
// is false the stop never moves after entry. ATR stays frozen at the value
// captured on Open.
func UpdateTrailing(pos *types.OpenPosition, currentPrice float64, cfg types.StopLossConfig) {
	if !cfg.Trailing {
		return
	}
	if currentPrice > pos.PeakPrice {
		pos.PeakPrice = currentPrice
	}
	pos.StopPrice = pos.PeakPrice - cfg.ATRMultiplier*pos.ATRAtEntry
}

// Breached reports whether currentPrice has fallen to or below pos's stop.
func Breached(pos *types.OpenPosition, currentPrice float64) bool {
	return currentPrice <= pos.StopPrice
}
