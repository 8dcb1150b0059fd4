// Package execution implements the FIFO trade executor (C7): given the
// arbiter's chosen strategy and the sizer's multipliers, it runs the
// stop-loss sweep, then applies at most one Buy or Sell fill against the
// portfolio, then recomputes bookkeeping.
//
// Grounded on internal/execution/risk_manager.go's ordered-check idiom and
// internal/backtester/portfolio.go's balance-mutation idiom in the teacher
// repository; the exact sizing/FIFO formulas are §4.7's, not the teacher's.
package execution

import (
	"github.com/atlas-desktop/paper-engine/internal/stoploss"
	"github.com/atlas-desktop/paper-engine/internal/strategy"
	"github.com/atlas-desktop/paper-engine/pkg/ports"
	"github.com/atlas-desktop/paper-engine/pkg/types"
)

const feeRate = 0.001

// Inputs bundles one tick's execution parameters, already resolved by the
// arbiter and sizer.
type Inputs struct {
	Signal                 strategy.Signal
	SignalPrice            float64 // price at which the signal was generated
	CurrentPrice            float64 // fill price (candle close at execution time)
	Timestamp              int64
	Confidence             float64 // arbiter's final confidence (may differ from Signal.Confidence)
	MaxPositionPct         float64
	MaxBullishPosition     float64
	PositionSizeMultiplier float64
	KellyMultiplier        float64
	PriceValidationThreshold float64
	MinPositionSize        float64
	StopLoss               types.StopLossConfig
	StopLossEnabled        bool
	ATRAtEntry             float64 // ATR value to freeze into a new Open Position's stop, if one is opened
}

// Result reports what the executor did this tick, for snapshotting and
// notification.
type Result struct {
	StopLossExits []*types.Trade
	NewTrade      *types.Trade
	Skipped       bool
	SkipReason    string
}

// Execute runs Phase A (stop sweep), Phase B (entry/exit), and Phase C
// (bookkeeping) against portfolio/trades/openPositions in place. ids mints
// new trade ids; history records the sell outcome for the circuit breaker
// and Kelly sizer.
func Execute(
	ids ports.IDGenerator,
	portfolio *types.Portfolio,
	trades *[]*types.Trade,
	openPositions *[]*types.OpenPosition,
	in Inputs,
	recordOutcome func(win bool),
) Result {
	result := Result{}

	// Phase A — stop-loss sweep. Any forced exit skips Phase B entirely.
	remaining := (*openPositions)[:0:0]
	exited := false
	for _, pos := range *openPositions {
		stoploss.UpdateTrailing(pos, in.CurrentPrice, in.StopLoss)
		if stoploss.Breached(pos, in.CurrentPrice) {
			exited = true
			sellTrade := forceSellLot(ids, portfolio, trades, pos, in.CurrentPrice, in.Timestamp)
			result.StopLossExits = append(result.StopLossExits, sellTrade)
			if sellTrade.PnL != nil {
				*trades = append(*trades, sellTrade)
				recordOutcome(*sellTrade.PnL > 0)
			}
			continue
		}
		remaining = append(remaining, pos)
	}
	*openPositions = remaining

	if exited {
		portfolio.Revalue(in.CurrentPrice)
		return result
	}

	// Phase B — new entry/exit.
	switch in.Signal.Action {
	case strategy.ActionBuy:
		if portfolio.QuoteBalance > 0 && in.Signal.Signal > 0 {
			trade, skipReason := executeBuy(ids, portfolio, in)
			if trade != nil {
				*trades = append(*trades, trade)
				if in.StopLossEnabled {
					*openPositions = append(*openPositions, stoploss.Open(trade.ID, trade.Price, in.ATRAtEntry, in.StopLoss.ATRMultiplier))
				}
				result.NewTrade = trade
			} else {
				result.Skipped = true
				result.SkipReason = skipReason
			}
		} else {
			result.Skipped = true
			result.SkipReason = "buy preconditions not met"
		}

	case strategy.ActionSell:
		if portfolio.BaseBalance > 0 && in.Signal.Signal < 0 {
			trade := executeSell(ids, portfolio, trades, openPositions, in)
			if trade != nil {
				*trades = append(*trades, trade)
				result.NewTrade = trade
				if trade.PnL != nil {
					recordOutcome(*trade.PnL > 0)
				}
			} else {
				result.Skipped = true
				result.SkipReason = "sell preconditions not met"
			}
		} else {
			result.Skipped = true
			result.SkipReason = "sell preconditions not met"
		}

	default:
		result.Skipped = true
		result.SkipReason = "hold"
	}

	// Phase C — bookkeeping.
	portfolio.Revalue(in.CurrentPrice)
	return result
}

func executeBuy(ids ports.IDGenerator, portfolio *types.Portfolio, in Inputs) (*types.Trade, string) {
	desiredPct := minF(in.MaxPositionPct*in.PositionSizeMultiplier, in.MaxBullishPosition)
	positionQuote := portfolio.QuoteBalance * in.Confidence * desiredPct * in.KellyMultiplier

	if positionQuote < in.MinPositionSize {
		return nil, "below min_position_size"
	}

	if in.SignalPrice != 0 {
		drift := absF(in.CurrentPrice-in.SignalPrice) / in.SignalPrice
		if drift > in.PriceValidationThreshold {
			return nil, "price moved beyond validation threshold"
		}
	}

	baseAmount := positionQuote / in.CurrentPrice
	fee := positionQuote * feeRate
	totalCost := positionQuote + fee

	if portfolio.QuoteBalance < totalCost {
		return nil, "insufficient quote balance"
	}

	portfolio.QuoteBalance -= totalCost
	portfolio.BaseBalance += baseAmount
	portfolio.TradeCount++

	trade := &types.Trade{
		ID:          ids.NewID(),
		Timestamp:   in.Timestamp,
		Kind:        types.TradeBuy,
		Price:       in.CurrentPrice,
		BaseAmount:  baseAmount,
		QuoteAmount: positionQuote,
		Signal:      in.Signal.Signal,
		Confidence:  in.Confidence,
		CostBasis:   totalCost,
		FullySold:   false,
	}
	return trade, ""
}

func executeSell(
	ids ports.IDGenerator,
	portfolio *types.Portfolio,
	trades *[]*types.Trade,
	openPositions *[]*types.OpenPosition,
	in Inputs,
) *types.Trade {
	baseToSell := portfolio.BaseBalance * in.Confidence * in.MaxPositionPct * in.KellyMultiplier
	if baseToSell > portfolio.BaseBalance {
		baseToSell = portfolio.BaseBalance
	}
	if baseToSell <= 0 {
		return nil
	}

	gross := baseToSell * in.CurrentPrice
	fee := gross * feeRate
	netProceeds := gross - fee

	totalCostBasis, fullySoldIDs := consumeFIFO(*trades, baseToSell)

	portfolio.QuoteBalance += netProceeds
	portfolio.BaseBalance -= baseToSell
	portfolio.TradeCount++

	pnl := netProceeds - totalCostBasis
	if pnl > 0 {
		portfolio.WinCount++
	}

	removeFullySoldPositions(openPositions, fullySoldIDs)

	return &types.Trade{
		ID:          ids.NewID(),
		Timestamp:   in.Timestamp,
		Kind:        types.TradeSell,
		Price:       in.CurrentPrice,
		BaseAmount:  baseToSell,
		QuoteAmount: netProceeds,
		Signal:      in.Signal.Signal,
		Confidence:  in.Confidence,
		CostBasis:   totalCostBasis,
		PnL:         &pnl,
	}
}

// consumeFIFO walks trades oldest-first, consuming base_amount from
// not-fully-sold Buys until remaining reaches zero. Returns the accumulated
// cost basis consumed and the ids of Buys that became fully sold.
func consumeFIFO(trades []*types.Trade, baseToSell float64) (totalCostBasis float64, fullySoldIDs []string) {
	remaining := baseToSell
	for _, t := range trades {
		if remaining <= 0 {
			break
		}
		if t.Kind != types.TradeBuy || t.FullySold || t.BaseAmount <= 0 {
			continue
		}
		used := minF(remaining, t.BaseAmount)
		consumed := t.CostBasis * used / t.BaseAmount

		if used == t.BaseAmount {
			t.FullySold = true
			fullySoldIDs = append(fullySoldIDs, t.ID)
		} else {
			t.BaseAmount -= used
			t.CostBasis -= consumed
		}

		totalCostBasis += consumed
		remaining -= used
	}
	return totalCostBasis, fullySoldIDs
}

func removeFullySoldPositions(openPositions *[]*types.OpenPosition, fullySoldIDs []string) {
	if len(fullySoldIDs) == 0 {
		return
	}
	soldSet := make(map[string]bool, len(fullySoldIDs))
	for _, id := range fullySoldIDs {
		soldSet[id] = true
	}
	kept := (*openPositions)[:0:0]
	for _, pos := range *openPositions {
		if !soldSet[pos.BuyTradeID] {
			kept = append(kept, pos)
		}
	}
	*openPositions = kept
}

// forceSellLot liquidates one breached Open Position's entire remaining Buy
// lot at currentPrice, independent of signal/confidence — this is a Phase A
// stop-loss exit, not a signal-driven Phase B sell.
func forceSellLot(ids ports.IDGenerator, portfolio *types.Portfolio, trades *[]*types.Trade, pos *types.OpenPosition, currentPrice float64, timestamp int64) *types.Trade {
	var buy *types.Trade
	for _, t := range *trades {
		if t.ID == pos.BuyTradeID && t.Kind == types.TradeBuy {
			buy = t
			break
		}
	}
	if buy == nil || buy.FullySold || buy.BaseAmount <= 0 {
		return &types.Trade{ID: ids.NewID(), Timestamp: timestamp, Kind: types.TradeSell, Price: currentPrice}
	}

	baseToSell := buy.BaseAmount
	gross := baseToSell * currentPrice
	fee := gross * feeRate
	netProceeds := gross - fee

	costBasis := buy.CostBasis
	buy.FullySold = true
	buy.BaseAmount = 0
	buy.CostBasis = 0

	portfolio.QuoteBalance += netProceeds
	portfolio.BaseBalance -= baseToSell
	portfolio.TradeCount++

	pnl := netProceeds - costBasis
	if pnl > 0 {
		portfolio.WinCount++
	}

	return &types.Trade{
		ID:          ids.NewID(),
		Timestamp:   timestamp,
		Kind:        types.TradeSell,
		Price:       currentPrice,
		BaseAmount:  baseToSell,
		QuoteAmount: netProceeds,
		CostBasis:   costBasis,
		PnL:         &pnl,
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
