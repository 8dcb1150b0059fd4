package types

// TradeKind is a closed enumeration: a trade is either a Buy or a Sell.
type TradeKind string

const (
	TradeBuy  TradeKind = "buy"
	TradeSell TradeKind = "sell"
)

// Trade is one fill. Buy trades are mutated in place as later Sells consume
// them via FIFO cost-basis matching (BaseAmount/CostBasis decrement,
// FullySold flips true once fully consumed).
type Trade struct {
	ID                  string    `json:"id"`
	Timestamp           int64     `json:"timestamp"`
	Kind                TradeKind `json:"kind"`
	Price               float64   `json:"price"`
	BaseAmount          float64   `json:"base_amount"`
	QuoteAmount         float64   `json:"quote_amount"`
	Signal              float64   `json:"signal"`
	Confidence          float64   `json:"confidence"`
	PortfolioValueAfter float64   `json:"portfolio_value_after"`

	// Buy-only bookkeeping, mutated by later FIFO sells.
	CostBasis float64 `json:"cost_basis,omitempty"`
	FullySold bool    `json:"fully_sold,omitempty"`

	// Sell-only.
	PnL *float64 `json:"pnl,omitempty"`
}

// OpenPosition tracks one still-open Buy lot for the ATR stop tracker. One
// per still-open Buy lot; destroyed when its stop is hit or the underlying
// Buy trade becomes FullySold via a later signal-driven Sell.
type OpenPosition struct {
	BuyTradeID string  `json:"buy_trade_id"`
	EntryPrice float64 `json:"entry_price"`
	PeakPrice  float64 `json:"peak_price"`
	StopPrice  float64 `json:"stop_price"`
	ATRAtEntry float64 `json:"atr_at_entry"`
}

// Portfolio is the session's simulated paper-trading account.
type Portfolio struct {
	QuoteBalance   float64 `json:"quote_balance"`
	BaseBalance    float64 `json:"base_balance"`
	TotalValue     float64 `json:"total_value"`
	InitialCapital float64 `json:"initial_capital"`
	TotalReturnPct float64 `json:"total_return_pct"`
	TradeCount     uint64  `json:"trade_count"`
	WinCount       uint64  `json:"win_count"`
}

// NewPortfolio seeds a fresh portfolio with all capital in quote currency.
func NewPortfolio(initialCapital float64) Portfolio {
	return Portfolio{
		QuoteBalance:   initialCapital,
		BaseBalance:    0,
		TotalValue:     initialCapital,
		InitialCapital: initialCapital,
		TotalReturnPct: 0,
		TradeCount:     0,
		WinCount:       0,
	}
}

// Revalue recomputes TotalValue and TotalReturnPct at currentPrice. Callers
// must invoke this after any balance mutation (Phase C bookkeeping, §4.7).
func (p *Portfolio) Revalue(currentPrice float64) {
	p.TotalValue = p.QuoteBalance + p.BaseBalance*currentPrice
	if p.InitialCapital != 0 {
		p.TotalReturnPct = (p.TotalValue - p.InitialCapital) / p.InitialCapital
	}
}
