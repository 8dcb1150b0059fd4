package types

// PeriodAnalysis is one bar's worth of decision-core output, the per-period
// record the backtest entrypoint returns alongside its aggregate metrics.
type PeriodAnalysis struct {
	Timestamp         int64      `json:"timestamp"`
	Price             float64    `json:"price"`
	Regime            RegimeKind `json:"regime"`
	MomentumConfirmed bool       `json:"momentum_confirmed"`
	PersistenceMet    bool       `json:"persistence_met"`
	ActiveStrategy    string     `json:"active_strategy"`
	Signal            float64    `json:"signal"`
	Action            string     `json:"action"`
	Trade             *Trade     `json:"trade,omitempty"`
	Portfolio         PortfolioSnapshot `json:"portfolio"`
}

// AggregateMetrics summarizes a backtest run's whole-period performance.
type AggregateMetrics struct {
	ReturnPct          float64 `json:"return_pct"`
	MaxDrawdownPct     float64 `json:"max_drawdown_pct"`
	WinRate            float64 `json:"win_rate"`
	SharpeRatio        float64 `json:"sharpe_ratio"`
	ProfitFactor       float64 `json:"profit_factor"`
	RiskAdjustedReturn float64 `json:"risk_adjusted_return"`
	VsEthHold          float64 `json:"vs_eth_hold"`
}

// BacktestResult is the backtest entrypoint's full output: per-period
// analyses plus the aggregate metrics computed from them.
type BacktestResult struct {
	SessionID string           `json:"session_id,omitempty"`
	Periods   []PeriodAnalysis `json:"periods"`
	Trades    []*Trade         `json:"trades"`
	Metrics   AggregateMetrics `json:"metrics"`
}

// SearchCandidate names one adaptive config entered into a strategy search.
type SearchCandidate struct {
	Name   string
	Config AdaptiveConfig
}

// SearchResult ranks one candidate by its weighted score across the
// bullish/bearish/full-year windows.
type SearchResult struct {
	Name      string             `json:"name"`
	Score     float64            `json:"score"`
	Subscores map[string]float64 `json:"subscores"`
	FullYear  AggregateMetrics   `json:"full_year"`
	Bullish   AggregateMetrics   `json:"bullish"`
	Bearish   AggregateMetrics   `json:"bearish"`
}

// VerificationReport is the backfill verifier's output: whether a replay of
// an active session's candle history reproduces its recorded final state
// within tolerance (§8: 1% portfolio value, 2 trades).
type VerificationReport struct {
	SessionID          string  `json:"session_id"`
	RecordedFinalValue float64 `json:"recorded_final_value"`
	ReplayedFinalValue float64 `json:"replayed_final_value"`
	ValueDeltaPct      float64 `json:"value_delta_pct"`
	RecordedTradeCount int     `json:"recorded_trade_count"`
	ReplayedTradeCount int     `json:"replayed_trade_count"`
	TradeCountDelta    int     `json:"trade_count_delta"`
	Passed             bool    `json:"passed"`
}
