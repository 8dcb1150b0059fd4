package types

// SessionStatus is the session's position in its Started -> Updating ->
// Stopped lifecycle. Emergency-stop is tracked as an orthogonal flag on
// SessionState, not as a status value.
type SessionStatus string

const (
	SessionStarted SessionStatus = "started"
	SessionStopped SessionStatus = "stopped"
)

// PortfolioSnapshot is one entry in a session's portfolio history ring.
type PortfolioSnapshot struct {
	Timestamp  int64   `json:"timestamp"`
	Quote      float64 `json:"quote"`
	Base       float64 `json:"base"`
	TotalValue float64 `json:"total_value"`
	Price      float64 `json:"price"`
}

// RegimeChange is one entry in a session's regime-history ring: appended
// only when the classified regime changes.
type RegimeChange struct {
	Timestamp int64      `json:"timestamp"`
	Regime    RegimeKind `json:"regime"`
	Confidence float64   `json:"confidence"`
}

// StrategySwitch is one entry in a session's strategy-switch ring: appended
// only when the active strategy's name changes.
type StrategySwitch struct {
	Timestamp int64  `json:"timestamp"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// LastSignal records the most recent decision the arbiter produced, for
// introspection and persistence.
type LastSignal struct {
	Regime           RegimeKind `json:"regime"`
	ActiveStrategy   string     `json:"active_strategy"`
	Action           string     `json:"action"`
	Signal           float64    `json:"signal"`
	Confidence       float64    `json:"confidence"`
	PersistenceMet   bool       `json:"persistence_met"`
	MomentumConfirmed bool      `json:"momentum_confirmed"`
}

// SessionState is the exclusive owner of one asset's portfolio, trades,
// open positions, and rolling history. Schema versioned so readers can
// default missing optional fields.
type SessionState struct {
	SchemaVersion int    `json:"schema_version"`
	ID            string `json:"id"`
	Asset         string `json:"asset"`
	Name          string `json:"name,omitempty"`

	Config AdaptiveConfig `json:"config"`

	StartedAt           int64  `json:"started_at"`
	StoppedAt           *int64 `json:"stopped_at,omitempty"`
	IsActive            bool   `json:"is_active"`
	IsEmergencyStopped  bool   `json:"is_emergency_stopped"`

	Trades        []*Trade        `json:"trades"`
	OpenPositions []*OpenPosition `json:"open_positions"`
	Portfolio     Portfolio       `json:"portfolio"`

	PortfolioHistory []PortfolioSnapshot `json:"portfolio_history"`
	RegimeHistory    []RegimeChange      `json:"regime_history"`
	StrategySwitches []StrategySwitch    `json:"strategy_switches"`

	LastSignal *LastSignal `json:"last_signal,omitempty"`
	LastPrice  float64     `json:"last_price"`
	LastUpdate int64       `json:"last_update"`

	PeakValue       float64 `json:"peak_value"`
	CurrentDrawdown float64 `json:"current_drawdown"`

	// DataQuality is the most recent fetch's gap/coverage/freshness report
	// (§4.9 step 3). Not a failure on its own; a notification is emitted
	// when Valid is false.
	DataQuality DataQualityWarning `json:"data_quality"`

	ExpiresAt int64 `json:"expires_at"`
}

// CurrentSchemaVersion is the schema version stamped onto new sessions.
const CurrentSchemaVersion = 1

// SessionExpiryMS is 90 days in milliseconds (§4.9).
const SessionExpiryMS = int64(90) * 24 * 60 * 60 * 1000

// Expired reports whether the session has gone stale: active but untouched
// for more than 90 days.
func (s *SessionState) Expired(nowMS int64) bool {
	return s.IsActive && (nowMS-s.LastUpdate) > SessionExpiryMS
}
