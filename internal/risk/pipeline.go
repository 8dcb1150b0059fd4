// Package risk implements the risk filter pipeline (C8): an ordered,
// short-circuiting set of pre-signal gates that never inspect the
// strategy's signal itself. The first filter that fires blocks the tick to
// Hold.
//
// Grounded on internal/execution/risk_manager.go in the teacher repository
// for the ordered-check/first-violation-wins idiom (CheckOrder); the
// specific filter set there (position/exposure/daily-loss limits) is
// replaced with the five filters §4.8 names.
package risk

import (
	"gonum.org/v1/gonum/stat"

	"github.com/atlas-desktop/paper-engine/pkg/types"
)

// Reason identifies which filter blocked a tick, or NoBlock when none did.
type Reason string

const (
	NoBlock           Reason = ""
	Volatility        Reason = "volatility"
	Whipsaw           Reason = "whipsaw"
	CircuitBreaker    Reason = "circuit_breaker"
	Drawdown          Reason = "drawdown"
	EmergencyStop     Reason = "emergency_stop"
)

// Input bundles everything the pipeline's filters consult. None of it
// touches the candidate strategy signal.
type Input struct {
	RecentCloses       []float64         // enough trailing closes to compute a 20-return window
	RegimeHistoryLast5 []types.RegimeKind // most recent 5 regime tags, oldest first
	RecentOutcomesWins []bool            // recent sell outcomes, oldest first, true=win

	PeakValue    float64
	CurrentValue float64

	IsEmergencyStopped bool

	MaxVolatility           float64
	WhipsawMaxChanges       int
	CircuitBreakerWinRate   float64
	CircuitBreakerLookback  int
	MaxDrawdownThreshold    float64
}

// Evaluate runs the five filters in the fixed order §4.8 specifies,
// returning the first one that blocks. Drawdown and EmergencyStop still
// allow Phase-A stop-loss exits — that exception is enforced by the
// executor, not here; this pipeline only reports whether Phase B
// (entries/exits) should proceed.
func Evaluate(in Input) Reason {
	if blocked := volatilityBlocks(in); blocked {
		return Volatility
	}
	if blocked := whipsawBlocks(in); blocked {
		return Whipsaw
	}
	if blocked := circuitBreakerBlocks(in); blocked {
		return CircuitBreaker
	}
	if blocked := drawdownBlocks(in); blocked {
		return Drawdown
	}
	if in.IsEmergencyStopped {
		return EmergencyStop
	}
	return NoBlock
}

func volatilityBlocks(in Input) bool {
	if in.MaxVolatility <= 0 || len(in.RecentCloses) < 21 {
		return false
	}
	closes := in.RecentCloses
	n := len(closes)
	returns := make([]float64, 0, 20)
	for i := n - 20; i < n; i++ {
		prev := closes[i-1]
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (closes[i]-prev)/prev)
	}
	sigma := stat.StdDev(returns, nil)
	return sigma > in.MaxVolatility
}

func whipsawBlocks(in Input) bool {
	if in.WhipsawMaxChanges <= 0 || len(in.RegimeHistoryLast5) < 2 {
		return false
	}
	window := in.RegimeHistoryLast5
	if len(window) > 5 {
		window = window[len(window)-5:]
	}
	transitions := 0
	for i := 1; i < len(window); i++ {
		if window[i] != window[i-1] {
			transitions++
		}
	}
	return transitions > in.WhipsawMaxChanges
}

func circuitBreakerBlocks(in Input) bool {
	if len(in.RecentOutcomesWins) < 5 {
		return false
	}
	lookback := in.CircuitBreakerLookback
	if lookback <= 0 || lookback > len(in.RecentOutcomesWins) {
		lookback = len(in.RecentOutcomesWins)
	}
	window := in.RecentOutcomesWins[len(in.RecentOutcomesWins)-lookback:]
	wins := 0
	for _, w := range window {
		if w {
			wins++
		}
	}
	winRate := float64(wins) / float64(len(window))
	return winRate < in.CircuitBreakerWinRate
}

func drawdownBlocks(in Input) bool {
	if in.PeakValue <= 0 || in.MaxDrawdownThreshold <= 0 {
		return false
	}
	dd := (in.PeakValue - in.CurrentValue) / in.PeakValue
	return dd >= in.MaxDrawdownThreshold
}
