package types

import "fmt"

// IndicatorKind is a closed enumeration of the indicators the signal
// generator can be configured with.
type IndicatorKind string

const (
	IndicatorSMA  IndicatorKind = "sma"
	IndicatorEMA  IndicatorKind = "ema"
	IndicatorMACD IndicatorKind = "macd"
	IndicatorRSI  IndicatorKind = "rsi"
)

// IndicatorConfig is a tagged value: one indicator kind, its parameters, and
// its weight inside a strategy's weighted vote.
type IndicatorConfig struct {
	Kind   IndicatorKind `json:"kind" mapstructure:"kind"`
	Weight float64       `json:"weight" mapstructure:"weight"`

	Period int `json:"period,omitempty" mapstructure:"period,omitempty"`

	// MACD-only.
	FastPeriod   int `json:"fast_period,omitempty" mapstructure:"fast_period,omitempty"`
	SlowPeriod   int `json:"slow_period,omitempty" mapstructure:"slow_period,omitempty"`
	SignalPeriod int `json:"signal_period,omitempty" mapstructure:"signal_period,omitempty"`
}

func (ic IndicatorConfig) Validate() error {
	if ic.Weight < 0 {
		return fmt.Errorf("types: indicator %s has negative weight %v", ic.Kind, ic.Weight)
	}
	switch ic.Kind {
	case IndicatorSMA, IndicatorEMA, IndicatorRSI:
		if ic.Period <= 0 {
			return fmt.Errorf("types: indicator %s requires a positive period", ic.Kind)
		}
	case IndicatorMACD:
		if ic.FastPeriod <= 0 || ic.SlowPeriod <= 0 || ic.SignalPeriod <= 0 {
			return fmt.Errorf("types: macd requires positive fast/slow/signal periods")
		}
	default:
		return fmt.Errorf("types: unknown indicator kind %q", ic.Kind)
	}
	return nil
}

// StrategyConfig parameterizes one strategy's signal generation and sizing.
type StrategyConfig struct {
	Name           string            `json:"name" mapstructure:"name"`
	Timeframe      Timeframe         `json:"timeframe" mapstructure:"timeframe"`
	Indicators     []IndicatorConfig `json:"indicators" mapstructure:"indicators"`
	BuyThreshold   float64           `json:"buy_threshold" mapstructure:"buy_threshold"`
	SellThreshold  float64           `json:"sell_threshold" mapstructure:"sell_threshold"`
	MaxPositionPct float64           `json:"max_position_pct" mapstructure:"max_position_pct"`
	InitialCapital float64           `json:"initial_capital" mapstructure:"initial_capital"`
}

func (sc StrategyConfig) Validate() error {
	if sc.Name == "" {
		return fmt.Errorf("types: strategy config requires a name")
	}
	if sc.BuyThreshold <= 0 {
		return fmt.Errorf("types: strategy %s buy_threshold must be > 0, got %v", sc.Name, sc.BuyThreshold)
	}
	if sc.SellThreshold >= 0 {
		return fmt.Errorf("types: strategy %s sell_threshold must be < 0, got %v", sc.Name, sc.SellThreshold)
	}
	if sc.MaxPositionPct <= 0 || sc.MaxPositionPct > 1 {
		return fmt.Errorf("types: strategy %s max_position_pct must be in (0,1], got %v", sc.Name, sc.MaxPositionPct)
	}
	if sc.InitialCapital <= 0 {
		return fmt.Errorf("types: strategy %s initial_capital must be > 0, got %v", sc.Name, sc.InitialCapital)
	}
	total := 0.0
	for _, ic := range sc.Indicators {
		if err := ic.Validate(); err != nil {
			return err
		}
		total += ic.Weight
	}
	if total <= 0 {
		return fmt.Errorf("types: strategy %s indicator weights must sum to > 0", sc.Name)
	}
	return nil
}

// KellyConfig tunes the position-size sizer described in §4.5.
type KellyConfig struct {
	Enabled             bool    `json:"enabled" mapstructure:"enabled"`
	FractionalMultiplier float64 `json:"fractional_multiplier" mapstructure:"fractional_multiplier"`
	MinTrades           int     `json:"min_trades" mapstructure:"min_trades"`
	LookbackPeriod      int     `json:"lookback_period" mapstructure:"lookback_period"`
}

// StopLossConfig tunes the ATR trailing-stop tracker.
type StopLossConfig struct {
	Enabled      bool    `json:"enabled" mapstructure:"enabled"`
	ATRMultiplier float64 `json:"atr_multiplier" mapstructure:"atr_multiplier"`
	Trailing     bool    `json:"trailing" mapstructure:"trailing"`
	ATRPeriod    int     `json:"atr_period" mapstructure:"atr_period"`
	UseEMA       bool    `json:"use_ema" mapstructure:"use_ema"`
}

// AdaptiveConfig holds the three candidate strategies plus the arbiter and
// risk knobs that select and size between them.
type AdaptiveConfig struct {
	Bullish StrategyConfig  `json:"bullish" mapstructure:"bullish"`
	Bearish StrategyConfig  `json:"bearish" mapstructure:"bearish"`
	Neutral *StrategyConfig `json:"neutral,omitempty" mapstructure:"neutral,omitempty"`

	RegimeConfidenceThreshold     float64 `json:"regime_confidence_threshold" mapstructure:"regime_confidence_threshold"`
	MomentumConfirmationThreshold float64 `json:"momentum_confirmation_threshold" mapstructure:"momentum_confirmation_threshold"`
	RegimePersistencePeriods      int     `json:"regime_persistence_periods" mapstructure:"regime_persistence_periods"`
	BullishPositionMultiplier     float64 `json:"bullish_position_multiplier" mapstructure:"bullish_position_multiplier"`
	DynamicPositionSizing         bool    `json:"dynamic_position_sizing" mapstructure:"dynamic_position_sizing"`
	MaxBullishPosition            float64 `json:"max_bullish_position" mapstructure:"max_bullish_position"`
	MaxVolatility                 float64 `json:"max_volatility" mapstructure:"max_volatility"`
	CircuitBreakerWinRate         float64 `json:"circuit_breaker_win_rate" mapstructure:"circuit_breaker_win_rate"`
	CircuitBreakerLookback        int     `json:"circuit_breaker_lookback" mapstructure:"circuit_breaker_lookback"`
	WhipsawDetectionPeriods       int     `json:"whipsaw_detection_periods" mapstructure:"whipsaw_detection_periods"`
	WhipsawMaxChanges             int     `json:"whipsaw_max_changes" mapstructure:"whipsaw_max_changes"`
	MaxDrawdownThreshold          float64 `json:"max_drawdown_threshold" mapstructure:"max_drawdown_threshold"`
	Kelly                         *KellyConfig    `json:"kelly,omitempty" mapstructure:"kelly,omitempty"`
	StopLoss                      *StopLossConfig `json:"stop_loss,omitempty" mapstructure:"stop_loss,omitempty"`
	PriceValidationThreshold      float64 `json:"price_validation_threshold" mapstructure:"price_validation_threshold"`
	MinPositionSize               float64 `json:"min_position_size" mapstructure:"min_position_size"`
}

// Validate fails fast on threshold violations, per the ConfigInvalid error
// kind (§7): callers must reject an invalid config at session start rather
// than discover it mid-tick.
func (ac AdaptiveConfig) Validate() error {
	if err := ac.Bullish.Validate(); err != nil {
		return fmt.Errorf("types: bullish config invalid: %w", err)
	}
	if err := ac.Bearish.Validate(); err != nil {
		return fmt.Errorf("types: bearish config invalid: %w", err)
	}
	if ac.Neutral != nil {
		if err := ac.Neutral.Validate(); err != nil {
			return fmt.Errorf("types: neutral config invalid: %w", err)
		}
	}
	if ac.RegimePersistencePeriods < 1 || ac.RegimePersistencePeriods > 5 {
		return fmt.Errorf("types: regime_persistence_periods must be in [1,5], got %d", ac.RegimePersistencePeriods)
	}
	if ac.MaxBullishPosition <= 0 || ac.MaxBullishPosition > 1 {
		return fmt.Errorf("types: max_bullish_position must be in (0,1], got %v", ac.MaxBullishPosition)
	}
	if ac.Kelly != nil && ac.Kelly.Enabled {
		if ac.Kelly.FractionalMultiplier <= 0 || ac.Kelly.FractionalMultiplier > 1 {
			return fmt.Errorf("types: kelly fractional_multiplier must be in (0,1], got %v", ac.Kelly.FractionalMultiplier)
		}
	}
	if ac.StopLoss != nil && ac.StopLoss.Enabled && ac.StopLoss.ATRMultiplier <= 0 {
		return fmt.Errorf("types: stop_loss atr_multiplier must be > 0, got %v", ac.StopLoss.ATRMultiplier)
	}
	return nil
}
