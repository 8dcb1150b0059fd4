package types

// RegimeKind is a closed enumeration of the three market states the
// detector classifies the asset into.
type RegimeKind string

const (
	RegimeBullish RegimeKind = "bullish"
	RegimeBearish RegimeKind = "bearish"
	RegimeNeutral RegimeKind = "neutral"
)

// RegimeSignal is the detector's output at one candle index. Confidence is
// a pure function of the inputs: same candle prefix, identical output.
type RegimeSignal struct {
	Regime     RegimeKind `json:"regime"`
	Confidence float64    `json:"confidence"`
	Trend      float64    `json:"trend"`
	Momentum   float64    `json:"momentum"`
	Volatility float64    `json:"volatility"`
}
