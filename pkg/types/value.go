// Package types holds the domain model shared by every component of the
// decision-and-execution engine: candles, configuration, portfolio state,
// regime signals and session state.
package types

// Optional wraps a float64 that may be undefined. Indicator sequences use it
// instead of a NaN sentinel so "not yet defined" is never confused with a
// genuine zero signal.
type Optional struct {
	value float64
	valid bool
}

// Some returns a defined Optional wrapping v.
func Some(v float64) Optional {
	return Optional{value: v, valid: true}
}

// None returns an undefined Optional.
func None() Optional {
	return Optional{}
}

// Valid reports whether the value is defined.
func (o Optional) Valid() bool { return o.valid }

// Value returns the wrapped value and whether it was defined. Callers must
// check the second return before trusting the first.
func (o Optional) Value() (float64, bool) { return o.value, o.valid }

// Get returns the wrapped value, or fallback when undefined.
func (o Optional) Get(fallback float64) float64 {
	if o.valid {
		return o.value
	}
	return fallback
}

// MustGet panics when undefined; intended for call sites that already
// checked Valid().
func (o Optional) MustGet() float64 {
	if !o.valid {
		panic("types: MustGet called on undefined Optional")
	}
	return o.value
}
