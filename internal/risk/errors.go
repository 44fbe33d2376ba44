// Package risk defines the engine's error taxonomy and the account-level
// gate that admits or refuses new positions.
package risk

import "fmt"

// ValidationError reports malformed or missing strategy parameters,
// imbalanced take-profit levels, or out-of-range risk inputs. It is raised
// synchronously and never retried; the caller must supply corrected
// parameters.
type ValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

// DataError reports insufficient candle history for a requested
// indicator or correlation period. Same treatment as ValidationError:
// synchronous, never retried.
type DataError struct {
	Symbol   string
	Required int
	Actual   int
	Reason   string
}

func (e *DataError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("insufficient data: %s: need %d, have %d", e.Reason, e.Required, e.Actual)
	}
	return fmt.Sprintf("insufficient data for %s: %s: need %d, have %d", e.Symbol, e.Reason, e.Required, e.Actual)
}
