package market

// DefaultSeriesLimit caps how many candles a series retains. 500 bars covers
// the deepest lookback any indicator uses (averageATR over 50 windows of 14)
// with room to spare.
const DefaultSeriesLimit = 500

// Series is an append-only, chronologically ordered candle buffer for one
// symbol. Old candles are dropped once the limit is reached. Series does no
// locking of its own; the owning engine serializes access.
type Series struct {
	candles []Candle
	limit   int
}

// NewSeries creates a series retaining at most limit candles.
// A non-positive limit falls back to DefaultSeriesLimit.
func NewSeries(limit int) *Series {
	if limit <= 0 {
		limit = DefaultSeriesLimit
	}
	return &Series{
		candles: make([]Candle, 0, limit),
		limit:   limit,
	}
}

// Append adds a candle to the end of the series, evicting the oldest
// candle when the series is full.
func (s *Series) Append(c Candle) {
	if len(s.candles) >= s.limit {
		copy(s.candles, s.candles[1:])
		s.candles[len(s.candles)-1] = c
		return
	}
	s.candles = append(s.candles, c)
}

// Len returns the number of retained candles.
func (s *Series) Len() int {
	return len(s.candles)
}

// Candles returns the retained candles, oldest first. The slice is shared
// with the series and must not be mutated by the caller.
func (s *Series) Candles() []Candle {
	return s.candles
}

// LastN returns the most recent n candles, or all of them if fewer exist.
func (s *Series) LastN(n int) []Candle {
	if n <= 0 {
		return nil
	}
	if n >= len(s.candles) {
		return s.candles
	}
	return s.candles[len(s.candles)-n:]
}

// Last returns the most recent candle, if any.
func (s *Series) Last() (Candle, bool) {
	if len(s.candles) == 0 {
		return Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

// Closes returns the close prices of all retained candles, oldest first.
func (s *Series) Closes() []float64 {
	closes := make([]float64, len(s.candles))
	for i, c := range s.candles {
		closes[i] = c.Close
	}
	return closes
}
