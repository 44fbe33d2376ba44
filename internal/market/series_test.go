package market

import "testing"

func candleAt(openTime int64, close float64) Candle {
	return Candle{OpenTime: openTime, Open: close, High: close, Low: close, Close: close}
}

func TestNewSeries_DefaultLimit(t *testing.T) {
	if got := NewSeries(0).limit; got != DefaultSeriesLimit {
		t.Errorf("Expected default limit %d, got %d", DefaultSeriesLimit, got)
	}
	if got := NewSeries(-5).limit; got != DefaultSeriesLimit {
		t.Errorf("Expected default limit %d, got %d", DefaultSeriesLimit, got)
	}
}

func TestSeries_AppendEvictsOldest(t *testing.T) {
	s := NewSeries(3)
	for i := 0; i < 4; i++ {
		s.Append(candleAt(int64(i), float64(100+i)))
	}

	if s.Len() != 3 {
		t.Fatalf("Expected length capped at 3, got %d", s.Len())
	}
	candles := s.Candles()
	if candles[0].OpenTime != 1 || candles[2].OpenTime != 3 {
		t.Errorf("Expected candles 1..3 after eviction, got %v", candles)
	}
}

func TestSeries_LastN(t *testing.T) {
	s := NewSeries(10)
	for i := 0; i < 5; i++ {
		s.Append(candleAt(int64(i), float64(100+i)))
	}

	if got := s.LastN(2); len(got) != 2 || got[0].OpenTime != 3 {
		t.Errorf("Expected the last 2 candles, got %v", got)
	}
	if got := s.LastN(10); len(got) != 5 {
		t.Errorf("Expected all candles for an oversized n, got %d", len(got))
	}
	if got := s.LastN(0); got != nil {
		t.Errorf("Expected nil for n=0, got %v", got)
	}
}

func TestSeries_Last(t *testing.T) {
	s := NewSeries(10)

	if _, ok := s.Last(); ok {
		t.Error("Expected no last candle on an empty series")
	}

	s.Append(candleAt(1, 100))
	s.Append(candleAt(2, 101))

	last, ok := s.Last()
	if !ok || last.Close != 101 {
		t.Errorf("Expected last close 101, got %v (ok=%v)", last.Close, ok)
	}
}

func TestSeries_Closes(t *testing.T) {
	s := NewSeries(10)
	for i := 0; i < 3; i++ {
		s.Append(candleAt(int64(i), float64(100+i)))
	}

	closes := s.Closes()
	if len(closes) != 3 || closes[0] != 100 || closes[2] != 102 {
		t.Errorf("Expected closes 100..102 oldest first, got %v", closes)
	}
}

func TestSide(t *testing.T) {
	tests := []struct {
		side         Side
		valid        bool
		wantOpposite Side
	}{
		{SideLong, true, SideShort},
		{SideShort, true, SideLong},
		{"UP", false, SideLong},
		{"", false, SideLong},
	}

	for _, tt := range tests {
		if tt.side.Valid() != tt.valid {
			t.Errorf("Expected Valid()=%v for %q", tt.valid, tt.side)
		}
		if tt.valid && tt.side.Opposite() != tt.wantOpposite {
			t.Errorf("Expected opposite of %s to be %s, got %s", tt.side, tt.wantOpposite, tt.side.Opposite())
		}
	}
}
