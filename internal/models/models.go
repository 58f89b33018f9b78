// Package models provides domain models for the pattern scanner.
package models

import (
	"math"
	"time"
)

// Bar represents OHLCV data for a time period.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// PivotKind identifies a confirmed local extreme as a peak or a valley.
type PivotKind string

const (
	Peak   PivotKind = "PEAK"
	Valley PivotKind = "VALLEY"
)

// Opposite returns the alternating kind.
func (k PivotKind) Opposite() PivotKind {
	if k == Peak {
		return Valley
	}
	return Peak
}

// Pivot is a confirmed local price extreme in a bar series. Price is the
// bar high for a peak and the bar low for a valley.
type Pivot struct {
	Timestamp time.Time
	Price     float64
	Kind      PivotKind
}

// PatternFamily groups the reversal formations the scanner recognizes.
type PatternFamily string

const (
	FamilyHNS    PatternFamily = "HNS"
	FamilyDouble PatternFamily = "DOUBLE"
	FamilyTriple PatternFamily = "TRIPLE"
)

// Direction represents the implied direction of a completed pattern.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
)

// SanitizeBars filters bars carrying non-finite prices or negative volume
// and drops bars that break strict time ordering. The result is safe for
// pivot extraction.
func SanitizeBars(bars []Bar) []Bar {
	out := make([]Bar, 0, len(bars))
	var last time.Time
	for _, b := range bars {
		if !finite(b.Open) || !finite(b.High) || !finite(b.Low) || !finite(b.Close) {
			continue
		}
		if b.Volume < 0 {
			continue
		}
		if !last.IsZero() && !b.Timestamp.After(last) {
			continue
		}
		last = b.Timestamp
		out = append(out, b)
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// BarIndex returns the index of the bar with the given timestamp, or -1.
// Bars must be strictly time-ordered.
func BarIndex(bars []Bar, ts time.Time) int {
	lo, hi := 0, len(bars)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		switch {
		case bars[mid].Timestamp.Equal(ts):
			return mid
		case bars[mid].Timestamp.Before(ts):
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return -1
}

// Closes extracts the close price series from bars.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Highs extracts the high price series from bars.
func Highs(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts the low price series from bars.
func Lows(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

// Volumes extracts the volume series from bars as floats.
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = float64(b.Volume)
	}
	return out
}
