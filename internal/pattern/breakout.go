package pattern

import (
	"time"

	"reversal-scanner/internal/models"
)

// FindBreakout scans forward from the bar following `from` for the first
// close crossing the level in the implied direction: below it for bearish,
// above it for bullish. At most maxBars bars are examined; a cross on
// exactly the maxBars-th bar counts, one bar beyond does not. The boolean
// result is false when no bar crosses within the window.
func FindBreakout(bars []models.Bar, level float64, from time.Time, dir models.Direction, maxBars int) (int, bool) {
	if maxBars <= 0 {
		return 0, false
	}
	start := 0
	for start < len(bars) && !bars[start].Timestamp.After(from) {
		start++
	}
	end := start + maxBars
	if end > len(bars) {
		end = len(bars)
	}
	for i := start; i < end; i++ {
		if dir == models.Bearish && bars[i].Close < level {
			return i, true
		}
		if dir == models.Bullish && bars[i].Close > level {
			return i, true
		}
	}
	return 0, false
}

// breakoutVolumeExceeds reports whether the breakout bar's volume exceeds
// the average volume over the pattern window [patStart, patEnd] by the
// given multiple.
func breakoutVolumeExceeds(bars []models.Bar, breakoutIdx, patStart, patEnd int, mult float64) bool {
	if breakoutIdx < 0 || breakoutIdx >= len(bars) || patStart < 0 || patEnd < patStart || patEnd >= len(bars) {
		return false
	}
	var total float64
	for i := patStart; i <= patEnd; i++ {
		total += float64(bars[i].Volume)
	}
	avg := total / float64(patEnd-patStart+1)
	if avg <= 0 {
		return false
	}
	return float64(bars[breakoutIdx].Volume) >= avg*mult
}
