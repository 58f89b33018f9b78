// Package pivot converts a bar series into an ordered sequence of
// alternating peak/valley pivots.
package pivot

import (
	"math"
	"sort"

	"reversal-scanner/internal/models"
)

// Extractor finds confirmed price pivots in a bar series.
type Extractor struct {
	depth        int     // half-width of the rolling extreme window, in bars
	deviationPct float64 // minimum reversal deviation, percent
}

// NewExtractor creates an extractor with the given window depth and minimum
// reversal deviation percentage.
func NewExtractor(depth int, deviationPct float64) *Extractor {
	return &Extractor{depth: depth, deviationPct: deviationPct}
}

// Extract returns the confirmed pivots for the series. A series shorter than
// 2*depth+1 bars, or one with no price variance, yields an empty result.
// Confirmed pivot kinds strictly alternate.
func (e *Extractor) Extract(bars []models.Bar) []models.Pivot {
	if e.depth <= 0 || len(bars) < 2*e.depth+1 {
		return nil
	}

	candidates := e.findCandidates(bars)
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Timestamp.Before(candidates[j].Timestamp)
	})
	candidates = dedupByTimestamp(candidates)

	return confirm(candidates, e.deviationPct)
}

// ExtractExtended runs Extract and then folds the last bar into the result,
// so the most recent pivot reflects the freshest data even though the
// rolling window cannot yet confirm it.
func (e *Extractor) ExtractExtended(bars []models.Bar) []models.Pivot {
	pivots := e.Extract(bars)
	return ExtendLatest(pivots, bars, e.deviationPct)
}

// findCandidates marks each bar whose high (low) is the rolling maximum
// (minimum) over the centered window of 2*depth+1 bars. Ties go to the first
// occurrence inside the window.
func (e *Extractor) findCandidates(bars []models.Bar) []models.Pivot {
	var out []models.Pivot
	d := e.depth

	for i := d; i < len(bars)-d; i++ {
		isPeak := true
		isValley := true
		for j := i - d; j <= i+d; j++ {
			if j == i {
				continue
			}
			// Earlier equal extremes claim the window.
			if bars[j].High > bars[i].High || (j < i && bars[j].High == bars[i].High) {
				isPeak = false
			}
			if bars[j].Low < bars[i].Low || (j < i && bars[j].Low == bars[i].Low) {
				isValley = false
			}
			if !isPeak && !isValley {
				break
			}
		}
		if isPeak {
			out = append(out, models.Pivot{
				Timestamp: bars[i].Timestamp,
				Price:     bars[i].High,
				Kind:      models.Peak,
			})
		}
		if isValley {
			out = append(out, models.Pivot{
				Timestamp: bars[i].Timestamp,
				Price:     bars[i].Low,
				Kind:      models.Valley,
			})
		}
	}
	return out
}

func dedupByTimestamp(cands []models.Pivot) []models.Pivot {
	out := cands[:0]
	for _, c := range cands {
		if len(out) > 0 && out[len(out)-1].Timestamp.Equal(c.Timestamp) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// confirm walks the sorted candidates. Consecutive same-kind candidates
// collapse into the more extreme one; an opposite-kind candidate becomes a
// new pivot only when its deviation from the last confirmed pivot meets the
// threshold. The very first candidate is always confirmed.
func confirm(cands []models.Pivot, deviationPct float64) []models.Pivot {
	var confirmed []models.Pivot
	for _, c := range cands {
		if len(confirmed) == 0 {
			confirmed = append(confirmed, c)
			continue
		}
		last := &confirmed[len(confirmed)-1]
		if c.Kind == last.Kind {
			if moreExtreme(c, *last) {
				*last = c
			}
			continue
		}
		if deviation(last.Price, c.Price) >= deviationPct {
			confirmed = append(confirmed, c)
		}
	}
	return confirmed
}

// ExtendLatest updates or appends the final pivot from the last bar of the
// series. If the last bar pushes beyond the latest confirmed pivot it
// replaces it; if it has reversed far enough the opposite way, a fresh
// pivot is appended. Alternation is preserved either way.
func ExtendLatest(pivots []models.Pivot, bars []models.Bar, deviationPct float64) []models.Pivot {
	if len(pivots) == 0 || len(bars) == 0 {
		return pivots
	}
	lastBar := bars[len(bars)-1]
	last := &pivots[len(pivots)-1]
	if !lastBar.Timestamp.After(last.Timestamp) {
		return pivots
	}

	switch last.Kind {
	case models.Peak:
		if lastBar.High > last.Price {
			last.Price = lastBar.High
			last.Timestamp = lastBar.Timestamp
		} else if deviation(last.Price, lastBar.Low) >= deviationPct {
			pivots = append(pivots, models.Pivot{
				Timestamp: lastBar.Timestamp,
				Price:     lastBar.Low,
				Kind:      models.Valley,
			})
		}
	case models.Valley:
		if lastBar.Low < last.Price {
			last.Price = lastBar.Low
			last.Timestamp = lastBar.Timestamp
		} else if deviation(last.Price, lastBar.High) >= deviationPct {
			pivots = append(pivots, models.Pivot{
				Timestamp: lastBar.Timestamp,
				Price:     lastBar.High,
				Kind:      models.Peak,
			})
		}
	}
	return pivots
}

// AverageSpacing returns the mean bar distance between consecutive pivots.
// Used to size contextual lookback windows.
func AverageSpacing(bars []models.Bar, pivots []models.Pivot) float64 {
	if len(pivots) < 2 {
		return 0
	}
	first := models.BarIndex(bars, pivots[0].Timestamp)
	last := models.BarIndex(bars, pivots[len(pivots)-1].Timestamp)
	if first < 0 || last < 0 || last <= first {
		return 0
	}
	return float64(last-first) / float64(len(pivots)-1)
}

func moreExtreme(c, last models.Pivot) bool {
	if c.Kind == models.Peak {
		return c.Price > last.Price
	}
	return c.Price < last.Price
}

// deviation is the absolute percentage move from a reference price.
func deviation(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return math.Abs(to-from) / math.Abs(from) * 100
}
