package pivot

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"reversal-scanner/internal/models"
)

// barsFromPath builds flat bars (open=high=low=close) from a price path,
// one bar per hour. Flat bars make the rolling extremes exactly the local
// extremes of the path.
func barsFromPath(prices []float64) []models.Bar {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(prices))
	for i, p := range prices {
		bars[i] = models.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      p,
			High:      p,
			Low:       p,
			Close:     p,
			Volume:    1000,
		}
	}
	return bars
}

func TestExtractShortSeries(t *testing.T) {
	e := NewExtractor(3, 1.0)
	bars := barsFromPath([]float64{10, 11, 12, 11, 10, 11})
	if got := e.Extract(bars); got != nil {
		t.Errorf("expected nil for series shorter than window, got %d pivots", len(got))
	}
	if got := e.Extract(nil); got != nil {
		t.Errorf("expected nil for empty series, got %d pivots", len(got))
	}
}

func TestExtractSinglePivot(t *testing.T) {
	e := NewExtractor(2, 1.0)
	bars := barsFromPath([]float64{10, 9, 8, 7, 6, 7, 8, 9, 10})

	pivots := e.Extract(bars)
	if len(pivots) != 1 {
		t.Fatalf("expected 1 pivot, got %d", len(pivots))
	}
	if pivots[0].Kind != models.Valley {
		t.Errorf("expected valley, got %s", pivots[0].Kind)
	}
	if pivots[0].Price != 6 {
		t.Errorf("expected valley price 6, got %v", pivots[0].Price)
	}
}

func TestExtractZigzag(t *testing.T) {
	e := NewExtractor(2, 1.0)
	bars := barsFromPath([]float64{10, 12, 14, 12, 10, 8, 6, 8, 10, 12, 14, 12, 10})

	pivots := e.Extract(bars)
	if len(pivots) != 3 {
		t.Fatalf("expected 3 pivots, got %d", len(pivots))
	}
	want := []struct {
		kind  models.PivotKind
		price float64
	}{
		{models.Peak, 14},
		{models.Valley, 6},
		{models.Peak, 14},
	}
	for i, w := range want {
		if pivots[i].Kind != w.kind || pivots[i].Price != w.price {
			t.Errorf("pivot %d: got %s %v, want %s %v",
				i, pivots[i].Kind, pivots[i].Price, w.kind, w.price)
		}
	}
}

func TestExtractMergesShallowReversal(t *testing.T) {
	// The dip between the two peaks is below the 50% deviation threshold,
	// so the peaks collapse into the higher one.
	e := NewExtractor(2, 50.0)
	bars := barsFromPath([]float64{10, 11, 12, 11, 10, 11, 14, 11, 10})

	pivots := e.Extract(bars)
	if len(pivots) != 1 {
		t.Fatalf("expected 1 pivot after merge, got %d", len(pivots))
	}
	if pivots[0].Kind != models.Peak || pivots[0].Price != 14 {
		t.Errorf("expected merged peak at 14, got %s %v", pivots[0].Kind, pivots[0].Price)
	}
}

func TestExtendLatestRaisesPeak(t *testing.T) {
	bars := barsFromPath([]float64{10, 12, 14, 12, 10, 8, 6, 8, 10, 12, 14, 12, 11, 16})
	e := NewExtractor(2, 1.0)

	base := e.Extract(bars)
	extended := e.ExtractExtended(bars)
	if len(extended) != len(base) {
		t.Fatalf("expected extension to update in place, got %d vs %d pivots", len(extended), len(base))
	}
	last := extended[len(extended)-1]
	if last.Kind != models.Peak || last.Price != 16 {
		t.Errorf("expected last peak raised to 16, got %s %v", last.Kind, last.Price)
	}
	if !last.Timestamp.Equal(bars[len(bars)-1].Timestamp) {
		t.Errorf("expected last pivot timestamp to move to the final bar")
	}
}

func TestExtendLatestAppendsReversal(t *testing.T) {
	bars := barsFromPath([]float64{10, 12, 14, 12, 10, 8, 6, 8, 10, 12, 14, 12, 7})
	e := NewExtractor(2, 10.0)

	base := e.Extract(bars)
	extended := e.ExtractExtended(bars)
	if len(extended) != len(base)+1 {
		t.Fatalf("expected one appended pivot, got %d vs %d", len(extended), len(base))
	}
	last := extended[len(extended)-1]
	if last.Kind != models.Valley || last.Price != 7 {
		t.Errorf("expected appended valley at 7, got %s %v", last.Kind, last.Price)
	}
}

func TestAverageSpacing(t *testing.T) {
	bars := barsFromPath([]float64{10, 12, 14, 12, 10, 8, 6, 8, 10, 12, 14, 12, 10})
	e := NewExtractor(2, 1.0)
	pivots := e.Extract(bars)

	// Pivots sit at bar indexes 2, 6 and 10: spacing (10-2)/2 = 4.
	if got := AverageSpacing(bars, pivots); got != 4 {
		t.Errorf("expected average spacing 4, got %v", got)
	}
	if got := AverageSpacing(bars, pivots[:1]); got != 0 {
		t.Errorf("expected 0 for a single pivot, got %v", got)
	}
}

// pathGen generates a random positive price path.
func pathGen(minLen, maxLen int) gopter.Gen {
	return gen.SliceOfN(maxLen, gen.Float64Range(50.0, 150.0)).Map(func(prices []float64) []float64 {
		if len(prices) < minLen {
			for len(prices) < minLen {
				prices = append(prices, 100.0)
			}
		}
		return prices
	})
}

// Property: confirmed pivots strictly alternate in kind and are strictly
// ordered in time, for any price path and any extractor parameters.
func TestExtractAlternationProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("pivots alternate and are time-ordered", prop.ForAll(
		func(prices []float64, depth int, deviationPct float64) bool {
			e := NewExtractor(depth, deviationPct)
			pivots := e.Extract(barsFromPath(prices))
			for i := 1; i < len(pivots); i++ {
				if pivots[i].Kind == pivots[i-1].Kind {
					return false
				}
				if !pivots[i].Timestamp.After(pivots[i-1].Timestamp) {
					return false
				}
			}
			return true
		},
		pathGen(7, 80),
		gen.IntRange(1, 5),
		gen.Float64Range(0.1, 10.0),
	))

	properties.Property("extended pivots preserve alternation", prop.ForAll(
		func(prices []float64, depth int, deviationPct float64) bool {
			e := NewExtractor(depth, deviationPct)
			pivots := e.ExtractExtended(barsFromPath(prices))
			for i := 1; i < len(pivots); i++ {
				if pivots[i].Kind == pivots[i-1].Kind {
					return false
				}
			}
			return true
		},
		pathGen(7, 80),
		gen.IntRange(1, 5),
		gen.Float64Range(0.1, 10.0),
	))

	properties.TestingRun(t)
}
