package scan

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"reversal-scanner/internal/config"
	"reversal-scanner/internal/marketdata"
	"reversal-scanner/internal/models"
)

// patternSeries builds a bar series carrying a clean bearish head and
// shoulders that the default strategy extracts and accepts: a sell-off into
// a base valley, an uptrend into the formation, a pronounced head over a
// flat neckline, a neckline retest and a breakdown.
func patternSeries() []models.Bar {
	var prices []float64
	for i := 0; i < 20; i++ {
		prices = append(prices, 100-2*float64(i))
	}
	for i := 0; i < 20; i++ {
		prices = append(prices, 61+2*float64(i))
	}
	prices = append(prices,
		100, 105, 110, 105, 100, 110, 120, 110, 100, 105, 110, 105, 100)
	prices = append(prices, 103, 104, 103, 99, 95, 94, 96)

	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(prices))
	for i, p := range prices {
		bars[i] = models.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      p, High: p, Low: p, Close: p,
			Volume: 1000,
		}
	}
	return bars
}

func testConfig(tickers []string) *config.Config {
	cfg := config.Default()
	cfg.Scan.Tickers = tickers
	cfg.Scan.Timeframes = []string{"1h"}
	cfg.Scan.Workers = 2
	cfg.Scan.Period = 200

	strat := config.DefaultStrategy()
	strat.PivotDepth = 2
	strat.ExtendLatest = false
	cfg.Strategies["default"] = strat
	return cfg
}

func TestRunFindsPattern(t *testing.T) {
	provider := marketdata.NewStaticProvider()
	provider.Add("AAPL", "1h", patternSeries())

	s := New(provider, testConfig([]string{"AAPL"}), zerolog.Nop())
	records, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("expected at least one record from a clean pattern series")
	}

	found := false
	for _, r := range records {
		if r.Ticker == "AAPL" && r.Family == models.FamilyHNS && r.Direction == models.Bearish {
			found = true
		}
	}
	if !found {
		t.Error("expected a bearish head and shoulders record")
	}
}

func TestRunSkipsFailingUnits(t *testing.T) {
	provider := marketdata.NewStaticProvider()
	provider.Add("AAPL", "1h", patternSeries())
	// MSFT has no registered series and XRX has too few bars.
	provider.Add("XRX", "1h", patternSeries()[:3])

	s := New(provider, testConfig([]string{"AAPL", "MSFT", "XRX"}), zerolog.Nop())
	records, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range records {
		if r.Ticker != "AAPL" {
			t.Errorf("unexpected record for %s", r.Ticker)
		}
	}
	if len(records) == 0 {
		t.Error("expected the healthy unit to survive its neighbors' failures")
	}
}

func TestRunIsDeterministic(t *testing.T) {
	provider := marketdata.NewStaticProvider()
	provider.Add("AAPL", "1h", patternSeries())
	provider.Add("MSFT", "1h", patternSeries())

	cfg := testConfig([]string{"AAPL", "MSFT"})
	first, err := New(provider, cfg, zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := New(provider, cfg, zerolog.Nop()).Run(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatal("identical inputs produced different outputs")
		}
	}
}

func TestRunDeduplicatesByKey(t *testing.T) {
	provider := marketdata.NewStaticProvider()
	provider.Add("AAPL", "1h", patternSeries())

	cfg := testConfig([]string{"AAPL"})
	// Two strategies over the same series resolve to the same defining
	// extreme; one record per key survives.
	other := cfg.Strategies["default"]
	cfg.Strategies["wide"] = other
	cfg.Scan.Strategies = []string{"default", "wide"}

	records, err := New(provider, cfg, zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen := make(map[string]bool)
	for _, r := range records {
		if seen[r.Key()] {
			t.Errorf("duplicate key %s in final records", r.Key())
		}
		seen[r.Key()] = true
	}
	// First-seen wins: unit order puts the default strategy first.
	for _, r := range records {
		if r.Strategy != "default" {
			t.Errorf("expected the first strategy to win the key, got %s", r.Strategy)
		}
	}
}

func TestRunCancellation(t *testing.T) {
	provider := marketdata.NewStaticProvider()
	provider.Add("AAPL", "1h", patternSeries())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(provider, testConfig([]string{"AAPL"}), zerolog.Nop())
	if _, err := s.Run(ctx); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestUnitsOrder(t *testing.T) {
	cfg := testConfig([]string{"B", "A"})
	cfg.Scan.Timeframes = []string{"1h", "1d"}

	units := New(marketdata.NewStaticProvider(), cfg, zerolog.Nop()).Units()
	want := []Unit{
		{"B", "1h", "default"},
		{"B", "1d", "default"},
		{"A", "1h", "default"},
		{"A", "1d", "default"},
	}
	if !reflect.DeepEqual(units, want) {
		t.Errorf("unit enumeration order changed: %v", units)
	}
}
