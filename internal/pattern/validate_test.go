package pattern

import (
	"testing"
	"time"

	"reversal-scanner/internal/confirm"
	"reversal-scanner/internal/models"
)

func newTestValidator(params Params) *Validator {
	return NewValidator(params, confirm.NewEngine(confirm.DefaultParams()))
}

// seriesWithPattern builds a bar series from a lead-in ramp, a pattern
// segment and a tail, all as flat bars, plus the pivots at the given
// offsets into the pattern segment.
func seriesWithPattern(lead, segment, tail []float64, pivotOffsets []int, kinds []models.PivotKind) ([]models.Bar, []models.Pivot) {
	prices := append(append(append([]float64{}, lead...), segment...), tail...)
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(prices))
	for i, p := range prices {
		bars[i] = models.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      p, High: p, Low: p, Close: p,
			Volume: 1000,
		}
	}
	pivots := make([]models.Pivot, len(pivotOffsets))
	for i, off := range pivotOffsets {
		bi := len(lead) + off
		pivots[i] = models.Pivot{
			Timestamp: bars[bi].Timestamp,
			Price:     bars[bi].Close,
			Kind:      kinds[i],
		}
	}
	return bars, pivots
}

// ramp returns n ascending prices ending just below `to`.
func ramp(from, to float64, n int) []float64 {
	out := make([]float64, n)
	step := (to - from) / float64(n)
	for i := range out {
		out[i] = from + step*float64(i)
	}
	return out
}

// hnsTopSeries is a clean bearish head and shoulders: prior uptrend, equal
// shoulders at 110, head at 120 on a flat neckline at 100 and a retest back
// to the neckline, followed by a breakdown.
func hnsTopSeries() ([]models.Bar, []models.Pivot) {
	return seriesWithPattern(
		ramp(60, 100, 40),
		[]float64{100, 105, 110, 105, 100, 110, 120, 110, 100, 105, 110, 105, 100},
		[]float64{98, 95},
		[]int{0, 2, 4, 6, 8, 10, 12},
		HeadAndShouldersTop.Kinds,
	)
}

func hnsCandidate(pivots []models.Pivot) Candidate {
	return Candidate{
		Ticker:    "AAPL",
		Timeframe: "1h",
		Strategy:  "default",
		Signature: HeadAndShouldersTop,
		Pivots:    pivots,
	}
}

func TestValidateAcceptsCleanHNS(t *testing.T) {
	bars, pivots := hnsTopSeries()
	v := newTestValidator(DefaultParams())

	rec := v.Validate(hnsCandidate(pivots), bars, 2)
	if rec == nil {
		t.Fatal("expected a clean pattern to be accepted")
	}

	flags := []struct {
		name string
		ok   bool
	}{
		{"ExtremeHead", rec.Report.ExtremeHead},
		{"ContextualExtreme", rec.Report.ContextualExtreme},
		{"Symmetry", rec.Report.Symmetry},
		{"NecklineFlat", rec.Report.NecklineFlat},
		{"TrendBase", rec.Report.TrendBase},
		{"NecklineRetest", rec.Report.NecklineRetest},
	}
	for _, f := range flags {
		if !f.ok {
			t.Errorf("mandatory flag %s not set on an accepted record", f.name)
		}
	}
	if rec.ScoreTotal < DefaultParams().Weights.MandatorySum() {
		t.Errorf("score %v below the mandatory sum", rec.ScoreTotal)
	}
	if rec.Family != models.FamilyHNS || rec.Direction != models.Bearish {
		t.Errorf("unexpected classification %s/%s", rec.Family, rec.Direction)
	}
	if !rec.Head.Equal(pivots[3].Timestamp) {
		t.Errorf("record head should anchor on the middle extreme")
	}
	if rec.Breakout == nil {
		t.Fatal("expected the breakdown bar to be located")
	}
	if rec.Breakout.Close != 98 {
		t.Errorf("expected breakout close 98, got %v", rec.Breakout.Close)
	}
}

func TestValidateMandatoryGateFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(bars []models.Bar, pivots []models.Pivot)
	}{
		{
			// Head no longer beyond both shoulders.
			"shallow head",
			func(bars []models.Bar, pivots []models.Pivot) {
				pivots[3].Price = 108
			},
		},
		{
			// A pre-pattern bar trades above the head inside the lookback.
			"head not contextually extreme",
			func(bars []models.Bar, pivots []models.Pivot) {
				i := models.BarIndex(bars, pivots[1].Timestamp)
				bars[i+1].High = 125
			},
		},
		{
			// Shoulder heights diverge beyond tolerance.
			"asymmetric shoulders",
			func(bars []models.Bar, pivots []models.Pivot) {
				pivots[5].Price = 119
			},
		},
		{
			// Neckline pivots no longer level.
			"sloped neckline",
			func(bars []models.Bar, pivots []models.Pivot) {
				pivots[4].Price = 90
			},
		},
		{
			// Base pivot above the neckline: no prior uptrend into the top.
			"missing trend base",
			func(bars []models.Bar, pivots []models.Pivot) {
				pivots[0].Price = 112
			},
		},
		{
			// Trailing pivot far from the neckline band.
			"failed retest",
			func(bars []models.Bar, pivots []models.Pivot) {
				pivots[6].Price = 85
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars, pivots := hnsTopSeries()
			tt.mutate(bars, pivots)
			v := newTestValidator(DefaultParams())
			if rec := v.Validate(hnsCandidate(pivots), bars, 2); rec != nil {
				t.Errorf("expected candidate to be discarded, got score %v", rec.ScoreTotal)
			}
		})
	}
}

func TestValidateScoreThreshold(t *testing.T) {
	bars, pivots := hnsTopSeries()

	params := DefaultParams()
	params.MinScore = 100
	v := newTestValidator(params)
	if rec := v.Validate(hnsCandidate(pivots), bars, 2); rec != nil {
		t.Errorf("expected silent discard below threshold, got score %v", rec.ScoreTotal)
	}

	// At exactly the mandatory sum the candidate survives.
	params.MinScore = params.Weights.MandatorySum()
	v = newTestValidator(params)
	if rec := v.Validate(hnsCandidate(pivots), bars, 2); rec == nil {
		t.Error("expected acceptance at exactly the threshold")
	}
}

func TestValidateDoubleTop(t *testing.T) {
	bars, pivots := seriesWithPattern(
		ramp(60, 100, 40),
		[]float64{100, 105, 110, 105, 100, 105, 110, 105, 100},
		[]float64{98, 95},
		[]int{0, 2, 4, 6, 8},
		DoubleTop.Kinds,
	)

	v := newTestValidator(DefaultParams())
	cand := Candidate{Ticker: "MSFT", Timeframe: "1d", Strategy: "default", Signature: DoubleTop, Pivots: pivots}
	rec := v.Validate(cand, bars, 2)
	if rec == nil {
		t.Fatal("expected a clean double top to be accepted")
	}
	if rec.Family != models.FamilyDouble || rec.Direction != models.Bearish {
		t.Errorf("unexpected classification %s/%s", rec.Family, rec.Direction)
	}
	if rec.Breakout == nil {
		t.Error("expected the breakdown bar to be located")
	}
}

func TestValidateInverseHNS(t *testing.T) {
	bars, pivots := seriesWithPattern(
		ramp(140, 100, 40),
		[]float64{100, 95, 90, 95, 100, 90, 80, 90, 100, 95, 90, 95, 100},
		[]float64{102, 105},
		[]int{0, 2, 4, 6, 8, 10, 12},
		HeadAndShouldersBottom.Kinds,
	)

	v := newTestValidator(DefaultParams())
	cand := Candidate{Ticker: "BTCUSD", Timeframe: "4h", Strategy: "default", Signature: HeadAndShouldersBottom, Pivots: pivots}
	rec := v.Validate(cand, bars, 2)
	if rec == nil {
		t.Fatal("expected a clean inverse pattern to be accepted")
	}
	if rec.Direction != models.Bullish {
		t.Errorf("expected bullish direction, got %s", rec.Direction)
	}
	if rec.Breakout == nil {
		t.Fatal("expected the upside breakout to be located")
	}
	if rec.Breakout.Close != 102 {
		t.Errorf("expected breakout close 102, got %v", rec.Breakout.Close)
	}
}

// The HNS and triple signatures share a kind tuple; the validators
// discriminate. A pronounced head rejects the triple reading and a level
// triple rejects the HNS reading.
func TestValidateFamilyDiscrimination(t *testing.T) {
	barsHNS, pivotsHNS := hnsTopSeries()
	v := newTestValidator(DefaultParams())

	tripleCand := Candidate{
		Ticker: "AAPL", Timeframe: "1h", Strategy: "default",
		Signature: TripleTop, Pivots: pivotsHNS,
	}
	if rec := v.Validate(tripleCand, barsHNS, 2); rec != nil {
		t.Errorf("expected the triple reading of a pronounced head to be discarded")
	}

	barsTriple, pivotsTriple := seriesWithPattern(
		ramp(60, 100, 40),
		[]float64{100, 105, 110, 105, 100, 105, 110, 105, 100, 105, 110, 105, 100},
		[]float64{98, 95},
		[]int{0, 2, 4, 6, 8, 10, 12},
		TripleTop.Kinds,
	)
	hnsCand := Candidate{
		Ticker: "AAPL", Timeframe: "1h", Strategy: "default",
		Signature: HeadAndShouldersTop, Pivots: pivotsTriple,
	}
	if rec := v.Validate(hnsCand, barsTriple, 2); rec != nil {
		t.Errorf("expected the HNS reading of level extremes to be discarded")
	}

	tripleCand.Pivots = pivotsTriple
	if rec := v.Validate(tripleCand, barsTriple, 2); rec == nil {
		t.Error("expected the triple reading of level extremes to be accepted")
	} else if rec.Family != models.FamilyTriple {
		t.Errorf("unexpected family %s", rec.Family)
	}
}

func TestValidateWrongWindowLength(t *testing.T) {
	bars, pivots := hnsTopSeries()
	v := newTestValidator(DefaultParams())

	cand := hnsCandidate(pivots[:5])
	if rec := v.Validate(cand, bars, 2); rec != nil {
		t.Error("expected a window of the wrong length to be discarded")
	}
}

func TestReportFlagsMatchRuleNames(t *testing.T) {
	r := Report{}
	if len(r.Flags()) != len(RuleNames()) {
		t.Errorf("Flags() yields %d values for %d rule names", len(r.Flags()), len(RuleNames()))
	}
}

func TestRecordKey(t *testing.T) {
	head := time.Date(2025, 2, 2, 12, 0, 0, 0, time.UTC)
	a := Record{Ticker: "AAPL", Timeframe: "1h", Family: models.FamilyHNS, Direction: models.Bearish, Head: head}
	b := Record{Ticker: "AAPL", Timeframe: "1h", Family: models.FamilyHNS, Direction: models.Bearish, Head: head, Strategy: "other"}
	if a.Key() != b.Key() {
		t.Errorf("keys should ignore the strategy: %s vs %s", a.Key(), b.Key())
	}
	c := Record{Ticker: "AAPL", Timeframe: "1d", Family: models.FamilyHNS, Direction: models.Bearish, Head: head}
	if a.Key() == c.Key() {
		t.Errorf("keys should distinguish timeframes")
	}
}

func TestRecordRowMatchesHeader(t *testing.T) {
	bars, pivots := hnsTopSeries()
	v := newTestValidator(DefaultParams())
	rec := v.Validate(hnsCandidate(pivots), bars, 2)
	if rec == nil {
		t.Fatal("expected an accepted record")
	}
	header := CSVHeader(7)
	row := rec.Row(7)
	if len(header) != len(row) {
		t.Errorf("header has %d columns, row has %d", len(header), len(row))
	}
}
