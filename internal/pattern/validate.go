package pattern

import (
	"math"

	"reversal-scanner/internal/confirm"
	"reversal-scanner/internal/models"
)

// Params holds the tolerances, weights and thresholds of the validation
// pipeline. The source material disagrees on several of these constants, so
// all of them are configuration with conventional defaults.
type Params struct {
	SymmetryTol     float64 `mapstructure:"symmetry_tol"`      // fraction of head height
	FlatnessTol     float64 `mapstructure:"flatness_tol"`      // fraction of shoulder height
	BaseTol         float64 `mapstructure:"base_tol"`          // fraction of pattern height
	RetestFloorPct  float64 `mapstructure:"retest_floor_pct"`  // percent of neckline price
	RetestATRMult   float64 `mapstructure:"retest_atr_mult"`   // ATR multiple for the retest band
	ContextMult     float64 `mapstructure:"context_mult"`      // lookback = mult * avg pivot spacing
	HeadRatio       float64 `mapstructure:"head_ratio"`        // head/shoulder prominence threshold
	EqualTol        float64 `mapstructure:"equal_tol"`         // equal-extreme tolerance, fraction of height
	MinHeightPct    float64 `mapstructure:"min_height_pct"`    // double/triple depth gate, percent
	VolRatio        float64 `mapstructure:"vol_ratio"`         // head-vs-shoulder volume ratio
	VolHalfWindow   int     `mapstructure:"vol_half_window"`   // bars each side of a volume window
	CrossWindow     int     `mapstructure:"cross_window"`      // bars scanned back for line crosses
	BreakoutVolMult float64 `mapstructure:"breakout_vol_mult"` // breakout volume vs pattern average
	MaxLookahead    int     `mapstructure:"max_lookahead"`     // bars scanned for a breakout
	MinScore        float64 `mapstructure:"min_score"`         // acceptance threshold
	Weights         Weights `mapstructure:"weights"`
}

// DefaultParams returns midpoint tolerances for the validation pipeline.
func DefaultParams() Params {
	return Params{
		SymmetryTol:     0.20,
		FlatnessTol:     0.25,
		BaseTol:         0.10,
		RetestFloorPct:  0.5,
		RetestATRMult:   0.5,
		ContextMult:     2.0,
		HeadRatio:       1.15,
		EqualTol:        0.20,
		MinHeightPct:    1.0,
		VolRatio:        1.2,
		VolHalfWindow:   2,
		CrossWindow:     5,
		BreakoutVolMult: 1.5,
		MaxLookahead:    30,
		MinScore:        6,
		Weights:         DefaultWeights(),
	}
}

// Validator applies the mandatory gates to a candidate and scores the
// optional confirmations. A candidate failing any mandatory gate is
// discarded, not reported.
type Validator struct {
	params Params
	engine *confirm.Engine
}

// NewValidator creates a validator around a confirmation engine.
func NewValidator(params Params, engine *confirm.Engine) *Validator {
	return &Validator{params: params, engine: engine}
}

// geometry captures the structural measurements shared by the gate
// predicates. sign is +1 for bearish (extremes are peaks) and -1 for
// bullish, so "more extreme" is always "signed greater".
type geometry struct {
	sign     float64
	neckline float64
	height   float64
	headPos  int   // candidate position of the defining extreme
	idx      []int // bar index of each candidate pivot
}

// Validate runs the candidate through the mandatory gates and, if they all
// hold, scores the optional confirmations. It returns nil when the
// candidate is discarded, either by a gate or by the acceptance threshold.
// avgSpacing is the average inter-pivot bar distance of the full pivot
// list, used to size the contextual lookback.
func (v *Validator) Validate(cand Candidate, bars []models.Bar, avgSpacing float64) *Record {
	sig := cand.Signature
	if len(cand.Pivots) != sig.Len() {
		return nil
	}

	geo, ok := v.measure(cand, bars)
	if !ok {
		return nil
	}

	// Mandatory gates, evaluated in order with short-circuit discard.
	if !v.gateExtremeHead(cand, geo) {
		return nil
	}
	if !v.gateContextualExtreme(cand, bars, geo, avgSpacing) {
		return nil
	}
	if !v.gateSymmetry(cand, geo) {
		return nil
	}
	if !v.gateNecklineFlat(cand, geo) {
		return nil
	}
	if !v.gateTrendBase(cand, geo) {
		return nil
	}
	if !v.gateNecklineRetest(cand, bars, geo) {
		return nil
	}

	report := Report{
		ExtremeHead:       true,
		ContextualExtreme: true,
		Symmetry:          true,
		NecklineFlat:      true,
		TrendBase:         true,
		NecklineRetest:    true,
	}

	breakout := v.confirmOptional(cand, bars, geo, &report)

	report.ScoreTotal = report.score(v.params.Weights)
	if report.ScoreTotal < v.params.MinScore {
		return nil
	}

	rec := &Record{
		Ticker:     cand.Ticker,
		Timeframe:  cand.Timeframe,
		Strategy:   cand.Strategy,
		Family:     sig.Family,
		Direction:  sig.Direction,
		Pivots:     cand.Pivots,
		Head:       cand.Pivots[geo.headPos].Timestamp,
		Report:     report,
		ScoreTotal: report.ScoreTotal,
	}
	if breakout >= 0 {
		b := bars[breakout]
		rec.Breakout = &b
	}
	return rec
}

// measure resolves bar indices and the shared structural dimensions.
func (v *Validator) measure(cand Candidate, bars []models.Bar) (geometry, bool) {
	geo := geometry{sign: 1}
	if cand.Signature.Direction == models.Bullish {
		geo.sign = -1
	}

	geo.idx = make([]int, len(cand.Pivots))
	for i, p := range cand.Pivots {
		bi := models.BarIndex(bars, p.Timestamp)
		if bi < 0 {
			return geo, false
		}
		geo.idx[i] = bi
	}

	necks := cand.Signature.Necklines()
	var neckSum float64
	for _, pos := range necks {
		neckSum += cand.Pivots[pos].Price
	}
	geo.neckline = neckSum / float64(len(necks))
	if geo.neckline <= 0 {
		return geo, false
	}

	extremes := cand.Signature.Extremes()
	switch cand.Signature.Family {
	case models.FamilyHNS:
		geo.headPos = 3
		geo.height = geo.sign * (cand.Pivots[3].Price - geo.neckline)
	default:
		var extSum float64
		geo.headPos = extremes[0]
		for _, pos := range extremes {
			extSum += cand.Pivots[pos].Price
			if geo.sign*cand.Pivots[pos].Price > geo.sign*cand.Pivots[geo.headPos].Price {
				geo.headPos = pos
			}
		}
		avgExt := extSum / float64(len(extremes))
		geo.height = geo.sign * (avgExt - geo.neckline)
	}
	return geo, geo.height > 0
}

// gateExtremeHead requires the head to be strictly the most extreme of the
// defining pivots; for double/triple formations the analogous predicate is
// the depth of the pattern relative to its extremes.
func (v *Validator) gateExtremeHead(cand Candidate, geo geometry) bool {
	switch cand.Signature.Family {
	case models.FamilyHNS:
		head := geo.sign * cand.Pivots[3].Price
		return head > geo.sign*cand.Pivots[1].Price && head > geo.sign*cand.Pivots[5].Price
	default:
		extreme := math.Abs(cand.Pivots[geo.headPos].Price)
		if extreme == 0 {
			return false
		}
		return geo.height/extreme*100 >= v.params.MinHeightPct
	}
}

// gateContextualExtreme rejects patterns whose head is only extreme among
// the chosen pivots: the head must dominate a symmetric bar window sized
// from the average inter-pivot spacing.
func (v *Validator) gateContextualExtreme(cand Candidate, bars []models.Bar, geo geometry, avgSpacing float64) bool {
	lookback := int(v.params.ContextMult * avgSpacing)
	if lookback < 1 {
		lookback = 1
	}
	hi := geo.idx[geo.headPos]
	lo, up := hi-lookback, hi+lookback
	if lo < 0 {
		lo = 0
	}
	if up > len(bars)-1 {
		up = len(bars) - 1
	}
	head := cand.Pivots[geo.headPos].Price
	for i := lo; i <= up; i++ {
		if geo.sign > 0 && bars[i].High > head {
			return false
		}
		if geo.sign < 0 && bars[i].Low < head {
			return false
		}
	}
	return true
}

// gateSymmetry bounds the shoulder-height mismatch for HNS; for double and
// triple formations it bounds the spread between the equal extremes.
func (v *Validator) gateSymmetry(cand Candidate, geo geometry) bool {
	switch cand.Signature.Family {
	case models.FamilyHNS:
		ls := geo.sign * (cand.Pivots[1].Price - geo.neckline)
		rs := geo.sign * (cand.Pivots[5].Price - geo.neckline)
		return math.Abs(ls-rs) <= v.params.SymmetryTol*geo.height
	default:
		extremes := cand.Signature.Extremes()
		lo, hi := cand.Pivots[extremes[0]].Price, cand.Pivots[extremes[0]].Price
		for _, pos := range extremes[1:] {
			p := cand.Pivots[pos].Price
			if p < lo {
				lo = p
			}
			if p > hi {
				hi = p
			}
		}
		return hi-lo <= v.params.EqualTol*geo.height
	}
}

// gateNecklineFlat requires a near-horizontal neckline. A single-pivot
// neckline (double top/bottom) is flat by construction.
func (v *Validator) gateNecklineFlat(cand Candidate, geo geometry) bool {
	necks := cand.Signature.Necklines()
	if len(necks) < 2 {
		return true
	}
	spread := math.Abs(cand.Pivots[necks[0]].Price - cand.Pivots[necks[1]].Price)
	ref := geo.height
	if cand.Signature.Family == models.FamilyHNS {
		ls := geo.sign * (cand.Pivots[1].Price - geo.neckline)
		rs := geo.sign * (cand.Pivots[5].Price - geo.neckline)
		ref = (ls + rs) / 2
	}
	if ref <= 0 {
		return false
	}
	return spread <= v.params.FlatnessTol*ref
}

// gateTrendBase requires the pivot preceding the first extreme to sit on
// the correct side of the neckline, within tolerance, so the pattern grows
// out of a prior directional move.
func (v *Validator) gateTrendBase(cand Candidate, geo geometry) bool {
	base := cand.Pivots[posBase].Price
	return geo.sign*(base-geo.neckline) <= v.params.BaseTol*geo.height
}

// gateNecklineRetest requires the trailing pivot to land inside a
// volatility-adaptive band around the projected neckline. The band is the
// ATR at the retest scaled by a multiple, floored at a minimum percentage
// of the neckline price.
func (v *Validator) gateNecklineRetest(cand Candidate, bars []models.Bar, geo geometry) bool {
	retestPos := cand.Signature.posRetest()
	retest := cand.Pivots[retestPos].Price

	tol := v.params.RetestFloorPct / 100 * geo.neckline
	if atr, ok := v.engine.ATRAt(bars, geo.idx[retestPos]); ok {
		if adaptive := v.params.RetestATRMult * atr; adaptive > tol {
			tol = adaptive
		}
	}
	return math.Abs(retest-geo.neckline) <= tol
}

// confirmOptional evaluates every optional confirmation into the report and
// returns the breakout bar index, or -1 when none was located.
func (v *Validator) confirmOptional(cand Candidate, bars []models.Bar, geo geometry, report *Report) int {
	sig := cand.Signature
	dir := sig.Direction
	extremes := sig.Extremes()

	// The two defining extremes for divergence checks: first extreme vs
	// the head for HNS, first vs last extreme otherwise.
	firstPos := extremes[0]
	secondPos := geo.headPos
	if sig.Family != models.FamilyHNS {
		secondPos = extremes[len(extremes)-1]
	}
	i1, i2 := geo.idx[firstPos], geo.idx[secondPos]

	report.RSIDivergence, report.RSIDivergenceStrong = v.engine.RSIDivergence(bars, i1, i2, dir)
	report.MACDHistDivergence = v.engine.MACDHistDivergence(bars, i1, i2, dir)
	report.StochDivergence = v.engine.StochDivergence(bars, i1, i2, dir)
	report.OBVDivergence = v.engine.OBVDivergence(bars, i1, i2, dir)

	retestIdx := geo.idx[sig.posRetest()]
	report.MACDCross = v.engine.MACDSignalCross(bars, retestIdx, v.params.CrossWindow, dir)
	report.StochCross = v.engine.StochCross(bars, retestIdx, v.params.CrossWindow, dir)

	lastExtPos := extremes[len(extremes)-1]
	report.VolumeProfile = v.engine.VolumeExceeds(bars,
		geo.idx[geo.headPos], geo.idx[lastExtPos], v.params.VolHalfWindow, v.params.VolRatio)

	if sig.Family == models.FamilyHNS {
		ls := geo.sign * (cand.Pivots[1].Price - geo.neckline)
		rs := geo.sign * (cand.Pivots[5].Price - geo.neckline)
		shoulder := math.Max(ls, rs)
		report.HeadProminence = shoulder > 0 && geo.height >= v.params.HeadRatio*shoulder
	}
	report.WeakerSecond = geo.sign*cand.Pivots[lastExtPos].Price < geo.sign*cand.Pivots[firstPos].Price

	breakoutIdx := -1
	if bi, found := FindBreakout(bars, geo.neckline, cand.Pivots[lastExtPos].Timestamp, dir, v.params.MaxLookahead); found {
		breakoutIdx = bi
		report.BreakoutVolume = breakoutVolumeExceeds(bars, bi,
			geo.idx[firstPos], geo.idx[lastExtPos], v.params.BreakoutVolMult)
	}
	return breakoutIdx
}
