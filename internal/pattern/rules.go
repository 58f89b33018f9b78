package pattern

// Report is the closed rule table for a validated candidate. The mandatory
// gates all hold in any report that exists at all; a candidate failing one
// is discarded without producing a report. The optional confirmations only
// contribute to the score.
type Report struct {
	// Mandatory gates
	ExtremeHead       bool
	ContextualExtreme bool
	Symmetry          bool
	NecklineFlat      bool
	TrendBase         bool
	NecklineRetest    bool

	// Optional confirmations
	RSIDivergence       bool
	RSIDivergenceStrong bool
	MACDHistDivergence  bool
	MACDCross           bool
	StochDivergence     bool
	StochCross          bool
	OBVDivergence       bool
	VolumeProfile       bool
	HeadProminence      bool
	WeakerSecond        bool
	BreakoutVolume      bool

	ScoreTotal float64
}

// Weights assigns a score weight to every rule in the table. The score of a
// report is the sum of the weights of the rules that passed, mandatory ones
// included.
type Weights struct {
	ExtremeHead       float64 `mapstructure:"extreme_head"`
	ContextualExtreme float64 `mapstructure:"contextual_extreme"`
	Symmetry          float64 `mapstructure:"symmetry"`
	NecklineFlat      float64 `mapstructure:"neckline_flat"`
	TrendBase         float64 `mapstructure:"trend_base"`
	NecklineRetest    float64 `mapstructure:"neckline_retest"`

	RSIDivergence       float64 `mapstructure:"rsi_divergence"`
	RSIDivergenceStrong float64 `mapstructure:"rsi_divergence_strong"`
	MACDHistDivergence  float64 `mapstructure:"macd_hist_divergence"`
	MACDCross           float64 `mapstructure:"macd_cross"`
	StochDivergence     float64 `mapstructure:"stoch_divergence"`
	StochCross          float64 `mapstructure:"stoch_cross"`
	OBVDivergence       float64 `mapstructure:"obv_divergence"`
	VolumeProfile       float64 `mapstructure:"volume_profile"`
	HeadProminence      float64 `mapstructure:"head_prominence"`
	WeakerSecond        float64 `mapstructure:"weaker_second"`
	BreakoutVolume      float64 `mapstructure:"breakout_volume"`
}

// DefaultWeights returns the default rule weights.
func DefaultWeights() Weights {
	return Weights{
		ExtremeHead:       1,
		ContextualExtreme: 1,
		Symmetry:          1,
		NecklineFlat:      1,
		TrendBase:         1,
		NecklineRetest:    1,

		RSIDivergence:       2,
		RSIDivergenceStrong: 1,
		MACDHistDivergence:  1,
		MACDCross:           1,
		StochDivergence:     1,
		StochCross:          1,
		OBVDivergence:       1,
		VolumeProfile:       1,
		HeadProminence:      1,
		WeakerSecond:        1,
		BreakoutVolume:      2,
	}
}

// MandatorySum is the score contributed by the mandatory gates alone.
func (w Weights) MandatorySum() float64 {
	return w.ExtremeHead + w.ContextualExtreme + w.Symmetry +
		w.NecklineFlat + w.TrendBase + w.NecklineRetest
}

// score sums the weights of the rules the report marks true.
func (r Report) score(w Weights) float64 {
	var total float64
	add := func(ok bool, weight float64) {
		if ok {
			total += weight
		}
	}
	add(r.ExtremeHead, w.ExtremeHead)
	add(r.ContextualExtreme, w.ContextualExtreme)
	add(r.Symmetry, w.Symmetry)
	add(r.NecklineFlat, w.NecklineFlat)
	add(r.TrendBase, w.TrendBase)
	add(r.NecklineRetest, w.NecklineRetest)

	add(r.RSIDivergence, w.RSIDivergence)
	add(r.RSIDivergenceStrong, w.RSIDivergenceStrong)
	add(r.MACDHistDivergence, w.MACDHistDivergence)
	add(r.MACDCross, w.MACDCross)
	add(r.StochDivergence, w.StochDivergence)
	add(r.StochCross, w.StochCross)
	add(r.OBVDivergence, w.OBVDivergence)
	add(r.VolumeProfile, w.VolumeProfile)
	add(r.HeadProminence, w.HeadProminence)
	add(r.WeakerSecond, w.WeakerSecond)
	add(r.BreakoutVolume, w.BreakoutVolume)
	return total
}

// RuleNames lists the rule columns in report order, for tabular output.
func RuleNames() []string {
	return []string{
		"extreme_head",
		"contextual_extreme",
		"symmetry",
		"neckline_flat",
		"trend_base",
		"neckline_retest",
		"rsi_divergence",
		"rsi_divergence_strong",
		"macd_hist_divergence",
		"macd_cross",
		"stoch_divergence",
		"stoch_cross",
		"obv_divergence",
		"volume_profile",
		"head_prominence",
		"weaker_second",
		"breakout_volume",
	}
}

// Flags lists the rule outcomes in the same order as RuleNames.
func (r Report) Flags() []bool {
	return []bool{
		r.ExtremeHead,
		r.ContextualExtreme,
		r.Symmetry,
		r.NecklineFlat,
		r.TrendBase,
		r.NecklineRetest,
		r.RSIDivergence,
		r.RSIDivergenceStrong,
		r.MACDHistDivergence,
		r.MACDCross,
		r.StochDivergence,
		r.StochCross,
		r.OBVDivergence,
		r.VolumeProfile,
		r.HeadProminence,
		r.WeakerSecond,
		r.BreakoutVolume,
	}
}
