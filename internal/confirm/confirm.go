// Package confirm computes indicator-based boolean confirmations between
// two pivot positions in a bar series. The indicator primitives come from
// the external talib library; any value missing at a required index makes
// the confirmation false rather than an error, so scoring stays total.
package confirm

import (
	"math"

	talib "github.com/markcheno/go-talib"

	"reversal-scanner/internal/models"
)

// Params holds the indicator periods used by the engine.
type Params struct {
	RSILength   int `mapstructure:"rsi_length"`
	MACDFast    int `mapstructure:"macd_fast"`
	MACDSlow    int `mapstructure:"macd_slow"`
	MACDSignal  int `mapstructure:"macd_signal"`
	StochK      int `mapstructure:"stoch_k"`
	StochD      int `mapstructure:"stoch_d"`
	StochSmooth int `mapstructure:"stoch_smooth"`
	ATRLength   int `mapstructure:"atr_length"`

	// StrongDelta is the minimum RSI gap between the two extremes for a
	// divergence to count as the strong tier.
	StrongDelta float64 `mapstructure:"strong_delta"`
	// Overbought and Oversold gate the stochastic divergence.
	Overbought float64 `mapstructure:"overbought"`
	Oversold   float64 `mapstructure:"oversold"`
}

// DefaultParams returns the conventional indicator periods.
func DefaultParams() Params {
	return Params{
		RSILength:   14,
		MACDFast:    12,
		MACDSlow:    26,
		MACDSignal:  9,
		StochK:      14,
		StochD:      3,
		StochSmooth: 3,
		ATRLength:   14,
		StrongDelta: 5.0,
		Overbought:  80,
		Oversold:    20,
	}
}

// Engine evaluates indicator confirmations for pattern candidates.
type Engine struct {
	params Params
}

// NewEngine creates a confirmation engine.
func NewEngine(params Params) *Engine {
	return &Engine{params: params}
}

// priceTol absorbs float noise when comparing the two price extremes.
const priceTol = 0.001

// RSIDivergence reports whether momentum diverges from price between the
// extremes at i1 and i2 (i1 < i2). For a bearish pattern the RSI is computed
// on the high series and diverges when price makes an equal-or-higher extreme
// while RSI makes a lower one; bullish is the mirror on lows. The second
// return value marks the strong tier of the divergence.
func (e *Engine) RSIDivergence(bars []models.Bar, i1, i2 int, dir models.Direction) (bool, bool) {
	if !validPair(bars, i1, i2) {
		return false, false
	}
	var series []float64
	if dir == models.Bearish {
		series = models.Highs(bars)
	} else {
		series = models.Lows(bars)
	}
	rsi := talib.Rsi(series, e.params.RSILength)
	if !usable(rsi, i1, e.params.RSILength) || !usable(rsi, i2, e.params.RSILength) {
		return false, false
	}

	if !priceExtended(series[i1], series[i2], dir) {
		return false, false
	}
	delta := rsi[i1] - rsi[i2]
	if dir == models.Bullish {
		delta = rsi[i2] - rsi[i1]
	}
	if delta <= 0 {
		return false, false
	}
	return true, delta >= e.params.StrongDelta
}

// MACDHistDivergence reports a divergence between the MACD histogram and
// price across the two extremes.
func (e *Engine) MACDHistDivergence(bars []models.Bar, i1, i2 int, dir models.Direction) bool {
	if !validPair(bars, i1, i2) {
		return false
	}
	closes := models.Closes(bars)
	_, _, hist := talib.Macd(closes, e.params.MACDFast, e.params.MACDSlow, e.params.MACDSignal)
	warm := e.params.MACDSlow + e.params.MACDSignal
	if !usable(hist, i1, warm) || !usable(hist, i2, warm) {
		return false
	}
	extremes := models.Highs(bars)
	if dir == models.Bullish {
		extremes = models.Lows(bars)
	}
	if !priceExtended(extremes[i1], extremes[i2], dir) {
		return false
	}
	if dir == models.Bearish {
		return hist[i2] < hist[i1]
	}
	return hist[i2] > hist[i1]
}

// MACDSignalCross reports whether the MACD line crossed its signal line in
// the pattern-implied direction within the window of bars ending at `at`.
func (e *Engine) MACDSignalCross(bars []models.Bar, at, window int, dir models.Direction) bool {
	if at <= 0 || at >= len(bars) {
		return false
	}
	closes := models.Closes(bars)
	macd, signal, _ := talib.Macd(closes, e.params.MACDFast, e.params.MACDSlow, e.params.MACDSignal)
	warm := e.params.MACDSlow + e.params.MACDSignal
	return crossed(macd, signal, at, window, warm, dir)
}

// StochDivergence reports an overbought/oversold-gated divergence between
// the stochastic %K and price across the two extremes.
func (e *Engine) StochDivergence(bars []models.Bar, i1, i2 int, dir models.Direction) bool {
	if !validPair(bars, i1, i2) {
		return false
	}
	k, _ := e.stoch(bars)
	warm := e.params.StochK + e.params.StochSmooth + e.params.StochD
	if !usable(k, i1, warm) || !usable(k, i2, warm) {
		return false
	}
	// The oscillator must actually be stretched at one of the extremes.
	if dir == models.Bearish {
		if k[i1] < e.params.Overbought && k[i2] < e.params.Overbought {
			return false
		}
	} else {
		if k[i1] > e.params.Oversold && k[i2] > e.params.Oversold {
			return false
		}
	}
	extremes := models.Highs(bars)
	if dir == models.Bullish {
		extremes = models.Lows(bars)
	}
	if !priceExtended(extremes[i1], extremes[i2], dir) {
		return false
	}
	if dir == models.Bearish {
		return k[i2] < k[i1]
	}
	return k[i2] > k[i1]
}

// StochCross reports whether %K crossed %D in the pattern-implied direction
// within the window of bars ending at `at`.
func (e *Engine) StochCross(bars []models.Bar, at, window int, dir models.Direction) bool {
	if at <= 0 || at >= len(bars) {
		return false
	}
	k, d := e.stoch(bars)
	warm := e.params.StochK + e.params.StochSmooth + e.params.StochD
	return crossed(k, d, at, window, warm, dir)
}

// OBVDivergence reports whether on-balance volume fails to confirm the
// second price extreme.
func (e *Engine) OBVDivergence(bars []models.Bar, i1, i2 int, dir models.Direction) bool {
	if !validPair(bars, i1, i2) {
		return false
	}
	obv := talib.Obv(models.Closes(bars), models.Volumes(bars))
	if !usable(obv, i1, 1) || !usable(obv, i2, 1) {
		return false
	}
	extremes := models.Highs(bars)
	if dir == models.Bullish {
		extremes = models.Lows(bars)
	}
	if !priceExtended(extremes[i1], extremes[i2], dir) {
		return false
	}
	if dir == models.Bearish {
		return obv[i2] < obv[i1]
	}
	return obv[i2] > obv[i1]
}

// ATRAt returns the average true range at the given index, or false when it
// cannot be computed there.
func (e *Engine) ATRAt(bars []models.Bar, at int) (float64, bool) {
	if at < 0 || at >= len(bars) || len(bars) <= e.params.ATRLength {
		return 0, false
	}
	atr := talib.Atr(models.Highs(bars), models.Lows(bars), models.Closes(bars), e.params.ATRLength)
	if !usable(atr, at, e.params.ATRLength) || atr[at] <= 0 {
		return 0, false
	}
	return atr[at], true
}

// VolumeExceeds reports whether the mean volume in a window centered at i1
// exceeds the one centered at i2 by the given ratio.
func (e *Engine) VolumeExceeds(bars []models.Bar, i1, i2, halfWindow int, ratio float64) bool {
	v1, ok1 := meanVolume(bars, i1, halfWindow)
	v2, ok2 := meanVolume(bars, i2, halfWindow)
	if !ok1 || !ok2 || v2 <= 0 {
		return false
	}
	return v1 >= v2*ratio
}

func (e *Engine) stoch(bars []models.Bar) ([]float64, []float64) {
	return talib.Stoch(
		models.Highs(bars), models.Lows(bars), models.Closes(bars),
		e.params.StochK,
		e.params.StochSmooth, talib.SMA,
		e.params.StochD, talib.SMA,
	)
}

// crossed scans the window (at-window, at] for a fast/slow line cross in
// the implied direction.
func crossed(fast, slow []float64, at, window, warm int, dir models.Direction) bool {
	if len(fast) != len(slow) || at >= len(fast) {
		return false
	}
	start := at - window + 1
	if start < 1 {
		start = 1
	}
	for i := start; i <= at; i++ {
		if !usable(fast, i-1, warm) || !usable(slow, i-1, warm) ||
			!usable(fast, i, warm) || !usable(slow, i, warm) {
			continue
		}
		if dir == models.Bearish {
			if fast[i-1] >= slow[i-1] && fast[i] < slow[i] {
				return true
			}
		} else {
			if fast[i-1] <= slow[i-1] && fast[i] > slow[i] {
				return true
			}
		}
	}
	return false
}

// priceExtended reports whether the second extreme matches or extends the
// first in the pattern direction.
func priceExtended(p1, p2 float64, dir models.Direction) bool {
	if dir == models.Bearish {
		return p2 >= p1*(1-priceTol)
	}
	return p2 <= p1*(1+priceTol)
}

// usable guards against warmup zeros and non-finite values from talib.
func usable(values []float64, i, warm int) bool {
	if i < warm || i >= len(values) {
		return false
	}
	v := values[i]
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validPair(bars []models.Bar, i1, i2 int) bool {
	return i1 >= 0 && i2 > i1 && i2 < len(bars)
}

func meanVolume(bars []models.Bar, center, halfWindow int) (float64, bool) {
	if center < 0 || center >= len(bars) {
		return 0, false
	}
	lo := center - halfWindow
	hi := center + halfWindow
	if lo < 0 {
		lo = 0
	}
	if hi > len(bars)-1 {
		hi = len(bars) - 1
	}
	var total float64
	for i := lo; i <= hi; i++ {
		total += float64(bars[i].Volume)
	}
	return total / float64(hi-lo+1), true
}
