// Package pattern recognizes reversal formations in a pivot sequence and
// validates and scores the candidates.
package pattern

import (
	"reversal-scanner/internal/models"
)

// Signature is the fixed-length pivot-kind tuple a pattern family expects,
// together with the structural role of each position.
type Signature struct {
	Name      string
	Family    models.PatternFamily
	Direction models.Direction
	Kinds     []models.PivotKind
}

// Len returns the number of pivots the signature spans.
func (s Signature) Len() int { return len(s.Kinds) }

// Pivot roles by position. Every built-in signature leads with a trend-base
// pivot and trails with the retest pivot; the defining extremes sit between.
const (
	posBase = 0
)

func (s Signature) posRetest() int { return s.Len() - 1 }

// Extremes returns the positions of the defining extreme pivots (shoulders
// and head for HNS; the tops or bottoms for double/triple).
func (s Signature) Extremes() []int {
	switch s.Family {
	case models.FamilyHNS:
		return []int{1, 3, 5}
	case models.FamilyDouble:
		return []int{1, 3}
	case models.FamilyTriple:
		return []int{1, 3, 5}
	}
	return nil
}

// Necklines returns the positions of the neckline pivots.
func (s Signature) Necklines() []int {
	switch s.Family {
	case models.FamilyHNS, models.FamilyTriple:
		return []int{2, 4}
	case models.FamilyDouble:
		return []int{2}
	}
	return nil
}

func alternating(first models.PivotKind, n int) []models.PivotKind {
	kinds := make([]models.PivotKind, n)
	k := first
	for i := range kinds {
		kinds[i] = k
		k = k.Opposite()
	}
	return kinds
}

// Built-in signatures. Bearish formations top out on peaks, so their tuples
// start on the valley the pattern rises from; bullish formations mirror.
var (
	HeadAndShouldersTop = Signature{
		Name:      "head_and_shoulders",
		Family:    models.FamilyHNS,
		Direction: models.Bearish,
		Kinds:     alternating(models.Valley, 7),
	}
	HeadAndShouldersBottom = Signature{
		Name:      "inverse_head_and_shoulders",
		Family:    models.FamilyHNS,
		Direction: models.Bullish,
		Kinds:     alternating(models.Peak, 7),
	}
	DoubleTop = Signature{
		Name:      "double_top",
		Family:    models.FamilyDouble,
		Direction: models.Bearish,
		Kinds:     alternating(models.Valley, 5),
	}
	DoubleBottom = Signature{
		Name:      "double_bottom",
		Family:    models.FamilyDouble,
		Direction: models.Bullish,
		Kinds:     alternating(models.Peak, 5),
	}
	TripleTop = Signature{
		Name:      "triple_top",
		Family:    models.FamilyTriple,
		Direction: models.Bearish,
		Kinds:     alternating(models.Valley, 7),
	}
	TripleBottom = Signature{
		Name:      "triple_bottom",
		Family:    models.FamilyTriple,
		Direction: models.Bullish,
		Kinds:     alternating(models.Peak, 7),
	}
)

// AllSignatures lists the built-in signatures in scan order.
func AllSignatures() []Signature {
	return []Signature{
		HeadAndShouldersTop,
		HeadAndShouldersBottom,
		DoubleTop,
		DoubleBottom,
		TripleTop,
		TripleBottom,
	}
}
