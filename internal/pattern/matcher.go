package pattern

import (
	"reversal-scanner/internal/models"
)

// Candidate is a window of pivots whose kind sequence matches a signature,
// tagged with its originating scan unit. Candidates are ephemeral: each one
// is validated independently and dropped unless it produces a record.
type Candidate struct {
	Ticker    string
	Timeframe string
	Strategy  string
	Signature Signature
	Pivots    []models.Pivot
}

// Match slides a window of the signature's length across the pivot sequence
// and returns one candidate per window whose kinds equal the signature.
// When recency > 0, only the most recent `recency` window positions are
// considered. Overlapping candidates are all proposed; duplicate acceptance
// is resolved later by the record's uniqueness key.
func Match(pivots []models.Pivot, sig Signature, recency int) [][]models.Pivot {
	l := sig.Len()
	if l == 0 || len(pivots) < l {
		return nil
	}

	first := 0
	if recency > 0 {
		if start := len(pivots) - l + 1 - recency; start > 0 {
			first = start
		}
	}

	var windows [][]models.Pivot
	for i := first; i+l <= len(pivots); i++ {
		if kindsMatch(pivots[i:i+l], sig.Kinds) {
			window := make([]models.Pivot, l)
			copy(window, pivots[i:i+l])
			windows = append(windows, window)
		}
	}
	return windows
}

func kindsMatch(pivots []models.Pivot, kinds []models.PivotKind) bool {
	for i, k := range kinds {
		if pivots[i].Kind != k {
			return false
		}
	}
	return true
}
