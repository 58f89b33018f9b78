package pattern

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"reversal-scanner/internal/models"
)

// Record is the accepted output of the pipeline: one scored pattern,
// immutable once created, serializable to a tabular row.
type Record struct {
	Ticker    string
	Timeframe string
	Strategy  string
	Family    models.PatternFamily
	Direction models.Direction
	Pivots    []models.Pivot
	// Head is the timestamp of the defining extreme pivot; it anchors the
	// record's uniqueness key.
	Head time.Time
	// Breakout is the bar that crossed the neckline, when one was located
	// within the look-ahead window.
	Breakout   *models.Bar
	Report     Report
	ScoreTotal float64
}

// Key is the de-duplication key: overlapping candidates that resolve to the
// same defining extreme collapse to one record.
func (r Record) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s|%d", r.Ticker, r.Timeframe, r.Family, r.Direction, r.Head.Unix())
}

// CSVHeader returns the column names of the tabular serialization.
func CSVHeader(maxPivots int) []string {
	cols := []string{"ticker", "timeframe", "strategy", "family", "direction", "score_total"}
	cols = append(cols, RuleNames()...)
	for i := 0; i < maxPivots; i++ {
		cols = append(cols, fmt.Sprintf("pivot%d_ts", i), fmt.Sprintf("pivot%d_price", i))
	}
	cols = append(cols, "breakout_ts")
	return cols
}

// Row serializes the record to one tabular row matching CSVHeader(maxPivots).
func (r Record) Row(maxPivots int) []string {
	row := []string{
		r.Ticker,
		r.Timeframe,
		r.Strategy,
		string(r.Family),
		string(r.Direction),
		strconv.FormatFloat(r.ScoreTotal, 'f', 2, 64),
	}
	for _, ok := range r.Report.Flags() {
		row = append(row, strconv.FormatBool(ok))
	}
	for i := 0; i < maxPivots; i++ {
		if i < len(r.Pivots) {
			row = append(row,
				r.Pivots[i].Timestamp.UTC().Format(time.RFC3339),
				strconv.FormatFloat(r.Pivots[i].Price, 'f', 4, 64))
		} else {
			row = append(row, "", "")
		}
	}
	if r.Breakout != nil {
		row = append(row, r.Breakout.Timestamp.UTC().Format(time.RFC3339))
	} else {
		row = append(row, "")
	}
	return row
}

// String renders a compact human-readable summary.
func (r Record) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s %s/%s score=%.2f head=%s",
		r.Ticker, r.Timeframe, r.Strategy, r.Family, r.Direction,
		r.ScoreTotal, r.Head.UTC().Format(time.RFC3339))
	if r.Breakout != nil {
		fmt.Fprintf(&b, " breakout=%s", r.Breakout.Timestamp.UTC().Format(time.RFC3339))
	}
	return b.String()
}
