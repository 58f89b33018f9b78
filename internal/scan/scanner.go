// Package scan orchestrates the full pipeline across the cross-product of
// tickers, timeframes and strategy parameter sets.
package scan

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"reversal-scanner/internal/config"
	"reversal-scanner/internal/confirm"
	apperrors "reversal-scanner/internal/errors"
	"reversal-scanner/internal/logging"
	"reversal-scanner/internal/marketdata"
	"reversal-scanner/internal/models"
	"reversal-scanner/internal/pattern"
	"reversal-scanner/internal/pivot"
)

// Unit is one independent piece of work: a single (ticker, timeframe,
// strategy) combination.
type Unit struct {
	Ticker    string
	Timeframe string
	Strategy  string
}

// Scanner runs scan units through a bounded worker pool and aggregates the
// accepted records.
type Scanner struct {
	provider marketdata.BarProvider
	cfg      *config.Config
	logger   zerolog.Logger
}

// New creates a scanner. The configuration must already have passed its
// pre-flight validation.
func New(provider marketdata.BarProvider, cfg *config.Config, logger zerolog.Logger) *Scanner {
	return &Scanner{provider: provider, cfg: cfg, logger: logger}
}

// Units enumerates the scan units in deterministic order.
func (s *Scanner) Units() []Unit {
	var units []Unit
	for _, ticker := range s.cfg.Scan.Tickers {
		for _, tf := range s.cfg.Scan.Timeframes {
			for _, strat := range s.cfg.Scan.Strategies {
				units = append(units, Unit{Ticker: ticker, Timeframe: tf, Strategy: strat})
			}
		}
	}
	return units
}

// Run dispatches all units to the worker pool and returns the de-duplicated,
// deterministically ordered record set. Unit failures are logged and
// skipped; cancellation skips the remaining units and returns the context
// error alongside the records collected so far.
func (s *Scanner) Run(ctx context.Context) ([]pattern.Record, error) {
	units := s.Units()
	// Per-unit result slots keep the merge order independent of worker
	// completion order.
	results := make([][]pattern.Record, len(units))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < s.cfg.Scan.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				results[i] = s.runUnit(ctx, units[i])
			}
		}()
	}

dispatch:
	for i := range units {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	var merged []pattern.Record
	for _, recs := range results {
		merged = append(merged, recs...)
	}
	return dedupe(merged), ctx.Err()
}

// runUnit executes one unit: fetch, extract pivots, match each signature,
// validate and score. Failures and data insufficiency skip the unit.
func (s *Scanner) runUnit(ctx context.Context, u Unit) []pattern.Record {
	logger := logging.WithUnit(s.logger, u.Ticker, u.Timeframe, u.Strategy)
	strat := s.cfg.Strategies[u.Strategy]

	bars, err := s.provider.GetBars(ctx, u.Ticker, u.Timeframe, s.cfg.Scan.Period)
	if err != nil {
		uerr := apperrors.NewUnitError(u.Ticker, u.Timeframe, u.Strategy, "fetch", err)
		logger.Warn().Err(uerr).Msg("unit skipped")
		return nil
	}
	bars = models.SanitizeBars(bars)
	if len(bars) < 2*strat.PivotDepth+1 {
		logger.Debug().Int("bars", len(bars)).Msg("unit skipped: insufficient bars")
		return nil
	}

	extractor := pivot.NewExtractor(strat.PivotDepth, strat.DeviationPct)
	var pivots []models.Pivot
	if strat.ExtendLatest {
		pivots = extractor.ExtractExtended(bars)
	} else {
		pivots = extractor.Extract(bars)
	}
	if len(pivots) == 0 {
		logger.Debug().Msg("unit skipped: no pivots")
		return nil
	}
	avgSpacing := pivot.AverageSpacing(bars, pivots)

	validator := pattern.NewValidator(strat.Pattern, confirm.NewEngine(strat.Confirm))

	var records []pattern.Record
	for _, sig := range pattern.AllSignatures() {
		for _, window := range pattern.Match(pivots, sig, strat.Recency) {
			cand := pattern.Candidate{
				Ticker:    u.Ticker,
				Timeframe: u.Timeframe,
				Strategy:  u.Strategy,
				Signature: sig,
				Pivots:    window,
			}
			if rec := validator.Validate(cand, bars, avgSpacing); rec != nil {
				records = append(records, *rec)
			}
		}
	}
	if len(records) > 0 {
		logger.Info().Int("records", len(records)).Msg("unit collected")
	}
	return records
}

// dedupe collapses records sharing a uniqueness key, keeping the first
// seen, then orders the set deterministically.
func dedupe(records []pattern.Record) []pattern.Record {
	seen := make(map[string]bool, len(records))
	out := records[:0]
	for _, r := range records {
		k := r.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Key() < out[j].Key()
	})
	return out
}
