// Package marketdata defines the contract with the external market data
// collaborator. The core never sees transient fetch failures: a provider
// either returns strictly time-ordered bars or an error that causes the
// scan unit to be skipped. Retry and backoff live behind this interface.
package marketdata

import (
	"context"
	"fmt"
	"sync"

	"reversal-scanner/internal/errors"
	"reversal-scanner/internal/models"
	"reversal-scanner/pkg/utils"
)

// BarProvider supplies OHLCV bars for one (ticker, timeframe) series.
// period is the number of most recent bars requested.
type BarProvider interface {
	GetBars(ctx context.Context, ticker, timeframe string, period int) ([]models.Bar, error)
}

// StaticProvider serves bars from memory. Used for offline runs and tests.
type StaticProvider struct {
	mu     sync.RWMutex
	series map[string][]models.Bar
}

// NewStaticProvider creates an empty static provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{series: make(map[string][]models.Bar)}
}

// Add registers a bar series for a ticker and timeframe.
func (p *StaticProvider) Add(ticker, timeframe string, bars []models.Bar) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.series[seriesKey(ticker, timeframe)] = bars
}

// GetBars returns the most recent `period` bars of the registered series.
func (p *StaticProvider) GetBars(_ context.Context, ticker, timeframe string, period int) ([]models.Bar, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	bars, ok := p.series[seriesKey(ticker, timeframe)]
	if !ok {
		return nil, errors.NewProviderError("static",
			fmt.Sprintf("no series for %s %s", ticker, timeframe), errors.ErrDataNotFound)
	}
	if period > 0 && len(bars) > period {
		bars = bars[len(bars)-period:]
	}
	out := make([]models.Bar, len(bars))
	copy(out, bars)
	return out, nil
}

func seriesKey(ticker, timeframe string) string {
	return ticker + "|" + timeframe
}

// RetryProvider decorates a provider with exponential backoff retries.
type RetryProvider struct {
	inner BarProvider
	cfg   utils.RetryConfig
}

// WithRetry wraps a provider so transient failures are retried before the
// scan unit is given up on.
func WithRetry(inner BarProvider, cfg utils.RetryConfig) *RetryProvider {
	return &RetryProvider{inner: inner, cfg: cfg}
}

// GetBars fetches bars, retrying on failure.
func (p *RetryProvider) GetBars(ctx context.Context, ticker, timeframe string, period int) ([]models.Bar, error) {
	return utils.RetryWithResult(ctx, p.cfg, func() ([]models.Bar, error) {
		return p.inner.GetBars(ctx, ticker, timeframe, period)
	})
}
