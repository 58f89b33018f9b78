// Package store provides data persistence implementations.
package store

import (
	"context"
	"time"

	"reversal-scanner/internal/models"
	"reversal-scanner/internal/pattern"
)

// DataStore defines the persistence operations used by the scanner.
type DataStore interface {
	// Bar operations
	SaveBars(ctx context.Context, symbol, timeframe string, bars []models.Bar) error
	GetBars(ctx context.Context, symbol, timeframe string, period int) ([]models.Bar, error)
	GetBarsRange(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Bar, error)
	BarFreshness(ctx context.Context, symbol, timeframe string) (time.Time, error)

	// Pattern record operations
	SaveRecords(ctx context.Context, records []pattern.Record) error
	GetRecords(ctx context.Context, filter RecordFilter) ([]pattern.Record, error)

	Close() error
}

// RecordFilter narrows record queries. Zero values mean no constraint.
type RecordFilter struct {
	Ticker    string
	Timeframe string
	Family    string
	Direction string
	MinScore  float64
	Limit     int
}
