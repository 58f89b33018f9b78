package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "reversal-scanner/internal/errors"
	"reversal-scanner/internal/models"
	"reversal-scanner/internal/pattern"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and ensures the
// schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Bars table for historical OHLCV data
	CREATE TABLE IF NOT EXISTS bars (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timeframe, timestamp)
	);

	-- Accepted pattern records
	CREATE TABLE IF NOT EXISTS pattern_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dedup_key TEXT NOT NULL UNIQUE,
		ticker TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		strategy TEXT NOT NULL,
		family TEXT NOT NULL,
		direction TEXT NOT NULL,
		head_ts DATETIME NOT NULL,
		score_total REAL NOT NULL,
		flags TEXT NOT NULL,
		pivots TEXT NOT NULL,
		breakout TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_bars_symbol_timeframe ON bars(symbol, timeframe);
	CREATE INDEX IF NOT EXISTS idx_bars_timestamp ON bars(timestamp);
	CREATE INDEX IF NOT EXISTS idx_records_ticker ON pattern_records(ticker);
	CREATE INDEX IF NOT EXISTS idx_records_family ON pattern_records(family);
	CREATE INDEX IF NOT EXISTS idx_records_score ON pattern_records(score_total);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveBars upserts bars for one symbol and timeframe in a single
// transaction.
func (s *SQLiteStore) SaveBars(ctx context.Context, symbol, timeframe string, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (symbol, timeframe, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.ExecContext(ctx, symbol, timeframe, b.Timestamp.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			return fmt.Errorf("failed to insert bar: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetBars returns the most recent period bars for a symbol and timeframe in
// chronological order.
func (s *SQLiteStore) GetBars(ctx context.Context, symbol, timeframe string, period int) ([]models.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume FROM (
			SELECT timestamp, open, high, low, close, volume
			FROM bars
			WHERE symbol = ? AND timeframe = ?
			ORDER BY timestamp DESC
			LIMIT ?
		) ORDER BY timestamp ASC
	`, symbol, timeframe, period)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	bars, err := scanBars(rows)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, apperrors.NewProviderError("sqlite",
			fmt.Sprintf("no bars for %s %s", symbol, timeframe), apperrors.ErrDataNotFound)
	}
	return bars, nil
}

// GetBarsRange returns the bars inside [from, to] in chronological order.
func (s *SQLiteStore) GetBarsRange(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, symbol, timeframe, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// BarFreshness returns the timestamp of the most recent stored bar, or the
// zero time when none exist.
func (s *SQLiteStore) BarFreshness(ctx context.Context, symbol, timeframe string) (time.Time, error) {
	var ts sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(timestamp) FROM bars WHERE symbol = ? AND timeframe = ?
	`, symbol, timeframe).Scan(&ts)
	if err != nil && err != sql.ErrNoRows {
		return time.Time{}, fmt.Errorf("failed to get bar freshness: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return ts.Time, nil
}

func scanBars(rows *sql.Rows) ([]models.Bar, error) {
	var bars []models.Bar
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bars: %w", err)
	}
	return bars, nil
}

// SaveRecords upserts accepted pattern records. Re-saving a record with the
// same de-duplication key replaces the stored row.
func (s *SQLiteStore) SaveRecords(ctx context.Context, records []pattern.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO pattern_records
			(dedup_key, ticker, timeframe, strategy, family, direction, head_ts, score_total, flags, pivots, breakout)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		flags, err := json.Marshal(r.Report)
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		pivots, err := json.Marshal(r.Pivots)
		if err != nil {
			return fmt.Errorf("failed to marshal pivots: %w", err)
		}
		var breakout interface{}
		if r.Breakout != nil {
			raw, err := json.Marshal(r.Breakout)
			if err != nil {
				return fmt.Errorf("failed to marshal breakout: %w", err)
			}
			breakout = string(raw)
		}
		_, err = stmt.ExecContext(ctx,
			r.Key(), r.Ticker, r.Timeframe, r.Strategy, string(r.Family), string(r.Direction),
			r.Head.UTC(), r.ScoreTotal, string(flags), string(pivots), breakout)
		if err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetRecords retrieves stored pattern records matching the filter, newest
// head first.
func (s *SQLiteStore) GetRecords(ctx context.Context, filter RecordFilter) ([]pattern.Record, error) {
	query := `
		SELECT ticker, timeframe, strategy, family, direction, head_ts, score_total, flags, pivots, breakout
		FROM pattern_records WHERE 1=1`
	args := []interface{}{}

	if filter.Ticker != "" {
		query += " AND ticker = ?"
		args = append(args, filter.Ticker)
	}
	if filter.Timeframe != "" {
		query += " AND timeframe = ?"
		args = append(args, filter.Timeframe)
	}
	if filter.Family != "" {
		query += " AND family = ?"
		args = append(args, filter.Family)
	}
	if filter.Direction != "" {
		query += " AND direction = ?"
		args = append(args, filter.Direction)
	}
	if filter.MinScore > 0 {
		query += " AND score_total >= ?"
		args = append(args, filter.MinScore)
	}
	query += " ORDER BY head_ts DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []pattern.Record
	for rows.Next() {
		var (
			r        pattern.Record
			family   string
			dir      string
			flags    string
			pivots   string
			breakout sql.NullString
		)
		if err := rows.Scan(&r.Ticker, &r.Timeframe, &r.Strategy, &family, &dir,
			&r.Head, &r.ScoreTotal, &flags, &pivots, &breakout); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.Family = models.PatternFamily(family)
		r.Direction = models.Direction(dir)
		if err := json.Unmarshal([]byte(flags), &r.Report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report: %w", err)
		}
		if err := json.Unmarshal([]byte(pivots), &r.Pivots); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pivots: %w", err)
		}
		if breakout.Valid && breakout.String != "" {
			var b models.Bar
			if err := json.Unmarshal([]byte(breakout.String), &b); err != nil {
				return nil, fmt.Errorf("failed to unmarshal breakout: %w", err)
			}
			r.Breakout = &b
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}
