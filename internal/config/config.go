// Package config provides configuration management for the scanner.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"reversal-scanner/internal/confirm"
	"reversal-scanner/internal/errors"
	"reversal-scanner/internal/logging"
	"reversal-scanner/internal/pattern"
)

// Config holds all application configuration.
type Config struct {
	Scan       ScanConfig                `mapstructure:"scan"`
	Strategies map[string]StrategyConfig `mapstructure:"strategies"`
	Logging    logging.LogConfig         `mapstructure:"logging"`
}

// ScanConfig describes the scan batch: which series to examine and how the
// worker pool is sized.
type ScanConfig struct {
	Tickers    []string `mapstructure:"tickers"`
	Timeframes []string `mapstructure:"timeframes"`
	Strategies []string `mapstructure:"strategies"` // names into the strategy table
	Workers    int      `mapstructure:"workers"`
	Period     int      `mapstructure:"period"` // bars fetched per unit
	DBPath     string   `mapstructure:"db_path"`
}

// StrategyConfig is one named parameter set of the pipeline.
type StrategyConfig struct {
	PivotDepth   int     `mapstructure:"pivot_depth"`
	DeviationPct float64 `mapstructure:"deviation_pct"`
	Recency      int     `mapstructure:"recency"`       // 0 scans the whole pivot history
	ExtendLatest bool    `mapstructure:"extend_latest"` // fold the freshest bar into the last pivot

	Pattern pattern.Params `mapstructure:"pattern"`
	Confirm confirm.Params `mapstructure:"confirm"`
}

// validTimeframes is the closed set of timeframe identifiers the scanner
// accepts.
var validTimeframes = map[string]bool{
	"1m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "4h": true, "1d": true, "1w": true,
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "reversal-scanner")
}

// DefaultStrategy returns the default strategy parameter set.
func DefaultStrategy() StrategyConfig {
	return StrategyConfig{
		PivotDepth:   3,
		DeviationPct: 1.0,
		Recency:      0,
		ExtendLatest: true,
		Pattern:      pattern.DefaultParams(),
		Confirm:      confirm.DefaultParams(),
	}
}

// Default returns a complete default configuration.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Timeframes: []string{"1d"},
			Strategies: []string{"default"},
			Workers:    4,
			Period:     500,
			DBPath:     filepath.Join(DefaultConfigDir(), "scanner.db"),
		},
		Strategies: map[string]StrategyConfig{
			"default": DefaultStrategy(),
		},
		Logging: logging.DefaultLogConfig(),
	}
}

// Load loads configuration from the specified directory. If configDir is
// empty, the default config directory is used; a missing config file yields
// the defaults.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Decoding replaces strategy table entries wholesale, so a partial
	// [strategies.X] section arrives with its omitted fields zeroed. Fill
	// those back from the defaults.
	for name, sc := range cfg.Strategies {
		fillStrategyDefaults(&sc)
		cfg.Strategies[name] = sc
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scan.workers", 4)
	v.SetDefault("scan.period", 500)
	v.SetDefault("scan.timeframes", []string{"1d"})
	v.SetDefault("scan.strategies", []string{"default"})
	v.SetDefault("scan.db_path", filepath.Join(DefaultConfigDir(), "scanner.db"))
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
}

// fillStrategyDefaults replaces zeroed numeric knobs with their defaults. A
// zero tolerance, period or threshold is never a usable setting, so zero
// always reads as "not configured". Recency and extend_latest keep their
// decoded values: zero and false are real choices there.
func fillStrategyDefaults(sc *StrategyConfig) {
	def := DefaultStrategy()
	if sc.PivotDepth == 0 {
		sc.PivotDepth = def.PivotDepth
	}
	if sc.DeviationPct == 0 {
		sc.DeviationPct = def.DeviationPct
	}

	p, dp := &sc.Pattern, def.Pattern
	fillFloat(&p.SymmetryTol, dp.SymmetryTol)
	fillFloat(&p.FlatnessTol, dp.FlatnessTol)
	fillFloat(&p.BaseTol, dp.BaseTol)
	fillFloat(&p.RetestFloorPct, dp.RetestFloorPct)
	fillFloat(&p.RetestATRMult, dp.RetestATRMult)
	fillFloat(&p.ContextMult, dp.ContextMult)
	fillFloat(&p.HeadRatio, dp.HeadRatio)
	fillFloat(&p.EqualTol, dp.EqualTol)
	fillFloat(&p.MinHeightPct, dp.MinHeightPct)
	fillFloat(&p.VolRatio, dp.VolRatio)
	fillFloat(&p.BreakoutVolMult, dp.BreakoutVolMult)
	fillFloat(&p.MinScore, dp.MinScore)
	fillInt(&p.VolHalfWindow, dp.VolHalfWindow)
	fillInt(&p.CrossWindow, dp.CrossWindow)
	fillInt(&p.MaxLookahead, dp.MaxLookahead)
	if p.Weights == (pattern.Weights{}) {
		p.Weights = dp.Weights
	}

	c, dc := &sc.Confirm, def.Confirm
	fillInt(&c.RSILength, dc.RSILength)
	fillInt(&c.MACDFast, dc.MACDFast)
	fillInt(&c.MACDSlow, dc.MACDSlow)
	fillInt(&c.MACDSignal, dc.MACDSignal)
	fillInt(&c.StochK, dc.StochK)
	fillInt(&c.StochD, dc.StochD)
	fillInt(&c.StochSmooth, dc.StochSmooth)
	fillInt(&c.ATRLength, dc.ATRLength)
	fillFloat(&c.StrongDelta, dc.StrongDelta)
	fillFloat(&c.Overbought, dc.Overbought)
	fillFloat(&c.Oversold, dc.Oversold)
}

func fillFloat(v *float64, def float64) {
	if *v == 0 {
		*v = def
	}
}

func fillInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

// Validate performs the pre-flight configuration check. An unknown strategy
// or timeframe reference is a fatal error: it is a programming or config
// mistake, caught before any scan unit is scheduled.
func (c *Config) Validate() error {
	if c.Scan.Workers <= 0 {
		return errors.NewValidationError("scan.workers", c.Scan.Workers, "must be positive")
	}
	if c.Scan.Period <= 0 {
		return errors.NewValidationError("scan.period", c.Scan.Period, "must be positive")
	}
	if len(c.Scan.Strategies) == 0 {
		return errors.NewValidationError("scan.strategies", nil, "at least one strategy required")
	}
	for _, tf := range c.Scan.Timeframes {
		if !validTimeframes[tf] {
			return fmt.Errorf("%w: %q", errors.ErrUnknownTimeframe, tf)
		}
	}
	for _, name := range c.Scan.Strategies {
		sc, ok := c.Strategies[name]
		if !ok {
			return fmt.Errorf("%w: %q", errors.ErrUnknownStrategy, name)
		}
		if err := validateStrategy(name, sc); err != nil {
			return err
		}
	}
	return nil
}

func validateStrategy(name string, sc StrategyConfig) error {
	field := func(f string) string { return fmt.Sprintf("strategies.%s.%s", name, f) }
	if sc.PivotDepth <= 0 {
		return errors.NewValidationError(field("pivot_depth"), sc.PivotDepth, "must be positive")
	}
	if sc.DeviationPct < 0 {
		return errors.NewValidationError(field("deviation_pct"), sc.DeviationPct, "must be non-negative")
	}
	if sc.Recency < 0 {
		return errors.NewValidationError(field("recency"), sc.Recency, "must be non-negative")
	}
	if sc.Pattern.MaxLookahead <= 0 {
		return errors.NewValidationError(field("pattern.max_lookahead"), sc.Pattern.MaxLookahead, "must be positive")
	}
	if sc.Pattern.MinScore < 0 {
		return errors.NewValidationError(field("pattern.min_score"), sc.Pattern.MinScore, "must be non-negative")
	}
	return nil
}
