package cli

import (
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"reversal-scanner/internal/pattern"
	"reversal-scanner/internal/scan"
	"reversal-scanner/internal/store"
)

func newScanCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan stored bars for reversal patterns",
		Long: `Run the full pipeline over every configured (ticker, timeframe,
strategy) combination against the locally stored bars.

Accepted patterns are printed as CSV rows. Units that fail to fetch or
hold too little data are skipped with a log entry; the rest of the scan
continues.`,
		Example: `  scanner scan
  scanner scan --tickers AAPL,MSFT --timeframes 1d
  scanner scan --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				output.Error("Store not available")
				return fmt.Errorf("store not available")
			}

			timeout, _ := cmd.Flags().GetDuration("timeout")
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			cfg := *app.Config
			if tickers, _ := cmd.Flags().GetStringSlice("tickers"); len(tickers) > 0 {
				cfg.Scan.Tickers = tickers
			}
			if timeframes, _ := cmd.Flags().GetStringSlice("timeframes"); len(timeframes) > 0 {
				cfg.Scan.Timeframes = timeframes
			}
			if err := cfg.Validate(); err != nil {
				output.Error("Invalid scan configuration: %v", err)
				return err
			}

			scanner := scan.New(app.Store, &cfg, app.Logger)
			records, err := scanner.Run(ctx)
			if err != nil {
				output.Warning("Scan interrupted: %v", err)
			}

			if save, _ := cmd.Flags().GetBool("save"); save && len(records) > 0 {
				if err := app.Store.SaveRecords(context.Background(), records); err != nil {
					output.Error("Failed to save records: %v", err)
					return err
				}
				output.Dim("Saved %d records", len(records))
			}

			if output.IsJSON() {
				return output.JSON(records)
			}
			return writeRecordsCSV(output, records)
		},
	}

	cmd.Flags().StringSlice("tickers", nil, "override configured tickers")
	cmd.Flags().StringSlice("timeframes", nil, "override configured timeframes")
	cmd.Flags().Bool("save", false, "persist accepted records to the store")
	cmd.Flags().Duration("timeout", 5*time.Minute, "overall scan timeout")

	return cmd
}

func newRecordsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List previously saved pattern records",
		Example: `  scanner records
  scanner records --ticker AAPL --min-score 8
  scanner records --family head_and_shoulders --limit 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				output.Error("Store not available")
				return fmt.Errorf("store not available")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			filter := store.RecordFilter{}
			filter.Ticker, _ = cmd.Flags().GetString("ticker")
			filter.Timeframe, _ = cmd.Flags().GetString("timeframe")
			filter.Family, _ = cmd.Flags().GetString("family")
			filter.Direction, _ = cmd.Flags().GetString("direction")
			filter.MinScore, _ = cmd.Flags().GetFloat64("min-score")
			filter.Limit, _ = cmd.Flags().GetInt("limit")

			records, err := app.Store.GetRecords(ctx, filter)
			if err != nil {
				output.Error("Failed to query records: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(records)
			}
			if len(records) == 0 {
				output.Dim("No records found")
				return nil
			}
			for _, r := range records {
				output.Printf("%s  %s\n", output.DirectionString(string(r.Direction)), r.String())
			}
			return nil
		},
	}

	cmd.Flags().String("ticker", "", "filter by ticker")
	cmd.Flags().String("timeframe", "", "filter by timeframe")
	cmd.Flags().String("family", "", "filter by pattern family")
	cmd.Flags().String("direction", "", "filter by direction (bullish, bearish)")
	cmd.Flags().Float64("min-score", 0, "minimum score")
	cmd.Flags().Int("limit", 50, "maximum records to list")

	return cmd
}

// writeRecordsCSV renders records as CSV with enough pivot columns for the
// widest pattern in the set.
func writeRecordsCSV(output *Output, records []pattern.Record) error {
	maxPivots := 0
	for _, r := range records {
		if len(r.Pivots) > maxPivots {
			maxPivots = len(r.Pivots)
		}
	}

	w := csv.NewWriter(output.Writer())
	if err := w.Write(pattern.CSVHeader(maxPivots)); err != nil {
		return err
	}
	for _, r := range records {
		if err := w.Write(r.Row(maxPivots)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
