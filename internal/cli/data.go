package cli

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reversal-scanner/internal/models"
)

func newImportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <ticker> <timeframe> <file>",
		Short: "Import OHLCV bars from a CSV file",
		Long: `Import bars from a CSV file into the local store.

The file must have columns timestamp,open,high,low,close,volume with an
optional header row. Timestamps are RFC3339 or YYYY-MM-DD. Re-importing
the same timestamps replaces the stored rows.`,
		Example: `  scanner import AAPL 1d aapl_daily.csv
  scanner import BTCUSD 4h btc_4h.csv`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				output.Error("Store not available")
				return fmt.Errorf("store not available")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			ticker := strings.ToUpper(args[0])
			timeframe := args[1]

			f, err := os.Open(args[2])
			if err != nil {
				output.Error("Failed to open file: %v", err)
				return err
			}
			defer f.Close()

			bars, err := readBarsCSV(f)
			if err != nil {
				output.Error("Failed to parse file: %v", err)
				return err
			}
			bars = models.SanitizeBars(bars)
			if len(bars) == 0 {
				output.Warning("No usable bars in file")
				return nil
			}

			if err := app.Store.SaveBars(ctx, ticker, timeframe, bars); err != nil {
				output.Error("Failed to save bars: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"ticker":    ticker,
					"timeframe": timeframe,
					"imported":  len(bars),
				})
			}
			output.Success("Imported %d bars for %s %s", len(bars), ticker, timeframe)
			return nil
		},
	}

	return cmd
}

// readBarsCSV parses timestamp,open,high,low,close,volume rows, skipping a
// header row when present.
func readBarsCSV(r io.Reader) ([]models.Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 6

	var bars []models.Bar
	for line := 1; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && !isNumeric(row[1]) {
			continue
		}

		ts, err := parseTimestamp(row[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		vals := make([]float64, 5)
		for i := 1; i < 6; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %d: %w", line, i+1, err)
			}
			vals[i-1] = v
		}
		bars = append(bars, models.Bar{
			Timestamp: ts,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    int64(vals[4]),
		})
	}
	return bars, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}
