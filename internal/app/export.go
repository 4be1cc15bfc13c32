package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	chart "github.com/wcharczuk/go-chart/v2"

	"walletledger/internal/categorize"
	"walletledger/internal/report"
	"walletledger/internal/storage"
	"walletledger/internal/storage/filestore"
)

// Export writes the ledger as CSV and/or the spending breakdown as a PNG pie chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = a.Config.Export.MaxRows
	}

	records, closeBackend, err := a.readLedger(ctx)
	if err != nil {
		return err
	}
	defer closeBackend()

	records = report.Filter(records, opts.Alias)
	if len(records) == 0 {
		a.Logger.Info().Str("alias", opts.Alias).Msg("no transactions to export")
		return nil
	}

	if opts.CSVPath != "" {
		rows := tail(records, opts.MaxRows)
		if err := writeLedgerCSV(opts.CSVPath, rows); err != nil {
			return err
		}
		a.Logger.Info().Int("rows", len(rows)).Str("path", opts.CSVPath).Msg("ledger exported")
	}

	if opts.PNGPath != "" {
		bd, err := report.Categorize(records, opts.Alias)
		if err != nil {
			return err
		}
		if len(bd.Shares) == 0 || !bd.Total.IsPositive() {
			a.Logger.Info().Msg("no outgoing value to chart")
			return nil
		}
		if err := writeBreakdownPNG(opts.PNGPath, bd, a.Config.Export.ChartWidth, a.Config.Export.ChartHeight); err != nil {
			return err
		}
		a.Logger.Info().Int("categories", len(bd.Shares)).Str("path", opts.PNGPath).Msg("category chart exported")
	}
	return nil
}

func (a *App) catalog() *categorize.Catalog {
	return categorize.NewCatalog(a.Config.Categories)
}

func writeLedgerCSV(path string, records []storage.LedgerRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(filestore.Columns); err != nil {
		return err
	}
	for _, r := range records {
		if err := writer.Write(filestore.EncodeRow(r)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeBreakdownPNG(path string, bd report.Breakdown, width, height int) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	values := make([]chart.Value, 0, len(bd.Shares))
	for _, s := range bd.Shares {
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %s (%s%%)", s.Purpose, s.Amount.StringFixed(2), s.Percentage.StringFixed(1)),
			Value: s.Amount.InexactFloat64(),
		})
	}

	pie := chart.PieChart{
		Title:  "Spending by category",
		Width:  width,
		Height: height,
		Values: values,
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return pie.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
