package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"walletledger/internal/bot"
	"walletledger/internal/report"
	"walletledger/internal/storage"
	"walletledger/internal/storage/filestore"
)

// Show prints the most recent ledger records.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	records, closeBackend, err := a.readLedger(ctx)
	if err != nil {
		return err
	}
	defer closeBackend()

	records = tail(report.Filter(records, opts.Alias), opts.Limit)
	if len(records) == 0 {
		fmt.Fprintln(a.Out, "no transactions found")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tType\tAmount\tPurpose\tWallet\tTransaction")
	for _, r := range records {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Timestamp.UTC().Format(filestore.TimestampLayout),
			r.Type,
			r.Amount.StringFixed(2),
			sanitizeInline(r.Purpose),
			sanitizeInline(r.WalletAlias),
			sanitizeInline(r.TransactionID),
		)
	}
	return writer.Flush()
}

// Report prints the summary or category breakdown for alias.
func (a *App) Report(ctx context.Context, kind, alias string) error {
	records, closeBackend, err := a.readLedger(ctx)
	if err != nil {
		return err
	}
	defer closeBackend()

	var text string
	switch kind {
	case "summary":
		s, err := report.Summarize(records, alias)
		if err != nil {
			return a.reportError(err, alias)
		}
		text = report.RenderSummary(s, alias)
	case "categories":
		bd, err := report.Categorize(records, alias)
		if err != nil {
			return a.reportError(err, alias)
		}
		text = report.RenderBreakdown(bd, alias, a.catalog().Emoji)
	default:
		return fmt.Errorf("unknown report %q", kind)
	}
	fmt.Fprintln(a.Out, text)
	return nil
}

// Wallets prints the registered wallets.
func (a *App) Wallets(ctx context.Context) error {
	backend, err := a.openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	registry, err := a.newRegistry(backend.Wallets)
	if err != nil {
		return err
	}
	wallets, err := registry.List(ctx)
	if err != nil {
		return err
	}
	if len(wallets) == 0 {
		fmt.Fprintln(a.Out, "no wallets registered")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Alias\tAddress")
	for _, w := range wallets {
		fmt.Fprintf(writer, "%s\t%s\n", w.Alias, bot.ShortAddress(w.Address))
	}
	return writer.Flush()
}

func (a *App) reportError(err error, alias string) error {
	if errors.Is(err, report.ErrNoRecords) {
		fmt.Fprintln(a.Out, report.NoRecordsText(alias))
		return nil
	}
	return err
}

func (a *App) readLedger(ctx context.Context) ([]storage.LedgerRecord, func(), error) {
	backend, err := a.openBackend(ctx)
	if err != nil {
		return nil, nil, err
	}
	records, err := backend.Ledger.ReadAll(ctx)
	if err != nil {
		backend.Close()
		return nil, nil, fmt.Errorf("read ledger: %w", err)
	}
	return records, backend.Close, nil
}

func tail(records []storage.LedgerRecord, n int) []storage.LedgerRecord {
	if n <= 0 || len(records) <= n {
		return records
	}
	return records[len(records)-n:]
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
