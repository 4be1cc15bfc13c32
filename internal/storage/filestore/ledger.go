package filestore

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"walletledger/internal/storage"
)

// TimestampLayout is the ledger timestamp column format (UTC).
const TimestampLayout = "2006-01-02 15:04:05"

// Columns is the fixed ledger header.
var Columns = []string{"timestamp", "type", "amount", "purpose", "wallet_alias", "transaction_id"}

// Ledger is an append-only CSV ledger.
type Ledger struct {
	path string
	mu   sync.Mutex
}

// NewLedger returns a ledger backed by path.
func NewLedger(path string) *Ledger {
	return &Ledger{path: path}
}

// AppendRecord appends one row, writing the header when the file is new.
// A torn trailing row left by an interrupted write is cut first.
func (l *Ledger) AppendRecord(ctx context.Context, rec storage.LedgerRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat ledger: %w", err)
	}
	size, err := trimTornTail(f, info.Size())
	if err != nil {
		return fmt.Errorf("repair ledger tail: %w", err)
	}

	w := csv.NewWriter(f)
	if size == 0 {
		if err := w.Write(Columns); err != nil {
			return fmt.Errorf("write ledger header: %w", err)
		}
	}
	if err := w.Write(EncodeRow(rec)); err != nil {
		return fmt.Errorf("write ledger row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	return f.Sync()
}

// trimTornTail truncates f after its last newline and returns the resulting size.
func trimTornTail(f *os.File, size int64) (int64, error) {
	buf := make([]byte, 4096)
	end := size
	for end > 0 {
		n := min(int64(len(buf)), end)
		start := end - n
		if _, err := f.ReadAt(buf[:n], start); err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		if i := bytes.LastIndexByte(buf[:n], '\n'); i >= 0 {
			cut := start + int64(i) + 1
			if cut == size {
				return size, nil
			}
			return cut, f.Truncate(cut)
		}
		end = start
	}
	if size == 0 {
		return 0, nil
	}
	return 0, f.Truncate(0)
}

// ReadAll returns every record in insertion order. A torn trailing row is ignored.
func (l *Ledger) ReadAll(ctx context.Context) ([]storage.LedgerRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return []storage.LedgerRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records := make([]storage.LedgerRecord, 0)
	var deferred error
	for line := 1; ; line++ {
		row, readErr := r.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if deferred != nil {
			return nil, deferred
		}
		if readErr != nil {
			deferred = fmt.Errorf("ledger line %d: %w", line, readErr)
			continue
		}
		if line == 1 && isHeader(row) {
			continue
		}
		rec, decodeErr := DecodeRow(row)
		if decodeErr != nil {
			deferred = fmt.Errorf("ledger line %d: %w", line, decodeErr)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// EncodeRow renders a record in column order.
func EncodeRow(rec storage.LedgerRecord) []string {
	return []string{
		rec.Timestamp.UTC().Format(TimestampLayout),
		string(rec.Type),
		rec.Amount.String(),
		rec.Purpose,
		rec.WalletAlias,
		rec.TransactionID,
	}
}

// DecodeRow parses a row produced by EncodeRow.
func DecodeRow(row []string) (storage.LedgerRecord, error) {
	if len(row) != len(Columns) {
		return storage.LedgerRecord{}, fmt.Errorf("expected %d columns, got %d", len(Columns), len(row))
	}

	ts, err := parseTimestamp(row[0])
	if err != nil {
		return storage.LedgerRecord{}, err
	}
	typ, ok := storage.ParseTxType(row[1])
	if !ok {
		return storage.LedgerRecord{}, fmt.Errorf("unknown type %q", row[1])
	}
	amount, err := decimal.NewFromString(row[2])
	if err != nil {
		return storage.LedgerRecord{}, fmt.Errorf("parse amount: %w", err)
	}

	return storage.LedgerRecord{
		Timestamp:     ts,
		Type:          typ,
		Amount:        amount,
		Purpose:       row[3],
		WalletAlias:   row[4],
		TransactionID: row[5],
	}, nil
}

func parseTimestamp(v string) (time.Time, error) {
	if ts, err := time.ParseInLocation(TimestampLayout, v, time.UTC); err == nil {
		return ts, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", v, err)
	}
	return ts.UTC(), nil
}

func isHeader(row []string) bool {
	return len(row) > 0 && row[0] == Columns[0]
}

var _ storage.LedgerStore = (*Ledger)(nil)
