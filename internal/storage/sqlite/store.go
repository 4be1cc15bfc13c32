// Package sqlite serves the registry, pending table and ledger from one SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"walletledger/internal/storage"

	_ "modernc.org/sqlite"
)

// fixed width UTC layout keeps text comparison chronological
const timeLayout = "2006-01-02 15:04:05.000000000"

// Store implements the storage interfaces on SQLite.
type Store struct {
	db *sql.DB
}

// Open creates the database file if needed, migrates it and returns the stores.
func Open(path string) (storage.Backend, error) {
	store, err := NewStore(path)
	if err != nil {
		return storage.Backend{}, err
	}
	return storage.Backend{
		Wallets: store,
		Ledger:  store,
		Pending: store,
		Close:   func() { _ = store.Close() },
	}, nil
}

// NewStore opens and migrates the database at path.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one connection serialises writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// LoadWallets reads the whole alias mapping.
func (s *Store) LoadWallets(ctx context.Context) (map[string]string, error) {
	rows, err := sq.Select("alias", "address").From("wallets").RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("load wallets: %w", err)
	}
	defer rows.Close()

	wallets := make(map[string]string)
	for rows.Next() {
		var alias, address string
		if err := rows.Scan(&alias, &address); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		wallets[alias] = address
	}
	return wallets, rows.Err()
}

// SaveWallets replaces the mapping inside one transaction.
func (s *Store) SaveWallets(ctx context.Context, wallets map[string]string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save wallets: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = sq.Delete("wallets").RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("clear wallets: %w", err)
	}

	if len(wallets) > 0 {
		aliases := make([]string, 0, len(wallets))
		for alias := range wallets {
			aliases = append(aliases, alias)
		}
		sort.Strings(aliases)

		insert := sq.Insert("wallets").Columns("alias", "address")
		for _, alias := range aliases {
			insert = insert.Values(alias, wallets[alias])
		}
		if _, err = insert.RunWith(tx).ExecContext(ctx); err != nil {
			return fmt.Errorf("insert wallets: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit wallets: %w", err)
	}
	return nil
}

// AppendRecord inserts one ledger row.
func (s *Store) AppendRecord(ctx context.Context, rec storage.LedgerRecord) error {
	_, err := sq.Insert("ledger_records").
		Columns("recorded_at", "type", "amount", "purpose", "wallet_alias", "transaction_id").
		Values(rec.Timestamp.UTC().Format(timeLayout), string(rec.Type), rec.Amount.String(), rec.Purpose, rec.WalletAlias, rec.TransactionID).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("append ledger record: %w", err)
	}
	return nil
}

// ReadAll returns the ledger in insertion order.
func (s *Store) ReadAll(ctx context.Context) ([]storage.LedgerRecord, error) {
	rows, err := sq.Select("recorded_at", "type", "amount", "purpose", "wallet_alias", "transaction_id").
		From("ledger_records").
		OrderBy("id").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	defer rows.Close()

	records := make([]storage.LedgerRecord, 0)
	for rows.Next() {
		var recordedAt, typ, amount string
		var rec storage.LedgerRecord
		if err := rows.Scan(&recordedAt, &typ, &amount, &rec.Purpose, &rec.WalletAlias, &rec.TransactionID); err != nil {
			return nil, fmt.Errorf("scan ledger record: %w", err)
		}
		if rec.Timestamp, err = parseTime(recordedAt); err != nil {
			return nil, fmt.Errorf("parse recorded_at: %w", err)
		}
		var ok bool
		if rec.Type, ok = storage.ParseTxType(typ); !ok {
			return nil, fmt.Errorf("unknown ledger type %q", typ)
		}
		if rec.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PutPending stores or replaces a pending transaction.
func (s *Store) PutPending(ctx context.Context, p storage.PendingTransaction) error {
	_, err := sq.Insert("pending_transactions").
		Options("OR REPLACE").
		Columns("transaction_id", "wallet_alias", "type", "amount", "target", "message_id", "created_at", "expires_at").
		Values(p.TransactionID, p.WalletAlias, string(p.Type), p.Amount.String(), p.Target, p.MessageID,
			p.CreatedAt.UTC().Format(timeLayout), p.ExpiresAt.UTC().Format(timeLayout)).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("put pending: %w", err)
	}
	return nil
}

// TakePending removes the entry for txID and returns it when still live.
func (s *Store) TakePending(ctx context.Context, txID string, now time.Time) (p storage.PendingTransaction, found bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return p, false, fmt.Errorf("begin take pending: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var typ, amount, createdAt, expiresAt string
	err = sq.Select("wallet_alias", "type", "amount", "target", "message_id", "created_at", "expires_at").
		From("pending_transactions").
		Where(sq.Eq{"transaction_id": txID}).
		RunWith(tx).
		QueryRowContext(ctx).
		Scan(&p.WalletAlias, &typ, &amount, &p.Target, &p.MessageID, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		_ = tx.Rollback()
		return storage.PendingTransaction{}, false, nil
	}
	if err != nil {
		return p, false, fmt.Errorf("select pending: %w", err)
	}

	if _, err = sq.Delete("pending_transactions").Where(sq.Eq{"transaction_id": txID}).RunWith(tx).ExecContext(ctx); err != nil {
		return p, false, fmt.Errorf("delete pending: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return p, false, fmt.Errorf("commit take pending: %w", err)
	}

	p.TransactionID = txID
	p.Type, _ = storage.ParseTxType(typ)
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return storage.PendingTransaction{}, false, fmt.Errorf("parse pending amount: %w", err)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return storage.PendingTransaction{}, false, fmt.Errorf("parse created_at: %w", err)
	}
	if p.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return storage.PendingTransaction{}, false, fmt.Errorf("parse expires_at: %w", err)
	}
	if p.Expired(now) {
		return storage.PendingTransaction{}, false, nil
	}
	return p, true, nil
}

// PurgeExpired deletes entries whose deadline has passed.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := sq.Delete("pending_transactions").
		Where(sq.LtOrEq{"expires_at": now.UTC().Format(timeLayout)}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge pending: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func parseTime(v string) (time.Time, error) {
	return time.ParseInLocation(timeLayout, v, time.UTC)
}

var (
	_ storage.WalletStore  = (*Store)(nil)
	_ storage.LedgerStore  = (*Store)(nil)
	_ storage.PendingStore = (*Store)(nil)
)
