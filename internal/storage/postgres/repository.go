// Package postgres serves the registry, pending table and ledger from PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"walletledger/internal/storage"
)

const (
	selectWalletsSQL = `SELECT alias, address FROM wallets ORDER BY alias;`
	deleteWalletsSQL = `DELETE FROM wallets;`
	insertWalletSQL  = `INSERT INTO wallets (alias, address) VALUES ($1, $2);`

	insertLedgerRecordSQL = `INSERT INTO ledger_records (
        recorded_at,
        type,
        amount,
        purpose,
        wallet_alias,
        transaction_id
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    );`

	selectLedgerSQL = `SELECT
        recorded_at,
        type,
        amount::text,
        purpose,
        wallet_alias,
        transaction_id
    FROM ledger_records
    ORDER BY id;`

	upsertPendingSQL = `INSERT INTO pending_transactions (
        transaction_id,
        wallet_alias,
        type,
        amount,
        target,
        message_id,
        created_at,
        expires_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (transaction_id) DO UPDATE
    SET wallet_alias = EXCLUDED.wallet_alias,
        type         = EXCLUDED.type,
        amount       = EXCLUDED.amount,
        target       = EXCLUDED.target,
        message_id   = EXCLUDED.message_id,
        created_at   = EXCLUDED.created_at,
        expires_at   = EXCLUDED.expires_at;`

	takePendingSQL = `DELETE FROM pending_transactions
    WHERE transaction_id = $1
    RETURNING wallet_alias, type, amount::text, target, message_id, created_at, expires_at;`

	purgePendingSQL = `DELETE FROM pending_transactions WHERE expires_at <= $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// Store implements the storage interfaces on a pgx pool.
type Store struct {
	pool    *pgxpool.Pool
	lockKey int64
}

// NewStore wires a pgx pool into a Store. lockKey identifies the writer advisory lock.
func NewStore(pool *pgxpool.Pool, lockKey int64) *Store {
	return &Store{pool: pool, lockKey: lockKey}
}

// Open connects, migrates and returns the postgres-backed stores.
func Open(ctx context.Context, opts PoolOptions, lockKey int64) (storage.Backend, error) {
	if err := RunMigrations(opts.DSN); err != nil {
		return storage.Backend{}, err
	}
	pool, err := NewPool(ctx, opts)
	if err != nil {
		return storage.Backend{}, err
	}
	store := NewStore(pool, lockKey)
	return storage.Backend{
		Wallets: store,
		Ledger:  store,
		Pending: store,
		Locker:  store,
		Close:   store.Close,
	}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, storage.ErrNotConfigured
	}
	return s.pool, nil
}

// TryWriterLock takes the session advisory lock that marks the single writer.
func (s *Store) TryWriterLock(ctx context.Context) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}
	if s.lockKey == 0 {
		return func() {}, true, nil
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, s.lockKey).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, s.lockKey)
		conn.Release()
	}
	return unlock, true, nil
}

// LoadWallets reads the whole alias mapping.
func (s *Store) LoadWallets(ctx context.Context) (map[string]string, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, selectWalletsSQL)
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
func (s *Store) SaveWallets(ctx context.Context, wallets map[string]string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteWalletsSQL); err != nil {
			return fmt.Errorf("clear wallets: %w", err)
		}
		batch := &pgx.Batch{}
		for alias, address := range wallets {
			batch.Queue(insertWalletSQL, alias, address)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert wallets: %w", err)
		}
		return nil
	})
}

// AppendRecord inserts one ledger row.
func (s *Store) AppendRecord(ctx context.Context, rec storage.LedgerRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertLedgerRecordSQL,
		rec.Timestamp.UTC(),
		string(rec.Type),
		rec.Amount.String(),
		rec.Purpose,
		rec.WalletAlias,
		rec.TransactionID,
	)
	if execErr != nil {
		return fmt.Errorf("append ledger record: %w", execErr)
	}
	return nil
}

// ReadAll returns the ledger in insertion order.
func (s *Store) ReadAll(ctx context.Context) ([]storage.LedgerRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, selectLedgerSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("read ledger: %w", queryErr)
	}
	defer rows.Close()

	records := make([]storage.LedgerRecord, 0)
	for rows.Next() {
		rec, scanErr := scanLedgerRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// PutPending stores or replaces a pending transaction.
func (s *Store) PutPending(ctx context.Context, p storage.PendingTransaction) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertPendingSQL,
		p.TransactionID,
		p.WalletAlias,
		string(p.Type),
		p.Amount.String(),
		p.Target,
		p.MessageID,
		p.CreatedAt.UTC(),
		p.ExpiresAt.UTC(),
	)
	if execErr != nil {
		return fmt.Errorf("put pending: %w", execErr)
	}
	return nil
}

// TakePending deletes the entry for txID and returns it when still live.
func (s *Store) TakePending(ctx context.Context, txID string, now time.Time) (storage.PendingTransaction, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return storage.PendingTransaction{}, false, err
	}

	var (
		p         = storage.PendingTransaction{TransactionID: txID}
		typ       string
		amountStr string
	)
	scanErr := pool.QueryRow(ctx, takePendingSQL, txID).Scan(
		&p.WalletAlias,
		&typ,
		&amountStr,
		&p.Target,
		&p.MessageID,
		&p.CreatedAt,
		&p.ExpiresAt,
	)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return storage.PendingTransaction{}, false, nil
	}
	if scanErr != nil {
		return storage.PendingTransaction{}, false, fmt.Errorf("take pending: %w", scanErr)
	}

	p.Type, _ = storage.ParseTxType(typ)
	amount, convErr := decimal.NewFromString(amountStr)
	if convErr != nil {
		return storage.PendingTransaction{}, false, fmt.Errorf("parse pending amount: %w", convErr)
	}
	p.Amount = amount

	if p.Expired(now) {
		return storage.PendingTransaction{}, false, nil
	}
	return p, true, nil
}

// PurgeExpired deletes entries whose deadline has passed.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, execErr := pool.Exec(ctx, purgePendingSQL, now.UTC())
	if execErr != nil {
		return 0, fmt.Errorf("purge pending: %w", execErr)
	}
	return int(tag.RowsAffected()), nil
}

func scanLedgerRecord(rows pgx.Rows) (storage.LedgerRecord, error) {
	var (
		rec       storage.LedgerRecord
		typ       string
		amountStr string
	)
	if err := rows.Scan(
		&rec.Timestamp,
		&typ,
		&amountStr,
		&rec.Purpose,
		&rec.WalletAlias,
		&rec.TransactionID,
	); err != nil {
		return storage.LedgerRecord{}, err
	}

	var ok bool
	if rec.Type, ok = storage.ParseTxType(typ); !ok {
		return storage.LedgerRecord{}, fmt.Errorf("unknown ledger type %q", typ)
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return storage.LedgerRecord{}, fmt.Errorf("parse amount: %w", err)
	}
	rec.Amount = amount
	rec.Timestamp = rec.Timestamp.UTC()
	return rec, nil
}

var (
	_ storage.WalletStore  = (*Store)(nil)
	_ storage.LedgerStore  = (*Store)(nil)
	_ storage.PendingStore = (*Store)(nil)
	_ storage.WriterLocker = (*Store)(nil)
)
