package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotConfigured indicates the storage backend was not initialised.
	ErrNotConfigured = errors.New("storage: backend not configured")
	// ErrLockHeld indicates another process owns the single-writer lock.
	ErrLockHeld = errors.New("storage: writer lock held by another process")
)

// WalletStore persists the alias to address mapping as a whole document.
type WalletStore interface {
	LoadWallets(ctx context.Context) (map[string]string, error)
	SaveWallets(ctx context.Context, wallets map[string]string) error
}

// LedgerStore appends and reads categorized transactions.
type LedgerStore interface {
	AppendRecord(ctx context.Context, record LedgerRecord) error
	ReadAll(ctx context.Context) ([]LedgerRecord, error)
}

// PendingStore keeps transactions awaiting categorization until they expire.
type PendingStore interface {
	PutPending(ctx context.Context, pending PendingTransaction) error
	// TakePending removes and returns the live entry for txID.
	TakePending(ctx context.Context, txID string, now time.Time) (PendingTransaction, bool, error)
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// WriterLocker enforces a single writing process.
type WriterLocker interface {
	TryWriterLock(ctx context.Context) (unlock func(), acquired bool, err error)
}

// Backend bundles the stores served by one storage engine.
type Backend struct {
	Wallets WalletStore
	Ledger  LedgerStore
	Pending PendingStore
	Locker  WriterLocker
	Close   func()
}
