package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxType classifies a transaction by the sign of its amount.
type TxType string

const (
	// Incoming marks value received by the wallet.
	Incoming TxType = "incoming"
	// Outgoing marks value spent by the wallet.
	Outgoing TxType = "outgoing"
)

// ParseTxType validates a persisted type column.
func ParseTxType(v string) (TxType, bool) {
	switch TxType(v) {
	case Incoming:
		return Incoming, true
	case Outgoing:
		return Outgoing, true
	default:
		return "", false
	}
}

// Wallet is a monitored account keyed by its operator-chosen alias.
type Wallet struct {
	Alias   string
	Address string
}

// LedgerRecord is a categorized transaction. Records are append-only.
type LedgerRecord struct {
	Timestamp     time.Time
	Type          TxType
	Amount        decimal.Decimal
	Purpose       string
	WalletAlias   string
	TransactionID string
}

// PendingTransaction tracks a transaction that awaits categorization.
type PendingTransaction struct {
	TransactionID string
	WalletAlias   string
	Type          TxType
	Amount        decimal.Decimal
	Target        string
	MessageID     int64
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Expired reports whether the entry is past its deadline at now.
func (p PendingTransaction) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}
