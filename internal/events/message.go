// Package events publishes committed ledger records to an AMQP exchange.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"walletledger/internal/storage"
)

// RecordedEvent is the wire form of a committed ledger record.
type RecordedEvent struct {
	EventID       string    `json:"event_id"`
	Timestamp     time.Time `json:"timestamp"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	Purpose       string    `json:"purpose"`
	WalletAlias   string    `json:"wallet_alias"`
	TransactionID string    `json:"transaction_id"`
}

// NewRecordedEvent wraps record with a fresh event id.
func NewRecordedEvent(record storage.LedgerRecord) RecordedEvent {
	return RecordedEvent{
		EventID:       uuid.NewString(),
		Timestamp:     record.Timestamp.UTC(),
		Type:          string(record.Type),
		Amount:        record.Amount.String(),
		Purpose:       record.Purpose,
		WalletAlias:   record.WalletAlias,
		TransactionID: record.TransactionID,
	}
}

// ToJSON serializes the event.
func (e RecordedEvent) ToJSON() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal recorded event: %w", err)
	}
	return body, nil
}
