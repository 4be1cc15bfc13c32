package filestore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"walletledger/internal/storage"
)

type pendingDoc struct {
	WalletAlias string          `json:"wallet_alias"`
	Type        storage.TxType  `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Target      string          `json:"target"`
	MessageID   int64           `json:"message_id"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// PendingStore keeps transactions awaiting categorization in a JSON document keyed by id.
type PendingStore struct {
	path string
	mu   sync.Mutex
}

// NewPendingStore returns a store backed by path.
func NewPendingStore(path string) *PendingStore {
	return &PendingStore{path: path}
}

func (s *PendingStore) load() (map[string]pendingDoc, error) {
	docs := make(map[string]pendingDoc)
	if _, err := readJSON(s.path, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// PutPending stores or replaces the entry for its transaction id.
func (s *PendingStore) PutPending(ctx context.Context, p storage.PendingTransaction) error {
	if p.TransactionID == "" {
		return fmt.Errorf("pending transaction id is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.load()
	if err != nil {
		return err
	}
	docs[p.TransactionID] = pendingDoc{
		WalletAlias: p.WalletAlias,
		Type:        p.Type,
		Amount:      p.Amount,
		Target:      p.Target,
		MessageID:   p.MessageID,
		CreatedAt:   p.CreatedAt.UTC(),
		ExpiresAt:   p.ExpiresAt.UTC(),
	}
	return writeJSON(s.path, docs, false)
}

// TakePending removes the entry for txID and returns it when it has not expired.
func (s *PendingStore) TakePending(ctx context.Context, txID string, now time.Time) (storage.PendingTransaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.load()
	if err != nil {
		return storage.PendingTransaction{}, false, err
	}
	doc, ok := docs[txID]
	if !ok {
		return storage.PendingTransaction{}, false, nil
	}

	delete(docs, txID)
	if err := writeJSON(s.path, docs, false); err != nil {
		return storage.PendingTransaction{}, false, err
	}

	p := storage.PendingTransaction{
		TransactionID: txID,
		WalletAlias:   doc.WalletAlias,
		Type:          doc.Type,
		Amount:        doc.Amount,
		Target:        doc.Target,
		MessageID:     doc.MessageID,
		CreatedAt:     doc.CreatedAt,
		ExpiresAt:     doc.ExpiresAt,
	}
	if p.Expired(now) {
		return storage.PendingTransaction{}, false, nil
	}
	return p, true, nil
}

// PurgeExpired drops every entry past its deadline.
func (s *PendingStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.load()
	if err != nil {
		return 0, err
	}

	removed := 0
	for id, doc := range docs {
		if !doc.ExpiresAt.IsZero() && !now.Before(doc.ExpiresAt) {
			delete(docs, id)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if err := writeJSON(s.path, docs, false); err != nil {
		return 0, err
	}
	return removed, nil
}

var _ storage.PendingStore = (*PendingStore)(nil)
