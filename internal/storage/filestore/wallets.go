package filestore

import (
	"context"
	"sync"

	"walletledger/internal/storage"
)

// WalletStore keeps the registry as a single {"alias": "address"} document.
type WalletStore struct {
	path string
	mu   sync.Mutex
}

// NewWalletStore returns a store backed by path.
func NewWalletStore(path string) *WalletStore {
	return &WalletStore{path: path}
}

// LoadWallets reads the whole mapping. A missing file is an empty registry.
func (s *WalletStore) LoadWallets(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wallets := make(map[string]string)
	if _, err := readJSON(s.path, &wallets); err != nil {
		return nil, err
	}
	return wallets, nil
}

// SaveWallets replaces the whole mapping.
func (s *WalletStore) SaveWallets(ctx context.Context, wallets map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if wallets == nil {
		wallets = map[string]string{}
	}
	return writeJSON(s.path, wallets, true)
}

var _ storage.WalletStore = (*WalletStore)(nil)
