package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletledger/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteWalletsReplaceWholeMapping(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveWallets(ctx, map[string]string{"main": "ADDR1", "alt": "ADDR2"}))
	require.NoError(t, store.SaveWallets(ctx, map[string]string{"main": "ADDR1"}))

	wallets, err := store.LoadWallets(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"main": "ADDR1"}, wallets)

	require.NoError(t, store.SaveWallets(ctx, map[string]string{}))
	wallets, err = store.LoadWallets(ctx)
	require.NoError(t, err)
	assert.Empty(t, wallets)
}

func TestSQLiteLedgerInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ts := time.Date(2026, 10, 18, 8, 0, 0, 123456789, time.UTC)

	for i, purpose := range []string{"food", "transport", "food"} {
		require.NoError(t, store.AppendRecord(ctx, storage.LedgerRecord{
			Timestamp:     ts.Add(time.Duration(i) * time.Second),
			Type:          storage.Outgoing,
			Amount:        decimal.NewFromFloat(1.5).Add(decimal.NewFromInt(int64(i))),
			Purpose:       purpose,
			WalletAlias:   "main",
			TransactionID: "tx_1",
		}))
	}

	records, err := store.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "transport", records[1].Purpose)
	assert.True(t, records[2].Amount.Equal(decimal.RequireFromString("3.5")))
	assert.Equal(t, ts, records[0].Timestamp)
}

func TestSQLitePendingLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.PutPending(ctx, storage.PendingTransaction{
		TransactionID: "mock_1-a", WalletAlias: "main", Type: storage.Outgoing,
		Amount: decimal.NewFromInt(5), Target: "99", MessageID: 3,
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))
	require.NoError(t, store.PutPending(ctx, storage.PendingTransaction{
		TransactionID: "gone", WalletAlias: "main", Type: storage.Incoming,
		Amount: decimal.NewFromInt(1), CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Second),
	}))

	removed, err := store.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	p, ok, err := store.TakePending(ctx, "mock_1-a", now)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, storage.Outgoing, p.Type)
	assert.Equal(t, int64(3), p.MessageID)

	_, ok, err = store.TakePending(ctx, "mock_1-a", now)
	require.NoError(t, err)
	assert.False(t, ok)
}
