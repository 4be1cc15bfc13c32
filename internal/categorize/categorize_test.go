package categorize

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletledger/internal/notify"
	"walletledger/internal/storage"
)

func TestTokenRoundTrip(t *testing.T) {
	cases := []Token{
		{Purpose: "food", TransactionID: "20260101120000000001-1", WalletAlias: "main"},
		{Purpose: "other", TransactionID: "mock_20260101120000000001-a", WalletAlias: "w2"},
		{Purpose: "shopping", TransactionID: "a_b_c", WalletAlias: "x"},
	}
	for _, tc := range cases {
		encoded, err := Encode(tc)
		require.NoError(t, err)
		decoded, err := Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, tc, decoded)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for _, data := range []string{"", "purpose", "purpose_food", "other_food_1_main", "purpose__1_main", "purpose_food_1_"} {
		_, err := Decode(data)
		assert.ErrorIs(t, err, ErrInvalidToken, data)
	}
}

func TestDecodeWithoutTransactionID(t *testing.T) {
	tok, err := Decode("purpose_food_main")
	require.NoError(t, err)
	assert.Equal(t, Token{Purpose: "food", WalletAlias: "main"}, tok)
}

func TestEncodeLimits(t *testing.T) {
	_, err := Encode(Token{Purpose: "food", TransactionID: strings.Repeat("9", 60), WalletAlias: "main"})
	require.ErrorIs(t, err, ErrTokenTooLong)

	_, err = Encode(Token{Purpose: "food", TransactionID: "1", WalletAlias: "my_wallet"})
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRenderAndRecover(t *testing.T) {
	text := RenderRequest(Request{TransactionID: "id-1", WalletAlias: "main", Amount: decimal.RequireFromString("-5.25"), Type: storage.Outgoing})
	assert.True(t, strings.HasPrefix(text, "📤 New Transaction Detected!"))
	assert.Contains(t, text, "💰 Amount: 5.25\n")

	amount, txType, err := Recover(text)
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.RequireFromString("5.25")))
	assert.Equal(t, storage.Outgoing, txType)

	amount, txType, err = Recover(RenderRequest(Request{TransactionID: "id-2", WalletAlias: "main", Amount: decimal.NewFromInt(3), Type: storage.Incoming}))
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, storage.Incoming, txType)
}

func TestRecoverIgnoresLabelInsideAlias(t *testing.T) {
	for _, alias := range []string{"Amount:", "💰Amount:9"} {
		text := RenderRequest(Request{TransactionID: "id-3", WalletAlias: alias, Amount: decimal.RequireFromString("-7.5"), Type: storage.Outgoing})

		amount, txType, err := Recover(text)
		require.NoError(t, err, alias)
		assert.True(t, amount.Equal(decimal.RequireFromString("7.5")), alias)
		assert.Equal(t, storage.Outgoing, txType)
	}
}

func TestRecoverFailures(t *testing.T) {
	for _, text := range []string{
		"📤 New Transaction Detected!\n\nno amount here",
		"📤 New\n💰 Amount: abc",
		"New Transaction Detected!\n💰 Amount: 1.5",
	} {
		_, _, err := Recover(text)
		assert.ErrorIs(t, err, ErrRecovery, text)
	}
}

func TestCatalogOptions(t *testing.T) {
	catalog := NewCatalog(nil)
	options, err := catalog.Options(Request{TransactionID: "id", WalletAlias: "main"})
	require.NoError(t, err)
	require.Len(t, options, 4)
	assert.Equal(t, "Food 🍔", options[0].Label)
	assert.Equal(t, "purpose_food_id_main", options[0].Token)
	assert.Equal(t, "🚗", catalog.Emoji("transport"))
	assert.Equal(t, FallbackEmoji, catalog.Emoji("rent"))
}

func TestHandleSelectionFromPending(t *testing.T) {
	h, deps := newTestHandler()
	deps.pending.items["tx_1"] = storage.PendingTransaction{TransactionID: "tx_1", WalletAlias: "main", Type: storage.Outgoing, Amount: decimal.RequireFromString("-5.0")}

	handle := notify.MessageHandle{Target: "7", MessageID: 3}
	record, err := h.HandleSelection(context.Background(), notify.Selection{Handle: handle, Text: "edited text without markers", Token: "purpose_food_tx_1_main"})
	require.NoError(t, err)

	assert.Equal(t, storage.Outgoing, record.Type)
	assert.True(t, record.Amount.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, "tx_1", record.TransactionID)
	require.Len(t, deps.ledger.records, 1)
	assert.Empty(t, deps.pending.items)
	require.Len(t, deps.notifier.edits, 1)
	assert.True(t, strings.HasSuffix(deps.notifier.edits[0], "✅ Categorized as: food 🍔"))
	require.Len(t, deps.publisher.records, 1)
}

func TestHandleSelectionFallsBackToText(t *testing.T) {
	h, deps := newTestHandler()
	text := RenderRequest(Request{TransactionID: "tx", WalletAlias: "main", Amount: decimal.RequireFromString("2.5"), Type: storage.Incoming})

	record, err := h.HandleSelection(context.Background(), notify.Selection{Handle: notify.MessageHandle{Target: "7", MessageID: 1}, Text: text, Token: "purpose_other_tx_main"})
	require.NoError(t, err)
	assert.Equal(t, storage.Incoming, record.Type)
	assert.Equal(t, "other", record.Purpose)
	require.Len(t, deps.ledger.records, 1)
}

func TestHandleSelectionWritesNothingOnFailure(t *testing.T) {
	h, deps := newTestHandler()

	_, err := h.HandleSelection(context.Background(), notify.Selection{Token: "garbage"})
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = h.HandleSelection(context.Background(), notify.Selection{Text: "hello", Token: "purpose_food_tx_main"})
	require.ErrorIs(t, err, ErrRecovery)

	assert.Empty(t, deps.ledger.records)
	assert.Empty(t, deps.notifier.edits)
}

func TestHandleSelectionEditFailureKeepsRecord(t *testing.T) {
	h, deps := newTestHandler()
	deps.notifier.err = errors.New("message is not modified")
	text := RenderRequest(Request{TransactionID: "tx", WalletAlias: "main", Amount: decimal.NewFromInt(1), Type: storage.Outgoing})

	_, err := h.HandleSelection(context.Background(), notify.Selection{Handle: notify.MessageHandle{Target: "7", MessageID: 1}, Text: text, Token: "purpose_food_tx_main"})
	require.NoError(t, err)
	assert.Len(t, deps.ledger.records, 1)
}

func TestHandleSelectionAppendFailure(t *testing.T) {
	h, deps := newTestHandler()
	deps.ledger.err = errors.New("disk full")
	text := RenderRequest(Request{TransactionID: "tx", WalletAlias: "main", Amount: decimal.NewFromInt(1), Type: storage.Outgoing})

	_, err := h.HandleSelection(context.Background(), notify.Selection{Handle: notify.MessageHandle{Target: "7", MessageID: 1}, Text: text, Token: "purpose_food_tx_main"})
	require.Error(t, err)
	assert.Empty(t, deps.notifier.edits)
}

type testDeps struct {
	ledger    *memoryLedger
	pending   *memoryPending
	notifier  *recordingNotifier
	publisher *recordingPublisher
}

func newTestHandler() (*Handler, *testDeps) {
	deps := &testDeps{
		ledger:    &memoryLedger{},
		pending:   &memoryPending{items: map[string]storage.PendingTransaction{}},
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
	}
	h := NewHandler(HandlerDeps{
		Ledger:    deps.ledger,
		Pending:   deps.pending,
		Notifier:  deps.notifier,
		Publisher: deps.publisher,
		Now:       func() time.Time { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) },
		Logger:    zerolog.Nop(),
	})
	return h, deps
}

type memoryLedger struct {
	records []storage.LedgerRecord
	err     error
}

func (m *memoryLedger) AppendRecord(_ context.Context, record storage.LedgerRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, record)
	return nil
}

func (m *memoryLedger) ReadAll(context.Context) ([]storage.LedgerRecord, error) {
	return m.records, nil
}

type memoryPending struct {
	mu    sync.Mutex
	items map[string]storage.PendingTransaction
}

func (m *memoryPending) PutPending(_ context.Context, p storage.PendingTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[p.TransactionID] = p
	return nil
}

func (m *memoryPending) TakePending(_ context.Context, txID string, now time.Time) (storage.PendingTransaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[txID]
	if !ok || p.Expired(now) {
		return storage.PendingTransaction{}, false, nil
	}
	delete(m.items, txID)
	return p, true, nil
}

func (m *memoryPending) PurgeExpired(context.Context, time.Time) (int, error) { return 0, nil }

type recordingNotifier struct {
	edits []string
	err   error
}

func (r *recordingNotifier) Send(context.Context, string, string, []notify.Option) (notify.MessageHandle, error) {
	return notify.MessageHandle{}, nil
}

func (r *recordingNotifier) Edit(_ context.Context, _ notify.MessageHandle, text string) error {
	if r.err != nil {
		return r.err
	}
	r.edits = append(r.edits, text)
	return nil
}

type recordingPublisher struct {
	records []storage.LedgerRecord
}

func (r *recordingPublisher) Publish(_ context.Context, record storage.LedgerRecord) error {
	r.records = append(r.records, record)
	return nil
}
