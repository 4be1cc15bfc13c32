package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletledger/internal/categorize"
	"walletledger/internal/notify"
	"walletledger/internal/pipeline"
	"walletledger/internal/report"
	"walletledger/internal/scheduler"
	"walletledger/internal/storage"
	"walletledger/internal/storage/filestore"
	"walletledger/internal/stream"
	"walletledger/internal/synthetic"
	"walletledger/internal/wallet"
)

type sent struct {
	handle  notify.MessageHandle
	text    string
	options []notify.Option
}

type chatFake struct {
	mu     sync.Mutex
	nextID int64
	out    chan sent
	edits  map[int64]string
}

func newChatFake() *chatFake {
	return &chatFake{out: make(chan sent, 16), edits: map[int64]string{}}
}

func (c *chatFake) Send(_ context.Context, target, text string, options []notify.Option) (notify.MessageHandle, error) {
	c.mu.Lock()
	c.nextID++
	h := notify.MessageHandle{Target: target, MessageID: c.nextID}
	c.mu.Unlock()
	c.out <- sent{handle: h, text: text, options: options}
	return h, nil
}

func (c *chatFake) Edit(_ context.Context, h notify.MessageHandle, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edits[h.MessageID] = text
	return nil
}

type fixture struct {
	svc     *Service
	chat    *chatFake
	backend storage.Backend
	sup     *scheduler.Supervisor
	events  chan []byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()

	backend, err := filestore.Open(t.TempDir())
	require.NoError(t, err)

	chat := newChatFake()
	catalog := categorize.NewCatalog(nil)
	ids := pipeline.NewIDGenerator(nil)
	pipe := pipeline.New(pipeline.Options{Catalog: catalog, Notifier: chat, Pending: backend.Pending, Logger: logger})

	events := make(chan []byte, 4)
	watchFn := func(ctx context.Context, w scheduler.Watch) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case payload := <-events:
				if err := pipe.Ingest(ctx, ids, w.Alias, w.Target, payload); err != nil {
					return err
				}
			}
		}
	}

	ticker, err := scheduler.NewTicker(scheduler.TickerOptions{Name: "generator", Interval: time.Hour}, logger)
	require.NoError(t, err)
	sup := scheduler.NewSupervisor(context.Background(), watchFn, scheduler.SupervisorOptions{Generator: ticker}, logger)

	registry := wallet.NewRegistry(backend.Wallets, wallet.Options{Reserved: "_"}, logger)
	gen, err := synthetic.New(registry, pipe, ids, synthetic.Options{IncomingProbability: 0.2, MinAmount: 0.1, MaxAmount: 10}, logger)
	require.NoError(t, err)

	handler := categorize.NewHandler(categorize.HandlerDeps{
		Catalog:  catalog,
		Ledger:   backend.Ledger,
		Pending:  backend.Pending,
		Notifier: chat,
		Logger:   logger,
	})

	svc, err := New(Deps{
		Registry:   registry,
		Ledger:     backend.Ledger,
		Pending:    backend.Pending,
		Supervisor: sup,
		Selections: handler,
		Catalog:    catalog,
		Generator:  gen,
		Logger:     logger,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Shutdown)

	return &fixture{svc: svc, chat: chat, backend: backend, sup: sup, events: events}
}

func (f *fixture) nextMessage(t *testing.T) sent {
	t.Helper()
	select {
	case m := <-f.chat.out:
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("no categorization request was sent")
		return sent{}
	}
}

func TestOutgoingTransactionCategorizedAsFood(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Subscribe(ctx, "main", "ADDR1", "100")
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, f.sup.Running())
	assert.True(t, f.sup.GeneratorRunning())

	f.events <- []byte(`{"amount": -5.0}`)
	msg := f.nextMessage(t)
	assert.Equal(t, "100", msg.handle.Target)
	assert.Contains(t, msg.text, "📤")
	assert.Contains(t, msg.text, "Amount: 5")

	var foodToken string
	for _, opt := range msg.options {
		tok, err := categorize.Decode(opt.Token)
		require.NoError(t, err)
		if tok.Purpose == "food" {
			foodToken = opt.Token
		}
	}
	require.NotEmpty(t, foodToken)

	record, err := f.svc.Select(ctx, notify.Selection{Handle: msg.handle, Text: msg.text, Token: foodToken})
	require.NoError(t, err)
	assert.Equal(t, storage.Outgoing, record.Type)
	assert.True(t, record.Amount.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, "food", record.Purpose)
	assert.Equal(t, "main", record.WalletAlias)

	records, err := f.svc.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	f.chat.mu.Lock()
	assert.Contains(t, f.chat.edits[msg.handle.MessageID], "✅ Categorized as: food 🍔")
	f.chat.mu.Unlock()

	summary, err := f.svc.Summary(ctx, "main")
	require.NoError(t, err)
	assert.True(t, summary.Net.Equal(decimal.NewFromInt(-5)))

	breakdown, err := f.svc.Categories(ctx, "")
	require.NoError(t, err)
	require.Len(t, breakdown.Shares, 1)
	assert.True(t, breakdown.Shares[0].Percentage.Equal(decimal.NewFromInt(100)))
}

func TestUnsubscribingLastWalletStopsGenerator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Subscribe(ctx, "main", "ADDR1", "100")
	require.NoError(t, err)
	_, err = f.svc.Subscribe(ctx, "spare", "ADDR2", "100")
	require.NoError(t, err)

	_, err = f.svc.Unsubscribe(ctx, "main")
	require.NoError(t, err)
	assert.True(t, f.sup.GeneratorRunning())

	_, err = f.svc.Unsubscribe(ctx, "spare")
	require.NoError(t, err)
	assert.False(t, f.sup.GeneratorRunning())
	assert.Empty(t, f.sup.Running())

	wallets, err := f.svc.Wallets(ctx)
	require.NoError(t, err)
	assert.Empty(t, wallets)
}

func TestSubscribeConflictKeepsMonitor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Subscribe(ctx, "main", "ADDR1", "100")
	require.NoError(t, err)
	_, err = f.svc.Subscribe(ctx, "main", "ADDR2", "100")
	require.ErrorIs(t, err, wallet.ErrAliasConflict)

	wallets, err := f.svc.Wallets(ctx)
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, "ADDR1", wallets[0].Address)

	_, err = f.svc.Unsubscribe(ctx, "ghost")
	require.ErrorIs(t, err, wallet.ErrNotFound)
}

func TestResumeStartsPersistedWallets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.backend.Wallets.SaveWallets(ctx, map[string]string{"a": "A1", "b": "B1"}))

	n, err := f.svc.Resume(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "b"}, f.sup.Running())
}

func TestReportsOnEmptyLedger(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Summary(context.Background(), "")
	require.ErrorIs(t, err, report.ErrNoRecords)
}

func TestPurgePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, f.backend.Pending.PutPending(ctx, storage.PendingTransaction{TransactionID: "old", Type: storage.Outgoing, Amount: decimal.NewFromInt(1), CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}))

	require.NoError(t, f.svc.PurgePending(ctx, now))
	_, found, err := f.backend.Pending.TakePending(ctx, "old", now.Add(-2*time.Hour))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStableSession(t *testing.T) {
	stable := StableSession(time.Minute)
	assert.True(t, stable(&stream.DisconnectError{Uptime: 2 * time.Minute, Err: errors.New("eof")}))
	assert.False(t, stable(&stream.DisconnectError{Uptime: time.Second, Err: errors.New("eof")}))
	assert.False(t, stable(errors.New("dial failed")))
}
