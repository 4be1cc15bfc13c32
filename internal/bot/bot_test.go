package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletledger/internal/categorize"
	"walletledger/internal/notify"
	"walletledger/internal/report"
	"walletledger/internal/storage"
	"walletledger/internal/wallet"
)

type fakeOps struct {
	wallets    map[string]string
	records    []storage.LedgerRecord
	selectErr  error
	selections []notify.Selection
	targets    []string
}

func (f *fakeOps) Subscribe(_ context.Context, alias, address, target string) (storage.Wallet, error) {
	if _, ok := f.wallets[alias]; ok {
		return storage.Wallet{}, fmt.Errorf("%w: %q", wallet.ErrAliasConflict, alias)
	}
	f.wallets[alias] = address
	f.targets = append(f.targets, target)
	return storage.Wallet{Alias: alias, Address: address}, nil
}

func (f *fakeOps) Unsubscribe(_ context.Context, alias string) (storage.Wallet, error) {
	address, ok := f.wallets[alias]
	if !ok {
		return storage.Wallet{}, wallet.ErrNotFound
	}
	delete(f.wallets, alias)
	return storage.Wallet{Alias: alias, Address: address}, nil
}

func (f *fakeOps) Wallets(context.Context) ([]storage.Wallet, error) {
	var out []storage.Wallet
	for a, addr := range f.wallets {
		out = append(out, storage.Wallet{Alias: a, Address: addr})
	}
	return out, nil
}

func (f *fakeOps) Summary(_ context.Context, alias string) (report.Summary, error) {
	return report.Summarize(f.records, alias)
}

func (f *fakeOps) Categories(_ context.Context, alias string) (report.Breakdown, error) {
	return report.Categorize(f.records, alias)
}

func (f *fakeOps) Select(_ context.Context, sel notify.Selection) (storage.LedgerRecord, error) {
	f.selections = append(f.selections, sel)
	return storage.LedgerRecord{}, f.selectErr
}

func (f *fakeOps) Emoji(p string) string { return categorize.NewCatalog(nil).Emoji(p) }

type chat struct {
	replies []string
	answers []string
}

func (c *chat) Send(_ context.Context, _, text string, _ []notify.Option) (notify.MessageHandle, error) {
	c.replies = append(c.replies, text)
	return notify.MessageHandle{}, nil
}

func (c *chat) Edit(context.Context, notify.MessageHandle, string) error { return nil }

func (c *chat) AnswerCallback(_ context.Context, id, _ string) error {
	c.answers = append(c.answers, id)
	return nil
}

func command(text string) notify.Update {
	return notify.Update{Message: &notify.Message{MessageID: 1, Chat: notify.Chat{ID: 42}, Text: text}}
}

func newBot() (*Bot, *fakeOps, *chat) {
	ops := &fakeOps{wallets: map[string]string{}}
	c := &chat{}
	return New(ops, c, c, Options{}, zerolog.Nop()), ops, c
}

func (c *chat) last(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, c.replies)
	return c.replies[len(c.replies)-1]
}

func TestSubscribeFlow(t *testing.T) {
	b, ops, c := newBot()
	ctx := context.Background()

	b.HandleUpdate(ctx, command("/subscribe main"))
	assert.Contains(t, c.last(t), "Please provide both alias and wallet address")

	b.HandleUpdate(ctx, command("/subscribe@walletbot main AArPXm8JatJiuyEffuC1un2Sc835SULa4uQqDcaGpAjV"))
	assert.Contains(t, c.last(t), "✅ Successfully added wallet!")
	assert.Equal(t, []string{"42"}, ops.targets)

	b.HandleUpdate(ctx, command("/subscribe main OTHER"))
	assert.Contains(t, c.last(t), `❌ Alias "main" is already in use.`)

	b.HandleUpdate(ctx, command("/list"))
	assert.Contains(t, c.last(t), "🏷️ main:\n📝 AArPXm8J...aGpAjV")

	b.HandleUpdate(ctx, command("/unsubscribe"))
	assert.Contains(t, c.last(t), "Please specify which wallet to unsubscribe")

	b.HandleUpdate(ctx, command("/unsubscribe ghost"))
	assert.Contains(t, c.last(t), `❌ Wallet alias "ghost" not found.`)

	b.HandleUpdate(ctx, command("/unsubscribe main"))
	assert.Contains(t, c.last(t), "✅ Successfully unsubscribed!")

	b.HandleUpdate(ctx, command("/list"))
	assert.Equal(t, noWalletsText, c.last(t))
}

func TestReports(t *testing.T) {
	b, ops, c := newBot()
	ctx := context.Background()

	b.HandleUpdate(ctx, command("/summary"))
	assert.Equal(t, "📭 No transactions recorded yet!", c.last(t))

	ops.records = []storage.LedgerRecord{
		{Type: storage.Incoming, Amount: decimal.NewFromInt(10), Purpose: "other", WalletAlias: "main"},
		{Type: storage.Outgoing, Amount: decimal.NewFromInt(4), Purpose: "food", WalletAlias: "main"},
	}
	b.HandleUpdate(ctx, command("/summary main"))
	assert.Contains(t, c.last(t), "💰 Net Balance: 6.00 ↗️")

	b.HandleUpdate(ctx, command("/categories"))
	assert.Contains(t, c.last(t), "🍔 food: 4.00 (100.0%)")

	b.HandleUpdate(ctx, command("/summary spare"))
	assert.Equal(t, `📭 No transactions found for wallet "spare"`, c.last(t))
}

func TestCallbackFailureShowsNotice(t *testing.T) {
	b, ops, c := newBot()
	ops.selectErr = errors.New("boom")

	b.HandleUpdate(context.Background(), notify.Update{CallbackQuery: &notify.CallbackQuery{
		ID:      "cb1",
		Data:    "purpose_food_tx_main",
		Message: &notify.Message{MessageID: 5, Chat: notify.Chat{ID: 42}, Text: "📤"},
	}})

	assert.Equal(t, []string{"cb1"}, c.answers)
	require.Len(t, ops.selections, 1)
	assert.Equal(t, int64(5), ops.selections[0].Handle.MessageID)
	assert.Equal(t, selectionFailedText, c.last(t))
}

func TestIgnoresPlainText(t *testing.T) {
	b, _, c := newBot()
	b.HandleUpdate(context.Background(), command("hello there"))
	b.HandleUpdate(context.Background(), command("/unknown"))
	assert.Empty(t, c.replies)

	b.HandleUpdate(context.Background(), command("/start"))
	assert.True(t, strings.HasPrefix(c.last(t), "🎉 Welcome"))
}

func TestShortAddress(t *testing.T) {
	assert.Equal(t, "AArPXm8J...aGpAjV", ShortAddress("AArPXm8JatJiuyEffuC1un2Sc835SULa4uQqDcaGpAjV"))
	assert.Equal(t, "short", ShortAddress("short"))
}
