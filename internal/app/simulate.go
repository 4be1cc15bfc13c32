package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"walletledger/internal/categorize"
	"walletledger/internal/pipeline"
)

// SimulateEvent pushes one event for a registered wallet through the
// categorization pipeline, as if it had arrived on the stream.
func (a *App) SimulateEvent(ctx context.Context, opts SimulateOptions) (pipeline.Candidate, error) {
	if err := a.Config.RequireTelegram(); err != nil {
		return pipeline.Candidate{}, err
	}
	target := opts.Target
	if target == "" {
		target = a.Config.Telegram.ChatID
	}
	if target == "" {
		return pipeline.Candidate{}, fmt.Errorf("no target chat: pass --chat or set telegram.chat_id")
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(opts.Amount))
	if err != nil {
		return pipeline.Candidate{}, fmt.Errorf("invalid amount %q: %w", opts.Amount, err)
	}

	backend, err := a.openBackend(ctx)
	if err != nil {
		return pipeline.Candidate{}, err
	}
	defer backend.Close()

	registry, err := a.newRegistry(backend.Wallets)
	if err != nil {
		return pipeline.Candidate{}, err
	}
	wallets, err := registry.List(ctx)
	if err != nil {
		return pipeline.Candidate{}, err
	}
	known := false
	for _, w := range wallets {
		if w.Alias == opts.Alias {
			known = true
			break
		}
	}
	if !known {
		return pipeline.Candidate{}, fmt.Errorf("wallet alias %q is not registered", opts.Alias)
	}

	pipe := pipeline.New(pipeline.Options{
		Catalog:    categorize.NewCatalog(a.Config.Categories),
		Notifier:   a.newTelegram(),
		Pending:    backend.Pending,
		PendingTTL: a.Config.Pending.TTL,
		Logger:     a.Logger,
	})

	c := pipeline.NewCandidate(pipeline.NewIDGenerator(nil).Next(), opts.Alias, target, amount)
	if err := pipe.Process(ctx, c); err != nil {
		return pipeline.Candidate{}, err
	}
	fmt.Fprintf(a.Out, "sent %s transaction %s for %s (%s)\n", c.Direction, c.ID, c.WalletAlias, c.Amount.Abs().String())
	return c, nil
}
