// Package synthetic fabricates transactions for registered wallets so the
// categorization flow can be exercised without live traffic.
package synthetic

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"walletledger/internal/logging"
	"walletledger/internal/pipeline"
	"walletledger/internal/storage"
)

// IDPrefix marks synthetic transaction ids.
const IDPrefix = "mock_"

// Options shape generated amounts.
type Options struct {
	IncomingProbability float64
	MinAmount           float64
	MaxAmount           float64
	Target              string
	Random              *rand.Rand
}

// WalletLister supplies the current registry contents.
type WalletLister interface {
	List(ctx context.Context) ([]storage.Wallet, error)
}

// Processor consumes generated candidates.
type Processor interface {
	Process(ctx context.Context, c pipeline.Candidate) error
}

// Generator emits one random candidate per Fire.
type Generator struct {
	wallets WalletLister
	sink    Processor
	ids     *pipeline.IDGenerator
	opts    Options
	logger  zerolog.Logger

	mu     sync.Mutex
	target string
}

// New builds a Generator.
func New(wallets WalletLister, sink Processor, ids *pipeline.IDGenerator, opts Options, logger zerolog.Logger) (*Generator, error) {
	if opts.MinAmount <= 0 || opts.MaxAmount < opts.MinAmount {
		return nil, fmt.Errorf("invalid amount range [%v, %v]", opts.MinAmount, opts.MaxAmount)
	}
	if opts.IncomingProbability < 0 || opts.IncomingProbability > 1 {
		return nil, fmt.Errorf("incoming probability %v out of [0,1]", opts.IncomingProbability)
	}
	if opts.Random == nil {
		seed := uint64(time.Now().UnixNano())
		opts.Random = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Generator{
		wallets: wallets,
		sink:    sink,
		ids:     ids,
		opts:    opts,
		logger:  logging.Component(logger, "generator"),
		target:  opts.Target,
	}, nil
}

// SetTarget redirects subsequent candidates to target.
func (g *Generator) SetTarget(target string) {
	g.mu.Lock()
	g.target = target
	g.mu.Unlock()
}

// Tick adapts Fire to a scheduler tick.
func (g *Generator) Tick(ctx context.Context, _ time.Time) error {
	_, err := g.Fire(ctx)
	if errors.Is(err, ErrNoWallets) {
		return nil
	}
	return err
}

// ErrNoWallets is returned when the registry is empty.
var ErrNoWallets = errors.New("no wallets registered")

// Fire picks a wallet uniformly at random and processes a fabricated candidate for it.
func (g *Generator) Fire(ctx context.Context) (pipeline.Candidate, error) {
	wallets, err := g.wallets.List(ctx)
	if err != nil {
		return pipeline.Candidate{}, fmt.Errorf("list wallets: %w", err)
	}
	if len(wallets) == 0 {
		return pipeline.Candidate{}, ErrNoWallets
	}

	g.mu.Lock()
	target := g.target
	w := wallets[g.opts.Random.IntN(len(wallets))]
	amount := g.amount()
	g.mu.Unlock()

	c := pipeline.NewCandidate(g.ids.NextWithPrefix(IDPrefix), w.Alias, target, amount)
	c.Synthetic = true

	g.logger.Debug().Str("alias", w.Alias).Str("transaction_id", c.ID).Str("amount", c.Amount.String()).Msg("synthetic transaction")
	if err := g.sink.Process(ctx, c); err != nil {
		return c, err
	}
	return c, nil
}

func (g *Generator) amount() decimal.Decimal {
	r := g.opts.Random
	magnitude := g.opts.MinAmount + r.Float64()*(g.opts.MaxAmount-g.opts.MinAmount)
	amount := decimal.NewFromFloat(magnitude).Round(2)

	if r.Float64() < g.opts.IncomingProbability {
		return amount
	}
	return amount.Neg()
}
