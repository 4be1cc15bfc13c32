package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"walletledger/internal/categorize"
	"walletledger/internal/logging"
	"walletledger/internal/notify"
	"walletledger/internal/storage"
)

const (
	// DefaultPendingTTL bounds how long a request waits for a selection.
	DefaultPendingTTL   = 72 * time.Hour
	// DefaultSyntheticTTL bounds pending entries of generated traffic.
	DefaultSyntheticTTL = time.Hour
)

// Options configure a Pipeline.
type Options struct {
	Catalog      *categorize.Catalog
	Notifier     notify.Notifier
	Pending      storage.PendingStore
	PendingTTL   time.Duration
	// SyntheticTTL replaces PendingTTL for synthetic candidates.
	SyntheticTTL time.Duration
	Now          func() time.Time
	Logger       zerolog.Logger
}

// Pipeline sends categorization requests for candidates.
type Pipeline struct {
	catalog  *categorize.Catalog
	notifier notify.Notifier
	pending  storage.PendingStore
	ttl      time.Duration
	synthTTL time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// New builds a Pipeline.
func New(opts Options) *Pipeline {
	if opts.Catalog == nil {
		opts.Catalog = categorize.NewCatalog(nil)
	}
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = DefaultPendingTTL
	}
	if opts.SyntheticTTL <= 0 {
		opts.SyntheticTTL = DefaultSyntheticTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		catalog:  opts.Catalog,
		notifier: opts.Notifier,
		pending:  opts.Pending,
		ttl:      opts.PendingTTL,
		synthTTL: opts.SyntheticTTL,
		now:      opts.Now,
		logger:   logging.Component(opts.Logger, "pipeline"),
	}
}

// Process asks the operator to categorize c. A delivery failure drops the event.
func (p *Pipeline) Process(ctx context.Context, c Candidate) error {
	log := p.logger.With().
		Str("transaction_id", c.ID).
		Str("alias", c.WalletAlias).
		Str("amount", c.Amount.String()).
		Str("type", string(c.Direction)).
		Logger()

	req := categorize.Request{
		TransactionID: c.ID,
		WalletAlias:   c.WalletAlias,
		Amount:        c.Amount,
		Type:          c.Direction,
	}
	options, err := p.catalog.Options(req)
	if err != nil {
		log.Error().Err(err).Msg("build selection options failed")
		return fmt.Errorf("build options for %s: %w", c.ID, err)
	}

	handle, err := p.notifier.Send(ctx, c.Target, categorize.RenderRequest(req), options)
	if err != nil {
		log.Error().Err(err).Str("target", c.Target).Msg("send categorization request failed")
		return fmt.Errorf("send categorization request %s: %w", c.ID, err)
	}
	log.Info().Int64("message_id", handle.MessageID).Msg("categorization requested")

	if p.pending == nil {
		return nil
	}
	ttl := p.ttl
	if c.Synthetic {
		ttl = p.synthTTL
	}
	now := p.now().UTC()
	entry := storage.PendingTransaction{
		TransactionID: c.ID,
		WalletAlias:   c.WalletAlias,
		Type:          c.Direction,
		Amount:        c.Amount.Abs(),
		Target:        c.Target,
		MessageID:     handle.MessageID,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}
	if err := p.pending.PutPending(ctx, entry); err != nil {
		log.Warn().Err(err).Msg("store pending transaction failed")
	}
	return nil
}

// Ingest normalizes one stream payload for alias and processes it.
// Validation failures are returned without side effects.
func (p *Pipeline) Ingest(ctx context.Context, ids *IDGenerator, alias, target string, payload []byte) error {
	ev, err := ParseRawEvent(payload)
	if err != nil {
		return err
	}
	return p.Process(ctx, NewCandidate(ids.Next(), alias, target, ev.Amount))
}
