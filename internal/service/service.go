// Package service wires the registry, monitors, categorization and reports
// behind the operations the command surfaces expose.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"walletledger/internal/categorize"
	"walletledger/internal/logging"
	"walletledger/internal/notify"
	"walletledger/internal/pipeline"
	"walletledger/internal/report"
	"walletledger/internal/scheduler"
	"walletledger/internal/storage"
	"walletledger/internal/stream"
	"walletledger/internal/synthetic"
	"walletledger/internal/wallet"
)

// Deps are the collaborators of a Service.
type Deps struct {
	Registry   *wallet.Registry
	Ledger     storage.LedgerStore
	Pending    storage.PendingStore
	Supervisor *scheduler.Supervisor
	Selections *categorize.Handler
	Catalog    *categorize.Catalog
	// Generator is optional; nil disables synthetic traffic.
	Generator *synthetic.Generator
	Now       func() time.Time
	Logger    zerolog.Logger
}

// Service orchestrates subscriptions, selections and reports.
type Service struct {
	registry   *wallet.Registry
	ledger     storage.LedgerStore
	pending    storage.PendingStore
	supervisor *scheduler.Supervisor
	selections *categorize.Handler
	catalog    *categorize.Catalog
	generator  *synthetic.Generator
	now        func() time.Time
	logger     zerolog.Logger
}

// New constructs the service.
func New(deps Deps) (*Service, error) {
	if deps.Registry == nil || deps.Ledger == nil || deps.Supervisor == nil || deps.Selections == nil {
		return nil, errors.New("service: registry, ledger, supervisor and selection handler are required")
	}
	if deps.Catalog == nil {
		deps.Catalog = categorize.NewCatalog(nil)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{
		registry:   deps.Registry,
		ledger:     deps.Ledger,
		pending:    deps.Pending,
		supervisor: deps.Supervisor,
		selections: deps.Selections,
		catalog:    deps.Catalog,
		generator:  deps.Generator,
		now:        deps.Now,
		logger:     logging.Component(deps.Logger, "service"),
	}, nil
}

// Subscribe registers a wallet and starts monitoring it for target.
func (s *Service) Subscribe(ctx context.Context, alias, address, target string) (storage.Wallet, error) {
	w, err := s.registry.Register(ctx, alias, address)
	if err != nil {
		return storage.Wallet{}, err
	}
	s.watch(w, target)
	return w, nil
}

// Unsubscribe stops monitoring alias and removes it. The generator stops with the last wallet.
func (s *Service) Unsubscribe(ctx context.Context, alias string) (storage.Wallet, error) {
	w, err := s.registry.Unregister(ctx, alias)
	if err != nil {
		return storage.Wallet{}, err
	}
	s.supervisor.Stop(w.Alias)

	remaining, err := s.registry.List(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("list wallets after unsubscribe failed")
		return w, nil
	}
	if len(remaining) == 0 && s.supervisor.StopGenerator() {
		s.logger.Info().Msg("no wallets left, generator stopped")
	}
	return w, nil
}

// Wallets lists registered wallets.
func (s *Service) Wallets(ctx context.Context) ([]storage.Wallet, error) {
	return s.registry.List(ctx)
}

// Resume restarts monitoring for every persisted wallet.
func (s *Service) Resume(ctx context.Context, target string) (int, error) {
	wallets, err := s.registry.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, w := range wallets {
		s.watch(w, target)
	}
	if len(wallets) > 0 {
		s.logger.Info().Int("wallets", len(wallets)).Msg("monitoring resumed")
	}
	return len(wallets), nil
}

// Select records an operator selection.
func (s *Service) Select(ctx context.Context, sel notify.Selection) (storage.LedgerRecord, error) {
	return s.selections.HandleSelection(ctx, sel)
}

// Records returns the whole ledger.
func (s *Service) Records(ctx context.Context) ([]storage.LedgerRecord, error) {
	records, err := s.ledger.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return records, nil
}

// Summary totals the ledger for alias; empty alias covers every wallet.
func (s *Service) Summary(ctx context.Context, alias string) (report.Summary, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return report.Summary{}, err
	}
	return report.Summarize(records, alias)
}

// Categories breaks outgoing value for alias down by purpose.
func (s *Service) Categories(ctx context.Context, alias string) (report.Breakdown, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return report.Breakdown{}, err
	}
	return report.Categorize(records, alias)
}

// Emoji decorates a purpose from the configured catalog.
func (s *Service) Emoji(purpose string) string {
	return s.catalog.Emoji(purpose)
}

// PurgePending drops expired pending entries; it runs as a scheduler tick.
func (s *Service) PurgePending(ctx context.Context, at time.Time) error {
	if s.pending == nil {
		return nil
	}
	removed, err := s.pending.PurgeExpired(ctx, at)
	if err != nil {
		return fmt.Errorf("purge pending: %w", err)
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("expired pending transactions purged")
	}
	return nil
}

// Shutdown cancels every monitor and the generator.
func (s *Service) Shutdown() {
	s.supervisor.Shutdown()
}

func (s *Service) watch(w storage.Wallet, target string) {
	s.supervisor.Start(scheduler.Watch{Alias: w.Alias, Address: w.Address, Target: target})
	if s.generator == nil {
		return
	}
	s.generator.SetTarget(target)
	s.supervisor.StartGenerator(s.generator.Tick)
}

// StreamWatcher adapts a stream monitor and pipeline into a supervisor task.
func StreamWatcher(monitor *stream.Monitor, pipe *pipeline.Pipeline, ids *pipeline.IDGenerator, logger zerolog.Logger) scheduler.WatchFunc {
	logger = logging.Component(logger, "ingest")
	return func(ctx context.Context, w scheduler.Watch) error {
		return monitor.Watch(ctx, w.Alias, w.Address, func(ctx context.Context, payload []byte) {
			err := pipe.Ingest(ctx, ids, w.Alias, w.Target, payload)
			switch {
			case err == nil:
			case errors.Is(err, pipeline.ErrMissingAmount):
				logger.Warn().Str("alias", w.Alias).Str("payload", string(payload)).Msg("incomplete event skipped")
			case errors.Is(err, pipeline.ErrMalformedEvent):
				logger.Error().Err(err).Str("alias", w.Alias).Str("payload", string(payload)).Msg("malformed event skipped")
			default:
				logger.Error().Err(err).Str("alias", w.Alias).Msg("event dropped")
			}
		})
	}
}

// StableSession reports whether err ends a session that ran at least minUptime.
func StableSession(minUptime time.Duration) scheduler.StableFunc {
	return func(err error) bool {
		var disconnect *stream.DisconnectError
		return errors.As(err, &disconnect) && disconnect.Uptime >= minUptime
	}
}
