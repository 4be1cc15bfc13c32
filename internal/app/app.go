package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"walletledger/internal/bot"
	"walletledger/internal/categorize"
	"walletledger/internal/config"
	"walletledger/internal/events"
	"walletledger/internal/logging"
	"walletledger/internal/notify"
	"walletledger/internal/pipeline"
	"walletledger/internal/scheduler"
	"walletledger/internal/service"
	"walletledger/internal/storage"
	"walletledger/internal/storage/filestore"
	"walletledger/internal/storage/postgres"
	"walletledger/internal/storage/sqlite"
	"walletledger/internal/stream"
	"walletledger/internal/synthetic"
	"walletledger/internal/wallet"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logging.Component(logger, "app"), Out: os.Stdout}
}

func (a *App) openBackend(ctx context.Context) (storage.Backend, error) {
	switch a.Config.Storage.Backend {
	case "sqlite":
		return sqlite.Open(a.Config.Storage.SQLite.Path)
	case "postgres":
		db := a.Config.Database
		return postgres.Open(ctx, postgres.PoolOptions{
			DSN:             db.DSN,
			MaxOpenConns:    db.MaxOpenConns,
			MinIdleConns:    db.MinIdleConns,
			ConnMaxLifetime: db.ConnMaxLifetime,
		}, db.AdvisoryLockKey)
	default:
		return filestore.Open(a.Config.Storage.File.Dir)
	}
}

func (a *App) newRegistry(store storage.WalletStore) (*wallet.Registry, error) {
	validator, err := wallet.ValidatorFor(a.Config.Wallets.AddressFormat)
	if err != nil {
		return nil, err
	}
	return wallet.NewRegistry(store, wallet.Options{
		MaxAliasLength: a.Config.Wallets.MaxAliasLength,
		Validator:      validator,
		Reserved:       "_",
	}, a.Logger), nil
}

func (a *App) newTelegram() *notify.Telegram {
	tg := a.Config.Telegram
	return notify.NewTelegram(notify.TelegramOptions{
		BotToken:    tg.BotToken,
		BaseURL:     tg.APIBase,
		Timeout:     tg.RequestTimeout,
		PollTimeout: tg.PollTimeout,
	}, a.Logger)
}

func (a *App) newPublisher() (categorize.RecordPublisher, func(), error) {
	ev := a.Config.Events
	if !ev.Enabled {
		return nil, func() {}, nil
	}
	pub, err := events.Dial(events.Options{URL: ev.AMQPURL, Exchange: ev.Exchange, RoutingKey: ev.RoutingKey}, a.Logger)
	if err != nil {
		return nil, nil, err
	}
	return pub, func() { _ = pub.Close() }, nil
}

// acquireWriter takes the backend's single-writer lock when it has one.
func (a *App) acquireWriter(ctx context.Context, backend storage.Backend) (func(), error) {
	if backend.Locker == nil {
		return func() {}, nil
	}
	unlock, acquired, err := backend.Locker.TryWriterLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire writer lock: %w", err)
	}
	if !acquired {
		return nil, storage.ErrLockHeld
	}
	return unlock, nil
}

// Run executes the long-running bot and monitoring service.
func (a *App) Run(ctx context.Context) error {
	if err := a.Config.RequireTelegram(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	backend, err := a.openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	unlock, err := a.acquireWriter(ctx, backend)
	if err != nil {
		return err
	}
	defer unlock()

	publisher, closePublisher, err := a.newPublisher()
	if err != nil {
		return err
	}
	defer closePublisher()

	registry, err := a.newRegistry(backend.Wallets)
	if err != nil {
		return err
	}

	telegram := a.newTelegram()
	catalog := categorize.NewCatalog(a.Config.Categories)
	ids := pipeline.NewIDGenerator(nil)
	pipe := pipeline.New(pipeline.Options{
		Catalog:      catalog,
		Notifier:     telegram,
		Pending:      backend.Pending,
		PendingTTL:   a.Config.Pending.TTL,
		SyntheticTTL: a.Config.Pending.SyntheticTTL,
		Logger:       a.Logger,
	})

	sc := a.Config.Stream
	monitor := stream.NewMonitor(stream.Options{
		URL:              sc.URL,
		Method:           sc.Method,
		HandshakeTimeout: sc.HandshakeTimeout,
		PingInterval:     sc.PingInterval,
	}, a.Logger)

	supOpts := scheduler.SupervisorOptions{
		Backoff:    sc.Backoff,
		AlertAfter: sc.AlertAfter,
		Stable:     service.StableSession(sc.StableAfter),
		OnOutage:   a.outageAlert(telegram),
	}

	var generator *synthetic.Generator
	gc := a.Config.Generator
	if gc.Enabled {
		supOpts.Generator, err = scheduler.NewTicker(scheduler.TickerOptions{
			Name:         "generator",
			Interval:     gc.Interval,
			StartupDelay: gc.StartupDelay,
		}, a.Logger)
		if err != nil {
			return err
		}
		generator, err = synthetic.New(registry, pipe, ids, synthetic.Options{
			IncomingProbability: gc.IncomingProbability,
			MinAmount:           gc.MinAmount,
			MaxAmount:           gc.MaxAmount,
			Target:              a.Config.Telegram.ChatID,
		}, a.Logger)
		if err != nil {
			return err
		}
	}

	supervisor := scheduler.NewSupervisor(ctx, service.StreamWatcher(monitor, pipe, ids, a.Logger), supOpts, a.Logger)

	svc, err := service.New(service.Deps{
		Registry:   registry,
		Ledger:     backend.Ledger,
		Pending:    backend.Pending,
		Supervisor: supervisor,
		Selections: categorize.NewHandler(categorize.HandlerDeps{
			Catalog:   catalog,
			Ledger:    backend.Ledger,
			Pending:   backend.Pending,
			Notifier:  telegram,
			Publisher: publisher,
			Logger:    a.Logger,
		}),
		Catalog:   catalog,
		Generator: generator,
		Logger:    a.Logger,
	})
	if err != nil {
		return err
	}
	defer svc.Shutdown()

	botOpts := bot.Options{}
	if gc.Enabled {
		botOpts.GeneratorInterval = gc.Interval
	}
	chatBot := bot.New(svc, telegram, telegram, botOpts, a.Logger)

	if target := a.Config.Telegram.ChatID; target != "" {
		if _, err := svc.Resume(ctx, target); err != nil {
			a.Logger.Error().Err(err).Msg("resume monitoring failed")
		}
	} else {
		a.Logger.Warn().Msg("telegram.chat_id not configured; persisted wallets resume on the next /subscribe")
	}

	purge, err := scheduler.NewTicker(scheduler.TickerOptions{Name: "pending_purge", Interval: a.Config.Pending.PurgeInterval}, a.Logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return telegram.Poll(gctx, chatBot.HandleUpdate)
	})
	g.Go(func() error {
		return purge.Run(gctx, svc.PurgePending)
	})

	a.Logger.Info().Str("backend", a.Config.Storage.Backend).Msg("starting wallet ledger service")
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("wallet ledger service stopped")
	return nil
}

func (a *App) outageAlert(chat notify.Notifier) scheduler.OutageFunc {
	return func(ctx context.Context, w scheduler.Watch, failures int, err error) {
		if w.Target == "" {
			return
		}
		text := fmt.Sprintf("⚠️ Monitoring for wallet %q keeps failing (%d attempts).\nLast error: %v", w.Alias, failures, err)
		if _, sendErr := chat.Send(ctx, w.Target, text, nil); sendErr != nil {
			a.Logger.Warn().Err(sendErr).Str("alias", w.Alias).Msg("outage alert failed")
		}
	}
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
	Alias string
}

// ExportOptions hold parameters for exporting the ledger.
type ExportOptions struct {
	Alias   string
	CSVPath string
	PNGPath string
	MaxRows int
}

// SimulateOptions describe a manually injected event.
type SimulateOptions struct {
	Alias  string
	Amount string
	Target string
}
