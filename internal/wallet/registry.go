package wallet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/rs/zerolog"

	"walletledger/internal/logging"
	"walletledger/internal/storage"
)

var (
	// ErrAliasConflict is returned when registering an alias that is already present.
	ErrAliasConflict = errors.New("wallet alias already registered")
	// ErrNotFound is returned when unregistering an unknown alias.
	ErrNotFound = errors.New("wallet alias not found")
	// ErrInvalidAlias rejects aliases that cannot travel inside a selection token.
	ErrInvalidAlias = errors.New("invalid wallet alias")
)

// DefaultMaxAliasLength keeps selection tokens within the chat callback limit.
const DefaultMaxAliasLength = 16

// Options tune registry validation.
type Options struct {
	MaxAliasLength int
	Validator      AddressValidator
	// Reserved holds characters an alias may not contain.
	Reserved string
}

// Registry owns the durable alias to address mapping.
type Registry struct {
	store  storage.WalletStore
	opts   Options
	logger zerolog.Logger

	mu sync.Mutex
}

// NewRegistry builds a registry over store.
func NewRegistry(store storage.WalletStore, opts Options, logger zerolog.Logger) *Registry {
	if opts.MaxAliasLength <= 0 {
		opts.MaxAliasLength = DefaultMaxAliasLength
	}
	if opts.Validator == nil {
		opts.Validator = AnyAddress{}
	}
	return &Registry{
		store:  store,
		opts:   opts,
		logger: logging.Component(logger, "wallet_registry"),
	}
}

// Register adds alias -> address. An existing alias is never overwritten.
func (r *Registry) Register(ctx context.Context, alias, address string) (storage.Wallet, error) {
	alias = strings.TrimSpace(alias)
	address = strings.TrimSpace(address)

	if err := r.validateAlias(alias); err != nil {
		return storage.Wallet{}, err
	}
	if err := r.opts.Validator.Validate(address); err != nil {
		return storage.Wallet{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	wallets, err := r.store.LoadWallets(ctx)
	if err != nil {
		return storage.Wallet{}, fmt.Errorf("load wallets: %w", err)
	}
	if _, exists := wallets[alias]; exists {
		return storage.Wallet{}, fmt.Errorf("%w: %q", ErrAliasConflict, alias)
	}

	wallets[alias] = address
	if err := r.store.SaveWallets(ctx, wallets); err != nil {
		return storage.Wallet{}, fmt.Errorf("save wallets: %w", err)
	}

	r.logger.Info().Str("alias", alias).Str("address", address).Msg("wallet registered")
	return storage.Wallet{Alias: alias, Address: address}, nil
}

// Unregister removes alias and returns the wallet it pointed to.
func (r *Registry) Unregister(ctx context.Context, alias string) (storage.Wallet, error) {
	alias = strings.TrimSpace(alias)

	r.mu.Lock()
	defer r.mu.Unlock()

	wallets, err := r.store.LoadWallets(ctx)
	if err != nil {
		return storage.Wallet{}, fmt.Errorf("load wallets: %w", err)
	}
	address, exists := wallets[alias]
	if !exists {
		return storage.Wallet{}, fmt.Errorf("%w: %q", ErrNotFound, alias)
	}

	delete(wallets, alias)
	if err := r.store.SaveWallets(ctx, wallets); err != nil {
		return storage.Wallet{}, fmt.Errorf("save wallets: %w", err)
	}

	r.logger.Info().Str("alias", alias).Msg("wallet unregistered")
	return storage.Wallet{Alias: alias, Address: address}, nil
}

// List returns every registered wallet ordered by alias.
func (r *Registry) List(ctx context.Context) ([]storage.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wallets, err := r.store.LoadWallets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load wallets: %w", err)
	}

	out := make([]storage.Wallet, 0, len(wallets))
	for alias, address := range wallets {
		out = append(out, storage.Wallet{Alias: alias, Address: address})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out, nil
}

func (r *Registry) validateAlias(alias string) error {
	if alias == "" {
		return fmt.Errorf("%w: alias is empty", ErrInvalidAlias)
	}
	if len(alias) > r.opts.MaxAliasLength {
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidAlias, alias, r.opts.MaxAliasLength)
	}
	if r.opts.Reserved != "" && strings.ContainsAny(alias, r.opts.Reserved) {
		return fmt.Errorf("%w: %q contains one of %q", ErrInvalidAlias, alias, r.opts.Reserved)
	}
	for _, ch := range alias {
		if unicode.IsSpace(ch) || !unicode.IsPrint(ch) {
			return fmt.Errorf("%w: %q contains whitespace or control characters", ErrInvalidAlias, alias)
		}
	}
	return nil
}
