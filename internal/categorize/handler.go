package categorize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"walletledger/internal/logging"
	"walletledger/internal/notify"
	"walletledger/internal/storage"
)

// RecordPublisher fans a committed ledger record out to other consumers.
type RecordPublisher interface {
	Publish(ctx context.Context, record storage.LedgerRecord) error
}

// HandlerDeps are the collaborators of a selection handler.
type HandlerDeps struct {
	Catalog   *Catalog
	Ledger    storage.LedgerStore
	Pending   storage.PendingStore
	Notifier  notify.Notifier
	Publisher RecordPublisher
	Now       func() time.Time
	Logger    zerolog.Logger
}

// Handler turns operator selections into ledger records.
type Handler struct {
	catalog   *Catalog
	ledger    storage.LedgerStore
	pending   storage.PendingStore
	notifier  notify.Notifier
	publisher RecordPublisher
	now       func() time.Time
	logger    zerolog.Logger
}

// NewHandler wires a selection handler.
func NewHandler(deps HandlerDeps) *Handler {
	if deps.Catalog == nil {
		deps.Catalog = NewCatalog(nil)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Handler{
		catalog:   deps.Catalog,
		ledger:    deps.Ledger,
		pending:   deps.Pending,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		now:       deps.Now,
		logger:    logging.Component(deps.Logger, "categorize"),
	}
}

// HandleSelection records the selection carried by sel and confirms it in chat.
// Decode and recovery failures write nothing.
func (h *Handler) HandleSelection(ctx context.Context, sel notify.Selection) (storage.LedgerRecord, error) {
	token, err := Decode(sel.Token)
	if err != nil {
		h.logger.Warn().Err(err).Str("payload", sel.Token).Msg("undecodable selection")
		return storage.LedgerRecord{}, err
	}

	log := h.logger.With().
		Str("transaction_id", token.TransactionID).
		Str("alias", token.WalletAlias).
		Str("purpose", token.Purpose).
		Logger()

	now := h.now().UTC()
	record := storage.LedgerRecord{
		Timestamp:     now,
		Purpose:       token.Purpose,
		WalletAlias:   token.WalletAlias,
		TransactionID: token.TransactionID,
	}

	pending, found := h.takePending(ctx, token.TransactionID, now, log)
	if found {
		record.Type = pending.Type
		record.Amount = pending.Amount.Abs()
	} else {
		amount, txType, err := Recover(sel.Text)
		if err != nil {
			log.Warn().Err(err).Str("payload", sel.Text).Msg("cannot recover selection")
			return storage.LedgerRecord{}, err
		}
		record.Type = txType
		record.Amount = amount
	}

	if err := h.ledger.AppendRecord(ctx, record); err != nil {
		log.Error().Err(err).Str("amount", record.Amount.String()).Msg("append ledger record failed")
		return storage.LedgerRecord{}, fmt.Errorf("append ledger record: %w", err)
	}
	log.Info().Str("type", string(record.Type)).Str("amount", record.Amount.String()).Bool("pending_hit", found).Msg("transaction categorized")

	if h.publisher != nil {
		if err := h.publisher.Publish(ctx, record); err != nil {
			log.Warn().Err(err).Msg("publish ledger record failed")
		}
	}

	if h.notifier != nil && sel.Handle.MessageID != 0 {
		text := Confirmation(sel.Text, token.Purpose, h.catalog.Emoji(token.Purpose))
		if err := h.notifier.Edit(ctx, sel.Handle, text); err != nil {
			log.Warn().Err(err).Msg("confirm categorization failed")
		}
	}

	return record, nil
}

func (h *Handler) takePending(ctx context.Context, txID string, now time.Time, log zerolog.Logger) (storage.PendingTransaction, bool) {
	if h.pending == nil || txID == "" {
		return storage.PendingTransaction{}, false
	}
	pending, found, err := h.pending.TakePending(ctx, txID, now)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("pending lookup failed, recovering from message text")
		}
		return storage.PendingTransaction{}, false
	}
	return pending, found
}
