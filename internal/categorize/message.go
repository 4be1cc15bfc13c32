package categorize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"walletledger/internal/notify"
	"walletledger/internal/storage"
)

const (
	incomingMarker = "📥"
	outgoingMarker = "📤"
	amountLabel    = "Amount:"
	amountPrefix   = "💰 " + amountLabel
)

// ErrRecovery reports a message whose text no longer yields amount and direction.
var ErrRecovery = errors.New("cannot recover transaction from message")

// Request is the transaction the operator is asked to categorize.
type Request struct {
	TransactionID string
	WalletAlias   string
	Amount        decimal.Decimal
	Type          storage.TxType
}

// RenderRequest builds the message text shown to the operator.
func RenderRequest(r Request) string {
	marker := outgoingMarker
	if r.Type == storage.Incoming {
		marker = incomingMarker
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s New Transaction Detected!\n\n", marker)
	fmt.Fprintf(&b, "🏷️ Wallet: %s\n", r.WalletAlias)
	fmt.Fprintf(&b, "%s %s\n", amountPrefix, r.Amount.Abs().String())
	fmt.Fprintf(&b, "🔍 Type: %s\n", r.Type)
	fmt.Fprintf(&b, "📝 ID: %s\n\n", r.TransactionID)
	b.WriteString("Please select the purpose:")
	return b.String()
}

// Options builds one option per category for the request.
func (c *Catalog) Options(r Request) ([]notify.Option, error) {
	options := make([]notify.Option, 0, len(c.categories))
	for _, cat := range c.categories {
		token, err := Encode(Token{Purpose: cat.Name, TransactionID: r.TransactionID, WalletAlias: r.WalletAlias})
		if err != nil {
			return nil, err
		}
		options = append(options, notify.Option{Label: cat.ButtonLabel(), Token: token})
	}
	return options, nil
}

// Recover extracts amount and direction from a rendered request.
func Recover(text string) (decimal.Decimal, storage.TxType, error) {
	lines := strings.Split(text, "\n")

	var raw string
	found := false
	for _, line := range lines {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), amountPrefix); ok {
			raw, found = rest, true
			break
		}
	}
	if !found {
		return decimal.Zero, "", fmt.Errorf("%w: no amount line", ErrRecovery)
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("%w: amount %q: %v", ErrRecovery, strings.TrimSpace(raw), err)
	}

	var txType storage.TxType
	switch {
	case strings.Contains(lines[0], incomingMarker):
		txType = storage.Incoming
	case strings.Contains(lines[0], outgoingMarker):
		txType = storage.Outgoing
	default:
		return decimal.Zero, "", fmt.Errorf("%w: no direction marker", ErrRecovery)
	}

	return amount.Abs(), txType, nil
}

// Confirmation appends the categorization result to the original message.
func Confirmation(text, purpose, emoji string) string {
	return fmt.Sprintf("%s\n\n✅ Categorized as: %s %s", text, purpose, emoji)
}
