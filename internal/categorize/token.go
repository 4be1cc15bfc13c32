package categorize

import (
	"errors"
	"fmt"
	"strings"
)

const (
	tokenTag       = "purpose"
	tokenSeparator = "_"

	// MaxTokenBytes is the largest callback payload Telegram accepts.
	MaxTokenBytes = 64
)

var (
	// ErrInvalidToken reports a selection token that does not decode.
	ErrInvalidToken = errors.New("invalid selection token")
	// ErrTokenTooLong reports an encoded token over MaxTokenBytes.
	ErrTokenTooLong = errors.New("selection token exceeds callback limit")
)

// Token is the payload carried by one selectable option.
type Token struct {
	Purpose       string
	TransactionID string
	WalletAlias   string
}

// Encode renders the token as purpose_<purpose>_<transaction id>_<alias>.
// Purpose and alias must not contain the separator; the transaction id may.
func Encode(t Token) (string, error) {
	if t.Purpose == "" || t.WalletAlias == "" {
		return "", fmt.Errorf("%w: purpose and alias are required", ErrInvalidToken)
	}
	if strings.Contains(t.Purpose, tokenSeparator) || strings.Contains(t.WalletAlias, tokenSeparator) {
		return "", fmt.Errorf("%w: purpose %q or alias %q contains %q", ErrInvalidToken, t.Purpose, t.WalletAlias, tokenSeparator)
	}

	encoded := strings.Join([]string{tokenTag, t.Purpose, t.TransactionID, t.WalletAlias}, tokenSeparator)
	if len(encoded) > MaxTokenBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTokenTooLong, len(encoded))
	}
	return encoded, nil
}

// Decode parses a token produced by Encode.
func Decode(data string) (Token, error) {
	parts := strings.Split(data, tokenSeparator)
	if len(parts) < 3 {
		return Token{}, fmt.Errorf("%w: %q", ErrInvalidToken, data)
	}
	if parts[0] != tokenTag {
		return Token{}, fmt.Errorf("%w: unexpected tag %q", ErrInvalidToken, parts[0])
	}

	t := Token{
		Purpose:       parts[1],
		TransactionID: strings.Join(parts[2:len(parts)-1], tokenSeparator),
		WalletAlias:   parts[len(parts)-1],
	}
	if t.Purpose == "" || t.WalletAlias == "" {
		return Token{}, fmt.Errorf("%w: %q", ErrInvalidToken, data)
	}
	return t, nil
}
