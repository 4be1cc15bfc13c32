package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
)

// ErrInvalidAddress rejects addresses that do not match the configured format.
var ErrInvalidAddress = errors.New("invalid wallet address")

// AddressValidator checks an external account identifier.
type AddressValidator interface {
	Validate(address string) error
}

// SolanaAddress accepts base58-encoded 32 byte public keys.
type SolanaAddress struct{}

// Validate implements AddressValidator.
func (SolanaAddress) Validate(address string) error {
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return fmt.Errorf("%w: %q is not a solana public key: %v", ErrInvalidAddress, address, err)
	}
	return nil
}

// EVMAddress accepts 20 byte hex addresses with or without 0x prefix.
type EVMAddress struct{}

// Validate implements AddressValidator.
func (EVMAddress) Validate(address string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("%w: %q is not a hex address", ErrInvalidAddress, address)
	}
	return nil
}

// AnyAddress only requires a non-empty identifier without whitespace.
type AnyAddress struct{}

// Validate implements AddressValidator.
func (AnyAddress) Validate(address string) error {
	if address == "" || strings.ContainsAny(address, " \t\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return nil
}

// ValidatorFor maps a configured format name to a validator.
func ValidatorFor(format string) (AddressValidator, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "solana":
		return SolanaAddress{}, nil
	case "evm", "ethereum":
		return EVMAddress{}, nil
	case "any":
		return AnyAddress{}, nil
	default:
		return nil, fmt.Errorf("unknown address format %q", format)
	}
}
