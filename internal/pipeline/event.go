// Package pipeline normalizes raw account events into categorization requests.
package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"walletledger/internal/storage"
)

var (
	// ErrMissingAmount marks an event without an amount field.
	ErrMissingAmount = errors.New("event has no amount")
	// ErrMalformedEvent marks a payload that is not a JSON object or has a bad amount.
	ErrMalformedEvent = errors.New("malformed event")
)

// RawEvent is a decoded stream message.
type RawEvent struct {
	Amount decimal.Decimal
	Fields map[string]json.RawMessage
}

// ParseRawEvent decodes payload and extracts its amount.
func ParseRawEvent(payload []byte) (RawEvent, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return RawEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if fields == nil {
		return RawEvent{}, fmt.Errorf("%w: not an object", ErrMalformedEvent)
	}

	raw, ok := fields["amount"]
	if !ok || string(raw) == "null" {
		return RawEvent{}, ErrMissingAmount
	}

	amount, err := parseAmount(raw)
	if err != nil {
		return RawEvent{}, fmt.Errorf("%w: amount %s: %v", ErrMalformedEvent, raw, err)
	}
	return RawEvent{Amount: amount, Fields: fields}, nil
}

// amounts arrive as JSON numbers or numeric strings
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return decimal.NewFromString(strings.TrimSpace(s))
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}

// Candidate is a normalized transaction awaiting categorization.
type Candidate struct {
	ID          string
	WalletAlias string
	Target      string
	Amount      decimal.Decimal
	Direction   storage.TxType
	// Synthetic candidates keep their pending entry for the shorter synthetic TTL.
	Synthetic   bool
}

// NewCandidate derives the direction from the amount sign.
func NewCandidate(id, alias, target string, amount decimal.Decimal) Candidate {
	return Candidate{
		ID:          id,
		WalletAlias: alias,
		Target:      target,
		Amount:      amount,
		Direction:   DirectionOf(amount),
	}
}

// DirectionOf is incoming iff amount is strictly positive.
func DirectionOf(amount decimal.Decimal) storage.TxType {
	if amount.IsPositive() {
		return storage.Incoming
	}
	return storage.Outgoing
}

// IDGenerator issues process-unique transaction ids: a microsecond timestamp
// followed by a base36 sequence number.
type IDGenerator struct {
	mu  sync.Mutex
	seq uint64
	now func() time.Time
}

// NewIDGenerator builds a generator reading the given clock.
func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

// Next returns a fresh id.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	g.seq++
	seq := g.seq
	g.mu.Unlock()

	ts := g.now().UTC()
	return fmt.Sprintf("%s%06d-%s", ts.Format("20060102150405"), ts.Nanosecond()/1000, strconv.FormatUint(seq, 36))
}

// NextWithPrefix returns a fresh id tagged with prefix.
func (g *IDGenerator) NextWithPrefix(prefix string) string {
	return prefix + g.Next()
}
