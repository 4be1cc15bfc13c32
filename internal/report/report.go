// Package report aggregates ledger records into balances and category shares.
package report

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"walletledger/internal/storage"
)

// ErrNoRecords is returned when the filtered record set is empty.
var ErrNoRecords = errors.New("no transactions recorded")

var hundred = decimal.NewFromInt(100)

// Summary totals a set of records.
type Summary struct {
	TotalIncoming decimal.Decimal
	TotalOutgoing decimal.Decimal
	Net           decimal.Decimal
}

// Combine adds two summaries.
func (s Summary) Combine(o Summary) Summary {
	return Summary{
		TotalIncoming: s.TotalIncoming.Add(o.TotalIncoming),
		TotalOutgoing: s.TotalOutgoing.Add(o.TotalOutgoing),
		Net:           s.Net.Add(o.Net),
	}
}

// Share is one purpose's slice of outgoing value.
type Share struct {
	Purpose    string
	Amount     decimal.Decimal
	Percentage decimal.Decimal
}

// Breakdown groups outgoing value by purpose.
type Breakdown struct {
	Total  decimal.Decimal
	Shares []Share
}

// Filter keeps the records of alias; an empty alias keeps everything.
func Filter(records []storage.LedgerRecord, alias string) []storage.LedgerRecord {
	if alias == "" {
		return records
	}
	out := make([]storage.LedgerRecord, 0, len(records))
	for _, r := range records {
		if r.WalletAlias == alias {
			out = append(out, r)
		}
	}
	return out
}

// Summarize totals incoming and outgoing value for alias.
func Summarize(records []storage.LedgerRecord, alias string) (Summary, error) {
	filtered := Filter(records, alias)
	if len(filtered) == 0 {
		return Summary{}, ErrNoRecords
	}

	s := Summary{TotalIncoming: decimal.Zero, TotalOutgoing: decimal.Zero}
	for _, r := range filtered {
		switch r.Type {
		case storage.Incoming:
			s.TotalIncoming = s.TotalIncoming.Add(r.Amount)
		case storage.Outgoing:
			s.TotalOutgoing = s.TotalOutgoing.Add(r.Amount)
		}
	}
	s.Net = s.TotalIncoming.Sub(s.TotalOutgoing)
	return s, nil
}

// Categorize splits outgoing value for alias by purpose, largest first.
func Categorize(records []storage.LedgerRecord, alias string) (Breakdown, error) {
	filtered := Filter(records, alias)
	if len(filtered) == 0 {
		return Breakdown{}, ErrNoRecords
	}

	byPurpose := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, r := range filtered {
		if r.Type != storage.Outgoing {
			continue
		}
		byPurpose[r.Purpose] = byPurpose[r.Purpose].Add(r.Amount)
		total = total.Add(r.Amount)
	}

	shares := make([]Share, 0, len(byPurpose))
	for purpose, amount := range byPurpose {
		pct := decimal.Zero
		if total.IsPositive() {
			pct = amount.Div(total).Mul(hundred)
		}
		shares = append(shares, Share{Purpose: purpose, Amount: amount, Percentage: pct})
	}
	sort.Slice(shares, func(i, j int) bool {
		if c := shares[i].Amount.Cmp(shares[j].Amount); c != 0 {
			return c > 0
		}
		return shares[i].Purpose < shares[j].Purpose
	})

	return Breakdown{Total: total, Shares: shares}, nil
}
