package report

import (
	"fmt"
	"strings"
)

// EmojiFunc decorates a purpose.
type EmojiFunc func(purpose string) string

func scope(alias string) string {
	if alias == "" {
		return " (All Wallets)"
	}
	return fmt.Sprintf(" for wallet %q", alias)
}

// RenderSummary formats a summary for chat.
func RenderSummary(s Summary, alias string) string {
	trend := "➡️"
	switch {
	case s.Net.IsPositive():
		trend = "↗️"
	case s.Net.IsNegative():
		trend = "↘️"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Financial Summary%s\n\n", scope(alias))
	fmt.Fprintf(&b, "📥 Total Income: %s\n", s.TotalIncoming.StringFixed(2))
	fmt.Fprintf(&b, "📤 Total Spending: %s\n", s.TotalOutgoing.StringFixed(2))
	fmt.Fprintf(&b, "💰 Net Balance: %s %s", s.Net.StringFixed(2), trend)
	return b.String()
}

// RenderBreakdown formats category shares for chat.
func RenderBreakdown(bd Breakdown, alias string, emoji EmojiFunc) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Spending by Categories%s\n\n", scope(alias))
	for _, s := range bd.Shares {
		fmt.Fprintf(&b, "%s %s: %s (%s%%)\n", emoji(s.Purpose), s.Purpose, s.Amount.StringFixed(2), s.Percentage.StringFixed(1))
	}
	fmt.Fprintf(&b, "\n💰 Total Spending: %s", bd.Total.StringFixed(2))
	return b.String()
}

// NoRecordsText is the reply for an empty ledger or alias.
func NoRecordsText(alias string) string {
	if alias == "" {
		return "📭 No transactions recorded yet!"
	}
	return fmt.Sprintf("📭 No transactions found for wallet %q", alias)
}
