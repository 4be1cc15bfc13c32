// Package bot routes chat commands and option selections to the service.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"walletledger/internal/logging"
	"walletledger/internal/notify"
	"walletledger/internal/report"
	"walletledger/internal/storage"
	"walletledger/internal/wallet"
)

// Operations is the service surface the bot drives.
type Operations interface {
	Subscribe(ctx context.Context, alias, address, target string) (storage.Wallet, error)
	Unsubscribe(ctx context.Context, alias string) (storage.Wallet, error)
	Wallets(ctx context.Context) ([]storage.Wallet, error)
	Summary(ctx context.Context, alias string) (report.Summary, error)
	Categories(ctx context.Context, alias string) (report.Breakdown, error)
	Select(ctx context.Context, sel notify.Selection) (storage.LedgerRecord, error)
	Emoji(purpose string) string
}

// CallbackAnswerer acknowledges option presses.
type CallbackAnswerer interface {
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Options tune the bot replies.
type Options struct {
	// GeneratorInterval is mentioned on subscribe when synthetic traffic is on.
	GeneratorInterval time.Duration
}

// Bot handles one update at a time.
type Bot struct {
	ops      Operations
	chat     notify.Notifier
	answerer CallbackAnswerer
	opts     Options
	logger   zerolog.Logger
}

// New builds a Bot. answerer may be nil.
func New(ops Operations, chat notify.Notifier, answerer CallbackAnswerer, opts Options, logger zerolog.Logger) *Bot {
	return &Bot{
		ops:      ops,
		chat:     chat,
		answerer: answerer,
		opts:     opts,
		logger:   logging.Component(logger, "bot"),
	}
}

// HandleUpdate dispatches a Telegram update.
func (b *Bot) HandleUpdate(ctx context.Context, u notify.Update) {
	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		b.handleMessage(ctx, u.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *notify.Message) {
	cmd, args, ok := parseCommand(msg.Text)
	if !ok {
		return
	}
	target := notify.ChatTarget(msg.Chat.ID)
	b.logger.Debug().Str("command", cmd).Strs("args", args).Str("target", target).Msg("command received")

	var reply string
	switch cmd {
	case "start", "help":
		reply = helpText
	case "subscribe":
		reply = b.subscribe(ctx, target, args)
	case "unsubscribe":
		reply = b.unsubscribe(ctx, args)
	case "list":
		reply = b.list(ctx)
	case "summary":
		reply = b.summary(ctx, args)
	case "categories":
		reply = b.categories(ctx, args)
	default:
		return
	}
	b.reply(ctx, target, reply)
}

func (b *Bot) handleCallback(ctx context.Context, q *notify.CallbackQuery) {
	if b.answerer != nil {
		if err := b.answerer.AnswerCallback(ctx, q.ID, ""); err != nil {
			b.logger.Warn().Err(err).Msg("answer callback failed")
		}
	}

	sel, ok := q.Selection()
	if !ok {
		b.logger.Warn().Str("payload", q.Data).Msg("callback without message")
		return
	}
	if _, err := b.ops.Select(ctx, sel); err != nil {
		b.logger.Error().Err(err).Str("payload", sel.Token).Str("message_text", sel.Text).Msg("selection failed")
		b.reply(ctx, sel.Handle.Target, selectionFailedText)
	}
}

func (b *Bot) reply(ctx context.Context, target, text string) {
	if _, err := b.chat.Send(ctx, target, text, nil); err != nil {
		b.logger.Error().Err(err).Str("target", target).Msg("reply failed")
	}
}

func (b *Bot) subscribe(ctx context.Context, target string, args []string) string {
	if len(args) < 2 {
		return subscribeUsageText
	}
	alias, address := args[0], args[1]

	w, err := b.ops.Subscribe(ctx, alias, address, target)
	if err != nil {
		return describeError(err, alias)
	}

	var sb strings.Builder
	sb.WriteString("✅ Successfully added wallet!\n\n")
	fmt.Fprintf(&sb, "🏷️ Alias: %s\n", w.Alias)
	fmt.Fprintf(&sb, "📝 Address: %s\n\n", w.Address)
	sb.WriteString("🔍 Now monitoring transactions...")
	if b.opts.GeneratorInterval > 0 {
		fmt.Fprintf(&sb, "\n💡 Mock transactions will be generated every %s for testing.", b.opts.GeneratorInterval)
	}
	return sb.String()
}

func (b *Bot) unsubscribe(ctx context.Context, args []string) string {
	if len(args) == 0 {
		wallets, err := b.ops.Wallets(ctx)
		if err != nil {
			return describeError(err, "")
		}
		if len(wallets) == 0 {
			return noWalletsText
		}
		return "⚠️ Please specify which wallet to unsubscribe.\n\n" +
			"📝 Usage: /unsubscribe <alias>\n\n" +
			"📋 Currently monitored wallets:\n" + walletLines(wallets, "🏷️ %q: %s", "\n")
	}

	w, err := b.ops.Unsubscribe(ctx, args[0])
	if err != nil {
		return describeError(err, args[0])
	}
	return fmt.Sprintf("✅ Successfully unsubscribed!\n\n🏷️ Alias: %s\n📝 Address: %s", w.Alias, ShortAddress(w.Address))
}

func (b *Bot) list(ctx context.Context) string {
	wallets, err := b.ops.Wallets(ctx)
	if err != nil {
		return describeError(err, "")
	}
	if len(wallets) == 0 {
		return noWalletsText
	}
	return "📋 Monitored Wallets:\n\n" + walletLines(wallets, "🏷️ %s:\n📝 %s", "\n") +
		"\n\n💡 Use /summary <alias> to view specific wallet statistics"
}

func (b *Bot) summary(ctx context.Context, args []string) string {
	alias := firstArg(args)
	s, err := b.ops.Summary(ctx, alias)
	if err != nil {
		return describeError(err, alias)
	}
	return report.RenderSummary(s, alias)
}

func (b *Bot) categories(ctx context.Context, args []string) string {
	alias := firstArg(args)
	bd, err := b.ops.Categories(ctx, alias)
	if err != nil {
		return describeError(err, alias)
	}
	return report.RenderBreakdown(bd, alias, b.ops.Emoji)
}

// parseCommand splits "/cmd@bot a b" into "cmd" and its arguments.
func parseCommand(text string) (string, []string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), fields[1:], cmd != ""
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func walletLines(wallets []storage.Wallet, format, sep string) string {
	lines := make([]string, 0, len(wallets))
	for _, w := range wallets {
		lines = append(lines, fmt.Sprintf(format, w.Alias, ShortAddress(w.Address)))
	}
	return strings.Join(lines, sep)
}

// ShortAddress keeps the first 8 and last 6 characters of long addresses.
func ShortAddress(address string) string {
	if len(address) <= 14 {
		return address
	}
	return address[:8] + "..." + address[len(address)-6:]
}

func describeError(err error, alias string) string {
	switch {
	case errors.Is(err, report.ErrNoRecords):
		return report.NoRecordsText(alias)
	case errors.Is(err, wallet.ErrAliasConflict):
		return fmt.Sprintf("❌ Alias %q is already in use.\n💡 Please choose a different alias.", alias)
	case errors.Is(err, wallet.ErrNotFound):
		return fmt.Sprintf("❌ Wallet alias %q not found.\n💡 Use /list to see all monitored wallets.", alias)
	case errors.Is(err, wallet.ErrInvalidAlias):
		return "❌ Invalid alias: " + err.Error() + "\n💡 Use a short alias without spaces or underscores."
	case errors.Is(err, wallet.ErrInvalidAddress):
		return "❌ Invalid wallet address: " + err.Error()
	default:
		return genericFailureText
	}
}
