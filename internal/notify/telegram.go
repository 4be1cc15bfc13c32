package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"walletledger/internal/logging"
)

const (
	defaultAPIBase   = "https://api.telegram.org"
	optionsPerRow    = 2
	maxCallbackBytes = 64
)

// TelegramOptions configure the Bot API client.
type TelegramOptions struct {
	BotToken    string
	BaseURL     string
	Timeout     time.Duration
	PollTimeout time.Duration
}

// Telegram talks to the Telegram Bot API.
type Telegram struct {
	botToken    string
	baseURL     string
	pollTimeout time.Duration
	client      *http.Client
	logger      zerolog.Logger
}

// NewTelegram constructs a Bot API client.
func NewTelegram(opts TelegramOptions, logger zerolog.Logger) *Telegram {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.PollTimeout < 0 {
		opts.PollTimeout = 0
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultAPIBase
	}

	return &Telegram{
		botToken:    opts.BotToken,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		pollTimeout: opts.PollTimeout,
		// long polls hold the request open for pollTimeout
		client: &http.Client{Timeout: opts.Timeout + opts.PollTimeout},
		logger: logging.Component(logger, "telegram"),
	}
}

// Chat is the conversation a message belongs to.
type Chat struct {
	ID int64 `json:"id"`
}

// User is the sender of a message or callback.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

// Message is the subset of a Telegram message the bot reads.
type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      Chat   `json:"chat"`
	From      *User  `json:"from,omitempty"`
	Text      string `json:"text"`
}

// CallbackQuery is an inline keyboard press.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data"`
}

// Update is one entry of getUpdates.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Selection converts a callback query into a notifier selection.
func (c *CallbackQuery) Selection() (Selection, bool) {
	if c == nil || c.Message == nil {
		return Selection{}, false
	}
	return Selection{
		Handle:     MessageHandle{Target: ChatTarget(c.Message.Chat.ID), MessageID: c.Message.MessageID},
		Text:       c.Message.Text,
		Token:      c.Data,
		CallbackID: c.ID,
	}, true
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboard struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

// Send delivers text with one inline button per option.
func (t *Telegram) Send(ctx context.Context, target, text string, options []Option) (MessageHandle, error) {
	payload := map[string]any{
		"chat_id": target,
		"text":    text,
	}
	if len(options) > 0 {
		keyboard, err := buildKeyboard(options)
		if err != nil {
			return MessageHandle{}, err
		}
		payload["reply_markup"] = keyboard
	}

	var msg Message
	if err := t.call(ctx, "sendMessage", payload, &msg); err != nil {
		return MessageHandle{}, err
	}

	t.logger.Debug().Str("target", target).Int64("message_id", msg.MessageID).Int("options", len(options)).Msg("message sent")
	return MessageHandle{Target: target, MessageID: msg.MessageID}, nil
}

// Edit replaces the text of a delivered message and drops its keyboard.
func (t *Telegram) Edit(ctx context.Context, handle MessageHandle, text string) error {
	payload := map[string]any{
		"chat_id":    handle.Target,
		"message_id": handle.MessageID,
		"text":       text,
	}
	return t.call(ctx, "editMessageText", payload, nil)
}

// AnswerCallback acknowledges an inline keyboard press.
func (t *Telegram) AnswerCallback(ctx context.Context, callbackID, text string) error {
	payload := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		payload["text"] = text
	}
	return t.call(ctx, "answerCallbackQuery", payload, nil)
}

// Updates long-polls for updates after offset.
func (t *Telegram) Updates(ctx context.Context, offset int64) ([]Update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         int(t.pollTimeout / time.Second),
		"allowed_updates": []string{"message", "callback_query"},
	}
	var updates []Update
	if err := t.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// UpdateHandler consumes updates one at a time.
type UpdateHandler func(ctx context.Context, update Update)

// Poll feeds updates to handle sequentially until ctx is cancelled.
func (t *Telegram) Poll(ctx context.Context, handle UpdateHandler) error {
	var offset int64
	retry := time.Second

	for {
		updates, err := t.Updates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.logger.Warn().Err(err).Dur("retry_in", retry).Msg("getUpdates failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retry):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			handle(ctx, update)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (t *Telegram) call(ctx context.Context, method string, payload any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&envelope)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && envelope.Description != "" {
			return fmt.Errorf("telegram %s: status %d: %s", method, resp.StatusCode, envelope.Description)
		}
		return fmt.Errorf("telegram %s: unexpected status %d", method, resp.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("decode telegram response: %w", decodeErr)
	}
	if !envelope.OK {
		return fmt.Errorf("telegram %s returned ok=false: %s", method, envelope.Description)
	}

	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("decode telegram %s result: %w", method, err)
		}
	}
	return nil
}

func buildKeyboard(options []Option) (inlineKeyboard, error) {
	rows := make([][]inlineButton, 0, (len(options)+optionsPerRow-1)/optionsPerRow)
	for i, opt := range options {
		if len(opt.Token) == 0 || len(opt.Token) > maxCallbackBytes {
			return inlineKeyboard{}, errors.New("callback data must be 1-64 bytes: " + opt.Token)
		}
		if i%optionsPerRow == 0 {
			rows = append(rows, make([]inlineButton, 0, optionsPerRow))
		}
		last := len(rows) - 1
		rows[last] = append(rows[last], inlineButton{Text: opt.Label, CallbackData: opt.Token})
	}
	return inlineKeyboard{InlineKeyboard: rows}, nil
}

var _ Notifier = (*Telegram)(nil)
