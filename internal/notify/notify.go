// Package notify delivers operator-facing messages with selectable options and
// receives the operator's selections back.
package notify

import (
	"context"
	"strconv"
)

// Option is one selectable choice attached to a message.
type Option struct {
	Label string
	Token string
}

// MessageHandle identifies a delivered message so it can be edited later.
type MessageHandle struct {
	Target    string
	MessageID int64
}

// Selection is an operator choice on a previously delivered message.
type Selection struct {
	Handle     MessageHandle
	Text       string
	Token      string
	CallbackID string
}

// Notifier sends and edits messages in a chat.
type Notifier interface {
	Send(ctx context.Context, target, text string, options []Option) (MessageHandle, error)
	Edit(ctx context.Context, handle MessageHandle, text string) error
}

// ChatTarget renders a numeric chat id as a notifier target.
func ChatTarget(id int64) string {
	return strconv.FormatInt(id, 10)
}
