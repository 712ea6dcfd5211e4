package bot

import (
	"context"

	"github.com/m3rciful/gatebot/internal/gate"
)

// Button is one inline keyboard button. A button with URL opens the link;
// otherwise pressing it produces a ButtonPressed event with Action and Payload.
type Button struct {
	Text    string
	Action  string
	Payload string
	URL     string
}

// Keyboard is an inline keyboard laid out in rows.
type Keyboard struct {
	Rows [][]Button
}

// Transport delivers messages to chats and answers membership queries.
// Only the dispatcher calls the send methods.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string, kb *Keyboard) error
	SendMediaBatch(ctx context.Context, chatID int64, refs []string) error
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb *Keyboard) error
	gate.MembershipQuerier
}
