package bot

import (
	"strconv"
	"strings"

	"github.com/m3rciful/gatebot/internal/gate"
)

// User identifies the sender of an event.
type User struct {
	ID        int64
	FirstName string
}

// Channel identifies the chat a join or membership event refers to.
type Channel struct {
	ID       int64
	Username string
}

// Matches reports whether ref (a numeric chat ID or an @username) names c.
func (c Channel) Matches(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return false
	}
	if strings.HasPrefix(ref, "@") {
		return c.Username != "" && strings.EqualFold(ref[1:], c.Username)
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	return err == nil && id == c.ID
}

// CommandReceived is a slash command. Name has no leading slash.
type CommandReceived struct {
	Name   string
	Args   []string
	User   User
	ChatID int64
}

// ButtonPressed is an inline keyboard press. MessageID is the message that
// carried the button, zero when unknown.
type ButtonPressed struct {
	Action    string
	Payload   string
	User      User
	ChatID    int64
	MessageID int
}

// MediaUploaded is a video sent to the bot.
type MediaUploaded struct {
	ContentRef string
	Caption    string
	User       User
	ChatID     int64
}

// JoinRequested is a request to join a channel.
type JoinRequested struct {
	User    User
	Channel Channel
}

// MembershipChanged reports a user's new status in a channel.
type MembershipChanged struct {
	User      User
	Channel   Channel
	NewStatus gate.Membership
}
