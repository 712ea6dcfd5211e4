// Package commands describes slash commands kept in the registry.
package commands

import tele "gopkg.in/telebot.v4"

// Command is a slash command with its handler and menu metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are wrapped with the admin check and listed only in
	// admin chats.
	AdminOnly bool
	Hidden    bool
	Aliases   []string
}
