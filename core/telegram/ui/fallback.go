// Package ui declares the handlers a bot supplies for updates no route claims.
package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider supplies handlers for text that is not a command and for
// callbacks whose key is not registered. A nil handler means the update is
// dropped after logging.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}
