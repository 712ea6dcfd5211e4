package middleware

import (
	"github.com/m3rciful/gatebot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// UpdateKind names the kind of update for rate limiting, logging and metrics.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil && (upd.Message.Video != nil || upd.Message.Document != nil):
		return "media"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	case upd.ChatJoinRequest != nil:
		return "join_request"
	case upd.ChatMember != nil:
		return "chat_member"
	}
	return "other"
}

func parseCallback(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	return callbacks.ParseCallbackData(cb)
}
