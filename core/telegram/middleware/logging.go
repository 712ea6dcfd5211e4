package middleware

import (
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/m3rciful/gatebot/core/logger"
	tghelpers "github.com/m3rciful/gatebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// recentUpdates remembers update IDs already logged, so wrapping the same
// update in the chain twice logs one receipt line.
var recentUpdates = expirable.NewLRU[int, struct{}](4096, nil, 10*time.Second)

func alreadyLogged(updateID int) bool {
	if recentUpdates.Contains(updateID) {
		return true
	}
	recentUpdates.Add(updateID, struct{}{})
	return false
}

// LoggerMiddleware starts the request context for the update and logs one
// sampled receipt line.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.Begin(c)
		upd := c.Update()
		user := c.Sender()
		chat := c.Chat()

		if !logger.ShouldSampleDebug() || alreadyLogged(upd.ID) {
			return next(c)
		}

		kind := UpdateKind(upd)
		attrs := []slog.Attr{
			slog.String("status", "ok"),
			slog.Int("update_id", upd.ID),
			slog.String("kind", kind),
		}
		if chat != nil {
			attrs = append(attrs, slog.Int64("chat_id", chat.ID), slog.String("chat_type", string(chat.Type)))
		}
		if user != nil && user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		switch kind {
		case "callback":
			key, payload := parseCallback(upd.Callback)
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
			if payload != "" {
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
			}
		case "message":
			if t := c.Text(); t != "" {
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
			}
		case "media":
			if caption := upd.Message.Caption; caption != "" {
				attrs = append(attrs, slog.String("caption", logger.SanitizeLimit(caption, 128)))
			}
		}
		logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", attrs...)
		return next(c)
	}
}
