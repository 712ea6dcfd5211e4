package middleware

import (
	"log/slog"

	"github.com/m3rciful/gatebot/core/logger"
	tghelpers "github.com/m3rciful/gatebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	// IsAdmin decides whether a user may pass; nil lets nobody through.
	IsAdmin func(userID int64) bool
	// OnReject runs for rejected users; nil drops the update silently.
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware lets only admins reach downstream handlers.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user != nil && opts.IsAdmin != nil && opts.IsAdmin(user.ID) {
				return next(c)
			}
			var uid int64
			if user != nil {
				uid = user.ID
			}
			logger.Info(tghelpers.BuildContext(c), "tg", "admin.reject",
				slog.Int64("user_id", uid),
				slog.String("payload", logger.SanitizeLimit(c.Text(), 64)),
			)
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
