package middleware

import (
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/m3rciful/gatebot/core/logger"
	tghelpers "github.com/m3rciful/gatebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval time.Duration
	// Exclude lists update kinds (see UpdateKind) that are never limited.
	Exclude map[string]struct{}
	// MaxUsers bounds the last-seen table.
	MaxUsers int
	// Exempt, when set, lets matching updates bypass the limit entirely.
	Exempt    func(c tele.Context, kind string) bool
	OnLimited tele.HandlerFunc
}

// RateLimitMiddleware drops updates that arrive from the same user less than
// Interval after the previous accepted one. Entries expire after Interval, so
// the table only holds recently active users.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	size := opts.MaxUsers
	if size <= 0 {
		size = 10000
	}
	lastSeen := expirable.NewLRU[int64, time.Time](size, nil, opts.Interval)

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := UpdateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if opts.Exempt != nil && opts.Exempt(c, kind) {
				return next(c)
			}

			now := time.Now()
			if last, ok := lastSeen.Get(user.ID); ok && now.Sub(last) < opts.Interval {
				limitedTotal.WithLabelValues(kind).Inc()
				logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
					slog.Int64("user_id", user.ID),
					slog.String("kind", kind),
				)
				if opts.OnLimited != nil {
					_ = opts.OnLimited(c)
				}
				return nil
			}
			lastSeen.Add(user.ID, now)
			return next(c)
		}
	}
}
