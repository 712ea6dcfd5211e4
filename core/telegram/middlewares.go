package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/gatebot/core/config"
	"github.com/m3rciful/gatebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares builds the shared chain: panic recovery, the per-user
// rate limit when enabled, the request context and update metrics.
// Media from admins is never limited: an album arrives as a burst of
// updates and every item must reach ingestion.
// The logger middleware must run before metrics, which extends its context.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited tele.HandlerFunc) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
	}

	if cfg != nil && cfg.RateLimit.IntervalMS > 0 {
		ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
		for _, t := range cfg.RateLimit.ExcludeUpdates {
			ex[strings.ToLower(t)] = struct{}{}
		}
		mws = append(mws, Middleware{
			Name: "rate_limit",
			Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
				Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
				Exclude:   ex,
				MaxUsers:  cfg.RateLimit.TrackedUsers,
				Exempt:    adminMedia(cfg.Telegram),
				OnLimited: onLimited,
			}),
		})
	}

	return append(mws,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
}

func adminMedia(tg coreconfig.TelegramConfig) func(tele.Context, string) bool {
	return func(c tele.Context, kind string) bool {
		return kind == coreconfig.UpdateMedia && c.Sender() != nil && tg.IsAdmin(c.Sender().ID)
	}
}
