package router

import (
	tg "github.com/m3rciful/gatebot/core/telegram"
	"github.com/m3rciful/gatebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// TextOptions controls fallback behaviour for text updates.
type TextOptions struct {
	UnknownText tele.HandlerFunc
}

// TextRoutes handles text no command route claimed. Text naming a public
// command without its slash is resolved through the registry; anything else
// goes to the fallbacks.
func TextRoutes(reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return handleWithSummary(c, "command."+normalizeHandlerName(key), func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", func() error { return fb(c) })
			}
		}
		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", func() error { return opts.UnknownText(c) })
		}
		logHandlerSummary(c, "unknown_text", outcomeSkip, nil)
		return nil
	}
	return []tg.Route{{
		Endpoint: tele.OnText,
		Handler:  middleware.RecoverMiddleware(handler),
	}}
}

// EventRoute wraps h for endpoint with panic recovery and the handler
// summary log line.
func EventRoute(endpoint, name string, h tele.HandlerFunc) tg.Route {
	handler := func(c tele.Context) error {
		return handleWithSummary(c, name, func() error { return h(c) })
	}
	return tg.Route{
		Endpoint: endpoint,
		Handler:  middleware.RecoverMiddleware(handler),
	}
}
