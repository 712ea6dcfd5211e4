// Package helpers bridges telebot contexts and the request-scoped
// context.Context used by services and logs.
package helpers

import (
	"context"
	"time"

	"github.com/m3rciful/gatebot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	keyContext = "gatebot.ctx"
	keyStarted = "gatebot.started"
)

// StoreContext attaches ctx to c for downstream handlers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(keyContext, ctx)
}

// ContextFrom returns the context stored on c, if any.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(keyContext).(context.Context)
	return ctx, ok && ctx != nil
}

// Begin builds a fresh request context for the update carried by c, stores
// it together with the receive time and returns it.
func Begin(c tele.Context) context.Context {
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	updateID := c.Update().ID

	ctx := logger.WithRID(context.Background(), logger.BuildRID(updateID, chatID, userID))
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	c.Set(keyStarted, time.Now())
	return ctx
}

// BuildContext returns the stored request context, creating one when no
// middleware has run yet.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := ContextFrom(c); ok {
		return ctx
	}
	return Begin(c)
}

// Started returns when Begin ran for c, or the zero time.
func Started(c tele.Context) time.Time {
	t, _ := c.Get(keyStarted).(time.Time)
	return t
}

// WithHandler tags the stored context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" || logger.HandlerFrom(ctx) == handler {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}
