package middleware

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	tghelpers "github.com/m3rciful/gatebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

var (
	updatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatebot_tg_updates_total",
			Help: "Updates received by kind",
		},
		[]string{"kind"},
	)
	repliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatebot_tg_replies_total",
			Help: "Replies sent from update handlers by method",
		},
		[]string{"method"},
	)
	limitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatebot_tg_rate_limited_total",
			Help: "Updates dropped by the rate limiter by kind",
		},
		[]string{"kind"},
	)
)

type countersKey struct{}

// replyCounters tracks what handlers of one update sent. Sends made through
// the telebot context and through RecordReply with the update's context
// both land here.
type replyCounters struct {
	mu       sync.Mutex
	messages int
	keyboard bool
}

func (r *replyCounters) add(keyboard bool) {
	r.mu.Lock()
	r.messages++
	r.keyboard = r.keyboard || keyboard
	r.mu.Unlock()
}

func countersFrom(ctx context.Context) *replyCounters {
	if ctx == nil {
		return nil
	}
	r, _ := ctx.Value(countersKey{}).(*replyCounters)
	return r
}

// RecordReply counts a message sent on behalf of the update that ctx
// belongs to.
func RecordReply(ctx context.Context, method string, keyboard bool) {
	repliesTotal.WithLabelValues(method).Inc()
	if r := countersFrom(ctx); r != nil {
		r.add(keyboard)
	}
}

// metricsContext wraps tele.Context to count replies and keyboard usage.
type metricsContext struct {
	tele.Context
	counters *replyCounters
}

func (m metricsContext) record(method string, opts []interface{}) {
	repliesTotal.WithLabelValues(method).Inc()
	m.counters.add(hasKeyboard(opts))
}
func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

func (m metricsContext) Send(what interface{}, opts ...interface{}) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		m.record("send", opts)
	}
	return err
}

func (m metricsContext) Reply(what interface{}, opts ...interface{}) error {
	err := m.Context.Reply(what, opts...)
	if err == nil {
		m.record("reply", opts)
	}
	return err
}

func (m metricsContext) Edit(what interface{}, opts ...interface{}) error {
	err := m.Context.Edit(what, opts...)
	if err == nil {
		m.record("edit", opts)
	}
	return err
}

func (m metricsContext) EditOrSend(what interface{}, opts ...interface{}) error {
	err := m.Context.EditOrSend(what, opts...)
	if err == nil {
		m.record("edit_or_send", opts)
	}
	return err
}

// MessageMetricsMiddleware counts updates by kind and instruments the
// update's context so replies made while handling it are tracked.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		updatesTotal.WithLabelValues(UpdateKind(c.Update())).Inc()
		counters := &replyCounters{}
		ctx := context.WithValue(tghelpers.BuildContext(c), countersKey{}, counters)
		tghelpers.StoreContext(c, ctx)
		return next(metricsContext{Context: c, counters: counters})
	}
}

// GetCounters reports how many messages were sent for the update and whether
// any carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	ctx, _ := tghelpers.ContextFrom(c)
	r := countersFrom(ctx)
	if r == nil {
		return 0, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages, r.keyboard
}
