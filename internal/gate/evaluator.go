package gate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/m3rciful/gatebot/core/logger"
	"github.com/m3rciful/gatebot/internal/catalog"
)

const component = "service.gate"

// DefaultQueryTimeout bounds a single membership query.
const DefaultQueryTimeout = 3 * time.Second

var decisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatebot_gate_decisions_total",
		Help: "Access gate decisions by outcome",
	},
	[]string{"decision"},
)

// MembershipQuerier asks the transport for a user's channel membership.
type MembershipQuerier interface {
	QueryChatMembership(ctx context.Context, channel string, userID int64) (Membership, error)
}

// Evaluator loads the gate inputs and applies Decide. Nothing is cached
// between calls.
type Evaluator struct {
	store   catalog.Store
	querier MembershipQuerier
	timeout time.Duration
}

// NewEvaluator builds an evaluator. A non-positive timeout selects DefaultQueryTimeout.
func NewEvaluator(store catalog.Store, querier MembershipQuerier, timeout time.Duration) *Evaluator {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &Evaluator{store: store, querier: querier, timeout: timeout}
}

// Request identifies a gated access.
type Request struct {
	UserID       int64
	Category     string
	AgeConfirmed bool
	Acknowledged bool
}

// Evaluate decides whether the request may proceed. The returned Config is
// the configuration the decision was taken against, so callers can render
// the invite link. An error is returned only when the store cannot be read.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (Result, catalog.GateConfig, error) {
	cfg, err := e.store.GateConfig(ctx)
	if err != nil {
		return Result{}, catalog.GateConfig{}, err
	}

	in := Input{
		Config:       cfg,
		AgeConfirmed: req.AgeConfirmed,
		Acknowledged: req.Acknowledged,
		Join:         catalog.JoinNone,
	}

	if cfg.RequiresMembership() && (!cfg.RequireAge || req.AgeConfirmed) {
		in.Membership, in.QueryErr = e.query(ctx, cfg.Channel, req.UserID)
		if in.QueryErr != nil {
			logger.Warn(ctx, component, "gate.query",
				slog.String("status", "error"),
				slog.String("channel", cfg.Channel),
				slog.String("err", in.QueryErr.Error()),
			)
		}
		in.Join, err = e.store.JoinStatus(ctx, req.UserID)
		if err != nil {
			return Result{}, cfg, err
		}
	}

	res := Decide(in)
	decisionsTotal.WithLabelValues(string(res.Decision)).Inc()
	logger.Debug(ctx, component, "gate.decide",
		slog.String("category", req.Category),
		slog.String("decision", string(res.Decision)),
		slog.String("cause", res.Reason),
		slog.String("join_status", string(in.Join)),
	)
	return res, cfg, nil
}

// query runs the membership query with a bounded timeout. The query keeps
// running in the background if the transport ignores cancellation; its
// late answer is discarded.
func (e *Evaluator) query(ctx context.Context, channel string, userID int64) (Membership, error) {
	if e.querier == nil {
		return Membership{}, &catalog.GateEvaluationError{Channel: channel, UserID: userID, Err: errors.New("no membership querier")}
	}
	qctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type answer struct {
		m   Membership
		err error
	}
	ch := make(chan answer, 1)
	go func() {
		m, err := e.querier.QueryChatMembership(qctx, channel, userID)
		ch <- answer{m: m, err: err}
	}()

	select {
	case a := <-ch:
		if a.err != nil {
			return Membership{}, &catalog.GateEvaluationError{Channel: channel, UserID: userID, Err: a.err}
		}
		return a.m, nil
	case <-qctx.Done():
		return Membership{}, &catalog.GateEvaluationError{Channel: channel, UserID: userID, Err: qctx.Err()}
	}
}
