// Package bot routes inbound events to the session machine, the access gate,
// the ingestion pipeline and the catalog, and renders the replies.
//
// The package does not depend on any chat client: events come in as plain
// structs and replies go out through Transport.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/gatebot/core/logger"
	"github.com/m3rciful/gatebot/core/telegram/state"
	"github.com/m3rciful/gatebot/internal/catalog"
	"github.com/m3rciful/gatebot/internal/gate"
	"github.com/m3rciful/gatebot/internal/ingest"
	"github.com/m3rciful/gatebot/internal/pagination"
	"github.com/m3rciful/gatebot/internal/stats"
)

const component = "service.dispatch"

// Reject policies for admin commands sent by non-admins.
const (
	RejectSilent = "silent"
	RejectReply  = "reply"
)

// ErrUnknownAction is returned for buttons the dispatcher does not handle.
var ErrUnknownAction = errors.New("unknown button action")

// Options tunes the dispatcher.
type Options struct {
	// Categories offered in the menu. When empty, the categories present in
	// the catalog are offered.
	Categories   []string
	PageSize     int
	RejectPolicy string
	// LogChannelID receives new user notices when non-zero.
	LogChannelID int64
	// Restart is called by the restart command.
	Restart func()
}

// Deps are the collaborators of a Dispatcher.
type Deps struct {
	Store     catalog.Store
	Sessions  *state.Manager
	Gate      *gate.Evaluator
	Ingest    *ingest.Pipeline
	Stats     *stats.Reporter
	Transport Transport
}

// Dispatcher handles inbound events. It is safe for concurrent use; events
// of one user are serialized by the session manager.
type Dispatcher struct {
	store    catalog.Store
	sessions *state.Manager
	gate     *gate.Evaluator
	ingest   *ingest.Pipeline
	stats    *stats.Reporter
	tr       Transport
	opts     Options
}

// New builds a dispatcher.
func New(deps Deps, opts Options) *Dispatcher {
	if opts.PageSize <= 0 || opts.PageSize > pagination.DefaultPageSize {
		opts.PageSize = pagination.DefaultPageSize
	}
	if opts.RejectPolicy == "" {
		opts.RejectPolicy = RejectSilent
	}
	return &Dispatcher{
		store:    deps.Store,
		sessions: deps.Sessions,
		gate:     deps.Gate,
		ingest:   deps.Ingest,
		stats:    deps.Stats,
		tr:       deps.Transport,
		opts:     opts,
	}
}

// Dispatch routes any supported event value.
func (d *Dispatcher) Dispatch(ctx context.Context, ev any) error {
	switch e := ev.(type) {
	case CommandReceived:
		return d.HandleCommand(ctx, e)
	case ButtonPressed:
		return d.HandleButton(ctx, e)
	case MediaUploaded:
		return d.HandleMedia(ctx, e)
	case JoinRequested:
		return d.HandleJoinRequest(ctx, e)
	case MembershipChanged:
		return d.HandleMembership(ctx, e)
	}
	return fmt.Errorf("unsupported event %T", ev)
}

// HandleCommand runs a user or admin command.
func (d *Dispatcher) HandleCommand(ctx context.Context, ev CommandReceived) error {
	switch ev.Name {
	case "start":
		return d.start(ctx, ev)
	case "help":
		return d.help(ctx, ev)
	}
	h, ok := d.adminCommands()[ev.Name]
	if !ok {
		return nil
	}
	if !d.ingest.IsAdmin(ev.User.ID) {
		return d.reject(ctx, ev)
	}
	return h(ctx, ev)
}

// HandleButton runs a button action.
func (d *Dispatcher) HandleButton(ctx context.Context, ev ButtonPressed) error {
	if err := d.touch(ctx, ev.User); err != nil {
		return d.fail(ctx, ev.ChatID, err)
	}
	var err error
	switch ev.Action {
	case ActionAge:
		err = d.confirmAge(ctx, ev)
	case ActionCategory:
		err = d.selectCategory(ctx, ev, false)
	case ActionContinue:
		err = d.selectCategory(ctx, ev, true)
	case ActionNav:
		err = d.paginate(ctx, ev)
	case ActionMenu:
		err = d.menu(ctx, ev)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, ev.Action)
	}
	if err != nil {
		return d.fail(ctx, ev.ChatID, err)
	}
	return nil
}

// HandleMedia passes an upload to the ingestion pipeline. Uploads that are
// not part of an ingestion are dropped silently.
func (d *Dispatcher) HandleMedia(ctx context.Context, ev MediaUploaded) error {
	res, err := d.ingest.OnMediaReceived(ctx, ev.User.ID, ev.ContentRef, ev.Caption)
	if errors.Is(err, catalog.ErrValidation) {
		return d.tr.SendText(ctx, ev.ChatID, "⚠️ "+userMessage(err), nil)
	}
	if err != nil {
		return d.fail(ctx, ev.ChatID, err)
	}
	switch res.Outcome {
	case ingest.Stored:
		if res.Mode == state.ModeSingle {
			return d.tr.SendText(ctx, ev.ChatID, fmt.Sprintf("✅ Video added to %s (#%d)", res.Category, res.Item.ID), nil)
		}
	case ingest.Duplicate:
		return d.tr.SendText(ctx, ev.ChatID, fmt.Sprintf("⚠️ Already in %s, skipped.", res.Category), nil)
	}
	return nil
}

// HandleJoinRequest records a pending join for the configured channel.
func (d *Dispatcher) HandleJoinRequest(ctx context.Context, ev JoinRequested) error {
	return d.recordJoin(ctx, ev.User.ID, ev.Channel, catalog.JoinPending)
}

// HandleMembership records verified or revoked membership for the
// configured channel.
func (d *Dispatcher) HandleMembership(ctx context.Context, ev MembershipChanged) error {
	switch {
	case ev.NewStatus.Active():
		return d.recordJoin(ctx, ev.User.ID, ev.Channel, catalog.JoinVerified)
	case ev.NewStatus.Status == gate.StatusLeft, ev.NewStatus.Status == gate.StatusKicked:
		return d.recordJoin(ctx, ev.User.ID, ev.Channel, catalog.JoinNone)
	}
	return nil
}

func (d *Dispatcher) recordJoin(ctx context.Context, userID int64, ch Channel, status catalog.JoinStatus) error {
	cfg, err := d.store.GateConfig(ctx)
	if err != nil {
		return err
	}
	if !ch.Matches(cfg.Channel) {
		logger.Debug(ctx, component, "join.skip",
			slog.Int64("user_id", userID),
			slog.Int64("chat_id", ch.ID),
			slog.String("cause", "channel not gated"),
		)
		return nil
	}
	if err := d.store.SetJoinStatus(ctx, userID, status); err != nil {
		return err
	}
	logger.Info(ctx, component, "join.record",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("join_status", string(status)),
	)
	return nil
}

// touch creates the user on first contact and announces new users.
func (d *Dispatcher) touch(ctx context.Context, u User) error {
	created, err := d.store.EnsureUser(ctx, u.ID, u.FirstName)
	if err != nil {
		return err
	}
	if created {
		logger.Info(ctx, component, "user.created", slog.Int64("user_id", u.ID))
		if d.opts.LogChannelID != 0 {
			text := fmt.Sprintf("👤 New user: %s (%d)", u.FirstName, u.ID)
			if err := d.tr.SendText(ctx, d.opts.LogChannelID, text, nil); err != nil {
				logger.Warn(ctx, component, "user.notify",
					slog.String("status", "error"),
					slog.String("err", err.Error()),
				)
			}
		}
	}
	return nil
}

func (d *Dispatcher) reject(ctx context.Context, ev CommandReceived) error {
	err := &catalog.PermissionError{UserID: ev.User.ID, Op: ev.Name}
	logger.Info(ctx, component, "admin.reject",
		slog.String("op", ev.Name),
		slog.String("err", err.Error()),
	)
	if d.opts.RejectPolicy == RejectReply {
		return d.tr.SendText(ctx, ev.ChatID, textAdminOnly, nil)
	}
	return nil
}

// fail tells the user that handling failed and returns err for logging.
// Stale or invalid transitions are not reported to the user.
func (d *Dispatcher) fail(ctx context.Context, chatID int64, err error) error {
	if errors.Is(err, state.ErrInvalidTransition) {
		logger.Debug(ctx, component, "session.reject", slog.String("err", err.Error()))
		return nil
	}
	if sendErr := d.tr.SendText(ctx, chatID, textFailure, nil); sendErr != nil {
		return errors.Join(err, sendErr)
	}
	return err
}

// categories returns the configured menu or the categories in the catalog.
func (d *Dispatcher) categories(ctx context.Context) ([]string, error) {
	if len(d.opts.Categories) > 0 {
		return d.opts.Categories, nil
	}
	counts, err := d.store.Categories(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(counts))
	for _, c := range counts {
		out = append(out, c.Category)
	}
	return out, nil
}

// reply edits messageID when it is known, otherwise sends a new message.
func (d *Dispatcher) reply(ctx context.Context, chatID int64, messageID int, text string, kb *Keyboard) error {
	if messageID != 0 {
		return d.tr.EditMessage(ctx, chatID, messageID, text, kb)
	}
	return d.tr.SendText(ctx, chatID, text, kb)
}
