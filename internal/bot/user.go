package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/gatebot/core/logger"
	"github.com/m3rciful/gatebot/core/telegram/state"
	"github.com/m3rciful/gatebot/internal/catalog"
	"github.com/m3rciful/gatebot/internal/gate"
	"github.com/m3rciful/gatebot/internal/pagination"
)

func (d *Dispatcher) start(ctx context.Context, ev CommandReceived) error {
	if err := d.touch(ctx, ev.User); err != nil {
		return d.fail(ctx, ev.ChatID, err)
	}
	err := d.sessions.Update(ctx, ev.User.ID, func(s *state.Session) error {
		next, err := d.restart(ctx, ev.User.ID, *s)
		if err != nil {
			return err
		}
		if err := d.landing(ctx, next, ev.ChatID, 0); err != nil {
			return err
		}
		*s = next
		return nil
	})
	if err != nil {
		return d.fail(ctx, ev.ChatID, err)
	}
	return nil
}

func (d *Dispatcher) help(ctx context.Context, ev CommandReceived) error {
	text := helpUser
	if d.ingest.IsAdmin(ev.User.ID) {
		text += "\n" + helpAdmin
	}
	return d.tr.SendText(ctx, ev.ChatID, text, nil)
}

// restart applies the start transition with the persisted age flag and the
// current gate configuration.
func (d *Dispatcher) restart(ctx context.Context, userID int64, s state.Session) (state.Session, error) {
	cfg, err := d.store.GateConfig(ctx)
	if err != nil {
		return s, err
	}
	if !s.AgeConfirmed {
		u, err := d.store.User(ctx, userID)
		switch {
		case err == nil:
			s.AgeConfirmed = u.AgeConfirmed
		case !errors.Is(err, catalog.ErrNotFound):
			return s, err
		}
	}
	return s.Start(cfg.RequireAge), nil
}

// resume brings a session lost to a process restart back to its landing
// stage, so buttons of old messages keep working.
func (d *Dispatcher) resume(ctx context.Context, userID int64, s *state.Session) error {
	if s.Stage != state.StageUnverified && s.Stage != "" {
		return nil
	}
	next, err := d.restart(ctx, userID, *s)
	if err != nil {
		return err
	}
	*s = next
	return nil
}

// landing shows the age prompt or the category menu for s.
func (d *Dispatcher) landing(ctx context.Context, s state.Session, chatID int64, messageID int) error {
	if s.Stage == state.StageAwaitingGate {
		return d.reply(ctx, chatID, messageID, textAgePrompt, ageKeyboard())
	}
	cats, err := d.categories(ctx)
	if err != nil {
		return err
	}
	return d.reply(ctx, chatID, messageID, textWelcome, menuKeyboard(cats))
}

func (d *Dispatcher) menu(ctx context.Context, ev ButtonPressed) error {
	return d.sessions.Update(ctx, ev.User.ID, func(s *state.Session) error {
		next, err := d.restart(ctx, ev.User.ID, *s)
		if err != nil {
			return err
		}
		if err := d.landing(ctx, next, ev.ChatID, ev.MessageID); err != nil {
			return err
		}
		*s = next
		return nil
	})
}

func (d *Dispatcher) confirmAge(ctx context.Context, ev ButtonPressed) error {
	return d.sessions.Update(ctx, ev.User.ID, func(s *state.Session) error {
		if err := d.resume(ctx, ev.User.ID, s); err != nil {
			return err
		}
		next, err := s.ConfirmAge()
		if err != nil {
			return err
		}
		if err := d.store.SetAgeConfirmed(ctx, ev.User.ID); err != nil {
			return err
		}
		if err := d.landing(ctx, next, ev.ChatID, ev.MessageID); err != nil {
			return err
		}
		*s = next
		return nil
	})
}

// selectCategory evaluates the gate for the chosen category and delivers its
// first page. ack marks the press of the continue button of a join prompt.
func (d *Dispatcher) selectCategory(ctx context.Context, ev ButtonPressed, ack bool) error {
	return d.sessions.Update(ctx, ev.User.ID, func(s *state.Session) error {
		if err := d.resume(ctx, ev.User.ID, s); err != nil {
			return err
		}
		if s.Stage == state.StageAwaitingGate {
			return d.landing(ctx, *s, ev.ChatID, 0)
		}
		if ack {
			acked, err := s.AcknowledgeJoin()
			if err != nil {
				return err
			}
			*s = acked
		}

		next, err := s.SelectCategory(ev.Payload)
		if err != nil {
			return err
		}
		granted, err := d.admit(ctx, ev.User.ID, next, ev.ChatID, ev.MessageID)
		if err != nil || !granted {
			return err
		}
		items, err := d.store.List(ctx, next.Browse.Category)
		if err != nil {
			return err
		}
		if err := d.deliver(ctx, ev.ChatID, next.Browse.Category, items, 0); err != nil {
			return err
		}
		*s = next
		return nil
	})
}

func (d *Dispatcher) paginate(ctx context.Context, ev ButtonPressed) error {
	dir := state.Direction(ev.Payload)
	return d.sessions.Update(ctx, ev.User.ID, func(s *state.Session) error {
		if err := d.resume(ctx, ev.User.ID, s); err != nil {
			return err
		}
		if s.Stage == state.StageAwaitingGate {
			return d.landing(ctx, *s, ev.ChatID, 0)
		}
		if s.Browse.Category == "" {
			return d.tr.SendText(ctx, ev.ChatID, textNoCategory, nil)
		}

		granted, err := d.admit(ctx, ev.User.ID, *s, ev.ChatID, 0)
		if err != nil || !granted {
			return err
		}
		items, err := d.store.List(ctx, s.Browse.Category)
		if err != nil {
			return err
		}
		next, err := s.Paginate(dir, len(items), d.opts.PageSize)
		if err != nil {
			return err
		}
		if next.Browse.Page == s.Browse.Page {
			return d.tr.SendText(ctx, ev.ChatID, textNoMorePages, nil)
		}
		if ev.MessageID != 0 {
			// The pressed navigation message loses its buttons.
			old := pagination.Paginate(items, s.Browse.Page, d.opts.PageSize)
			text := navText(s.Browse.Category, old, len(items), d.opts.PageSize)
			if err := d.tr.EditMessage(ctx, ev.ChatID, ev.MessageID, text, nil); err != nil {
				return err
			}
		}
		if err := d.deliver(ctx, ev.ChatID, next.Browse.Category, items, next.Browse.Page); err != nil {
			return err
		}
		*s = next
		return nil
	})
}

// admit evaluates the gate for the browsing position of s and shows the
// matching prompt when access is not granted.
func (d *Dispatcher) admit(ctx context.Context, userID int64, s state.Session, chatID int64, messageID int) (bool, error) {
	res, cfg, err := d.gate.Evaluate(ctx, gate.Request{
		UserID:       userID,
		Category:     s.Browse.Category,
		AgeConfirmed: s.AgeConfirmed,
		Acknowledged: s.Acknowledged,
	})
	if err != nil {
		return false, err
	}
	if res.Granted() {
		return true, nil
	}
	logger.Info(ctx, component, "gate.denied",
		slog.String("category", s.Browse.Category),
		slog.String("decision", string(res.Decision)),
		slog.String("cause", res.Reason),
	)
	text, kb := promptFor(res, cfg, s.Browse.Category)
	return false, d.reply(ctx, chatID, messageID, text, kb)
}

// deliver sends one page of items as an album followed by the navigation message.
func (d *Dispatcher) deliver(ctx context.Context, chatID int64, category string, items []catalog.MediaItem, page int) error {
	if len(items) == 0 {
		return d.tr.SendText(ctx, chatID, textNoVideos, backKeyboard())
	}
	pg := pagination.Paginate(items, page, d.opts.PageSize)
	refs := make([]string, 0, len(pg.Items))
	for _, it := range pg.Items {
		refs = append(refs, it.ContentRef)
	}
	if err := d.tr.SendMediaBatch(ctx, chatID, refs); err != nil {
		return err
	}
	logger.Debug(ctx, component, "page.delivered",
		slog.String("category", category),
		slog.Int("page", pg.Page),
		slog.Int("count", len(refs)),
	)
	return d.tr.SendText(ctx, chatID, navText(category, pg, len(items), d.opts.PageSize), navKeyboard(pg))
}
