package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/gatebot/core/logger"
	"github.com/m3rciful/gatebot/internal/catalog"
)

type commandHandler func(ctx context.Context, ev CommandReceived) error

// AdminCommands lists the admin command names.
var AdminCommands = []string{"addvideo", "bulkadd", "done", "removeid", "removevideo", "setgate", "fsub", "stats", "restart"}

func (d *Dispatcher) adminCommands() map[string]commandHandler {
	return map[string]commandHandler{
		"addvideo":    d.addVideo,
		"bulkadd":     d.bulkAdd,
		"done":        d.done,
		"removeid":    d.removeByID,
		"removevideo": d.removeByPosition,
		"setgate":     d.setGate,
		"fsub":        d.forceSub,
		"stats":       d.showStats,
		"restart":     d.restartProcess,
	}
}

// answer reports the outcome of an admin command. Validation, not found and
// range errors are shown to the admin; other errors get the generic reply.
func (d *Dispatcher) answer(ctx context.Context, ev CommandReceived, text string, err error) error {
	if err == nil {
		return d.tr.SendText(ctx, ev.ChatID, text, nil)
	}
	var (
		ve *catalog.ValidationError
		nf *catalog.NotFoundError
		re *catalog.RangeError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &nf), errors.As(err, &re):
		logger.Info(ctx, component, "admin.rejected_input",
			slog.String("op", ev.Name),
			slog.String("err", err.Error()),
		)
		return d.tr.SendText(ctx, ev.ChatID, "⚠️ "+userMessage(err), nil)
	}
	return d.fail(ctx, ev.ChatID, err)
}

func userMessage(err error) string {
	var (
		ve *catalog.ValidationError
		nf *catalog.NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		if ve.Field == "usage" {
			return "Usage: " + ve.Reason
		}
		return ve.Reason
	case errors.As(err, &nf):
		return fmt.Sprintf("No video with id %d", nf.ID)
	case errors.Is(err, catalog.ErrRange):
		return "Invalid index or category"
	}
	return err.Error()
}

func usage(text string) error {
	return &catalog.ValidationError{Field: "usage", Reason: text}
}

func (d *Dispatcher) addVideo(ctx context.Context, ev CommandReceived) error {
	category := strings.Join(ev.Args, " ")
	err := d.ingest.StartSingle(ctx, ev.User.ID, category)
	text := "📤 Send the video now; its caption will be used as category."
	if category != "" {
		text = fmt.Sprintf("📤 Send the video for %s now.", category)
	}
	return d.answer(ctx, ev, text, err)
}

func (d *Dispatcher) bulkAdd(ctx context.Context, ev CommandReceived) error {
	if len(ev.Args) != 1 {
		return d.answer(ctx, ev, "", usage("/bulkadd <category>"))
	}
	category := ev.Args[0]
	err := d.ingest.StartBulk(ctx, ev.User.ID, category)
	return d.answer(ctx, ev, fmt.Sprintf("📤 Send multiple videos for %s, then /done", category), err)
}

func (d *Dispatcher) done(ctx context.Context, ev CommandReceived) error {
	n, err := d.ingest.FinishBulk(ctx, ev.User.ID)
	return d.answer(ctx, ev, fmt.Sprintf("✅ Bulk add finished, %d videos stored.", n), err)
}

func (d *Dispatcher) removeByID(ctx context.Context, ev CommandReceived) error {
	if len(ev.Args) != 1 {
		return d.answer(ctx, ev, "", usage("/removeid <id>"))
	}
	id, err := strconv.ParseInt(ev.Args[0], 10, 64)
	if err != nil || id <= 0 {
		return d.answer(ctx, ev, "", usage("/removeid <id>"))
	}
	item, err := d.store.DeleteByID(ctx, id)
	return d.answer(ctx, ev, fmt.Sprintf("🗑️ Removed video #%d from %s", item.ID, item.Category), err)
}

func (d *Dispatcher) removeByPosition(ctx context.Context, ev CommandReceived) error {
	if len(ev.Args) != 2 {
		return d.answer(ctx, ev, "", usage("/removevideo <category> <index>"))
	}
	index, err := strconv.Atoi(ev.Args[1])
	if err != nil || index < 0 {
		return d.answer(ctx, ev, "", usage("/removevideo <category> <index>"))
	}
	category := ev.Args[0]
	item, err := d.store.DeleteByPosition(ctx, category, index)
	return d.answer(ctx, ev, fmt.Sprintf("🗑️ Removed video %d (#%d) from %s", index, item.ID, category), err)
}

// parseGateArgs reads key=value pairs. Omitted keys are unset in the result.
func parseGateArgs(args []string) (catalog.GateConfig, error) {
	var cfg catalog.GateConfig
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return cfg, usage("/setgate [invite=<url>] [channel=<@name|id>] [age=on|off]")
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(key) {
		case "invite":
			cfg.InviteLink = value
		case "channel":
			if value != "" && !validChannelRef(value) {
				return cfg, &catalog.ValidationError{Field: "channel", Reason: "channel must be @username or a numeric chat id"}
			}
			cfg.Channel = value
		case "age":
			switch strings.ToLower(value) {
			case "on", "true", "yes", "1":
				cfg.RequireAge = true
			case "off", "false", "no", "0":
				cfg.RequireAge = false
			default:
				return cfg, &catalog.ValidationError{Field: "age", Reason: "age must be on or off"}
			}
		default:
			return cfg, &catalog.ValidationError{Field: key, Reason: "unknown setting " + key}
		}
	}
	return cfg, nil
}

func validChannelRef(ref string) bool {
	if strings.HasPrefix(ref, "@") {
		return len(ref) > 1
	}
	_, err := strconv.ParseInt(ref, 10, 64)
	return err == nil
}

// setGate replaces the whole gate configuration; omitted settings are cleared.
func (d *Dispatcher) setGate(ctx context.Context, ev CommandReceived) error {
	cfg, err := parseGateArgs(ev.Args)
	if err != nil {
		return d.answer(ctx, ev, "", err)
	}
	err = d.store.ReplaceGateConfig(ctx, cfg)
	if err == nil {
		logger.Info(ctx, component, "gate.replaced",
			slog.String("channel", cfg.Channel),
			slog.Bool("require_age", cfg.RequireAge),
			slog.Bool("invite", cfg.InviteLink != ""),
		)
	}
	return d.answer(ctx, ev, gateText(cfg), err)
}

func (d *Dispatcher) forceSub(ctx context.Context, ev CommandReceived) error {
	if len(ev.Args) != 1 {
		return d.answer(ctx, ev, "", usage("/fsub <invite_link>"))
	}
	cfg := catalog.GateConfig{InviteLink: ev.Args[0]}
	err := d.store.ReplaceGateConfig(ctx, cfg)
	return d.answer(ctx, ev, "✅ Force sub channel set: "+cfg.InviteLink, err)
}

func (d *Dispatcher) showStats(ctx context.Context, ev CommandReceived) error {
	if len(ev.Args) > 0 {
		category := strings.Join(ev.Args, " ")
		n, err := d.stats.TotalItems(ctx, category)
		return d.answer(ctx, ev, fmt.Sprintf("🎬 %s: %d videos", category, n), err)
	}
	snap, err := d.stats.Snapshot(ctx)
	return d.answer(ctx, ev, statsText(snap), err)
}

func (d *Dispatcher) restartProcess(ctx context.Context, ev CommandReceived) error {
	if err := d.tr.SendText(ctx, ev.ChatID, "♻️ Restarting…", nil); err != nil {
		return err
	}
	logger.Warn(ctx, component, "process.restart", slog.Int64("user_id", ev.User.ID))
	if d.opts.Restart != nil {
		d.opts.Restart()
	}
	return nil
}
