// Package app assembles gatebot: storage, sessions, the access gate, the
// ingestion pipeline and the Telegram adapter around one dispatcher.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/gatebot/core/bootstrap"
	"github.com/m3rciful/gatebot/core/logger"
	tg "github.com/m3rciful/gatebot/core/telegram"
	tgsender "github.com/m3rciful/gatebot/core/telegram/sender"
	"github.com/m3rciful/gatebot/core/telegram/state"
	"github.com/m3rciful/gatebot/internal/bot"
	"github.com/m3rciful/gatebot/internal/bot/tgbot"
	"github.com/m3rciful/gatebot/internal/catalog"
	"github.com/m3rciful/gatebot/internal/catalog/sqlstore"
	"github.com/m3rciful/gatebot/internal/config"
	"github.com/m3rciful/gatebot/internal/gate"
	"github.com/m3rciful/gatebot/internal/ingest"
	"github.com/m3rciful/gatebot/internal/stats"

	tele "gopkg.in/telebot.v4"
)

const component = "app"

// App is a fully wired bot ready to run.
type App struct {
	cfg      *config.Config
	db       *sqlx.DB
	store    catalog.Store
	bot      *tele.Bot
	queue    *tgsender.Dispatcher
	registry *tg.Registry
	adapter  *tgbot.Adapter
	reporter *stats.Reporter

	restart     chan struct{}
	restartOnce sync.Once
}

// Bootstrap connects and migrates the database, seeds the configured gate
// and builds the app on top of the SQL store.
func Bootstrap(ctx context.Context, cfg *config.Config) (*App, error) {
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:   &cfg.Config,
		Database: cfg.Database,
		Seeders:  []bootstrap.Seeder{GateSeeder(cfg.Gate.Seed())},
	})
	if err != nil {
		return nil, err
	}
	b, err := tg.BuildBot(&cfg.Config)
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	a, err := New(cfg, sqlstore.New(res.DB), b)
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	a.db = res.DB
	return a, nil
}

// New wires the app around store and b.
func New(cfg *config.Config, store catalog.Store, b *tele.Bot) (*App, error) {
	if cfg == nil || store == nil || b == nil {
		return nil, fmt.Errorf("app: config, store and bot are required")
	}
	a := &App{
		cfg:      cfg,
		store:    store,
		bot:      b,
		queue:    tgsender.NewDispatcher(tg.SenderOptions(cfg.Sender)),
		registry: tg.NewRegistry(),
		reporter: stats.NewReporter(store),
		restart:  make(chan struct{}),
	}

	transport := tgbot.NewTransport(b, a.queue)
	sessions := state.NewManager()
	dispatcher := bot.New(bot.Deps{
		Store:     store,
		Sessions:  sessions,
		Gate:      gate.NewEvaluator(store, transport, cfg.Gate.QueryTimeout()),
		Ingest:    ingest.New(store, sessions, cfg.Telegram.AdminIDs),
		Stats:     a.reporter,
		Transport: transport,
	}, bot.Options{
		Categories:   categories(cfg.Content),
		PageSize:     cfg.Content.PageSize,
		RejectPolicy: cfg.Admin.RejectPolicy,
		LogChannelID: cfg.Telegram.LogChannelID,
		Restart:      a.requestRestart,
	})

	a.adapter = tgbot.New(dispatcher, cfg.Telegram.IsAdmin)
	if err := a.adapter.Register(a.registry); err != nil {
		a.queue.Close()
		return nil, fmt.Errorf("app: register handlers: %w", err)
	}
	return a, nil
}

func categories(c config.ContentConfig) []string {
	if c.CatalogMenu {
		return nil
	}
	return c.Categories
}

func (a *App) requestRestart() {
	a.restartOnce.Do(func() { close(a.restart) })
}

// RestartRequested is closed once an admin asks for a restart.
func (a *App) RestartRequested() <-chan struct{} {
	return a.restart
}

// TelegramRunOptions describes the bot run.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	return tg.RunOptions{
		Config:      &a.cfg.Config,
		Bot:         a.bot,
		Registry:    a.registry,
		Dispatcher:  a.queue,
		Middlewares: tg.DefaultMiddlewares(&a.cfg.Config, onRateLimited),
		Routes:      a.adapter.Routes(a.registry),
		OnStop: func(ctx context.Context, _ tg.Runtime) error {
			return a.Close(ctx)
		},
	}, nil
}

// Background returns the stats listener when http.listen is set.
func (a *App) Background() []func(ctx context.Context) error {
	if a.cfg.HTTP.Listen == "" {
		return nil
	}
	handler := stats.NewRouter(a.reporter)
	return []func(ctx context.Context) error{
		func(ctx context.Context) error {
			return stats.Serve(ctx, a.cfg.HTTP.Listen, handler)
		},
	}
}

// Close releases the database connection.
func (a *App) Close(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	if err != nil {
		logger.Error(ctx, component, "db.close", slog.String("err", err.Error()))
		return fmt.Errorf("app: close database: %w", err)
	}
	return nil
}

// onRateLimited answers throttled button presses so the client stops
// spinning. Throttled messages are dropped silently.
func onRateLimited(c tele.Context) error {
	if c.Callback() == nil {
		return nil
	}
	return c.Respond(&tele.CallbackResponse{Text: "Too many requests, slow down"})
}

// GateSeeder stores g as the active gate when no gate row was ever saved.
func GateSeeder(g catalog.GateConfig) bootstrap.Seeder {
	return bootstrap.SeederFunc(func(ctx context.Context, db *sqlx.DB) error {
		return seedGate(ctx, sqlstore.New(db), g)
	})
}

func seedGate(ctx context.Context, store catalog.Store, g catalog.GateConfig) error {
	if g.Empty() {
		return nil
	}
	current, err := store.GateConfig(ctx)
	if err != nil {
		return fmt.Errorf("read gate: %w", err)
	}
	if current.Stored() {
		return nil
	}
	if err := store.ReplaceGateConfig(ctx, g); err != nil {
		return fmt.Errorf("seed gate: %w", err)
	}
	logger.Info(ctx, component, "gate.seeded",
		slog.String("channel", g.Channel),
		slog.Bool("invite_link", g.InviteLink != ""),
		slog.Bool("require_age", g.RequireAge),
	)
	return nil
}
