package app

import (
	"context"
	"errors"
	"testing"

	coreconfig "github.com/m3rciful/gatebot/core/config"
	coredatabase "github.com/m3rciful/gatebot/core/database"
	"github.com/m3rciful/gatebot/internal/catalog"
	"github.com/m3rciful/gatebot/internal/catalog/memstore"
	"github.com/m3rciful/gatebot/internal/config"

	tele "gopkg.in/telebot.v4"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{Config: coreconfig.Config{
		Telegram: coreconfig.TelegramConfig{Token: "123:abc", AdminIDs: []int64{1}},
	}}
	cfg.Database.Driver = coredatabase.DriverSQLite
	if err := config.Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("offline bot: %v", err)
	}
	a, err := New(cfg, memstore.New(), b)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(a.queue.Close)
	return a
}

func TestNewRegistersHandlers(t *testing.T) {
	a := newApp(t, testConfig(t))

	opts, err := a.TelegramRunOptions()
	if err != nil {
		t.Fatalf("run options: %v", err)
	}
	if opts.Bot != a.bot || opts.Dispatcher != a.queue || opts.Registry != a.registry {
		t.Fatal("run options do not carry the app runtime")
	}
	if len(opts.Routes) == 0 || len(opts.Middlewares) == 0 {
		t.Fatalf("routes = %d, middlewares = %d", len(opts.Routes), len(opts.Middlewares))
	}
	if _, _, ok := a.registry.LookupCommand("/setgate"); !ok {
		t.Fatal("admin command missing from registry")
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(testConfig(t), nil, nil); err == nil {
		t.Fatal("missing store and bot accepted")
	}
}

func TestRestartRequestedIsIdempotent(t *testing.T) {
	a := newApp(t, testConfig(t))
	select {
	case <-a.RestartRequested():
		t.Fatal("restart signalled before request")
	default:
	}
	a.requestRestart()
	a.requestRestart()
	select {
	case <-a.RestartRequested():
	default:
		t.Fatal("restart not signalled")
	}
}

func TestBackgroundFollowsHTTPListen(t *testing.T) {
	cfg := testConfig(t)
	if svcs := newApp(t, cfg).Background(); len(svcs) != 0 {
		t.Fatalf("services without listen = %d", len(svcs))
	}
	cfg.HTTP.Listen = "127.0.0.1:0"
	if svcs := newApp(t, cfg).Background(); len(svcs) != 1 {
		t.Fatalf("services with listen = %d", len(svcs))
	}
}

func TestCatalogMenuOffersStoredCategories(t *testing.T) {
	if got := categories(config.ContentConfig{CatalogMenu: true, Categories: []string{"A"}}); got != nil {
		t.Fatalf("categories = %v", got)
	}
	if got := categories(config.ContentConfig{Categories: []string{"A"}}); len(got) != 1 {
		t.Fatalf("categories = %v", got)
	}
}

func TestSeedGate(t *testing.T) {
	ctx := context.Background()
	seed := catalog.GateConfig{Channel: "@chan", RequireAge: true}

	store := memstore.New()
	if err := seedGate(ctx, store, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, _ := store.GateConfig(ctx)
	if got.Channel != "@chan" || !got.RequireAge {
		t.Fatalf("gate = %+v", got)
	}

	// An existing gate wins over the configured one.
	if err := seedGate(ctx, store, catalog.GateConfig{InviteLink: "https://t.me/+x"}); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	got, _ = store.GateConfig(ctx)
	if got.InviteLink != "" || got.Channel != "@chan" {
		t.Fatalf("gate overwritten: %+v", got)
	}

	// A gate cleared by an admin stays cleared across restarts.
	if err := store.ReplaceGateConfig(ctx, catalog.GateConfig{}); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := seedGate(ctx, store, seed); err != nil {
		t.Fatalf("reseed after clear: %v", err)
	}
	got, _ = store.GateConfig(ctx)
	if !got.Empty() {
		t.Fatalf("cleared gate reseeded: %+v", got)
	}

	failing := memstore.New()
	failing.FailWith = errors.New("disk full")
	if err := seedGate(ctx, failing, seed); err == nil {
		t.Fatal("storage failure ignored")
	}
	if err := seedGate(ctx, failing, catalog.GateConfig{}); err != nil {
		t.Fatalf("empty seed touched the store: %v", err)
	}
}
