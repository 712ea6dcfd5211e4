package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	coreconfig "github.com/m3rciful/gatebot/core/config"
	coredatabase "github.com/m3rciful/gatebot/core/database"
	"github.com/m3rciful/gatebot/internal/catalog"
	"github.com/m3rciful/gatebot/internal/pagination"
)

func baseConfig() Config {
	return Config{
		Config:   coreconfig.Config{Telegram: coreconfig.TelegramConfig{Token: "t"}},
		Database: coredatabase.Config{Driver: coredatabase.DriverSQLite},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := baseConfig()
	if err := Normalize(&cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Content.PageSize != pagination.DefaultPageSize {
		t.Fatalf("page size = %d", cfg.Content.PageSize)
	}
	if len(cfg.Content.Categories) != len(DefaultCategories) {
		t.Fatalf("categories = %v", cfg.Content.Categories)
	}
	if cfg.Gate.QueryTimeout().Seconds() != 3 {
		t.Fatalf("query timeout = %s", cfg.Gate.QueryTimeout())
	}
	if cfg.Admin.RejectPolicy != RejectSilent {
		t.Fatalf("reject policy = %q", cfg.Admin.RejectPolicy)
	}
	if cfg.Database.Path == "" {
		t.Fatal("sqlite path not defaulted")
	}
}

func TestNormalizeCatalogMenuKeepsCategoriesEmpty(t *testing.T) {
	cfg := baseConfig()
	cfg.Content.CatalogMenu = true
	cfg.Content.Categories = []string{" ", ""}
	if err := Normalize(&cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(cfg.Content.Categories) != 0 {
		t.Fatalf("categories = %v", cfg.Content.Categories)
	}
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"page size":     func(c *Config) { c.Content.PageSize = pagination.DefaultPageSize + 1 },
		"timeout":       func(c *Config) { c.Gate.QueryTimeoutMS = -1 },
		"channel":       func(c *Config) { c.Gate.Channel = "mychannel" },
		"reject policy": func(c *Config) { c.Admin.RejectPolicy = "shout" },
		"driver":        func(c *Config) { c.Database.Driver = "mysql" },
		"long category": func(c *Config) { c.Content.Categories = []string{strings.Repeat("x", catalog.MaxCategoryLen+1)} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := baseConfig()
			mutate(&cfg)
			if err := Normalize(&cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadExampleLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
telegram:
  token: t
  admin_ids: [42]
database:
  driver: sqlite
  path: /tmp/gatebot-test.db
content:
  categories: [Latest, Desi]
  page_size: 5
gate:
  channel: "@chan"
  require_age: true
admin:
  reject_policy: REPLY
http:
  listen: ":9090"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Telegram.IsAdmin(42) || cfg.CoreConfig() != &cfg.Config {
		t.Fatalf("core section = %+v", cfg.Config.Telegram)
	}
	if cfg.Content.PageSize != 5 || len(cfg.Content.Categories) != 2 {
		t.Fatalf("content = %+v", cfg.Content)
	}
	seed := cfg.Gate.Seed()
	if seed.Channel != "@chan" || !seed.RequireAge || !seed.RequiresMembership() {
		t.Fatalf("gate seed = %+v", seed)
	}
	if cfg.Admin.RejectPolicy != RejectReply || cfg.HTTP.Listen != ":9090" {
		t.Fatalf("admin/http = %+v %+v", cfg.Admin, cfg.HTTP)
	}
}
