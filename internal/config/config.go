// Package config is the gatebot configuration: the shared core sections plus
// storage, content, gate and HTTP settings.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/gatebot/core/config"
	coredatabase "github.com/m3rciful/gatebot/core/database"
	"github.com/m3rciful/gatebot/internal/catalog"
	"github.com/m3rciful/gatebot/internal/pagination"
)

// DefaultCategories is the menu offered when content.categories is not set.
var DefaultCategories = []string{"Mallu", "Desi", "Trending", "Latest", "Premium"}

// Admin reject policies.
const (
	RejectSilent = "silent"
	RejectReply  = "reply"
)

type ContentConfig struct {
	Categories []string `yaml:"categories" envconfig:"CONTENT_CATEGORIES"`
	// CatalogMenu offers the categories found in the catalog instead of Categories.
	CatalogMenu bool `yaml:"catalog_menu" envconfig:"CONTENT_CATALOG_MENU"`
	PageSize    int  `yaml:"page_size" envconfig:"CONTENT_PAGE_SIZE"`
}

// GateConfig carries the membership query timeout and the gate applied on
// first start when the store holds none.
type GateConfig struct {
	QueryTimeoutMS int    `yaml:"query_timeout_ms" envconfig:"GATE_QUERY_TIMEOUT_MS"`
	InviteLink     string `yaml:"invite_link" envconfig:"GATE_INVITE_LINK"`
	Channel        string `yaml:"channel" envconfig:"GATE_CHANNEL"`
	RequireAge     bool   `yaml:"require_age" envconfig:"GATE_REQUIRE_AGE"`
}

// QueryTimeout returns the membership query timeout.
func (g GateConfig) QueryTimeout() time.Duration {
	return time.Duration(g.QueryTimeoutMS) * time.Millisecond
}

// Seed returns the configured gate as a catalog value.
func (g GateConfig) Seed() catalog.GateConfig {
	return catalog.GateConfig{InviteLink: g.InviteLink, Channel: g.Channel, RequireAge: g.RequireAge}
}

type AdminConfig struct {
	RejectPolicy string `yaml:"reject_policy" envconfig:"ADMIN_REJECT_POLICY"`
}

// HTTPConfig enables the stats and metrics listener when Listen is set.
type HTTPConfig struct {
	Listen string `yaml:"listen" envconfig:"HTTP_LISTEN"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Content  ContentConfig       `yaml:"content"`
	Gate     GateConfig          `yaml:"gate"`
	Admin    AdminConfig         `yaml:"admin"`
	HTTP     HTTPConfig          `yaml:"http"`
}

// Load reads path and the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults.
func Normalize(cfg *Config) error {
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return err
	}

	switch {
	case cfg.Content.PageSize == 0:
		cfg.Content.PageSize = pagination.DefaultPageSize
	case cfg.Content.PageSize < 0 || cfg.Content.PageSize > pagination.DefaultPageSize:
		return fmt.Errorf("content.page_size must be between 1 and %d", pagination.DefaultPageSize)
	}
	cats := make([]string, 0, len(cfg.Content.Categories))
	for _, c := range cfg.Content.Categories {
		if c = strings.TrimSpace(c); c == "" {
			continue
		}
		if err := catalog.ValidateCategory(c); err != nil {
			return fmt.Errorf("content.categories: %q: %w", c, err)
		}
		cats = append(cats, c)
	}
	if len(cats) == 0 && !cfg.Content.CatalogMenu {
		cats = append(cats, DefaultCategories...)
	}
	cfg.Content.Categories = cats

	if cfg.Gate.QueryTimeoutMS < 0 {
		return fmt.Errorf("gate.query_timeout_ms must be >= 0")
	}
	if cfg.Gate.QueryTimeoutMS == 0 {
		cfg.Gate.QueryTimeoutMS = 3000
	}
	if ch := cfg.Gate.Channel; ch != "" && !strings.HasPrefix(ch, "@") && !strings.HasPrefix(ch, "-") {
		return fmt.Errorf("gate.channel must be @username or a numeric chat id, got %q", ch)
	}

	policy := strings.ToLower(strings.TrimSpace(cfg.Admin.RejectPolicy))
	switch policy {
	case "":
		policy = RejectSilent
	case RejectSilent, RejectReply:
	default:
		return fmt.Errorf("invalid admin.reject_policy %q; allowed: silent, reply", cfg.Admin.RejectPolicy)
	}
	cfg.Admin.RejectPolicy = policy
	return nil
}
