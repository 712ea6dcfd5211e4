// Package catalog defines the durable model of the bot: users, media items
// grouped by category, the access gate configuration and pending join requests.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultCategory tags media uploaded without any explicit category.
const DefaultCategory = "general"

// MaxCategoryLen bounds a category name in bytes. Names are carried in inline
// button data, which Telegram caps at 64 bytes including the action prefix.
const MaxCategoryLen = 48

// ValidateCategory rejects empty or oversized category names.
func ValidateCategory(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return &ValidationError{Field: "category", Reason: "must not be empty"}
	case len(name) > MaxCategoryLen:
		return &ValidationError{Field: "category", Reason: fmt.Sprintf("category must be at most %d bytes", MaxCategoryLen)}
	}
	return nil
}

// User is a bot user identified by the Telegram user ID.
type User struct {
	ID           int64     `db:"id"`
	FirstName    string    `db:"first_name"`
	AgeConfirmed bool      `db:"age_confirmed"`
	CreatedAt    time.Time `db:"created_at"`
}

// MediaItem is a stored content reference. Items are immutable once stored.
type MediaItem struct {
	ID         int64     `db:"id"`
	Category   string    `db:"category"`
	ContentRef string    `db:"content_ref"`
	CreatedAt  time.Time `db:"created_at"`
}

// CategoryCount pairs a category with the number of items it holds.
type CategoryCount struct {
	Category string `db:"category"`
	Items    int    `db:"items"`
}

// GateConfig is the single active access gate configuration.
// The zero value means no gate is configured.
type GateConfig struct {
	InviteLink string    `db:"invite_link"`
	Channel    string    `db:"channel"`
	RequireAge bool      `db:"require_age"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// RequiresMembership reports whether a channel membership check is configured.
func (g GateConfig) RequiresMembership() bool {
	return g.Channel != ""
}

// Empty reports whether no gate of any kind is configured.
func (g GateConfig) Empty() bool {
	return g.InviteLink == "" && g.Channel == "" && !g.RequireAge
}

// Stored reports whether g was read from a saved row. An admin clearing the
// gate still leaves a stored, empty configuration.
func (g GateConfig) Stored() bool {
	return !g.UpdatedAt.IsZero()
}

// JoinStatus tracks a user's channel join request.
type JoinStatus string

const (
	JoinNone     JoinStatus = "none"
	JoinPending  JoinStatus = "pending"
	JoinVerified JoinStatus = "verified"
)

// Valid reports whether s is a known join status.
func (s JoinStatus) Valid() bool {
	switch s {
	case JoinNone, JoinPending, JoinVerified:
		return true
	}
	return false
}

// Store is the persistence boundary used by every component of the bot.
// Each method is a single atomic operation against the underlying store.
type Store interface {
	Append(ctx context.Context, category, contentRef string) (MediaItem, error)
	List(ctx context.Context, category string) ([]MediaItem, error)
	Exists(ctx context.Context, category, contentRef string) (bool, error)
	DeleteByID(ctx context.Context, id int64) (MediaItem, error)
	// DeleteByPosition resolves index against the List ordering and deletes
	// the item in the same operation.
	DeleteByPosition(ctx context.Context, category string, index int) (MediaItem, error)
	Count(ctx context.Context, category string) (int, error)
	CountAll(ctx context.Context) (int, error)
	Categories(ctx context.Context) ([]CategoryCount, error)

	EnsureUser(ctx context.Context, id int64, firstName string) (bool, error)
	User(ctx context.Context, id int64) (User, error)
	SetAgeConfirmed(ctx context.Context, id int64) error
	TotalUsers(ctx context.Context) (int, error)

	GateConfig(ctx context.Context) (GateConfig, error)
	ReplaceGateConfig(ctx context.Context, cfg GateConfig) error

	JoinStatus(ctx context.Context, userID int64) (JoinStatus, error)
	SetJoinStatus(ctx context.Context, userID int64, status JoinStatus) error
}
