// Package sqlstore implements catalog.Store on top of sqlx for PostgreSQL
// and SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/gatebot/core/logger"
	"github.com/m3rciful/gatebot/internal/catalog"
)

const component = "service.catalog"

// Store is the SQL backed catalog.
type Store struct {
	db *sqlx.DB
}

var _ catalog.Store = (*Store)(nil)

// New wraps an open database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) q(query string) string {
	return s.db.Rebind(query)
}

func (s *Store) logWrite(ctx context.Context, op string, start time.Time, err error, attrs ...slog.Attr) {
	attrs = append([]slog.Attr{
		slog.String("operation", op),
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.Took(start)),
	}, attrs...)
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
		logger.Error(ctx, component, "db.write", attrs...)
		return
	}
	logger.Debug(ctx, component, "db.write", attrs...)
}

// Append inserts a new media item and returns it with its assigned ID.
func (s *Store) Append(ctx context.Context, category, contentRef string) (catalog.MediaItem, error) {
	start := time.Now()
	var item catalog.MediaItem
	err := s.db.GetContext(ctx, &item, s.q(qAppend), category, contentRef)
	s.logWrite(ctx, "append", start, err, slog.String("category", category))
	if err != nil {
		return catalog.MediaItem{}, catalog.Storage("append", err)
	}
	return item, nil
}

// List returns the category items, newest first.
func (s *Store) List(ctx context.Context, category string) ([]catalog.MediaItem, error) {
	items := make([]catalog.MediaItem, 0)
	if err := s.db.SelectContext(ctx, &items, s.q(qList), category); err != nil {
		return nil, catalog.Storage("list", err)
	}
	return items, nil
}

// Exists reports whether the exact (category, contentRef) pair is stored.
func (s *Store) Exists(ctx context.Context, category, contentRef string) (bool, error) {
	var ok bool
	if err := s.db.GetContext(ctx, &ok, s.q(qExists), category, contentRef); err != nil {
		return false, catalog.Storage("exists", err)
	}
	return ok, nil
}

// DeleteByID removes one item by identifier.
func (s *Store) DeleteByID(ctx context.Context, id int64) (catalog.MediaItem, error) {
	start := time.Now()
	var item catalog.MediaItem
	err := s.db.GetContext(ctx, &item, s.q(qDeleteByID), id)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.MediaItem{}, &catalog.NotFoundError{ID: id}
	}
	s.logWrite(ctx, "delete_by_id", start, err, slog.Int64("item_id", id))
	if err != nil {
		return catalog.MediaItem{}, catalog.Storage("delete_by_id", err)
	}
	return item, nil
}

// DeleteByPosition resolves index against the List ordering and deletes the
// item in a single statement.
func (s *Store) DeleteByPosition(ctx context.Context, category string, index int) (catalog.MediaItem, error) {
	if index < 0 {
		return catalog.MediaItem{}, s.rangeError(ctx, category, index)
	}
	start := time.Now()
	var item catalog.MediaItem
	err := s.db.GetContext(ctx, &item, s.q(qDeleteByPosition), category, index)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.MediaItem{}, s.rangeError(ctx, category, index)
	}
	s.logWrite(ctx, "delete_by_position", start, err,
		slog.String("category", category),
		slog.Int("index", index),
	)
	if err != nil {
		return catalog.MediaItem{}, catalog.Storage("delete_by_position", err)
	}
	return item, nil
}

// rangeError reports the count observed after the failed delete; it is
// informational only.
func (s *Store) rangeError(ctx context.Context, category string, index int) error {
	n, err := s.Count(ctx, category)
	if err != nil {
		n = -1
	}
	return &catalog.RangeError{Category: category, Index: index, Count: n}
}

// Count returns the number of items in category.
func (s *Store) Count(ctx context.Context, category string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.q(qCount), category); err != nil {
		return 0, catalog.Storage("count", err)
	}
	return n, nil
}

// CountAll returns the number of stored items.
func (s *Store) CountAll(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, qCountAll); err != nil {
		return 0, catalog.Storage("count_all", err)
	}
	return n, nil
}

// Categories returns per-category counts ordered by name.
func (s *Store) Categories(ctx context.Context) ([]catalog.CategoryCount, error) {
	out := make([]catalog.CategoryCount, 0)
	if err := s.db.SelectContext(ctx, &out, qCategories); err != nil {
		return nil, catalog.Storage("categories", err)
	}
	return out, nil
}

// EnsureUser creates the user on first contact and reports whether a row was inserted.
func (s *Store) EnsureUser(ctx context.Context, id int64, firstName string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(qEnsureUser), id, firstName)
	if err != nil {
		return false, catalog.Storage("ensure_user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, catalog.Storage("ensure_user", err)
	}
	return n > 0, nil
}

// User loads a user by ID.
func (s *Store) User(ctx context.Context, id int64) (catalog.User, error) {
	var u catalog.User
	err := s.db.GetContext(ctx, &u, s.q(qUser), id)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.User{}, &catalog.NotFoundError{ID: id}
	}
	if err != nil {
		return catalog.User{}, catalog.Storage("user", err)
	}
	return u, nil
}

// SetAgeConfirmed records the age confirmation flag.
func (s *Store) SetAgeConfirmed(ctx context.Context, id int64) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx, s.q(qSetAgeConfirmed), id)
	s.logWrite(ctx, "set_age_confirmed", start, err)
	return catalog.Storage("set_age_confirmed", err)
}

// TotalUsers returns the number of known users.
func (s *Store) TotalUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, qTotalUsers); err != nil {
		return 0, catalog.Storage("total_users", err)
	}
	return n, nil
}

// GateConfig returns the active configuration or the zero value when none is stored.
func (s *Store) GateConfig(ctx context.Context) (catalog.GateConfig, error) {
	var cfg catalog.GateConfig
	err := s.db.GetContext(ctx, &cfg, qGateConfig)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.GateConfig{}, nil
	}
	if err != nil {
		return catalog.GateConfig{}, catalog.Storage("gate_config", err)
	}
	return cfg, nil
}

// ReplaceGateConfig overwrites all fields of the single configuration row in
// one statement.
func (s *Store) ReplaceGateConfig(ctx context.Context, cfg catalog.GateConfig) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx, s.q(qReplaceGateConfig), cfg.InviteLink, cfg.Channel, cfg.RequireAge)
	s.logWrite(ctx, "replace_gate_config", start, err,
		slog.String("channel", cfg.Channel),
		slog.Bool("require_age", cfg.RequireAge),
	)
	return catalog.Storage("replace_gate_config", err)
}

// JoinStatus returns the recorded status, JoinNone when the user has no row.
func (s *Store) JoinStatus(ctx context.Context, userID int64) (catalog.JoinStatus, error) {
	var st string
	err := s.db.GetContext(ctx, &st, s.q(qJoinStatus), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.JoinNone, nil
	}
	if err != nil {
		return catalog.JoinNone, catalog.Storage("join_status", err)
	}
	status := catalog.JoinStatus(st)
	if !status.Valid() {
		return catalog.JoinNone, nil
	}
	return status, nil
}

// SetJoinStatus upserts the join status of a user.
func (s *Store) SetJoinStatus(ctx context.Context, userID int64, status catalog.JoinStatus) error {
	if !status.Valid() {
		return &catalog.ValidationError{Field: "status", Reason: "unknown join status " + string(status)}
	}
	start := time.Now()
	_, err := s.db.ExecContext(ctx, s.q(qSetJoinStatus), userID, string(status))
	s.logWrite(ctx, "set_join_status", start, err, slog.String("join_status", string(status)))
	return catalog.Storage("set_join_status", err)
}
